package protocol

import "github.com/go-orient/orient/wire"

// Command class codes: the single-letter command-class marker the server
// uses to pick a query planner. This core only ever issues SQL queries
// (sync or async), so "q" (idempotent query) is the only one exposed.
const commandClassQuery = "q"

// EncodeCommandArgs builds the argument list for a "command" request: a
// mode byte (sync/async) followed by a length-prefixed payload of
// (class, text, has-simple-params, has-complex-params). Simple and complex
// bound parameters are a non-goal here — every command is issued as a bare
// SQL string.
func EncodeCommandArgs(text string, async bool) []Arg {
	mode := byte('s')
	if async {
		mode = byte('a')
	}

	payload := make([]byte, 0, len(text)+16)
	payload = wire.PutString(payload, commandClassQuery)
	payload = wire.PutString(payload, text)
	payload = wire.PutBool(payload, false) // no simple parameters
	payload = wire.PutBool(payload, false) // no complex parameters

	return []Arg{Raw([]byte{mode}), Bytes(payload)}
}
