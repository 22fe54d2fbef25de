package protocol

import (
	"github.com/go-orient/orient/orienterr"
	"github.com/go-orient/orient/wire"
)

// Status byte values a response begins with, before the session id.
const (
	StatusOK    byte = 0
	StatusError byte = 1
	StatusPush  byte = 3
)

// Header is the fixed prefix every response frame starts with: status
// followed by the session id it answers.
type Header struct {
	Status    byte
	SessionID int32
}

// DecodeHeader reads the status byte and session id common to every
// response. Restartable: on wire.ErrNeedMore, rest equals b.
func DecodeHeader(b []byte) (Header, []byte, error) {
	status, rest, err := wire.Int8(b)
	if err != nil {
		return Header{}, b, err
	}
	sessionID, rest2, err := wire.Int32(rest)
	if err != nil {
		return Header{}, b, err
	}
	return Header{Status: byte(status), SessionID: sessionID}, rest2, nil
}

// DecodeErrorPayload parses the body of a StatusError response: a sequence
// of (class, message) pairs, each preceded by a nonzero continuation byte,
// terminated by a zero byte, followed by a length-prefixed
// serialized-exception blob (length -1 when absent) that is consumed but
// not interpreted.
func DecodeErrorPayload(b []byte) (*orienterr.ServerError, []byte, error) {
	var entries []orienterr.ServerErrorEntry
	for {
		more, rest, err := wire.Bool(b)
		if err != nil {
			return nil, b, err
		}
		b = rest
		if !more {
			break
		}
		class, rest2, err := wire.String(b)
		if err != nil {
			return nil, b, err
		}
		message, rest3, err := wire.String(rest2)
		if err != nil {
			return nil, b, err
		}
		entries = append(entries, orienterr.ServerErrorEntry{Class: class, Message: message})
		b = rest3
	}
	// A trailing serialized-exception blob always follows the terminator,
	// as a length-prefixed byte string (-1 meaning null/absent). The core
	// driver has no Java deserializer for it and discards the bytes —
	// they exist on the wire purely so the stream stays in sync.
	_, rest, err := wire.Bytes(b)
	if err != nil {
		return nil, b, err
	}
	b = rest
	return &orienterr.ServerError{Entries: entries}, b, nil
}
