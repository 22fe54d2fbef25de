package protocol

import (
	"github.com/go-orient/orient/record"
	"github.com/go-orient/orient/wire"
)

// Arg is one element of a request's argument stream. The concrete
// constructors below (Raw, Short, Int, Long, Bool, String, Bytes, Rid,
// Record) are the only way to build one, keeping the set closed and
// auditable.
type Arg struct {
	kind  argKind
	raw   []byte
	i16   int16
	i32   int32
	i64   int64
	b     bool
	s     string
	rid   record.RID
}

type argKind uint8

const (
	argRaw argKind = iota
	argShort
	argInt
	argLong
	argBool
	argString
	argBytes
	argRid
	argRecord
)

// Raw appends bytes verbatim, with no length prefix or type framing — used
// for argument blobs the caller has already encoded (e.g. command's
// one-byte mode).
func Raw(b []byte) Arg { return Arg{kind: argRaw, raw: b} }

// Short is a big-endian signed 16-bit argument.
func Short(v int16) Arg { return Arg{kind: argShort, i16: v} }

// Int is a big-endian signed 32-bit argument.
func Int(v int32) Arg { return Arg{kind: argInt, i32: v} }

// Long is a big-endian signed 64-bit argument.
func Long(v int64) Arg { return Arg{kind: argLong, i64: v} }

// Bool is a single boolean-byte argument.
func Bool(v bool) Arg { return Arg{kind: argBool, b: v} }

// String is a length-prefixed UTF-8 string argument.
func String(v string) Arg { return Arg{kind: argString, s: v} }

// Bytes is a length-prefixed byte-string argument (e.g. a serialized
// record's body, or a session token).
func Bytes(v []byte) Arg { return Arg{kind: argBytes, raw: v} }

// Rid is a record-id argument, written as a big-endian i16 cluster id
// followed by a big-endian i64 position (not as the varints a Link field
// value uses inside a record).
func Rid(v record.RID) Arg { return Arg{kind: argRid, rid: v} }

// Record is a pre-serialized record body, written as a length-prefixed
// byte string identically to Bytes — kept as a distinct constructor so call
// sites read as "this is a record", not "this is an opaque blob".
func Record(serialized []byte) Arg { return Arg{kind: argRecord, raw: serialized} }

func (a Arg) encode(buf []byte) []byte {
	switch a.kind {
	case argRaw:
		return append(buf, a.raw...)
	case argShort:
		return wire.PutInt16(buf, a.i16)
	case argInt:
		return wire.PutInt32(buf, a.i32)
	case argLong:
		return wire.PutInt64(buf, a.i64)
	case argBool:
		return wire.PutBool(buf, a.b)
	case argString:
		return wire.PutString(buf, a.s)
	case argBytes, argRecord:
		return wire.PutBytes(buf, a.raw)
	case argRid:
		buf = wire.PutInt16(buf, a.rid.Cluster)
		return wire.PutInt64(buf, a.rid.Position)
	default:
		return buf
	}
}

// EncodeRequest builds a full request frame: op_code || session_id ||
// args..., in argument order.
func EncodeRequest(opCode byte, sessionID int32, args []Arg) []byte {
	buf := make([]byte, 0, 64)
	buf = append(buf, opCode)
	buf = wire.PutInt32(buf, sessionID)
	for _, a := range args {
		buf = a.encode(buf)
	}
	return buf
}
