// Package wire encodes and decodes the fixed-width and length-prefixed
// primitives of the OrientDB binary network protocol: big-endian integers,
// IEEE-754 floats, booleans, length-prefixed byte strings, and LEB128
// zig-zag varints. It is stateless and knows nothing about records, schema,
// or operations — those live in package record and package protocol.
package wire

import (
	"encoding/binary"
	"errors"
	"math"
)

// ErrNeedMore is returned by a decoder (Bool, Int32, String, Varint, ...) when the supplied slice is
// shorter than the value it is asked to decode. Callers (the connection
// state machine) buffer more bytes and retry; ErrNeedMore never advances
// past partial data.
var ErrNeedMore = errors.New("wire: need more bytes")

// PutBool appends a single boolean byte (0x00 or 0x01).
func PutBool(buf []byte, v bool) []byte {
	if v {
		return append(buf, 1)
	}
	return append(buf, 0)
}

// Bool reads a boolean byte.
func Bool(b []byte) (bool, []byte, error) {
	if len(b) < 1 {
		return false, b, ErrNeedMore
	}
	return b[0] != 0, b[1:], nil
}

// PutInt8 appends a signed byte.
func PutInt8(buf []byte, v int8) []byte {
	return append(buf, byte(v))
}

// Int8 reads a signed byte.
func Int8(b []byte) (int8, []byte, error) {
	if len(b) < 1 {
		return 0, b, ErrNeedMore
	}
	return int8(b[0]), b[1:], nil
}

// PutInt16 appends a big-endian signed 16-bit integer.
func PutInt16(buf []byte, v int16) []byte {
	var tmp [2]byte
	binary.BigEndian.PutUint16(tmp[:], uint16(v))
	return append(buf, tmp[:]...)
}

// Int16 reads a big-endian signed 16-bit integer.
func Int16(b []byte) (int16, []byte, error) {
	if len(b) < 2 {
		return 0, b, ErrNeedMore
	}
	return int16(binary.BigEndian.Uint16(b)), b[2:], nil
}

// PutInt32 appends a big-endian signed 32-bit integer.
func PutInt32(buf []byte, v int32) []byte {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], uint32(v))
	return append(buf, tmp[:]...)
}

// Int32 reads a big-endian signed 32-bit integer.
func Int32(b []byte) (int32, []byte, error) {
	if len(b) < 4 {
		return 0, b, ErrNeedMore
	}
	return int32(binary.BigEndian.Uint32(b)), b[4:], nil
}

// PutInt64 appends a big-endian signed 64-bit integer.
func PutInt64(buf []byte, v int64) []byte {
	var tmp [8]byte
	binary.BigEndian.PutUint64(tmp[:], uint64(v))
	return append(buf, tmp[:]...)
}

// Int64 reads a big-endian signed 64-bit integer.
func Int64(b []byte) (int64, []byte, error) {
	if len(b) < 8 {
		return 0, b, ErrNeedMore
	}
	return int64(binary.BigEndian.Uint64(b)), b[8:], nil
}

// PutFloat32 appends a big-endian IEEE-754 single-precision float.
func PutFloat32(buf []byte, v float32) []byte {
	return PutInt32(buf, int32(math.Float32bits(v)))
}

// Float32 reads a big-endian IEEE-754 single-precision float.
func Float32(b []byte) (float32, []byte, error) {
	bits, rest, err := Int32(b)
	if err != nil {
		return 0, b, err
	}
	return math.Float32frombits(uint32(bits)), rest, nil
}

// PutFloat64 appends a big-endian IEEE-754 double-precision float.
func PutFloat64(buf []byte, v float64) []byte {
	return PutInt64(buf, int64(math.Float64bits(v)))
}

// Float64 reads a big-endian IEEE-754 double-precision float.
func Float64(b []byte) (float64, []byte, error) {
	bits, rest, err := Int64(b)
	if err != nil {
		return 0, b, err
	}
	return math.Float64frombits(uint64(bits)), rest, nil
}

// PutBytes appends a length-prefixed byte string: i32 length || bytes.
// A nil slice is encoded as length -1.
func PutBytes(buf []byte, v []byte) []byte {
	if v == nil {
		return PutInt32(buf, -1)
	}
	buf = PutInt32(buf, int32(len(v)))
	return append(buf, v...)
}

// Bytes reads a length-prefixed byte string. A length of -1 decodes to a nil
// slice (the wire's representation of null).
func Bytes(b []byte) ([]byte, []byte, error) {
	n, rest, err := Int32(b)
	if err != nil {
		return nil, b, err
	}
	if n < 0 {
		return nil, rest, nil
	}
	if int32(len(rest)) < n {
		return nil, b, ErrNeedMore
	}
	return rest[:n], rest[n:], nil
}

// PutString appends a length-prefixed UTF-8 string using the same framing
// as PutBytes.
func PutString(buf []byte, v string) []byte {
	return PutBytes(buf, []byte(v))
}

// String reads a length-prefixed UTF-8 string. A length of -1 decodes to "".
func String(b []byte) (string, []byte, error) {
	raw, rest, err := Bytes(b)
	if err != nil {
		return "", b, err
	}
	return string(raw), rest, nil
}
