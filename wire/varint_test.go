package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVarintRoundTrip(t *testing.T) {
	cases := []int64{0, 1, -1, 63, -64, 1000000, -1000000, 1 << 40, -(1 << 40)}
	for _, v := range cases {
		buf := PutVarint(nil, v)
		got, rest, err := Varint(buf)
		require.NoError(t, err)
		assert.Empty(t, rest)
		assert.Equal(t, v, got, "value %d", v)
	}
}

func TestVarintSmallValuesAreOneByte(t *testing.T) {
	// Zig-zag mapping keeps small-magnitude values, positive or negative,
	// within a single byte.
	for _, v := range []int64{0, -1, 1, -2, 2, 63, -64} {
		buf := PutVarint(nil, v)
		assert.Len(t, buf, 1, "value %d should fit in one byte", v)
	}
}

func TestMalformedVarint(t *testing.T) {
	// 10 continuation bytes with the high bit always set never terminates.
	b := make([]byte, 11)
	for i := range b {
		b[i] = 0xFF
	}
	_, _, err := Uvarint(b)
	assert.ErrorIs(t, err, ErrMalformedVarint)
}

func TestVarintNeedMore(t *testing.T) {
	// A single continuation byte with no terminator yet.
	_, _, err := Uvarint([]byte{0x80})
	assert.ErrorIs(t, err, ErrNeedMore)
}
