package record

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-orient/orient/orienterr"
	"github.com/go-orient/orient/wire"
)

func TestEncodeDecodeSchemalessRoundTrip(t *testing.T) {
	doc := &Document{ClassName: "Schemaless"}
	doc.Set("name", Value{Kind: TypeString, String: "x"})
	doc.Set("count", Value{Kind: TypeInt32, Int32: 42})
	doc.Set("active", Value{Kind: TypeBoolean, Bool: true})

	buf, err := Encode(doc, nil)
	require.NoError(t, err)

	got, rest, err := Decode(buf, nil)
	require.NoError(t, err)
	assert.Empty(t, rest)
	assert.Equal(t, "Schemaless", got.ClassName)

	name, ok := got.Get("name")
	require.True(t, ok)
	assert.Equal(t, "x", name.String)

	count, ok := got.Get("count")
	require.True(t, ok)
	assert.Equal(t, int32(42), count.Int32)

	active, ok := got.Get("active")
	require.True(t, ok)
	assert.True(t, active.Bool)
}

func TestEncodeDecodeNullField(t *testing.T) {
	doc := &Document{ClassName: "C"}
	doc.Set("maybe", NullValue(TypeString))

	buf, err := Encode(doc, nil)
	require.NoError(t, err)

	got, rest, err := Decode(buf, nil)
	require.NoError(t, err)
	assert.Empty(t, rest)
	maybe, ok := got.Get("maybe")
	require.True(t, ok)
	assert.True(t, maybe.Null)
}

func TestEncodeDecodeNestedDocument(t *testing.T) {
	inner := &Document{ClassName: "Inner"}
	inner.Set("x", Value{Kind: TypeInt32, Int32: 7})

	outer := &Document{ClassName: "Outer"}
	outer.Set("child", Value{Kind: TypeEmbedded, Embedded: inner})
	outer.Set("tags", Value{Kind: TypeEmbeddedList, List: []Value{
		{Kind: TypeString, String: "a"},
		{Kind: TypeString, String: "b"},
	}})

	buf, err := Encode(outer, nil)
	require.NoError(t, err)

	got, rest, err := Decode(buf, nil)
	require.NoError(t, err)
	assert.Empty(t, rest)

	child, ok := got.Get("child")
	require.True(t, ok)
	require.NotNil(t, child.Embedded)
	x, ok := child.Embedded.Get("x")
	require.True(t, ok)
	assert.Equal(t, int32(7), x.Int32)

	tags, ok := got.Get("tags")
	require.True(t, ok)
	require.Len(t, tags.List, 2)
	assert.Equal(t, "a", tags.List[0].String)
	assert.Equal(t, "b", tags.List[1].String)
}

func TestEncodeDecodeLinkRoundTrip(t *testing.T) {
	doc := &Document{ClassName: "Edge"}
	doc.Set("out", Value{Kind: TypeLink, Link: RID{Cluster: 9, Position: 0}})

	buf, err := Encode(doc, nil)
	require.NoError(t, err)

	got, _, err := Decode(buf, nil)
	require.NoError(t, err)
	out, ok := got.Get("out")
	require.True(t, ok)
	assert.Equal(t, RID{Cluster: 9, Position: 0}, out.Link)
}

func TestGlobalPropertyEncodeDecode(t *testing.T) {
	schema := NewSchema(map[int32]PropertyMeta{
		3: {Name: "name", Type: TypeString},
	})

	doc := &Document{ClassName: "Person"}
	doc.Set("name", Value{Kind: TypeString, String: "Alice"})

	buf, err := Encode(doc, schema)
	require.NoError(t, err)

	got, rest, err := Decode(buf, schema)
	require.NoError(t, err)
	assert.Empty(t, rest)
	name, ok := got.Get("name")
	require.True(t, ok)
	assert.Equal(t, "Alice", name.String)
}

func TestUnknownPropertyIDDoesNotAdvanceTail(t *testing.T) {
	writer := NewSchema(map[int32]PropertyMeta{7: {Name: "name", Type: TypeString}})
	doc := &Document{ClassName: "Person"}
	doc.Set("name", Value{Kind: TypeString, String: "Bob"})
	buf, err := Encode(doc, writer)
	require.NoError(t, err)

	// Schema lacking id 7 entirely: decode must fail with
	// ErrUnknownPropertyID and must not consume any bytes.
	empty := NewSchema(nil)
	_, rest, err := Decode(buf, empty)
	require.Error(t, err)
	assert.True(t, errors.Is(err, orienterr.ErrUnknownPropertyID))
	assert.Equal(t, buf, rest, "tail must be left untouched on UnknownPropertyID")

	// A retry with the correct schema on the very same bytes succeeds.
	got, rest2, err := Decode(buf, writer)
	require.NoError(t, err)
	assert.Empty(t, rest2)
	name, ok := got.Get("name")
	require.True(t, ok)
	assert.Equal(t, "Bob", name.String)
}

func TestDecodeNeedMoreOnTruncatedRecord(t *testing.T) {
	doc := &Document{ClassName: "C"}
	doc.Set("s", Value{Kind: TypeString, String: "hello world"})
	buf, err := Encode(doc, nil)
	require.NoError(t, err)

	for i := 0; i < len(buf); i++ {
		_, rest, err := Decode(buf[:i], nil)
		if err == nil {
			continue
		}
		assert.Equal(t, buf[:i], rest)
	}
	got, rest, err := Decode(buf, nil)
	require.NoError(t, err)
	assert.Empty(t, rest)
	s, _ := got.Get("s")
	assert.Equal(t, "hello world", s.String)
}

// TestDecodeUsesFieldOffsetsNotTableOrder builds a record by hand, rather
// than via Encode, with the data area laid out in the reverse of the
// field-table order: field "a" is listed first in the table but its value
// is stored second in the data area. Decode must follow each entry's
// stored offset rather than assuming the data area mirrors table order.
func TestDecodeUsesFieldOffsetsNotTableOrder(t *testing.T) {
	buf := []byte{HeaderVersion}
	buf = encodeClassName(buf, "X")

	buf = wire.PutVarint(buf, int64(len("a")))
	buf = append(buf, "a"...)
	offsetAPatch := len(buf)
	buf = wire.PutInt32(buf, 0) // placeholder
	buf = append(buf, byte(TypeString))

	buf = wire.PutVarint(buf, int64(len("b")))
	buf = append(buf, "b"...)
	offsetBPatch := len(buf)
	buf = wire.PutInt32(buf, 0) // placeholder
	buf = append(buf, byte(TypeString))

	buf = wire.PutVarint(buf, 0) // field-table terminator

	// Data area: b's value first, then a's — reversed from table order.
	offsetB := int32(len(buf))
	buf = encodeVarString(buf, "second")
	offsetA := int32(len(buf))
	buf = encodeVarString(buf, "first")

	patchInt32(buf, offsetAPatch, offsetA)
	patchInt32(buf, offsetBPatch, offsetB)

	got, rest, err := Decode(buf, nil)
	require.NoError(t, err)
	assert.Empty(t, rest)

	a, ok := got.Get("a")
	require.True(t, ok)
	assert.Equal(t, "first", a.String)

	b, ok := got.Get("b")
	require.True(t, ok)
	assert.Equal(t, "second", b.String)
}

func TestDateAndDateTime(t *testing.T) {
	doc := &Document{ClassName: "C"}
	doc.Set("when", Value{Kind: TypeDateTime, DateTime: 1700000000123})
	doc.Set("day", Value{Kind: TypeDate, Date: 19600})

	buf, err := Encode(doc, nil)
	require.NoError(t, err)
	got, _, err := Decode(buf, nil)
	require.NoError(t, err)

	when, _ := got.Get("when")
	assert.Equal(t, int64(1700000000123), when.DateTime)
	day, _ := got.Get("day")
	assert.Equal(t, int64(19600), day.Date)
}
