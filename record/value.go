// Package record implements the OrientDB record serializer: the recursive,
// self-describing binary format used to encode and decode documents, and
// the global-property schema that lets a schemaful class reference its
// fields by a small integer id instead of repeating the name on every
// instance.
package record

import "fmt"

// TypeCode identifies the wire representation of a field value. These
// match the OrientDB binary protocol's stable type-code table.
type TypeCode uint8

const (
	TypeBoolean      TypeCode = 0
	TypeInt32        TypeCode = 1
	TypeInt16        TypeCode = 2
	TypeInt64        TypeCode = 3
	TypeFloat        TypeCode = 4
	TypeDouble       TypeCode = 5
	TypeDateTime     TypeCode = 6
	TypeString       TypeCode = 7
	TypeBinary       TypeCode = 8
	TypeEmbedded     TypeCode = 9
	TypeEmbeddedList TypeCode = 10
	TypeEmbeddedSet  TypeCode = 11
	TypeEmbeddedMap  TypeCode = 12
	TypeLink         TypeCode = 13
	TypeLinkList     TypeCode = 14
	TypeLinkSet      TypeCode = 15
	TypeLinkMap      TypeCode = 16
	TypeInt8         TypeCode = 17
	TypeDate         TypeCode = 19
	TypeDecimal      TypeCode = 21
)

// RID is a Record Identifier: the cluster a record lives on plus its
// position within that cluster. Links in a decoded document are RIDs, not
// in-memory pointers — resolving the referenced record is a caller concern.
type RID struct {
	Cluster  int16
	Position int64
}

// String renders the canonical "#cluster:position" form, for logging only.
func (r RID) String() string {
	return fmt.Sprintf("#%d:%d", r.Cluster, r.Position)
}

// Decimal is an arbitrary-precision decimal: a scale plus a big-endian
// two's-complement unscaled value, exactly as it appears on the wire.
type Decimal struct {
	Scale    int32
	Unscaled []byte
}

// Value is the closed tagged union of field values a document can hold.
// Implementations should prefer this sum-type-by-struct-tag shape over an
// open `any` so the exhaustive list of type codes stays auditable, per the
// note against dynamic dispatch: only one of the typed fields below is
// meaningful for a given Kind.
type Value struct {
	Kind TypeCode
	Null bool

	Bool     bool
	Int8     int8
	Int16    int16
	Int32    int32
	Int64    int64
	Float32  float32
	Float64  float64
	String   string
	Bytes    []byte
	Decimal  Decimal
	DateTime int64 // milliseconds since epoch
	Date     int64 // days since epoch

	Link RID

	// Embedded holds a nested document (Kind == TypeEmbedded).
	Embedded *Document

	// List holds the elements of an embedded list or set.
	List []Value

	// Map holds the entries of an embedded map, keyed by string.
	Map map[string]Value

	// LinkList / LinkSet hold RIDs for link collections.
	LinkList []RID

	// LinkMap holds RIDs for a string-keyed link map.
	LinkMap map[string]RID
}

// NullValue returns a null value tagged with the given type code, matching
// the wire's "present field, zero data offset" representation.
func NullValue(kind TypeCode) Value {
	return Value{Kind: kind, Null: true}
}

// Field is one entry of a Document's field table, in caller-supplied order.
// Decode preserves this order.
type Field struct {
	Name  string
	Value Value
}

// Document is a decoded or to-be-encoded record: a class name (possibly
// empty, for schemaless/embedded documents), an ordered field list, and —
// for top-level records loaded from the server — an identity and version.
type Document struct {
	ClassName string
	Fields    []Field

	// RID and Version are only meaningful for a document that is itself a
	// top-level record (as opposed to an embedded value nested inside
	// another document's field).
	RID     RID
	Version int32
	HasRID  bool
}

// Get returns the value of the named field and whether it was present.
func (d *Document) Get(name string) (Value, bool) {
	for _, f := range d.Fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return Value{}, false
}

// Set appends or replaces the named field, preserving existing field order
// on replacement and appending on first insertion.
func (d *Document) Set(name string, v Value) {
	for i, f := range d.Fields {
		if f.Name == name {
			d.Fields[i].Value = v
			return
		}
	}
	d.Fields = append(d.Fields, Field{Name: name, Value: v})
}
