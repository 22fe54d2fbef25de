package record

import (
	"fmt"

	"github.com/go-orient/orient/orienterr"
	"github.com/go-orient/orient/wire"
)

// HeaderVersion is the single supported on-wire record-header version.
const HeaderVersion uint8 = 0

// Encode serializes a document into the OrientDB compact binary record
// form: header_version || class_name || field_table || data_area. When
// schema is non-nil, a field whose name matches any global property in the
// schema (the document's class is not consulted) is written as a
// global-property reference; all other
// fields are written as named entries. Passing a nil schema always
// produces a fully named (schemaless-compatible) encoding.
func Encode(doc *Document, schema *Schema) ([]byte, error) {
	buf := make([]byte, 0, 128)
	buf = append(buf, HeaderVersion)
	buf = encodeClassName(buf, doc.ClassName)

	// Field table is written with placeholder (zero) offsets first, then
	// patched once the data area's layout is known.
	offsetPatchPositions := make([]int, len(doc.Fields))
	for i, f := range doc.Fields {
		if id, ok := schema.LookupByName(f.Name); ok {
			buf = wire.PutVarint(buf, -(int64(id) + 1))
		} else {
			buf = wire.PutVarint(buf, int64(len(f.Name)))
			buf = append(buf, []byte(f.Name)...)
		}
		offsetPatchPositions[i] = len(buf)
		buf = wire.PutInt32(buf, 0) // placeholder offset
		buf = append(buf, byte(f.Value.Kind))
	}
	buf = wire.PutVarint(buf, 0) // field-table terminator

	dataAreaStart := len(buf)
	for i, f := range doc.Fields {
		if f.Value.Null {
			continue // zero placeholder already means "present but null"
		}
		offset := len(buf)
		var err error
		buf, err = encodeValueBody(buf, f.Value)
		if err != nil {
			return nil, fmt.Errorf("record: encode field %q: %w", f.Name, err)
		}
		patchInt32(buf, offsetPatchPositions[i], int32(offset))
	}
	_ = dataAreaStart

	return buf, nil
}

func patchInt32(buf []byte, pos int, v int32) {
	patched := wire.PutInt32(nil, v)
	copy(buf[pos:pos+4], patched)
}

func encodeClassName(buf []byte, name string) []byte {
	buf = wire.PutVarint(buf, int64(len(name)))
	return append(buf, []byte(name)...)
}

func decodeClassName(b []byte) (string, []byte, error) {
	n, rest, err := wire.Varint(b)
	if err != nil {
		return "", b, err
	}
	if n < 0 || int64(len(rest)) < n {
		return "", b, wire.ErrNeedMore
	}
	return string(rest[:n]), rest[n:], nil
}

type fieldTableEntry struct {
	name     string // empty when globalID is set
	globalID int32
	isGlobal bool
	offset   int32
	typeCode TypeCode
}

// Decode parses a single document from the head of data, returning the
// decoded document and the unconsumed remainder. On wire.ErrNeedMore the
// returned rest equals data unchanged, so the caller can buffer more bytes
// and retry the exact same call (streaming determinism). On
// orienterr.ErrUnknownPropertyID, rest is also left unchanged so the
// offending bytes survive a schema refetch and retry.
func Decode(data []byte, schema *Schema) (*Document, []byte, error) {
	orig := data
	if len(data) < 1 {
		return nil, orig, wire.ErrNeedMore
	}
	if data[0] != HeaderVersion {
		return nil, orig, fmt.Errorf("%w: unsupported record header version %d", orienterr.ErrMalformedResponse, data[0])
	}
	b := data[1:]

	className, b, err := decodeClassName(b)
	if err != nil {
		return nil, orig, err
	}

	var entries []fieldTableEntry
	for {
		tag, rest, err := wire.Varint(b)
		if err != nil {
			return nil, orig, err
		}
		b = rest
		if tag == 0 {
			break
		}
		var entry fieldTableEntry
		if tag < 0 {
			entry.isGlobal = true
			entry.globalID = int32(-tag - 1)
		} else {
			if int64(len(b)) < tag {
				return nil, orig, wire.ErrNeedMore
			}
			entry.name = string(b[:tag])
			b = b[tag:]
		}
		offset, rest2, err := wire.Int32(b)
		if err != nil {
			return nil, orig, err
		}
		b = rest2
		typeByte, rest3, err := wire.Int8(b)
		if err != nil {
			return nil, orig, err
		}
		b = rest3
		entry.offset = offset
		entry.typeCode = TypeCode(byte(typeByte))
		entries = append(entries, entry)
	}

	// Field values are addressed by absolute offset into data, not by
	// field-table order: a server response is free to lay data-area
	// entries out in a different order than the field table lists them.
	// rest is therefore the tail past the furthest-extending field, not
	// wherever field-table iteration happened to stop.
	dataAreaStart := int32(len(data) - len(b))
	maxEnd := dataAreaStart

	doc := &Document{ClassName: className}
	for _, e := range entries {
		name := e.name
		var v Value
		if e.offset == 0 {
			v = NullValue(e.typeCode)
		} else {
			// Named entries never consult the schema, even when one is
			// available: a name-tagged field must decode identically
			// whether or not schema is populated, which is what lets the
			// self-referential bootstrap record (always on schemaless
			// cluster 0) decode before any schema exists.
			if e.isGlobal {
				meta, ok := schema.Lookup(e.globalID)
				if !ok {
					return nil, orig, fmt.Errorf("%w: global property %d", orienterr.ErrUnknownPropertyID, e.globalID)
				}
				name = meta.Name
			}
			if e.offset < 0 || int64(e.offset) > int64(len(data)) {
				return nil, orig, wire.ErrNeedMore
			}
			decoded, rest, err := decodeValueBody(data[e.offset:], e.typeCode, schema)
			if err != nil {
				return nil, orig, err
			}
			v = decoded
			if end := e.offset + int32(len(data[e.offset:])-len(rest)); end > maxEnd {
				maxEnd = end
			}
		}
		doc.Fields = append(doc.Fields, Field{Name: name, Value: v})
	}

	return doc, data[maxEnd:], nil
}

// encodeValueBody writes the raw value (no type tag) for v.Kind.
func encodeValueBody(buf []byte, v Value) ([]byte, error) {
	switch v.Kind {
	case TypeBoolean:
		return wire.PutBool(buf, v.Bool), nil
	case TypeInt8:
		return wire.PutVarint(buf, int64(v.Int8)), nil
	case TypeInt16:
		return wire.PutVarint(buf, int64(v.Int16)), nil
	case TypeInt32:
		return wire.PutVarint(buf, int64(v.Int32)), nil
	case TypeInt64:
		return wire.PutVarint(buf, v.Int64), nil
	case TypeFloat:
		return wire.PutFloat32(buf, v.Float32), nil
	case TypeDouble:
		return wire.PutFloat64(buf, v.Float64), nil
	case TypeDateTime:
		return wire.PutVarint(buf, v.DateTime), nil
	case TypeDate:
		return wire.PutVarint(buf, v.Date*86400000), nil
	case TypeString:
		return encodeVarString(buf, v.String), nil
	case TypeBinary:
		return encodeVarBytes(buf, v.Bytes), nil
	case TypeDecimal:
		buf = wire.PutVarint(buf, int64(v.Decimal.Scale))
		return encodeVarBytes(buf, v.Decimal.Unscaled), nil
	case TypeLink:
		return encodeRID(buf, v.Link), nil
	case TypeLinkList, TypeLinkSet:
		buf = wire.PutVarint(buf, int64(len(v.LinkList)))
		for _, rid := range v.LinkList {
			buf = encodeRID(buf, rid)
		}
		return buf, nil
	case TypeLinkMap:
		buf = wire.PutVarint(buf, int64(len(v.LinkMap)))
		for k, rid := range v.LinkMap {
			buf = encodeVarString(buf, k)
			buf = encodeRID(buf, rid)
		}
		return buf, nil
	case TypeEmbedded:
		sub, err := Encode(v.Embedded, nil)
		if err != nil {
			return nil, err
		}
		return append(buf, sub...), nil
	case TypeEmbeddedList, TypeEmbeddedSet:
		buf = wire.PutVarint(buf, int64(len(v.List)))
		for _, elem := range v.List {
			buf = append(buf, byte(elem.Kind))
			var err error
			buf, err = encodeValueBody(buf, elem)
			if err != nil {
				return nil, err
			}
		}
		return buf, nil
	case TypeEmbeddedMap:
		buf = wire.PutVarint(buf, int64(len(v.Map)))
		for k, elem := range v.Map {
			buf = encodeVarString(buf, k)
			buf = append(buf, byte(elem.Kind))
			var err error
			buf, err = encodeValueBody(buf, elem)
			if err != nil {
				return nil, err
			}
		}
		return buf, nil
	default:
		return nil, fmt.Errorf("record: unknown type code %d", v.Kind)
	}
}

func decodeValueBody(b []byte, kind TypeCode, schema *Schema) (Value, []byte, error) {
	switch kind {
	case TypeBoolean:
		x, rest, err := wire.Bool(b)
		return Value{Kind: kind, Bool: x}, rest, err
	case TypeInt8:
		x, rest, err := wire.Varint(b)
		return Value{Kind: kind, Int8: int8(x)}, rest, err
	case TypeInt16:
		x, rest, err := wire.Varint(b)
		return Value{Kind: kind, Int16: int16(x)}, rest, err
	case TypeInt32:
		x, rest, err := wire.Varint(b)
		return Value{Kind: kind, Int32: int32(x)}, rest, err
	case TypeInt64:
		x, rest, err := wire.Varint(b)
		return Value{Kind: kind, Int64: x}, rest, err
	case TypeFloat:
		x, rest, err := wire.Float32(b)
		return Value{Kind: kind, Float32: x}, rest, err
	case TypeDouble:
		x, rest, err := wire.Float64(b)
		return Value{Kind: kind, Float64: x}, rest, err
	case TypeDateTime:
		x, rest, err := wire.Varint(b)
		return Value{Kind: kind, DateTime: x}, rest, err
	case TypeDate:
		x, rest, err := wire.Varint(b)
		return Value{Kind: kind, Date: x / 86400000}, rest, err
	case TypeString:
		s, rest, err := decodeVarString(b)
		return Value{Kind: kind, String: s}, rest, err
	case TypeBinary:
		raw, rest, err := decodeVarBytes(b)
		return Value{Kind: kind, Bytes: raw}, rest, err
	case TypeDecimal:
		scale, rest, err := wire.Varint(b)
		if err != nil {
			return Value{}, b, err
		}
		unscaled, rest2, err := decodeVarBytes(rest)
		if err != nil {
			return Value{}, b, err
		}
		return Value{Kind: kind, Decimal: Decimal{Scale: int32(scale), Unscaled: unscaled}}, rest2, nil
	case TypeLink:
		rid, rest, err := decodeRID(b)
		return Value{Kind: kind, Link: rid}, rest, err
	case TypeLinkList, TypeLinkSet:
		n, rest, err := wire.Varint(b)
		if err != nil {
			return Value{}, b, err
		}
		list := make([]RID, 0, n)
		for i := int64(0); i < n; i++ {
			rid, r2, err := decodeRID(rest)
			if err != nil {
				return Value{}, b, err
			}
			list = append(list, rid)
			rest = r2
		}
		return Value{Kind: kind, LinkList: list}, rest, nil
	case TypeLinkMap:
		n, rest, err := wire.Varint(b)
		if err != nil {
			return Value{}, b, err
		}
		m := make(map[string]RID, n)
		for i := int64(0); i < n; i++ {
			k, r2, err := decodeVarString(rest)
			if err != nil {
				return Value{}, b, err
			}
			rid, r3, err := decodeRID(r2)
			if err != nil {
				return Value{}, b, err
			}
			m[k] = rid
			rest = r3
		}
		return Value{Kind: kind, LinkMap: m}, rest, nil
	case TypeEmbedded:
		doc, rest, err := Decode(b, schema)
		if err != nil {
			return Value{}, b, err
		}
		return Value{Kind: kind, Embedded: doc}, rest, nil
	case TypeEmbeddedList, TypeEmbeddedSet:
		n, rest, err := wire.Varint(b)
		if err != nil {
			return Value{}, b, err
		}
		list := make([]Value, 0, n)
		for i := int64(0); i < n; i++ {
			elemKind, r2, err := wire.Int8(rest)
			if err != nil {
				return Value{}, b, err
			}
			elem, r3, err := decodeValueBody(r2, TypeCode(byte(elemKind)), schema)
			if err != nil {
				return Value{}, b, err
			}
			list = append(list, elem)
			rest = r3
		}
		return Value{Kind: kind, List: list}, rest, nil
	case TypeEmbeddedMap:
		n, rest, err := wire.Varint(b)
		if err != nil {
			return Value{}, b, err
		}
		m := make(map[string]Value, n)
		for i := int64(0); i < n; i++ {
			k, r2, err := decodeVarString(rest)
			if err != nil {
				return Value{}, b, err
			}
			elemKind, r3, err := wire.Int8(r2)
			if err != nil {
				return Value{}, b, err
			}
			elem, r4, err := decodeValueBody(r3, TypeCode(byte(elemKind)), schema)
			if err != nil {
				return Value{}, b, err
			}
			m[k] = elem
			rest = r4
		}
		return Value{Kind: kind, Map: m}, rest, nil
	default:
		return Value{}, b, fmt.Errorf("%w: unknown type code %d", orienterr.ErrMalformedResponse, kind)
	}
}

func encodeRID(buf []byte, rid RID) []byte {
	buf = wire.PutVarint(buf, int64(rid.Cluster))
	return wire.PutVarint(buf, rid.Position)
}

func decodeRID(b []byte) (RID, []byte, error) {
	cluster, rest, err := wire.Varint(b)
	if err != nil {
		return RID{}, b, err
	}
	position, rest2, err := wire.Varint(rest)
	if err != nil {
		return RID{}, b, err
	}
	return RID{Cluster: int16(cluster), Position: position}, rest2, nil
}

func encodeVarString(buf []byte, s string) []byte {
	buf = wire.PutVarint(buf, int64(len(s)))
	return append(buf, []byte(s)...)
}

func decodeVarString(b []byte) (string, []byte, error) {
	n, rest, err := wire.Varint(b)
	if err != nil {
		return "", b, err
	}
	if n < 0 || int64(len(rest)) < n {
		return "", b, wire.ErrNeedMore
	}
	return string(rest[:n]), rest[n:], nil
}

func encodeVarBytes(buf []byte, v []byte) []byte {
	buf = wire.PutVarint(buf, int64(len(v)))
	return append(buf, v...)
}

func decodeVarBytes(b []byte) ([]byte, []byte, error) {
	n, rest, err := wire.Varint(b)
	if err != nil {
		return nil, b, err
	}
	if n < 0 || int64(len(rest)) < n {
		return nil, b, wire.ErrNeedMore
	}
	out := make([]byte, n)
	copy(out, rest[:n])
	return out, rest[n:], nil
}
