package record

// PropertyMeta is what the schema remembers about a global property: the
// field name it stands in for, and the declared type used when the field
// table entry carries no type code of its own. In this protocol the field
// table always carries an explicit type code, but a class's declared type
// is still useful to callers building new documents against a schema.
type PropertyMeta struct {
	Name string
	Type TypeCode
}

// Schema is the cached mapping from global property id to (name, type). It
// is created once, after authentication against a database session, from
// the globalProperties list of the bootstrap record at #0:1, and is
// replaced wholesale only by an explicit refetch — never mutated field by
// field.
type Schema struct {
	properties map[int32]PropertyMeta
	byName     map[string]int32
}

// NewSchema builds a Schema from a global-id -> property mapping.
func NewSchema(properties map[int32]PropertyMeta) *Schema {
	if properties == nil {
		properties = map[int32]PropertyMeta{}
	}
	byName := make(map[string]int32, len(properties))
	for id, p := range properties {
		byName[p.Name] = id
	}
	return &Schema{properties: properties, byName: byName}
}

// Lookup resolves a global property id to its name and type. ok is false
// when the id is not present, which the caller turns into
// orienterr.ErrUnknownPropertyID.
func (s *Schema) Lookup(id int32) (PropertyMeta, bool) {
	if s == nil {
		return PropertyMeta{}, false
	}
	p, ok := s.properties[id]
	return p, ok
}

// LookupByName resolves a field name to its global property id, for the
// encoder's decision between a named field-table entry and a
// global-property reference.
func (s *Schema) LookupByName(name string) (int32, bool) {
	if s == nil {
		return 0, false
	}
	id, ok := s.byName[name]
	return id, ok
}

// Len reports how many global properties the schema knows about.
func (s *Schema) Len() int {
	if s == nil {
		return 0
	}
	return len(s.properties)
}
