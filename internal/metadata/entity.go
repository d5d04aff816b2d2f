package metadata

type Entity struct {
	Name       string               `json:"name"`
	Table      string               `json:"table"`
	Singular   string               `json:"singular"` // permission prefix, e.g. "author" in "author.store"
	PrimaryKey PrimaryKey           `json:"primary_key"`
	Fields     []Field              `json:"fields"`
	Timestamps []string             `json:"timestamps,omitempty"`
	Relations  map[string]*Relation `json:"relations,omitempty"`
	Rules      []*Rule              `json:"rules,omitempty"`

	// RestrictDelete names relations that must be empty before a record can be deleted.
	RestrictDelete []string `json:"restrict_delete,omitempty"`

	// GuardReads makes list and show require the "<singular>.index" and
	// "<singular>.show" permissions.
	GuardReads bool `json:"guard_reads,omitempty"`
}

type PrimaryKey struct {
	Field string `json:"field"`
	Type  string `json:"type"` // int, bigint, uuid, string

	// Assigned keys are supplied by the client on create and never change.
	Assigned bool `json:"assigned,omitempty"`
}

// GetField returns a pointer to the assignable field with the given name, or nil.
func (e *Entity) GetField(name string) *Field {
	for i := range e.Fields {
		if e.Fields[i].Name == name {
			return &e.Fields[i]
		}
	}
	return nil
}

// HasField returns true if name is one of the assignable fields.
func (e *Entity) HasField(name string) bool {
	return e.GetField(name) != nil
}

// FieldNames returns the assignable field names in declaration order.
func (e *Entity) FieldNames() []string {
	names := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		names[i] = f.Name
	}
	return names
}

// IsTimestamp reports whether name is one of the entity's timestamp columns.
func (e *Entity) IsTimestamp(name string) bool {
	for _, ts := range e.Timestamps {
		if ts == name {
			return true
		}
	}
	return false
}

// IsColumn reports whether name is a declared column: the primary key,
// an assignable field or a timestamp. Filter, sort and select whitelists
// are all derived from this set.
func (e *Entity) IsColumn(name string) bool {
	return name == e.PrimaryKey.Field || e.HasField(name) || e.IsTimestamp(name)
}

// Columns returns every declared column: primary key, fields, timestamps.
func (e *Entity) Columns() []string {
	cols := make([]string, 0, 1+len(e.Fields)+len(e.Timestamps))
	cols = append(cols, e.PrimaryKey.Field)
	cols = append(cols, e.FieldNames()...)
	cols = append(cols, e.Timestamps...)
	return cols
}

// ColumnType returns the metadata type of a declared column, or "" if unknown.
func (e *Entity) ColumnType(name string) string {
	if name == e.PrimaryKey.Field {
		return e.PrimaryKey.Type
	}
	if f := e.GetField(name); f != nil {
		return f.Type
	}
	if e.IsTimestamp(name) {
		return "timestamp"
	}
	return ""
}

// GetRelation returns the relation declared under name, or nil.
func (e *Entity) GetRelation(name string) *Relation {
	if e.Relations == nil {
		return nil
	}
	return e.Relations[name]
}
