package metadata

type Field struct {
	Name       string `json:"name"`
	Type       string `json:"type"` // string, text, int, bigint, decimal, boolean, date
	Required   bool   `json:"required,omitempty"`
	Nullable   bool   `json:"nullable,omitempty"`
	Unique     bool   `json:"unique,omitempty"`
	MinLength  int    `json:"min_length,omitempty"`
	MaxLength  int    `json:"max_length,omitempty"`
	Enum       *Enum  `json:"enum,omitempty"`
	References string `json:"references,omitempty"` // entity name the value must exist in
}

// IsNumeric returns true for integer and decimal fields.
func (f Field) IsNumeric() bool {
	switch f.Type {
	case "int", "bigint", "decimal":
		return true
	}
	return false
}

// IsText returns true for string-valued fields.
func (f Field) IsText() bool {
	return f.Type == "string" || f.Type == "text"
}
