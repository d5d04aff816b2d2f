package metadata

import "fmt"

type EnumOption struct {
	Value any    `json:"value"`
	Label string `json:"label"`
}

// Enum is a closed set of stored values with human readable labels.
type Enum struct {
	Name    string       `json:"name"`
	Options []EnumOption `json:"options"`
}

// Contains reports whether v matches one of the enum values.
// Values are compared by their string form so 2, int64(2) and "2" all match.
func (e *Enum) Contains(v any) bool {
	_, ok := e.Label(v)
	return ok
}

// Label returns the label of the option matching v.
func (e *Enum) Label(v any) (string, bool) {
	if v == nil {
		return "", false
	}
	key := enumKey(v)
	for _, o := range e.Options {
		if enumKey(o.Value) == key {
			return o.Label, true
		}
	}
	return "", false
}

// Option returns the stored value matching v in its declared type.
func (e *Enum) Option(v any) (any, bool) {
	key := enumKey(v)
	for _, o := range e.Options {
		if enumKey(o.Value) == key {
			return o.Value, true
		}
	}
	return nil, false
}

func enumKey(v any) string {
	switch n := v.(type) {
	case float64:
		if n == float64(int64(n)) {
			return fmt.Sprintf("%d", int64(n))
		}
	case []byte:
		return string(n)
	}
	return fmt.Sprintf("%v", v)
}

var (
	Nationalities = &Enum{
		Name: "nationalities",
		Options: []EnumOption{
			{Value: "V", Label: "Venezuelan"},
			{Value: "E", Label: "Foreign"},
		},
	}

	DocumentTypes = &Enum{
		Name: "document-types",
		Options: []EnumOption{
			{Value: 1, Label: "Book"},
			{Value: 2, Label: "Magazine"},
			{Value: 3, Label: "Novel"},
		},
	}

	AvailabilityStatuses = &Enum{
		Name: "availability-statuses",
		Options: []EnumOption{
			{Value: "D", Label: "Available"},
			{Value: "P", Label: "Loaned"},
			{Value: "R", Label: "Under repair"},
			{Value: "X", Label: "Lost"},
			{Value: "T", Label: "Overdue"},
		},
	}
)

// Enums lists every enum exposed by the API, keyed by its URL name.
func Enums() map[string]*Enum {
	return map[string]*Enum{
		Nationalities.Name:        Nationalities,
		DocumentTypes.Name:        DocumentTypes,
		AvailabilityStatuses.Name: AvailabilityStatuses,
	}
}
