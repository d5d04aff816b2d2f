package metadata

const (
	RuleTypeField      = "field"
	RuleTypeExpression = "expression"
)

// Rule is a validation rule evaluated before a write.
//
// Field rules compare a single value against an operator (min, max,
// min_length, max_length, pattern). Expression rules are boolean
// expressions over the merged record; a true result means the rule is
// violated.
type Rule struct {
	Type       string `json:"type"`
	Field      string `json:"field,omitempty"`
	Operator   string `json:"operator,omitempty"`
	Value      any    `json:"value,omitempty"`
	Expression string `json:"expression,omitempty"`
	Message    string `json:"message"`
}
