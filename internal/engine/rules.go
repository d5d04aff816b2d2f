package engine

import (
	"fmt"
	"regexp"
	"time"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"library-backend/internal/metadata"
)

// RuleSet holds the compiled expression rules of every entity. It is built
// once from the registry and only read afterwards.
type RuleSet struct {
	programs map[*metadata.Rule]*vm.Program
}

// CompileRules compiles every expression rule in the registry.
func CompileRules(reg *metadata.Registry) (*RuleSet, error) {
	rs := &RuleSet{programs: make(map[*metadata.Rule]*vm.Program)}
	for _, e := range reg.AllEntities() {
		for _, r := range e.Rules {
			if r.Type != metadata.RuleTypeExpression {
				continue
			}
			prog, err := CompileExpression(r.Expression)
			if err != nil {
				return nil, fmt.Errorf("entity %s: %w", e.Name, err)
			}
			rs.programs[r] = prog
		}
	}
	return rs, nil
}

// Evaluate runs the entity's rules against the merged record.
// Field rules run first; expression rules only run when they pass.
func (rs *RuleSet) Evaluate(entity *metadata.Entity, record, old map[string]any, isCreate bool) []ErrorDetail {
	if len(entity.Rules) == 0 {
		return nil
	}

	action := "update"
	if isCreate {
		action = "create"
	}

	env := map[string]any{
		"record": record,
		"old":    old,
		"action": action,
		"today":  time.Now().Format(dateLayout),
	}

	var errs []ErrorDetail

	// 1. Field rules
	for _, r := range entity.Rules {
		if r.Type != metadata.RuleTypeField {
			continue
		}
		if detail := EvaluateFieldRule(r, record); detail != nil {
			errs = append(errs, *detail)
		}
	}
	if len(errs) > 0 {
		return errs
	}

	// 2. Expression rules
	for _, r := range entity.Rules {
		if r.Type != metadata.RuleTypeExpression {
			continue
		}
		if detail := rs.evaluateExpression(r, env); detail != nil {
			errs = append(errs, *detail)
		}
	}
	return errs
}

func (rs *RuleSet) evaluateExpression(rule *metadata.Rule, env map[string]any) *ErrorDetail {
	prog := rs.programs[rule]
	if prog == nil {
		return &ErrorDetail{Field: rule.Field, Rule: "expression", Message: "rule was not compiled"}
	}
	return EvaluateExpressionRule(rule, prog, env)
}

// EvaluateFieldRule evaluates a single field rule against a record.
// Returns nil if the rule passes, or an ErrorDetail if it fails.
func EvaluateFieldRule(rule *metadata.Rule, record map[string]any) *ErrorDetail {
	fieldName := rule.Field
	val, exists := record[fieldName]
	if !exists || val == nil {
		return nil // absent fields are not checked by field rules (use "required" for that)
	}

	op := rule.Operator
	msg := rule.Message
	if msg == "" {
		msg = fmt.Sprintf("field %s failed %s validation", fieldName, op)
	}

	switch op {
	case "min", "max":
		num, ok := toFloat64(val)
		if !ok {
			return nil
		}
		threshold, ok := toFloat64(rule.Value)
		if !ok {
			return nil
		}
		if (op == "min" && num < threshold) || (op == "max" && num > threshold) {
			return &ErrorDetail{Field: fieldName, Rule: op, Message: msg}
		}

	case "min_length", "max_length":
		s, ok := val.(string)
		if !ok {
			return nil
		}
		threshold, ok := toFloat64(rule.Value)
		if !ok {
			return nil
		}
		n := len([]rune(s))
		if (op == "min_length" && n < int(threshold)) || (op == "max_length" && n > int(threshold)) {
			return &ErrorDetail{Field: fieldName, Rule: op, Message: msg}
		}

	case "pattern":
		s, ok := val.(string)
		if !ok {
			return nil
		}
		pattern, ok := rule.Value.(string)
		if !ok {
			return nil
		}
		matched, err := regexp.MatchString(pattern, s)
		if err != nil || !matched {
			return &ErrorDetail{Field: fieldName, Rule: "pattern", Message: msg}
		}
	}

	return nil
}

// CompileExpression compiles an expression string into an expr-lang program.
func CompileExpression(expression string) (*vm.Program, error) {
	prog, err := expr.Compile(expression, expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("compile expression: %w", err)
	}
	return prog, nil
}

// EvaluateExpressionRule runs a compiled expression rule against env.
// Returns nil if the rule passes (expression is false), or an ErrorDetail if violated (expression is true).
func EvaluateExpressionRule(rule *metadata.Rule, prog *vm.Program, env map[string]any) *ErrorDetail {
	result, err := expr.Run(prog, env)
	if err != nil {
		return &ErrorDetail{Field: rule.Field, Rule: "expression", Message: fmt.Sprintf("rule evaluation error: %v", err)}
	}

	violated, ok := result.(bool)
	if !ok || !violated {
		return nil
	}

	msg := rule.Message
	if msg == "" {
		msg = "Expression rule violated"
	}
	return &ErrorDetail{Field: rule.Field, Rule: "expression", Message: msg}
}

// toFloat64 converts numeric types to float64.
func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	}
	return 0, false
}
