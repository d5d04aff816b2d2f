package query

import (
	"strconv"
	"strings"

	"library-backend/internal/metadata"
)

var comparisonOperators = map[string]Operator{
	"eq":  OpEq,
	"=":   OpEq,
	"neq": OpNeq,
	"!=":  OpNeq,
	"gt":  OpGt,
	">":   OpGt,
	"lt":  OpLt,
	"<":   OpLt,
	"gte": OpGte,
	">=":  OpGte,
	"lte": OpLte,
	"<=":  OpLte,
}

const (
	opLike    = "like"
	opNotLike = "not_like"
	opIn      = "in"
	opNotIn   = "not_in"
)

func isListOperator(op string) bool {
	switch strings.ToLower(strings.TrimSpace(op)) {
	case opIn, opNotIn:
		return true
	}
	return false
}

// ApplyFilters adds one predicate per recognized condition to b.
// It does nothing unless b is the root query. Fields outside the schema's
// columns, unknown operators and values that do not fit the column type
// are dropped without error.
func ApplyFilters(b Builder, qc *Context, filters []FieldFilter, schema *metadata.Entity) {
	if !qc.IsRoot() || len(filters) == 0 {
		return
	}
	for _, ff := range filters {
		if !schema.IsColumn(ff.Field) {
			continue
		}
		for _, cond := range ff.Conditions {
			applyCondition(b, schema, ff.Field, cond)
		}
	}
}

func applyCondition(b Builder, schema *metadata.Entity, field string, cond FilterCondition) {
	token := strings.ToLower(strings.TrimSpace(cond.Operator))

	switch token {
	case opIn, opNotIn:
		values := coerceList(schema, field, cond.list())
		if len(values) == 0 {
			return
		}
		if token == opIn {
			b.WhereIn(field, values)
		} else {
			b.WhereNotIn(field, values)
		}
		return
	case opLike, opNotLike:
		if cond.List {
			return
		}
		op := OpLike
		if token == opNotLike {
			op = OpNotLike
		}
		b.Where(field, op, "%"+cond.Value+"%")
		return
	}

	op, ok := comparisonOperators[token]
	if !ok || cond.List {
		return
	}
	v, ok := coerceValue(schema.ColumnType(field), cond.Value)
	if !ok {
		return
	}
	b.Where(field, op, v)
}

func (c FilterCondition) list() []string {
	if !c.List {
		return SplitList(c.Value)
	}
	var out []string
	for _, v := range c.Values {
		if s := strings.TrimSpace(v); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func coerceList(schema *metadata.Entity, field string, raw []string) []any {
	fieldType := schema.ColumnType(field)
	values := make([]any, 0, len(raw))
	for _, s := range raw {
		if v, ok := coerceValue(fieldType, s); ok {
			values = append(values, v)
		}
	}
	return values
}

// coerceValue converts a query-string value to the Go type of the column.
func coerceValue(fieldType, s string) (any, bool) {
	s = strings.TrimSpace(s)
	switch fieldType {
	case "int", "bigint":
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, false
		}
		return n, true
	case "decimal":
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, false
		}
		return f, true
	case "boolean":
		b, err := strconv.ParseBool(s)
		if err != nil {
			return nil, false
		}
		return b, true
	}
	return s, true
}
