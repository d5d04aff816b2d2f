package query

import (
	"strings"

	"library-backend/internal/metadata"
)

// ParseSort parses "name,-created_at" into ordered clauses.
// A leading "-" means descending.
func ParseSort(s string) []OrderClause {
	var clauses []OrderClause
	for _, part := range SplitList(s) {
		dir := Asc
		if strings.HasPrefix(part, "-") {
			dir = Desc
			part = strings.TrimSpace(part[1:])
		}
		if part == "" {
			continue
		}
		clauses = append(clauses, OrderClause{Field: part, Dir: dir})
	}
	return clauses
}

// ResolveSort keeps the clauses whose field is a column of schema, in request order.
// The first clause for a field wins. It returns nil for non-root builders.
func ResolveSort(qc *Context, clauses []OrderClause, schema *metadata.Entity) []OrderClause {
	if !qc.IsRoot() {
		return nil
	}
	var out []OrderClause
	seen := make(map[string]bool)
	for _, c := range clauses {
		if seen[c.Field] || !schema.IsColumn(c.Field) {
			continue
		}
		seen[c.Field] = true
		out = append(out, c)
	}
	return out
}
