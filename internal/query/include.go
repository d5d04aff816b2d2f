package query

import "library-backend/internal/metadata"

// ResolveIncludes keeps the names that are relations of schema, in request
// order and without duplicates. Unknown names are ignored.
func ResolveIncludes(qc *Context, names []string, schema *metadata.Entity) []string {
	if !qc.IsRoot() {
		return nil
	}
	var out []string
	seen := make(map[string]bool)
	for _, name := range names {
		if seen[name] || schema.GetRelation(name) == nil {
			continue
		}
		seen[name] = true
		out = append(out, name)
	}
	return out
}
