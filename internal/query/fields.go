package query

import "library-backend/internal/metadata"

// ResolveFields computes the projection for a select request.
//
// The result is nil when no restriction applies: b is not the root query or
// nothing was requested. Otherwise it holds the primary key first, then the
// requested columns the schema knows about in request order, then the foreign
// keys of included belongs_to relations that were not already present. An
// empty intersection yields the primary key alone.
func ResolveFields(qc *Context, requested []string, schema *metadata.Entity, includes []string) []string {
	if !qc.IsRoot() || len(requested) == 0 {
		return nil
	}

	pk := schema.PrimaryKey.Field
	cols := []string{pk}
	seen := map[string]bool{pk: true}

	picked := false
	for _, name := range requested {
		if !schema.IsColumn(name) {
			continue
		}
		picked = true
		if !seen[name] {
			cols = append(cols, name)
			seen[name] = true
		}
	}
	if !picked {
		return []string{pk}
	}

	for _, name := range includes {
		rel := schema.GetRelation(name)
		if rel == nil || !rel.IsBelongsTo() || seen[rel.ForeignKey] {
			continue
		}
		cols = append(cols, rel.ForeignKey)
		seen[rel.ForeignKey] = true
	}
	return cols
}
