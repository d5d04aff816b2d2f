package query

import "library-backend/internal/metadata"

// Context is the per-composition state shared by the appliers.
//
// RootTable is the table of the entity the request targets. CurrentTable is
// the table of the builder being composed. They differ when scopes attached
// to the root query are re-run against an eager-load subquery, and every
// applier is a no-op in that case.
type Context struct {
	RootTable    string
	CurrentTable string

	// Included holds the relations the include applier accepted, so the
	// select applier can keep the columns they need.
	Included []string
}

func NewContext(schema *metadata.Entity, b Builder) *Context {
	return &Context{RootTable: schema.Table, CurrentTable: b.Table()}
}

// IsRoot reports whether the builder is the root query.
func (c *Context) IsRoot() bool {
	return c != nil && c.CurrentTable != "" && c.CurrentTable == c.RootTable
}
