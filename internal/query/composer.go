package query

import (
	"errors"
	"fmt"
	"net/url"

	"library-backend/internal/metadata"
)

// ErrUnknownEntity is returned by ComposeFor when the describer has no such entity.
var ErrUnknownEntity = errors.New("unknown entity")

// Applier is one query feature. Apply must leave b untouched when qc is not the root.
type Applier interface {
	Name() string
	Apply(b Builder, qc *Context, schema *metadata.Entity, req *Request)
}

type IncludeApplier struct{}

func (IncludeApplier) Name() string { return "include" }

func (IncludeApplier) Apply(b Builder, qc *Context, schema *metadata.Entity, req *Request) {
	qc.Included = ResolveIncludes(qc, req.Include, schema)
	for _, name := range qc.Included {
		b.With(name)
	}
}

type FilterApplier struct{}

func (FilterApplier) Name() string { return "filter" }

func (FilterApplier) Apply(b Builder, qc *Context, schema *metadata.Entity, req *Request) {
	ApplyFilters(b, qc, req.Filters, schema)
}

type SelectApplier struct{}

func (SelectApplier) Name() string { return "select" }

func (SelectApplier) Apply(b Builder, qc *Context, schema *metadata.Entity, req *Request) {
	if cols := ResolveFields(qc, req.Select, schema, qc.Included); len(cols) > 0 {
		b.Select(cols...)
	}
}

type SortApplier struct{}

func (SortApplier) Name() string { return "sort" }

func (SortApplier) Apply(b Builder, qc *Context, schema *metadata.Entity, req *Request) {
	for _, c := range ResolveSort(qc, req.Sort, schema) {
		b.OrderBy(c.Field, c.Dir)
	}
}

// DefaultAppliers returns the features in composition order. Include runs
// before select so the projection can keep the foreign keys includes need.
func DefaultAppliers() []Applier {
	return []Applier{IncludeApplier{}, FilterApplier{}, SelectApplier{}, SortApplier{}}
}

// Composer applies a fixed, ordered list of features to a builder.
// It holds no per-request state and is safe for concurrent use.
type Composer struct {
	appliers []Applier
}

// NewComposer returns a composer running appliers in the given order,
// or DefaultAppliers when none are given.
func NewComposer(appliers ...Applier) *Composer {
	if len(appliers) == 0 {
		appliers = DefaultAppliers()
	}
	return &Composer{appliers: appliers}
}

// Names returns the applier names in composition order.
func (c *Composer) Names() []string {
	names := make([]string, len(c.appliers))
	for i, a := range c.appliers {
		names[i] = a.Name()
	}
	return names
}

// Only returns a composer running the appliers of c named in names, in c's order.
func (c *Composer) Only(names ...string) *Composer {
	keep := make(map[string]bool, len(names))
	for _, n := range names {
		keep[n] = true
	}
	appliers := make([]Applier, 0, len(names))
	for _, a := range c.appliers {
		if keep[a.Name()] {
			appliers = append(appliers, a)
		}
	}
	return &Composer{appliers: appliers}
}

// Compose runs every applier against b and returns b.
func (c *Composer) Compose(b Builder, schema *metadata.Entity, req *Request) Builder {
	if b == nil || schema == nil || req == nil {
		return b
	}
	qc := NewContext(schema, b)
	for _, a := range c.appliers {
		a.Apply(b, qc, schema, req)
	}
	return b
}

// Scope returns Compose bound to schema and req, for builders that run
// scopes at execution time. Each run gets a fresh Context from the builder
// it is given, so a scope propagated to a subquery does nothing there.
func (c *Composer) Scope(schema *metadata.Entity, req *Request) func(Builder) {
	return func(b Builder) {
		c.Compose(b, schema, req)
	}
}

// Describer looks up entity descriptors by name.
type Describer interface {
	Describe(name string) (*metadata.Entity, bool)
}

// ComposeFor parses params, resolves the entity and composes b.
func (c *Composer) ComposeFor(b Builder, d Describer, entityName string, params url.Values) (*Request, error) {
	schema, ok := d.Describe(entityName)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownEntity, entityName)
	}
	req := Parse(params)
	c.Compose(b, schema, req)
	return req, nil
}
