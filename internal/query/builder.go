package query

import "context"

type Operator string

const (
	OpEq      Operator = "="
	OpNeq     Operator = "!="
	OpGt      Operator = ">"
	OpLt      Operator = "<"
	OpGte     Operator = ">="
	OpLte     Operator = "<="
	OpLike    Operator = "LIKE"
	OpNotLike Operator = "NOT LIKE"
)

type Direction string

const (
	Asc  Direction = "ASC"
	Desc Direction = "DESC"
)

// Builder is the mutable query under construction. Implementations record
// clauses; nothing touches the database until an Executor method runs.
type Builder interface {
	// Table returns the table the builder currently targets.
	Table() string
	Where(field string, op Operator, value any)
	WhereIn(field string, values []any)
	WhereNotIn(field string, values []any)
	OrderBy(field string, dir Direction)
	// Select restricts the projection. Calling it again replaces the previous list.
	Select(columns ...string)
	// With requests eager loading of the named relation.
	With(relation string)
}

// Executor runs a composed query.
type Executor interface {
	Get(ctx context.Context) ([]map[string]any, error)
	Paginate(ctx context.Context, perPage, page int) (*Page, error)
}
