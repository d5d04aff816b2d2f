package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"library-backend/internal/metadata"
	"library-backend/internal/query"
)

// ErrQueryExecuted is returned when a Query is executed a second time.
var ErrQueryExecuted = errors.New("query already executed")

type whereKind int

const (
	whereBasic whereKind = iota
	whereIn
	whereNotIn
)

type whereClause struct {
	kind   whereKind
	field  string
	op     query.Operator
	value  any
	values []any
}

// Query is a single-use SELECT against one table. It implements
// query.Builder for composition and query.Executor for execution.
//
// Scopes registered with Scope run against the query right before it
// executes, and again against every eager-load subquery it issues.
type Query struct {
	q       Querier
	dialect Dialect
	reg     *metadata.Registry
	entity  *metadata.Entity // nil for join tables
	table   string

	columns []string
	wheres  []whereClause
	orders  []query.OrderClause
	with    []string
	scopes  []func(query.Builder)
	limit   int
	offset  int

	executed bool
}

// NewQuery starts a query over entity's table.
func NewQuery(q Querier, d Dialect, reg *metadata.Registry, entity *metadata.Entity) *Query {
	return &Query{q: q, dialect: d, reg: reg, entity: entity, table: entity.Table}
}

// Query starts a query over entity's table on the store's connection.
func (s *Store) Query(reg *metadata.Registry, entity *metadata.Entity) *Query {
	return NewQuery(s.DB, s.Dialect, reg, entity)
}

func (q *Query) Table() string { return q.table }

func (q *Query) Where(field string, op query.Operator, value any) {
	if q.executed {
		return
	}
	q.wheres = append(q.wheres, whereClause{kind: whereBasic, field: field, op: op, value: value})
}

func (q *Query) WhereIn(field string, values []any) {
	if q.executed {
		return
	}
	q.wheres = append(q.wheres, whereClause{kind: whereIn, field: field, values: values})
}

func (q *Query) WhereNotIn(field string, values []any) {
	if q.executed {
		return
	}
	q.wheres = append(q.wheres, whereClause{kind: whereNotIn, field: field, values: values})
}

func (q *Query) OrderBy(field string, dir query.Direction) {
	if q.executed {
		return
	}
	q.orders = append(q.orders, query.OrderClause{Field: field, Dir: dir})
}

func (q *Query) Select(columns ...string) {
	if q.executed {
		return
	}
	q.columns = append([]string(nil), columns...)
}

func (q *Query) With(relation string) {
	if q.executed {
		return
	}
	for _, name := range q.with {
		if name == relation {
			return
		}
	}
	q.with = append(q.with, relation)
}

// Scope registers fn to run against this query and its eager-load subqueries at execution time.
func (q *Query) Scope(fn func(query.Builder)) {
	if q.executed || fn == nil {
		return
	}
	q.scopes = append(q.scopes, fn)
}

// ToSQL renders the SELECT statement and its parameters.
func (q *Query) ToSQL() (string, []any) {
	pb := q.dialect.NewParamBuilder()

	var b strings.Builder
	fmt.Fprintf(&b, "SELECT %s FROM %s", strings.Join(q.selectColumns(), ", "), q.table)
	b.WriteString(q.whereSQL(pb))
	if len(q.orders) > 0 {
		parts := make([]string, len(q.orders))
		for i, o := range q.orders {
			parts[i] = fmt.Sprintf("%s %s", o.Field, o.Dir)
		}
		b.WriteString(" ORDER BY " + strings.Join(parts, ", "))
	}
	if q.limit > 0 {
		fmt.Fprintf(&b, " LIMIT %s OFFSET %s", pb.Add(q.limit), pb.Add(q.offset))
	}
	return b.String(), pb.Params()
}

// CountSQL renders a COUNT(*) over the same WHERE clause.
func (q *Query) CountSQL() (string, []any) {
	pb := q.dialect.NewParamBuilder()
	sqlStr := fmt.Sprintf("SELECT COUNT(*) AS count FROM %s%s", q.table, q.whereSQL(pb))
	return sqlStr, pb.Params()
}

func (q *Query) selectColumns() []string {
	if len(q.columns) > 0 {
		return q.columns
	}
	if q.entity != nil {
		return q.entity.Columns()
	}
	return []string{"*"}
}

func (q *Query) whereSQL(pb ParamBuilder) string {
	if len(q.wheres) == 0 {
		return ""
	}
	parts := make([]string, 0, len(q.wheres))
	for _, w := range q.wheres {
		switch w.kind {
		case whereIn:
			parts = append(parts, q.dialect.InExpr(w.field, pb, w.values))
		case whereNotIn:
			parts = append(parts, q.dialect.NotInExpr(w.field, pb, w.values))
		default:
			switch w.op {
			case query.OpLike:
				parts = append(parts, q.dialect.LikeExpr(w.field, false, pb.Add(w.value)))
			case query.OpNotLike:
				parts = append(parts, q.dialect.LikeExpr(w.field, true, pb.Add(w.value)))
			default:
				parts = append(parts, fmt.Sprintf("%s %s %s", w.field, w.op, pb.Add(w.value)))
			}
		}
	}
	return " WHERE " + strings.Join(parts, " AND ")
}

// prepare runs the registered scopes once and seals the query.
func (q *Query) prepare() error {
	if q.executed {
		return ErrQueryExecuted
	}
	for _, scope := range q.scopes {
		scope(q)
	}
	q.executed = true
	return nil
}

// Get returns every matching row with requested relations attached.
func (q *Query) Get(ctx context.Context) ([]map[string]any, error) {
	if err := q.prepare(); err != nil {
		return nil, err
	}
	return q.fetch(ctx)
}

// First returns the first matching row, or ErrNotFound.
func (q *Query) First(ctx context.Context) (map[string]any, error) {
	if err := q.prepare(); err != nil {
		return nil, err
	}
	q.limit, q.offset = 1, 0
	rows, err := q.fetch(ctx)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	return rows[0], nil
}

// Paginate counts the matching rows and returns the requested page.
func (q *Query) Paginate(ctx context.Context, perPage, page int) (*query.Page, error) {
	if perPage <= 0 {
		return nil, fmt.Errorf("paginate %s: per page must be positive, got %d", q.table, perPage)
	}
	if page < 1 {
		page = 1
	}
	if err := q.prepare(); err != nil {
		return nil, err
	}

	countSQL, countParams := q.CountSQL()
	row, err := QueryRow(ctx, q.q, countSQL, countParams...)
	if err != nil {
		return nil, fmt.Errorf("count %s: %w", q.table, err)
	}
	total, ok := ToInt64(row["count"])
	if !ok {
		return nil, fmt.Errorf("count %s: unexpected value %v", q.table, row["count"])
	}

	q.limit, q.offset = perPage, (page-1)*perPage
	rows, err := q.fetch(ctx)
	if err != nil {
		return nil, err
	}
	return query.NewPage(rows, total, perPage, page), nil
}

func (q *Query) fetch(ctx context.Context) ([]map[string]any, error) {
	sqlStr, params := q.ToSQL()
	rows, err := QueryRows(ctx, q.q, sqlStr, params...)
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", q.table, err)
	}
	if rows == nil {
		rows = []map[string]any{}
	}
	if err := q.loadEager(ctx, rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// subquery starts a query for eager loading that inherits this query's scopes.
func (q *Query) subquery(entity *metadata.Entity, table string) *Query {
	return &Query{
		q:       q.q,
		dialect: q.dialect,
		reg:     q.reg,
		entity:  entity,
		table:   table,
		scopes:  append([]func(query.Builder){}, q.scopes...),
	}
}
