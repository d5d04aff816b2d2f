package query

import (
	"context"
	"fmt"
	"strings"

	"library-backend/internal/metadata"
)

// recorder is a Builder that records every call as a readable string.
type recorder struct {
	table string
	calls []string
}

func newRecorder(table string) *recorder { return &recorder{table: table} }

func (r *recorder) Table() string { return r.table }

func (r *recorder) Where(field string, op Operator, value any) {
	r.calls = append(r.calls, fmt.Sprintf("where %s %s %#v", field, op, value))
}

func (r *recorder) WhereIn(field string, values []any) {
	r.calls = append(r.calls, fmt.Sprintf("whereIn %s %v", field, values))
}

func (r *recorder) WhereNotIn(field string, values []any) {
	r.calls = append(r.calls, fmt.Sprintf("whereNotIn %s %v", field, values))
}

func (r *recorder) OrderBy(field string, dir Direction) {
	r.calls = append(r.calls, fmt.Sprintf("orderBy %s %s", field, dir))
}

func (r *recorder) Select(columns ...string) {
	r.calls = append(r.calls, "select "+strings.Join(columns, ","))
}

func (r *recorder) With(relation string) {
	r.calls = append(r.calls, "with "+relation)
}

type fakeExecutor struct {
	rows      []map[string]any
	getCalls  int
	pageCalls int
	perPage   int
	page      int
	err       error
}

func (f *fakeExecutor) Get(ctx context.Context) ([]map[string]any, error) {
	f.getCalls++
	return f.rows, f.err
}

func (f *fakeExecutor) Paginate(ctx context.Context, perPage, page int) (*Page, error) {
	f.pageCalls++
	f.perPage, f.page = perPage, page
	if f.err != nil {
		return nil, f.err
	}
	return NewPage(f.rows, int64(len(f.rows)), perPage, page), nil
}

func library() *metadata.Registry { return metadata.LibraryRegistry() }

func rootContext(e *metadata.Entity) *Context {
	return &Context{RootTable: e.Table, CurrentTable: e.Table}
}

func childContext(e *metadata.Entity, table string) *Context {
	return &Context{RootTable: e.Table, CurrentTable: table}
}
