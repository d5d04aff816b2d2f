package query

import "context"

// Page is one page of results plus the numbers a client needs to walk the rest.
type Page struct {
	Items       []map[string]any `json:"items"`
	CurrentPage int              `json:"current_page"`
	PerPage     int              `json:"per_page"`
	Total       int64            `json:"total"`
	LastPage    int              `json:"last_page"`
}

// NewPage builds a Page. LastPage is never below 1, even for an empty result.
func NewPage(items []map[string]any, total int64, perPage, page int) *Page {
	if items == nil {
		items = []map[string]any{}
	}
	if page < 1 {
		page = 1
	}
	last := 1
	if perPage > 0 && total > 0 {
		last = int((total + int64(perPage) - 1) / int64(perPage))
	}
	return &Page{Items: items, CurrentPage: page, PerPage: perPage, Total: total, LastPage: last}
}

// Result holds either the full row list or a single page.
type Result struct {
	Rows []map[string]any
	Page *Page
}

func (r *Result) Paginated() bool { return r.Page != nil }

// GetOrPaginate fetches one page when perPage is positive, and every row otherwise.
func GetOrPaginate(ctx context.Context, ex Executor, perPage, page int) (*Result, error) {
	if perPage > 0 {
		if page < 1 {
			page = 1
		}
		p, err := ex.Paginate(ctx, perPage, page)
		if err != nil {
			return nil, err
		}
		return &Result{Page: p}, nil
	}
	rows, err := ex.Get(ctx)
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []map[string]any{}
	}
	return &Result{Rows: rows}, nil
}
