package query

import (
	"net/url"
	"sort"
	"strconv"
	"strings"
)

// FilterCondition is one operator applied to a field, as written in the query string.
type FilterCondition struct {
	Operator string
	Value    string
	Values   []string
	List     bool // the value was given in list form: filters[f][] or filters[f][op][]
}

type FieldFilter struct {
	Field      string
	Conditions []FilterCondition
}

type OrderClause struct {
	Field string
	Dir   Direction
}

// Request is the parsed query-string vocabulary of a list or show request.
type Request struct {
	Filters []FieldFilter
	Select  []string
	Sort    []OrderClause
	Include []string
	Page    int
	PerPage int
}

// ParseQuery parses a raw query string. Malformed pairs are skipped.
func ParseQuery(raw string) *Request {
	values, _ := url.ParseQuery(raw)
	return Parse(values)
}

// Parse reads filters, select, sort, include, page and perPage from values.
// Nothing here returns an error: unknown keys and malformed filter keys are dropped.
func Parse(values url.Values) *Request {
	req := &Request{Page: 1}

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	byField := make(map[string]*FieldFilter)
	for _, key := range keys {
		vals := values[key]
		switch key {
		case "select":
			req.Select = SplitList(last(vals))
			continue
		case "sort":
			req.Sort = ParseSort(last(vals))
			continue
		case "include":
			req.Include = SplitList(last(vals))
			continue
		case "page":
			if n, err := strconv.Atoi(strings.TrimSpace(last(vals))); err == nil && n > 0 {
				req.Page = n
			}
			continue
		}

		if !strings.HasPrefix(key, "filters[") {
			continue
		}
		field, segs, ok := parseFilterKey(key)
		if !ok {
			continue
		}
		cond, ok := buildCondition(segs, vals)
		if !ok {
			continue
		}
		ff := byField[field]
		if ff == nil {
			ff = &FieldFilter{Field: field}
			byField[field] = ff
		}
		ff.Conditions = append(ff.Conditions, cond)
	}

	fields := make([]string, 0, len(byField))
	for f := range byField {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	for _, f := range fields {
		req.Filters = append(req.Filters, *byField[f])
	}

	req.PerPage = parsePerPage(values)
	return req
}

// parsePerPage accepts perPage and its per_page alias; perPage wins.
func parsePerPage(values url.Values) int {
	for _, key := range []string{"perPage", "per_page"} {
		raw, ok := values[key]
		if !ok {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(last(raw)))
		if err != nil || n < 0 {
			return 0
		}
		return n
	}
	return 0
}

// parseFilterKey splits "filters[name][like]" into "name" and ["like"].
func parseFilterKey(key string) (string, []string, bool) {
	rest := strings.TrimPrefix(key, "filters")
	var segs []string
	for rest != "" {
		if rest[0] != '[' {
			return "", nil, false
		}
		end := strings.IndexByte(rest, ']')
		if end < 0 {
			return "", nil, false
		}
		segs = append(segs, rest[1:end])
		rest = rest[end+1:]
	}
	if len(segs) == 0 || len(segs) > 3 || segs[0] == "" {
		return "", nil, false
	}
	return segs[0], segs[1:], true
}

func buildCondition(segs []string, vals []string) (FilterCondition, bool) {
	switch len(segs) {
	case 0:
		// filters[f]=v
		return FilterCondition{Operator: "eq", Value: last(vals)}, true
	case 1:
		if segs[0] == "" {
			// filters[f][]=a&filters[f][]=b
			return FilterCondition{Operator: "in", Values: vals, List: true}, true
		}
		op := segs[0]
		if len(vals) > 1 && isListOperator(op) {
			return FilterCondition{Operator: op, Values: vals, List: true}, true
		}
		return FilterCondition{Operator: op, Value: last(vals)}, true
	case 2:
		if segs[0] == "" || segs[1] != "" {
			return FilterCondition{}, false
		}
		return FilterCondition{Operator: segs[0], Values: vals, List: true}, true
	}
	return FilterCondition{}, false
}

// SplitList splits a comma separated list, trimming blanks and dropping empty items.
func SplitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func last(vals []string) string {
	if len(vals) == 0 {
		return ""
	}
	return vals[len(vals)-1]
}
