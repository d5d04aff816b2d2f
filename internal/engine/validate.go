package engine

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"library-backend/internal/metadata"
	"library-backend/internal/query"
	"library-backend/internal/store"
)

// ValidateFields checks the assignable fields present in body and returns
// their values converted to the column types. On create, required fields
// must be present. Keys that are not assignable fields are ignored.
func ValidateFields(entity *metadata.Entity, body map[string]any, isCreate bool) (map[string]any, []ErrorDetail) {
	fields := make(map[string]any)
	var errs []ErrorDetail

	for i := range entity.Fields {
		f := &entity.Fields[i]
		raw, present := body[f.Name]
		if s, ok := raw.(string); ok && strings.TrimSpace(s) == "" && !f.Required {
			raw = nil
		}

		if !present {
			if isCreate && f.Required {
				errs = append(errs, requiredError(f.Name))
			}
			continue
		}
		if raw == nil {
			if f.Required {
				errs = append(errs, requiredError(f.Name))
				continue
			}
			fields[f.Name] = nil
			continue
		}

		val, detail := coerceField(f, raw)
		if detail != nil {
			errs = append(errs, *detail)
			continue
		}
		fields[f.Name] = val
	}

	return fields, errs
}

func requiredError(field string) ErrorDetail {
	return ErrorDetail{Field: field, Rule: "required", Message: fmt.Sprintf("%s is required", field)}
}

func coerceField(f *metadata.Field, raw any) (any, *ErrorDetail) {
	invalid := func(rule, msg string) (any, *ErrorDetail) {
		return nil, &ErrorDetail{Field: f.Name, Rule: rule, Message: msg}
	}

	var val any
	switch f.Type {
	case "string", "text":
		s, ok := raw.(string)
		if !ok {
			return invalid("type", fmt.Sprintf("%s must be a string", f.Name))
		}
		n := utf8.RuneCountInString(s)
		if f.MinLength > 0 && n < f.MinLength {
			return invalid("min_length", fmt.Sprintf("%s must be at least %d characters", f.Name, f.MinLength))
		}
		if f.MaxLength > 0 && n > f.MaxLength {
			return invalid("max_length", fmt.Sprintf("%s must be at most %d characters", f.Name, f.MaxLength))
		}
		val = s
	case "int", "bigint":
		n, ok := toInteger(raw)
		if !ok {
			return invalid("type", fmt.Sprintf("%s must be an integer", f.Name))
		}
		val = n
	case "decimal":
		n, ok := raw.(float64)
		if !ok {
			return invalid("type", fmt.Sprintf("%s must be a number", f.Name))
		}
		val = n
	case "boolean":
		b, ok := raw.(bool)
		if !ok {
			return invalid("type", fmt.Sprintf("%s must be a boolean", f.Name))
		}
		val = b
	case "date":
		s, ok := raw.(string)
		if !ok {
			return invalid("date", fmt.Sprintf("%s must be a date (YYYY-MM-DD)", f.Name))
		}
		if _, err := time.Parse(dateLayout, s); err != nil {
			return invalid("date", fmt.Sprintf("%s must be a date (YYYY-MM-DD)", f.Name))
		}
		val = s
	default:
		val = raw
	}

	if f.Enum != nil {
		canonical, ok := f.Enum.Option(val)
		if !ok {
			return invalid("enum", fmt.Sprintf("%s must be one of: %s", f.Name, enumValues(f.Enum)))
		}
		if _, isInt := canonical.(int); isInt {
			canonical = int64(canonical.(int))
		}
		val = canonical
	}
	return val, nil
}

func toInteger(raw any) (int64, bool) {
	switch n := raw.(type) {
	case float64:
		if n != float64(int64(n)) {
			return 0, false
		}
		return int64(n), true
	case int64:
		return n, true
	case int:
		return int64(n), true
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64)
		return i, err == nil
	}
	return 0, false
}

func enumValues(e *metadata.Enum) string {
	parts := make([]string, len(e.Options))
	for i, o := range e.Options {
		parts[i] = fmt.Sprintf("%v", o.Value)
	}
	return strings.Join(parts, ", ")
}

// assignKey reads a client-assigned primary key into fields on create. On
// update the key may be repeated but not changed.
func assignKey(entity *metadata.Entity, body map[string]any, existingID any, fields map[string]any) *ErrorDetail {
	pk := entity.PrimaryKey.Field
	raw, present := body[pk]
	if existingID != nil {
		if present && fmt.Sprintf("%v", raw) != fmt.Sprintf("%v", existingID) {
			return &ErrorDetail{Field: pk, Rule: "immutable", Message: fmt.Sprintf("%s cannot be changed", pk)}
		}
		return nil
	}

	s, ok := raw.(string)
	if !present || raw == nil || (ok && strings.TrimSpace(s) == "") {
		d := requiredError(pk)
		return &d
	}
	if !ok {
		return &ErrorDetail{Field: pk, Rule: "type", Message: fmt.Sprintf("%s must be a string", pk)}
	}
	fields[pk] = strings.TrimSpace(s)
	return nil
}

// ValidateRelations reads the writable relations from body as lists of
// target ids, converted to the target's primary key type.
func ValidateRelations(reg *metadata.Registry, entity *metadata.Entity, body map[string]any, isCreate bool) (map[string][]any, []ErrorDetail) {
	out := make(map[string][]any)
	var errs []ErrorDetail

	for name, rel := range entity.Relations {
		if !rel.Writable {
			continue
		}
		raw, present := body[name]
		if !present {
			if isCreate && rel.MinItems > 0 {
				errs = append(errs, requiredError(name))
			}
			continue
		}
		list, ok := raw.([]any)
		if !ok {
			errs = append(errs, ErrorDetail{Field: name, Rule: "type", Message: fmt.Sprintf("%s must be a list of ids", name)})
			continue
		}
		if len(list) < rel.MinItems {
			errs = append(errs, ErrorDetail{Field: name, Rule: "min_items",
				Message: fmt.Sprintf("%s must contain at least %d item(s)", name, rel.MinItems)})
			continue
		}

		keyType := "bigint"
		if target := reg.Target(rel); target != nil {
			keyType = target.PrimaryKey.Type
		}

		ids := make([]any, 0, len(list))
		seen := make(map[string]bool)
		valid := true
		for _, item := range list {
			id, ok := relationID(keyType, item)
			if !ok {
				errs = append(errs, ErrorDetail{Field: name, Rule: "type", Message: fmt.Sprintf("%s must contain %s ids", name, idKind(keyType))})
				valid = false
				break
			}
			if k := fmt.Sprintf("%v", id); !seen[k] {
				seen[k] = true
				ids = append(ids, id)
			}
		}
		if valid {
			out[name] = ids
		}
	}
	return out, errs
}

func relationID(keyType string, raw any) (any, bool) {
	switch keyType {
	case "int", "bigint":
		n, ok := toInteger(raw)
		return n, ok
	}
	s, ok := raw.(string)
	if !ok || strings.TrimSpace(s) == "" {
		return nil, false
	}
	return strings.TrimSpace(s), true
}

func idKind(keyType string) string {
	switch keyType {
	case "int", "bigint":
		return "integer"
	}
	return "string"
}

// checkConstraints runs the database-backed checks: unique fields, references
// to other entities and ids listed for writable relations.
func checkConstraints(ctx context.Context, q store.Querier, d store.Dialect, reg *metadata.Registry,
	entity *metadata.Entity, fields map[string]any, relations map[string][]any, id any) ([]ErrorDetail, error) {
	var errs []ErrorDetail

	if key, ok := fields[entity.PrimaryKey.Field]; ok && id == nil {
		n, err := countIDs(ctx, q, d, entity, []any{key})
		if err != nil {
			return nil, err
		}
		if n > 0 {
			errs = append(errs, ErrorDetail{Field: entity.PrimaryKey.Field, Rule: "unique",
				Message: fmt.Sprintf("%s has already been taken", entity.PrimaryKey.Field)})
		}
	}

	for _, f := range entity.Fields {
		val, ok := fields[f.Name]
		if !ok || val == nil {
			continue
		}

		if f.Unique {
			pb := d.NewParamBuilder()
			sqlStr := fmt.Sprintf("SELECT COUNT(*) AS count FROM %s WHERE %s = %s", entity.Table, f.Name, pb.Add(val))
			if id != nil {
				sqlStr += fmt.Sprintf(" AND %s != %s", entity.PrimaryKey.Field, pb.Add(id))
			}
			n, err := count(ctx, q, sqlStr, pb.Params())
			if err != nil {
				return nil, err
			}
			if n > 0 {
				errs = append(errs, ErrorDetail{Field: f.Name, Rule: "unique", Message: fmt.Sprintf("%s has already been taken", f.Name)})
			}
		}

		if f.References != "" {
			target := reg.GetEntity(f.References)
			if target == nil {
				return nil, fmt.Errorf("field %s references unknown entity %s", f.Name, f.References)
			}
			found, err := countIDs(ctx, q, d, target, []any{val})
			if err != nil {
				return nil, err
			}
			if found == 0 {
				errs = append(errs, ErrorDetail{Field: f.Name, Rule: "exists", Message: fmt.Sprintf("selected %s is invalid", f.Name)})
			}
		}
	}

	for name, ids := range relations {
		if len(ids) == 0 {
			continue
		}
		target := reg.Target(entity.Relations[name])
		found, err := countIDs(ctx, q, d, target, ids)
		if err != nil {
			return nil, err
		}
		if found != int64(len(ids)) {
			errs = append(errs, ErrorDetail{Field: name, Rule: "exists", Message: fmt.Sprintf("one or more selected %s do not exist", name)})
		}
	}

	return errs, nil
}

func countIDs(ctx context.Context, q store.Querier, d store.Dialect, target *metadata.Entity, ids []any) (int64, error) {
	pb := d.NewParamBuilder()
	sqlStr := fmt.Sprintf("SELECT COUNT(*) AS count FROM %s WHERE %s", target.Table, d.InExpr(target.PrimaryKey.Field, pb, ids))
	return count(ctx, q, sqlStr, pb.Params())
}

func count(ctx context.Context, q store.Querier, sqlStr string, params []any) (int64, error) {
	row, err := store.QueryRow(ctx, q, sqlStr, params...)
	if err != nil {
		return 0, err
	}
	n, _ := store.ToInt64(row["count"])
	return n, nil
}

// parseID converts a path id to the primary key type. ok is false when the
// id cannot belong to any record.
func parseID(entity *metadata.Entity, raw string) (any, bool) {
	switch entity.PrimaryKey.Type {
	case "int", "bigint":
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || n <= 0 {
			return nil, false
		}
		return n, true
	}
	return raw, raw != ""
}

// byID restricts a query to one primary key value.
func byID(q query.Builder, entity *metadata.Entity, id any) {
	q.Where(entity.PrimaryKey.Field, query.OpEq, id)
}
