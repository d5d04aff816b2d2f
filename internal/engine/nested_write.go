package engine

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"library-backend/internal/metadata"
	"library-backend/internal/store"
)

// WritePlan describes the full set of operations for a write request.
type WritePlan struct {
	IsCreate  bool
	Entity    *metadata.Entity
	Fields    map[string]any
	Relations map[string][]any // writable relation name -> target ids
	ID        any              // nil for create, set for update
	Old       map[string]any   // current record on update
}

// PlanWrite validates body without touching the database and builds a WritePlan.
func PlanWrite(reg *metadata.Registry, entity *metadata.Entity, body map[string]any, existingID any, old map[string]any) (*WritePlan, []ErrorDetail) {
	isCreate := existingID == nil

	fields, errs := ValidateFields(entity, body, isCreate)
	if entity.PrimaryKey.Assigned {
		if detail := assignKey(entity, body, existingID, fields); detail != nil {
			errs = append(errs, *detail)
		}
	}
	relations, relErrs := ValidateRelations(reg, entity, body, isCreate)
	errs = append(errs, relErrs...)
	if len(errs) > 0 {
		return nil, errs
	}

	return &WritePlan{
		IsCreate:  isCreate,
		Entity:    entity,
		Fields:    fields,
		Relations: relations,
		ID:        existingID,
		Old:       old,
	}, nil
}

// Changed reports whether applying the plan would modify anything.
// It needs the current join rows for the relations being written.
func (p *WritePlan) Changed(currentLinks map[string][]any) bool {
	if p.IsCreate {
		return true
	}
	for name, val := range p.Fields {
		if fmt.Sprintf("%v", val) != fmt.Sprintf("%v", p.Old[name]) {
			return true
		}
	}
	for name, ids := range p.Relations {
		if !sameIDs(ids, currentLinks[name]) {
			return true
		}
	}
	return false
}

// ExecuteWritePlan runs the checks and writes of plan inside a single
// transaction and returns the primary key of the written record.
func ExecuteWritePlan(ctx context.Context, s *store.Store, reg *metadata.Registry, rules *RuleSet, plan *WritePlan) (any, error) {
	tx, err := s.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	constraintErrs, err := checkConstraints(ctx, tx, s.Dialect, reg, plan.Entity, plan.Fields, plan.Relations, plan.ID)
	if err != nil {
		return nil, fmt.Errorf("check constraints: %w", err)
	}
	if len(constraintErrs) > 0 {
		return nil, ValidationError(constraintErrs)
	}

	old := plan.Old
	if old == nil {
		old = map[string]any{}
	}
	merged := make(map[string]any, len(old)+len(plan.Fields))
	for k, v := range old {
		merged[k] = v
	}
	for k, v := range plan.Fields {
		merged[k] = v
	}
	if ruleErrs := rules.Evaluate(plan.Entity, merged, old, plan.IsCreate); len(ruleErrs) > 0 {
		return nil, ValidationError(ruleErrs)
	}

	now := time.Now().UTC()
	var id any
	if plan.IsCreate {
		sqlStr, params := BuildInsertSQL(s.Dialect, plan.Entity, plan.Fields, now)
		row, err := store.QueryRow(ctx, tx, sqlStr, params...)
		if err != nil {
			return nil, fmt.Errorf("insert %s: %w", plan.Entity.Table, store.MapError(s.Dialect, err))
		}
		id = row[plan.Entity.PrimaryKey.Field]
	} else {
		id = plan.ID
		sqlStr, params := BuildUpdateSQL(s.Dialect, plan.Entity, id, plan.Fields, now)
		if sqlStr != "" {
			if _, err := store.Exec(ctx, tx, sqlStr, params...); err != nil {
				return nil, fmt.Errorf("update %s: %w", plan.Entity.Table, store.MapError(s.Dialect, err))
			}
		}
	}

	for name, ids := range plan.Relations {
		if err := syncJoinRows(ctx, tx, s.Dialect, plan.Entity.Relations[name], id, ids); err != nil {
			return nil, fmt.Errorf("sync %s: %w", name, store.MapError(s.Dialect, err))
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return id, nil
}

// BuildInsertSQL renders an INSERT of the given fields plus timestamps, returning the primary key.
func BuildInsertSQL(d store.Dialect, entity *metadata.Entity, fields map[string]any, now time.Time) (string, []any) {
	pb := d.NewParamBuilder()
	cols := orderedColumns(entity, fields)
	phs := make([]string, 0, len(cols)+len(entity.Timestamps))
	for _, col := range cols {
		phs = append(phs, pb.Add(fields[col]))
	}
	for _, ts := range entity.Timestamps {
		cols = append(cols, ts)
		phs = append(phs, pb.Add(now))
	}

	sqlStr := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING %s",
		entity.Table, strings.Join(cols, ", "), strings.Join(phs, ", "), entity.PrimaryKey.Field)
	return sqlStr, pb.Params()
}

// BuildUpdateSQL renders an UPDATE of the given fields and updated_at.
// It returns an empty string when there is nothing to set.
func BuildUpdateSQL(d store.Dialect, entity *metadata.Entity, id any, fields map[string]any, now time.Time) (string, []any) {
	cols := orderedColumns(entity, fields)
	if len(cols) == 0 {
		return "", nil
	}

	pb := d.NewParamBuilder()
	sets := make([]string, 0, len(cols)+1)
	for _, col := range cols {
		sets = append(sets, fmt.Sprintf("%s = %s", col, pb.Add(fields[col])))
	}
	if entity.IsTimestamp("updated_at") {
		sets = append(sets, fmt.Sprintf("updated_at = %s", pb.Add(now)))
	}

	sqlStr := fmt.Sprintf("UPDATE %s SET %s WHERE %s = %s",
		entity.Table, strings.Join(sets, ", "), entity.PrimaryKey.Field, pb.Add(id))
	return sqlStr, pb.Params()
}

// BuildDeleteSQL renders a DELETE by primary key.
func BuildDeleteSQL(d store.Dialect, entity *metadata.Entity, id any) (string, []any) {
	pb := d.NewParamBuilder()
	sqlStr := fmt.Sprintf("DELETE FROM %s WHERE %s = %s", entity.Table, entity.PrimaryKey.Field, pb.Add(id))
	return sqlStr, pb.Params()
}

// orderedColumns returns the keys of fields in entity declaration order,
// led by an assigned primary key.
func orderedColumns(entity *metadata.Entity, fields map[string]any) []string {
	cols := make([]string, 0, len(fields))
	if _, ok := fields[entity.PrimaryKey.Field]; ok {
		cols = append(cols, entity.PrimaryKey.Field)
	}
	for _, f := range entity.Fields {
		if _, ok := fields[f.Name]; ok {
			cols = append(cols, f.Name)
		}
	}
	return cols
}

func sameIDs(a, b []any) bool {
	if len(a) != len(b) {
		return false
	}
	as := make([]string, len(a))
	bs := make([]string, len(b))
	for i := range a {
		as[i] = fmt.Sprintf("%v", a[i])
		bs[i] = fmt.Sprintf("%v", b[i])
	}
	sort.Strings(as)
	sort.Strings(bs)
	for i := range as {
		if as[i] != bs[i] {
			return false
		}
	}
	return true
}
