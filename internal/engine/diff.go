package engine

import (
	"context"
	"fmt"

	"library-backend/internal/metadata"
	"library-backend/internal/store"
)

// currentLinks returns the target ids currently joined to sourceID through rel.
func currentLinks(ctx context.Context, q store.Querier, d store.Dialect, rel *metadata.Relation, sourceID any) ([]any, error) {
	pb := d.NewParamBuilder()
	sqlStr := fmt.Sprintf("SELECT %s FROM %s WHERE %s = %s",
		rel.TargetKey, rel.JoinTable, rel.SourceKey, pb.Add(sourceID))
	rows, err := store.QueryRows(ctx, q, sqlStr, pb.Params()...)
	if err != nil {
		return nil, fmt.Errorf("fetch current join rows: %w", err)
	}
	ids := make([]any, 0, len(rows))
	for _, r := range rows {
		if v := r[rel.TargetKey]; v != nil {
			ids = append(ids, v)
		}
	}
	return ids, nil
}

// syncJoinRows makes the join rows of sourceID match targetIDs exactly:
// rows for ids no longer listed are deleted, missing ones are inserted.
func syncJoinRows(ctx context.Context, q store.Querier, d store.Dialect, rel *metadata.Relation, sourceID any, targetIDs []any) error {
	current, err := currentLinks(ctx, q, d, rel, sourceID)
	if err != nil {
		return err
	}

	wanted := make(map[string]bool, len(targetIDs))
	for _, id := range targetIDs {
		wanted[fmt.Sprintf("%v", id)] = true
	}
	existing := make(map[string]bool, len(current))
	for _, id := range current {
		key := fmt.Sprintf("%v", id)
		existing[key] = true
		if wanted[key] {
			continue
		}
		pb := d.NewParamBuilder()
		delSQL := fmt.Sprintf("DELETE FROM %s WHERE %s = %s AND %s = %s",
			rel.JoinTable, rel.SourceKey, pb.Add(sourceID), rel.TargetKey, pb.Add(id))
		if _, err := store.Exec(ctx, q, delSQL, pb.Params()...); err != nil {
			return fmt.Errorf("delete join row: %w", err)
		}
	}

	for _, id := range targetIDs {
		if existing[fmt.Sprintf("%v", id)] {
			continue
		}
		if err := insertJoinRow(ctx, q, d, rel, sourceID, id); err != nil {
			return err
		}
	}
	return nil
}

func insertJoinRow(ctx context.Context, q store.Querier, d store.Dialect, rel *metadata.Relation, sourceID, targetID any) error {
	pb := d.NewParamBuilder()
	sqlStr := fmt.Sprintf("INSERT INTO %s (%s, %s) VALUES (%s, %s)",
		rel.JoinTable, rel.SourceKey, rel.TargetKey, pb.Add(sourceID), pb.Add(targetID))
	if _, err := store.Exec(ctx, q, sqlStr, pb.Params()...); err != nil {
		return fmt.Errorf("insert join row in %s: %w", rel.JoinTable, err)
	}
	return nil
}

// hasDependents reports whether any record is linked to id through rel.
func hasDependents(ctx context.Context, q store.Querier, d store.Dialect, reg *metadata.Registry, rel *metadata.Relation, id any) (bool, error) {
	pb := d.NewParamBuilder()
	var sqlStr string
	switch rel.Kind {
	case metadata.HasMany:
		target := reg.Target(rel)
		sqlStr = fmt.Sprintf("SELECT COUNT(*) AS count FROM %s WHERE %s = %s", target.Table, rel.ForeignKey, pb.Add(id))
	case metadata.BelongsToMany:
		sqlStr = fmt.Sprintf("SELECT COUNT(*) AS count FROM %s WHERE %s = %s", rel.JoinTable, rel.SourceKey, pb.Add(id))
	default:
		return false, nil
	}
	n, err := count(ctx, q, sqlStr, pb.Params())
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
