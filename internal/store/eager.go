package store

import (
	"context"
	"fmt"

	"library-backend/internal/metadata"
)

// loadEager fetches the relations named by With and attaches them to rows.
// Each relation costs one subquery (two for belongs_to_many) regardless of
// the number of parent rows.
func (q *Query) loadEager(ctx context.Context, rows []map[string]any) error {
	if len(rows) == 0 || len(q.with) == 0 || q.entity == nil {
		return nil
	}

	for _, name := range q.with {
		rel := q.entity.GetRelation(name)
		if rel == nil {
			continue
		}
		target := q.reg.Target(rel)
		if target == nil {
			return fmt.Errorf("unknown target entity: %s", rel.Target)
		}

		var err error
		switch rel.Kind {
		case metadata.BelongsTo:
			err = q.loadBelongsTo(ctx, rel, target, rows)
		case metadata.HasMany:
			err = q.loadHasMany(ctx, rel, target, rows)
		case metadata.BelongsToMany:
			err = q.loadBelongsToMany(ctx, rel, target, rows)
		}
		if err != nil {
			return fmt.Errorf("load include %s: %w", name, err)
		}
	}
	return nil
}

// loadBelongsTo loads the parent each row points at through its foreign key.
// When the projection left the foreign key out, the relation is not attached.
func (q *Query) loadBelongsTo(ctx context.Context, rel *metadata.Relation, target *metadata.Entity, rows []map[string]any) error {
	if _, selected := rows[0][rel.ForeignKey]; !selected {
		return nil
	}
	fkValues := collectValues(rows, rel.ForeignKey)
	if len(fkValues) == 0 {
		for _, row := range rows {
			row[rel.Name] = nil
		}
		return nil
	}

	pkField := target.PrimaryKey.Field
	sub := q.subquery(target, target.Table)
	sub.WhereIn(pkField, fkValues)
	parents, err := sub.Get(ctx)
	if err != nil {
		return err
	}

	byPK := indexBy(parents, pkField)
	for _, row := range rows {
		if parent, ok := byPK[key(row[rel.ForeignKey])]; ok {
			row[rel.Name] = parent
		} else {
			row[rel.Name] = nil
		}
	}
	return nil
}

// loadHasMany loads the children whose foreign key points at each row.
func (q *Query) loadHasMany(ctx context.Context, rel *metadata.Relation, target *metadata.Entity, rows []map[string]any) error {
	pkField := q.entity.PrimaryKey.Field
	parentIDs := collectValues(rows, pkField)
	if len(parentIDs) == 0 {
		attachEmpty(rows, rel.Name)
		return nil
	}

	sub := q.subquery(target, target.Table)
	sub.WhereIn(rel.ForeignKey, parentIDs)
	children, err := sub.Get(ctx)
	if err != nil {
		return err
	}

	grouped := make(map[string][]map[string]any)
	for _, child := range children {
		fk := key(child[rel.ForeignKey])
		grouped[fk] = append(grouped[fk], child)
	}

	for _, row := range rows {
		if list, ok := grouped[key(row[pkField])]; ok {
			row[rel.Name] = list
		} else {
			row[rel.Name] = []map[string]any{}
		}
	}
	return nil
}

// loadBelongsToMany reads the join table, then the targets it references.
func (q *Query) loadBelongsToMany(ctx context.Context, rel *metadata.Relation, target *metadata.Entity, rows []map[string]any) error {
	pkField := q.entity.PrimaryKey.Field
	parentIDs := collectValues(rows, pkField)
	if len(parentIDs) == 0 {
		attachEmpty(rows, rel.Name)
		return nil
	}

	pivot := q.subquery(nil, rel.JoinTable)
	pivot.Select(rel.SourceKey, rel.TargetKey)
	pivot.WhereIn(rel.SourceKey, parentIDs)
	joinRows, err := pivot.Get(ctx)
	if err != nil {
		return fmt.Errorf("load join table %s: %w", rel.JoinTable, err)
	}
	if len(joinRows) == 0 {
		attachEmpty(rows, rel.Name)
		return nil
	}

	targetIDs := collectValues(joinRows, rel.TargetKey)
	targetPK := target.PrimaryKey.Field
	sub := q.subquery(target, target.Table)
	sub.WhereIn(targetPK, targetIDs)
	targets, err := sub.Get(ctx)
	if err != nil {
		return err
	}
	byPK := indexBy(targets, targetPK)

	sourceToTargets := make(map[string][]map[string]any)
	for _, jr := range joinRows {
		sid := key(jr[rel.SourceKey])
		if t, ok := byPK[key(jr[rel.TargetKey])]; ok {
			sourceToTargets[sid] = append(sourceToTargets[sid], t)
		}
	}

	for _, row := range rows {
		if list, ok := sourceToTargets[key(row[pkField])]; ok {
			row[rel.Name] = list
		} else {
			row[rel.Name] = []map[string]any{}
		}
	}
	return nil
}

func attachEmpty(rows []map[string]any, name string) {
	for _, row := range rows {
		row[name] = []map[string]any{}
	}
}

// collectValues returns the distinct non-nil values of field across rows.
func collectValues(rows []map[string]any, field string) []any {
	seen := make(map[string]bool)
	var values []any
	for _, row := range rows {
		v := row[field]
		if v == nil {
			continue
		}
		k := key(v)
		if !seen[k] {
			seen[k] = true
			values = append(values, v)
		}
	}
	return values
}

func indexBy(rows []map[string]any, field string) map[string]map[string]any {
	out := make(map[string]map[string]any, len(rows))
	for _, row := range rows {
		out[key(row[field])] = row
	}
	return out
}

func key(v any) string {
	return fmt.Sprintf("%v", v)
}
