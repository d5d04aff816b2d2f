package engine

import (
	"time"

	"library-backend/internal/metadata"
)

const dateLayout = "2006-01-02"

// ShapeRows prepares rows for the API: see ShapeRow.
func ShapeRows(reg *metadata.Registry, entity *metadata.Entity, rows []map[string]any) []map[string]any {
	for _, row := range rows {
		ShapeRow(reg, entity, row)
	}
	return rows
}

// ShapeRow renders date fields as YYYY-MM-DD, adds a "<field>_label" entry
// next to every enum value, and does the same for loaded relations.
func ShapeRow(reg *metadata.Registry, entity *metadata.Entity, row map[string]any) map[string]any {
	if row == nil {
		return nil
	}
	normalizeDates(entity, row)
	for _, f := range entity.Fields {
		if f.Enum == nil {
			continue
		}
		v, ok := row[f.Name]
		if !ok {
			continue
		}
		if label, ok := f.Enum.Label(v); ok {
			row[f.Name+"_label"] = label
		} else {
			row[f.Name+"_label"] = nil
		}
	}

	for name, rel := range entity.Relations {
		target := reg.Target(rel)
		if target == nil {
			continue
		}
		switch nested := row[name].(type) {
		case map[string]any:
			ShapeRow(reg, target, nested)
		case []map[string]any:
			ShapeRows(reg, target, nested)
		}
	}
	return row
}

// normalizeDates turns time values of date fields into YYYY-MM-DD strings.
// PostgreSQL DATE columns scan as time.Time, SQLite ones as text.
func normalizeDates(entity *metadata.Entity, row map[string]any) {
	for _, f := range entity.Fields {
		if f.Type != "date" {
			continue
		}
		if t, ok := row[f.Name].(time.Time); ok {
			row[f.Name] = t.Format(dateLayout)
		}
	}
}
