package metadata

import "fmt"

// Registry holds the entity descriptors. It is built once at startup and
// never mutated afterwards, so it can be shared across requests without locking.
type Registry struct {
	entities map[string]*Entity
	order    []string
}

// NewRegistry validates the given entities and indexes them by name.
// Every relation must point at a registered entity and name columns that exist.
func NewRegistry(entities ...*Entity) (*Registry, error) {
	r := &Registry{entities: make(map[string]*Entity, len(entities))}
	for _, e := range entities {
		if e.Name == "" || e.Table == "" || e.PrimaryKey.Field == "" {
			return nil, fmt.Errorf("entity %q: name, table and primary key are required", e.Name)
		}
		if e.PrimaryKey.Assigned && e.PrimaryKey.Type != "string" {
			return nil, fmt.Errorf("entity %q: only string primary keys can be assigned", e.Name)
		}
		if _, dup := r.entities[e.Name]; dup {
			return nil, fmt.Errorf("entity %q registered twice", e.Name)
		}
		r.entities[e.Name] = e
		r.order = append(r.order, e.Name)
	}
	for _, e := range entities {
		if err := r.validateRelations(e); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Registry) validateRelations(e *Entity) error {
	for name, rel := range e.Relations {
		if rel.Name != name {
			return fmt.Errorf("entity %s: relation key %q does not match name %q", e.Name, name, rel.Name)
		}
		target := r.entities[rel.Target]
		if target == nil {
			return fmt.Errorf("entity %s: relation %s targets unknown entity %q", e.Name, name, rel.Target)
		}
		switch rel.Kind {
		case BelongsTo:
			if !e.HasField(rel.ForeignKey) {
				return fmt.Errorf("entity %s: relation %s foreign key %q is not a field", e.Name, name, rel.ForeignKey)
			}
		case HasMany:
			if !target.HasField(rel.ForeignKey) {
				return fmt.Errorf("entity %s: relation %s foreign key %q is not a field of %s", e.Name, name, rel.ForeignKey, target.Name)
			}
		case BelongsToMany:
			if rel.JoinTable == "" || rel.SourceKey == "" || rel.TargetKey == "" {
				return fmt.Errorf("entity %s: relation %s needs join_table, source_key and target_key", e.Name, name)
			}
		default:
			return fmt.Errorf("entity %s: relation %s has unknown kind %q", e.Name, name, rel.Kind)
		}
		if rel.Writable && !rel.IsBelongsToMany() {
			return fmt.Errorf("entity %s: relation %s: only belongs_to_many relations can be writable", e.Name, name)
		}
	}
	for _, name := range e.RestrictDelete {
		if e.GetRelation(name) == nil {
			return fmt.Errorf("entity %s: restrict_delete names unknown relation %q", e.Name, name)
		}
	}
	return nil
}

// GetEntity returns the entity with the given name, or nil.
func (r *Registry) GetEntity(name string) *Entity {
	return r.entities[name]
}

// Describe returns the entity with the given name and whether it exists.
func (r *Registry) Describe(name string) (*Entity, bool) {
	e, ok := r.entities[name]
	return e, ok
}

// AllEntities returns all registered entities in registration order.
func (r *Registry) AllEntities() []*Entity {
	entities := make([]*Entity, 0, len(r.order))
	for _, name := range r.order {
		entities = append(entities, r.entities[name])
	}
	return entities
}

// Target returns the entity a relation points at, or nil.
func (r *Registry) Target(rel *Relation) *Entity {
	return r.entities[rel.Target]
}
