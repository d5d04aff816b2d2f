package metadata

const (
	BelongsTo     = "belongs_to"
	HasMany       = "has_many"
	BelongsToMany = "belongs_to_many"
)

// Relation describes how a record of one entity reaches records of another.
//
//	belongs_to:       ForeignKey lives on the source table and points at the target primary key.
//	has_many:         ForeignKey lives on the target table and points at the source primary key.
//	belongs_to_many:  JoinTable links SourceKey (source primary key) to TargetKey (target primary key).
type Relation struct {
	Name       string `json:"name"`
	Kind       string `json:"kind"`
	Target     string `json:"target"`
	ForeignKey string `json:"foreign_key,omitempty"`
	JoinTable  string `json:"join_table,omitempty"`
	SourceKey  string `json:"source_key,omitempty"`
	TargetKey  string `json:"target_key,omitempty"`

	// Writable relations accept a list of target ids in write payloads.
	// Only belongs_to_many relations can be writable.
	Writable bool `json:"writable,omitempty"`
	MinItems int  `json:"min_items,omitempty"`
}

func (r *Relation) IsBelongsTo() bool     { return r.Kind == BelongsTo }
func (r *Relation) IsHasMany() bool       { return r.Kind == HasMany }
func (r *Relation) IsBelongsToMany() bool { return r.Kind == BelongsToMany }
