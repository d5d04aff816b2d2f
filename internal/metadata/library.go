package metadata

var defaultTimestamps = []string{"created_at", "updated_at"}

func authorEntity() *Entity {
	return &Entity{
		Name:       "authors",
		Table:      "authors",
		Singular:   "author",
		PrimaryKey: PrimaryKey{Field: "id", Type: "bigint"},
		Fields: []Field{
			{Name: "name", Type: "string", Required: true, Unique: true, MinLength: 3, MaxLength: 100},
			{Name: "nationality", Type: "string", Required: true, Enum: Nationalities},
			{Name: "birth_date", Type: "date", Nullable: true},
			{Name: "death_date", Type: "date", Nullable: true},
			{Name: "biography", Type: "text", Nullable: true, MinLength: 3},
		},
		Timestamps: defaultTimestamps,
		Relations: map[string]*Relation{
			"catalogs": {
				Name: "catalogs", Kind: BelongsToMany, Target: "catalogs",
				JoinTable: "author_catalog", SourceKey: "author_id", TargetKey: "catalog_id",
			},
		},
		Rules: []*Rule{
			{
				Type:       RuleTypeExpression,
				Field:      "death_date",
				Expression: "record.death_date != nil && record.birth_date != nil && record.death_date < record.birth_date",
				Message:    "death_date must be on or after birth_date",
			},
		},
		RestrictDelete: []string{"catalogs"},
	}
}

func publisherEntity() *Entity {
	return &Entity{
		Name:       "publishers",
		Table:      "publishers",
		Singular:   "publisher",
		PrimaryKey: PrimaryKey{Field: "id", Type: "bigint"},
		Fields: []Field{
			{Name: "name", Type: "string", Required: true, Unique: true, MinLength: 3, MaxLength: 100},
			{Name: "address", Type: "string", Nullable: true, MinLength: 3, MaxLength: 255},
		},
		Timestamps: defaultTimestamps,
		Relations: map[string]*Relation{
			"catalogs": {Name: "catalogs", Kind: HasMany, Target: "catalogs", ForeignKey: "publisher_id"},
		},
		RestrictDelete: []string{"catalogs"},
	}
}

func catalogEntity() *Entity {
	return &Entity{
		Name:       "catalogs",
		Table:      "catalogs",
		Singular:   "catalog",
		PrimaryKey: PrimaryKey{Field: "id", Type: "bigint"},
		Fields: []Field{
			{Name: "document_type", Type: "int", Required: true, Enum: DocumentTypes},
			{Name: "isbn", Type: "string", Nullable: true, Unique: true, MaxLength: 13},
			{Name: "title", Type: "string", Required: true, MinLength: 3, MaxLength: 255},
			{Name: "subtitle", Type: "string", Nullable: true, MinLength: 3, MaxLength: 255},
			{Name: "publication_date", Type: "date", Required: true},
			{Name: "physical_description", Type: "text", Nullable: true, MinLength: 3},
			{Name: "notes", Type: "text", Nullable: true, MinLength: 3},
			{Name: "publisher_id", Type: "bigint", Required: true, References: "publishers"},
			{Name: "entry_date", Type: "date", Required: true},
		},
		Timestamps: defaultTimestamps,
		Relations: map[string]*Relation{
			"authors": {
				Name: "authors", Kind: BelongsToMany, Target: "authors",
				JoinTable: "author_catalog", SourceKey: "catalog_id", TargetKey: "author_id",
				Writable: true, MinItems: 1,
			},
			"publisher": {Name: "publisher", Kind: BelongsTo, Target: "publishers", ForeignKey: "publisher_id"},
			"copies":    {Name: "copies", Kind: HasMany, Target: "copies", ForeignKey: "catalog_id"},
		},
		Rules: []*Rule{
			{
				Type:       RuleTypeExpression,
				Field:      "entry_date",
				Expression: "record.entry_date != nil && record.entry_date > today",
				Message:    "entry_date must not be in the future",
			},
		},
	}
}

func copyEntity() *Entity {
	return &Entity{
		Name:       "copies",
		Table:      "copies",
		Singular:   "copy",
		PrimaryKey: PrimaryKey{Field: "id", Type: "bigint"},
		Fields: []Field{
			{Name: "catalog_id", Type: "bigint", Required: true, References: "catalogs"},
			{Name: "copy_number", Type: "int", Required: true},
			{Name: "code", Type: "string", Required: true, Unique: true, MaxLength: 50},
			{Name: "status", Type: "string", Required: true, Enum: AvailabilityStatuses},
		},
		Timestamps: defaultTimestamps,
		Relations: map[string]*Relation{
			"catalog": {Name: "catalog", Kind: BelongsTo, Target: "catalogs", ForeignKey: "catalog_id"},
		},
		Rules: []*Rule{
			{Type: RuleTypeField, Field: "copy_number", Operator: "min", Value: 1, Message: "copy_number must be at least 1"},
		},
	}
}

func roleEntity() *Entity {
	return &Entity{
		Name:       "roles",
		Table:      "roles",
		Singular:   "role",
		PrimaryKey: PrimaryKey{Field: "name", Type: "string", Assigned: true},
		Relations: map[string]*Relation{
			"permissions": {
				Name: "permissions", Kind: BelongsToMany, Target: "permissions",
				JoinTable: "role_permissions", SourceKey: "role_name", TargetKey: "permission_name",
				Writable: true,
			},
		},
		Rules: []*Rule{
			{Type: RuleTypeField, Field: "name", Operator: "pattern", Value: `^[a-z][a-z0-9_-]{2,49}$`,
				Message: "name must be 3 to 50 lower case letters, digits, '_' or '-'"},
		},
		GuardReads: true,
	}
}

func permissionEntity() *Entity {
	return &Entity{
		Name:       "permissions",
		Table:      "permissions",
		Singular:   "permission",
		PrimaryKey: PrimaryKey{Field: "name", Type: "string", Assigned: true},
		Relations: map[string]*Relation{
			"roles": {
				Name: "roles", Kind: BelongsToMany, Target: "roles",
				JoinTable: "role_permissions", SourceKey: "permission_name", TargetKey: "role_name",
			},
		},
		Rules: []*Rule{
			{Type: RuleTypeField, Field: "name", Operator: "pattern", Value: `^[a-z][a-z_]{1,48}\.[a-z][a-z_]{1,48}$`,
				Message: "name must look like <resource>.<action>"},
		},
		GuardReads: true,
	}
}

// LibraryRegistry returns the registry of every entity the API serves: the
// catalog itself plus the roles and permissions that guard it.
// It panics if the descriptors are inconsistent, which can only be a programming error.
func LibraryRegistry() *Registry {
	reg, err := NewRegistry(authorEntity(), publisherEntity(), catalogEntity(), copyEntity(), roleEntity(), permissionEntity())
	if err != nil {
		panic("metadata: invalid library schema: " + err.Error())
	}
	return reg
}
