package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"library-backend/internal/config"
	"library-backend/internal/metadata"
	"library-backend/internal/query"
)

// newSQLiteStore opens a migrated in-memory database.
func newSQLiteStore(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()
	s, err := New(ctx, config.DatabaseConfig{Driver: "sqlite", Name: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(s.Close)
	require.NoError(t, s.Migrate(ctx))
	return s
}

// seedLibrary loads three authors, one publisher, three catalogs and two copies.
// Isabel wrote catalog 2, Gabriel wrote catalogs 1 and 3, Mario wrote nothing.
func seedLibrary(t *testing.T, s *Store) {
	t.Helper()
	ctx := context.Background()
	stmts := []string{
		`INSERT INTO authors (id, name, nationality) VALUES (1, 'Isabel', 'E'), (2, 'Mario', 'E'), (3, 'Gabriel', 'E')`,
		`INSERT INTO publishers (id, name) VALUES (1, 'Planeta')`,
		`INSERT INTO catalogs (id, document_type, title, publication_date, publisher_id, entry_date) VALUES
			(1, 3, 'Cien anos de soledad', '1967-05-30', 1, '2020-01-10'),
			(2, 3, 'La casa de los espiritus', '1982-01-01', 1, '2020-02-10'),
			(3, 1, 'Cronica de una muerte anunciada', '1981-01-01', 1, '2020-03-10')`,
		`INSERT INTO author_catalog (author_id, catalog_id) VALUES (1, 2), (3, 1), (3, 3)`,
		`INSERT INTO copies (catalog_id, copy_number, code, status) VALUES (1, 1, 'CAS-1', 'D'), (1, 2, 'CAS-2', 'P')`,
	}
	for _, stmt := range stmts {
		_, err := Exec(ctx, s.DB, stmt)
		require.NoError(t, err)
	}
}

func list(t *testing.T, s *Store, entity, raw string) []map[string]any {
	t.Helper()
	reg := metadata.LibraryRegistry()
	schema := reg.GetEntity(entity)
	q := s.Query(reg, schema)
	q.Scope(query.NewComposer().Scope(schema, query.ParseQuery(raw)))
	rows, err := q.Get(context.Background())
	require.NoError(t, err)
	return rows
}

func names(rows []map[string]any) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i], _ = r["name"].(string)
	}
	return out
}

func ids(rows []map[string]any) []int64 {
	out := make([]int64, len(rows))
	for i, r := range rows {
		out[i], _ = ToInt64(r["id"])
	}
	return out
}

func TestSQLite_MigrationsApplied(t *testing.T) {
	s := newSQLiteStore(t)
	version, err := s.MigrationVersion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), version)

	// A second run is a no-op.
	require.NoError(t, s.Migrate(context.Background()))
}

func TestSQLite_SortDescending(t *testing.T) {
	s := newSQLiteStore(t)
	seedLibrary(t, s)

	rows := list(t, s, "authors", "sort=-name")
	assert.Equal(t, []string{"Mario", "Isabel", "Gabriel"}, names(rows))
}

func TestSQLite_SelectProjection(t *testing.T) {
	s := newSQLiteStore(t)
	seedLibrary(t, s)

	rows := list(t, s, "authors", "select=id,name")
	require.Len(t, rows, 3)
	for _, row := range rows {
		assert.Len(t, row, 2)
		assert.Contains(t, row, "id")
		assert.Contains(t, row, "name")
	}
}

func TestSQLite_LikeFilter(t *testing.T) {
	s := newSQLiteStore(t)
	seedLibrary(t, s)

	rows := list(t, s, "authors", "filters[name][like]=Isa")
	assert.Equal(t, []int64{1}, ids(rows))
	assert.Equal(t, []string{"Isabel"}, names(rows))
}

func TestSQLite_InFilter(t *testing.T) {
	s := newSQLiteStore(t)
	seedLibrary(t, s)

	rows := list(t, s, "authors", "filters[id][in]=1,3")
	assert.ElementsMatch(t, []int64{1, 3}, ids(rows))
}

func TestSQLite_OperatorCompleteness(t *testing.T) {
	s := newSQLiteStore(t)
	seedLibrary(t, s)

	tests := []struct {
		raw  string
		want []int64
	}{
		{"filters[id][eq]=2", []int64{2}},
		{"filters[id][neq]=2", []int64{1, 3}},
		{"filters[id][gt]=1", []int64{2, 3}},
		{"filters[id][lt]=3", []int64{1, 2}},
		{"filters[id][gte]=2", []int64{2, 3}},
		{"filters[id][lte]=2", []int64{1, 2}},
		{"filters[name][like]=ar", []int64{2}},
		{"filters[name][not_like]=ar", []int64{1, 3}},
		{"filters[id][in]=1,2", []int64{1, 2}},
		{"filters[id][not_in]=1,2", []int64{3}},
		{"filters[id][]=2&filters[id][]=3", []int64{2, 3}},
		{"filters[name]=Mario", []int64{2}},
		{"filters[id][gte]=2&filters[id][lte]=2", []int64{2}},
		{"filters[password]=x", []int64{1, 2, 3}},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			rows := list(t, s, "authors", tt.raw+"&sort=id")
			assert.Equal(t, tt.want, ids(rows))
		})
	}
}

func TestSQLite_FiltersDoNotReachIncludes(t *testing.T) {
	s := newSQLiteStore(t)
	seedLibrary(t, s)

	rows := list(t, s, "authors", "filters[id][in]=1,3&include=catalogs&sort=-name&select=name")
	require.Equal(t, []string{"Isabel", "Gabriel"}, names(rows))

	isabel := rows[0]["catalogs"].([]map[string]any)
	require.Len(t, isabel, 1)
	id, _ := ToInt64(isabel[0]["id"])
	assert.Equal(t, int64(2), id)
	assert.Contains(t, isabel[0], "title")

	gabriel := rows[1]["catalogs"].([]map[string]any)
	assert.Len(t, gabriel, 2)
}

func TestSQLite_IncludeTolerance(t *testing.T) {
	s := newSQLiteStore(t)
	seedLibrary(t, s)

	rows := list(t, s, "catalogs", "include=nonexistent&sort=id")
	require.Len(t, rows, 3)
	assert.NotContains(t, rows[0], "nonexistent")
}

func TestSQLite_NestedRelations(t *testing.T) {
	s := newSQLiteStore(t)
	seedLibrary(t, s)

	rows := list(t, s, "catalogs", "filters[id]=1&include=publisher,copies,authors&select=title")
	require.Len(t, rows, 1)
	row := rows[0]
	assert.Equal(t, "Planeta", row["publisher"].(map[string]any)["name"])
	assert.Len(t, row["copies"], 2)
	authors := row["authors"].([]map[string]any)
	require.Len(t, authors, 1)
	assert.Equal(t, "Gabriel", authors[0]["name"])
	assert.Contains(t, row, "publisher_id")
	assert.NotContains(t, row, "notes")
}

func TestSQLite_UnknownSelectOmitsBelongsToInclude(t *testing.T) {
	s := newSQLiteStore(t)
	seedLibrary(t, s)

	rows := list(t, s, "catalogs", "select=bogus&include=publisher,copies&sort=id")
	require.Len(t, rows, 3)
	assert.NotContains(t, rows[0], "publisher", "publisher cannot be attached without publisher_id")
	assert.NotContains(t, rows[0], "publisher_id")
	assert.NotContains(t, rows[0], "title")
	assert.Len(t, rows[0]["copies"], 2)
}

func TestSQLite_Paginate(t *testing.T) {
	s := newSQLiteStore(t)
	seedLibrary(t, s)

	reg := metadata.LibraryRegistry()
	authors := reg.GetEntity("authors")
	q := s.Query(reg, authors)
	q.Scope(query.NewComposer().Scope(authors, query.ParseQuery("sort=id")))

	res, err := query.GetOrPaginate(context.Background(), q, 2, 2)
	require.NoError(t, err)
	require.True(t, res.Paginated())
	assert.Equal(t, int64(3), res.Page.Total)
	assert.Equal(t, 2, res.Page.LastPage)
	assert.Equal(t, []int64{3}, ids(res.Page.Items))
}

func TestSQLite_MapErrorUnique(t *testing.T) {
	s := newSQLiteStore(t)
	seedLibrary(t, s)

	_, err := Exec(context.Background(), s.DB, `INSERT INTO authors (name, nationality) VALUES ('Mario', 'V')`)
	require.Error(t, err)
	assert.ErrorIs(t, MapError(s.Dialect, err), ErrUniqueViolation)
}

func TestSQLite_MapErrorForeignKey(t *testing.T) {
	s := newSQLiteStore(t)

	_, err := Exec(context.Background(), s.DB,
		`INSERT INTO copies (catalog_id, copy_number, code, status) VALUES (99, 1, 'X-1', 'D')`)
	require.Error(t, err)
	assert.ErrorIs(t, MapError(s.Dialect, err), ErrForeignKeyViolation)
}

func TestSQLite_BootstrapSeedsAdminOnce(t *testing.T) {
	s := newSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, s.Bootstrap(ctx))
	require.NoError(t, s.Bootstrap(ctx))

	row, err := QueryRow(ctx, s.DB, "SELECT COUNT(*) AS count FROM users")
	require.NoError(t, err)
	n, _ := ToInt64(row["count"])
	assert.Equal(t, int64(1), n)

	role, err := QueryRow(ctx, s.DB, "SELECT role_name FROM user_roles")
	require.NoError(t, err)
	assert.Equal(t, "admin", role["role_name"])
}
