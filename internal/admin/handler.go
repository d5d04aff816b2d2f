package admin

import (
	"fmt"
	"sort"

	"github.com/gofiber/fiber/v2"

	"library-backend/internal/engine"
	"library-backend/internal/metadata"
	"library-backend/internal/query"
	"library-backend/internal/store"
)

// Handler exposes read-only introspection of the served schema: entity
// definitions, relations, query features and the migration state.
type Handler struct {
	store    *store.Store
	registry *metadata.Registry
	features *query.Composer
}

func NewHandler(s *store.Store, reg *metadata.Registry, features *query.Composer) *Handler {
	return &Handler{store: s, registry: reg, features: features}
}

func RegisterAdminRoutes(app *fiber.App, h *Handler, middleware ...fiber.Handler) {
	admin := app.Group("/api/v1/_admin", middleware...)

	admin.Get("/entities", h.ListEntities)
	admin.Get("/entities/:name", h.GetEntity)
	admin.Get("/relations", h.ListRelations)
	admin.Get("/status", h.Status)
}

type entitySummary struct {
	Name      string   `json:"name"`
	Table     string   `json:"table"`
	Columns   []string `json:"columns"`
	Relations []string `json:"relations"`
}

type relationSummary struct {
	Source string `json:"source"`
	*metadata.Relation
}

// --- Entity Endpoints ---

func (h *Handler) ListEntities(c *fiber.Ctx) error {
	entities := h.registry.AllEntities()
	out := make([]entitySummary, 0, len(entities))
	for _, e := range entities {
		out = append(out, entitySummary{
			Name:      e.Name,
			Table:     e.Table,
			Columns:   e.Columns(),
			Relations: relationNames(e),
		})
	}
	return c.JSON(fiber.Map{"data": out})
}

func (h *Handler) GetEntity(c *fiber.Ctx) error {
	name := c.Params("name")
	entity, ok := h.registry.Describe(name)
	if !ok {
		return engine.UnknownEntityError(name)
	}
	return c.JSON(fiber.Map{"data": entity})
}

// --- Relation Endpoints ---

func (h *Handler) ListRelations(c *fiber.Ctx) error {
	out := []relationSummary{}
	for _, e := range h.registry.AllEntities() {
		for _, name := range relationNames(e) {
			out = append(out, relationSummary{Source: e.Name, Relation: e.Relations[name]})
		}
	}
	return c.JSON(fiber.Map{"data": out})
}

// --- Status ---

func (h *Handler) Status(c *fiber.Ctx) error {
	version, err := h.store.MigrationVersion(c.Context())
	if err != nil {
		return fmt.Errorf("migration version: %w", err)
	}
	return c.JSON(fiber.Map{"data": fiber.Map{
		"driver":            h.store.Dialect.Name(),
		"migration_version": version,
		"query_features":    h.features.Names(),
	}})
}

func relationNames(e *metadata.Entity) []string {
	names := make([]string, 0, len(e.Relations))
	for name := range e.Relations {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
