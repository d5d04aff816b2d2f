package engine

import (
	"errors"
	"fmt"
	"log"

	"github.com/gofiber/fiber/v2"

	"library-backend/internal/config"
	"library-backend/internal/metadata"
	"library-backend/internal/query"
	"library-backend/internal/store"
)

type Handler struct {
	store    *store.Store
	registry *metadata.Registry
	features *query.Composer
	show     *query.Composer
	rules    *RuleSet
	limits   config.QueryConfig
}

// NewHandler serves lists through features. Show only takes its include
// and select appliers.
func NewHandler(s *store.Store, reg *metadata.Registry, features *query.Composer, rules *RuleSet, limits config.QueryConfig) *Handler {
	return &Handler{
		store:    s,
		registry: reg,
		features: features,
		show:     features.Only(query.IncludeApplier{}.Name(), query.SelectApplier{}.Name()),
		rules:    rules,
		limits:   limits,
	}
}

// List handles GET /api/v1/:entity
func (h *Handler) List(c *fiber.Ctx) error {
	entity, err := h.resolveEntity(c)
	if err != nil {
		return err
	}
	if err := h.checkRead(c, entity, ActionIndex); err != nil {
		return err
	}

	req := h.parseRequest(c)
	q := h.store.Query(h.registry, entity)
	q.Scope(h.features.Scope(entity, req))

	res, err := query.GetOrPaginate(c.Context(), q, req.PerPage, req.Page)
	if err != nil {
		return fmt.Errorf("list %s: %w", entity.Name, err)
	}

	if !res.Paginated() {
		return c.JSON(fiber.Map{"data": ShapeRows(h.registry, entity, res.Rows)})
	}
	return c.JSON(fiber.Map{
		"data": ShapeRows(h.registry, entity, res.Page.Items),
		"meta": fiber.Map{
			"current_page": res.Page.CurrentPage,
			"per_page":     res.Page.PerPage,
			"total":        res.Page.Total,
			"last_page":    res.Page.LastPage,
		},
	})
}

// GetByID handles GET /api/v1/:entity/:id
func (h *Handler) GetByID(c *fiber.Ctx) error {
	entity, err := h.resolveEntity(c)
	if err != nil {
		return err
	}
	if err := h.checkRead(c, entity, ActionShow); err != nil {
		return err
	}

	rawID := c.Params("id")
	id, ok := parseID(entity, rawID)
	if !ok {
		return NotFoundError(entity.Singular, rawID)
	}

	q := h.store.Query(h.registry, entity)
	byID(q, entity, id)
	q.Scope(h.show.Scope(entity, h.parseRequest(c)))

	row, err := q.First(c.Context())
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return NotFoundError(entity.Singular, rawID)
		}
		return fmt.Errorf("get %s/%s: %w", entity.Name, rawID, err)
	}

	return c.JSON(fiber.Map{"data": ShapeRow(h.registry, entity, row)})
}

// Create handles POST /api/v1/:entity
func (h *Handler) Create(c *fiber.Ctx) error {
	entity, err := h.resolveEntity(c)
	if err != nil {
		return err
	}

	if err := CheckPermission(getUser(c), entity, ActionStore); err != nil {
		return err
	}

	body, err := parseBody(c)
	if err != nil {
		return err
	}

	plan, validationErrs := PlanWrite(h.registry, entity, body, nil, nil)
	if len(validationErrs) > 0 {
		return ValidationError(validationErrs)
	}

	id, err := ExecuteWritePlan(c.Context(), h.store, h.registry, h.rules, plan)
	if err != nil {
		return writeError(err)
	}

	record, err := h.fetchRecord(c, entity, id)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": record})
}

// Update handles PUT /api/v1/:entity/:id
func (h *Handler) Update(c *fiber.Ctx) error {
	entity, err := h.resolveEntity(c)
	if err != nil {
		return err
	}

	if err := CheckPermission(getUser(c), entity, ActionUpdate); err != nil {
		return err
	}

	rawID := c.Params("id")
	id, ok := parseID(entity, rawID)
	if !ok {
		return NotFoundError(entity.Singular, rawID)
	}
	current, err := h.fetchRecord(c, entity, id)
	if err != nil {
		return err
	}

	body, err := parseBody(c)
	if err != nil {
		return err
	}

	plan, validationErrs := PlanWrite(h.registry, entity, body, id, current)
	if len(validationErrs) > 0 {
		return ValidationError(validationErrs)
	}

	links := make(map[string][]any, len(plan.Relations))
	for name := range plan.Relations {
		ids, err := currentLinks(c.Context(), h.store.DB, h.store.Dialect, entity.Relations[name], id)
		if err != nil {
			return fmt.Errorf("update %s/%s: %w", entity.Name, rawID, err)
		}
		links[name] = ids
	}
	if !plan.Changed(links) {
		return c.JSON(fiber.Map{"message": "No changes to update", "data": current})
	}

	if _, err := ExecuteWritePlan(c.Context(), h.store, h.registry, h.rules, plan); err != nil {
		return writeError(err)
	}

	record, err := h.fetchRecord(c, entity, id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": record})
}

// Delete handles DELETE /api/v1/:entity/:id
func (h *Handler) Delete(c *fiber.Ctx) error {
	entity, err := h.resolveEntity(c)
	if err != nil {
		return err
	}

	if err := CheckPermission(getUser(c), entity, ActionDestroy); err != nil {
		return err
	}

	rawID := c.Params("id")
	id, ok := parseID(entity, rawID)
	if !ok {
		return NotFoundError(entity.Singular, rawID)
	}

	tx, err := h.store.BeginTx(c.Context())
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	for _, name := range entity.RestrictDelete {
		linked, err := hasDependents(c.Context(), tx, h.store.Dialect, h.registry, entity.Relations[name], id)
		if err != nil {
			return fmt.Errorf("delete %s/%s: %w", entity.Name, rawID, err)
		}
		if linked {
			return ConflictError(fmt.Sprintf("Cannot delete %s %s: it still has linked %s", entity.Singular, rawID, name))
		}
	}

	sqlStr, params := BuildDeleteSQL(h.store.Dialect, entity, id)
	affected, err := store.Exec(c.Context(), tx, sqlStr, params...)
	if err != nil {
		return writeError(fmt.Errorf("delete %s/%s: %w", entity.Name, rawID, store.MapError(h.store.Dialect, err)))
	}
	if affected == 0 {
		return NotFoundError(entity.Singular, rawID)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// fetchRecord loads one shaped record with its writable relations.
func (h *Handler) fetchRecord(c *fiber.Ctx, entity *metadata.Entity, id any) (map[string]any, error) {
	q := h.store.Query(h.registry, entity)
	byID(q, entity, id)
	for name, rel := range entity.Relations {
		if rel.Writable {
			q.With(name)
		}
	}
	row, err := q.First(c.Context())
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, NotFoundError(entity.Singular, fmt.Sprintf("%v", id))
		}
		return nil, fmt.Errorf("fetch %s/%v: %w", entity.Name, id, err)
	}
	return ShapeRow(h.registry, entity, row), nil
}

// parseRequest reads the query features from the raw query string, since
// fiber's own query accessors keep only one value per repeated key.
func (h *Handler) parseRequest(c *fiber.Ctx) *query.Request {
	req := query.ParseQuery(string(c.Request().URI().QueryString()))
	req.PerPage = h.limits.ClampPerPage(req.PerPage)
	return req
}

// checkRead enforces the read permissions of entities with GuardReads.
func (h *Handler) checkRead(c *fiber.Ctx, entity *metadata.Entity, action string) error {
	if !entity.GuardReads {
		return nil
	}
	return CheckPermission(getUser(c), entity, action)
}

func (h *Handler) resolveEntity(c *fiber.Ctx) (*metadata.Entity, error) {
	name := c.Params("entity")
	entity := h.registry.GetEntity(name)
	if entity == nil {
		return nil, UnknownEntityError(name)
	}
	return entity, nil
}

func getUser(c *fiber.Ctx) *metadata.UserContext {
	user, _ := c.Locals("user").(*metadata.UserContext)
	return user
}

func parseBody(c *fiber.Ctx) (map[string]any, error) {
	var body map[string]any
	if err := c.BodyParser(&body); err != nil || body == nil {
		return nil, BadRequestError("Invalid JSON body")
	}
	return body, nil
}

func writeError(err error) error {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	if errors.Is(err, store.ErrUniqueViolation) {
		return ConflictError("A record with this value already exists")
	}
	if errors.Is(err, store.ErrForeignKeyViolation) {
		return ConflictError("The record is referenced by, or references, a missing record")
	}
	return err
}

// ErrorHandler renders AppErrors as JSON envelopes and hides everything else
// behind a generic 500.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError

	var appErr *AppError
	if errors.As(err, &appErr) {
		return c.Status(appErr.Status).JSON(ErrorResponse{Error: appErr})
	}

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		code = fiberErr.Code
		return c.Status(code).JSON(ErrorResponse{Error: &AppError{Code: "HTTP_ERROR", Message: fiberErr.Message}})
	}

	log.Printf("ERROR: %v", err)
	return c.Status(code).JSON(ErrorResponse{
		Error: &AppError{
			Code:    "INTERNAL_ERROR",
			Message: "Internal server error",
		},
	})
}
