package engine

import "github.com/gofiber/fiber/v2"

// RouteMiddleware holds the middleware the catalog routes run before their handler.
type RouteMiddleware struct {
	// Authenticate rejects requests without a valid user. Writes and enum
	// listings run it.
	Authenticate fiber.Handler
	// Identify sets the user when credentials are present and lets anonymous
	// requests through. Reads run it when set.
	Identify fiber.Handler
	// Enum runs after Authenticate on the enum route.
	Enum []fiber.Handler
}

// RegisterRoutes mounts the catalog API under /api/v1. Reads are public
// unless the entity guards them.
func RegisterRoutes(app *fiber.App, h *Handler, mw RouteMiddleware) {
	api := app.Group("/api/v1")

	enumChain := append([]fiber.Handler{mw.Authenticate}, mw.Enum...)
	api.Get("/enums/:name", append(enumChain, ListEnum)...)

	var read []fiber.Handler
	if mw.Identify != nil {
		read = append(read, mw.Identify)
	}
	api.Get("/:entity", append(read, h.List)...)
	api.Get("/:entity/:id", append(read, h.GetByID)...)
	api.Post("/:entity", mw.Authenticate, h.Create)
	api.Put("/:entity/:id", mw.Authenticate, h.Update)
	api.Delete("/:entity/:id", mw.Authenticate, h.Delete)
}
