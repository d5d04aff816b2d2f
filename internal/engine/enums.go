package engine

import (
	"fmt"

	"github.com/gofiber/fiber/v2"

	"library-backend/internal/metadata"
)

// EnumPermission guards the enum listings.
const EnumPermission = "enum.index"

// ListEnum handles GET /api/v1/enums/:name
func ListEnum(c *fiber.Ctx) error {
	name := c.Params("name")
	enum, ok := metadata.Enums()[name]
	if !ok {
		return NewAppError("UNKNOWN_ENUM", fiber.StatusNotFound, fmt.Sprintf("Unknown enum: %s", name))
	}
	return c.JSON(fiber.Map{"data": enum.Options})
}
