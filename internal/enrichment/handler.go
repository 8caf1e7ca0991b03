package enrichment

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

// GET /api/lookup/:barcode
func LookupHandler(client *Client) fiber.Handler {
	return func(c *fiber.Ctx) error {
		barcode := strings.TrimSpace(c.Params("barcode"))
		if barcode == "" {
			return fiber.NewError(fiber.StatusBadRequest, "barcode is required")
		}
		return c.JSON(client.Lookup(c.UserContext(), barcode))
	}
}
