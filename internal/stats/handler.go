package stats

import (
	"pos-backend/internal/apperr"

	"github.com/gofiber/fiber/v2"
)

// GET /api/stats/today?valuation=current|snapshot
func TodayStatsHandler(e *Engine) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var (
			s   DayStats
			err error
		)
		switch c.Query("valuation", "current") {
		case "current":
			s, err = e.TodayStats(c.UserContext())
		case "snapshot":
			s, err = e.TodaySnapshotStats(c.UserContext())
		default:
			return apperr.Invalid("valuation", "must_be_current_or_snapshot")
		}
		if err != nil {
			return err
		}
		return c.JSON(s)
	}
}

// GET /api/stats/top-products?limit=5
func TopProductsHandler(e *Engine) fiber.Handler {
	return func(c *fiber.Ctx) error {
		limit := c.QueryInt("limit", DefaultTopN)
		top, err := e.TopProducts(c.UserContext(), limit)
		if err != nil {
			return err
		}
		return c.JSON(top)
	}
}

// GET /api/products/by-id/:id/stats
func ProductStatsHandler(e *Engine) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := c.ParamsInt("id")
		if err != nil || id <= 0 {
			return fiber.NewError(fiber.StatusBadRequest, "product id is invalid")
		}
		s, err := e.ProductStats(c.UserContext(), uint(id))
		if err != nil {
			return err
		}
		return c.JSON(s)
	}
}
