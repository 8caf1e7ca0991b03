package dashboard

import (
	"context"

	"pos-backend/internal/stats"

	"github.com/gofiber/fiber/v2"
)

// Source is the part of the stats engine the dashboard reads from.
type Source interface {
	TodayStats(ctx context.Context) (stats.DayStats, error)
	TopProducts(ctx context.Context, n int) ([]stats.TopProduct, error)
}

type Data struct {
	Today       stats.DayStats     `json:"today"`
	TopProducts []stats.TopProduct `json:"top_products"`
}

type Facade struct {
	src Source
}

func NewFacade(src Source) *Facade {
	return &Facade{src: src}
}

// Dashboard returns today's figures and the five best sellers in one call.
func (f *Facade) Dashboard(ctx context.Context) (*Data, error) {
	today, err := f.src.TodayStats(ctx)
	if err != nil {
		return nil, err
	}
	top, err := f.src.TopProducts(ctx, stats.DefaultTopN)
	if err != nil {
		return nil, err
	}
	return &Data{Today: today, TopProducts: top}, nil
}

// GET /api/stats/dashboard
func Handler(f *Facade) fiber.Handler {
	return func(c *fiber.Ctx) error {
		data, err := f.Dashboard(c.UserContext())
		if err != nil {
			return err
		}
		return c.JSON(data)
	}
}
