package server

import (
	"log/slog"
	"time"

	"pos-backend/internal/apperr"
	"pos-backend/internal/audit"
	"pos-backend/internal/catalog"
	"pos-backend/internal/dashboard"
	"pos-backend/internal/database"
	"pos-backend/internal/enrichment"
	"pos-backend/internal/orders"
	"pos-backend/internal/stats"
	"pos-backend/internal/telemetry"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const requestIDKey = "requestid"

type Deps struct {
	DB          *gorm.DB
	Catalog     *catalog.Store
	Orders      *orders.Recorder
	Stats       *stats.Engine
	Dashboard   *dashboard.Facade
	Audit       *audit.Service
	Lookup      *enrichment.Client
	CORSOrigins string
	UploadsDir  string // empty disables /uploads
}

// NewDeps wires every service onto one database handle.
func NewDeps(db *gorm.DB, lookup *enrichment.Client) Deps {
	engine := stats.NewEngine(db)
	return Deps{
		DB:        db,
		Catalog:   catalog.NewStore(db),
		Orders:    orders.NewRecorder(db),
		Stats:     engine,
		Dashboard: dashboard.NewFacade(engine),
		Audit:     audit.NewService(db),
		Lookup:    lookup,
	}
}

func NewApp(d Deps) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler:          apperr.ErrorHandler,
		UnescapePath:          true,
		BodyLimit:             16 << 20,
		DisableStartupMessage: true,
	})

	app.Use(recover.New())
	app.Use(requestid.New(requestid.Config{
		Generator:  uuid.NewString,
		ContextKey: requestIDKey,
	}))
	app.Use(requestLogger)
	if d.CORSOrigins != "" {
		app.Use(cors.New(cors.Config{
			AllowOrigins: d.CORSOrigins,
			AllowHeaders: "Origin, Content-Type, Accept, " + orders.IdempotencyKeyHeader,
			AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
		}))
	}

	if d.UploadsDir != "" {
		app.Static(enrichment.UploadsPrefix, d.UploadsDir)
	}

	app.Get("/healthz", func(c *fiber.Ctx) error {
		if err := database.Ping(d.DB); err != nil {
			slog.ErrorContext(c.UserContext(), "health check failed", "error", err)
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "unavailable"})
		}
		return c.JSON(fiber.Map{"status": "ok"})
	})

	api := app.Group("/api")

	// Catalog
	api.Get("/products", catalog.ListProductsHandler(d.Catalog))
	api.Post("/products", catalog.CreateProductHandler(d.Catalog))
	api.Post("/products/import", catalog.ImportProductsHandler(d.Catalog))
	api.Get("/products/by-id/:id", catalog.GetProductHandler(d.Catalog))
	api.Put("/products/by-id/:id", catalog.UpdateProductByIDHandler(d.Catalog))
	api.Delete("/products/by-id/:id", catalog.DeleteProductByIDHandler(d.Catalog))
	api.Post("/products/by-id/:id/barcodes", catalog.AddBarcodesHandler(d.Catalog))
	api.Get("/products/by-id/:id/stats", stats.ProductStatsHandler(d.Stats))
	api.Get("/products/:barcode", catalog.ResolveHandler(d.Catalog))
	api.Put("/products/:barcode", catalog.UpdateProductHandler(d.Catalog))
	api.Delete("/products/:barcode", catalog.DeleteProductHandler(d.Catalog))
	api.Delete("/barcodes/:barcode", catalog.RemoveBarcodeHandler(d.Catalog))

	// Orders
	api.Post("/orders", orders.CreateOrderHandler(d.Orders))
	api.Get("/orders", orders.ListOrdersHandler(d.Orders))
	api.Get("/orders/:id/items", orders.ListLineItemsHandler(d.Orders))

	// Stats
	api.Get("/stats/dashboard", dashboard.Handler(d.Dashboard))
	api.Get("/stats/today", stats.TodayStatsHandler(d.Stats))
	api.Get("/stats/top-products", stats.TopProductsHandler(d.Stats))

	if d.Lookup != nil {
		api.Get("/lookup/:barcode", enrichment.LookupHandler(d.Lookup))
	}
	api.Get("/audit-logs", audit.ListAuditLogsHandler(d.Audit))

	return app
}

// requestLogger puts the request id on the user context and logs every
// request once it has been handled.
func requestLogger(c *fiber.Ctx) error {
	start := time.Now()
	id, _ := c.Locals(requestIDKey).(string)
	c.SetUserContext(telemetry.WithRequestID(c.UserContext(), id))

	err := c.Next()

	status := c.Response().StatusCode()
	if err != nil {
		status = apperr.Status(err)
	}
	level := slog.LevelInfo
	if status >= fiber.StatusInternalServerError {
		level = slog.LevelError
	}
	slog.Log(c.UserContext(), level, "request",
		"method", c.Method(),
		"path", c.Path(),
		"status", status,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return err
}
