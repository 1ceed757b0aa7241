package api

import (
	"time"

	"github.com/Caia-Tech/caia-scribe/internal/metrics"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

// Version is reported by the health endpoint
var Version = "0.1.0"

// ServerConfig configures the Fiber app. The request body limit follows
// the handlers' upload limit.
type ServerConfig struct {
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	CORSOrigins  string
	AccessLog    bool
}

// multipart framing on top of the image itself
const bodyOverhead = 1024 * 1024

// NewApp builds the Fiber app with middleware and routes. m may be nil.
func NewApp(h *Handlers, m *metrics.Metrics, config ServerConfig) *fiber.App {
	if config.CORSOrigins == "" {
		config.CORSOrigins = "*"
	}

	app := fiber.New(fiber.Config{
		AppName:               "Caia Scribe API",
		DisableStartupMessage: true,
		ReadTimeout:           config.ReadTimeout,
		WriteTimeout:          config.WriteTimeout,
		BodyLimit:             int(h.maxUploadSize) + bodyOverhead,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error": err.Error(),
			})
		},
	})

	app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
	}))

	if config.AccessLog {
		app.Use(logger.New(logger.Config{
			Format:     "${time} | ${status} | ${latency} | ${ip} | ${method} | ${path} | ${error}\n",
			TimeFormat: "15:04:05",
			TimeZone:   "UTC",
		}))
	}

	app.Use(cors.New(cors.Config{
		AllowOrigins: config.CORSOrigins,
		AllowHeaders: "Origin, Content-Type, Accept",
		AllowMethods: "GET, POST, OPTIONS",
	}))

	if m != nil {
		app.Use(m.MetricsMiddleware())
		app.Get("/metrics", m.Handler())
	}

	SetupRoutes(app, h)
	return app
}

// SetupRoutes configures all API routes
func SetupRoutes(app *fiber.App, h *Handlers) {
	app.Get("/health", h.Health)

	v1 := app.Group("/api/v1")
	v1.Get("/status", h.Status)
	v1.Post("/recognize", h.Recognize)
	v1.Post("/export", h.Export)

	hist := v1.Group("/history")
	hist.Get("/", h.ListHistory)
	hist.Get("/:id", h.GetHistoryEntry)
	hist.Get("/:id/download", h.DownloadHistoryEntry)

	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"service": "Caia Scribe",
			"version": Version,
			"docs":    "https://github.com/Caia-Tech/caia-scribe",
		})
	})
}
