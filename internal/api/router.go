package api

import (
	_ "embed"
	"io"
	"os"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
)

//go:embed web/index.html
var indexHTML []byte

// RouterConfig holds the HTTP-level settings.
type RouterConfig struct {
	AllowedOrigins string
	RateLimitRPS   float64
	RateLimitBurst int
	AccessLog      io.Writer // defaults to stdout
}

// NewRouter builds the fiber app with routes and middleware.
func NewRouter(h *Handler, cfg RouterConfig) *fiber.App {
	if cfg.AccessLog == nil {
		cfg.AccessLog = os.Stdout
	}
	if cfg.AllowedOrigins == "" {
		cfg.AllowedOrigins = "*"
	}
	if cfg.RateLimitRPS <= 0 {
		cfg.RateLimitRPS = 5
	}
	if cfg.RateLimitBurst < 1 {
		cfg.RateLimitBurst = 10
	}

	app := fiber.New(fiber.Config{
		AppName:               "videograb",
		DisableStartupMessage: true,
	})

	app.Use(fiberlogger.New(fiberlogger.Config{Output: cfg.AccessLog}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.AllowedOrigins,
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Content-Type, Authorization",
	}))

	app.Get("/", h.Index)
	app.Get("/health", h.Health)

	api := app.Group("/api")
	limit := RateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst)
	api.Post("/video-info", limit, h.VideoInfo)
	api.Post("/download", limit, h.StartDownload)
	api.Get("/progress/:id", h.Progress)

	return app
}
