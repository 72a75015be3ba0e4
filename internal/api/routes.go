package api

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/novaconsult/nova-backend/internal/api/handlers"
	"github.com/novaconsult/nova-backend/internal/api/middleware"
	"github.com/novaconsult/nova-backend/internal/config"
	"github.com/novaconsult/nova-backend/internal/services"
)

// NewApp builds the fiber application with middleware and routes.
func NewApp(svc *services.Services, cfg config.ServerConfig) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "Nova Backend",
		ErrorHandler:          errorHandler,
		DisableStartupMessage: true,
	})

	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Output: svc.Log.Out,
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.CORSOrigins,
		AllowHeaders: "Origin, Content-Type, Accept",
		AllowMethods: "GET, POST, DELETE, OPTIONS",
	}))

	SetupRoutes(app, svc, cfg)
	return app
}

// SetupRoutes configures all API routes
func SetupRoutes(app *fiber.App, svc *services.Services, cfg config.ServerConfig) {
	api := app.Group("/api")

	// Chat
	api.Post("/chat", middleware.ChatRateLimit(cfg.ChatRateLimit, time.Minute), handlers.Chat(svc))

	// Session management
	api.Post("/session/new", handlers.CreateSession(svc))
	api.Get("/sessions", handlers.GetSessions(svc))
	api.Get("/session/:id/history", handlers.GetSessionHistory(svc))
	api.Get("/session/:id/name", handlers.GetSessionName(svc))
	api.Delete("/session/:id/clear", handlers.ClearHistory(svc))

	// Health check
	app.Get("/health", handlers.Health(svc))
}

func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal server error"

	var e *fiber.Error
	if errors.As(err, &e) {
		code = e.Code
		message = e.Message
	}

	return c.Status(code).JSON(fiber.Map{
		"error": message,
		"code":  code,
	})
}
