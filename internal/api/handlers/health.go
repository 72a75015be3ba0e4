package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/novaconsult/nova-backend/internal/services"
)

// Health handles GET /health. A degraded store answers 503.
func Health(svc *services.Services) fiber.Handler {
	return func(c *fiber.Ctx) error {
		report := svc.Health.Check(c.UserContext())
		if report.Status != "healthy" {
			return c.Status(fiber.StatusServiceUnavailable).JSON(report)
		}
		return c.JSON(report)
	}
}
