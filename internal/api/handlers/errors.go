package handlers

import (
	"github.com/gofiber/fiber/v2"
	apimodels "github.com/novaconsult/nova-backend/internal/api/models"
	"github.com/novaconsult/nova-backend/internal/models"
	"github.com/sirupsen/logrus"
)

// respondError maps a service error onto a status code. Only validation
// messages reach the client; everything else is logged and reported
// generically.
func respondError(c *fiber.Ctx, log *logrus.Logger, err error, message string) error {
	if models.IsValidation(err) {
		return c.Status(fiber.StatusBadRequest).JSON(apimodels.ErrorResponse{Error: err.Error()})
	}

	log.WithError(err).WithFields(logrus.Fields{
		"method": c.Method(),
		"path":   c.Path(),
	}).Error(message)

	return c.Status(fiber.StatusInternalServerError).JSON(apimodels.ErrorResponse{Error: message})
}

func badRequest(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusBadRequest).JSON(apimodels.ErrorResponse{Error: message})
}
