package handlers

import (
	"unicode/utf8"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	apimodels "github.com/novaconsult/nova-backend/internal/api/models"
	"github.com/novaconsult/nova-backend/internal/models"
	"github.com/novaconsult/nova-backend/internal/services"
	"github.com/sirupsen/logrus"
)

// Chat handles POST /api/chat
func Chat(svc *services.Services) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req apimodels.ChatRequest
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "Invalid request body")
		}

		length := utf8.RuneCountInString(req.Message)
		if length < 1 || length > apimodels.MaxMessageLength {
			return badRequest(c, "message must be between 1 and 5000 characters")
		}

		mode, err := models.ParseMode(req.Mode)
		if err != nil {
			return respondError(c, svc.Log, err, "Error processing request")
		}

		// Generate IDs if not provided
		if req.SessionID == "" {
			req.SessionID = uuid.NewString()
		}
		if req.UserID == "" {
			req.UserID = uuid.NewString()
		}

		svc.Log.WithFields(logrus.Fields{
			"session_id": req.SessionID,
			"user_id":    req.UserID,
			"mode":       mode,
		}).Debug("Chat request")

		reply, err := svc.Orchestrator.SendMessage(c.UserContext(), req.SessionID, req.UserID, mode, req.Message)
		if err != nil {
			return respondError(c, svc.Log, err, "Error processing request")
		}

		return c.JSON(apimodels.ChatResponse{
			Response:  reply,
			SessionID: req.SessionID,
			UserID:    req.UserID,
			Mode:      mode,
		})
	}
}
