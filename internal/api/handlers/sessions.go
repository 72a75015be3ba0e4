package handlers

import (
	"github.com/gofiber/fiber/v2"
	apimodels "github.com/novaconsult/nova-backend/internal/api/models"
	"github.com/novaconsult/nova-backend/internal/models"
	"github.com/novaconsult/nova-backend/internal/services"
)

// CreateSession handles POST /api/session/new. Nothing is stored until the
// first message arrives.
func CreateSession(svc *services.Services) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req apimodels.SessionRequest
		if len(c.Body()) > 0 {
			if err := c.BodyParser(&req); err != nil {
				return badRequest(c, "Invalid request body")
			}
		}

		sessionID, userID := svc.Orchestrator.NewSession(req.UserID)
		return c.JSON(apimodels.SessionResponse{
			SessionID: sessionID,
			UserID:    userID,
		})
	}
}

// GetSessions handles GET /api/sessions?user_id=
func GetSessions(svc *services.Services) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := c.Query("user_id")

		sessions, err := svc.Orchestrator.ListSessions(c.UserContext(), userID)
		if err != nil {
			return respondError(c, svc.Log, err, "Error retrieving sessions")
		}

		return c.JSON(apimodels.SessionListResponse{
			UserID:   userID,
			Sessions: sessions,
		})
	}
}

// sessionScope reads the session id from the path and user id and mode from
// the query string. The mode defaults to consultant.
func sessionScope(c *fiber.Ctx) (sessionID, userID string, mode models.Mode, err error) {
	mode, err = models.ParseMode(c.Query("mode"))
	return c.Params("id"), c.Query("user_id"), mode, err
}

// GetSessionHistory handles GET /api/session/:id/history
func GetSessionHistory(svc *services.Services) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sessionID, userID, mode, err := sessionScope(c)
		if err != nil {
			return respondError(c, svc.Log, err, "Error retrieving history")
		}

		history, err := svc.Orchestrator.GetHistory(c.UserContext(), sessionID, userID, mode)
		if err != nil {
			return respondError(c, svc.Log, err, "Error retrieving history")
		}

		return c.JSON(apimodels.HistoryResponse{
			Messages:  history.Turns,
			SessionID: sessionID,
			UserID:    userID,
			LastMode:  history.LastMode,
		})
	}
}

// GetSessionName handles GET /api/session/:id/name
func GetSessionName(svc *services.Services) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sessionID, userID, mode, err := sessionScope(c)
		if err != nil {
			return respondError(c, svc.Log, err, "Error retrieving session name")
		}

		name, err := svc.Orchestrator.GetSessionName(c.UserContext(), sessionID, userID, mode)
		if err != nil {
			return respondError(c, svc.Log, err, "Error retrieving session name")
		}

		return c.JSON(apimodels.SessionNameResponse{SessionName: name})
	}
}

// ClearHistory handles DELETE /api/session/:id/clear
func ClearHistory(svc *services.Services) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sessionID, userID, mode, err := sessionScope(c)
		if err != nil {
			return respondError(c, svc.Log, err, "Error clearing history")
		}

		if err := svc.Orchestrator.ClearHistory(c.UserContext(), sessionID, userID, mode); err != nil {
			return respondError(c, svc.Log, err, "Error clearing history")
		}

		return c.JSON(fiber.Map{
			"message": "History cleared successfully",
		})
	}
}
