package models

import (
	"github.com/novaconsult/nova-backend/internal/models"
)

// MaxMessageLength bounds a chat message in characters.
const MaxMessageLength = 5000

// ChatRequest is the body of POST /api/chat. Missing ids are generated.
type ChatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id,omitempty"`
	UserID    string `json:"user_id,omitempty"`
	Mode      string `json:"mode,omitempty"` // consultant (default) or docs_writer
}

// ChatResponse carries the reply and the ids the client must reuse.
type ChatResponse struct {
	Response  string      `json:"response"`
	SessionID string      `json:"session_id"`
	UserID    string      `json:"user_id"`
	Mode      models.Mode `json:"mode"`
}

type SessionRequest struct {
	UserID string `json:"user_id,omitempty"`
}

type SessionResponse struct {
	SessionID string `json:"session_id"`
	UserID    string `json:"user_id"`
}

type SessionListResponse struct {
	UserID   string               `json:"user_id"`
	Sessions []models.SessionInfo `json:"sessions"`
}

type HistoryResponse struct {
	Messages  []models.Turn `json:"messages"`
	SessionID string        `json:"session_id"`
	UserID    string        `json:"user_id"`
	LastMode  models.Mode   `json:"last_mode,omitempty"`
}

type SessionNameResponse struct {
	SessionName string `json:"session_name"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
