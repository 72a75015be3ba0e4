package models

import (
	"fmt"
	"time"
)

// DefaultSessionName is the display name of a session nobody has named yet.
const DefaultSessionName = "New Chat"

// Mode is the conversation persona a session runs under.
type Mode string

const (
	ModeConsultant Mode = "consultant"
	ModeDocsWriter Mode = "docs_writer"
)

// ParseMode validates a mode string. An empty string yields the default
// consultant mode.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "":
		return ModeConsultant, nil
	case ModeConsultant, ModeDocsWriter:
		return Mode(s), nil
	default:
		return "", ValidationError("mode must be 'consultant' or 'docs_writer', got: %q", s)
	}
}

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	return m == ModeConsultant || m == ModeDocsWriter
}

func (m Mode) String() string { return string(m) }

// Origin says who produced a turn.
type Origin string

const (
	OriginUnknown Origin = ""
	OriginUser    Origin = "user"
	OriginModel   Origin = "model"
)

// Roles stored on turns.
const (
	RoleStudent    = "student"
	RoleConsultant = "consultant"
	RoleDocsWriter = "docs_writer"
)

// Turn is one message of a conversation.
type Turn struct {
	ID          int64          `json:"id"`
	SessionID   string         `json:"session_id"`
	UserID      string         `json:"user_id"`
	Mode        Mode           `json:"mode"`
	SessionName string         `json:"session_name"`
	Origin      Origin         `json:"-"`
	Role        string         `json:"role"`
	Content     string         `json:"content"`
	Metadata    map[string]any `json:"metadata"`
	CreatedAt   time.Time      `json:"created_at"`
}

// SessionKey scopes every turn query.
type SessionKey struct {
	SessionID string
	UserID    string
	Mode      Mode
}

func (k SessionKey) String() string {
	return fmt.Sprintf("%s/%s/%s", k.UserID, k.SessionID, k.Mode)
}

// Order is the timestamp ordering of a turn window.
type Order string

const (
	OrderAsc  Order = "ASC"
	OrderDesc Order = "DESC"
)
