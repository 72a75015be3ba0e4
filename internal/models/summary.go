package models

import "time"

// Summary is the compressed history of a session up to LastCoveredCount turns.
type Summary struct {
	ID               int64     `json:"id"`
	SessionID        string    `json:"session_id"`
	UserID           string    `json:"user_id"`
	Mode             Mode      `json:"mode"`
	Text             string    `json:"summary"`
	LastCoveredCount int       `json:"last_message_count"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// Empty reports whether no summary text exists yet.
func (s Summary) Empty() bool {
	return s.Text == ""
}
