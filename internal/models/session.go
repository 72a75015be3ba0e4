package models

import "time"

// SessionInfo is one entry of a user's session list.
type SessionInfo struct {
	SessionID    string    `json:"session_id"`
	SessionName  string    `json:"session_name"`
	Mode         Mode      `json:"mode"`
	LastActivity time.Time `json:"last_activity"`
}

// History is the replayable record of one session.
type History struct {
	Turns []Turn `json:"messages"`
	// LastMode is the mode of the newest turn of the session in any mode,
	// empty when the session has no turns.
	LastMode Mode `json:"last_mode,omitempty"`
}
