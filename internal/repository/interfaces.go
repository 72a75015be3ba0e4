package repository

import (
	"context"

	"github.com/novaconsult/nova-backend/internal/models"
)

// TurnRepository defines turn storage operations. Every query is scoped by
// the (session, user, mode) triple unless stated otherwise.
type TurnRepository interface {
	// Insert stores a turn under the session's current name and returns it
	// with ID, SessionName and CreatedAt filled in.
	Insert(ctx context.Context, turn models.Turn) (*models.Turn, error)
	// List returns all turns of the triple, oldest first.
	List(ctx context.Context, key models.SessionKey) ([]models.Turn, error)
	// Window returns at most n turns of the session in mode, ordered by
	// timestamp in the requested direction.
	Window(ctx context.Context, key models.SessionKey, n int, order models.Order) ([]models.Turn, error)
	Count(ctx context.Context, key models.SessionKey) (int, error)
	Delete(ctx context.Context, key models.SessionKey) (int64, error)
	// SessionName returns the stored name, or DefaultSessionName when the
	// triple has no turns.
	SessionName(ctx context.Context, key models.SessionKey) (string, error)
	SetSessionName(ctx context.Context, key models.SessionKey, name string) error
	// ListSessions groups a user's turns by (session, mode), most recent first.
	ListSessions(ctx context.Context, userID string) ([]models.SessionInfo, error)
	// LastMode returns the mode of the newest turn of the session in any mode.
	LastMode(ctx context.Context, sessionID, userID string) (models.Mode, error)
}

// SummaryRepository defines summary storage operations. Summaries are
// append-only; the newest row wins.
type SummaryRepository interface {
	Insert(ctx context.Context, summary models.Summary) (*models.Summary, error)
	// Latest returns the newest summary, or an empty one when none exists.
	Latest(ctx context.Context, key models.SessionKey) (models.Summary, error)
}
