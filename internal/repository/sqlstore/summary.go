package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/novaconsult/nova-backend/internal/database"
	"github.com/novaconsult/nova-backend/internal/models"
)

type summaryRow struct {
	ID               int64     `db:"id"`
	SessionID        string    `db:"session_id"`
	UserID           string    `db:"user_id"`
	Mode             string    `db:"mode"`
	Summary          string    `db:"summary"`
	LastMessageCount int       `db:"last_message_count"`
	UpdatedAt        timestamp `db:"updated_at"`
}

// SummaryStore implements repository.SummaryRepository. Rows are only ever
// appended.
type SummaryStore struct {
	db  *database.DB
	now func() time.Time
}

// NewSummaryStore creates a summary store over an open, migrated database.
func NewSummaryStore(db *database.DB) *SummaryStore {
	return &SummaryStore{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// Insert appends a summary row.
func (s *SummaryStore) Insert(ctx context.Context, summary models.Summary) (*models.Summary, error) {
	if summary.UpdatedAt.IsZero() {
		summary.UpdatedAt = s.now()
	}
	summary.UpdatedAt = summary.UpdatedAt.UTC()

	err := s.db.Transact(ctx, "insert summary", func(tx *sqlx.Tx) error {
		query := tx.Rebind(`
			INSERT INTO chat_summary (session_id, user_id, mode, summary, last_message_count, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)
			RETURNING id`)
		return tx.QueryRowxContext(ctx, query,
			summary.SessionID, summary.UserID, string(summary.Mode),
			summary.Text, summary.LastCoveredCount, summary.UpdatedAt,
		).Scan(&summary.ID)
	})
	if err != nil {
		return nil, err
	}

	return &summary, nil
}

// Latest returns the newest summary of the triple, or an empty summary
// covering nothing when none was stored.
func (s *SummaryStore) Latest(ctx context.Context, key models.SessionKey) (models.Summary, error) {
	empty := models.Summary{SessionID: key.SessionID, UserID: key.UserID, Mode: key.Mode}

	var row summaryRow
	found := false
	err := s.db.Transact(ctx, "get latest summary", func(tx *sqlx.Tx) error {
		query := tx.Rebind(`
			SELECT id, session_id, user_id, mode, summary, last_message_count, updated_at
			FROM chat_summary
			WHERE session_id = ? AND user_id = ? AND mode = ?
			ORDER BY updated_at DESC, id DESC
			LIMIT 1`)
		err := tx.GetContext(ctx, &row, query, key.SessionID, key.UserID, string(key.Mode))
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return nil
	})
	if err != nil {
		return models.Summary{}, err
	}
	if !found {
		return empty, nil
	}

	return models.Summary{
		ID:               row.ID,
		SessionID:        row.SessionID,
		UserID:           row.UserID,
		Mode:             models.Mode(row.Mode),
		Text:             row.Summary,
		LastCoveredCount: row.LastMessageCount,
		UpdatedAt:        row.UpdatedAt.Time,
	}, nil
}
