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

type turnRow struct {
	ID          int64     `db:"id"`
	SessionID   string    `db:"session_id"`
	UserID      string    `db:"user_id"`
	Mode        string    `db:"mode"`
	SessionName string    `db:"session_name"`
	Role        string    `db:"role"`
	Content     string    `db:"content"`
	Metadata    string    `db:"metadata"`
	CreatedAt   timestamp `db:"created_at"`
}

func (r turnRow) toModel() (models.Turn, error) {
	metadata, err := decodeMetadata(r.ID, r.Metadata)
	if err != nil {
		return models.Turn{}, err
	}
	return models.Turn{
		ID:          r.ID,
		SessionID:   r.SessionID,
		UserID:      r.UserID,
		Mode:        models.Mode(r.Mode),
		SessionName: r.SessionName,
		Role:        r.Role,
		Content:     r.Content,
		Metadata:    metadata,
		CreatedAt:   r.CreatedAt.Time,
	}, nil
}

func toModels(rows []turnRow) ([]models.Turn, error) {
	turns := make([]models.Turn, 0, len(rows))
	for _, row := range rows {
		turn, err := row.toModel()
		if err != nil {
			return nil, err
		}
		turns = append(turns, turn)
	}
	return turns, nil
}

const turnColumns = `id, session_id, user_id, mode, session_name, role, content, metadata, created_at`

// TurnStore implements repository.TurnRepository on SQLite or PostgreSQL.
type TurnStore struct {
	db  *database.DB
	now func() time.Time
}

// NewTurnStore creates a turn store over an open, migrated database.
func NewTurnStore(db *database.DB) *TurnStore {
	return &TurnStore{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// Insert stores a turn. The current session name of the triple is copied
// onto the new row inside the same transaction so every row of the triple
// keeps sharing one name.
func (s *TurnStore) Insert(ctx context.Context, turn models.Turn) (*models.Turn, error) {
	metadata, err := encodeMetadata(turn.Metadata)
	if err != nil {
		return nil, err
	}
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = s.now()
	}
	turn.CreatedAt = turn.CreatedAt.UTC()
	if turn.Metadata == nil {
		turn.Metadata = map[string]any{}
	}

	key := models.SessionKey{SessionID: turn.SessionID, UserID: turn.UserID, Mode: turn.Mode}
	err = s.db.Transact(ctx, "insert turn", func(tx *sqlx.Tx) error {
		name, err := currentName(ctx, tx, key)
		if err != nil {
			return err
		}
		switch {
		case name != "":
			turn.SessionName = name
		case turn.SessionName == "":
			turn.SessionName = models.DefaultSessionName
		}

		query := tx.Rebind(`
			INSERT INTO chat_message (session_id, user_id, mode, session_name, role, content, metadata, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			RETURNING id`)
		return tx.QueryRowxContext(ctx, query,
			turn.SessionID, turn.UserID, string(turn.Mode), turn.SessionName,
			turn.Role, turn.Content, metadata, turn.CreatedAt,
		).Scan(&turn.ID)
	})
	if err != nil {
		return nil, err
	}

	return &turn, nil
}

// currentName returns the name on the newest row of the triple, or "" when
// the triple has no rows yet.
func currentName(ctx context.Context, tx *sqlx.Tx, key models.SessionKey) (string, error) {
	var name string
	query := tx.Rebind(`
		SELECT session_name FROM chat_message
		WHERE session_id = ? AND user_id = ? AND mode = ?
		ORDER BY created_at DESC, id DESC
		LIMIT 1`)
	err := tx.GetContext(ctx, &name, query, key.SessionID, key.UserID, string(key.Mode))
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return name, err
}

// List returns every turn of the triple, oldest first.
func (s *TurnStore) List(ctx context.Context, key models.SessionKey) ([]models.Turn, error) {
	var rows []turnRow
	err := s.db.Transact(ctx, "list turns", func(tx *sqlx.Tx) error {
		query := tx.Rebind(`SELECT ` + turnColumns + ` FROM chat_message
			WHERE session_id = ? AND user_id = ? AND mode = ?
			ORDER BY created_at ASC, id ASC`)
		return tx.SelectContext(ctx, &rows, query, key.SessionID, key.UserID, string(key.Mode))
	})
	if err != nil {
		return nil, err
	}
	return toModels(rows)
}

// Window returns the n most recent turns of the triple. Ascending order is
// the exact reverse of descending order over the same rows.
func (s *TurnStore) Window(ctx context.Context, key models.SessionKey, n int, order models.Order) ([]models.Turn, error) {
	if n <= 0 {
		return []models.Turn{}, nil
	}
	if order != models.OrderAsc && order != models.OrderDesc {
		return nil, models.ValidationError("order must be ASC or DESC, got: %q", order)
	}

	var rows []turnRow
	err := s.db.Transact(ctx, "window turns", func(tx *sqlx.Tx) error {
		query := tx.Rebind(`SELECT ` + turnColumns + ` FROM chat_message
			WHERE session_id = ? AND user_id = ? AND mode = ?
			ORDER BY created_at DESC, id DESC
			LIMIT ?`)
		return tx.SelectContext(ctx, &rows, query, key.SessionID, key.UserID, string(key.Mode), n)
	})
	if err != nil {
		return nil, err
	}

	if order == models.OrderAsc {
		for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
			rows[i], rows[j] = rows[j], rows[i]
		}
	}
	return toModels(rows)
}

// Count returns the number of persisted turns of the triple.
func (s *TurnStore) Count(ctx context.Context, key models.SessionKey) (int, error) {
	var count int
	err := s.db.Transact(ctx, "count turns", func(tx *sqlx.Tx) error {
		query := tx.Rebind(`SELECT COUNT(*) FROM chat_message WHERE session_id = ? AND user_id = ? AND mode = ?`)
		return tx.GetContext(ctx, &count, query, key.SessionID, key.UserID, string(key.Mode))
	})
	return count, err
}

// Delete removes every turn of the triple and reports how many went.
func (s *TurnStore) Delete(ctx context.Context, key models.SessionKey) (int64, error) {
	var deleted int64
	err := s.db.Transact(ctx, "delete turns", func(tx *sqlx.Tx) error {
		query := tx.Rebind(`DELETE FROM chat_message WHERE session_id = ? AND user_id = ? AND mode = ?`)
		res, err := tx.ExecContext(ctx, query, key.SessionID, key.UserID, string(key.Mode))
		if err != nil {
			return err
		}
		deleted, err = res.RowsAffected()
		return err
	})
	return deleted, err
}

// SessionName returns the name on the first row of the triple.
func (s *TurnStore) SessionName(ctx context.Context, key models.SessionKey) (string, error) {
	name := models.DefaultSessionName
	err := s.db.Transact(ctx, "get session name", func(tx *sqlx.Tx) error {
		query := tx.Rebind(`
			SELECT session_name FROM chat_message
			WHERE session_id = ? AND user_id = ? AND mode = ?
			ORDER BY created_at ASC, id ASC
			LIMIT 1`)
		err := tx.GetContext(ctx, &name, query, key.SessionID, key.UserID, string(key.Mode))
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		return err
	})
	if err != nil {
		return "", err
	}
	return name, nil
}

// SetSessionName renames every row of the triple.
func (s *TurnStore) SetSessionName(ctx context.Context, key models.SessionKey, name string) error {
	return s.db.Transact(ctx, "set session name", func(tx *sqlx.Tx) error {
		query := tx.Rebind(`UPDATE chat_message SET session_name = ? WHERE session_id = ? AND user_id = ? AND mode = ?`)
		_, err := tx.ExecContext(ctx, query, name, key.SessionID, key.UserID, string(key.Mode))
		return err
	})
}

type sessionRow struct {
	SessionID    string    `db:"session_id"`
	Mode         string    `db:"mode"`
	SessionName  string    `db:"session_name"`
	LastActivity timestamp `db:"last_activity"`
}

// ListSessions returns one entry per (session, mode) the user has turns in,
// most recently active first.
func (s *TurnStore) ListSessions(ctx context.Context, userID string) ([]models.SessionInfo, error) {
	var rows []sessionRow
	err := s.db.Transact(ctx, "list sessions", func(tx *sqlx.Tx) error {
		query := tx.Rebind(`
			SELECT session_id, mode, MAX(session_name) AS session_name, MAX(created_at) AS last_activity
			FROM chat_message
			WHERE user_id = ?
			GROUP BY session_id, mode
			ORDER BY last_activity DESC, session_id ASC, mode ASC`)
		return tx.SelectContext(ctx, &rows, query, userID)
	})
	if err != nil {
		return nil, err
	}

	sessions := make([]models.SessionInfo, 0, len(rows))
	for _, row := range rows {
		sessions = append(sessions, models.SessionInfo{
			SessionID:    row.SessionID,
			SessionName:  row.SessionName,
			Mode:         models.Mode(row.Mode),
			LastActivity: row.LastActivity.Time,
		})
	}
	return sessions, nil
}

// LastMode returns the mode of the newest turn of the session in any mode,
// or "" when the session has no turns.
func (s *TurnStore) LastMode(ctx context.Context, sessionID, userID string) (models.Mode, error) {
	var mode string
	err := s.db.Transact(ctx, "get last mode", func(tx *sqlx.Tx) error {
		query := tx.Rebind(`
			SELECT mode FROM chat_message
			WHERE session_id = ? AND user_id = ?
			ORDER BY created_at DESC, id DESC
			LIMIT 1`)
		err := tx.GetContext(ctx, &mode, query, sessionID, userID)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		return err
	})
	return models.Mode(mode), err
}
