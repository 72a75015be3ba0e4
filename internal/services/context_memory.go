package services

import (
	"context"

	"github.com/novaconsult/nova-backend/internal/models"
	"github.com/novaconsult/nova-backend/internal/repository"
	"github.com/sirupsen/logrus"
)

const (
	DefaultSessionID = "default"
	DefaultUserID    = "anonymous"
)

// PersistPolicy decides what Append does when the store rejects a turn.
type PersistPolicy int

const (
	// BestEffortPersist logs the failure and keeps the turn in memory only,
	// so a reply that was already generated still reaches the caller.
	BestEffortPersist PersistPolicy = iota
	// StrictPersist returns the failure to the caller.
	StrictPersist
)

func (p PersistPolicy) String() string {
	if p == StrictPersist {
		return "strict"
	}
	return "best_effort"
}

// MemoryOption configures a ConversationMemory.
type MemoryOption func(*ConversationMemory)

// WithPersistPolicy overrides the default best-effort policy.
func WithPersistPolicy(policy PersistPolicy) MemoryOption {
	return func(m *ConversationMemory) {
		m.policy = policy
	}
}

// ConversationMemory is the request-scoped view over the turns of one
// (session, user, mode) triple. It is not safe for concurrent use.
type ConversationMemory struct {
	turns  repository.TurnRepository
	log    *logrus.Logger
	key    models.SessionKey
	policy PersistPolicy

	messages []models.Turn
}

// NewConversationMemory binds a memory to a triple. Empty identifiers fall
// back to "default" and "anonymous", an empty mode to consultant.
func NewConversationMemory(
	turns repository.TurnRepository,
	log *logrus.Logger,
	sessionID, userID string,
	mode models.Mode,
	opts ...MemoryOption,
) (*ConversationMemory, error) {
	if sessionID == "" {
		sessionID = DefaultSessionID
	}
	if userID == "" {
		userID = DefaultUserID
	}
	mode, err := models.ParseMode(string(mode))
	if err != nil {
		return nil, err
	}

	m := &ConversationMemory{
		turns:  turns,
		log:    log,
		key:    models.SessionKey{SessionID: sessionID, UserID: userID, Mode: mode},
		policy: BestEffortPersist,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Key returns the bound triple.
func (m *ConversationMemory) Key() models.SessionKey {
	return m.key
}

func (m *ConversationMemory) fields() logrus.Fields {
	return logrus.Fields{
		"session_id": m.key.SessionID,
		"user_id":    m.key.UserID,
		"mode":       m.key.Mode,
	}
}

// inferRole picks the stored role of a turn that arrived without one.
func (m *ConversationMemory) inferRole(origin models.Origin) string {
	switch origin {
	case models.OriginModel:
		return string(m.key.Mode)
	default:
		return models.RoleStudent
	}
}

// Append adds a turn to the in-memory list and persists it under the
// memory's policy. Under BestEffortPersist a store failure is logged and
// Append returns nil; the in-memory list then holds a turn the store lacks.
func (m *ConversationMemory) Append(ctx context.Context, turn models.Turn) error {
	turn.SessionID = m.key.SessionID
	turn.UserID = m.key.UserID
	turn.Mode = m.key.Mode
	if turn.Role == "" {
		turn.Role = m.inferRole(turn.Origin)
	}

	m.messages = append(m.messages, turn)
	idx := len(m.messages) - 1

	stored, err := m.turns.Insert(ctx, turn)
	if err != nil {
		if m.policy == StrictPersist {
			return err
		}
		m.log.WithFields(m.fields()).WithError(err).WithField("role", turn.Role).
			Error("Failed to persist turn, keeping it in memory only")
		return nil
	}

	stored.Origin = turn.Origin
	m.messages[idx] = *stored
	return nil
}

// Load replaces the in-memory list with every persisted turn of the triple,
// oldest first.
func (m *ConversationMemory) Load(ctx context.Context) ([]models.Turn, error) {
	turns, err := m.turns.List(ctx, m.key)
	if err != nil {
		return nil, err
	}
	m.messages = turns
	return m.Messages(), nil
}

// Messages returns a copy of the in-memory list.
func (m *ConversationMemory) Messages() []models.Turn {
	out := make([]models.Turn, len(m.messages))
	copy(out, m.messages)
	return out
}

// MessagesByRole filters the in-memory list by role.
func (m *ConversationMemory) MessagesByRole(role string) []models.Turn {
	var out []models.Turn
	for _, turn := range m.messages {
		if turn.Role == role {
			out = append(out, turn)
		}
	}
	return out
}

// Window returns the n most recent persisted turns of the bound triple.
func (m *ConversationMemory) Window(ctx context.Context, n int, order models.Order) ([]models.Turn, error) {
	return m.turns.Window(ctx, m.key, n, order)
}

// WindowFor is Window for another mode of the same session and user.
func (m *ConversationMemory) WindowFor(ctx context.Context, n int, order models.Order, mode models.Mode) ([]models.Turn, error) {
	if !mode.Valid() {
		return nil, models.ValidationError("mode must be 'consultant' or 'docs_writer', got: %q", mode)
	}
	key := m.key
	key.Mode = mode
	return m.turns.Window(ctx, key, n, order)
}

// Clear deletes every persisted turn of the bound triple. It cannot be undone.
func (m *ConversationMemory) Clear(ctx context.Context) error {
	deleted, err := m.turns.Delete(ctx, m.key)
	if err != nil {
		return err
	}
	m.messages = nil
	m.log.WithFields(m.fields()).WithField("deleted", deleted).Info("Cleared conversation history")
	return nil
}

// SessionName returns the display name of any triple, "New Chat" when it
// has no turns.
func (m *ConversationMemory) SessionName(ctx context.Context, sessionID, userID string, mode models.Mode) (string, error) {
	return m.turns.SessionName(ctx, models.SessionKey{SessionID: sessionID, UserID: userID, Mode: mode})
}

// SetSessionName renames every turn of the bound triple.
func (m *ConversationMemory) SetSessionName(ctx context.Context, name string) error {
	if err := m.turns.SetSessionName(ctx, m.key, name); err != nil {
		return err
	}
	for i := range m.messages {
		m.messages[i].SessionName = name
	}
	return nil
}

// Count returns the number of persisted turns of the bound triple.
func (m *ConversationMemory) Count(ctx context.Context) (int, error) {
	return m.turns.Count(ctx, m.key)
}
