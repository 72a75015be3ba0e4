package services

import (
	"context"
	"errors"
	"testing"

	"github.com/novaconsult/nova-backend/internal/logging"
	"github.com/novaconsult/nova-backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConversationMemory_Defaults(t *testing.T) {
	env := newTestEnv(t, 10)

	mem, err := NewConversationMemory(env.turns, logging.Discard(), "", "", "")
	require.NoError(t, err)
	assert.Equal(t, models.SessionKey{SessionID: "default", UserID: "anonymous", Mode: models.ModeConsultant}, mem.Key())

	_, err = NewConversationMemory(env.turns, logging.Discard(), "S", "U", models.Mode("poet"))
	assert.True(t, errors.Is(err, models.ErrValidation))
}

func TestConversationMemory_RoleInference(t *testing.T) {
	tests := []struct {
		name   string
		mode   models.Mode
		turn   models.Turn
		expect string
	}{
		{"user turn", models.ModeConsultant, models.Turn{Origin: models.OriginUser}, "student"},
		{"model turn as consultant", models.ModeConsultant, models.Turn{Origin: models.OriginModel}, "consultant"},
		{"model turn as docs writer", models.ModeDocsWriter, models.Turn{Origin: models.OriginModel}, "docs_writer"},
		{"unknown origin", models.ModeDocsWriter, models.Turn{}, "student"},
		{"explicit role kept", models.ModeConsultant, models.Turn{Origin: models.OriginModel, Role: "reviewer"}, "reviewer"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, 10)
			mem, err := NewConversationMemory(env.turns, logging.Discard(), "S", "U", tt.mode)
			require.NoError(t, err)

			tt.turn.Content = "text"
			require.NoError(t, mem.Append(context.Background(), tt.turn))

			turns, err := mem.Load(context.Background())
			require.NoError(t, err)
			require.Len(t, turns, 1)
			assert.Equal(t, tt.expect, turns[0].Role)
		})
	}
}

func TestConversationMemory_HistoryScenario(t *testing.T) {
	env := newTestEnv(t, 10)
	ctx := context.Background()
	mem, err := NewConversationMemory(env.turns, logging.Discard(), "S", "U", models.ModeConsultant)
	require.NoError(t, err)

	require.NoError(t, mem.Append(ctx, models.Turn{Role: "student", Content: "Hello"}))
	require.NoError(t, mem.Append(ctx, models.Turn{Role: "consultant", Content: "Hi!"}))

	history, err := env.orch.GetHistory(ctx, "S", "U", models.ModeConsultant)
	require.NoError(t, err)
	require.Len(t, history.Turns, 2)
	assert.Equal(t, "student", history.Turns[0].Role)
	assert.Equal(t, "Hello", history.Turns[0].Content)
	assert.Equal(t, "consultant", history.Turns[1].Role)
	assert.Equal(t, "Hi!", history.Turns[1].Content)

	name, err := env.orch.GetSessionName(ctx, "S", "U", models.ModeConsultant)
	require.NoError(t, err)
	assert.Equal(t, "New Chat", name)
}

func TestConversationMemory_CountAndLoad(t *testing.T) {
	env := newTestEnv(t, 10)
	ctx := context.Background()
	mem, err := NewConversationMemory(env.turns, logging.Discard(), "S", "U", models.ModeConsultant)
	require.NoError(t, err)

	for i := 0; i < 9; i++ {
		origin := models.OriginUser
		if i%2 == 1 {
			origin = models.OriginModel
		}
		require.NoError(t, mem.Append(ctx, models.Turn{Origin: origin, Content: "m"}))
	}

	count, err := mem.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 9, count)

	turns, err := mem.Load(ctx)
	require.NoError(t, err)
	require.Len(t, turns, 9)
	for i := 1; i < len(turns); i++ {
		assert.False(t, turns[i].CreatedAt.Before(turns[i-1].CreatedAt))
	}

	assert.Len(t, mem.MessagesByRole("student"), 5)
	assert.Len(t, mem.MessagesByRole("consultant"), 4)
}

func TestConversationMemory_WindowFor(t *testing.T) {
	env := newTestEnv(t, 10)
	ctx := context.Background()
	env.seed(t, models.SessionKey{SessionID: "S", UserID: "U", Mode: models.ModeDocsWriter}, 3)

	mem, err := NewConversationMemory(env.turns, logging.Discard(), "S", "U", models.ModeConsultant)
	require.NoError(t, err)

	own, err := mem.Window(ctx, 5, models.OrderDesc)
	require.NoError(t, err)
	assert.Empty(t, own)

	docs, err := mem.WindowFor(ctx, 2, models.OrderAsc, models.ModeDocsWriter)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "seed b", docs[0].Content)
	assert.Equal(t, "seed c", docs[1].Content)

	_, err = mem.WindowFor(ctx, 2, models.OrderAsc, models.Mode("poet"))
	assert.True(t, errors.Is(err, models.ErrValidation))
}

func TestConversationMemory_ClearAndRename(t *testing.T) {
	env := newTestEnv(t, 10)
	ctx := context.Background()
	mem, err := NewConversationMemory(env.turns, logging.Discard(), "S", "U", models.ModeConsultant)
	require.NoError(t, err)

	require.NoError(t, mem.Append(ctx, models.Turn{Origin: models.OriginUser, Content: "a"}))
	require.NoError(t, mem.Append(ctx, models.Turn{Origin: models.OriginModel, Content: "b"}))
	require.NoError(t, mem.SetSessionName(ctx, "Course Selection"))

	for _, turn := range mem.Messages() {
		assert.Equal(t, "Course Selection", turn.SessionName)
	}
	name, err := mem.SessionName(ctx, "S", "U", models.ModeConsultant)
	require.NoError(t, err)
	assert.Equal(t, "Course Selection", name)

	require.NoError(t, mem.Clear(ctx))
	assert.Empty(t, mem.Messages())

	turns, err := mem.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, turns)
}

func TestConversationMemory_PersistPolicy(t *testing.T) {
	storeErr := models.StorageQueryError("insert turn", errors.New("database is locked"))
	repo := failingTurns{err: storeErr}

	t.Run("best effort keeps the turn in memory", func(t *testing.T) {
		mem, err := NewConversationMemory(repo, logging.Discard(), "S", "U", models.ModeConsultant)
		require.NoError(t, err)

		err = mem.Append(context.Background(), models.Turn{Origin: models.OriginModel, Content: "reply"})
		assert.NoError(t, err)
		require.Len(t, mem.Messages(), 1)
		assert.Equal(t, "consultant", mem.Messages()[0].Role)
	})

	t.Run("strict returns the failure", func(t *testing.T) {
		mem, err := NewConversationMemory(repo, logging.Discard(), "S", "U", models.ModeConsultant, WithPersistPolicy(StrictPersist))
		require.NoError(t, err)

		err = mem.Append(context.Background(), models.Turn{Origin: models.OriginUser, Content: "hi"})
		assert.True(t, errors.Is(err, models.ErrStorageQuery))
	})
}
