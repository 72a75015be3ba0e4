package services

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/novaconsult/nova-backend/internal/config"
	"github.com/novaconsult/nova-backend/internal/database"
	"github.com/novaconsult/nova-backend/internal/llm"
	"github.com/novaconsult/nova-backend/internal/logging"
	"github.com/novaconsult/nova-backend/internal/models"
	"github.com/novaconsult/nova-backend/internal/prompts"
	"github.com/novaconsult/nova-backend/internal/repository"
	"github.com/novaconsult/nova-backend/internal/repository/sqlstore"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockGenerator struct {
	mock.Mock
}

func (m *mockGenerator) Generate(ctx context.Context, task llm.TaskType, messages []llm.Message) (*llm.Completion, error) {
	args := m.Called(ctx, task, messages)
	completion, _ := args.Get(0).(*llm.Completion)
	return completion, args.Error(1)
}

// callsFor counts the Generate calls made for one task.
func (m *mockGenerator) callsFor(task llm.TaskType) int {
	n := 0
	for _, call := range m.Calls {
		if call.Method == "Generate" && call.Arguments.Get(1) == task {
			n++
		}
	}
	return n
}

func reply(content string) *llm.Completion {
	return &llm.Completion{
		Content:      content,
		Model:        "gemini-2.0-flash",
		FinishReason: "stop",
		Usage:        llm.Usage{PromptTokens: 20, CompletionTokens: 5, TotalTokens: 25},
	}
}

// failingTurns rejects every insert and delegates nothing else.
type failingTurns struct {
	repository.TurnRepository
	err error
}

func (f failingTurns) Insert(context.Context, models.Turn) (*models.Turn, error) {
	return nil, f.err
}

type testEnv struct {
	db        *database.DB
	turns     *sqlstore.TurnStore
	summaries *sqlstore.SummaryStore
	gen       *mockGenerator
	summary   *SummaryService
	orch      *OrchestrationService
}

func newTestEnv(t *testing.T, window int) *testEnv {
	t.Helper()
	db, err := database.Open(config.DatabaseConfig{
		Driver:         database.DriverSQLite,
		Path:           filepath.Join(t.TempDir(), "chat.db"),
		BusyTimeoutMs:  1000,
		MaxRetries:     3,
		RetryBaseDelay: time.Millisecond,
	}, logging.Discard())
	require.NoError(t, err)
	require.NoError(t, db.Migrate())
	t.Cleanup(func() { db.Close() })

	env := &testEnv{
		db:        db,
		turns:     sqlstore.NewTurnStore(db),
		summaries: sqlstore.NewSummaryStore(db),
		gen:       new(mockGenerator),
	}
	catalog := prompts.Default()
	env.summary = NewSummaryService(env.gen, env.summaries, catalog, window, logging.Discard())
	env.orch = NewOrchestrationService(env.turns, env.summary, env.gen, catalog, logging.Discard())
	return env
}

// seed stores n alternating student/consultant turns directly.
func (e *testEnv) seed(t *testing.T, key models.SessionKey, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		role := models.RoleStudent
		if i%2 == 1 {
			role = string(key.Mode)
		}
		_, err := e.turns.Insert(context.Background(), models.Turn{
			SessionID: key.SessionID, UserID: key.UserID, Mode: key.Mode,
			Role: role, Content: "seed " + string(rune('a'+i)),
		})
		require.NoError(t, err)
	}
}
