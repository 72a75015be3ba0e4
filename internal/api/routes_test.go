package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	apimodels "github.com/novaconsult/nova-backend/internal/api/models"
	"github.com/novaconsult/nova-backend/internal/config"
	"github.com/novaconsult/nova-backend/internal/database"
	"github.com/novaconsult/nova-backend/internal/logging"
	"github.com/novaconsult/nova-backend/internal/models"
	"github.com/novaconsult/nova-backend/internal/prompts"
	"github.com/novaconsult/nova-backend/internal/providers/stub"
	"github.com/novaconsult/nova-backend/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestApp(t *testing.T, chatRateLimit int) (*fiber.App, *database.DB) {
	t.Helper()
	cfg := &config.Config{
		Server: config.ServerConfig{CORSOrigins: "*", ChatRateLimit: chatRateLimit},
		Database: config.DatabaseConfig{
			Driver:         database.DriverSQLite,
			Path:           filepath.Join(t.TempDir(), "chat.db"),
			BusyTimeoutMs:  1000,
			MaxRetries:     1,
			RetryBaseDelay: time.Millisecond,
		},
		Model:  config.ModelConfig{Provider: "stub", Name: "stub-model"},
		Memory: config.MemoryConfig{Window: 10},
	}
	log := logging.Discard()

	db, err := database.Open(cfg.Database, log)
	require.NoError(t, err)
	require.NoError(t, db.Migrate())
	t.Cleanup(func() { db.Close() })

	svc := services.NewServices(db, stub.NewProvider(), prompts.Default(), cfg, log)
	return NewApp(svc, cfg.Server), db
}

func doJSON(t *testing.T, app *fiber.App, method, target string, body any) (int, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, data
}

func TestChatRoundTrip(t *testing.T) {
	app, _ := newTestApp(t, 0)

	status, body := doJSON(t, app, http.MethodPost, "/api/chat", apimodels.ChatRequest{
		Message:   "hello",
		SessionID: "S",
		UserID:    "U",
	})
	require.Equal(t, http.StatusOK, status, string(body))

	var chat apimodels.ChatResponse
	require.NoError(t, json.Unmarshal(body, &chat))
	assert.Equal(t, "This is a stub response to: hello", chat.Response)
	assert.Equal(t, "S", chat.SessionID)
	assert.Equal(t, "U", chat.UserID)
	assert.Equal(t, models.ModeConsultant, chat.Mode)

	status, body = doJSON(t, app, http.MethodGet, "/api/session/S/history?user_id=U", nil)
	require.Equal(t, http.StatusOK, status, string(body))

	var history apimodels.HistoryResponse
	require.NoError(t, json.Unmarshal(body, &history))
	require.Len(t, history.Messages, 2)
	assert.Equal(t, "student", history.Messages[0].Role)
	assert.Equal(t, "hello", history.Messages[0].Content)
	assert.Equal(t, "consultant", history.Messages[1].Role)
	assert.Equal(t, "stub-model", history.Messages[1].Metadata["model"])
	assert.Equal(t, models.ModeConsultant, history.LastMode)

	status, body = doJSON(t, app, http.MethodGet, "/api/session/S/name?user_id=U&mode=consultant", nil)
	require.Equal(t, http.StatusOK, status)
	var name apimodels.SessionNameResponse
	require.NoError(t, json.Unmarshal(body, &name))
	assert.NotEqual(t, models.DefaultSessionName, name.SessionName)
	assert.LessOrEqual(t, len([]rune(name.SessionName)), 60)

	status, body = doJSON(t, app, http.MethodGet, "/api/sessions?user_id=U", nil)
	require.Equal(t, http.StatusOK, status)
	var list apimodels.SessionListResponse
	require.NoError(t, json.Unmarshal(body, &list))
	require.Len(t, list.Sessions, 1)
	assert.Equal(t, "S", list.Sessions[0].SessionID)
	assert.Equal(t, name.SessionName, list.Sessions[0].SessionName)

	status, _ = doJSON(t, app, http.MethodDelete, "/api/session/S/clear?user_id=U", nil)
	require.Equal(t, http.StatusOK, status)

	status, body = doJSON(t, app, http.MethodGet, "/api/session/S/history?user_id=U", nil)
	require.Equal(t, http.StatusOK, status)
	history = apimodels.HistoryResponse{}
	require.NoError(t, json.Unmarshal(body, &history))
	assert.Empty(t, history.Messages)
}

func TestChatGeneratesMissingIDs(t *testing.T) {
	app, _ := newTestApp(t, 0)

	status, body := doJSON(t, app, http.MethodPost, "/api/chat", apimodels.ChatRequest{
		Message: "Draft my motivation letter",
		Mode:    "docs_writer",
	})
	require.Equal(t, http.StatusOK, status, string(body))

	var chat apimodels.ChatResponse
	require.NoError(t, json.Unmarshal(body, &chat))
	assert.NotEmpty(t, chat.SessionID)
	assert.NotEmpty(t, chat.UserID)
	assert.Equal(t, models.ModeDocsWriter, chat.Mode)
}

func TestChatValidation(t *testing.T) {
	app, _ := newTestApp(t, 0)

	tests := []struct {
		name string
		body any
	}{
		{"empty message", apimodels.ChatRequest{Message: "", SessionID: "S", UserID: "U"}},
		{"too long", apimodels.ChatRequest{Message: strings.Repeat("a", 5001), SessionID: "S", UserID: "U"}},
		{"unknown mode", apimodels.ChatRequest{Message: "hi", SessionID: "S", UserID: "U", Mode: "poet"}},
		{"blank message", apimodels.ChatRequest{Message: "   ", SessionID: "S", UserID: "U"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := doJSON(t, app, http.MethodPost, "/api/chat", tt.body)
			assert.Equal(t, http.StatusBadRequest, status, string(body))
		})
	}

	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader("{not json"))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSessionEndpointsValidation(t *testing.T) {
	app, _ := newTestApp(t, 0)

	status, _ := doJSON(t, app, http.MethodGet, "/api/session/S/history", nil)
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = doJSON(t, app, http.MethodGet, "/api/session/S/name?user_id=U&mode=poet", nil)
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = doJSON(t, app, http.MethodDelete, "/api/session/S/clear?mode=consultant", nil)
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = doJSON(t, app, http.MethodGet, "/api/sessions", nil)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestCreateSession(t *testing.T) {
	app, _ := newTestApp(t, 0)

	status, body := doJSON(t, app, http.MethodPost, "/api/session/new", apimodels.SessionRequest{UserID: "U"})
	require.Equal(t, http.StatusOK, status)
	var session apimodels.SessionResponse
	require.NoError(t, json.Unmarshal(body, &session))
	assert.Equal(t, "U", session.UserID)
	assert.NotEmpty(t, session.SessionID)

	status, body = doJSON(t, app, http.MethodPost, "/api/session/new", nil)
	require.Equal(t, http.StatusOK, status)
	session = apimodels.SessionResponse{}
	require.NoError(t, json.Unmarshal(body, &session))
	assert.NotEmpty(t, session.UserID)
	assert.NotEmpty(t, session.SessionID)
}

func TestStorageFailureIsGeneric(t *testing.T) {
	app, db := newTestApp(t, 0)
	require.NoError(t, db.Close())

	status, body := doJSON(t, app, http.MethodPost, "/api/chat", apimodels.ChatRequest{
		Message: "hello", SessionID: "S", UserID: "U",
	})
	assert.Equal(t, http.StatusInternalServerError, status)

	var errResp apimodels.ErrorResponse
	require.NoError(t, json.Unmarshal(body, &errResp))
	assert.Equal(t, "Error processing request", errResp.Error)
	assert.NotContains(t, string(body), "database")
}

func TestHealth(t *testing.T) {
	app, db := newTestApp(t, 0)

	status, body := doJSON(t, app, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, status)
	var report services.HealthReport
	require.NoError(t, json.Unmarshal(body, &report))
	assert.Equal(t, "healthy", report.Status)
	assert.True(t, report.Database.Healthy)

	require.NoError(t, db.Close())
	status, _ = doJSON(t, app, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, status)
}

func TestChatRateLimit(t *testing.T) {
	app, _ := newTestApp(t, 1)

	req := apimodels.ChatRequest{Message: "hello", SessionID: "S", UserID: "U"}
	status, _ := doJSON(t, app, http.MethodPost, "/api/chat", req)
	assert.Equal(t, http.StatusOK, status)

	status, _ = doJSON(t, app, http.MethodPost, "/api/chat", req)
	assert.Equal(t, http.StatusTooManyRequests, status)
}
