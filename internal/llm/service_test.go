package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/novaconsult/nova-backend/internal/config"
	"github.com/novaconsult/nova-backend/internal/logging"
	"github.com/novaconsult/nova-backend/internal/models"
	"github.com/novaconsult/nova-backend/internal/providers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockProvider struct {
	mock.Mock
}

func (m *mockProvider) Name() string { return "mock" }

func (m *mockProvider) Complete(ctx context.Context, req providers.CompletionRequest) (*providers.CompletionResponse, error) {
	args := m.Called(ctx, req)
	resp, _ := args.Get(0).(*providers.CompletionResponse)
	return resp, args.Error(1)
}

func testModelConfig() config.ModelConfig {
	return config.ModelConfig{
		Provider:    "stub",
		Name:        "gemini-2.0-flash",
		Temperature: 1.0,
		MaxTokens:   512,
		Timeout:     time.Second,
	}
}

func TestService_Generate(t *testing.T) {
	p := new(mockProvider)
	p.On("Complete", mock.Anything, mock.MatchedBy(func(req providers.CompletionRequest) bool {
		return req.Model == "gemini-2.0-flash" &&
			req.Temperature != nil && *req.Temperature == 1.0 &&
			req.MaxTokens != nil && *req.MaxTokens == 512 &&
			len(req.Messages) == 2 && req.Messages[1].Content == "hello"
	})).Return(&providers.CompletionResponse{
		Model: "gemini-2.0-flash-001",
		Choices: []providers.Choice{{
			Message:      providers.Message{Role: "assistant", Content: "Hi there"},
			FinishReason: "stop",
		}},
		Usage: providers.Usage{PromptTokens: 8, CompletionTokens: 2, TotalTokens: 10},
	}, nil)

	s := NewService(p, testModelConfig(), logging.Discard())
	got, err := s.Generate(context.Background(), TaskChat, []Message{
		{Role: "system", Content: "be kind"},
		{Role: "user", Content: "hello"},
	})
	require.NoError(t, err)

	assert.Equal(t, "Hi there", got.Content)
	assert.Equal(t, "gemini-2.0-flash-001", got.Model)
	assert.Equal(t, "stop", got.FinishReason)
	assert.Equal(t, 10, got.Usage.TotalTokens)

	stats := s.Metrics().Snapshot()[TaskChat]
	assert.Equal(t, int64(1), stats.Requests)
	assert.Equal(t, int64(0), stats.Errors)
	assert.Equal(t, int64(10), stats.Tokens)
	p.AssertExpectations(t)
}

func TestService_GenerateWrapsProviderErrors(t *testing.T) {
	p := new(mockProvider)
	p.On("Complete", mock.Anything, mock.Anything).Return(nil, errors.New("invalid api key"))

	s := NewService(p, testModelConfig(), logging.Discard())
	_, err := s.Generate(context.Background(), TaskSummarize, []Message{{Role: "user", Content: "x"}})

	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrModelInvocation))
	assert.Contains(t, err.Error(), "invalid api key")
	assert.Equal(t, int64(1), s.Metrics().Snapshot()[TaskSummarize].Errors)
}

func TestService_GenerateRejectsEmptyCompletion(t *testing.T) {
	tests := []struct {
		name string
		resp *providers.CompletionResponse
	}{
		{"no choices", &providers.CompletionResponse{}},
		{"blank content", &providers.CompletionResponse{Choices: []providers.Choice{{Message: providers.Message{Content: "  "}}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := new(mockProvider)
			p.On("Complete", mock.Anything, mock.Anything).Return(tt.resp, nil)

			s := NewService(p, testModelConfig(), logging.Discard())
			_, err := s.Generate(context.Background(), TaskGenerateTitle, []Message{{Role: "user", Content: "x"}})
			assert.True(t, errors.Is(err, models.ErrModelInvocation))
		})
	}
}

func TestService_GenerateAppliesTimeout(t *testing.T) {
	p := new(mockProvider)
	p.On("Complete", mock.MatchedBy(func(ctx context.Context) bool {
		_, ok := ctx.Deadline()
		return ok
	}), mock.Anything).Return(&providers.CompletionResponse{
		Choices: []providers.Choice{{Message: providers.Message{Content: "ok"}}},
	}, nil)

	s := NewService(p, testModelConfig(), logging.Discard())
	got, err := s.Generate(context.Background(), TaskChat, []Message{{Role: "user", Content: "x"}})
	require.NoError(t, err)
	assert.Equal(t, "gemini-2.0-flash", got.Model)
	p.AssertExpectations(t)
}
