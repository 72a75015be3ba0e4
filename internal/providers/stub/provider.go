package stub

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/novaconsult/nova-backend/internal/providers"
)

// Provider answers without any network access. It is meant for local
// development and demos where no API key is available.
type Provider struct{}

// NewProvider creates a stub provider
func NewProvider() *Provider {
	return &Provider{}
}

// Name returns the provider name
func (p *Provider) Name() string {
	return "stub"
}

// Complete echoes the last user message back
func (p *Provider) Complete(ctx context.Context, req providers.CompletionRequest) (*providers.CompletionResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var last string
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == providers.RoleUser {
			last = req.Messages[i].Content
			break
		}
	}

	content := "This is a stub response to: " + firstLine(last)
	return &providers.CompletionResponse{
		ID:    fmt.Sprintf("stub-%d", time.Now().UnixNano()),
		Model: req.Model,
		Choices: []providers.Choice{{
			Message:      providers.Message{Role: providers.RoleAssistant, Content: content},
			FinishReason: "stop",
		}},
		Usage: providers.Usage{
			PromptTokens:     len(req.Messages),
			CompletionTokens: len(strings.Fields(content)),
			TotalTokens:      len(req.Messages) + len(strings.Fields(content)),
		},
	}, nil
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
