package openai

import (
	"context"
	"errors"
	"strings"

	"github.com/novaconsult/nova-backend/internal/config"
	"github.com/novaconsult/nova-backend/internal/providers"
	"github.com/sashabaranov/go-openai"
)

// Provider talks to any OpenAI-compatible chat completions endpoint,
// including Gemini's compatibility layer.
type Provider struct {
	config config.ModelConfig
	client *openai.Client
}

// NewProvider creates a new OpenAI provider
func NewProvider(cfg config.ModelConfig) (*Provider, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("API key is required")
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	}

	return &Provider{
		config: cfg,
		client: openai.NewClientWithConfig(clientConfig),
	}, nil
}

// Name returns the provider name
func (p *Provider) Name() string {
	return "openai"
}

// Complete performs a non-streaming completion
func (p *Provider) Complete(ctx context.Context, req providers.CompletionRequest) (*providers.CompletionResponse, error) {
	resp, err := p.client.CreateChatCompletion(ctx, convertRequest(req))
	if err != nil {
		return nil, err
	}

	return convertResponse(&resp), nil
}

func convertRequest(req providers.CompletionRequest) openai.ChatCompletionRequest {
	messages := make([]openai.ChatCompletionMessage, len(req.Messages))
	for i, msg := range req.Messages {
		messages[i] = openai.ChatCompletionMessage{
			Role:    msg.Role,
			Content: msg.Content,
		}
	}

	openAIReq := openai.ChatCompletionRequest{
		Model:    req.Model,
		Messages: messages,
	}

	if req.Temperature != nil {
		openAIReq.Temperature = *req.Temperature
	}

	if req.MaxTokens != nil {
		openAIReq.MaxTokens = *req.MaxTokens
	}

	return openAIReq
}

func convertResponse(resp *openai.ChatCompletionResponse) *providers.CompletionResponse {
	choices := make([]providers.Choice, len(resp.Choices))
	for i, choice := range resp.Choices {
		choices[i] = providers.Choice{
			Index: choice.Index,
			Message: providers.Message{
				Role:    choice.Message.Role,
				Content: choice.Message.Content,
			},
			FinishReason: string(choice.FinishReason),
		}
	}

	return &providers.CompletionResponse{
		ID:      resp.ID,
		Model:   resp.Model,
		Choices: choices,
		Usage: providers.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}
}
