package llm

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/novaconsult/nova-backend/internal/config"
	"github.com/novaconsult/nova-backend/internal/models"
	"github.com/novaconsult/nova-backend/internal/providers"
	"github.com/sirupsen/logrus"
)

// Service invokes the configured provider with the configured model
// parameters. It does not retry.
type Service struct {
	provider providers.Provider
	config   config.ModelConfig
	metrics  *MetricsCollector
	log      *logrus.Logger
}

// NewService creates a new LLM service
func NewService(provider providers.Provider, cfg config.ModelConfig, log *logrus.Logger) *Service {
	return &Service{
		provider: provider,
		config:   cfg,
		metrics:  NewMetricsCollector(),
		log:      log,
	}
}

// Metrics exposes the collector the service records into.
func (s *Service) Metrics() *MetricsCollector {
	return s.metrics
}

// Generate sends messages to the model and returns the first choice.
func (s *Service) Generate(ctx context.Context, task TaskType, messages []Message) (*Completion, error) {
	if s.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.Timeout)
		defer cancel()
	}

	req := providers.CompletionRequest{
		Model:    s.config.Name,
		Messages: make([]providers.Message, len(messages)),
	}
	for i, msg := range messages {
		req.Messages[i] = providers.Message{Role: msg.Role, Content: msg.Content}
	}
	if s.config.Temperature > 0 {
		temperature := s.config.Temperature
		req.Temperature = &temperature
	}
	if s.config.MaxTokens > 0 {
		maxTokens := s.config.MaxTokens
		req.MaxTokens = &maxTokens
	}

	start := time.Now()
	resp, err := s.provider.Complete(ctx, req)
	latency := time.Since(start)

	fields := logrus.Fields{
		"task":       task,
		"provider":   s.provider.Name(),
		"model":      s.config.Name,
		"messages":   len(messages),
		"latency_ms": latency.Milliseconds(),
	}

	if err == nil && (len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "") {
		err = errors.New("model returned an empty completion")
	}
	if err != nil {
		s.metrics.RecordRequest(task, false, latency)
		s.log.WithFields(fields).WithError(err).Error("Model invocation failed")
		return nil, models.ModelInvocationError(string(task), err)
	}

	usage := Usage{
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		TotalTokens:      resp.Usage.TotalTokens,
	}
	s.metrics.RecordRequest(task, true, latency)
	s.metrics.RecordUsage(task, usage)

	fields["total_tokens"] = usage.TotalTokens
	s.log.WithFields(fields).Debug("Model invocation completed")

	model := resp.Model
	if model == "" {
		model = s.config.Name
	}
	return &Completion{
		Content:      resp.Choices[0].Message.Content,
		Model:        model,
		FinishReason: resp.Choices[0].FinishReason,
		Usage:        usage,
	}, nil
}
