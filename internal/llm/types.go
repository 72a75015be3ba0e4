package llm

import (
	"context"
)

// TaskType names what a model call is for. It labels logs and metrics.
type TaskType string

const (
	TaskChat          TaskType = "chat"
	TaskSummarize     TaskType = "summarize"
	TaskGenerateTitle TaskType = "generate_title"
)

// Message represents a single message in a conversation
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Usage statistics
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Completion is the text a model produced for one call.
type Completion struct {
	Content      string `json:"content"`
	Model        string `json:"model"`
	FinishReason string `json:"finish_reason"`
	Usage        Usage  `json:"usage"`
}

// Generator is the language model collaborator. Errors wrap
// models.ErrModelInvocation.
type Generator interface {
	Generate(ctx context.Context, task TaskType, messages []Message) (*Completion, error)
}
