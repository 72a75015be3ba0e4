package services

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/novaconsult/nova-backend/internal/llm"
	"github.com/novaconsult/nova-backend/internal/models"
	"github.com/novaconsult/nova-backend/internal/prompts"
	"github.com/novaconsult/nova-backend/internal/repository"
	"github.com/sirupsen/logrus"
)

const summaryPreamble = "Summary of the conversation so far:\n"

// OrchestrationService produces one assistant reply per user message and
// keeps turns, summaries and session names up to date. Each store call is
// its own transaction; nothing spans the steps of SendMessage.
type OrchestrationService struct {
	turns     repository.TurnRepository
	summaries *SummaryService
	generator llm.Generator
	prompts   *prompts.Catalog
	persist   PersistPolicy
	log       *logrus.Logger
}

// OrchestrationOption configures an OrchestrationService.
type OrchestrationOption func(*OrchestrationService)

// WithTurnPersistPolicy sets the policy of the memories SendMessage opens.
func WithTurnPersistPolicy(policy PersistPolicy) OrchestrationOption {
	return func(o *OrchestrationService) {
		o.persist = policy
	}
}

// NewOrchestrationService creates a new orchestration service
func NewOrchestrationService(
	turns repository.TurnRepository,
	summaries *SummaryService,
	generator llm.Generator,
	catalog *prompts.Catalog,
	log *logrus.Logger,
	opts ...OrchestrationOption,
) *OrchestrationService {
	o := &OrchestrationService{
		turns:     turns,
		summaries: summaries,
		generator: generator,
		prompts:   catalog,
		persist:   BestEffortPersist,
		log:       log,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func requireIDs(sessionID, userID string) error {
	if strings.TrimSpace(sessionID) == "" {
		return models.ValidationError("session_id is required")
	}
	if strings.TrimSpace(userID) == "" {
		return models.ValidationError("user_id is required")
	}
	return nil
}

func requireMode(mode models.Mode) error {
	if !mode.Valid() {
		return models.ValidationError("mode must be 'consultant' or 'docs_writer', got: %q", mode)
	}
	return nil
}

func (o *OrchestrationService) memory(sessionID, userID string, mode models.Mode) (*ConversationMemory, error) {
	if err := requireIDs(sessionID, userID); err != nil {
		return nil, err
	}
	if err := requireMode(mode); err != nil {
		return nil, err
	}
	return NewConversationMemory(o.turns, o.log, sessionID, userID, mode, WithPersistPolicy(o.persist))
}

// =====================================
// Core Chat Operations
// =====================================

// SendMessage runs one conversation turn and returns the assistant's reply.
func (o *OrchestrationService) SendMessage(ctx context.Context, sessionID, userID string, mode models.Mode, text string) (string, error) {
	mem, err := o.memory(sessionID, userID, mode)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		return "", models.ValidationError("message must not be empty")
	}

	key := mem.Key()
	log := o.log.WithFields(logrus.Fields{
		"session_id": key.SessionID,
		"user_id":    key.UserID,
		"mode":       key.Mode,
	})

	count, err := mem.Count(ctx)
	if err != nil {
		return "", err
	}
	existing, err := o.summaries.ExistingSummary(ctx, key)
	if err != nil {
		return "", err
	}
	if existing.LastCoveredCount > count {
		// History was cleared after this summary was written.
		log.WithField("covered", existing.LastCoveredCount).Debug("Ignoring stale summary")
		existing = models.Summary{SessionID: key.SessionID, UserID: key.UserID, Mode: key.Mode}
	}

	recent, err := mem.Window(ctx, o.summaries.Window(), models.OrderDesc)
	if err != nil {
		return "", err
	}

	summaryText := existing.Text
	if o.summaries.ShouldSummarize(count, existing.LastCoveredCount) {
		merged, err := o.refreshSummary(ctx, mem, existing, count)
		if err != nil {
			return "", err
		}
		if merged != "" {
			summaryText = merged
		}
	}

	messages, err := o.buildPrompt(key.Mode, summaryText, recent, text)
	if err != nil {
		return "", err
	}

	completion, err := o.generator.Generate(ctx, llm.TaskChat, messages)
	if err != nil {
		return "", err
	}
	reply := completion.Content

	if err := mem.Append(ctx, models.Turn{
		Origin:  models.OriginUser,
		Content: text,
	}); err != nil {
		return "", err
	}
	if err := mem.Append(ctx, models.Turn{
		Origin:   models.OriginModel,
		Content:  reply,
		Metadata: completionMetadata(completion),
	}); err != nil {
		return "", err
	}

	o.maybeNameSession(ctx, mem, text, log)

	return reply, nil
}

// refreshSummary compresses every turn the existing summary does not cover
// and stores the merged text tagged with the true covered count. A model
// failure skips summarization for this turn and yields "".
func (o *OrchestrationService) refreshSummary(ctx context.Context, mem *ConversationMemory, existing models.Summary, count int) (string, error) {
	log := o.log.WithFields(logrus.Fields{
		"session_id": mem.Key().SessionID,
		"user_id":    mem.Key().UserID,
		"mode":       mem.Key().Mode,
	})

	tail, err := mem.Window(ctx, count-existing.LastCoveredCount, models.OrderAsc)
	if err != nil {
		return "", err
	}

	latest, err := o.summaries.Summarize(ctx, normalizeTurns(tail))
	if err != nil {
		log.WithError(err).Warn("Summarization failed, continuing without a new summary")
		return "", nil
	}

	merged := MergeSummaries(existing.Text, latest)
	if _, err := o.summaries.PersistSummary(ctx, mem.Key(), merged, count); err != nil {
		return "", err
	}
	return merged, nil
}

// buildPrompt assembles the system prompt, the summary pseudo-turn, the
// recent window oldest first and the new user input. recent arrives newest
// first.
func (o *OrchestrationService) buildPrompt(mode models.Mode, summary string, recent []models.Turn, text string) ([]llm.Message, error) {
	system, err := o.prompts.System(mode)
	if err != nil {
		return nil, err
	}

	messages := make([]llm.Message, 0, len(recent)+3)
	messages = append(messages, llm.Message{Role: "system", Content: system})
	if summary != "" {
		messages = append(messages, llm.Message{Role: "system", Content: summaryPreamble + summary})
	}
	for i := len(recent) - 1; i >= 0; i-- {
		messages = append(messages, llm.Message{
			Role:    chatRole(recent[i].Role),
			Content: recent[i].Content,
		})
	}
	messages = append(messages, llm.Message{Role: "user", Content: text})

	return messages, nil
}

// maybeNameSession names the session after its first full exchange. Any
// failure is logged and never reaches the caller.
func (o *OrchestrationService) maybeNameSession(ctx context.Context, mem *ConversationMemory, firstMessage string, log *logrus.Entry) {
	count, err := mem.Count(ctx)
	if err != nil {
		log.WithError(err).Warn("Failed to count turns for session naming")
		return
	}
	if count != 2 {
		return
	}

	key := mem.Key()
	current, err := mem.SessionName(ctx, key.SessionID, key.UserID, key.Mode)
	if err != nil {
		log.WithError(err).Warn("Failed to read session name")
		return
	}
	if current != "" && current != models.DefaultSessionName {
		return
	}

	name := o.summaries.NameSession(ctx, firstMessage)
	if err := mem.SetSessionName(ctx, name); err != nil {
		log.WithError(err).Warn("Failed to store session name")
		return
	}
	log.WithField("session_name", name).Info("Named session")
}

// normalizeTurns collapses stored turns into role/content/metadata records.
func normalizeTurns(turns []models.Turn) []models.Turn {
	out := make([]models.Turn, len(turns))
	for i, t := range turns {
		out[i] = models.Turn{Role: t.Role, Content: t.Content, Metadata: t.Metadata}
	}
	return out
}

// chatRole maps a stored role onto the model's chat roles.
func chatRole(role string) string {
	switch role {
	case models.RoleStudent, "user", "human":
		return "user"
	case "system":
		return "system"
	default:
		return "assistant"
	}
}

func completionMetadata(c *llm.Completion) map[string]any {
	metadata := map[string]any{
		"model":             c.Model,
		"prompt_tokens":     c.Usage.PromptTokens,
		"completion_tokens": c.Usage.CompletionTokens,
		"total_tokens":      c.Usage.TotalTokens,
	}
	if c.FinishReason != "" {
		metadata["finish_reason"] = c.FinishReason
	}
	return metadata
}

// =====================================
// Session Management
// =====================================

// NewSession allocates identifiers for a conversation. A missing user id is
// generated too. Nothing is stored until the first message.
func (o *OrchestrationService) NewSession(userID string) (sessionID, resolvedUserID string) {
	if strings.TrimSpace(userID) == "" {
		userID = uuid.NewString()
	}
	return uuid.NewString(), userID
}

// ListSessions returns the user's sessions, most recently active first.
func (o *OrchestrationService) ListSessions(ctx context.Context, userID string) ([]models.SessionInfo, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, models.ValidationError("user_id is required")
	}
	return o.turns.ListSessions(ctx, userID)
}

// GetHistory returns every turn of the triple oldest first, plus the mode
// the session was last used in.
func (o *OrchestrationService) GetHistory(ctx context.Context, sessionID, userID string, mode models.Mode) (*models.History, error) {
	mem, err := o.memory(sessionID, userID, mode)
	if err != nil {
		return nil, err
	}

	turns, err := mem.Load(ctx)
	if err != nil {
		return nil, err
	}
	lastMode, err := o.turns.LastMode(ctx, sessionID, userID)
	if err != nil {
		return nil, err
	}

	return &models.History{Turns: turns, LastMode: lastMode}, nil
}

// GetSessionName returns the display name of the triple.
func (o *OrchestrationService) GetSessionName(ctx context.Context, sessionID, userID string, mode models.Mode) (string, error) {
	mem, err := o.memory(sessionID, userID, mode)
	if err != nil {
		return "", err
	}
	return mem.SessionName(ctx, sessionID, userID, mode)
}

// ClearHistory deletes every turn of the triple. Summary rows are never
// deleted, so an empty summary covering nothing is appended to supersede them.
func (o *OrchestrationService) ClearHistory(ctx context.Context, sessionID, userID string, mode models.Mode) error {
	mem, err := o.memory(sessionID, userID, mode)
	if err != nil {
		return err
	}
	if err := mem.Clear(ctx); err != nil {
		return err
	}
	_, err = o.summaries.PersistSummary(ctx, mem.Key(), "", 0)
	return err
}
