package services

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/novaconsult/nova-backend/internal/llm"
	"github.com/novaconsult/nova-backend/internal/models"
	"github.com/novaconsult/nova-backend/internal/prompts"
	"github.com/novaconsult/nova-backend/internal/repository"
	"github.com/sirupsen/logrus"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const (
	DefaultSummaryWindow = 10

	summarySeparator = "\n\nRecent developments:\n"
	maxTitleRunes    = 60
	maxFallbackRunes = 40
)

var titlePrefixes = []string{"Title:", "Chat title:", "Session:", "Conversation:"}

// fallbackTopics are checked in order; the first rule with a keyword
// contained in the lowercased message names the session.
var fallbackTopics = []struct {
	keywords []string
	name     string
}{
	{[]string{"university", "admission", "college"}, "University Admission Help"},
	{[]string{"career", "job"}, "Career Guidance"},
	{[]string{"study abroad", "international"}, "Study Abroad Advice"},
	{[]string{"course", "subject"}, "Course Selection"},
	{[]string{"scholarship"}, "Scholarship Information"},
	{[]string{"application"}, "Application Help"},
}

// SummaryService decides when history is compressed, produces and merges
// summaries and names sessions.
type SummaryService struct {
	generator llm.Generator
	summaries repository.SummaryRepository
	prompts   *prompts.Catalog
	window    int
	log       *logrus.Logger
}

// NewSummaryService creates a summary service. A non-positive window falls
// back to DefaultSummaryWindow.
func NewSummaryService(
	generator llm.Generator,
	summaries repository.SummaryRepository,
	catalog *prompts.Catalog,
	window int,
	log *logrus.Logger,
) *SummaryService {
	if window <= 0 {
		window = DefaultSummaryWindow
	}
	return &SummaryService{
		generator: generator,
		summaries: summaries,
		prompts:   catalog,
		window:    window,
		log:       log,
	}
}

// Window is the number of recent turns kept verbatim outside the summary.
func (s *SummaryService) Window() int {
	return s.window
}

// ShouldSummarize reports whether the uncompressed tail has outgrown the window.
func ShouldSummarize(total, lastCovered, window int) bool {
	return total-lastCovered > window
}

// ShouldSummarize applies the service's window.
func (s *SummaryService) ShouldSummarize(total, lastCovered int) bool {
	return ShouldSummarize(total, lastCovered, s.window)
}

// MergeSummaries appends a new summary to an existing one. An empty side
// yields the other side unchanged.
func MergeSummaries(existing, latest string) string {
	if existing == "" {
		return latest
	}
	if latest == "" {
		return existing
	}
	return existing + summarySeparator + latest
}

// Summarize asks the model to compress turns. Model failures are returned
// to the caller.
func (s *SummaryService) Summarize(ctx context.Context, turns []models.Turn) (string, error) {
	prompt, err := s.prompts.Summary(turns)
	if err != nil {
		return "", err
	}

	completion, err := s.generator.Generate(ctx, llm.TaskSummarize, []llm.Message{
		{Role: "user", Content: prompt},
	})
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(completion.Content), nil
}

// ExistingSummary returns the newest summary of the triple, or an empty one.
func (s *SummaryService) ExistingSummary(ctx context.Context, key models.SessionKey) (models.Summary, error) {
	return s.summaries.Latest(ctx, key)
}

// PersistSummary appends a summary row covering the first covered turns.
func (s *SummaryService) PersistSummary(ctx context.Context, key models.SessionKey, merged string, covered int) (*models.Summary, error) {
	summary, err := s.summaries.Insert(ctx, models.Summary{
		SessionID:        key.SessionID,
		UserID:           key.UserID,
		Mode:             key.Mode,
		Text:             merged,
		LastCoveredCount: covered,
	})
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"session_id": key.SessionID,
		"user_id":    key.UserID,
		"mode":       key.Mode,
		"covered":    covered,
	}).Info("Stored conversation summary")

	return summary, nil
}

// NameSession produces a short title from the first user message. It never
// fails: when the model is unavailable a keyword match names the session.
func (s *SummaryService) NameSession(ctx context.Context, firstMessage string) string {
	prompt, err := s.prompts.Title(firstMessage)
	if err != nil {
		s.log.WithError(err).Warn("Failed to render title prompt, using fallback name")
		return FallbackSessionName(firstMessage)
	}

	completion, err := s.generator.Generate(ctx, llm.TaskGenerateTitle, []llm.Message{
		{Role: "user", Content: prompt},
	})
	if err != nil {
		name := FallbackSessionName(firstMessage)
		s.log.WithError(err).WithField("fallback_name", name).Warn("Failed to generate session name")
		return name
	}

	return CleanSessionName(completion.Content)
}

// CleanSessionName strips quotes and label prefixes a model tends to add and
// bounds the length.
func CleanSessionName(raw string) string {
	name := strings.TrimSpace(raw)
	name = strings.ReplaceAll(name, `"`, "")
	name = strings.ReplaceAll(name, "'", "")

	for _, prefix := range titlePrefixes {
		if len(name) >= len(prefix) && strings.EqualFold(name[:len(prefix)], prefix) {
			name = strings.TrimSpace(name[len(prefix):])
		}
	}

	name = truncate(name, maxTitleRunes)
	if name == "" {
		return models.DefaultSessionName
	}
	return name
}

// FallbackSessionName names a session without the model.
func FallbackSessionName(message string) string {
	lower := strings.ToLower(strings.TrimSpace(message))
	for _, topic := range fallbackTopics {
		for _, keyword := range topic.keywords {
			if strings.Contains(lower, keyword) {
				return topic.name
			}
		}
	}

	words := strings.Fields(message)
	if len(words) > 4 {
		words = words[:4]
	}
	name := truncate(strings.Join(words, " "), maxFallbackRunes)
	if name == "" {
		return models.DefaultSessionName
	}
	return cases.Title(language.English).String(name)
}

// truncate cuts s to max runes, replacing the tail with "..." when it is cut.
func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max-3]) + "..."
}
