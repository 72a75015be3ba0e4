package prompts

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
	"text/template"

	"github.com/novaconsult/nova-backend/internal/models"
	"gopkg.in/yaml.v3"
)

//go:embed default_prompts.yaml
var defaultPrompts []byte

// Catalog holds the system prompts per mode and the summary and title
// templates.
type Catalog struct {
	SystemPrompt  map[string]string `yaml:"system_prompt"`
	SummaryPrompt string            `yaml:"summary_prompt"`
	TitlePrompt   string            `yaml:"title_prompt"`

	summary *template.Template
	title   *template.Template
}

// Load reads the catalogue at path, or the embedded default when path is empty.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Parse(defaultPrompts)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read prompt file %s: %w", path, err)
	}
	return Parse(data)
}

// Default returns the embedded catalogue.
func Default() *Catalog {
	c, err := Parse(defaultPrompts)
	if err != nil {
		panic(fmt.Sprintf("embedded prompts are invalid: %v", err))
	}
	return c
}

// Parse decodes a YAML catalogue and compiles its templates. Every mode must
// have a system prompt.
func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse prompts: %w", err)
	}

	for _, mode := range []models.Mode{models.ModeConsultant, models.ModeDocsWriter} {
		if strings.TrimSpace(c.SystemPrompt[string(mode)]) == "" {
			return nil, fmt.Errorf("system prompt for mode %q is missing", mode)
		}
	}
	if strings.TrimSpace(c.SummaryPrompt) == "" {
		return nil, fmt.Errorf("summary_prompt is missing")
	}
	if strings.TrimSpace(c.TitlePrompt) == "" {
		return nil, fmt.Errorf("title_prompt is missing")
	}

	var err error
	if c.summary, err = template.New("summary").Parse(c.SummaryPrompt); err != nil {
		return nil, fmt.Errorf("failed to parse summary_prompt: %w", err)
	}
	if c.title, err = template.New("title").Parse(c.TitlePrompt); err != nil {
		return nil, fmt.Errorf("failed to parse title_prompt: %w", err)
	}

	return &c, nil
}

// System returns the system prompt for mode.
func (c *Catalog) System(mode models.Mode) (string, error) {
	prompt, ok := c.SystemPrompt[string(mode)]
	if !ok {
		return "", models.ValidationError("no system prompt for mode %q", mode)
	}
	return strings.TrimSpace(prompt), nil
}

// Summary renders the summary request over a transcript.
func (c *Catalog) Summary(turns []models.Turn) (string, error) {
	var b strings.Builder
	if err := c.summary.Execute(&b, struct{ Turns []models.Turn }{turns}); err != nil {
		return "", fmt.Errorf("failed to render summary prompt: %w", err)
	}
	return b.String(), nil
}

// Title renders the session title request for a first user message.
func (c *Catalog) Title(message string) (string, error) {
	var b strings.Builder
	if err := c.title.Execute(&b, struct{ Message string }{message}); err != nil {
		return "", fmt.Errorf("failed to render title prompt: %w", err)
	}
	return b.String(), nil
}
