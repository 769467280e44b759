package llm

import (
	"embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed prompts/v1/*.yaml
var promptsFS embed.FS

// PromptVersion represents a prompt version.
type PromptVersion string

const (
	PromptVersionV1 PromptVersion = "v1"
)

// PromptTemplate is a system prompt plus a user template with {{KEY}}
// placeholders.
type PromptTemplate struct {
	System      string  `yaml:"system"`
	User        string  `yaml:"user"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
}

// PromptSet holds every prompt of one version.
type PromptSet struct {
	Version PromptVersion             `yaml:"version"`
	Tools   map[string]PromptTemplate `yaml:"tools"`
	Rewrite PromptTemplate            `yaml:"rewrite"`
}

// LoadPromptSet loads the embedded prompt set for a version.
func LoadPromptSet(version PromptVersion) (*PromptSet, error) {
	filename := fmt.Sprintf("prompts/%s/tools.yaml", version)
	data, err := promptsFS.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("load prompts %s: %w", version, err)
	}

	var set PromptSet
	if err := yaml.Unmarshal(data, &set); err != nil {
		return nil, fmt.Errorf("parse prompts %s: %w", version, err)
	}
	if set.Version != version {
		return nil, fmt.Errorf("prompt file declares version %q, want %q", set.Version, version)
	}
	return &set, nil
}

// Tool returns the template for a tool.
func (s *PromptSet) Tool(name string) (*PromptTemplate, error) {
	t, ok := s.Tools[name]
	if !ok {
		return nil, fmt.Errorf("no prompt for tool %q", name)
	}
	return &t, nil
}

// Render renders the user template with the given variables.
func (p *PromptTemplate) Render(vars map[string]string) string {
	// One pass, so placeholders inside user text are left alone.
	pairs := make([]string, 0, len(vars)*2)
	for k, v := range vars {
		pairs = append(pairs, "{{"+k+"}}", v)
	}
	return strings.NewReplacer(pairs...).Replace(p.User)
}

// Request builds a JSON-mode request from the template.
func (p *PromptTemplate) Request(vars map[string]string, maxTokens int) Request {
	if p.MaxTokens > 0 && (maxTokens <= 0 || p.MaxTokens < maxTokens) {
		maxTokens = p.MaxTokens
	}
	return Request{
		Messages: []Message{
			{Role: "system", Content: strings.TrimSpace(p.System)},
			{Role: "user", Content: p.Render(vars)},
		},
		Temperature: p.Temperature,
		MaxTokens:   maxTokens,
		JSONMode:    true,
	}
}
