package generation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dshills/prdforge/internal/domain"
	"github.com/dshills/prdforge/internal/llm"
	"github.com/dshills/prdforge/internal/validator"
)

const (
	defaultTimeout   = 120 * time.Second
	defaultMaxTokens = 4096
	titleInputLength = 60
	untitledPRD      = "Untitled PRD"
)

// Options configures a Service.
type Options struct {
	// Timeout bounds each model call. Zero means the default.
	Timeout   time.Duration
	MaxTokens int
	Logger    *slog.Logger
}

// Service turns caller input into validated artifact payloads. It does not
// persist anything.
type Service struct {
	factory       llm.ClientFactory
	validator     *validator.Validator
	prompts       *llm.PromptSet
	promptVersion llm.PromptVersion
	timeout       time.Duration
	maxTokens     int
	logger        *slog.Logger
}

// NewService creates a new generation service.
func NewService(factory llm.ClientFactory, val *validator.Validator, opts Options) (*Service, error) {
	prompts, err := llm.LoadPromptSet(llm.PromptVersionV1)
	if err != nil {
		return nil, err
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = defaultMaxTokens
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Service{
		factory:       factory,
		validator:     val,
		prompts:       prompts,
		promptVersion: llm.PromptVersionV1,
		timeout:       opts.Timeout,
		maxTokens:     opts.MaxTokens,
		logger:        opts.Logger,
	}, nil
}

// Factory returns the LLM factory.
func (s *Service) Factory() llm.ClientFactory {
	return s.factory
}

// Result is a generated, validated payload.
type Result struct {
	Title    string
	Payload  domain.Payload
	Provider llm.Provider
	Model    string
	Duration time.Duration
}

// Generate builds the tool prompt, calls the model once and returns the
// validated payload. Invalid input is rejected before the model is called.
// Model, parse and schema failures wrap domain.ErrGenerationFailed.
func (s *Service) Generate(ctx context.Context, in Input) (*Result, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	start := time.Now()
	log := s.logger.With("tool", string(in.Tool), "prompt_version", string(s.promptVersion))

	tmpl, err := s.prompts.Tool(string(in.Tool))
	if err != nil {
		return nil, s.fail(log, start, err)
	}

	client, err := s.client(in.Provider, in.Model)
	if err != nil {
		return nil, s.fail(log, start, fmt.Errorf("create llm client: %w", err))
	}
	log = log.With("provider", string(client.Provider()), "model", client.Model())

	req := tmpl.Request(map[string]string{
		"INPUT":  in.promptInput(),
		"ANSWER": strings.TrimSpace(in.Answer),
	}, s.maxTokens)

	raw, model, err := s.complete(ctx, client, req)
	if err != nil {
		return nil, s.fail(log, start, err)
	}

	doc, err := s.validator.Decode(in.Tool, raw)
	if err != nil {
		return nil, s.fail(log, start, err)
	}
	domain.BackfillStories(doc.Payload)

	elapsed := time.Since(start)
	log.Info("generation completed", "duration_ms", elapsed.Milliseconds(), "success", true)

	return &Result{
		Title:    deriveTitle(in, doc.Title),
		Payload:  doc.Payload,
		Provider: client.Provider(),
		Model:    model,
		Duration: elapsed,
	}, nil
}

// RewriteSection rewrites one section's text according to an instruction
// and returns the new text. Splitting list sections back into items is left
// to the caller.
func (s *Service) RewriteSection(ctx context.Context, in RewriteInput) (string, error) {
	if err := in.Validate(); err != nil {
		return "", err
	}

	start := time.Now()
	log := s.logger.With("tool", "rewrite", "section", in.SectionName, "prompt_version", string(s.promptVersion))

	client, err := s.client(in.Provider, in.Model)
	if err != nil {
		return "", s.fail(log, start, fmt.Errorf("create llm client: %w", err))
	}
	log = log.With("provider", string(client.Provider()), "model", client.Model())

	req := s.prompts.Rewrite.Request(map[string]string{
		"SECTION":     strings.TrimSpace(in.SectionName),
		"CONTENT":     in.CurrentContent,
		"INSTRUCTION": strings.TrimSpace(in.Instruction),
	}, s.maxTokens)

	raw, _, err := s.complete(ctx, client, req)
	if err != nil {
		return "", s.fail(log, start, err)
	}

	content, err := s.validator.DecodeRewrite(raw)
	if err != nil {
		return "", s.fail(log, start, err)
	}

	log.Info("rewrite completed", "duration_ms", time.Since(start).Milliseconds(), "success", true)
	return content, nil
}

func (s *Service) client(provider llm.Provider, model string) (llm.Client, error) {
	switch {
	case provider != "":
		return s.factory.CreateClient(provider, model)
	case model != "":
		return s.factory.CreateClient(s.factory.DefaultProvider(), model)
	default:
		return s.factory.CreateDefaultClient()
	}
}

// complete makes the single model round-trip under the service timeout and
// returns the extracted JSON text.
func (s *Service) complete(ctx context.Context, client llm.Client, req llm.Request) ([]byte, string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	resp, err := client.Complete(ctx, req)
	if err != nil {
		return nil, "", fmt.Errorf("llm call: %w", err)
	}
	if resp == nil || strings.TrimSpace(resp.Content) == "" {
		return nil, "", llm.ErrEmptyResponse
	}

	raw, err := llm.ExtractJSON(resp.Content)
	if err != nil {
		return nil, "", fmt.Errorf("parse llm response: %w", err)
	}

	model := resp.Model
	if model == "" {
		model = client.Model()
	}
	return raw, model, nil
}

func (s *Service) fail(log *slog.Logger, start time.Time, err error) error {
	log.Error("generation failed",
		"duration_ms", time.Since(start).Milliseconds(),
		"success", false,
		"error", err,
	)
	return fmt.Errorf("%w: %w", domain.ErrGenerationFailed, err)
}

func deriveTitle(in Input, generated string) string {
	if generated != "" {
		return generated
	}
	if in.Tool == domain.ToolPRD {
		return untitledPRD
	}

	text := strings.Join(strings.Fields(in.RawInput()), " ")
	if utf8.RuneCountInString(text) > titleInputLength {
		text = strings.TrimSpace(string([]rune(text)[:titleInputLength])) + "..."
	}
	return in.Tool.Label() + ": " + text
}
