package generation

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/dshills/prdforge/internal/domain"
	"github.com/dshills/prdforge/internal/llm"
)

const (
	maxInputLength       = 10000
	minFeatures          = 2
	minInstructionLength = 5
)

// minInputLength is the shortest free text each tool accepts.
var minInputLength = map[domain.ToolType]int{
	domain.ToolPRD:            20,
	domain.ToolUserStories:    10,
	domain.ToolProblemRefiner: 10,
	domain.ToolSprintPlanner:  20,
	domain.ToolInterviewPrep:  10,
}

// inputField names the caller-facing field for each tool's free text.
var inputField = map[domain.ToolType]string{
	domain.ToolPRD:                "idea",
	domain.ToolUserStories:        "featureIdea",
	domain.ToolProblemRefiner:     "problem",
	domain.ToolFeaturePrioritizer: "features",
	domain.ToolSprintPlanner:      "backlog",
	domain.ToolInterviewPrep:      "question",
}

// Input is a generation request for one tool.
type Input struct {
	Tool     domain.ToolType
	Text     string
	Features []string // feature-prioritizer only
	Answer   string   // interview-prep only; optional draft answer
	Provider llm.Provider
	Model    string
}

// Validate checks length and count constraints. It is cheap and has no side
// effects, so callers run it before anything touches the model.
func (in Input) Validate() error {
	if _, ok := inputField[in.Tool]; !ok {
		return domain.NewInputError("toolType", fmt.Sprintf("unknown tool %q", in.Tool))
	}

	if in.Tool == domain.ToolFeaturePrioritizer {
		if len(in.Features) < minFeatures {
			return domain.NewInputError("features", fmt.Sprintf("must contain at least %d features", minFeatures))
		}
		for i, f := range in.Features {
			if strings.TrimSpace(f) == "" {
				return domain.NewInputError(fmt.Sprintf("features[%d]", i), "must not be empty")
			}
		}
		if utf8.RuneCountInString(strings.Join(in.Features, "\n")) > maxInputLength {
			return domain.NewInputError("features", fmt.Sprintf("must be at most %d characters in total", maxInputLength))
		}
		if utf8.RuneCountInString(strings.TrimSpace(in.Text)) > maxInputLength {
			return domain.NewInputError("context", fmt.Sprintf("must be at most %d characters", maxInputLength))
		}
		return nil
	}

	field := inputField[in.Tool]
	n := utf8.RuneCountInString(strings.TrimSpace(in.Text))
	if min := minInputLength[in.Tool]; n < min {
		return domain.NewInputError(field, fmt.Sprintf("must be at least %d characters", min))
	}
	if n > maxInputLength {
		return domain.NewInputError(field, fmt.Sprintf("must be at most %d characters", maxInputLength))
	}
	if utf8.RuneCountInString(in.Answer) > maxInputLength {
		return domain.NewInputError("answer", fmt.Sprintf("must be at most %d characters", maxInputLength))
	}
	return nil
}

// RawInput is the caller text as stored on the artifact.
func (in Input) RawInput() string {
	if in.Tool == domain.ToolFeaturePrioritizer {
		trimmed := make([]string, len(in.Features))
		for i, f := range in.Features {
			trimmed[i] = strings.TrimSpace(f)
		}
		raw := strings.Join(trimmed, "\n")
		if ctx := strings.TrimSpace(in.Text); ctx != "" {
			raw += "\n\n" + ctx
		}
		return raw
	}
	return strings.TrimSpace(in.Text)
}

func (in Input) promptInput() string {
	if in.Tool != domain.ToolFeaturePrioritizer {
		return in.RawInput()
	}
	var b strings.Builder
	for i, f := range in.Features {
		fmt.Fprintf(&b, "%d. %s\n", i+1, strings.TrimSpace(f))
	}
	if ctx := strings.TrimSpace(in.Text); ctx != "" {
		fmt.Fprintf(&b, "\nProduct context: %s\n", ctx)
	}
	return strings.TrimRight(b.String(), "\n")
}

// RewriteInput asks for one section of a document to be rewritten.
type RewriteInput struct {
	SectionName    string
	CurrentContent string
	Instruction    string
	Provider       llm.Provider
	Model          string
}

// Validate checks the rewrite constraints.
func (in RewriteInput) Validate() error {
	if strings.TrimSpace(in.SectionName) == "" {
		return domain.NewInputError("sectionName", "must not be empty")
	}
	if strings.TrimSpace(in.CurrentContent) == "" {
		return domain.NewInputError("currentContent", "must not be empty")
	}
	if utf8.RuneCountInString(in.CurrentContent) > maxInputLength {
		return domain.NewInputError("currentContent", fmt.Sprintf("must be at most %d characters", maxInputLength))
	}
	n := utf8.RuneCountInString(strings.TrimSpace(in.Instruction))
	if n < minInstructionLength {
		return domain.NewInputError("instruction", fmt.Sprintf("must be at least %d characters", minInstructionLength))
	}
	if n > maxInputLength {
		return domain.NewInputError("instruction", fmt.Sprintf("must be at most %d characters", maxInputLength))
	}
	return nil
}
