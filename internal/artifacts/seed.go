package artifacts

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"

	"github.com/dshills/prdforge/internal/domain"
	"gopkg.in/yaml.v3"
)

//go:embed samples/prds.yaml
var samplesFS embed.FS

const sampleModel = "sample"

type sample struct {
	Title    string                 `yaml:"title"`
	RawInput string                 `yaml:"rawInput"`
	Payload  map[string]interface{} `yaml:"payload"`
}

// Seed stores the bundled sample PRDs when the store holds no artifacts.
// It returns how many artifacts were created; zero means the store was
// already populated.
func (s *Service) Seed(ctx context.Context) (int, error) {
	n, err := s.repo.CountArtifacts(ctx)
	if err != nil {
		return 0, fmt.Errorf("count artifacts: %w", err)
	}
	if n > 0 {
		s.logger.Info("database already seeded, skipping", "artifacts", n)
		return 0, nil
	}

	data, err := samplesFS.ReadFile("samples/prds.yaml")
	if err != nil {
		return 0, fmt.Errorf("read samples: %w", err)
	}
	var samples []sample
	if err := yaml.Unmarshal(data, &samples); err != nil {
		return 0, fmt.Errorf("parse samples: %w", err)
	}

	for _, smp := range samples {
		raw, err := json.Marshal(smp.Payload)
		if err != nil {
			return 0, fmt.Errorf("marshal sample %q: %w", smp.Title, err)
		}
		doc, err := s.validator.Decode(domain.ToolPRD, raw)
		if err != nil {
			return 0, fmt.Errorf("decode sample %q: %w", smp.Title, err)
		}
		if _, err := s.Create(ctx, CreateInput{
			ToolType: domain.ToolPRD,
			RawInput: smp.RawInput,
			Title:    smp.Title,
			Payload:  doc.Payload,
			Model:    sampleModel,
		}); err != nil {
			return 0, err
		}
	}

	s.logger.Info("database seeded", "artifacts", len(samples))
	return len(samples), nil
}
