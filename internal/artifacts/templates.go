package artifacts

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/dshills/prdforge/internal/domain"
	"github.com/google/uuid"
)

const (
	minTemplateIdea     = 20
	maxTemplateName     = 200
	maxTemplateIdea     = 10000
	maxTemplateCategory = 100
)

// TemplateInput is a template to save.
type TemplateInput struct {
	Name        string
	Description *string
	Idea        string
	Category    string
}

// Validate checks template constraints.
func (in TemplateInput) Validate() error {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return domain.NewInputError("name", "must not be empty")
	}
	if utf8.RuneCountInString(name) > maxTemplateName {
		return domain.NewInputError("name", fmt.Sprintf("must be at most %d characters", maxTemplateName))
	}
	n := utf8.RuneCountInString(strings.TrimSpace(in.Idea))
	if n < minTemplateIdea {
		return domain.NewInputError("idea", fmt.Sprintf("must be at least %d characters", minTemplateIdea))
	}
	if n > maxTemplateIdea {
		return domain.NewInputError("idea", fmt.Sprintf("must be at most %d characters", maxTemplateIdea))
	}
	if utf8.RuneCountInString(in.Category) > maxTemplateCategory {
		return domain.NewInputError("category", fmt.Sprintf("must be at most %d characters", maxTemplateCategory))
	}
	return nil
}

// CreateTemplate saves a reusable idea.
func (s *Service) CreateTemplate(ctx context.Context, in TemplateInput) (*domain.Template, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	category := strings.TrimSpace(in.Category)
	if category == "" {
		category = domain.DefaultTemplateCategory
	}
	var description *string
	if in.Description != nil {
		if d := strings.TrimSpace(*in.Description); d != "" {
			description = &d
		}
	}

	t := &domain.Template{
		ID:          uuid.New(),
		Name:        strings.TrimSpace(in.Name),
		Description: description,
		Idea:        strings.TrimSpace(in.Idea),
		Category:    category,
		CreatedAt:   s.now(),
	}
	if err := s.repo.CreateTemplate(ctx, t); err != nil {
		return nil, fmt.Errorf("create template: %w", err)
	}
	return t, nil
}

// ListTemplates returns saved templates newest first.
func (s *Service) ListTemplates(ctx context.Context) ([]*domain.Template, error) {
	return s.repo.ListTemplates(ctx)
}

// DeleteTemplate removes a template.
func (s *Service) DeleteTemplate(ctx context.Context, id uuid.UUID) error {
	return s.repo.DeleteTemplate(ctx, id)
}
