// Package artifacts owns the lifecycle of saved artifacts: creation, edits,
// AI rewrites, version history, restore, sharing and deletion.
package artifacts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/dshills/prdforge/internal/diff"
	"github.com/dshills/prdforge/internal/domain"
	"github.com/dshills/prdforge/internal/generation"
	"github.com/dshills/prdforge/internal/llm"
	"github.com/dshills/prdforge/internal/repository"
	"github.com/dshills/prdforge/internal/validator"
	"github.com/google/uuid"
)

// Rewriter produces replacement text for one section.
type Rewriter interface {
	RewriteSection(ctx context.Context, in generation.RewriteInput) (string, error)
}

// Service manages artifacts and their versions.
type Service struct {
	repo      repository.Repository
	validator *validator.Validator
	rewriter  Rewriter
	logger    *slog.Logger
	now       func() time.Time
}

// NewService creates a new artifact service. rewriter may be nil when no
// model is configured; Rewrite then fails with domain.ErrGenerationFailed.
func NewService(repo repository.Repository, val *validator.Validator, rewriter Rewriter, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:      repo,
		validator: val,
		rewriter:  rewriter,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// CreateInput describes a freshly generated artifact.
type CreateInput struct {
	ToolType domain.ToolType
	RawInput string
	Title    string
	Payload  domain.Payload
	Model    string
}

// Create stores a new artifact at revision 1. No version is written.
func (s *Service) Create(ctx context.Context, in CreateInput) (*domain.Artifact, error) {
	if in.Payload == nil || in.Payload.ToolType() != in.ToolType {
		return nil, domain.NewInputError("payload", fmt.Sprintf("must be a %s payload", in.ToolType))
	}

	now := s.now()
	a := &domain.Artifact{
		ID:        uuid.New(),
		ToolType:  in.ToolType,
		RawInput:  in.RawInput,
		Title:     in.Title,
		Payload:   in.Payload,
		Revision:  1,
		Model:     in.Model,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.CreateArtifact(ctx, a); err != nil {
		return nil, fmt.Errorf("create artifact: %w", err)
	}

	s.logger.Info("artifact created", "artifact_id", a.ID, "tool", string(a.ToolType))
	return a, nil
}

// Get returns an artifact by id.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*domain.Artifact, error) {
	return s.repo.GetArtifact(ctx, id)
}

// GetShared returns the artifact published under shareID.
func (s *Service) GetShared(ctx context.Context, shareID string) (*domain.Artifact, error) {
	if strings.TrimSpace(shareID) == "" {
		return nil, domain.ErrNotFound
	}
	return s.repo.GetArtifactByShareID(ctx, shareID)
}

// List returns artifacts newest first, optionally of one tool type.
func (s *Service) List(ctx context.Context, toolType *domain.ToolType) ([]*domain.Artifact, error) {
	return s.repo.ListArtifacts(ctx, repository.ArtifactFilter{ToolType: toolType})
}

// Patch is a partial edit. Fields holds top-level payload fields by their
// JSON name.
type Patch struct {
	Title            *string
	Fields           map[string]json.RawMessage
	ExpectedRevision *int
}

// Update applies a manual edit. The pre-edit state is kept as a version.
func (s *Service) Update(ctx context.Context, id uuid.UUID, p Patch) (*domain.Artifact, error) {
	if p.Title == nil && len(p.Fields) == 0 {
		return nil, domain.NewInputError("body", "must change title or payload")
	}
	if p.Title != nil && strings.TrimSpace(*p.Title) == "" {
		return nil, domain.NewInputError("title", "must not be empty")
	}

	return s.snapshotThenApply(ctx, id, p.ExpectedRevision, func(a *domain.Artifact) (string, error) {
		changed := make([]string, 0, len(p.Fields)+1)
		if p.Title != nil {
			a.Title = strings.TrimSpace(*p.Title)
			changed = append(changed, "title")
		}
		if len(p.Fields) > 0 {
			payload, err := s.merge(a, p.Fields)
			if err != nil {
				return "", err
			}
			a.Payload = payload
			for name := range p.Fields {
				changed = append(changed, name)
			}
			sort.Strings(changed[len(changed)-len(p.Fields):])
		}
		return "Edited: " + strings.Join(changed, ", "), nil
	})
}

// merge overlays fields onto the artifact's payload and re-validates the
// result. Derived values such as RICE scores are recomputed.
func (s *Service) merge(a *domain.Artifact, fields map[string]json.RawMessage) (domain.Payload, error) {
	doc, err := payloadFields(a.Payload)
	if err != nil {
		return nil, err
	}
	for name, value := range fields {
		if _, ok := doc[name]; !ok {
			return nil, domain.NewInputError("payload."+name, fmt.Sprintf("is not a %s field", a.ToolType))
		}
		doc[name] = value
	}
	return s.revalidate(a.ToolType, doc)
}

func (s *Service) revalidate(tool domain.ToolType, doc map[string]json.RawMessage) (domain.Payload, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	decoded, err := s.validator.Decode(tool, raw)
	if err != nil {
		var se *domain.SchemaValidationError
		if errors.As(err, &se) {
			return nil, domain.NewInputError("payload"+se.Path, "must be "+se.Expected)
		}
		return nil, err
	}
	domain.BackfillStories(decoded.Payload)
	return decoded.Payload, nil
}

func payloadFields(p domain.Payload) (map[string]json.RawMessage, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	doc := map[string]json.RawMessage{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("unmarshal payload: %w", err)
	}
	return doc, nil
}

// RewriteRequest asks the model to rewrite one section and applies the
// result.
type RewriteRequest struct {
	Section          string
	Instruction      string
	Provider         llm.Provider
	Model            string
	ExpectedRevision *int
}

// Rewrite reads a section, has the model rewrite it and stores the result
// as a new revision. The model call happens outside the transaction; the
// revision read before the call guards against edits made meanwhile.
func (s *Service) Rewrite(ctx context.Context, id uuid.UUID, req RewriteRequest) (*domain.Artifact, error) {
	a, err := s.repo.GetArtifact(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.ExpectedRevision != nil && *req.ExpectedRevision != a.Revision {
		return nil, domain.ErrConflict
	}

	section := strings.TrimSpace(req.Section)
	current, isList, err := readSection(a.Payload, section)
	if err != nil {
		return nil, err
	}
	if s.rewriter == nil {
		return nil, fmt.Errorf("%w: no model configured", domain.ErrGenerationFailed)
	}

	rewritten, err := s.rewriter.RewriteSection(ctx, generation.RewriteInput{
		SectionName:    section,
		CurrentContent: current,
		Instruction:    req.Instruction,
		Provider:       req.Provider,
		Model:          req.Model,
	})
	if err != nil {
		return nil, err
	}

	revision := a.Revision
	return s.snapshotThenApply(ctx, id, &revision, func(a *domain.Artifact) (string, error) {
		doc, err := payloadFields(a.Payload)
		if err != nil {
			return "", err
		}
		var value interface{} = strings.TrimSpace(rewritten)
		if isList {
			value = splitListSection(rewritten)
		}
		raw, err := json.Marshal(value)
		if err != nil {
			return "", err
		}
		doc[section] = raw

		payload, err := s.revalidate(a.ToolType, doc)
		if err != nil {
			return "", err
		}
		a.Payload = payload
		return "AI rewrite: " + section, nil
	})
}

// Restore overwrites the artifact's mutable fields with a version's
// snapshot. The current state is kept as a new version first.
func (s *Service) Restore(ctx context.Context, artifactID, versionID uuid.UUID, expectedRevision *int) (*domain.Artifact, error) {
	v, err := s.GetVersion(ctx, artifactID, versionID)
	if err != nil {
		return nil, err
	}

	return s.snapshotThenApply(ctx, artifactID, expectedRevision, func(a *domain.Artifact) (string, error) {
		doc, err := payloadFields(v.Payload)
		if err != nil {
			return "", err
		}
		payload, err := s.revalidate(a.ToolType, doc)
		if err != nil {
			return "", err
		}
		a.Title = v.Title
		a.Payload = payload
		return fmt.Sprintf("Before restore to v%d", v.Number), nil
	})
}

// mutation changes an artifact in place and returns the change summary
// recorded on the pre-change version. It must replace Payload rather than
// modify it, since the snapshot shares the old value.
type mutation func(a *domain.Artifact) (string, error)

// snapshotThenApply is the only write path for existing artifacts. In one
// transaction it loads the artifact, checks the revision, records the
// current state as a version and stores the mutated artifact.
func (s *Service) snapshotThenApply(ctx context.Context, id uuid.UUID, expectedRevision *int, mutate mutation) (*domain.Artifact, error) {
	var updated *domain.Artifact
	err := s.repo.WithTx(ctx, func(tx repository.Repository) error {
		a, err := tx.GetArtifact(ctx, id)
		if err != nil {
			return err
		}
		if expectedRevision != nil && *expectedRevision != a.Revision {
			return domain.ErrConflict
		}

		snapshot := a.Snapshot("")
		summary, err := mutate(a)
		if err != nil {
			return err
		}
		snapshot.ChangeSummary = summary
		snapshot.CreatedAt = s.now()

		if err := tx.CreateVersion(ctx, snapshot); err != nil {
			return fmt.Errorf("create version: %w", err)
		}

		a.UpdatedAt = s.now()
		if err := tx.UpdateArtifact(ctx, a, a.Revision); err != nil {
			return err
		}
		updated = a
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("artifact updated",
		"artifact_id", updated.ID,
		"revision", updated.Revision,
	)
	return updated, nil
}

// Delete removes an artifact and its versions.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.DeleteArtifact(ctx, id); err != nil {
		return err
	}
	s.logger.Info("artifact deleted", "artifact_id", id)
	return nil
}

// Share returns the artifact's share id, issuing one on first call.
func (s *Service) Share(ctx context.Context, id uuid.UUID) (string, error) {
	a, err := s.repo.GetArtifact(ctx, id)
	if err != nil {
		return "", err
	}
	if a.ShareID != nil {
		return *a.ShareID, nil
	}
	return s.repo.SetShareID(ctx, id, NewShareID())
}

// NewShareID returns 32 lowercase hex characters from a random UUID.
func NewShareID() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")
}

// ListVersions returns an artifact's versions newest first.
func (s *Service) ListVersions(ctx context.Context, id uuid.UUID) ([]*domain.Version, error) {
	if _, err := s.repo.GetArtifact(ctx, id); err != nil {
		return nil, err
	}
	return s.repo.ListVersions(ctx, id)
}

// GetVersion returns a version that belongs to the artifact.
func (s *Service) GetVersion(ctx context.Context, artifactID, versionID uuid.UUID) (*domain.Version, error) {
	if _, err := s.repo.GetArtifact(ctx, artifactID); err != nil {
		return nil, err
	}
	v, err := s.repo.GetVersion(ctx, versionID)
	if err != nil {
		return nil, err
	}
	if v.ArtifactID != artifactID {
		return nil, domain.ErrVersionMismatch
	}
	return v, nil
}

// DiffVersion compares a version with the artifact's current state.
func (s *Service) DiffVersion(ctx context.Context, artifactID, versionID uuid.UUID) (*diff.Result, error) {
	v, err := s.GetVersion(ctx, artifactID, versionID)
	if err != nil {
		return nil, err
	}
	a, err := s.repo.GetArtifact(ctx, artifactID)
	if err != nil {
		return nil, err
	}
	return diff.Documents(diff.VersionSide(v), diff.ArtifactSide(a))
}

// Compare diffs two artifacts of the same tool type.
func (s *Service) Compare(ctx context.Context, baseID, targetID uuid.UUID) (*diff.Result, error) {
	base, err := s.repo.GetArtifact(ctx, baseID)
	if err != nil {
		return nil, err
	}
	target, err := s.repo.GetArtifact(ctx, targetID)
	if err != nil {
		return nil, err
	}
	if base.ToolType != target.ToolType {
		return nil, domain.NewInputError("otherId", fmt.Sprintf("must be a %s artifact", base.ToolType))
	}
	return diff.Documents(diff.ArtifactSide(base), diff.ArtifactSide(target))
}
