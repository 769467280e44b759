package repository

import (
	"context"

	"github.com/dshills/prdforge/internal/domain"
	"github.com/google/uuid"
)

// ArtifactFilter narrows ListArtifacts.
type ArtifactFilter struct {
	ToolType *domain.ToolType
	Limit    int // 0 means no limit
}

// Repository defines the interface for persistent storage.
type Repository interface {
	// Artifacts
	CreateArtifact(ctx context.Context, artifact *domain.Artifact) error
	GetArtifact(ctx context.Context, id uuid.UUID) (*domain.Artifact, error)
	GetArtifactByShareID(ctx context.Context, shareID string) (*domain.Artifact, error)
	ListArtifacts(ctx context.Context, filter ArtifactFilter) ([]*domain.Artifact, error)
	// UpdateArtifact stores title, payload and updated_at and bumps the
	// revision. It fails with domain.ErrConflict when the stored revision is
	// not expectedRevision. On success artifact.Revision holds the new value.
	UpdateArtifact(ctx context.Context, artifact *domain.Artifact, expectedRevision int) error
	// SetShareID sets the share id only when none is set yet and returns the
	// id that is stored afterwards.
	SetShareID(ctx context.Context, id uuid.UUID, shareID string) (string, error)
	DeleteArtifact(ctx context.Context, id uuid.UUID) error
	CountArtifacts(ctx context.Context) (int, error)

	// Versions
	// CreateVersion assigns the next per-artifact number to version.Number.
	CreateVersion(ctx context.Context, version *domain.Version) error
	GetVersion(ctx context.Context, id uuid.UUID) (*domain.Version, error)
	ListVersions(ctx context.Context, artifactID uuid.UUID) ([]*domain.Version, error)

	// Templates
	CreateTemplate(ctx context.Context, template *domain.Template) error
	GetTemplate(ctx context.Context, id uuid.UUID) (*domain.Template, error)
	ListTemplates(ctx context.Context) ([]*domain.Template, error)
	DeleteTemplate(ctx context.Context, id uuid.UUID) error

	// Analytics
	LogEvent(ctx context.Context, event *domain.AnalyticsEvent) error
	Summary(ctx context.Context) (*domain.AnalyticsSummary, error)

	// Transaction support
	WithTx(ctx context.Context, fn func(Repository) error) error

	// Lifecycle
	Close() error
}
