package mock

import (
	"context"
	"encoding/json"
	"math"
	"sort"
	"sync"

	"github.com/dshills/prdforge/internal/domain"
	"github.com/dshills/prdforge/internal/repository"
	"github.com/google/uuid"
)

// Repository is an in-memory mock repository for testing.
type Repository struct {
	mu        sync.RWMutex
	artifacts map[uuid.UUID]*domain.Artifact
	versions  map[uuid.UUID]*domain.Version
	templates map[uuid.UUID]*domain.Template
	events    []*domain.AnalyticsEvent
	closed    bool

	// LogEventErr, when set, is returned by LogEvent.
	LogEventErr error
}

// New creates a new mock repository.
func New() *Repository {
	return &Repository{
		artifacts: make(map[uuid.UUID]*domain.Artifact),
		versions:  make(map[uuid.UUID]*domain.Version),
		templates: make(map[uuid.UUID]*domain.Template),
	}
}

// clonePayload deep-copies a payload so callers never share state with
// the store.
func clonePayload(p domain.Payload) domain.Payload {
	if p == nil {
		return nil
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return p
	}
	out, err := domain.DecodePayload(p.ToolType(), raw)
	if err != nil {
		return p
	}
	return out
}

func cloneArtifact(a *domain.Artifact) *domain.Artifact {
	c := *a
	c.Payload = clonePayload(a.Payload)
	if a.ShareID != nil {
		id := *a.ShareID
		c.ShareID = &id
	}
	return &c
}

func cloneVersion(v *domain.Version) *domain.Version {
	c := *v
	c.Payload = clonePayload(v.Payload)
	return &c
}

// Artifacts

func (r *Repository) CreateArtifact(ctx context.Context, a *domain.Artifact) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.artifacts[a.ID] = cloneArtifact(a)
	return nil
}

func (r *Repository) GetArtifact(ctx context.Context, id uuid.UUID) (*domain.Artifact, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.artifacts[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return cloneArtifact(a), nil
}

func (r *Repository) GetArtifactByShareID(ctx context.Context, shareID string) (*domain.Artifact, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, a := range r.artifacts {
		if a.ShareID != nil && *a.ShareID == shareID {
			return cloneArtifact(a), nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *Repository) ListArtifacts(ctx context.Context, filter repository.ArtifactFilter) ([]*domain.Artifact, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := []*domain.Artifact{}
	for _, a := range r.artifacts {
		if filter.ToolType != nil && a.ToolType != *filter.ToolType {
			continue
		}
		result = append(result, cloneArtifact(a))
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	if filter.Limit > 0 && len(result) > filter.Limit {
		result = result[:filter.Limit]
	}
	return result, nil
}

func (r *Repository) UpdateArtifact(ctx context.Context, a *domain.Artifact, expectedRevision int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.artifacts[a.ID]
	if !ok {
		return domain.ErrNotFound
	}
	if stored.Revision != expectedRevision {
		return domain.ErrConflict
	}
	stored.Title = a.Title
	stored.Payload = clonePayload(a.Payload)
	stored.UpdatedAt = a.UpdatedAt
	stored.Revision = expectedRevision + 1
	a.Revision = stored.Revision
	return nil
}

func (r *Repository) SetShareID(ctx context.Context, id uuid.UUID, shareID string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.artifacts[id]
	if !ok {
		return "", domain.ErrNotFound
	}
	if a.ShareID == nil {
		a.ShareID = &shareID
	}
	return *a.ShareID, nil
}

func (r *Repository) DeleteArtifact(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.artifacts[id]; !ok {
		return domain.ErrNotFound
	}
	for vid, v := range r.versions {
		if v.ArtifactID == id {
			delete(r.versions, vid)
		}
	}
	delete(r.artifacts, id)
	return nil
}

func (r *Repository) CountArtifacts(ctx context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.artifacts), nil
}

// Versions

func (r *Repository) CreateVersion(ctx context.Context, v *domain.Version) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	next := 1
	for _, existing := range r.versions {
		if existing.ArtifactID == v.ArtifactID && existing.Number >= next {
			next = existing.Number + 1
		}
	}
	v.Number = next
	r.versions[v.ID] = cloneVersion(v)
	return nil
}

func (r *Repository) GetVersion(ctx context.Context, id uuid.UUID) (*domain.Version, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.versions[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return cloneVersion(v), nil
}

func (r *Repository) ListVersions(ctx context.Context, artifactID uuid.UUID) ([]*domain.Version, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := []*domain.Version{}
	for _, v := range r.versions {
		if v.ArtifactID == artifactID {
			result = append(result, cloneVersion(v))
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Number > result[j].Number
	})
	return result, nil
}

// Templates

func (r *Repository) CreateTemplate(ctx context.Context, t *domain.Template) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := *t
	r.templates[t.ID] = &c
	return nil
}

func (r *Repository) GetTemplate(ctx context.Context, id uuid.UUID) (*domain.Template, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.templates[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	c := *t
	return &c, nil
}

func (r *Repository) ListTemplates(ctx context.Context) ([]*domain.Template, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := []*domain.Template{}
	for _, t := range r.templates {
		c := *t
		result = append(result, &c)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

func (r *Repository) DeleteTemplate(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.templates[id]; !ok {
		return domain.ErrNotFound
	}
	delete(r.templates, id)
	return nil
}

// Analytics

func (r *Repository) LogEvent(ctx context.Context, e *domain.AnalyticsEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.LogEventErr != nil {
		return r.LogEventErr
	}
	c := *e
	r.events = append(r.events, &c)
	return nil
}

// Events returns a copy of the logged events.
func (r *Repository) Events() []domain.AnalyticsEvent {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.AnalyticsEvent, len(r.events))
	for i, e := range r.events {
		out[i] = *e
	}
	return out
}

func (r *Repository) Summary(ctx context.Context) (*domain.AnalyticsSummary, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sum := &domain.AnalyticsSummary{
		TotalArtifacts: len(r.artifacts),
		ByTool:         map[domain.ToolType]int{},
	}
	var totalMs int64
	for _, e := range r.events {
		switch e.EventType {
		case domain.EventGenerated:
			sum.TotalGenerations++
			totalMs += e.GenerationTimeMs
			if e.ToolType != "" {
				sum.ByTool[e.ToolType]++
			}
		case domain.EventExported:
			sum.TotalExports++
		}
	}
	if sum.TotalGenerations > 0 {
		sum.AvgGenerationTimeMs = int64(math.Round(float64(totalMs) / float64(sum.TotalGenerations)))
	}
	return sum, nil
}

// Transaction support

func (r *Repository) WithTx(ctx context.Context, fn func(repository.Repository) error) error {
	return fn(r)
}

// Lifecycle

func (r *Repository) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

var _ repository.Repository = (*Repository)(nil)
