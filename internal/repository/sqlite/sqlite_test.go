package sqlite

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/dshills/prdforge/internal/domain"
	"github.com/dshills/prdforge/internal/repository"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	tmpFile, err := os.CreateTemp("", "prdforge-test-*.db")
	require.NoError(t, err)
	tmpFile.Close()
	t.Cleanup(func() { os.Remove(tmpFile.Name()) })

	repo, err := New(tmpFile.Name())
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func newArtifact(tool domain.ToolType, created time.Time) *domain.Artifact {
	p, _ := domain.NewPayload(tool)
	return &domain.Artifact{
		ID:        uuid.New(),
		ToolType:  tool,
		RawInput:  "A habit tracker for remote teams",
		Title:     "Habit Tracker",
		Payload:   p,
		Revision:  1,
		Model:     "mock-model",
		CreatedAt: created,
		UpdatedAt: created,
	}
}

func TestSQLiteRepository_Artifacts(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	now := time.Now().UTC()

	a := newArtifact(domain.ToolPRD, now)
	a.Payload = &domain.PRD{
		Goals:       []string{"retention"},
		Features:    []string{},
		UserStories: []domain.UserStory{{ID: "us-1", Title: "Log", AcceptanceCriteria: []string{"ok"}, EdgeCases: []string{}, Priority: domain.PriorityHigh}},
		Status:      domain.PRDStatusDraft,
	}
	require.NoError(t, repo.CreateArtifact(ctx, a))

	got, err := repo.GetArtifact(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, a.Title, got.Title)
	assert.Equal(t, 1, got.Revision)
	assert.Equal(t, "mock-model", got.Model)
	assert.True(t, got.CreatedAt.Equal(now), "CreatedAt = %v, want %v", got.CreatedAt, now)

	prd, ok := got.Payload.(*domain.PRD)
	require.True(t, ok, "payload type = %T", got.Payload)
	require.Len(t, prd.UserStories, 1)
	assert.Equal(t, domain.PriorityHigh, prd.UserStories[0].Priority)
	assert.Nil(t, got.ShareID)

	_, err = repo.GetArtifact(ctx, uuid.New())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSQLiteRepository_ListArtifacts(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	base := time.Now().UTC()

	older := newArtifact(domain.ToolPRD, base.Add(-time.Hour))
	newer := newArtifact(domain.ToolPRD, base)
	other := newArtifact(domain.ToolSprintPlanner, base.Add(-time.Minute))
	for _, a := range []*domain.Artifact{older, newer, other} {
		require.NoError(t, repo.CreateArtifact(ctx, a))
	}

	all, err := repo.ListArtifacts(ctx, repository.ArtifactFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, newer.ID, all[0].ID)
	assert.Equal(t, older.ID, all[2].ID)

	tool := domain.ToolPRD
	prds, err := repo.ListArtifacts(ctx, repository.ArtifactFilter{ToolType: &tool})
	require.NoError(t, err)
	assert.Len(t, prds, 2)

	limited, err := repo.ListArtifacts(ctx, repository.ArtifactFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	empty, err := repo.ListArtifacts(ctx, repository.ArtifactFilter{ToolType: ptr(domain.ToolInterviewPrep)})
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

func ptr[T any](v T) *T { return &v }

func TestSQLiteRepository_UpdateArtifactRevision(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	a := newArtifact(domain.ToolProblemRefiner, time.Now().UTC())
	require.NoError(t, repo.CreateArtifact(ctx, a))

	a.Title = "Renamed"
	a.UpdatedAt = time.Now().UTC()
	require.NoError(t, repo.UpdateArtifact(ctx, a, 1))
	assert.Equal(t, 2, a.Revision)

	got, err := repo.GetArtifact(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Title)
	assert.Equal(t, 2, got.Revision)

	// Stale revision
	assert.ErrorIs(t, repo.UpdateArtifact(ctx, a, 1), domain.ErrConflict)

	missing := newArtifact(domain.ToolPRD, time.Now().UTC())
	assert.ErrorIs(t, repo.UpdateArtifact(ctx, missing, 1), domain.ErrNotFound)
}

func TestSQLiteRepository_ShareID(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	a := newArtifact(domain.ToolPRD, time.Now().UTC())
	b := newArtifact(domain.ToolPRD, time.Now().UTC())
	for _, x := range []*domain.Artifact{a, b} {
		require.NoError(t, repo.CreateArtifact(ctx, x))
	}

	got, err := repo.SetShareID(ctx, a.ID, "first")
	require.NoError(t, err)
	assert.Equal(t, "first", got)

	// Stable once issued
	got, err = repo.SetShareID(ctx, a.ID, "second")
	require.NoError(t, err)
	assert.Equal(t, "first", got)

	shared, err := repo.GetArtifactByShareID(ctx, "first")
	require.NoError(t, err)
	assert.Equal(t, a.ID, shared.ID)

	_, err = repo.SetShareID(ctx, b.ID, "first")
	assert.ErrorIs(t, err, domain.ErrConflict)

	_, err = repo.SetShareID(ctx, uuid.New(), "x")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = repo.GetArtifactByShareID(ctx, "nope")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSQLiteRepository_Versions(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	a := newArtifact(domain.ToolUserStories, time.Now().UTC())
	require.NoError(t, repo.CreateArtifact(ctx, a))

	first := a.Snapshot("Edited: title")
	require.NoError(t, repo.CreateVersion(ctx, first))
	second := a.Snapshot("AI rewrite: userStories")
	require.NoError(t, repo.CreateVersion(ctx, second))
	assert.Equal(t, 1, first.Number)
	assert.Equal(t, 2, second.Number)

	versions, err := repo.ListVersions(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, versions, 2)
	assert.Equal(t, second.ID, versions[0].ID)

	got, err := repo.GetVersion(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, "Edited: title", got.ChangeSummary)
	assert.Equal(t, domain.ToolUserStories, got.ToolType)
	assert.IsType(t, &domain.UserStorySet{}, got.Payload)

	// Delete cascades
	require.NoError(t, repo.DeleteArtifact(ctx, a.ID))
	_, err = repo.GetVersion(ctx, first.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.ErrorIs(t, repo.DeleteArtifact(ctx, a.ID), domain.ErrNotFound)
}

func TestSQLiteRepository_DeleteKeepsOtherArtifactVersions(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	a := newArtifact(domain.ToolPRD, time.Now().UTC())
	b := newArtifact(domain.ToolPRD, time.Now().UTC())
	for _, x := range []*domain.Artifact{a, b} {
		require.NoError(t, repo.CreateArtifact(ctx, x))
		require.NoError(t, repo.CreateVersion(ctx, x.Snapshot("Edited: title")))
	}
	kept := b.Snapshot("Edited: goals")
	require.NoError(t, repo.CreateVersion(ctx, kept))

	require.NoError(t, repo.DeleteArtifact(ctx, a.ID))

	gone, err := repo.ListVersions(ctx, a.ID)
	require.NoError(t, err)
	assert.Empty(t, gone)

	versions, err := repo.ListVersions(ctx, b.ID)
	require.NoError(t, err)
	assert.Len(t, versions, 2)
	got, err := repo.GetVersion(ctx, kept.ID)
	require.NoError(t, err)
	assert.Equal(t, b.ID, got.ArtifactID)
}

func TestSQLiteRepository_Templates(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	desc := "Starter"
	tmpl := &domain.Template{
		ID:          uuid.New(),
		Name:        "Habit",
		Description: &desc,
		Idea:        "A habit tracker for remote teams",
		Category:    domain.DefaultTemplateCategory,
		CreatedAt:   time.Now().UTC(),
	}
	require.NoError(t, repo.CreateTemplate(ctx, tmpl))

	got, err := repo.GetTemplate(ctx, tmpl.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Description)
	assert.Equal(t, desc, *got.Description)

	list, err := repo.ListTemplates(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, repo.DeleteTemplate(ctx, tmpl.ID))
	assert.ErrorIs(t, repo.DeleteTemplate(ctx, tmpl.ID), domain.ErrNotFound)
}

func TestSQLiteRepository_Analytics(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	a := newArtifact(domain.ToolPRD, time.Now().UTC())
	require.NoError(t, repo.CreateArtifact(ctx, a))

	events := []*domain.AnalyticsEvent{
		{EventType: domain.EventGenerated, ToolType: domain.ToolPRD, ArtifactID: &a.ID, GenerationTimeMs: 100},
		{EventType: domain.EventGenerated, ToolType: domain.ToolPRD, GenerationTimeMs: 201},
		{EventType: domain.EventGenerated, ToolType: domain.ToolSprintPlanner, GenerationTimeMs: 300},
		{EventType: domain.EventExported, ToolType: domain.ToolPRD, ExportType: domain.ExportMarkdown},
	}
	for _, e := range events {
		e.ID = uuid.New()
		e.CreatedAt = time.Now().UTC()
		require.NoError(t, repo.LogEvent(ctx, e))
	}

	sum, err := repo.Summary(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.TotalArtifacts)
	assert.Equal(t, 3, sum.TotalGenerations)
	assert.Equal(t, 1, sum.TotalExports)
	// (100+201+300)/3 = 200.33
	assert.Equal(t, int64(200), sum.AvgGenerationTimeMs)
	assert.Equal(t, 2, sum.ByTool[domain.ToolPRD])
	assert.Equal(t, 1, sum.ByTool[domain.ToolSprintPlanner])
}

func TestSQLiteRepository_WithTxRollback(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	a := newArtifact(domain.ToolPRD, time.Now().UTC())
	boom := errors.New("boom")
	err := repo.WithTx(ctx, func(tx repository.Repository) error {
		if err := tx.CreateArtifact(ctx, a); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)
	_, err = repo.GetArtifact(ctx, a.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound, "expected rollback")

	require.NoError(t, repo.WithTx(ctx, func(tx repository.Repository) error {
		return tx.CreateArtifact(ctx, a)
	}))
	_, err = repo.GetArtifact(ctx, a.ID)
	assert.NoError(t, err, "expected commit")
}
