package artifacts

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/dshills/prdforge/internal/domain"
	"github.com/dshills/prdforge/internal/generation"
	"github.com/dshills/prdforge/internal/repository/mock"
	"github.com/dshills/prdforge/internal/validator"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRewriter struct {
	mu    sync.Mutex
	reply string
	err   error
	last  generation.RewriteInput
}

func (f *fakeRewriter) RewriteSection(ctx context.Context, in generation.RewriteInput) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.last = in
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

func setupService(t *testing.T) (*Service, *mock.Repository, *fakeRewriter) {
	t.Helper()
	val, err := validator.New()
	require.NoError(t, err)
	repo := mock.New()
	rw := &fakeRewriter{}
	return NewService(repo, val, rw, nil), repo, rw
}

func samplePRD() *domain.PRD {
	return &domain.PRD{
		ProblemStatement: "Remote teams lose habits",
		TargetAudience:   "Team leads",
		Goals:            []string{"Grow retention"},
		Features:         []string{"Streaks", "Reminders"},
		SuccessMetrics:   []string{},
		UserStories: []domain.UserStory{{
			ID: "us-1", Title: "Log a habit", AcceptanceCriteria: []string{}, EdgeCases: []string{}, Priority: domain.PriorityMedium,
		}},
		OutOfScope:  []string{},
		Assumptions: []string{},
		Status:      domain.PRDStatusDraft,
	}
}

func createPRD(t *testing.T, svc *Service) *domain.Artifact {
	t.Helper()
	a, err := svc.Create(context.Background(), CreateInput{
		ToolType: domain.ToolPRD,
		RawInput: "A habit tracker for remote teams",
		Title:    "Habit Tracker",
		Payload:  samplePRD(),
		Model:    "mock-model",
	})
	require.NoError(t, err)
	return a
}

func TestCreate(t *testing.T) {
	svc, repo, _ := setupService(t)
	ctx := context.Background()

	a := createPRD(t, svc)
	assert.Equal(t, 1, a.Revision)
	assert.NotEqual(t, uuid.Nil, a.ID)
	assert.Equal(t, a.CreatedAt, a.UpdatedAt)

	versions, err := repo.ListVersions(ctx, a.ID)
	require.NoError(t, err)
	assert.Empty(t, versions)

	_, err = svc.Create(ctx, CreateInput{ToolType: domain.ToolSprintPlanner, Payload: samplePRD()})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestUpdate_SnapshotsBeforeApplying(t *testing.T) {
	svc, _, _ := setupService(t)
	ctx := context.Background()
	a := createPRD(t, svc)

	title := "  Habit Tracker v2 "
	updated, err := svc.Update(ctx, a.ID, Patch{
		Title:  &title,
		Fields: map[string]json.RawMessage{"goals": json.RawMessage(`["Grow retention","Cut churn"]`)},
	})
	require.NoError(t, err)
	assert.Equal(t, "Habit Tracker v2", updated.Title)
	assert.Equal(t, 2, updated.Revision)
	assert.Equal(t, []string{"Grow retention", "Cut churn"}, updated.Payload.(*domain.PRD).Goals)
	assert.True(t, !updated.UpdatedAt.Before(a.UpdatedAt))

	versions, err := svc.ListVersions(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, versions, 1)
	v := versions[0]
	assert.Equal(t, 1, v.Number)
	assert.Equal(t, "Edited: title, goals", v.ChangeSummary)
	assert.Equal(t, "Habit Tracker", v.Title)
	assert.Equal(t, []string{"Grow retention"}, v.Payload.(*domain.PRD).Goals)
}

func TestUpdate_Errors(t *testing.T) {
	svc, _, _ := setupService(t)
	ctx := context.Background()
	a := createPRD(t, svc)

	blank := "   "
	tests := []struct {
		name    string
		id      uuid.UUID
		patch   Patch
		wantErr error
		field   string
	}{
		{"missing artifact", uuid.New(), Patch{Title: ptr("x")}, domain.ErrNotFound, ""},
		{"empty patch", a.ID, Patch{}, domain.ErrInvalidInput, "body"},
		{"blank title", a.ID, Patch{Title: &blank}, domain.ErrInvalidInput, "title"},
		{"unknown field", a.ID, Patch{Fields: map[string]json.RawMessage{"nope": json.RawMessage(`"x"`)}}, domain.ErrInvalidInput, "payload.nope"},
		{"wrong type", a.ID, Patch{Fields: map[string]json.RawMessage{"goals": json.RawMessage(`"x"`)}}, domain.ErrInvalidInput, "payload/goals"},
		{"stale revision", a.ID, Patch{Title: ptr("x"), ExpectedRevision: ptr(7)}, domain.ErrConflict, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Update(ctx, tt.id, tt.patch)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
			if tt.field != "" {
				var ie *domain.InputValidationError
				require.True(t, errors.As(err, &ie))
				assert.Equal(t, tt.field, ie.Field)
			}
		})
	}

	// Nothing was written by the failed attempts.
	versions, err := svc.ListVersions(ctx, a.ID)
	require.NoError(t, err)
	assert.Empty(t, versions)
	got, _ := svc.Get(ctx, a.ID)
	assert.Equal(t, 1, got.Revision)
}

func ptr[T any](v T) *T { return &v }

func TestUpdate_ExpectedRevision(t *testing.T) {
	svc, _, _ := setupService(t)
	ctx := context.Background()
	a := createPRD(t, svc)

	_, err := svc.Update(ctx, a.ID, Patch{Title: ptr("First"), ExpectedRevision: ptr(1)})
	require.NoError(t, err)

	// A second writer still holding revision 1 loses.
	_, err = svc.Update(ctx, a.ID, Patch{Title: ptr("Second"), ExpectedRevision: ptr(1)})
	assert.ErrorIs(t, err, domain.ErrConflict)

	got, _ := svc.Get(ctx, a.ID)
	assert.Equal(t, "First", got.Title)
}

func TestUpdate_RecomputesRice(t *testing.T) {
	svc, _, _ := setupService(t)
	ctx := context.Background()

	a, err := svc.Create(ctx, CreateInput{
		ToolType: domain.ToolFeaturePrioritizer,
		RawInput: "SSO\nDark mode",
		Title:    "Feature Prioritization: SSO",
		Payload: &domain.FeaturePrioritization{Features: []domain.PrioritizedFeature{
			{Name: "SSO", Reach: 5, Impact: 5, Confidence: 5, Effort: 5, RiceScore: 25},
		}},
	})
	require.NoError(t, err)

	updated, err := svc.Update(ctx, a.ID, Patch{Fields: map[string]json.RawMessage{
		"features": json.RawMessage(`[{"name":"SSO","reach":10,"impact":4,"confidence":5,"effort":2,"riceScore":1}]`),
	}})
	require.NoError(t, err)
	fp := updated.Payload.(*domain.FeaturePrioritization)
	assert.Equal(t, 100.0, fp.Features[0].RiceScore)
}

func TestUpdate_BackfillsStoryIDs(t *testing.T) {
	svc, _, _ := setupService(t)
	ctx := context.Background()
	a := createPRD(t, svc)

	updated, err := svc.Update(ctx, a.ID, Patch{Fields: map[string]json.RawMessage{
		"userStories": json.RawMessage(`[{"id":"us-1","title":"Log a habit"},{"id":"","title":"Share a streak"}]`),
	}})
	require.NoError(t, err)

	prd := updated.Payload.(*domain.PRD)
	require.Len(t, prd.UserStories, 2)
	assert.Equal(t, "us-1", prd.UserStories[0].ID)
	assert.Equal(t, "us-2", prd.UserStories[1].ID)
	assert.Equal(t, domain.PriorityMedium, prd.UserStories[1].Priority)

	stored, err := svc.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "us-2", stored.Payload.(*domain.PRD).UserStories[1].ID)
}

func TestRewrite(t *testing.T) {
	svc, _, rw := setupService(t)
	ctx := context.Background()
	a := createPRD(t, svc)

	rw.reply = "- Streaks with reminders\n* Weekly digest\n3. Team leaderboard\n\n"
	updated, err := svc.Rewrite(ctx, a.ID, RewriteRequest{Section: "features", Instruction: "Make them punchier"})
	require.NoError(t, err)

	assert.Equal(t, "- Streaks\n- Reminders", rw.last.CurrentContent)
	assert.Equal(t, "features", rw.last.SectionName)
	assert.Equal(t, []string{"Streaks with reminders", "Weekly digest", "Team leaderboard"}, updated.Payload.(*domain.PRD).Features)
	assert.Equal(t, 2, updated.Revision)

	versions, _ := svc.ListVersions(ctx, a.ID)
	require.Len(t, versions, 1)
	assert.Equal(t, "AI rewrite: features", versions[0].ChangeSummary)
	assert.Equal(t, []string{"Streaks", "Reminders"}, versions[0].Payload.(*domain.PRD).Features)
}

func TestRewrite_TextSection(t *testing.T) {
	svc, _, rw := setupService(t)
	ctx := context.Background()
	a := createPRD(t, svc)

	rw.reply = "  Distributed teams struggle to keep shared habits.  "
	updated, err := svc.Rewrite(ctx, a.ID, RewriteRequest{Section: "problemStatement", Instruction: "Be sharper"})
	require.NoError(t, err)
	assert.Equal(t, "Remote teams lose habits", rw.last.CurrentContent)
	assert.Equal(t, "Distributed teams struggle to keep shared habits.", updated.Payload.(*domain.PRD).ProblemStatement)
}

func TestRewrite_Errors(t *testing.T) {
	svc, _, rw := setupService(t)
	ctx := context.Background()
	a := createPRD(t, svc)

	_, err := svc.Rewrite(ctx, a.ID, RewriteRequest{Section: "userStories", Instruction: "Be sharper"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = svc.Rewrite(ctx, a.ID, RewriteRequest{Section: "bogus", Instruction: "Be sharper"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = svc.Rewrite(ctx, uuid.New(), RewriteRequest{Section: "goals", Instruction: "Be sharper"})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	rw.err = domain.ErrGenerationFailed
	_, err = svc.Rewrite(ctx, a.ID, RewriteRequest{Section: "goals", Instruction: "Be sharper"})
	assert.ErrorIs(t, err, domain.ErrGenerationFailed)

	versions, _ := svc.ListVersions(ctx, a.ID)
	assert.Empty(t, versions)
}

func TestRestore(t *testing.T) {
	svc, _, _ := setupService(t)
	ctx := context.Background()
	a := createPRD(t, svc)

	_, err := svc.Update(ctx, a.ID, Patch{Title: ptr("Second")})
	require.NoError(t, err)
	_, err = svc.Update(ctx, a.ID, Patch{Title: ptr("Third")})
	require.NoError(t, err)

	versions, _ := svc.ListVersions(ctx, a.ID)
	require.Len(t, versions, 2)
	first := versions[1]
	require.Equal(t, 1, first.Number)

	restored, err := svc.Restore(ctx, a.ID, first.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, "Habit Tracker", restored.Title)
	assert.Equal(t, 4, restored.Revision)

	versions, _ = svc.ListVersions(ctx, a.ID)
	require.Len(t, versions, 3)
	assert.Equal(t, 3, versions[0].Number)
	assert.Equal(t, "Before restore to v1", versions[0].ChangeSummary)
	assert.Equal(t, "Third", versions[0].Title)
}

func TestRestore_UndoWithBeforeRestoreVersion(t *testing.T) {
	svc, _, _ := setupService(t)
	ctx := context.Background()
	a := createPRD(t, svc)

	edited, err := svc.Update(ctx, a.ID, Patch{
		Title:  ptr("Second"),
		Fields: map[string]json.RawMessage{"goals": json.RawMessage(`["Ship weekly"]`)},
	})
	require.NoError(t, err)
	beforeRestore, err := json.Marshal(edited.Payload)
	require.NoError(t, err)

	versions, _ := svc.ListVersions(ctx, a.ID)
	require.Len(t, versions, 1)
	_, err = svc.Restore(ctx, a.ID, versions[0].ID, nil)
	require.NoError(t, err)

	versions, _ = svc.ListVersions(ctx, a.ID)
	require.Len(t, versions, 2)
	require.Equal(t, "Before restore to v1", versions[0].ChangeSummary)

	undone, err := svc.Restore(ctx, a.ID, versions[0].ID, nil)
	require.NoError(t, err)
	assert.Equal(t, "Second", undone.Title)
	got, err := json.Marshal(undone.Payload)
	require.NoError(t, err)
	assert.JSONEq(t, string(beforeRestore), string(got))
}

func TestRestore_Errors(t *testing.T) {
	svc, _, _ := setupService(t)
	ctx := context.Background()
	a := createPRD(t, svc)
	b := createPRD(t, svc)

	_, err := svc.Update(ctx, b.ID, Patch{Title: ptr("Other")})
	require.NoError(t, err)
	otherVersions, _ := svc.ListVersions(ctx, b.ID)
	require.Len(t, otherVersions, 1)

	_, err = svc.Restore(ctx, a.ID, otherVersions[0].ID, nil)
	assert.ErrorIs(t, err, domain.ErrVersionMismatch)

	_, err = svc.Restore(ctx, a.ID, uuid.New(), nil)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = svc.Restore(ctx, uuid.New(), otherVersions[0].ID, nil)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDelete(t *testing.T) {
	svc, repo, _ := setupService(t)
	ctx := context.Background()
	a := createPRD(t, svc)
	_, err := svc.Update(ctx, a.ID, Patch{Title: ptr("Second")})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, a.ID))
	_, err = svc.Get(ctx, a.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	versions, _ := repo.ListVersions(ctx, a.ID)
	assert.Empty(t, versions)

	assert.ErrorIs(t, svc.Delete(ctx, a.ID), domain.ErrNotFound)
}

func TestDelete_KeepsOtherArtifactVersions(t *testing.T) {
	svc, _, _ := setupService(t)
	ctx := context.Background()
	a := createPRD(t, svc)
	b := createPRD(t, svc)
	for _, id := range []uuid.UUID{a.ID, b.ID} {
		_, err := svc.Update(ctx, id, Patch{Title: ptr("Edited")})
		require.NoError(t, err)
	}

	require.NoError(t, svc.Delete(ctx, a.ID))

	_, err := svc.ListVersions(ctx, a.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	versions, err := svc.ListVersions(ctx, b.ID)
	require.NoError(t, err)
	assert.Len(t, versions, 1)
}

func TestShare(t *testing.T) {
	svc, _, _ := setupService(t)
	ctx := context.Background()
	a := createPRD(t, svc)

	id, err := svc.Share(ctx, a.ID)
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^[0-9a-f]{32}$`), id)

	again, err := svc.Share(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, id, again)

	shared, err := svc.GetShared(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, a.ID, shared.ID)

	_, err = svc.GetShared(ctx, "")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = svc.Share(ctx, uuid.New())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestNewShareID_Unique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := NewShareID()
		assert.Len(t, id, 32)
		assert.False(t, seen[id])
		seen[id] = true
	}
}

func TestDiffVersionAndCompare(t *testing.T) {
	svc, _, _ := setupService(t)
	ctx := context.Background()
	a := createPRD(t, svc)

	_, err := svc.Update(ctx, a.ID, Patch{Title: ptr("Renamed")})
	require.NoError(t, err)
	versions, _ := svc.ListVersions(ctx, a.ID)
	require.Len(t, versions, 1)

	d, err := svc.DiffVersion(ctx, a.ID, versions[0].ID)
	require.NoError(t, err)
	require.Len(t, d.Changes, 1)
	assert.Equal(t, "/title", d.Changes[0].Path)

	b := createPRD(t, svc)
	d, err = svc.Compare(ctx, a.ID, b.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, d.Summary.Modified)

	c, err := svc.Create(ctx, CreateInput{ToolType: domain.ToolSprintPlanner, Payload: &domain.SprintPlan{}})
	require.NoError(t, err)
	_, err = svc.Compare(ctx, a.ID, c.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestListVersions_UnknownArtifact(t *testing.T) {
	svc, _, _ := setupService(t)
	_, err := svc.ListVersions(context.Background(), uuid.New())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestList_FiltersByTool(t *testing.T) {
	svc, _, _ := setupService(t)
	ctx := context.Background()
	createPRD(t, svc)
	_, err := svc.Create(ctx, CreateInput{ToolType: domain.ToolInterviewPrep, Payload: &domain.InterviewPrep{}})
	require.NoError(t, err)

	all, err := svc.List(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	tool := domain.ToolInterviewPrep
	some, err := svc.List(ctx, &tool)
	require.NoError(t, err)
	assert.Len(t, some, 1)
}

func TestTemplates(t *testing.T) {
	svc, _, _ := setupService(t)
	ctx := context.Background()

	_, err := svc.CreateTemplate(ctx, TemplateInput{Name: "x", Idea: "too short"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	_, err = svc.CreateTemplate(ctx, TemplateInput{Name: " ", Idea: "A habit tracker for remote teams"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	blank := "  "
	tmpl, err := svc.CreateTemplate(ctx, TemplateInput{Name: "Habit", Description: &blank, Idea: "A habit tracker for remote teams"})
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultTemplateCategory, tmpl.Category)
	assert.Nil(t, tmpl.Description)

	list, err := svc.ListTemplates(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, svc.DeleteTemplate(ctx, tmpl.ID))
	assert.ErrorIs(t, svc.DeleteTemplate(ctx, tmpl.ID), domain.ErrNotFound)
}

func TestAnalytics(t *testing.T) {
	svc, repo, _ := setupService(t)
	ctx := context.Background()
	a := createPRD(t, svc)

	svc.RecordGeneration(ctx, a, 1500*time.Millisecond, "sess-1")
	svc.RecordExport(ctx, a.ToolType, &a.ID, domain.ExportMarkdown, "sess-1")

	events := repo.Events()
	require.Len(t, events, 2)
	assert.Equal(t, int64(1500), events[0].GenerationTimeMs)
	assert.Equal(t, len("A habit tracker for remote teams"), events[0].InputLength)
	assert.Equal(t, "sess-1", events[0].SessionID)

	sum, err := svc.Summary(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.TotalArtifacts)
	assert.Equal(t, 1, sum.TotalGenerations)
	assert.Equal(t, 1, sum.TotalExports)
	assert.Equal(t, int64(1500), sum.AvgGenerationTimeMs)
	assert.Equal(t, 1, sum.ByTool[domain.ToolPRD])
}

func TestAnalytics_FailureIsAdvisory(t *testing.T) {
	svc, repo, _ := setupService(t)
	repo.LogEventErr = errors.New("disk full")
	a := createPRD(t, svc)

	assert.NotPanics(t, func() {
		svc.RecordGeneration(context.Background(), a, time.Second, "")
	})
	assert.Empty(t, repo.Events())
}

func TestSplitListSection(t *testing.T) {
	got := splitListSection("- one\n  * two \n• three\n4) four\n\n-not a bullet")
	assert.Equal(t, []string{"one", "two", "three", "four", "-not a bullet"}, got)
}

func TestSeed(t *testing.T) {
	svc, _, _ := setupService(t)
	ctx := context.Background()

	n, err := svc.Seed(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	list, err := svc.List(ctx, nil)
	require.NoError(t, err)
	require.Len(t, list, 2)
	for _, a := range list {
		assert.Equal(t, domain.ToolPRD, a.ToolType)
		assert.Equal(t, 1, a.Revision)
		prd := a.Payload.(*domain.PRD)
		assert.NotEmpty(t, prd.Goals)
		assert.NotEmpty(t, prd.UserStories)
		assert.Equal(t, domain.PriorityHigh, prd.UserStories[0].Priority)
		assert.Empty(t, prd.UserStories[0].EdgeCases)
	}

	n, err = svc.Seed(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	list, _ = svc.List(ctx, nil)
	assert.Len(t, list, 2)
}
