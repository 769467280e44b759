package artifacts

import (
	"context"
	"time"

	"github.com/dshills/prdforge/internal/domain"
	"github.com/google/uuid"
)

// RecordGeneration logs a successful generation. Failures are logged and
// swallowed.
func (s *Service) RecordGeneration(ctx context.Context, a *domain.Artifact, elapsed time.Duration, sessionID string) {
	id := a.ID
	s.logEvent(ctx, &domain.AnalyticsEvent{
		EventType:        domain.EventGenerated,
		ToolType:         a.ToolType,
		ArtifactID:       &id,
		InputLength:      len([]rune(a.RawInput)),
		GenerationTimeMs: elapsed.Milliseconds(),
		SessionID:        sessionID,
	})
}

// RecordExport logs an export. artifactID may be nil for exports of unsaved
// content. Failures are logged and swallowed.
func (s *Service) RecordExport(ctx context.Context, tool domain.ToolType, artifactID *uuid.UUID, exportType domain.ExportType, sessionID string) {
	s.logEvent(ctx, &domain.AnalyticsEvent{
		EventType:  domain.EventExported,
		ToolType:   tool,
		ArtifactID: artifactID,
		ExportType: exportType,
		SessionID:  sessionID,
	})
}

func (s *Service) logEvent(ctx context.Context, e *domain.AnalyticsEvent) {
	e.ID = uuid.New()
	e.CreatedAt = s.now()
	if err := s.repo.LogEvent(ctx, e); err != nil {
		s.logger.Warn("analytics event dropped",
			"event_type", string(e.EventType),
			"tool", string(e.ToolType),
			"error", err,
		)
	}
}

// Summary aggregates recorded analytics.
func (s *Service) Summary(ctx context.Context) (*domain.AnalyticsSummary, error) {
	return s.repo.Summary(ctx)
}
