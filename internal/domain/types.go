package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ToolType identifies the kind of generated artifact.
type ToolType string

const (
	ToolPRD                ToolType = "prd"
	ToolUserStories        ToolType = "user-stories"
	ToolProblemRefiner     ToolType = "problem-refiner"
	ToolFeaturePrioritizer ToolType = "feature-prioritizer"
	ToolSprintPlanner      ToolType = "sprint-planner"
	ToolInterviewPrep      ToolType = "interview-prep"
)

// ToolTypes lists every artifact kind in display order.
var ToolTypes = []ToolType{
	ToolPRD,
	ToolUserStories,
	ToolProblemRefiner,
	ToolFeaturePrioritizer,
	ToolSprintPlanner,
	ToolInterviewPrep,
}

// ParseToolType returns the ToolType named by s.
func ParseToolType(s string) (ToolType, error) {
	for _, t := range ToolTypes {
		if string(t) == s {
			return t, nil
		}
	}
	return "", NewInputError("toolType", fmt.Sprintf("must be one of %s", joinToolTypes()))
}

func joinToolTypes() string {
	names := make([]string, len(ToolTypes))
	for i, t := range ToolTypes {
		names[i] = string(t)
	}
	return strings.Join(names, ", ")
}

// Label returns a human-readable name for the tool.
func (t ToolType) Label() string {
	switch t {
	case ToolPRD:
		return "PRD"
	case ToolUserStories:
		return "User Stories"
	case ToolProblemRefiner:
		return "Problem Statement"
	case ToolFeaturePrioritizer:
		return "Feature Prioritization"
	case ToolSprintPlanner:
		return "Sprint Plan"
	case ToolInterviewPrep:
		return "Interview Prep"
	default:
		return string(t)
	}
}

// Priority is a three-level ranking shared by stories and risks.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// ParsePriority maps s onto a Priority, defaulting to medium for anything
// outside the enum.
func ParsePriority(s string) Priority {
	switch Priority(strings.ToLower(strings.TrimSpace(s))) {
	case PriorityHigh:
		return PriorityHigh
	case PriorityLow:
		return PriorityLow
	default:
		return PriorityMedium
	}
}

// Artifact is a generated document: a PRD or a tool result.
type Artifact struct {
	ID        uuid.UUID `json:"id"`
	ToolType  ToolType  `json:"toolType"`
	RawInput  string    `json:"rawInput"`
	Title     string    `json:"title"`
	Payload   Payload   `json:"payload"`
	ShareID   *string   `json:"shareId"`
	Revision  int       `json:"revision"`
	Model     string    `json:"model,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// UnmarshalJSON decodes the payload according to the artifact's tool type.
func (a *Artifact) UnmarshalJSON(data []byte) error {
	type alias Artifact
	aux := struct {
		*alias
		Payload json.RawMessage `json:"payload"`
	}{alias: (*alias)(a)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	p, err := DecodePayload(a.ToolType, aux.Payload)
	if err != nil {
		return err
	}
	a.Payload = p
	return nil
}

// Version is an immutable snapshot of an artifact's mutable fields.
type Version struct {
	ID            uuid.UUID `json:"id"`
	ArtifactID    uuid.UUID `json:"artifactId"`
	Number        int       `json:"number"`
	ToolType      ToolType  `json:"toolType"`
	Title         string    `json:"title"`
	Payload       Payload   `json:"payload"`
	ChangeSummary string    `json:"changeSummary"`
	CreatedAt     time.Time `json:"createdAt"`
}

// UnmarshalJSON decodes the payload according to the version's tool type.
func (v *Version) UnmarshalJSON(data []byte) error {
	type alias Version
	aux := struct {
		*alias
		Payload json.RawMessage `json:"payload"`
	}{alias: (*alias)(v)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	p, err := DecodePayload(v.ToolType, aux.Payload)
	if err != nil {
		return err
	}
	v.Payload = p
	return nil
}

// Snapshot captures the artifact's current mutable fields as a version.
func (a *Artifact) Snapshot(summary string) *Version {
	return &Version{
		ID:            uuid.New(),
		ArtifactID:    a.ID,
		ToolType:      a.ToolType,
		Title:         a.Title,
		Payload:       a.Payload,
		ChangeSummary: summary,
		CreatedAt:     time.Now().UTC(),
	}
}

// Template is a saved, reusable product idea.
type Template struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description *string   `json:"description"`
	Idea        string    `json:"idea"`
	Category    string    `json:"category"`
	CreatedAt   time.Time `json:"createdAt"`
}

// DefaultTemplateCategory is used when a template is saved without one.
const DefaultTemplateCategory = "custom"

// EventType classifies analytics events.
type EventType string

const (
	EventGenerated EventType = "generated"
	EventExported  EventType = "exported"
)

// ExportType names an export format.
type ExportType string

const (
	ExportMarkdown ExportType = "markdown"
	ExportJSON     ExportType = "json"
	ExportZip      ExportType = "zip"
	ExportNotion   ExportType = "notion"
)

// ParseExportType returns the ExportType named by s.
func ParseExportType(s string) (ExportType, error) {
	switch ExportType(s) {
	case ExportMarkdown, ExportJSON, ExportZip, ExportNotion:
		return ExportType(s), nil
	}
	return "", NewInputError("exportType", "must be one of markdown, json, zip, notion")
}

// AnalyticsEvent records a generation or export for usage reporting.
type AnalyticsEvent struct {
	ID               uuid.UUID  `json:"id"`
	EventType        EventType  `json:"eventType"`
	ToolType         ToolType   `json:"toolType,omitempty"`
	ArtifactID       *uuid.UUID `json:"artifactId,omitempty"`
	InputLength      int        `json:"inputLength,omitempty"`
	GenerationTimeMs int64      `json:"generationTimeMs,omitempty"`
	SessionID        string     `json:"sessionId,omitempty"`
	ExportType       ExportType `json:"exportType,omitempty"`
	CreatedAt        time.Time  `json:"createdAt"`
}

// AnalyticsSummary aggregates recorded events.
type AnalyticsSummary struct {
	TotalArtifacts      int              `json:"totalArtifacts"`
	TotalGenerations    int              `json:"totalGenerations"`
	TotalExports        int              `json:"totalExports"`
	AvgGenerationTimeMs int64            `json:"avgGenerationTimeMs"`
	ByTool              map[ToolType]int `json:"byTool"`
}
