package domain

import (
	"encoding/json"
	"fmt"
)

// Payload is the tool-specific body of an artifact. The set of
// implementations is closed: one concrete type per ToolType.
type Payload interface {
	ToolType() ToolType
	Accept(v PayloadVisitor)
	isPayload()
}

// PayloadVisitor handles every payload variant. Renderers implement it so a
// new variant cannot be added without handling it everywhere.
type PayloadVisitor interface {
	VisitPRD(p *PRD)
	VisitUserStories(p *UserStorySet)
	VisitProblemRefinement(p *ProblemRefinement)
	VisitFeaturePrioritization(p *FeaturePrioritization)
	VisitSprintPlan(p *SprintPlan)
	VisitInterviewPrep(p *InterviewPrep)
}

// UserStory is embedded in PRDs and user-story sets.
type UserStory struct {
	ID                 string   `json:"id"`
	Title              string   `json:"title"`
	Description        string   `json:"description"`
	AcceptanceCriteria []string `json:"acceptanceCriteria"`
	EdgeCases          []string `json:"edgeCases"`
	Priority           Priority `json:"priority"`
}

// PRDStatus values.
const (
	PRDStatusDraft = "draft"
)

// PRD is a product requirements document.
type PRD struct {
	ProblemStatement string      `json:"problemStatement"`
	TargetAudience   string      `json:"targetAudience"`
	Goals            []string    `json:"goals"`
	Features         []string    `json:"features"`
	SuccessMetrics   []string    `json:"successMetrics"`
	UserStories      []UserStory `json:"userStories"`
	OutOfScope       []string    `json:"outOfScope"`
	Assumptions      []string    `json:"assumptions"`
	Status           string      `json:"status"`
}

// UserStorySet is the output of the user-stories tool.
type UserStorySet struct {
	UserStories []UserStory `json:"userStories"`
}

// ProblemRefinement is the output of the problem-refiner tool.
type ProblemRefinement struct {
	OriginalProblem  string   `json:"originalProblem"`
	RefinedStatement string   `json:"refinedStatement"`
	Context          string   `json:"context"`
	Impact           string   `json:"impact"`
	AffectedUsers    string   `json:"affectedUsers"`
	CurrentSolutions string   `json:"currentSolutions"`
	ProposedApproach string   `json:"proposedApproach"`
	SuccessCriteria  []string `json:"successCriteria"`
}

// PrioritizedFeature is one RICE-scored row.
type PrioritizedFeature struct {
	Name           string  `json:"name"`
	Reach          int     `json:"reach"`
	Impact         int     `json:"impact"`
	Confidence     int     `json:"confidence"`
	Effort         int     `json:"effort"`
	RiceScore      float64 `json:"riceScore"`
	Recommendation string  `json:"recommendation"`
	Reasoning      string  `json:"reasoning"`
	Tradeoffs      string  `json:"tradeoffs"`
}

// FeaturePrioritization is the output of the feature-prioritizer tool.
type FeaturePrioritization struct {
	Features []PrioritizedFeature `json:"features"`
	Summary  string               `json:"summary"`
}

// SprintStory is a backlog item placed into a sprint.
type SprintStory struct {
	Title                string   `json:"title"`
	StoryPoints          int      `json:"storyPoints"`
	Priority             Priority `json:"priority"`
	AssignmentSuggestion string   `json:"assignmentSuggestion"`
}

// SprintRisk is a risk called out for a sprint.
type SprintRisk struct {
	Risk       string   `json:"risk"`
	Severity   Priority `json:"severity"`
	Mitigation string   `json:"mitigation"`
}

// SprintPlan is the output of the sprint-planner tool.
type SprintPlan struct {
	SprintGoal      string        `json:"sprintGoal"`
	Duration        string        `json:"duration"`
	Capacity        string        `json:"capacity"`
	TotalPoints     int           `json:"totalPoints"`
	Stories         []SprintStory `json:"stories"`
	Risks           []SprintRisk  `json:"risks"`
	Recommendations []string      `json:"recommendations"`
}

// InterviewPrep is the output of the interview-prep tool.
type InterviewPrep struct {
	Question          string   `json:"question"`
	Framework         string   `json:"framework"`
	StructuredAnswer  string   `json:"structuredAnswer"`
	KeyPoints         []string `json:"keyPoints"`
	ExampleScenario   string   `json:"exampleScenario"`
	FollowUpQuestions []string `json:"followUpQuestions"`
	Tips              []string `json:"tips"`
	Feedback          string   `json:"feedback"`
}

func (*PRD) ToolType() ToolType                   { return ToolPRD }
func (*UserStorySet) ToolType() ToolType          { return ToolUserStories }
func (*ProblemRefinement) ToolType() ToolType     { return ToolProblemRefiner }
func (*FeaturePrioritization) ToolType() ToolType { return ToolFeaturePrioritizer }
func (*SprintPlan) ToolType() ToolType            { return ToolSprintPlanner }
func (*InterviewPrep) ToolType() ToolType         { return ToolInterviewPrep }

func (p *PRD) Accept(v PayloadVisitor)                   { v.VisitPRD(p) }
func (p *UserStorySet) Accept(v PayloadVisitor)          { v.VisitUserStories(p) }
func (p *ProblemRefinement) Accept(v PayloadVisitor)     { v.VisitProblemRefinement(p) }
func (p *FeaturePrioritization) Accept(v PayloadVisitor) { v.VisitFeaturePrioritization(p) }
func (p *SprintPlan) Accept(v PayloadVisitor)            { v.VisitSprintPlan(p) }
func (p *InterviewPrep) Accept(v PayloadVisitor)         { v.VisitInterviewPrep(p) }

func (*PRD) isPayload()                   {}
func (*UserStorySet) isPayload()          {}
func (*ProblemRefinement) isPayload()     {}
func (*FeaturePrioritization) isPayload() {}
func (*SprintPlan) isPayload()            {}
func (*InterviewPrep) isPayload()         {}

// BackfillStories gives user stories without an id a positional one
// (us-1, us-2, ...) and a medium priority when none is set.
func BackfillStories(p Payload) {
	var stories []UserStory
	switch v := p.(type) {
	case *PRD:
		stories = v.UserStories
	case *UserStorySet:
		stories = v.UserStories
	default:
		return
	}
	for i := range stories {
		if stories[i].ID == "" {
			stories[i].ID = fmt.Sprintf("us-%d", i+1)
		}
		if stories[i].Priority == "" {
			stories[i].Priority = PriorityMedium
		}
	}
}

// NewPayload returns an empty payload of the given kind.
func NewPayload(t ToolType) (Payload, error) {
	switch t {
	case ToolPRD:
		return &PRD{}, nil
	case ToolUserStories:
		return &UserStorySet{}, nil
	case ToolProblemRefiner:
		return &ProblemRefinement{}, nil
	case ToolFeaturePrioritizer:
		return &FeaturePrioritization{}, nil
	case ToolSprintPlanner:
		return &SprintPlan{}, nil
	case ToolInterviewPrep:
		return &InterviewPrep{}, nil
	default:
		return nil, fmt.Errorf("unknown tool type %q: %w", t, ErrInvalidInput)
	}
}

// DecodePayload decodes stored payload JSON for the given kind. It does not
// apply defaults; data written by this service is already normalized.
func DecodePayload(t ToolType, raw json.RawMessage) (Payload, error) {
	p, err := NewPayload(t)
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 || string(raw) == "null" {
		return p, nil
	}
	if err := json.Unmarshal(raw, p); err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", t, err)
	}
	return p, nil
}
