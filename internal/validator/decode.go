package validator

import (
	"math"
	"strconv"
	"strings"

	"github.com/dshills/prdforge/internal/domain"
)

const (
	minScore     = 1
	maxScore     = 10
	defaultScore = 5
)

// object is a schema-checked JSON object. Accessors never fail; type errors
// were already rejected by the schema, so anything unexpected decodes as the
// zero value.
type object map[string]interface{}

func (o object) str(key string) string {
	switch v := o[key].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return ""
	}
}

func (o object) strs(key string) []string {
	items, _ := o[key].([]interface{})
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func (o object) num(key string) (float64, bool) {
	switch v := o[key].(type) {
	case float64:
		return v, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

func (o object) objects(key string) []object {
	items, _ := o[key].([]interface{})
	out := make([]object, 0, len(items))
	for _, item := range items {
		if m, ok := item.(map[string]interface{}); ok {
			out = append(out, object(m))
		}
	}
	return out
}

// score clamps a RICE input into [1,10].
func (o object) score(key string) int {
	f, ok := o.num(key)
	if !ok {
		return defaultScore
	}
	n := int(math.Round(f))
	if n < minScore {
		return minScore
	}
	if n > maxScore {
		return maxScore
	}
	return n
}

func (o object) points(key string) int {
	f, ok := o.num(key)
	if !ok || f < 0 {
		return 0
	}
	return int(math.Round(f))
}

func decodeStories(items []object) []domain.UserStory {
	stories := make([]domain.UserStory, 0, len(items))
	for _, s := range items {
		stories = append(stories, domain.UserStory{
			ID:                 strings.TrimSpace(s.str("id")),
			Title:              s.str("title"),
			Description:        s.str("description"),
			AcceptanceCriteria: s.strs("acceptanceCriteria"),
			EdgeCases:          s.strs("edgeCases"),
			Priority:           domain.ParsePriority(s.str("priority")),
		})
	}
	return stories
}

func decodePRD(o object) *domain.PRD {
	status := strings.TrimSpace(o.str("status"))
	if status == "" {
		status = domain.PRDStatusDraft
	}
	return &domain.PRD{
		ProblemStatement: o.str("problemStatement"),
		TargetAudience:   o.str("targetAudience"),
		Goals:            o.strs("goals"),
		Features:         o.strs("features"),
		SuccessMetrics:   o.strs("successMetrics"),
		UserStories:      decodeStories(o.objects("userStories")),
		OutOfScope:       o.strs("outOfScope"),
		Assumptions:      o.strs("assumptions"),
		Status:           status,
	}
}

func decodeUserStorySet(o object) *domain.UserStorySet {
	return &domain.UserStorySet{UserStories: decodeStories(o.objects("userStories"))}
}

func decodeProblemRefinement(o object) *domain.ProblemRefinement {
	return &domain.ProblemRefinement{
		OriginalProblem:  o.str("originalProblem"),
		RefinedStatement: o.str("refinedStatement"),
		Context:          o.str("context"),
		Impact:           o.str("impact"),
		AffectedUsers:    o.str("affectedUsers"),
		CurrentSolutions: o.str("currentSolutions"),
		ProposedApproach: o.str("proposedApproach"),
		SuccessCriteria:  o.strs("successCriteria"),
	}
}

// RiceScore computes reach*impact*confidence/effort rounded to one decimal.
func RiceScore(reach, impact, confidence, effort int) float64 {
	if effort <= 0 {
		effort = minScore
	}
	raw := float64(reach*impact*confidence) / float64(effort)
	return math.Round(raw*10) / 10
}

func decodeFeaturePrioritization(o object) *domain.FeaturePrioritization {
	items := o.objects("features")
	features := make([]domain.PrioritizedFeature, 0, len(items))
	for _, f := range items {
		pf := domain.PrioritizedFeature{
			Name:           f.str("name"),
			Reach:          f.score("reach"),
			Impact:         f.score("impact"),
			Confidence:     f.score("confidence"),
			Effort:         f.score("effort"),
			Recommendation: f.str("recommendation"),
			Reasoning:      f.str("reasoning"),
			Tradeoffs:      f.str("tradeoffs"),
		}
		pf.RiceScore = RiceScore(pf.Reach, pf.Impact, pf.Confidence, pf.Effort)
		features = append(features, pf)
	}
	return &domain.FeaturePrioritization{Features: features, Summary: o.str("summary")}
}

func decodeSprintPlan(o object) *domain.SprintPlan {
	storyItems := o.objects("stories")
	stories := make([]domain.SprintStory, 0, len(storyItems))
	total := 0
	for _, s := range storyItems {
		story := domain.SprintStory{
			Title:                s.str("title"),
			StoryPoints:          s.points("storyPoints"),
			Priority:             domain.ParsePriority(s.str("priority")),
			AssignmentSuggestion: s.str("assignmentSuggestion"),
		}
		total += story.StoryPoints
		stories = append(stories, story)
	}
	if len(stories) == 0 {
		total = o.points("totalPoints")
	}

	riskItems := o.objects("risks")
	risks := make([]domain.SprintRisk, 0, len(riskItems))
	for _, r := range riskItems {
		risks = append(risks, domain.SprintRisk{
			Risk:       r.str("risk"),
			Severity:   domain.ParsePriority(r.str("severity")),
			Mitigation: r.str("mitigation"),
		})
	}

	return &domain.SprintPlan{
		SprintGoal:      o.str("sprintGoal"),
		Duration:        o.str("duration"),
		Capacity:        o.str("capacity"),
		TotalPoints:     total,
		Stories:         stories,
		Risks:           risks,
		Recommendations: o.strs("recommendations"),
	}
}

func decodeInterviewPrep(o object) *domain.InterviewPrep {
	return &domain.InterviewPrep{
		Question:          o.str("question"),
		Framework:         o.str("framework"),
		StructuredAnswer:  o.str("structuredAnswer"),
		KeyPoints:         o.strs("keyPoints"),
		ExampleScenario:   o.str("exampleScenario"),
		FollowUpQuestions: o.strs("followUpQuestions"),
		Tips:              o.strs("tips"),
		Feedback:          o.str("feedback"),
	}
}
