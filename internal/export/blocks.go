package export

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dshills/prdforge/internal/domain"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// BlockType is the kind of a document node.
type BlockType string

const (
	BlockHeading BlockType = "heading_2"
	BlockSubhead BlockType = "heading_3"
	BlockText    BlockType = "paragraph"
	BlockBullet  BlockType = "bulleted_list_item"
	BlockDivider BlockType = "divider"
)

const separatorText = " · "

// Block is one node of a rendered artifact. Markdown and Notion pages are
// both produced from the same block list.
type Block struct {
	Type BlockType `json:"type"`
	Text string    `json:"text,omitempty"`
}

// Blocks renders an artifact body, without its title, as document nodes.
// Empty sections are omitted.
func Blocks(a *domain.Artifact) []Block {
	b := &builder{title: cases.Title(language.English)}
	if a.Payload != nil {
		a.Payload.Accept(b)
	}
	return b.blocks
}

// builder walks a payload and collects blocks.
type builder struct {
	blocks []Block
	title  cases.Caser
}

var _ domain.PayloadVisitor = (*builder)(nil)

func (b *builder) add(t BlockType, text string) {
	b.blocks = append(b.blocks, Block{Type: t, Text: text})
}

func (b *builder) section(heading, text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	b.add(BlockHeading, heading)
	b.paragraphs(text)
}

// paragraphs splits text on blank lines.
func (b *builder) paragraphs(text string) {
	for _, p := range strings.Split(text, "\n\n") {
		if p = strings.TrimSpace(p); p != "" {
			b.add(BlockText, p)
		}
	}
}

func (b *builder) list(heading string, items []string) {
	if len(items) == 0 {
		return
	}
	b.add(BlockHeading, heading)
	b.bullets(items)
}

func (b *builder) bullets(items []string) {
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			b.add(BlockBullet, item)
		}
	}
}

func (b *builder) label(s string) string {
	return b.title.String(strings.ReplaceAll(s, "-", " "))
}

func (b *builder) stories(stories []domain.UserStory) {
	if len(stories) == 0 {
		return
	}
	b.add(BlockHeading, "User Stories")
	for _, s := range stories {
		heading := s.Title
		if s.ID != "" {
			heading = s.ID + ": " + s.Title
		}
		b.add(BlockSubhead, heading)
		b.paragraphs(s.Description)
		if s.Priority != "" {
			b.add(BlockText, "Priority: "+b.label(string(s.Priority)))
		}
		if len(s.AcceptanceCriteria) > 0 {
			b.add(BlockText, "Acceptance criteria:")
			b.bullets(s.AcceptanceCriteria)
		}
		if len(s.EdgeCases) > 0 {
			b.add(BlockText, "Edge cases:")
			b.bullets(s.EdgeCases)
		}
	}
}

func (b *builder) VisitPRD(p *domain.PRD) {
	if p.Status != "" {
		b.add(BlockText, "Status: "+b.label(p.Status))
	}
	b.section("Problem Statement", p.ProblemStatement)
	b.section("Target Audience", p.TargetAudience)
	b.list("Goals", p.Goals)
	b.list("Features", p.Features)
	b.list("Success Metrics", p.SuccessMetrics)
	b.stories(p.UserStories)
	b.list("Out of Scope", p.OutOfScope)
	b.list("Assumptions", p.Assumptions)
}

func (b *builder) VisitUserStories(p *domain.UserStorySet) {
	b.stories(p.UserStories)
}

func (b *builder) VisitProblemRefinement(p *domain.ProblemRefinement) {
	b.section("Original Problem", p.OriginalProblem)
	b.section("Refined Problem Statement", p.RefinedStatement)
	b.section("Context", p.Context)
	b.section("Impact", p.Impact)
	b.section("Affected Users", p.AffectedUsers)
	b.section("Current Solutions", p.CurrentSolutions)
	b.section("Proposed Approach", p.ProposedApproach)
	b.list("Success Criteria", p.SuccessCriteria)
}

func (b *builder) VisitFeaturePrioritization(p *domain.FeaturePrioritization) {
	b.section("Summary", p.Summary)
	if len(p.Features) == 0 {
		return
	}
	b.add(BlockHeading, "Features")
	for i, f := range p.Features {
		if i > 0 {
			b.add(BlockDivider, "")
		}
		b.add(BlockSubhead, fmt.Sprintf("%d. %s (RICE %s)", i+1, f.Name, strconv.FormatFloat(f.RiceScore, 'f', -1, 64)))
		b.add(BlockText, strings.Join([]string{
			fmt.Sprintf("Reach %d", f.Reach),
			fmt.Sprintf("Impact %d", f.Impact),
			fmt.Sprintf("Confidence %d", f.Confidence),
			fmt.Sprintf("Effort %d", f.Effort),
		}, separatorText))
		if f.Recommendation != "" {
			b.add(BlockText, "Recommendation: "+f.Recommendation)
		}
		b.paragraphs(f.Reasoning)
		if f.Tradeoffs != "" {
			b.add(BlockText, "Tradeoffs: "+f.Tradeoffs)
		}
	}
}

func (b *builder) VisitSprintPlan(p *domain.SprintPlan) {
	b.section("Sprint Goal", p.SprintGoal)

	var facts []string
	if p.Duration != "" {
		facts = append(facts, "Duration: "+p.Duration)
	}
	if p.Capacity != "" {
		facts = append(facts, "Capacity: "+p.Capacity)
	}
	facts = append(facts, fmt.Sprintf("Total points: %d", p.TotalPoints))
	b.add(BlockText, strings.Join(facts, separatorText))

	if len(p.Stories) > 0 {
		b.add(BlockHeading, "Stories")
		for _, s := range p.Stories {
			line := fmt.Sprintf("%s (%d pts, %s)", s.Title, s.StoryPoints, b.label(string(s.Priority)))
			if s.AssignmentSuggestion != "" {
				line += ": " + s.AssignmentSuggestion
			}
			b.add(BlockBullet, line)
		}
	}

	if len(p.Risks) > 0 {
		b.add(BlockHeading, "Risks")
		for _, r := range p.Risks {
			line := fmt.Sprintf("[%s] %s", b.label(string(r.Severity)), r.Risk)
			if r.Mitigation != "" {
				line += ". Mitigation: " + r.Mitigation
			}
			b.add(BlockBullet, line)
		}
	}

	b.list("Recommendations", p.Recommendations)
}

func (b *builder) VisitInterviewPrep(p *domain.InterviewPrep) {
	b.section("Question", p.Question)
	b.section("Framework", p.Framework)
	b.section("Structured Answer", p.StructuredAnswer)
	b.list("Key Points", p.KeyPoints)
	b.section("Example Scenario", p.ExampleScenario)
	b.list("Follow-up Questions", p.FollowUpQuestions)
	b.list("Tips", p.Tips)
	b.section("Feedback", p.Feedback)
}
