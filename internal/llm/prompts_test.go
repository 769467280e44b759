package llm

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadPromptSet(t *testing.T) {
	set, err := LoadPromptSet(PromptVersionV1)
	require.NoError(t, err)
	assert.Equal(t, PromptVersionV1, set.Version)

	tools := []string{"prd", "user-stories", "problem-refiner", "feature-prioritizer", "sprint-planner", "interview-prep"}
	for _, name := range tools {
		t.Run(name, func(t *testing.T) {
			tmpl, err := set.Tool(name)
			require.NoError(t, err)
			assert.NotEmpty(t, strings.TrimSpace(tmpl.System))
			assert.Contains(t, tmpl.User, "{{INPUT}}")
			assert.Contains(t, tmpl.User, "{")
			assert.Positive(t, tmpl.MaxTokens)
		})
	}

	assert.Contains(t, set.Rewrite.User, "{{INSTRUCTION}}")
	assert.Contains(t, set.Rewrite.User, "rewrittenContent")

	_, err = set.Tool("unknown")
	assert.Error(t, err)
}

func TestLoadPromptSet_UnknownVersion(t *testing.T) {
	_, err := LoadPromptSet("v9")
	assert.Error(t, err)
}

func TestPromptTemplate_Render(t *testing.T) {
	tmpl := &PromptTemplate{User: "Idea: {{INPUT}} / {{INPUT}} ({{OTHER}})"}

	got := tmpl.Render(map[string]string{"INPUT": "an app with {{OTHER}}", "OTHER": "x"})
	assert.Equal(t, "Idea: an app with {{OTHER}} / an app with {{OTHER}} (x)", got)
}

func TestPromptTemplate_Request(t *testing.T) {
	tmpl := &PromptTemplate{System: "  persona \n", User: "{{INPUT}}", Temperature: 0.4, MaxTokens: 2048}

	req := tmpl.Request(map[string]string{"INPUT": "hello"}, 4096)
	require.Len(t, req.Messages, 2)
	assert.Equal(t, Message{Role: "system", Content: "persona"}, req.Messages[0])
	assert.Equal(t, Message{Role: "user", Content: "hello"}, req.Messages[1])
	assert.Equal(t, 2048, req.MaxTokens)
	assert.Equal(t, 0.4, req.Temperature)
	assert.True(t, req.JSONMode)

	req = tmpl.Request(nil, 1000)
	assert.Equal(t, 1000, req.MaxTokens)
}
