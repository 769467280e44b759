package main

import (
	"bytes"
	"errors"
	"path/filepath"
	"testing"

	"github.com/dshills/prdforge/internal/config"
	"github.com/dshills/prdforge/internal/domain"
	"github.com/dshills/prdforge/internal/notion"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearCredentials(t *testing.T) {
	t.Helper()
	for _, key := range []string{"OPENAI_API_KEY", "ANTHROPIC_API_KEY", "GEMINI_API_KEY", "OLLAMA_HOST", "PRDFORGE_LLM_PROVIDER", "NOTION_TOKEN", "NOTION_CONNECTOR_URL"} {
		t.Setenv(key, "")
	}
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestStatsCommand_EmptyDatabase(t *testing.T) {
	clearCredentials(t)
	db := filepath.Join(t.TempDir(), "nested", "prdforge.db")

	out, err := execute(t, "stats", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "Artifacts:        0")
	assert.Contains(t, out, "Avg generation:   0ms")

	out, err = execute(t, "stats", "--json", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, `"totalArtifacts": 0`)
}

func TestGenerateCommand_Errors(t *testing.T) {
	clearCredentials(t)
	db := filepath.Join(t.TempDir(), "prdforge.db")

	_, err := execute(t, "generate", "roadmap", "something", "--db", db)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = execute(t, "generate", "prd", "short", "--db", db)
	var inputErr *domain.InputValidationError
	require.True(t, errors.As(err, &inputErr))
	assert.Equal(t, "idea", inputErr.Field)

	_, err = execute(t, "generate", "prd", "A habit tracker for remote teams", "--db", db)
	assert.ErrorIs(t, err, domain.ErrGenerationFailed)
}

func TestNotionTokens(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.Config
		want interface{}
	}{
		{"disabled", config.Config{}, nil},
		{"static", config.Config{NotionToken: "secret_abc"}, notion.StaticToken("secret_abc")},
		{"connector", config.Config{NotionConnectorURL: "http://connector"}, &notion.CachedTokenSource{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := notionTokens(tt.cfg)
			if tt.want == nil {
				assert.Nil(t, got)
				return
			}
			assert.IsType(t, tt.want, got)
		})
	}
}

func TestGenerateCommand_BadFormatSavesNothing(t *testing.T) {
	clearCredentials(t)
	db := filepath.Join(t.TempDir(), "prdforge.db")

	_, err := execute(t, "generate", "prd", "A habit tracker for remote teams", "--format", "yaml", "--db", db)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown format "yaml"`)
	assert.NotErrorIs(t, err, domain.ErrGenerationFailed)

	out, err := execute(t, "stats", "--json", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, `"totalArtifacts": 0`)
	assert.Contains(t, out, `"totalGenerations": 0`)
}

func TestSeedCommand(t *testing.T) {
	clearCredentials(t)
	db := filepath.Join(t.TempDir(), "prdforge.db")

	out, err := execute(t, "seed", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "Seeded 2 sample PRDs")

	out, err = execute(t, "seed", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "nothing seeded")

	out, err = execute(t, "stats", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "Artifacts:        2")
}
