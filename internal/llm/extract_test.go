package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{
			name: "plain object",
			raw:  `{"a": 1}`,
			want: `{"a": 1}`,
		},
		{
			name: "surrounding whitespace",
			raw:  "\n  {\"a\": 1}  \n",
			want: `{"a": 1}`,
		},
		{
			name: "code fence",
			raw:  "```json\n{\"a\": 1}\n```",
			want: `{"a": 1}`,
		},
		{
			name: "prose around object",
			raw:  "Here you go:\n{\"a\": {\"b\": \"}\"}}\nHope that helps!",
			want: `{"a": {"b": "}"}}`,
		},
		{
			name: "comments stripped",
			raw:  "Result: {\"a\": 1, // first\n \"b\": \"http://x\"}",
			want: "{\"a\": 1, \n \"b\": \"http://x\"}",
		},
		{
			name: "array passes through",
			raw:  `[1, 2]`,
			want: `[1, 2]`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractJSON(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(got))
		})
	}
}

func TestExtractJSON_Errors(t *testing.T) {
	_, err := ExtractJSON("   ")
	assert.ErrorIs(t, err, ErrEmptyResponse)

	_, err = ExtractJSON("I cannot help with that.")
	assert.ErrorIs(t, err, ErrInvalidResponse)

	_, err = ExtractJSON(`{"a": 1`)
	assert.ErrorIs(t, err, ErrInvalidResponse)
}
