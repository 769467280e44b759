package llm

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ExtractJSON returns the JSON document contained in raw model output.
// Output that is already valid JSON is returned unchanged, whatever its
// top-level type. Otherwise markdown code fences, surrounding prose and
// comments are stripped and the first balanced object is returned.
func ExtractJSON(raw string) ([]byte, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, ErrEmptyResponse
	}
	if json.Valid([]byte(trimmed)) {
		return []byte(trimmed), nil
	}

	cleaned := strings.TrimSpace(stripCodeFences(trimmed))
	if json.Valid([]byte(cleaned)) {
		return []byte(cleaned), nil
	}

	block := extractJSONBlock(cleaned)
	if block == "" {
		return nil, fmt.Errorf("%w: no JSON object found in response", ErrInvalidResponse)
	}
	block = stripJSONComments(block)
	if !json.Valid([]byte(block)) {
		return nil, fmt.Errorf("%w: response is not valid JSON", ErrInvalidResponse)
	}
	return []byte(block), nil
}

// stripCodeFences removes markdown code fence lines (```json, ```).
func stripCodeFences(s string) string {
	lines := strings.Split(s, "\n")
	result := make([]string, 0, len(lines))
	for _, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			continue
		}
		result = append(result, line)
	}
	return strings.Join(result, "\n")
}

// extractJSONBlock finds the first balanced { ... } block in the text.
func extractJSONBlock(s string) string {
	start := strings.IndexByte(s, '{')
	if start == -1 {
		return ""
	}

	depth := 0
	inString := false
	escaped := false

	for i := start; i < len(s); i++ {
		c := s[i]

		if escaped {
			escaped = false
			continue
		}
		if c == '\\' && inString {
			escaped = true
			continue
		}
		if c == '"' {
			inString = !inString
			continue
		}
		if inString {
			continue
		}

		switch c {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}

	return ""
}

// stripJSONComments removes // and /* */ comments outside string values.
func stripJSONComments(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	inString := false
	escaped := false

	for i := 0; i < len(s); i++ {
		c := s[i]

		if escaped {
			b.WriteByte(c)
			escaped = false
			continue
		}
		if c == '\\' && inString {
			b.WriteByte(c)
			escaped = true
			continue
		}
		if c == '"' {
			b.WriteByte(c)
			inString = !inString
			continue
		}
		if inString {
			b.WriteByte(c)
			continue
		}

		if c == '/' && i+1 < len(s) && s[i+1] == '/' {
			for i+1 < len(s) && s[i+1] != '\n' {
				i++
			}
			continue
		}
		if c == '/' && i+1 < len(s) && s[i+1] == '*' {
			i += 2
			for i+1 < len(s) {
				if s[i] == '*' && s[i+1] == '/' {
					i++
					break
				}
				i++
			}
			continue
		}

		b.WriteByte(c)
	}

	return b.String()
}
