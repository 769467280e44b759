package artifacts

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/dshills/prdforge/internal/domain"
)

// listMarker matches a leading bullet or number on a list line.
var listMarker = regexp.MustCompile(`^(?:[-*•]\s+|\d+[.)]\s+)`)

// readSection returns the text of a top-level payload field. String fields
// are returned verbatim; string lists become "- item" lines. Structured
// fields such as user stories cannot be rewritten as text.
func readSection(p domain.Payload, section string) (string, bool, error) {
	section = strings.TrimSpace(section)
	if section == "" {
		return "", false, domain.NewInputError("sectionName", "must not be empty")
	}

	doc, err := payloadFields(p)
	if err != nil {
		return "", false, err
	}
	raw, ok := doc[section]
	if !ok || string(raw) == "null" {
		return "", false, domain.NewInputError("sectionName", fmt.Sprintf("is not a %s field", p.ToolType()))
	}

	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return text, false, nil
	}

	var items []string
	if err := json.Unmarshal(raw, &items); err == nil {
		lines := make([]string, len(items))
		for i, item := range items {
			lines[i] = "- " + item
		}
		return strings.Join(lines, "\n"), true, nil
	}

	return "", false, domain.NewInputError("sectionName", "must name a text or list section")
}

// splitListSection turns rewritten list text back into items, one per
// non-blank line, with bullets and numbering removed.
func splitListSection(text string) []string {
	items := []string{}
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimSpace(listMarker.ReplaceAllString(line, ""))
		if line != "" {
			items = append(items, line)
		}
	}
	return items
}
