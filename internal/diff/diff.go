package diff

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/dshills/prdforge/internal/domain"
)

// ChangeType represents the type of change.
type ChangeType string

const (
	ChangeAdded    ChangeType = "added"
	ChangeRemoved  ChangeType = "removed"
	ChangeModified ChangeType = "modified"
)

// Change represents a single change between two documents.
type Change struct {
	Path     string          `json:"path"`
	Type     ChangeType      `json:"type"`
	OldValue json.RawMessage `json:"oldValue,omitempty"`
	NewValue json.RawMessage `json:"newValue,omitempty"`
}

// Result contains the diff between two documents.
type Result struct {
	Changes  []Change `json:"changes"`
	Summary  Summary  `json:"summary"`
	Sections []string `json:"sections"`
	BaseID   string   `json:"baseId"`
	TargetID string   `json:"targetId"`
}

// Summary provides aggregate counts.
type Summary struct {
	Added    int `json:"added"`
	Removed  int `json:"removed"`
	Modified int `json:"modified"`
	Total    int `json:"total"`
}

// Side is one document of a comparison: a version snapshot or a live
// artifact.
type Side struct {
	ID      string
	Title   string
	Payload domain.Payload
}

// VersionSide describes a version snapshot.
func VersionSide(v *domain.Version) Side {
	return Side{ID: v.ID.String(), Title: v.Title, Payload: v.Payload}
}

// ArtifactSide describes an artifact's current state.
func ArtifactSide(a *domain.Artifact) Side {
	return Side{ID: a.ID.String(), Title: a.Title, Payload: a.Payload}
}

// Documents computes the diff from base to target. The title is compared as
// a top-level "/title" field next to the payload fields.
func Documents(base, target Side) (*Result, error) {
	baseDoc, err := flatten(base)
	if err != nil {
		return nil, fmt.Errorf("base: %w", err)
	}
	targetDoc, err := flatten(target)
	if err != nil {
		return nil, fmt.Errorf("target: %w", err)
	}

	changes := compareValues("", baseDoc, targetDoc)
	if changes == nil {
		changes = []Change{}
	}

	// Sort changes by path
	sort.Slice(changes, func(i, j int) bool {
		return changes[i].Path < changes[j].Path
	})

	summary := Summary{Total: len(changes)}
	for _, c := range changes {
		switch c.Type {
		case ChangeAdded:
			summary.Added++
		case ChangeRemoved:
			summary.Removed++
		case ChangeModified:
			summary.Modified++
		}
	}

	return &Result{
		Changes:  changes,
		Summary:  summary,
		Sections: sections(changes),
		BaseID:   base.ID,
		TargetID: target.ID,
	}, nil
}

func flatten(s Side) (map[string]interface{}, error) {
	doc := map[string]interface{}{}
	if s.Payload != nil {
		raw, err := json.Marshal(s.Payload)
		if err != nil {
			return nil, fmt.Errorf("marshal payload: %w", err)
		}
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, fmt.Errorf("unmarshal payload: %w", err)
		}
	}
	doc["title"] = s.Title
	return doc, nil
}

func compareValues(path string, base, target interface{}) []Change {
	var changes []Change

	// Handle nil cases
	if base == nil && target == nil {
		return changes
	}
	if base == nil {
		return append(changes, Change{Path: path, Type: ChangeAdded, NewValue: toJSON(target)})
	}
	if target == nil {
		return append(changes, Change{Path: path, Type: ChangeRemoved, OldValue: toJSON(base)})
	}

	// Type mismatch means replacement
	if reflect.TypeOf(base) != reflect.TypeOf(target) {
		return append(changes, Change{
			Path:     path,
			Type:     ChangeModified,
			OldValue: toJSON(base),
			NewValue: toJSON(target),
		})
	}

	switch b := base.(type) {
	case map[string]interface{}:
		changes = append(changes, compareMaps(path, b, target.(map[string]interface{}))...)

	case []interface{}:
		changes = append(changes, compareArrays(path, b, target.([]interface{}))...)

	default:
		if !reflect.DeepEqual(base, target) {
			changes = append(changes, Change{
				Path:     path,
				Type:     ChangeModified,
				OldValue: toJSON(base),
				NewValue: toJSON(target),
			})
		}
	}

	return changes
}

func compareMaps(path string, base, target map[string]interface{}) []Change {
	var changes []Change

	keys := make(map[string]bool)
	for k := range base {
		keys[k] = true
	}
	for k := range target {
		keys[k] = true
	}

	for k := range keys {
		childPath := joinPath(path, k)
		baseVal, baseExists := base[k]
		targetVal, targetExists := target[k]

		switch {
		case !baseExists:
			changes = append(changes, Change{Path: childPath, Type: ChangeAdded, NewValue: toJSON(targetVal)})
		case !targetExists:
			changes = append(changes, Change{Path: childPath, Type: ChangeRemoved, OldValue: toJSON(baseVal)})
		default:
			changes = append(changes, compareValues(childPath, baseVal, targetVal)...)
		}
	}

	return changes
}

// compareArrays compares by position. A story inserted at the front shows
// up as every later index modified plus one addition.
func compareArrays(path string, base, target []interface{}) []Change {
	var changes []Change

	maxLen := len(base)
	if len(target) > maxLen {
		maxLen = len(target)
	}

	for i := 0; i < maxLen; i++ {
		childPath := joinPath(path, strconv.Itoa(i))
		switch {
		case i >= len(base):
			changes = append(changes, Change{Path: childPath, Type: ChangeAdded, NewValue: toJSON(target[i])})
		case i >= len(target):
			changes = append(changes, Change{Path: childPath, Type: ChangeRemoved, OldValue: toJSON(base[i])})
		default:
			changes = append(changes, compareValues(childPath, base[i], target[i])...)
		}
	}

	return changes
}

func joinPath(base, key string) string {
	return base + "/" + key
}

func toJSON(v interface{}) json.RawMessage {
	b, _ := json.Marshal(v)
	return b
}

// sections lists the distinct top-level fields touched by changes.
func sections(changes []Change) []string {
	seen := make(map[string]bool)
	out := []string{}
	for _, c := range changes {
		// Path format: /section/index/...
		section, _, _ := strings.Cut(strings.TrimPrefix(c.Path, "/"), "/")
		if section == "" || seen[section] {
			continue
		}
		seen[section] = true
		out = append(out, section)
	}
	sort.Strings(out)
	return out
}
