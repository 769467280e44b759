package validator

import (
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/dshills/prdforge/internal/domain"
	"github.com/santhosh-tekuri/jsonschema/v6"
	"github.com/santhosh-tekuri/jsonschema/v6/kind"
)

//go:embed schemas/*.json
var schemasFS embed.FS

const rewriteSchema = "rewrite"

// ValidationError represents a single validation error.
type ValidationError struct {
	Path     string `json:"path"`
	Expected string `json:"expected,omitempty"`
	Message  string `json:"message"`
}

// ValidationResult holds the result of schema validation.
type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

// Validator checks model replies against per-tool schemas and decodes them
// into fully defaulted payloads.
type Validator struct {
	schemas map[string]*jsonschema.Schema
}

// New creates a new Validator with embedded schemas.
func New() (*Validator, error) {
	names := make([]string, 0, len(domain.ToolTypes)+1)
	for _, t := range domain.ToolTypes {
		names = append(names, string(t))
	}
	names = append(names, rewriteSchema)

	c := jsonschema.NewCompiler()
	for _, name := range names {
		data, err := schemasFS.ReadFile("schemas/" + name + ".schema.json")
		if err != nil {
			return nil, fmt.Errorf("read %s schema: %w", name, err)
		}
		var doc interface{}
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("unmarshal %s schema: %w", name, err)
		}
		if err := c.AddResource(name+".json", doc); err != nil {
			return nil, fmt.Errorf("add %s schema resource: %w", name, err)
		}
	}

	v := &Validator{schemas: make(map[string]*jsonschema.Schema, len(names))}
	for _, name := range names {
		schema, err := c.Compile(name + ".json")
		if err != nil {
			return nil, fmt.Errorf("compile %s schema: %w", name, err)
		}
		v.schemas[name] = schema
	}
	return v, nil
}

// Validate checks raw JSON against the named schema.
func (v *Validator) Validate(name string, raw []byte) ValidationResult {
	var doc interface{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return ValidationResult{
			Valid: false,
			Errors: []ValidationError{{
				Path:     "/",
				Expected: "object",
				Message:  fmt.Sprintf("invalid JSON: %v", err),
			}},
		}
	}
	return v.validateValue(name, doc)
}

func (v *Validator) validateValue(name string, doc interface{}) ValidationResult {
	schema, ok := v.schemas[name]
	if !ok {
		return ValidationResult{
			Valid:  false,
			Errors: []ValidationError{{Path: "/", Message: fmt.Sprintf("no schema for %q", name)}},
		}
	}

	err := schema.Validate(doc)
	if err == nil {
		return ValidationResult{Valid: true}
	}

	var errs []ValidationError
	var ve *jsonschema.ValidationError
	if errors.As(err, &ve) {
		errs = extractErrors(ve)
	} else {
		errs = []ValidationError{{Path: "/", Message: err.Error()}}
	}
	sort.SliceStable(errs, func(i, j int) bool { return errs[i].Path < errs[j].Path })

	return ValidationResult{Valid: false, Errors: errs}
}

func extractErrors(ve *jsonschema.ValidationError) []ValidationError {
	var errs []ValidationError

	if len(ve.Causes) > 0 {
		for _, cause := range ve.Causes {
			errs = append(errs, extractErrors(cause)...)
		}
		return errs
	}

	e := ValidationError{
		Path:    "/" + strings.Join(ve.InstanceLocation, "/"),
		Message: ve.Error(),
	}
	switch k := ve.ErrorKind.(type) {
	case *kind.Type:
		e.Expected = strings.Join(k.Want, " or ")
	case *kind.Required:
		e.Expected = "object with " + strings.Join(k.Missing, ", ")
	case *kind.MinLength:
		e.Expected = "non-empty string"
	}
	return append(errs, e)
}

// Document is a decoded model reply.
type Document struct {
	Title   string
	Payload domain.Payload
}

// Decode validates a model reply for the given tool and returns a payload in
// which every list is non-nil and every enum holds a valid member. It fails
// only when the reply is not a JSON object or a field has the wrong type.
func (v *Validator) Decode(t domain.ToolType, raw []byte) (*Document, error) {
	obj, err := v.object(string(t), raw)
	if err != nil {
		return nil, err
	}

	var p domain.Payload
	switch t {
	case domain.ToolPRD:
		p = decodePRD(obj)
	case domain.ToolUserStories:
		p = decodeUserStorySet(obj)
	case domain.ToolProblemRefiner:
		p = decodeProblemRefinement(obj)
	case domain.ToolFeaturePrioritizer:
		p = decodeFeaturePrioritization(obj)
	case domain.ToolSprintPlanner:
		p = decodeSprintPlan(obj)
	case domain.ToolInterviewPrep:
		p = decodeInterviewPrep(obj)
	default:
		return nil, fmt.Errorf("unknown tool type %q: %w", t, domain.ErrInvalidInput)
	}

	return &Document{Title: strings.TrimSpace(obj.str("title")), Payload: p}, nil
}

// Normalize re-applies defaults to an existing payload, for example after a
// partial edit. It round-trips through Decode so edits obey the same rules
// as generated content.
func (v *Validator) Normalize(p domain.Payload) (domain.Payload, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	doc, err := v.Decode(p.ToolType(), raw)
	if err != nil {
		return nil, err
	}
	return doc.Payload, nil
}

// DecodeRewrite extracts the rewrittenContent field of a rewrite reply.
func (v *Validator) DecodeRewrite(raw []byte) (string, error) {
	obj, err := v.object(rewriteSchema, raw)
	if err != nil {
		return "", err
	}
	return obj.str("rewrittenContent"), nil
}

func (v *Validator) object(schema string, raw []byte) (object, error) {
	var doc interface{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, &domain.SchemaValidationError{Path: "/", Expected: "object", Message: err.Error()}
	}
	obj, ok := doc.(map[string]interface{})
	if !ok {
		return nil, &domain.SchemaValidationError{Path: "/", Expected: "object", Message: "top-level value is not an object"}
	}

	result := v.validateValue(schema, doc)
	if !result.Valid {
		first := result.Errors[0]
		return nil, &domain.SchemaValidationError{Path: first.Path, Expected: first.Expected, Message: first.Message}
	}
	return object(obj), nil
}
