package engine

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nhle/mail-triage/internal/model"
)

// ErrNoJSON is returned by ExtractJSON when the raw text contains no
// balanced JSON object at all.
var ErrNoJSON = errors.New("no JSON object found in model output")

// ExtractionError means the text between the outermost braces did not
// parse as JSON.
type ExtractionError struct {
	Err error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("malformed JSON in model output: %v", e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// SchemaError means extracted JSON parsed cleanly but violates the result
// schema for its task. Nothing that fails validation is ever coerced,
// defaulted, or stored.
type SchemaError struct {
	Field  string
	Reason string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("schema violation on %q: %s", e.Field, e.Reason)
}

// ExtractJSON pulls the first balanced JSON object out of free-form model
// output. The engine is not contractually constrained to emit only JSON;
// it may wrap the object in commentary, so this scans from the first '{'
// to the last '}' inclusive.
func ExtractJSON(raw string) (json.RawMessage, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start == -1 || end == -1 || end < start {
		return nil, ErrNoJSON
	}

	candidate := raw[start : end+1]
	var probe map[string]any
	if err := json.Unmarshal([]byte(candidate), &probe); err != nil {
		return nil, &ExtractionError{Err: err}
	}
	return json.RawMessage(candidate), nil
}

// ValidateTriage checks extracted JSON against the triage result schema
// and returns a typed result. Every violation is a hard failure.
func ValidateTriage(raw json.RawMessage) (*model.TriageResult, error) {
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, &ExtractionError{Err: err}
	}

	category, err := stringField(fields, "category")
	if err != nil {
		return nil, err
	}
	if !model.Category(category).Valid() {
		return nil, &SchemaError{Field: "category", Reason: fmt.Sprintf("unknown value %q", category)}
	}

	urgency, err := stringField(fields, "urgency")
	if err != nil {
		return nil, err
	}
	if !model.Urgency(urgency).Valid() {
		return nil, &SchemaError{Field: "urgency", Reason: fmt.Sprintf("unknown value %q", urgency)}
	}

	rawConf, ok := fields["confidence"]
	if !ok {
		return nil, &SchemaError{Field: "confidence", Reason: "missing"}
	}
	confidence, ok := rawConf.(float64)
	if !ok {
		return nil, &SchemaError{Field: "confidence", Reason: "not a number"}
	}
	if confidence < 0 || confidence > 1 {
		return nil, &SchemaError{Field: "confidence", Reason: fmt.Sprintf("%v outside [0,1]", confidence)}
	}

	replyDraft, err := stringField(fields, "reply_draft")
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(replyDraft) == "" {
		return nil, &SchemaError{Field: "reply_draft", Reason: "empty"}
	}

	return &model.TriageResult{
		Category:   model.Category(category),
		Urgency:    model.Urgency(urgency),
		Confidence: confidence,
		ReplyDraft: replyDraft,
		CreatedAt:  time.Now().UTC(),
	}, nil
}

// ValidateSummary checks extracted JSON against the summary result schema.
// The title is advisory: it is passed through untouched here and clamped
// by the consumer, not by this component.
func ValidateSummary(raw json.RawMessage) (*model.SummaryResult, error) {
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, &ExtractionError{Err: err}
	}

	summary, err := stringField(fields, "summary")
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(summary) == "" {
		return nil, &SchemaError{Field: "summary", Reason: "empty"}
	}

	result := &model.SummaryResult{
		Summary:   summary,
		CreatedAt: time.Now().UTC(),
	}

	if rawTitle, ok := fields["title"]; ok {
		title, ok := rawTitle.(string)
		if !ok {
			return nil, &SchemaError{Field: "title", Reason: "not a string"}
		}
		result.Title = title
	}

	if rawPoints, ok := fields["key_points"]; ok {
		points, ok := rawPoints.([]any)
		if !ok {
			return nil, &SchemaError{Field: "key_points", Reason: "not an array"}
		}
		if len(points) > 5 {
			return nil, &SchemaError{Field: "key_points", Reason: fmt.Sprintf("%d entries, max 5", len(points))}
		}
		for i, p := range points {
			s, ok := p.(string)
			if !ok {
				return nil, &SchemaError{Field: "key_points", Reason: fmt.Sprintf("entry %d not a string", i)}
			}
			if strings.TrimSpace(s) == "" {
				return nil, &SchemaError{Field: "key_points", Reason: fmt.Sprintf("entry %d empty", i)}
			}
			result.KeyPoints = append(result.KeyPoints, s)
		}
	}

	return result, nil
}

// stringField reads a required string field, distinguishing missing from
// wrong-typed.
func stringField(fields map[string]any, name string) (string, error) {
	raw, ok := fields[name]
	if !ok {
		return "", &SchemaError{Field: name, Reason: "missing"}
	}
	s, ok := raw.(string)
	if !ok {
		return "", &SchemaError{Field: name, Reason: "not a string"}
	}
	return s, nil
}
