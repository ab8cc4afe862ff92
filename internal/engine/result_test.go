package engine

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/mail-triage/internal/model"
)

func TestExtractJSONFromWrappedOutput(t *testing.T) {
	raw := "Sure! Here is the classification you asked for:\n" +
		`{"category": "BILLING", "urgency": "LOW"}` +
		"\nLet me know if you need anything else."

	obj, err := ExtractJSON(raw)
	require.NoError(t, err)
	assert.JSONEq(t, `{"category": "BILLING", "urgency": "LOW"}`, string(obj))
}

func TestExtractJSONNoObject(t *testing.T) {
	_, err := ExtractJSON("I could not classify this message, sorry.")

	assert.ErrorIs(t, err, ErrNoJSON)
}

func TestExtractJSONUnclosedObject(t *testing.T) {
	_, err := ExtractJSON(`{"category": "BILLING",`)

	assert.ErrorIs(t, err, ErrNoJSON)
}

func TestExtractJSONUnparseableCandidate(t *testing.T) {
	_, err := ExtractJSON(`{"category": oops}`)

	var exErr *ExtractionError
	assert.ErrorAs(t, err, &exErr)
}

func validTriageJSON() json.RawMessage {
	return json.RawMessage(`{
		"category": "CANCELLATION",
		"urgency": "HIGH",
		"confidence": 0.92,
		"reply_draft": "We are sorry to see you go."
	}`)
}

func TestValidateTriageValid(t *testing.T) {
	res, err := ValidateTriage(validTriageJSON())

	require.NoError(t, err)
	assert.Equal(t, model.CategoryCancellation, res.Category)
	assert.Equal(t, model.UrgencyHigh, res.Urgency)
	assert.InDelta(t, 0.92, res.Confidence, 1e-9)
	assert.Equal(t, "We are sorry to see you go.", res.ReplyDraft)
	assert.Empty(t, res.Error)
	assert.False(t, res.CreatedAt.IsZero())
}

func TestValidateTriageRejections(t *testing.T) {
	tests := []struct {
		name  string
		raw   string
		field string
	}{
		{
			name:  "unknown category",
			raw:   `{"category": "REFUND", "urgency": "LOW", "confidence": 0.5, "reply_draft": "x"}`,
			field: "category",
		},
		{
			name:  "lowercase category",
			raw:   `{"category": "billing", "urgency": "LOW", "confidence": 0.5, "reply_draft": "x"}`,
			field: "category",
		},
		{
			name:  "missing urgency",
			raw:   `{"category": "BILLING", "confidence": 0.5, "reply_draft": "x"}`,
			field: "urgency",
		},
		{
			name:  "confidence as string",
			raw:   `{"category": "BILLING", "urgency": "LOW", "confidence": "0.9", "reply_draft": "x"}`,
			field: "confidence",
		},
		{
			name:  "confidence above one",
			raw:   `{"category": "BILLING", "urgency": "LOW", "confidence": 1.5, "reply_draft": "x"}`,
			field: "confidence",
		},
		{
			name:  "confidence negative",
			raw:   `{"category": "BILLING", "urgency": "LOW", "confidence": -0.1, "reply_draft": "x"}`,
			field: "confidence",
		},
		{
			name:  "empty reply draft",
			raw:   `{"category": "BILLING", "urgency": "LOW", "confidence": 0.5, "reply_draft": "  "}`,
			field: "reply_draft",
		},
		{
			name:  "missing reply draft",
			raw:   `{"category": "BILLING", "urgency": "LOW", "confidence": 0.5}`,
			field: "reply_draft",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := ValidateTriage(json.RawMessage(tt.raw))

			require.Nil(t, res)
			var schemaErr *SchemaError
			require.ErrorAs(t, err, &schemaErr)
			assert.Equal(t, tt.field, schemaErr.Field)
		})
	}
}

func TestValidateTriageBoundaryConfidence(t *testing.T) {
	for _, conf := range []string{"0", "1"} {
		raw := `{"category": "BILLING", "urgency": "LOW", "confidence": ` +
			conf + `, "reply_draft": "ok"}`

		_, err := ValidateTriage(json.RawMessage(raw))
		assert.NoError(t, err, "confidence %s should be accepted", conf)
	}
}

func TestValidateSummaryValid(t *testing.T) {
	raw := json.RawMessage(`{
		"title": "Billing dispute escalation request",
		"summary": "Customer disputes a double charge and asks for a refund.",
		"key_points": ["double charge", "refund requested"]
	}`)

	res, err := ValidateSummary(raw)

	require.NoError(t, err)
	// Title passes through untouched; clamping is the caller's job.
	assert.Equal(t, "Billing dispute escalation request", res.Title)
	assert.Equal(t, "Customer disputes a double charge and asks for a refund.", res.Summary)
	assert.Equal(t, []string{"double charge", "refund requested"}, res.KeyPoints)
}

func TestValidateSummaryRejections(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"missing summary", `{"title": "x"}`},
		{"empty summary", `{"summary": "  "}`},
		{"too many key points", `{"summary": "s", "key_points": ["1","2","3","4","5","6"]}`},
		{"non-string key point", `{"summary": "s", "key_points": [42]}`},
		{"empty key point", `{"summary": "s", "key_points": [""]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := ValidateSummary(json.RawMessage(tt.raw))

			assert.Nil(t, res)
			var schemaErr *SchemaError
			assert.ErrorAs(t, err, &schemaErr)
		})
	}
}
