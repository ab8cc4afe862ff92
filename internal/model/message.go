package model

import "time"

// Category classifies an inbound message into one of the closed set of
// triage labels. Any value outside this set is rejected at the validation
// boundary and never reaches storage.
type Category string

const (
	CategoryCancellation    Category = "CANCELLATION"
	CategoryFreeze          Category = "FREEZE"
	CategoryBookingChange   Category = "BOOKING_CHANGE"
	CategoryBilling         Category = "BILLING"
	CategoryComplaint       Category = "COMPLAINT"
	CategoryGeneralQuestion Category = "GENERAL_QUESTION"
	CategorySpamOther       Category = "SPAM_OTHER"
)

// Categories lists every valid category in display order.
var Categories = []Category{
	CategoryCancellation,
	CategoryFreeze,
	CategoryBookingChange,
	CategoryBilling,
	CategoryComplaint,
	CategoryGeneralQuestion,
	CategorySpamOther,
}

// Valid reports whether c is one of the seven closed triage labels.
func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// Urgency grades how quickly a message needs human attention.
type Urgency string

const (
	UrgencyLow    Urgency = "LOW"
	UrgencyMedium Urgency = "MEDIUM"
	UrgencyHigh   Urgency = "HIGH"
)

// Urgencies lists every valid urgency level.
var Urgencies = []Urgency{UrgencyLow, UrgencyMedium, UrgencyHigh}

// Valid reports whether u is one of the three urgency levels.
func (u Urgency) Valid() bool {
	return u == UrgencyLow || u == UrgencyMedium || u == UrgencyHigh
}

// TriageResult holds the model's classification and reply draft for a
// message. A message has at most one TriageResult; it is only ever
// replaced, never appended.
type TriageResult struct {
	// Category is one of the seven closed triage labels.
	Category Category `json:"category"`

	// Urgency is LOW, MEDIUM, or HIGH.
	Urgency Urgency `json:"urgency"`

	// Confidence is the model's self-reported confidence in [0,1].
	Confidence float64 `json:"confidence"`

	// ReplyDraft is the suggested reply text. Never empty.
	ReplyDraft string `json:"reply_draft"`

	// Error is set only when the AI stage failed and this is a synthetic
	// fallback result. A TriageResult without Error counts as done and is
	// never regenerated by a later sync.
	Error string `json:"error,omitempty"`

	// CreatedAt is when this result was generated.
	CreatedAt time.Time `json:"created_at"`
}

// Done reports whether this result is a genuine model result that should
// not be regenerated on a later sync.
func (r *TriageResult) Done() bool {
	return r != nil && r.Error == ""
}

// SummaryResult holds a condensed rendering of a long message body.
// Attached to at most one message, only when the cleaned body exceeds the
// configured summary threshold.
type SummaryResult struct {
	// Title is an advisory short title, clamped to three words by the
	// consumer before persisting.
	Title string `json:"title,omitempty"`

	// Summary is the 1-3 sentence condensed body.
	Summary string `json:"summary"`

	// KeyPoints holds up to five short bullet strings.
	KeyPoints []string `json:"key_points,omitempty"`

	// Error is set when summarization failed; the empty result is stored
	// so the attempt is not repeated.
	Error string `json:"error,omitempty"`

	// CreatedAt is when this summary was generated.
	CreatedAt time.Time `json:"created_at"`
}

// Message is one inbound mail item normalized from a mailbox provider.
type Message struct {
	// ExternalID is the stable identifier from the mail source. It is the
	// only deduplication key: re-fetching the same message must never
	// create a second record.
	ExternalID string `json:"external_id"`

	// ThreadID is the optional source-side conversation grouping key.
	ThreadID string `json:"thread_id,omitempty"`

	// FromAddress is the sender as reported by the source.
	FromAddress string `json:"from_address"`

	// Subject is the message subject line.
	Subject string `json:"subject"`

	// ReceivedAt is when the source received the message, if known.
	ReceivedAt *time.Time `json:"received_at,omitempty"`

	// Snippet is the short preview provided by the source; may be
	// truncated on the source side.
	Snippet string `json:"snippet"`

	// RawBody is the best-effort plain text produced by the body
	// extractor.
	RawBody string `json:"raw_body"`

	// CleanBody is RawBody with quoted replies, forwarding headers, and
	// signatures stripped.
	CleanBody string `json:"clean_body"`

	// IsUnread mirrors the source-side unread flag.
	IsUnread bool `json:"is_unread"`

	// Labels holds the source-defined tags on the message.
	Labels []string `json:"labels,omitempty"`

	// FetchedAt is when this message was last retrieved from the source.
	FetchedAt time.Time `json:"fetched_at"`

	// CreatedAt is when this record was first stored locally.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is when this record was last written.
	UpdatedAt time.Time `json:"updated_at"`

	// Triage is the classification result, nil until triage runs.
	Triage *TriageResult `json:"triage,omitempty"`

	// Summary is the long-body summary, nil unless one was generated.
	Summary *SummaryResult `json:"summary,omitempty"`
}

// NeedsTriage reports whether a sync should submit this message to the
// generation engine: either no result exists yet, or the existing result
// is an errored fallback.
func (m *Message) NeedsTriage() bool {
	return !m.Triage.Done()
}
