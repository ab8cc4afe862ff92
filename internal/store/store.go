package store

import (
	"context"

	"github.com/nhle/mail-triage/internal/model"
)

// MessageFilter controls filtering, sorting, and pagination for message
// queries.
type MessageFilter struct {
	// Unread filters on the source-side unread flag.
	Unread *bool

	// NeedsTriage selects messages with no triage result or an errored
	// fallback one.
	NeedsTriage *bool

	// Category filters on the triage category label.
	Category *string

	// Query searches subject and sender.
	Query *string

	// SortBy is one of "received_at", "fetched_at", "subject",
	// "from_address"; defaults to received_at.
	SortBy   string
	SortDesc bool

	Limit  int
	Offset int
}

// Store defines the persistence interface for triaged messages. The
// external id is the only deduplication key; implementations must keep
// writes for a single external id serialized relative to each other.
type Store interface {
	// UpsertMessage inserts the message when absent and otherwise
	// refreshes only the mutable fields (unread flag, labels, snippet,
	// bodies). Triage and summary columns are never touched. Reports
	// whether a new record was created.
	UpsertMessage(ctx context.Context, msg *model.Message) (created bool, err error)

	// GetMessage retrieves one message by external id, or nil when the
	// record does not exist.
	GetMessage(ctx context.Context, externalID string) (*model.Message, error)

	// GetMessages retrieves messages matching the filter.
	GetMessages(ctx context.Context, filter MessageFilter) ([]model.Message, error)

	// SetTriageResult replaces the message's triage result. A message has
	// at most one result; there is no append.
	SetTriageResult(ctx context.Context, externalID string, res *model.TriageResult) error

	// ClearTriageResult removes the triage result so the next sync
	// re-triages the message. This is the only way a done message is
	// ever re-submitted to the engine.
	ClearTriageResult(ctx context.Context, externalID string) error

	// SetSummaryResult replaces the message's summary result.
	SetSummaryResult(ctx context.Context, externalID string, res *model.SummaryResult) error

	// DeleteMessages removes the given records, batching under sqlite's
	// host parameter limit and looping until done.
	DeleteMessages(ctx context.Context, externalIDs []string) error

	Close() error
}
