package store_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/mail-triage/internal/model"
	"github.com/nhle/mail-triage/internal/store"
	"github.com/nhle/mail-triage/tests/testutil"
)

func newMessage(externalID string) *model.Message {
	received := time.Date(2026, 8, 20, 9, 30, 0, 0, time.UTC)
	return &model.Message{
		ExternalID:  externalID,
		ThreadID:    "thread-1",
		FromAddress: "customer@example.com",
		Subject:     "Cancel my membership",
		ReceivedAt:  &received,
		Snippet:     "I would like to cancel...",
		RawBody:     "I would like to cancel my membership.",
		CleanBody:   "I would like to cancel my membership.",
		IsUnread:    true,
		Labels:      []string{"INBOX", "UNREAD"},
		FetchedAt:   time.Now().UTC(),
	}
}

func newTriageResult() *model.TriageResult {
	return &model.TriageResult{
		Category:   model.CategoryCancellation,
		Urgency:    model.UrgencyHigh,
		Confidence: 0.9,
		ReplyDraft: "We are sorry to see you go.",
		CreatedAt:  time.Now().UTC(),
	}
}

func TestUpsertMessageCreateThenRefresh(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	msg := newMessage("msg-1")
	created, err := s.UpsertMessage(ctx, msg)
	require.NoError(t, err)
	assert.True(t, created)

	// Re-fetching the same external id must refresh, never duplicate.
	update := newMessage("msg-1")
	update.IsUnread = false
	update.Snippet = "updated snippet"
	created, err = s.UpsertMessage(ctx, update)
	require.NoError(t, err)
	assert.False(t, created)

	got, err := s.GetMessage(ctx, "msg-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.False(t, got.IsUnread)
	assert.Equal(t, "updated snippet", got.Snippet)

	all, err := s.GetMessages(ctx, store.MessageFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestUpsertMessagePreservesTriage(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	msg := newMessage("msg-1")
	_, err := s.UpsertMessage(ctx, msg)
	require.NoError(t, err)
	require.NoError(t, s.SetTriageResult(ctx, "msg-1", newTriageResult()))

	// A later fetch of the same message must not clobber the verdict.
	_, err = s.UpsertMessage(ctx, newMessage("msg-1"))
	require.NoError(t, err)

	got, err := s.GetMessage(ctx, "msg-1")
	require.NoError(t, err)
	require.NotNil(t, got.Triage)
	assert.Equal(t, model.CategoryCancellation, got.Triage.Category)
	assert.False(t, got.NeedsTriage())
}

func TestGetMessageMissing(t *testing.T) {
	s := testutil.NewTestStore(t)

	got, err := s.GetMessage(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSetTriageResultRoundTrip(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	_, err := s.UpsertMessage(ctx, newMessage("msg-1"))
	require.NoError(t, err)

	res := newTriageResult()
	require.NoError(t, s.SetTriageResult(ctx, "msg-1", res))

	got, err := s.GetMessage(ctx, "msg-1")
	require.NoError(t, err)
	require.NotNil(t, got.Triage)
	assert.Equal(t, res.Category, got.Triage.Category)
	assert.Equal(t, res.Urgency, got.Triage.Urgency)
	assert.InDelta(t, res.Confidence, got.Triage.Confidence, 1e-9)
	assert.Equal(t, res.ReplyDraft, got.Triage.ReplyDraft)
	assert.Empty(t, got.Triage.Error)
}

func TestSetTriageResultMissingMessage(t *testing.T) {
	s := testutil.NewTestStore(t)

	err := s.SetTriageResult(context.Background(), "ghost", newTriageResult())
	assert.Error(t, err)
}

func TestFallbackResultStillNeedsTriage(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	_, err := s.UpsertMessage(ctx, newMessage("msg-1"))
	require.NoError(t, err)

	fallback := newTriageResult()
	fallback.Error = "generation timed out after 90s"
	require.NoError(t, s.SetTriageResult(ctx, "msg-1", fallback))

	got, err := s.GetMessage(ctx, "msg-1")
	require.NoError(t, err)
	assert.True(t, got.NeedsTriage())

	yes := true
	pending, err := s.GetMessages(ctx, store.MessageFilter{NeedsTriage: &yes})
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

func TestClearTriageResult(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	_, err := s.UpsertMessage(ctx, newMessage("msg-1"))
	require.NoError(t, err)
	require.NoError(t, s.SetTriageResult(ctx, "msg-1", newTriageResult()))
	require.NoError(t, s.ClearTriageResult(ctx, "msg-1"))

	got, err := s.GetMessage(ctx, "msg-1")
	require.NoError(t, err)
	assert.Nil(t, got.Triage)
	assert.True(t, got.NeedsTriage())
}

func TestSetSummaryResultRoundTrip(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	_, err := s.UpsertMessage(ctx, newMessage("msg-1"))
	require.NoError(t, err)

	res := &model.SummaryResult{
		Title:     "Cancellation request",
		Summary:   "Customer asks to cancel their membership.",
		KeyPoints: []string{"cancel membership"},
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, s.SetSummaryResult(ctx, "msg-1", res))

	got, err := s.GetMessage(ctx, "msg-1")
	require.NoError(t, err)
	require.NotNil(t, got.Summary)
	assert.Equal(t, "Cancellation request", got.Summary.Title)
	assert.Equal(t, []string{"cancel membership"}, got.Summary.KeyPoints)
}

func TestGetMessagesFilters(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	billing := newMessage("msg-billing")
	billing.Subject = "Invoice problem"
	billing.FromAddress = "billing@example.com"
	_, err := s.UpsertMessage(ctx, billing)
	require.NoError(t, err)

	read := newMessage("msg-read")
	read.IsUnread = false
	_, err = s.UpsertMessage(ctx, read)
	require.NoError(t, err)

	res := newTriageResult()
	res.Category = model.CategoryBilling
	require.NoError(t, s.SetTriageResult(ctx, "msg-billing", res))

	yes := true
	unread, err := s.GetMessages(ctx, store.MessageFilter{Unread: &yes})
	require.NoError(t, err)
	require.Len(t, unread, 1)
	assert.Equal(t, "msg-billing", unread[0].ExternalID)

	cat := string(model.CategoryBilling)
	byCategory, err := s.GetMessages(ctx, store.MessageFilter{Category: &cat})
	require.NoError(t, err)
	require.Len(t, byCategory, 1)
	assert.Equal(t, "msg-billing", byCategory[0].ExternalID)

	q := "invoice"
	byQuery, err := s.GetMessages(ctx, store.MessageFilter{Query: &q})
	require.NoError(t, err)
	require.Len(t, byQuery, 1)
	assert.Equal(t, "msg-billing", byQuery[0].ExternalID)
}

func TestGetMessagesSortAndLimit(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		msg := newMessage(fmt.Sprintf("msg-%d", i))
		received := time.Date(2026, 8, 20, 9, i, 0, 0, time.UTC)
		msg.ReceivedAt = &received
		_, err := s.UpsertMessage(ctx, msg)
		require.NoError(t, err)
	}

	got, err := s.GetMessages(ctx, store.MessageFilter{
		SortBy:   "received_at",
		SortDesc: true,
		Limit:    2,
	})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "msg-4", got[0].ExternalID)
	assert.Equal(t, "msg-3", got[1].ExternalID)
}

func TestDeleteMessagesBatched(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	// More ids than one delete batch holds.
	ids := make([]string, 600)
	for i := range ids {
		ids[i] = fmt.Sprintf("msg-%04d", i)
		_, err := s.UpsertMessage(ctx, newMessage(ids[i]))
		require.NoError(t, err)
	}

	require.NoError(t, s.DeleteMessages(ctx, ids))

	remaining, err := s.GetMessages(ctx, store.MessageFilter{})
	require.NoError(t, err)
	assert.Empty(t, remaining)
}
