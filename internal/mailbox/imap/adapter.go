package imap

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/nhle/mail-triage/internal/mail"
	"github.com/nhle/mail-triage/internal/mailbox"
	"github.com/nhle/mail-triage/internal/model"
)

// snippetLength caps the preview built from the first text part. Gmail
// supplies snippets natively; IMAP has no equivalent, so the adapter
// derives one.
const snippetLength = 120

// Adapter implements mailbox.Mailbox for generic IMAP servers.
type Adapter struct {
	client *Client
}

// NewAdapter creates an IMAP mailbox adapter.
func NewAdapter(host, port, username, password string) *Adapter {
	return &Adapter{client: NewClient(host, port, username, password)}
}

// Provider returns the imap provider identifier.
func (a *Adapter) Provider() mailbox.Provider {
	return mailbox.ProviderIMAP
}

// ValidateConnection verifies IMAP credentials by connecting and
// selecting INBOX. Returns the username on success.
func (a *Adapter) ValidateConnection(ctx context.Context) (string, error) {
	client, err := a.client.connect(ctx)
	if err != nil {
		return "", fmt.Errorf("validating IMAP connection: %w", err)
	}
	defer func() { _ = client.Logout().Wait() }()

	if _, err := client.Select("INBOX", nil).Wait(); err != nil {
		return "", fmt.Errorf("selecting INBOX: %w", err)
	}

	return a.client.username, nil
}

// ListUnread fetches up to maxResults unseen messages and maps them to the
// normalized shape plus the shared part tree.
func (a *Adapter) ListUnread(ctx context.Context, maxResults int) ([]mailbox.Fetched, error) {
	bodies, err := a.client.fetchUnseen(ctx, maxResults)
	if err != nil {
		return nil, err
	}

	fetched := make([]mailbox.Fetched, 0, len(bodies))
	for _, fb := range bodies {
		fetched = append(fetched, toFetched(fb))
	}
	return fetched, nil
}

// toFetched maps one raw IMAP message onto the normalized message shape.
// Decoded part bodies are re-encoded as standard base64 so the extractor
// sees the same transport form from every provider.
func toFetched(fb fetchedBody) mailbox.Fetched {
	parts := parseMIMEBody(fb.raw)

	tree := &mail.Part{MIMEType: "multipart/mixed"}
	var snippet string
	for _, p := range parts {
		tree.Parts = append(tree.Parts, &mail.Part{
			MIMEType: p.contentType,
			Body:     base64.StdEncoding.EncodeToString(p.body),
		})
		if snippet == "" && p.contentType == "text/plain" {
			snippet = makeSnippet(string(p.body))
		}
	}

	externalID := fb.messageID
	if externalID == "" {
		// Some servers omit Message-ID; the UID is stable per mailbox.
		externalID = fmt.Sprintf("imap-uid-%d", fb.uid)
	}

	m := model.Message{
		ExternalID:  externalID,
		FromAddress: fb.from,
		Subject:     fb.subject,
		Snippet:     snippet,
		Labels:      fb.flags,
		IsUnread:    !fb.seen,
		FetchedAt:   time.Now().UTC(),
	}

	if !fb.date.IsZero() {
		utc := fb.date.UTC()
		m.ReceivedAt = &utc
	}

	return mailbox.Fetched{Message: m, Parts: tree}
}

// makeSnippet condenses body text into a short single-line preview.
func makeSnippet(body string) string {
	fields := []rune{}
	lastSpace := false
	for _, r := range body {
		if r == '\n' || r == '\r' || r == '\t' || r == ' ' {
			if !lastSpace && len(fields) > 0 {
				fields = append(fields, ' ')
			}
			lastSpace = true
			continue
		}
		lastSpace = false
		fields = append(fields, r)
		if len(fields) >= snippetLength {
			break
		}
	}
	return string(fields)
}
