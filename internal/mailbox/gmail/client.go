// Package gmail adapts the Gmail API to the mailbox contract. Message
// payloads arrive as nested part trees with URL-safe base64 bodies; they
// are passed through to the extractor still encoded.
package gmail

import (
	"context"
	"fmt"
	"time"

	gm "google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/nhle/mail-triage/internal/mail"
	"github.com/nhle/mail-triage/internal/mailbox"
	"github.com/nhle/mail-triage/internal/model"
)

// unreadQuery selects the messages a sync cares about. Spam and trash are
// excluded by the implicit in:inbox scope.
const unreadQuery = "is:unread in:inbox"

// Adapter implements mailbox.Mailbox against the Gmail API.
type Adapter struct {
	credentialsPath string
}

// NewAdapter creates a Gmail mailbox adapter. credentialsPath points at
// the OAuth client credentials.json; the user token lives in the keyring.
func NewAdapter(credentialsPath string) *Adapter {
	return &Adapter{credentialsPath: credentialsPath}
}

// Provider returns the gmail provider identifier.
func (a *Adapter) Provider() mailbox.Provider {
	return mailbox.ProviderGmail
}

// service builds an authenticated Gmail API client.
func (a *Adapter) service(ctx context.Context) (*gm.Service, error) {
	config, err := loadOAuthConfig(a.credentialsPath)
	if err != nil {
		return nil, err
	}
	client, err := newAuthClient(ctx, config)
	if err != nil {
		return nil, err
	}
	svc, err := gm.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("creating gmail service: %w", err)
	}
	return svc, nil
}

// ValidateConnection verifies credentials by fetching the profile.
// Returns the account email address on success.
func (a *Adapter) ValidateConnection(ctx context.Context) (string, error) {
	svc, err := a.service(ctx)
	if err != nil {
		return "", err
	}

	profile, err := svc.Users.GetProfile("me").Context(ctx).Do()
	if err != nil {
		return "", wrapAPIError("fetching profile", err)
	}
	return profile.EmailAddress, nil
}

// ListUnread fetches up to maxResults unread inbox messages with their
// full part trees.
func (a *Adapter) ListUnread(ctx context.Context, maxResults int) ([]mailbox.Fetched, error) {
	svc, err := a.service(ctx)
	if err != nil {
		return nil, err
	}

	listed, err := svc.Users.Messages.List("me").
		Q(unreadQuery).
		MaxResults(int64(maxResults)).
		Context(ctx).
		Do()
	if err != nil {
		return nil, wrapAPIError("listing unread messages", err)
	}

	fetched := make([]mailbox.Fetched, 0, len(listed.Messages))
	for _, stub := range listed.Messages {
		full, err := svc.Users.Messages.Get("me", stub.Id).
			Format("full").
			Context(ctx).
			Do()
		if err != nil {
			return nil, wrapAPIError(fmt.Sprintf("fetching message %s", stub.Id), err)
		}
		fetched = append(fetched, toFetched(full))
	}

	return fetched, nil
}

// toFetched maps a Gmail API message onto the normalized message shape
// plus the shared part tree.
func toFetched(msg *gm.Message) mailbox.Fetched {
	headers := headerMap(msg.Payload)

	m := model.Message{
		ExternalID:  msg.Id,
		ThreadID:    msg.ThreadId,
		FromAddress: headers["From"],
		Subject:     headers["Subject"],
		Snippet:     msg.Snippet,
		Labels:      msg.LabelIds,
		FetchedAt:   time.Now().UTC(),
	}

	if msg.InternalDate > 0 {
		t := time.UnixMilli(msg.InternalDate).UTC()
		m.ReceivedAt = &t
	}

	for _, label := range msg.LabelIds {
		if label == "UNREAD" {
			m.IsUnread = true
			break
		}
	}

	return mailbox.Fetched{
		Message: m,
		Parts:   toPartTree(msg.Payload),
	}
}

// toPartTree converts a Gmail payload into the extractor's part tree.
// Body data stays base64url-encoded; the extractor handles decoding.
func toPartTree(payload *gm.MessagePart) *mail.Part {
	if payload == nil {
		return nil
	}

	part := &mail.Part{MIMEType: payload.MimeType}
	if payload.Body != nil {
		part.Body = payload.Body.Data
	}
	for _, child := range payload.Parts {
		part.Parts = append(part.Parts, toPartTree(child))
	}
	return part
}

// headerMap flattens payload headers into a key-value map.
func headerMap(payload *gm.MessagePart) map[string]string {
	m := make(map[string]string)
	if payload == nil {
		return m
	}
	for _, h := range payload.Headers {
		m[h.Name] = h.Value
	}
	return m
}

// wrapAPIError converts a Gmail API failure into a typed error,
// surfacing 401/403 as AuthError.
func wrapAPIError(op string, err error) error {
	if apiErr, ok := err.(*googleapi.Error); ok {
		if apiErr.Code == 401 || apiErr.Code == 403 {
			return &mailbox.AuthError{
				Provider: mailbox.ProviderGmail,
				Message:  fmt.Sprintf("%s: %v", op, err),
			}
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}
