// Package mailbox defines the contract between the triage pipeline and a
// mail source. The pipeline depends only on the normalized message shape
// returned by ListUnread; provider authentication, pagination quirks, and
// wire formats stay inside the adapters.
package mailbox

import (
	"context"
	"errors"
	"fmt"

	"github.com/nhle/mail-triage/internal/mail"
	"github.com/nhle/mail-triage/internal/model"
)

// Provider identifies the kind of mail source integration.
type Provider string

const (
	ProviderGmail Provider = "gmail"
	ProviderIMAP  Provider = "imap"
)

// AuthError indicates that authentication has failed or expired for a
// mailbox. Adapters return it so the caller can prompt for reconfiguration
// instead of retrying blindly.
type AuthError struct {
	Provider Provider
	Message  string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("auth error (%s): %s", e.Provider, e.Message)
}

// IsAuthError reports whether err (or any error in its chain) is an AuthError.
func IsAuthError(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}

// Fetched pairs a normalized message with its raw MIME part tree. The
// body extractor consumes the tree; everything downstream consumes the
// message.
type Fetched struct {
	Message model.Message
	Parts   *mail.Part
}

// Mailbox defines the contract that every mail source adapter implements.
type Mailbox interface {
	// Provider returns the source identifier.
	Provider() Provider

	// ValidateConnection verifies credentials and connectivity.
	// Returns a human-readable account label on success.
	ValidateConnection(ctx context.Context) (string, error)

	// ListUnread fetches up to maxResults unread messages, newest last.
	// The fetch is a single logical operation: a failure here is fatal
	// to the whole sync, unlike per-message AI failures.
	ListUnread(ctx context.Context, maxResults int) ([]Fetched, error)
}
