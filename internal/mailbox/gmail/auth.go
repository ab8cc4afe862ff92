package gmail

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/nhle/mail-triage/internal/credential"
	"github.com/nhle/mail-triage/internal/mailbox"
)

// tokenKey is the keyring entry holding the OAuth token JSON.
const tokenKey = "gmail-token"

// Scope covers read-only mailbox access; the pipeline never mutates mail.
var scopes = []string{"https://www.googleapis.com/auth/gmail.readonly"}

// loadOAuthConfig reads the Google OAuth client configuration from
// credentials.json.
func loadOAuthConfig(credentialsPath string) (*oauth2.Config, error) {
	data, err := os.ReadFile(credentialsPath)
	if err != nil {
		return nil, fmt.Errorf("reading credentials from %s: %w", credentialsPath, err)
	}

	config, err := google.ConfigFromJSON(data, scopes...)
	if err != nil {
		return nil, fmt.Errorf("parsing credentials %s: %w", credentialsPath, err)
	}
	return config, nil
}

// newAuthClient builds an authenticated HTTP client from the stored token,
// refreshing it if expired and saving the refreshed token back to the
// keyring.
func newAuthClient(ctx context.Context, config *oauth2.Config) (*http.Client, error) {
	raw, err := credential.Get(tokenKey)
	if err != nil {
		return nil, &mailbox.AuthError{
			Provider: mailbox.ProviderGmail,
			Message:  "no stored OAuth token; run setup to authorize",
		}
	}

	var token oauth2.Token
	if err := json.Unmarshal([]byte(raw), &token); err != nil {
		return nil, fmt.Errorf("parsing stored OAuth token: %w", err)
	}

	ts := config.TokenSource(ctx, &token)
	fresh, err := ts.Token()
	if err != nil {
		return nil, &mailbox.AuthError{
			Provider: mailbox.ProviderGmail,
			Message:  fmt.Sprintf("token refresh failed: %v", err),
		}
	}

	if fresh.AccessToken != token.AccessToken {
		if saveErr := SaveToken(fresh); saveErr != nil {
			// Not fatal: the old refresh token still works next run.
			fmt.Fprintf(os.Stderr, "warning: could not save refreshed token: %v\n", saveErr)
		}
	}

	return oauth2.NewClient(ctx, ts), nil
}

// SaveToken persists an OAuth token to the keyring. Used by the setup flow
// after the initial authorization exchange.
func SaveToken(token *oauth2.Token) error {
	data, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("encoding OAuth token: %w", err)
	}
	return credential.Set(tokenKey, string(data))
}

// AuthURL returns the URL the user visits to authorize mailbox access.
func AuthURL(credentialsPath string) (string, error) {
	config, err := loadOAuthConfig(credentialsPath)
	if err != nil {
		return "", err
	}
	return config.AuthCodeURL("state-token", oauth2.AccessTypeOffline), nil
}

// Exchange trades an authorization code for a token and stores it in the
// keyring.
func Exchange(ctx context.Context, credentialsPath, code string) error {
	config, err := loadOAuthConfig(credentialsPath)
	if err != nil {
		return err
	}
	token, err := config.Exchange(ctx, code)
	if err != nil {
		return fmt.Errorf("exchanging authorization code: %w", err)
	}
	return SaveToken(token)
}
