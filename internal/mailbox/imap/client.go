// Package imap adapts a generic IMAP mailbox to the mailbox contract
// using go-imap v2 for the protocol and go-message for MIME parsing.
package imap

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	gomail "github.com/emersion/go-message/mail"

	"github.com/nhle/mail-triage/internal/mailbox"
)

// Client wraps go-imap v2 for connecting to and querying IMAP servers.
type Client struct {
	host     string
	port     string
	username string
	password string
}

// NewClient creates a new IMAP client configuration. Connections always
// use TLS.
func NewClient(host, port, username, password string) *Client {
	return &Client{
		host:     host,
		port:     port,
		username: username,
		password: password,
	}
}

// connect establishes a TLS connection to the IMAP server and
// authenticates. The caller is responsible for calling Logout on the
// returned client.
func (c *Client) connect(_ context.Context) (*imapclient.Client, error) {
	addr := c.host + ":" + c.port

	client, err := imapclient.DialTLS(addr, nil)
	if err != nil {
		return nil, fmt.Errorf("connecting to IMAP %s: %w", addr, err)
	}

	if err := client.Login(c.username, c.password).Wait(); err != nil {
		_ = client.Logout().Wait()
		return nil, &mailbox.AuthError{
			Provider: mailbox.ProviderIMAP,
			Message: fmt.Sprintf(
				"authentication failed for %s: %v", c.username, err,
			),
		}
	}

	return client, nil
}

// fetchedBody holds one raw message pulled from the server.
type fetchedBody struct {
	uid       imap.UID
	messageID string
	subject   string
	from      string
	date      time.Time
	flags     []string
	seen      bool
	raw       []byte
}

// fetchUnseen selects INBOX, searches for UNSEEN messages, and fetches
// their envelopes and full bodies.
func (c *Client) fetchUnseen(ctx context.Context, limit int) ([]fetchedBody, error) {
	client, err := c.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = client.Logout().Wait() }()

	if _, err := client.Select("INBOX", nil).Wait(); err != nil {
		return nil, fmt.Errorf("selecting INBOX: %w", err)
	}

	criteria := &imap.SearchCriteria{
		NotFlag: []imap.Flag{imap.FlagSeen},
	}
	searchData, err := client.UIDSearch(criteria, nil).Wait()
	if err != nil {
		return nil, fmt.Errorf("searching unseen messages: %w", err)
	}

	uids := searchData.AllUIDs()
	if len(uids) == 0 {
		return nil, nil
	}
	if limit > 0 && len(uids) > limit {
		uids = uids[len(uids)-limit:]
	}

	bodySection := &imap.FetchItemBodySection{Peek: true}
	fetchOpts := &imap.FetchOptions{
		Envelope:    true,
		Flags:       true,
		UID:         true,
		BodySection: []*imap.FetchItemBodySection{bodySection},
	}

	fetchCmd := client.Fetch(imap.UIDSetNum(uids...), fetchOpts)
	defer fetchCmd.Close()

	var results []fetchedBody
	for {
		msg := fetchCmd.Next()
		if msg == nil {
			break
		}

		buf, err := msg.Collect()
		if err != nil {
			continue
		}

		fb := fetchedBody{
			uid: buf.UID,
			raw: buf.FindBodySection(bodySection),
		}
		if buf.Envelope != nil {
			fb.messageID = buf.Envelope.MessageID
			fb.subject = buf.Envelope.Subject
			fb.date = buf.Envelope.Date
			if len(buf.Envelope.From) > 0 {
				fb.from = buf.Envelope.From[0].Addr()
			}
		}
		for _, flag := range buf.Flags {
			fb.flags = append(fb.flags, string(flag))
			if flag == imap.FlagSeen {
				fb.seen = true
			}
		}

		results = append(results, fb)
	}

	if err := fetchCmd.Close(); err != nil {
		return results, fmt.Errorf("fetching messages: %w", err)
	}

	return results, nil
}

// mimePart is one decoded part of a parsed message body.
type mimePart struct {
	contentType string
	body        []byte
}

// parseMIMEBody walks a raw RFC 2822 message with go-message and returns
// its inline parts in document order. When parsing fails, the whole body
// is returned as a single text/plain part so a malformed message still
// yields something readable.
func parseMIMEBody(raw []byte) []mimePart {
	if len(raw) == 0 {
		return nil
	}

	mr, err := gomail.CreateReader(bytes.NewReader(raw))
	if err != nil {
		return []mimePart{{contentType: "text/plain", body: raw}}
	}
	defer mr.Close()

	var parts []mimePart
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			break
		}

		header, ok := part.Header.(*gomail.InlineHeader)
		if !ok {
			continue
		}

		contentType, _, _ := header.ContentType()
		body, readErr := io.ReadAll(part.Body)
		if readErr != nil {
			continue
		}

		switch {
		case strings.HasPrefix(contentType, "text/plain"):
			parts = append(parts, mimePart{contentType: "text/plain", body: body})
		case strings.HasPrefix(contentType, "text/html"):
			parts = append(parts, mimePart{contentType: "text/html", body: body})
		}
	}

	return parts
}
