// Package engine talks to a remote text-generation endpoint and turns its
// free-form output into validated triage and summary results.
package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// ErrorKind classifies a generation failure.
type ErrorKind string

const (
	// KindTimeout means the call exceeded its deadline and was aborted.
	// This is an expected outcome, not a fault.
	KindTimeout ErrorKind = "timeout"

	// KindRemote means the endpoint answered with a non-success status.
	KindRemote ErrorKind = "remote_error"

	// KindTransport means the request never completed at the HTTP level.
	KindTransport ErrorKind = "transport_error"
)

// GenerationError is the typed failure returned by Generate. Callers
// switch on Kind; the orchestrator routes every kind to the fallback
// result rather than aborting the batch.
type GenerationError struct {
	Kind        ErrorKind
	Status      int           // set for KindRemote
	BodyExcerpt string        // set for KindRemote
	Elapsed     time.Duration // set for KindTimeout
	Err         error
}

func (e *GenerationError) Error() string {
	switch e.Kind {
	case KindTimeout:
		return fmt.Sprintf("generation timed out after %s", e.Elapsed.Round(time.Millisecond))
	case KindRemote:
		return fmt.Sprintf("generation endpoint returned %d: %s", e.Status, e.BodyExcerpt)
	default:
		return fmt.Sprintf("generation transport error: %v", e.Err)
	}
}

func (e *GenerationError) Unwrap() error { return e.Err }

// AsGenerationError reports whether err (or any error in its chain) is a
// GenerationError, returning it if so.
func AsGenerationError(err error) (*GenerationError, bool) {
	var genErr *GenerationError
	if errors.As(err, &genErr) {
		return genErr, true
	}
	return nil, false
}

// excerptLimit caps how much of an error response body is kept.
const excerptLimit = 200

// healthTimeout bounds the liveness probe, which must stay cheap.
const healthTimeout = 5 * time.Second

// Client is the generation engine client. It issues exactly one network
// call per Generate invocation and never retries; retry policy belongs to
// the caller.
type Client struct {
	baseURL     string
	model       string
	temperature float64
	httpClient  *http.Client
	logger      *zap.Logger
}

// NewClient creates a generation client for the given endpoint and model.
// The http.Client carries no timeout of its own: every call is bounded by
// the per-request context deadline instead.
func NewClient(baseURL, model string, temperature float64, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL:     baseURL,
		model:       model,
		temperature: temperature,
		httpClient:  &http.Client{},
		logger:      logger,
	}
}

// generateRequest is the wire body for the generate endpoint.
type generateRequest struct {
	Model   string          `json:"model"`
	Prompt  string          `json:"prompt"`
	Stream  bool            `json:"stream"`
	Options generateOptions `json:"options"`
}

type generateOptions struct {
	Temperature float64 `json:"temperature"`
}

// generateResponse is the wire body of a successful response.
type generateResponse struct {
	Response string `json:"response"`
}

// Generate sends a prompt to the engine and returns the raw completion
// text. The call is bound to timeout via a cancellable context deadline;
// on expiry the in-flight request is aborted and a KindTimeout error is
// returned.
func (c *Client) Generate(ctx context.Context, prompt string, timeout time.Duration) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	body, err := json.Marshal(generateRequest{
		Model:   c.model,
		Prompt:  prompt,
		Stream:  false,
		Options: generateOptions{Temperature: c.temperature},
	})
	if err != nil {
		return "", fmt.Errorf("encoding generate request: %w", err)
	}

	req, err := http.NewRequestWithContext(
		ctx, http.MethodPost, c.baseURL+"/api/generate", bytes.NewReader(body),
	)
	if err != nil {
		return "", fmt.Errorf("building generate request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		elapsed := time.Since(start)
		if errors.Is(err, context.DeadlineExceeded) || ctx.Err() == context.DeadlineExceeded {
			c.logger.Warn("generation timed out",
				zap.Duration("elapsed", elapsed),
				zap.Duration("timeout", timeout),
			)
			return "", &GenerationError{Kind: KindTimeout, Elapsed: elapsed, Err: err}
		}
		return "", &GenerationError{Kind: KindTransport, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, excerptLimit))
		c.logger.Warn("generation endpoint error",
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", excerpt),
		)
		return "", &GenerationError{
			Kind:        KindRemote,
			Status:      resp.StatusCode,
			BodyExcerpt: string(excerpt),
		}
	}

	var decoded generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", &GenerationError{Kind: KindTransport, Err: fmt.Errorf("decoding response: %w", err)}
	}

	c.logger.Debug("generation completed",
		zap.Duration("elapsed", time.Since(start)),
		zap.Int("prompt_chars", len(prompt)),
		zap.Int("response_chars", len(decoded.Response)),
	)

	return decoded.Response, nil
}

// Healthy runs a cheap liveness check against the engine, distinct from
// the generate call. Used to short-circuit a sync before doing expensive
// work when the engine is unreachable.
func (c *Client) Healthy(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", nil)
	if err != nil {
		return fmt.Errorf("building health request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("generation engine unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("generation engine health check returned %d", resp.StatusCode)
	}
	return nil
}
