package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"learnloop/internal/domain/entity"
)

// RateLimitError indicates the backend throttled the call (HTTP 429).
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("provider rate limited, retry after %v", e.RetryAfter)
}

// ClientError indicates the backend rejected the request as malformed or
// unauthorized (HTTP 4xx other than 429). These do not resolve on retry.
type ClientError struct {
	StatusCode int
	Message    string
}

func (e *ClientError) Error() string {
	return fmt.Sprintf("provider client error (status %d): %s", e.StatusCode, e.Message)
}

// ServerError indicates a backend-side failure (HTTP 5xx).
type ServerError struct {
	StatusCode int
	Message    string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("provider server error (status %d): %s", e.StatusCode, e.Message)
}

// InvalidRecipientError indicates the recipient address itself was rejected.
// The address should be deactivated; retrying cannot succeed.
type InvalidRecipientError struct {
	Address string
	Reason  string
}

func (e *InvalidRecipientError) Error() string {
	return fmt.Sprintf("invalid recipient %q: %s", e.Address, e.Reason)
}

// Classify maps a provider error to an attempt outcome and a result skeleton.
// Network errors and server errors are transient; client errors and invalid
// recipients are permanent; rate limit errors are transient with a
// backend-suggested wait.
func Classify(providerName string, err error) *SendResult {
	res := &SendResult{Provider: providerName, Detail: err.Error()}

	var rateErr *RateLimitError
	var clientErr *ClientError
	var recipientErr *InvalidRecipientError

	switch {
	case errors.As(err, &recipientErr):
		res.Outcome = entity.OutcomePermanentFailure
		res.InvalidRecipient = true
	case errors.As(err, &clientErr):
		res.Outcome = entity.OutcomePermanentFailure
	case errors.As(err, &rateErr):
		res.Outcome = entity.OutcomeTransientFailure
		res.RetryAfter = rateErr.RetryAfter
	default:
		// Server errors, timeouts, DNS failures, connection resets.
		res.Outcome = entity.OutcomeTransientFailure
	}
	return res
}

// apiResponse is the envelope the HTTP gateway backends reply with.
type apiResponse struct {
	MessageID string `json:"message_id"`
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
}

// httpGateway is the shared JSON-over-HTTP transport for gateway-style
// backends. Each provider wraps it with its own payload shape.
type httpGateway struct {
	endpoint string
	apiKey   string
	client   *http.Client
	limiter  *RateLimiter
}

func newHTTPGateway(endpoint, apiKey string, timeout time.Duration, limiter *RateLimiter) *httpGateway {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &httpGateway{
		endpoint: endpoint,
		apiKey:   apiKey,
		client:   &http.Client{Timeout: timeout},
		limiter:  limiter,
	}
}

// post sends the payload and decodes the standard backend envelope.
func (g *httpGateway) post(ctx context.Context, path string, payload any) (*apiResponse, error) {
	var decoded apiResponse
	if err := g.postInto(ctx, path, payload, &decoded); err != nil {
		return nil, err
	}
	return &decoded, nil
}

// postInto sends the payload and decodes the response into out. Status codes
// are mapped to the typed errors above; the caller classifies via Classify.
func (g *httpGateway) postInto(ctx context.Context, path string, payload, out any) error {
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("post: %w", err)
		}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("post: marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("post: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if g.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+g.apiKey)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("post: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("post: read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return &RateLimitError{RetryAfter: extractRetryAfter(resp)}
	case resp.StatusCode >= 500:
		return &ServerError{StatusCode: resp.StatusCode, Message: string(raw)}
	case resp.StatusCode >= 400:
		return &ClientError{StatusCode: resp.StatusCode, Message: string(raw)}
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("post: decode response: %w", err)
	}
	return nil
}

// extractRetryAfter parses the Retry-After header, defaulting to 5s when the
// header is missing or malformed.
func extractRetryAfter(resp *http.Response) time.Duration {
	header := resp.Header.Get("Retry-After")
	if header == "" {
		return 5 * time.Second
	}
	seconds, err := strconv.Atoi(header)
	if err != nil || seconds <= 0 {
		return 5 * time.Second
	}
	return time.Duration(seconds) * time.Second
}
