package notion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"
)

const (
	defaultBaseURL = "https://api.notion.com/v1"
	apiVersion     = "2022-06-28"
)

// retryDelays is the exponential backoff schedule for retryable responses.
var retryDelays = []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second}

// APIError is a non-retryable provider error with the detail payload
// attached. Validation errors (4xx) fail immediately with this type.
type APIError struct {
	Status  int
	Code    string
	Message string
	Detail  json.RawMessage
}

func (e *APIError) Error() string {
	if len(e.Detail) > 0 && e.Code == "validation_error" {
		return fmt.Sprintf("notion API error (%d, %s): %s: %s", e.Status, e.Code, e.Message, e.Detail)
	}
	return fmt.Sprintf("notion API error (%d, %s): %s", e.Status, e.Code, e.Message)
}

// Client is an authenticated Notion REST client.
type Client struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

// NewClient creates a Notion client with the integration API key.
func NewClient(apiKey string) *Client {
	return &Client{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http:    &http.Client{Timeout: 60 * time.Second},
	}
}

// NewClientWithBaseURL is used by tests to point at a stub server.
func NewClientWithBaseURL(apiKey, baseURL string) *Client {
	c := NewClient(apiKey)
	c.baseURL = baseURL
	return c
}

// isRetryable reports whether a response status warrants another attempt:
// rate limiting and server-side failures only.
func isRetryable(status int) bool {
	switch status {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

// request performs one API call with retry on 429/5xx and network errors.
// Non-retryable statuses return *APIError immediately.
func (c *Client) request(ctx context.Context, method, endpoint string, body, out interface{}) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode notion request: %v", err)
		}
	}

	var lastErr error
	for attempt := 0; attempt <= len(retryDelays); attempt++ {
		var reader io.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, reader)
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
		req.Header.Set("Notion-Version", apiVersion)
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			lastErr = err
			if attempt < len(retryDelays) {
				log.Printf("[notion] %s %s network error: %v (retrying in %s)", method, endpoint, err, retryDelays[attempt])
				if serr := sleepCtx(ctx, retryDelays[attempt]); serr != nil {
					return serr
				}
				continue
			}
			return fmt.Errorf("notion request failed after %d attempts: %w", len(retryDelays)+1, lastErr)
		}

		data, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			return fmt.Errorf("failed to read notion response: %v", readErr)
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			if out == nil {
				return nil
			}
			if err := json.Unmarshal(data, out); err != nil {
				return fmt.Errorf("failed to decode notion response: %v", err)
			}
			return nil
		}

		apiErr := parseAPIError(resp.StatusCode, data)
		if attempt < len(retryDelays) && isRetryable(resp.StatusCode) {
			log.Printf("[notion] %s %s returned %d (retrying in %s)", method, endpoint, resp.StatusCode, retryDelays[attempt])
			lastErr = apiErr
			if serr := sleepCtx(ctx, retryDelays[attempt]); serr != nil {
				return serr
			}
			continue
		}
		return apiErr
	}

	return fmt.Errorf("notion request failed: %v", lastErr)
}

func parseAPIError(status int, data []byte) *APIError {
	apiErr := &APIError{Status: status, Message: http.StatusText(status)}
	var parsed struct {
		Code    string          `json:"code"`
		Message string          `json:"message"`
		Details json.RawMessage `json:"details"`
	}
	if json.Unmarshal(data, &parsed) == nil {
		if parsed.Code != "" {
			apiErr.Code = parsed.Code
		}
		if parsed.Message != "" {
			apiErr.Message = parsed.Message
		}
		apiErr.Detail = parsed.Details
	}
	return apiErr
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
