package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/mezmer90/youtube-commenting-automation/internal/types"
)

// Client calls the summarization service. The service always returns a
// full-form summary for archival alongside the comment, even when the
// requested comment type is chapters or takeaways.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates an AI client. Generation can take a while on long
// transcripts, hence the generous timeout.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 3 * time.Minute},
	}
}

// Process sends the transcript and metadata for generation. commentType may
// be empty to let the service pick.
func (c *Client) Process(ctx context.Context, transcript string, metadata *types.VideoMetadata, commentType string) (*types.AIResult, error) {
	body := map[string]interface{}{
		"transcript": transcript,
		"metadata":   metadata,
	}
	if commentType != "" {
		body["comment_type"] = commentType
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to encode AI request: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/ai/process", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("AI request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("AI processing failed: HTTP %d: %s", resp.StatusCode, string(data))
	}

	var parsed struct {
		Success bool   `json:"success"`
		Error   string `json:"error"`
		types.AIResult
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode AI response: %v", err)
	}
	if !parsed.Success {
		return nil, fmt.Errorf("AI processing failed: %s", parsed.Error)
	}
	if parsed.Comment == "" {
		return nil, fmt.Errorf("AI returned an empty comment")
	}
	return &parsed.AIResult, nil
}
