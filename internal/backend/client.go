package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/mezmer90/youtube-commenting-automation/internal/types"
)

// Client talks to the queue/progress backend.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a backend client for the given base URL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// GetNextVideo dequeues the next pending video for a category. Returns nil
// when the category has no pending videos.
func (c *Client) GetNextVideo(ctx context.Context, categoryID int) (*types.VideoTask, error) {
	var resp struct {
		Success bool             `json:"success"`
		Video   *types.VideoTask `json:"video"`
		Error   string           `json:"error"`
	}
	endpoint := fmt.Sprintf("/api/videos/next?category_id=%d", categoryID)
	if err := c.get(ctx, endpoint, &resp); err != nil {
		return nil, err
	}
	if !resp.Success || resp.Video == nil {
		return nil, nil
	}
	return resp.Video, nil
}

// UpdateVideoStatus persists the session outcome. This is the system of
// record; callers must treat a failure here as fatal to the session.
func (c *Client) UpdateVideoStatus(ctx context.Context, update types.StatusUpdate) error {
	var resp struct {
		Success bool   `json:"success"`
		Error   string `json:"error"`
	}
	if err := c.post(ctx, "/api/videos/update-status", update, &resp); err != nil {
		return err
	}
	if !resp.Success {
		return fmt.Errorf("status update rejected: %s", resp.Error)
	}
	return nil
}

// IncrementProgress bumps the daily counter for a category.
func (c *Client) IncrementProgress(ctx context.Context, categoryID int, categoryName string) error {
	body := map[string]interface{}{
		"category_id":   categoryID,
		"category_name": categoryName,
	}
	return c.post(ctx, "/api/progress/increment", body, nil)
}

// GetCategories lists the backend's video categories.
func (c *Client) GetCategories(ctx context.Context) ([]types.Category, error) {
	var resp struct {
		Success    bool             `json:"success"`
		Categories []types.Category `json:"categories"`
		Error      string           `json:"error"`
	}
	if err := c.get(ctx, "/api/categories", &resp); err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, fmt.Errorf("failed to list categories: %s", resp.Error)
	}
	return resp.Categories, nil
}

// SyncNotionDatabase mirrors a category database binding to the backend so
// other hosts reuse it instead of creating duplicates.
func (c *Client) SyncNotionDatabase(ctx context.Context, categoryID int, databaseID, databaseName string) error {
	body := map[string]interface{}{
		"category_id":   categoryID,
		"database_id":   databaseID,
		"database_name": databaseName,
	}
	return c.post(ctx, "/api/notion/sync-database", body, nil)
}

// GetDailyProgress returns the backend's daily processed-video count.
func (c *Client) GetDailyProgress(ctx context.Context) (int, error) {
	var resp struct {
		Success bool `json:"success"`
		Count   int  `json:"count"`
	}
	if err := c.get(ctx, "/api/progress/daily", &resp); err != nil {
		return 0, err
	}
	return resp.Count, nil
}

func (c *Client) get(ctx context.Context, endpoint string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, endpoint, out)
}

func (c *Client) post(ctx context.Context, endpoint string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode request: %v", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, endpoint, out)
}

func (c *Client) do(req *http.Request, endpoint string, out interface{}) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("backend request failed (%s): %w", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := fmt.Sprintf("HTTP %d", resp.StatusCode)
		var errBody struct {
			Error   string `json:"error"`
			Message string `json:"message"`
		}
		if data, readErr := io.ReadAll(io.LimitReader(resp.Body, 4096)); readErr == nil {
			if json.Unmarshal(data, &errBody) == nil {
				if errBody.Error != "" {
					msg = errBody.Error
				} else if errBody.Message != "" {
					msg = errBody.Message
				}
			}
		}
		log.Printf("[backend] %s %s failed: %s", req.Method, endpoint, msg)
		return fmt.Errorf("backend error (%s): %s", endpoint, msg)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode backend response (%s): %v", endpoint, err)
	}
	return nil
}
