package notion

import (
	"context"
	"fmt"
	"log"
)

// Database is a created category database.
type Database struct {
	ID    string `json:"id"`
	URL   string `json:"url"`
	Title string `json:"-"`
}

// CreateDatabase creates a new per-category video database under the given
// parent page. The schema matches what SavePage writes.
func (c *Client) CreateDatabase(ctx context.Context, parentPageID, categoryName string) (*Database, error) {
	title := fmt.Sprintf("%s - Video Summaries", categoryName)

	body := map[string]interface{}{
		"parent": map[string]interface{}{"type": "page_id", "page_id": parentPageID},
		"title":  richText(title),
		"icon":   map[string]interface{}{"type": "emoji", "emoji": "🎥"},
		"properties": map[string]interface{}{
			"Name":        map[string]interface{}{"title": map[string]interface{}{}},
			"Video URL":   map[string]interface{}{"url": map[string]interface{}{}},
			"Category":    map[string]interface{}{"rich_text": map[string]interface{}{}},
			"Channel":     map[string]interface{}{"rich_text": map[string]interface{}{}},
			"Channel URL": map[string]interface{}{"url": map[string]interface{}{}},
			"Duration":    map[string]interface{}{"rich_text": map[string]interface{}{}},
			"Views":       map[string]interface{}{"number": map[string]interface{}{"format": "number"}},
			"Likes":       map[string]interface{}{"number": map[string]interface{}{"format": "number"}},
			"Subscribers": map[string]interface{}{"rich_text": map[string]interface{}{}},
			"Upload Date": map[string]interface{}{"rich_text": map[string]interface{}{}},
			"Thumbnail":   map[string]interface{}{"url": map[string]interface{}{}},
			"Created":     map[string]interface{}{"date": map[string]interface{}{}},
			"Status": map[string]interface{}{
				"select": map[string]interface{}{
					"options": []interface{}{
						map[string]interface{}{"name": "Pending", "color": "gray"},
						map[string]interface{}{"name": "Processing", "color": "yellow"},
						map[string]interface{}{"name": "Completed", "color": "green"},
						map[string]interface{}{"name": "Failed", "color": "red"},
					},
				},
			},
			"Commented": map[string]interface{}{"checkbox": map[string]interface{}{}},
		},
	}

	var db Database
	if err := c.request(ctx, "POST", "/databases", body, &db); err != nil {
		return nil, fmt.Errorf("failed to create database for %q: %w", categoryName, err)
	}
	db.Title = title

	log.Printf("[notion] Created database %q (%s)", title, db.ID)
	return &db, nil
}
