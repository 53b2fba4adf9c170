package notion

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mezmer90/youtube-commenting-automation/internal/types"
)

// Notion caps 100 blocks per create/append request and nested toggle
// children even lower.
const (
	maxBlocksPerRequest = 100
	maxToggleChildren   = 90
	appendPause         = 300 * time.Millisecond
)

// Page is a created archive page.
type Page struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// SavePage writes one structured record per processed video. The video URL
// is required and must be a well-formed http(s) URL; a record without it is
// meaningless, so that is a hard error rather than a soft skip.
func (c *Client) SavePage(ctx context.Context, databaseID string, rec *types.ArchiveRecord) (*Page, error) {
	if databaseID == "" {
		return nil, fmt.Errorf("database ID is required")
	}
	if !isValidURL(rec.Metadata.URL) {
		return nil, fmt.Errorf("video URL is required and must be a valid http(s) URL, got %q", rec.Metadata.URL)
	}

	properties := buildProperties(rec)
	blocks := buildContentBlocks(rec)

	initial := blocks
	if len(initial) > maxBlocksPerRequest {
		initial = initial[:maxBlocksPerRequest]
	}

	body := map[string]interface{}{
		"parent": map[string]interface{}{
			"type":        "database_id",
			"database_id": databaseID,
		},
		"properties": properties,
		"children":   initial,
	}

	var page Page
	if err := c.request(ctx, "POST", "/pages", body, &page); err != nil {
		return nil, err
	}

	if len(blocks) > maxBlocksPerRequest {
		if err := c.appendBlocks(ctx, page.ID, blocks[maxBlocksPerRequest:]); err != nil {
			// The page exists with the first 100 blocks; the overflow is
			// lost but the record stands.
			log.Printf("[notion] Failed to append overflow blocks to %s: %v", page.ID, err)
		}
	}

	log.Printf("[notion] Saved page %s", page.URL)
	return &page, nil
}

// appendBlocks pushes the remaining blocks in request-sized chunks, pausing
// between requests to stay under the rate limit.
func (c *Client) appendBlocks(ctx context.Context, pageID string, blocks []Block) error {
	for i := 0; i < len(blocks); i += maxBlocksPerRequest {
		end := i + maxBlocksPerRequest
		if end > len(blocks) {
			end = len(blocks)
		}
		body := map[string]interface{}{"children": blocks[i:end]}
		if err := c.request(ctx, "PATCH", "/blocks/"+pageID+"/children", body, nil); err != nil {
			return err
		}
		if end < len(blocks) {
			if err := sleepCtx(ctx, appendPause); err != nil {
				return err
			}
		}
	}
	return nil
}

func buildProperties(rec *types.ArchiveRecord) map[string]interface{} {
	md := rec.Metadata
	title := md.Title
	if title == "" {
		title = "Untitled Video"
	}

	props := map[string]interface{}{
		"Name": map[string]interface{}{
			"title": richText(title),
		},
		"Video URL": map[string]interface{}{"url": md.URL},
		"Created": map[string]interface{}{
			"date": map[string]interface{}{"start": time.Now().UTC().Format(time.RFC3339)},
		},
		"Status":    map[string]interface{}{"select": map[string]interface{}{"name": "Completed"}},
		"Commented": map[string]interface{}{"checkbox": true},
	}

	if rec.Category != "" {
		props["Category"] = map[string]interface{}{"rich_text": richText(rec.Category)}
	}
	if md.Channel != "" {
		props["Channel"] = map[string]interface{}{"rich_text": richText(md.Channel)}
	}
	if isValidURL(md.ChannelURL) {
		props["Channel URL"] = map[string]interface{}{"url": md.ChannelURL}
	}
	if md.Duration != "" {
		props["Duration"] = map[string]interface{}{"rich_text": richText(md.Duration)}
	}
	if n, ok := parseCount(md.ViewCount); ok {
		props["Views"] = map[string]interface{}{"number": n}
	}
	if n, ok := parseCount(md.LikeCount); ok {
		props["Likes"] = map[string]interface{}{"number": n}
	}
	if md.SubscriberCount != "" {
		props["Subscribers"] = map[string]interface{}{"rich_text": richText(md.SubscriberCount)}
	}
	if md.UploadDate != "" {
		props["Upload Date"] = map[string]interface{}{"rich_text": richText(md.UploadDate)}
	}
	if isValidURL(md.Thumbnail) {
		props["Thumbnail"] = map[string]interface{}{"url": md.Thumbnail}
	}
	return props
}

// buildContentBlocks lays out the page body: video info, the full summary,
// the posted comment as quote blocks, and the transcript inside a toggle.
func buildContentBlocks(rec *types.ArchiveRecord) []Block {
	md := rec.Metadata
	blocks := []Block{headingBlock(2, "Video Information")}

	if md.Channel != "" {
		blocks = append(blocks, Block{
			"object":    "block",
			"type":      "paragraph",
			"paragraph": map[string]interface{}{"rich_text": boldText("Channel: ", md.Channel)},
		})
	}

	var stats []string
	if md.ViewCount != "" && md.ViewCount != "0" {
		stats = append(stats, "Views: "+md.ViewCount)
	}
	if md.LikeCount != "" && md.LikeCount != "0" {
		stats = append(stats, "Likes: "+md.LikeCount)
	}
	if md.Duration != "" {
		stats = append(stats, "Duration: "+md.Duration)
	}
	if len(stats) > 0 {
		blocks = append(blocks, paragraphBlock(strings.Join(stats, " • ")))
	}

	if rec.Summary != "" {
		blocks = append(blocks, headingBlock(2, "Summary"))
		blocks = append(blocks, TextToBlocks(rec.Summary)...)
	}

	if rec.Comment != "" {
		blocks = append(blocks, headingBlock(2, "Posted Comment"))
		for _, chunk := range SplitTextIntoChunks(rec.Comment, MaxBlockTextLen) {
			blocks = append(blocks, quoteBlock(chunk))
		}
	}

	if rec.Transcript != "" {
		children := TextToBlocks(rec.Transcript)
		if len(children) > maxToggleChildren {
			children = children[:maxToggleChildren]
		}
		blocks = append(blocks, dividerBlock(), toggleBlock("Full Transcript", children))
	}

	return blocks
}

// parseCount parses a numeric string like "1,234,567".
func parseCount(s string) (int64, bool) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" {
		return 0, false
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

func isValidURL(s string) bool {
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
