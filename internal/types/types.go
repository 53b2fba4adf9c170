package types

import "time"

// Comment type constants
const (
	CommentSummary   = "summary"
	CommentChapters  = "chapters"
	CommentTakeaways = "takeaways"
	CommentSkipped   = "skipped"
)

// Promo position constants
const (
	PromoTop    = "top"
	PromoBottom = "bottom"
	PromoNone   = "none"
)

// Session outcome constants
const (
	OutcomeCompleted = "completed"
	OutcomeSkipped   = "skipped-no-transcript"
	OutcomeFailed    = "failed"
)

// Remote status values
const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// VideoTask is a queued video awaiting processing. Supplied by the backend
// queue and immutable during a session.
type VideoTask struct {
	VideoID      string `json:"video_id"`
	URL          string `json:"url"`
	Title        string `json:"title"`
	ChannelName  string `json:"channel_name"`
	CategoryID   int    `json:"category_id"`
	CategoryName string `json:"category_name"`
}

// VideoMetadata holds best-effort page metadata. Every field is optional;
// extraction never fails the session.
type VideoMetadata struct {
	VideoID         string `json:"videoId"`
	URL             string `json:"url"`
	Title           string `json:"title"`
	Channel         string `json:"channel"`
	ChannelURL      string `json:"channelUrl"`
	Duration        string `json:"duration"`
	ViewCount       string `json:"viewCount"`
	LikeCount       string `json:"likeCount"`
	Thumbnail       string `json:"thumbnail"`
	Description     string `json:"description"`
	UploadDate      string `json:"uploadDate"`
	SubscriberCount string `json:"subscriberCount"`
}

// Transcript is the serialized transcript plus the last segment timestamp,
// kept as a duration fallback when the player metadata lacks one.
type Transcript struct {
	Text          string
	SegmentCount  int
	LastTimestamp string
}

// AIResult is the summarization service response. Summary is always the
// full-form content regardless of the requested comment type.
type AIResult struct {
	Summary     string `json:"summary"`
	Comment     string `json:"comment"`
	CommentType string `json:"comment_type"`
}

// StatusUpdate is the payload persisted to the backend after a session.
type StatusUpdate struct {
	VideoID         string `json:"video_id"`
	CategoryID      int    `json:"category_id"`
	SummaryText     string `json:"summary_text,omitempty"`
	CommentText     string `json:"comment_text,omitempty"`
	CommentType     string `json:"comment_type,omitempty"`
	PromoText       string `json:"promo_text,omitempty"`
	PromoPosition   string `json:"promo_position,omitempty"`
	NotionPageID    string `json:"notion_page_id,omitempty"`
	SummaryStatus   string `json:"summary_status,omitempty"`
	CommentedStatus string `json:"commented_status,omitempty"`
}

// Category is a backend video category.
type Category struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// DatabaseBinding maps a category to its Notion database. At most one
// database exists per category; once created it is reused forever.
type DatabaseBinding struct {
	CategoryID   int
	DatabaseID   string
	DatabaseName string
	CreatedAt    time.Time
}

// ArchiveRecord is everything the Notion archiver writes for one video.
type ArchiveRecord struct {
	Metadata   VideoMetadata
	Category   string
	Summary    string
	Comment    string
	Transcript string
}
