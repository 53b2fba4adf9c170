package workflow

import (
	"time"

	"github.com/google/uuid"

	"github.com/mezmer90/youtube-commenting-automation/internal/types"
)

// Stage names the points of the linear session progression. Stages advance
// strictly in order; the only branches are the skip exit after the
// transcript stages and the fatal exit.
type Stage string

const (
	StageIdle                Stage = "idle"
	StageDequeued            Stage = "dequeued"
	StageTabNavigated        Stage = "tab-navigated"
	StagePageReady           Stage = "page-ready"
	StageLoginChecked        Stage = "login-checked"
	StageTranscriptChecked   Stage = "transcript-checked"
	StageTranscriptExtracted Stage = "transcript-extracted"
	StageMetadataFetched     Stage = "metadata-fetched"
	StageCommentTypeSelected Stage = "comment-type-selected"
	StageAIGenerated         Stage = "ai-generated"
	StagePromoApplied        Stage = "promo-applied"
	StageCommentInjected     Stage = "comment-injected"
	StageNotionSaved         Stage = "notion-saved"
	StageStatusPersisted     Stage = "status-persisted"
	StageProgressIncremented Stage = "progress-incremented"
)

// Session is one end-to-end attempt to process a single VideoTask. It is
// created when the task is dequeued and discarded once the outcome has been
// persisted; nothing survives across videos.
type Session struct {
	ID   string
	Task types.VideoTask

	Stage         Stage
	Transcript    *types.Transcript
	Metadata      *types.VideoMetadata
	CommentType   string
	Summary       string
	Generated     string
	FinalComment  string
	PromoText     string
	PromoPosition string
	CommentFilled bool
	NotionPageID  string
	Outcome       string

	StartedAt time.Time
}

func newSession(task types.VideoTask) *Session {
	return &Session{
		ID:            uuid.New().String(),
		Task:          task,
		Stage:         StageDequeued,
		PromoPosition: types.PromoNone,
		StartedAt:     time.Now(),
	}
}

// stepTag classifies a stage outcome. The coordinator's run loop is a
// pattern match over these tags.
type stepTag int

const (
	stepOK    stepTag = iota
	stepSkip          // no usable transcript: mark remote skip, end session
	stepFatal         // abort the session, surface to the operator
	stepSoft          // log and keep going
)

type stepResult struct {
	tag stepTag
	err error
}

func ok() stepResult                { return stepResult{tag: stepOK} }
func skip(err error) stepResult     { return stepResult{tag: stepSkip, err: err} }
func fatal(err error) stepResult    { return stepResult{tag: stepFatal, err: err} }
func softFail(err error) stepResult { return stepResult{tag: stepSoft, err: err} }

// Event is one progress notification emitted per stage, consumed by the
// WebSocket feed.
type Event struct {
	SessionID string    `json:"session_id"`
	VideoID   string    `json:"video_id"`
	Stage     Stage     `json:"stage"`
	Message   string    `json:"message,omitempty"`
	Time      time.Time `json:"time"`
}

// Notifier receives stage events. May be nil.
type Notifier func(Event)
