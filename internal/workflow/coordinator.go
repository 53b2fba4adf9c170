package workflow

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"sync"
	"time"

	"github.com/mezmer90/youtube-commenting-automation/internal/notion"
	"github.com/mezmer90/youtube-commenting-automation/internal/types"
)

// Page is the live-tab collaborator: DOM probes, the transcript extractor
// and the comment injector. All calls are sequential requests against one
// shared tab.
type Page interface {
	Navigate(ctx context.Context, url string) error
	AwaitReady(ctx context.Context) error
	CheckLoginStatus(ctx context.Context) (bool, error)
	HasTranscript(ctx context.Context) (bool, error)
	HasChaptersInDescription(ctx context.Context) (bool, error)
	ExtractTranscript(ctx context.Context) (*types.Transcript, error)
	ExtractMetadata(ctx context.Context, videoURL string) (*types.VideoMetadata, error)
	FillComment(ctx context.Context, text string) error
}

// Backend is the queue/status/progress system of record.
type Backend interface {
	GetNextVideo(ctx context.Context, categoryID int) (*types.VideoTask, error)
	UpdateVideoStatus(ctx context.Context, update types.StatusUpdate) error
	IncrementProgress(ctx context.Context, categoryID int, categoryName string) error
	SyncNotionDatabase(ctx context.Context, categoryID int, databaseID, databaseName string) error
}

// Summarizer generates the summary and the typed comment.
type Summarizer interface {
	Process(ctx context.Context, transcript string, metadata *types.VideoMetadata, commentType string) (*types.AIResult, error)
}

// Archiver is the structured-notes provider.
type Archiver interface {
	CreateDatabase(ctx context.Context, parentPageID, categoryName string) (*notion.Database, error)
	SavePage(ctx context.Context, databaseID string, rec *types.ArchiveRecord) (*notion.Page, error)
}

// StateStore is the local persistent state consumed by the coordinator.
type StateStore interface {
	IsProcessing() (bool, error)
	SetProcessing(bool) error
	Binding(categoryID int) (*types.DatabaseBinding, error)
	SetBinding(types.DatabaseBinding) error
	IncrementDailyProgress() (int, error)
	PromoTexts() ([]string, error)
}

// Operator-facing errors.
var (
	ErrNotLoggedIn     = errors.New("not logged in to YouTube; log in and try again")
	ErrNoPendingVideos = errors.New("no pending videos in this category")
)

// Skip reasons. These drive the skip branch and the status text persisted
// for it; they never reach the operator as errors.
var (
	errNoTranscript  = errors.New("no transcript available")
	errExtractFailed = errors.New("transcript extraction failed")
)

// Config tunes the coordinator.
type Config struct {
	Promo PromoConfig
	// NotionParentPageID is the page new category databases are created
	// under. Archiving is disabled when empty or when Archiver is nil.
	NotionParentPageID string
	// AutoAdvanceDelay is the pause before chaining to the next video
	// after a skip.
	AutoAdvanceDelay time.Duration
}

// Coordinator runs the process-next-video pipeline: one session at a time,
// each ending in exactly one terminal status.
type Coordinator struct {
	page     Page
	backend  Backend
	ai       Summarizer
	archiver Archiver
	store    StateStore
	cfg      Config
	rng      *rand.Rand
	notify   Notifier

	// acquireMu serializes flag acquisition. The store flag alone is a
	// read-then-write and HTTP handlers run concurrently, so two requests
	// could otherwise both claim the single shared tab.
	acquireMu sync.Mutex
}

// New wires a coordinator. archiver may be nil to disable Notion archiving;
// notify may be nil.
func New(page Page, backend Backend, ai Summarizer, archiver Archiver, store StateStore, cfg Config, notify Notifier) *Coordinator {
	if cfg.AutoAdvanceDelay <= 0 {
		cfg.AutoAdvanceDelay = 2 * time.Second
	}
	return &Coordinator{
		page:     page,
		backend:  backend,
		ai:       ai,
		archiver: archiver,
		store:    store,
		cfg:      cfg,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
		notify:   notify,
	}
}

// Result is what a finished session reports back to the operator.
type Result struct {
	Task        types.VideoTask `json:"video"`
	Comment     string          `json:"comment,omitempty"`
	CommentType string          `json:"comment_type,omitempty"`
	Outcome     string          `json:"outcome"`
	Filled      bool            `json:"comment_filled"`
	Skipped     int             `json:"skipped_videos,omitempty"`
}

// ProcessNext runs one session. With auto set, videos skipped for missing
// transcripts chain straight into the next dequeue instead of surfacing.
func (c *Coordinator) ProcessNext(ctx context.Context, categoryID int, auto bool) (*Result, error) {
	skipped := 0
	for {
		res, err := c.processOne(ctx, categoryID)
		if err != nil {
			return nil, err
		}
		if res.Outcome == types.OutcomeSkipped && auto {
			skipped++
			log.Printf("[workflow] Video %s had no transcript, advancing to next (%d skipped so far)", res.Task.VideoID, skipped)
			select {
			case <-time.After(c.cfg.AutoAdvanceDelay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			continue
		}
		res.Skipped = skipped
		return res, nil
	}
}

// processOne runs a single session end to end. The processing flag is
// acquired before dequeue and released on every exit path, including panics
// in the page layer, via the deferred guard.
func (c *Coordinator) processOne(ctx context.Context, categoryID int) (result *Result, err error) {
	guard, err := c.acquire()
	if err != nil {
		return nil, err
	}
	defer guard.Release()

	task, err := c.backend.GetNextVideo(ctx, categoryID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch next video: %w", err)
	}
	if task == nil {
		return nil, ErrNoPendingVideos
	}

	s := newSession(*task)
	log.Printf("=== Processing video %s: %s ===", task.VideoID, task.Title)
	c.emit(s, "dequeued")

	stages := []struct {
		stage Stage
		fn    func(context.Context, *Session) stepResult
	}{
		{StageTabNavigated, c.stepNavigate},
		{StagePageReady, c.stepAwaitReady},
		{StageLoginChecked, c.stepLoginGate},
		{StageTranscriptChecked, c.stepCheckTranscript},
		{StageTranscriptExtracted, c.stepExtractTranscript},
		{StageMetadataFetched, c.stepFetchMetadata},
		{StageCommentTypeSelected, c.stepSelectCommentType},
		{StageAIGenerated, c.stepGenerate},
		{StagePromoApplied, c.stepApplyPromo},
		{StageCommentInjected, c.stepInjectComment},
		{StageNotionSaved, c.stepArchive},
		{StageStatusPersisted, c.stepPersistStatus},
		{StageProgressIncremented, c.stepIncrementProgress},
	}

	for _, st := range stages {
		r := st.fn(ctx, s)
		switch r.tag {
		case stepOK:
			s.Stage = st.stage
			c.emit(s, "")
		case stepSoft:
			s.Stage = st.stage
			log.Printf("[workflow] %s: non-fatal failure: %v", st.stage, r.err)
			c.emit(s, r.err.Error())
		case stepSkip:
			log.Printf("[workflow] Skipping video %s: %v", s.Task.VideoID, r.err)
			c.persistSkip(ctx, s, r.err)
			s.Outcome = types.OutcomeSkipped
			s.Stage = StageIdle
			c.emit(s, "skipped: no transcript")
			return &Result{Task: s.Task, Outcome: s.Outcome}, nil
		case stepFatal:
			s.Outcome = types.OutcomeFailed
			s.Stage = StageIdle
			c.emit(s, r.err.Error())
			return nil, r.err
		}
	}

	s.Outcome = types.OutcomeCompleted
	s.Stage = StageIdle
	c.emit(s, "completed")
	log.Printf("=== Video %s processed successfully ===", s.Task.VideoID)

	return &Result{
		Task:        s.Task,
		Comment:     s.FinalComment,
		CommentType: s.CommentType,
		Outcome:     s.Outcome,
		Filled:      s.CommentFilled,
	}, nil
}

// acquire claims the processing flag under the acquisition mutex so exactly
// one caller wins even when requests arrive concurrently.
func (c *Coordinator) acquire() (*processingGuard, error) {
	c.acquireMu.Lock()
	defer c.acquireMu.Unlock()
	return acquireGuard(c.store)
}

func (c *Coordinator) emit(s *Session, msg string) {
	if c.notify == nil {
		return
	}
	c.notify(Event{
		SessionID: s.ID,
		VideoID:   s.Task.VideoID,
		Stage:     s.Stage,
		Message:   msg,
		Time:      time.Now(),
	})
}

func (c *Coordinator) stepNavigate(ctx context.Context, s *Session) stepResult {
	if err := c.page.Navigate(ctx, s.Task.URL); err != nil {
		return fatal(fmt.Errorf("failed to open video page: %w", err))
	}
	return ok()
}

func (c *Coordinator) stepAwaitReady(ctx context.Context, s *Session) stepResult {
	if err := c.page.AwaitReady(ctx); err != nil {
		return fatal(fmt.Errorf("video page never became ready: %w", err))
	}
	return ok()
}

// stepLoginGate aborts the whole session when the tab is signed out. No
// retry: this needs a human.
func (c *Coordinator) stepLoginGate(ctx context.Context, s *Session) stepResult {
	loggedIn, err := c.page.CheckLoginStatus(ctx)
	if err != nil {
		return fatal(fmt.Errorf("failed to check login status: %w", err))
	}
	if !loggedIn {
		return fatal(ErrNotLoggedIn)
	}
	return ok()
}

// stepCheckTranscript branches to the skip exit when no transcript
// affordance exists. Probe errors count as "no transcript": the safe
// direction is to skip, not to post blind.
func (c *Coordinator) stepCheckTranscript(ctx context.Context, s *Session) stepResult {
	has, err := c.page.HasTranscript(ctx)
	if err != nil {
		log.Printf("[workflow] Transcript check failed, treating as no transcript: %v", err)
		return skip(errNoTranscript)
	}
	if !has {
		return skip(errNoTranscript)
	}
	return ok()
}

func (c *Coordinator) stepExtractTranscript(ctx context.Context, s *Session) stepResult {
	tr, err := c.page.ExtractTranscript(ctx)
	if err != nil || tr == nil || tr.Text == "" {
		if err != nil {
			log.Printf("[workflow] Transcript extraction failed: %v", err)
		}
		return skip(errExtractFailed)
	}
	s.Transcript = tr
	return ok()
}

// stepFetchMetadata is best-effort: a failed extraction falls back to the
// queue's own title/channel.
func (c *Coordinator) stepFetchMetadata(ctx context.Context, s *Session) stepResult {
	md, err := c.page.ExtractMetadata(ctx, s.Task.URL)
	if err != nil || md == nil {
		md = &types.VideoMetadata{
			URL:     s.Task.URL,
			Title:   s.Task.Title,
			Channel: s.Task.ChannelName,
		}
	}
	if md.Title == "" {
		md.Title = s.Task.Title
	}
	if md.Channel == "" || md.Channel == "Unknown Channel" {
		if s.Task.ChannelName != "" {
			md.Channel = s.Task.ChannelName
		}
	}
	// Duration fallback: the last transcript timestamp is close enough.
	if md.Duration == "" && s.Transcript != nil {
		md.Duration = s.Transcript.LastTimestamp
	}
	s.Metadata = md
	return ok()
}

// stepSelectCommentType forces the chapters type when the description
// already carries chapter markers, and otherwise picks uniformly between
// summary and takeaways.
func (c *Coordinator) stepSelectCommentType(ctx context.Context, s *Session) stepResult {
	hasChapters, err := c.page.HasChaptersInDescription(ctx)
	if err != nil {
		log.Printf("[workflow] Chapter check failed, falling back to random type: %v", err)
		hasChapters = false
	}
	if hasChapters {
		s.CommentType = types.CommentChapters
	} else if c.rng.Intn(2) == 0 {
		s.CommentType = types.CommentSummary
	} else {
		s.CommentType = types.CommentTakeaways
	}
	log.Printf("[workflow] Comment type: %s (chapters in description: %v)", s.CommentType, hasChapters)
	return ok()
}

func (c *Coordinator) stepGenerate(ctx context.Context, s *Session) stepResult {
	res, err := c.ai.Process(ctx, s.Transcript.Text, s.Metadata, s.CommentType)
	if err != nil {
		return fatal(fmt.Errorf("AI processing failed: %w", err))
	}
	s.Summary = res.Summary
	s.Generated = res.Comment
	if res.CommentType != "" {
		s.CommentType = res.CommentType
	}
	return ok()
}

func (c *Coordinator) stepApplyPromo(ctx context.Context, s *Session) stepResult {
	pool, err := c.store.PromoTexts()
	if err != nil {
		log.Printf("[workflow] Failed to load promo texts, using defaults: %v", err)
	}
	if len(pool) == 0 {
		pool = DefaultPromoTexts
	}
	s.PromoText, s.PromoPosition = pickPromo(c.cfg.Promo, pool, c.rng)
	s.FinalComment = SplicePromo(s.Generated, s.PromoText, s.PromoPosition)
	return ok()
}

// stepInjectComment is best-effort. When injection fails the operator still
// gets the generated text in the result for manual pasting.
func (c *Coordinator) stepInjectComment(ctx context.Context, s *Session) stepResult {
	if err := c.page.FillComment(ctx, s.FinalComment); err != nil {
		s.CommentFilled = false
		return softFail(fmt.Errorf("comment injection failed: %w", err))
	}
	s.CommentFilled = true
	return ok()
}

// stepArchive saves the record to Notion. Strictly non-blocking: any
// failure, including inside the lazy database create, is logged and the
// session proceeds without a page reference.
func (c *Coordinator) stepArchive(ctx context.Context, s *Session) stepResult {
	if c.archiver == nil || c.cfg.NotionParentPageID == "" {
		log.Printf("[workflow] Notion not configured, skipping archive")
		return ok()
	}

	databaseID, err := c.getOrCreateDatabase(ctx, s.Task.CategoryID, s.Task.CategoryName)
	if err != nil {
		return softFail(fmt.Errorf("notion database setup failed: %w", err))
	}

	page, err := c.archiver.SavePage(ctx, databaseID, &types.ArchiveRecord{
		Metadata:   *s.Metadata,
		Category:   s.Task.CategoryName,
		Summary:    s.Summary,
		Comment:    s.FinalComment,
		Transcript: s.Transcript.Text,
	})
	if err != nil {
		return softFail(fmt.Errorf("notion save failed: %w", err))
	}
	s.NotionPageID = page.ID
	return ok()
}

// stepPersistStatus writes the completed outcome to the system of record.
// This is the one mandatory side effect: failure here fails the session.
func (c *Coordinator) stepPersistStatus(ctx context.Context, s *Session) stepResult {
	update := types.StatusUpdate{
		VideoID:         s.Task.VideoID,
		CategoryID:      s.Task.CategoryID,
		SummaryText:     s.Summary,
		CommentText:     s.FinalComment,
		CommentType:     s.CommentType,
		PromoText:       s.PromoText,
		PromoPosition:   s.PromoPosition,
		NotionPageID:    s.NotionPageID,
		SummaryStatus:   types.StatusCompleted,
		CommentedStatus: types.StatusCompleted,
	}
	if err := c.backend.UpdateVideoStatus(ctx, update); err != nil {
		return fatal(fmt.Errorf("failed to persist video status: %w", err))
	}
	return ok()
}

// stepIncrementProgress runs once per completed video, after status
// persistence. Losing a counter increment is acceptable; it never fails the
// session.
func (c *Coordinator) stepIncrementProgress(ctx context.Context, s *Session) stepResult {
	if err := c.backend.IncrementProgress(ctx, s.Task.CategoryID, s.Task.CategoryName); err != nil {
		log.Printf("[workflow] Failed to increment backend progress: %v", err)
	}
	if _, err := c.store.IncrementDailyProgress(); err != nil {
		log.Printf("[workflow] Failed to increment local progress: %v", err)
	}
	return ok()
}

// persistSkip marks a video as completed-but-skipped so it is never
// re-dequeued. Best-effort by design: a failed mark is logged, and the skip
// still ends the session cleanly.
func (c *Coordinator) persistSkip(ctx context.Context, s *Session, reason error) {
	text := "No Transcript Available"
	if errors.Is(reason, errExtractFailed) {
		text = "Transcript Extraction Failed"
	}
	update := types.StatusUpdate{
		VideoID:         s.Task.VideoID,
		CategoryID:      s.Task.CategoryID,
		SummaryText:     text,
		CommentText:     text,
		CommentType:     types.CommentSkipped,
		SummaryStatus:   types.StatusCompleted,
		CommentedStatus: types.StatusCompleted,
	}
	if err := c.backend.UpdateVideoStatus(ctx, update); err != nil {
		log.Printf("[workflow] Failed to mark video %s as skipped: %v", s.Task.VideoID, err)
	}
}

// getOrCreateDatabase returns the category's bound database, creating and
// binding one on first use. The binding is mirrored to the backend so other
// hosts reuse it; mirror failure is logged, not propagated.
func (c *Coordinator) getOrCreateDatabase(ctx context.Context, categoryID int, categoryName string) (string, error) {
	binding, err := c.store.Binding(categoryID)
	if err != nil {
		return "", err
	}
	if binding != nil && binding.DatabaseID != "" {
		log.Printf("[notion] Using existing database %q for category %d", binding.DatabaseName, categoryID)
		return binding.DatabaseID, nil
	}

	if categoryName == "" {
		categoryName = "Unknown Category"
	}
	db, err := c.archiver.CreateDatabase(ctx, c.cfg.NotionParentPageID, categoryName)
	if err != nil {
		return "", err
	}

	if err := c.store.SetBinding(types.DatabaseBinding{
		CategoryID:   categoryID,
		DatabaseID:   db.ID,
		DatabaseName: db.Title,
	}); err != nil {
		return "", fmt.Errorf("failed to store database binding: %w", err)
	}

	if err := c.backend.SyncNotionDatabase(ctx, categoryID, db.ID, db.Title); err != nil {
		log.Printf("[notion] Failed to mirror binding to backend (non-blocking): %v", err)
	}
	return db.ID, nil
}
