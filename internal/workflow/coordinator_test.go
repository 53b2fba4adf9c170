package workflow

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mezmer90/youtube-commenting-automation/internal/notion"
	"github.com/mezmer90/youtube-commenting-automation/internal/types"
)

// fakePage scripts every tab interaction.
type fakePage struct {
	navErr        error
	readyErr      error
	loggedIn      bool
	loginErr      error
	hasTranscript bool
	transcriptSeq []bool
	checkErr      error
	hasChapters   bool
	transcript    *types.Transcript
	extractErr    error
	metadata      *types.VideoMetadata
	metadataErr   error
	fillErr       error

	filledText   string
	loginCalls   int
	extractCalls int
}

func (p *fakePage) Navigate(ctx context.Context, url string) error { return p.navErr }
func (p *fakePage) AwaitReady(ctx context.Context) error           { return p.readyErr }
func (p *fakePage) CheckLoginStatus(ctx context.Context) (bool, error) {
	p.loginCalls++
	return p.loggedIn, p.loginErr
}
func (p *fakePage) HasTranscript(ctx context.Context) (bool, error) {
	if len(p.transcriptSeq) > 0 {
		next := p.transcriptSeq[0]
		p.transcriptSeq = p.transcriptSeq[1:]
		return next, p.checkErr
	}
	return p.hasTranscript, p.checkErr
}
func (p *fakePage) HasChaptersInDescription(ctx context.Context) (bool, error) {
	return p.hasChapters, nil
}
func (p *fakePage) ExtractTranscript(ctx context.Context) (*types.Transcript, error) {
	p.extractCalls++
	return p.transcript, p.extractErr
}
func (p *fakePage) ExtractMetadata(ctx context.Context, videoURL string) (*types.VideoMetadata, error) {
	return p.metadata, p.metadataErr
}
func (p *fakePage) FillComment(ctx context.Context, text string) error {
	if p.fillErr != nil {
		return p.fillErr
	}
	p.filledText = text
	return nil
}

type fakeBackend struct {
	queue      []*types.VideoTask
	nextErr    error
	updateErr  error
	updates    []types.StatusUpdate
	increments int
	incErr     error
	synced     int
}

func (b *fakeBackend) GetNextVideo(ctx context.Context, categoryID int) (*types.VideoTask, error) {
	if b.nextErr != nil {
		return nil, b.nextErr
	}
	if len(b.queue) == 0 {
		return nil, nil
	}
	task := b.queue[0]
	b.queue = b.queue[1:]
	return task, nil
}

func (b *fakeBackend) UpdateVideoStatus(ctx context.Context, update types.StatusUpdate) error {
	if b.updateErr != nil {
		return b.updateErr
	}
	b.updates = append(b.updates, update)
	return nil
}

func (b *fakeBackend) IncrementProgress(ctx context.Context, categoryID int, categoryName string) error {
	if b.incErr != nil {
		return b.incErr
	}
	b.increments++
	return nil
}

func (b *fakeBackend) SyncNotionDatabase(ctx context.Context, categoryID int, databaseID, databaseName string) error {
	b.synced++
	return nil
}

type fakeAI struct {
	result   *types.AIResult
	err      error
	calls    int
	lastType string
}

func (a *fakeAI) Process(ctx context.Context, transcript string, metadata *types.VideoMetadata, commentType string) (*types.AIResult, error) {
	a.calls++
	a.lastType = commentType
	return a.result, a.err
}

type fakeArchiver struct {
	createErr error
	saveErr   error
	created   int
	saved     int
}

func (a *fakeArchiver) CreateDatabase(ctx context.Context, parentPageID, categoryName string) (*notion.Database, error) {
	if a.createErr != nil {
		return nil, a.createErr
	}
	a.created++
	return &notion.Database{ID: "db-1", Title: categoryName + " - Video Summaries"}, nil
}

func (a *fakeArchiver) SavePage(ctx context.Context, databaseID string, rec *types.ArchiveRecord) (*notion.Page, error) {
	if a.saveErr != nil {
		return nil, a.saveErr
	}
	a.saved++
	return &notion.Page{ID: "page-1"}, nil
}

type fakeStore struct {
	processing      bool
	bindings        map[int]*types.DatabaseBinding
	promoTexts      []string
	dailyIncrements int
	setProcErr      error
}

func newFakeStore() *fakeStore {
	return &fakeStore{bindings: make(map[int]*types.DatabaseBinding)}
}

func (s *fakeStore) IsProcessing() (bool, error) { return s.processing, nil }
func (s *fakeStore) SetProcessing(v bool) error {
	if s.setProcErr != nil {
		return s.setProcErr
	}
	s.processing = v
	return nil
}
func (s *fakeStore) Binding(categoryID int) (*types.DatabaseBinding, error) {
	return s.bindings[categoryID], nil
}
func (s *fakeStore) SetBinding(b types.DatabaseBinding) error {
	s.bindings[b.CategoryID] = &b
	return nil
}
func (s *fakeStore) IncrementDailyProgress() (int, error) {
	s.dailyIncrements++
	return s.dailyIncrements, nil
}
func (s *fakeStore) PromoTexts() ([]string, error) { return s.promoTexts, nil }

func testTask() *types.VideoTask {
	return &types.VideoTask{
		VideoID:      "vid-1",
		URL:          "https://www.youtube.com/watch?v=vid-1",
		Title:        "Test Video",
		ChannelName:  "Test Channel",
		CategoryID:   3,
		CategoryName: "Tech",
	}
}

func happyPage() *fakePage {
	return &fakePage{
		loggedIn:      true,
		hasTranscript: true,
		transcript:    &types.Transcript{Text: "[0:00] hello\n[0:05] world\n", SegmentCount: 2, LastTimestamp: "0:05"},
		metadata:      &types.VideoMetadata{Title: "Test Video", Channel: "Test Channel", URL: "https://www.youtube.com/watch?v=vid-1"},
	}
}

func newTestCoordinator(page Page, backend Backend, ai Summarizer, archiver Archiver, store StateStore) *Coordinator {
	return New(page, backend, ai, archiver, store, Config{
		Promo:              PromoConfig{Enabled: true},
		NotionParentPageID: "parent-page",
		AutoAdvanceDelay:   time.Millisecond,
	}, nil)
}

func TestProcessNextCompletedPath(t *testing.T) {
	page := happyPage()
	be := &fakeBackend{queue: []*types.VideoTask{testTask()}}
	aic := &fakeAI{result: &types.AIResult{Summary: "a summary", Comment: "a comment", CommentType: types.CommentSummary}}
	arch := &fakeArchiver{}
	st := newFakeStore()

	c := newTestCoordinator(page, be, aic, arch, st)
	result, err := c.ProcessNext(context.Background(), 3, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Outcome != types.OutcomeCompleted {
		t.Errorf("outcome = %q, want completed", result.Outcome)
	}
	if !result.Filled {
		t.Error("expected the comment to be filled")
	}
	if len(be.updates) != 1 {
		t.Fatalf("expected exactly 1 status update, got %d", len(be.updates))
	}
	u := be.updates[0]
	if u.SummaryStatus != types.StatusCompleted || u.CommentedStatus != types.StatusCompleted {
		t.Errorf("status update not marked completed: %+v", u)
	}
	if u.NotionPageID != "page-1" {
		t.Errorf("expected notion page id in status update, got %q", u.NotionPageID)
	}
	if be.increments != 1 {
		t.Errorf("expected exactly 1 backend increment, got %d", be.increments)
	}
	if st.dailyIncrements != 1 {
		t.Errorf("expected exactly 1 local increment, got %d", st.dailyIncrements)
	}
	if st.processing {
		t.Error("processing flag must be cleared after completion")
	}
	if page.filledText == "" {
		t.Error("comment was never injected")
	}
}

func TestProcessNextNoTranscriptSkips(t *testing.T) {
	page := happyPage()
	page.hasTranscript = false
	be := &fakeBackend{queue: []*types.VideoTask{testTask()}}
	aic := &fakeAI{result: &types.AIResult{Comment: "x"}}
	st := newFakeStore()

	c := newTestCoordinator(page, be, aic, &fakeArchiver{}, st)
	result, err := c.ProcessNext(context.Background(), 3, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Outcome != types.OutcomeSkipped {
		t.Errorf("outcome = %q, want skipped", result.Outcome)
	}
	if aic.calls != 0 {
		t.Error("AI must not be called for a skipped video")
	}
	if page.extractCalls != 0 {
		t.Error("extraction must not run when the affordance check fails")
	}
	if len(be.updates) != 1 {
		t.Fatalf("expected exactly 1 status update, got %d", len(be.updates))
	}
	u := be.updates[0]
	if u.SummaryText != "No Transcript Available" || u.CommentType != types.CommentSkipped {
		t.Errorf("unexpected skip update: %+v", u)
	}
	if u.SummaryStatus != types.StatusCompleted || u.CommentedStatus != types.StatusCompleted {
		t.Errorf("skipped video must be marked completed so it is not re-dequeued: %+v", u)
	}
	if be.increments != 0 || st.dailyIncrements != 0 {
		t.Error("skipped videos must not count toward progress")
	}
	if st.processing {
		t.Error("processing flag must be cleared after a skip")
	}
}

func TestProcessNextExtractionFailureSkips(t *testing.T) {
	page := happyPage()
	page.transcript = nil
	page.extractErr = errors.New("panel never opened")
	be := &fakeBackend{queue: []*types.VideoTask{testTask()}}
	st := newFakeStore()

	c := newTestCoordinator(page, be, &fakeAI{}, &fakeArchiver{}, st)
	result, err := c.ProcessNext(context.Background(), 3, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Outcome != types.OutcomeSkipped {
		t.Errorf("outcome = %q, want skipped", result.Outcome)
	}
	if len(be.updates) != 1 || be.updates[0].SummaryText != "Transcript Extraction Failed" {
		t.Errorf("unexpected updates: %+v", be.updates)
	}
}

func TestProcessNextNotLoggedIn(t *testing.T) {
	page := happyPage()
	page.loggedIn = false
	be := &fakeBackend{queue: []*types.VideoTask{testTask()}}
	aic := &fakeAI{}
	st := newFakeStore()

	c := newTestCoordinator(page, be, aic, &fakeArchiver{}, st)
	_, err := c.ProcessNext(context.Background(), 3, false)
	if !errors.Is(err, ErrNotLoggedIn) {
		t.Fatalf("expected ErrNotLoggedIn, got %v", err)
	}
	if aic.calls != 0 {
		t.Error("AI must not run when signed out")
	}
	if len(be.updates) != 0 {
		t.Error("no status update should be written on a login failure")
	}
	if st.processing {
		t.Error("processing flag must be cleared after a fatal abort")
	}
}

func TestProcessNextStatusPersistFailureIsFatal(t *testing.T) {
	page := happyPage()
	be := &fakeBackend{queue: []*types.VideoTask{testTask()}, updateErr: errors.New("backend down")}
	st := newFakeStore()

	c := newTestCoordinator(page, be, &fakeAI{result: &types.AIResult{Comment: "c", Summary: "s"}}, &fakeArchiver{}, st)
	_, err := c.ProcessNext(context.Background(), 3, false)
	if err == nil {
		t.Fatal("expected error when status persistence fails")
	}
	if be.increments != 0 {
		t.Error("progress must not increment when the status was never persisted")
	}
	if st.processing {
		t.Error("processing flag must be cleared")
	}
}

func TestProcessNextNotionFailureIsNonFatal(t *testing.T) {
	page := happyPage()
	be := &fakeBackend{queue: []*types.VideoTask{testTask()}}
	arch := &fakeArchiver{saveErr: errors.New("notion down")}
	st := newFakeStore()

	c := newTestCoordinator(page, be, &fakeAI{result: &types.AIResult{Comment: "c", Summary: "s"}}, arch, st)
	result, err := c.ProcessNext(context.Background(), 3, false)
	if err != nil {
		t.Fatalf("notion failure must not fail the session: %v", err)
	}
	if result.Outcome != types.OutcomeCompleted {
		t.Errorf("outcome = %q, want completed", result.Outcome)
	}
	if len(be.updates) != 1 || be.updates[0].NotionPageID != "" {
		t.Errorf("status update should carry no page id, got %+v", be.updates)
	}
	if be.increments != 1 {
		t.Errorf("expected 1 increment despite the notion failure, got %d", be.increments)
	}
}

func TestProcessNextInjectionFailureIsNonFatal(t *testing.T) {
	page := happyPage()
	page.fillErr = errors.New("composer not found")
	be := &fakeBackend{queue: []*types.VideoTask{testTask()}}
	st := newFakeStore()

	c := newTestCoordinator(page, be, &fakeAI{result: &types.AIResult{Comment: "c", Summary: "s"}}, &fakeArchiver{}, st)
	result, err := c.ProcessNext(context.Background(), 3, false)
	if err != nil {
		t.Fatalf("injection failure must not fail the session: %v", err)
	}
	if result.Filled {
		t.Error("result must report the comment as not filled")
	}
	if result.Comment == "" {
		t.Error("result must still carry the generated comment for manual pasting")
	}
	if len(be.updates) != 1 {
		t.Errorf("status must still be persisted, got %d updates", len(be.updates))
	}
}

func TestProcessNextChaptersForceCommentType(t *testing.T) {
	page := happyPage()
	page.hasChapters = true
	be := &fakeBackend{queue: []*types.VideoTask{testTask()}}
	aic := &fakeAI{result: &types.AIResult{Comment: "c", Summary: "s"}}

	c := newTestCoordinator(page, be, aic, &fakeArchiver{}, newFakeStore())
	if _, err := c.ProcessNext(context.Background(), 3, false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if aic.lastType != types.CommentChapters {
		t.Errorf("comment type = %q, want chapters", aic.lastType)
	}
}

func TestProcessNextAlreadyProcessing(t *testing.T) {
	st := newFakeStore()
	st.processing = true
	be := &fakeBackend{queue: []*types.VideoTask{testTask()}}

	c := newTestCoordinator(happyPage(), be, &fakeAI{}, &fakeArchiver{}, st)
	_, err := c.ProcessNext(context.Background(), 3, false)
	if !errors.Is(err, ErrAlreadyProcessing) {
		t.Fatalf("expected ErrAlreadyProcessing, got %v", err)
	}
	if len(be.queue) != 1 {
		t.Error("nothing should be dequeued while another session runs")
	}
}

func TestProcessNextNoPendingVideos(t *testing.T) {
	st := newFakeStore()
	c := newTestCoordinator(happyPage(), &fakeBackend{}, &fakeAI{}, &fakeArchiver{}, st)
	_, err := c.ProcessNext(context.Background(), 3, false)
	if !errors.Is(err, ErrNoPendingVideos) {
		t.Fatalf("expected ErrNoPendingVideos, got %v", err)
	}
	if st.processing {
		t.Error("processing flag must be cleared when the queue is empty")
	}
}

func TestProcessNextAutoAdvancesPastSkips(t *testing.T) {
	// First video has no transcript, second succeeds.
	page := happyPage()
	page.transcriptSeq = []bool{false, true}
	first := testTask()
	second := testTask()
	second.VideoID = "vid-2"
	be := &fakeBackend{queue: []*types.VideoTask{first, second}}
	st := newFakeStore()

	c := newTestCoordinator(page, be, &fakeAI{result: &types.AIResult{Comment: "c", Summary: "s"}}, &fakeArchiver{}, st)
	result, err := c.ProcessNext(context.Background(), 3, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Outcome != types.OutcomeCompleted {
		t.Errorf("outcome = %q, want completed", result.Outcome)
	}
	if result.Task.VideoID != "vid-2" {
		t.Errorf("completed video = %q, want vid-2", result.Task.VideoID)
	}
	if result.Skipped != 1 {
		t.Errorf("skipped = %d, want 1", result.Skipped)
	}
	if len(be.updates) != 2 {
		t.Errorf("expected 2 status updates (skip + completed), got %d", len(be.updates))
	}
}

// slowFlagStore widens the window between the flag read and write so
// unserialized acquisition would let several callers through.
type slowFlagStore struct {
	*fakeStore
}

func (s *slowFlagStore) IsProcessing() (bool, error) {
	busy, err := s.fakeStore.IsProcessing()
	time.Sleep(5 * time.Millisecond)
	return busy, err
}

func TestAcquireAllowsExactlyOneConcurrentCaller(t *testing.T) {
	st := &slowFlagStore{fakeStore: newFakeStore()}
	c := newTestCoordinator(happyPage(), &fakeBackend{}, &fakeAI{}, &fakeArchiver{}, st)

	const callers = 8
	results := make(chan error, callers)
	for i := 0; i < callers; i++ {
		go func() {
			guard, err := c.acquire()
			if err == nil && guard == nil {
				err = errors.New("nil guard without error")
			}
			results <- err
		}()
	}

	acquired := 0
	for i := 0; i < callers; i++ {
		err := <-results
		if err == nil {
			acquired++
		} else if !errors.Is(err, ErrAlreadyProcessing) {
			t.Errorf("unexpected error: %v", err)
		}
	}
	if acquired != 1 {
		t.Errorf("processing guard acquired by %d concurrent callers, want exactly 1", acquired)
	}
}

func TestProcessNextFatalStageFailuresClearLock(t *testing.T) {
	tests := []struct {
		name  string
		page  func() *fakePage
		aiErr error
	}{
		{"navigate fails", func() *fakePage {
			p := happyPage()
			p.navErr = errors.New("tab crashed")
			return p
		}, nil},
		{"page never ready", func() *fakePage {
			p := happyPage()
			p.readyErr = errors.New("app root never appeared")
			return p
		}, nil},
		{"login check fails", func() *fakePage {
			p := happyPage()
			p.loginErr = errors.New("probe exploded")
			return p
		}, nil},
		{"ai generation fails", happyPage, errors.New("model overloaded")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			be := &fakeBackend{queue: []*types.VideoTask{testTask()}}
			aic := &fakeAI{result: &types.AIResult{Comment: "c", Summary: "s"}, err: tt.aiErr}
			st := newFakeStore()

			c := newTestCoordinator(tt.page(), be, aic, &fakeArchiver{}, st)
			if _, err := c.ProcessNext(context.Background(), 3, false); err == nil {
				t.Fatal("expected a fatal error")
			}
			if st.processing {
				t.Error("processing flag must be cleared after a fatal failure")
			}
			// The video was never processed: no status write, so it stays
			// pending and gets re-dequeued on the next run.
			if len(be.updates) != 0 {
				t.Errorf("expected 0 status updates, got %d", len(be.updates))
			}
			if be.increments != 0 || st.dailyIncrements != 0 {
				t.Error("progress must not increment on a fatal failure")
			}
		})
	}
}

func TestProcessNextIncrementFailureIsNonFatal(t *testing.T) {
	page := happyPage()
	be := &fakeBackend{queue: []*types.VideoTask{testTask()}, incErr: errors.New("counter service down")}
	st := newFakeStore()

	c := newTestCoordinator(page, be, &fakeAI{result: &types.AIResult{Comment: "c", Summary: "s"}}, &fakeArchiver{}, st)
	result, err := c.ProcessNext(context.Background(), 3, false)
	if err != nil {
		t.Fatalf("increment failure must not fail the session: %v", err)
	}
	if result.Outcome != types.OutcomeCompleted {
		t.Errorf("outcome = %q, want completed", result.Outcome)
	}
	if len(be.updates) != 1 {
		t.Errorf("status must still be persisted exactly once, got %d updates", len(be.updates))
	}
	if st.processing {
		t.Error("processing flag must be cleared")
	}
}

func TestProcessNextFlagWriteFailure(t *testing.T) {
	st := newFakeStore()
	st.setProcErr = errors.New("disk full")
	be := &fakeBackend{queue: []*types.VideoTask{testTask()}}

	c := newTestCoordinator(happyPage(), be, &fakeAI{}, &fakeArchiver{}, st)
	if _, err := c.ProcessNext(context.Background(), 3, false); err == nil {
		t.Fatal("expected error when the flag cannot be set")
	}
	if len(be.queue) != 1 {
		t.Error("nothing should be dequeued when acquisition fails")
	}
}

func TestGetOrCreateDatabaseReusesBinding(t *testing.T) {
	st := newFakeStore()
	st.bindings[3] = &types.DatabaseBinding{CategoryID: 3, DatabaseID: "existing-db", DatabaseName: "Tech"}
	arch := &fakeArchiver{}
	be := &fakeBackend{}

	c := newTestCoordinator(happyPage(), be, &fakeAI{}, arch, st)
	id, err := c.getOrCreateDatabase(context.Background(), 3, "Tech")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != "existing-db" {
		t.Errorf("got %q, want existing-db", id)
	}
	if arch.created != 0 {
		t.Error("no database should be created when a binding exists")
	}
}

func TestGetOrCreateDatabaseCreatesAndBinds(t *testing.T) {
	st := newFakeStore()
	arch := &fakeArchiver{}
	be := &fakeBackend{}

	c := newTestCoordinator(happyPage(), be, &fakeAI{}, arch, st)
	id, err := c.getOrCreateDatabase(context.Background(), 3, "Tech")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != "db-1" {
		t.Errorf("got %q, want db-1", id)
	}
	if arch.created != 1 {
		t.Errorf("expected 1 database creation, got %d", arch.created)
	}
	if b := st.bindings[3]; b == nil || b.DatabaseID != "db-1" {
		t.Errorf("binding not stored: %+v", b)
	}
	if be.synced != 1 {
		t.Errorf("binding should be mirrored to the backend, synced = %d", be.synced)
	}
}
