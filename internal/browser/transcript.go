package browser

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/mezmer90/youtube-commenting-automation/internal/types"
)

// ErrNoSegments means the transcript panel opened but no caption rows
// materialized. The workflow treats it like a missing transcript.
var ErrNoSegments = errors.New("no transcript segments found")

const (
	extractBudget       = 30 * time.Second
	segmentsSettleDelay = 2 * time.Second
)

const panelOpenJS = `(function() {
	var panel = document.querySelector('ytd-engagement-panel-section-list-renderer[target-id="engagement-panel-searchable-transcript"]');
	return panel !== null && panel.getAttribute('visibility') === 'ENGAGEMENT_PANEL_VISIBILITY_EXPANDED';
})()`

const clickTranscriptButtonJS = `(function() {
	var els = document.querySelectorAll('button, yt-button-renderer, tp-yt-paper-button');
	for (var i = 0; i < els.length; i++) {
		if (els[i].textContent.toLowerCase().indexOf('transcript') !== -1) {
			els[i].click();
			return true;
		}
	}
	return false;
})()`

const clickMenuTranscriptJS = `(function() {
	var more = document.querySelector('button[aria-label="More actions"]');
	if (!more) return false;
	more.click();
	return true;
})()`

const clickMenuItemTranscriptJS = `(function() {
	var items = document.querySelectorAll('[role="menuitem"]');
	for (var i = 0; i < items.length; i++) {
		if (items[i].textContent.toLowerCase().indexOf('transcript') !== -1) {
			items[i].click();
			return true;
		}
	}
	return false;
})()`

const collectSegmentsJS = `(function() {
	var out = [];
	var rows = document.querySelectorAll('ytd-transcript-segment-renderer');
	for (var i = 0; i < rows.length; i++) {
		var t = rows[i].querySelector('.segment-timestamp');
		var x = rows[i].querySelector('.segment-text');
		if (t && x) out.push({ time: t.textContent.trim(), text: x.textContent.trim() });
	}
	return out;
})()`

type segment struct {
	Time string `json:"time"`
	Text string `json:"text"`
}

// ExtractTranscript opens the native transcript panel and serializes the
// timestamped caption rows in document order as "[hh:mm:ss] text" lines.
func (c *Client) ExtractTranscript(ctx context.Context) (*types.Transcript, error) {
	ctx, cancel := context.WithTimeout(ctx, extractBudget)
	defer cancel()

	if err := c.openTranscriptPanel(ctx); err != nil {
		return nil, err
	}

	if err := sleep(ctx, segmentsSettleDelay); err != nil {
		return nil, err
	}

	var segs []segment
	if err := c.eval(ctx, "extractTranscript", collectSegmentsJS, &segs); err != nil {
		return nil, fmt.Errorf("failed to collect transcript segments: %w", err)
	}
	if len(segs) == 0 {
		return nil, ErrNoSegments
	}

	var b strings.Builder
	var last string
	for _, s := range segs {
		fmt.Fprintf(&b, "[%s] %s\n", s.Time, s.Text)
		last = s.Time
	}

	log.Printf("[extractor] Transcript extracted: %d segments, %d characters", len(segs), b.Len())
	return &types.Transcript{
		Text:          b.String(),
		SegmentCount:  len(segs),
		LastTimestamp: last,
	}, nil
}

// openTranscriptPanel reuses the inspector's open logic: already-open check,
// transcript button in the expanded description, then the three-dot menu.
func (c *Client) openTranscriptPanel(ctx context.Context) error {
	var open bool
	if err := c.evalOnce(ctx, "openTranscript", panelOpenJS, &open); err == nil && open {
		return nil
	}

	if !c.prepareDescription(ctx, "openTranscript") {
		return ErrNoSegments
	}

	var clicked bool
	if err := c.evalOnce(ctx, "openTranscript", clickTranscriptButtonJS, &clicked); err != nil {
		return fmt.Errorf("failed to click transcript button: %w", err)
	}
	if clicked {
		return sleep(ctx, 1*time.Second)
	}

	// Fallback: some layouts hide the affordance behind the player menu.
	var menuOpened bool
	if err := c.evalOnce(ctx, "openTranscript", clickMenuTranscriptJS, &menuOpened); err != nil || !menuOpened {
		return ErrNoSegments
	}
	if err := sleep(ctx, 500*time.Millisecond); err != nil {
		return err
	}
	if err := c.evalOnce(ctx, "openTranscript", clickMenuItemTranscriptJS, &clicked); err != nil || !clicked {
		return ErrNoSegments
	}
	return sleep(ctx, 1*time.Second)
}
