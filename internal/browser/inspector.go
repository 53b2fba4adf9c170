package browser

import (
	"context"
	"log"
	"time"
)

// Probe budgets. Each probe degrades to its safe negative when the budget is
// exhausted rather than raising to the caller.
const (
	loginCheckBudget   = 10 * time.Second
	transcriptBudget   = 25 * time.Second
	chaptersBudget     = 25 * time.Second
	descSettleDelay    = 2 * time.Second
	loginProbeAttempts = 10
	loginProbeInterval = 500 * time.Millisecond
)

// Login probe outcome. "loading" means the page chrome has not rendered yet
// and the check must be retried; it is distinct from a confirmed sign-out.
const loginProbeJS = `(function() {
	if (!document.querySelector('ytd-masthead')) return 'loading';

	if (document.querySelector('button#avatar-btn')) return 'in';
	if (document.querySelector('ytd-topbar-menu-button-renderer#avatar-btn')) return 'in';
	if (document.querySelector('button[aria-label*="Account"]')) return 'in';

	var imgs = document.querySelectorAll('ytd-masthead img');
	for (var i = 0; i < imgs.length; i++) {
		if (imgs[i].src && imgs[i].src.indexOf('googleusercontent.com') !== -1) return 'in';
	}
	if (document.querySelector('ytd-topbar-menu-button-renderer')) return 'in';

	if (document.querySelector('a[href*="accounts.google.com/ServiceLogin"]')) return 'out';
	var links = document.querySelectorAll('a');
	for (var j = 0; j < links.length; j++) {
		if (links[j].textContent.trim() === 'Sign in') return 'out';
	}

	if (document.querySelector('ytd-guide-renderer')) return 'in';
	return 'loading';
})()`

const watchPageRootJS = `document.querySelector('ytd-watch-flexy') !== null`

// Expanding the description is best-effort; the button only exists while the
// description is collapsed.
const expandDescriptionJS = `(function() {
	var btn = document.querySelector('tp-yt-paper-button#expand');
	if (btn && btn.textContent.indexOf('more') !== -1) { btn.click(); return true; }
	return false;
})()`

const transcriptAffordanceJS = `(function() {
	var els = document.querySelectorAll('button, yt-button-renderer, tp-yt-paper-button, a');
	for (var i = 0; i < els.length; i++) {
		if (els[i].textContent.toLowerCase().indexOf('transcript') !== -1) return true;
	}
	return document.querySelector('ytd-engagement-panel-section-list-renderer[target-id="engagement-panel-searchable-transcript"]') !== null;
})()`

const chapterMarkerJS = `(function() {
	var el = document.querySelector('#expanded, #description');
	if (!el) return false;
	return /\b0?0:00\b/.test(el.textContent || '');
})()`

// CheckLoginStatus reports whether the tab is signed in to YouTube. While
// the page chrome is still loading the probe retries; after the bounded
// attempts run out an indeterminate result is treated as signed out.
func (c *Client) CheckLoginStatus(ctx context.Context) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, loginCheckBudget)
	defer cancel()

	for attempt := 1; attempt <= loginProbeAttempts; attempt++ {
		var state string
		if err := c.evalOnce(ctx, "checkLoginStatus", loginProbeJS, &state); err != nil {
			if ctx.Err() != nil {
				log.Printf("[inspector] Login check timed out, failing safe (not logged in)")
				return false, nil
			}
			return false, err
		}

		switch state {
		case "in":
			log.Printf("[inspector] Login confirmed on attempt %d", attempt)
			return true, nil
		case "out":
			log.Printf("[inspector] Sign-in affordance found, not logged in")
			return false, nil
		}

		if attempt < loginProbeAttempts {
			if err := sleep(ctx, loginProbeInterval); err != nil {
				break
			}
		}
	}

	log.Printf("[inspector] Login status indeterminate after %d attempts, failing safe", loginProbeAttempts)
	return false, nil
}

// HasTranscript reports whether a transcript-opening affordance (or an
// already-open panel) exists on the current watch page.
func (c *Client) HasTranscript(ctx context.Context) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, transcriptBudget)
	defer cancel()

	if !c.prepareDescription(ctx, "hasTranscript") {
		return false, nil
	}

	found, err := pollUntil(ctx, pollAffordance, func(ctx context.Context) (bool, error) {
		var ok bool
		err := c.evalOnce(ctx, "hasTranscript", transcriptAffordanceJS, &ok)
		return ok, err
	})
	if err != nil {
		log.Printf("[inspector] Transcript check failed, assuming no transcript: %v", err)
		return false, nil
	}
	return found, nil
}

// HasChaptersInDescription reports whether the expanded description contains
// a zero-prefixed chapter timestamp (0:00 or 00:00).
func (c *Client) HasChaptersInDescription(ctx context.Context) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, chaptersBudget)
	defer cancel()

	if !c.prepareDescription(ctx, "checkChapters") {
		return false, nil
	}

	found, err := pollUntil(ctx, pollAffordance, func(ctx context.Context) (bool, error) {
		var ok bool
		err := c.evalOnce(ctx, "checkChapters", chapterMarkerJS, &ok)
		return ok, err
	})
	if err != nil {
		log.Printf("[inspector] Chapter check failed, assuming no chapters: %v", err)
		return false, nil
	}
	return found, nil
}

// prepareDescription is the shared probe preamble: wait for the watch page
// root, let the secondary regions settle, then try to expand the description.
// Returns false when the page root never appeared (safe negative).
func (c *Client) prepareDescription(ctx context.Context, op string) bool {
	rootOK, err := pollUntil(ctx, pollPageRoot, func(ctx context.Context) (bool, error) {
		var ok bool
		err := c.evalOnce(ctx, op, watchPageRootJS, &ok)
		return ok, err
	})
	if err != nil || !rootOK {
		log.Printf("[inspector] %s: watch page did not load, assuming negative", op)
		return false
	}

	if err := sleep(ctx, descSettleDelay); err != nil {
		return false
	}

	clicked, _ := pollUntil(ctx, pollExpand, func(ctx context.Context) (bool, error) {
		var ok bool
		err := c.evalOnce(ctx, op, expandDescriptionJS, &ok)
		return ok, err
	})
	if clicked {
		_ = sleep(ctx, 1*time.Second)
	}
	return true
}
