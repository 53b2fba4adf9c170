package browser

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
)

// Transport defaults. Every CDP call is raced against a timeout and retried
// with linearly increasing backoff before a CommError is surfaced.
const (
	DefaultTimeout    = 10 * time.Second
	DefaultMaxRetries = 3
	defaultBaseDelay  = 1 * time.Second

	readyInterval    = 500 * time.Millisecond
	readyMaxAttempts = 30
	readySettleDelay = 1 * time.Second
)

// CommError is returned when a tab request fails after exhausting retries.
// It carries the last underlying cause.
type CommError struct {
	Op       string
	Attempts int
	Cause    error
}

func (e *CommError) Error() string {
	return fmt.Sprintf("tab request %q failed after %d attempts: %v", e.Op, e.Attempts, e.Cause)
}

func (e *CommError) Unwrap() error { return e.Cause }

// Client drives a single Chrome tab over the DevTools protocol. All DOM
// probes, the transcript extractor and the comment injector issue their
// requests through Run one at a time; the tab is a shared resource and
// parallel probes would race each other's clicks.
type Client struct {
	tab       context.Context
	baseDelay time.Duration
}

// NewClient starts a browser tab context under parent. The returned cancel
// func tears down the tab and the allocator.
func NewClient(parent context.Context, headless bool) (*Client, context.CancelFunc, error) {
	opts := chromedp.DefaultExecAllocatorOptions[:]
	if !headless {
		opts = append(opts, chromedp.Flag("headless", false))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(parent, opts...)
	tabCtx, cancelTab := chromedp.NewContext(allocCtx)

	cancel := func() {
		cancelTab()
		cancelAlloc()
	}

	// Spawn the browser eagerly so the first Navigate does not pay the
	// startup cost inside its timeout budget.
	if err := chromedp.Run(tabCtx); err != nil {
		cancel()
		return nil, nil, fmt.Errorf("failed to start browser: %v", err)
	}

	return &Client{tab: tabCtx, baseDelay: defaultBaseDelay}, cancel, nil
}

// NewClientFromContext wraps an existing chromedp context. Used by tests.
func NewClientFromContext(tab context.Context) *Client {
	return &Client{tab: tab, baseDelay: defaultBaseDelay}
}

// Run executes actions against the tab, racing each attempt against timeout
// and retrying up to maxRetries with backoff attempt*baseDelay. ctx is the
// caller's context; cancelling it stops further attempts.
func (c *Client) Run(ctx context.Context, op string, timeout time.Duration, maxRetries int, actions ...chromedp.Action) error {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if maxRetries <= 0 {
		maxRetries = 1
	}

	var lastErr error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return &CommError{Op: op, Attempts: attempt - 1, Cause: err}
		}

		attemptCtx, cancel := context.WithTimeout(c.tab, timeout)
		err := chromedp.Run(attemptCtx, actions...)
		cancel()
		if err == nil {
			return nil
		}
		lastErr = err

		if attempt < maxRetries {
			delay := time.Duration(attempt) * c.baseDelay
			log.Printf("[tab] %s attempt %d/%d failed: %v (retrying in %s)", op, attempt, maxRetries, err, delay)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return &CommError{Op: op, Attempts: attempt, Cause: ctx.Err()}
			}
		}
	}

	return &CommError{Op: op, Attempts: maxRetries, Cause: lastErr}
}

// evaluate builds the Evaluate action for a page expression. Promise results
// are awaited so probes work the same whether the page code is sync or async.
func evaluate(expr string, out interface{}) chromedp.Action {
	return chromedp.Evaluate(expr, out, func(p *runtime.EvaluateParams) *runtime.EvaluateParams {
		return p.WithAwaitPromise(true)
	})
}

// eval evaluates a JS expression in the page with transport defaults.
func (c *Client) eval(ctx context.Context, op, expr string, out interface{}) error {
	return c.Run(ctx, op, DefaultTimeout, DefaultMaxRetries, evaluate(expr, out))
}

// evalOnce evaluates without retries. Poll loops use this so the backoff of
// the transport does not stack on top of the poll interval.
func (c *Client) evalOnce(ctx context.Context, op, expr string, out interface{}) error {
	return c.Run(ctx, op, DefaultTimeout, 1, evaluate(expr, out))
}

// Navigate points the tab at url. The page is not usable until AwaitReady
// confirms the watch page has materialized.
func (c *Client) Navigate(ctx context.Context, url string) error {
	log.Printf("[tab] Navigating to %s", url)
	return c.Run(ctx, "navigate", 30*time.Second, 2, chromedp.Navigate(url))
}

const readyProbeJS = `(function() {
	if (document.readyState !== 'interactive' && document.readyState !== 'complete') return false;
	return document.querySelector('ytd-app') !== null;
})()`

// AwaitReady polls the page on a short fixed interval until the application
// root exists. Navigation destroys and recreates the page asynchronously and
// there is no push signal for "page scriptable again", so this must run after
// every Navigate before any real request is issued.
func (c *Client) AwaitReady(ctx context.Context) error {
	for i := 0; i < readyMaxAttempts; i++ {
		var ready bool
		err := c.Run(ctx, "ping", 2*time.Second, 1, evaluate(readyProbeJS, &ready))
		if err == nil && ready {
			log.Printf("[tab] Page ready after %d attempt(s)", i+1)
			// Extra settle time: the app root appears before the page
			// stops reflowing.
			select {
			case <-time.After(readySettleDelay):
			case <-ctx.Done():
				return ctx.Err()
			}
			return nil
		}
		select {
		case <-time.After(readyInterval):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return &CommError{Op: "ping", Attempts: readyMaxAttempts, Cause: fmt.Errorf("page did not become ready")}
}
