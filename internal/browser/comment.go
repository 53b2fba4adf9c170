package browser

import (
	"context"
	"fmt"
	"log"
	"time"
)

const (
	injectBudget        = 30 * time.Second
	commentsSettleDelay = 2 * time.Second
	composerOpenDelay   = 2 * time.Second
)

// InjectError is a non-fatal injector failure. The workflow keeps going and
// the operator pastes the generated text manually instead.
type InjectError struct {
	Reason string
}

func (e *InjectError) Error() string {
	return fmt.Sprintf("comment injection failed: %s", e.Reason)
}

const scrollToCommentsJS = `(function() {
	var c = document.querySelector('ytd-comments');
	if (!c) return false;
	c.scrollIntoView({ behavior: 'smooth', block: 'start' });
	return true;
})()`

const clickComposerJS = `(function() {
	var box = document.querySelector('#placeholder-area');
	if (!box) return false;
	box.click();
	return true;
})()`

const composerPresentJS = `document.querySelector('#placeholder-area') !== null`
const editablePresentJS = `document.querySelector('#contenteditable-root') !== null`

// setCommentTextJS writes the text and dispatches a synthetic input event so
// the page's framework notices the change and enables its submit control.
const setCommentTextJS = `(function(text) {
	var el = document.querySelector('#contenteditable-root');
	if (!el) return false;
	el.textContent = text;
	el.dispatchEvent(new Event('input', { bubbles: true }));
	return true;
})`

// FillComment activates the comment composer and injects text. It never
// submits; posting is deliberately left to a human. Failures are reported as
// *InjectError so callers can treat them as non-fatal.
func (c *Client) FillComment(ctx context.Context, text string) error {
	ctx, cancel := context.WithTimeout(ctx, injectBudget)
	defer cancel()

	var scrolled bool
	if err := c.evalOnce(ctx, "fillComment", scrollToCommentsJS, &scrolled); err != nil {
		return &InjectError{Reason: err.Error()}
	}
	if scrolled {
		if err := sleep(ctx, commentsSettleDelay); err != nil {
			return &InjectError{Reason: "timed out scrolling to comments"}
		}
	}

	found, _ := pollUntil(ctx, pollComposer, func(ctx context.Context) (bool, error) {
		var ok bool
		err := c.evalOnce(ctx, "fillComment", composerPresentJS, &ok)
		return ok, err
	})
	if !found {
		return &InjectError{Reason: "comment composer not found"}
	}

	var clicked bool
	if err := c.evalOnce(ctx, "fillComment", clickComposerJS, &clicked); err != nil || !clicked {
		return &InjectError{Reason: "could not activate comment composer"}
	}
	if err := sleep(ctx, composerOpenDelay); err != nil {
		return &InjectError{Reason: "timed out waiting for composer"}
	}

	found, _ = pollUntil(ctx, pollEditable, func(ctx context.Context) (bool, error) {
		var ok bool
		err := c.evalOnce(ctx, "fillComment", editablePresentJS, &ok)
		return ok, err
	})
	if !found {
		return &InjectError{Reason: "comment input field not found"}
	}

	var set bool
	call := fmt.Sprintf("(%s)(%s)", setCommentTextJS, jsString(text))
	if err := c.Run(ctx, "fillComment", DefaultTimeout, 2, evaluate(call, &set)); err != nil {
		return &InjectError{Reason: err.Error()}
	}
	if !set {
		return &InjectError{Reason: "comment input disappeared before text was set"}
	}

	log.Printf("[injector] Comment text inserted (%d characters), awaiting manual submit", len(text))
	return nil
}

// jsString encodes s as a JS string literal.
func jsString(s string) string {
	out := make([]byte, 0, len(s)+2)
	out = append(out, '"')
	for i := 0; i < len(s); i++ {
		switch b := s[i]; b {
		case '"':
			out = append(out, '\\', '"')
		case '\\':
			out = append(out, '\\', '\\')
		case '\n':
			out = append(out, '\\', 'n')
		case '\r':
			out = append(out, '\\', 'r')
		case '\t':
			out = append(out, '\\', 't')
		default:
			if b < 0x20 {
				out = append(out, []byte(fmt.Sprintf("\\u%04x", b))...)
			} else {
				out = append(out, b)
			}
		}
	}
	return string(append(out, '"'))
}
