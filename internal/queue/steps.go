package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/v0xg/actionq/internal/driver"
)

// Kind identifies the shape of a queued step
type Kind int

const (
	KindNavigate Kind = iota
	KindSleep
	KindClick
	KindClickElem
	KindSendKeys
	KindWaitFor
	KindGetText
	KindGetTextFromElem
	KindGetAllElements
	KindCustom
)

var kindNames = [...]string{
	KindNavigate:        "navigate",
	KindSleep:           "sleep",
	KindClick:           "click",
	KindClickElem:       "click_elem",
	KindSendKeys:        "send_keys",
	KindWaitFor:         "wait_for",
	KindGetText:         "get_text",
	KindGetTextFromElem: "get_text_from_elem",
	KindGetAllElements:  "get_all_elements",
	KindCustom:          "custom",
}

func (k Kind) String() string {
	if k >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Step is one deferred unit of queued work.
type Step struct {
	Kind    Kind
	Target  string        // URL, locator or duration, depending on Kind
	Timeout time.Duration // zero for steps that do not wait

	owner *Queue
	do    func(ctx context.Context, cont Continuation)
}

// ElementsFunc receives the located elements, or nil when a skippable
// lookup found nothing. It must settle cont.
type ElementsFunc func(elems []driver.Element, cont Continuation)

// TextFunc receives an element's visible text. It must settle cont.
type TextFunc func(text string, cont Continuation)

// CustomFunc is the body of a Custom step. It must settle cont.
type CustomFunc func(ctx context.Context, sess driver.Session, cont Continuation)

// GoTo navigates the session to url.
func (q *Queue) GoTo(url string) *Queue {
	return q.push(Step{
		Kind:   KindNavigate,
		Target: url,
		do: func(ctx context.Context, cont Continuation) {
			if err := q.session.Navigate(ctx, url); err != nil {
				cont.Fail(err)
				return
			}
			cont.Continue()
		},
	})
}

// Sleep pauses the run for d without touching the browser.
func (q *Queue) Sleep(d time.Duration) *Queue {
	if d < 0 {
		d = 0
	}
	return q.push(Step{
		Kind:   KindSleep,
		Target: d.String(),
		do: func(ctx context.Context, cont Continuation) {
			t := time.NewTimer(d)
			defer t.Stop()
			select {
			case <-t.C:
				cont.Continue()
			case <-ctx.Done():
			}
		},
	})
}

// Click waits for the element at xpath and clicks it.
func (q *Queue) Click(xpath string, timeout ...time.Duration) *Queue {
	t := q.timeout(timeout)
	return q.push(Step{
		Kind:    KindClick,
		Target:  xpath,
		Timeout: t,
		do: func(ctx context.Context, cont Continuation) {
			el, err := q.session.Locate(ctx, xpath, t)
			if err != nil {
				cont.Fail(err)
				return
			}
			if err := el.Click(ctx); err != nil {
				cont.Fail(fmt.Errorf("click %s: %w", xpath, err))
				return
			}
			cont.Continue()
		},
	})
}

// ClickElem clicks an element resolved earlier. The handle is not
// re-validated; a stale element fails the step.
func (q *Queue) ClickElem(el driver.Element, timeout ...time.Duration) *Queue {
	t := q.timeout(timeout)
	return q.push(Step{
		Kind:    KindClickElem,
		Timeout: t,
		do: func(ctx context.Context, cont Continuation) {
			if el == nil {
				cont.Fail(errNilElement)
				return
			}
			cctx, cancel := context.WithTimeout(ctx, t)
			defer cancel()
			if err := el.Click(cctx); err != nil {
				cont.Fail(fmt.Errorf("click element: %w", err))
				return
			}
			cont.Continue()
		},
	})
}

// SendKeys waits for the element at xpath and types text into it.
func (q *Queue) SendKeys(xpath, text string, timeout ...time.Duration) *Queue {
	t := q.timeout(timeout)
	return q.push(Step{
		Kind:    KindSendKeys,
		Target:  xpath,
		Timeout: t,
		do: func(ctx context.Context, cont Continuation) {
			el, err := q.session.Locate(ctx, xpath, t)
			if err != nil {
				cont.Fail(err)
				return
			}
			if err := el.SendKeys(ctx, text); err != nil {
				cont.Fail(fmt.Errorf("send keys to %s: %w", xpath, err))
				return
			}
			cont.Continue()
		},
	})
}

// GetAllElements waits for one or more elements at xpath and hands them to
// cb. When nothing matches and allowSkip is set, cb gets nil instead and the
// step is not a failure.
func (q *Queue) GetAllElements(xpath string, allowSkip bool, cb ElementsFunc, timeout ...time.Duration) *Queue {
	t := q.timeout(timeout)
	return q.push(Step{
		Kind:    KindGetAllElements,
		Target:  xpath,
		Timeout: t,
		do: func(ctx context.Context, cont Continuation) {
			elems, err := q.session.LocateAll(ctx, xpath, t)
			if err != nil {
				if !allowSkip || ctx.Err() != nil {
					cont.Fail(err)
					return
				}
				elems = nil
			}
			if cb == nil {
				cont.Continue()
				return
			}
			cb(elems, cont)
		},
	})
}

// GetText waits for the element at xpath and hands its visible text to cb.
func (q *Queue) GetText(xpath string, cb TextFunc, timeout ...time.Duration) *Queue {
	t := q.timeout(timeout)
	return q.push(Step{
		Kind:    KindGetText,
		Target:  xpath,
		Timeout: t,
		do: func(ctx context.Context, cont Continuation) {
			el, err := q.session.Locate(ctx, xpath, t)
			if err != nil {
				cont.Fail(err)
				return
			}
			deliverText(ctx, el, cb, cont)
		},
	})
}

// GetTextFromElem reads the visible text of an element resolved earlier.
// A failed read is routed to the error handler like any other step.
func (q *Queue) GetTextFromElem(el driver.Element, cb TextFunc, timeout ...time.Duration) *Queue {
	t := q.timeout(timeout)
	return q.push(Step{
		Kind:    KindGetTextFromElem,
		Timeout: t,
		do: func(ctx context.Context, cont Continuation) {
			if el == nil {
				cont.Fail(errNilElement)
				return
			}
			cctx, cancel := context.WithTimeout(ctx, t)
			defer cancel()
			deliverText(cctx, el, cb, cont)
		},
	})
}

// WaitFor waits until an element at xpath exists.
func (q *Queue) WaitFor(xpath string, timeout ...time.Duration) *Queue {
	t := q.timeout(timeout)
	return q.push(Step{
		Kind:    KindWaitFor,
		Target:  xpath,
		Timeout: t,
		do: func(ctx context.Context, cont Continuation) {
			if _, err := q.session.Locate(ctx, xpath, t); err != nil {
				cont.Fail(err)
				return
			}
			cont.Continue()
		},
	})
}

// Custom queues fn as a step. The queue does not wrap fn; it decides
// when, and whether, to settle cont.
func (q *Queue) Custom(fn CustomFunc) *Queue {
	return q.push(Step{
		Kind: KindCustom,
		do: func(ctx context.Context, cont Continuation) {
			if fn == nil {
				cont.Continue()
				return
			}
			fn(ctx, q.session, cont)
		},
	})
}

func deliverText(ctx context.Context, el driver.Element, cb TextFunc, cont Continuation) {
	text, err := el.VisibleText(ctx)
	if err != nil {
		cont.Fail(fmt.Errorf("read text: %w", err))
		return
	}
	if cb == nil {
		cont.Continue()
		return
	}
	cb(text, cont)
}
