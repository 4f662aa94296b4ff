// Package queue builds ordered sequences of browser steps and runs them one
// at a time. Builders only record steps; nothing touches the browser until
// Run is called.
package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/v0xg/actionq/internal/driver"
	"github.com/v0xg/actionq/internal/observability"
	"go.uber.org/zap"
)

// DefaultTimeout applies to every locating step that does not pass its own.
const DefaultTimeout = 10 * time.Second

// ErrorFunc receives a failed step's error. Calling resume before returning
// continues the run with the next step; returning without calling it halts
// the run.
type ErrorFunc func(err error, resume func())

// DialFunc opens a session when New is not given one.
type DialFunc func(ctx context.Context, opts driver.ConnectOptions) (driver.Session, error)

// Options configures New
type Options struct {
	Browser  string // default "chrome"
	Server   string // default driver.DefaultServer
	Launch   bool   // launch a local browser instead of dialing Server
	Headless bool

	DefaultTimeout time.Duration // 0 means DefaultTimeout
	Logger         *zap.Logger   // default observability.GetLogger()
	Dial           DialFunc      // default driver.Connect
}

// Queue accumulates steps and runs them in order against one session.
// Steps must not be appended while a run is in progress.
type Queue struct {
	session        driver.Session
	ownsSession    bool
	defaultTimeout time.Duration
	logger         *zap.Logger

	mu        sync.Mutex
	steps     []Step
	errorFunc ErrorFunc
}

// New creates a queue. A nil sess makes the queue dial its own session,
// which Close releases; a non-nil sess is borrowed and may be shared with
// other queues.
func New(ctx context.Context, sess driver.Session, opts Options) (*Queue, error) {
	logger := opts.Logger
	if logger == nil {
		logger = observability.GetLogger()
	}

	q := &Queue{
		session:        sess,
		defaultTimeout: opts.DefaultTimeout,
		logger:         logger.Named("queue"),
	}
	if q.defaultTimeout <= 0 {
		q.defaultTimeout = DefaultTimeout
	}

	if sess == nil {
		dial := opts.Dial
		if dial == nil {
			dial = func(ctx context.Context, co driver.ConnectOptions) (driver.Session, error) {
				return driver.Connect(ctx, co)
			}
		}
		co := driver.ConnectOptions{
			Server:   opts.Server,
			Browser:  opts.Browser,
			Headless: opts.Headless,
		}
		if co.Browser == "" {
			co.Browser = driver.DefaultBrowser
		}
		if opts.Launch {
			co.Server = ""
		} else if co.Server == "" {
			co.Server = driver.DefaultServer
		}

		s, err := dial(ctx, co)
		if err != nil {
			return nil, fmt.Errorf("create session: %w", err)
		}
		q.session = s
		q.ownsSession = true
		q.logger.Debug("Session created", zap.String("browser", co.Browser), zap.String("server", co.Server))
	}

	return q, nil
}

// SetErrorFunc replaces the error handler. nil restores the default, which
// logs the failure and halts.
func (q *Queue) SetErrorFunc(fn ErrorFunc) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.errorFunc = fn
}

// Concat appends a copy of other's current steps after this queue's steps.
// The appended steps keep using other's session, timeout and error handler.
func (q *Queue) Concat(other *Queue) {
	if other == nil {
		return
	}
	steps := other.Steps()

	q.mu.Lock()
	defer q.mu.Unlock()
	q.steps = append(q.steps, steps...)
}

// Len returns the number of queued steps.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.steps)
}

// Steps returns a copy of the queued steps in execution order.
func (q *Queue) Steps() []Step {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]Step, len(q.steps))
	copy(out, q.steps)
	return out
}

// Session returns the session steps run against.
func (q *Queue) Session() driver.Session { return q.session }

func (q *Queue) DefaultTimeout() time.Duration { return q.defaultTimeout }

// Close releases the session if the queue created it.
func (q *Queue) Close() error {
	if !q.ownsSession || q.session == nil {
		return nil
	}
	return q.session.Close()
}

func (q *Queue) handler() ErrorFunc {
	q.mu.Lock()
	fn := q.errorFunc
	q.mu.Unlock()
	if fn == nil {
		return q.defaultError
	}
	return fn
}

func (q *Queue) defaultError(err error, _ func()) {
	q.logger.Error("Step failed", zap.Error(err))
}

func (q *Queue) push(s Step) *Queue {
	s.owner = q
	q.mu.Lock()
	defer q.mu.Unlock()
	q.steps = append(q.steps, s)
	return q
}

func (q *Queue) timeout(override []time.Duration) time.Duration {
	if len(override) > 0 && override[0] > 0 {
		return override[0]
	}
	return q.defaultTimeout
}
