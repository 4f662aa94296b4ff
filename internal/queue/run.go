package queue

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Continuation settles the step it was handed to. Only the first call to
// Continue or Fail on a given step has any effect.
type Continuation struct {
	ctl  *stepControl
	fail func(error)
}

// Continue advances the run to the next step.
func (c Continuation) Continue() {
	if c.ctl != nil {
		c.ctl.settle(nil)
	}
}

// Fail routes err to the error handler of the queue that built the step.
func (c Continuation) Fail(err error) {
	if c.fail != nil {
		c.fail(err)
	}
}

type stepControl struct {
	once    sync.Once
	settled atomic.Bool
	result  chan error
}

func newStepControl() *stepControl {
	return &stepControl{result: make(chan error, 1)}
}

func (c *stepControl) settle(err error) {
	c.once.Do(func() {
		c.settled.Store(true)
		c.result <- err
	})
}

// Run executes the queued steps in the background and calls done once with
// the outcome. It is RunContext with a background context.
func (q *Queue) Run(done func(error)) *Queue {
	return q.RunContext(context.Background(), done)
}

// RunContext snapshots the queued steps and executes them strictly in order
// on a new goroutine. done, if non-nil, is called exactly once: with nil
// when every step continued, with a *HaltError when a failure was not
// resumed, or with ctx.Err() when ctx ends first.
func (q *Queue) RunContext(ctx context.Context, done func(error)) *Queue {
	steps := q.Steps()
	go func() {
		err := q.runSteps(ctx, steps)
		if done != nil {
			done(err)
		}
	}()
	return q
}

// Execute runs the queue and blocks until the run finishes.
func (q *Queue) Execute(ctx context.Context) error {
	errc := make(chan error, 1)
	q.RunContext(ctx, func(err error) { errc <- err })
	return <-errc
}

func (q *Queue) runSteps(ctx context.Context, steps []Step) error {
	logger := q.logger.With(zap.String("run_id", uuid.NewString()))
	start := time.Now()
	logger.Debug("Run started", zap.Int("steps", len(steps)))

	for i, st := range steps {
		if err := ctx.Err(); err != nil {
			return err
		}

		ctl := newStepControl()
		cont := Continuation{ctl: ctl, fail: q.failer(ctx, logger, i, st, ctl)}

		logger.Debug("Executing step",
			zap.Int("index", i),
			zap.Stringer("kind", st.Kind),
			zap.String("target", st.Target))
		st.do(ctx, cont)

		select {
		case err := <-ctl.result:
			if err == nil {
				continue
			}
			var halt *HaltError
			if errors.As(err, &halt) {
				logger.Warn("Run halted", zap.Int("index", i), zap.Error(halt.Step))
			}
			return err
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	logger.Info("Run completed", zap.Int("steps", len(steps)), zap.Duration("elapsed", time.Since(start)))
	return nil
}

func (q *Queue) failer(ctx context.Context, logger *zap.Logger, index int, st Step, ctl *stepControl) func(error) {
	return func(err error) {
		if ctl.settled.Load() {
			logger.Warn("Failure reported for a settled step", zap.Int("index", index), zap.Error(err))
			return
		}
		// Failures caused by the run ending are not the handler's business.
		if cerr := ctx.Err(); cerr != nil {
			ctl.settle(cerr)
			return
		}
		if err == nil {
			err = errStepFailed
		}

		serr := &StepError{Index: index, Kind: st.Kind, Target: st.Target, Err: err}
		owner := st.owner
		if owner == nil {
			owner = q
		}
		owner.handler()(serr, func() { ctl.settle(nil) })
		ctl.settle(&HaltError{Step: serr})
	}
}
