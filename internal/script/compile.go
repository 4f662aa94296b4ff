package script

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/v0xg/actionq/internal/driver"
	"github.com/v0xg/actionq/internal/observability"
	"github.com/v0xg/actionq/internal/queue"
	"go.uber.org/zap"
)

// Options configures Compile
type Options struct {
	Logger *zap.Logger
	// ErrorFunc, when set, is installed on the queues built for included
	// scripts so they fail the same way as the root queue.
	ErrorFunc queue.ErrorFunc
}

// Result is what a reading action observed during a run.
type Result struct {
	Source   string // script file, empty for parsed scripts
	Index    int    // 1-based action index within Source
	Action   string
	Selector string
	Text     string
	Count    int
	Skipped  bool
}

// Report collects Results in execution order.
type Report struct {
	mu      sync.Mutex
	results []Result
}

func (r *Report) add(res Result) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, res)
}

// Results returns a copy of the collected results.
func (r *Report) Results() []Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Result(nil), r.results...)
}

// Compile appends the script's actions to q. Included scripts are built
// into their own queues on q's session and concatenated in place. The
// returned Report fills in while q runs.
func Compile(ctx context.Context, q *queue.Queue, s *Script, opts Options) (*Report, error) {
	if opts.Logger == nil {
		opts.Logger = observability.GetLogger()
	}
	c := &compiler{ctx: ctx, opts: opts, report: &Report{}, logger: opts.Logger.Named("script")}
	if err := c.compile(q, s, nil); err != nil {
		return nil, err
	}
	return c.report, nil
}

type compiler struct {
	ctx    context.Context
	opts   Options
	report *Report
	logger *zap.Logger
}

func (c *compiler) compile(q *queue.Queue, s *Script, stack []string) error {
	if s.path != "" {
		for _, p := range stack {
			if p == s.path {
				return fmt.Errorf("%w: %s", ErrIncludeCycle, strings.Join(append(stack, s.path), " -> "))
			}
		}
		stack = append(stack, s.path)
	}

	for i, a := range s.Actions {
		if err := c.compileAction(q, s, i+1, a, stack); err != nil {
			return err
		}
	}
	c.logger.Debug("Compiled script",
		zap.String("name", s.Name),
		zap.String("path", s.path),
		zap.Int("actions", len(s.Actions)))
	return nil
}

func (c *compiler) compileAction(q *queue.Queue, s *Script, index int, a Action, stack []string) error {
	timeout := time.Duration(a.Timeout) * time.Millisecond
	result := Result{Source: s.path, Index: index, Action: a.Type, Selector: a.Selector}

	switch a.Type {
	case ActionNavigate:
		q.GoTo(a.URL)
	case ActionWait:
		q.Sleep(time.Duration(a.Duration) * time.Millisecond)
	case ActionClick:
		q.Click(a.Selector, timeout)
	case ActionType:
		q.SendKeys(a.Selector, a.Text, timeout)
	case ActionWaitFor:
		q.WaitFor(a.Selector, timeout)
	case ActionGetText:
		q.GetText(a.Selector, func(text string, cont queue.Continuation) {
			result.Text = text
			c.report.add(result)
			if a.Expect != "" && !strings.Contains(text, a.Expect) {
				cont.Fail(fmt.Errorf("%w: %q does not contain %q", ErrExpectation, text, a.Expect))
				return
			}
			cont.Continue()
		}, timeout)
	case ActionGetAll:
		q.GetAllElements(a.Selector, a.AllowSkip, func(elems []driver.Element, cont queue.Continuation) {
			result.Count = len(elems)
			result.Skipped = elems == nil
			c.report.add(result)
			if len(elems) < a.MinCount {
				cont.Fail(fmt.Errorf("%w: %d elements match, want at least %d", ErrExpectation, len(elems), a.MinCount))
				return
			}
			cont.Continue()
		}, timeout)
	case ActionInclude:
		return c.include(q, s, a.Include, stack)
	default:
		return fmt.Errorf("%w: action %d: unknown action type: %s", ErrInvalid, index, a.Type)
	}
	return nil
}

func (c *compiler) include(q *queue.Queue, parent *Script, ref string, stack []string) error {
	path := ref
	if !filepath.IsAbs(path) && parent.path != "" {
		path = filepath.Join(filepath.Dir(parent.path), path)
	}
	child, err := Load(path)
	if err != nil {
		return fmt.Errorf("include %s: %w", ref, err)
	}

	sub, err := queue.New(c.ctx, q.Session(), queue.Options{
		DefaultTimeout: q.DefaultTimeout(),
		Logger:         c.opts.Logger,
	})
	if err != nil {
		return fmt.Errorf("include %s: %w", ref, err)
	}
	if c.opts.ErrorFunc != nil {
		sub.SetErrorFunc(c.opts.ErrorFunc)
	}

	if err := c.compile(sub, child, stack); err != nil {
		return err
	}
	q.Concat(sub)
	return nil
}
