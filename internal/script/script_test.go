package script

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/v0xg/actionq/internal/driver"
	"github.com/v0xg/actionq/internal/queue"
	"go.uber.org/zap/zaptest"
)

// stubSession answers Locate from a fixed table and records every call.
type stubSession struct {
	mu    sync.Mutex
	texts map[string][]string
	calls []string
}

func (s *stubSession) record(format string, args ...any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, fmt.Sprintf(format, args...))
}

func (s *stubSession) Navigate(ctx context.Context, url string) error {
	s.record("navigate %s", url)
	return nil
}

func (s *stubSession) Locate(ctx context.Context, xpath string, timeout time.Duration) (driver.Element, error) {
	els, err := s.LocateAll(ctx, xpath, timeout)
	if err != nil {
		return nil, err
	}
	return els[0], nil
}

func (s *stubSession) LocateAll(ctx context.Context, xpath string, timeout time.Duration) ([]driver.Element, error) {
	texts, ok := s.texts[xpath]
	if !ok {
		return nil, fmt.Errorf("%w: %s", driver.ErrNotFound, xpath)
	}
	out := make([]driver.Element, len(texts))
	for i, txt := range texts {
		out[i] = &stubElement{sess: s, xpath: xpath, text: txt}
	}
	return out, nil
}

func (s *stubSession) Close() error { return nil }

type stubElement struct {
	sess  *stubSession
	xpath string
	text  string
}

func (e *stubElement) Click(ctx context.Context) error {
	e.sess.record("click %s", e.xpath)
	return nil
}

func (e *stubElement) SendKeys(ctx context.Context, text string) error {
	e.sess.record("type %s %s", e.xpath, text)
	return nil
}

func (e *stubElement) VisibleText(ctx context.Context) (string, error) {
	return e.text, nil
}

func writeScript(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func newQueue(t *testing.T, sess driver.Session) *queue.Queue {
	t.Helper()
	q, err := queue.New(context.Background(), sess, queue.Options{
		DefaultTimeout: 50 * time.Millisecond,
		Logger:         zaptest.NewLogger(t),
	})
	require.NoError(t, err)
	return q
}

func TestParse(t *testing.T) {
	s, err := Parse([]byte(`
name: login
actions:
  - action: navigate
    url: https://example.test/login
  - action: type
    selector: //input[@name="email"]
    text: user@example.test
  - action: click
    selector: //button[@type="submit"]
    timeout: 2000
  - action: wait
    duration: 250
`))
	require.NoError(t, err)
	assert.Equal(t, "login", s.Name)
	require.Len(t, s.Actions, 4)
	assert.Equal(t, ActionType, s.Actions[1].Type)
	assert.Equal(t, "user@example.test", s.Actions[1].Text)
	assert.Equal(t, 2000, s.Actions[2].Timeout)
	assert.Equal(t, 250, s.Actions[3].Duration)
	assert.Empty(t, s.Path())
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{name: "no actions", body: "name: empty\n", wantErr: "no actions"},
		{name: "unknown type", body: "actions:\n  - action: hover\n    selector: //a\n", wantErr: "action 1 (hover): unknown action type"},
		{name: "missing type", body: "actions:\n  - selector: //a\n", wantErr: "action type is required"},
		{name: "navigate without url", body: "actions:\n  - action: navigate\n", wantErr: "url is required"},
		{name: "click without selector", body: "actions:\n  - action: wait\n  - action: click\n", wantErr: "action 2 (click): selector is required"},
		{name: "type without text", body: "actions:\n  - action: type\n    selector: //input\n", wantErr: "text is required"},
		{name: "negative duration", body: "actions:\n  - action: wait\n    duration: -1\n", wantErr: "duration"},
		{name: "negative timeout", body: "actions:\n  - action: wait_for\n    selector: //a\n    timeout: -5\n", wantErr: "timeout"},
		{name: "skip with min count", body: "actions:\n  - action: get_all\n    selector: //li\n    allow_skip: true\n    min_count: 2\n", wantErr: "mutually exclusive"},
		{name: "include without path", body: "actions:\n  - action: include\n", wantErr: "include is required"},
		{name: "bad yaml", body: "actions: [\n", wantErr: "invalid script"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.body))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalid)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestCompile_RunsActionsInOrder(t *testing.T) {
	sess := &stubSession{texts: map[string][]string{
		"//input":  {""},
		"//button": {"Sign in"},
		"//h1":     {"Welcome back, user"},
		"//li":     {"a", "b", "c"},
	}}
	s, err := Parse([]byte(`
actions:
  - action: navigate
    url: https://example.test
  - action: type
    selector: //input
    text: secret
  - action: click
    selector: //button
  - action: wait_for
    selector: //h1
  - action: get_text
    selector: //h1
    expect: Welcome
  - action: get_all
    selector: //li
    min_count: 2
  - action: get_all
    selector: //banner
    allow_skip: true
  - action: wait
    duration: 1
`))
	require.NoError(t, err)

	q := newQueue(t, sess)
	report, err := Compile(context.Background(), q, s, Options{Logger: zaptest.NewLogger(t)})
	require.NoError(t, err)
	assert.Equal(t, 8, q.Len())

	require.NoError(t, q.Execute(context.Background()))
	assert.Equal(t, []string{
		"navigate https://example.test",
		"type //input secret",
		"click //button",
	}, sess.calls)

	results := report.Results()
	require.Len(t, results, 3)
	assert.Equal(t, "Welcome back, user", results[0].Text)
	assert.Equal(t, 5, results[0].Index)
	assert.Equal(t, 3, results[1].Count)
	assert.False(t, results[1].Skipped)
	assert.True(t, results[2].Skipped)
	assert.Zero(t, results[2].Count)
}

func TestCompile_ExpectationFailures(t *testing.T) {
	sess := &stubSession{texts: map[string][]string{
		"//h1": {"Access denied"},
		"//li": {"only one"},
	}}

	tests := []struct {
		name string
		body string
	}{
		{name: "text mismatch", body: "actions:\n  - action: get_text\n    selector: //h1\n    expect: Welcome\n"},
		{name: "too few matches", body: "actions:\n  - action: get_all\n    selector: //li\n    min_count: 2\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := Parse([]byte(tt.body))
			require.NoError(t, err)

			q := newQueue(t, sess)
			var got error
			q.SetErrorFunc(func(err error, resume func()) { got = err })

			_, err = Compile(context.Background(), q, s, Options{})
			require.NoError(t, err)

			err = q.Execute(context.Background())
			assert.ErrorIs(t, err, queue.ErrHalted)
			assert.ErrorIs(t, got, ErrExpectation)
		})
	}
}

func TestCompile_Include(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, "login.yaml", `
name: login
actions:
  - action: navigate
    url: https://example.test/login
  - action: click
    selector: //missing
`)
	root := writeScript(t, dir, "main.yaml", `
name: main
actions:
  - action: include
    include: login.yaml
  - action: navigate
    url: https://example.test/home
`)

	s, err := Load(root)
	require.NoError(t, err)
	assert.Equal(t, root, s.Path())

	sess := &stubSession{texts: map[string][]string{}}
	q := newQueue(t, sess)

	var failures []error
	resumeAll := func(err error, resume func()) {
		failures = append(failures, err)
		resume()
	}
	q.SetErrorFunc(resumeAll)

	_, err = Compile(context.Background(), q, s, Options{ErrorFunc: resumeAll})
	require.NoError(t, err)
	assert.Equal(t, 3, q.Len())

	require.NoError(t, q.Execute(context.Background()))
	assert.Len(t, failures, 1, "included step failure goes through the shared handler")
	assert.Equal(t, []string{
		"navigate https://example.test/login",
		"navigate https://example.test/home",
	}, sess.calls)
}

func TestCompile_IncludeCycle(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, "a.yaml", "actions:\n  - action: include\n    include: b.yaml\n")
	writeScript(t, dir, "b.yaml", "actions:\n  - action: include\n    include: a.yaml\n")

	s, err := Load(filepath.Join(dir, "a.yaml"))
	require.NoError(t, err)

	_, err = Compile(context.Background(), newQueue(t, &stubSession{}), s, Options{})
	assert.ErrorIs(t, err, ErrIncludeCycle)
}

func TestCompile_IncludeMissingFile(t *testing.T) {
	dir := t.TempDir()
	root := writeScript(t, dir, "main.yaml", "actions:\n  - action: include\n    include: nope.yaml\n")

	s, err := Load(root)
	require.NoError(t, err)

	_, err = Compile(context.Background(), newQueue(t, &stubSession{}), s, Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "include nope.yaml")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
