package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/v0xg/actionq/internal/driver"
)

// fakeSession is an in-memory driver.Session. Locate polls its element table
// until the timeout, the way a real driver waits for elements to appear.
type fakeSession struct {
	mu       sync.Mutex
	elements map[string][]*fakeElement
	visited  []string
	navErr   error
	closed   int
}

func newFakeSession() *fakeSession {
	return &fakeSession{elements: make(map[string][]*fakeElement)}
}

func (s *fakeSession) add(xpath string, els ...*fakeElement) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.elements[xpath] = append(s.elements[xpath], els...)
}

// addAfter makes elements appear once d has elapsed.
func (s *fakeSession) addAfter(d time.Duration, xpath string, els ...*fakeElement) {
	time.AfterFunc(d, func() { s.add(xpath, els...) })
}

func (s *fakeSession) lookup(xpath string) []*fakeElement {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*fakeElement(nil), s.elements[xpath]...)
}

func (s *fakeSession) Navigate(ctx context.Context, url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.navErr != nil {
		return s.navErr
	}
	s.visited = append(s.visited, url)
	return nil
}

func (s *fakeSession) Locate(ctx context.Context, xpath string, timeout time.Duration) (driver.Element, error) {
	els, err := s.wait(ctx, xpath, timeout)
	if err != nil {
		return nil, err
	}
	return els[0], nil
}

func (s *fakeSession) LocateAll(ctx context.Context, xpath string, timeout time.Duration) ([]driver.Element, error) {
	els, err := s.wait(ctx, xpath, timeout)
	if err != nil {
		return nil, err
	}
	out := make([]driver.Element, len(els))
	for i, el := range els {
		out[i] = el
	}
	return out, nil
}

func (s *fakeSession) wait(ctx context.Context, xpath string, timeout time.Duration) ([]*fakeElement, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	tick := time.NewTicker(2 * time.Millisecond)
	defer tick.Stop()
	for {
		if els := s.lookup(xpath); len(els) > 0 {
			return els, nil
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %s: %w", driver.ErrNotFound, xpath, ctx.Err())
		case <-tick.C:
		}
	}
}

func (s *fakeSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed++
	return nil
}

type fakeElement struct {
	mu       sync.Mutex
	text     string
	clickErr error
	keysErr  error
	textErr  error
	clicks   int
	typed    []string
}

func (e *fakeElement) Click(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.clickErr != nil {
		return e.clickErr
	}
	e.clicks++
	return nil
}

func (e *fakeElement) SendKeys(ctx context.Context, text string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.keysErr != nil {
		return e.keysErr
	}
	e.typed = append(e.typed, text)
	return nil
}

func (e *fakeElement) VisibleText(ctx context.Context) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.textErr != nil {
		return "", e.textErr
	}
	return e.text, nil
}

func (e *fakeElement) clickCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.clicks
}

var errBoom = errors.New("boom")
