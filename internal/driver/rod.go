package driver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

// RodSession implements Session on top of a go-rod browser and page
type RodSession struct {
	browser  *rod.Browser
	page     *rod.Page
	launcher *launcher.Launcher
}

var _ Session = (*RodSession)(nil)

// Connect establishes a browser session. With an empty Server a local
// Chromium is launched (and killed again on Close); otherwise the DevTools
// endpoint at Server is resolved and attached to.
func Connect(ctx context.Context, opts ConnectOptions) (*RodSession, error) {
	if _, err := normalizeBrowser(opts.Browser); err != nil {
		return nil, err
	}

	var l *launcher.Launcher
	var controlURL string
	if opts.Server == "" {
		l = launcher.New().Context(ctx).Headless(opts.Headless)
		if path, ok := launcher.LookPath(); ok {
			l = l.Bin(path)
		}
		u, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("launch browser: %w", err)
		}
		controlURL = u
	} else {
		u, err := launcher.ResolveURL(opts.Server)
		if err != nil {
			return nil, fmt.Errorf("resolve %s: %w", opts.Server, err)
		}
		controlURL = u
	}

	browser := rod.New().Context(ctx).ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		if l != nil {
			l.Kill()
		}
		return nil, fmt.Errorf("connect to %s: %w", controlURL, err)
	}

	page, err := browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		_ = browser.Close()
		if l != nil {
			l.Kill()
		}
		return nil, fmt.Errorf("open page: %w", err)
	}

	return &RodSession{browser: browser, page: page, launcher: l}, nil
}

// Close cleans up browser resources
func (s *RodSession) Close() error {
	var errs []error
	if s.page != nil {
		errs = append(errs, s.page.Close())
	}
	if s.browser != nil {
		errs = append(errs, s.browser.Close())
	}
	if s.launcher != nil {
		s.launcher.Kill()
	}
	return errors.Join(errs...)
}

func (s *RodSession) Navigate(ctx context.Context, url string) error {
	p := s.page.Context(ctx)
	if err := p.Navigate(url); err != nil {
		return fmt.Errorf("navigate to %s: %w", url, err)
	}
	if err := p.WaitLoad(); err != nil {
		return fmt.Errorf("wait load %s: %w", url, err)
	}
	return nil
}

func (s *RodSession) Locate(ctx context.Context, xpath string, timeout time.Duration) (Element, error) {
	tctx, cancel := withTimeout(ctx, timeout)
	defer cancel()

	// ElementX retries until the element exists or tctx expires.
	el, err := s.page.Context(tctx).ElementX(xpath)
	if err != nil {
		return nil, notFound(xpath, err)
	}
	return &rodElement{el: el.Context(ctx)}, nil
}

func (s *RodSession) LocateAll(ctx context.Context, xpath string, timeout time.Duration) ([]Element, error) {
	tctx, cancel := withTimeout(ctx, timeout)
	defer cancel()

	p := s.page.Context(tctx)
	if _, err := p.ElementX(xpath); err != nil {
		return nil, notFound(xpath, err)
	}
	found, err := p.ElementsX(xpath)
	if err != nil {
		return nil, notFound(xpath, err)
	}
	if len(found) == 0 {
		return nil, notFound(xpath, errors.New("no matches"))
	}

	elems := make([]Element, 0, len(found))
	for _, el := range found {
		elems = append(elems, &rodElement{el: el.Context(ctx)})
	}
	return elems, nil
}

type rodElement struct {
	el *rod.Element
}

func (e *rodElement) Click(ctx context.Context) error {
	return e.el.Context(ctx).Click(proto.InputMouseButtonLeft, 1)
}

func (e *rodElement) SendKeys(ctx context.Context, text string) error {
	return e.el.Context(ctx).Input(text)
}

func (e *rodElement) VisibleText(ctx context.Context) (string, error) {
	return e.el.Context(ctx).Text()
}

func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}
