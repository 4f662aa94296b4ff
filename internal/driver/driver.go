package driver

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// DefaultServer is the DevTools endpoint dialed when no server is configured.
const DefaultServer = "http://127.0.0.1:9222"

// DefaultBrowser is the browser kind used when none is configured.
const DefaultBrowser = "chrome"

var (
	// ErrNotFound is returned when a locator matched nothing before its timeout elapsed.
	ErrNotFound = errors.New("element not found")
	// ErrUnsupportedBrowser is returned by Connect for browser kinds the driver cannot control.
	ErrUnsupportedBrowser = errors.New("unsupported browser")
)

// Session is a handle to one automated browser tab
type Session interface {
	// Navigate loads url and waits for the page load event.
	Navigate(ctx context.Context, url string) error
	// Locate waits up to timeout for an element matching the XPath expression.
	Locate(ctx context.Context, xpath string, timeout time.Duration) (Element, error)
	// LocateAll waits up to timeout for at least one element matching the
	// XPath expression and returns every match.
	LocateAll(ctx context.Context, xpath string, timeout time.Duration) ([]Element, error)
	Close() error
}

// Element is a resolved node on the current page. It may go stale when the
// page changes; nothing re-validates it.
type Element interface {
	Click(ctx context.Context) error
	SendKeys(ctx context.Context, text string) error
	// VisibleText returns the rendered text of the element and its descendants.
	VisibleText(ctx context.Context) (string, error)
}

// ConnectOptions configures Connect
type ConnectOptions struct {
	// Server is a DevTools endpoint (http or ws). Empty launches a local browser.
	Server   string
	Browser  string
	Headless bool
}

// normalizeBrowser maps a configured browser kind onto the kinds go-rod drives.
func normalizeBrowser(kind string) (string, error) {
	k := strings.ToLower(strings.TrimSpace(kind))
	switch k {
	case "":
		return DefaultBrowser, nil
	case "chrome", "chromium":
		return k, nil
	default:
		return "", fmt.Errorf("%w: %s (supported: chrome, chromium)", ErrUnsupportedBrowser, kind)
	}
}

func notFound(xpath string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrNotFound, xpath, err)
}
