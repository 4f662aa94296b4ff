// Package probe checks that a browser endpoint answers before a script runs.
package probe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ErrNotReady is returned when the endpoint could not be reached at all.
var ErrNotReady = errors.New("browser endpoint not running?")

// Result describes a successful probe
type Result struct {
	URL        string
	StatusCode int
	Latency    time.Duration
}

// Check issues a GET against url. Any HTTP response, whatever its status,
// counts as ready.
func Check(ctx context.Context, url string, timeout time.Duration) (*Result, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build probe request: %w", err)
	}

	start := time.Now()
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrNotReady, url, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	return &Result{URL: url, StatusCode: resp.StatusCode, Latency: time.Since(start)}, nil
}
