// Package fetch retrieves pre-recorded audio clips from remote URLs.
// Downloads are not retried except when the endpoint signals rate limiting,
// in which case a bounded exponential backoff is applied; every other failure
// is fatal to the owning job.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Static errors for fetch operations.
var (
	// ErrRateLimited is returned when the endpoint responds with 429 and the
	// retry budget is exhausted.
	ErrRateLimited = errors.New("fetch: rate limited")
	// ErrRequestFailed is returned for non-2xx responses that are not rate limits.
	ErrRequestFailed = errors.New("fetch: request failed")
	// ErrEmptyBody is returned when the endpoint responds 2xx with no content.
	ErrEmptyBody = errors.New("fetch: empty response body")
)

// maxErrorBody bounds how much of an error response body is kept in the
// error message.
const maxErrorBody = 512

// Fetcher downloads remote audio clips.
type Fetcher struct {
	httpClient  *http.Client
	maxAttempts int
	baseBackoff time.Duration
	maxBackoff  time.Duration
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(f *Fetcher) {
		f.httpClient = c
	}
}

// WithMaxAttempts sets the bounded retry budget for rate-limited downloads.
func WithMaxAttempts(n int) Option {
	return func(f *Fetcher) {
		if n > 0 {
			f.maxAttempts = n
		}
	}
}

// WithBaseBackoff sets the initial backoff duration for retries.
func WithBaseBackoff(d time.Duration) Option {
	return func(f *Fetcher) {
		if d > 0 {
			f.baseBackoff = d
		}
	}
}

// New creates a Fetcher with defaults suitable for narration-sized clips.
func New(opts ...Option) *Fetcher {
	f := &Fetcher{
		httpClient:  &http.Client{Timeout: 120 * time.Second},
		maxAttempts: 6,
		baseBackoff: 800 * time.Millisecond,
		maxBackoff:  15 * time.Second,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch downloads the clip at url and returns its bytes. Any audio container
// is accepted; format differences are handled by downstream normalization.
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	backoff := f.baseBackoff
	var lastErr error

	for attempt := 0; attempt < f.maxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("fetch: context cancelled: %w", ctx.Err())
			case <-time.After(backoff):
			}
			backoff *= 2
			if backoff > f.maxBackoff {
				backoff = f.maxBackoff
			}
		}

		data, err := f.doFetch(ctx, url)
		if err == nil {
			return data, nil
		}
		if !errors.Is(err, ErrRateLimited) {
			return nil, err
		}
		lastErr = err
	}

	return nil, fmt.Errorf("fetch: retry budget exhausted for %s: %w", url, lastErr)
}

func (f *Fetcher) doFetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch: create request: %w", err)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: %s: %w", url, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusTooManyRequests {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, fmt.Errorf("%w: %s", ErrRateLimited, string(body))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, fmt.Errorf("%w: %s returned status %d: %s", ErrRequestFailed, url, resp.StatusCode, string(body))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("fetch: read body: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyBody, url)
	}

	return data, nil
}
