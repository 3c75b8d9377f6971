// Package mirror sends HTTP requests to an ordered list of equivalent base
// URLs, moving to the next one when an attempt fails at the transport level
// or the server answers with a 5xx status.
package mirror

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const (
	// DefaultAttemptTimeout bounds a single mirror attempt.
	DefaultAttemptTimeout = 10 * time.Second
	maxResponseSize       = 1 << 20 // 1MB
)

var (
	// ErrNoMirrors is returned by Do when the pool has no base URLs.
	ErrNoMirrors = errors.New("no mirrors configured")
	// ErrAllMirrorsExhausted matches any *ExhaustedError.
	ErrAllMirrorsExhausted = errors.New("all mirrors exhausted")
)

// StatusError records a 5xx answer from a mirror.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("server error (HTTP %d)", e.Code)
	}
	return fmt.Sprintf("server error (HTTP %d): %s", e.Code, e.Body)
}

// ExhaustedError is returned when every mirror failed. Err is the failure
// observed on Mirror, the last one attempted.
type ExhaustedError struct {
	Mirror   string
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("all %d mirrors failed, last %s: %v", e.Attempts, e.Mirror, e.Err)
}

func (e *ExhaustedError) Unwrap() error { return e.Err }

func (e *ExhaustedError) Is(target error) bool { return target == ErrAllMirrorsExhausted }

// Response is a fully read answer from one mirror.
type Response struct {
	Mirror     string
	StatusCode int
	Body       []byte
}

// Pool tries its mirrors strictly in order, one at a time.
type Pool struct {
	mirrors        []string
	attemptTimeout time.Duration
	httpClient     *http.Client
}

// New creates a Pool over the given base URLs. A non-positive attemptTimeout
// selects DefaultAttemptTimeout.
func New(mirrors []string, attemptTimeout time.Duration) *Pool {
	return NewWithClient(mirrors, attemptTimeout, &http.Client{})
}

// NewWithClient is New with a caller-supplied http.Client.
func NewWithClient(mirrors []string, attemptTimeout time.Duration, hc *http.Client) *Pool {
	if attemptTimeout <= 0 {
		attemptTimeout = DefaultAttemptTimeout
	}
	cleaned := make([]string, 0, len(mirrors))
	for _, m := range mirrors {
		m = strings.TrimRight(strings.TrimSpace(m), "/")
		if m != "" {
			cleaned = append(cleaned, m)
		}
	}
	return &Pool{mirrors: cleaned, attemptTimeout: attemptTimeout, httpClient: hc}
}

// Mirrors returns a copy of the base URLs in attempt order.
func (p *Pool) Mirrors() []string {
	out := make([]string, len(p.mirrors))
	copy(out, p.mirrors)
	return out
}

// Do sends method+path to each mirror in turn. Any response below 500 is
// returned immediately, including 4xx. A nil body sends no payload; otherwise
// it is sent as JSON. Cancelling ctx stops the fallback at once and returns
// ctx.Err().
func (p *Pool) Do(ctx context.Context, method, path string, body []byte) (*Response, error) {
	if len(p.mirrors) == 0 {
		return nil, ErrNoMirrors
	}

	var lastErr error
	var lastMirror string
	for _, base := range p.mirrors {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		resp, err := p.attempt(ctx, base, method, path, body)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			slog.Warn("mirror attempt failed", "mirror", base, "path", path, "error", err)
			lastErr, lastMirror = err, base
			continue
		}

		if resp.StatusCode >= http.StatusInternalServerError {
			slog.Warn("mirror returned server error", "mirror", base, "path", path, "status", resp.StatusCode)
			lastErr = &StatusError{Code: resp.StatusCode, Body: truncate(string(resp.Body), 200)}
			lastMirror = base
			continue
		}

		return resp, nil
	}

	return nil, &ExhaustedError{Mirror: lastMirror, Attempts: len(p.mirrors), Err: lastErr}
}

func (p *Pool) attempt(ctx context.Context, base, method, path string, body []byte) (*Response, error) {
	ctx, cancel := context.WithTimeout(ctx, p.attemptTimeout)
	defer cancel()

	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, base+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	return &Response{Mirror: base, StatusCode: resp.StatusCode, Body: data}, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
