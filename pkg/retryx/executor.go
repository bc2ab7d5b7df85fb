// Package retryx executes a single outbound call with
// classification-based retries and exponential backoff.
package retryx

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net"
	"net/http"
	"strconv"
	"strings"
	"syscall"
	"time"
)

// Class is the failure classification of one attempt.
type Class int

const (
	// ClassPermanent errors propagate immediately.
	ClassPermanent Class = iota
	// ClassFatal errors (auth and method failures) propagate immediately
	// and should abort the whole job at the caller.
	ClassFatal
	// ClassRateLimited errors retry, preferring the server-provided delay.
	ClassRateLimited
	// ClassTransient errors retry with computed backoff.
	ClassTransient
)

// HTTPError carries a non-2xx response through the executor so attempts can
// be classified by status code.
type HTTPError struct {
	StatusCode int
	RetryAfter string // raw Retry-After header value, may be empty
	Body       string
}

// errorBodyMaxLen bounds how much response body ends up in logs and wrapped
// error chains.
const errorBodyMaxLen = 256

func (e *HTTPError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("http status %d", e.StatusCode)
	}

	body := e.Body
	if len(body) > errorBodyMaxLen {
		body = body[:errorBodyMaxLen] + "..."
	}

	return fmt.Sprintf("http status %d: %s", e.StatusCode, body)
}

// Observer is notified before every retry wait. Logging only, it must not
// alter control flow.
type Observer func(attempt int, delay time.Duration, err error)

type Executor struct {
	maxAttempts int
	baseDelay   time.Duration
	maxDelay    time.Duration
	observer    Observer
	jitter      func() float64
}

type Option func(*Executor)

func WithMaxAttempts(n int) Option {
	return func(e *Executor) {
		if n > 0 {
			e.maxAttempts = n
		}
	}
}

func WithBaseDelay(d time.Duration) Option {
	return func(e *Executor) { e.baseDelay = d }
}

func WithMaxDelay(d time.Duration) Option {
	return func(e *Executor) { e.maxDelay = d }
}

func WithObserver(observer Observer) Option {
	return func(e *Executor) { e.observer = observer }
}

// WithJitter overrides the jitter source. Tests use it for determinism.
func WithJitter(jitter func() float64) Option {
	return func(e *Executor) { e.jitter = jitter }
}

func New(opts ...Option) *Executor {
	e := &Executor{
		maxAttempts: 3,
		baseDelay:   500 * time.Millisecond,
		maxDelay:    30 * time.Second,
		jitter:      rand.Float64,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Do runs call until it succeeds, the failure classifies as non-retryable,
// or the attempt budget is exhausted. The last error is propagated as is.
func (e *Executor) Do(ctx context.Context, call func(ctx context.Context) error) error {
	var lastErr error

	for attempt := 1; attempt <= e.maxAttempts; attempt++ {
		lastErr = call(ctx)
		if lastErr == nil {
			return nil
		}

		class := Classify(lastErr)
		if class != ClassRateLimited && class != ClassTransient {
			return lastErr
		}

		if attempt == e.maxAttempts {
			break
		}

		delay := e.delay(attempt, lastErr, class)

		if e.observer != nil {
			e.observer(attempt, delay, lastErr)
		}

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return lastErr
}

// Do runs call through the executor and returns its typed result.
func Do[T any](ctx context.Context, e *Executor, call func(ctx context.Context) (T, error)) (T, error) {
	var result T

	err := e.Do(ctx, func(ctx context.Context) error {
		var callErr error
		result, callErr = call(ctx)
		return callErr
	})

	return result, err
}

func (e *Executor) delay(attempt int, err error, class Class) time.Duration {
	if class == ClassRateLimited {
		if d, ok := retryAfter(err); ok {
			return d
		}
	}

	jitter := 0.8 + 0.4*e.jitter()
	delay := time.Duration(float64(e.baseDelay) * math.Pow(2, float64(attempt-1)) * jitter)

	if delay > e.maxDelay {
		delay = e.maxDelay
	}

	return delay
}

// Classify maps an attempt error to its retry class.
func Classify(err error) Class {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		switch {
		case httpErr.StatusCode == http.StatusUnauthorized,
			httpErr.StatusCode == http.StatusForbidden,
			httpErr.StatusCode == http.StatusMethodNotAllowed:
			return ClassFatal
		case httpErr.StatusCode == http.StatusTooManyRequests:
			return ClassRateLimited
		case httpErr.StatusCode >= http.StatusInternalServerError:
			return ClassTransient
		default:
			return ClassPermanent
		}
	}

	if isConnectionError(err) {
		return ClassTransient
	}

	return ClassPermanent
}

// IsFatal reports whether err must abort the whole job.
func IsFatal(err error) bool {
	return Classify(err) == ClassFatal
}

func isConnectionError(err error) bool {
	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ECONNABORTED) ||
		errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	// url.Error wraps the transport failure with its text only.
	msg := err.Error()

	return strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "request canceled") ||
		strings.Contains(msg, "timeout")
}

// retryAfter parses the Retry-After payload of a rate-limited response,
// either delay seconds or an HTTP date.
func retryAfter(err error) (time.Duration, bool) {
	var httpErr *HTTPError
	if !errors.As(err, &httpErr) || httpErr.RetryAfter == "" {
		return 0, false
	}

	if seconds, parseErr := strconv.Atoi(httpErr.RetryAfter); parseErr == nil {
		if seconds < 0 {
			return 0, false
		}
		return time.Duration(seconds) * time.Second, true
	}

	if at, parseErr := http.ParseTime(httpErr.RetryAfter); parseErr == nil {
		d := time.Until(at)
		if d < 0 {
			d = 0
		}
		return d, true
	}

	return 0, false
}
