package retryx_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"catalog_sync/pkg/retryx"
)

func TestClassify(t *testing.T) {
	rq := require.New(t)

	testCases := []struct {
		name  string
		err   error
		class retryx.Class
	}{
		{
			name:  "401 is fatal",
			err:   &retryx.HTTPError{StatusCode: http.StatusUnauthorized},
			class: retryx.ClassFatal,
		},
		{
			name:  "403 is fatal",
			err:   &retryx.HTTPError{StatusCode: http.StatusForbidden},
			class: retryx.ClassFatal,
		},
		{
			name:  "405 is fatal",
			err:   &retryx.HTTPError{StatusCode: http.StatusMethodNotAllowed},
			class: retryx.ClassFatal,
		},
		{
			name:  "429 is rate limited",
			err:   &retryx.HTTPError{StatusCode: http.StatusTooManyRequests},
			class: retryx.ClassRateLimited,
		},
		{
			name:  "500 is transient",
			err:   &retryx.HTTPError{StatusCode: http.StatusInternalServerError},
			class: retryx.ClassTransient,
		},
		{
			name:  "503 is transient",
			err:   &retryx.HTTPError{StatusCode: http.StatusServiceUnavailable},
			class: retryx.ClassTransient,
		},
		{
			name:  "404 is permanent",
			err:   &retryx.HTTPError{StatusCode: http.StatusNotFound},
			class: retryx.ClassPermanent,
		},
		{
			name:  "unexpected EOF is transient",
			err:   fmt.Errorf("call: %w", io.ErrUnexpectedEOF),
			class: retryx.ClassTransient,
		},
		{
			name:  "connection reset is transient",
			err:   errors.New("read tcp: connection reset by peer"),
			class: retryx.ClassTransient,
		},
		{
			name:  "plain error is permanent",
			err:   errors.New("boom"),
			class: retryx.ClassPermanent,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(*testing.T) {
			rq.Equal(tc.class, retryx.Classify(tc.err))
		})
	}
}

func TestHTTPErrorMessageCarriesBody(t *testing.T) {
	rq := require.New(t)

	rq.Equal("http status 500",
		(&retryx.HTTPError{StatusCode: http.StatusInternalServerError}).Error())

	rq.Equal(`http status 422: {"error":"title too long"}`,
		(&retryx.HTTPError{
			StatusCode: http.StatusUnprocessableEntity,
			Body:       `{"error":"title too long"}`,
		}).Error())

	long := strings.Repeat("x", 1000)
	message := (&retryx.HTTPError{StatusCode: http.StatusBadGateway, Body: long}).Error()
	rq.Less(len(message), 300)
	rq.True(strings.HasSuffix(message, "..."))
}

func TestDoNoRetryOnUnauthorized(t *testing.T) {
	rq := require.New(t)

	var calls atomic.Int32

	httpServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer httpServer.Close()

	executor := retryx.New(retryx.WithMaxAttempts(5))

	err := executor.Do(context.Background(), func(ctx context.Context) error {
		return get(ctx, httpServer.URL)
	})

	var httpErr *retryx.HTTPError

	rq.ErrorAs(err, &httpErr)
	rq.Equal(http.StatusUnauthorized, httpErr.StatusCode)
	rq.Equal(int32(1), calls.Load())
	rq.True(retryx.IsFatal(err))
}

func TestDoRetryAfterHeader(t *testing.T) {
	rq := require.New(t)

	var calls atomic.Int32

	httpServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "2")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}

		w.WriteHeader(http.StatusOK)
	}))
	defer httpServer.Close()

	var observedDelay time.Duration

	executor := retryx.New(
		retryx.WithMaxAttempts(3),
		retryx.WithObserver(func(_ int, delay time.Duration, _ error) {
			observedDelay = delay
		}),
	)

	start := time.Now()

	err := executor.Do(context.Background(), func(ctx context.Context) error {
		return get(ctx, httpServer.URL)
	})

	rq.NoError(err)
	rq.Equal(int32(2), calls.Load())
	rq.Equal(2*time.Second, observedDelay)
	rq.GreaterOrEqual(time.Since(start), 2*time.Second)
}

func TestDoExhaustsAttempts(t *testing.T) {
	rq := require.New(t)

	var calls atomic.Int32

	executor := retryx.New(
		retryx.WithMaxAttempts(3),
		retryx.WithBaseDelay(time.Millisecond),
		retryx.WithJitter(func() float64 { return 0.5 }),
	)

	err := executor.Do(context.Background(), func(context.Context) error {
		calls.Add(1)
		return &retryx.HTTPError{StatusCode: http.StatusInternalServerError}
	})

	var httpErr *retryx.HTTPError

	rq.ErrorAs(err, &httpErr)
	rq.Equal(http.StatusInternalServerError, httpErr.StatusCode)
	rq.Equal(int32(3), calls.Load())
}

func TestDoBackoffCapped(t *testing.T) {
	rq := require.New(t)

	var delays []time.Duration

	executor := retryx.New(
		retryx.WithMaxAttempts(4),
		retryx.WithBaseDelay(2*time.Millisecond),
		retryx.WithMaxDelay(5*time.Millisecond),
		retryx.WithJitter(func() float64 { return 1 }), // jitter factor 1.2
		retryx.WithObserver(func(_ int, delay time.Duration, _ error) {
			delays = append(delays, delay)
		}),
	)

	err := executor.Do(context.Background(), func(context.Context) error {
		return &retryx.HTTPError{StatusCode: http.StatusBadGateway}
	})

	rq.Error(err)
	rq.Len(delays, 3)

	// base 2ms, doubling with jitter 1.2: 2.4ms, 4.8ms, then capped.
	rq.Equal(2400*time.Microsecond, delays[0])
	rq.Equal(4800*time.Microsecond, delays[1])
	rq.Equal(5*time.Millisecond, delays[2])
}

func TestDoContextCancelled(t *testing.T) {
	rq := require.New(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	executor := retryx.New(retryx.WithMaxAttempts(2), retryx.WithBaseDelay(time.Minute))

	err := executor.Do(ctx, func(context.Context) error {
		return &retryx.HTTPError{StatusCode: http.StatusInternalServerError}
	})

	rq.ErrorIs(err, context.Canceled)
}

func TestDoTyped(t *testing.T) {
	rq := require.New(t)

	executor := retryx.New(retryx.WithMaxAttempts(2), retryx.WithBaseDelay(time.Millisecond))

	var calls int

	value, err := retryx.Do(context.Background(), executor, func(context.Context) (string, error) {
		calls++
		if calls == 1 {
			return "", &retryx.HTTPError{StatusCode: http.StatusBadGateway}
		}
		return "ok", nil
	})

	rq.NoError(err)
	rq.Equal("ok", value)
}

func get(ctx context.Context, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return err
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}

	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &retryx.HTTPError{
			StatusCode: resp.StatusCode,
			RetryAfter: resp.Header.Get("Retry-After"),
		}
	}

	return nil
}
