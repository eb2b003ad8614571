// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package httputil

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	// Use a tiny base delay so tests finish quickly.
	RetryBaseDelay = time.Millisecond
}

// failingServer answers the first failures requests with status, then 200.
func failingServer(t *testing.T, status, failures int, calls *int32) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if n := atomic.AddInt32(calls, 1); int(n) <= failures {
			w.WriteHeader(status)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(ts.Close)
	return ts
}

func get(t *testing.T, ctx context.Context, ts *httptest.Server, maxRetries int) (*http.Response, error) {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, ts.URL, nil)
	require.NoError(t, err)
	return DoWithRetry(ctx, ts.Client(), req, maxRetries)
}

func TestDoWithRetry(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		failures   int
		maxRetries int
		wantStatus int
		wantCalls  int32
	}{
		{"immediate success", http.StatusOK, 0, 5, http.StatusOK, 1},
		{"rate limited then ok", http.StatusTooManyRequests, 2, 5, http.StatusOK, 3},
		{"unavailable then ok", http.StatusServiceUnavailable, 1, 5, http.StatusOK, 2},
		{"retries exhausted", http.StatusTooManyRequests, 100, 3, http.StatusTooManyRequests, 4},
		{"default retries", http.StatusServiceUnavailable, 100, 0, http.StatusServiceUnavailable, 6},
		{"not found is final", http.StatusNotFound, 100, 5, http.StatusNotFound, 1},
		{"server error is final", http.StatusInternalServerError, 100, 5, http.StatusInternalServerError, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls int32
			ts := failingServer(t, tt.status, tt.failures, &calls)

			resp, err := get(t, context.Background(), ts, tt.maxRetries)
			require.NoError(t, err)
			defer resp.Body.Close()

			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			assert.Equal(t, tt.wantCalls, atomic.LoadInt32(&calls))
		})
	}
}

func TestDoWithRetryHonorsRetryAfter(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	// A base delay this long would time the test out if Retry-After were ignored.
	old := RetryBaseDelay
	RetryBaseDelay = time.Hour
	defer func() { RetryBaseDelay = old }()

	resp, err := get(t, context.Background(), ts, 5)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestDoWithRetryContextCancelled(t *testing.T) {
	var calls int32
	ts := failingServer(t, http.StatusTooManyRequests, 100, &calls)

	old := RetryBaseDelay
	RetryBaseDelay = 500 * time.Millisecond
	defer func() { RetryBaseDelay = old }()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err := get(t, ctx, ts, 5)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRetryDelay(t *testing.T) {
	assert.Equal(t, 3*time.Second, RetryDelay("3", 0))
	assert.Equal(t, time.Duration(0), RetryDelay("0", 4))
	assert.Equal(t, MaxRetryAfter, RetryDelay("86400", 0))

	assert.Equal(t, RetryBaseDelay, RetryDelay("", 0))
	assert.Equal(t, 4*RetryBaseDelay, RetryDelay("", 2))
	assert.Equal(t, 2*RetryBaseDelay, RetryDelay("Wed, 21 Oct 2015 07:28:00 GMT", 1))
}
