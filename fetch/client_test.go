package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingMetrics struct {
	attempts, retries, polls atomic.Int64
}

func (m *countingMetrics) FetchAttempt() { m.attempts.Add(1) }
func (m *countingMetrics) FetchRetry()   { m.retries.Add(1) }
func (m *countingMetrics) FetchPoll()    { m.polls.Add(1) }

func fastOptions(m Metrics) Options {
	return Options{
		Timeout:      50 * time.Millisecond,
		MaxRetries:   3,
		PollInterval: 5 * time.Millisecond,
		MaxPolls:     3,
		Metrics:      m,
	}
}

// stall blocks until the client gives up on the request.
func stall(r *http.Request) {
	select {
	case <-r.Context().Done():
	case <-time.After(2 * time.Second):
	}
}

func TestFetch_OK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("payload"))
	}))
	defer srv.Close()

	body, err := NewClient(fastOptions(nil)).Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(body))
}

func TestFetch_RetriesTimeouts(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 2 {
			stall(r)
			return
		}
		_, _ = w.Write([]byte("late payload"))
	}))
	defer srv.Close()

	m := &countingMetrics{}
	start := time.Now()
	body, err := NewClient(fastOptions(m)).Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "late payload", string(body))
	assert.EqualValues(t, 3, calls.Load())
	assert.EqualValues(t, 3, m.attempts.Load())
	assert.EqualValues(t, 2, m.retries.Load())
	// two timed out attempts plus waits of 1x and 2x the timeout
	assert.GreaterOrEqual(t, time.Since(start), 250*time.Millisecond)
}

func TestFetch_TimeoutExhausted(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		stall(r)
	}))
	defer srv.Close()

	opts := fastOptions(nil)
	opts.Timeout = 20 * time.Millisecond
	opts.MaxRetries = 2
	_, err := NewClient(opts).Fetch(context.Background(), srv.URL)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrFetchTimeout), "got %v", err)
	assert.EqualValues(t, 3, calls.Load())
}

func TestFetch_AcceptedThenReady(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 2 {
			w.WriteHeader(http.StatusAccepted)
			return
		}
		_, _ = w.Write([]byte("archive"))
	}))
	defer srv.Close()

	m := &countingMetrics{}
	body, err := NewClient(fastOptions(m)).Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "archive", string(body))
	assert.EqualValues(t, 3, calls.Load())
	assert.EqualValues(t, 2, m.polls.Load())
}

func TestFetch_AcceptedForever(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	_, err := NewClient(fastOptions(nil)).Fetch(context.Background(), srv.URL)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrFetchTimeout), "got %v", err)
	// initial request plus MaxPolls polls
	assert.EqualValues(t, 4, calls.Load())
}

func TestFetch_Rejected(t *testing.T) {
	tests := []struct {
		name   string
		status int
	}{
		{name: "not found", status: http.StatusNotFound},
		{name: "unauthorized", status: http.StatusUnauthorized},
		{name: "server error", status: http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int64
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			_, err := NewClient(fastOptions(nil)).Fetch(context.Background(), srv.URL+"?key=secret")
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrFetchRejected))
			assert.NotContains(t, err.Error(), "secret")
			assert.EqualValues(t, 1, calls.Load(), "rejections are not retried")
		})
	}
}

func TestFetch_RejectedWhilePolling(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusAccepted)
			return
		}
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := NewClient(fastOptions(nil)).Fetch(context.Background(), srv.URL)
	assert.True(t, errors.Is(err, ErrFetchRejected), "got %v", err)
	assert.EqualValues(t, 2, calls.Load())
}

func TestFetch_ContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		stall(r)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewClient(fastOptions(nil)).Fetch(ctx, srv.URL)
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrFetchTimeout))
}

func TestFetch_LocalFile(t *testing.T) {
	p := filepath.Join(t.TempDir(), "feed.pb")
	require.NoError(t, os.WriteFile(p, []byte{0x0a, 0x00}, 0o644))

	body, err := NewClient(Options{}).Fetch(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x0a, 0x00}, body)

	_, err = NewClient(Options{}).Fetch(context.Background(), "")
	assert.Error(t, err)
}

func TestRedact(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"https://api.example.com/gtfs/xt?date=2024-01-01&key=abc", "https://api.example.com/gtfs/xt?date=2024-01-01&key=REDACTED"},
		{"https://api.example.com/gtfs/xt.zip", "https://api.example.com/gtfs/xt.zip"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Redact(tt.in))
	}
}
