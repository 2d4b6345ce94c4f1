package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/theoremus-urban-solutions/gtfsrt-delay-features/internal/logging"
)

// Metrics receives one call per HTTP attempt, backoff retry and 202 poll.
type Metrics interface {
	FetchAttempt()
	FetchRetry()
	FetchPoll()
}

// Options configures a Client. Zero values fall back to the defaults below.
type Options struct {
	Timeout      time.Duration
	MaxRetries   int
	PollInterval time.Duration
	MaxPolls     int
	HTTPClient   *http.Client
	Metrics      Metrics
}

const (
	defaultTimeout      = 20 * time.Second
	defaultPollInterval = time.Minute
)

// Client fetches payloads from HTTP upstreams or local files.
type Client struct {
	httpClient   *http.Client
	timeout      time.Duration
	maxRetries   int
	pollInterval time.Duration
	maxPolls     int
	metrics      Metrics
}

// NewClient creates a new fetch client
func NewClient(opts Options) *Client {
	c := &Client{
		httpClient:   opts.HTTPClient,
		timeout:      opts.Timeout,
		maxRetries:   opts.MaxRetries,
		pollInterval: opts.PollInterval,
		maxPolls:     opts.MaxPolls,
		metrics:      opts.Metrics,
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{}
	}
	if c.timeout <= 0 {
		c.timeout = defaultTimeout
	}
	if c.pollInterval <= 0 {
		c.pollInterval = defaultPollInterval
	}
	return c
}

type response struct {
	status int
	body   []byte
}

var errStillPending = errors.New("upstream still preparing payload")

// Fetch returns the complete body behind urlOrPath. Values without an
// http:// or https:// prefix are read from the local filesystem.
func (c *Client) Fetch(ctx context.Context, urlOrPath string) ([]byte, error) {
	if urlOrPath == "" {
		return nil, errors.New("fetch: empty url")
	}
	if !strings.HasPrefix(urlOrPath, "http://") && !strings.HasPrefix(urlOrPath, "https://") {
		return os.ReadFile(urlOrPath)
	}

	safe := Redact(urlOrPath)
	res, err := c.getWithBackoff(ctx, urlOrPath, safe)
	if err != nil {
		return nil, err
	}
	switch res.status {
	case http.StatusOK:
		return res.body, nil
	case http.StatusAccepted:
		logging.Logf("fetch: %s accepted, polling every %s (max %d polls)", safe, c.pollInterval, c.maxPolls)
		return c.poll(ctx, urlOrPath, safe)
	default:
		return nil, fmt.Errorf("%w: HTTP %d from %s", ErrFetchRejected, res.status, safe)
	}
}

func (c *Client) getWithBackoff(ctx context.Context, rawURL, safe string) (response, error) {
	b := &backoff.ExponentialBackOff{
		InitialInterval:     c.timeout,
		RandomizationFactor: 0,
		Multiplier:          2,
		MaxInterval:         24 * time.Hour,
		MaxElapsedTime:      0,
		Stop:                backoff.Stop,
		Clock:               backoff.SystemClock,
	}
	b.Reset()

	op := func() (response, error) {
		res, err := c.attempt(ctx, rawURL)
		if err == nil {
			return res, nil
		}
		if c.isTimeout(ctx, err) {
			return response{}, err
		}
		return response{}, backoff.Permanent(fmt.Errorf("failed to fetch %s: %w", safe, err))
	}
	notify := func(err error, wait time.Duration) {
		if c.metrics != nil {
			c.metrics.FetchRetry()
		}
		logging.Logf("fetch: %s timed out (%v), retrying in %s", safe, err, wait)
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(max(c.maxRetries, 0))), ctx)
	res, err := backoff.RetryNotifyWithData(op, policy, notify)
	if err != nil {
		if c.isTimeout(ctx, err) {
			return response{}, fmt.Errorf("%w: %s after %d retries", ErrFetchTimeout, safe, c.maxRetries)
		}
		return response{}, err
	}
	return res, nil
}

// poll waits one interval before every request, up to maxPolls requests.
func (c *Client) poll(ctx context.Context, rawURL, safe string) ([]byte, error) {
	if c.maxPolls <= 0 {
		return nil, fmt.Errorf("%w: %s still pending and polling is disabled", ErrFetchTimeout, safe)
	}
	t := time.NewTimer(c.pollInterval)
	select {
	case <-ctx.Done():
		t.Stop()
		return nil, ctx.Err()
	case <-t.C:
	}

	polls := 0
	op := func() ([]byte, error) {
		polls++
		if c.metrics != nil {
			c.metrics.FetchPoll()
		}
		res, err := c.attempt(ctx, rawURL)
		if err != nil {
			if c.isTimeout(ctx, err) {
				return nil, err
			}
			return nil, backoff.Permanent(fmt.Errorf("failed to fetch %s: %w", safe, err))
		}
		switch res.status {
		case http.StatusOK:
			return res.body, nil
		case http.StatusAccepted:
			return nil, errStillPending
		default:
			return nil, backoff.Permanent(fmt.Errorf("%w: HTTP %d from %s", ErrFetchRejected, res.status, safe))
		}
	}
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(c.pollInterval), uint64(c.maxPolls-1)), ctx)
	body, err := backoff.RetryNotifyWithData(op, policy, func(err error, wait time.Duration) {
		logging.Logf("fetch: poll %d/%d for %s: %v", polls, c.maxPolls, safe, err)
	})
	if err != nil {
		if errors.Is(err, errStillPending) || c.isTimeout(ctx, err) {
			return nil, fmt.Errorf("%w: %s not ready after %d polls", ErrFetchTimeout, safe, polls)
		}
		return nil, err
	}
	return body, nil
}

// attempt performs one GET and reads the whole body inside the timeout.
func (c *Client) attempt(ctx context.Context, rawURL string) (response, error) {
	if c.metrics != nil {
		c.metrics.FetchAttempt()
	}
	actx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(actx, http.MethodGet, rawURL, nil)
	if err != nil {
		return response{}, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return response{}, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return response{}, err
	}
	return response{status: resp.StatusCode, body: body}, nil
}

// isTimeout reports attempt-level timeouts; cancellation of the caller's
// context is never treated as one.
func (c *Client) isTimeout(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// Redact hides API keys in a URL so it can be logged.
func Redact(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	q := u.Query()
	changed := false
	for _, k := range []string{"key", "api_key", "apikey"} {
		if q.Has(k) {
			q.Set(k, "REDACTED")
			changed = true
		}
	}
	if !changed {
		return rawURL
	}
	u.RawQuery = q.Encode()
	return u.String()
}
