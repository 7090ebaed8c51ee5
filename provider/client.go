package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

// ClientOptions tunes the HTTP client shared by the API sources.
type ClientOptions struct {
	Timeout         time.Duration `json:"timeout" yaml:"timeout" default:"10s"`
	RequestsPerSec  float64       `json:"requests_per_sec" yaml:"requests_per_sec" default:"5"`
	Burst           int           `json:"burst" yaml:"burst" default:"5"`
	MaxRetries      int           `json:"max_retries" yaml:"max_retries" default:"3"`
	MaxRetryTimeout time.Duration `json:"max_retry_timeout" yaml:"max_retry_timeout" default:"20s"`
	BreakerFailures uint32        `json:"breaker_failures" yaml:"breaker_failures" default:"3"`
	BreakerTimeout  time.Duration `json:"breaker_timeout" yaml:"breaker_timeout" default:"60s"`
}

func (o *ClientOptions) applyDefaults() {
	if o.Timeout == 0 {
		o.Timeout = 10 * time.Second
	}
	if o.RequestsPerSec == 0 {
		o.RequestsPerSec = 5
	}
	if o.Burst == 0 {
		o.Burst = 5
	}
	if o.MaxRetryTimeout == 0 {
		o.MaxRetryTimeout = 20 * time.Second
	}
	if o.BreakerFailures == 0 {
		o.BreakerFailures = 3
	}
	if o.BreakerTimeout == 0 {
		o.BreakerTimeout = 60 * time.Second
	}
}

// HTTPStatusError is returned for any non-200 response.
type HTTPStatusError struct {
	StatusCode int
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("http %d: %s", e.StatusCode, e.Body)
}

// client rate limits, retries and circuit-breaks GET requests.
type client struct {
	http       *http.Client
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker
	maxRetries int
	maxElapsed time.Duration
}

func newClient(name string, opts ClientOptions) *client {
	opts.applyDefaults()

	st := gobreaker.Settings{Name: name, Timeout: opts.BreakerTimeout}
	failures := opts.BreakerFailures
	st.ReadyToTrip = func(c gobreaker.Counts) bool {
		return c.ConsecutiveFailures >= failures
	}

	return &client{
		http:       &http.Client{Timeout: opts.Timeout},
		limiter:    rate.NewLimiter(rate.Limit(opts.RequestsPerSec), opts.Burst),
		breaker:    gobreaker.NewCircuitBreaker(st),
		maxRetries: opts.MaxRetries,
		maxElapsed: opts.MaxRetryTimeout,
	}
}

// get returns the body of a 200 response. 4xx responses are not retried.
func (c *client) get(ctx context.Context, url string) ([]byte, error) {
	out, err := c.breaker.Execute(func() (interface{}, error) {
		return c.getWithRetry(ctx, url)
	})
	if err != nil {
		return nil, err
	}
	return out.([]byte), nil
}

func (c *client) getWithRetry(ctx context.Context, url string) ([]byte, error) {
	var body []byte
	op := func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("creating request: %w", err))
		}
		resp, err := c.http.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		b, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("reading response body: %w", err)
		}
		if resp.StatusCode != http.StatusOK {
			serr := &HTTPStatusError{StatusCode: resp.StatusCode, Body: string(b)}
			if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
				return backoff.Permanent(serr)
			}
			return serr
		}
		body = b
		return nil
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = 100 * time.Millisecond
	eb.MaxElapsedTime = c.maxElapsed

	var b backoff.BackOff = eb
	if c.maxRetries > 0 {
		b = backoff.WithMaxRetries(eb, uint64(c.maxRetries))
	}
	if err := backoff.Retry(op, backoff.WithContext(b, ctx)); err != nil {
		return nil, err
	}
	return body, nil
}

func (c *client) getJSON(ctx context.Context, url string, v any) error {
	body, err := c.get(ctx, url)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("parsing JSON: %w", err)
	}
	return nil
}
