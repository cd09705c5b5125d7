// Package httpsource fetches JSON documents from authenticated HTTP APIs for API-kind tasks.
//
// Each request authenticates through the strategy registered for the task's auth key, waits on a
// shared rate limiter and runs behind a circuit breaker. Connectivity failures and 5xx responses are
// transient and retried by the retry executor; other failures are returned as data fetch errors.
package httpsource

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	model "github.com/tigerroll/surfin-dq/pkg/dq/core/domain/model"
	"github.com/tigerroll/surfin-dq/pkg/dq/engine/retry"
	"github.com/tigerroll/surfin-dq/pkg/dq/support/util/exception"
	"github.com/tigerroll/surfin-dq/pkg/dq/support/util/logger"
)

const moduleName = "httpsource"

// Options tunes the hardened HTTP client.
type Options struct {
	Timeout            time.Duration
	RateLimitPerSecond float64 // 0 disables the limiter.
	RateBurst          int
	BreakerMaxFailures int
	BreakerOpenTimeout time.Duration
}

// Client implements diagnose.APISource.
type Client struct {
	http       *http.Client
	strategies map[model.AuthKey]Authenticator
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker
	executor   *retry.Executor
}

// NewClient creates a new Client.
//
// Parameters:
//
//	opts: Timeout, rate limit and circuit breaker settings.
//	strategies: Authenticators by auth key.
//	executor: Retry executor wrapped around each fetch.
//
// Returns:
//
//	A Client ready to fetch from any base URL.
func NewClient(opts Options, strategies map[model.AuthKey]Authenticator, executor *retry.Executor) *Client {
	c := &Client{
		http:       &http.Client{Timeout: opts.Timeout},
		strategies: strategies,
		executor:   executor,
	}
	if opts.RateLimitPerSecond > 0 {
		burst := opts.RateBurst
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(opts.RateLimitPerSecond), burst)
	}

	maxFailures := uint32(5)
	if opts.BreakerMaxFailures > 0 {
		maxFailures = uint32(opts.BreakerMaxFailures)
	}
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "http-source",
		Timeout: opts.BreakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !exception.IsTransient(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warnf("Circuit breaker '%s' changed from %s to %s.", name, from, to)
		},
	})
	return c
}

// WithHTTPClient replaces the underlying client, e.g. with an httptest server's client.
func (c *Client) WithHTTPClient(h *http.Client) *Client {
	c.http = h
	return c
}

// Fetch implements diagnose.APISource.
func (c *Client) Fetch(ctx context.Context, baseURL string, authKey model.AuthKey) (interface{}, error) {
	auth, ok := c.strategies[authKey]
	if !ok {
		return nil, exception.NewConfigurationError(moduleName,
			fmt.Sprintf("Unsupported auth key detected: %s, supported auth: %s.", authKey, supportedKeys(c.strategies)), nil)
	}
	return retry.DoValue(ctx, c.executor, "fetch "+baseURL, func(ctx context.Context) (interface{}, error) {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}
		out, err := c.breaker.Execute(func() (interface{}, error) {
			return c.fetch(ctx, baseURL, auth)
		})
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, exception.NewTransientError(moduleName, fmt.Sprintf("Requests to '%s' are suspended", baseURL), err)
		}
		return out, err
	})
}

func (c *Client) fetch(ctx context.Context, baseURL string, auth Authenticator) (interface{}, error) {
	client, err := auth.Client(ctx, c.http)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL, nil)
	if err != nil {
		return nil, exception.NewConfigurationError(moduleName, fmt.Sprintf("Invalid base URL '%s'", baseURL), err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	logger.Debugf("GET %s (%s auth)", baseURL, auth.AuthType())
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if err := checkStatus(resp, baseURL); err != nil {
		return nil, err
	}

	var data interface{}
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, exception.NewDQErrorf(moduleName, exception.KindDataFetch, "Response of '%s' is not valid JSON", baseURL, err)
	}
	return data, nil
}

// checkStatus classifies a non-2xx response: 5xx and 429 are transient, everything else is a fetch error.
func checkStatus(resp *http.Response, target string) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	msg := fmt.Sprintf("%s returned %s: %s", target, resp.Status, string(snippet))
	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		return exception.NewTransientError(moduleName, msg, nil)
	}
	return exception.NewDQError(moduleName, exception.KindDataFetch, msg, nil)
}
