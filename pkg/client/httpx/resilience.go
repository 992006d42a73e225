// Package httpx provides the HTTP transport used for every backend call:
// a circuit breaker, bounded retries for idempotent requests and tracing.
package httpx

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/abgdnv/storefront/pkg/config"
	"github.com/cenkalti/backoff/v5"
	"github.com/sony/gobreaker/v2"
)

// statusError marks a response the breaker should count as a failure.
type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("upstream responded with %d", e.code)
}

// Transport wraps a base RoundTripper in a circuit breaker. GET and HEAD requests that
// fail with a network error or a 502/503/504 are retried with exponential backoff.
// Other methods are sent once: a retried mutation could be applied twice.
type Transport struct {
	base        http.RoundTripper
	breaker     *gobreaker.CircuitBreaker[*http.Response]
	maxAttempts uint
	initial     time.Duration
}

// NewTransport creates a Transport. A nil base uses http.DefaultTransport.
func NewTransport(base http.RoundTripper, name string, cfg config.ResilienceConfig) *Transport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &Transport{
		base:        base,
		breaker:     newCircuitBreaker(name, cfg.CircuitBreaker),
		maxAttempts: cfg.Retry.MaxAttempts,
		initial:     cfg.Retry.InitialBackoff,
	}
}

func newCircuitBreaker(name string, cfg config.CircuitBreakerConfig) *gobreaker.CircuitBreaker[*http.Response] {
	st := gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			total := counts.TotalSuccesses + counts.TotalFailures
			return counts.ConsecutiveFailures > cfg.ConsecutiveFailures ||
				(total > cfg.ConsecutiveFailures &&
					float64(counts.TotalFailures)/float64(total)*100 > float64(cfg.ErrorRatePercent))
		},
		IsSuccessful: func(err error) bool {
			// 4xx answers, 401 included, mean the backend is healthy.
			return err == nil
		},
	}
	return gobreaker.NewCircuitBreaker[*http.Response](st)
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if !idempotent(req.Method) || t.maxAttempts <= 1 {
		return t.execute(req)
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = t.initial
	b.Reset()
	for attempt := uint(1); ; attempt++ {
		resp, err := t.execute(req)
		if attempt >= t.maxAttempts || !retryable(resp, err) {
			return resp, err
		}
		if resp != nil {
			_, _ = io.Copy(io.Discard, resp.Body)
			_ = resp.Body.Close()
		}
		timer := time.NewTimer(b.NextBackOff())
		select {
		case <-req.Context().Done():
			timer.Stop()
			return nil, req.Context().Err()
		case <-timer.C:
		}
	}
}

// execute sends one attempt through the breaker.
func (t *Transport) execute(req *http.Request) (*http.Response, error) {
	resp, err := t.breaker.Execute(func() (*http.Response, error) {
		resp, err := t.base.RoundTrip(req)
		if err != nil {
			return nil, err
		}
		if serverFault(resp.StatusCode) {
			return resp, &statusError{code: resp.StatusCode}
		}
		return resp, nil
	})
	var se *statusError
	if errors.As(err, &se) {
		return resp, nil
	}
	return resp, err
}

func retryable(resp *http.Response, err error) bool {
	if err != nil {
		return !errors.Is(err, gobreaker.ErrOpenState) &&
			!errors.Is(err, gobreaker.ErrTooManyRequests)
	}
	return resp != nil && serverFault(resp.StatusCode)
}

func serverFault(code int) bool {
	return code == http.StatusBadGateway ||
		code == http.StatusServiceUnavailable ||
		code == http.StatusGatewayTimeout
}

func idempotent(method string) bool {
	return method == http.MethodGet || method == http.MethodHead
}
