package httpclient

import (
	"context"
	"fmt"
	"net/http"

	"github.com/sony/gobreaker"

	"eventide/internal/config"
	"eventide/pkg/circuitbreaker"
)

// CircuitBreakerClient wraps a Client so a failing webhook target trips
// open instead of piling up blocked dispatch attempts against it.
type CircuitBreakerClient struct {
	client Client
	cb     *circuitbreaker.Wrapper
}

func NewCircuitBreakerClient(client Client, cfg config.CircuitBreakerConfig) *CircuitBreakerClient {
	if !cfg.Enabled {
		return &CircuitBreakerClient{client: client}
	}

	cbConfig := circuitbreaker.DefaultConfig("dispatch-http")
	if cfg.MaxRequests > 0 {
		cbConfig.MaxRequests = cfg.MaxRequests
	}
	if cfg.Interval > 0 {
		cbConfig.Interval = cfg.Interval
	}
	if cfg.Timeout > 0 {
		cbConfig.Timeout = cfg.Timeout
	}
	if cfg.FailureRatio > 0 && cfg.MinRequests > 0 {
		cbConfig.ReadyToTrip = func(counts gobreaker.Counts) bool {
			if counts.Requests < uint32(cfg.MinRequests) {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= cfg.FailureRatio
		}
	}

	return &CircuitBreakerClient{
		client: client,
		cb:     circuitbreaker.NewWrapper(cbConfig),
	}
}

func (c *CircuitBreakerClient) Post(ctx context.Context, url string, headers map[string]string, body interface{}) error {
	return c.Request(ctx, http.MethodPost, url, headers, body)
}

func (c *CircuitBreakerClient) Request(ctx context.Context, method, url string, headers map[string]string, body interface{}) error {
	if c.cb == nil {
		return c.client.Request(ctx, method, url, headers, body)
	}

	_, err := c.cb.ExecuteWithContext(ctx, func() (interface{}, error) {
		return nil, c.client.Request(ctx, method, url, headers, body)
	})
	c.cb.RecordRequest(err == nil)
	if err != nil && c.cb.IsOpen() {
		return fmt.Errorf("circuit breaker is open for dispatch-http: %w", err)
	}
	return err
}

func (c *CircuitBreakerClient) IsOpen() bool {
	if c.cb == nil {
		return false
	}
	return c.cb.IsOpen()
}
