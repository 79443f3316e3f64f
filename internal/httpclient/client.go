package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"eventide/internal/config"
)

// Client is the port the action dispatcher uses for its WEBHOOK and HTTP
// action types: send a JSON body, treat any non-2xx status as a failure.
// Post is a convenience wrapper over Request for the common POST case.
type Client interface {
	Post(ctx context.Context, url string, headers map[string]string, body interface{}) error
	Request(ctx context.Context, method, url string, headers map[string]string, body interface{}) error
}

type HTTPClient struct {
	client *http.Client
}

func NewHTTPClient(cfg config.DispatchConfig) *HTTPClient {
	timeout := time.Duration(cfg.HTTPTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPClient{client: &http.Client{Timeout: timeout}}
}

func (c *HTTPClient) Post(ctx context.Context, url string, headers map[string]string, body interface{}) error {
	return c.Request(ctx, http.MethodPost, url, headers, body)
}

func (c *HTTPClient) Request(ctx context.Context, method, url string, headers map[string]string, body interface{}) error {
	if method == "" {
		method = http.MethodPost
	}

	encoded, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(encoded))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("target returned status %d", resp.StatusCode)
	}
	return nil
}
