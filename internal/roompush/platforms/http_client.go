package platforms

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

type HTTPClient struct {
	inner *http.Client
}

func NewHTTPClient(timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPClient{inner: &http.Client{Timeout: timeout}}
}

// StatusError is a non-2xx webhook answer.
type StatusError struct {
	Status int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("push failed with status %d", e.Status)
}

func (c *HTTPClient) Post(ctx context.Context, endpoint string, headers map[string]string, body []byte) (int, []byte, error) {
	return c.send(ctx, http.MethodPost, endpoint, headers, body)
}

func (c *HTTPClient) Patch(ctx context.Context, endpoint string, headers map[string]string, body []byte) (int, []byte, error) {
	return c.send(ctx, http.MethodPatch, endpoint, headers, body)
}

// PostJSON marshals body and posts it.
func (c *HTTPClient) PostJSON(ctx context.Context, endpoint string, headers map[string]string, body any) (int, []byte, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return 0, nil, err
	}
	return c.Post(ctx, endpoint, headers, raw)
}

func (c *HTTPClient) send(ctx context.Context, method, endpoint string, headers map[string]string, body []byte) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, endpoint, bytes.NewReader(body))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.inner.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return resp.StatusCode, nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp.StatusCode, respBody, &StatusError{Status: resp.StatusCode}
	}
	return resp.StatusCode, respBody, nil
}
