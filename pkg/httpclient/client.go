package httpclient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"net/http"
	"time"

	"go.uber.org/zap"
)

type Options struct {
	// Timeout bounds each attempt including reading the body. Zero means none.
	Timeout time.Duration
	// MaxRetries is the number of extra attempts after a transport error or
	// a 5xx. Only set it for idempotent calls.
	MaxRetries int
	BaseDelay  time.Duration
	Transport  http.RoundTripper
}

type Client struct {
	client     *http.Client
	maxRetries int
	baseDelay  time.Duration
}

func NewClient(opts Options) *Client {
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = 100 * time.Millisecond
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	return &Client{
		client:     &http.Client{Timeout: opts.Timeout, Transport: opts.Transport},
		maxRetries: opts.MaxRetries,
		baseDelay:  opts.BaseDelay,
	}
}

// HTTPClient exposes the underlying client so SDKs can share its transport.
func (c *Client) HTTPClient() *http.Client {
	return c.client
}

// Post sends body as-is. When the last attempt produced a response, it is
// returned even if its status is 5xx; the caller owns resp.Body.
func (c *Client) Post(ctx context.Context, url string, body []byte, headers map[string]string) (*http.Response, error) {
	return c.attemptRequestWithRetry(ctx, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		for k, v := range headers {
			req.Header.Set(k, v)
		}
		return req, nil
	})
}

func (c *Client) attemptRequestWithRetry(ctx context.Context, reqFactory func() (*http.Request, error)) (*http.Response, error) {
	const maxJitterMs = 100

	r := rand.New(rand.NewSource(time.Now().UnixNano()))

	for i := 0; ; i++ {
		req, err := reqFactory()
		if err != nil {
			return nil, fmt.Errorf("error creating request: %w", err)
		}

		response, err := c.client.Do(req)
		if errors.Is(err, ErrCircuitOpen) {
			return nil, err
		}
		if err == nil && response.StatusCode < 500 {
			return response, nil
		}
		if i >= c.maxRetries {
			if err != nil {
				return nil, fmt.Errorf("request failed after %d attempt(s): %w", i+1, err)
			}
			return response, nil
		}

		if response != nil {
			response.Body.Close()
		}

		backoff := c.baseDelay * time.Duration(math.Pow(2, float64(i)))
		sleepDuration := backoff + time.Duration(r.Intn(maxJitterMs))*time.Millisecond

		zap.L().Warn("request failed, retrying",
			zap.Int("attempt", i+1),
			zap.Duration("sleep", sleepDuration),
			zap.Error(err),
		)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(sleepDuration):
		}
	}
}
