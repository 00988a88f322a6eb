package http

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/clinica/import-service/internal/http/ratelimit"
)

const userAgent = "Clinica-ImportService/1.0"

// Response is a fully read HTTP response
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// OK reports a 2xx status
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Client is an HTTP client with rate limiting and retry logic
type Client struct {
	httpClient  *http.Client
	rateLimiter *ratelimit.RateLimiter
	config      ratelimit.Config
}

// NewClient creates a new HTTP client with rate limiting
func NewClient(config ratelimit.Config, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		rateLimiter: ratelimit.NewRateLimiter(config),
		config:      config,
	}
}

// Get performs a GET request with rate limiting and retry logic
func (c *Client) Get(ctx context.Context, url string, header http.Header) (*Response, error) {
	return c.Do(ctx, http.MethodGet, url, nil, header)
}

// Do performs an HTTP request with rate limiting and retry logic.
//
// Any response that is not retried (including 4xx) is returned with a nil
// error so callers can inspect the body. A *ratelimit.FetchRetryError is
// returned when the transport fails or retries run out.
func (c *Client) Do(ctx context.Context, method, url string, body []byte, header http.Header) (*Response, error) {
	var lastStatus int
	var lastBody []byte
	var lastErr error

	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter error: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("failed to build request: %w", err)
		}
		for k, vs := range header {
			for _, v := range vs {
				req.Header.Add(k, v)
			}
		}
		req.Header.Set("User-Agent", userAgent)
		if req.Header.Get("Accept") == "" {
			req.Header.Set("Accept", "application/json")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			if ctx.Err() != nil || !ratelimit.IsRetryableTransport(method) || attempt == c.config.MaxRetries {
				return nil, &ratelimit.FetchRetryError{
					Method:     method,
					URL:        url,
					Attempts:   attempt + 1,
					LastStatus: lastStatus,
					LastError:  lastErr,
				}
			}
			backoff := ratelimit.CalculateBackoff(attempt, c.config)
			log.Debug().Err(err).Str("url", url).Dur("backoff", backoff).Msg("Request failed, retrying")
			if err := ratelimit.Sleep(ctx, backoff); err != nil {
				return nil, err
			}
			continue
		}

		data, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read response body: %w", err)
		}

		out := &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: data}
		if !ratelimit.IsRetryableStatus(method, resp.StatusCode) {
			return out, nil
		}

		lastStatus = resp.StatusCode
		lastBody = data
		if attempt == c.config.MaxRetries {
			break
		}

		var backoff time.Duration
		if resp.StatusCode == http.StatusTooManyRequests {
			backoff = ratelimit.CalculateRateLimitBackoff(attempt, c.config, resp.Header.Get("Retry-After"))
		} else {
			backoff = ratelimit.CalculateBackoff(attempt, c.config)
		}
		log.Debug().
			Str("method", method).
			Str("url", url).
			Int("status", resp.StatusCode).
			Dur("backoff", backoff).
			Msg("Retryable status, backing off")

		if err := ratelimit.Sleep(ctx, backoff); err != nil {
			return nil, err
		}
	}

	return nil, &ratelimit.FetchRetryError{
		Method:     method,
		URL:        url,
		Attempts:   c.config.MaxRetries + 1,
		LastStatus: lastStatus,
		LastBody:   lastBody,
		LastError:  lastErr,
	}
}

// IsRetryExhausted reports whether err came from running out of retries
func IsRetryExhausted(err error) (*ratelimit.FetchRetryError, bool) {
	var fre *ratelimit.FetchRetryError
	if errors.As(err, &fre) {
		return fre, true
	}
	return nil, false
}
