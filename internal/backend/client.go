// Package backend talks to the clinic REST API: one POST per created record
// and a GET per list reload.
package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	ihttp "github.com/clinica/import-service/internal/http"
	"github.com/clinica/import-service/internal/http/ratelimit"
)

// Item is one record of a list response, as returned by the backend
type Item = map[string]any

// Config configures the backend client
type Config struct {
	BaseURL   string
	Token     string
	Timeout   time.Duration
	RateLimit ratelimit.Config
}

// Client is the clinic backend API client
type Client struct {
	baseURL string
	token   string
	http    *ihttp.Client
}

// NewClient creates a backend client
func NewClient(cfg Config) *Client {
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		token:   cfg.Token,
		http:    ihttp.NewClient(cfg.RateLimit, cfg.Timeout),
	}
}

func (c *Client) header() http.Header {
	h := http.Header{}
	h.Set("Content-Type", "application/json")
	if c.token != "" {
		h.Set("Authorization", "Bearer "+c.token)
	}
	return h
}

// Create POSTs a payload to path. A non-2xx response becomes *APIError.
func (c *Client) Create(ctx context.Context, path string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode payload: %w", err)
	}

	resp, err := c.http.Do(ctx, http.MethodPost, c.baseURL+path, body, c.header())
	if err != nil {
		return c.wrapTransportError(http.MethodPost, path, err)
	}
	if !resp.OK() {
		return &APIError{
			Method:  http.MethodPost,
			Path:    path,
			Status:  resp.StatusCode,
			Message: ExtractDetail(resp.Body),
		}
	}
	return nil
}

// List GETs path and returns its records. Both a bare JSON array and an
// envelope with "items", "data" or "results" are accepted.
func (c *Client) List(ctx context.Context, path string) ([]Item, error) {
	resp, err := c.http.Get(ctx, c.baseURL+path, c.header())
	if err != nil {
		return nil, c.wrapTransportError(http.MethodGet, path, err)
	}
	if !resp.OK() {
		return nil, &APIError{
			Method:  http.MethodGet,
			Path:    path,
			Status:  resp.StatusCode,
			Message: ExtractDetail(resp.Body),
		}
	}

	items, err := decodeList(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to decode list response from %s: %w", path, err)
	}

	log.Debug().Str("path", path).Int("count", len(items)).Msg("Listed records")
	return items, nil
}

func (c *Client) wrapTransportError(method, path string, err error) error {
	if fre, ok := ihttp.IsRetryExhausted(err); ok && fre.LastStatus != 0 {
		return &APIError{
			Method:  method,
			Path:    path,
			Status:  fre.LastStatus,
			Message: ExtractDetail(fre.LastBody),
		}
	}
	return fmt.Errorf("%s %s: %w", method, path, err)
}

func decodeList(body []byte) ([]Item, error) {
	var items []Item
	if err := json.Unmarshal(body, &items); err == nil {
		return items, nil
	}

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, err
	}
	for _, key := range []string{"items", "data", "results"} {
		if raw, ok := envelope[key]; ok {
			if err := json.Unmarshal(raw, &items); err != nil {
				return nil, err
			}
			return items, nil
		}
	}
	return nil, fmt.Errorf("unrecognized list shape")
}
