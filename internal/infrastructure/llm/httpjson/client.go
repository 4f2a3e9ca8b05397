// Package httpjson is the shared JSON-over-HTTP transport for completion providers.
package httpjson

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/docflow/internal/infrastructure/resilience"
)

type Client struct {
	provider   string
	baseURL    string
	headers    http.Header
	httpClient *http.Client
	executor   *resilience.Executor
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

func WithHeader(key, value string) Option {
	return func(c *Client) {
		if strings.TrimSpace(value) != "" {
			c.headers.Set(key, value)
		}
	}
}

func WithExecutor(executor *resilience.Executor) Option {
	return func(c *Client) {
		c.executor = executor
	}
}

func New(provider, baseURL string, opts ...Option) *Client {
	c := &Client{
		provider:   provider,
		baseURL:    strings.TrimRight(baseURL, "/"),
		headers:    make(http.Header),
		httpClient: &http.Client{Timeout: 120 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Provider() string {
	return c.provider
}

// PostJSON sends payload to path and decodes the JSON response into out. Transient
// failures are retried through the executor and surface as domain.ErrTemporary.
func (c *Client) PostJSON(ctx context.Context, path string, payload any, out any, operation string) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", operation, err)
	}

	call := func(callCtx context.Context) error {
		return c.post(callCtx, path, body, out, operation)
	}
	if c.executor == nil {
		err = call(ctx)
	} else {
		err = c.executor.Execute(ctx, c.provider+"."+operation, call, Classify)
	}
	return wrapTemporaryIfNeeded(c.provider+" "+operation, err)
}

func (c *Client) post(ctx context.Context, path string, body []byte, out any, operation string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create %s request: %w", operation, err)
	}
	req.Header.Set("Content-Type", "application/json")
	for key, values := range c.headers {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s request: %w", c.provider, operation, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return c.statusError(operation, resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", operation, err)
	}
	return nil
}

func (c *Client) statusError(operation string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	return &StatusError{
		Provider:   c.provider,
		Operation:  operation,
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Body:       strings.TrimSpace(string(body)),
	}
}
