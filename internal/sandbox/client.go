package sandbox

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"pkt.systems/pslog"
	"pkt.systems/sandpit/core"
	"pkt.systems/sandpit/schema"
)

// DefaultRequestTimeout bounds the unary requests (format, share, fetch, status).
const DefaultRequestTimeout = 15 * time.Second

// StatusError is returned for non-2xx responses.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("sandbox returned %d %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("sandbox returned %d: %s", e.StatusCode, e.Message)
}

// Client talks to a sandbox service over HTTP. Execute streams use a client
// without a timeout; their lifetime is bound to the request context.
type Client struct {
	base    *url.URL
	unary   *http.Client
	stream  *http.Client
	timeout time.Duration
	agent   string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the HTTP client used for every request.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.unary = client
			c.stream = client
		}
	}
}

// WithRequestTimeout bounds unary requests. Zero disables the bound.
func WithRequestTimeout(timeout time.Duration) Option {
	return func(c *Client) { c.timeout = timeout }
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(agent string) Option {
	return func(c *Client) { c.agent = agent }
}

// New returns a client for the service at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	trimmed := strings.TrimSpace(baseURL)
	if trimmed == "" {
		return nil, schema.ErrSandboxUnavailable
	}
	base, err := url.Parse(strings.TrimRight(trimmed, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse sandbox url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("unsupported sandbox url scheme %q", base.Scheme)
	}
	c := &Client{
		base:    base,
		unary:   http.DefaultClient,
		stream:  http.DefaultClient,
		timeout: DefaultRequestTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the service URL without a trailing slash.
func (c *Client) BaseURL() string {
	return c.base.String()
}

func (c *Client) endpoint(parts ...string) string {
	escaped := make([]string, 0, len(parts))
	for _, part := range parts {
		escaped = append(escaped, url.PathEscape(part))
	}
	u := *c.base
	u.Path = strings.TrimRight(u.Path, "/") + "/" + strings.Join(escaped, "/")
	return u.String()
}

// Format sends code to the formatter.
func (c *Client) Format(ctx context.Context, code string) (schema.FormatResult, error) {
	var result schema.FormatResult
	if err := c.doJSON(ctx, http.MethodPost, c.endpoint("format"), schema.FormatRequest{Code: code}, &result); err != nil {
		return schema.FormatResult{}, err
	}
	return result, nil
}

// Execute opens the execute event stream.
func (c *Client) Execute(ctx context.Context, req schema.ExecuteRequest) (core.EventStream, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("execute"), bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	c.decorate(httpReq)
	resp, err := c.stream.Do(httpReq)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer func() { _ = resp.Body.Close() }()
		return nil, readStatusError(resp)
	}
	pslog.Ctx(ctx).Debug("sandbox execute stream open", "version", string(req.Version))
	return newEventStream(ctx, resp.Body), nil
}

// ShareSnippet stores code and returns its snippet id.
func (c *Client) ShareSnippet(ctx context.Context, code string) (schema.SnippetID, error) {
	var resp schema.SnippetResponse
	if err := c.doJSON(ctx, http.MethodPost, c.endpoint("snippets"), schema.SnippetRequest{Code: code}, &resp); err != nil {
		return "", err
	}
	if resp.ID == "" {
		return "", errors.New("sandbox returned an empty snippet id")
	}
	return resp.ID, nil
}

// FetchSnippet returns the code of a shared snippet.
func (c *Client) FetchSnippet(ctx context.Context, id schema.SnippetID) (string, error) {
	var resp schema.CodeResponse
	err := c.doJSON(ctx, http.MethodGet, c.endpoint("snippets", string(id)), nil, &resp)
	if isNotFound(err) {
		return "", fmt.Errorf("%w: %s", schema.ErrSnippetNotFound, id)
	}
	if err != nil {
		return "", err
	}
	return resp.Code, nil
}

// Template returns the code of a named template.
func (c *Client) Template(ctx context.Context, id schema.TemplateID) (string, error) {
	var resp schema.CodeResponse
	err := c.doJSON(ctx, http.MethodGet, c.endpoint("templates", string(id)), nil, &resp)
	if isNotFound(err) {
		return "", fmt.Errorf("%w: %s", schema.ErrTemplateNotFound, id)
	}
	if err != nil {
		return "", err
	}
	return resp.Code, nil
}

// HealthCheck reports whether the service answers its status endpoint.
func (c *Client) HealthCheck(ctx context.Context) error {
	return c.doJSON(ctx, http.MethodGet, c.endpoint("status"), nil, nil)
}

func (c *Client) doJSON(ctx context.Context, method, endpoint string, in any, out any) error {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	c.decorate(req)
	log := pslog.Ctx(ctx)
	start := time.Now()
	resp, err := c.unary.Do(req)
	if err != nil {
		log.Debug("sandbox request failed", "method", method, "url", endpoint, "err", err)
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	log.Trace("sandbox request", "method", method, "url", endpoint, "status", resp.StatusCode, "duration_ms", time.Since(start).Milliseconds())
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return readStatusError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode sandbox response: %w", err)
	}
	return nil
}

func (c *Client) decorate(req *http.Request) {
	if c.agent != "" {
		req.Header.Set("User-Agent", c.agent)
	}
}

func readStatusError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	statusErr := &StatusError{StatusCode: resp.StatusCode}
	var payload schema.ErrorResponse
	if err := json.Unmarshal(data, &payload); err == nil && payload.Error != "" {
		statusErr.Message = payload.Error
	} else {
		statusErr.Message = strings.TrimSpace(string(data))
	}
	return statusErr
}

func isNotFound(err error) bool {
	var statusErr *StatusError
	return errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound
}
