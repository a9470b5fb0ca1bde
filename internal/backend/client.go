// Package backend is the HTTP client for the BuildManager project API and for
// object transfers through presigned URLs.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/maneesh/buildmanager/internal/apperr"
	"github.com/maneesh/buildmanager/internal/logging"
	"github.com/maneesh/buildmanager/internal/metrics"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("buildmanager-backend")

// Client talks to the project API. All API requests carry the session cookie;
// object transfers through presigned URLs never do.
type Client struct {
	baseURL *url.URL
	api     *http.Client
	objects *http.Client
}

// Option configures a Client.
type Option func(*Client) error

// WithHTTPClient replaces the client used for API requests. Its cookie jar, if
// any, is kept.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) error {
		c.api = hc
		return nil
	}
}

// WithObjectClient replaces the client used for presigned transfers.
func WithObjectClient(hc *http.Client) Option {
	return func(c *Client) error {
		c.objects = hc
		return nil
	}
}

// WithTimeout sets the per-request timeout of both clients.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) error {
		c.api.Timeout = d
		c.objects.Timeout = d
		return nil
	}
}

// WithSessionCookie seeds the cookie jar with a "name=value" session cookie.
func WithSessionCookie(cookie string) Option {
	return func(c *Client) error {
		if cookie == "" {
			return nil
		}
		parsed, err := http.ParseCookie(cookie)
		if err != nil {
			return fmt.Errorf("parse session cookie: %w", err)
		}
		if c.api.Jar == nil {
			jar, _ := cookiejar.New(nil)
			c.api.Jar = jar
		}
		c.api.Jar.SetCookies(c.baseURL, parsed)
		return nil
	}
}

// New creates a client for the API rooted at baseURL, e.g. http://host:5000/api.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse backend url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("backend url %q must be absolute", baseURL)
	}

	jar, _ := cookiejar.New(nil)
	c := &Client{
		baseURL: u,
		api: &http.Client{
			Jar:       jar,
			Timeout:   30 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		objects: &http.Client{
			Timeout:   30 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (c *Client) endpoint(path string, query url.Values) string {
	u := *c.baseURL
	u.Path = c.baseURL.Path + path
	if query != nil {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

type errorBody struct {
	Error  string `json:"error"`
	Detail string `json:"detail"`
}

// do sends one JSON API request. in, if non-nil, is the JSON body; out, if
// non-nil, receives the decoded response.
func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, in, out any) (err error) {
	ctx, span := tracer.Start(ctx, "backend."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.method", method),
			attribute.String("api.path", path),
		),
	)
	defer span.End()

	start := time.Now()
	defer func() {
		metrics.RecordBackendCall(op, time.Since(start), err)
		if err != nil {
			span.RecordError(err)
		}
		logging.WithContext(ctx).Debug("backend call",
			logging.String("op", op),
			logging.String("method", method),
			logging.String("path", path),
			logging.Duration("duration", time.Since(start)),
			logging.Err(err),
		)
	}()

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", op, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path, query), body)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.api.Do(req)
	if err != nil {
		return apperr.Wrap(apperr.KindNetwork, op, err)
	}
	defer resp.Body.Close()
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var eb errorBody
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
		_ = json.Unmarshal(raw, &eb)
		msg := eb.Error
		if msg == "" {
			msg = eb.Detail
		}
		return apperr.FromStatus(op, resp.StatusCode, msg)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &apperr.Error{Kind: apperr.KindNetwork, Op: op, Message: "response was not valid JSON", Err: err}
	}
	return nil
}

func projectPath(format, projectID string) string {
	return fmt.Sprintf(format, url.PathEscape(projectID))
}

// nonNil keeps the root path encoded as [] rather than null.
func nonNil(path []string) []string {
	if path == nil {
		return []string{}
	}
	return path
}
