// Package httpapi is the authenticated REST collaborator: it carries the
// bearer token and user agent, composes request paths, and turns a chain
// of query parameters plus a verb into a single HTTP call. Discovering
// the Gateway URL and replying to messages both flow through here, so it
// shares identity (the bot token) with the Gateway session.
package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hako/durafmt"

	"github.com/smalld-go/smalld/internal/xerror"
)

// DefaultBaseURL is the v8 Discord REST base used when the caller does
// not override it.
const DefaultBaseURL = "https://discord.com/api/v8"

// userAgentTemplate matches the spec's "DiscordBot (<repo>, <version>)"
// format.
const userAgentTemplate = "DiscordBot (https://github.com/smalld-go/smalld, %s)"

// Client is the authenticated REST collaborator.
type Client struct {
	authorization string
	userAgent     string
	baseURL       *url.URL
	http          *http.Client
	logger        *slog.Logger
}

// New builds a Client bound to token and baseURL. baseURL must be a
// hierarchical URL (one path composition can append segments to); a URL
// that does not parse, or an opaque one (e.g. "mailto:x"), is rejected
// here with KindConfiguration, so Resource calls never run against a base
// they cannot compose paths onto.
func New(token, baseURL, version string, logger *slog.Logger) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, xerror.Wrap(xerror.KindConfiguration, err, fmt.Sprintf("bad base url: %s", baseURL))
	}
	if u.Opaque != "" {
		return nil, xerror.Newf(xerror.KindConfiguration, "bad base url (opaque, not hierarchical): %s", baseURL)
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		authorization: "Bot " + token,
		userAgent:     fmt.Sprintf(userAgentTemplate, version),
		baseURL:       u,
		http:          &http.Client{Timeout: 30 * time.Second},
		logger:        logger.With("component", "httpapi"),
	}, nil
}

// Resource starts building a single REST call against path.
func (c *Client) Resource(path string) *Resource {
	return &Resource{client: c, path: path}
}

// buildURL appends path's normalized segments to the base URL, absorbing
// a leading slash from path while preserving internal slashes as segment
// separators.
func (c *Client) buildURL(path string, params []queryParam) (string, error) {
	u := *c.baseURL
	trimmed := strings.TrimPrefix(path, "/")
	base := strings.TrimSuffix(u.Path, "/")
	u.Path = base + "/" + trimmed

	if len(params) > 0 {
		parts := make([]string, 0, len(params))
		for _, p := range params {
			parts = append(parts, url.QueryEscape(p.key)+"="+url.QueryEscape(p.value))
		}
		query := strings.Join(parts, "&")
		if u.RawQuery != "" {
			query = u.RawQuery + "&" + query
		}
		u.RawQuery = query
	}

	return u.String(), nil
}

// do issues a single HTTP request and applies the response policy: 204
// normalizes to "{}", other 2xx bodies are returned as-is, and non-2xx
// becomes a KindHTTP error carrying the status.
func (c *Client) do(ctx context.Context, method, rawURL string, body any) (json.RawMessage, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, xerror.Wrap(xerror.KindIllegalArgument, err, "marshal request body")
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		return nil, xerror.Wrap(xerror.KindIllegalArgument, err, "build request")
	}
	req.Header.Set("Authorization", c.authorization)
	req.Header.Set("User-Agent", c.userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.doWithRateLimitRetry(req)
	if err != nil {
		return nil, xerror.Wrap(xerror.KindHTTP, err, "request failed")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNoContent {
		return json.RawMessage("{}"), nil
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, xerror.Wrap(xerror.KindIO, err, "read response body")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, xerror.Newf(xerror.KindHTTP, "%s %s: unexpected status", method, rawURL).WithCode(resp.StatusCode)
	}

	return json.RawMessage(data), nil
}

// doWithRateLimitRetry retries exactly once on a 429, honoring
// Retry-After when present and otherwise waiting a small jittered
// backoff (per spec §9 open question 3, rate-limit headers beyond 429
// itself are not tracked bucket-by-bucket).
func (c *Client) doWithRateLimitRetry(req *http.Request) (*http.Response, error) {
	resp, err := c.http.Do(req)
	if err != nil || resp.StatusCode != http.StatusTooManyRequests {
		return resp, err
	}
	_ = resp.Body.Close()

	wait := retryAfterDuration(resp.Header.Get("Retry-After"))
	if wait <= 0 {
		wait = rateLimitWait(time.Second)
	}
	c.logger.Warn("rate limited, retrying once", "wait", durafmt.Parse(wait).String(), "path", req.URL.Path)
	time.Sleep(wait)

	retry := req.Clone(req.Context())
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, err
		}
		retry.Body = body
	}
	return c.http.Do(retry)
}

func retryAfterDuration(header string) time.Duration {
	if header == "" {
		return 0
	}
	seconds, err := strconv.ParseFloat(header, 64)
	if err != nil || seconds <= 0 {
		return 0
	}
	return time.Duration(seconds * float64(time.Second))
}

// queryParam is one (key, value) pair in insertion order.
type queryParam struct {
	key, value string
}

// Resource composes a path with zero or more query parameters and
// finalizes with exactly one verb.
type Resource struct {
	client *Client
	path   string
	params []queryParam
}

// Query appends a query parameter, preserving insertion order.
func (r *Resource) Query(key, value string) *Resource {
	r.params = append(r.params, queryParam{key, value})
	return r
}

// Get issues a GET request.
func (r *Resource) Get(ctx context.Context) (json.RawMessage, error) {
	return r.call(ctx, http.MethodGet, nil)
}

// Post issues a POST request with a JSON body.
func (r *Resource) Post(ctx context.Context, body any) (json.RawMessage, error) {
	return r.call(ctx, http.MethodPost, body)
}

// Put issues a PUT request with a JSON body.
func (r *Resource) Put(ctx context.Context, body any) (json.RawMessage, error) {
	return r.call(ctx, http.MethodPut, body)
}

// Patch issues a PATCH request with a JSON body.
func (r *Resource) Patch(ctx context.Context, body any) (json.RawMessage, error) {
	return r.call(ctx, http.MethodPatch, body)
}

// Delete issues a DELETE request.
func (r *Resource) Delete(ctx context.Context) (json.RawMessage, error) {
	return r.call(ctx, http.MethodDelete, nil)
}

func (r *Resource) call(ctx context.Context, method string, body any) (json.RawMessage, error) {
	rawURL, err := r.client.buildURL(r.path, r.params)
	if err != nil {
		return nil, err
	}
	return r.client.do(ctx, method, rawURL, body)
}
