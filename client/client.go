// Package dsclient is an authenticated client for STAC-style geospatial
// catalogs such as the Copernicus Data Space: paginated search, item and
// collection retrieval, and verified, resumable asset downloads.
package dsclient

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
)

// TokenSource supplies bearer tokens for authenticated endpoints. The auth
// package provides implementations; any source with the same behavior works.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
	Invalidate(token string)
}

// Client is a reusable dataspace catalog client.
type Client struct {
	httpClient     *http.Client
	baseURL        *url.URL
	defaultHeaders http.Header
	retryPolicy    RetryPolicy
	tokens         TokenSource
	logger         Logger
	maxPages       int
}

// New constructs a Client with provided options.
func New(opts ...ClientOption) (*Client, error) {
	c := &Client{
		httpClient:     &http.Client{},
		defaultHeaders: make(http.Header),
		retryPolicy:    DefaultRetryPolicy(),
		maxPages:       DefaultMaxPages,
	}
	c.defaultHeaders.Set("Accept", "application/json")
	c.defaultHeaders.Set("User-Agent", "go-dataspace-client/0.1")

	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}

	if c.baseURL == nil {
		return nil, ErrInvalidBaseURL
	}
	if c.httpClient == nil {
		return nil, ErrNilHTTPClient
	}
	return c, nil
}

// Collections returns a service for collection-specific operations.
func (c *Client) Collections() *CollectionService {
	return &CollectionService{client: c}
}

// Items returns a service for item listing and retrieval.
func (c *Client) Items() *ItemService {
	return &ItemService{client: c}
}

// Search returns a service for executing catalog searches.
func (c *Client) Search() *SearchService {
	return &SearchService{client: c}
}

// Downloads returns a service for retrieving item assets to local storage.
func (c *Client) Downloads() *DownloadService {
	return &DownloadService{client: c}
}

func (c *Client) buildURL(endpoint string, query url.Values) string {
	if !strings.HasPrefix(endpoint, "/") {
		endpoint = "/" + endpoint
	}
	u := *c.baseURL
	u.Path = path.Join(c.baseURL.Path, endpoint)
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

func (c *Client) newRequest(ctx context.Context, method, endpoint string, query url.Values, body any, opts []RequestOption) (*http.Request, error) {
	urlStr := c.buildURL(endpoint, query)

	var reader io.Reader
	if body != nil {
		buf := &bytes.Buffer{}
		enc := json.NewEncoder(buf)
		enc.SetEscapeHTML(false)
		if err := enc.Encode(body); err != nil {
			return nil, err
		}
		reader = buf
	}

	req, err := http.NewRequestWithContext(ctx, method, urlStr, reader)
	if err != nil {
		return nil, err
	}

	for key, values := range c.defaultHeaders {
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}

	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(req); err != nil {
			return nil, err
		}
	}

	if body != nil && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}

	return req, nil
}

// do executes one logical call: attach the current bearer token, run the
// bounded retry loop, and on a 401 force exactly one token refresh plus a
// single replay. A second 401 surfaces as an APIError rather than looping
// against a persistently-rejecting server.
func (c *Client) do(ctx context.Context, req *http.Request) (*http.Response, error) {
	if c.logger != nil {
		c.logger.Debugf("dsclient: %s %s", req.Method, req.URL)
	}

	var token string
	if c.tokens != nil && req.Header.Get("Authorization") == "" {
		var err error
		token, err = c.tokens.Token(ctx)
		if err != nil {
			return nil, &RequestError{Op: "authorize", URL: req.URL.String(), Err: err}
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.roundTrip(ctx, req)
	if err != nil {
		return nil, &RequestError{Op: req.Method, URL: req.URL.String(), Err: err}
	}

	if resp.StatusCode == http.StatusUnauthorized && c.tokens != nil {
		drain(resp)
		c.tokens.Invalidate(token)
		fresh, err := c.tokens.Token(ctx)
		if err != nil {
			return nil, &RequestError{Op: "authorize", URL: req.URL.String(), Err: err}
		}
		if err := rewindBody(req); err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+fresh)
		resp, err = c.roundTrip(ctx, req)
		if err != nil {
			return nil, &RequestError{Op: req.Method, URL: req.URL.String(), Err: err}
		}
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}

	if c.logger != nil {
		c.logger.Errorf("dsclient: request failed status=%d url=%s", resp.StatusCode, req.URL)
	}
	return nil, decodeAPIError(resp)
}

// decodeAPIError consumes a non-2xx response body into an APIError.
func decodeAPIError(resp *http.Response) *APIError {
	defer resp.Body.Close()

	apiErr := &APIError{Status: resp.StatusCode}
	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return apiErr
	}
	apiErr.Raw = data
	if err := json.Unmarshal(data, apiErr); err != nil {
		apiErr.Detail = string(data)
	}
	return apiErr
}

func (c *Client) doJSON(ctx context.Context, method, endpoint string, query url.Values, body any, out any, opts []RequestOption) error {
	req, err := c.newRequest(ctx, method, endpoint, query, body, opts)
	if err != nil {
		return err
	}

	resp, err := c.do(ctx, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &RequestError{Op: "decode", URL: req.URL.String(), Err: err}
	}
	return nil
}

func drain(resp *http.Response) {
	io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<20))
	resp.Body.Close()
}

// rewindBody restores a request body before a replay. Requests built through
// newRequest carry GetBody; bodiless requests pass through.
func rewindBody(req *http.Request) error {
	if req.Body == nil || req.GetBody == nil {
		return nil
	}
	body, err := req.GetBody()
	if err != nil {
		return err
	}
	req.Body = body
	return nil
}

func cloneValues(values url.Values) url.Values {
	if len(values) == 0 {
		return nil
	}
	cp := make(url.Values, len(values))
	for key, v := range values {
		dst := make([]string, len(v))
		copy(dst, v)
		cp[key] = dst
	}
	return cp
}
