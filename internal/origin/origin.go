// Package origin fetches responses from the site the cache sits in front of.
package origin

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/huangsam/shellcache/internal/contract"
	"github.com/huangsam/shellcache/schema"
	"resty.dev/v3"
)

// forwarded lists the request headers passed on to the origin.
var forwarded = []string{
	"Accept",
	"Accept-Language",
	"Authorization",
	"Cookie",
	"If-Modified-Since",
	"If-None-Match",
	"User-Agent",
}

// hopByHop are dropped from stored responses.
var hopByHop = []string{
	"Connection",
	"Content-Length",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// Client is a contract.Fetcher backed by resty.
type Client struct {
	base      string
	http      *resty.Client
	closeOnce sync.Once
}

var _ contract.Fetcher = (*Client)(nil)

// NewClient returns a client for the origin base URL. A zero timeout
// leaves requests bounded only by their context. Redirects are never
// followed: a 3xx goes back to the caller with its Location intact.
func NewClient(base string, timeout time.Duration) *Client {
	base = strings.TrimSuffix(base, "/")
	c := resty.New().
		SetBaseURL(base).
		SetHeader("User-Agent", "shellcache").
		SetRedirectPolicy(resty.NoRedirectPolicy())
	if timeout > 0 {
		c.SetTimeout(timeout)
	}
	return &Client{base: base, http: c}
}

// Fetch performs req against the origin. Non-2xx replies are returned as
// responses, only transport failures are errors.
func (c *Client) Fetch(ctx context.Context, req *schema.Request) (*schema.CachedResponse, error) {
	uri := req.URL.RequestURI()
	if uri == "" {
		uri = "/"
	}

	r := c.http.R().
		SetContext(ctx).
		SetDoNotParseResponse(true)
	for _, name := range forwarded {
		if v := req.Header.Get(name); v != "" {
			r.SetHeader(name, v)
		}
	}

	resp, err := r.Execute(req.Method, uri)
	if err != nil {
		return nil, fmt.Errorf("fetching %s %s: %w", req.Method, uri, err)
	}
	// Body is already decompressed; RawResponse.Body is not.
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading %s %s: %w", req.Method, uri, err)
	}

	header := resp.Header().Clone()
	for _, name := range hopByHop {
		header.Del(name)
	}

	return &schema.CachedResponse{
		Key:    req.Key(),
		URL:    c.base + uri,
		Status: resp.StatusCode(),
		Type:   schema.BasicResponse,
		Header: header,
		Body:   body,
	}, nil
}

// Close releases idle connections. It is safe to call more than once.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.http.Client().CloseIdleConnections()
		err = c.http.Close()
	})
	return err
}

// Head reports whether the origin answers a HEAD for path with a 2xx status.
func (c *Client) Head(ctx context.Context, path string) (bool, error) {
	resp, err := c.http.R().SetContext(ctx).Head(path)
	if err != nil {
		return false, err
	}
	return resp.StatusCode() >= http.StatusOK && resp.StatusCode() < http.StatusMultipleChoices, nil
}
