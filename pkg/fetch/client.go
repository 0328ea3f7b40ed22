// Package fetch retrieves pages and assets over HTTP, optionally rendering
// pages in headless Chrome first.
package fetch

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	errs "chaincrawl/pkg/errors"
	"chaincrawl/pkg/logger"
	"chaincrawl/pkg/ratelimit"
	"chaincrawl/pkg/retry"
	"chaincrawl/pkg/selector"
)

// maxPageSize is the largest page body accepted
const maxPageSize = 32 << 20

// Credentials supplies per-host request credentials
type Credentials interface {
	// ForHost returns the Cookie header value and User-Agent override for
	// host. Empty strings mean nothing is configured.
	ForHost(host string) (cookie, userAgent string)
}

// Options configures a Client
type Options struct {
	Timeout     time.Duration
	UserAgent   string
	MaxAttempts int
	// Backoff between page fetch attempts; defaults to retry.NewErrorTypeBackoff
	Backoff     retry.BackoffStrategy
	Limiter     ratelimit.Limiter
	Credentials Credentials
	Renderer    PageRenderer
	Logger      logger.Logger
}

// PageRenderer produces the HTML of a page after scripts have run
type PageRenderer interface {
	Render(ctx context.Context, pageURL string, headers http.Header) (string, error)
}

// Client fetches pages and downloads assets
type Client struct {
	httpClient  *http.Client
	headers     map[string]string
	userAgent   string
	maxAttempts int
	backoff     retry.BackoffStrategy
	limiter     ratelimit.Limiter
	credentials Credentials
	renderer    PageRenderer
	maxPageSize int64
	logger      logger.Logger
}

// NewClient creates a Client
func NewClient(opts Options) *Client {
	log := opts.Logger
	if log == nil {
		log = logger.GetLogger()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.Backoff == nil {
		opts.Backoff = retry.NewErrorTypeBackoff()
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: opts.Timeout,
		},
		headers: map[string]string{
			"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,image/apng,*/*;q=0.8",
			"Accept-Language": "en-US,en;q=0.9",
			"Cache-Control":   "no-cache",
			"Pragma":          "no-cache",
		},
		userAgent:   opts.UserAgent,
		maxAttempts: max(opts.MaxAttempts, 1),
		backoff:     opts.Backoff,
		limiter:     opts.Limiter,
		credentials: opts.Credentials,
		renderer:    opts.Renderer,
		maxPageSize: maxPageSize,
		logger:      log.WithField("component", "fetch"),
	}
}

// SetHeader sets a header sent with every request
func (c *Client) SetHeader(key, value string) {
	c.headers[key] = value
}

// requestHeaders builds the header set for a request to rawURL
func (c *Client) requestHeaders(rawURL string) http.Header {
	h := http.Header{}
	for k, v := range c.headers {
		h.Set(k, v)
	}
	if c.userAgent != "" {
		h.Set("User-Agent", c.userAgent)
	}

	if c.credentials != nil {
		if u, err := url.Parse(rawURL); err == nil {
			cookie, ua := c.credentials.ForHost(u.Hostname())
			if cookie != "" {
				h.Set("Cookie", cookie)
			}
			if ua != "" {
				h.Set("User-Agent", ua)
			}
		}
	}
	return h
}

// Fetch retrieves the page at pageURL and parses it. With render set the
// page is loaded through the headless renderer. Transient failures are
// retried; the returned error is always of type Fetch.
func (c *Client) Fetch(ctx context.Context, pageURL string, render bool) (*selector.Document, error) {
	cfg := &retry.Config{
		MaxAttempts: c.maxAttempts,
		Backoff:     c.backoff,
		Logger:      c.logger.WithField("url", pageURL),
	}

	body, err := retry.DoWithResult(ctx, cfg, func(ctx context.Context) ([]byte, error) {
		if render && c.renderer != nil {
			return c.render(ctx, pageURL)
		}
		return c.get(ctx, pageURL)
	})
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeFetch, err, "page fetch failed").WithURL(pageURL)
	}

	doc, err := selector.Parse(bytes.NewReader(body), pageURL)
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeFetch, err, "page parse failed").WithURL(pageURL)
	}
	return doc, nil
}

func (c *Client) get(ctx context.Context, pageURL string) ([]byte, error) {
	resp, err := c.do(ctx, pageURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxPageSize+1))
	if err != nil {
		return nil, &errs.Error{Type: errs.ErrorTypeNetwork, Message: "failed to read response body", Err: err}
	}
	// A cut document would hide the next link
	if int64(len(body)) > c.maxPageSize {
		return nil, &errs.Error{
			Type:    errs.ErrorTypeFetch,
			Message: fmt.Sprintf("page larger than %d bytes", c.maxPageSize),
		}
	}
	return body, nil
}

func (c *Client) render(ctx context.Context, pageURL string) ([]byte, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}

	start := time.Now()
	html, err := c.renderer.Render(ctx, pageURL, c.requestHeaders(pageURL))
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &errs.Error{Type: errs.ErrorTypeNetwork, Message: "render failed", Err: err}
	}

	c.logger.DebugWithFields("Page rendered", map[string]interface{}{
		"url":      pageURL,
		"duration": time.Since(start),
		"bytes":    len(html),
	})
	return []byte(html), nil
}

// Download streams the asset at assetURL into w and returns the byte count.
// Downloads are not retried.
func (c *Client) Download(ctx context.Context, assetURL string, w io.Writer) (int64, error) {
	resp, err := c.do(ctx, assetURL)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, &errs.Error{Type: errs.ErrorTypeNetwork, Message: "failed to read asset body", Err: err}
	}
	return n, nil
}

// do issues a GET and maps non-2xx statuses to typed errors
func (c *Client) do(ctx context.Context, rawURL string) (*http.Response, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &errs.Error{Type: errs.ErrorTypeUnknown, Message: "failed to create request", Err: err}
	}
	req.Header = c.requestHeaders(rawURL)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		c.logger.WithError(err).DebugWithFields("HTTP request failed", map[string]interface{}{
			"url":      rawURL,
			"duration": time.Since(start),
		})
		return nil, &errs.Error{Type: errs.ErrorTypeNetwork, Message: "request failed", Err: err}
	}

	logger.LogRequest(c.logger, req.Method, rawURL, resp.StatusCode, time.Since(start))

	if err := checkResponseStatus(resp); err != nil {
		resp.Body.Close()
		return nil, err
	}
	return resp, nil
}

func (c *Client) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	return c.limiter.Wait(ctx)
}

// checkResponseStatus maps an HTTP status to a typed error, nil for 2xx
func checkResponseStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	e := &errs.Error{
		Type: errs.ClassifyStatus(resp.StatusCode),
		Code: resp.StatusCode,
	}
	switch e.Type {
	case errs.ErrorTypeRateLimit:
		e.Message = "rate limit exceeded"
	case errs.ErrorTypeNotFound:
		e.Message = "resource not found"
	case errs.ErrorTypeServerError:
		e.Message = "server error"
	default:
		e.Message = fmt.Sprintf("unexpected status code: %d", resp.StatusCode)
	}
	return e
}
