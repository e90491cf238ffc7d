package netx

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// Common errors.
var (
	ErrNotFound     = errors.New("netx: resource not found")
	ErrForbidden    = errors.New("netx: access forbidden")
	ErrUnauthorized = errors.New("netx: unauthorized")
	ErrServerError  = errors.New("netx: server error")
)

// Options configures a Client.
type Options struct {
	// MaxIdleConnsPerHost sets the maximum idle connections per host.
	// Default: 100.
	MaxIdleConnsPerHost int

	// Timeout is the per-request timeout for bulk transfers.
	// Default: 600s.
	Timeout time.Duration

	// ProbeTimeout is the per-request timeout for light probe calls.
	// Default: 5s.
	ProbeTimeout time.Duration

	// RetryAttempts is the maximum number of retry attempts.
	// Default: 3.
	RetryAttempts int

	// RetryBackoff is the initial backoff duration.
	// Default: 500ms.
	RetryBackoff time.Duration

	// RetryMaxBackoff is the maximum backoff duration.
	// Default: 10s.
	RetryMaxBackoff time.Duration

	// RateLimit caps outbound requests per second across this client.
	// Zero means unlimited. Off by default.
	RateLimit float64

	// RateBurst is the token-bucket burst size when RateLimit > 0.
	RateBurst int
}

// DefaultOptions returns options with sensible defaults.
func DefaultOptions() Options {
	return Options{
		MaxIdleConnsPerHost: 100,
		Timeout:             600 * time.Second,
		ProbeTimeout:        5 * time.Second,
		RetryAttempts:       3,
		RetryBackoff:        500 * time.Millisecond,
		RetryMaxBackoff:     10 * time.Second,
	}
}

// FileInfo is the result of a HEAD request.
type FileInfo struct {
	Status        int
	Headers       map[string]string // lowercase header name -> value
	AcceptRanges  bool
	ContentLength int64 // -1 if unknown
	ETag          string
	LastModified  time.Time
}

// RangeResult is the result of a whole-file or range GET. Callers must
// close Body.
type RangeResult struct {
	Body          io.ReadCloser
	Status        int
	Headers       map[string]string
	ContentLength int64
	Elapsed       time.Duration
}

// Client issues HEAD/GET/Range-GET requests with retry and an optional
// rate cap.
type Client struct {
	http    *http.Client
	opts    Options
	limiter *rate.Limiter
}

// NewClient creates a Client with the given options.
func NewClient(opts Options) *Client {
	transport := &http.Transport{
		MaxIdleConnsPerHost: opts.MaxIdleConnsPerHost,
		MaxIdleConns:        opts.MaxIdleConnsPerHost * 2,
		IdleConnTimeout:     90 * time.Second,
		DisableCompression:  true,
	}

	var limiter *rate.Limiter
	if opts.RateLimit > 0 {
		burst := opts.RateBurst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}

	return &Client{
		http:    &http.Client{Transport: transport, Timeout: opts.Timeout},
		opts:    opts,
		limiter: limiter,
	}
}

// Head performs a HEAD request and reports server capabilities.
func (c *Client) Head(ctx context.Context, url string) (*FileInfo, error) {
	var info *FileInfo
	var lastErr error

	for attempt := 0; attempt <= c.opts.RetryAttempts; attempt++ {
		if attempt > 0 {
			if err := c.backoff(ctx, attempt); err != nil {
				return nil, err
			}
		}
		if err := c.wait(ctx); err != nil {
			return nil, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
		if err != nil {
			return nil, fmt.Errorf("netx: create request: %w", err)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			info = &FileInfo{AcceptRanges: false, ContentLength: -1}
			lastErr = err
			continue
		}
		resp.Body.Close()

		if resp.StatusCode >= 500 {
			lastErr = fmt.Errorf("%w: %d %s", ErrServerError, resp.StatusCode, resp.Status)
			continue
		}

		return headerInfoFromResponse(resp), nil
	}

	if info != nil {
		// HEAD failed after retries: treat as no range support with
		// unknown length and let the GET path decide.
		return info, nil
	}
	return nil, fmt.Errorf("netx: head failed after %d attempts: %w", c.opts.RetryAttempts+1, lastErr)
}

func headerInfoFromResponse(resp *http.Response) *FileInfo {
	headers := make(map[string]string, len(resp.Header))
	for k, v := range resp.Header {
		if len(v) > 0 {
			headers[strings.ToLower(k)] = v[0]
		}
	}

	length := int64(-1)
	if resp.ContentLength >= 0 {
		length = resp.ContentLength
	} else if v, ok := headers["content-length"]; ok {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			length = n
		}
	}

	var lastMod time.Time
	if v, ok := headers["last-modified"]; ok {
		if t, err := http.ParseTime(v); err == nil {
			lastMod = t
		}
	}

	return &FileInfo{
		Status:        resp.StatusCode,
		Headers:       headers,
		AcceptRanges:  headers["accept-ranges"] == "bytes",
		ContentLength: length,
		ETag:          headers["etag"],
		LastModified:  lastMod,
	}
}

// GetWhole performs a plain GET, for servers that don't support ranges.
func (c *Client) GetWhole(ctx context.Context, url string) (*RangeResult, error) {
	return c.get(ctx, url, "")
}

// GetRange performs a Range GET. If end < 0 the range is open-ended
// ("bytes=start-"); otherwise it is "bytes=start-end" inclusive.
func (c *Client) GetRange(ctx context.Context, url string, start, end int64) (*RangeResult, error) {
	var rangeHeader string
	if end < 0 {
		rangeHeader = fmt.Sprintf("bytes=%d-", start)
	} else {
		rangeHeader = fmt.Sprintf("bytes=%d-%d", start, end)
	}
	return c.get(ctx, url, rangeHeader)
}

// Probe issues a minimum-cost 1-byte Range GET ("bytes=0-0"), using a
// short per-request timeout distinct from the bulk-transfer timeout.
func (c *Client) Probe(ctx context.Context, url string) (*RangeResult, error) {
	ctx, cancel := context.WithTimeout(ctx, c.opts.ProbeTimeout)
	defer cancel()
	return c.get(ctx, url, "bytes=0-0")
}

func (c *Client) get(ctx context.Context, url, rangeHeader string) (*RangeResult, error) {
	var lastErr error

	for attempt := 0; attempt <= c.opts.RetryAttempts; attempt++ {
		if attempt > 0 {
			if err := c.backoff(ctx, attempt); err != nil {
				return nil, err
			}
		}
		if err := c.wait(ctx); err != nil {
			return nil, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, fmt.Errorf("netx: create request: %w", err)
		}
		if rangeHeader != "" {
			req.Header.Set("Range", rangeHeader)
		}

		start := time.Now()
		resp, err := c.http.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		if resp.StatusCode >= 500 {
			resp.Body.Close()
			lastErr = fmt.Errorf("%w: %d %s", ErrServerError, resp.StatusCode, resp.Status)
			continue
		}
		if err := checkStatusCode(resp.StatusCode); err != nil {
			resp.Body.Close()
			return nil, err
		}

		info := headerInfoFromResponse(resp)
		return &RangeResult{
			Body:          resp.Body,
			Status:        resp.StatusCode,
			Headers:       info.Headers,
			ContentLength: info.ContentLength,
			Elapsed:       time.Since(start),
		}, nil
	}

	return nil, fmt.Errorf("netx: get failed after %d attempts: %w", c.opts.RetryAttempts+1, lastErr)
}

func (c *Client) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	return c.limiter.Wait(ctx)
}

// backoff waits for an exponentially increasing duration with jitter.
func (c *Client) backoff(ctx context.Context, attempt int) error {
	d := c.opts.RetryBackoff * time.Duration(1<<uint(attempt-1))
	if d > c.opts.RetryMaxBackoff {
		d = c.opts.RetryMaxBackoff
	}
	jitter := time.Duration(float64(d) * (0.5 + rand.Float64()))

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(jitter):
		return nil
	}
}

func checkStatusCode(code int) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusNotFound:
		return ErrNotFound
	case code == http.StatusForbidden:
		return ErrForbidden
	case code == http.StatusUnauthorized:
		return ErrUnauthorized
	default:
		return fmt.Errorf("netx: unexpected status code: %d", code)
	}
}
