// Package httpx is a thin facade over net/http shared by the probing,
// validation and crawling stages: rotating desktop user agents, fixed
// request headers, split HEAD/GET clients and circuit-breaker gating.
package httpx

import (
	"context"
	"io"
	"math/rand"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/nihatbirbudak/Hotel-Lead-Builder/pkg/resilience"
)

// Default timeouts. HEAD is a reachability probe only; GET pulls content.
const (
	DefaultHeadTimeout = 2 * time.Second
	DefaultGetTimeout  = 10 * time.Second

	maxBodyBytes = 10 * 1024 * 1024 // 10MB
)

var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:121.0) Gecko/20100101 Firefox/121.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
}

// reachableStatuses are the HEAD responses that count as a live site.
var reachableStatuses = map[int]bool{
	http.StatusOK:                true,
	http.StatusMovedPermanently:  true,
	http.StatusFound:             true,
	http.StatusSeeOther:          true,
	http.StatusTemporaryRedirect: true,
	http.StatusPermanentRedirect: true,
}

// Reachable reports whether a HEAD status code counts as a live site.
func Reachable(statusCode int) bool {
	return reachableStatuses[statusCode]
}

// Cache stores HEAD probe results keyed by URL.
type Cache interface {
	GetDomain(domain string) (statusCode int, finalURL string, ok bool)
	SetDomain(domain string, statusCode int, finalURL string)
}

// HeadResult is the outcome of a reachability probe.
type HeadResult struct {
	StatusCode int
	FinalURL   string
}

// Response is a fetched page.
type Response struct {
	StatusCode int
	FinalURL   string
	Header     http.Header
	Body       []byte
}

// Client issues breaker-gated HTTP requests with browser-like headers.
type Client struct {
	headClient *http.Client
	getClient  *http.Client
	breaker    *resilience.CircuitBreaker
	cache      Cache
	logger     *zerolog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithCache attaches a HEAD-result cache.
func WithCache(cache Cache) Option {
	return func(c *Client) { c.cache = cache }
}

// WithTimeouts overrides the probe and fetch timeouts.
func WithTimeouts(head, get time.Duration) Option {
	return func(c *Client) {
		if head > 0 {
			c.headClient.Timeout = head
		}

		if get > 0 {
			c.getClient.Timeout = get
		}
	}
}

// New creates a Client gated by the given breaker.
func New(breaker *resilience.CircuitBreaker, logger *zerolog.Logger, opts ...Option) *Client {
	c := &Client{
		headClient: &http.Client{
			Timeout: DefaultHeadTimeout,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		getClient: &http.Client{Timeout: DefaultGetTimeout},
		breaker:   breaker,
		logger:    logger,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

func setHeaders(req *http.Request) {
	req.Header.Set("User-Agent", userAgents[rand.Intn(len(userAgents))])
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "tr-TR,tr;q=0.9,en;q=0.8")
	req.Header.Set("Referer", "https://duckduckgo.com/")
}

// Head probes a URL without following redirects. Redirect targets are
// reported through FinalURL. Results for reachable and unreachable statuses
// alike are cached; transport errors are not.
func (c *Client) Head(ctx context.Context, rawURL string) (HeadResult, error) {
	if c.cache != nil {
		if status, finalURL, ok := c.cache.GetDomain(rawURL); ok {
			return HeadResult{StatusCode: status, FinalURL: finalURL}, nil
		}
	}

	var result HeadResult

	err := c.breaker.Execute(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodHead, rawURL, nil)
		if err != nil {
			return err
		}

		setHeaders(req)

		resp, err := c.headClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		result.StatusCode = resp.StatusCode
		result.FinalURL = rawURL

		if loc := resp.Header.Get("Location"); loc != "" && resp.StatusCode >= 300 && resp.StatusCode < 400 {
			result.FinalURL = loc
		}

		return nil
	})
	if err != nil {
		return HeadResult{}, err
	}

	if c.cache != nil {
		c.cache.SetDomain(rawURL, result.StatusCode, result.FinalURL)
	}

	return result, nil
}

// Get fetches a URL following redirects, with the body capped at 10MB.
func (c *Client) Get(ctx context.Context, rawURL string) (*Response, error) {
	var result *Response

	err := c.breaker.Execute(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return err
		}

		setHeaders(req)

		resp, err := c.getClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		if err != nil {
			return err
		}

		finalURL := rawURL
		if resp.Request != nil && resp.Request.URL != nil {
			finalURL = resp.Request.URL.String()
		}

		result = &Response{
			StatusCode: resp.StatusCode,
			FinalURL:   finalURL,
			Header:     resp.Header,
			Body:       body,
		}

		return nil
	})
	if err != nil {
		if c.logger != nil {
			c.logger.Debug().Err(err).Str("url", rawURL).Msg("GET failed")
		}

		return nil, err
	}

	return result, nil
}
