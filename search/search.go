// Package search queries a public HTML-rendering search endpoint and parses
// the result anchors. The shipped backend posts to the DuckDuckGo HTML
// endpoint; anything that yields result anchors satisfies Backend.
package search

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/nihatbirbudak/Hotel-Lead-Builder/pkg/resilience"
)

const (
	// DefaultEndpoint renders results as plain HTML, no scripting needed.
	DefaultEndpoint = "https://html.duckduckgo.com/html/"

	// DefaultTimeout bounds one search POST.
	DefaultTimeout = 15 * time.Second

	// maxAnchors caps how many result anchors are inspected per response.
	maxAnchors = 50

	maxTitleLen = 100
)

var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:121.0) Gecko/20100101 Firefox/121.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
}

// Result is one parsed search hit.
type Result struct {
	URL   string `json:"url"`
	Title string `json:"title"`
}

// Backend is a pluggable search provider.
type Backend interface {
	Search(ctx context.Context, query string) ([]Result, error)
}

// Cache stores raw result payloads keyed by query.
type Cache interface {
	GetSearch(query string) (payload []byte, ok bool)
	SetSearch(query string, payload []byte)
}

// Client is the DDG HTML backend: breaker-gated, retried with exponential
// backoff and throttled to stay under the endpoint's rate limits.
type Client struct {
	endpoint   string
	httpClient *http.Client
	breaker    *resilience.CircuitBreaker
	retryer    *resilience.Retryer
	limiter    *rate.Limiter
	cache      Cache
	logger     *zerolog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithEndpoint overrides the search endpoint URL.
func WithEndpoint(endpoint string) Option {
	return func(c *Client) { c.endpoint = endpoint }
}

// WithCache attaches a search-result cache.
func WithCache(cache Cache) Option {
	return func(c *Client) { c.cache = cache }
}

// WithTimeout overrides the request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// New creates a search client gated by the given breaker.
func New(breaker *resilience.CircuitBreaker, logger *zerolog.Logger, opts ...Option) *Client {
	c := &Client{
		endpoint:   DefaultEndpoint,
		httpClient: &http.Client{Timeout: DefaultTimeout},
		breaker:    breaker,
		retryer: resilience.NewRetryer(resilience.RetryConfig{
			MaxAttempts:   3,
			InitialDelay:  4 * time.Second,
			MaxDelay:      10 * time.Second,
			BackoffFactor: 2.0,
			Jitter:        true,
		}),
		limiter: rate.NewLimiter(rate.Limit(1), 1),
		logger:  logger,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Breaker exposes the gating breaker so callers can skip the strategy while
// it is open.
func (c *Client) Breaker() *resilience.CircuitBreaker {
	return c.breaker
}

// Search posts the query and returns the parsed result anchors. Responses
// are cached for a day keyed by the lowercased query.
func (c *Client) Search(ctx context.Context, query string) ([]Result, error) {
	if c.cache != nil {
		if payload, ok := c.cache.GetSearch(query); ok {
			var results []Result
			if err := json.Unmarshal(payload, &results); err == nil {
				if c.logger != nil {
					c.logger.Debug().Str("query", query).Msg("search cache hit")
				}

				return results, nil
			}
		}
	}

	var body []byte

	err := c.retryer.Execute(ctx, func() error {
		return c.breaker.Execute(ctx, func() error {
			if err := c.limiter.Wait(ctx); err != nil {
				return err
			}

			form := url.Values{"q": {query}}

			req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, strings.NewReader(form.Encode()))
			if err != nil {
				return err
			}

			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
			req.Header.Set("User-Agent", userAgents[rand.Intn(len(userAgents))])
			req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
			req.Header.Set("Accept-Language", "tr-TR,tr;q=0.9,en;q=0.8")
			req.Header.Set("Referer", "https://duckduckgo.com/")

			resp, err := c.httpClient.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			// 202 means "accepted, rendered anyway" on this endpoint.
			if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
				return fmt.Errorf("search endpoint returned HTTP %d", resp.StatusCode)
			}

			body, err = io.ReadAll(resp.Body)

			return err
		})
	})
	if err != nil {
		return nil, err
	}

	results := ParseResults(body)

	if c.cache != nil {
		if payload, err := json.Marshal(results); err == nil {
			c.cache.SetSearch(query, payload)
		}
	}

	return results, nil
}

// ParseResults extracts external result links from a search response body.
// Internal and relative anchors are dropped and redirect wrappers decoded.
func ParseResults(body []byte) []Result {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(body)))
	if err != nil {
		return nil
	}

	var results []Result

	seen := 0

	doc.Find("a[href]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if seen >= maxAnchors {
			return false
		}

		seen++

		href := strings.TrimSpace(s.AttrOr("href", ""))
		title := strings.TrimSpace(s.Text())

		if len(title) > maxTitleLen {
			title = title[:maxTitleLen]
		}

		if href == "" || strings.HasPrefix(href, "/") || strings.Contains(href, "duckduckgo") {
			return true
		}

		if !strings.HasPrefix(href, "http") {
			return true
		}

		href = DecodeRedirect(href)

		if !strings.HasPrefix(href, "http") {
			return true
		}

		results = append(results, Result{URL: href, Title: title})

		return true
	})

	return results
}

// DecodeRedirect unwraps result URLs packed into uddg= or r= query
// parameters. Unwrappable links are returned as-is.
func DecodeRedirect(href string) string {
	if !strings.Contains(href, "uddg=") && !strings.Contains(href, "r=") {
		return href
	}

	parsed, err := url.Parse(href)
	if err != nil {
		return href
	}

	q := parsed.Query()

	if target := q.Get("uddg"); target != "" {
		return target
	}

	if target := q.Get("r"); target != "" {
		return target
	}

	return href
}
