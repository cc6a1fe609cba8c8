package crawler

import (
	"context"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"

	"github.com/nihatbirbudak/Hotel-Lead-Builder/httpx"
)

// DefaultMaxPages bounds one crawl.
const DefaultMaxPages = 10

// earlyExitScore stops the crawl once an address this good is known.
const earlyExitScore = 70

// skipExtensions are non-HTML resources never worth fetching.
var skipExtensions = []string{".pdf", ".jpg", ".png", ".gif", ".css", ".js", ".zip", ".doc"}

// Crawler walks a site looking for the best-scored contact email. It visits
// at most maxPages same-host pages, contact-like pages first.
type Crawler struct {
	client *httpx.Client
	logger *zerolog.Logger
}

// New creates a Crawler on top of the shared HTTP facade.
func New(client *httpx.Client, logger *zerolog.Logger) *Crawler {
	return &Crawler{client: client, logger: logger}
}

func skippableResource(rawURL string) bool {
	lower := strings.ToLower(rawURL)

	for _, ext := range skipExtensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}

	return false
}

// CrawlForEmail crawls from startURL and returns the best email found with
// its score, or ("", 0) when nothing qualified. Per-page failures are logged
// and skipped; the crawl itself never fails.
func (c *Crawler) CrawlForEmail(ctx context.Context, startURL string, maxPages int) (string, int) {
	if maxPages <= 0 {
		maxPages = DefaultMaxPages
	}

	parsed, err := url.Parse(startURL)
	if err != nil {
		return "", 0
	}

	rootHost := parsed.Host

	visited := make(map[string]bool)
	found := make(map[string]int)
	queue := []string{startURL}
	pagesCrawled := 0

	c.debug("starting crawl", startURL)

	for len(queue) > 0 && pagesCrawled < maxPages {
		if ctx.Err() != nil {
			break
		}

		current := queue[0]
		queue = queue[1:]

		if visited[current] || skippableResource(current) {
			continue
		}

		resp, err := c.client.Get(ctx, current)
		if err != nil {
			c.debug("fetch failed", current)
			continue
		}

		contentType := strings.ToLower(resp.Header.Get("Content-Type"))
		if !strings.Contains(contentType, "text/html") && !strings.Contains(contentType, "application/xhtml") {
			continue
		}

		visited[current] = true
		pagesCrawled++

		body := string(resp.Body)

		doc, docErr := goquery.NewDocumentFromReader(strings.NewReader(body))

		var pageEmails []string

		if docErr == nil {
			pageEmails = ExtractFromHTML(doc)
		}

		// The raw body catches addresses assembled outside the DOM text.
		pageEmails = append(pageEmails, ExtractFromText(body)...)

		for _, email := range pageEmails {
			score := ScoreEmail(email, rootHost)
			if isPriorityURL(current) {
				score += priorityBonus
			}

			if prev, seen := found[email]; !seen || score > prev {
				found[email] = score
				c.debug("found email", email)
			}
		}

		if docErr == nil {
			queue = c.enqueueLinks(doc, current, rootHost, visited, queue)
		}

		if email, score := best(found); email != "" && score >= earlyExitScore {
			c.info("high-confidence email found", email)
			return email, score
		}
	}

	email, score := best(found)
	if email != "" {
		c.info("best email", email)
	} else {
		c.debug("no emails found", startURL)
	}

	return email, score
}

// enqueueLinks adds unvisited same-host anchor targets to the work queue,
// priority pages at the front.
func (c *Crawler) enqueueLinks(doc *goquery.Document, pageURL, rootHost string, visited map[string]bool, queue []string) []string {
	base, err := url.Parse(pageURL)
	if err != nil {
		return queue
	}

	queued := make(map[string]bool, len(queue))

	for _, u := range queue {
		queued[u] = true
	}

	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href := strings.TrimSpace(s.AttrOr("href", ""))
		if href == "" || strings.HasPrefix(href, "mailto:") || strings.HasPrefix(href, "javascript:") {
			return
		}

		ref, err := url.Parse(href)
		if err != nil {
			return
		}

		target := base.ResolveReference(ref)
		if target.Host != rootHost {
			return
		}

		target.Fragment = ""
		full := target.String()

		if visited[full] || queued[full] {
			return
		}

		queued[full] = true

		if isPriorityURL(full) {
			queue = append([]string{full}, queue...)
		} else {
			queue = append(queue, full)
		}
	})

	return queue
}

func (c *Crawler) info(msg, subject string) {
	if c.logger != nil {
		c.logger.Info().Str("subject", subject).Msg(msg)
	}
}

func (c *Crawler) debug(msg, subject string) {
	if c.logger != nil {
		c.logger.Debug().Str("subject", subject).Msg(msg)
	}
}

func best(found map[string]int) (string, int) {
	bestEmail := ""
	bestScore := 0

	for email, score := range found {
		if bestEmail == "" || score > bestScore {
			bestEmail = email
			bestScore = score
		}
	}

	return bestEmail, bestScore
}
