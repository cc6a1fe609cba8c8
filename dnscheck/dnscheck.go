// Package dnscheck pre-filters domain-guess candidates by DNS resolution.
// A refused lookup is roughly an order of magnitude cheaper than a TCP/HTTP
// probe, and most generated candidates simply do not exist.
package dnscheck

import (
	"context"
	"errors"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/miekg/dns"
	"github.com/rs/zerolog"
)

const (
	// DefaultTimeout bounds a single lookup. DNS answers are fast; anything
	// slower is treated as transient and left uncached.
	DefaultTimeout = 2 * time.Second

	// DefaultWorkers is the fan-out used when filtering a candidate batch.
	DefaultWorkers = 10

	resolvConfPath = "/etc/resolv.conf"
	fallbackServer = "1.1.1.1:53"
)

// Cache stores resolution results keyed by bare host.
type Cache interface {
	GetDNS(domain string) (exists, ok bool)
	SetDNS(domain string, exists bool)
}

// Checker resolves hosts against the system's configured nameserver.
type Checker struct {
	client  *dns.Client
	server  string
	timeout time.Duration
	workers int
	cache   Cache
	logger  *zerolog.Logger
}

// Option configures a Checker.
type Option func(*Checker)

// WithServer overrides the nameserver (host:port).
func WithServer(server string) Option {
	return func(c *Checker) { c.server = server }
}

// WithTimeout overrides the per-lookup timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Checker) { c.timeout = d }
}

// WithWorkers overrides the batch fan-out.
func WithWorkers(n int) Option {
	return func(c *Checker) {
		if n > 0 {
			c.workers = n
		}
	}
}

// WithCache attaches a resolution cache.
func WithCache(cache Cache) Option {
	return func(c *Checker) { c.cache = cache }
}

// New creates a Checker. The nameserver defaults to the first entry of
// /etc/resolv.conf.
func New(logger *zerolog.Logger, opts ...Option) *Checker {
	c := &Checker{
		client:  &dns.Client{Timeout: DefaultTimeout},
		timeout: DefaultTimeout,
		workers: DefaultWorkers,
		logger:  logger,
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.server == "" {
		c.server = systemResolver()
	}

	c.client.Timeout = c.timeout

	return c
}

func systemResolver() string {
	conf, err := dns.ClientConfigFromFile(resolvConfPath)
	if err != nil || len(conf.Servers) == 0 {
		return fallbackServer
	}

	return net.JoinHostPort(conf.Servers[0], conf.Port)
}

// ExtractHost reduces a URL or bare domain to the host used for resolution:
// scheme, leading www. and any path are stripped.
func ExtractHost(rawURL string) string {
	host := strings.ToLower(strings.TrimSpace(rawURL))
	host = strings.TrimPrefix(host, "https://")
	host = strings.TrimPrefix(host, "http://")
	host = strings.TrimPrefix(host, "www.")

	if i := strings.IndexByte(host, '/'); i >= 0 {
		host = host[:i]
	}

	return strings.TrimSpace(host)
}

// Check reports whether the host resolves. NXDOMAIN results are cached as
// negatives; timeouts and other transient errors are not cached.
func (c *Checker) Check(ctx context.Context, host string) bool {
	host = ExtractHost(host)
	if host == "" {
		return false
	}

	if c.cache != nil {
		if exists, ok := c.cache.GetDNS(host); ok {
			return exists
		}
	}

	exists, transient := c.resolve(ctx, host)

	if c.cache != nil && !transient {
		c.cache.SetDNS(host, exists)
	}

	return exists
}

func (c *Checker) resolve(ctx context.Context, host string) (exists, transient bool) {
	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(host), dns.TypeA)
	msg.RecursionDesired = true

	queryCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, _, err := c.client.ExchangeContext(queryCtx, msg, c.server)
	if err != nil {
		var netErr net.Error
		if errors.Is(queryCtx.Err(), context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
			c.debug(host, "dns timeout")
			return false, true
		}

		c.debug(host, err.Error())

		return false, true
	}

	switch resp.Rcode {
	case dns.RcodeSuccess:
		return len(resp.Answer) > 0, false
	case dns.RcodeNameError:
		return false, false
	default:
		// SERVFAIL and friends are resolver trouble, not proof of absence.
		return false, true
	}
}

func (c *Checker) debug(host, msg string) {
	if c.logger != nil {
		c.logger.Debug().Str("host", host).Msg(msg)
	}
}

// Filter returns only the URLs whose host resolves. Each distinct host is
// resolved at most once, through a bounded worker pool; the input order of
// surviving URLs is preserved.
func (c *Checker) Filter(ctx context.Context, urls []string) []string {
	hostToURLs := make(map[string][]string)
	hosts := make([]string, 0, len(urls))

	for _, u := range urls {
		host := ExtractHost(u)
		if host == "" {
			continue
		}

		if _, seen := hostToURLs[host]; !seen {
			hosts = append(hosts, host)
		}

		hostToURLs[host] = append(hostToURLs[host], u)
	}

	existing := make(map[string]bool, len(hosts))

	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		sem = make(chan struct{}, c.workers)
	)

	for _, host := range hosts {
		select {
		case <-ctx.Done():
			break
		case sem <- struct{}{}:
		}

		if ctx.Err() != nil {
			break
		}

		wg.Add(1)

		go func(host string) {
			defer wg.Done()
			defer func() { <-sem }()

			ok := c.Check(ctx, host)

			mu.Lock()
			existing[host] = ok
			mu.Unlock()
		}(host)
	}

	wg.Wait()

	valid := make([]string, 0, len(urls))

	for _, u := range urls {
		if existing[ExtractHost(u)] {
			valid = append(valid, u)
		}
	}

	return valid
}
