package httpx

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/nihatbirbudak/Hotel-Lead-Builder/pkg/resilience"
)

func newClient(opts ...Option) *Client {
	breaker := resilience.NewCircuitBreaker("http", resilience.Config{FailureThreshold: 10})
	return New(breaker, nil, opts...)
}

func TestHeadDoesNotFollowRedirects(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodHead {
			t.Errorf("expected HEAD, got %s", r.Method)
		}

		w.Header().Set("Location", "http://www.pearlhotel.com/")
		w.WriteHeader(http.StatusMovedPermanently)
	}))
	defer srv.Close()

	result, err := newClient().Head(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.StatusCode != http.StatusMovedPermanently {
		t.Fatalf("expected 301, got %d", result.StatusCode)
	}

	if result.FinalURL != "http://www.pearlhotel.com/" {
		t.Fatalf("expected redirect target as final URL, got %q", result.FinalURL)
	}
}

func TestRequestHeaders(t *testing.T) {
	var ua, lang, referer string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ua = r.Header.Get("User-Agent")
		lang = r.Header.Get("Accept-Language")
		referer = r.Header.Get("Referer")
	}))
	defer srv.Close()

	if _, err := newClient().Get(context.Background(), srv.URL); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.Contains(ua, "Mozilla/5.0") {
		t.Fatalf("expected a desktop UA, got %q", ua)
	}

	found := false

	for _, agent := range userAgents {
		if ua == agent {
			found = true
			break
		}
	}

	if !found {
		t.Fatalf("UA %q not from the fixed pool", ua)
	}

	if lang != "tr-TR,tr;q=0.9,en;q=0.8" {
		t.Fatalf("unexpected Accept-Language: %q", lang)
	}

	if referer != "https://duckduckgo.com/" {
		t.Fatalf("unexpected Referer: %q", referer)
	}
}

type headCache struct {
	entries map[string][2]any
	sets    int
}

func (c *headCache) GetDomain(domain string) (int, string, bool) {
	e, ok := c.entries[domain]
	if !ok {
		return 0, "", false
	}

	return e[0].(int), e[1].(string), true
}

func (c *headCache) SetDomain(domain string, status int, finalURL string) {
	if c.entries == nil {
		c.entries = map[string][2]any{}
	}

	c.entries[domain] = [2]any{status, finalURL}
	c.sets++
}

func TestHeadUsesCache(t *testing.T) {
	calls := 0

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
	}))
	defer srv.Close()

	cache := &headCache{}
	client := newClient(WithCache(cache))

	if _, err := client.Head(context.Background(), srv.URL); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := client.Head(context.Background(), srv.URL); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if calls != 1 {
		t.Fatalf("expected one upstream HEAD, got %d", calls)
	}

	if cache.sets != 1 {
		t.Fatalf("expected one cache write, got %d", cache.sets)
	}
}

func TestCircuitOpenShortCircuits(t *testing.T) {
	breaker := resilience.NewCircuitBreaker("http", resilience.Config{FailureThreshold: 1})
	_ = breaker.Execute(context.Background(), func() error { return errors.New("boom") })

	client := New(breaker, nil)

	calls := 0

	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		calls++
	}))
	defer srv.Close()

	_, err := client.Head(context.Background(), srv.URL)
	if !errors.Is(err, resilience.ErrCircuitBreakerOpen) {
		t.Fatalf("expected circuit-open error, got %v", err)
	}

	if calls != 0 {
		t.Fatalf("network must not be touched while the circuit is open, got %d calls", calls)
	}
}

func TestReachable(t *testing.T) {
	for _, code := range []int{200, 301, 302, 303, 307, 308} {
		if !Reachable(code) {
			t.Fatalf("expected %d to be reachable", code)
		}
	}

	for _, code := range []int{202, 404, 403, 500} {
		if Reachable(code) {
			t.Fatalf("expected %d to be unreachable", code)
		}
	}
}
