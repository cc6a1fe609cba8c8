package crawler

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/nihatbirbudak/Hotel-Lead-Builder/httpx"
	"github.com/nihatbirbudak/Hotel-Lead-Builder/pkg/resilience"
)

func newTestCrawler() *Crawler {
	breaker := resilience.NewCircuitBreaker("http", resilience.Config{FailureThreshold: 10})
	return New(httpx.New(breaker, nil), nil)
}

type requestLog struct {
	mu    sync.Mutex
	paths []string
}

func (l *requestLog) add(path string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.paths = append(l.paths, path)
}

func (l *requestLog) all() []string {
	l.mu.Lock()
	defer l.mu.Unlock()

	return append([]string{}, l.paths...)
}

func TestCrawlPriorityOrderAndPageBudget(t *testing.T) {
	log := &requestLog{}

	var srv *httptest.Server

	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log.add(r.URL.Path)

		switch r.URL.Path {
		case "/":
			fmt.Fprintf(w, `<html><body>
			<a href="/brochure.pdf">brochure</a>
			<a href="/rooms">rooms</a>
			<a href="/contact">contact us</a>
			<a href="http://elsewhere.example/page">external</a>
			</body></html>`)
		case "/contact":
			fmt.Fprint(w, `<html><body>rezervasyon@pearlhotel.com</body></html>`)
		case "/rooms":
			fmt.Fprint(w, `<html><body>rooms only</body></html>`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := newTestCrawler()

	email, score := c.CrawlForEmail(context.Background(), srv.URL, 2)

	if email != "rezervasyon@pearlhotel.com" {
		t.Fatalf("expected contact-page email, got %q", email)
	}

	// Exact preferred local (40) + priority page bonus (15).
	if score != 55 {
		t.Fatalf("expected score 55, got %d", score)
	}

	paths := log.all()
	if len(paths) != 2 {
		t.Fatalf("page budget of 2 exceeded: %v", paths)
	}

	// The contact link jumps the queue ahead of /rooms.
	if paths[0] != "/" || paths[1] != "/contact" {
		t.Fatalf("expected priority ordering [/ /contact], got %v", paths)
	}
}

func TestCrawlNeverLeavesHost(t *testing.T) {
	external := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		t.Error("crawler must not fetch external hosts")
	}))
	defer external.Close()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `<html><body><a href="%s/page">external</a></body></html>`, external.URL)
	}))
	defer srv.Close()

	c := newTestCrawler()

	if email, _ := c.CrawlForEmail(context.Background(), srv.URL, 5); email != "" {
		t.Fatalf("unexpected email: %q", email)
	}
}

func TestCrawlSkipsNonHTML(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/data" {
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, `{"email":"hidden@pearlhotel.com"}`)

			return
		}

		fmt.Fprint(w, `<html><body><a href="/data">data</a></body></html>`)
	}))
	defer srv.Close()

	c := newTestCrawler()

	if email, _ := c.CrawlForEmail(context.Background(), srv.URL, 5); email != "" {
		t.Fatalf("JSON responses must not contribute emails, got %q", email)
	}
}

func TestCrawlKeepsMaxScorePerEmail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/":
			fmt.Fprint(w, `<html><body>info@pearlhotel.com <a href="/iletisim">iletisim</a></body></html>`)
		case "/iletisim":
			fmt.Fprint(w, `<html><body>info@pearlhotel.com</body></html>`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := newTestCrawler()

	email, score := c.CrawlForEmail(context.Background(), srv.URL, 5)
	if email != "info@pearlhotel.com" {
		t.Fatalf("expected info@pearlhotel.com, got %q", email)
	}

	// Homepage scores 40, the iletisim page re-scores it at 55; max wins.
	if score != 55 {
		t.Fatalf("expected 55, got %d", score)
	}
}

func TestCrawlPerPageFailuresContinue(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/":
			fmt.Fprint(w, `<html><body><a href="/broken">broken</a><a href="/contact">contact</a></body></html>`)
		case "/broken":
			panic(http.ErrAbortHandler)
		case "/contact":
			fmt.Fprint(w, `<html><body>info@pearlhotel.com</body></html>`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := newTestCrawler()

	email, _ := c.CrawlForEmail(context.Background(), srv.URL, 5)
	if email != "info@pearlhotel.com" {
		t.Fatalf("expected crawl to survive a broken page, got %q", email)
	}
}
