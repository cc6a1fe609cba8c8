package dnscheck

import (
	"context"
	"testing"
)

func TestExtractHost(t *testing.T) {
	cases := map[string]string{
		"http://www.pearlhotel.com.tr":          "pearlhotel.com.tr",
		"https://pearlhotel.com/contact":        "pearlhotel.com",
		"http://WWW.AlexiaResort.COM/tr/rooms/": "alexiaresort.com",
		"admiralotel.com":                       "admiralotel.com",
		"www.admiralotel.com":                   "admiralotel.com",
	}

	for in, want := range cases {
		if got := ExtractHost(in); got != want {
			t.Fatalf("ExtractHost(%q) = %q, want %q", in, got, want)
		}
	}
}

// fakeCache returns canned answers so Filter can run without a resolver.
type fakeCache struct {
	entries map[string]bool
	sets    map[string]bool
}

func (f *fakeCache) GetDNS(domain string) (bool, bool) {
	exists, ok := f.entries[domain]
	return exists, ok
}

func (f *fakeCache) SetDNS(domain string, exists bool) {
	if f.sets == nil {
		f.sets = map[string]bool{}
	}

	f.sets[domain] = exists
}

func TestFilterUsesCacheAndPreservesOrder(t *testing.T) {
	cache := &fakeCache{entries: map[string]bool{
		"pearlhotelistanbul.com.tr": true,
		"pearlhotelistanbul.com":    false,
		"alexiaresort.com":          true,
	}}

	c := New(nil, WithCache(cache), WithWorkers(4))

	urls := []string{
		"http://www.pearlhotelistanbul.com.tr",
		"http://pearlhotelistanbul.com.tr",
		"http://www.pearlhotelistanbul.com",
		"http://www.alexiaresort.com",
	}

	got := c.Filter(context.Background(), urls)

	want := []string{
		"http://www.pearlhotelistanbul.com.tr",
		"http://pearlhotelistanbul.com.tr",
		"http://www.alexiaresort.com",
	}

	if len(got) != len(want) {
		t.Fatalf("Filter returned %d URLs, want %d: %v", len(got), len(want), got)
	}

	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Filter[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestCheckCacheHitSkipsResolution(t *testing.T) {
	cache := &fakeCache{entries: map[string]bool{"cached.example": true}}

	// Point at an unroutable server; a cache hit must not touch it.
	c := New(nil, WithCache(cache), WithServer("192.0.2.1:53"))

	if !c.Check(context.Background(), "http://www.cached.example/path") {
		t.Fatal("expected cached positive result")
	}

	if len(cache.sets) != 0 {
		t.Fatalf("cache hit must not rewrite the entry, got %v", cache.sets)
	}
}
