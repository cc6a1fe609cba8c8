package webrunner

import (
	"context"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/nihatbirbudak/Hotel-Lead-Builder/discovery"
	"github.com/nihatbirbudak/Hotel-Lead-Builder/facility"
	"github.com/nihatbirbudak/Hotel-Lead-Builder/runner"
	"github.com/nihatbirbudak/Hotel-Lead-Builder/web"
	"github.com/nihatbirbudak/Hotel-Lead-Builder/web/sqlite"
)

// gatedFinder blocks each call until a token is released.
type gatedFinder struct {
	tokens chan struct{}
	calls  atomic.Int64
}

func (g *gatedFinder) FindWebsite(ctx context.Context, name, _ string) (*discovery.Result, discovery.Reason) {
	select {
	case <-ctx.Done():
		return nil, discovery.ReasonNoMatch
	case <-g.tokens:
	}

	g.calls.Add(1)

	return &discovery.Result{
		URL:    "http://www." + strings.ToLower(strings.Fields(name)[0]) + "hotel.com",
		Score:  90,
		Source: discovery.SourceDomainGuess,
	}, ""
}

type staticCrawler struct{ email string }

func (s staticCrawler) CrawlForEmail(context.Context, string, int) (string, int) {
	if s.email == "" {
		return "", 0
	}

	return s.email, 75
}

func newTestRunner(t *testing.T, finder websiteFinder, crawl emailCrawler) (*Runner, *sqlite.Repository) {
	t.Helper()

	repo, err := sqlite.New(filepath.Join(t.TempDir(), "leads.db"))
	if err != nil {
		t.Fatalf("open repo: %v", err)
	}

	t.Cleanup(func() { _ = repo.Close() })

	logger := zerolog.Nop()

	r := &Runner{
		cfg:    &runner.Config{JobWorkers: 3, MaxCrawlPages: 10},
		logger: logger,
		repo:   repo,
		engine: finder,
		crawl:  crawl,
		jitter: func(context.Context, time.Duration, time.Duration) {},
		ctx:    context.Background(),
	}

	r.svc = web.NewService(repo, repo)

	return r, repo
}

func seedFacilities(t *testing.T, repo *sqlite.Repository, n int) {
	t.Helper()

	for i := 0; i < n; i++ {
		f := facility.New("", "TESIS "+string(rune('A'+i)), "İSTANBUL", "", facility.DocTypeBasic, "")
		if _, err := repo.Upsert(context.Background(), f); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
}

func createJob(t *testing.T, repo *sqlite.Repository, jobType string) web.Job {
	t.Helper()

	job := web.Job{ID: uuid.New().String(), JobType: jobType, Status: web.StatusQueued, CreatedAt: time.Now().UTC()}
	if err := repo.Create(context.Background(), &job); err != nil {
		t.Fatalf("create job: %v", err)
	}

	return job
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(timeout)

	for time.Now().Before(deadline) {
		if cond() {
			return
		}

		time.Sleep(10 * time.Millisecond)
	}

	t.Fatal("condition not met in time")
}

func TestDiscoveryJobCompletes(t *testing.T) {
	finder := &gatedFinder{tokens: make(chan struct{}, 100)}

	for i := 0; i < 100; i++ {
		finder.tokens <- struct{}{}
	}

	r, repo := newTestRunner(t, finder, staticCrawler{})
	seedFacilities(t, repo, 5)

	job := createJob(t, repo, web.JobTypeDiscovery)
	r.runJob(context.Background(), job, nil, "all", 1.0)

	final, err := repo.Get(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("get job: %v", err)
	}

	if final.Status != web.StatusCompleted {
		t.Fatalf("expected completed, got %s", final.Status)
	}

	if final.TotalItems != 5 || final.ProcessedItems != 5 {
		t.Fatalf("expected 5/5, got %d/%d", final.ProcessedItems, final.TotalItems)
	}

	if final.FinishedAt == nil {
		t.Fatal("expected finished_at to be stamped")
	}

	// Every facility got a website and a SUCCESS log with the grammar the
	// progress endpoint parses.
	found, err := repo.CountLogs(context.Background(), job.ID, web.LevelSuccess, "Found:")
	if err != nil || found != 5 {
		t.Fatalf("expected 5 Found logs, got %d (%v)", found, err)
	}

	facilities, _ := repo.All(context.Background(), "")
	for _, f := range facilities {
		if f.WebsiteStatus != facility.StatusFound || f.Website == "" {
			t.Fatalf("facility not enriched: %+v", f)
		}
	}
}

func TestDiscoveryJobCancellation(t *testing.T) {
	finder := &gatedFinder{tokens: make(chan struct{})}

	r, repo := newTestRunner(t, finder, staticCrawler{})
	seedFacilities(t, repo, 10)

	job := createJob(t, repo, web.JobTypeDiscovery)

	done := make(chan struct{})

	go func() {
		defer close(done)
		r.runJob(context.Background(), job, nil, "all", 1.0)
	}()

	// Let exactly three facilities finish.
	for i := 0; i < 3; i++ {
		finder.tokens <- struct{}{}
	}

	waitFor(t, 5*time.Second, func() bool {
		j, err := repo.Get(context.Background(), job.ID)
		return err == nil && j.ProcessedItems == 3
	})

	// Cancel the job the way the DELETE endpoint does.
	if _, err := r.svc.CancelJob(context.Background(), job.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	// Release one more completion; the runner must observe the cancel before
	// counting it.
	finder.tokens <- struct{}{}

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("job did not stop after cancellation")
	}

	final, err := repo.Get(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("get job: %v", err)
	}

	if final.Status != web.StatusCancelled {
		t.Fatalf("expected cancelled, got %s", final.Status)
	}

	if final.ProcessedItems != 3 {
		t.Fatalf("expected processed_items 3, got %d", final.ProcessedItems)
	}

	if final.FinishedAt == nil {
		t.Fatal("expected finished_at to be stamped")
	}

	// No SUCCESS entries may be written after the cancel observation.
	successBefore, _ := repo.CountLogs(context.Background(), job.ID, web.LevelSuccess, "")

	time.Sleep(200 * time.Millisecond)

	successAfter, _ := repo.CountLogs(context.Background(), job.ID, web.LevelSuccess, "")
	if successAfter != successBefore {
		t.Fatalf("SUCCESS logs written after cancellation: %d -> %d", successBefore, successAfter)
	}
}

func TestEmailJobMarksNotFound(t *testing.T) {
	r, repo := newTestRunner(t, &gatedFinder{tokens: make(chan struct{})}, staticCrawler{email: ""})

	f := facility.New("", "PEARL", "İSTANBUL", "", facility.DocTypeBasic, "")
	f.Website = "http://pearlhotel.com"
	f.WebsiteStatus = facility.StatusFound

	if _, err := repo.Upsert(context.Background(), f); err != nil {
		t.Fatalf("seed: %v", err)
	}

	job := createJob(t, repo, web.JobTypeEmailCrawl)
	r.runJob(context.Background(), job, nil, "all", 0.1)

	got, err := repo.Get(context.Background(), f.ID)
	if err != nil {
		t.Fatalf("get facility: %v", err)
	}

	if got.EmailStatus != facility.StatusNotFound || got.Email != "" {
		t.Fatalf("expected email not_found, got %+v", got)
	}

	warnings, _ := repo.CountLogs(context.Background(), job.ID, web.LevelWarning, "No email found.")
	if warnings != 1 {
		t.Fatalf("expected one warning, got %d", warnings)
	}
}

func TestEmailJobFindsEmail(t *testing.T) {
	r, repo := newTestRunner(t, &gatedFinder{tokens: make(chan struct{})}, staticCrawler{email: "info@pearlhotel.com"})

	f := facility.New("", "PEARL", "İSTANBUL", "", facility.DocTypeBasic, "")
	f.Website = "http://pearlhotel.com"
	f.WebsiteStatus = facility.StatusFound

	if _, err := repo.Upsert(context.Background(), f); err != nil {
		t.Fatalf("seed: %v", err)
	}

	job := createJob(t, repo, web.JobTypeEmailCrawl)
	r.runJob(context.Background(), job, nil, "all", 0.1)

	got, _ := repo.Get(context.Background(), f.ID)

	if got.Email != "info@pearlhotel.com" || got.EmailStatus != facility.StatusFound || got.EmailSource != "scrape" {
		t.Fatalf("expected enriched email, got %+v", got)
	}
}
