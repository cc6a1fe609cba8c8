// Package webrunner wires the enrichment pipeline behind the HTTP surface
// and executes jobs over a bounded worker pool.
package webrunner

import (
	"context"
	"database/sql"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/nihatbirbudak/Hotel-Lead-Builder/cache"
	"github.com/nihatbirbudak/Hotel-Lead-Builder/crawler"
	"github.com/nihatbirbudak/Hotel-Lead-Builder/discovery"
	"github.com/nihatbirbudak/Hotel-Lead-Builder/dnscheck"
	"github.com/nihatbirbudak/Hotel-Lead-Builder/facility"
	"github.com/nihatbirbudak/Hotel-Lead-Builder/httpx"
	"github.com/nihatbirbudak/Hotel-Lead-Builder/pkg/resilience"
	"github.com/nihatbirbudak/Hotel-Lead-Builder/postgres"
	"github.com/nihatbirbudak/Hotel-Lead-Builder/runner"
	"github.com/nihatbirbudak/Hotel-Lead-Builder/search"
	"github.com/nihatbirbudak/Hotel-Lead-Builder/validate"
	"github.com/nihatbirbudak/Hotel-Lead-Builder/web"
	"github.com/nihatbirbudak/Hotel-Lead-Builder/web/sqlite"
)

const (
	dbFileName    = "leads.db"
	cacheFileName = "discovery_cache.db"

	sweepInterval = 6 * time.Hour
)

// websiteFinder is the discovery engine surface the job runner needs.
type websiteFinder interface {
	FindWebsite(ctx context.Context, hotelName, city string) (*discovery.Result, discovery.Reason)
}

// emailCrawler is the crawl surface the job runner needs.
type emailCrawler interface {
	CrawlForEmail(ctx context.Context, startURL string, maxPages int) (string, int)
}

// emailVerifier checks deliverability of an extracted address.
type emailVerifier interface {
	Verify(ctx context.Context, email string) bool
}

// Runner owns the HTTP server, the job workers and the shared pipeline
// services.
type Runner struct {
	cfg    *runner.Config
	logger zerolog.Logger

	repo       *sqlite.Repository
	cacheStore *cache.Store
	svc        *web.Service
	srv        *web.Server

	engine websiteFinder
	crawl  emailCrawler
	verify emailVerifier
	jobWg  sync.WaitGroup

	// jitter runs the pre-call delay; overridable in tests.
	jitter func(ctx context.Context, minD, maxD time.Duration)

	mirrorDB *sql.DB
	mirror   chan *facility.Facility

	// ctx is the process context jobs inherit; set once Run starts.
	mu  sync.Mutex
	ctx context.Context
}

// New builds the full service graph from configuration.
func New(cfg *runner.Config, logger zerolog.Logger) (*Runner, error) {
	if cfg.DataFolder == "" {
		return nil, fmt.Errorf("data folder is required")
	}

	if err := os.MkdirAll(cfg.DataFolder, os.ModePerm); err != nil {
		return nil, err
	}

	repo, err := sqlite.New(filepath.Join(cfg.DataFolder, dbFileName))
	if err != nil {
		return nil, err
	}

	cacheStore, err := cache.New(filepath.Join(cfg.DataFolder, cacheFileName), &logger)
	if err != nil {
		_ = repo.Close()
		return nil, err
	}

	logBreaker := func(name string, from, to resilience.CircuitBreakerState) {
		logger.Warn().Str("circuit", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit state change")
	}

	searchBreaker := resilience.NewCircuitBreaker("search", resilience.Config{
		FailureThreshold: 5,
		RecoveryTimeout:  60 * time.Second,
		SuccessThreshold: 2,
		OnStateChange:    logBreaker,
	})

	httpBreaker := resilience.NewCircuitBreaker("http", resilience.Config{
		FailureThreshold: 10,
		RecoveryTimeout:  30 * time.Second,
		SuccessThreshold: 3,
		OnStateChange:    logBreaker,
	})

	dnsOpts := []dnscheck.Option{
		dnscheck.WithCache(cacheStore),
		dnscheck.WithTimeout(cfg.DNSTimeout),
		dnscheck.WithWorkers(cfg.DNSWorkers),
	}

	if cfg.DNSServer != "" {
		dnsOpts = append(dnsOpts, dnscheck.WithServer(cfg.DNSServer))
	}

	dnsChecker := dnscheck.New(&logger, dnsOpts...)

	httpClient := httpx.New(httpBreaker, &logger,
		httpx.WithCache(cacheStore),
		httpx.WithTimeouts(cfg.HeadTimeout, cfg.GetTimeout),
	)

	searchClient := search.New(searchBreaker, &logger,
		search.WithEndpoint(cfg.SearchEndpoint),
		search.WithCache(cacheStore),
		search.WithTimeout(cfg.SearchTimeout),
	)

	validator := validate.New(httpClient, cacheStore, &logger)

	r := &Runner{
		cfg:        cfg,
		logger:     logger,
		repo:       repo,
		cacheStore: cacheStore,
		engine:     discovery.New(dnsChecker, httpClient, searchClient, searchBreaker, validator, &logger),
		crawl:      crawler.New(httpClient, &logger),
		jitter:     sleepJitter,
		ctx:        context.Background(),
	}

	if cfg.VerifyEmails {
		r.verify = crawler.NewVerifier()
	}

	if cfg.PostgresDSN != "" {
		mirrorDB, err := postgres.Open(cfg.PostgresDSN)
		if err != nil {
			logger.Warn().Err(err).Msg("postgres mirror unavailable, continuing without it")
		} else {
			r.mirrorDB = mirrorDB
			r.mirror = make(chan *facility.Facility, 256)
		}
	}

	r.svc = web.NewService(repo, repo)
	r.srv = web.NewServer(r.svc, r, cfg.Addr, filepath.Join(cfg.DataFolder, dbFileName), &logger)

	return r, nil
}

// Run serves HTTP, the mirror writer and the cache sweeper until the context
// is cancelled.
func (r *Runner) Run(ctx context.Context) error {
	r.mu.Lock()
	r.ctx = ctx
	r.mu.Unlock()

	egroup, ctx := errgroup.WithContext(ctx)

	egroup.Go(func() error {
		return r.srv.Start(ctx)
	})

	// The mirror writer drains until the channel closes after all jobs have
	// stopped, so it lives outside the errgroup.
	var mirrorDone chan struct{}

	if r.mirror != nil {
		mirrorDone = make(chan struct{})

		go func() {
			defer close(mirrorDone)
			defer func() { _ = r.mirrorDB.Close() }()

			if err := postgres.NewLeadWriter(r.mirrorDB).Run(context.Background(), r.mirror); err != nil {
				r.logger.Error().Err(err).Msg("lead mirror stopped")
			}
		}()
	}

	egroup.Go(func() error {
		ticker := time.NewTicker(sweepInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				if removed, err := r.cacheStore.Sweep(); err != nil {
					r.logger.Warn().Err(err).Msg("cache sweep failed")
				} else {
					r.logger.Info().Int64("removed", removed).Msg("cache sweep")
				}
			}
		}
	})

	err := egroup.Wait()

	r.jobWg.Wait()

	if r.mirror != nil {
		close(r.mirror)
		<-mirrorDone
	}

	return err
}

// Close releases held resources.
func (r *Runner) Close(context.Context) error {
	_ = r.cacheStore.Close()

	return r.repo.Close()
}

func (r *Runner) jobContext() context.Context {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.ctx
}

func (r *Runner) launch(job web.Job, uids []string, mode string, rateLimit float64) {
	r.jobWg.Add(1)

	go func() {
		defer r.jobWg.Done()
		r.runJob(r.jobContext(), job, uids, mode, rateLimit)
	}()
}

// StartDiscovery launches a website-discovery job in the background.
func (r *Runner) StartDiscovery(job web.Job, uids []string, mode string, rateLimit float64) {
	r.launch(job, uids, mode, rateLimit)
}

// StartEmailCrawl launches an email-crawl job in the background.
func (r *Runner) StartEmailCrawl(job web.Job, uids []string, mode string, rateLimit float64) {
	r.launch(job, uids, mode, rateLimit)
}

type workResult struct {
	err error
}

func (r *Runner) targets(ctx context.Context, job web.Job, uids []string, mode string) ([]facility.Facility, error) {
	if mode == "selected" && len(uids) > 0 {
		return r.repo.ByIDs(ctx, uids)
	}

	if job.JobType == web.JobTypeEmailCrawl {
		return r.repo.MissingEmail(ctx)
	}

	return r.repo.MissingWebsite(ctx)
}

// runJob executes one job over the bounded worker pool: queued→running, the
// per-facility fan-out, cancellation polling and the terminal transition.
func (r *Runner) runJob(ctx context.Context, job web.Job, uids []string, mode string, rateLimit float64) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error().Any("panic", rec).Str("job_id", job.ID).Msg("job failed")
			r.finishJob(job.ID, web.StatusFailed)
		}
	}()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	targets, err := r.targets(ctx, job, uids, mode)
	if err != nil {
		r.logger.Error().Err(err).Str("job_id", job.ID).Msg("loading targets failed")
		r.finishJob(job.ID, web.StatusFailed)

		return
	}

	job.Status = web.StatusRunning
	job.TotalItems = len(targets)

	if err := r.repo.Update(ctx, &job); err != nil {
		r.logger.Error().Err(err).Str("job_id", job.ID).Msg("job update failed")
		return
	}

	r.logger.Info().Str("job_id", job.ID).Str("job_type", job.JobType).Int("targets", len(targets)).Msg("job started")

	var (
		wg    sync.WaitGroup
		sem   = make(chan struct{}, r.cfg.JobWorkers)
		resCh = make(chan workResult, len(targets))
	)

	// Scheduling runs concurrently with collection so cancellation is
	// observed between completions, not after the whole batch.
	go func() {
		defer func() {
			wg.Wait()
			close(resCh)
		}()

		for i := range targets {
			target := targets[i]

			select {
			case <-ctx.Done():
				return
			case sem <- struct{}{}:
			}

			wg.Add(1)

			go func() {
				defer wg.Done()
				defer func() { <-sem }()

				var err error

				if job.JobType == web.JobTypeEmailCrawl {
					err = r.processEmail(ctx, job.ID, target, rateLimit)
				} else {
					err = r.processDiscovery(ctx, job.ID, target)
				}

				resCh <- workResult{err: err}
			}()
		}
	}()

	processed := 0
	errCount := 0

	for res := range resCh {
		// Re-read the job before counting each completion so a cancel takes
		// effect between items.
		current, err := r.repo.Get(ctx, job.ID)
		if err == nil && current.Status == web.StatusCancelled {
			r.logger.Info().Str("job_id", job.ID).Msg("job cancelled, stopping")
			cancel()

			break
		}

		processed++

		if res.err != nil {
			errCount++
		}

		job.ProcessedItems = processed
		job.ErrorCount = errCount

		if err := r.repo.Update(context.WithoutCancel(ctx), &job); err != nil {
			r.logger.Warn().Err(err).Str("job_id", job.ID).Msg("progress update failed")
		}
	}

	wg.Wait()

	r.finishJob(job.ID, web.StatusCompleted)
	r.logger.Info().Str("job_id", job.ID).Int("processed", processed).Msg("job finished")
}

// finishJob stamps the terminal state, preserving cancelled/failed statuses
// already written.
func (r *Runner) finishJob(jobID, status string) {
	ctx := context.Background()

	job, err := r.repo.Get(ctx, jobID)
	if err != nil {
		return
	}

	if job.Status == web.StatusRunning || job.Status == web.StatusQueued {
		job.Status = status
	}

	if job.FinishedAt == nil {
		now := time.Now().UTC()
		job.FinishedAt = &now
	}

	_ = r.repo.Update(ctx, &job)
}

func (r *Runner) addLog(ctx context.Context, jobID, level, message string) {
	// A cancelled job gets no further log entries.
	if ctx.Err() != nil {
		return
	}

	if err := r.repo.AddLog(ctx, &web.JobLog{JobID: jobID, Level: level, Message: message}); err != nil {
		r.logger.Warn().Err(err).Str("job_id", jobID).Msg("log write failed")
	}
}

// processDiscovery enriches one facility with a website.
func (r *Runner) processDiscovery(ctx context.Context, jobID string, target facility.Facility) error {
	// Outbound rate limiting: jitter before every discovery call.
	r.jitter(ctx, 800*time.Millisecond, 1800*time.Millisecond)

	if ctx.Err() != nil {
		return ctx.Err()
	}

	r.addLog(ctx, jobID, web.LevelInfo, fmt.Sprintf("Processing: %s (%s)", target.Name, target.City))

	result, reason := r.engine.FindWebsite(ctx, target.Name, target.City)

	if result != nil {
		target.Website = result.URL
		target.WebsiteScore = result.Score
		target.WebsiteStatus = facility.StatusFound
		target.WebsiteSource = result.Source
	} else {
		target.WebsiteStatus = facility.StatusNotFound
	}

	if ctx.Err() != nil {
		return ctx.Err()
	}

	if err := r.repo.Update(ctx, &target); err != nil {
		r.addLog(ctx, jobID, web.LevelError, fmt.Sprintf("Error: %v", err))
		return err
	}

	if result != nil {
		r.addLog(ctx, jobID, web.LevelSuccess,
			fmt.Sprintf("Found: %s (score: %.0f, source: %s)", result.URL, result.Score, result.Source))
		r.pushMirror(&target)
	} else {
		r.addLog(ctx, jobID, web.LevelWarning,
			fmt.Sprintf("Not found: %s | reason: %s", target.Name, reason))
	}

	return nil
}

// processEmail enriches one facility with a contact email.
func (r *Runner) processEmail(ctx context.Context, jobID string, target facility.Facility, rateLimit float64) error {
	if target.Website == "" {
		return nil
	}

	if rateLimit < 0.1 {
		rateLimit = 0.1
	}

	r.jitter(ctx, time.Duration(rateLimit*float64(time.Second)), time.Duration(rateLimit*float64(time.Second)))

	if ctx.Err() != nil {
		return ctx.Err()
	}

	r.addLog(ctx, jobID, web.LevelInfo, fmt.Sprintf("Crawling %s...", target.Website))

	email, _ := r.crawl.CrawlForEmail(ctx, target.Website, r.cfg.MaxCrawlPages)

	if email != "" && r.verify != nil && !r.verify.Verify(ctx, email) {
		r.addLog(ctx, jobID, web.LevelWarning, fmt.Sprintf("Email failed verification: %s", email))

		email = ""
	}

	if email != "" {
		target.Email = email
		target.EmailStatus = facility.StatusFound
		target.EmailSource = "scrape"
	} else {
		target.EmailStatus = facility.StatusNotFound
	}

	if ctx.Err() != nil {
		return ctx.Err()
	}

	if err := r.repo.Update(ctx, &target); err != nil {
		r.addLog(ctx, jobID, web.LevelError, fmt.Sprintf("Error: %v", err))
		return err
	}

	if email != "" {
		r.addLog(ctx, jobID, web.LevelSuccess, fmt.Sprintf("Found email: %s", email))
		r.pushMirror(&target)
	} else {
		r.addLog(ctx, jobID, web.LevelWarning, "No email found.")
	}

	return nil
}

func (r *Runner) pushMirror(f *facility.Facility) {
	if r.mirror == nil {
		return
	}

	clone := *f

	select {
	case r.mirror <- &clone:
	default:
		r.logger.Debug().Str("facility", f.ID).Msg("mirror queue full, dropping")
	}
}

func sleepJitter(ctx context.Context, minD, maxD time.Duration) {
	d := minD

	if maxD > minD {
		d += time.Duration(rand.Int63n(int64(maxD - minD)))
	}

	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}
