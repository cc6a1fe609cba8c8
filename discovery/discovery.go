// Package discovery finds a facility's website from its name and city.
//
// Three strategies run in order: direct domain guessing over generated
// candidates, a search fallback with progressive queries, and a retry over
// alternative TLDs. Each strategy exits early on a high-confidence match.
package discovery

import (
	"context"
	"math/rand"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/nihatbirbudak/Hotel-Lead-Builder/dnscheck"
	"github.com/nihatbirbudak/Hotel-Lead-Builder/httpx"
	"github.com/nihatbirbudak/Hotel-Lead-Builder/normalize"
	"github.com/nihatbirbudak/Hotel-Lead-Builder/pkg/resilience"
	"github.com/nihatbirbudak/Hotel-Lead-Builder/search"
	"github.com/nihatbirbudak/Hotel-Lead-Builder/validate"
)

// Result sources.
const (
	SourceDomainGuess    = "domain_guess"
	SourceSearch         = "ddg_search"
	SourceAlternativeTLD = "alternative_tld"
)

// Reason is the closed set of negative discovery outcomes.
type Reason string

const (
	ReasonDomainNotRelevant      Reason = "domain_not_relevant"
	ReasonDomainNotHotel         Reason = "domain_not_hotel"
	ReasonSearchNotRelevant      Reason = "ddg_not_relevant"
	ReasonSearchNoCandidates     Reason = "ddg_no_candidates"
	ReasonSearchNoValid          Reason = "ddg_no_valid"
	ReasonAlternativeNotRelevant Reason = "alternative_not_relevant"
	ReasonAlternativeNotHotel    Reason = "alternative_not_hotel"
	ReasonNoMatch                Reason = "no_match"
)

// highConfidenceScore short-circuits candidate iteration.
const highConfidenceScore = 85

// minSearchCandidateScore filters search anchors before validation.
const minSearchCandidateScore = 10

// Result is a discovered website with its confidence score.
type Result struct {
	URL        string
	Score      float64
	Source     string
	Indicators []string
}

// Engine orchestrates the probing, search and validation stages.
type Engine struct {
	dns           *dnscheck.Checker
	client        *httpx.Client
	searcher      search.Backend
	searchBreaker *resilience.CircuitBreaker
	validator     *validate.Validator
	logger        *zerolog.Logger

	// sleep is overridable in tests; production uses time.Sleep for the
	// pre-query jitter.
	sleep func(time.Duration)
}

// New creates an Engine. searchBreaker may be nil when the searcher is not
// breaker-gated.
func New(
	dns *dnscheck.Checker,
	client *httpx.Client,
	searcher search.Backend,
	searchBreaker *resilience.CircuitBreaker,
	validator *validate.Validator,
	logger *zerolog.Logger,
) *Engine {
	return &Engine{
		dns:           dns,
		client:        client,
		searcher:      searcher,
		searchBreaker: searchBreaker,
		validator:     validator,
		logger:        logger,
		sleep:         time.Sleep,
	}
}

// FindWebsite resolves (name, city) into a validated URL or a typed
// not-found reason. Exactly one of the return values is meaningful: a nil
// Result carries a non-empty Reason.
func (e *Engine) FindWebsite(ctx context.Context, hotelName, city string) (*Result, Reason) {
	hotelName = strings.TrimSpace(hotelName)
	city = strings.ToLower(strings.TrimSpace(city))

	if hotelName == "" {
		return nil, ReasonNoMatch
	}

	e.info("searching", hotelName, city)

	var (
		reason                                     Reason
		domainChecked, domainRelevant, domainValid bool
	)

	// Strategy A: direct domain guessing.
	result := e.guessDomains(ctx, hotelName, city, &domainChecked, &domainRelevant, &domainValid)

	if domainChecked && !domainValid {
		if domainRelevant {
			reason = ReasonDomainNotHotel
		} else {
			reason = ReasonDomainNotRelevant
		}
	}

	if result != nil {
		return result, ""
	}

	// Strategy B: search fallback, skipped while the search circuit is open.
	var searchCandidates, searchRelevant, searchValid bool

	result = e.searchFallback(ctx, hotelName, city, &searchCandidates, &searchRelevant, &searchValid)
	if result != nil {
		return result, ""
	}

	if reason == "" {
		switch {
		case searchCandidates && !searchValid:
			if searchRelevant {
				reason = ReasonSearchNoValid
			} else {
				reason = ReasonSearchNotRelevant
			}
		case !searchCandidates:
			reason = ReasonSearchNoCandidates
		}
	}

	// Strategy C: alternative TLD retry.
	var altChecked, altRelevant, altValid bool

	result = e.alternativeTLDs(ctx, hotelName, city, &altChecked, &altRelevant, &altValid)
	if result != nil {
		return result, ""
	}

	if altChecked && !altValid && reason == "" {
		if altRelevant {
			reason = ReasonAlternativeNotHotel
		} else {
			reason = ReasonAlternativeNotRelevant
		}
	}

	if reason == "" {
		reason = ReasonNoMatch
	}

	e.warn("not found", hotelName, string(reason))

	return nil, reason
}

func (e *Engine) guessDomains(ctx context.Context, hotelName, city string, checked, relevant, valid *bool) *Result {
	if len(normalize.CleanName(hotelName)) < 3 {
		e.debug("cleaned name too short", hotelName)
		return nil
	}

	candidates := normalize.URLCandidates(hotelName)

	survivors := e.dns.Filter(ctx, candidates)

	if e.logger != nil {
		e.logger.Debug().Int("candidates", len(candidates)).Int("resolving", len(survivors)).Msg("DNS pre-check")
	}

	var best *Result

	for _, candidate := range survivors {
		if ctx.Err() != nil {
			break
		}

		*checked = true

		head, err := e.client.Head(ctx, candidate)
		if err != nil {
			e.debug("HEAD failed", candidate)
			continue
		}

		if !httpx.Reachable(head.StatusCode) {
			continue
		}

		finalURL := head.FinalURL

		if !isRelevantDomain(hotelName, finalURL) {
			e.debug("domain not relevant", finalURL)
			continue
		}

		*relevant = true

		verdict := e.validator.Validate(ctx, finalURL, hotelName, city)
		if !verdict.IsHotel {
			e.debug("domain exists but is not a hotel", finalURL)
			continue
		}

		score := min(CalculateScore(hotelName, finalURL, hotelName)+verdict.Confidence/2, 100)
		score = min(score+domainQualityBonus(hotelName, candidate), 100)

		*valid = true

		if best == nil || score > best.Score {
			best = &Result{URL: finalURL, Score: score, Source: SourceDomainGuess, Indicators: verdict.Indicators}
		}

		if score >= highConfidenceScore {
			e.info("high-confidence domain match", finalURL, city)
			return best
		}
	}

	return best
}

func (e *Engine) searchFallback(ctx context.Context, hotelName, city string, anyCandidates, anyRelevant, anyValid *bool) *Result {
	if e.searcher == nil {
		return nil
	}

	if e.searchBreaker != nil && e.searchBreaker.State() == resilience.StateOpen {
		e.warn("search circuit open, skipping fallback", hotelName, "")
		return nil
	}

	for _, query := range normalize.Queries(hotelName, city) {
		if ctx.Err() != nil {
			return nil
		}

		// Jitter between queries keeps the endpoint friendly.
		e.sleep(time.Duration(500+rand.Intn(1000)) * time.Millisecond)

		results, err := e.searcher.Search(ctx, query)
		if err != nil {
			e.debug("search failed", query)
			return nil
		}

		type candidate struct {
			url   string
			score float64
		}

		var candidates []candidate

		for _, r := range results {
			if isBlacklisted(r.URL) {
				continue
			}

			score := CalculateScore(hotelName, r.URL, r.Title)
			if score > minSearchCandidateScore {
				candidates = append(candidates, candidate{url: r.URL, score: score})
			}
		}

		if len(candidates) == 0 {
			continue
		}

		*anyCandidates = true

		// Highest-scoring anchors validate first.
		sort.SliceStable(candidates, func(i, j int) bool {
			return candidates[i].score > candidates[j].score
		})

		for _, cand := range candidates {
			if !isRelevantDomain(hotelName, cand.url) {
				continue
			}

			*anyRelevant = true

			verdict := e.validator.Validate(ctx, cand.url, hotelName, city)
			if !verdict.IsHotel {
				continue
			}

			*anyValid = true

			finalScore := min(cand.score+verdict.Confidence/2, 100)
			e.info("search result validated", cand.url, city)

			return &Result{URL: cand.url, Score: finalScore, Source: SourceSearch, Indicators: verdict.Indicators}
		}
	}

	return nil
}

// alternativeStatuses is the narrower reachable set used on the retry pass.
var alternativeStatuses = map[int]bool{200: true, 301: true, 302: true, 307: true, 308: true}

func (e *Engine) alternativeTLDs(ctx context.Context, hotelName, city string, checked, relevant, valid *bool) *Result {
	altName := normalize.CleanName(hotelName)
	if len(altName) < 2 {
		return nil
	}

	for _, tld := range normalize.AlternativeTLDs {
		if ctx.Err() != nil {
			return nil
		}

		probe := "http://" + altName + tld

		*checked = true

		head, err := e.client.Head(ctx, probe)
		if err != nil {
			continue
		}

		if !alternativeStatuses[head.StatusCode] {
			continue
		}

		finalURL := probe
		if head.StatusCode != 200 {
			finalURL = head.FinalURL
		}

		if !isRelevantDomain(hotelName, finalURL) {
			continue
		}

		*relevant = true

		verdict := e.validator.Validate(ctx, finalURL, hotelName, city)
		if !verdict.IsHotel {
			e.debug("alternative domain exists but is not a hotel", finalURL)
			continue
		}

		*valid = true

		score := min(CalculateScore(hotelName, finalURL, hotelName)+verdict.Confidence/2, 100)
		e.info("alternative TLD validated", finalURL, city)

		return &Result{URL: finalURL, Score: score, Source: SourceAlternativeTLD, Indicators: verdict.Indicators}
	}

	return nil
}

func (e *Engine) info(msg, subject, detail string) {
	if e.logger != nil {
		e.logger.Info().Str("subject", subject).Str("detail", detail).Msg(msg)
	}
}

func (e *Engine) warn(msg, subject, detail string) {
	if e.logger != nil {
		e.logger.Warn().Str("subject", subject).Str("detail", detail).Msg(msg)
	}
}

func (e *Engine) debug(msg, subject string) {
	if e.logger != nil {
		e.logger.Debug().Str("subject", subject).Msg(msg)
	}
}
