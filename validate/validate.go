// Package validate classifies a fetched page as "is a hotel site" for a
// given facility name and city, with a 0-100 confidence score.
//
// Scoring is priority based: a hotel keyword in the domain and a city match
// in the body are each worth 40 points and usually decide the verdict before
// any HTML parsing happens. Title, dictionary and phone-pattern checks only
// run as fallbacks.
package validate

import (
	"context"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"

	"github.com/nihatbirbudak/Hotel-Lead-Builder/httpx"
)

// Verdict is the outcome of validating one URL.
type Verdict struct {
	IsHotel    bool
	Confidence float64
	Indicators []string
}

// Cache stores verdicts keyed by URL. Error verdicts are never written.
type Cache interface {
	GetValidation(url string) (isHotel bool, confidence float64, indicators []string, ok bool)
	SetValidation(url string, isHotel bool, confidence float64, indicators []string)
}

var domainKeywords = []string{
	"hotel", "otel", "resort", "apart", "pansiyon", "villa", "lodge", "inn", "motel",
}

var brandKeywords = []string{
	"hyatt", "hilton", "marriott", "radisson", "sheraton",
	"accor", "ibis", "novotel", "mercure", "sofitel",
	"ramada", "wyndham", "holiday inn", "crowne plaza",
	"intercontinental", "doubletree", "hampton", "embassy",
}

var hotelKeywordsEnglish = []string{
	"hotel", "resort", "motel", "guest house", "lodge", "inn", "villa", "room",
	"accommodation", "booking", "reserve", "check-in", "check-out",
}

var hotelKeywordsTurkish = []string{
	"otel", "resort", "pansiyon", "konuk evi", "konak", "yatakhane", "apart",
	"kamp", "oda", "konaklama", "rezervasyon", "giriş", "çıkış", "tur", "turizm",
}

var phonePatterns = []*regexp.Regexp{
	regexp.MustCompile(`\+90[\s\-]?\(?\d{3}\)?[\s\-]?\d{3}[\s\-]?\d{2}[\s\-]?\d{2}`), // +90 532 123 45 67
	regexp.MustCompile(`0[2-5]\d{2}[\s\-]?\d{3}[\s\-]?\d{2}[\s\-]?\d{2}`),            // 0212 123 45 67
	regexp.MustCompile(`444[\s\-]?\d{1}[\s\-]?\d{3}`),                                // 444 1 234
}

// Validator scores URLs against the hotel-content heuristics.
type Validator struct {
	client *httpx.Client
	cache  Cache
	logger *zerolog.Logger
}

// New creates a Validator. The cache may be nil.
func New(client *httpx.Client, cache Cache, logger *zerolog.Logger) *Validator {
	return &Validator{client: client, cache: cache, logger: logger}
}

func containsAny(haystack string, needles []string) (string, bool) {
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return n, true
		}
	}

	return "", false
}

func capitalize(s string) string {
	if s == "" {
		return s
	}

	lower := strings.ToLower(s)
	runes := []rune(lower)

	return strings.ToUpper(string(runes[0])) + string(runes[1:])
}

func countHits(haystack string, needles []string) int {
	hits := 0

	for _, n := range needles {
		if strings.Contains(haystack, n) {
			hits++
		}
	}

	return hits
}

func (v *Validator) store(rawURL string, verdict Verdict) Verdict {
	if v.cache != nil {
		v.cache.SetValidation(rawURL, verdict.IsHotel, verdict.Confidence, verdict.Indicators)
	}

	return verdict
}

// Validate classifies rawURL for (hotelName, city). Verdicts are cached; a
// transient fetch failure produces an uncached negative so the next job can
// retry.
func (v *Validator) Validate(ctx context.Context, rawURL, hotelName, city string) Verdict {
	if v.cache != nil {
		if isHotel, confidence, indicators, ok := v.cache.GetValidation(rawURL); ok {
			if v.logger != nil {
				v.logger.Debug().Str("url", rawURL).Msg("validation cache hit")
			}

			return Verdict{IsHotel: isHotel, Confidence: confidence, Indicators: indicators}
		}
	}

	var (
		indicators []string
		score      float64
	)

	// Priority 1: domain analysis.
	if parsed, err := url.Parse(rawURL); err == nil {
		domain := strings.ToLower(parsed.Host)

		if _, ok := containsAny(domain, domainKeywords); ok {
			score += 40
			indicators = append(indicators, "✓ Hotel keyword in domain: "+domain)
		} else if _, ok := containsAny(domain, brandKeywords); ok {
			score += 35
			indicators = append(indicators, "✓ Hotel brand in domain: "+domain)
		}
	}

	resp, err := v.client.Get(ctx, rawURL)
	if err != nil {
		// A strong domain signal survives a fetch error; anything else is a
		// transient negative that must not be cached.
		if score >= 40 {
			verdict := Verdict{
				IsHotel:    true,
				Confidence: min(score+10, 100),
				Indicators: append(indicators, "⚠ Content error but domain is hotel"),
			}

			return v.store(rawURL, verdict)
		}

		if v.logger != nil {
			v.logger.Debug().Err(err).Str("url", rawURL).Msg("validation fetch failed")
		}

		return Verdict{IsHotel: false, Confidence: 0, Indicators: []string{"✗ Error: fetch failed"}}
	}

	if resp.StatusCode != 200 {
		if score >= 40 {
			verdict := Verdict{
				IsHotel:    true,
				Confidence: 80,
				Indicators: append(indicators, "⚠ HTTP non-200 but domain is hotel"),
			}

			return v.store(rawURL, verdict)
		}

		return v.store(rawURL, Verdict{IsHotel: false, Confidence: 0, Indicators: []string{"✗ HTTP not 200"}})
	}

	content := strings.ToLower(string(resp.Body))

	// Priority 2: city match. Same name plus same city is almost always the
	// right site.
	if city != "" {
		lowerCity := strings.ToLower(city)
		// ToLower("İ") leaves a combining dot; the bare form matches "istanbul".
		variants := []string{lowerCity, strings.ReplaceAll(lowerCity, "̇", ""), capitalize(city), strings.ToUpper(city)}
		if _, ok := containsAny(content, variants); ok {
			score += 40
			indicators = append(indicators, "✓ City matched: "+city)
		}
	}

	// Fast pass: domain + city decide without HTML parsing.
	if score >= 70 {
		indicators = append(indicators, "✓ FAST PASS: Domain + City")

		return v.store(rawURL, Verdict{IsHotel: true, Confidence: min(score+20, 100), Indicators: indicators})
	}

	// Fallback: HTML content analysis.
	doc, docErr := goquery.NewDocumentFromReader(strings.NewReader(string(resp.Body)))
	if docErr == nil {
		title := strings.ToLower(doc.Find("title").First().Text())
		if title != "" && (strings.Contains(title, "hotel") || strings.Contains(title, "otel") || strings.Contains(title, "resort")) {
			score += 20
			indicators = append(indicators, "✓ Hotel keyword in title")
		}
	}

	if english := countHits(content, hotelKeywordsEnglish); english >= 2 {
		score += 20
		indicators = append(indicators, "✓ English keywords")
	} else if turkish := countHits(content, hotelKeywordsTurkish); turkish >= 2 {
		score += 20
		indicators = append(indicators, "✓ Turkish keywords")
	}

	for _, pattern := range phonePatterns {
		if pattern.MatchString(content) {
			score += 15
			indicators = append(indicators, "✓ Phone number found")

			break
		}
	}

	if score >= 50 {
		return v.store(rawURL, Verdict{IsHotel: true, Confidence: min(score, 100), Indicators: indicators})
	}

	return v.store(rawURL, Verdict{
		IsHotel:    false,
		Confidence: score,
		Indicators: append(indicators, "✗ Score too low"),
	})
}
