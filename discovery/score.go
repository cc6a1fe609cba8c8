package discovery

import (
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"

	"github.com/nihatbirbudak/Hotel-Lead-Builder/normalize"
)

// blacklistDomains are OTA, social and aggregator sites that can never be a
// facility's own website. Entries are either a bare label or label.suffix.
var blacklistDomains = map[string]bool{
	"booking.com": true, "tripadvisor": true, "trivago": true, "etstur.com": true, "hotels.com": true,
	"expedia": true, "tatilbudur.com": true, "agoda.com": true, "facebook.com": true, "instagram.com": true,
	"twitter.com": true, "linkedin.com": true, "youtube.com": true, "google.com": true, "wikipedia": true,
	"enuygun.com": true, "obilet.com": true, "skyscanner.com": true, "skyscanner.com.tr": true,
	"hotel-istanbul.net": true, "hotel-of-istanbul.com": true, "hotel-tr.com": true,
	"otelz.com": true, "otelz.com.tr": true, "jollytur.com": true, "tatilsepeti.com": true,
	"setur.com.tr": true, "neredekal.com": true, "gezimanya.com": true, "trip.com": true,
}

var scoreStopwords = map[string]bool{
	"the": true, "a": true, "an": true, "and": true, "or": true, "in": true,
	"at": true, "by": true, "for": true, "of": true, "to": true, "is": true,
}

var relevanceStopwords = map[string]bool{
	"the": true, "a": true, "an": true, "and": true, "or": true, "in": true,
	"at": true, "by": true, "for": true, "of": true, "to": true,
	"special": true, "class": true, "boutique": true, "luxury": true, "deluxe": true,
}

var relevanceHotelKeywords = []string{
	"hotel", "hotels", "otel", "oteller", "resort", "spa", "apart",
	"pansiyon", "motel", "pension", "guest", "house", "hostel", "lodge", "inn",
}

var scoreHotelKeywords = []string{
	"hotel", "otel", "resort", "apart", "pansiyon", "villa", "lodge", "inn", "motel", "pension",
}

// domainParts splits a URL's host into its registrable label and public
// suffix ("pearlhotel" and "com.tr" for www.pearlhotel.com.tr).
func domainParts(rawURL string) (label, suffix string) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", ""
	}

	host := strings.ToLower(parsed.Hostname())
	if host == "" {
		// Bare domains without a scheme parse into the path.
		host = strings.ToLower(strings.SplitN(parsed.Path, "/", 2)[0])
	}

	if host == "" {
		return "", ""
	}

	suffix, _ = publicsuffix.PublicSuffix(host)

	rest := strings.TrimSuffix(host, suffix)
	rest = strings.TrimSuffix(rest, ".")

	if i := strings.LastIndexByte(rest, '.'); i >= 0 {
		rest = rest[i+1:]
	}

	return rest, suffix
}

// isBlacklisted reports whether a URL points at a known OTA/social domain.
func isBlacklisted(rawURL string) bool {
	label, suffix := domainParts(rawURL)
	if label == "" {
		return false
	}

	return blacklistDomains[label] || blacklistDomains[label+"."+suffix]
}

// isRelevantDomain checks whether a domain plausibly belongs to the named
// facility. It is deliberately permissive: hotel-looking or name-matching
// domains pass and the content validator makes the real decision.
func isRelevantDomain(hotelName, rawURL string) bool {
	label, _ := domainParts(rawURL)
	if label == "" {
		return false
	}

	// A purely generic type word is never somebody's own domain.
	if len(label) < 6 {
		for _, kw := range relevanceHotelKeywords {
			if label == kw {
				return false
			}
		}
	}

	for _, kw := range relevanceHotelKeywords {
		if strings.Contains(label, kw) {
			return true
		}
	}

	for _, token := range strings.Fields(strings.ToLower(hotelName)) {
		if len(token) <= 2 || relevanceStopwords[token] {
			continue
		}

		skip := false

		for _, kw := range relevanceHotelKeywords {
			if token == kw {
				skip = true
				break
			}
		}

		if skip {
			continue
		}

		if clean := normalize.StripDigits(token); len(clean) >= 3 && strings.Contains(label, clean) {
			return true
		}
	}

	// Long specific labels get a chance; validation decides.
	return len(label) >= 6
}

// CalculateScore rates how well a found URL matches a facility name, 0-100:
// token overlap with the domain label (up to 45), a hotel keyword in the
// domain (20), the name appearing in the page title (up to 30) and a length
// bonus for specific domains (up to 10).
func CalculateScore(hotelName, foundURL, title string) float64 {
	var score float64

	nameTokens := make(map[string]bool)

	for _, t := range strings.Fields(strings.ToLower(hotelName)) {
		if len(t) > 2 && !scoreStopwords[t] {
			nameTokens[t] = true
		}
	}

	if len(nameTokens) == 0 {
		for _, t := range strings.Fields(strings.ToLower(hotelName)) {
			nameTokens[t] = true
		}
	}

	domainName, _ := domainParts(foundURL)
	domainClean := normalize.StripDigits(domainName)

	var matches float64

	for token := range nameTokens {
		tokenClean := normalize.StripDigits(token)

		switch {
		case strings.Contains(domainName, token) || (tokenClean != "" && strings.Contains(domainName, tokenClean)):
			matches++
		case tokenClean != "" && strings.Contains(domainClean, tokenClean):
			matches++
		case len(tokenClean) >= 4:
			// Partial prefix match counts for half.
			if strings.HasPrefix(domainClean, tokenClean[:4]) ||
				(len(domainClean) >= 4 && strings.HasPrefix(tokenClean, domainClean[:4])) {
				matches += 0.5
			}
		}
	}

	if len(nameTokens) > 0 {
		score += matches / float64(len(nameTokens)) * 45
	}

	for _, keyword := range scoreHotelKeywords {
		if strings.Contains(domainName, keyword) {
			score += 20
			break
		}
	}

	if title != "" {
		titleLower := strings.ToLower(title)
		nameLower := strings.ToLower(hotelName)

		if strings.Contains(titleLower, nameLower) {
			score += 30
		} else {
			matchesInTitle := 0

			for token := range nameTokens {
				if len(token) > 3 && strings.Contains(titleLower, token) {
					matchesInTitle++
				}
			}

			if matchesInTitle > 0 {
				score += min(float64(matchesInTitle)*10, 25)
			}
		}
	}

	switch {
	case len(domainName) > 8:
		score += 10
	case len(domainName) > 5:
		score += 5
	}

	return min(score, 100)
}

// domainQualityBonus rewards domains sharing distinctive substrings with the
// facility name; it breaks ties like alexiaresort vs alexia-hotel.
func domainQualityBonus(hotelName, probedURL string) float64 {
	var bonus float64

	domainLower := strings.ToLower(probedURL)
	nameLower := strings.ToLower(hotelName)
	nameFolded := normalize.Fold(nameLower)

	if strings.Contains(domainLower, "resort") && strings.Contains(nameLower, "resort") {
		bonus += 10
	}

	if strings.Contains(domainLower, "otel") && strings.Contains(nameFolded, "otel") {
		bonus += 15
	}

	for _, kw := range []string{"spa", "beach", "villa"} {
		if strings.Contains(nameLower, kw) && strings.Contains(domainLower, kw) {
			bonus += 8
			break
		}
	}

	return bonus
}
