// Package crawler recovers business contact emails from a facility website:
// an extractor that understands common obfuscation tricks and a bounded
// priority crawl over the site's own pages.
package crawler

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/mcnijman/go-emailaddress"
)

var emailRe = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)

// obfuscationPatterns rebuild an address from (local, domain, tld) captures.
var obfuscationPatterns = []*regexp.Regexp{
	// [at] and [dot] variants
	regexp.MustCompile(`(?i)([a-zA-Z0-9._%+-]+)\s*\[\s*at\s*\]\s*([a-zA-Z0-9.-]+)\s*\[\s*dot\s*\]\s*([a-zA-Z]{2,})`),
	regexp.MustCompile(`(?i)([a-zA-Z0-9._%+-]+)\s*\(\s*at\s*\)\s*([a-zA-Z0-9.-]+)\s*\(\s*dot\s*\)\s*([a-zA-Z]{2,})`),
	regexp.MustCompile(`(?i)([a-zA-Z0-9._%+-]+)\s*\{\s*at\s*\}\s*([a-zA-Z0-9.-]+)\s*\{\s*dot\s*\}\s*([a-zA-Z]{2,})`),

	// AT and DOT written out
	regexp.MustCompile(`(?i)([a-zA-Z0-9._%+-]+)\s+at\s+([a-zA-Z0-9.-]+)\s+dot\s+([a-zA-Z]{2,})`),

	// Turkish variants
	regexp.MustCompile(`(?i)([a-zA-Z0-9._%+-]+)\s*\[\s*et\s*\]\s*([a-zA-Z0-9.-]+)\s*\[\s*nokta\s*\]\s*([a-zA-Z]{2,})`),
	regexp.MustCompile(`(?i)([a-zA-Z0-9._%+-]+)\s+et\s+([a-zA-Z0-9.-]+)\s+nokta\s+([a-zA-Z]{2,})`),

	// HTML entity variants (&#64; = @, &#46; = .)
	regexp.MustCompile(`(?i)([a-zA-Z0-9._%+-]+)&#64;([a-zA-Z0-9.-]+)&#46;([a-zA-Z]{2,})`),
	regexp.MustCompile(`(?i)([a-zA-Z0-9._%+-]+)&commat;([a-zA-Z0-9.-]+)&period;([a-zA-Z]{2,})`),
}

// spacedRe collapses spaced-out locals like "i n f o @hotel.com".
var spacedRe = regexp.MustCompile(`([a-zA-Z0-9])\s+([a-zA-Z0-9])\s+([a-zA-Z0-9])\s+([a-zA-Z0-9])\s*@`)

var invalidSuffixes = []string{
	".png", ".jpg", ".gif", ".jpeg", ".js", ".css",
	"@example.com", "@test.com",
	"@sentry.io", "@google.com",
}

var invalidPrefixes = []string{"noreply@", "no-reply@"}

var numericLocalRe = regexp.MustCompile(`^[0-9]+@`)

// IsValidEmail rejects file names, placeholder domains, no-reply senders,
// service addresses and syntactically impossible strings.
func IsValidEmail(email string) bool {
	email = strings.ToLower(strings.TrimSpace(email))

	for _, suffix := range invalidSuffixes {
		if strings.HasSuffix(email, suffix) {
			return false
		}
	}

	for _, prefix := range invalidPrefixes {
		if strings.HasPrefix(email, prefix) {
			return false
		}
	}

	if numericLocalRe.MatchString(email) {
		return false
	}

	if len(email) < 5 || len(email) > 254 {
		return false
	}

	if strings.Count(email, "@") != 1 {
		return false
	}

	domain := email[strings.IndexByte(email, '@')+1:]

	return strings.Contains(domain, ".")
}

func addEmail(set map[string]bool, email string) {
	email = strings.ToLower(strings.TrimSpace(email))
	if IsValidEmail(email) {
		set[email] = true
	}
}

// decodeObfuscated rebuilds addresses hidden behind [at]/[dot] style tricks.
func decodeObfuscated(text string, into map[string]bool) {
	for _, pattern := range obfuscationPatterns {
		for _, m := range pattern.FindAllStringSubmatch(text, -1) {
			if len(m) >= 4 {
				addEmail(into, m[1]+"@"+m[2]+"."+m[3])
			}
		}
	}
}

// ExtractFromText collects valid emails from plain text, both standard and
// obfuscated forms.
func ExtractFromText(text string) []string {
	set := make(map[string]bool)

	collect := func(s string) {
		for _, m := range emailRe.FindAllString(s, -1) {
			addEmail(set, m)
		}

		decodeObfuscated(s, set)
	}

	collect(text)

	// Spaced-out characters hide the local part from the standard regex;
	// collapse them and rescan.
	if spacedRe.MatchString(text) {
		collect(spacedRe.ReplaceAllString(text, "$1$2$3$4@"))
	}

	return setToList(set)
}

func setToList(set map[string]bool) []string {
	if len(set) == 0 {
		return nil
	}

	out := make([]string, 0, len(set))

	for email := range set {
		out = append(out, email)
	}

	return out
}

// ExtractFromHTML collects emails from a parsed document: visible text,
// mailto links, data attributes, meta tags and JSON-LD blocks.
func ExtractFromHTML(doc *goquery.Document) []string {
	set := make(map[string]bool)

	for _, email := range ExtractFromText(doc.Text()) {
		set[email] = true
	}

	doc.Find("a[href^='mailto:']").Each(func(_ int, s *goquery.Selection) {
		value := strings.TrimPrefix(s.AttrOr("href", ""), "mailto:")

		// Strip ?subject= and friends.
		if i := strings.IndexByte(value, '?'); i >= 0 {
			value = value[:i]
		}

		if parsed, err := emailaddress.Parse(strings.TrimSpace(value)); err == nil {
			addEmail(set, parsed.String())
		}
	})

	for _, attr := range []string{"data-email", "data-mail"} {
		doc.Find("[" + attr + "]").Each(func(_ int, s *goquery.Selection) {
			addEmail(set, s.AttrOr(attr, ""))
		})
	}

	doc.Find(`meta[name="email"]`).Each(func(_ int, s *goquery.Selection) {
		addEmail(set, s.AttrOr("content", ""))
	})

	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, s *goquery.Selection) {
		raw := strings.TrimSpace(s.Text())
		if raw == "" {
			return
		}

		var node any
		if err := json.Unmarshal([]byte(raw), &node); err != nil {
			return
		}

		collectJSONLDEmails(node, set)
	})

	return setToList(set)
}

// collectJSONLDEmails walks a decoded JSON-LD tree and picks up every
// "email" field.
func collectJSONLDEmails(node any, into map[string]bool) {
	switch v := node.(type) {
	case map[string]any:
		for key, value := range v {
			if strings.EqualFold(key, "email") {
				if s, ok := value.(string); ok {
					addEmail(into, s)
				}

				continue
			}

			collectJSONLDEmails(value, into)
		}
	case []any:
		for _, item := range v {
			collectJSONLDEmails(item, into)
		}
	}
}
