package crawler

import "strings"

// preferredLocals are business-contact mailbox names. An exact match is worth
// twice a substring match.
var preferredLocals = []string{
	"info", "contact", "rezervasyon", "reservation", "booking",
	"sales", "satis", "reception", "resepsiyon",
}

// genericProviders are consumer mail domains; addresses there may not belong
// to the business at all.
var genericProviders = map[string]bool{
	"gmail.com": true, "yahoo.com": true, "hotmail.com": true,
	"outlook.com": true, "yandex.com": true,
}

// priorityKeywords mark URLs likely to carry contact details.
var priorityKeywords = []string{
	"contact", "iletisim", "about", "hakkimizda", "info",
	"ulasim", "bize-ulasin", "bizeulasin", "communication",
}

// priorityBonus is added to emails found on a priority page.
const priorityBonus = 15

// ScoreEmail rates an address against the site it was found on. Scores are
// raw: a generic provider penalty can push the total negative.
func ScoreEmail(email, siteHost string) int {
	score := 0
	emailLower := strings.ToLower(email)

	at := strings.IndexByte(emailLower, '@')
	if at < 0 {
		return 0
	}

	local := emailLower[:at]
	emailDomain := emailLower[at+1:]
	siteDomain := strings.TrimPrefix(strings.ToLower(siteHost), "www.")

	switch {
	case emailDomain == siteDomain:
		score += 50
	case siteDomain != "" && (strings.Contains(emailDomain, siteDomain) || strings.Contains(siteDomain, emailDomain)):
		score += 30
	}

	exact := false

	for _, preferred := range preferredLocals {
		if local == preferred {
			score += 40
			exact = true

			break
		}
	}

	if !exact {
		for _, preferred := range preferredLocals {
			if strings.Contains(local, preferred) {
				score += 20
				break
			}
		}
	}

	if genericProviders[emailDomain] {
		score -= 20
	}

	return score
}

// isPriorityURL reports whether a URL hints at a contact page.
func isPriorityURL(rawURL string) bool {
	lower := strings.ToLower(rawURL)

	for _, keyword := range priorityKeywords {
		if strings.Contains(lower, keyword) {
			return true
		}
	}

	return false
}
