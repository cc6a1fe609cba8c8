package discovery

import "testing"

func TestDomainParts(t *testing.T) {
	cases := []struct {
		in     string
		label  string
		suffix string
	}{
		{"http://www.pearlhotelistanbul.com.tr", "pearlhotelistanbul", "com.tr"},
		{"https://www.booking.com/hotel/tr/pearl.html", "booking", "com"},
		{"http://alexiaresort.com", "alexiaresort", "com"},
	}

	for _, c := range cases {
		label, suffix := domainParts(c.in)
		if label != c.label || suffix != c.suffix {
			t.Fatalf("domainParts(%q) = (%q, %q), want (%q, %q)", c.in, label, suffix, c.label, c.suffix)
		}
	}
}

func TestIsBlacklisted(t *testing.T) {
	blacklisted := []string{
		"https://www.booking.com/hotel/tr/pearl.html",
		"https://www.tripadvisor.com.tr/Hotel_Review",
		"https://tr.hotels.com/ho1234",
		"https://www.instagram.com/pearlhotel",
		"https://www.otelz.com/otel/pearl",
	}

	for _, u := range blacklisted {
		if !isBlacklisted(u) {
			t.Fatalf("expected %q to be blacklisted", u)
		}
	}

	if isBlacklisted("http://www.pearlhotelistanbul.com.tr") {
		t.Fatal("own domain must not be blacklisted")
	}
}

func TestIsRelevantDomain(t *testing.T) {
	// Hotel keyword in the domain passes regardless of the name.
	if !isRelevantDomain("PEARL ISTANBUL HOUSE", "http://www.pearlhotelistanbul.com.tr") {
		t.Fatal("hotel keyword in domain must pass")
	}

	// Name-token match passes.
	if !isRelevantDomain("ALEXIA RESORT & SPA HOTEL", "http://alexia.com") {
		t.Fatal("name token in domain must pass")
	}

	// A bare generic type word is rejected.
	if isRelevantDomain("PEARL HOTEL", "http://otel.com") {
		t.Fatal("bare type word must be rejected")
	}

	// Longish specific domains get the benefit of the doubt.
	if !isRelevantDomain("PEARL HOTEL", "http://sunrise.com") {
		t.Fatal("long specific domain must pass for validation to decide")
	}

	// Short unrelated domains are rejected.
	if isRelevantDomain("PEARL HOTEL", "http://xy.com") {
		t.Fatal("short unrelated domain must be rejected")
	}
}

func TestCalculateScoreTokenOverlap(t *testing.T) {
	// All tokens in the domain plus hotel keyword plus a long domain.
	score := CalculateScore("PEARL ISTANBUL", "http://www.pearlhotelistanbul.com.tr", "")

	// 45 (full overlap) + 20 (hotel keyword) + 10 (length) = 75
	if score != 75 {
		t.Fatalf("expected score 75, got %v", score)
	}
}

func TestCalculateScoreTitleBonus(t *testing.T) {
	withTitle := CalculateScore("ALEXIA", "http://alexia.com", "Alexia Resort Antalya")
	withoutTitle := CalculateScore("ALEXIA", "http://alexia.com", "")

	if withTitle-withoutTitle != 30 {
		t.Fatalf("expected +30 for full name in title, got %v vs %v", withTitle, withoutTitle)
	}
}

func TestCalculateScoreDigitStrippedMatch(t *testing.T) {
	// 01novaotel should still match "nova" despite its digit prefix. Without a
	// token match the score would be 30 (otel keyword 20 + length 10).
	score := CalculateScore("NOVA OTEL", "http://01novaotel.com", "")
	if score <= 30 {
		t.Fatalf("expected digit-stripped token match, got %v", score)
	}
}

func TestCalculateScoreCapped(t *testing.T) {
	score := CalculateScore(
		"GRAND PEARL RESORT HOTEL ISTANBUL",
		"http://www.grandpearlresorthotelistanbul.com",
		"GRAND PEARL RESORT HOTEL ISTANBUL official site",
	)

	if score > 100 {
		t.Fatalf("score must cap at 100, got %v", score)
	}
}

func TestDomainQualityBonus(t *testing.T) {
	if got := domainQualityBonus("ALEXIA RESORT & SPA HOTEL", "http://alexiaresort.com"); got != 10 {
		t.Fatalf("expected resort bonus 10, got %v", got)
	}

	if got := domainQualityBonus("ADMİRAL OTELİ", "http://admiralotel.com"); got != 15 {
		t.Fatalf("expected otel bonus 15, got %v", got)
	}
}
