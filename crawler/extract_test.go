package crawler

import (
	"sort"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
)

func docFrom(t *testing.T, html string) *goquery.Document {
	t.Helper()

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		t.Fatalf("parse html: %v", err)
	}

	return doc
}

func contains(list []string, want string) bool {
	for _, v := range list {
		if v == want {
			return true
		}
	}

	return false
}

func TestExtractFromTextStandard(t *testing.T) {
	emails := ExtractFromText("Write to info@pearlhotel.com.tr or rezervasyon@pearlhotel.com.tr today")

	if !contains(emails, "info@pearlhotel.com.tr") || !contains(emails, "rezervasyon@pearlhotel.com.tr") {
		t.Fatalf("missing standard emails: %v", emails)
	}
}

func TestExtractFromTextObfuscations(t *testing.T) {
	cases := map[string]string{
		"info [at] foo [dot] com":       "info@foo.com",
		"info (at) foo (dot) com":       "info@foo.com",
		"info {at} foo {dot} com":       "info@foo.com",
		"info at foo dot com":           "info@foo.com",
		"info AT foo DOT com":           "info@foo.com",
		"info [et] foo [nokta] com":     "info@foo.com",
		"rezervasyon et otelim nokta com": "rezervasyon@otelim.com",
		"info&#64;foo&#46;com":          "info@foo.com",
		"info&commat;foo&period;com":    "info@foo.com",
	}

	for input, want := range cases {
		emails := ExtractFromText(input)
		if !contains(emails, want) {
			t.Fatalf("ExtractFromText(%q) = %v, want %q", input, emails, want)
		}
	}
}

func TestExtractFromTextSpacedOut(t *testing.T) {
	emails := ExtractFromText("i n f o @foo.com")
	if !contains(emails, "info@foo.com") {
		t.Fatalf("spaced-out email not recovered: %v", emails)
	}
}

func TestIsValidEmailRejections(t *testing.T) {
	invalid := []string{
		"logo@2x.png",
		"icon@site.jpg",
		"style@main.css",
		"user@example.com",
		"user@test.com",
		"noreply@pearlhotel.com",
		"no-reply@pearlhotel.com",
		"errors@sentry.io",
		"bot@google.com",
		"12345@pearlhotel.com",
		"a@b",
		"x@y.",
		"user@@foo.com",
	}

	for _, email := range invalid {
		if IsValidEmail(email) {
			t.Fatalf("expected %q to be rejected", email)
		}
	}

	valid := []string{"info@pearlhotel.com.tr", "REZERVASYON@Otel.Com"}

	for _, email := range valid {
		if !IsValidEmail(email) {
			t.Fatalf("expected %q to be accepted", email)
		}
	}
}

func TestIsValidEmailRoundTrip(t *testing.T) {
	email := "info@pearlhotel.com.tr"
	if !IsValidEmail(email) {
		t.Fatal("precondition failed")
	}

	at := strings.IndexByte(email, '@')
	rebuilt := email[:at] + "@" + email[at+1:]

	if rebuilt != email {
		t.Fatalf("round trip broke the address: %q", rebuilt)
	}
}

func TestExtractFromHTMLSources(t *testing.T) {
	html := `<html><body>
	<p>Visible: visible@pearlhotel.com</p>
	<a href="mailto:mailto@pearlhotel.com?subject=Booking">Write us</a>
	<span data-email="data@pearlhotel.com">contact</span>
	<span data-mail="mail@pearlhotel.com">contact</span>
	<meta name="email" content="meta@pearlhotel.com">
	<script type="application/ld+json">
	{"@type":"Hotel","name":"Pearl","contactPoint":{"email":"reservations@acme.com"}}
	</script>
	</body></html>`

	emails := ExtractFromHTML(docFrom(t, html))
	sort.Strings(emails)

	want := []string{
		"data@pearlhotel.com",
		"mail@pearlhotel.com",
		"mailto@pearlhotel.com",
		"meta@pearlhotel.com",
		"reservations@acme.com",
		"visible@pearlhotel.com",
	}

	if len(emails) != len(want) {
		t.Fatalf("got %v, want %v", emails, want)
	}

	for i := range want {
		if emails[i] != want[i] {
			t.Fatalf("got %v, want %v", emails, want)
		}
	}
}

func TestScoreEmail(t *testing.T) {
	// Same domain + exact preferred local.
	if got := ScoreEmail("info@pearlhotel.com", "www.pearlhotel.com"); got != 90 {
		t.Fatalf("expected 90, got %d", got)
	}

	// Related domain + contains preferred local.
	if got := ScoreEmail("hotelinfo@rezervasyon.pearlhotel.com", "pearlhotel.com"); got != 50 {
		t.Fatalf("expected 50, got %d", got)
	}

	// Generic provider penalty can push the score negative.
	if got := ScoreEmail("someone@gmail.com", "pearlhotel.com"); got != -20 {
		t.Fatalf("expected -20, got %d", got)
	}

	// JSON-LD scenario: site host equals the email domain.
	if got := ScoreEmail("reservations@acme.com", "acme.com"); got < 40 {
		t.Fatalf("expected at least 40, got %d", got)
	}
}

func TestIsPriorityURL(t *testing.T) {
	priority := []string{
		"http://pearlhotel.com/contact",
		"http://pearlhotel.com/iletisim",
		"http://pearlhotel.com/hakkimizda.html",
		"http://pearlhotel.com/bize-ulasin",
	}

	for _, u := range priority {
		if !isPriorityURL(u) {
			t.Fatalf("expected %q to be a priority URL", u)
		}
	}

	if isPriorityURL("http://pearlhotel.com/rooms") {
		t.Fatal("rooms page must not be priority")
	}
}
