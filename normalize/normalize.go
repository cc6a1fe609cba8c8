// Package normalize turns raw facility names into ordered domain-label
// candidates and progressive search queries.
//
// The pipeline is a chain of small substitution stages with careful Turkish
// character handling: suffix detection operates on a diacritic-folded shadow
// of the name while the working tokens stay unfolded until domain labels are
// assembled.
package normalize

import (
	"regexp"
	"sort"
	"strings"
)

var (
	bracketRe       = regexp.MustCompile(`\(.*?\)|\[.*?\]`)
	whitespaceRe    = regexp.MustCompile(`\s+`)
	numericPrefixRe = regexp.MustCompile(`^\d+\s+`)
	disallowedRe    = regexp.MustCompile(`[^a-zA-Z0-9\sşğıüçöŞĞİÜÇÖ-]`)
	digitsRe        = regexp.MustCompile(`\d+`)

	foldReplacer = strings.NewReplacer(
		"ş", "s", "ı", "i", "ğ", "g", "ü", "u", "ç", "c", "ö", "o",
		"Ş", "S", "İ", "I", "Ğ", "G", "Ü", "U", "Ç", "C", "Ö", "O",
		"̇", "", // combining dot above, left over by ToLower("İ")
	)

	labelCleaner = strings.NewReplacer(
		"(", "", ")", "", "[", "", "]", "",
		".", "", ",", "", "/", "",
	)
)

// typeSuffixes are the trailing "what it is" words removed from a name. Only
// the first match is stripped, and it is remembered for variant building.
var typeSuffixes = []string{
	"pansiyon", "pansiyonu",
	"otel", "oteli", "oteller",
	"apart", "apart-otel", "apart otel",
	"spa", "tesisi", "hotel", "hotels",
	"motel", "pension", "guest house", "hostel",
}

var stopwords = map[string]bool{
	"the": true, "a": true, "an": true, "and": true, "or": true,
	"in": true, "at": true, "by": true, "for": true, "of": true, "to": true, "is": true,
	"special": true, "class": true, "boutique": true, "luxury": true, "deluxe": true,
}

// typeWords classify a token as a facility-type word (compared after folding).
var typeWords = map[string]bool{
	"hotel": true, "otel": true, "resort": true, "spa": true, "apart": true,
	"pansiyon": true, "motel": true, "house": true, "guest": true,
	"inn": true, "lodge": true,
	"oteli": true, "oteller": true, "pansiyonu": true, "resorts": true,
	"kabin": true, "kabins": true, "vila": true, "villalar": true, "konaklama": true,
}

// queryTypeWords is the smaller set used when building search queries.
var queryTypeWords = map[string]bool{
	"hotel": true, "otel": true, "resort": true, "spa": true, "apart": true,
	"pansiyon": true, "motel": true, "pension": true, "guest": true,
	"house": true, "hostel": true, "lodge": true, "inn": true,
}

// tlds in priority order: Turkish second-level domains first, then the
// generic set.
var tlds = []string{
	".com.tr", ".org.tr", ".net.tr", ".biz.tr",
	".com", ".net", ".org", ".biz", ".info", ".co",
}

// AlternativeTLDs is the retry set used after the main TLD list is exhausted.
var AlternativeTLDs = []string{".biz", ".info", ".mobi"}

// Fold maps Turkish diacritics to their ASCII forms.
func Fold(s string) string {
	return foldReplacer.Replace(s)
}

// CleanBase applies the pre-clean stage: take the part before a hyphen
// (names often carry a "- DISTRICT" suffix), drop bracketed content and
// collapse whitespace.
func CleanBase(name string) string {
	base := name
	if i := strings.IndexByte(base, '-'); i >= 0 {
		base = base[:i]
	}

	base = bracketRe.ReplaceAllString(base, "")
	base = whitespaceRe.ReplaceAllString(base, " ")

	return strings.TrimSpace(base)
}

// Tokens is the intermediate output of the cleaning stages.
type Tokens struct {
	// Raw are the cleaned, lowercased tokens after suffix removal.
	Raw []string
	// Original are the tokens before numeric-prefix removal; they retain
	// number tokens like "1207".
	Original []string
	// Core are Raw minus stopwords and type words (falling back to Raw minus
	// stopwords only when the filter empties the list).
	Core []string
	// RemovedSuffix is the trailing type suffix stripped from the name, if any.
	RemovedSuffix string
	// Clean is the cleaned name with spaces intact, suffix removed, unfolded.
	Clean string
}

// Tokenize runs the cleaning stages over a raw facility name.
func Tokenize(name string) Tokens {
	base := CleanBase(name)
	cleanName := strings.ToLower(base)
	rawName := cleanName

	cleanName = numericPrefixRe.ReplaceAllString(cleanName, "")
	cleanName = strings.ReplaceAll(cleanName, "&", "")
	cleanName = disallowedRe.ReplaceAllString(cleanName, "")

	// Suffix detection happens on a folded shadow copy so ADMİRAL OTELİ and
	// ADMIRAL OTELI behave identically; the working name stays unfolded.
	tempCheck := Fold(strings.ToLower(cleanName))

	var removedSuffix string

	for _, suffix := range typeSuffixes {
		if strings.HasSuffix(tempCheck, " "+suffix) {
			removedSuffix = suffix
			cleanName = strings.TrimSpace(cleanName[:len(cleanName)-len(" "+suffix)])
			tempCheck = strings.TrimSpace(tempCheck[:len(tempCheck)-len(" "+suffix)])

			break
		}
	}

	rawTokens := strings.Fields(strings.ToLower(cleanName))
	originalTokens := strings.Fields(rawName)

	core := make([]string, 0, len(rawTokens))

	for _, t := range rawTokens {
		if !stopwords[t] && !typeWords[Fold(t)] {
			core = append(core, t)
		}
	}

	if len(core) == 0 {
		for _, t := range rawTokens {
			if !stopwords[t] {
				core = append(core, t)
			}
		}
	}

	return Tokens{
		Raw:           rawTokens,
		Original:      originalTokens,
		Core:          core,
		RemovedSuffix: removedSuffix,
		Clean:         cleanName,
	}
}

// CleanName returns the fully collapsed, folded domain label for the whole
// name (no spaces, no punctuation). Used as the base for alternative-TLD
// retries.
func CleanName(name string) string {
	tok := Tokenize(name)
	label := Fold(tok.Clean)
	label = labelCleaner.Replace(label)
	label = strings.ReplaceAll(label, " ", "")

	return label
}

func hasTypeWord(tokens []string) bool {
	for _, t := range tokens {
		if typeWords[Fold(t)] {
			return true
		}
	}

	return false
}

func joinLabel(tokens []string, sep string) string {
	label := strings.Join(tokens, sep)
	label = Fold(label)
	label = labelCleaner.Replace(label)

	return label
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}

	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}

	return true
}

// progressive builds the ordered token prefixes the variants derive from:
// core prefixes first, then intermediate raw-token combinations where the
// core filter removed type words, with core+removedSuffix promoted to the
// front when a suffix was stripped.
func progressive(tok Tokens) [][]string {
	var out [][]string

	if len(tok.Core) > 0 {
		for i := 1; i <= len(tok.Core); i++ {
			out = append(out, tok.Core[:i])
		}
	} else {
		for i := 1; i <= len(tok.Raw); i++ {
			out = append(out, tok.Raw[:i])
		}
	}

	// Core filtering drops patterns like "alexiaresort"; recover them from
	// the raw token prefixes.
	if len(tok.Core) < len(tok.Raw) && len(tok.Raw) > 1 {
		for i := len(tok.Core) + 1; i <= len(tok.Raw); i++ {
			combo := tok.Raw[:i]
			if !containsList(out, combo) {
				out = append(out, combo)
			}
		}
	}

	if tok.RemovedSuffix != "" && len(tok.Core) > 0 {
		front := [][]string{append(append([]string{}, tok.Core...), tok.RemovedSuffix)}

		// Names ending in "oteli" also answer to plain "otel" domains.
		if tok.RemovedSuffix == "oteli" {
			front = append(front, append(append([]string{}, tok.Core...), "otel"))
		}

		for i := len(front) - 1; i >= 0; i-- {
			if !containsList(out, front[i]) {
				out = append([][]string{front[i]}, out...)
			}
		}
	}

	return out
}

func containsList(lists [][]string, want []string) bool {
	for _, l := range lists {
		if len(l) != len(want) {
			continue
		}

		equal := true

		for i := range l {
			if l[i] != want[i] {
				equal = false
				break
			}
		}

		if equal {
			return true
		}
	}

	return false
}

// Variants returns prioritized domain labels for a facility name.
func Variants(name string) []string {
	tok := Tokenize(name)

	var variants []string

	add := func(label string) {
		if len(label) >= 3 {
			variants = append(variants, label)
		}
	}

	for _, tokens := range progressive(tok) {
		if len(tokens) == 0 {
			continue
		}

		var orderings [][]string

		if hasTypeWord(tokens) {
			orderings = [][]string{tokens}
		} else {
			orderings = [][]string{
				append([]string{"hotel"}, tokens...),
				append(append([]string{}, tokens...), "hotel"),
			}

			if len(tokens) >= 2 {
				middle := append([]string{tokens[0], "hotel"}, tokens[1:]...)
				orderings = append(orderings, middle)
			}
		}

		for _, ordering := range orderings {
			add(joinLabel(ordering, ""))
			add(joinLabel(ordering, "-"))
		}
	}

	// Numeric variants keep names like "1207 RESIDENCE" findable as hotel1207.
	for _, t := range tok.Original {
		if isNumeric(t) {
			add("hotel" + t)
			add(t + "hotel")
		}
	}

	add(CleanName(name))

	variants = dedupe(variants)

	return prioritize(variants)
}

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))

	for _, v := range in {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}

	return out
}

// prioritize groups variants into quality buckets: "oteli" endings carry the
// strongest Turkish-specific signal, then "otel", then specific non-generic
// labels, then anything containing "hotel". Longer labels sort first within a
// bucket.
func prioritize(variants []string) []string {
	var hasOteli, hasOtel, noHotel, hasHotel []string

	for _, v := range variants {
		switch {
		case strings.HasSuffix(v, "oteli"):
			hasOteli = append(hasOteli, v)
		case strings.HasSuffix(v, "otel") && !strings.HasSuffix(v, "hotel"):
			hasOtel = append(hasOtel, v)
		case !strings.Contains(v, "hotel"):
			noHotel = append(noHotel, v)
		default:
			hasHotel = append(hasHotel, v)
		}
	}

	byLenDesc := func(group []string) {
		sort.SliceStable(group, func(i, j int) bool { return len(group[i]) > len(group[j]) })
	}

	byLenDesc(hasOteli)
	byLenDesc(hasOtel)
	byLenDesc(noHotel)
	byLenDesc(hasHotel)

	out := make([]string, 0, len(variants))
	out = append(out, hasOteli...)
	out = append(out, hasOtel...)
	out = append(out, noHotel...)
	out = append(out, hasHotel...)

	return out
}

// URLCandidates expands the prioritized variants into probe URLs across the
// TLD list, each with and without the www. prefix.
func URLCandidates(name string) []string {
	variants := Variants(name)

	urls := make([]string, 0, len(variants)*len(tlds)*2)

	for _, variant := range variants {
		for _, tld := range tlds {
			urls = append(urls, "http://www."+variant+tld)
			urls = append(urls, "http://"+variant+tld)
		}
	}

	return dedupe(urls)
}

// StripDigits removes digit runs from a token.
func StripDigits(s string) string {
	return digitsRe.ReplaceAllString(s, "")
}
