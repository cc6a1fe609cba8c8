package normalize

import (
	"fmt"
	"strings"
)

// Queries builds progressively longer search queries for a facility,
// highest-relevance tokens first. Each phrase is emitted quoted and unquoted,
// combined with the city and with the hyphen suffix of the raw name (often a
// district hint) when present.
func Queries(name, city string) []string {
	parts := strings.Split(name, "-")

	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}

	base := strings.ToLower(parts[0])

	var suffix string
	if len(parts) > 1 {
		suffix = strings.ToLower(parts[1])
	}

	tokens := strings.Fields(base)
	suffixTokens := strings.Fields(suffix)

	core := make([]string, 0, len(tokens))

	for _, t := range tokens {
		if !stopwords[t] && !queryTypeWords[t] {
			core = append(core, t)
		}
	}

	var prefixes [][]string

	appendPrefixes := func(list []string) {
		start := 1
		if len(list) >= 2 {
			start = 2
		}

		for i := start; i <= len(list); i++ {
			prefixes = append(prefixes, list[:i])
		}
	}

	appendPrefixes(core)

	// Numeric-stripped variant helps names like "1207 RESIDENCE".
	noNumbers := make([]string, 0, len(core))

	for _, t := range core {
		if !isNumeric(t) {
			noNumbers = append(noNumbers, t)
		}
	}

	if len(noNumbers) > 0 && len(noNumbers) != len(core) {
		appendPrefixes(noNumbers)
	}

	if len(tokens) > 0 {
		prefixes = append(prefixes, tokens)
	}

	locationHint := strings.Join(suffixTokens, " ")

	var queries []string

	for _, tokenList := range prefixes {
		if len(tokenList) == 0 {
			continue
		}

		if !hasQueryTypeWord(tokenList) {
			tokenList = append(append([]string{}, tokenList...), "hotel")
		}

		phrase := strings.Join(tokenList, " ")
		if len(phrase) < 3 {
			continue
		}

		queries = append(queries, fmt.Sprintf("%q %s otel", phrase, city))
		queries = append(queries, fmt.Sprintf("%s %s otel", phrase, city))

		if locationHint != "" {
			queries = append(queries, fmt.Sprintf("%q %s otel", phrase, locationHint))
			queries = append(queries, fmt.Sprintf("%s %s otel", phrase, locationHint))
		}

		if len(suffixTokens) > 0 {
			withSuffix := strings.Join(append(append([]string{}, tokenList...), suffixTokens...), " ")
			if len(withSuffix) >= 3 {
				queries = append(queries, fmt.Sprintf("%q %s otel", withSuffix, city))
				queries = append(queries, fmt.Sprintf("%s %s otel", withSuffix, city))
			}
		}
	}

	return dedupe(queries)
}

func hasQueryTypeWord(tokens []string) bool {
	for _, t := range tokens {
		if queryTypeWords[t] {
			return true
		}
	}

	return false
}
