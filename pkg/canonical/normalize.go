package canonical

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// qualifierTokens are generic phrases that carry no identity: "DOSAGEM DE
// GLICOSE" and "GLICOSE" are the same exam. The list is fixed; normalization
// must stay deterministic across runs.
var qualifierTokens = []string{
	"DOSAGEM DE",
	"DOSAGEM",
	"EXAME DE",
	"EXAME",
	"PESQUISA DE",
	"DETERMINACAO DE",
	"TESTE DE",
}

// stripDiacritics removes combining marks: "GLICEMIA EM JEJUM" and
// "GLICÊMIA EM JEJUM" normalize identically.
var stripDiacritics = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Normalize converts a free-text exam name into its comparison form:
// uppercased, diacritics stripped, whitespace collapsed, generic qualifier
// tokens removed. Pure and idempotent.
func Normalize(raw string) string {
	s, _, err := transform.String(stripDiacritics, raw)
	if err != nil {
		// Transform failures only occur on invalid UTF-8; fall back to the
		// raw bytes rather than dropping the name.
		s = raw
	}

	s = strings.ToUpper(s)
	s = collapseWhitespace(s)

	// Removing one phrase can splice a new qualifier together at the seam,
	// so sweep the token list until the string stops changing.
	for {
		prev := s
		for _, token := range qualifierTokens {
			s = removePhrase(s, token)
		}
		if s == prev {
			return s
		}
	}
}

// collapseWhitespace trims and reduces internal runs of whitespace to a
// single space.
func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// removePhrase removes whole-word occurrences of phrase from s. Substring
// hits inside a larger word are left alone so "EXAMES" survives "EXAME".
func removePhrase(s, phrase string) string {
	for {
		idx := indexWord(s, phrase)
		if idx < 0 {
			return s
		}
		s = collapseWhitespace(s[:idx] + " " + s[idx+len(phrase):])
	}
}

// indexWord returns the index of phrase in s at a word boundary, or -1.
func indexWord(s, phrase string) int {
	from := 0
	for {
		idx := strings.Index(s[from:], phrase)
		if idx < 0 {
			return -1
		}
		idx += from

		startOK := idx == 0 || s[idx-1] == ' '
		end := idx + len(phrase)
		endOK := end == len(s) || s[end] == ' '
		if startOK && endOK {
			return idx
		}
		from = idx + 1
		if from >= len(s) {
			return -1
		}
	}
}
