package classifier

import (
	"log/slog"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// IsSeparator reports whether r splits message text into tokens.
// The class is the ASCII punctuation and space ranges ' '..'/', ':'..'@' and '\\'..'`'.
func IsSeparator(r rune) bool {
	return (r >= ' ' && r <= '/') || (r >= ':' && r <= '@') || (r >= '\\' && r <= '`')
}

// Tokenize removes the excluded spans from source and splits what is left into
// lower-cased tokens.
//
// Spans are looked up in order, each one in the text remaining after the previous
// hit. A span that cannot be found is skipped and the scan position stays where it
// was, so an out-of-order span list leaves the earlier spans in the text.
func Tokenize(source string, excluded []string) []string {
	return tokenize(slog.Default(), source, excluded)
}

func tokenize(logger *slog.Logger, source string, excluded []string) []string {
	chunks := splitSpans(logger, source, excluded)

	tokens := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		for _, field := range strings.FieldsFunc(chunk, IsSeparator) {
			tokens = append(tokens, lower(field))
		}
	}
	return tokens
}

// Excise returns source with the excluded spans cut out, using the same lookup
// rules as Tokenize. Case is preserved.
func Excise(source string, excluded []string) string {
	return strings.Join(splitSpans(slog.Default(), source, excluded), "")
}

func splitSpans(logger *slog.Logger, source string, excluded []string) []string {
	var chunks []string
	rest := source
	next := 0
	for rest != "" {
		if next >= len(excluded) {
			chunks = append(chunks, rest)
			break
		}
		span := excluded[next]
		next++

		idx := strings.Index(rest, span)
		if idx < 0 {
			logger.Warn("excluded span not found in text", slog.String("span", span))
			continue
		}
		chunks = append(chunks, rest[:idx])
		rest = rest[idx+len(span):]
	}
	return chunks
}

// lower applies full Unicode lower-casing, including the final sigma rule.
// A Caser keeps state, so one is built per call.
func lower(s string) string {
	return cases.Lower(language.Und).String(s)
}
