package classifier

import (
	"log/slog"
	"time"

	"github.com/dlclark/regexp2"

	"github.com/pbaille/replybot/internal/domain"
)

// matchTimeout bounds a single pattern evaluation. A pattern that backtracks
// past it counts as not matching.
var matchTimeout = 100 * time.Millisecond

// MatchExact evaluates exact-pattern tags and returns the texts of those that match.
//
// Whole-message tags are tried first against source and its lower-cased form.
// If any of them matches, only whole-message matches are returned and per-token
// tags are never evaluated. Otherwise a per-token tag matches when its pattern
// matches any token, verbatim or lower-cased.
//
// Patterns that fail to compile are logged and ignored.
func MatchExact(tags []domain.Tag, source string, tokens []string) []string {
	return matchExact(slog.Default(), tags, source, tokens)
}

func matchExact(logger *slog.Logger, tags []domain.Tag, source string, tokens []string) []string {
	whole, perToken := splitByScope(tags)

	if matched := matchPatterns(logger, whole, []string{source}); len(matched) > 0 {
		return matched
	}
	return matchPatterns(logger, perToken, tokens)
}

func matchPatterns(logger *slog.Logger, patterns, inputs []string) []string {
	var matched []string
	for _, pattern := range patterns {
		re, err := compilePattern(pattern)
		if err != nil {
			logger.Warn("failed to compile tag pattern, skipping",
				slog.String("pattern", pattern),
				slog.String("error", err.Error()))
			continue
		}
		if matchesAny(logger, re, inputs) {
			matched = append(matched, pattern)
		}
	}
	return matched
}

// compilePattern uses RE2 syntax (named groups as (?P<name>), POSIX classes,
// $ only at the end of input) while keeping lookaround and backreferences.
func compilePattern(pattern string) (*regexp2.Regexp, error) {
	re, err := regexp2.Compile(pattern, regexp2.RE2)
	if err != nil {
		return nil, err
	}
	re.MatchTimeout = matchTimeout
	return re, nil
}

func matchesAny(logger *slog.Logger, re *regexp2.Regexp, inputs []string) bool {
	for _, input := range inputs {
		if isMatch(logger, re, input) {
			return true
		}
		if lowered := lower(input); lowered != input && isMatch(logger, re, lowered) {
			return true
		}
	}
	return false
}

// isMatch treats a matcher error (a match timeout) as no match.
func isMatch(logger *slog.Logger, re *regexp2.Regexp, input string) bool {
	ok, err := re.MatchString(input)
	if err != nil {
		logger.Warn("tag pattern evaluation failed",
			slog.String("pattern", re.String()),
			slog.String("error", err.Error()))
		return false
	}
	return ok
}

// splitByScope returns the texts of whole-message and per-token tags, in catalog order.
func splitByScope(tags []domain.Tag) (whole, perToken []string) {
	for _, t := range tags {
		if t.Scope == domain.ScopeWholeMessage {
			whole = append(whole, t.Text)
		} else {
			perToken = append(perToken, t.Text)
		}
	}
	return whole, perToken
}
