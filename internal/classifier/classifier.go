// Package classifier decides which configured tag, if any, a chat message triggers.
//
// Recognition is a pure function of the message text, its tokens, the tag catalog
// and a similarity threshold. Precedence, most to least specific:
// whole-message pattern, per-token pattern, whole-message fuzzy, per-token fuzzy.
package classifier

import (
	"log/slog"
	"math/rand/v2"

	"github.com/pbaille/replybot/internal/domain"
)

// Chooser picks one of n equally ranked candidates, returning an index in [0, n).
type Chooser interface {
	Choose(n int) int
}

// RandomChooser draws from the process-wide generator.
type RandomChooser struct{}

func (RandomChooser) Choose(n int) int {
	return rand.IntN(n)
}

// FixedChooser always returns the same index, clamped to the candidate count.
type FixedChooser int

func (f FixedChooser) Choose(n int) int {
	return min(max(int(f), 0), n-1)
}

// TokenSource supplies a message's source text and its tokens.
type TokenSource interface {
	Source() string
	Tokens() []string
}

// Recognizer matches messages against a tag catalog
type Recognizer struct {
	chooser Chooser
	logger  *slog.Logger
}

// Option configures a Recognizer
type Option func(*Recognizer)

// WithChooser replaces the random tie-breaker.
func WithChooser(c Chooser) Option {
	return func(r *Recognizer) { r.chooser = c }
}

// WithLogger sets the logger used for pattern failures and match traces.
func WithLogger(l *slog.Logger) Option {
	return func(r *Recognizer) { r.logger = l }
}

// New creates a Recognizer
func New(opts ...Option) *Recognizer {
	r := &Recognizer{
		chooser: RandomChooser{},
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Recognize returns the text of the tag triggered by the message, or false when
// nothing matches. Exact patterns always take precedence over fuzzy tags; ties
// are broken by the Chooser. The catalog and tokens are not modified.
func (r *Recognizer) Recognize(source string, tokens []string, catalog []domain.Tag, threshold float64) (string, bool) {
	var exact, fuzzy []domain.Tag
	for _, t := range catalog {
		if t.Strategy == domain.StrategyExact {
			exact = append(exact, t)
		} else {
			fuzzy = append(fuzzy, t)
		}
	}

	if matched := matchExact(r.logger, exact, source, tokens); len(matched) > 0 {
		tag := matched[r.chooser.Choose(len(matched))]
		r.logger.Debug("matched tag pattern", slog.String("tag", tag), slog.Int("candidates", len(matched)))
		return tag, true
	}

	g := RankFuzzy(fuzzy, source, tokens, threshold)
	if len(g.Tags) == 0 {
		return "", false
	}
	tag := g.Tags[r.chooser.Choose(len(g.Tags))]
	r.logger.Debug("matched similar tag",
		slog.String("tag", tag),
		slog.Float64("score", g.Score),
		slog.Int("candidates", len(g.Tags)))
	return tag, true
}

// RecognizeIn runs Recognize on the text and tokens of src.
func (r *Recognizer) RecognizeIn(src TokenSource, catalog []domain.Tag, threshold float64) (string, bool) {
	return r.Recognize(src.Source(), src.Tokens(), catalog, threshold)
}
