package classifier

import "github.com/pbaille/replybot/internal/domain"

// Group holds the tags that share the best retained fuzzy score.
// An empty Tags means no fuzzy tag was within the threshold.
type Group struct {
	Score float64
	Tags  []string
}

// add keeps only the tags at the lowest score seen so far. Scores are ratios of
// non-negative integers, so ties are exact float equality.
func (g *Group) add(score float64, tag string) {
	switch {
	case len(g.Tags) == 0 || score < g.Score:
		g.Score = score
		g.Tags = []string{tag}
	case score == g.Score:
		g.Tags = append(g.Tags, tag)
	}
}

// RankFuzzy scores fuzzy tags by normalized edit distance and returns the tags
// tied at the lowest score not above threshold.
//
// Whole-message tags are scored against source alone; when any of them is within
// threshold their group wins and per-token tags are not scored. Otherwise each
// per-token tag is scored by its closest token.
func RankFuzzy(tags []domain.Tag, source string, tokens []string, threshold float64) Group {
	whole, perToken := splitByScope(tags)

	if g := rank(whole, []string{source}, threshold); len(g.Tags) > 0 {
		return g
	}
	return rank(perToken, tokens, threshold)
}

func rank(tags, inputs []string, threshold float64) Group {
	var g Group
	for _, tag := range tags {
		score, ok := MinDistance(tag, inputs)
		if !ok || score > threshold {
			continue
		}
		g.add(score, tag)
	}
	return g
}
