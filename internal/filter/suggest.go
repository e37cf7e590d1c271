package filter

import (
	"slices"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"
	"github.com/mmcdole/drinks/internal/domain"
)

// maxTypoDistance bounds the edit distance accepted for a suggestion
const maxTypoDistance = 3

// Suggest returns up to limit drink names close to term, best first.
// It is used when a search yields nothing, and never affects filtering.
//
// Names containing the term as a fuzzy subsequence rank first (accents and
// case folded), followed by names within a small edit distance.
func (e *Engine) Suggest(drinks []domain.Drink, term string, limit int) []string {
	term = strings.TrimSpace(strings.ToLower(term))
	if term == "" || limit <= 0 || len(drinks) == 0 {
		return nil
	}

	names := make([]string, len(drinks))
	for i, d := range drinks {
		names[i] = d.Name
	}

	type scored struct {
		name  string
		score int
	}
	best := make(map[string]int)

	for _, r := range fuzzy.RankFindNormalizedFold(term, names) {
		best[r.Target] = r.Distance
	}

	for _, name := range names {
		if _, ok := best[name]; ok {
			continue
		}
		distance := fuzzy.LevenshteinDistance(term, strings.ToLower(name))
		if distance <= allowedDistance(term) {
			// Edit-distance matches rank after every subsequence match
			best[name] = 100 + distance
		}
	}

	ranked := make([]scored, 0, len(best))
	for name, score := range best {
		ranked = append(ranked, scored{name: name, score: score})
	}

	col := e.collator()
	slices.SortFunc(ranked, func(a, b scored) int {
		if a.score != b.score {
			return a.score - b.score
		}
		return col.CompareString(a.name, b.name)
	})

	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	out := make([]string, len(ranked))
	for i, r := range ranked {
		out[i] = r.name
	}
	return out
}

// allowedDistance scales typo tolerance with term length
func allowedDistance(term string) int {
	n := len([]rune(term))
	switch {
	case n <= 3:
		return 1
	case n <= 6:
		return 2
	default:
		return maxTypoDistance
	}
}
