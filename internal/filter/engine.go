// Package filter computes the visible subset of the catalog for a filter state.
package filter

import (
	"fmt"
	"slices"
	"strings"

	"github.com/mmcdole/drinks/internal/domain"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// DefaultLocale is the working locale of the catalog
const DefaultLocale = "pt-BR"

// Engine filters and orders drinks. It holds no state besides the collation
// locale, so ComputeVisible is a pure function of its arguments.
type Engine struct {
	tag language.Tag
}

// NewEngine creates an engine collating names for locale (e.g. "pt-BR").
// An empty locale uses DefaultLocale.
func NewEngine(locale string) (*Engine, error) {
	if locale == "" {
		locale = DefaultLocale
	}
	tag, err := language.Parse(locale)
	if err != nil {
		return nil, fmt.Errorf("invalid locale %q: %w", locale, err)
	}
	return &Engine{tag: tag}, nil
}

// MustEngine is NewEngine for locales known to be valid
func MustEngine(locale string) *Engine {
	e, err := NewEngine(locale)
	if err != nil {
		panic(err)
	}
	return e
}

// Locale returns the collation locale
func (e *Engine) Locale() string {
	return e.tag.String()
}

// collator returns a fresh collator. Collators keep internal buffers and
// are not safe for concurrent use, so one is built per call.
// Loose ignores case, accents and width, so "Água" sorts with "Agua".
func (e *Engine) collator() *collate.Collator {
	return collate.New(e.tag, collate.Loose)
}

// Comparator returns a function ordering strings by the engine's locale.
// It shares one collator, so use it for a single sort on one goroutine.
func (e *Engine) Comparator() func(a, b string) int {
	col := e.collator()
	return func(a, b string) int {
		return col.CompareString(a, b)
	}
}

// ComputeVisible returns the drinks passing every filter in state, ordered.
//
// With the category facet at All, favorites come first and each partition
// is sorted by name. Any other category (including the favorites view)
// sorts by name only. Sorting is stable: names that collate equal keep
// catalog order.
func (e *Engine) ComputeVisible(drinks []domain.Drink, favorites *domain.FavoriteSet, state domain.FilterState) []domain.Drink {
	visible := make([]domain.Drink, 0, len(drinks))
	for _, d := range drinks {
		if Matches(d, favorites, state) {
			visible = append(visible, d)
		}
	}

	col := e.collator()
	byName := func(a, b domain.Drink) int {
		return col.CompareString(a.Name, b.Name)
	}

	if state.Category == domain.All {
		slices.SortStableFunc(visible, func(a, b domain.Drink) int {
			aFav, bFav := favorites.Has(a.ID), favorites.Has(b.ID)
			if aFav != bFav {
				if aFav {
					return -1
				}
				return 1
			}
			return byName(a, b)
		})
	} else {
		slices.SortStableFunc(visible, byName)
	}

	return visible
}

// Matches reports whether a single drink passes the search and every facet
func Matches(d domain.Drink, favorites *domain.FavoriteSet, state domain.FilterState) bool {
	if !MatchesSearch(d, state.SearchTerm) {
		return false
	}
	for _, f := range domain.Facets {
		if !f.Matches(d, state, favorites) {
			return false
		}
	}
	return true
}

// MatchesSearch reports whether term is a case-insensitive substring of the
// drink's name, category or description. An empty term matches everything.
func MatchesSearch(d domain.Drink, term string) bool {
	if term == "" {
		return true
	}
	term = strings.ToLower(term)
	return strings.Contains(strings.ToLower(d.Name), term) ||
		strings.Contains(strings.ToLower(d.Category), term) ||
		strings.Contains(strings.ToLower(d.Description), term)
}

// ActiveFilters counts the facets not at All plus a non-empty search
func ActiveFilters(state domain.FilterState) int {
	n := 0
	for _, f := range domain.Facets {
		if f.Value(state) != domain.All {
			n++
		}
	}
	if state.SearchTerm != "" {
		n++
	}
	return n
}
