package domain

import "strings"

// Reserved facet values. Neither may be used as a real category name.
const (
	// All means the facet imposes no constraint
	All = "all"

	// Favorites selects the favorites view in place of a real category
	Favorites = "favoritos"
)

// IsReservedCategory reports whether name collides with a facet sentinel
func IsReservedCategory(name string) bool {
	return name == All || name == Favorites
}

// FilterState is the active filter selection of a browsing session.
// The zero value is not valid; use DefaultFilterState.
type FilterState struct {
	Category   string // All, Favorites or a real category
	Glass      string // All or a glass substring
	Technique  string // All or a technique substring
	SearchTerm string // Lower-cased free text, empty means no search
}

// DefaultFilterState returns the state with every facet cleared
func DefaultFilterState() FilterState {
	return FilterState{
		Category:  All,
		Glass:     All,
		Technique: All,
	}
}

// IsDefault reports whether no filter is active
func (s FilterState) IsDefault() bool {
	return s == DefaultFilterState()
}

// WithSearch returns a copy with the normalized search term applied
func (s FilterState) WithSearch(term string) FilterState {
	s.SearchTerm = NormalizeSearch(term)
	return s
}

// NormalizeSearch lower-cases a raw search input.
// Surrounding whitespace is kept, matching what the user typed.
func NormalizeSearch(term string) string {
	return strings.ToLower(term)
}

// Facet is a single filterable dimension
type Facet int

const (
	FacetCategory Facet = iota
	FacetGlass
	FacetTechnique
)

// Facets lists every facet in display order
var Facets = []Facet{FacetCategory, FacetGlass, FacetTechnique}

// String returns the facet's name
func (f Facet) String() string {
	switch f {
	case FacetCategory:
		return "category"
	case FacetGlass:
		return "glass"
	case FacetTechnique:
		return "technique"
	default:
		return "unknown"
	}
}

// Label returns the display name of the facet
func (f Facet) Label() string {
	switch f {
	case FacetCategory:
		return "Categoria"
	case FacetGlass:
		return "Copo"
	case FacetTechnique:
		return "Técnica"
	default:
		return ""
	}
}

// ParseFacet converts a facet name back into a Facet
func ParseFacet(name string) (Facet, bool) {
	for _, f := range Facets {
		if f.String() == strings.ToLower(name) {
			return f, true
		}
	}
	return 0, false
}

// Value returns the facet's current selection in state
func (f Facet) Value(state FilterState) string {
	switch f {
	case FacetCategory:
		return state.Category
	case FacetGlass:
		return state.Glass
	case FacetTechnique:
		return state.Technique
	default:
		return All
	}
}

// With returns a copy of state with the facet set to value.
// An empty value resets the facet to All.
func (f Facet) With(state FilterState, value string) FilterState {
	if value == "" {
		value = All
	}
	switch f {
	case FacetCategory:
		state.Category = value
	case FacetGlass:
		state.Glass = value
	case FacetTechnique:
		state.Technique = value
	}
	return state
}

// Attribute returns the drink attribute the facet filters on
func (f Facet) Attribute(d Drink) string {
	switch f {
	case FacetCategory:
		return d.Category
	case FacetGlass:
		return d.Glass
	case FacetTechnique:
		return d.Technique
	default:
		return ""
	}
}

// Matches reports whether d passes the facet's constraint in state.
//
// Category matches exactly, or by favorites membership when the Favorites
// sentinel is selected. Glass and technique are case-insensitive substring
// matches and never match a drink without the attribute.
func (f Facet) Matches(d Drink, state FilterState, favorites *FavoriteSet) bool {
	value := f.Value(state)
	if value == All {
		return true
	}

	if f == FacetCategory {
		if value == Favorites {
			return favorites.Has(d.ID)
		}
		return d.Category == value
	}

	attr := f.Attribute(d)
	if attr == "" {
		return false
	}
	return strings.Contains(strings.ToLower(attr), strings.ToLower(value))
}
