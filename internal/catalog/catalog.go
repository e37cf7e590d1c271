// Package catalog loads and validates the drink catalog.
package catalog

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/mmcdole/drinks/internal/domain"
)

//go:embed drinks.json
var defaultCatalog []byte

// Catalog is the immutable, validated set of drinks loaded at startup
type Catalog struct {
	drinks []domain.Drink
	byID   map[string]int
}

// Load reads the catalog from path. An empty path loads the built-in catalog.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Parse(bytes.NewReader(defaultCatalog))
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog: %w", err)
	}
	defer f.Close()

	return Parse(f)
}

// Parse decodes and validates a JSON array of drinks
func Parse(r io.Reader) (*Catalog, error) {
	var drinks []domain.Drink
	if err := json.NewDecoder(r).Decode(&drinks); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidCatalog, err)
	}
	return New(drinks)
}

// New validates drinks and builds a catalog.
// Ids must be non-empty and unique, and no category may use a reserved sentinel.
func New(drinks []domain.Drink) (*Catalog, error) {
	c := &Catalog{
		drinks: make([]domain.Drink, 0, len(drinks)),
		byID:   make(map[string]int, len(drinks)),
	}

	for i, d := range drinks {
		if d.ID == "" {
			return nil, fmt.Errorf("%w: drink at index %d has no id", domain.ErrInvalidCatalog, i)
		}
		if _, dup := c.byID[d.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate id %q", domain.ErrInvalidCatalog, d.ID)
		}
		if domain.IsReservedCategory(d.Category) {
			return nil, fmt.Errorf("%w: drink %q uses reserved category %q", domain.ErrInvalidCatalog, d.ID, d.Category)
		}
		c.byID[d.ID] = len(c.drinks)
		c.drinks = append(c.drinks, d)
	}

	return c, nil
}

// Drinks returns the drinks in catalog order. The slice must not be modified.
func (c *Catalog) Drinks() []domain.Drink {
	if c == nil {
		return nil
	}
	return c.drinks
}

// Get looks up a drink by id
func (c *Catalog) Get(id string) (domain.Drink, bool) {
	if c == nil {
		return domain.Drink{}, false
	}
	i, ok := c.byID[id]
	if !ok {
		return domain.Drink{}, false
	}
	return c.drinks[i], true
}

// Len returns the number of drinks
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.drinks)
}

// Options returns the distinct non-empty values of a facet, ordered by cmp.
// These populate the facet menus; the sentinels are not included.
func (c *Catalog) Options(facet domain.Facet, cmp func(a, b string) int) []string {
	seen := make(map[string]bool)
	var values []string
	for _, d := range c.Drinks() {
		v := facet.Attribute(d)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		values = append(values, v)
	}
	if cmp != nil {
		slices.SortStableFunc(values, cmp)
	}
	return values
}
