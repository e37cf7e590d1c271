// Package favorites owns the user's favorites set and its persistence.
package favorites

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/mmcdole/drinks/internal/domain"
)

// Result describes the outcome of a toggle
type Result struct {
	Favorite bool // Membership after the toggle

	// NeedsRecompute is set when the visible list's membership or order
	// may have changed for the category the toggle happened under
	NeedsRecompute bool
}

// Controller maintains the favorites set and writes it through to a store
// on every change. It is safe for concurrent use.
type Controller struct {
	store  domain.FavoritesStore
	logger *slog.Logger

	mu  sync.RWMutex
	set *domain.FavoriteSet
}

// NewController creates a controller with an empty set. Call Load to read
// the persisted favorites.
func NewController(store domain.FavoritesStore, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		store:  store,
		logger: logger,
		set:    domain.NewFavoriteSet(),
	}
}

// Load replaces the in-memory set with the persisted one.
// On failure the set is left empty and the error is returned, so browsing
// can continue without favorites.
func (c *Controller) Load() error {
	if c.store == nil {
		return nil
	}

	set, err := c.store.LoadFavorites()
	if err != nil {
		c.logger.Warn("failed to load favorites, starting empty", "error", err)
		c.mu.Lock()
		c.set = domain.NewFavoriteSet()
		c.mu.Unlock()
		return fmt.Errorf("load favorites: %w", err)
	}

	c.mu.Lock()
	c.set = set
	c.mu.Unlock()

	c.logger.Debug("loaded favorites", "count", set.Len())
	return nil
}

// Toggle flips the favorite state of id and persists the whole set.
//
// category is the category facet active when the toggle happened. A full
// recompute is needed when viewing favorites and an item was removed (it
// must disappear), or when viewing all (favorites sort first). A write
// failure is returned wrapped in domain.ErrPersistFailed; the in-memory
// change is kept either way.
func (c *Controller) Toggle(id, category string) (Result, error) {
	// Held across the save so writes reach the store in toggle order
	c.mu.Lock()
	defer c.mu.Unlock()

	favorite := c.set.Toggle(id)
	result := Result{
		Favorite:       favorite,
		NeedsRecompute: NeedsRecompute(category, favorite),
	}

	if c.store != nil {
		if err := c.store.SaveFavorites(c.set.Clone()); err != nil {
			c.logger.Error("failed to persist favorites", "id", id, "error", err)
			return result, fmt.Errorf("%w: %v", domain.ErrPersistFailed, err)
		}
	}

	c.logger.Debug("toggled favorite", "id", id, "favorite", favorite)
	return result, nil
}

// NeedsRecompute reports whether toggling an item to favorite under the
// given category changes the visible list beyond the item's own marker
func NeedsRecompute(category string, favorite bool) bool {
	switch category {
	case domain.Favorites:
		return !favorite
	case domain.All:
		return true
	default:
		return false
	}
}

// IsFavorite reports whether id is a favorite
func (c *Controller) IsFavorite(id string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.set.Has(id)
}

// Snapshot returns an independent copy of the current set
func (c *Controller) Snapshot() *domain.FavoriteSet {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.set.Clone()
}
