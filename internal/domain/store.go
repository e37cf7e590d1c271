package domain

import "context"

// FavoritesStore is durable key-value persistence for the favorites set.
// Save must be synchronous: once it returns nil the set survives a crash.
type FavoritesStore interface {
	LoadFavorites() (*FavoriteSet, error)
	SaveFavorites(set *FavoriteSet) error
}

// CacheStorage holds named cache generations of request/response pairs.
// Each generation maps a request key (see RequestKey) to the most recently
// stored response. Implementations must make Put and PutAll atomic.
type CacheStorage interface {
	// Names lists every existing generation
	Names(ctx context.Context) ([]string, error)

	// Has reports whether a generation exists
	Has(ctx context.Context, name string) (bool, error)

	// Match looks up key in the given generations, in order
	Match(ctx context.Context, names []string, key string) (*CachedResponse, bool, error)

	// Put stores a single entry, creating the generation if needed
	Put(ctx context.Context, name, key string, resp *CachedResponse) error

	// PutAll stores every entry in one atomic operation; nothing is written on error
	PutAll(ctx context.Context, name string, entries map[string]*CachedResponse) error

	// Delete removes a generation and all of its entries
	Delete(ctx context.Context, name string) error

	Close() error
}
