package store

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/mmcdole/drinks/internal/domain"
	bolt "go.etcd.io/bbolt"
)

var bucketPreferences = []byte("preferences")

// FavoritesKey is the fixed key the favorites set is stored under
const FavoritesKey = "drinks-favorites"

// PreferenceStore implements domain.FavoritesStore using BoltDB.
// Values are JSON; reads are served from memory once loaded.
type PreferenceStore struct {
	db *bolt.DB
	mu sync.RWMutex // Protects memory cache

	cache map[string][]byte
}

// NewPreferenceStore opens the preference database at path.
// An empty path keeps preferences in memory only.
func NewPreferenceStore(path string) (*PreferenceStore, error) {
	if path == "" {
		// Memory-only mode (no persistence)
		return &PreferenceStore{cache: make(map[string][]byte)}, nil
	}

	db, err := openDB(path, bucketPreferences)
	if err != nil {
		return nil, err
	}

	return &PreferenceStore{db: db, cache: make(map[string][]byte)}, nil
}

func (s *PreferenceStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// LoadFavorites returns the stored favorites. A missing key is an empty set;
// unreadable or undecodable data is an error.
func (s *PreferenceStore) LoadFavorites() (*domain.FavoriteSet, error) {
	data, err := s.get(FavoritesKey)
	if err != nil {
		return nil, err
	}
	if data == nil {
		return domain.NewFavoriteSet(), nil
	}

	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return nil, fmt.Errorf("failed to decode favorites: %w", err)
	}
	return domain.NewFavoriteSet(ids...), nil
}

// SaveFavorites writes the whole set synchronously, replacing the previous value
func (s *PreferenceStore) SaveFavorites(set *domain.FavoriteSet) error {
	return s.set(FavoritesKey, set.IDs())
}

// === Generic helpers ===

func (s *PreferenceStore) get(key string) ([]byte, error) {
	// Check memory cache first
	s.mu.RLock()
	if data, ok := s.cache[key]; ok {
		s.mu.RUnlock()
		return data, nil
	}
	s.mu.RUnlock()

	if s.db == nil {
		return nil, nil
	}

	var data []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketPreferences)
		if b == nil {
			return nil
		}
		if v := b.Get([]byte(key)); v != nil {
			data = make([]byte, len(v))
			copy(data, v)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", key, err)
	}
	if data == nil {
		return nil, nil
	}

	// Promote to memory cache
	s.mu.Lock()
	s.cache[key] = data
	s.mu.Unlock()

	return data, nil
}

func (s *PreferenceStore) set(key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}

	if s.db != nil {
		err = s.db.Update(func(tx *bolt.Tx) error {
			b := tx.Bucket(bucketPreferences)
			return b.Put([]byte(key), data)
		})
		if err != nil {
			return fmt.Errorf("failed to write %s: %w", key, err)
		}
	}

	// Update memory only after the write succeeded
	s.mu.Lock()
	s.cache[key] = data
	s.mu.Unlock()

	return nil
}
