package store

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sync"

	"github.com/mmcdole/drinks/internal/domain"
	bolt "go.etcd.io/bbolt"
)

// CacheStore implements domain.CacheStorage using BoltDB.
// Each cache generation is a top-level bucket keyed by request key,
// holding the JSON-encoded response.
type CacheStore struct {
	db *bolt.DB

	// Memory-only mode
	mu  sync.RWMutex
	mem map[string]map[string][]byte
}

var _ domain.CacheStorage = (*CacheStore)(nil)

// NewCacheStore opens the cache database at path.
// An empty path keeps every generation in memory only.
func NewCacheStore(path string) (*CacheStore, error) {
	if path == "" {
		return &CacheStore{mem: make(map[string]map[string][]byte)}, nil
	}

	db, err := openDB(path)
	if err != nil {
		return nil, err
	}
	return &CacheStore{db: db}, nil
}

func (s *CacheStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Names returns every generation in byte order
func (s *CacheStore) Names(ctx context.Context) ([]string, error) {
	if s.db == nil {
		s.mu.RLock()
		defer s.mu.RUnlock()
		names := make([]string, 0, len(s.mem))
		for name := range s.mem {
			names = append(names, name)
		}
		slices.Sort(names)
		return names, nil
	}

	var names []string
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.ForEach(func(name []byte, _ *bolt.Bucket) error {
			names = append(names, string(name))
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list cache generations: %w", err)
	}
	return names, nil
}

func (s *CacheStore) Has(ctx context.Context, name string) (bool, error) {
	if s.db == nil {
		s.mu.RLock()
		defer s.mu.RUnlock()
		_, ok := s.mem[name]
		return ok, nil
	}

	var ok bool
	err := s.db.View(func(tx *bolt.Tx) error {
		ok = tx.Bucket([]byte(name)) != nil
		return nil
	})
	return ok, err
}

// Match returns the first entry for key found in names, searched in order
func (s *CacheStore) Match(ctx context.Context, names []string, key string) (*domain.CachedResponse, bool, error) {
	var data []byte

	if s.db == nil {
		s.mu.RLock()
		for _, name := range names {
			if v, ok := s.mem[name][key]; ok {
				data = v
				break
			}
		}
		s.mu.RUnlock()
	} else {
		err := s.db.View(func(tx *bolt.Tx) error {
			for _, name := range names {
				b := tx.Bucket([]byte(name))
				if b == nil {
					continue
				}
				if v := b.Get([]byte(key)); v != nil {
					data = make([]byte, len(v))
					copy(data, v)
					return nil
				}
			}
			return nil
		})
		if err != nil {
			return nil, false, fmt.Errorf("failed to read cache: %w", err)
		}
	}

	if data == nil {
		return nil, false, nil
	}

	var resp domain.CachedResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, false, fmt.Errorf("failed to decode cached response for %s: %w", key, err)
	}
	return &resp, true, nil
}

func (s *CacheStore) Put(ctx context.Context, name, key string, resp *domain.CachedResponse) error {
	return s.PutAll(ctx, name, map[string]*domain.CachedResponse{key: resp})
}

// PutAll writes every entry in a single transaction, creating the generation
// if needed. Encoding happens before the transaction opens, so a bad entry
// leaves the store untouched.
func (s *CacheStore) PutAll(ctx context.Context, name string, entries map[string]*domain.CachedResponse) error {
	encoded := make(map[string][]byte, len(entries))
	for key, resp := range entries {
		data, err := json.Marshal(resp)
		if err != nil {
			return fmt.Errorf("failed to encode %s: %w", key, err)
		}
		encoded[key] = data
	}

	if s.db == nil {
		s.mu.Lock()
		defer s.mu.Unlock()
		gen, ok := s.mem[name]
		if !ok {
			gen = make(map[string][]byte, len(encoded))
			s.mem[name] = gen
		}
		for key, data := range encoded {
			gen[key] = data
		}
		return nil
	}

	err := s.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(name))
		if err != nil {
			return err
		}
		for key, data := range encoded {
			if err := b.Put([]byte(key), data); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to write cache generation %s: %w", name, err)
	}
	return nil
}

// Delete removes a generation. Deleting a missing generation is not an error.
func (s *CacheStore) Delete(ctx context.Context, name string) error {
	if s.db == nil {
		s.mu.Lock()
		delete(s.mem, name)
		s.mu.Unlock()
		return nil
	}

	err := s.db.Update(func(tx *bolt.Tx) error {
		if tx.Bucket([]byte(name)) == nil {
			return nil
		}
		return tx.DeleteBucket([]byte(name))
	})
	if err != nil {
		return fmt.Errorf("failed to delete cache generation %s: %w", name, err)
	}
	return nil
}
