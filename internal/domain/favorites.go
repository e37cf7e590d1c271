package domain

// FavoriteSet is a set of drink ids that remembers insertion order.
// Membership never depends on order; order is only kept so the persisted
// form stays stable across saves. A nil *FavoriteSet is an empty set.
type FavoriteSet struct {
	ids   []string
	index map[string]int
}

// NewFavoriteSet builds a set from ids, dropping duplicates and empty ids
func NewFavoriteSet(ids ...string) *FavoriteSet {
	s := &FavoriteSet{index: make(map[string]int, len(ids))}
	for _, id := range ids {
		s.Add(id)
	}
	return s
}

// Has reports whether id is in the set
func (s *FavoriteSet) Has(id string) bool {
	if s == nil {
		return false
	}
	_, ok := s.index[id]
	return ok
}

// Add inserts id, returning false if it was already present
func (s *FavoriteSet) Add(id string) bool {
	if id == "" || s.Has(id) {
		return false
	}
	if s.index == nil {
		s.index = make(map[string]int)
	}
	s.index[id] = len(s.ids)
	s.ids = append(s.ids, id)
	return true
}

// Remove deletes id, returning false if it was not present
func (s *FavoriteSet) Remove(id string) bool {
	if s == nil {
		return false
	}
	pos, ok := s.index[id]
	if !ok {
		return false
	}
	s.ids = append(s.ids[:pos], s.ids[pos+1:]...)
	delete(s.index, id)
	for i := pos; i < len(s.ids); i++ {
		s.index[s.ids[i]] = i
	}
	return true
}

// Toggle flips membership of id and returns the new membership
func (s *FavoriteSet) Toggle(id string) bool {
	if s.Remove(id) {
		return false
	}
	s.Add(id)
	return true
}

// Len returns the number of ids
func (s *FavoriteSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.ids)
}

// IDs returns the ids in insertion order
func (s *FavoriteSet) IDs() []string {
	if s == nil {
		return []string{}
	}
	out := make([]string, len(s.ids))
	copy(out, s.ids)
	return out
}

// Clone returns an independent copy
func (s *FavoriteSet) Clone() *FavoriteSet {
	return NewFavoriteSet(s.IDs()...)
}

// Equal reports whether both sets hold the same ids, ignoring order
func (s *FavoriteSet) Equal(other *FavoriteSet) bool {
	if s.Len() != other.Len() {
		return false
	}
	for _, id := range s.IDs() {
		if !other.Has(id) {
			return false
		}
	}
	return true
}
