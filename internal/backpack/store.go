package backpack

import (
	"errors"
	"sort"
	"sync"
)

// ErrNotFound is returned for lookups of an asset id the store does not hold.
var ErrNotFound = errors.New("item not found")

// Store holds one account's backpack. Readers get clones; all mutation goes
// through Update so the reconciler's merge step runs under a single lock.
type Store struct {
	mu    sync.RWMutex
	items []*Item
	index map[uint64]int // asset id -> offset in items

	// Caskets tracks items known to live inside storage units.
	Caskets *CasketIndex
}

// NewStore creates a store seeded with items. Later duplicates of an asset id
// are merged into the first occurrence.
func NewStore(items []*Item) *Store {
	s := &Store{
		items:   make([]*Item, 0, len(items)),
		index:   make(map[uint64]int, len(items)),
		Caskets: NewCasketIndex(),
	}
	tx := &Tx{s: s}
	for _, it := range items {
		tx.Upsert(it)
	}
	return s
}

// Len returns the number of top-level items.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Get returns a copy of the item with the given asset id.
func (s *Store) Get(assetID uint64) (*Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.index[assetID]
	if !ok {
		return nil, ErrNotFound
	}
	return s.items[i].Clone(), nil
}

// Items returns copies of all top-level items ordered by position, then asset id.
func (s *Store) Items() []*Item {
	s.mu.RLock()
	out := make([]*Item, len(s.items))
	for i, it := range s.items {
		out[i] = it.Clone()
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].Position != out[j].Position {
			return out[i].Position < out[j].Position
		}
		return out[i].AssetID < out[j].AssetID
	})
	return out
}

// StorageUnits returns copies of every item with the casket definition index.
func (s *Store) StorageUnits() []*Item {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Item
	for _, it := range s.items {
		if it.IsCasket() {
			out = append(out, it.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AssetID < out[j].AssetID })
	return out
}

// Update runs fn with exclusive access to the store.
func (s *Store) Update(fn func(tx *Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(&Tx{s: s})
}

// Replace swaps the whole top-level item set, used on explicit resync.
func (s *Store) Replace(items []*Item) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = s.items[:0]
	s.index = make(map[uint64]int, len(items))
	tx := &Tx{s: s}
	for _, it := range items {
		tx.Upsert(it)
	}
}

// Tx gives pointer-level access to a store while its lock is held. Pointers
// obtained from a Tx must not escape fn.
type Tx struct {
	s *Store
}

// Get returns the live item or nil.
func (tx *Tx) Get(assetID uint64) *Item {
	i, ok := tx.s.index[assetID]
	if !ok {
		return nil
	}
	return tx.s.items[i]
}

// Upsert inserts it when absent, else merges it into the existing entry and
// replaces the attribute list. Returns the live entry.
func (tx *Tx) Upsert(it *Item) *Item {
	if cur := tx.Get(it.AssetID); cur != nil {
		Merge(cur, it)
		return cur
	}
	tx.s.index[it.AssetID] = len(tx.s.items)
	tx.s.items = append(tx.s.items, it)
	return it
}

// Remove deletes the entry for assetID and returns it.
func (tx *Tx) Remove(assetID uint64) (*Item, bool) {
	i, ok := tx.s.index[assetID]
	if !ok {
		return nil, false
	}
	it := tx.s.items[i]
	last := len(tx.s.items) - 1
	if i != last {
		moved := tx.s.items[last]
		tx.s.items[i] = moved
		tx.s.index[moved.AssetID] = i
	}
	tx.s.items[last] = nil
	tx.s.items = tx.s.items[:last]
	delete(tx.s.index, assetID)
	return it, true
}

// Caskets returns the live storage-unit items.
func (tx *Tx) Caskets() []*Item {
	var out []*Item
	for _, it := range tx.s.items {
		if it.IsCasket() {
			out = append(out, it)
		}
	}
	return out
}

// Upsert inserts or merges a single item.
func (s *Store) Upsert(it *Item) {
	_ = s.Update(func(tx *Tx) error {
		tx.Upsert(it)
		return nil
	})
}

// Remove deletes assetID and returns the removed item.
func (s *Store) Remove(assetID uint64) (*Item, error) {
	var removed *Item
	err := s.Update(func(tx *Tx) error {
		it, ok := tx.Remove(assetID)
		if !ok {
			return ErrNotFound
		}
		removed = it
		return nil
	})
	return removed, err
}

// Items returns the live top-level items in storage order.
func (tx *Tx) Items() []*Item {
	return tx.s.items
}
