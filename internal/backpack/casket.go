package backpack

import (
	"context"
	"sort"
	"sync"
)

// CasketIndex is the side index of items that live inside storage units and
// are therefore absent from the top-level store. Waiters are woken on every
// insertion through a channel that is closed and replaced.
type CasketIndex struct {
	mu       sync.Mutex
	byCasket map[uint64]map[uint64]*Item
	owner    map[uint64]uint64 // asset id -> casket id
	changed  chan struct{}
}

// NewCasketIndex creates an empty index.
func NewCasketIndex() *CasketIndex {
	return &CasketIndex{
		byCasket: make(map[uint64]map[uint64]*Item),
		owner:    make(map[uint64]uint64),
		changed:  make(chan struct{}),
	}
}

// Put stores it under it.CasketID, moving it if it was filed under another
// storage unit. it must not be mutated by the caller afterwards.
func (c *CasketIndex) Put(it *Item) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if prev, ok := c.owner[it.AssetID]; ok && prev != it.CasketID {
		c.removeLocked(it.AssetID)
	}
	set, ok := c.byCasket[it.CasketID]
	if !ok {
		set = make(map[uint64]*Item)
		c.byCasket[it.CasketID] = set
	}
	set[it.AssetID] = it
	c.owner[it.AssetID] = it.CasketID

	close(c.changed)
	c.changed = make(chan struct{})
}

// Get returns a copy of the contained item with the given asset id.
func (c *CasketIndex) Get(assetID uint64) (*Item, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	casket, ok := c.owner[assetID]
	if !ok {
		return nil, false
	}
	return c.byCasket[casket][assetID].Clone(), true
}

// Remove drops assetID from the index and returns the stored item.
func (c *CasketIndex) Remove(assetID uint64) (*Item, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.removeLocked(assetID)
}

func (c *CasketIndex) removeLocked(assetID uint64) (*Item, bool) {
	casket, ok := c.owner[assetID]
	if !ok {
		return nil, false
	}
	set := c.byCasket[casket]
	it := set[assetID]
	delete(set, assetID)
	if len(set) == 0 {
		delete(c.byCasket, casket)
	}
	delete(c.owner, assetID)
	return it, true
}

// Count returns how many items are currently known inside casketID.
func (c *CasketIndex) Count(casketID uint64) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.byCasket[casketID])
}

// Contents returns copies of the items known inside casketID, by asset id.
func (c *CasketIndex) Contents(casketID uint64) []*Item {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.contentsLocked(casketID)
}

func (c *CasketIndex) contentsLocked(casketID uint64) []*Item {
	set := c.byCasket[casketID]
	out := make([]*Item, 0, len(set))
	for _, it := range set {
		out = append(out, it.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AssetID < out[j].AssetID })
	return out
}

// Wait blocks until every id in want is filed under casketID and at least
// minCount items are known there, or ctx ends. It returns the casket's
// contents on success and ctx.Err() otherwise.
func (c *CasketIndex) Wait(ctx context.Context, casketID uint64, want []uint64, minCount int) ([]*Item, error) {
	for {
		c.mu.Lock()
		if c.satisfiedLocked(casketID, want, minCount) {
			out := c.contentsLocked(casketID)
			c.mu.Unlock()
			return out, nil
		}
		changed := c.changed
		c.mu.Unlock()

		select {
		case <-changed:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (c *CasketIndex) satisfiedLocked(casketID uint64, want []uint64, minCount int) bool {
	set := c.byCasket[casketID]
	if len(set) < minCount {
		return false
	}
	for _, id := range want {
		if _, ok := set[id]; !ok {
			return false
		}
	}
	return true
}

// Reset forgets every contained item.
func (c *CasketIndex) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.byCasket = make(map[uint64]map[uint64]*Item)
	c.owner = make(map[uint64]uint64)
}

// Len returns the number of contained items across all storage units.
func (c *CasketIndex) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.owner)
}

// CasketIDs returns the storage units that currently hold known items.
func (c *CasketIndex) CasketIDs() []uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]uint64, 0, len(c.byCasket))
	for id := range c.byCasket {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
