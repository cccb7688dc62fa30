package backpack

import (
	"time"

	"github.com/gcbackpack/csgogc/internal/attribute"
)

const (
	// inventoryNewBit marks an item the client has not placed yet.
	inventoryNewBit = 1 << 30
	positionMask    = 0xFFFF
)

// Paint holds the decoded skin parameters of an item.
type Paint struct {
	Index float32
	Seed  uint32
	Wear  float32
}

// Sticker is one applied sticker, slots numbered from 1.
type Sticker struct {
	Slot     int
	ID       uint32
	Wear     float32
	Scale    float32
	Rotation float32
}

// Container is the storage-unit facet attached to items with the casket
// definition index.
type Container struct {
	ContainedItemCount uint32
}

// Item represents a single item in the backpack.
type Item struct {
	AssetID   uint64
	AccountID uint32
	DefIndex  uint32
	Inventory uint32 // raw inventory bit-field as sent by the GC
	Position  uint32 // 0 = unplaced

	Quantity   uint32
	Level      uint32
	Quality    uint32
	Flags      uint32
	Origin     uint32
	Rarity     uint32
	Style      uint32
	InUse      bool
	OriginalID uint64
	CustomName string
	CustomDesc string

	Paint         *Paint
	TradableAfter *time.Time
	Stickers      []Sticker
	Interior      *Item

	// CasketID is the storage unit this item sits in, 0 when not contained.
	CasketID  uint64
	Container *Container

	Attributes []attribute.Attribute

	// Populated by the community inventory fetch only.
	Name           string
	MarketHashName string
	Tradable       bool
}

// IsCasket reports whether the item's definition is a storage unit.
func (it *Item) IsCasket() bool {
	return it.DefIndex == attribute.CasketDefIndex
}

// InCasket reports whether the item is stored inside a storage unit.
func (it *Item) InCasket() bool {
	return it.CasketID != 0
}

// DerivePosition returns the UI slot for a raw inventory bit-field. Items
// delivered during a cache bootstrap with the "new" bit set are unplaced.
func DerivePosition(inventory uint32, bootstrap bool) uint32 {
	if bootstrap && inventory&inventoryNewBit != 0 {
		return 0
	}
	return inventory & positionMask
}

// Merge overwrites every wire-carried field of dst with src. Derived facets
// are left alone; callers follow up with ApplyAttributes. Fields only the
// community inventory provides are kept when src does not carry them.
func Merge(dst, src *Item) {
	dst.AccountID = src.AccountID
	dst.DefIndex = src.DefIndex
	dst.Inventory = src.Inventory
	dst.Quantity = src.Quantity
	dst.Level = src.Level
	dst.Quality = src.Quality
	dst.Flags = src.Flags
	dst.Origin = src.Origin
	dst.Rarity = src.Rarity
	dst.Style = src.Style
	dst.InUse = src.InUse
	dst.OriginalID = src.OriginalID
	dst.CustomName = src.CustomName
	dst.CustomDesc = src.CustomDesc
	dst.Interior = src.Interior.Clone()
	dst.Attributes = cloneAttributes(src.Attributes)
	if src.Name != "" {
		dst.Name = src.Name
	}
	if src.MarketHashName != "" {
		dst.MarketHashName = src.MarketHashName
	}
}

// ApplyAttributes rebuilds every attribute-derived facet from v. Stickers are
// rebuilt from scratch; the container facet is attached or detached based on
// the definition index.
func (it *Item) ApplyAttributes(v attribute.Values, bootstrap bool) {
	it.Position = DerivePosition(it.Inventory, bootstrap)

	if v.PaintIndex != nil || v.PaintSeed != nil || v.PaintWear != nil {
		p := &Paint{}
		if v.PaintIndex != nil {
			p.Index = *v.PaintIndex
		}
		if v.PaintSeed != nil {
			p.Seed = *v.PaintSeed
		}
		if v.PaintWear != nil {
			p.Wear = *v.PaintWear
		}
		it.Paint = p
	} else {
		it.Paint = nil
	}

	if v.TradableAfter != nil {
		t := *v.TradableAfter
		it.TradableAfter = &t
	} else {
		it.TradableAfter = nil
	}

	if v.CustomName != nil {
		it.CustomName = *v.CustomName
	}

	it.Stickers = it.Stickers[:0:0]
	for _, s := range v.Stickers {
		it.Stickers = append(it.Stickers, Sticker(s))
	}

	if id, ok := v.CasketID(); ok {
		it.CasketID = id
	} else {
		it.CasketID = 0
	}

	if it.IsCasket() {
		if it.Container == nil {
			it.Container = &Container{}
		}
		it.Container.ContainedItemCount = 0
		if v.ContainedItemCount != nil {
			it.Container.ContainedItemCount = *v.ContainedItemCount
		}
	} else {
		it.Container = nil
	}
}

// Clone returns a deep copy safe to hand to observers.
func (it *Item) Clone() *Item {
	if it == nil {
		return nil
	}
	c := *it
	if it.Paint != nil {
		p := *it.Paint
		c.Paint = &p
	}
	if it.TradableAfter != nil {
		t := *it.TradableAfter
		c.TradableAfter = &t
	}
	if it.Container != nil {
		ct := *it.Container
		c.Container = &ct
	}
	if it.Stickers != nil {
		c.Stickers = append([]Sticker(nil), it.Stickers...)
	}
	c.Interior = it.Interior.Clone()
	c.Attributes = cloneAttributes(it.Attributes)
	return &c
}

func cloneAttributes(attrs []attribute.Attribute) []attribute.Attribute {
	if attrs == nil {
		return nil
	}
	out := make([]attribute.Attribute, len(attrs))
	for i, a := range attrs {
		out[i] = attribute.Attribute{DefIndex: a.DefIndex, Value: append([]byte(nil), a.Value...)}
	}
	return out
}

// MergeCommunity copies the fields only the community inventory knows onto
// a GC-sourced item.
func MergeCommunity(dst, src *Item) {
	if src.Name != "" {
		dst.Name = src.Name
	}
	if src.MarketHashName != "" {
		dst.MarketHashName = src.MarketHashName
	}
	dst.Tradable = src.Tradable
}
