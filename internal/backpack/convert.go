package backpack

import (
	"github.com/gcbackpack/csgogc/internal/attribute"
	"github.com/gcbackpack/csgogc/internal/protocol"
)

// FromEconItem builds an Item from its wire record. Attribute-derived facets
// are left for ApplyAttributes.
func FromEconItem(w *protocol.EconItem) *Item {
	if w == nil {
		return nil
	}
	return &Item{
		AssetID:    w.ID,
		AccountID:  w.AccountID,
		DefIndex:   w.DefIndex,
		Inventory:  w.Inventory,
		Quantity:   w.Quantity,
		Level:      w.Level,
		Quality:    w.Quality,
		Flags:      w.Flags,
		Origin:     w.Origin,
		Rarity:     w.Rarity,
		Style:      w.Style,
		InUse:      w.InUse,
		OriginalID: w.OriginalID,
		CustomName: w.CustomName,
		CustomDesc: w.CustomDesc,
		Interior:   FromEconItem(w.InteriorItem),
		Attributes: w.RawAttributes(),
	}
}

// Inspected is a standalone snapshot returned by an inspect request. It
// is never part of a Store.
type Inspected struct {
	AssetID    uint64
	AccountID  uint32
	DefIndex   uint32
	Quality    uint32
	Rarity     uint32
	Origin     uint32
	Inventory  uint32
	CustomName string
	Paint      Paint
	Stickers   []Sticker

	KillEaterScoreType *uint32
	KillEaterValue     *uint32
	QuestID            uint32
	DropReason         uint32
	MusicIndex         uint32

	// Name is filled from the item catalog when one is loaded.
	Name string
}

// FromPreviewDataBlock decodes the packed wear and sticker list of an
// inspect response.
func FromPreviewDataBlock(b *protocol.PreviewDataBlock) *Inspected {
	in := &Inspected{
		AssetID:    b.ItemID,
		AccountID:  b.AccountID,
		DefIndex:   b.DefIndex,
		Quality:    b.Quality,
		Rarity:     b.Rarity,
		Origin:     b.Origin,
		Inventory:  b.Inventory,
		CustomName: b.CustomName,
		Paint: Paint{
			Index: float32(b.PaintIndex),
			Seed:  b.PaintSeed,
			Wear:  b.Wear(),
		},
		QuestID:    b.QuestID,
		DropReason: b.DropReason,
		MusicIndex: b.MusicIndex,
	}
	if b.KillEaterValue != 0 || b.KillEaterScoreType != 0 {
		st, v := b.KillEaterScoreType, b.KillEaterValue
		in.KillEaterScoreType, in.KillEaterValue = &st, &v
	}
	for _, s := range b.Stickers {
		if s.StickerID == 0 {
			continue
		}
		// Preview slots are zero-based; backpack slots start at 1.
		slot := int(s.Slot) + 1
		if slot > attribute.MaxStickerSlots {
			continue
		}
		in.Stickers = append(in.Stickers, Sticker{
			Slot:     slot,
			ID:       s.StickerID,
			Wear:     s.Wear,
			Scale:    s.Scale,
			Rotation: s.Rotation,
		})
	}
	return in
}
