package data

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ItemKind groups item definitions for display and hook payloads.
type ItemKind string

const (
	KindWeapon    ItemKind = "weapon"
	KindKnife     ItemKind = "knife"
	KindGloves    ItemKind = "gloves"
	KindSticker   ItemKind = "sticker"
	KindContainer ItemKind = "container"
	KindCasket    ItemKind = "casket"
	KindTool      ItemKind = "tool"
	KindOther     ItemKind = "other"
)

// ItemDef is one item definition from items.yaml.
type ItemDef struct {
	DefIndex uint32   `yaml:"def_index"`
	Name     string   `yaml:"name"`
	Kind     ItemKind `yaml:"kind"`
}

// PaintKit is one skin finish.
type PaintKit struct {
	Index uint32 `yaml:"index"`
	Name  string `yaml:"name"`
}

// StickerKit is one sticker.
type StickerKit struct {
	ID   uint32 `yaml:"id"`
	Name string `yaml:"name"`
}

type itemsFile struct {
	Items    []ItemDef    `yaml:"items"`
	Paints   []PaintKit   `yaml:"paint_kits"`
	Stickers []StickerKit `yaml:"sticker_kits"`
}

// ItemTable resolves definition indices, paint kits and sticker ids to names.
// A nil *ItemTable is valid and knows nothing.
type ItemTable struct {
	items    map[uint32]*ItemDef
	paints   map[uint32]string
	stickers map[uint32]string
}

// LoadItemTable loads items.yaml.
func LoadItemTable(path string) (*ItemTable, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read item table: %w", err)
	}
	var f itemsFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse item table: %w", err)
	}
	t := &ItemTable{
		items:    make(map[uint32]*ItemDef, len(f.Items)),
		paints:   make(map[uint32]string, len(f.Paints)),
		stickers: make(map[uint32]string, len(f.Stickers)),
	}
	for i := range f.Items {
		d := &f.Items[i]
		if d.Kind == "" {
			d.Kind = KindOther
		}
		t.items[d.DefIndex] = d
	}
	for _, p := range f.Paints {
		t.paints[p.Index] = p.Name
	}
	for _, s := range f.Stickers {
		t.stickers[s.ID] = s.Name
	}
	return t, nil
}

// Get returns a definition by index, or nil if not found.
func (t *ItemTable) Get(defIndex uint32) *ItemDef {
	if t == nil {
		return nil
	}
	return t.items[defIndex]
}

// StickerName returns the sticker's name or "".
func (t *ItemTable) StickerName(id uint32) string {
	if t == nil {
		return ""
	}
	return t.stickers[id]
}

// DisplayName formats "<item> | <finish>" when both are known, the bare item
// name when only it is known, and "" otherwise.
func (t *ItemTable) DisplayName(defIndex, paintIndex uint32) string {
	d := t.Get(defIndex)
	if d == nil {
		return ""
	}
	if paintIndex != 0 {
		if p, ok := t.paints[paintIndex]; ok {
			return d.Name + " | " + p
		}
	}
	return d.Name
}

// Count returns the number of item definitions loaded.
func (t *ItemTable) Count() int {
	if t == nil {
		return 0
	}
	return len(t.items)
}
