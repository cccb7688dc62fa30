package protocol

import (
	"encoding/binary"

	"github.com/gcbackpack/csgogc/internal/attribute"
)

// ItemAttribute is CSOEconItemAttribute. Older servers send the value as a
// u32 in Value; newer ones send raw bytes in ValueBytes.
type ItemAttribute struct {
	DefIndex   uint32
	Value      uint32
	ValueBytes []byte
}

func (m *ItemAttribute) Marshal() []byte {
	var b []byte
	b = appendVarint(b, 1, uint64(m.DefIndex))
	b = appendVarint(b, 2, uint64(m.Value))
	b = appendBytes(b, 3, m.ValueBytes)
	return b
}

func (m *ItemAttribute) Unmarshal(b []byte) error {
	*m = ItemAttribute{}
	return walk(b, func(f field) error {
		switch f.num {
		case 1:
			m.DefIndex = f.uint32()
		case 2:
			m.Value = f.uint32()
		case 3:
			m.ValueBytes = f.bytes()
		}
		return nil
	})
}

// Raw converts the wire attribute into the codec's (def index, bytes) pair.
func (m *ItemAttribute) Raw() attribute.Attribute {
	if m.ValueBytes != nil {
		return attribute.Attribute{DefIndex: m.DefIndex, Value: append([]byte(nil), m.ValueBytes...)}
	}
	v := make([]byte, 4)
	binary.LittleEndian.PutUint32(v, m.Value)
	return attribute.Attribute{DefIndex: m.DefIndex, Value: v}
}

// EconItem is CSOEconItem, the object carried by SOCache type 1.
type EconItem struct {
	ID           uint64
	AccountID    uint32
	Inventory    uint32
	DefIndex     uint32
	Quantity     uint32
	Level        uint32
	Quality      uint32
	Flags        uint32
	Origin       uint32
	CustomName   string
	CustomDesc   string
	Attributes   []*ItemAttribute
	InteriorItem *EconItem
	InUse        bool
	Style        uint32
	OriginalID   uint64
	Rarity       uint32
}

func (m *EconItem) Marshal() []byte {
	var b []byte
	b = appendVarint(b, 1, m.ID)
	b = appendVarint(b, 2, uint64(m.AccountID))
	b = appendVarint(b, 3, uint64(m.Inventory))
	b = appendVarint(b, 4, uint64(m.DefIndex))
	b = appendVarint(b, 5, uint64(m.Quantity))
	b = appendVarint(b, 6, uint64(m.Level))
	b = appendVarint(b, 7, uint64(m.Quality))
	b = appendVarint(b, 8, uint64(m.Flags))
	b = appendVarint(b, 9, uint64(m.Origin))
	b = appendString(b, 10, m.CustomName)
	b = appendString(b, 11, m.CustomDesc)
	for _, a := range m.Attributes {
		b = appendMessage(b, 12, a)
	}
	if m.InteriorItem != nil {
		b = appendMessage(b, 13, m.InteriorItem)
	}
	b = appendBool(b, 14, m.InUse)
	b = appendVarint(b, 15, uint64(m.Style))
	b = appendVarint(b, 16, m.OriginalID)
	b = appendVarint(b, 19, uint64(m.Rarity))
	return b
}

func (m *EconItem) Unmarshal(b []byte) error {
	*m = EconItem{}
	return walk(b, func(f field) error {
		switch f.num {
		case 1:
			m.ID = f.u
		case 2:
			m.AccountID = f.uint32()
		case 3:
			m.Inventory = f.uint32()
		case 4:
			m.DefIndex = f.uint32()
		case 5:
			m.Quantity = f.uint32()
		case 6:
			m.Level = f.uint32()
		case 7:
			m.Quality = f.uint32()
		case 8:
			m.Flags = f.uint32()
		case 9:
			m.Origin = f.uint32()
		case 10:
			m.CustomName = f.string()
		case 11:
			m.CustomDesc = f.string()
		case 12:
			a := &ItemAttribute{}
			if err := a.Unmarshal(f.b); err != nil {
				return err
			}
			m.Attributes = append(m.Attributes, a)
		case 13:
			m.InteriorItem = &EconItem{}
			return m.InteriorItem.Unmarshal(f.b)
		case 14:
			m.InUse = f.bool()
		case 15:
			m.Style = f.uint32()
		case 16:
			m.OriginalID = f.u
		case 19:
			m.Rarity = f.uint32()
		}
		return nil
	})
}

// RawAttributes returns the attribute list in codec form, in wire order.
func (m *EconItem) RawAttributes() []attribute.Attribute {
	out := make([]attribute.Attribute, 0, len(m.Attributes))
	for _, a := range m.Attributes {
		out = append(out, a.Raw())
	}
	return out
}

// ItemCustomizationNotification is CMsgGCItemCustomizationNotification.
// ItemIDs is accepted both packed and unpacked.
type ItemCustomizationNotification struct {
	ItemIDs []uint64
	Request uint32
}

func (m *ItemCustomizationNotification) Marshal() []byte {
	var b []byte
	for _, id := range m.ItemIDs {
		b = appendVarint(b, 1, id)
	}
	b = appendVarint(b, 2, uint64(m.Request))
	return b
}

func (m *ItemCustomizationNotification) Unmarshal(b []byte) error {
	*m = ItemCustomizationNotification{}
	return walk(b, func(f field) error {
		switch f.num {
		case 1:
			if f.isBytes() {
				m.ItemIDs = append(m.ItemIDs, f.packed()...)
			} else {
				m.ItemIDs = append(m.ItemIDs, f.u)
			}
		case 2:
			m.Request = f.uint32()
		}
		return nil
	})
}

// Contains reports whether id is listed in the notification.
func (m *ItemCustomizationNotification) Contains(id uint64) bool {
	for _, v := range m.ItemIDs {
		if v == id {
			return true
		}
	}
	return false
}

// CasketItem is CMsgCasketItem, the body of casket add/extract/load requests.
type CasketItem struct {
	CasketItemID uint64
	ItemItemID   uint64
}

func (m *CasketItem) Marshal() []byte {
	var b []byte
	b = appendVarint(b, 1, m.CasketItemID)
	b = appendVarint(b, 2, m.ItemItemID)
	return b
}

func (m *CasketItem) Unmarshal(b []byte) error {
	*m = CasketItem{}
	return walk(b, func(f field) error {
		switch f.num {
		case 1:
			m.CasketItemID = f.u
		case 2:
			m.ItemItemID = f.u
		}
		return nil
	})
}
