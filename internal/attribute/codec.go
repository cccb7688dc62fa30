package attribute

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"golang.org/x/text/encoding/unicode"
)

// Known attribute definition indices.
const (
	DefPaintIndex         uint32 = 6
	DefPaintSeed          uint32 = 7
	DefPaintWear          uint32 = 8
	DefTradableAfter      uint32 = 75
	DefCustomName         uint32 = 111
	DefStickerBase        uint32 = 113 // slot i id lives at DefStickerBase + 4*i
	DefCasketContentCount uint32 = 270
	DefCasketIDLow        uint32 = 272
	DefCasketIDHigh       uint32 = 273
)

const (
	// CasketDefIndex is the item definition of a storage unit.
	CasketDefIndex uint32 = 1201

	MaxStickerSlots = 5

	// customNamePrefix is the CAttribute_String tag+length pair preceding the text.
	customNamePrefix = 2
)

// ErrMalformed reports an attribute whose byte length does not fit its decode rule.
var ErrMalformed = errors.New("malformed attribute")

// Attribute is one (definition index, opaque bytes) pair as carried on an item.
type Attribute struct {
	DefIndex uint32
	Value    []byte
}

// Sticker is one decoded sticker slot.
type Sticker struct {
	Slot     int
	ID       uint32
	Wear     float32
	Scale    float32
	Rotation float32
}

// Values is the typed result of decoding an attribute list. Optional
// attributes are nil when absent or malformed.
type Values struct {
	PaintIndex    *float32
	PaintSeed     *uint32
	PaintWear     *float32
	TradableAfter *time.Time
	CustomName    *string

	// Stickers is ordered by slot; only slots with a sticker id are present.
	Stickers []Sticker

	ContainedItemCount *uint32
	CasketIDLow        *uint32
	CasketIDHigh       *uint32
}

// CasketID returns the combined container id when both halves were decoded.
func (v Values) CasketID() (uint64, bool) {
	if v.CasketIDLow == nil || v.CasketIDHigh == nil {
		return 0, false
	}
	return CasketID(*v.CasketIDLow, *v.CasketIDHigh), true
}

// HasCasketMarkers reports whether the raw list carries both casket id halves,
// regardless of whether they decode.
func HasCasketMarkers(attrs []Attribute) bool {
	var low, high bool
	for _, a := range attrs {
		switch a.DefIndex {
		case DefCasketIDLow:
			low = true
		case DefCasketIDHigh:
			high = true
		}
	}
	return low && high
}

// CasketID joins the two 32-bit halves of a container id, high half first.
func CasketID(low, high uint32) uint64 {
	return uint64(high)<<32 | uint64(low)
}

// SplitCasketID is the inverse of CasketID.
func SplitCasketID(id uint64) (low, high uint32) {
	return uint32(id), uint32(id >> 32)
}

// Decode maps every known attribute onto Values. Unknown definition indices
// are skipped. A malformed attribute leaves its field unset and contributes to
// the joined error; the other attributes still decode.
func Decode(attrs []Attribute) (Values, error) {
	var (
		v        Values
		errs     []error
		stickers = make(map[int]*Sticker)
	)

	sticker := func(slot int) *Sticker {
		s, ok := stickers[slot]
		if !ok {
			s = &Sticker{Slot: slot}
			stickers[slot] = s
		}
		return s
	}
	stickerIDs := make(map[int]bool)

	for _, a := range attrs {
		if err := decodeOne(a, &v, sticker, stickerIDs); err != nil {
			errs = append(errs, err)
		}
	}

	for slot, s := range stickers {
		if stickerIDs[slot] {
			v.Stickers = append(v.Stickers, *s)
		}
	}
	sort.Slice(v.Stickers, func(i, j int) bool { return v.Stickers[i].Slot < v.Stickers[j].Slot })

	return v, errors.Join(errs...)
}

func decodeOne(a Attribute, v *Values, sticker func(int) *Sticker, stickerIDs map[int]bool) error {
	switch a.DefIndex {
	case DefPaintIndex:
		f, err := readFloat(a)
		if err != nil {
			return err
		}
		v.PaintIndex = &f
	case DefPaintSeed:
		f, err := readFloat(a)
		if err != nil {
			return err
		}
		seed, err := floorSeed(a, f)
		if err != nil {
			return err
		}
		v.PaintSeed = &seed
	case DefPaintWear:
		f, err := readFloat(a)
		if err != nil {
			return err
		}
		v.PaintWear = &f
	case DefTradableAfter:
		u, err := readUint(a)
		if err != nil {
			return err
		}
		t := time.Unix(int64(u), 0).UTC()
		v.TradableAfter = &t
	case DefCustomName:
		s, err := readString(a)
		if err != nil {
			return err
		}
		v.CustomName = &s
	case DefCasketContentCount:
		u, err := readUint(a)
		if err != nil {
			return err
		}
		v.ContainedItemCount = &u
	case DefCasketIDLow:
		u, err := readUint(a)
		if err != nil {
			return err
		}
		v.CasketIDLow = &u
	case DefCasketIDHigh:
		u, err := readUint(a)
		if err != nil {
			return err
		}
		v.CasketIDHigh = &u
	default:
		slot, field, ok := stickerField(a.DefIndex)
		if !ok {
			return nil
		}
		if field == 0 {
			u, err := readUint(a)
			if err != nil {
				return err
			}
			sticker(slot).ID = u
			stickerIDs[slot] = true
			return nil
		}
		f, err := readFloat(a)
		if err != nil {
			return err
		}
		s := sticker(slot)
		switch field {
		case 1:
			s.Wear = f
		case 2:
			s.Scale = f
		case 3:
			s.Rotation = f
		}
	}
	return nil
}

// stickerField maps a definition index to (slot, field) where field 0 is the
// sticker id and 1..3 are wear, scale and rotation.
func stickerField(def uint32) (slot, field int, ok bool) {
	first := DefStickerBase + 4
	last := DefStickerBase + 4*MaxStickerSlots + 3
	if def < first || def > last {
		return 0, 0, false
	}
	off := def - first
	return int(off/4) + 1, int(off % 4), true
}

// StickerDefIndex returns the definition index of a sticker slot field
// (0 = id, 1 = wear, 2 = scale, 3 = rotation).
func StickerDefIndex(slot, field int) uint32 {
	return DefStickerBase + 4*uint32(slot) + uint32(field)
}

func readFloat(a Attribute) (float32, error) {
	if len(a.Value) != 4 {
		return 0, fmt.Errorf("%w: def %d: want 4 bytes, got %d", ErrMalformed, a.DefIndex, len(a.Value))
	}
	return math.Float32frombits(binary.LittleEndian.Uint32(a.Value)), nil
}

// floorSeed floors a float-encoded seed into uint32 range. NaN and infinities
// are malformed.
func floorSeed(a Attribute, f float32) (uint32, error) {
	x := float64(f)
	switch {
	case math.IsNaN(x) || math.IsInf(x, 0):
		return 0, fmt.Errorf("%w: def %d: non-finite seed", ErrMalformed, a.DefIndex)
	case x <= 0:
		return 0, nil
	case x >= math.MaxUint32:
		return math.MaxUint32, nil
	}
	return uint32(math.Floor(x)), nil
}

func readUint(a Attribute) (uint32, error) {
	if len(a.Value) != 4 {
		return 0, fmt.Errorf("%w: def %d: want 4 bytes, got %d", ErrMalformed, a.DefIndex, len(a.Value))
	}
	return binary.LittleEndian.Uint32(a.Value), nil
}

func readString(a Attribute) (string, error) {
	if len(a.Value) < customNamePrefix {
		return "", fmt.Errorf("%w: def %d: string shorter than prefix", ErrMalformed, a.DefIndex)
	}
	b, err := unicode.UTF8.NewDecoder().Bytes(a.Value[customNamePrefix:])
	if err != nil {
		return "", fmt.Errorf("%w: def %d: %v", ErrMalformed, a.DefIndex, err)
	}
	return string(b), nil
}
