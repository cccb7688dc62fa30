package attribute

import (
	"encoding/binary"
	"math"
)

// Float encodes v the way the GC stores float attributes.
func Float(def uint32, v float32) Attribute {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, math.Float32bits(v))
	return Attribute{DefIndex: def, Value: b}
}

// Uint encodes v the way the GC stores integer attributes.
func Uint(def uint32, v uint32) Attribute {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, v)
	return Attribute{DefIndex: def, Value: b}
}

// String encodes s as a CAttribute_String blob (field tag, length, text).
// Only names shorter than 128 bytes fit the single-byte length the decoder strips.
func String(def uint32, s string) Attribute {
	b := make([]byte, 0, len(s)+customNamePrefix)
	b = append(b, 0x0a, byte(len(s)))
	b = append(b, s...)
	return Attribute{DefIndex: def, Value: b}
}

// Casket returns the two attributes that place an item inside container id.
func Casket(id uint64) []Attribute {
	low, high := SplitCasketID(id)
	return []Attribute{Uint(DefCasketIDLow, low), Uint(DefCasketIDHigh, high)}
}
