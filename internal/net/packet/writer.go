package packet

import (
	"encoding/binary"

	"golang.org/x/text/encoding/unicode"
)

// Writer builds a struct message body. All multi-byte writes are little-endian.
type Writer struct {
	buf []byte
}

func NewWriter() *Writer {
	return &Writer{buf: make([]byte, 0, 64)}
}

// WriteC writes 1 byte.
func (w *Writer) WriteC(v byte) {
	w.buf = append(w.buf, v)
}

// WriteQ writes 8 bytes little-endian.
func (w *Writer) WriteQ(v uint64) {
	w.buf = binary.LittleEndian.AppendUint64(w.buf, v)
}

// WriteS writes a null-terminated UTF-8 string.
func (w *Writer) WriteS(s string) {
	if s != "" {
		encoded, err := unicode.UTF8.NewEncoder().String(s)
		if err != nil {
			encoded = s
		}
		w.buf = append(w.buf, encoded...)
	}
	w.buf = append(w.buf, 0)
}

// Bytes returns the body written so far.
func (w *Writer) Bytes() []byte {
	return w.buf
}
