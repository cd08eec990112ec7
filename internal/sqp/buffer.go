package sqp

import (
	"encoding/binary"
	"unicode/utf8"

	"github.com/rs/zerolog/log"
)

// Writer encodes fields into a caller-owned, fixed-size buffer.
// The first failed write sets a sticky error and every later write is ignored,
// so a message can be encoded field by field and checked once with Err.
type Writer struct {
	buf []byte
	n   int
	err error
}

// NewWriter returns a Writer that encodes into buf. The capacity of buf
// bounds the size of the message.
func NewWriter(buf []byte) *Writer {
	return &Writer{buf: buf[:cap(buf)]}
}

// Reset discards everything written so far and clears the error.
func (w *Writer) Reset() {
	w.n = 0
	w.err = nil
}

// Len returns the number of bytes written.
func (w *Writer) Len() int { return w.n }

// Err returns the first error encountered while writing.
func (w *Writer) Err() error { return w.err }

// Bytes returns the encoded message. The slice aliases the underlying buffer
// and is only valid until the next Reset.
func (w *Writer) Bytes() []byte { return w.buf[:w.n] }

func (w *Writer) grow(size int) []byte {
	if w.err != nil {
		return nil
	}
	if w.n+size > len(w.buf) {
		w.err = ErrBufferOverflow
		return nil
	}

	b := w.buf[w.n : w.n+size]
	w.n += size
	return b
}

// WriteUint8 writes a single byte.
func (w *Writer) WriteUint8(v uint8) {
	if b := w.grow(1); b != nil {
		b[0] = v
	}
}

// WriteUint16 writes v in network byte order.
func (w *Writer) WriteUint16(v uint16) {
	if b := w.grow(2); b != nil {
		binary.BigEndian.PutUint16(b, v)
	}
}

// WriteUint32 writes v in network byte order.
func (w *Writer) WriteUint32(v uint32) {
	if b := w.grow(4); b != nil {
		binary.BigEndian.PutUint32(b, v)
	}
}

// WriteBytes writes raw bytes.
func (w *Writer) WriteBytes(p []byte) {
	if b := w.grow(len(p)); b != nil {
		copy(b, p)
	}
}

// WriteString writes a one byte length followed by the UTF-8 bytes of s.
// Strings longer than MaxStringLength bytes are cut at the last rune boundary
// that fits.
func (w *Writer) WriteString(s string) {
	if len(s) > MaxStringLength {
		cut := truncateUTF8(s, MaxStringLength)
		log.Warn().
			Int("length", len(s)).
			Int("truncated", len(cut)).
			Msg("SQP string exceeds 255 bytes, truncated")
		s = cut
	}

	w.WriteUint8(uint8(len(s)))
	if b := w.grow(len(s)); b != nil {
		copy(b, s)
	}
}

// truncateUTF8 returns the longest prefix of s no longer than limit bytes
// that does not split a multi-byte rune.
func truncateUTF8(s string, limit int) string {
	if len(s) <= limit {
		return s
	}

	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}

	return s[:cut]
}

// DeferredUint16 is a reserved two byte slot whose value is known only after
// more of the message has been written.
type DeferredUint16 struct {
	w   *Writer
	off int
}

// Reserve16 reserves a two byte slot at the current position.
func (w *Writer) Reserve16() DeferredUint16 {
	off := w.n
	if w.grow(2) == nil {
		return DeferredUint16{}
	}
	return DeferredUint16{w: w, off: off}
}

// Set patches the reserved slot with v. It is a no-op if the reservation failed.
func (d DeferredUint16) Set(v uint16) {
	if d.w == nil {
		return
	}
	binary.BigEndian.PutUint16(d.w.buf[d.off:], v)
}

// End returns the offset just past the reserved slot.
func (d DeferredUint16) End() int { return d.off + 2 }

// DeferredUint32 is the four byte variant of DeferredUint16.
type DeferredUint32 struct {
	w   *Writer
	off int
}

// Reserve32 reserves a four byte slot at the current position.
func (w *Writer) Reserve32() DeferredUint32 {
	off := w.n
	if w.grow(4) == nil {
		return DeferredUint32{}
	}
	return DeferredUint32{w: w, off: off}
}

// Set patches the reserved slot with v. It is a no-op if the reservation failed.
func (d DeferredUint32) Set(v uint32) {
	if d.w == nil {
		return
	}
	binary.BigEndian.PutUint32(d.w.buf[d.off:], v)
}

// End returns the offset just past the reserved slot.
func (d DeferredUint32) End() int { return d.off + 4 }

// Reader decodes fields from a datagram. Like Writer it keeps the first error.
type Reader struct {
	buf []byte
	off int
	err error
}

// NewReader returns a Reader positioned at offset in b.
func NewReader(b []byte, offset int) *Reader {
	r := &Reader{buf: b, off: offset}
	if offset < 0 || offset > len(b) {
		r.err = ErrTruncated
	}
	return r
}

// Offset returns the position of the next unread byte.
func (r *Reader) Offset() int { return r.off }

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int {
	if r.off >= len(r.buf) {
		return 0
	}
	return len(r.buf) - r.off
}

// Err returns the first error encountered while reading.
func (r *Reader) Err() error { return r.err }

func (r *Reader) next(size int) []byte {
	if r.err != nil {
		return nil
	}
	if r.Remaining() < size {
		r.err = ErrTruncated
		return nil
	}

	b := r.buf[r.off : r.off+size]
	r.off += size
	return b
}

// ReadUint8 reads a single byte.
func (r *Reader) ReadUint8() uint8 {
	if b := r.next(1); b != nil {
		return b[0]
	}
	return 0
}

// ReadUint16 reads a network byte order uint16.
func (r *Reader) ReadUint16() uint16 {
	if b := r.next(2); b != nil {
		return binary.BigEndian.Uint16(b)
	}
	return 0
}

// ReadUint32 reads a network byte order uint32.
func (r *Reader) ReadUint32() uint32 {
	if b := r.next(4); b != nil {
		return binary.BigEndian.Uint32(b)
	}
	return 0
}

// ReadString reads a one byte length followed by that many bytes.
func (r *Reader) ReadString() string {
	n := int(r.ReadUint8())
	if b := r.next(n); b != nil {
		return string(b)
	}
	return ""
}
