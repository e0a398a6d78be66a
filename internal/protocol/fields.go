package protocol

import (
	"encoding/binary"
	"strings"
)

// reader is a bounds-checked cursor over a received buffer. It only moves
// forward.
type reader struct {
	buf   []byte
	off   int
	scope string // prefix for field names in errors
}

func (r *reader) remaining() int { return len(r.buf) - r.off }

// take returns the next n bytes without copying.
func (r *reader) take(n int, field string) ([]byte, error) {
	if n > r.remaining() {
		return nil, &DecodeError{
			Reason: Truncated,
			Field:  r.scope + field,
			Need:   n,
			Have:   r.remaining(),
		}
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b, nil
}

func (r *reader) uint8(field string) (uint8, error) {
	b, err := r.take(1, field)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *reader) uint16(field string) (uint16, error) {
	b, err := r.take(2, field)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

func (r *reader) uint64(field string) (uint64, error) {
	b, err := r.take(8, field)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b), nil
}

func (r *reader) senderID(field string) (SenderID, error) {
	var id SenderID
	b, err := r.take(SenderIDSize, field)
	if err != nil {
		return id, err
	}
	copy(id[:], b)
	return id, nil
}

// text reads n bytes as UTF-8, replacing invalid sequences.
func (r *reader) text(n int, field string) (string, error) {
	b, err := r.take(n, field)
	if err != nil {
		return "", err
	}
	return lossyString(b), nil
}

// string8 reads a 1-byte length prefix followed by text.
func (r *reader) string8(field string) (string, error) {
	n, err := r.uint8(field + "_len")
	if err != nil {
		return "", err
	}
	return r.text(int(n), field)
}

// string16 reads a 2-byte big-endian length prefix followed by text.
func (r *reader) string16(field string) (string, error) {
	n, err := r.uint16(field + "_len")
	if err != nil {
		return "", err
	}
	return r.text(int(n), field)
}

// bytes8 reads a 1-byte length prefix followed by raw bytes (copied).
func (r *reader) bytes8(field string) ([]byte, error) {
	n, err := r.uint8(field + "_len")
	if err != nil {
		return nil, err
	}
	b, err := r.take(int(n), field)
	if err != nil {
		return nil, err
	}
	return append([]byte(nil), b...), nil
}

func lossyString(b []byte) string {
	return strings.ToValidUTF8(string(b), "\uFFFD")
}

// writer appends fields to a pre-sized buffer.
type writer struct {
	buf []byte
}

func newWriter(size int) *writer {
	return &writer{buf: make([]byte, 0, size)}
}

func (w *writer) uint8(v uint8) { w.buf = append(w.buf, v) }

func (w *writer) uint16(v uint16) { w.buf = binary.BigEndian.AppendUint16(w.buf, v) }

func (w *writer) uint64(v uint64) { w.buf = binary.BigEndian.AppendUint64(w.buf, v) }

func (w *writer) raw(b []byte) { w.buf = append(w.buf, b...) }

func (w *writer) text(s string) { w.buf = append(w.buf, s...) }

func (w *writer) header(kind Kind, ttl uint8, ts uint64) {
	w.raw(kind[:])
	w.uint8(ttl)
	w.uint64(ts)
}

// string8 writes a 1-byte length prefix and s. Callers validate the length
// with checkLen first.
func (w *writer) string8(s string) {
	w.uint8(uint8(len(s)))
	w.text(s)
}

func (w *writer) string16(s string) {
	w.uint16(uint16(len(s)))
	w.text(s)
}

func (w *writer) bytes8(b []byte) {
	w.uint8(uint8(len(b)))
	w.raw(b)
}

func checkLen(field string, n, max int) error {
	if n > max {
		return &EncodeError{Field: field, Max: max, Len: n}
	}
	return nil
}
