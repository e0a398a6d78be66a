package protocol

import (
	"bytes"
	"errors"
	"testing"
)

// TestReaderSequence walks a buffer written by writer and checks the cursor
// advances exactly once per field.
func TestReaderSequence(t *testing.T) {
	w := newWriter(0)
	w.uint8(0x7F)
	w.uint16(0xBEEF)
	w.uint64(0x0102030405060708)
	w.string8("uid")
	w.string16("content")
	w.bytes8([]byte{9, 8, 7})

	r := &reader{buf: w.buf}

	if v, err := r.uint8("a"); err != nil || v != 0x7F {
		t.Fatalf("uint8: got %#x, %v", v, err)
	}
	if v, err := r.uint16("b"); err != nil || v != 0xBEEF {
		t.Fatalf("uint16: got %#x, %v", v, err)
	}
	if v, err := r.uint64("c"); err != nil || v != 0x0102030405060708 {
		t.Fatalf("uint64: got %#x, %v", v, err)
	}
	if v, err := r.string8("d"); err != nil || v != "uid" {
		t.Fatalf("string8: got %q, %v", v, err)
	}
	if v, err := r.string16("e"); err != nil || v != "content" {
		t.Fatalf("string16: got %q, %v", v, err)
	}
	if v, err := r.bytes8("f"); err != nil || !bytes.Equal(v, []byte{9, 8, 7}) {
		t.Fatalf("bytes8: got %x, %v", v, err)
	}
	if r.remaining() != 0 {
		t.Errorf("remaining: got %d, want 0", r.remaining())
	}
}

// TestReaderTruncation checks which field name is reported when either the
// prefix or the body of a length-prefixed field is missing.
func TestReaderTruncation(t *testing.T) {
	testCases := []struct {
		name  string
		data  []byte
		read  func(r *reader) error
		field string
		need  int
		have  int
	}{
		{
			name:  "missing prefix",
			data:  nil,
			read:  func(r *reader) error { _, err := r.string8("uid"); return err },
			field: "x.uid_len",
			need:  1,
			have:  0,
		},
		{
			name:  "short body",
			data:  []byte{0x04, 'a', 'b'},
			read:  func(r *reader) error { _, err := r.string8("uid"); return err },
			field: "x.uid",
			need:  4,
			have:  2,
		},
		{
			name:  "half of a 2-byte prefix",
			data:  []byte{0x00},
			read:  func(r *reader) error { _, err := r.string16("content"); return err },
			field: "x.content_len",
			need:  2,
			have:  1,
		},
		{
			name:  "short sender id",
			data:  []byte{1, 2, 3},
			read:  func(r *reader) error { _, err := r.senderID("sender_id"); return err },
			field: "x.sender_id",
			need:  8,
			have:  3,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			r := &reader{buf: tc.data, scope: "x."}
			err := tc.read(r)

			var de *DecodeError
			if !errors.As(err, &de) {
				t.Fatalf("expected *DecodeError, got %v", err)
			}
			if de.Field != tc.field || de.Need != tc.need || de.Have != tc.have {
				t.Errorf("got %s need=%d have=%d, want %s need=%d have=%d",
					de.Field, de.Need, de.Have, tc.field, tc.need, tc.have)
			}
		})
	}
}

func TestCheckLen(t *testing.T) {
	if err := checkLen("f", MaxLen8, MaxLen8); err != nil {
		t.Errorf("exact capacity rejected: %v", err)
	}
	err := checkLen("f", MaxLen8+1, MaxLen8)
	if !errors.Is(err, ErrFieldTooLong) {
		t.Fatalf("expected ErrFieldTooLong, got %v", err)
	}
	if err.Error() != "protocol: f is 256 bytes, max 255" {
		t.Errorf("unexpected message: %s", err)
	}
}
