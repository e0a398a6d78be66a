package protocol

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Encoder builds outbound packets. The zero value uses the wall clock and
// random UUIDs; both sources may be replaced for tests. An Encoder holds no
// mutable state and is safe for concurrent use.
type Encoder struct {
	Clock  func() time.Time
	NewUID func() string
}

var defaultEncoder Encoder

// EncodeAnnounce encodes an announce packet with the default Encoder.
func EncodeAnnounce(ttl uint8, id SenderID, name string) ([]byte, error) {
	return defaultEncoder.EncodeAnnounce(ttl, id, name)
}

// EncodeMessage encodes a broadcast message with the default Encoder.
func EncodeMessage(ttl uint8, id SenderID, name, content string) ([]byte, error) {
	return defaultEncoder.EncodeMessage(ttl, id, name, content)
}

func (e Encoder) now() uint64 {
	clock := e.Clock
	if clock == nil {
		clock = time.Now
	}
	return uint64(clock().UnixMilli())
}

func (e Encoder) uid() string {
	if e.NewUID == nil {
		return uuid.NewString()
	}
	return e.NewUID()
}

// EncodeAnnounce serializes an announce packet:
// kind | ttl | timestamp | reserved | name_len | sender_id | sender_name.
func (e Encoder) EncodeAnnounce(ttl uint8, id SenderID, name string) ([]byte, error) {
	if err := checkLen(FieldSenderName, len(name), MaxLen16); err != nil {
		return nil, err
	}

	w := newWriter(AnnounceFixedSize + len(name))
	w.header(KindAnnounce, ttl, e.now())
	w.uint8(0)
	w.uint16(uint16(len(name)))
	w.raw(id[:])
	w.text(name)
	return w.buf, nil
}

// EncodeMessage serializes a message addressed to Broadcast.
func (e Encoder) EncodeMessage(ttl uint8, id SenderID, name, content string) ([]byte, error) {
	return e.EncodeMessageTo(ttl, id, Broadcast, name, content)
}

// EncodeMessageTo serializes a message addressed to recipient. The outer
// header and the inner envelope carry the same timestamp.
func (e Encoder) EncodeMessageTo(ttl uint8, id, recipient SenderID, name, content string) ([]byte, error) {
	ts := e.now()
	uid := e.uid()

	if err := checkLen(FieldUID, len(uid), MaxLen8); err != nil {
		return nil, err
	}
	if err := checkLen(FieldSenderName, len(name), MaxLen8); err != nil {
		return nil, err
	}
	if err := checkLen(FieldContent, len(content), MaxLen16); err != nil {
		return nil, err
	}

	innerLen := 1 + 8 + 1 + len(uid) + 1 + len(name) + 2 + len(content) + 1 + SenderIDSize
	if err := checkLen(FieldInner, innerLen, MaxLen16); err != nil {
		return nil, err
	}

	w := newWriter(MessageFixedSize + innerLen)
	w.header(KindMessage, ttl, ts)
	w.uint8(MessageFlag)
	w.uint16(uint16(innerLen))
	w.raw(id[:])
	w.raw(recipient[:])

	w.uint8(InnerFlagSenderID)
	w.uint64(ts)
	w.string8(uid)
	w.string8(name)
	w.string16(content)
	w.bytes8(id[:])
	return w.buf, nil
}

// Decode parses a received buffer. Unknown kinds yield *Unknown and a nil
// error. On ErrInnerMalformed the returned *Message still carries every
// outer field. Decode never reads past b and never retains it.
func Decode(b []byte) (Packet, error) {
	r := &reader{buf: b}

	tag, err := r.take(2, FieldKind)
	if err != nil {
		return nil, err
	}
	var kind Kind
	copy(kind[:], tag)

	switch kind {
	case KindAnnounce:
		a, err := decodeAnnounce(r)
		if err != nil {
			return nil, err
		}
		return a, nil
	case KindMessage:
		m, err := decodeMessage(r)
		if m == nil {
			return nil, err
		}
		return m, err
	default:
		return &Unknown{Raw: append([]byte(nil), b...)}, nil
	}
}

func decodeHeader(r *reader, kind Kind) (Header, error) {
	h := Header{Type: kind}
	var err error
	if h.TTL, err = r.uint8(FieldTTL); err != nil {
		return h, err
	}
	if h.Timestamp, err = r.uint64(FieldTimestamp); err != nil {
		return h, err
	}
	return h, nil
}

func decodeAnnounce(r *reader) (*Announce, error) {
	h, err := decodeHeader(r, KindAnnounce)
	if err != nil {
		return nil, err
	}
	if _, err := r.uint8(FieldReserved); err != nil {
		return nil, err
	}
	nameLen, err := r.uint16(FieldNameLen)
	if err != nil {
		return nil, err
	}
	id, err := r.senderID(FieldSenderID)
	if err != nil {
		return nil, err
	}
	name, err := r.text(int(nameLen), FieldSenderName)
	if err != nil {
		return nil, err
	}
	return &Announce{Header: h, SenderID: id, SenderName: name}, nil
}

func decodeMessage(r *reader) (*Message, error) {
	h, err := decodeHeader(r, KindMessage)
	if err != nil {
		return nil, err
	}
	m := &Message{Header: h}
	if m.Flag, err = r.uint8(FieldMsgFlag); err != nil {
		return nil, err
	}
	innerLen, err := r.uint16(FieldInnerLen)
	if err != nil {
		return nil, err
	}
	if m.SenderID, err = r.senderID(FieldSenderID); err != nil {
		return nil, err
	}
	if m.RecipientID, err = r.senderID(FieldRecipientID); err != nil {
		return nil, err
	}
	env, err := r.take(int(innerLen), FieldInner)
	if err != nil {
		return nil, err
	}

	if err := decodeInner(env, &m.Inner); err != nil {
		return m, &DecodeError{
			Reason: InnerMalformed,
			Field:  FieldInner,
			Cause:  err,
			Raw:    append([]byte(nil), env...),
		}
	}
	return m, nil
}

// decodeInner parses the envelope into in, leaving fields read before a
// failure in place.
func decodeInner(env []byte, in *InnerMessage) error {
	r := &reader{buf: env, scope: FieldInner + "."}
	var err error
	if in.Flags, err = r.uint8(FieldFlags); err != nil {
		return err
	}
	if in.Timestamp, err = r.uint64(FieldTimestamp); err != nil {
		return err
	}
	if in.UID, err = r.string8(FieldUID); err != nil {
		return err
	}
	if in.SenderName, err = r.string8(FieldSenderName); err != nil {
		return err
	}
	if in.Content, err = r.string16(FieldContent); err != nil {
		return err
	}
	if in.SenderID, err = r.bytes8(FieldSenderID); err != nil {
		return err
	}
	return nil
}

// Describe renders a one-line summary of p for logs.
func Describe(p Packet) string {
	switch v := p.(type) {
	case *Announce:
		return fmt.Sprintf("announce ttl=%d from=%s name=%q", v.TTL, v.SenderID, v.SenderName)
	case *Message:
		return fmt.Sprintf("message ttl=%d from=%s to=%s uid=%s name=%q len=%d",
			v.TTL, v.SenderID, v.RecipientID, v.Inner.UID, v.Inner.SenderName, len(v.Inner.Content))
	case *Unknown:
		return fmt.Sprintf("%s len=%d", v.Kind(), len(v.Raw))
	case nil:
		return "<nil>"
	default:
		return fmt.Sprintf("%T", p)
	}
}

// DecrementTTL returns a copy of a known-kind frame with its TTL lowered by
// one. It reports false when the TTL is already zero or the frame is too
// short or of unknown kind. The codec itself never enforces TTL; this is for
// relays.
func DecrementTTL(b []byte) ([]byte, bool) {
	if len(b) < HeaderSize {
		return nil, false
	}
	var kind Kind
	copy(kind[:], b)
	if kind != KindAnnounce && kind != KindMessage {
		return nil, false
	}
	if b[2] == 0 {
		return nil, false
	}
	out := append([]byte(nil), b...)
	out[2]--
	return out, true
}
