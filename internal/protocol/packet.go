// Package protocol defines the bitchat packet format: announce and message
// packets exchanged as single frames over a low-bandwidth link.
package protocol

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

// Kind is the 2-byte tag that opens every packet.
type Kind [2]byte

// Known packet kinds.
var (
	KindAnnounce = Kind{0x01, 0x01}
	KindMessage  = Kind{0x01, 0x04}
)

func (k Kind) String() string {
	switch k {
	case KindAnnounce:
		return "announce"
	case KindMessage:
		return "message"
	default:
		return fmt.Sprintf("unknown(%02x%02x)", k[0], k[1])
	}
}

// Fixed sizes of the wire layout.
const (
	HeaderSize        = 11 // Kind(2) + TTL(1) + Timestamp(8)
	AnnounceFixedSize = 22 // Header + Reserved(1) + NameLen(2) + SenderID(8)
	MessageFixedSize  = 30 // Header + Flag(1) + InnerLen(2) + SenderID(8) + RecipientID(8)
	SenderIDSize      = 8
)

// Flag values written by the encoder. Receivers treat them as informational.
const (
	MessageFlag       uint8 = 0x01 // outer msg_flag
	InnerFlagSenderID uint8 = 0x10 // inner envelope carries the sender id
)

// Length-prefix capacities.
const (
	MaxLen8  = 0xFF
	MaxLen16 = 0xFFFF
)

// SenderID identifies a participant. The codec enforces no uniqueness.
type SenderID [SenderIDSize]byte

// Broadcast is the reserved recipient meaning "no specific addressee".
var Broadcast = SenderID{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}

// NewSenderID returns a random SenderID.
func NewSenderID() (SenderID, error) {
	var id SenderID
	if _, err := rand.Read(id[:]); err != nil {
		return SenderID{}, fmt.Errorf("generate sender id: %w", err)
	}
	return id, nil
}

// ParseSenderID accepts either 16 hex digits or an 8-byte literal such as
// "deadbeef".
func ParseSenderID(s string) (SenderID, error) {
	var id SenderID
	switch len(s) {
	case 2 * SenderIDSize:
		if _, err := hex.Decode(id[:], []byte(s)); err != nil {
			return SenderID{}, fmt.Errorf("invalid sender id %q: %w", s, err)
		}
	case SenderIDSize:
		copy(id[:], s)
	default:
		return SenderID{}, fmt.Errorf("invalid sender id %q: want 16 hex digits or 8 bytes", s)
	}
	return id, nil
}

func (id SenderID) String() string {
	if id == Broadcast {
		return "broadcast"
	}
	return hex.EncodeToString(id[:])
}

// Packet is a decoded frame: *Announce, *Message or *Unknown.
type Packet interface {
	Kind() Kind
	packet()
}

// Header is shared by every known packet kind.
type Header struct {
	Type      Kind
	TTL       uint8  // hop budget; never enforced by the codec
	Timestamp uint64 // milliseconds since the Unix epoch
}

func (h Header) Kind() Kind { return h.Type }

// Time converts Timestamp to a time.Time.
func (h Header) Time() time.Time { return time.UnixMilli(int64(h.Timestamp)) }

func (Header) packet() {}

// Announce advertises a participant's presence.
type Announce struct {
	Header
	SenderID   SenderID
	SenderName string
}

// Message carries a chat message inside its inner envelope.
type Message struct {
	Header
	Flag        uint8
	SenderID    SenderID
	RecipientID SenderID
	Inner       InnerMessage
}

// IsBroadcast reports whether the message has no specific addressee.
func (m *Message) IsBroadcast() bool { return m.RecipientID == Broadcast }

// InnerMessage is the envelope nested in a Message payload.
type InnerMessage struct {
	Flags      uint8
	Timestamp  uint64
	UID        string // per-message identifier used for de-duplication
	SenderName string
	Content    string
	SenderID   []byte // normally 8 bytes
}

// Unknown is a frame whose kind tag is not recognised. It is a valid
// decode outcome, not an error.
type Unknown struct {
	Raw []byte
}

func (u *Unknown) Kind() Kind {
	var k Kind
	copy(k[:], u.Raw)
	return k
}

func (*Unknown) packet() {}
