package chat

import (
	"fmt"

	"github.com/1ureka/bitchat/internal/protocol"
)

// EventType classifies what Listen observed.
type EventType uint8

const (
	EventJoin      EventType = iota + 1 // a peer announced itself
	EventMessage                        // a new chat message
	EventUnknown                        // a frame of unrecognised kind
	EventMalformed                      // a frame that failed to decode
)

// Event is one received frame after decoding and filtering.
type Event struct {
	Type   EventType
	Packet protocol.Packet // nil for frames truncated before a packet could form
	Err    error           // decode error, EventMalformed only
	Raw    []byte
}

// String renders the event as a single display line.
func (e Event) String() string {
	switch e.Type {
	case EventJoin:
		a := e.Packet.(*protocol.Announce)
		return fmt.Sprintf("📢 %s joined the chat", a.SenderName)

	case EventMessage:
		m := e.Packet.(*protocol.Message)
		return fmt.Sprintf("💬 [%s] %s: %s", m.Time().Format("15:04:05"), m.Inner.SenderName, m.Inner.Content)

	case EventUnknown:
		k := e.Packet.Kind()
		return fmt.Sprintf("❓ Unknown packet type: %02x %02x", k[0], k[1])

	case EventMalformed:
		return fmt.Sprintf("⚠️  Parse error: %v", e.Err)

	default:
		return fmt.Sprintf("event(%d)", uint8(e.Type))
	}
}
