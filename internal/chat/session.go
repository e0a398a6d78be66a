// Package chat drives a bitchat session over a Link: it owns the local
// identity, turns user intents into encoded frames and turns received frames
// into display events.
package chat

import (
	"context"
	"fmt"
	"time"

	"github.com/1ureka/bitchat/internal/protocol"
	"github.com/1ureka/bitchat/internal/util"
)

// inboxSize bounds the frames queued between the link callback and Listen.
const inboxSize = 64

// Link carries opaque frames to and from peers. Implementations must be
// safe for concurrent Send calls.
type Link interface {
	Send(ctx context.Context, frame []byte) error
	OnFrame(fn func(frame []byte))
	Done() <-chan struct{}
	Close() error
}

// Session is one participant on a Link.
type Session struct {
	ID      protocol.SenderID
	Name    string
	Encoder protocol.Encoder

	link Link
	seen *Dedup // nil disables de-duplication
}

// NewSession binds an identity to link. seen may be nil.
func NewSession(link Link, id protocol.SenderID, name string, seen *Dedup) *Session {
	return &Session{
		ID:   id,
		Name: name,
		link: link,
		seen: seen,
	}
}

func (s *Session) send(ctx context.Context, frame []byte) error {
	util.LogFrame("tx", frame)
	if err := s.link.Send(ctx, frame); err != nil {
		return err
	}
	util.Stats.AddSent(len(frame))
	return nil
}

// Announce broadcasts the session's presence.
func (s *Session) Announce(ctx context.Context, ttl uint8) error {
	frame, err := s.Encoder.EncodeAnnounce(ttl, s.ID, s.Name)
	if err != nil {
		return fmt.Errorf("encode announce: %w", err)
	}
	if err := s.send(ctx, frame); err != nil {
		return fmt.Errorf("send announce: %w", err)
	}
	return nil
}

// Say broadcasts one chat message.
func (s *Session) Say(ctx context.Context, ttl uint8, content string) error {
	frame, err := s.Encoder.EncodeMessage(ttl, s.ID, s.Name, content)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}
	if err := s.send(ctx, frame); err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	return nil
}

// Burst describes an announce followed by Count copies of a message.
type Burst struct {
	AnnounceTTL uint8
	TTL         uint8
	Content     string
	Count       int
	Interval    time.Duration // pause after every frame
}

// SendBurst announces the session and then sends b.Count messages, each
// with a fresh UID, pausing b.Interval after every frame.
func (s *Session) SendBurst(ctx context.Context, b Burst) error {
	if err := s.Announce(ctx, b.AnnounceTTL); err != nil {
		return err
	}
	if err := sleep(ctx, b.Interval); err != nil {
		return err
	}

	for i := 0; i < b.Count; i++ {
		if err := s.Say(ctx, b.TTL, b.Content); err != nil {
			return fmt.Errorf("message %d/%d: %w", i+1, b.Count, err)
		}
		util.LogDebug("sent message %d/%d", i+1, b.Count)
		if err := sleep(ctx, b.Interval); err != nil {
			return err
		}
	}
	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Listen decodes received frames and calls fn for every event worth
// showing. Own echoes, messages addressed to someone else and duplicate UIDs
// are dropped. A frame that fails to decode is reported and never stops the
// loop. Listen blocks until ctx is cancelled or the link is done.
func (s *Session) Listen(ctx context.Context, fn func(Event)) {
	inbox := make(chan []byte, inboxSize)
	s.link.OnFrame(func(frame []byte) {
		select {
		case inbox <- frame:
		default:
			util.LogWarning("inbox full, dropping %d-byte frame", len(frame))
		}
	})
	defer s.link.OnFrame(func([]byte) {})

	for {
		select {
		case frame := <-inbox:
			if ev, ok := s.handle(frame); ok {
				fn(ev)
			}
		case <-s.link.Done():
			return
		case <-ctx.Done():
			return
		}
	}
}

func (s *Session) handle(frame []byte) (Event, bool) {
	util.Stats.AddRecv(len(frame))
	util.LogFrame("rx", frame)

	pkt, err := protocol.Decode(frame)
	if err != nil {
		util.Stats.AddDecodeFailure()
		return Event{Type: EventMalformed, Packet: pkt, Err: err, Raw: frame}, true
	}

	switch p := pkt.(type) {
	case *protocol.Announce:
		if p.SenderID == s.ID {
			return Event{}, false
		}
		return Event{Type: EventJoin, Packet: p, Raw: frame}, true

	case *protocol.Message:
		if p.SenderID == s.ID {
			return Event{}, false
		}
		if !p.IsBroadcast() && p.RecipientID != s.ID {
			util.LogDebug("message %s for %s, not for us", p.Inner.UID, p.RecipientID)
			return Event{}, false
		}
		if s.seen != nil && s.seen.Seen(p.Inner.UID) {
			util.Stats.AddDuplicate()
			util.LogDebug("duplicate message %s", p.Inner.UID)
			return Event{}, false
		}
		return Event{Type: EventMessage, Packet: p, Raw: frame}, true

	default:
		return Event{Type: EventUnknown, Packet: pkt, Raw: frame}, true
	}
}
