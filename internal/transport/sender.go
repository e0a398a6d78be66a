package transport

import (
	"context"

	"github.com/pion/webrtc/v4"

	"github.com/1ureka/bitchat/internal/util"
)

const (
	highWaterMark  = 256 * 1024 // pause sending when bufferedAmount exceeds this
	lowWaterMark   = 64 * 1024  // resume sending when bufferedAmount drops below this
	sendBufferSize = 64         // outgoing frame channel capacity
)

// sender serializes all writes to a single DataChannel, adding an open gate
// and backpressure control.
type sender struct {
	inbox       chan []byte
	drainSignal chan struct{}
}

// newSender wires the backpressure callbacks on dc and starts the write loop.
// The loop exits when ctx is cancelled; stop is called if a write fails.
func newSender(ctx context.Context, dc *webrtc.DataChannel, openSignal <-chan struct{}, stop func()) *sender {
	s := &sender{
		inbox:       make(chan []byte, sendBufferSize),
		drainSignal: make(chan struct{}, 1),
	}

	dc.SetBufferedAmountLowThreshold(uint64(lowWaterMark))
	dc.OnBufferedAmountLow(func() {
		select {
		case s.drainSignal <- struct{}{}:
		default:
		}
	})

	go s.loop(ctx, dc, openSignal, stop)

	return s
}

func (s *sender) loop(ctx context.Context, dc *webrtc.DataChannel, openSignal <-chan struct{}, stop func()) {
	select {
	case <-openSignal:
	case <-ctx.Done():
		return
	}

	for {
		select {
		case frame := <-s.inbox:
			if dc.BufferedAmount() > uint64(highWaterMark) {
				select {
				case <-s.drainSignal:
				case <-ctx.Done():
					return
				}
			}

			if err := dc.Send(frame); err != nil {
				util.LogError("failed to send %d-byte frame: %v", len(frame), err)
				stop()
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

// send enqueues a frame. It blocks while the buffer is full and gives up
// when either ctx or the transport context ends. A closed transport never
// accepts a frame, even with room in the buffer.
func (s *sender) send(ctx, life context.Context, frame []byte) error {
	if life.Err() != nil {
		return ErrClosed
	}
	select {
	case s.inbox <- frame:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-life.Done():
		return ErrClosed
	}
}
