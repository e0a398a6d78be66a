package transport

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/1ureka/bitchat/internal/util"
)

const writeTimeout = 5 * time.Second

// Relay is a link to a relay hub over a WebSocket connection. Every frame is
// one binary message.
type Relay struct {
	conn *websocket.Conn

	writeMu sync.Mutex

	mu      sync.RWMutex
	onFrame func([]byte)

	done      chan struct{}
	closeOnce sync.Once
}

// DialRelay connects to the hub at url and starts reading frames.
func DialRelay(ctx context.Context, url string) (*Relay, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to relay: %w", err)
	}

	r := &Relay{conn: conn, done: make(chan struct{})}
	go r.readLoop()
	return r, nil
}

func (r *Relay) readLoop() {
	defer r.shutdown()
	for {
		typ, data, err := r.conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				select {
				case <-r.done:
				default:
					util.LogWarning("relay read failed: %v", err)
				}
			}
			return
		}
		if typ != websocket.BinaryMessage {
			util.LogDebug("ignoring non-binary relay message (type=%d)", typ)
			continue
		}

		r.mu.RLock()
		fn := r.onFrame
		r.mu.RUnlock()
		if fn != nil {
			fn(data)
		}
	}
}

// Send writes frame as one binary message.
func (r *Relay) Send(ctx context.Context, frame []byte) error {
	select {
	case <-r.done:
		return ErrClosed
	default:
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	deadline := time.Now().Add(writeTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	r.writeMu.Lock()
	defer r.writeMu.Unlock()
	r.conn.SetWriteDeadline(deadline)
	if err := r.conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
		return fmt.Errorf("relay write: %w", err)
	}
	return nil
}

// OnFrame registers the callback invoked for every inbound frame. It
// replaces any earlier callback.
func (r *Relay) OnFrame(fn func([]byte)) {
	r.mu.Lock()
	r.onFrame = fn
	r.mu.Unlock()
}

// Done returns a channel that is closed once the connection is gone.
func (r *Relay) Done() <-chan struct{} {
	return r.done
}

// Close sends a close frame and tears the connection down.
func (r *Relay) Close() error {
	select {
	case <-r.done:
		return nil
	default:
	}

	r.writeMu.Lock()
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye")
	werr := r.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	r.writeMu.Unlock()

	r.shutdown()
	if errors.Is(werr, websocket.ErrCloseSent) {
		werr = nil
	}
	return werr
}

func (r *Relay) shutdown() {
	r.closeOnce.Do(func() {
		close(r.done)
		r.conn.Close()
	})
}
