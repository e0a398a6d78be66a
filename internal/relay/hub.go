// Package relay implements a WebSocket hub standing in for a shared radio
// medium: every frame one peer sends is heard by every other peer.
package relay

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/1ureka/bitchat/internal/protocol"
	"github.com/1ureka/bitchat/internal/util"
)

// peerQueueSize bounds the frames buffered for one slow peer.
const peerQueueSize = 64

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type peer struct {
	conn *websocket.Conn
	tag  uint32
	out  chan []byte
}

// Hub fans frames out between connected peers. Frames that fail to decode
// are dropped. Known kinds lose one TTL hop per relay and are dropped when it
// runs out. Frames of unknown kind are forwarded untouched.
type Hub struct {
	mu    sync.RWMutex
	peers map[*peer]struct{}
}

func NewHub() *Hub {
	return &Hub{peers: make(map[*peer]struct{})}
}

// Peers returns the number of connected peers.
func (h *Hub) Peers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.peers)
}

// ServeHTTP upgrades the request and serves the peer until it disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		util.LogWarning("relay upgrade failed: %v", err)
		return
	}

	p := &peer{
		conn: conn,
		tag:  util.PeerTag(conn.LocalAddr(), conn.RemoteAddr()),
		out:  make(chan []byte, peerQueueSize),
	}
	h.join(p)
	defer h.leave(p)

	go p.writeLoop()

	for {
		typ, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if typ != websocket.BinaryMessage {
			continue
		}
		h.relay(p, data)
	}
}

// Close disconnects every peer.
func (h *Hub) Close() {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for p := range h.peers {
		p.conn.Close()
	}
}

func (h *Hub) join(p *peer) {
	h.mu.Lock()
	h.peers[p] = struct{}{}
	n := len(h.peers)
	h.mu.Unlock()
	util.LogInfo("[%08x] peer joined from %s (%d connected)", p.tag, p.conn.RemoteAddr(), n)
}

func (h *Hub) leave(p *peer) {
	h.mu.Lock()
	delete(h.peers, p)
	n := len(h.peers)
	h.mu.Unlock()

	close(p.out)
	p.conn.Close()
	util.LogInfo("[%08x] peer left (%d connected)", p.tag, n)
}

func (h *Hub) relay(from *peer, frame []byte) {
	util.Stats.AddRecv(len(frame))
	util.LogFrame(fmt.Sprintf("%08x rx", from.tag), frame)

	pkt, err := protocol.Decode(frame)
	if err != nil {
		util.Stats.AddDecodeFailure()
		util.LogWarning("[%08x] dropping bad frame: %v", from.tag, err)
		return
	}
	util.LogDebug("[%08x] %s", from.tag, protocol.Describe(pkt))

	if _, unknown := pkt.(*protocol.Unknown); !unknown {
		next, ok := protocol.DecrementTTL(frame)
		if !ok {
			util.LogDebug("[%08x] ttl exhausted, not relaying", from.tag)
			return
		}
		frame = next
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for p := range h.peers {
		if p == from {
			continue
		}
		select {
		case p.out <- frame:
		default:
			util.LogWarning("[%08x] queue full, dropping frame", p.tag)
		}
	}
}

func (p *peer) writeLoop() {
	for frame := range p.out {
		p.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := p.conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
			util.LogWarning("[%08x] write failed: %v", p.tag, err)
			p.conn.Close()
			for range p.out {
			}
			return
		}
		util.Stats.AddSent(len(frame))
	}
}

// Serve runs hub at addr under /ws until ctx is cancelled.
func Serve(ctx context.Context, addr string, hub *Hub) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to start relay: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/ws", hub)
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	util.LogSuccess("relay listening on ws://%s/ws", ln.Addr())

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		hub.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		return nil
	}
}
