package relay

import (
	"bytes"
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/1ureka/bitchat/internal/protocol"
	"github.com/1ureka/bitchat/internal/transport"
)

var testID = protocol.SenderID{1, 2, 3, 4, 5, 6, 7, 8}

type client struct {
	link   *transport.Relay
	frames chan []byte
}

func startHub(t *testing.T, n int) (*Hub, []*client) {
	t.Helper()
	hub := NewHub()
	srv := httptest.NewServer(hub)
	t.Cleanup(srv.Close)
	url := "ws" + strings.TrimPrefix(srv.URL, "http")

	clients := make([]*client, n)
	for i := range clients {
		link, err := transport.DialRelay(context.Background(), url)
		if err != nil {
			t.Fatalf("DialRelay failed: %v", err)
		}
		t.Cleanup(func() { link.Close() })

		c := &client{link: link, frames: make(chan []byte, 16)}
		link.OnFrame(func(b []byte) { c.frames <- b })
		clients[i] = c
	}

	deadline := time.Now().Add(2 * time.Second)
	for hub.Peers() != n {
		if time.Now().After(deadline) {
			t.Fatalf("expected %d peers, hub has %d", n, hub.Peers())
		}
		time.Sleep(5 * time.Millisecond)
	}
	return hub, clients
}

func (c *client) next(t *testing.T) []byte {
	t.Helper()
	select {
	case b := <-c.frames:
		return b
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for frame")
		return nil
	}
}

func (c *client) send(t *testing.T, frame []byte) {
	t.Helper()
	if err := c.link.Send(context.Background(), frame); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
}

func TestHubFansOutWithTTLDecrement(t *testing.T) {
	_, cs := startHub(t, 3)

	frame, err := protocol.EncodeAnnounce(3, testID, "alice")
	if err != nil {
		t.Fatalf("EncodeAnnounce failed: %v", err)
	}
	cs[0].send(t, frame)

	for _, c := range cs[1:] {
		got := c.next(t)
		if got[2] != 2 {
			t.Errorf("ttl: got %d, want 2", got[2])
		}
		if !bytes.Equal(got[3:], frame[3:]) {
			t.Errorf("frame altered beyond ttl")
		}
	}

	select {
	case b := <-cs[0].frames:
		t.Errorf("sender heard its own frame: %x", b)
	case <-time.After(50 * time.Millisecond):
	}
}

// TestHubDrops verifies expired and malformed frames are not relayed while
// unknown kinds pass through untouched. The final announce is a barrier:
// frames arrive in order, so anything wrongly relayed would come first.
func TestHubDrops(t *testing.T) {
	_, cs := startHub(t, 2)

	expired, _ := protocol.EncodeMessage(0, testID, "alice", "going nowhere")
	malformed := []byte{0x01, 0x01, 0x03}
	unknown := []byte{0x07, 0x07, 0x09, 0xAA}
	barrier, _ := protocol.EncodeAnnounce(3, testID, "barrier")

	for _, f := range [][]byte{expired, malformed, unknown, barrier} {
		cs[0].send(t, f)
	}

	if got := cs[1].next(t); !bytes.Equal(got, unknown) {
		t.Fatalf("expected unknown frame untouched, got %x", got)
	}
	got := cs[1].next(t)
	pkt, err := protocol.Decode(got)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if a, ok := pkt.(*protocol.Announce); !ok || a.SenderName != "barrier" {
		t.Fatalf("expected barrier announce, got %s", protocol.Describe(pkt))
	}
}

func TestHubPeerLeaves(t *testing.T) {
	hub, cs := startHub(t, 2)

	cs[1].link.Close()
	deadline := time.Now().Add(2 * time.Second)
	for hub.Peers() != 1 {
		if time.Now().After(deadline) {
			t.Fatalf("peer never removed, hub has %d", hub.Peers())
		}
		time.Sleep(5 * time.Millisecond)
	}

	frame, _ := protocol.EncodeMessage(5, testID, "alice", "anyone?")
	cs[0].send(t, frame)
}

func TestServeStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- Serve(ctx, "127.0.0.1:0", NewHub()) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("Serve returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not stop")
	}
}
