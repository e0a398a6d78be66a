package transport

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/1ureka/bitchat/internal/chat"
)

// Compile-time interface checks.
var (
	_ chat.Link = (*Transport)(nil)
	_ chat.Link = (*Relay)(nil)
)

// echoServer answers every binary message with the same bytes and drops
// text messages.
func echoServer(t *testing.T) string {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		conn.WriteMessage(websocket.TextMessage, []byte("hello"))
		for {
			typ, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if err := conn.WriteMessage(typ, data); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestRelayRoundTrip(t *testing.T) {
	r, err := DialRelay(context.Background(), echoServer(t))
	if err != nil {
		t.Fatalf("DialRelay failed: %v", err)
	}
	defer r.Close()

	got := make(chan []byte, 4)
	r.OnFrame(func(b []byte) { got <- b })

	frame := []byte{0x01, 0x04, 0x05, 0xFF}
	if err := r.Send(context.Background(), frame); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	select {
	case b := <-got:
		if !bytes.Equal(b, frame) {
			t.Errorf("got %x, want %x", b, frame)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for echo")
	}
}

func TestRelayClose(t *testing.T) {
	r, err := DialRelay(context.Background(), echoServer(t))
	if err != nil {
		t.Fatalf("DialRelay failed: %v", err)
	}

	if err := r.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	select {
	case <-r.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("Done not closed")
	}

	if err := r.Send(context.Background(), []byte{1}); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
	if err := r.Close(); err != nil {
		t.Errorf("second Close returned %v", err)
	}
}

func TestRelayDoneWhenServerGoes(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		conn.Close()
	}))
	defer srv.Close()

	r, err := DialRelay(context.Background(), "ws"+strings.TrimPrefix(srv.URL, "http"))
	if err != nil {
		t.Fatalf("DialRelay failed: %v", err)
	}
	select {
	case <-r.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("Done not closed after server hung up")
	}
}

func TestRelaySendCancelled(t *testing.T) {
	r, err := DialRelay(context.Background(), echoServer(t))
	if err != nil {
		t.Fatalf("DialRelay failed: %v", err)
	}
	defer r.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := r.Send(ctx, []byte{1}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestDialRelayFails(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if _, err := DialRelay(ctx, "ws://127.0.0.1:1/ws"); err == nil {
		t.Fatal("expected dial error")
	}
}
