package transport

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/pion/webrtc/v4"
)

// loopbackPeerConnection gathers host candidates on loopback interfaces only
// and uses no STUN, so a pair can connect inside one process.
func loopbackPeerConnection() (*webrtc.PeerConnection, error) {
	var se webrtc.SettingEngine
	se.SetIncludeLoopbackCandidate(true)
	se.SetNetworkTypes([]webrtc.NetworkType{webrtc.NetworkTypeUDP4})
	se.SetInterfaceFilter(func(name string) bool { return strings.HasPrefix(name, "lo") })

	api := webrtc.NewAPI(webrtc.WithSettingEngine(se))
	return api.NewPeerConnection(webrtc.Configuration{})
}

func newLoopbackTransport(t *testing.T) *Transport {
	t.Helper()
	tr, err := newTransport(context.Background(), loopbackPeerConnection)
	if err != nil {
		t.Fatalf("newTransport failed: %v", err)
	}
	t.Cleanup(func() { tr.Close() })
	return tr
}

// connect runs a non-trickle offer/answer between a and b and waits for
// both DataChannels to open.
func connect(t *testing.T, a, b *Transport) {
	t.Helper()

	offer, err := a.CreateOffer()
	if err != nil {
		t.Fatalf("CreateOffer failed: %v", err)
	}
	gatheredA := webrtc.GatheringCompletePromise(a.pc)
	if err := a.SetLocalDescription(offer); err != nil {
		t.Fatalf("SetLocalDescription failed: %v", err)
	}
	<-gatheredA
	if err := b.SetRemoteDescription(*a.pc.LocalDescription()); err != nil {
		t.Fatalf("SetRemoteDescription failed: %v", err)
	}

	answer, err := b.CreateAnswer()
	if err != nil {
		t.Fatalf("CreateAnswer failed: %v", err)
	}
	gatheredB := webrtc.GatheringCompletePromise(b.pc)
	if err := b.SetLocalDescription(answer); err != nil {
		t.Fatalf("SetLocalDescription failed: %v", err)
	}
	<-gatheredB
	if err := a.SetRemoteDescription(*b.pc.LocalDescription()); err != nil {
		t.Fatalf("SetRemoteDescription failed: %v", err)
	}

	for _, tr := range []*Transport{a, b} {
		select {
		case <-tr.Ready():
		case <-time.After(10 * time.Second):
			t.Fatalf("DataChannel never opened (pc state %s)", tr.ConnectionState())
		}
	}
}

func recvFrame(t *testing.T, frames <-chan []byte) []byte {
	t.Helper()
	select {
	case b := <-frames:
		return b
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for frame")
		return nil
	}
}

func waitDone(t *testing.T, tr *Transport) {
	t.Helper()
	select {
	case <-tr.Done():
	case <-time.After(10 * time.Second):
		t.Fatal("transport never shut down")
	}
}

// TestTransportExchangesFrames covers frames queued before the channel
// opens, in-order delivery both ways, and that a delivered frame keeps its
// bytes after later frames arrive.
func TestTransportExchangesFrames(t *testing.T) {
	a := newLoopbackTransport(t)
	b := newLoopbackTransport(t)

	fromA := make(chan []byte, 8)
	fromB := make(chan []byte, 8)
	b.OnFrame(func(f []byte) { fromA <- f })
	a.OnFrame(func(f []byte) { fromB <- f })

	early := []byte{0x01, 0x01, 0x03, 0xAA}
	if err := a.Send(context.Background(), early); err != nil {
		t.Fatalf("Send before open failed: %v", err)
	}

	connect(t, a, b)

	if got := recvFrame(t, fromA); !bytes.Equal(got, early) {
		t.Fatalf("queued frame: got %x, want %x", got, early)
	}

	first := bytes.Repeat([]byte{0x11}, 32)
	second := bytes.Repeat([]byte{0x22}, 32)
	a.Send(context.Background(), first)
	a.Send(context.Background(), second)

	gotFirst := recvFrame(t, fromA)
	gotSecond := recvFrame(t, fromA)
	if !bytes.Equal(gotSecond, second) {
		t.Errorf("second frame: got %x", gotSecond)
	}
	if !bytes.Equal(gotFirst, first) {
		t.Errorf("first frame changed after the next one arrived: %x", gotFirst)
	}

	reply := []byte{0x01, 0x04, 0x05}
	if err := b.Send(context.Background(), reply); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if got := recvFrame(t, fromB); !bytes.Equal(got, reply) {
		t.Errorf("reply: got %x, want %x", got, reply)
	}
}

func TestTransportCloseRejectsSend(t *testing.T) {
	a := newLoopbackTransport(t)
	b := newLoopbackTransport(t)
	connect(t, a, b)

	if err := a.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	waitDone(t, a)

	for i := 0; i < 10; i++ {
		if err := a.Send(context.Background(), []byte{1}); !errors.Is(err, ErrClosed) {
			t.Fatalf("Send after Close: expected ErrClosed, got %v", err)
		}
	}
}

// TestTransportShutsDownWhenConnectionDrops closes the underlying
// PeerConnection without going through Close. Writes start failing and the
// transport must end on its own.
func TestTransportShutsDownWhenConnectionDrops(t *testing.T) {
	a := newLoopbackTransport(t)
	b := newLoopbackTransport(t)
	connect(t, a, b)

	a.pc.Close()
	a.Send(context.Background(), []byte{1})
	waitDone(t, a)

	if err := a.Send(context.Background(), []byte{2}); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

func TestTransportSendCancelled(t *testing.T) {
	a := newLoopbackTransport(t)

	// Never opened: the sender holds frames, so the buffer fills up.
	for i := 0; i < sendBufferSize; i++ {
		if err := a.Send(context.Background(), []byte{byte(i)}); err != nil {
			t.Fatalf("Send %d failed: %v", i, err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := a.Send(ctx, []byte{0xFF}); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}
