package util

import (
	"net"
	"strings"
	"testing"
	"time"
)

func TestFormatBytes(t *testing.T) {
	testCases := []struct {
		in   float64
		want string
	}{
		{0, " 0.0   B"},
		{99, "99.0   B"},
		{1536, " 1.5 KiB"},
		{100 * 1024, " 0.1 MiB"},
	}

	for _, tc := range testCases {
		if got := formatBytes(tc.in); got != tc.want {
			t.Errorf("formatBytes(%v) = %q, want %q", tc.in, got, tc.want)
		}
		if got := formatBytes(tc.in); len(got) != 8 {
			t.Errorf("formatBytes(%v) width = %d, want 8", tc.in, len(got))
		}
	}
}

func TestSnapshotSub(t *testing.T) {
	a := Snapshot{FramesSent: 10, FramesRecv: 7, BytesSent: 1000, BytesRecv: 700, DecodeFailures: 2, Duplicates: 3}
	b := Snapshot{FramesSent: 4, FramesRecv: 7, BytesSent: 400, BytesRecv: 100, DecodeFailures: 1, Duplicates: 3}

	want := Snapshot{FramesSent: 6, BytesSent: 600, BytesRecv: 600, DecodeFailures: 1}
	if got := a.Sub(b); got != want {
		t.Errorf("Sub = %+v, want %+v", got, want)
	}
}

func TestFormatStats(t *testing.T) {
	got := formatStats(Snapshot{FramesSent: 3, BytesSent: 300, FramesRecv: 1, BytesRecv: 50, DecodeFailures: 1}, 10*time.Second)
	for _, part := range []string{"Tx:   3 frames", "Rx:   1 frames", "bad: 1", "dup: 0"} {
		if !strings.Contains(got, part) {
			t.Errorf("formatStats() = %q, missing %q", got, part)
		}
	}
}

func TestHexPreview(t *testing.T) {
	if got := HexPreview([]byte{0x01, 0x04, 0xFF}, 8); got != "0104ff" {
		t.Errorf("short: got %q", got)
	}
	if got := HexPreview([]byte{0x01, 0x02, 0x03, 0x04}, 2); got != "0102…(+2)" {
		t.Errorf("long: got %q", got)
	}
}

func TestPeerTag(t *testing.T) {
	a := &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 8080}
	b := &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 50000}
	c := &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 50001}

	if PeerTag(a, b) != PeerTag(a, b) {
		t.Error("PeerTag is not deterministic")
	}
	if PeerTag(a, b) == PeerTag(a, c) {
		t.Error("different remotes produced the same tag")
	}
	_ = PeerTag(nil, nil)
}
