package util

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/pterm/pterm"
)

// ──────────────────────────────────────────────────────────────────────────────
// Global stats singleton
// ──────────────────────────────────────────────────────────────────────────────

// Stats is the process-wide frame counter.
var Stats = &stats{}

type stats struct {
	FramesSent     atomic.Int64 // frames handed to a link
	FramesRecv     atomic.Int64 // frames received from a link
	BytesSent      atomic.Int64
	BytesRecv      atomic.Int64
	DecodeFailures atomic.Int64 // frames that failed to decode
	Duplicates     atomic.Int64 // messages suppressed by UID
}

func (s *stats) AddSent(n int) {
	s.FramesSent.Add(1)
	s.BytesSent.Add(int64(n))
}

func (s *stats) AddRecv(n int) {
	s.FramesRecv.Add(1)
	s.BytesRecv.Add(int64(n))
}

func (s *stats) AddDecodeFailure() { s.DecodeFailures.Add(1) }
func (s *stats) AddDuplicate()     { s.Duplicates.Add(1) }

// Snapshot is a point-in-time copy of the counters.
type Snapshot struct {
	FramesSent, FramesRecv int64
	BytesSent, BytesRecv   int64
	DecodeFailures         int64
	Duplicates             int64
}

func (s *stats) Snapshot() Snapshot {
	return Snapshot{
		FramesSent:     s.FramesSent.Load(),
		FramesRecv:     s.FramesRecv.Load(),
		BytesSent:      s.BytesSent.Load(),
		BytesRecv:      s.BytesRecv.Load(),
		DecodeFailures: s.DecodeFailures.Load(),
		Duplicates:     s.Duplicates.Load(),
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// Periodic reporter
// ──────────────────────────────────────────────────────────────────────────────

// StartStatsReporter launches a goroutine that logs frame statistics every
// interval while there is traffic. It stops when ctx is cancelled.
func StartStatsReporter(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		var prev Snapshot
		for {
			select {
			case <-ticker.C:
				cur := Stats.Snapshot()
				if cur != prev {
					pterm.DefaultLogger.Info(formatStats(cur.Sub(prev), interval))
				}
				prev = cur

			case <-ctx.Done():
				return
			}
		}
	}()
}

// Sub returns the per-field difference s - o.
func (s Snapshot) Sub(o Snapshot) Snapshot {
	return Snapshot{
		FramesSent:     s.FramesSent - o.FramesSent,
		FramesRecv:     s.FramesRecv - o.FramesRecv,
		BytesSent:      s.BytesSent - o.BytesSent,
		BytesRecv:      s.BytesRecv - o.BytesRecv,
		DecodeFailures: s.DecodeFailures - o.DecodeFailures,
		Duplicates:     s.Duplicates - o.Duplicates,
	}
}

// byteUnits defines the units for formatting byte counts in a human-readable way.
var byteUnits = []string{"B", "KiB", "MiB", "GiB", "TiB", "PiB"}

// formatBytes formats a byte count into a fixed-width (8 chars) string,
// e.g. "99.0   B", " 1.5 KiB".
func formatBytes(b float64) string {
	unitIdx := 0

	// to prevent "100.0 KiB", which is 9 chars
	for b > 99 && unitIdx < 5 {
		b /= 1024
		unitIdx++
	}

	return fmt.Sprintf("%4.1f %3s", b, byteUnits[unitIdx])
}

// formatStats renders one reporting window for the logger.
func formatStats(d Snapshot, window time.Duration) string {
	secs := window.Seconds()
	return fmt.Sprintf("Tx: %3d frames %s/s | Rx: %3d frames %s/s | bad: %d | dup: %d",
		d.FramesSent, formatBytes(float64(d.BytesSent)/secs),
		d.FramesRecv, formatBytes(float64(d.BytesRecv)/secs),
		d.DecodeFailures,
		d.Duplicates,
	)
}
