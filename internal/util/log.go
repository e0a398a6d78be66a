package util

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/pterm/pterm"
)

func init() {
	pterm.DefaultLogger.ShowTime = true
	pterm.DefaultLogger.TimeFormat = "02 Jan 15:04:05"
	pterm.DefaultLogger.MaxWidth = 1000
}

// Leveled logging functions backed by the pterm default logger (stderr).

func LogDebug(format string, args ...interface{}) {
	pterm.DefaultLogger.Debug(fmt.Sprintf(format, args...))
}

func LogInfo(format string, args ...interface{}) {
	pterm.DefaultLogger.Info(fmt.Sprintf(format, args...))
}

func LogSuccess(format string, args ...interface{}) {
	pterm.DefaultLogger.Info(fmt.Sprintf(format, args...))
}

func LogWarning(format string, args ...interface{}) {
	pterm.DefaultLogger.Warn(fmt.Sprintf(format, args...))
}

func LogError(format string, args ...interface{}) {
	pterm.DefaultLogger.Error(fmt.Sprintf(format, args...))
}

// LogFrame dumps a raw frame at debug level, e.g. "rx 27 bytes: 0101...".
func LogFrame(direction string, frame []byte) {
	if pterm.DefaultLogger.Level > pterm.LogLevelDebug {
		return
	}
	pterm.DefaultLogger.Debug(fmt.Sprintf("%s %d bytes: %s", direction, len(frame), HexPreview(frame, 64)))
}

// HexPreview renders at most max bytes of b as hex, marking elided bytes.
func HexPreview(b []byte, max int) string {
	if len(b) <= max {
		return hex.EncodeToString(b)
	}
	var sb strings.Builder
	sb.WriteString(hex.EncodeToString(b[:max]))
	fmt.Fprintf(&sb, "…(+%d)", len(b)-max)
	return sb.String()
}

// EnableDebug configures the logger to show debug messages.
func EnableDebug() {
	pterm.DefaultLogger.Level = pterm.LogLevelDebug
}
