// Package util provides logging, counters and small helpers shared by the
// link and CLI layers.
package util

import (
	"hash/fnv"
	"net"
)

// PeerTag computes a 4-byte tag from a connection's endpoints for log lines.
// It is an identifier only and is not reversible.
func PeerTag(local, remote net.Addr) uint32 {
	h := fnv.New32a()
	if local != nil {
		h.Write([]byte(local.String()))
	}
	if remote != nil {
		h.Write([]byte(remote.String()))
	}
	return h.Sum32()
}
