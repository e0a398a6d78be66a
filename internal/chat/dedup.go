package chat

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/allegro/bigcache/v3"

	"github.com/1ureka/bitchat/internal/util"
)

// Dedup remembers message UIDs for a time window so that a message relayed
// along several paths is shown once.
type Dedup struct {
	mu    sync.Mutex
	cache *bigcache.BigCache
}

// NewDedup creates a UID cache whose entries expire after window. The
// cache's cleanup goroutine stops when ctx is cancelled or Close is called.
func NewDedup(ctx context.Context, window time.Duration) (*Dedup, error) {
	conf := bigcache.DefaultConfig(window)
	conf.Shards = 64
	conf.MaxEntriesInWindow = 4096
	conf.MaxEntrySize = 64
	conf.HardMaxCacheSize = 8 // MB
	conf.Verbose = false
	if window < 2*time.Second {
		conf.CleanWindow = window / 2
	}

	cache, err := bigcache.New(ctx, conf)
	if err != nil {
		return nil, fmt.Errorf("create dedup cache: %w", err)
	}
	return &Dedup{cache: cache}, nil
}

// Seen reports whether uid was recorded earlier in the window and records
// it otherwise. Empty UIDs are never treated as duplicates.
func (d *Dedup) Seen(uid string) bool {
	if uid == "" {
		return false
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	_, err := d.cache.Get(uid)
	switch {
	case err == nil:
		return true
	case !errors.Is(err, bigcache.ErrEntryNotFound):
		return false
	}
	if err := d.cache.Set(uid, []byte{1}); err != nil {
		util.LogWarning("dedup: cannot remember %d-byte uid: %v", len(uid), err)
	}
	return false
}

// Len returns the number of UIDs currently remembered.
func (d *Dedup) Len() int {
	return d.cache.Len()
}

func (d *Dedup) Close() error {
	return d.cache.Close()
}
