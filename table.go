package textvalue

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"textvalue/alloc"
	"textvalue/store"
)

// ErrKeyRequired is returned for an empty key.
var ErrKeyRequired = errors.New("key is required")

// ErrValueRequired is returned when Put is given a nil Text.
var ErrValueRequired = errors.New("value is required")

// ErrValueTooLarge is returned when a key and value alone exceed MaxBytes.
var ErrValueTooLarge = errors.New("value exceeds table capacity")

// ErrTableClosed is returned once the table has been closed.
var ErrTableClosed = errors.New("table closed")

// TableOptions configures a Table.
type TableOptions struct {
	Allocator alloc.Allocator // used for copies handed out by Get
	MaxBytes  int64           // 0 means unbounded
}

// DefaultTableOptions returns an 8MB table backed by alloc.Default, which is
// configured from the environment.
func DefaultTableOptions() TableOptions {
	return TableOptions{
		Allocator: alloc.Default,
		MaxBytes:  8 * 1024 * 1024,
	}
}

// Table owns Text values by key. Values enter by move and leave by release:
// whatever is deleted, replaced, evicted or still held at Close is released
// exactly once. Get hands out deep copies, so callers never alias table memory.
type Table struct {
	mu       sync.RWMutex
	store    store.Store
	alloc    alloc.Allocator
	maxBytes int64
	hits     int64
	misses   int64
	released int64
	closed   int32
}

// NewTable creates an empty table. A nil Allocator means alloc.Default.
func NewTable(opts TableOptions) *Table {
	t := &Table{alloc: opts.Allocator, maxBytes: opts.MaxBytes}
	if t.alloc == nil {
		t.alloc = alloc.Default
	}
	storeOpts := store.NewOptions()
	storeOpts.MaxBytes = opts.MaxBytes
	storeOpts.OnEvicted = t.onEvicted
	t.store = store.NewStore(storeOpts)
	logrus.Infof("text table created, max bytes %d", opts.MaxBytes)
	return t
}

func (t *Table) onEvicted(key string, value store.Value) {
	if txt, ok := value.(*Text); ok {
		txt.Release()
		atomic.AddInt64(&t.released, 1)
		return
	}
	logrus.Warnf("table value for key %s is not a Text", key)
}

// Put moves v into the table under key. v is left empty but still belongs to
// the caller, who remains responsible for releasing it. When Put returns an
// error, v is untouched.
func (t *Table) Put(key string, v *Text) error {
	if key == "" {
		return ErrKeyRequired
	}
	if v == nil {
		return ErrValueRequired
	}
	if t.maxBytes > 0 && int64(len(key)+v.Len()) > t.maxBytes {
		return ErrValueTooLarge
	}
	if atomic.LoadInt32(&t.closed) == 1 {
		return ErrTableClosed
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if atomic.LoadInt32(&t.closed) == 1 {
		return ErrTableClosed
	}
	owned := Move(v)
	if err := t.store.Set(key, owned); err != nil {
		owned.Release()
		logrus.Warnf("failed to put key %s: %v", key, err)
		return err
	}
	return nil
}

// Get returns a copy of the value under key. The copy is owned by the caller.
func (t *Table) Get(key string) (*Text, bool, error) {
	if key == "" {
		return nil, false, ErrKeyRequired
	}
	if atomic.LoadInt32(&t.closed) == 1 {
		return nil, false, ErrTableClosed
	}
	t.mu.RLock()
	defer t.mu.RUnlock()

	val, ok := t.store.Get(key)
	if !ok {
		atomic.AddInt64(&t.misses, 1)
		return nil, false, nil
	}
	src := val.(*Text)
	cp, err := FromBytes(t.alloc, src.Bytes())
	if err != nil {
		return nil, false, err
	}
	atomic.AddInt64(&t.hits, 1)
	return cp, true, nil
}

// Delete removes and releases the value under key.
func (t *Table) Delete(key string) bool {
	if atomic.LoadInt32(&t.closed) == 1 {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.store.Delete(key)
}

// Len returns the number of values the table owns.
func (t *Table) Len() int {
	if atomic.LoadInt32(&t.closed) == 1 {
		return 0
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.store.Len()
}

// Close releases every value and freezes the table.
func (t *Table) Close() {
	if !atomic.CompareAndSwapInt32(&t.closed, 0, 1) {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.store.Close()
	logrus.Infof("text table closed, hits:%d, misses:%d, released:%d",
		atomic.LoadInt64(&t.hits), atomic.LoadInt64(&t.misses), atomic.LoadInt64(&t.released))
}

// Stats exposes table-level counters and, for a counting allocator, its totals.
func (t *Table) Stats() map[string]interface{} {
	stats := map[string]interface{}{
		"hits":     atomic.LoadInt64(&t.hits),
		"misses":   atomic.LoadInt64(&t.misses),
		"released": atomic.LoadInt64(&t.released),
		"closed":   atomic.LoadInt32(&t.closed) == 1,
	}
	if atomic.LoadInt32(&t.closed) == 0 {
		t.mu.RLock()
		stats["size"] = t.store.Len()
		stats["used_bytes"] = t.store.UsedBytes()
		t.mu.RUnlock()
	}
	if h, ok := t.alloc.(*alloc.Heap); ok {
		s := h.Stats()
		stats["allocs"] = s.Allocs
		stats["frees"] = s.Frees
		stats["live_bytes"] = s.LiveBytes
	}
	return stats
}
