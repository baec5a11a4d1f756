// Package store provides byte-accounted storage for owned values.
package store

// Value reports its memory footprint for eviction accounting.
type Value interface {
	Len() int
}

// Store holds values by key. Every value that leaves the store, whether by
// Delete, overwrite, eviction, Clear or Close, is handed to OnEvicted exactly
// once, so the store can act as an owner.
type Store interface {
	Get(key string) (Value, bool)

	// Set stores value under key. A nil value deletes the key.
	Set(key string, value Value) error

	Delete(key string) bool

	Clear()

	Len() int

	// UsedBytes is the accounted size of keys and values.
	UsedBytes() int64

	// Close removes every value; the store must not be used afterwards.
	Close()
}

// Options configures a Store.
type Options struct {
	MaxBytes  int64 // 0 means unbounded
	OnEvicted func(key string, value Value)
}

// NewOptions returns an 8KB store with no eviction hook.
func NewOptions() Options {
	return Options{
		MaxBytes:  8192, // 8KB
		OnEvicted: nil,
	}
}

// NewStore builds the LRU store.
func NewStore(options Options) Store {
	return newLRUCache(options)
}
