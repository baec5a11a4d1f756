// Package alloc provides the raw-memory allocators that text values draw their
// buffers from.
package alloc

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

// ErrOutOfMemory is returned when an allocator cannot satisfy a request.
var ErrOutOfMemory = errors.New("out of memory")

// Allocator hands out zeroed byte buffers and takes them back.
//
// Alloc(1) must never fail: a terminator-only buffer is what a moved-from value
// is reset to, and that reset cannot report an error. Budgets apply to the bytes
// beyond that single slot.
type Allocator interface {
	// Alloc returns a zeroed buffer of exactly n bytes.
	Alloc(n int) ([]byte, error)
	// Free returns a buffer obtained from Alloc. Each buffer is freed once.
	Free(b []byte)
}

// Default is used wherever a nil Allocator is supplied. It is configured from
// TEXTVALUE_ALLOC_LIMIT and TEXTVALUE_LOG_LEVEL when the package loads.
var Default = newDefaultHeap()

// Heap allocates from the Go heap and counts every allocation and release.
// The counters are atomic, so one Heap may back values on many goroutines.
type Heap struct {
	limit   int64 // 0 means unlimited
	held    int64 // live bytes beyond each buffer's terminator slot
	allocs  int64
	frees   int64
	live    int64
	peak    int64
	refused int64
	log     *logrus.Entry
}

// Stats is a point-in-time copy of a Heap's counters.
type Stats struct {
	Allocs    int64
	Frees     int64
	LiveBytes int64
	HeldBytes int64
	PeakBytes int64
	Refused   int64
	Limit     int64
}

// NewHeap creates a counting allocator. A positive limit caps the live bytes
// held beyond the terminator slot of each buffer.
func NewHeap(limit int64) *Heap {
	if limit < 0 {
		limit = 0
	}
	return &Heap{
		limit: limit,
		log:   logrus.WithField("component", "alloc"),
	}
}

// Alloc implements Allocator.
func (h *Heap) Alloc(n int) ([]byte, error) {
	if n < 1 {
		return nil, fmt.Errorf("alloc: invalid size %d", n)
	}
	content := int64(n - 1)
	if limit := atomic.LoadInt64(&h.limit); limit > 0 && content > 0 {
		for {
			held := atomic.LoadInt64(&h.held)
			if held+content > limit {
				atomic.AddInt64(&h.refused, 1)
				h.log.Warnf("refused %d bytes: %d held, limit %d", n, held, limit)
				return nil, fmt.Errorf("alloc %d bytes: %w", n, ErrOutOfMemory)
			}
			if atomic.CompareAndSwapInt64(&h.held, held, held+content) {
				break
			}
		}
	} else {
		atomic.AddInt64(&h.held, content)
	}
	atomic.AddInt64(&h.live, int64(n))
	atomic.AddInt64(&h.allocs, 1)
	h.notePeak()
	h.log.Debugf("alloc %d bytes", n)
	return make([]byte, n), nil
}

// Free implements Allocator. A nil buffer is ignored.
func (h *Heap) Free(b []byte) {
	if b == nil {
		return
	}
	if len(b) > 1 {
		atomic.AddInt64(&h.held, -int64(len(b)-1))
	}
	atomic.AddInt64(&h.live, -int64(len(b)))
	atomic.AddInt64(&h.frees, 1)
	h.log.Debugf("free %d bytes", len(b))
}

// SetLimit changes the budget; 0 removes it. Live buffers are not affected.
func (h *Heap) SetLimit(limit int64) {
	if limit < 0 {
		limit = 0
	}
	atomic.StoreInt64(&h.limit, limit)
}

// Stats returns a snapshot of the counters.
func (h *Heap) Stats() Stats {
	return Stats{
		Allocs:    atomic.LoadInt64(&h.allocs),
		Frees:     atomic.LoadInt64(&h.frees),
		LiveBytes: atomic.LoadInt64(&h.live),
		HeldBytes: atomic.LoadInt64(&h.held),
		PeakBytes: atomic.LoadInt64(&h.peak),
		Refused:   atomic.LoadInt64(&h.refused),
		Limit:     atomic.LoadInt64(&h.limit),
	}
}

// Balanced reports whether every allocation has been released.
func (h *Heap) Balanced() bool {
	s := h.Stats()
	return s.Allocs == s.Frees && s.LiveBytes == 0
}

func (h *Heap) notePeak() {
	for {
		live := atomic.LoadInt64(&h.live)
		peak := atomic.LoadInt64(&h.peak)
		if live <= peak || atomic.CompareAndSwapInt64(&h.peak, peak, live) {
			return
		}
	}
}

