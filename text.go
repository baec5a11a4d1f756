// Package textvalue provides Text, a byte string that owns its buffer
// explicitly, and Table, a keyed container that takes ownership of Texts.
package textvalue

import (
	"bytes"

	"textvalue/alloc"
)

// terminator ends every buffer so View can be handed to APIs that expect a
// terminated sequence.
const terminator = 0

// Text is a byte string that exclusively owns one buffer obtained from an
// alloc.Allocator. The buffer holds n content bytes followed by a terminator.
//
// Ownership is explicit: Clone makes a deep copy, Move transfers the buffer, and
// Release hands it back to the allocator. A Text is not safe for concurrent use.
// The zero value owns nothing and behaves as a released Text; the read methods
// and Equal/Compare treat a nil *Text the same way.
type Text struct {
	buf   []byte // len(buf) == n+1, buf[n] == terminator
	n     int
	alloc alloc.Allocator
}

// New returns an empty Text owning a terminator-only buffer.
func New(a alloc.Allocator) (*Text, error) {
	return FromBytes(a, nil)
}

// FromBytes copies a terminated sequence into a new Text. The content ends at
// the first terminator byte in src, or at the end of src when there is none.
// A nil src yields the same value as New.
func FromBytes(a alloc.Allocator, src []byte) (*Text, error) {
	if a == nil {
		a = alloc.Default
	}
	n := measure(src)
	buf, err := a.Alloc(n + 1)
	if err != nil {
		return nil, err
	}
	copy(buf, src[:n])
	buf[n] = terminator
	logger.Debugf("construct %d bytes", n)
	return &Text{buf: buf, n: n, alloc: a}, nil
}

// FromString is FromBytes for a Go string.
func FromString(a alloc.Allocator, s string) (*Text, error) {
	return FromBytes(a, []byte(s))
}

// Clone returns a deep copy of t backed by the same allocator. The copy shares
// no memory with t. A released t clones to an empty Text.
func (t *Text) Clone() (*Text, error) {
	return FromBytes(t.allocator(), t.Bytes())
}

// Move transfers src's buffer to a new Text without copying content. src is
// reset to a fresh empty buffer and remains usable and releasable. src must
// not be nil.
//
// Move never fails: the reset only needs a terminator-only buffer, which every
// Allocator is required to provide.
func Move(src *Text) *Text {
	a := src.allocator()
	if src.buf == nil {
		src.buf, src.n = emptyBuffer(a), 0
	}
	dst := &Text{buf: src.buf, n: src.n, alloc: a}
	src.buf, src.n, src.alloc = emptyBuffer(a), 0, a
	logger.Debugf("move %d bytes", dst.n)
	return dst
}

// Release returns the buffer to its allocator. Releasing twice is a no-op.
func (t *Text) Release() {
	if t.buf == nil {
		return
	}
	t.allocator().Free(t.buf)
	logger.Debugf("release %d bytes", t.n)
	t.buf, t.n = nil, 0
}

// Assign commits replacement into t by swapping their state, then releases
// replacement, which now holds what t used to own.
//
// Build replacement with Clone for copy assignment or with Move for move
// assignment; Assign itself cannot fail, so a failure while building leaves t
// untouched. t.Assign(t) leaves t as it was.
func (t *Text) Assign(replacement *Text) {
	if replacement == t {
		return
	}
	t.swap(replacement)
	replacement.Release()
}

// CopyFrom makes t a deep copy of src. If the copy cannot be allocated, t is
// unchanged. t.CopyFrom(t) leaves t as it was.
func (t *Text) CopyFrom(src *Text) error {
	tmp, err := src.Clone()
	if err != nil {
		return err
	}
	t.Assign(tmp)
	return nil
}

// MoveFrom transfers src's buffer to t and leaves src empty. t.MoveFrom(t)
// leaves t as it was.
func (t *Text) MoveFrom(src *Text) {
	t.Assign(Move(src))
}

// Append extends t with the terminated sequence src. A nil or empty src is a
// no-op. The concatenation is built in a new buffer before t is touched, so on
// failure t is unchanged.
func (t *Text) Append(src []byte) error {
	m := measure(src)
	if m == 0 {
		return nil
	}
	a := t.allocator()
	buf, err := a.Alloc(t.n + m + 1)
	if err != nil {
		return err
	}
	copy(buf, t.Bytes())
	copy(buf[t.n:], src[:m])
	buf[t.n+m] = terminator

	t.Assign(&Text{buf: buf, n: t.n + m, alloc: a})
	return nil
}

// Len returns the number of content bytes.
func (t *Text) Len() int {
	if t == nil {
		return 0
	}
	return t.n
}

// View returns the owned buffer including its terminator. The slice must not
// be modified and is invalidated by the next mutation or Release of t.
func (t *Text) View() []byte {
	if t == nil || t.buf == nil {
		return nil
	}
	return t.buf[:t.n+1]
}

// Bytes returns the content without the terminator, under the same rules as View.
func (t *Text) Bytes() []byte {
	if t == nil || t.buf == nil {
		return nil
	}
	return t.buf[:t.n]
}

// String renders the content without the terminator.
func (t *Text) String() string {
	return string(t.Bytes())
}

// Equal reports whether t and other hold the same content.
func (t *Text) Equal(other *Text) bool {
	return bytes.Equal(t.Bytes(), other.Bytes())
}

// Compare orders t and other byte-wise, returning -1, 0 or +1.
func (t *Text) Compare(other *Text) int {
	return bytes.Compare(t.Bytes(), other.Bytes())
}

func (t *Text) swap(other *Text) {
	t.buf, other.buf = other.buf, t.buf
	t.n, other.n = other.n, t.n
	t.alloc, other.alloc = other.alloc, t.alloc
}

func (t *Text) allocator() alloc.Allocator {
	if t == nil || t.alloc == nil {
		return alloc.Default
	}
	return t.alloc
}

func emptyBuffer(a alloc.Allocator) []byte {
	buf, err := a.Alloc(1)
	if err != nil {
		panic("textvalue: allocator refused a terminator-only buffer: " + err.Error())
	}
	buf[0] = terminator
	return buf
}

// measure returns the length of a terminated sequence.
func measure(src []byte) int {
	if i := bytes.IndexByte(src, terminator); i >= 0 {
		return i
	}
	return len(src)
}
