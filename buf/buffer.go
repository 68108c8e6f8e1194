// Package buf implements the reference-counted byte container that the
// rest of netio uses to move bytes between the output queue and the
// socket write path without copying.
package buf

import (
	"github.com/pkopriv2/netio/utils"
)

// SharedBuffer is an immutable-once-frozen, reference-counted, contiguous
// byte container. Cloning is O(1); it never copies the underlying bytes.
//
// Once Freeze has been called (or the buffer was built with NewImmutable),
// callers must never mutate the slice returned by Bytes.
type SharedBuffer struct {
	raw    []byte
	frozen bool
	refs   *utils.AtomicCounter
}

// Wrap builds a mutable SharedBuffer around p. The caller retains write
// access to p until Freeze is called; after that, p must be treated as
// read-only by every holder.
func Wrap(p []byte) *SharedBuffer {
	ctr := utils.NewAtomicCounter()
	ctr.Inc()
	return &SharedBuffer{raw: p, refs: ctr}
}

// NewImmutable copies p into a new, already-frozen SharedBuffer.
func NewImmutable(p []byte) *SharedBuffer {
	cp := make([]byte, len(p))
	copy(cp, p)
	b := Wrap(cp)
	b.frozen = true
	return b
}

// Freeze marks the buffer immutable. Idempotent.
func (b *SharedBuffer) Freeze() *SharedBuffer {
	b.frozen = true
	return b
}

// Frozen reports whether the buffer has been frozen.
func (b *SharedBuffer) Frozen() bool {
	return b.frozen
}

// Len returns the number of bytes in the buffer.
func (b *SharedBuffer) Len() int {
	return len(b.raw)
}

// Bytes returns the underlying bytes. Callers of a frozen buffer must not
// mutate the returned slice; callers that need to retain the bytes past
// the lifetime of the current call must copy them.
func (b *SharedBuffer) Bytes() []byte {
	return b.raw
}

// Slice returns a new SharedBuffer sharing this buffer's backing array
// over [lo:hi), bumping the shared refcount. The result inherits this
// buffer's frozen state.
func (b *SharedBuffer) Slice(lo, hi int) *SharedBuffer {
	b.refs.Inc()
	return &SharedBuffer{raw: b.raw[lo:hi], frozen: b.frozen, refs: b.refs}
}

// Clone returns a new handle to the same backing bytes, bumping the
// shared refcount. O(1); no bytes are copied.
func (b *SharedBuffer) Clone() *SharedBuffer {
	b.refs.Inc()
	return &SharedBuffer{raw: b.raw, frozen: b.frozen, refs: b.refs}
}

// Release drops this handle's reference. The backing array is left for
// the garbage collector once the last reference is released; Release
// exists so callers can track outstanding-write lifetimes explicitly
// (e.g. OutputQueue releasing a buffer once its async write completes).
func (b *SharedBuffer) Release() int {
	return b.refs.Dec()
}
