// Package handle implements the value-typed weak reference handles that
// let application code hold onto an entity or IO handler across
// callback boundaries without extending its lifetime.
//
// A Handle[T] never keeps T alive. Every operation upgrades the weak
// reference to a strong one for the duration of the call; if the target
// has already been collected, the upgrade fails with neterr.HandleExpired.
package handle

import (
	"unsafe"
	"weak"

	"github.com/pkopriv2/netio/neterr"
)

// Handle is a cheap-to-copy, comparable, hashable, weak reference to a
// *T. The zero value is a "default-constructed" handle: it compares
// equal to every other default-constructed handle and upgrades to
// neterr.HandleExpired, like every other expired handle.
type Handle[T any] struct {
	ptr  weak.Pointer[T]
	addr uintptr // for Less only; never dereferenced.
}

// Wrap builds a Handle observing target. target must be kept alive by a
// strong reference held elsewhere (its owning entity or an in-flight
// async continuation) for the handle to remain valid.
func Wrap[T any](target *T) Handle[T] {
	return Handle[T]{
		ptr:  weak.Make(target),
		addr: uintptr(unsafe.Pointer(target)),
	}
}

// Upgrade attempts to recover a strong reference to the handle's target.
// Returns neterr.HandleExpired if the target has been collected.
func (h Handle[T]) Upgrade() (*T, error) {
	if v := h.ptr.Value(); v != nil {
		return v, nil
	}
	return nil, neterr.New(neterr.HandleExpired)
}

// Valid reports whether the handle currently upgrades successfully.
// Racy by nature (the target may be collected immediately after this
// returns true); callers that need a strong reference should call
// Upgrade directly rather than checking Valid first.
func (h Handle[T]) Valid() bool {
	_, err := h.Upgrade()
	return err == nil
}

// Equal reports whether h and other reference the same underlying
// target (identity, not value, equality).
func (h Handle[T]) Equal(other Handle[T]) bool {
	return h.ptr == other.ptr
}

// Less provides a total order over handles by original pointer address,
// so handles can be stored in ordered containers. A default-constructed
// handle sorts before every valid handle.
func (h Handle[T]) Less(other Handle[T]) bool {
	return h.addr < other.addr
}
