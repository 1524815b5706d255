package ops

import (
	"errors"
	"sync/atomic"
)

// ErrBusy rejects a single-flight submission while another device
// operation is still in flight. Callers retry later; requests are never
// queued.
var ErrBusy = errors.New("another device operation is already in progress")

// Guard is the single-flight slot shared by device-list, identity and
// connection operations. Acquisition is an atomic compare-and-swap, so
// the check and the set cannot interleave between callers.
type Guard struct {
	busy atomic.Bool
}

// TryAcquire claims the slot, reporting false when it is already held.
func (g *Guard) TryAcquire() bool {
	return g.busy.CompareAndSwap(false, true)
}

// Release frees the slot for the next operation.
func (g *Guard) Release() {
	g.busy.Store(false)
}
