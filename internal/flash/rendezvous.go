// SPDX-License-Identifier: MIT
package flash

import (
	"context"
	"errors"
	"time"
)

// ErrCompletionTimeout is returned by Await when a transfer accepted by the
// store never reports completion within the bound, turning a wedged store
// into a visible error instead of an unbounded wait.
var ErrCompletionTimeout = errors.New("flash: transfer completion timed out")

// Rendezvous is a single-slot synchronization point between a waiting task
// and one asynchronous completion. Begin clears the slot before a request
// is issued, the completion callback calls Signal exactly once, and Await
// releases the waiter. One outstanding transfer per rendezvous; it is not a
// general-purpose queue.
type Rendezvous struct {
	slot chan int
}

// NewRendezvous creates an empty rendezvous.
func NewRendezvous() *Rendezvous {
	return &Rendezvous{slot: make(chan int, 1)}
}

// Begin clears any stale completion from the slot. Call immediately before
// issuing the paired request.
func (r *Rendezvous) Begin() {
	select {
	case <-r.slot:
	default:
	}
}

// Signal records a completion carrying the transferred length. Safe to call
// from the store's completion context. A second Signal without an
// intervening Begin/Await is dropped rather than blocking the caller.
func (r *Rendezvous) Signal(length int) {
	select {
	case r.slot <- length:
	default:
	}
}

// Await blocks until the paired Signal arrives, the timeout elapses, or the
// context is cancelled. Returns the transferred length on success.
func (r *Rendezvous) Await(ctx context.Context, timeout time.Duration) (int, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case n := <-r.slot:
		return n, nil
	case <-timer.C:
		return 0, ErrCompletionTimeout
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}
