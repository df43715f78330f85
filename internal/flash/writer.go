// SPDX-License-Identifier: MIT
package flash

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	applog "spectrad/internal/log"
)

// Writer is the persistence adapter for aggregate records. It owns the
// registered write buffer and the completion rendezvous, serializes a
// snapshot of the per-bin means, issues the asynchronous write, and blocks
// the calling task until the store reports completion.
//
// A Writer supports exactly one outstanding write; Persist enforces that.
type Writer struct {
	store      NonvolatileStore
	record     []byte // Registered write buffer, RecordLength(bins) bytes
	rendezvous *Rendezvous
	offset     int64
	timeout    time.Duration
	inFlight   atomic.Bool
}

// NewWriter registers a record-sized write buffer and the completion
// callback with the store. Registration or subscription failure is
// returned; callers must treat it as fatal at startup.
func NewWriter(store NonvolatileStore, bins int, offset int64, timeout time.Duration) (*Writer, error) {
	if bins <= 0 {
		return nil, fmt.Errorf("flash: writer bin count must be > 0, got %d", bins)
	}
	if timeout <= 0 {
		return nil, fmt.Errorf("flash: writer timeout must be positive, got %s", timeout)
	}

	w := &Writer{
		store:      store,
		record:     make([]byte, RecordLength(bins)),
		rendezvous: NewRendezvous(),
		offset:     offset,
		timeout:    timeout,
	}

	if err := store.RegisterWriteBuffer(w.record); err != nil {
		return nil, fmt.Errorf("flash: register write buffer: %w", err)
	}
	if err := store.SubscribeWriteDone(w.writeDone); err != nil {
		return nil, fmt.Errorf("flash: subscribe write done: %w", err)
	}

	return w, nil
}

// writeDone is the completion callback registered with the store. The
// opaque argument slots are unused beyond the rendezvous signal.
func (w *Writer) writeDone(length, _, _ int) {
	w.rendezvous.Signal(length)
}

// Persist serializes the means into the registered buffer, issues the
// asynchronous write, and blocks until completion or the bounded wait
// expires. A synchronous error from the write request is fatal for the
// cycle and is returned wrapped; ErrCompletionTimeout identifies a write
// that was accepted but never completed.
func (w *Writer) Persist(ctx context.Context, means []float32) error {
	if !w.inFlight.CompareAndSwap(false, true) {
		return fmt.Errorf("flash: persist called with a write already outstanding")
	}
	defer w.inFlight.Store(false)

	if err := MarshalRecord(means, w.record); err != nil {
		return err
	}

	// Clear the slot before the request: a completion from a previous
	// cycle must not satisfy this cycle's wait.
	w.rendezvous.Begin()

	if err := w.store.RequestWrite(w.offset, len(w.record)); err != nil {
		return fmt.Errorf("flash: write request failed: %w", err)
	}

	n, err := w.rendezvous.Await(ctx, w.timeout)
	if err != nil {
		return err
	}
	if n != len(w.record) {
		applog.Warnf("flash: short write reported: %d of %d bytes", n, len(w.record))
	}
	return nil
}

// RecordLength returns the size of the registered record buffer.
func (w *Writer) RecordLength() int { return len(w.record) }
