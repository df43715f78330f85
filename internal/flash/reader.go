// SPDX-License-Identifier: MIT
package flash

import (
	"context"
	"fmt"
	"time"
)

// Reader is the read-side counterpart of Writer: it owns a registered read
// buffer and rendezvous and recovers a previously persisted aggregate
// record. Used by the flash demo's write-then-read-back verification and by
// anything inspecting the last durable record.
type Reader struct {
	store      NonvolatileStore
	record     []byte
	rendezvous *Rendezvous
	offset     int64
	timeout    time.Duration
}

// NewReader registers a record-sized read buffer and completion callback
// with the store. Like the writer, setup failure is fatal.
func NewReader(store NonvolatileStore, bins int, offset int64, timeout time.Duration) (*Reader, error) {
	if bins <= 0 {
		return nil, fmt.Errorf("flash: reader bin count must be > 0, got %d", bins)
	}
	if timeout <= 0 {
		return nil, fmt.Errorf("flash: reader timeout must be positive, got %s", timeout)
	}

	r := &Reader{
		store:      store,
		record:     make([]byte, RecordLength(bins)),
		rendezvous: NewRendezvous(),
		offset:     offset,
		timeout:    timeout,
	}

	if err := store.RegisterReadBuffer(r.record); err != nil {
		return nil, fmt.Errorf("flash: register read buffer: %w", err)
	}
	if err := store.SubscribeReadDone(r.readDone); err != nil {
		return nil, fmt.Errorf("flash: subscribe read done: %w", err)
	}

	return r, nil
}

func (r *Reader) readDone(length, _, _ int) {
	r.rendezvous.Signal(length)
}

// Read recovers the persisted record into means, blocking until the store
// reports completion or the bounded wait expires.
func (r *Reader) Read(ctx context.Context, means []float32) error {
	if len(means)*4 != len(r.record) {
		return fmt.Errorf("flash: read into %d bins, reader sized for %d", len(means), len(r.record)/4)
	}

	r.rendezvous.Begin()
	if err := r.store.RequestRead(r.offset, len(r.record)); err != nil {
		return fmt.Errorf("flash: read request failed: %w", err)
	}
	if _, err := r.rendezvous.Await(ctx, r.timeout); err != nil {
		return err
	}
	return UnmarshalRecord(r.record, means)
}
