// SPDX-License-Identifier: MIT
/*
Package transport publishes live aggregate snapshots to observers while the
pipeline keeps running: a websocket broadcast for dashboards and a periodic
UDP publisher for metric collectors. Publishing is best effort and never
blocks or fails the pipeline.
*/
package transport

// SnapshotProvider hands out a consistent copy of the latest per-bin
// running means. Implementations must be safe to call concurrently with
// the pipeline's own updates.
type SnapshotProvider interface {
	Snapshot(dst []float32) error
	Bins() int
}

// Transport delivers one aggregate snapshot to its observers.
// Implementations should be thread-safe.
type Transport interface {
	Send(means []float32) error
	Close() error
}
