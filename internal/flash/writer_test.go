// SPDX-License-Identifier: MIT
package flash

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testBins = 8

func testMeans() []float32 {
	return []float32{0, 0, 0, 10.5, 20.25, 30.125, 40, 50}
}

func TestWriterPersistStoresRecord(t *testing.T) {
	store := NewMemStore(64)
	w, err := NewWriter(store, testBins, 0, time.Second)
	require.NoError(t, err)

	means := testMeans()
	require.NoError(t, w.Persist(context.Background(), means))

	want := make([]byte, RecordLength(testBins))
	require.NoError(t, MarshalRecord(means, want))
	assert.Equal(t, want, store.Bytes()[:len(want)])
	assert.Equal(t, 1, store.Writes)
}

func TestWriterPersistAtOffset(t *testing.T) {
	store := NewMemStore(128)
	w, err := NewWriter(store, testBins, 16, time.Second)
	require.NoError(t, err)

	means := testMeans()
	require.NoError(t, w.Persist(context.Background(), means))

	want := make([]byte, RecordLength(testBins))
	require.NoError(t, MarshalRecord(means, want))
	assert.Equal(t, want, store.Bytes()[16:16+len(want)])
}

func TestWriterTimeoutWhenCompletionNeverFires(t *testing.T) {
	store := NewMemStore(64)
	store.DropCompletions = true

	w, err := NewWriter(store, testBins, 0, 30*time.Millisecond)
	require.NoError(t, err)

	err = w.Persist(context.Background(), testMeans())
	assert.ErrorIs(t, err, ErrCompletionTimeout)
}

func TestWriterSynchronousRequestFailure(t *testing.T) {
	store := NewMemStore(64)
	w, err := NewWriter(store, testBins, 0, time.Second)
	require.NoError(t, err)

	injected := errors.New("bus fault")
	store.WriteErr = injected

	err = w.Persist(context.Background(), testMeans())
	assert.ErrorIs(t, err, injected)
}

func TestWriterRejectsWrongBinCount(t *testing.T) {
	store := NewMemStore(64)
	w, err := NewWriter(store, testBins, 0, time.Second)
	require.NoError(t, err)

	assert.Error(t, w.Persist(context.Background(), make([]float32, testBins-1)))
	assert.Zero(t, store.Writes, "no request may be issued for a mis-sized vector")
}

func TestWriterSetupFailureIsFatal(t *testing.T) {
	store := NewMemStore(64)
	require.NoError(t, store.Close())

	_, err := NewWriter(store, testBins, 0, time.Second)
	assert.ErrorIs(t, err, ErrStoreClosed)
}

func TestWriterSingleOutstandingRequest(t *testing.T) {
	store := NewMemStore(64)
	store.Latency = 50 * time.Millisecond

	w, err := NewWriter(store, testBins, 0, time.Second)
	require.NoError(t, err)

	first := make(chan error, 1)
	go func() { first <- w.Persist(context.Background(), testMeans()) }()

	// Give the first persist time to issue its request and block.
	time.Sleep(10 * time.Millisecond)
	err = w.Persist(context.Background(), testMeans())
	assert.Error(t, err, "second persist while one is outstanding must be refused")

	require.NoError(t, <-first)
	assert.Equal(t, 1, store.Writes)
}

func TestWriterReaderRoundTripThroughFileStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.flash")
	store, err := OpenFileStore(path)
	require.NoError(t, err)
	defer store.Close()

	w, err := NewWriter(store, testBins, 0, time.Second)
	require.NoError(t, err)
	r, err := NewReader(store, testBins, 0, time.Second)
	require.NoError(t, err)

	means := testMeans()
	require.NoError(t, w.Persist(context.Background(), means))

	out := make([]float32, testBins)
	require.NoError(t, r.Read(context.Background(), out))
	assert.Equal(t, means, out)
}
