// SPDX-License-Identifier: MIT
package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spectrad/internal/adc"
	"spectrad/internal/analysis"
	"spectrad/internal/fft"
	"spectrad/internal/flash"
)

const (
	testWindowLen = 16
	testBins      = 8
	testSkip      = 3
)

// scriptedAcquirer fails a configured number of leading calls and fills
// later windows with a deterministic ramp.
type scriptedAcquirer struct {
	failFirst int
	calls     int
}

func (s *scriptedAcquirer) SampleBufferSync(ctx context.Context, channel, rate int, buf []uint16) error {
	s.calls++
	if s.calls <= s.failFirst {
		return adc.ErrSampleFailed
	}
	for i := range buf {
		buf[i] = uint16(1000 + 100*i)
	}
	return nil
}

func (s *scriptedAcquirer) Close() error { return nil }

func newTestDriver(t *testing.T, store *flash.MemStore, acquirer adc.Acquirer, windows int) *Driver {
	t.Helper()

	transform, err := fft.NewTransform(testWindowLen, testBins)
	require.NoError(t, err)
	aggregator, err := analysis.NewAggregator(testBins, testSkip)
	require.NoError(t, err)
	writer, err := flash.NewWriter(store, testBins, 0, time.Second)
	require.NoError(t, err)

	driver, err := New(Settings{
		Channel:         0,
		SampleRate:      10000,
		WindowLength:    testWindowLen,
		WindowsPerCycle: windows,
		CycleDelay:      time.Millisecond,
	}, acquirer, transform, aggregator, writer)
	require.NoError(t, err)
	return driver
}

func TestCycleSurvivesSamplingErrors(t *testing.T) {
	store := flash.NewMemStore(64)
	// First half of the cycle's acquisitions fail, the rest succeed.
	acquirer := &scriptedAcquirer{failFirst: 2}
	driver := newTestDriver(t, store, acquirer, 4)

	require.NoError(t, driver.runCycle(context.Background()))

	assert.Equal(t, 4, acquirer.calls, "every window must still be attempted")
	assert.Equal(t, 1, store.Writes, "cycle must proceed to persisting")
}

func TestCyclePersistsKnownSpectrum(t *testing.T) {
	store := flash.NewMemStore(64)
	acquirer := &scriptedAcquirer{}
	// One window of exactly one sub-window, so the aggregate equals the
	// transform output for the update range.
	driver := newTestDriver(t, store, acquirer, 1)

	require.NoError(t, driver.runCycle(context.Background()))

	// Reference magnitudes for the same synthetic window.
	window := make([]uint16, testWindowLen)
	for i := range window {
		window[i] = uint16(1000 + 100*i)
	}
	ref, err := fft.NewTransform(testWindowLen, testBins)
	require.NoError(t, err)
	mags, err := ref.Magnitudes(window)
	require.NoError(t, err)

	persisted := make([]float32, testBins)
	require.NoError(t, flash.UnmarshalRecord(store.Bytes()[:flash.RecordLength(testBins)], persisted))

	for bin := 0; bin < testSkip; bin++ {
		assert.Zero(t, persisted[bin], "bin %d below the skip range must stay untouched", bin)
	}
	for bin := testSkip; bin < testBins; bin++ {
		assert.Equal(t, float32(mags[bin]), persisted[bin], "bin %d", bin)
	}
}

func TestCyclePersistsEvenWhenAllSamplingFails(t *testing.T) {
	store := flash.NewMemStore(64)
	acquirer := &scriptedAcquirer{failFirst: 1 << 30}
	driver := newTestDriver(t, store, acquirer, 4)

	// The record is written regardless of sampling outcome, so the prior
	// aggregate is persisted unchanged.
	require.NoError(t, driver.runCycle(context.Background()))
	assert.Equal(t, 1, store.Writes)
}

func TestCycleFailsOnWriteRequestError(t *testing.T) {
	store := flash.NewMemStore(64)
	driver := newTestDriver(t, store, &scriptedAcquirer{}, 1)

	injected := errors.New("bus fault")
	store.WriteErr = injected

	err := driver.runCycle(context.Background())
	assert.ErrorIs(t, err, injected)
}

func TestCycleFailsOnCompletionTimeout(t *testing.T) {
	store := flash.NewMemStore(64)
	store.DropCompletions = true
	driver := newTestDriver(t, store, &scriptedAcquirer{}, 1)

	// Writer timeout is 1s in newTestDriver; rebuild with a short one.
	writer, err := flash.NewWriter(store, testBins, 0, 30*time.Millisecond)
	require.NoError(t, err)
	driver.writer = writer

	err = driver.runCycle(context.Background())
	assert.ErrorIs(t, err, flash.ErrCompletionTimeout)
}

func TestRunStopsOnContextCancel(t *testing.T) {
	store := flash.NewMemStore(64)
	driver := newTestDriver(t, store, &scriptedAcquirer{}, 1)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- driver.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after cancellation")
	}
}

func TestMeansCarryAcrossCycles(t *testing.T) {
	store := flash.NewMemStore(64)
	driver := newTestDriver(t, store, &scriptedAcquirer{}, 1)

	require.NoError(t, driver.runCycle(context.Background()))
	first := make([]float32, testBins)
	require.NoError(t, flash.UnmarshalRecord(store.Bytes()[:flash.RecordLength(testBins)], first))

	// Identical input in the second cycle with the count restarted at 1:
	// the persisted record must equal the first cycle's, demonstrating
	// that carried-over means are replaced, not blended.
	require.NoError(t, driver.runCycle(context.Background()))
	second := make([]float32, testBins)
	require.NoError(t, flash.UnmarshalRecord(store.Bytes()[:flash.RecordLength(testBins)], second))

	assert.Equal(t, first, second)
}

func TestNewRejectsGeometryMismatch(t *testing.T) {
	store := flash.NewMemStore(64)
	transform, err := fft.NewTransform(testWindowLen, testBins)
	require.NoError(t, err)
	aggregator, err := analysis.NewAggregator(4, 1) // Wrong bin count
	require.NoError(t, err)
	writer, err := flash.NewWriter(store, testBins, 0, time.Second)
	require.NoError(t, err)

	_, err = New(Settings{
		SampleRate:      1000,
		WindowLength:    testWindowLen,
		WindowsPerCycle: 1,
	}, &scriptedAcquirer{}, transform, aggregator, writer)
	assert.Error(t, err)
}

func TestNewRejectsOversizedSubWindow(t *testing.T) {
	store := flash.NewMemStore(64)
	transform, err := fft.NewTransform(32, 8)
	require.NoError(t, err)
	aggregator, err := analysis.NewAggregator(8, 3)
	require.NoError(t, err)
	writer, err := flash.NewWriter(store, 8, 0, time.Second)
	require.NoError(t, err)

	_, err = New(Settings{
		SampleRate:      1000,
		WindowLength:    16, // Smaller than the 32-sample sub-window
		WindowsPerCycle: 1,
	}, &scriptedAcquirer{}, transform, aggregator, writer)
	assert.Error(t, err)
}
