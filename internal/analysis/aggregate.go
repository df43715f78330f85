// SPDX-License-Identifier: MIT
/*
Package analysis maintains per-bin running statistics over the magnitude
bins produced by the spectral transform.
*/
package analysis

import (
	"fmt"
	"sync"
)

// Aggregator keeps an exact incremental mean of observed magnitudes for
// each frequency bin. Bins below the skip index are never updated; they are
// DC/noise-dominated and deliberately ignored.
//
// The mean is an equal-weight streaming mean, not an exponential decay:
// after k sequential updates the stored value equals the arithmetic mean of
// the k observations. The observation count is supplied by the caller per
// update, so the aggregator itself carries no cycle state.
type Aggregator struct {
	mu    sync.Mutex
	means []float32
	skip  int
}

// NewAggregator creates an aggregator for the given number of bins with
// zero-initialized means. Bins below skip are excluded from updates.
func NewAggregator(bins, skip int) (*Aggregator, error) {
	if bins <= 0 {
		return nil, fmt.Errorf("bin count must be > 0, got %d", bins)
	}
	if skip < 0 || skip >= bins {
		return nil, fmt.Errorf("skip index %d outside [0, %d)", skip, bins)
	}
	return &Aggregator{
		means: make([]float32, bins),
		skip:  skip,
	}, nil
}

// runningMean folds one observation into an equal-weight streaming mean.
// count is the 1-based index of the observation.
func runningMean(prev float32, count int, v float64) float32 {
	return prev + (float32(v)-prev)/float32(count)
}

// Update folds one bin vector into the running means. count is the 1-based
// index of this observation within the current epoch; callers must supply
// counts sequentially from 1. The magnitude slice must cover every bin;
// bins below the skip index are left untouched.
func (a *Aggregator) Update(magnitudes []float64, count int) error {
	if len(magnitudes) != len(a.means) {
		return fmt.Errorf("bin vector length %d, expected %d", len(magnitudes), len(a.means))
	}
	if count < 1 {
		return fmt.Errorf("observation count must be >= 1, got %d", count)
	}

	a.mu.Lock()
	for bin := a.skip; bin < len(a.means); bin++ {
		a.means[bin] = runningMean(a.means[bin], count, magnitudes[bin])
	}
	a.mu.Unlock()
	return nil
}

// Snapshot copies the current means into dst, which must hold Bins()
// values. Safe to call concurrently with Update; publishers read through
// this while the pipeline task keeps aggregating.
func (a *Aggregator) Snapshot(dst []float32) error {
	if len(dst) != len(a.means) {
		return fmt.Errorf("snapshot length %d, expected %d", len(dst), len(a.means))
	}
	a.mu.Lock()
	copy(dst, a.means)
	a.mu.Unlock()
	return nil
}

// Bins returns the number of frequency bins tracked.
func (a *Aggregator) Bins() int { return len(a.means) }

// Skip returns the first bin index included in updates.
func (a *Aggregator) Skip() int { return a.skip }

// Reset zeroes all means. The pipeline driver does not call this between
// cycles: means carry across cycles while the observation count restarts,
// so the first update of a new cycle replaces the stored mean outright.
// Reset exists for callers that explicitly want a fresh epoch.
func (a *Aggregator) Reset() {
	a.mu.Lock()
	for i := range a.means {
		a.means[i] = 0
	}
	a.mu.Unlock()
}
