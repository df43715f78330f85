// SPDX-License-Identifier: MIT
package analysis

import (
	"math"
	"testing"
)

func TestRunningMeanMatchesArithmeticMean(t *testing.T) {
	// Sequential updates must reproduce the exact arithmetic mean.
	values := []float64{10, 20, 30}

	var mean float32
	for k, v := range values {
		mean = runningMean(mean, k+1, v)
	}
	if mean != 20 {
		t.Errorf("expected mean 20 after [10,20,30], got %f", mean)
	}
}

func TestRunningMeanLongSequence(t *testing.T) {
	values := []float64{3, 1, 4, 1, 5, 9, 2, 6, 5, 3, 5}

	var mean float32
	var sum float64
	for k, v := range values {
		mean = runningMean(mean, k+1, v)
		sum += v
	}

	want := sum / float64(len(values))
	if math.Abs(float64(mean)-want) > 1e-4 {
		t.Errorf("streaming mean %f, direct mean %f", mean, want)
	}
}

func TestUpdateSkipsLowBins(t *testing.T) {
	agg, err := NewAggregator(8, 3)
	if err != nil {
		t.Fatalf("NewAggregator: %v", err)
	}

	mags := []float64{100, 100, 100, 10, 20, 30, 40, 50}
	for k := 1; k <= 5; k++ {
		if err := agg.Update(mags, k); err != nil {
			t.Fatalf("Update: %v", err)
		}
	}

	snap := make([]float32, 8)
	if err := agg.Snapshot(snap); err != nil {
		t.Fatalf("Snapshot: %v", err)
	}

	// Bins 0-2 must remain at their initial value after any number of updates.
	for bin := 0; bin < 3; bin++ {
		if snap[bin] != 0 {
			t.Errorf("bin %d modified to %f, expected untouched 0", bin, snap[bin])
		}
	}
	// Constant observations leave the mean at the observed value.
	want := []float32{10, 20, 30, 40, 50}
	for bin := 3; bin < 8; bin++ {
		if snap[bin] != want[bin-3] {
			t.Errorf("bin %d: got %f, want %f", bin, snap[bin], want[bin-3])
		}
	}
}

func TestUpdateSingleObservationCopiesBins(t *testing.T) {
	agg, err := NewAggregator(8, 3)
	if err != nil {
		t.Fatalf("NewAggregator: %v", err)
	}

	mags := []float64{1, 2, 3, 4.5, 5.5, 6.5, 7.5, 8.5}
	if err := agg.Update(mags, 1); err != nil {
		t.Fatalf("Update: %v", err)
	}

	snap := make([]float32, 8)
	if err := agg.Snapshot(snap); err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	for bin := 3; bin < 8; bin++ {
		if snap[bin] != float32(mags[bin]) {
			t.Errorf("bin %d: got %f, want %f after first observation", bin, snap[bin], mags[bin])
		}
	}
}

func TestUpdateValidation(t *testing.T) {
	agg, err := NewAggregator(8, 3)
	if err != nil {
		t.Fatalf("NewAggregator: %v", err)
	}
	if err := agg.Update(make([]float64, 7), 1); err == nil {
		t.Error("expected error for short bin vector")
	}
	if err := agg.Update(make([]float64, 8), 0); err == nil {
		t.Error("expected error for zero observation count")
	}
}

func TestNewAggregatorValidation(t *testing.T) {
	if _, err := NewAggregator(0, 0); err == nil {
		t.Error("expected error for zero bins")
	}
	if _, err := NewAggregator(8, 8); err == nil {
		t.Error("expected error for skip >= bins")
	}
}

// The observation count restarts every cycle while the means carry over, so
// a second cycle's first observation is weighted as if it were the only one
// ever seen. This test pins that down so any future change to reset
// semantics is deliberate.
func TestMeansCarryAcrossEpochsWithRestartedCount(t *testing.T) {
	agg, err := NewAggregator(8, 3)
	if err != nil {
		t.Fatalf("NewAggregator: %v", err)
	}

	first := []float64{0, 0, 0, 100, 100, 100, 100, 100}
	if err := agg.Update(first, 1); err != nil {
		t.Fatalf("Update: %v", err)
	}

	// New epoch, count restarts at 1: the prior mean is fully replaced,
	// not averaged in.
	second := []float64{0, 0, 0, 40, 40, 40, 40, 40}
	if err := agg.Update(second, 1); err != nil {
		t.Fatalf("Update: %v", err)
	}

	snap := make([]float32, 8)
	if err := agg.Snapshot(snap); err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	for bin := 3; bin < 8; bin++ {
		if snap[bin] != 40 {
			t.Errorf("bin %d: got %f, want 40 (count-1 update replaces prior mean)", bin, snap[bin])
		}
	}
}
