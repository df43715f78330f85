// SPDX-License-Identifier: MIT
/*
Package fft converts fixed-length windows of raw ADC samples into
frequency-magnitude bins. The transform is pure: same input, same output,
no retained state between calls beyond reused workspace buffers.
*/
package fft

import (
	"fmt"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"

	"spectrad/pkg/bitint"
)

// workspace holds pre-allocated buffers for one transform invocation.
// Reused across calls so the analysis hot path does not allocate.
type workspace struct {
	signed    []int32      // ...for sign-converted input samples
	input     []float64    // ...for FFT real input
	fftOutput []complex128 // ...for FFT complex output
	magnitude []float64    // ...for magnitude output per bin
}

// Transform computes frequency-magnitude bins over fixed-size sub-windows
// of unsigned integer samples. The input length and bin count are fixed at
// construction.
type Transform struct {
	size      int // Sub-window length, power of 2
	bins      int // Magnitude bins kept, <= size/2
	workspace workspace
	fftObj    *fourier.FFT
}

// NewTransform creates a transform for sub-windows of the given length
// producing the given number of magnitude bins. The length must be a power
// of 2 and bins must be in (0, size/2].
func NewTransform(size, bins int) (*Transform, error) {
	if !bitint.IsPowerOfTwo(size) {
		return nil, fmt.Errorf("transform size %d must be a power of 2", size)
	}
	if bins <= 0 || bins > size/2 {
		return nil, fmt.Errorf("bin count %d outside (0, %d]", bins, size/2)
	}

	// Real-input FFT yields size/2+1 coefficients; only the first `bins`
	// magnitudes are exposed.
	outputSize := size/2 + 1

	return &Transform{
		size:   size,
		bins:   bins,
		fftObj: fourier.NewFFT(size),
		workspace: workspace{
			signed:    make([]int32, size),
			input:     make([]float64, size),
			fftOutput: make([]complex128, outputSize),
			magnitude: make([]float64, bins),
		},
	}, nil
}

// Size returns the fixed sub-window length.
func (t *Transform) Size() int { return t.size }

// Bins returns the fixed number of magnitude bins.
func (t *Transform) Bins() int { return t.bins }

// Magnitudes computes the frequency-magnitude bins for one sub-window.
// The sub-window must be exactly Size() samples. Samples are copied into a
// signed working buffer first; the FFT operates on signed values, and
// feeding raw unsigned words through it directly would fold large readings
// into negative ones.
//
// The returned slice is workspace memory overwritten by the next call.
// Callers that need the values past that point must copy them out.
func (t *Transform) Magnitudes(sub []uint16) ([]float64, error) {
	if len(sub) != t.size {
		return nil, fmt.Errorf("sub-window length %d, expected %d", len(sub), t.size)
	}

	for i, s := range sub {
		t.workspace.signed[i] = int32(s)
		t.workspace.input[i] = float64(t.workspace.signed[i])
	}

	_ = t.fftObj.Coefficients(t.workspace.fftOutput, t.workspace.input)
	for i := 0; i < t.bins; i++ {
		t.workspace.magnitude[i] = cmplx.Abs(t.workspace.fftOutput[i])
	}

	return t.workspace.magnitude, nil
}

// BinFrequency returns the center frequency in Hz of the given bin index
// for the given sampling rate, or 0 for an out-of-range index.
func (t *Transform) BinFrequency(i int, sampleRate float64) float64 {
	if i < 0 || i >= t.bins {
		return 0
	}
	return t.fftObj.Freq(i) * sampleRate
}
