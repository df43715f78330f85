// SPDX-License-Identifier: MIT
/*
Package adc acquires windows of raw analog readings from an analog front
end. Acquisition is blocking-synchronous: one call fills one window
completely or fails, and partial windows are never handed to the analysis
stage.

Three front ends are provided: a deterministic signal generator, an ADC
streamed over a serial port, and the sound card via PortAudio.
*/
package adc

import (
	"context"
	"errors"
	"fmt"
)

// ErrSampleFailed wraps any acquisition failure surfaced by a front end.
// The pipeline treats it as transient: log, skip the window, continue.
var ErrSampleFailed = errors.New("adc: sampling failed")

// Acquirer is the acquisition contract consumed by the pipeline.
type Acquirer interface {
	// SampleBufferSync acquires len(buf) consecutive readings from the
	// given channel at the given rate, blocking the caller until the
	// buffer is fully populated or an error occurs. On error the buffer
	// contents are undefined and must not be analyzed.
	SampleBufferSync(ctx context.Context, channel, rate int, buf []uint16) error

	Close() error
}

// validateRequest is the shared argument check for all front ends.
func validateRequest(channel, rate int, buf []uint16) error {
	if channel < 0 {
		return fmt.Errorf("%w: channel %d must be >= 0", ErrSampleFailed, channel)
	}
	if rate <= 0 {
		return fmt.Errorf("%w: rate %d must be positive", ErrSampleFailed, rate)
	}
	if len(buf) == 0 {
		return fmt.Errorf("%w: empty sample buffer", ErrSampleFailed)
	}
	return nil
}
