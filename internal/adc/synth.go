// SPDX-License-Identifier: MIT
package adc

import (
	"context"
	"math"
	"time"
)

// Synth is a deterministic signal-generator front end: a fundamental tone
// plus two harmonics riding on a mid-scale DC offset, quantized to the
// unsigned sample range. It backs the default configuration and tests that
// need a known spectrum without hardware attached.
type Synth struct {
	// Fundamental is the tone frequency in Hz. Zero selects 440 Hz.
	Fundamental float64

	// Realtime makes SampleBufferSync block for the wall-clock duration
	// a hardware acquisition of the window would take.
	Realtime bool

	phase int64 // Running sample index so consecutive windows are continuous.
}

const (
	synthOffset    = 32768 // Mid-scale for a 16-bit unsigned ADC
	synthAmplitude = 12000
)

func (s *Synth) SampleBufferSync(ctx context.Context, channel, rate int, buf []uint16) error {
	if err := validateRequest(channel, rate, buf); err != nil {
		return err
	}

	fundamental := s.Fundamental
	if fundamental == 0 {
		fundamental = 440
	}

	for i := range buf {
		tm := float64(s.phase+int64(i)) / float64(rate)
		signal := math.Sin(2*math.Pi*fundamental*tm)*0.5 +
			math.Sin(2*math.Pi*2*fundamental*tm)*0.3 +
			math.Sin(2*math.Pi*3*fundamental*tm)*0.2 // Fundamental + harmonics
		buf[i] = uint16(synthOffset + signal*synthAmplitude)
	}
	s.phase += int64(len(buf))

	if s.Realtime {
		wait := time.Duration(len(buf)) * time.Second / time.Duration(rate)
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (s *Synth) Close() error { return nil }
