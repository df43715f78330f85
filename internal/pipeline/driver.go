// SPDX-License-Identifier: MIT
/*
Package pipeline orchestrates the acquisition-analysis-persistence loop:
acquire a fixed number of sample windows, run the spectral transform over
every sub-window, fold the magnitudes into the running aggregate, persist
the aggregate durably, pace, repeat. One logical task owns every buffer, so
the data path needs no locking.
*/
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"spectrad/internal/adc"
	"spectrad/internal/analysis"
	"spectrad/internal/fft"
	"spectrad/internal/flash"
	applog "spectrad/internal/log"
	"spectrad/internal/metrics"
	"spectrad/internal/transport"
)

// Settings is the pipeline geometry and pacing. All buffer sizes derive
// from these at construction; nothing is allocated per cycle.
type Settings struct {
	Channel         int
	SampleRate      int
	WindowLength    int           // Samples per acquisition window (N)
	WindowsPerCycle int           // Acquisitions per cycle (W)
	CycleDelay      time.Duration // Pacing delay after each persist
}

// Driver runs the pipeline. It alternates between two states per cycle:
// Sampling (acquiring WindowsPerCycle windows; the front end's memory
// budget caps a single window, so a cycle re-samples several times rather
// than using one larger buffer) and Persisting (transform + aggregate over
// all sub-windows, then one durable write).
type Driver struct {
	settings   Settings
	acquirer   adc.Acquirer
	transform  *fft.Transform
	aggregator *analysis.Aggregator
	writer     *flash.Writer

	// Optional observers; nil slices/values are skipped.
	recorder   *adc.TraceRecorder
	transports []transport.Transport

	// Pre-allocated cycle state.
	windows [][]uint16
	valid   []bool
	means   []float32
}

// New wires a driver from its stages. The writer's registered record
// buffer must match the aggregator's serialized size; a mismatch means the
// configuration disagrees with itself and is refused here rather than
// surfacing as a corrupt record later.
func New(settings Settings, acquirer adc.Acquirer, transform *fft.Transform,
	aggregator *analysis.Aggregator, writer *flash.Writer) (*Driver, error) {

	if settings.WindowLength <= 0 || settings.WindowsPerCycle <= 0 {
		return nil, fmt.Errorf("pipeline: window length and windows per cycle must be > 0")
	}
	if settings.SampleRate <= 0 {
		return nil, fmt.Errorf("pipeline: sample rate must be > 0")
	}
	if transform.Size() > settings.WindowLength {
		return nil, fmt.Errorf("pipeline: sub-window %d exceeds window length %d",
			transform.Size(), settings.WindowLength)
	}
	if transform.Bins() != aggregator.Bins() {
		return nil, fmt.Errorf("pipeline: transform produces %d bins, aggregator tracks %d",
			transform.Bins(), aggregator.Bins())
	}
	if writer.RecordLength() != flash.RecordLength(aggregator.Bins()) {
		return nil, fmt.Errorf("pipeline: record buffer %d bytes, aggregate serializes to %d",
			writer.RecordLength(), flash.RecordLength(aggregator.Bins()))
	}

	windows := make([][]uint16, settings.WindowsPerCycle)
	for i := range windows {
		windows[i] = make([]uint16, settings.WindowLength)
	}

	return &Driver{
		settings:   settings,
		acquirer:   acquirer,
		transform:  transform,
		aggregator: aggregator,
		writer:     writer,
		windows:    windows,
		valid:      make([]bool, settings.WindowsPerCycle),
		means:      make([]float32, aggregator.Bins()),
	}, nil
}

// SetRecorder attaches an optional raw-trace recorder.
func (d *Driver) SetRecorder(r *adc.TraceRecorder) { d.recorder = r }

// AddTransport attaches an optional live snapshot transport.
func (d *Driver) AddTransport(t transport.Transport) {
	d.transports = append(d.transports, t)
}

// Aggregator exposes the running aggregate for periodic publishers.
func (d *Driver) Aggregator() *analysis.Aggregator { return d.aggregator }

// Run executes cycles until the context is cancelled or a persist fails.
// Acquisition errors are transient and never stop the loop; a failed write
// request or a completion timeout is a pipeline-level failure.
func (d *Driver) Run(ctx context.Context) error {
	applog.Infof("pipeline: starting (rate %d Hz, %d x %d samples per cycle, record %d bytes)",
		d.settings.SampleRate, d.settings.WindowsPerCycle, d.settings.WindowLength,
		d.writer.RecordLength())

	for cycle := uint64(1); ; cycle++ {
		if err := d.runCycle(ctx); err != nil {
			if ctx.Err() != nil {
				applog.Infof("pipeline: stopped after %d cycles", cycle-1)
				return ctx.Err()
			}
			return fmt.Errorf("pipeline: cycle %d: %w", cycle, err)
		}
		metrics.Cycles.Inc()

		// Pace before the next cycle starts.
		select {
		case <-ctx.Done():
			applog.Infof("pipeline: stopped after %d cycles", cycle)
			return ctx.Err()
		case <-time.After(d.settings.CycleDelay):
		}
	}
}

func (d *Driver) runCycle(ctx context.Context) error {
	// Sampling state.
	acquired := 0
	for w := range d.windows {
		d.valid[w] = false
		err := d.acquirer.SampleBufferSync(ctx, d.settings.Channel, d.settings.SampleRate, d.windows[w])
		if err != nil {
			if ctx.Err() != nil {
				return err
			}
			// Transient: log, skip this window, keep going.
			applog.Errorf("pipeline: error sampling ADC: %v", err)
			metrics.SamplingErrors.Inc()
			continue
		}
		d.valid[w] = true
		acquired++

		if d.recorder != nil {
			if rerr := d.recorder.Write(d.windows[w]); rerr != nil {
				applog.Warnf("pipeline: trace write failed: %v", rerr)
			}
		}
	}
	if acquired == 0 {
		applog.Warnf("pipeline: no windows acquired this cycle; persisting prior aggregate")
	}

	// Persisting state: analyze every sub-window of every valid window.
	// The observation count restarts each cycle while the means carry
	// over.
	m := d.transform.Size()
	count := 0
	for w, window := range d.windows {
		if !d.valid[w] {
			continue
		}
		for start := 0; start+m <= len(window); start += m {
			mags, err := d.transform.Magnitudes(window[start : start+m])
			if err != nil {
				return err
			}
			count++
			if err := d.aggregator.Update(mags, count); err != nil {
				return err
			}
		}
	}

	if err := d.aggregator.Snapshot(d.means); err != nil {
		return err
	}
	if err := d.writer.Persist(ctx, d.means); err != nil {
		if errors.Is(err, flash.ErrCompletionTimeout) {
			metrics.WriteTimeouts.Inc()
		}
		return err
	}
	metrics.PersistedRecords.Inc()

	for _, t := range d.transports {
		if err := t.Send(d.means); err != nil {
			applog.Warnf("pipeline: snapshot publish failed: %v", err)
		}
	}
	return nil
}
