// SPDX-License-Identifier: MIT
package adc

import (
	"fmt"
	"os"
	"sync/atomic"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// TraceRecorder writes acquired sample windows to a WAV file for offline
// inspection. Samples are stored as 16-bit PCM with the ADC's mid-scale
// offset removed, so the trace opens in any audio tool.
type TraceRecorder struct {
	isRecording int32 // Atomic flag for thread-safe state
	outputFile  *os.File
	wavEncoder  *wav.Encoder
	sampleBuf   *audio.IntBuffer // Reusable buffer for format conversion
	windowLen   int
}

// NewTraceRecorder creates a recorder for windows of the given length.
func NewTraceRecorder(windowLen int) *TraceRecorder {
	return &TraceRecorder{windowLen: windowLen}
}

// Start opens the trace file and begins accepting windows.
func (r *TraceRecorder) Start(filename string, sampleRate int) error {
	if atomic.LoadInt32(&r.isRecording) == 1 {
		return fmt.Errorf("adc: already recording")
	}

	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	r.outputFile = file

	r.wavEncoder = wav.NewEncoder(file, sampleRate, 16, 1, 1)
	r.sampleBuf = &audio.IntBuffer{
		Format: &audio.Format{
			NumChannels: 1,
			SampleRate:  sampleRate,
		},
		SourceBitDepth: 16,
		Data:           make([]int, r.windowLen),
	}

	atomic.StoreInt32(&r.isRecording, 1)
	return nil
}

// Write appends one sample window to the trace. A no-op when not recording,
// so the pipeline can call it unconditionally.
func (r *TraceRecorder) Write(window []uint16) error {
	if atomic.LoadInt32(&r.isRecording) == 0 || r.wavEncoder == nil {
		return nil
	}
	if len(window) > r.windowLen {
		return fmt.Errorf("adc: trace window %d exceeds recorder size %d", len(window), r.windowLen)
	}

	r.sampleBuf.Data = r.sampleBuf.Data[:r.windowLen]
	for i, sample := range window {
		r.sampleBuf.Data[i] = int(sample) - 32768
	}
	r.sampleBuf.Data = r.sampleBuf.Data[:len(window)]

	return r.wavEncoder.Write(r.sampleBuf)
}

// Stop finalizes and closes the trace file.
func (r *TraceRecorder) Stop() error {
	if atomic.LoadInt32(&r.isRecording) == 0 {
		return nil
	}
	atomic.StoreInt32(&r.isRecording, 0)

	if r.wavEncoder != nil {
		if err := r.wavEncoder.Close(); err != nil {
			return err
		}
		r.wavEncoder = nil
	}
	if r.outputFile != nil {
		if err := r.outputFile.Close(); err != nil {
			return err
		}
		r.outputFile = nil
	}
	return nil
}
