package config

import "time"

// Core constants defining the pipeline geometry and defaults. Window,
// sub-window, and bin sizes are fixed at build time; buffers throughout the
// pipeline are sized from these and never grow.
const (
	// Acquisition defaults
	DefaultChannel         = 0      // ADC channel index
	DefaultSampleRate      = 125000 // Samples per second
	DefaultWindowLength    = 500    // Samples per acquisition window
	DefaultWindowsPerCycle = 4      // Acquisitions per pipeline cycle

	// Analysis geometry
	SubWindowLength = 16 // FFT input length, power of 2
	BinCount        = 8  // Frequency bins kept per sub-window, <= SubWindowLength/2
	SkipBins        = 3  // Bins below this index are not aggregated (DC/noise-dominated)

	// Storage
	DefaultStoragePath  = "spectrad.flash" // Backing file for the nonvolatile store
	DefaultWriteOffset  = 0                // Logical offset of the aggregate record
	DefaultWriteTimeout = 2 * time.Second  // Bound on one write completion wait

	// Pacing
	DefaultCycleDelay = 500 * time.Millisecond

	// Limits
	MinSampleRate   = 1       // Samples per second
	MaxSampleRate   = 1000000 // Upper bound of supported front ends
	MaxWindowLength = 8192    // Keeps per-window buffers bounded

	DefaultSerialBaudRate = 460800
)

// Acquisition source names accepted in configuration.
const (
	SourceSynth     = "synth"     // Built-in signal generator
	SourceSerial    = "serial"    // ADC samples streamed over a serial port
	SourcePortAudio = "portaudio" // Sound card input as the analog front end
)
