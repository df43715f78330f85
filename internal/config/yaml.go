// SPDX-License-Identifier: MIT
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"spectrad/pkg/bitint"
)

// Duration wraps time.Duration so YAML values can be written either as
// strings ("250ms", "2s") or as integer nanoseconds.
type Duration time.Duration

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) String() string { return time.Duration(d).String() }

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err == nil {
		parsed, perr := time.ParseDuration(s)
		if perr != nil {
			return fmt.Errorf("invalid duration %q: %w", s, perr)
		}
		*d = Duration(parsed)
		return nil
	}
	var n int64
	if err := value.Decode(&n); err == nil {
		*d = Duration(n)
		return nil
	}
	return fmt.Errorf("invalid duration value %q", value.Value)
}

// Config is the main application configuration, loaded from YAML.
type Config struct {
	Debug       bool              `yaml:"debug"`     // Enable debug mode (verbose logging).
	LogLevel    string            `yaml:"log_level"` // Logging level ("debug", "info", "warn", "error").
	Acquisition AcquisitionConfig `yaml:"acquisition"`
	Analysis    AnalysisConfig    `yaml:"analysis"`
	Storage     StorageConfig     `yaml:"storage"`
	Trace       TraceConfig       `yaml:"trace"`
	Publish     PublishConfig     `yaml:"publish"`
	Metrics     MetricsConfig     `yaml:"metrics"`
}

// AcquisitionConfig selects and parameterizes the sample source.
type AcquisitionConfig struct {
	Source          string `yaml:"source"`            // "synth", "serial", or "portaudio".
	Channel         int    `yaml:"channel"`           // ADC channel index.
	SampleRate      int    `yaml:"sample_rate"`       // Samples per second.
	WindowLength    int    `yaml:"window_length"`     // Samples per acquisition window.
	WindowsPerCycle int    `yaml:"windows_per_cycle"` // Acquisitions per pipeline cycle.
	SerialPort      string `yaml:"serial_port"`       // Device path for the serial source.
	BaudRate        int    `yaml:"baud_rate"`         // Serial baud rate.
	InputDevice     int    `yaml:"input_device"`      // PortAudio device index (-1 for default).
}

// AnalysisConfig parameterizes the spectral transform and aggregation.
// SubWindowLength must be a power of 2 and Bins at most SubWindowLength/2.
type AnalysisConfig struct {
	SubWindowLength int `yaml:"sub_window_length"`
	Bins            int `yaml:"bins"`
	SkipBins        int `yaml:"skip_bins"` // Bins below this index are never aggregated.
}

// StorageConfig parameterizes the nonvolatile store and the per-cycle write.
type StorageConfig struct {
	Path         string   `yaml:"path"`          // Backing file for the store.
	WriteOffset  int64    `yaml:"write_offset"`  // Logical offset of the aggregate record.
	WriteTimeout Duration `yaml:"write_timeout"` // Bound on one completion wait.
	CycleDelay   Duration `yaml:"cycle_delay"`   // Pacing delay after each persist.
}

// TraceConfig controls optional raw-trace recording of acquired windows.
type TraceConfig struct {
	Enabled    bool   `yaml:"enabled"`
	OutputFile string `yaml:"output_file"` // WAV file path; empty for a generated name.
}

// PublishConfig controls optional live publishing of aggregate snapshots.
type PublishConfig struct {
	UDPEnabled       bool     `yaml:"udp_enabled"`
	UDPTargetAddress string   `yaml:"udp_target_address"` // e.g. "127.0.0.1:9090".
	UDPSendInterval  Duration `yaml:"udp_send_interval"`
	WSEnabled        bool     `yaml:"ws_enabled"`
	WSPort           string   `yaml:"ws_port"` // Port for the websocket endpoint.
}

// MetricsConfig controls the optional Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"` // e.g. ":2112".
}

// LoadConfig loads configuration from a YAML file specified by path. If path
// is empty it searches default locations ("config.yaml"); if no file is found
// it uses built-in defaults. Environment variable overrides are applied after
// loading, and the final configuration is validated.
func LoadConfig(path string) (*Config, error) {
	cfg := Config{
		Debug:    false,
		LogLevel: "info",
		Acquisition: AcquisitionConfig{
			Source:          SourceSynth,
			Channel:         DefaultChannel,
			SampleRate:      DefaultSampleRate,
			WindowLength:    DefaultWindowLength,
			WindowsPerCycle: DefaultWindowsPerCycle,
			BaudRate:        DefaultSerialBaudRate,
			InputDevice:     -1, // -1 for default device.
		},
		Analysis: AnalysisConfig{
			SubWindowLength: SubWindowLength,
			Bins:            BinCount,
			SkipBins:        SkipBins,
		},
		Storage: StorageConfig{
			Path:         DefaultStoragePath,
			WriteOffset:  DefaultWriteOffset,
			WriteTimeout: Duration(DefaultWriteTimeout),
			CycleDelay:   Duration(DefaultCycleDelay),
		},
		Trace: TraceConfig{
			Enabled: false,
		},
		Publish: PublishConfig{
			UDPEnabled:       false,
			UDPTargetAddress: "127.0.0.1:9090",
			UDPSendInterval:  Duration(33 * time.Millisecond), // ~30Hz.
			WSEnabled:        false,
			WSPort:           "8080",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Listen:  ":2112",
		},
	}

	if path == "" {
		candidates := []string{"config.yaml"}
		found := false
		for _, candidate := range candidates {
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
				found = true
				break
			}
		}
		if !found {
			cfg.applyEnvOverrides()
			if err := cfg.Validate(); err != nil {
				return nil, fmt.Errorf("invalid default configuration: %w", err)
			}
			return &cfg, nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Apply environment variable overrides AFTER loading from file.
	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Validate checks the pipeline geometry. The serialized record length is
// derived from Bins, so a bad bin count here would otherwise surface as a
// buffer size mismatch deep in the storage layer.
func (c *Config) Validate() error {
	a := &c.Acquisition
	if a.Source != SourceSynth && a.Source != SourceSerial && a.Source != SourcePortAudio {
		return fmt.Errorf("acquisition.source %q is not one of %q, %q, %q",
			a.Source, SourceSynth, SourceSerial, SourcePortAudio)
	}
	if a.Channel < 0 {
		return fmt.Errorf("acquisition.channel must be >= 0, got %d", a.Channel)
	}
	if a.SampleRate < MinSampleRate || a.SampleRate > MaxSampleRate {
		return fmt.Errorf("acquisition.sample_rate %d outside [%d, %d]",
			a.SampleRate, MinSampleRate, MaxSampleRate)
	}
	if a.WindowLength <= 0 || a.WindowLength > MaxWindowLength {
		return fmt.Errorf("acquisition.window_length %d outside (0, %d]",
			a.WindowLength, MaxWindowLength)
	}
	if a.WindowsPerCycle <= 0 {
		return fmt.Errorf("acquisition.windows_per_cycle must be > 0, got %d", a.WindowsPerCycle)
	}
	if a.Source == SourceSerial && a.SerialPort == "" {
		return fmt.Errorf("acquisition.serial_port must be set for the serial source")
	}

	n := &c.Analysis
	if !bitint.IsPowerOfTwo(n.SubWindowLength) {
		return fmt.Errorf("analysis.sub_window_length %d is not a power of 2", n.SubWindowLength)
	}
	if n.SubWindowLength > a.WindowLength {
		return fmt.Errorf("analysis.sub_window_length %d exceeds window_length %d",
			n.SubWindowLength, a.WindowLength)
	}
	if n.Bins <= 0 || n.Bins > n.SubWindowLength/2 {
		return fmt.Errorf("analysis.bins %d outside (0, %d]", n.Bins, n.SubWindowLength/2)
	}
	if n.SkipBins < 0 || n.SkipBins >= n.Bins {
		return fmt.Errorf("analysis.skip_bins %d outside [0, %d)", n.SkipBins, n.Bins)
	}

	s := &c.Storage
	if s.Path == "" {
		return fmt.Errorf("storage.path must be set")
	}
	if s.WriteOffset < 0 {
		return fmt.Errorf("storage.write_offset must be >= 0, got %d", s.WriteOffset)
	}
	if s.WriteTimeout <= 0 {
		return fmt.Errorf("storage.write_timeout must be positive, got %s", s.WriteTimeout)
	}
	if s.CycleDelay < 0 {
		return fmt.Errorf("storage.cycle_delay must be >= 0, got %s", s.CycleDelay)
	}

	if c.Publish.UDPEnabled {
		if c.Publish.UDPTargetAddress == "" {
			return fmt.Errorf("publish.udp_target_address must be set when UDP is enabled")
		}
		if c.Publish.UDPSendInterval <= 0 {
			return fmt.Errorf("publish.udp_send_interval must be positive when UDP is enabled")
		}
	}

	return nil
}

func (cfg *Config) applyEnvOverrides() {
	// SPECTRAD_DEBUG
	if val, ok := os.LookupEnv("SPECTRAD_DEBUG"); ok {
		if bVal, err := strconv.ParseBool(val); err == nil {
			cfg.Debug = bVal
		}
	}
	// SPECTRAD_STORAGE_PATH
	if val, ok := os.LookupEnv("SPECTRAD_STORAGE_PATH"); ok {
		cfg.Storage.Path = val
	}
	// SPECTRAD_SERIAL_PORT
	if val, ok := os.LookupEnv("SPECTRAD_SERIAL_PORT"); ok {
		cfg.Acquisition.SerialPort = val
	}
	// SPECTRAD_UDP_ENABLED
	if val, ok := os.LookupEnv("SPECTRAD_UDP_ENABLED"); ok {
		if bVal, err := strconv.ParseBool(val); err == nil {
			cfg.Publish.UDPEnabled = bVal
		}
	}
	// SPECTRAD_UDP_TARGET_ADDRESS
	if val, ok := os.LookupEnv("SPECTRAD_UDP_TARGET_ADDRESS"); ok {
		cfg.Publish.UDPTargetAddress = val
	}
	// SPECTRAD_UDP_SEND_INTERVAL
	if val, ok := os.LookupEnv("SPECTRAD_UDP_SEND_INTERVAL"); ok {
		if dur, err := time.ParseDuration(val); err == nil {
			cfg.Publish.UDPSendInterval = Duration(dur)
		}
	}
}

// RecordLength returns the serialized aggregate record size in bytes:
// one float32 per frequency bin.
func (c *Config) RecordLength() int {
	return 4 * c.Analysis.Bins
}
