// SPDX-License-Identifier: MIT
// Package cmd wires the spectrad CLI: the continuous pipeline plus the
// one-off driver demos (adc, flash, spi, list).
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.bug.st/serial"

	"spectrad/internal/adc"
	"spectrad/internal/analysis"
	"spectrad/internal/config"
	"spectrad/internal/fft"
	"spectrad/internal/flash"
	applog "spectrad/internal/log"
	"spectrad/internal/metrics"
	"spectrad/internal/pipeline"
	"spectrad/internal/spi"
	"spectrad/internal/transport"
	"spectrad/internal/transport/udp"
	"spectrad/pkg/build"
)

var configPath string

// Execute parses arguments and runs the selected command.
func Execute() error {
	buildInfo := build.GetBuildFlags()

	rootCmd := &cobra.Command{
		Use:           buildInfo.Name,
		Short:         "ADC spectral telemetry pipeline and driver demos",
		Version:       buildInfo.Version,
		SilenceErrors: true,
		SilenceUsage:  true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "",
		"Path to YAML configuration (default searches ./config.yaml)")

	rootCmd.AddCommand(runCmd(), adcCmd(), flashCmd(), spiCmd(), listCmd())

	rootCmd.SetArgs(os.Args[1:])
	return rootCmd.Execute()
}

// signalContext returns a context cancelled by SIGINT/SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sig
		cancel()
	}()
	return ctx, cancel
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	level := cfg.LogLevel
	if cfg.Debug {
		level = "debug"
	}
	if err := applog.Configure(level); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newAcquirer builds the configured front end. The returned cleanup must
// run after the acquirer is closed.
func newAcquirer(cfg *config.Config) (adc.Acquirer, func(), error) {
	noop := func() {}
	switch cfg.Acquisition.Source {
	case config.SourceSynth:
		return &adc.Synth{Realtime: true}, noop, nil
	case config.SourceSerial:
		a, err := adc.OpenSerial(cfg.Acquisition.SerialPort, cfg.Acquisition.BaudRate)
		return a, noop, err
	case config.SourcePortAudio:
		if err := adc.Initialize(); err != nil {
			return nil, noop, err
		}
		a, err := adc.NewPortAudio(cfg.Acquisition.InputDevice)
		if err != nil {
			_ = adc.Terminate()
			return nil, noop, err
		}
		return a, func() { _ = adc.Terminate() }, nil
	default:
		return nil, noop, fmt.Errorf("unknown acquisition source %q", cfg.Acquisition.Source)
	}
}

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the continuous sample-analyze-persist pipeline",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			defer applog.Sync()

			acquirer, cleanup, err := newAcquirer(cfg)
			if err != nil {
				return err
			}
			defer cleanup()
			defer acquirer.Close()

			store, err := flash.OpenFileStore(cfg.Storage.Path)
			if err != nil {
				return err
			}
			defer store.Close()

			transform, err := fft.NewTransform(cfg.Analysis.SubWindowLength, cfg.Analysis.Bins)
			if err != nil {
				return err
			}
			aggregator, err := analysis.NewAggregator(cfg.Analysis.Bins, cfg.Analysis.SkipBins)
			if err != nil {
				return err
			}
			// Buffer registration failure aborts startup.
			writer, err := flash.NewWriter(store, cfg.Analysis.Bins,
				cfg.Storage.WriteOffset, cfg.Storage.WriteTimeout.Std())
			if err != nil {
				return err
			}

			driver, err := pipeline.New(pipeline.Settings{
				Channel:         cfg.Acquisition.Channel,
				SampleRate:      cfg.Acquisition.SampleRate,
				WindowLength:    cfg.Acquisition.WindowLength,
				WindowsPerCycle: cfg.Acquisition.WindowsPerCycle,
				CycleDelay:      cfg.Storage.CycleDelay.Std(),
			}, acquirer, transform, aggregator, writer)
			if err != nil {
				return err
			}

			if cfg.Trace.Enabled {
				name := cfg.Trace.OutputFile
				if name == "" {
					name = "trace-" + time.Now().UTC().Format("02-01-2006-150405") + ".wav"
				}
				recorder := adc.NewTraceRecorder(cfg.Acquisition.WindowLength)
				if err := recorder.Start(name, cfg.Acquisition.SampleRate); err != nil {
					return err
				}
				defer recorder.Stop()
				driver.SetRecorder(recorder)
				applog.Infof("recording raw trace to %s", name)
			}

			var wst *transport.WebSocketTransport
			if cfg.Publish.WSEnabled {
				wst = transport.NewWebSocketTransport(cfg.Publish.WSPort)
				defer wst.Close()
				driver.AddTransport(wst)
			}
			if cfg.Publish.UDPEnabled {
				sender, err := udp.NewSender(cfg.Publish.UDPTargetAddress)
				if err != nil {
					return err
				}
				defer sender.Close()
				publisher, err := udp.NewPublisher(cfg.Publish.UDPSendInterval.Std(), sender, driver.Aggregator())
				if err != nil {
					return err
				}
				publisher.Start()
				defer publisher.Stop()
			}
			if cfg.Metrics.Enabled {
				metrics.Serve(cfg.Metrics.Listen)
			}

			ctx, cancel := signalContext()
			defer cancel()

			err = driver.Run(ctx)
			if err == context.Canceled {
				return nil
			}
			return err
		},
	}
}

func adcCmd() *cobra.Command {
	var channel, rate, length int
	cmd := &cobra.Command{
		Use:   "adc",
		Short: "Acquire one sample window and print it",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			defer applog.Sync()

			acquirer, cleanup, err := newAcquirer(cfg)
			if err != nil {
				return err
			}
			defer cleanup()
			defer acquirer.Close()

			buf := make([]uint16, length)
			if err := acquirer.SampleBufferSync(context.Background(), channel, rate, buf); err != nil {
				return fmt.Errorf("error sampling ADC: %w", err)
			}

			fmt.Println("Sample taken")
			fmt.Print("\t[")
			for _, v := range buf {
				fmt.Printf("%d ", v)
			}
			fmt.Println("]")
			return nil
		},
	}
	cmd.Flags().IntVar(&channel, "channel", config.DefaultChannel, "ADC channel to sample")
	cmd.Flags().IntVar(&rate, "rate", 10000, "Sampling rate in Hz")
	cmd.Flags().IntVar(&length, "length", 100, "Samples to acquire")
	return cmd
}

func flashCmd() *cobra.Command {
	var runs int
	cmd := &cobra.Command{
		Use:   "flash",
		Short: "Exercise the nonvolatile store with write/read-back verification",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			defer applog.Sync()

			store, err := flash.OpenFileStore(cfg.Storage.Path)
			if err != nil {
				return err
			}
			defer store.Close()

			bins := cfg.Analysis.Bins
			writer, err := flash.NewWriter(store, bins, cfg.Storage.WriteOffset, cfg.Storage.WriteTimeout.Std())
			if err != nil {
				return err
			}
			reader, err := flash.NewReader(store, bins, cfg.Storage.WriteOffset, cfg.Storage.WriteTimeout.Std())
			if err != nil {
				return err
			}

			ctx := context.Background()
			means := make([]float32, bins)
			readback := make([]float32, bins)
			for run := 0; run < runs; run++ {
				for i := range means {
					means[i] = float32(4 + run)
				}

				if err := writer.Persist(ctx, means); err != nil {
					return err
				}
				if err := reader.Read(ctx, readback); err != nil {
					return err
				}

				for i := range means {
					if readback[i] != means[i] {
						return fmt.Errorf("run %d: read-back mismatch at bin %d: wrote %f, read %f",
							run, i, means[i], readback[i])
					}
				}
				fmt.Printf("run %d: %d bytes written and verified\n", run, flash.RecordLength(bins))

				time.Sleep(300 * time.Millisecond)
			}
			fmt.Println("Done")
			return nil
		},
	}
	cmd.Flags().IntVar(&runs, "runs", 5, "Write/read-back iterations")
	return cmd
}

func spiCmd() *cobra.Command {
	var portName string
	var baud, size int
	var interval time.Duration
	cmd := &cobra.Command{
		Use:   "spi",
		Short: "Run verified loopback transfers over a serial-bridged SPI link",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := loadConfig(); err != nil {
				return err
			}
			defer applog.Sync()

			port, err := serial.Open(portName, &serial.Mode{BaudRate: baud})
			if err != nil {
				return fmt.Errorf("open %s: %w", portName, err)
			}
			defer port.Close()

			loopback, err := spi.NewLoopback(port, size)
			if err != nil {
				return err
			}

			ctx, cancel := signalContext()
			defer cancel()

			err = loopback.Run(ctx, interval)
			if err == context.Canceled {
				return nil
			}
			return err
		},
	}
	cmd.Flags().StringVar(&portName, "port", "", "Serial port device path")
	cmd.Flags().IntVar(&baud, "baud", config.DefaultSerialBaudRate, "Baud rate")
	cmd.Flags().IntVar(&size, "size", 200, "Transfer size in bytes")
	cmd.Flags().DurationVar(&interval, "interval", 500*time.Millisecond, "Delay between transfers")
	_ = cmd.MarkFlagRequired("port")
	return cmd
}

func listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List available acquisition devices",
		RunE: func(cmd *cobra.Command, args []string) error {
			ports, err := serial.GetPortsList()
			if err == nil && len(ports) > 0 {
				fmt.Println("Serial ports:")
				for _, p := range ports {
					fmt.Printf("  %s\n", p)
				}
			}

			if err := adc.Initialize(); err != nil {
				return err
			}
			defer adc.Terminate()

			devices, err := adc.ListInputDevices()
			if err != nil {
				return err
			}
			fmt.Println("Audio input devices:")
			for id, name := range devices {
				fmt.Printf("  %3d  %s\n", id, name)
			}
			return nil
		},
	}
}
