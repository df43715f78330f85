// SPDX-License-Identifier: MIT
package adc

import (
	"context"
	"fmt"

	"github.com/gordonklaus/portaudio"

	"spectrad/internal/config"
)

// PortAudio uses a sound card input as the analog front end. Acquisition is
// blocking: the stream is opened for exactly the requested window, read to
// completion, and stopped again, matching the synchronous driver contract.
//
// Initialize must be called once before constructing a PortAudio acquirer
// and paired with Terminate at shutdown.
type PortAudio struct {
	device *portaudio.DeviceInfo
	in     []int32
	stream *portaudio.Stream
}

// Initialize sets up the PortAudio subsystem.
func Initialize() error {
	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("adc: initialize PortAudio: %w", err)
	}
	return nil
}

// Terminate shuts the PortAudio subsystem down. Defer after Initialize.
func Terminate() error {
	if err := portaudio.Terminate(); err != nil {
		return fmt.Errorf("adc: terminate PortAudio: %w", err)
	}
	return nil
}

// NewPortAudio selects the input device with the given index, or the system
// default for -1.
func NewPortAudio(deviceID int) (*PortAudio, error) {
	var device *portaudio.DeviceInfo
	var err error

	if deviceID == -1 {
		device, err = portaudio.DefaultInputDevice()
		if err != nil {
			return nil, fmt.Errorf("adc: default input device: %w", err)
		}
	} else {
		devices, derr := portaudio.Devices()
		if derr != nil {
			return nil, fmt.Errorf("adc: enumerate devices: %w", derr)
		}
		if deviceID < 0 || deviceID >= len(devices) {
			return nil, fmt.Errorf("adc: no input device with index %d", deviceID)
		}
		device = devices[deviceID]
	}
	if device.MaxInputChannels < 1 {
		return nil, fmt.Errorf("adc: device %q has no input channels", device.Name)
	}

	return &PortAudio{device: device}, nil
}

// ListInputDevices returns the names of all devices with input channels,
// indexed by device ID.
func ListInputDevices() (map[int]string, error) {
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("adc: enumerate devices: %w", err)
	}
	out := make(map[int]string)
	for i, d := range devices {
		if d.MaxInputChannels > 0 {
			out[i] = d.Name
		}
	}
	return out, nil
}

func (p *PortAudio) SampleBufferSync(ctx context.Context, channel, rate int, buf []uint16) error {
	if err := validateRequest(channel, rate, buf); err != nil {
		return err
	}
	if rate > config.MaxSampleRate {
		return fmt.Errorf("%w: rate %d above supported maximum", ErrSampleFailed, rate)
	}

	if len(p.in) != len(buf) {
		p.in = make([]int32, len(buf))
	}

	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Channels: 1,
			Device:   p.device,
			Latency:  p.device.DefaultHighInputLatency,
		},
		FramesPerBuffer: len(buf),
		SampleRate:      float64(rate),
	}

	stream, err := portaudio.OpenStream(params, p.in)
	if err != nil {
		return fmt.Errorf("%w: open stream: %v", ErrSampleFailed, err)
	}
	defer stream.Close()

	if err := stream.Start(); err != nil {
		return fmt.Errorf("%w: start stream: %v", ErrSampleFailed, err)
	}
	defer stream.Stop()

	if err := ctx.Err(); err != nil {
		return err
	}
	if err := stream.Read(); err != nil {
		return fmt.Errorf("%w: read stream: %v", ErrSampleFailed, err)
	}

	// Map signed 32-bit capture to the unsigned 16-bit ADC range.
	for i, s := range p.in {
		buf[i] = uint16(s>>16 + 32768)
	}
	return nil
}

func (p *PortAudio) Close() error { return nil }
