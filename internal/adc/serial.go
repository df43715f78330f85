// SPDX-License-Identifier: MIT
package adc

import (
	"context"
	"encoding/binary"
	"fmt"
	"time"

	"go.bug.st/serial"
)

// request layout sent to the board firmware before each acquisition:
// a command byte, the channel, the sampling rate, and the window length.
// The board answers with exactly count little-endian uint16 readings.
const (
	cmdSampleBuffer = 0x53 // 'S'
	readTimeout     = 5 * time.Millisecond
)

type sampleRequest struct {
	Cmd     uint8
	Channel uint8
	_       uint16 // Padding, must be zero
	Rate    uint32
	Count   uint16
}

// Serial acquires sample windows from an ADC on the far side of a serial
// link. Each SampleBufferSync is one request/response exchange; the read
// loop tolerates short reads but treats a stalled port as a failure.
type Serial struct {
	port serial.Port
	name string
	raw  []byte // Reusable receive buffer, grown to the largest window seen
}

// OpenSerial opens the serial front end on the named port.
func OpenSerial(portName string, baudRate int) (*Serial, error) {
	mode := &serial.Mode{BaudRate: baudRate}
	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, fmt.Errorf("adc: open serial port %s: %w", portName, err)
	}
	if err := port.SetReadTimeout(readTimeout); err != nil {
		port.Close()
		return nil, fmt.Errorf("adc: set read timeout on %s: %w", portName, err)
	}
	if err := port.ResetInputBuffer(); err != nil {
		port.Close()
		return nil, fmt.Errorf("adc: reset input buffer on %s: %w", portName, err)
	}
	return &Serial{port: port, name: portName}, nil
}

func (s *Serial) SampleBufferSync(ctx context.Context, channel, rate int, buf []uint16) error {
	if err := validateRequest(channel, rate, buf); err != nil {
		return err
	}
	if channel > 0xFF {
		return fmt.Errorf("%w: channel %d exceeds protocol limit", ErrSampleFailed, channel)
	}

	req := sampleRequest{
		Cmd:     cmdSampleBuffer,
		Channel: uint8(channel),
		Rate:    uint32(rate),
		Count:   uint16(len(buf)),
	}
	header := make([]byte, 10)
	header[0] = req.Cmd
	header[1] = req.Channel
	binary.LittleEndian.PutUint16(header[2:], 0)
	binary.LittleEndian.PutUint32(header[4:], req.Rate)
	binary.LittleEndian.PutUint16(header[8:], req.Count)

	if _, err := s.port.Write(header); err != nil {
		return fmt.Errorf("%w: write request: %v", ErrSampleFailed, err)
	}

	need := 2 * len(buf)
	if cap(s.raw) < need {
		s.raw = make([]byte, need)
	}
	raw := s.raw[:need]

	// The port read timeout bounds each Read; a stretch of zero-byte
	// reads means the board stopped talking mid-window.
	count := 0
	stalls := 0
	for count < need {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := s.port.Read(raw[count:])
		if err != nil {
			return fmt.Errorf("%w: read response: %v", ErrSampleFailed, err)
		}
		if n == 0 {
			stalls++
			if stalls > 200 {
				return fmt.Errorf("%w: port stalled after %d of %d bytes", ErrSampleFailed, count, need)
			}
			continue
		}
		stalls = 0
		count += n
	}

	for i := range buf {
		buf[i] = binary.LittleEndian.Uint16(raw[2*i:])
	}
	return nil
}

func (s *Serial) Close() error {
	return s.port.Close()
}
