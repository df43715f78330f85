// SPDX-License-Identifier: MIT
/*
Package spi exercises a full-duplex transfer path that echoes written bytes
back to the host, e.g. a board with MOSI looped to MISO behind a serial
bridge. Each transfer writes a payload, reads the echo, and verifies the
two match byte for byte.
*/
package spi

import (
	"context"
	"fmt"
	"io"
	"time"

	applog "spectrad/internal/log"
)

// VerifyError reports the first position where the echoed payload diverged.
type VerifyError struct {
	Index int
	Sent  byte
	Got   byte
}

func (e *VerifyError) Error() string {
	return fmt.Sprintf("spi: echo mismatch at byte %d: sent %#02x, got %#02x", e.Index, e.Sent, e.Got)
}

// Loopback drives repeated verified transfers over a byte stream. The
// payload starts as 0..size-1 and every byte is incremented after each
// successful round trip, so consecutive transfers carry distinct data.
type Loopback struct {
	port io.ReadWriter
	wbuf []byte
	rbuf []byte
}

// NewLoopback creates a loopback tester with the given transfer size.
func NewLoopback(port io.ReadWriter, size int) (*Loopback, error) {
	if size <= 0 {
		return nil, fmt.Errorf("spi: transfer size must be > 0, got %d", size)
	}
	l := &Loopback{
		port: port,
		wbuf: make([]byte, size),
		rbuf: make([]byte, size),
	}
	for i := range l.wbuf {
		l.wbuf[i] = byte(i)
	}
	return l, nil
}

// Transfer performs one write/read/verify round trip and advances the
// payload on success.
func (l *Loopback) Transfer(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if _, err := l.port.Write(l.wbuf); err != nil {
		return fmt.Errorf("spi: write: %w", err)
	}
	if _, err := io.ReadFull(l.port, l.rbuf); err != nil {
		return fmt.Errorf("spi: read echo: %w", err)
	}

	for i := range l.wbuf {
		if l.rbuf[i] != l.wbuf[i] {
			return &VerifyError{Index: i, Sent: l.wbuf[i], Got: l.rbuf[i]}
		}
	}

	for i := range l.wbuf {
		l.wbuf[i]++
	}
	return nil
}

// Run performs transfers at the given interval until the context is
// cancelled or a transfer fails. A verification failure stops the run; echo
// corruption means the link cannot be trusted.
func (l *Loopback) Run(ctx context.Context, interval time.Duration) error {
	transfers := 0
	for {
		if err := l.Transfer(ctx); err != nil {
			return err
		}
		transfers++
		applog.Debugf("spi: transfer %d verified (%d bytes)", transfers, len(l.wbuf))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}
}
