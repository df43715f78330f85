// SPDX-License-Identifier: MIT
package spi

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// echoPort buffers written bytes and replays them on Read, optionally
// corrupting one position.
type echoPort struct {
	buf        bytes.Buffer
	corruptIdx int // -1 for a clean echo
	written    [][]byte
}

func (p *echoPort) Write(b []byte) (int, error) {
	cp := make([]byte, len(b))
	copy(cp, b)
	if p.corruptIdx >= 0 && p.corruptIdx < len(cp) {
		cp[p.corruptIdx] ^= 0xFF
	}
	p.written = append(p.written, cp)
	return p.buf.Write(cp)
}

func (p *echoPort) Read(b []byte) (int, error) {
	return p.buf.Read(b)
}

func TestTransferVerifiesCleanEcho(t *testing.T) {
	port := &echoPort{corruptIdx: -1}
	l, err := NewLoopback(port, 200)
	require.NoError(t, err)

	require.NoError(t, l.Transfer(context.Background()))

	// First payload counts up from zero.
	require.Len(t, port.written, 1)
	for i, b := range port.written[0] {
		assert.Equal(t, byte(i), b)
	}
}

func TestTransferIncrementsPayload(t *testing.T) {
	port := &echoPort{corruptIdx: -1}
	l, err := NewLoopback(port, 8)
	require.NoError(t, err)

	require.NoError(t, l.Transfer(context.Background()))
	require.NoError(t, l.Transfer(context.Background()))

	require.Len(t, port.written, 2)
	for i := range port.written[0] {
		assert.Equal(t, port.written[0][i]+1, port.written[1][i],
			"payload byte %d must advance between transfers", i)
	}
}

func TestTransferDetectsCorruption(t *testing.T) {
	port := &echoPort{corruptIdx: 3}
	l, err := NewLoopback(port, 8)
	require.NoError(t, err)

	err = l.Transfer(context.Background())
	var verr *VerifyError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, 3, verr.Index)
}

func TestTransferHonorsCancelledContext(t *testing.T) {
	port := &echoPort{corruptIdx: -1}
	l, err := NewLoopback(port, 8)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, l.Transfer(ctx), context.Canceled)
}

func TestNewLoopbackValidation(t *testing.T) {
	_, err := NewLoopback(&echoPort{corruptIdx: -1}, 0)
	assert.Error(t, err)
}
