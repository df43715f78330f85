// SPDX-License-Identifier: MIT
package udp

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	applog "spectrad/internal/log"
	"spectrad/internal/transport"
)

// Publisher periodically snapshots the aggregate means and sends them as a
// binary UDP packet. It decouples observers from the pipeline's cycle rate:
// the pipeline updates whenever it finishes a sub-window, the publisher
// ticks on its own clock.
//
// Packet layout (big endian): sequence uint32, bin count uint16, then one
// float32 per bin.
type Publisher struct {
	sender   *Sender
	provider transport.SnapshotProvider
	interval time.Duration

	ticker   *time.Ticker
	doneChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	mu       sync.Mutex // Protects ticker and doneChan during Start/Stop

	sequenceNum uint32

	// Pre-allocated buffers reused across packets.
	snapshot     []float32
	packetBuffer *bytes.Buffer
}

// NewPublisher creates a publisher sending one packet per interval.
// Intervals <= 0 default to 33ms.
func NewPublisher(interval time.Duration, sender *Sender, provider transport.SnapshotProvider) (*Publisher, error) {
	if sender == nil {
		return nil, fmt.Errorf("udp: sender cannot be nil")
	}
	if provider == nil {
		return nil, fmt.Errorf("udp: snapshot provider cannot be nil")
	}
	if interval <= 0 {
		interval = 33 * time.Millisecond
		applog.Warnf("udp: invalid publish interval, defaulting to %s", interval)
	}

	return &Publisher{
		sender:       sender,
		provider:     provider,
		interval:     interval,
		snapshot:     make([]float32, provider.Bins()),
		packetBuffer: new(bytes.Buffer),
	}, nil
}

// Start launches the publishing goroutine. Safe to call once per
// Start/Stop cycle; repeated calls while running are no-ops.
func (p *Publisher) Start() {
	p.mu.Lock()
	if p.ticker != nil {
		p.mu.Unlock()
		applog.Warnf("udp: publisher already running")
		return
	}
	p.ticker = time.NewTicker(p.interval)
	p.doneChan = make(chan struct{})
	p.stopOnce = sync.Once{}

	ticker := p.ticker
	doneChan := p.doneChan
	p.mu.Unlock()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		applog.Infof("udp: publisher started (interval %s)", p.interval)
		for {
			select {
			case <-ticker.C:
				p.publishOnce()
			case <-doneChan:
				return
			}
		}
	}()
}

// Stop signals the publishing goroutine and waits for it to exit.
// Idempotent.
func (p *Publisher) Stop() error {
	p.mu.Lock()
	if p.ticker == nil {
		p.mu.Unlock()
		return nil
	}
	p.stopOnce.Do(func() {
		close(p.doneChan)
		p.ticker.Stop()
		p.ticker = nil
	})
	p.mu.Unlock()

	p.wg.Wait()
	return nil
}

func (p *Publisher) publishOnce() {
	if err := p.provider.Snapshot(p.snapshot); err != nil {
		applog.Warnf("udp: snapshot failed: %v", err)
		return
	}

	p.packetBuffer.Reset()
	_ = binary.Write(p.packetBuffer, binary.BigEndian, p.sequenceNum)
	_ = binary.Write(p.packetBuffer, binary.BigEndian, uint16(len(p.snapshot)))
	_ = binary.Write(p.packetBuffer, binary.BigEndian, p.snapshot)
	p.sequenceNum++

	if err := p.sender.Send(p.packetBuffer.Bytes()); err != nil {
		applog.Warnf("udp: publish failed: %v", err)
	}
}
