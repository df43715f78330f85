// SPDX-License-Identifier: MIT
package flash

import (
	"sync"
	"time"
)

// MemStore is an in-memory NonvolatileStore. It backs tests and the flash
// demo's dry-run mode, and exposes fault-injection knobs for exercising the
// pipeline's error paths.
type MemStore struct {
	mu        sync.Mutex
	data      []byte
	writeBuf  []byte
	readBuf   []byte
	writeDone DoneCallback
	readDone  DoneCallback
	closed    bool

	// Fault injection.
	Latency         time.Duration // Delay before each completion callback.
	DropCompletions bool          // Accept requests but never fire the callback.
	WriteErr        error         // Synchronous error returned by RequestWrite.

	// Counters for assertions.
	Writes int
	Reads  int
}

// NewMemStore creates an in-memory store holding size bytes.
func NewMemStore(size int) *MemStore {
	return &MemStore{data: make([]byte, size)}
}

func (s *MemStore) RegisterWriteBuffer(buf []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}
	s.writeBuf = buf
	return nil
}

func (s *MemStore) SubscribeWriteDone(cb DoneCallback) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}
	s.writeDone = cb
	return nil
}

func (s *MemStore) RequestWrite(offset int64, length int) error {
	s.mu.Lock()
	switch {
	case s.closed:
		s.mu.Unlock()
		return ErrStoreClosed
	case s.WriteErr != nil:
		err := s.WriteErr
		s.mu.Unlock()
		return err
	case s.writeBuf == nil:
		s.mu.Unlock()
		return ErrNoBuffer
	case s.writeDone == nil:
		s.mu.Unlock()
		return ErrNoSubscriber
	case length <= 0 || length > len(s.writeBuf) || int(offset)+length > len(s.data):
		s.mu.Unlock()
		return ErrBadLength
	}
	s.Writes++
	drop := s.DropCompletions
	latency := s.Latency
	cb := s.writeDone
	copy(s.data[offset:], s.writeBuf[:length])
	s.mu.Unlock()

	if drop {
		return nil
	}
	go func() {
		if latency > 0 {
			time.Sleep(latency)
		}
		cb(length, 0, 0)
	}()
	return nil
}

func (s *MemStore) RegisterReadBuffer(buf []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}
	s.readBuf = buf
	return nil
}

func (s *MemStore) SubscribeReadDone(cb DoneCallback) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}
	s.readDone = cb
	return nil
}

func (s *MemStore) RequestRead(offset int64, length int) error {
	s.mu.Lock()
	switch {
	case s.closed:
		s.mu.Unlock()
		return ErrStoreClosed
	case s.readBuf == nil:
		s.mu.Unlock()
		return ErrNoBuffer
	case s.readDone == nil:
		s.mu.Unlock()
		return ErrNoSubscriber
	case length <= 0 || length > len(s.readBuf) || int(offset)+length > len(s.data):
		s.mu.Unlock()
		return ErrBadLength
	}
	s.Reads++
	drop := s.DropCompletions
	latency := s.Latency
	cb := s.readDone
	copy(s.readBuf[:length], s.data[offset:])
	s.mu.Unlock()

	if drop {
		return nil
	}
	go func() {
		if latency > 0 {
			time.Sleep(latency)
		}
		cb(length, 0, 0)
	}()
	return nil
}

// Bytes returns a copy of the stored contents.
func (s *MemStore) Bytes() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]byte, len(s.data))
	copy(out, s.data)
	return out
}

func (s *MemStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
