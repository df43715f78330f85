// SPDX-License-Identifier: MIT
/*
Package flash provides durable persistence for aggregate records through an
asynchronous nonvolatile-storage contract.

The contract follows the register/subscribe/request/callback sequence of
embedded storage drivers: transfer buffers and completion callbacks are
registered once at startup, then each transfer is a request call that
returns immediately with completion reported later through the subscribed
callback. Exactly one transfer per direction may be outstanding at a time.
*/
package flash

import (
	"errors"
	"fmt"
	"os"
	"sync"
)

// Sentinel errors for store misuse and transfer failures.
var (
	ErrNoBuffer     = errors.New("flash: no transfer buffer registered")
	ErrNoSubscriber = errors.New("flash: no completion callback subscribed")
	ErrBadLength    = errors.New("flash: transfer length exceeds registered buffer")
	ErrStoreClosed  = errors.New("flash: store is closed")
)

// DoneCallback is invoked when an asynchronous transfer completes. It
// carries the transferred length and two opaque argument slots; the driver
// contract reports no error code here, so completion implies success.
type DoneCallback func(length, arg1, arg2 int)

// NonvolatileStore is the durable storage contract the pipeline persists
// through. Register and Subscribe calls are one-time setup; Request calls
// repeat per transfer and return immediately, with completion delivered via
// the subscribed callback from the store's own completion context.
type NonvolatileStore interface {
	RegisterWriteBuffer(buf []byte) error
	SubscribeWriteDone(cb DoneCallback) error
	RequestWrite(offset int64, length int) error

	RegisterReadBuffer(buf []byte) error
	SubscribeReadDone(cb DoneCallback) error
	RequestRead(offset int64, length int) error

	Close() error
}

// transferKind discriminates queued FileStore operations.
type transferKind int

const (
	transferWrite transferKind = iota
	transferRead
)

type transfer struct {
	kind   transferKind
	offset int64
	length int
}

// FileStore is a NonvolatileStore backed by a regular file. Requests are
// serviced by a single completion goroutine, so callbacks fire in request
// order and never on the caller's goroutine.
type FileStore struct {
	mu        sync.Mutex
	file      *os.File
	writeBuf  []byte
	readBuf   []byte
	writeDone DoneCallback
	readDone  DoneCallback
	requests  chan transfer
	done      chan struct{}
	closed    bool
}

// OpenFileStore opens (creating if needed) the backing file at path.
func OpenFileStore(path string) (*FileStore, error) {
	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, fmt.Errorf("flash: open backing file: %w", err)
	}

	s := &FileStore{
		file: file,
		// One slot per direction: the contract permits one outstanding
		// transfer per direction, so queue submission never blocks.
		requests: make(chan transfer, 2),
		done:     make(chan struct{}),
	}
	go s.serviceLoop()
	return s, nil
}

func (s *FileStore) RegisterWriteBuffer(buf []byte) error {
	if len(buf) == 0 {
		return fmt.Errorf("flash: write buffer must be non-empty")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}
	s.writeBuf = buf
	return nil
}

func (s *FileStore) SubscribeWriteDone(cb DoneCallback) error {
	if cb == nil {
		return fmt.Errorf("flash: write done callback must be non-nil")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}
	s.writeDone = cb
	return nil
}

// RequestWrite queues an asynchronous write of length bytes from the
// registered write buffer at the given logical offset. Returns immediately;
// completion is reported through the subscribed callback.
func (s *FileStore) RequestWrite(offset int64, length int) error {
	s.mu.Lock()
	switch {
	case s.closed:
		s.mu.Unlock()
		return ErrStoreClosed
	case s.writeBuf == nil:
		s.mu.Unlock()
		return ErrNoBuffer
	case s.writeDone == nil:
		s.mu.Unlock()
		return ErrNoSubscriber
	case length <= 0 || length > len(s.writeBuf):
		n := len(s.writeBuf)
		s.mu.Unlock()
		return fmt.Errorf("%w: %d > %d", ErrBadLength, length, n)
	}
	s.mu.Unlock()

	select {
	case s.requests <- transfer{kind: transferWrite, offset: offset, length: length}:
		return nil
	case <-s.done:
		return ErrStoreClosed
	}
}

func (s *FileStore) RegisterReadBuffer(buf []byte) error {
	if len(buf) == 0 {
		return fmt.Errorf("flash: read buffer must be non-empty")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}
	s.readBuf = buf
	return nil
}

func (s *FileStore) SubscribeReadDone(cb DoneCallback) error {
	if cb == nil {
		return fmt.Errorf("flash: read done callback must be non-nil")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}
	s.readDone = cb
	return nil
}

// RequestRead queues an asynchronous read of length bytes at the given
// logical offset into the registered read buffer.
func (s *FileStore) RequestRead(offset int64, length int) error {
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
	case length <= 0 || length > len(s.readBuf):
		n := len(s.readBuf)
		s.mu.Unlock()
		return fmt.Errorf("%w: %d > %d", ErrBadLength, length, n)
	}
	s.mu.Unlock()

	select {
	case s.requests <- transfer{kind: transferRead, offset: offset, length: length}:
		return nil
	case <-s.done:
		return ErrStoreClosed
	}
}

// serviceLoop performs queued transfers against the backing file and fires
// the completion callbacks. Runs until Close.
func (s *FileStore) serviceLoop() {
	for {
		select {
		case <-s.done:
			return
		case req := <-s.requests:
			s.mu.Lock()
			writeBuf, readBuf := s.writeBuf, s.readBuf
			writeDone, readDone := s.writeDone, s.readDone
			file := s.file
			s.mu.Unlock()

			switch req.kind {
			case transferWrite:
				n, _ := file.WriteAt(writeBuf[:req.length], req.offset)
				_ = file.Sync()
				writeDone(n, 0, 0)
			case transferRead:
				n, _ := file.ReadAt(readBuf[:req.length], req.offset)
				readDone(n, 0, 0)
			}
		}
	}
}

// Close stops the completion goroutine and closes the backing file.
// Outstanding requests may be dropped without their callback firing.
func (s *FileStore) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	close(s.done)
	return s.file.Close()
}
