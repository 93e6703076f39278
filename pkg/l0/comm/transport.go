package comm

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/golang/glog"
)

// Transport is the byte level access to the UART link.
// Available and ReadByte must not block.
type Transport interface {
	// Available returns the number of bytes which can be read without blocking.
	Available() int
	// ReadByte reads one available byte.
	ReadByte() (byte, error)
	// Write writes all bytes to the link.
	Write(p []byte) (int, error)
}

// Clock provides monotonic time for deadlines.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time {
	return time.Now()
}

// SystemClock is the Clock based on time.Now.
var SystemClock Clock = systemClock{}

// DefaultStreamBufferSize is the default capacity of a Stream receive queue.
const DefaultStreamBufferSize = 1024

// Stream adapts a blocking io.ReadWriter (e.g. serial port) into a Transport.
// Run must be running for Available to report received bytes.
type Stream struct {
	ReadWriter io.ReadWriter
	// BufferSize limits the received bytes queued but not read.
	// Extra bytes are dropped.
	BufferSize int

	lock    sync.Mutex
	recv    []byte
	dropped int
	err     error
}

// NewStream creates a Stream.
func NewStream(rw io.ReadWriter) *Stream {
	return &Stream{ReadWriter: rw, BufferSize: DefaultStreamBufferSize}
}

// Available implements Transport.
func (s *Stream) Available() int {
	s.lock.Lock()
	defer s.lock.Unlock()
	return len(s.recv)
}

// ReadByte implements Transport.
// It returns the read error once the queue is drained.
func (s *Stream) ReadByte() (byte, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	if len(s.recv) == 0 {
		if s.err != nil {
			return 0, s.err
		}
		return 0, io.ErrNoProgress
	}
	b := s.recv[0]
	s.recv = s.recv[1:]
	return b, nil
}

// Write implements Transport.
func (s *Stream) Write(p []byte) (int, error) {
	if glog.V(3) {
		glog.Infof("TX % x", p)
	}
	return s.ReadWriter.Write(p)
}

// Dropped returns the number of bytes dropped because of a full queue.
func (s *Stream) Dropped() int {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.dropped
}

// Run reads from ReadWriter until ctx is done or a read error.
func (s *Stream) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go s.readLoop(ctx, errCh)
	select {
	case <-ctx.Done():
		if closer, ok := s.ReadWriter.(io.Closer); ok {
			closer.Close()
		}
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

func (s *Stream) readLoop(ctx context.Context, errCh chan error) {
	buf := make([]byte, 256)
	for {
		n, err := s.ReadWriter.Read(buf)
		if n > 0 {
			s.enqueue(buf[:n])
		}
		if err != nil {
			s.lock.Lock()
			s.err = err
			s.lock.Unlock()
			errCh <- err
			return
		}
		select {
		case <-ctx.Done():
			return
		default:
		}
	}
}

func (s *Stream) enqueue(p []byte) {
	if glog.V(3) {
		glog.Infof("RX % x", p)
	}
	size := s.BufferSize
	if size <= 0 {
		size = DefaultStreamBufferSize
	}
	s.lock.Lock()
	defer s.lock.Unlock()
	n := size - len(s.recv)
	if n > len(p) {
		n = len(p)
	} else if n < 0 {
		n = 0
	}
	s.recv = append(s.recv, p[:n]...)
	s.dropped += len(p) - n
}
