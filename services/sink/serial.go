package sink

import (
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
)

// SerialSink streams records over a serial/USB CDC device. Write never
// blocks the scheduling loop: records are queued and a writer goroutine
// drains the queue. When the queue is full the record is dropped.
type SerialSink struct {
	name string
	w    io.WriteCloser

	mu     sync.RWMutex
	queue  chan []byte
	closed bool
	done   chan struct{}

	sent    uint64
	dropped uint64
	failed  uint64
	warn    *warnLimiter
}

// OpenSerial opens device for writing and starts the transmit goroutine.
func OpenSerial(device string, queueSize int) (*SerialSink, error) {
	f, err := os.OpenFile(device, os.O_WRONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("open serial %s: %w", device, err)
	}
	return NewSerialSink("serial", f, queueSize), nil
}

// NewSerialSink wraps any byte transport, e.g. a tty or a pipe.
func NewSerialSink(name string, w io.WriteCloser, queueSize int) *SerialSink {
	if queueSize <= 0 {
		queueSize = 256
	}
	s := &SerialSink{
		name:  name,
		w:     w,
		queue: make(chan []byte, queueSize),
		done:  make(chan struct{}),
		warn:  newWarnLimiter(),
	}
	go s.run()
	return s
}

func (s *SerialSink) Name() string { return s.name }

func (s *SerialSink) Write(record []byte) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return io.ErrClosedPipe
	}

	buf := append([]byte(nil), record...)
	select {
	case s.queue <- buf:
		return nil
	default:
		atomic.AddUint64(&s.dropped, 1)
		return ErrDropped
	}
}

func (s *SerialSink) run() {
	defer close(s.done)
	for rec := range s.queue {
		if _, err := s.w.Write(rec); err != nil {
			atomic.AddUint64(&s.failed, 1)
			s.warn.warn("%s transmit: %v", s.name, err)
			continue
		}
		atomic.AddUint64(&s.sent, 1)
	}
}

// Close drains queued records and closes the transport.
func (s *SerialSink) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.queue)
	s.mu.Unlock()

	<-s.done
	return s.w.Close()
}

// Stats returns sent, dropped and failed record counts.
func (s *SerialSink) Stats() (sent, dropped, failed uint64) {
	return atomic.LoadUint64(&s.sent), atomic.LoadUint64(&s.dropped), atomic.LoadUint64(&s.failed)
}
