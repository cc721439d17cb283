package pipes

import (
	"io"
	"sync"
)

// Stdin is a feedable guest input stream. Guest reads block until the host
// adds a line or closes the stream. When a read would block, the optional
// onRequest callback is invoked once so the host can prompt for input.
type Stdin struct {
	mu        sync.Mutex
	cond      *sync.Cond
	buf       []byte
	closed    bool
	onRequest func()
}

// NewStdin creates an interactive stdin pipe. onRequest may be nil.
func NewStdin(onRequest func()) *Stdin {
	s := &Stdin{onRequest: onRequest}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// AddLine appends a line of input, adding the newline terminator.
// Lines added after Close are dropped.
func (s *Stdin) AddLine(line string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.buf = append(s.buf, line...)
	s.buf = append(s.buf, '\n')
	s.cond.Broadcast()
}

// Close ends the stream. Pending buffered bytes are still readable,
// after which reads return io.EOF.
func (s *Stdin) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.cond.Broadcast()
	return nil
}

func (s *Stdin) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	requested := false
	for len(s.buf) == 0 {
		if s.closed {
			return 0, io.EOF
		}
		if s.onRequest != nil && !requested {
			requested = true
			req := s.onRequest
			s.mu.Unlock()
			req()
			s.mu.Lock()
			continue
		}
		s.cond.Wait()
	}

	n := copy(p, s.buf)
	s.buf = s.buf[n:]
	return n, nil
}
