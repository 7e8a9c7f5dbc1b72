package link

import (
	"bufio"
	"io"
	"os"
	"sync"
	"time"

	"github.com/robotalks/cometload/pkg/loader"
)

type readDeadliner interface {
	SetReadDeadline(time.Time) error
}

// Stream adapts an io.ReadWriteCloser to loader.Port. Writes are buffered
// until Flush. If the underlying stream supports read deadlines, each
// RecvByte sets one, otherwise the stream must time out reads by itself.
type Stream struct {
	RW io.ReadWriteCloser
	// EOFIsTimeout treats io.EOF as a timeout, for devices returning EOF
	// when their read timeout expires.
	EOFIsTimeout bool

	w         *bufio.Writer
	buf       [1]byte
	closeOnce sync.Once
	closeErr  error
}

// NewStream wraps rw.
func NewStream(rw io.ReadWriteCloser) *Stream {
	return &Stream{RW: rw, w: bufio.NewWriter(rw)}
}

// Write implements io.Writer.
func (s *Stream) Write(p []byte) (int, error) {
	return s.w.Write(p)
}

// Flush implements loader.Port.
func (s *Stream) Flush() error {
	return s.w.Flush()
}

// RecvByte implements loader.Port.
func (s *Stream) RecvByte(timeout time.Duration) (byte, error) {
	if d, ok := s.RW.(readDeadliner); ok {
		var deadline time.Time
		if timeout > 0 {
			deadline = time.Now().Add(timeout)
		}
		if err := d.SetReadDeadline(deadline); err != nil {
			return 0, err
		}
	}
	n, err := s.RW.Read(s.buf[:])
	if n > 0 {
		return s.buf[0], nil
	}
	if err == nil || os.IsTimeout(err) || (err == io.EOF && s.EOFIsTimeout) {
		return 0, loader.ErrTimeout
	}
	return 0, err
}

// Close implements io.Closer. It is safe to call more than once.
func (s *Stream) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.RW.Close()
	})
	return s.closeErr
}
