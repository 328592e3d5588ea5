package notify

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

// ErrStreamClosed is returned when writing to a stream after Close.
var ErrStreamClosed = errors.New("stream closed")

// Controller is the part of http.ResponseController a Stream drives.
type Controller interface {
	Flush() error
	SetWriteDeadline(deadline time.Time) error
}

// Stream is one open server-sent events response. Writes are serialized,
// so the scheduler and the request goroutine can both write to it.
type Stream struct {
	mu           sync.Mutex
	w            io.Writer
	ctl          Controller
	writeTimeout time.Duration
	closed       bool
}

// NewStream wraps w. When ctl is non-nil every frame is written under a
// deadline of writeTimeout (if positive) and flushed afterwards.
func NewStream(w io.Writer, ctl Controller, writeTimeout time.Duration) *Stream {
	return &Stream{w: w, ctl: ctl, writeTimeout: writeTimeout}
}

// WriteEvent writes a single "data: <payload>\n\n" frame.
func (s *Stream) WriteEvent(payload []byte) error {
	var b strings.Builder
	for _, line := range strings.Split(string(payload), "\n") {
		b.WriteString("data: ")
		b.WriteString(line)
		b.WriteString("\n")
	}
	b.WriteString("\n")
	return s.write(b.String())
}

// WriteComment writes an SSE comment line. Clients ignore it; proxies see traffic.
func (s *Stream) WriteComment(text string) error {
	return s.write(": " + text + "\n\n")
}

func (s *Stream) write(frame string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStreamClosed
	}
	if s.ctl != nil && s.writeTimeout > 0 {
		err := s.ctl.SetWriteDeadline(time.Now().Add(s.writeTimeout))
		if err != nil && !errors.Is(err, http.ErrNotSupported) {
			return err
		}
	}
	if _, err := io.WriteString(s.w, frame); err != nil {
		return err
	}
	if s.ctl != nil {
		return s.ctl.Flush()
	}
	return nil
}

// Close marks the stream unusable. It waits for an in-flight write, which
// the write deadline bounds.
func (s *Stream) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}
