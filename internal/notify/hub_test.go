package notify

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"os"
	"sync"
	"testing"
	"time"
)

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("broken pipe") }

type safeBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *safeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *safeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type recordingController struct {
	flushes   int
	deadlines []time.Time
}

func (c *recordingController) Flush() error { c.flushes++; return nil }

func (c *recordingController) SetWriteDeadline(d time.Time) error {
	c.deadlines = append(c.deadlines, d)
	return nil
}

// stalledConn accepts no bytes until its write deadline passes, like a
// client that stays connected but stops reading. With no deadline it blocks
// until release is closed.
type stalledConn struct {
	mu       sync.Mutex
	deadline time.Time
	entered  chan struct{}
	release  chan struct{}
	once     sync.Once
}

func newStalledConn() *stalledConn {
	return &stalledConn{entered: make(chan struct{}), release: make(chan struct{})}
}

func (c *stalledConn) Flush() error { return nil }

func (c *stalledConn) SetWriteDeadline(d time.Time) error {
	c.mu.Lock()
	c.deadline = d
	c.mu.Unlock()
	return nil
}

func (c *stalledConn) Write([]byte) (int, error) {
	c.once.Do(func() { close(c.entered) })

	c.mu.Lock()
	deadline := c.deadline
	c.mu.Unlock()

	if deadline.IsZero() {
		<-c.release
		return 0, errors.New("connection reset")
	}
	select {
	case <-time.After(time.Until(deadline)):
		return 0, os.ErrDeadlineExceeded
	case <-c.release:
		return 0, errors.New("connection reset")
	}
}

func TestHub_SendWithoutConnectionIsNoop(t *testing.T) {
	hub := NewHub()

	delivered, err := hub.Send(7, map[string]string{"type": "x"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if delivered {
		t.Fatal("nothing should be delivered")
	}
	if len(hub.streams) != 0 {
		t.Fatalf("registry mutated: %v", hub.streams)
	}
}

func TestHub_SendFramesEveryStreamOfUser(t *testing.T) {
	hub := NewHub()
	var tab1, tab2, other safeBuffer
	ctl := &recordingController{}
	hub.Register(1, NewStream(&tab1, ctl, time.Second))
	hub.Register(1, NewStream(&tab2, nil, 0))
	hub.Register(2, NewStream(&other, nil, 0))

	delivered, err := hub.Send(1, map[string]string{"type": "bill_reminder"})
	if err != nil || !delivered {
		t.Fatalf("delivered=%v err=%v", delivered, err)
	}

	want := "data: {\"type\":\"bill_reminder\"}\n\n"
	if tab1.String() != want || tab2.String() != want {
		t.Fatalf("unexpected frames: %q / %q", tab1.String(), tab2.String())
	}
	if other.String() != "" {
		t.Fatalf("other user received %q", other.String())
	}
	if ctl.flushes != 1 || len(ctl.deadlines) != 1 {
		t.Fatalf("want 1 flush and 1 deadline, got %d and %d", ctl.flushes, len(ctl.deadlines))
	}
	if hub.Connections(1) != 2 {
		t.Fatalf("want 2 connections, got %d", hub.Connections(1))
	}
}

func TestHub_WriteErrorEvictsStream(t *testing.T) {
	hub := NewHub()
	hub.Register(3, NewStream(failingWriter{}, nil, 0))

	delivered, err := hub.Send(3, map[string]string{"type": "x"})
	if delivered {
		t.Fatal("failed write reported as delivered")
	}
	if err == nil {
		t.Fatal("expected write error")
	}
	if hub.Connections(3) != 0 {
		t.Fatalf("stream not evicted: %d", hub.Connections(3))
	}

	delivered, err = hub.Send(3, map[string]string{"type": "x"})
	if err != nil || delivered {
		t.Fatalf("second send should be a silent no-op: delivered=%v err=%v", delivered, err)
	}
}

func TestHub_PartialFailureStillDelivers(t *testing.T) {
	hub := NewHub()
	var ok safeBuffer
	hub.Register(4, NewStream(failingWriter{}, nil, 0))
	hub.Register(4, NewStream(&ok, nil, 0))

	delivered, err := hub.Send(4, map[string]int{"n": 1})
	if err != nil || !delivered {
		t.Fatalf("delivered=%v err=%v", delivered, err)
	}
	if hub.Connections(4) != 1 {
		t.Fatalf("want the healthy stream kept, got %d", hub.Connections(4))
	}
}

func TestHub_DeregisterAndShutdown(t *testing.T) {
	hub := NewHub()
	var buf safeBuffer
	s := NewStream(&buf, nil, 0)
	hub.Register(5, s)
	hub.Deregister(5, s)
	hub.Deregister(5, s)
	if hub.Connections(5) != 0 {
		t.Fatal("deregister failed")
	}

	s2 := NewStream(&buf, nil, 0)
	hub.Register(6, s2)
	hub.Shutdown()
	hub.Shutdown()

	select {
	case <-hub.Done():
	default:
		t.Fatal("Done not closed after Shutdown")
	}
	if hub.Connections(6) != 0 {
		t.Fatal("shutdown should drop streams")
	}
	if err := s2.WriteComment("ping"); !errors.Is(err, ErrStreamClosed) {
		t.Fatalf("want ErrStreamClosed, got %v", err)
	}
}

func TestStream_MultilinePayload(t *testing.T) {
	var buf safeBuffer
	s := NewStream(&buf, nil, 0)
	if err := s.WriteEvent([]byte("a\nb")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if got := buf.String(); got != "data: a\ndata: b\n\n" {
		t.Fatalf("unexpected frame %q", got)
	}
}

func TestInAppSender_Preferences(t *testing.T) {
	hub := NewHub()
	var buf safeBuffer
	hub.Register(9, NewStream(&buf, nil, 0))
	sender := NewInAppSender(hub)

	disabled := userWith(9, false)
	if err := sender.SendEvent(disabled, Event{Type: EventBillReminder, Message: "hi"}); !errors.Is(err, ErrSkipped) {
		t.Fatalf("disabled user: want ErrSkipped, got %v", err)
	}
	if buf.String() != "" {
		t.Fatalf("disabled user received %q", buf.String())
	}

	if err := sender.SendEvent(disabled, Event{Type: EventTest, Message: "diagnostic"}); err != nil {
		t.Fatalf("test event should bypass preferences: %v", err)
	}
	if !strings.HasPrefix(buf.String(), "data: ") {
		t.Fatalf("expected a frame, got %q", buf.String())
	}

	var ev Event
	payload := strings.TrimSuffix(strings.TrimPrefix(buf.String(), "data: "), "\n\n")
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if ev.Type != EventTest || ev.SentAt.IsZero() {
		t.Fatalf("unexpected event %+v", ev)
	}

	offline := userWith(10, true)
	if err := sender.SendEvent(offline, Event{Type: EventBillReminder}); !errors.Is(err, ErrSkipped) {
		t.Fatalf("offline user: want ErrSkipped, got %v", err)
	}
}

func TestStream_WriteDeadlineUnblocksStalledClient(t *testing.T) {
	hub := NewHub()
	conn := newStalledConn()
	defer close(conn.release)
	hub.Register(11, NewStream(conn, conn, 50*time.Millisecond))

	type result struct {
		delivered bool
		err       error
	}
	done := make(chan result, 1)
	go func() {
		delivered, err := hub.Send(11, map[string]string{"type": "x"})
		done <- result{delivered, err}
	}()

	select {
	case r := <-done:
		if r.delivered || !errors.Is(r.err, os.ErrDeadlineExceeded) {
			t.Fatalf("delivered=%v err=%v, want deadline exceeded", r.delivered, r.err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("send blocked on a stalled client")
	}
	if hub.Connections(11) != 0 {
		t.Fatal("stalled stream should be evicted")
	}
}

func TestHub_ShutdownDoesNotHoldRegistryDuringWrite(t *testing.T) {
	hub := NewHub()
	conn := newStalledConn()
	hub.Register(12, NewStream(conn, nil, 0))

	sendDone := make(chan struct{})
	go func() {
		defer close(sendDone)
		_, _ = hub.Send(12, map[string]string{"type": "x"})
	}()
	<-conn.entered

	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		hub.Shutdown()
	}()
	<-hub.Done()

	counted := make(chan int, 1)
	go func() { counted <- hub.Connections(12) }()
	select {
	case <-counted:
	case <-time.After(2 * time.Second):
		t.Fatal("registry locked while a stream write is in flight")
	}

	close(conn.release)
	for _, ch := range []chan struct{}{sendDone, shutdownDone} {
		select {
		case <-ch:
		case <-time.After(2 * time.Second):
			t.Fatal("shutdown did not finish after the write returned")
		}
	}
}
