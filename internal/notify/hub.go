package notify

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
)

// Hub tracks the open event streams of every connected user.
// A user may hold several streams at once, one per browser tab.
type Hub struct {
	mu      sync.Mutex
	streams map[int64]map[*Stream]struct{}

	done     chan struct{}
	shutdown sync.Once
}

// NewHub creates an empty Hub.
func NewHub() *Hub {
	return &Hub{
		streams: make(map[int64]map[*Stream]struct{}),
		done:    make(chan struct{}),
	}
}

// Register adds a stream for userID.
func (h *Hub) Register(userID int64, s *Stream) {
	h.mu.Lock()
	defer h.mu.Unlock()

	set, ok := h.streams[userID]
	if !ok {
		set = make(map[*Stream]struct{})
		h.streams[userID] = set
	}
	set[s] = struct{}{}
}

// Deregister removes a stream. Removing an unknown stream is a no-op.
func (h *Hub) Deregister(userID int64, s *Stream) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(userID, s)
}

func (h *Hub) removeLocked(userID int64, s *Stream) {
	set, ok := h.streams[userID]
	if !ok {
		return
	}
	delete(set, s)
	if len(set) == 0 {
		delete(h.streams, userID)
	}
}

// Connections returns the number of open streams of userID.
func (h *Hub) Connections(userID int64) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.streams[userID])
}

// Send writes payload as one event to every stream of userID. Streams whose
// write fails are evicted. delivered is true when at least one write succeeded;
// err is set only when streams existed and every write failed.
func (h *Hub) Send(userID int64, payload any) (delivered bool, err error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return false, fmt.Errorf("encode event: %w", err)
	}

	h.mu.Lock()
	targets := make([]*Stream, 0, len(h.streams[userID]))
	for s := range h.streams[userID] {
		targets = append(targets, s)
	}
	h.mu.Unlock()

	var lastErr error
	for _, s := range targets {
		if werr := s.WriteEvent(data); werr != nil {
			slog.Warn("sse write failed, dropping stream", "user_id", userID, "error", werr)
			s.Close()
			h.Deregister(userID, s)
			lastErr = werr
			continue
		}
		delivered = true
	}
	if !delivered && lastErr != nil {
		return false, fmt.Errorf("write event: %w", lastErr)
	}
	return delivered, nil
}

// Done is closed once Shutdown has been called.
func (h *Hub) Done() <-chan struct{} {
	return h.done
}

// Shutdown closes every registered stream and signals Done so that
// long-lived stream handlers return.
func (h *Hub) Shutdown() {
	h.shutdown.Do(func() {
		close(h.done)

		h.mu.Lock()
		var open []*Stream
		for userID, set := range h.streams {
			for s := range set {
				open = append(open, s)
			}
			delete(h.streams, userID)
		}
		h.mu.Unlock()

		// Close waits for in-flight writes; the registry stays usable meanwhile.
		for _, s := range open {
			s.Close()
		}
	})
}
