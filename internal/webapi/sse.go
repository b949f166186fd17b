package webapi

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/spboyer/staffeval/internal/events"
)

// eventStream writes pipeline events as server-sent events. Headers are
// sent with the first event so a phase that fails its preconditions can
// still answer with a plain JSON error.
type eventStream struct {
	mu      sync.Mutex
	w       http.ResponseWriter
	flusher http.Flusher
	started bool
	closed  bool
}

func newEventStream(w http.ResponseWriter) (*eventStream, bool) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, false
	}
	return &eventStream{w: w, flusher: flusher}, true
}

// Listen is an events.Listener. The event payload is sent flat as the
// data body, with session_id added when the event carries one.
func (s *eventStream) Listen(e events.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.send(string(e.Type), wirePayload(e))
}

func wirePayload(e events.Event) map[string]any {
	out := make(map[string]any, len(e.Data)+1)
	for k, v := range e.Data {
		out[k] = v
	}
	if _, ok := out["session_id"]; !ok && e.SessionID != "" {
		out["session_id"] = e.SessionID
	}
	return out
}

// Started reports whether any event has been written.
func (s *eventStream) Started() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started
}

// Fail sends a terminal error event.
func (s *eventStream) Fail(code int, msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data := events.ErrorData(msg)
	data["code"] = code
	s.send(string(events.Error), data)
	s.closed = true
}

// Close marks the stream finished; later events are dropped.
func (s *eventStream) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}

func (s *eventStream) send(name string, payload any) {
	if s.closed {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		slog.Warn("encoding stream event", "event", name, "error", err)
		return
	}
	if !s.started {
		h := s.w.Header()
		h.Set("Content-Type", "text/event-stream")
		h.Set("Cache-Control", "no-cache")
		h.Set("Connection", "keep-alive")
		h.Set("X-Accel-Buffering", "no")
		s.w.WriteHeader(http.StatusOK)
		s.started = true
	}
	fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", name, data)
	s.flusher.Flush()
}
