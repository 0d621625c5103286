package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"git.home.luguber.info/inful/texbuilder/internal/buildsystem"
	"git.home.luguber.info/inful/texbuilder/internal/query"
)

const (
	subscriberBuffer  = 16
	keepaliveInterval = 30 * time.Second
)

// StreamEvent is one frame of the /api/events stream.
type StreamEvent struct {
	Type      string             `json:"type"` // connected, query_started or a buildsystem event kind
	QueryID   string             `json:"query_id,omitempty"`
	RootFile  string             `json:"root_file,omitempty"`
	Timestamp time.Time          `json:"timestamp"`
	Event     *buildsystem.Event `json:"event,omitempty"`
}

// EventHub fans query events out to stream subscribers. It implements
// buildsystem.EventEmitter.
type EventHub struct {
	mu          sync.RWMutex
	subscribers map[chan StreamEvent]struct{}
	closed      bool
}

// NewEventHub creates an empty hub.
func NewEventHub() *EventHub {
	return &EventHub{subscribers: make(map[chan StreamEvent]struct{})}
}

// Subscribe returns a channel receiving every published event and a function
// to unsubscribe. The channel is closed on unsubscribe or Close.
func (h *EventHub) Subscribe() (<-chan StreamEvent, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan StreamEvent, subscriberBuffer)
	if h.closed {
		close(ch)
		return ch, func() {}
	}
	h.subscribers[ch] = struct{}{}

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if _, ok := h.subscribers[ch]; ok {
				delete(h.subscribers, ch)
				close(ch)
			}
		})
	}
}

// Publish sends ev to every subscriber without blocking.
func (h *EventHub) Publish(ev StreamEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.subscribers {
		select {
		case ch <- ev:
		default:
			slog.Warn("Event stream subscriber is slow, dropping event", slog.String("type", ev.Type))
		}
	}
}

// SubscriberCount returns the number of open streams.
func (h *EventHub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}

// Close ends every open stream.
func (h *EventHub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for ch := range h.subscribers {
		close(ch)
		delete(h.subscribers, ch)
	}
}

// EmitQueryStarted implements buildsystem.EventEmitter.
func (h *EventHub) EmitQueryStarted(_ context.Context, q *query.Query) error {
	h.Publish(StreamEvent{Type: "query_started", QueryID: q.ID(), RootFile: q.RootFile(), Timestamp: time.Now()})
	return nil
}

// EmitQueryEvent implements buildsystem.EventEmitter.
func (h *EventHub) EmitQueryEvent(_ context.Context, ev buildsystem.Event) error {
	h.Publish(StreamEvent{Type: string(ev.Kind), QueryID: ev.QueryID, RootFile: ev.RootFile, Timestamp: ev.Timestamp, Event: &ev})
	return nil
}

// handleEventStream streams hub events as server-sent events until the client
// disconnects or the hub closes.
func (s *Server) handleEventStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	events, unsubscribe := s.hub.Subscribe()
	defer unsubscribe()

	s.logger.DebugContext(r.Context(), "Event stream opened")
	writeSSE(w, StreamEvent{Type: "connected", Timestamp: time.Now()})
	flusher.Flush()

	keepalive := time.NewTicker(keepaliveInterval)
	defer keepalive.Stop()

	for {
		select {
		case <-r.Context().Done():
			s.logger.DebugContext(r.Context(), "Event stream closed by client")
			return
		case <-keepalive.C:
			_, _ = fmt.Fprint(w, ": keepalive\n\n")
			flusher.Flush()
		case ev, ok := <-events:
			if !ok {
				return
			}
			writeSSE(w, ev)
			flusher.Flush()
		}
	}
}

func writeSSE(w http.ResponseWriter, ev StreamEvent) {
	data, err := json.Marshal(ev)
	if err != nil {
		slog.Error("Failed to marshal stream event", slog.Any("error", err))
		return
	}
	_, _ = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, data)
}
