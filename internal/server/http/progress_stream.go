package httpserver

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/helixir/citation-graph-service/internal/acquisition"
)

const (
	// sseHeartbeatInterval is how often an idle stream sends a keepalive comment.
	sseHeartbeatInterval = 15 * time.Second
	// sseMaxDuration is the maximum time an SSE stream may remain open.
	sseMaxDuration = 4 * time.Hour
	// subscriberBuffer is the number of updates buffered per stream.
	subscriberBuffer = 16
)

// stateIdle is reported before the orchestrator has published anything.
const stateIdle = "idle"

// Tracker holds the latest run progress and fans updates out to streams.
// It implements acquisition.ProgressSink.
type Tracker struct {
	mu      sync.Mutex
	current acquisition.Progress
	subs    map[chan acquisition.Progress]struct{}
	closed  bool
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{subs: make(map[chan acquisition.Progress]struct{})}
}

// Publish records p and forwards it to every subscriber. A slow subscriber
// loses its oldest buffered update, never the newest.
func (t *Tracker) Publish(p acquisition.Progress) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.current = p
	for ch := range t.subs {
		select {
		case ch <- p:
			continue
		default:
		}
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- p:
		default:
		}
	}
}

// Current returns the latest published progress.
func (t *Tracker) Current() acquisition.Progress {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current
}

// Subscribe returns a channel of progress updates and a function that
// cancels the subscription. The channel is closed by either the cancel
// function or Close.
func (t *Tracker) Subscribe() (<-chan acquisition.Progress, func()) {
	ch := make(chan acquisition.Progress, subscriberBuffer)

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	t.subs[ch] = struct{}{}
	t.mu.Unlock()

	return ch, func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		if _, ok := t.subs[ch]; ok {
			delete(t.subs, ch)
			close(ch)
		}
	}
}

// Close ends every open subscription.
func (t *Tracker) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	for ch := range t.subs {
		delete(t.subs, ch)
		close(ch)
	}
}

// sseEvent represents an event sent via SSE.
type sseEvent struct {
	EventType string         `json:"event_type"`
	Status    statusResponse `json:"status"`
	Timestamp time.Time      `json:"timestamp"`
}

// streamProgress handles GET /status/stream (SSE).
func (s *Server) streamProgress(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	// Subscribe before reading the current state so no update is missed.
	updates, unsubscribe := s.tracker.Subscribe()
	defer unsubscribe()
	current := s.tracker.Current()

	// Set SSE headers.
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	if isTerminalState(current.State) {
		sendSSEEvent(w, flusher, newSSEEvent(string(current.State), current))
		return
	}
	sendSSEEvent(w, flusher, newSSEEvent("stream_started", current))

	deadlineTimer := time.NewTimer(sseMaxDuration)
	defer deadlineTimer.Stop()
	heartbeat := time.NewTicker(sseHeartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return

		case <-deadlineTimer.C:
			sendSSEEvent(w, flusher, newSSEEvent("timeout", s.tracker.Current()))
			return

		case p, open := <-updates:
			if !open {
				return
			}
			if isTerminalState(p.State) {
				sendSSEEvent(w, flusher, newSSEEvent(string(p.State), p))
				return
			}
			sendSSEEvent(w, flusher, newSSEEvent("progress_update", p))

		case <-heartbeat.C:
			fmt.Fprint(w, ": keepalive\n\n")
			flusher.Flush()
		}
	}
}

func newSSEEvent(eventType string, p acquisition.Progress) sseEvent {
	now := time.Now().UTC()
	return sseEvent{
		EventType: eventType,
		Status:    progressToStatusResponse(p, now),
		Timestamp: now,
	}
}

// sendSSEEvent writes a single SSE event to the response writer.
func sendSSEEvent(w http.ResponseWriter, flusher http.Flusher, event sseEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.EventType, data)
	flusher.Flush()
}

// isTerminalState returns true if the run has ended.
func isTerminalState(state acquisition.RunState) bool {
	return state == acquisition.RunStateCompleted ||
		state == acquisition.RunStateStopped ||
		state == acquisition.RunStateFailed
}
