package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/google/uuid"
)

// EventSnapshot names the SSE frame carrying the whole configuration. Later
// frames are named after their notification type.
const EventSnapshot = "snapshot"

// sseEvents handles the SSE (Server-Sent Events) endpoint.
// Clients receive the current configuration immediately, then a notification
// for every change, interaction and reload.
func (h *Handlers) sseEvents(w http.ResponseWriter, r *http.Request) {
	// Verify the client supports streaming
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering

	id := uuid.New().String()
	ch := h.events.Subscribe(id)
	defer h.events.Unsubscribe(id)

	// Send current configuration immediately
	sendSSE(w, flusher, EventSnapshot, h.configView())

	for {
		select {
		case n, ok := <-ch:
			if !ok {
				return
			}
			sendSSE(w, flusher, n.Type, n)
		case <-r.Context().Done():
			return
		}
	}
}

func sendSSE(w http.ResponseWriter, flusher http.Flusher, event string, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	_, _ = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
	flusher.Flush()
}
