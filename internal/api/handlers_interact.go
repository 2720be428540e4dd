package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/micro-nova/modcfg/internal/events"
	"github.com/micro-nova/modcfg/internal/protocol"
)

// InteractRequest is one operator event submitted over HTTP.
type InteractRequest struct {
	Kind  string `json:"kind"` // long | short | poll
	Value int    `json:"value"`
}

// PendingView describes the staged address, if any.
type PendingView struct {
	Pending   bool       `json:"pending"`
	Address   *int       `json:"address,omitempty"`
	Deadline  *time.Time `json:"deadline,omitempty"`
	TimeoutMs int64      `json:"timeout_ms"`
}

// InteractResponse reports the outcome of an event.
type InteractResponse struct {
	Outcome protocol.Outcome `json:"outcome"`
	PendingView
}

func (h *Handlers) pendingView() PendingView {
	v := PendingView{TimeoutMs: h.proto.Timeout().Milliseconds()}
	if addr, deadline, ok := h.proto.Pending(); ok {
		v.Pending = true
		v.Address = &addr
		v.Deadline = &deadline
	}
	return v
}

func (h *Handlers) getPending(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.pendingView())
}

func (h *Handlers) interact(w http.ResponseWriter, r *http.Request) {
	var req InteractRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, ErrBadRequest("", "invalid JSON: "+err.Error()))
		return
	}
	kind, err := protocol.ParseEventKind(req.Kind)
	if err != nil {
		writeError(w, ErrBadRequest("kind", err.Error()))
		return
	}
	ev := protocol.Event{Kind: kind, Value: req.Value}
	if kind == protocol.Poll {
		ev = protocol.PollEvent()
	}

	out, err := h.proto.Interact(r.Context(), ev)
	// A persistence failure still consumed the staged address.
	if h.events != nil {
		h.events.Publish(events.Notification{
			Type:    events.TypeInteraction,
			Value:   ev.Value,
			Event:   ev.String(),
			Outcome: out.String(),
		})
	}
	if err != nil {
		slog.Error("api: interaction not persisted", "event", ev.String(), "err", err)
		writeError(w, ErrInternal("value accepted but not persisted: "+err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, InteractResponse{Outcome: out, PendingView: h.pendingView()})
}

func (h *Handlers) getInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"config":   h.configView(),
		"protocol": h.pendingView(),
	})
}
