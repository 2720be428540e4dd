// Package api implements the HTTP REST API over the configuration store and
// the operator entry protocol.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/micro-nova/modcfg/internal/events"
	"github.com/micro-nova/modcfg/internal/protocol"
)

// Handlers holds dependencies for all HTTP handlers.
type Handlers struct {
	store  Store
	proto  Protocol
	events EventBus
}

// Store is the configuration store as seen by the handlers.
type Store interface {
	Size() int
	Base() int
	Bytes() []byte
	GetByte(index int) byte
	SetByte(ctx context.Context, index int, value byte) (bool, error)
	Save(ctx context.Context) error
	Load(ctx context.Context) error
	Erase(ctx context.Context) error
}

// Protocol is the operator entry protocol as seen by the handlers.
type Protocol interface {
	Interact(ctx context.Context, ev protocol.Event) (protocol.Outcome, error)
	Pending() (address int, deadline time.Time, ok bool)
	Timeout() time.Duration
}

// EventBus is the interface for publishing and subscribing to notifications.
type EventBus interface {
	Subscribe(id string) <-chan events.Notification
	Unsubscribe(id string)
	Publish(n events.Notification)
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes an AppError as a JSON response.
func writeError(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")
	if appErr, ok := err.(*AppError); ok {
		w.WriteHeader(appErr.Status)
		_ = json.NewEncoder(w).Encode(appErr)
		return
	}
	w.WriteHeader(http.StatusInternalServerError)
	_ = json.NewEncoder(w).Encode(ErrInternal(err.Error()))
}

// intParam reads an integer path parameter by name.
func intParam(r *http.Request, name string) (int, error) {
	s := chi.URLParam(r, name)
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, ErrBadRequest(name, "invalid "+name+" parameter")
	}
	return n, nil
}
