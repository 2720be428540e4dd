package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter creates and returns the main HTTP router.
func NewRouter(store Store, proto Protocol, bus EventBus) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(corsMiddleware)
	r.Use(middleware.CleanPath)

	h := &Handlers{store: store, proto: proto, events: bus}

	r.Get("/api", h.getInfo)
	r.Get("/api/", h.getInfo)

	// Configuration bytes
	r.Get("/api/config", h.getConfig)
	r.Get("/api/config/{index}", h.getByte)
	r.Put("/api/config/{index}", h.setByte)
	r.Post("/api/config/save", h.saveConfig)
	r.Post("/api/config/load", h.loadConfig)
	r.Post("/api/config/erase", h.eraseConfig)

	// Operator protocol
	r.Get("/api/interact", h.getPending)
	r.Post("/api/interact", h.interact)

	// SSE
	r.Get("/api/subscribe", h.sseEvents)

	return r
}

// corsMiddleware adds permissive CORS headers for local network access.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
