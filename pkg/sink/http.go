package sink

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// HTTPSink serves the most recent state snapshot over HTTP, the reference
// sink grounded on the teacher's chi router setup in cmd/chicha.
type HTTPSink struct {
	log zerolog.Logger

	mu       sync.RWMutex
	snapshot Snapshot

	router *chi.Mux
}

// NewHTTPSink builds the router; call ListenAndServe to actually bind.
func NewHTTPSink(log zerolog.Logger) *HTTPSink {
	s := &HTTPSink{log: log}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Get("/api/state", s.handleState)
	s.router = r

	return s
}

// ListenAndServe blocks serving the state endpoint on addr.
func (s *HTTPSink) ListenAndServe(addr string) error {
	if err := http.ListenAndServe(addr, s.router); err != nil {
		return fmt.Errorf("sink: http listen on %s: %w", addr, err)
	}
	return nil
}

func (s *HTTPSink) handleState(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	snap := s.snapshot
	s.mu.RUnlock()

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(snap); err != nil {
		s.log.Err(err).Msg("failed to encode state snapshot")
		w.WriteHeader(http.StatusInternalServerError)
	}
}

// BroadcastState stores snap as the latest snapshot served at /api/state.
func (s *HTTPSink) BroadcastState(snap Snapshot) error {
	s.mu.Lock()
	s.snapshot = snap
	s.mu.Unlock()
	return nil
}
