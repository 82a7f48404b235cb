package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/IEBH/statesync/engine"
	"github.com/IEBH/statesync/metric"
	"github.com/IEBH/statesync/store"
)

// apiServer exposes the running engine over HTTP: store reads and patches,
// explicit saves, status, metrics, and a liveness probe.
type apiServer struct {
	eng     *syncengineHandle
	stores  *store.Registry
	metrics *metric.Registry
	logger  *slog.Logger
}

// syncengineHandle narrows the engine to what the API needs; tests swap in
// a stub.
type syncengineHandle struct {
	SaveNow       func(ctx context.Context) bool
	CurrentStatus func() string
}

func engineHandle(eng *syncengine.Engine) *syncengineHandle {
	return &syncengineHandle{
		SaveNow:       eng.SaveNow,
		CurrentStatus: func() string { return eng.CurrentStatus().String() },
	}
}

func newAPIServer(eng *syncengineHandle, stores *store.Registry, metrics *metric.Registry, logger *slog.Logger) *apiServer {
	return &apiServer{eng: eng, stores: stores, metrics: metrics, logger: logger}
}

func (s *apiServer) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /status", s.handleStatus)
	mux.HandleFunc("POST /save", s.handleSave)
	mux.HandleFunc("GET /stores/{id}", s.handleStoreGet)
	mux.HandleFunc("PATCH /stores/{id}", s.handleStorePatch)
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics.Handler())
	}
	return mux
}

func (s *apiServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *apiServer) handleStatus(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"sync_status": s.eng.CurrentStatus()})
}

func (s *apiServer) handleSave(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	if !s.eng.SaveNow(ctx) {
		// Either a save is already in flight or the write failed; the
		// caller can retry after checking status.
		s.writeJSON(w, http.StatusConflict, map[string]string{
			"saved":       "false",
			"sync_status": s.eng.CurrentStatus(),
		})
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{
		"saved":       "true",
		"sync_status": s.eng.CurrentStatus(),
	})
}

func (s *apiServer) handleStoreGet(w http.ResponseWriter, r *http.Request) {
	st := s.stores.Get(r.PathValue("id"))
	if st == nil {
		s.writeJSON(w, http.StatusNotFound, map[string]string{"error": "store not found"})
		return
	}
	s.writeJSON(w, http.StatusOK, st.CurrentState())
}

func (s *apiServer) handleStorePatch(w http.ResponseWriter, r *http.Request) {
	st := s.stores.Get(r.PathValue("id"))
	if st == nil {
		s.writeJSON(w, http.StatusNotFound, map[string]string{"error": "store not found"})
		return
	}

	var patch map[string]any
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "body must be a JSON object"})
		return
	}

	st.ApplyPartial(patch)
	s.writeJSON(w, http.StatusOK, st.CurrentState())
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Warn("response encode failed", "error", err)
	}
}
