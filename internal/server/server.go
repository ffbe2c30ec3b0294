package server

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"feedguard/internal/feed"
	"feedguard/internal/ingest"
	"feedguard/internal/metrics"
	"feedguard/internal/store"
	"feedguard/internal/threat"
)

// Server exposes the feed management API over HTTP.
type Server struct {
	registry *feed.Registry
	store    store.IndicatorStore
	engine   *ingest.Engine
	results  *feed.ResultLog
	cfg      *Config
	router   *mux.Router
}

func New(reg *feed.Registry, st store.IndicatorStore, eng *ingest.Engine, results *feed.ResultLog, cfg *Config) *Server {
	s := &Server{registry: reg, store: st, engine: eng, results: results, cfg: cfg, router: mux.NewRouter()}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.HandleFunc("/v1/healthz", s.handleHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/v1/feeds", s.handleListFeeds).Methods(http.MethodGet)
	s.router.HandleFunc("/v1/feeds", s.requireAdmin(s.handleCreateFeed)).Methods(http.MethodPost)
	s.router.HandleFunc("/v1/feeds/{id}", s.handleGetFeed).Methods(http.MethodGet)
	s.router.HandleFunc("/v1/feeds/{id}", s.requireAdmin(s.handleUpdateFeed)).Methods(http.MethodPut)
	s.router.HandleFunc("/v1/feeds/{id}", s.requireAdmin(s.handleDeleteFeed)).Methods(http.MethodDelete)
	s.router.HandleFunc("/v1/feeds/{id}/ingest", s.requireAdmin(s.handleIngestFeed)).Methods(http.MethodPost)
	s.router.HandleFunc("/v1/indicators", s.handleIndicators).Methods(http.MethodGet)
	s.router.HandleFunc("/v1/indicators/search", s.handleSearchIndicators).Methods(http.MethodGet)
	s.router.HandleFunc("/v1/results", s.handleResults).Methods(http.MethodGet)
}

func (s *Server) Router() http.Handler { return s.router }

// StartMetrics serves the prometheus endpoint on its own listener.
func (s *Server) StartMetrics(addr string) {
	http.Handle("/metrics", promhttp.Handler())
	go func() {
		if err := http.ListenAndServe(addr, nil); err != nil && err != http.ErrServerClosed {
			slog.Error("metrics server error", "err", err)
		}
	}()
}

// requireAdmin gates mutating routes behind the configured admin token.
// Unauthorized calls are rejected before they reach the registry.
func (s *Server) requireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.AdminToken == "" {
			writeError(w, http.StatusForbidden, "admin API disabled: no admin token configured")
			return
		}
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if subtle.ConstantTimeCompare([]byte(token), []byte(s.cfg.AdminToken)) != 1 {
			writeError(w, http.StatusUnauthorized, "invalid or missing admin token")
			return
		}
		next(w, r)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListFeeds(w http.ResponseWriter, r *http.Request) {
	feeds := s.registry.List()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"data":    feeds,
		"count":   len(feeds),
	})
}

func (s *Server) handleCreateFeed(w http.ResponseWriter, r *http.Request) {
	var f feed.Feed
	if err := json.NewDecoder(r.Body).Decode(&f); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	created, err := s.registry.Create(f)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{"success": true, "data": created})
}

func (s *Server) handleGetFeed(w http.ResponseWriter, r *http.Request) {
	f, err := s.registry.Get(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusNotFound, "feed not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "data": f})
}

func (s *Server) handleUpdateFeed(w http.ResponseWriter, r *http.Request) {
	var patch feed.UpdatePatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	f, err := s.registry.Update(mux.Vars(r)["id"], patch)
	if err != nil {
		writeError(w, http.StatusNotFound, "feed not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "data": f})
}

func (s *Server) handleDeleteFeed(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	f, err := s.registry.Delete(id)
	if err != nil {
		writeError(w, http.StatusNotFound, "feed not found")
		return
	}
	purged, err := s.store.PurgeBySource(r.Context(), id)
	if err != nil {
		slog.Error("indicator purge failed", "feed", f.Name, "feed_id", id, "err", err)
	}
	metrics.FeedIndicators.DeleteLabelValues(id)
	slog.Info("feed deleted with indicators", "feed", f.Name, "feed_id", id, "purged", purged)
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "message": "feed deleted"})
}

func (s *Server) handleIngestFeed(w http.ResponseWriter, r *http.Request) {
	result, err := s.engine.Ingest(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		if errors.Is(err, feed.ErrNotFound) {
			writeError(w, http.StatusNotFound, "feed not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "data": result})
}

func (s *Server) handleIndicators(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r.URL.Query().Get("limit"))
	indicators, err := s.store.Query(r.Context(), r.URL.Query().Get("feed"), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to query indicators")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"data":    indicators,
		"count":   len(indicators),
	})
}

func (s *Server) handleSearchIndicators(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeError(w, http.StatusBadRequest, "missing query parameter: q")
		return
	}
	indicators, err := s.store.Search(r.Context(), q, threat.Type(r.URL.Query().Get("type")))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to search indicators")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"data":    indicators,
		"count":   len(indicators),
	})
}

func (s *Server) handleResults(w http.ResponseWriter, r *http.Request) {
	results := s.results.List(r.URL.Query().Get("feed"), parseLimit(r.URL.Query().Get("limit")))
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"data":    results,
		"count":   len(results),
	})
}

func parseLimit(s string) int {
	if s == "" {
		return 0
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("response encode failed", "err", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
