package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/hamed0406/channelcheck/internal/dispatcharr"
	"github.com/hamed0406/channelcheck/internal/domain"
	apimw "github.com/hamed0406/channelcheck/internal/httpapi/middleware"
	"github.com/hamed0406/channelcheck/internal/metrics"
	"github.com/hamed0406/channelcheck/internal/repo"
	"github.com/hamed0406/channelcheck/internal/scheduler"
	"github.com/hamed0406/channelcheck/internal/sink"
)

// RunController is the part of the monitor the API drives.
type RunController interface {
	Trigger(ctx context.Context, selectors []string) (string, error)
	Progress() scheduler.Progress
	Cancel()
}

type UpstreamChecker interface {
	Status(ctx context.Context) dispatcharr.APIStatus
}

type Server struct {
	Logger   *zap.Logger
	Table    *sink.Table
	Runs     RunController
	History  repo.VerdictStore
	Upstream UpstreamChecker
	Metrics  *metrics.Metrics
}

func NewServer(l *zap.Logger, table *sink.Table, runs RunController, history repo.VerdictStore, upstream UpstreamChecker, m *metrics.Metrics) *Server {
	if l == nil {
		l = zap.NewNop()
	}
	return &Server{Logger: l, Table: table, Runs: runs, History: history, Upstream: upstream, Metrics: m}
}

// Router wires routes. Reads need any key, triggering needs an admin key;
// each group has its own per-IP rate limit.
func (s *Server) Router(keys apimw.Keys, allowedOrigins []string, publicRPM, adminRPM int) http.Handler {
	r := chi.NewRouter()
	if len(allowedOrigins) == 0 {
		r.Use(cors.AllowAll().Handler)
	} else {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: allowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
			AllowedHeaders: []string{"Authorization", "Content-Type", "X-API-Key"},
			MaxAge:         300,
		}))
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Method(http.MethodGet, "/metrics", s.Metrics.Handler())

	r.Group(func(r chi.Router) {
		r.Use(apimw.RateLimit(publicRPM))
		r.Use(apimw.RequireAny(keys))
		r.Get("/api/channels", s.handleChannels)
		r.Get("/api/channels/{id}/history", s.handleHistory)
		r.Get("/api/runs/current", s.handleProgress)
		r.Get("/api/results/latest", s.handleLatest)
		r.Get("/api/upstream", s.handleUpstream)
	})

	r.Group(func(r chi.Router) {
		r.Use(apimw.RateLimit(adminRPM))
		r.Use(apimw.RequireAdmin(keys))
		r.Post("/api/runs", s.handleTrigger)
		r.Delete("/api/runs/current", s.handleCancel)
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) handleChannels(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Table.Rows())
}

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Runs.Progress())
}

type triggerPayload struct {
	Channels []string `json:"channels"`
}

func (s *Server) handleTrigger(w http.ResponseWriter, r *http.Request) {
	var p triggerPayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "bad payload")
		return
	}
	runID, err := s.Runs.Trigger(r.Context(), dispatcharr.ParseSelectors(p.Channels...))
	switch {
	case err == nil:
	case errors.Is(err, scheduler.ErrNoChannels):
		writeError(w, http.StatusNotFound, err.Error())
		return
	case dispatcharr.IsUnauthorized(err):
		s.Logger.Warn("trigger_unauthorized", zap.Error(err))
		writeError(w, http.StatusBadGateway, "upstream rejected the API key")
		return
	default:
		s.Logger.Warn("trigger_error", zap.Error(err))
		writeError(w, http.StatusBadGateway, "could not fetch channels")
		return
	}

	s.Logger.Info("run_triggered", zap.String("run_id", runID), zap.Strings("channels", p.Channels))
	writeJSON(w, http.StatusAccepted, map[string]string{"run_id": runID})
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	s.Runs.Cancel()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleLatest(w http.ResponseWriter, r *http.Request) {
	if s.History == nil {
		writeJSON(w, http.StatusOK, []repo.LatestRow{})
		return
	}
	rows, err := s.History.Latest(r.Context())
	if err != nil {
		s.Logger.Warn("latest_error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "latest error")
		return
	}
	if rows == nil {
		rows = []repo.LatestRow{}
	}
	writeJSON(w, http.StatusOK, rows)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.History == nil {
		writeJSON(w, http.StatusOK, []domain.CheckRecord{})
		return
	}
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 1000 {
			writeError(w, http.StatusBadRequest, "limit must be 1..1000")
			return
		}
		limit = n
	}
	recs, err := s.History.History(r.Context(), domain.ChannelID(chi.URLParam(r, "id")), limit)
	if err != nil {
		s.Logger.Warn("history_error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "history error")
		return
	}
	if recs == nil {
		recs = []domain.CheckRecord{}
	}
	writeJSON(w, http.StatusOK, recs)
}

func (s *Server) handleUpstream(w http.ResponseWriter, r *http.Request) {
	if s.Upstream == nil {
		writeError(w, http.StatusServiceUnavailable, "upstream not configured")
		return
	}
	writeJSON(w, http.StatusOK, s.Upstream.Status(r.Context()))
}
