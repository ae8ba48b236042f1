package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/ent0n29/avatarchat/internal/config"
	"github.com/ent0n29/avatarchat/internal/observability"
	"github.com/ent0n29/avatarchat/internal/pipeline"
	"github.com/ent0n29/avatarchat/internal/runlog"
	"github.com/ent0n29/avatarchat/internal/tts"
)

type ChatHandler interface {
	HandleChat(ctx context.Context, message string) (pipeline.Response, error)
}

type VoiceLister interface {
	ListVoices(ctx context.Context) ([]tts.Voice, error)
}

type Server struct {
	cfg     config.Config
	chat    ChatHandler
	voices  VoiceLister
	runs    runlog.Store
	metrics *observability.Metrics
	logger  *zap.Logger

	metricsHandler http.Handler
}

func New(cfg config.Config, chat ChatHandler, voices VoiceLister, runs runlog.Store, metrics *observability.Metrics, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		cfg:            cfg,
		chat:           chat,
		voices:         voices,
		runs:           runs,
		metrics:        metrics,
		logger:         logger.Named("http"),
		metricsHandler: observability.MetricsHandler(),
	}
}

// UseGatherer serves /metrics from g instead of the default registry.
func (s *Server) UseGatherer(g prometheus.Gatherer) {
	s.metricsHandler = observability.MetricsHandlerFor(g)
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.accessLog)
	r.Use(middleware.Recoverer)
	if s.cfg.AllowAnyOrigin {
		r.Use(corsMiddleware)
	}

	r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = io.WriteString(w, "Avatar chat server is running\n")
	})
	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		s.metricsHandler.ServeHTTP(w, r)
	})

	r.Post("/chat", s.handleChat)
	r.Get("/v1/perf/latency", s.handlePerfLatency)
	r.Get("/v1/runs", s.handleListRuns)
	r.Get("/v1/voices", s.handleListVoices)
	r.Get("/v1/onboarding/status", s.handleOnboardingStatus)

	return r
}

type chatRequest struct {
	Message string `json:"message"`
}

type chatErrorResponse struct {
	Error  string `json:"error"`
	Detail string `json:"detail"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, errEmptyBody) {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if s.chat == nil {
		respondError(w, http.StatusNotImplemented, "unavailable", "chat pipeline not configured")
		return
	}

	resp, err := s.chat.HandleChat(r.Context(), req.Message)
	if err != nil {
		s.logger.Error("chat failed",
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.String("failure", string(pipeline.Classify(err))),
			zap.Error(err),
		)
		respondJSON(w, http.StatusInternalServerError, chatErrorResponse{
			Error:  "Something went wrong!",
			Detail: err.Error(),
		})
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
	})
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	status := "ready"
	if !s.cfg.TTSConfigured() || !s.cfg.ModelConfigured() {
		// Still serving: unconfigured deployments answer with empty replies.
		status = "degraded"
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"status":           status,
		"tts_configured":   s.cfg.TTSConfigured(),
		"model_configured": s.cfg.ModelConfigured(),
		"run_store_mode":   s.runStoreMode(),
	})
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := runlog.DefaultRecentLimit
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 500 {
			respondError(w, http.StatusBadRequest, "invalid_limit", "limit must be an integer in [1, 500]")
			return
		}
		limit = n
	}
	if s.runs == nil {
		respondJSON(w, http.StatusOK, map[string]any{"runs": []runlog.Record{}})
		return
	}
	runs, err := s.runs.Recent(r.Context(), limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "run_store_failed", err.Error())
		return
	}
	if runs == nil {
		runs = []runlog.Record{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

func (s *Server) runStoreMode() string {
	switch s.runs.(type) {
	case nil:
		return "disabled"
	case *runlog.PostgresStore:
		return "postgres"
	default:
		return "in-memory"
	}
}

func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		started := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(started)),
		)
	})
}

// corsMiddleware allows any origin, matching a browser front end served elsewhere.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

var errEmptyBody = errors.New("empty body")

func decodeJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return errEmptyBody
	}
	defer r.Body.Close()
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	if err := dec.Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return errEmptyBody
		}
		return err
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}
