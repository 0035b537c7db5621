// Package server exposes the engine over HTTP: POST /v1/query for
// queries, GET /healthz for provider availability, GET /metrics for
// Prometheus.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/benekli/minerva/pkg/config"
	"github.com/benekli/minerva/pkg/engine"
	"github.com/benekli/minerva/pkg/llms"
	"github.com/benekli/minerva/pkg/observability"
)

// maxRequestBody caps the query request body at 1 MiB.
const maxRequestBody = 1 << 20

// QueryEngine is what the server needs from the engine.
type QueryEngine interface {
	Query(ctx context.Context, req *engine.Request) (*engine.Response, error)
	Health(ctx context.Context) map[string]bool
}

// Server is the HTTP surface over one engine.
type Server struct {
	cfg    *config.ServerConfig
	engine QueryEngine
	logger *slog.Logger
	http   *http.Server
}

// New builds the server and its routes.
func New(cfg *config.ServerConfig, eng QueryEngine, logger *slog.Logger) (*Server, error) {
	if eng == nil {
		return nil, fmt.Errorf("engine is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{cfg: cfg, engine: eng, logger: logger.With("component", "server")}

	s.http = &http.Server{
		Addr:         net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Handler:      s.routes(),
		ReadTimeout:  cfg.ReadTimeout.Duration(),
		WriteTimeout: cfg.WriteTimeout.Duration(),
		IdleTimeout:  cfg.IdleTimeout.Duration(),
	}
	return s, nil
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)

	if s.cfg.CORS != nil {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   s.cfg.CORS.AllowedOrigins,
			AllowedMethods:   s.cfg.CORS.AllowedMethods,
			AllowedHeaders:   s.cfg.CORS.AllowedHeaders,
			AllowCredentials: config.BoolValue(s.cfg.CORS.AllowCredentials, false),
		}))
	}

	r.Post("/v1/query", s.handleQuery)
	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	return r
}

// Run serves until the context is cancelled or SIGINT/SIGTERM arrives,
// then drains within the shutdown timeout.
func (s *Server) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", s.http.Addr)
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down", "drain_timeout", s.cfg.ShutdownTimeout.Duration())
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout.Duration())
	defer cancel()

	if err := s.http.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return <-errCh
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req engine.Request
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if err := decoder.Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}

	response, err := s.engine.Query(r.Context(), &req)
	if err != nil {
		s.logger.Error("query failed", "error", err)
		switch {
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			s.writeError(w, http.StatusGatewayTimeout, "request cancelled or timed out")
		case errors.Is(err, llms.ErrAllProvidersFailed):
			s.writeError(w, http.StatusBadGateway, "all language model providers failed")
		default:
			s.writeError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}

	s.writeJSON(w, http.StatusOK, response)
}

type healthResponse struct {
	Status    string          `json:"status"`
	Providers map[string]bool `json:"providers"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	providers := s.engine.Health(r.Context())

	status := "degraded"
	for _, available := range providers {
		if available {
			status = "ok"
			break
		}
	}

	code := http.StatusOK
	if status != "ok" {
		code = http.StatusServiceUnavailable
	}
	s.writeJSON(w, code, healthResponse{Status: status, Providers: providers})
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Warn("response encoding failed", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, code int, message string) {
	s.writeJSON(w, code, map[string]string{"error": message})
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		duration := time.Since(start)
		s.logger.Info("request",
			"method", r.Method, "path", r.URL.Path,
			"status", ww.Status(), "duration", duration)

		if metrics := observability.GetGlobalMetrics(); metrics != nil {
			metrics.RecordHTTPRequest(r.Context(), r.Method, r.URL.Path, ww.Status(), duration)
		}
	})
}
