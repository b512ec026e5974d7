package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"pixora/internal/api"
	"pixora/internal/config"
	"pixora/internal/logging"
	"pixora/internal/services"
)

// maxRequestBytes bounds JSON bodies; data URLs of large photos are big.
const maxRequestBytes = 256 << 20

type apiServer struct {
	bind   string
	logger *slog.Logger

	listener      net.Listener
	server        *http.Server
	cancelStreams context.CancelFunc
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) *apiServer {
	if cfg == nil || d == nil {
		return nil
	}
	bind := strings.TrimSpace(cfg.Paths.APIBind)
	if bind == "" {
		return nil
	}

	streams, cancel := context.WithCancel(context.Background())
	srv := &apiServer{
		bind:          bind,
		logger:        logger,
		cancelStreams: cancel,
	}
	srv.server = &http.Server{
		Handler:           newRouterWithStreams(d, cfg.Paths.APIToken, logger, streams),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       2 * time.Minute,
		WriteTimeout:      5 * time.Minute,
		IdleTimeout:       60 * time.Second,
	}
	// Event streams would otherwise hold Shutdown open until its deadline.
	srv.server.RegisterOnShutdown(cancel)
	return srv
}

func (s *apiServer) start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		s.cancelStreams()
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log().Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.log().Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	if s == nil {
		return
	}
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
	s.cancelStreams()
	if s.listener != nil {
		_ = s.listener.Close()
	}
}

func (s *apiServer) address() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *apiServer) log() *slog.Logger {
	if s.logger != nil {
		return s.logger.With(logging.String("component", "api-server"))
	}
	return logging.NewNop()
}

// handlers serves the API routes against one daemon.
type handlers struct {
	daemon  *Daemon
	logger  *slog.Logger
	streams context.Context
}

func newRouter(d *Daemon, token string, logger *slog.Logger) http.Handler {
	return newRouterWithStreams(d, token, logger, context.Background())
}

func newRouterWithStreams(d *Daemon, token string, logger *slog.Logger, streams context.Context) http.Handler {
	h := &handlers{
		daemon:  d,
		logger:  logging.NewComponentLogger(logger, "api-server"),
		streams: streams,
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestID)
	r.Use(h.accessLog)
	r.Use(authMiddleware(strings.TrimSpace(token)))
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		h.writeJSON(w, http.StatusNotFound, api.ErrorResponse{Error: "not found"})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		h.writeJSON(w, http.StatusMethodNotAllowed, api.ErrorResponse{Error: "method not allowed"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.handleHealth)
		r.Get("/status", h.handleStatus)
		r.Post("/process", h.handleProcess)
		r.Route("/images", func(r chi.Router) {
			r.Post("/info", h.handleInfo)
			r.Post("/resize", h.handleResize)
			r.Post("/compress", h.handleCompress)
			r.Post("/remove-background", h.handleRemoveBackground)
		})
		r.Get("/model", h.handleModel)
		r.Route("/artifacts", func(r chi.Router) {
			r.Get("/", h.handleListArtifacts)
			r.Delete("/", h.handleDeleteAllArtifacts)
			r.Post("/read", h.handleReadArtifact)
			r.Post("/delete", h.handleDeleteArtifacts)
			r.Post("/persist", h.handlePersistArtifact)
		})
		r.Post("/export", h.handleExport)
		r.Get("/system", h.handleSystem)
		r.Get("/history", h.handleHistory)
		r.Get("/events", h.handleEvents)
	})
	return r
}

// requestID propagates the caller's correlation id, or a fresh one, into the
// request context and the response headers.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(api.RequestIDHeader))
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(api.RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(services.WithRequestID(r.Context(), id)))
	})
}

func (h *handlers) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		logging.WithContext(r.Context(), h.logger).Debug("api request",
			logging.String("method", r.Method),
			logging.String("path", r.URL.Path),
			logging.Int("status", ww.Status()),
			logging.Int("bytes", ww.BytesWritten()),
			logging.Duration("elapsed", time.Since(start)),
		)
	})
}

func (h *handlers) decode(w http.ResponseWriter, r *http.Request, dst any) error {
	body := http.MaxBytesReader(w, r.Body, maxRequestBytes)
	defer body.Close()
	dec := json.NewDecoder(body)
	if err := dec.Decode(dst); err != nil {
		return services.Wrap(services.ErrValidation, "api", "decode request", "invalid request body", err)
	}
	return nil
}

func (h *handlers) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("failed to encode response", logging.Error(err))
	}
}

func (h *handlers) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := services.HTTPStatus(err)
	logger := logging.WithContext(r.Context(), h.logger)
	if status >= http.StatusInternalServerError {
		logging.WarnWithContext(logger, "api request failed", "api_request_failed",
			logging.String("path", r.URL.Path),
			logging.Int("status", status),
			logging.Error(err),
		)
	} else {
		logger.Debug("api request rejected",
			logging.String("path", r.URL.Path),
			logging.Int("status", status),
			logging.Error(err),
		)
	}
	h.writeJSON(w, status, api.NewErrorResponse(err))
}
