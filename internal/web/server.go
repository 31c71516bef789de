package web

import (
	"bufio"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vbonduro/chartgen/internal/config"
	"github.com/vbonduro/chartgen/internal/service"
)

type Server struct {
	service  *service.ChartService
	cfg      *config.Config
	upgrader websocket.Upgrader
	debounce time.Duration
	mux      *http.ServeMux
	logger   *slog.Logger
}

func NewServer(svc *service.ChartService, cfg *config.Config, logger *slog.Logger) *Server {
	s := &Server{
		service: svc,
		cfg:     cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
		debounce: cfg.EditorDebounce,
		mux:      http.NewServeMux(),
		logger:   logger,
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("POST /api/generate", s.handleGenerate)
	s.mux.HandleFunc("POST /api/detect", s.handleDetect)
	s.mux.HandleFunc("GET /api/current", s.handleCurrent)
	s.mux.HandleFunc("POST /api/palette/{name}", s.handlePalette)
	s.mux.HandleFunc("GET /api/providers", s.handleProviders)

	s.mux.HandleFunc("GET /api/history", s.handleListHistory)
	s.mux.HandleFunc("DELETE /api/history", s.handleClearHistory)
	s.mux.HandleFunc("GET /api/history/export", s.handleExportHistory)
	s.mux.HandleFunc("POST /api/history/import", s.handleImportHistory)
	s.mux.HandleFunc("GET /api/history/{id}", s.handleGetEntry)
	s.mux.HandleFunc("DELETE /api/history/{id}", s.handleDeleteEntry)
	s.mux.HandleFunc("POST /api/history/{id}/select", s.handleSelectEntry)
	s.mux.HandleFunc("GET /api/history/{id}/image", s.handleEntryImage)

	s.mux.HandleFunc("GET /api/editor", s.handleEditor)
}

// securityHeaders sets the browser hardening headers on every response.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		h.Set("Content-Security-Policy",
			"default-src 'self'; "+
				"img-src 'self' data:; "+
				"connect-src 'self'")
		next.ServeHTTP(w, r)
	})
}

// statusRecorder wraps http.ResponseWriter to capture the written status code.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Hijack lets the editor websocket take over the connection through the
// recorder.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

func requestLogger(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestLogger(s.logger, securityHeaders(s.mux)).ServeHTTP(w, r)
}

func (s *Server) ListenAndServe(addr string) error {
	s.logger.Info("starting server", "addr", addr)
	srv := &http.Server{
		Addr:         addr,
		Handler:      s,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	return srv.ListenAndServe()
}
