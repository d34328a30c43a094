// Package api exposes the mask pipeline over HTTP. The API only ingests
// requests, orchestrates the pipeline and serializes results; all mask
// semantics live in core packages.
package api

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"cloudmask/core/pipeline"
	"cloudmask/core/render"
	"cloudmask/internal/errors"
	"cloudmask/internal/logging"
)

// Server is the API server.
type Server struct {
	provider render.TileProvider
	mux      *http.ServeMux
	version  string
	zoom     int
	minZoom  int
}

// NewServer creates an API server over an authenticated tile provider.
func NewServer(version string, provider render.TileProvider, zoom, minZoom int) *Server {
	s := &Server{
		provider: provider,
		mux:      http.NewServeMux(),
		version:  version,
		zoom:     zoom,
		minZoom:  minZoom,
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("POST /api/v1/mask", s.handleMask)
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /ready", s.handleReady)
	s.mux.HandleFunc("GET /version", s.handleVersion)
}

// Handler returns the HTTP handler with middleware applied.
func (s *Server) Handler() http.Handler {
	return s.recoveryMiddleware(s.loggingMiddleware(s.mux))
}

// handleMask handles POST /api/v1/mask.
func (s *Server) handleMask(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()
	requestID := generateRequestID()

	var req MaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, requestID, "INVALID_JSON", err.Error(), http.StatusBadRequest)
		return
	}

	aoi, dates, cloudFilter, th, err := req.resolve()
	if err != nil {
		s.writeError(w, requestID, "VALIDATION_ERROR", err.Error(), http.StatusBadRequest)
		return
	}

	col := pipeline.Masked(pipeline.BuildCollection(aoi, dates, cloudFilter), th)
	m, err := render.BuildMap(ctx, s.provider, aoi, col, s.zoom, s.minZoom)
	if err != nil {
		status := http.StatusBadGateway
		if errors.IsType(err, errors.TypeAuth) {
			status = http.StatusUnauthorized
		}
		s.writeError(w, requestID, "PIPELINE_ERROR", err.Error(), status)
		return
	}

	s.writeJSON(w, &MaskResponse{
		RequestID: requestID,
		Center:    [2]float64{m.Lat, m.Lon},
		Zoom:      m.Zoom,
		Layers:    m.Layers,
		Metadata: ResponseMetadata{
			Timestamp:  time.Now().UTC(),
			DurationMs: time.Since(start).Milliseconds(),
			Version:    s.version,
		},
	}, http.StatusOK)
}

// handleHealth handles GET /health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, map[string]interface{}{
		"status":  "healthy",
		"version": s.version,
		"time":    time.Now().UTC().Format(time.RFC3339),
	}, http.StatusOK)
}

// healthChecker is satisfied by tile providers that can report liveness
// of their backing service.
type healthChecker interface {
	Healthcheck(ctx context.Context) error
}

// handleReady handles GET /ready. Readiness additionally checks the tile
// provider when it can report health.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if hc, ok := s.provider.(healthChecker); ok {
		if err := hc.Healthcheck(r.Context()); err != nil {
			s.writeJSON(w, map[string]string{
				"status": "unavailable",
				"reason": err.Error(),
			}, http.StatusServiceUnavailable)
			return
		}
	}
	s.writeJSON(w, map[string]string{"status": "ready"}, http.StatusOK)
}

// handleVersion handles GET /version.
func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, map[string]string{
		"version":     s.version,
		"engine":      "cloudmask",
		"api_version": "v1",
	}, http.StatusOK)
}

func (s *Server) writeJSON(w http.ResponseWriter, v interface{}, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Error("encoding response", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, requestID, code, message string, status int) {
	s.writeJSON(w, &ErrorResponse{
		RequestID: requestID,
		Code:      code,
		Message:   message,
	}, status)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		logging.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Duration("duration", time.Since(start)))
	})
}

func (s *Server) recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				logging.Error("panic in handler", zap.Any("panic", rec))
				s.writeError(w, generateRequestID(), "INTERNAL_ERROR", "internal error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func generateRequestID() string {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return "req-unknown"
	}
	return "req-" + hex.EncodeToString(b)
}
