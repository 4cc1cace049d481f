// Package server exposes the method-call channel over HTTP, streams
// progress over a WebSocket and serves Prometheus metrics.
package server

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/five82/videocompress/internal/channel"
	"github.com/five82/videocompress/internal/errors"
	"github.com/five82/videocompress/internal/logging"
)

const (
	shutdownTimeout = 10 * time.Second
	maxBodyBytes    = 1 << 20
)

// Server is the HTTP front end.
type Server struct {
	handler *channel.Handler
	hub     *Hub
	router  *mux.Router
}

// New creates a server that dispatches calls to svc and broadcasts
// progress to WebSocket subscribers.
func New(svc channel.Service) *Server {
	hub := NewHub()
	s := &Server{
		handler: channel.NewHandler(svc, hub),
		hub:     hub,
	}
	s.router = s.setupRouter()
	return s
}

// Hub returns the progress broadcaster.
func (s *Server) Hub() *Hub {
	return s.hub
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRouter() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/healthz", s.healthCheck).Methods("GET")
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/call/{method}", s.call).Methods("POST")
	api.Handle("/progress", s.hub).Methods("GET")

	return r
}

// ListenAndServe serves on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Info("HTTP server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if stderrors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.NewIOError("HTTP server failed", err)
	case <-ctx.Done():
	}

	logging.Info("Shutting down HTTP server")
	s.hub.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Warn("Server shutdown error", "error", err)
		return err
	}
	return nil
}

func (s *Server) healthCheck(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type callResponse struct {
	Result any `json:"result"`
}

func (s *Server) call(w http.ResponseWriter, r *http.Request) {
	method := mux.Vars(r)["method"]

	args := map[string]any{}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeFailure(w, errors.NewIOError("failed to read request body", err))
		return
	}
	if len(body) > 0 {
		if err := json.Unmarshal(body, &args); err != nil {
			writeFailure(w, errors.NewInvalidArgumentError("body", "must be a JSON object"))
			return
		}
	}

	result, err := s.handler.Handle(r.Context(), channel.MethodCall{Method: method, Arguments: args})
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, callResponse{Result: result})
}

// statusFor maps a failure to an HTTP status code.
func statusFor(err error) int {
	switch errors.KindOf(err) {
	case errors.KindNotImplemented, errors.KindSessionNotFound:
		return http.StatusNotFound
	case errors.KindInvalidArgument, errors.KindNoVideoTrack:
		return http.StatusBadRequest
	case errors.KindSessionBusy:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeFailure(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), channel.FailureFrom(err))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Error("Failed to encode JSON response", "error", err)
	}
}
