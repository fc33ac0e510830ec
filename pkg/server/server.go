// Copyright 2026 © The NeuroSync Authors
// SPDX-License-Identifier: Apache-2.0

// Package server exposes the chat service as a JSON HTTP API.
package server

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jllopis/neurosync/pkg/chat"
	"github.com/jllopis/neurosync/pkg/errors"
	"github.com/jllopis/neurosync/pkg/history"
	"github.com/jllopis/neurosync/pkg/telemetry"
)

// DefaultAddr is used when no listen address is configured.
const DefaultAddr = ":8080"

const maxBodyBytes = 1 << 20

// Server routes HTTP requests to the chat service.
type Server struct {
	svc     *chat.Service
	log     *slog.Logger
	version string
	mux     *http.ServeMux
}

// New builds the API handler.
func New(svc *chat.Service, log *slog.Logger, version string) *Server {
	if log == nil {
		log = slog.Default()
	}
	s := &Server{svc: svc, log: log, version: version, mux: http.NewServeMux()}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	s.mux.HandleFunc("POST /api/register", s.handleRegister)
	s.mux.HandleFunc("POST /api/login", s.handleLogin)

	s.mux.HandleFunc("POST /api/logout", s.authed(s.handleLogout))
	s.mux.HandleFunc("GET /api/me", s.authed(s.handleMe))
	s.mux.HandleFunc("GET /api/tools", s.authed(s.handleTools))
	s.mux.HandleFunc("GET /api/facts", s.authed(s.handleFacts))
	s.mux.HandleFunc("POST /api/chat", s.authed(s.handleChat))
	s.mux.HandleFunc("POST /api/chat/clear", s.authed(s.handleClear))
	s.mux.HandleFunc("GET /api/preferences", s.authed(s.handleGetPreferences))
	s.mux.HandleFunc("PUT /api/preferences", s.authed(s.handlePutPreferences))

	s.mux.HandleFunc("GET /api/conversations", s.authed(s.handleListConversations))
	s.mux.HandleFunc("POST /api/conversations", s.authed(s.handleCreateConversation))
	s.mux.HandleFunc("PATCH /api/conversations/{id}", s.authed(s.handleRenameConversation))
	s.mux.HandleFunc("DELETE /api/conversations/{id}", s.authed(s.handleDeleteConversation))
	s.mux.HandleFunc("GET /api/conversations/{id}/messages", s.authed(s.handleMessages))
	s.mux.HandleFunc("GET /api/conversations/{id}/stats", s.authed(s.handleStats))
	s.mux.HandleFunc("GET /api/conversations/{id}/export", s.authed(s.handleExport))
	s.mux.HandleFunc("POST /api/conversations/{id}/summary", s.authed(s.handleSummary))
}

// ServeHTTP implements http.Handler, tagging each request with an id.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	reqID := r.Header.Get("X-Request-ID")
	if reqID == "" {
		reqID = uuid.NewString()
	}
	w.Header().Set("X-Request-ID", reqID)

	ctx, span := telemetry.Tracer().Start(r.Context(), "HTTP "+r.Method)
	defer span.End()

	start := time.Now()
	rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
	s.mux.ServeHTTP(rec, r.WithContext(ctx))
	s.log.InfoContext(ctx, "http.request",
		slog.String("request_id", reqID),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.Int("status", rec.status),
		slog.Int64("duration_ms", time.Since(start).Milliseconds()),
	)
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	if strings.TrimSpace(addr) == "" {
		addr = DefaultAddr
	}
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	s.log.Info("server.listen", slog.String("addr", addr))
	if err := httpServer.ListenAndServe(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

type tokenKey struct{}

// authed requires a bearer token.
func (s *Server) authed(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			writeError(w, chat.ErrUnauthorized)
			return
		}
		if _, err := s.svc.Authorize(r.Context(), token); err != nil {
			writeError(w, err)
			return
		}
		next(w, r.WithContext(context.WithValue(r.Context(), tokenKey{}, token)))
	}
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(h) > len(prefix) && strings.EqualFold(h[:len(prefix)], prefix) {
		return strings.TrimSpace(h[len(prefix):])
	}
	return ""
}

func tokenFrom(r *http.Request) string {
	token, _ := r.Context().Value(tokenKey{}).(string)
	return token
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.New(errors.CodeInvalidInput, "invalid conversation id", err)
	}
	return id, nil
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errors.New(errors.CodeInvalidInput, "invalid request body", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError renders err as application/problem+json with the status
// carried by the typed error.
func writeError(w http.ResponseWriter, err error) {
	e := errors.As(err)
	status := e.StatusCode
	if status == 0 {
		status = http.StatusInternalServerError
	}
	detail := e.Message
	if status == http.StatusInternalServerError {
		detail = "internal error"
	}
	body := map[string]any{
		"type":   "about:blank",
		"title":  string(e.Code),
		"status": status,
		"detail": detail,
	}
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func exportContentType(format string) (string, string) {
	switch strings.ToLower(format) {
	case history.FormatJSON:
		return "application/json", "json"
	case history.FormatYAML:
		return "application/yaml", "yaml"
	default:
		return "text/plain; charset=utf-8", "txt"
	}
}

func exportFilename(ext string, now time.Time) string {
	return fmt.Sprintf("neurosync_chat_%s.%s", now.Format("20060102_150405"), ext)
}
