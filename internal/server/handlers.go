package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/raaihank/grammar-sentinel/internal/checker"
	"github.com/raaihank/grammar-sentinel/internal/client"
	"github.com/raaihank/grammar-sentinel/internal/history"
	"github.com/raaihank/grammar-sentinel/internal/overlay"
	"github.com/raaihank/grammar-sentinel/internal/render"
	"github.com/raaihank/grammar-sentinel/internal/session"
)

const defaultHistoryLimit = 50

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type textRequest struct {
	Text *string `json:"text"`
}

type overlayRequest struct {
	Text   string               `json:"text"`
	Errors []overlay.Annotation `json:"errors"`
}

type overlayResponse struct {
	Version    uint64            `json:"version,omitempty"`
	Segments   []overlay.Segment `json:"segments"`
	Skipped    []overlay.Skip    `json:"skipped,omitempty"`
	Highlights int               `json:"highlights"`
	HTML       string            `json:"html"`
	Cached     bool              `json:"cached,omitempty"`
}

type historyResponse struct {
	Records []history.Record `json:"records"`
	Stats   *history.Stats   `json:"stats"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func (s *Server) overlayResponse(res overlay.Result) overlayResponse {
	html, err := render.String(s.renderer, res.Segments)
	if err != nil {
		s.logger.Warn("Failed to render segments", zap.Error(err))
	}
	return overlayResponse{
		Segments:   res.Segments,
		Skipped:    res.Skipped,
		Highlights: res.Highlights(),
		HTML:       html,
	}
}

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

// handleInfo handles info requests
func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	engine := s.deps.Checker.Engine()
	info := map[string]interface{}{
		"name":            "grammar-sentinel",
		"version":         s.deps.Version,
		"logged_in":       s.deps.Sessions.LoggedIn(r.Context()),
		"tolerance":       engine.Tolerance(),
		"position_unit":   engine.Unit(),
		"history_enabled": s.deps.History != nil,
	}
	if s.deps.Hub != nil {
		info["websocket"] = s.deps.Hub.Stats()
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Username == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "username and password are required")
		return
	}

	if err := s.deps.Sessions.Login(r.Context(), req.Username, req.Password); err != nil {
		if errors.Is(err, client.ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		s.logger.WithRequestID(requestID(r.Context())).Error("Login failed", zap.Error(err))
		writeError(w, http.StatusBadGateway, "login failed")
		return
	}

	if s.deps.Hub != nil {
		s.deps.Hub.PublishSession(true, "login")
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Sessions.Logout(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "logout failed")
		return
	}
	if s.deps.Hub != nil {
		s.deps.Hub.PublishSession(false, "logout")
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) setText(text string) uint64 {
	_, before := s.deps.Document.Snapshot()
	version := s.deps.Document.SetText(text)
	if version != before && s.deps.Hub != nil {
		s.deps.Hub.PublishText(version, text)
	}
	return version
}

func (s *Server) handleSetText(w http.ResponseWriter, r *http.Request) {
	var req textRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Text == nil {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}
	writeJSON(w, http.StatusOK, map[string]uint64{"version": s.setText(*req.Text)})
}

func (s *Server) handleCheck(w http.ResponseWriter, r *http.Request) {
	// the body is optional: without text the current document is checked
	var req textRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Text != nil {
		s.setText(*req.Text)
	}

	report, err := s.deps.Checker.Check(r.Context(), s.deps.Document)
	switch {
	case err == nil:
	case errors.Is(err, client.ErrEmptyText):
		writeError(w, http.StatusBadRequest, "text is empty")
		return
	case errors.Is(err, client.ErrUnauthorized), errors.Is(err, session.ErrNoSession):
		writeError(w, http.StatusUnauthorized, "not logged in")
		return
	case errors.Is(err, checker.ErrStale):
		writeError(w, http.StatusConflict, "text changed during check")
		return
	default:
		s.logger.WithRequestID(requestID(r.Context())).Error("Check failed", zap.Error(err))
		writeError(w, http.StatusBadGateway, "grammar check failed")
		return
	}

	resp := s.overlayResponse(report.Result())
	resp.Version = report.Version
	resp.Cached = report.Cached
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	res, version := s.deps.Checker.Preview(s.deps.Document)
	resp := s.overlayResponse(res)
	resp.Version = version
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleOverlay(w http.ResponseWriter, r *http.Request) {
	var req overlayRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	writeJSON(w, http.StatusOK, s.overlayResponse(s.deps.Checker.OverlayOnly(req.Text, req.Errors)))
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.deps.History == nil {
		writeError(w, http.StatusNotFound, "history is disabled")
		return
	}

	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	records, err := s.deps.History.List(r.Context(), limit)
	if err != nil {
		s.logger.Error("Failed to list history", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to read history")
		return
	}
	stats, err := s.deps.History.Stats(r.Context())
	if err != nil {
		s.logger.Error("Failed to read history stats", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to read history")
		return
	}
	writeJSON(w, http.StatusOK, historyResponse{Records: records, Stats: stats})
}
