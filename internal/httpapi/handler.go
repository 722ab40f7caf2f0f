// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AnnoLab Contributors

// Package httpapi exposes the authentication service over HTTP.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/oklog/ulid/v2"

	"github.com/annolab/annolab/internal/auth"
)

// AuthService is the service surface the handlers depend on.
type AuthService interface {
	Login(ctx context.Context, username, password string, origin auth.Origin) (*auth.LoginResult, error)
	ChangePassword(ctx context.Context, userID ulid.ULID, currentPassword, newPassword string) error
	Logout(ctx context.Context, sessionID ulid.ULID) error
	SigninHistory(ctx context.Context, filter auth.SessionFilter) ([]*auth.SessionRecord, error)
}

// Handler serves the authentication endpoints.
type Handler struct {
	service AuthService
	logger  *slog.Logger
}

// NewHandler creates a Handler.
func NewHandler(service AuthService, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{service: service, logger: logger}
}

// NewRouter returns a chi router with all authentication routes mounted.
func NewRouter(service AuthService, logger *slog.Logger) http.Handler {
	h := NewHandler(service, logger)

	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		r.Post("/login", h.Login)
		r.Post("/logout", h.Logout)
		r.Post("/password", h.ChangePassword)
		r.Get("/sessions", h.Sessions)
	})

	return r
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	UserID    string `json:"user_id"`
	Username  string `json:"username"`
	Role      string `json:"role"`
	SessionID string `json:"session_id"`
	State     string `json:"state"`
}

// Login authenticates a user and returns the new sign-in record.
// POST /api/login
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "request body must be valid JSON")
		return
	}

	result, err := h.service.Login(r.Context(), req.Username, req.Password, originFrom(r))
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidCredentials):
			writeError(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "invalid username or password")
		case errors.Is(err, auth.ErrAuditWriteFailed):
			h.logger.Error("sign-in audit write failed", "username", req.Username, "error", err)
			writeError(w, http.StatusInternalServerError, "AUDIT_WRITE_FAILED", "sign-in could not be recorded")
		default:
			h.logger.Error("login failed", "username", req.Username, "error", err)
			writeError(w, http.StatusInternalServerError, "INTERNAL", "internal server error")
		}
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{
		UserID:    result.User.ID.String(),
		Username:  result.User.Username,
		Role:      string(result.User.Role),
		SessionID: result.Session.ID.String(),
		State:     string(result.State),
	})
}

type changePasswordRequest struct {
	UserID          string `json:"user_id"`
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// ChangePassword verifies the current password and installs a new one.
// POST /api/password
func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var req changePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "request body must be valid JSON")
		return
	}

	userID, err := ulid.Parse(req.UserID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "user_id must be a valid ULID")
		return
	}

	err = h.service.ChangePassword(r.Context(), userID, req.CurrentPassword, req.NewPassword)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidCredentials):
			writeError(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "current password does not match")
		case errors.Is(err, auth.ErrWeakPassword):
			writeError(w, http.StatusBadRequest, "WEAK_PASSWORD", "new password is too short")
		default:
			h.logger.Error("password change failed", "user_id", req.UserID, "error", err)
			writeError(w, http.StatusInternalServerError, "INTERNAL", "internal server error")
		}
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type logoutRequest struct {
	SessionID string `json:"session_id"`
}

// Logout closes a sign-in record.
// POST /api/logout
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	var req logoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "request body must be valid JSON")
		return
	}

	sessionID, err := ulid.Parse(req.SessionID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "session_id must be a valid ULID")
		return
	}

	if err := h.service.Logout(r.Context(), sessionID); err != nil {
		switch {
		case errors.Is(err, auth.ErrNotFound):
			writeError(w, http.StatusNotFound, "SESSION_NOT_FOUND", "no such session")
		case errors.Is(err, auth.ErrAlreadyClosed):
			writeError(w, http.StatusConflict, "SESSION_ALREADY_CLOSED", "session is already closed")
		default:
			h.logger.Error("logout failed", "session_id", req.SessionID, "error", err)
			writeError(w, http.StatusInternalServerError, "INTERNAL", "internal server error")
		}
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type sessionResponse struct {
	ID        string     `json:"id"`
	UserID    string     `json:"user_id"`
	Username  string     `json:"username"`
	LoginAt   time.Time  `json:"login_at"`
	LogoutAt  *time.Time `json:"logout_at,omitempty"`
	IPAddress string     `json:"ip_address,omitempty"`
	UserAgent string     `json:"user_agent,omitempty"`
}

// Sessions returns sign-in history, newest first.
// GET /api/sessions?username=alice&since=2026-01-01T00:00:00Z&limit=50
func (h *Handler) Sessions(w http.ResponseWriter, r *http.Request) {
	filter := auth.SessionFilter{
		Username: r.URL.Query().Get("username"),
	}

	if since := r.URL.Query().Get("since"); since != "" {
		t, err := time.Parse(time.RFC3339, since)
		if err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "since must be an RFC 3339 timestamp")
			return
		}
		filter.Since = t
	}

	if limit := r.URL.Query().Get("limit"); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "limit must be a positive integer")
			return
		}
		filter.Limit = n
	}

	records, err := h.service.SigninHistory(r.Context(), filter)
	if err != nil {
		h.logger.Error("sign-in history failed", "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL", "internal server error")
		return
	}

	resp := make([]sessionResponse, 0, len(records))
	for _, rec := range records {
		resp = append(resp, sessionResponse{
			ID:        rec.ID.String(),
			UserID:    rec.UserID.String(),
			Username:  rec.Username,
			LoginAt:   rec.LoginAt,
			LogoutAt:  rec.LogoutAt,
			IPAddress: rec.IPAddress,
			UserAgent: rec.UserAgent,
		})
	}

	writeJSON(w, http.StatusOK, resp)
}

// originFrom extracts the client address and user agent from the request.
func originFrom(r *http.Request) auth.Origin {
	ip := r.RemoteAddr
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		ip = host
	}
	return auth.Origin{
		IPAddress: ip,
		UserAgent: r.UserAgent(),
	}
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Code: code, Message: message})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	//nolint:errcheck // response write error means the client went away
	json.NewEncoder(w).Encode(v)
}
