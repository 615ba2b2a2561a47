package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/assetsentry/assetsentry/internal/auth"
	"github.com/assetsentry/assetsentry/internal/common/constants"
	"github.com/assetsentry/assetsentry/internal/storage/database"
)

// Session bundles the authentication handlers: login, logout and the
// session check consumed by the review dashboard.
type Session struct {
	users    UserStore
	sessions SessionManager
}

// NewSession creates the authentication handlers.
func NewSession(users UserStore, sessions SessionManager) *Session {
	return &Session{
		users:    users,
		sessions: sessions,
	}
}

type userInfo struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role"`
	Name  string `json:"name,omitempty"`
}

// Login verifies credentials and issues the session cookie.
//
// Wrong password and unknown email produce the identical error code and
// status so accounts cannot be enumerated.
func (h *Session) Login(w http.ResponseWriter, r *http.Request) {
	reqID := uuid.New().String()

	var creds struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		slog.Error("Failed to decode login request", "req_id", reqID, "err", err)
		writeError(w, http.StatusInternalServerError, errCodeInternalError)
		return
	}

	if creds.Email == "" || creds.Password == "" {
		writeError(w, http.StatusBadRequest, errCodeMissingCredentials)
		return
	}

	user, err := h.users.GetUserByEmail(r.Context(), creds.Email)
	if errors.Is(err, database.ErrUserNotFound) {
		// Burn a hash comparison so unknown emails cost the same as wrong passwords.
		h.sessions.DummyCompare(creds.Password)
		writeError(w, http.StatusUnauthorized, errCodeInvalidCredentials)
		return
	}
	if err != nil {
		slog.Error("User lookup failed", "req_id", reqID, "err", err)
		writeError(w, http.StatusInternalServerError, errCodeLookupFailed)
		return
	}

	if err := h.sessions.VerifyPassword(user.PasswordHash, creds.Password); err != nil {
		writeError(w, http.StatusUnauthorized, errCodeInvalidCredentials)
		return
	}

	token, err := h.sessions.Issue(auth.Identity{
		ID:    user.ID,
		Email: user.Email,
		Role:  user.Role,
		Name:  user.FullName,
	})
	if errors.Is(err, auth.ErrNotConfigured) {
		slog.Error("Session signing secret is missing", "req_id", reqID)
		writeError(w, http.StatusInternalServerError, errCodeServerMisconfigured)
		return
	}
	if err != nil {
		slog.Error("Failed to issue session token", "req_id", reqID, "err", err)
		writeError(w, http.StatusInternalServerError, errCodeInternalError)
		return
	}

	http.SetCookie(w, h.sessions.SessionCookie(token))
	slog.Info("Reviewer logged in", "req_id", reqID, "user_id", user.ID)
	writeJSON(w, http.StatusOK, struct {
		Success bool     `json:"success"`
		User    userInfo `json:"user"`
	}{
		Success: true,
		User:    userInfo{ID: user.ID, Email: user.Email, Role: user.Role},
	})
}

// Logout clears the session cookie. It always succeeds.
func (h *Session) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, h.sessions.ClearSessionCookie())
	writeJSON(w, http.StatusOK, struct {
		Success bool `json:"success"`
	}{Success: true})
}

type sessionCheckResponse struct {
	Authenticated bool      `json:"authenticated"`
	User          *userInfo `json:"user,omitempty"`
}

// Me reports whether the request carries a valid session, and for whom.
func (h *Session) Me(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(constants.SessionCookieName)
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, sessionCheckResponse{})
		return
	}

	id, err := h.sessions.Validate(cookie.Value)
	if errors.Is(err, auth.ErrNotConfigured) {
		slog.Error("Session signing secret is missing")
		writeJSON(w, http.StatusInternalServerError, sessionCheckResponse{})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, sessionCheckResponse{})
		return
	}

	writeJSON(w, http.StatusOK, sessionCheckResponse{
		Authenticated: true,
		User:          &userInfo{ID: id.ID, Email: id.Email, Role: id.Role, Name: id.Name},
	})
}
