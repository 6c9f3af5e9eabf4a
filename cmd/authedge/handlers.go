package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	authedge "github.com/authedge/authedge"
	"github.com/authedge/authedge/middleware"
)

type handlers struct {
	engine *authedge.Engine
	cfg    authedge.Config
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type codeRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

type resetConfirmRequest struct {
	Email       string `json:"email"`
	Code        string `json:"code"`
	NewPassword string `json:"newPassword"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

type loginResponse struct {
	Token     string    `json:"token,omitempty"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func decode(r *http.Request, v any) bool {
	return json.NewDecoder(r.Body).Decode(v) == nil
}

func (h *handlers) register(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !decode(r, &req) || req.Email == "" || req.Password == "" {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	_, err := h.engine.Register(r.Context(), authedge.RegisterRequest{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		if errors.Is(err, authedge.ErrAccountExists) {
			http.Error(w, "account already exists", http.StatusConflict)
			return
		}
		http.Error(w, "registration failed", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

// login authenticates and sets the session cookie for browser clients.
// Non-browser clients read the raw token from the response body and
// present it via the session header instead.
func (h *handlers) login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !decode(r, &req) {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}

	result, err := h.engine.Login(r.Context(), req.Email, req.Password, presentedToken(r, h.cfg.Transport))
	if err != nil {
		switch {
		case errors.Is(err, authedge.ErrTokenConflict):
			http.Error(w, "already logged in", http.StatusConflict)
		case errors.Is(err, authedge.ErrAccountLocked):
			if until, ok := authedge.AsLocked(err); ok {
				w.Header().Set("Retry-After", until.UTC().Format(http.TimeFormat))
			}
			http.Error(w, "account locked", http.StatusForbidden)
		case errors.Is(err, authedge.ErrAccountUnverified):
			http.Error(w, "email not verified", http.StatusForbidden)
		case errors.Is(err, authedge.ErrInvalidCredentials):
			http.Error(w, "invalid credentials", http.StatusUnauthorized)
		default:
			http.Error(w, "login failed", http.StatusInternalServerError)
		}
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     h.cfg.Transport.CookieName,
		Value:    result.Token,
		Path:     "/",
		Expires:  result.ExpiresAt,
		HttpOnly: true,
		Secure:   h.cfg.Transport.CookieSecure,
		SameSite: http.SameSiteStrictMode,
	})
	writeJSON(w, http.StatusOK, loginResponse{Token: result.Token, ExpiresAt: result.ExpiresAt})
}

func (h *handlers) logout(w http.ResponseWriter, r *http.Request) {
	token := presentedToken(r, h.cfg.Transport)
	if token != "" {
		if err := h.engine.Logout(r.Context(), token); err != nil {
			http.Error(w, "logout failed", http.StatusInternalServerError)
			return
		}
	}
	clearSessionCookie(w, h.cfg.Transport)
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) logoutAll(w http.ResponseWriter, r *http.Request) {
	id, _ := authedge.IdentityFromContext(r.Context())
	if err := h.engine.LogoutAll(r.Context(), id.AccountID); err != nil {
		http.Error(w, "logout failed", http.StatusInternalServerError)
		return
	}
	clearSessionCookie(w, h.cfg.Transport)
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) sessions(w http.ResponseWriter, r *http.Request) {
	id, _ := authedge.IdentityFromContext(r.Context())
	sessions, err := h.engine.ActiveSessions(r.Context(), id.AccountID)
	if err != nil {
		http.Error(w, "listing failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, sessions)
}

func (h *handlers) me(w http.ResponseWriter, r *http.Request) {
	id, _ := authedge.IdentityFromContext(r.Context())
	writeJSON(w, http.StatusOK, map[string]string{"accountId": id.AccountID.String()})
}

func (h *handlers) changePassword(w http.ResponseWriter, r *http.Request) {
	var req changePasswordRequest
	if !decode(r, &req) || req.NewPassword == "" {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	id, _ := authedge.IdentityFromContext(r.Context())
	if err := h.engine.ChangePassword(r.Context(), id.AccountID, req.CurrentPassword, req.NewPassword); err != nil {
		switch {
		case errors.Is(err, authedge.ErrInvalidCredentials):
			http.Error(w, "invalid credentials", http.StatusForbidden)
		case errors.Is(err, authedge.ErrPasswordReuse):
			http.Error(w, "new password must differ from current password", http.StatusUnprocessableEntity)
		default:
			http.Error(w, "password change failed", http.StatusInternalServerError)
		}
		return
	}
	clearSessionCookie(w, h.cfg.Transport)
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) deleteAccount(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !decode(r, &req) {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	id, _ := authedge.IdentityFromContext(r.Context())
	if err := h.engine.DeleteAccount(r.Context(), id.AccountID, req.Password); err != nil {
		if errors.Is(err, authedge.ErrInvalidCredentials) {
			http.Error(w, "invalid credentials", http.StatusForbidden)
			return
		}
		http.Error(w, "deletion failed", http.StatusInternalServerError)
		return
	}
	clearSessionCookie(w, h.cfg.Transport)
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) requestReset(w http.ResponseWriter, r *http.Request) {
	var req codeRequest
	if !decode(r, &req) || req.Email == "" {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	if err := h.engine.RequestPasswordReset(r.Context(), req.Email); err != nil {
		if errors.Is(err, authedge.ErrRateLimited) {
			http.Error(w, "too many requests", http.StatusTooManyRequests)
			return
		}
		http.Error(w, "request failed", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (h *handlers) confirmReset(w http.ResponseWriter, r *http.Request) {
	var req resetConfirmRequest
	if !decode(r, &req) || req.NewPassword == "" {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	if err := h.engine.ConfirmPasswordReset(r.Context(), req.Email, req.Code, req.NewPassword); err != nil {
		switch {
		case errors.Is(err, authedge.ErrCodeInvalid):
			http.Error(w, "code invalid or expired", http.StatusForbidden)
		case errors.Is(err, authedge.ErrPasswordReuse):
			http.Error(w, "new password must differ from current password", http.StatusUnprocessableEntity)
		default:
			http.Error(w, "reset failed", http.StatusInternalServerError)
		}
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) requestVerification(w http.ResponseWriter, r *http.Request) {
	var req codeRequest
	if !decode(r, &req) || req.Email == "" {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	if err := h.engine.RequestEmailVerification(r.Context(), req.Email); err != nil {
		if errors.Is(err, authedge.ErrRateLimited) {
			http.Error(w, "too many requests", http.StatusTooManyRequests)
			return
		}
		http.Error(w, "request failed", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (h *handlers) confirmVerification(w http.ResponseWriter, r *http.Request) {
	var req codeRequest
	if !decode(r, &req) || req.Email == "" {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	if err := h.engine.ConfirmEmailVerification(r.Context(), req.Email, req.Code); err != nil {
		if errors.Is(err, authedge.ErrCodeInvalid) {
			http.Error(w, "code invalid or expired", http.StatusForbidden)
			return
		}
		http.Error(w, "verification failed", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func presentedToken(r *http.Request, cfg authedge.TransportConfig) string {
	if c, err := r.Cookie(cfg.CookieName); err == nil && c.Value != "" {
		return c.Value
	}
	return middleware.HeaderToken(r, cfg)
}

func clearSessionCookie(w http.ResponseWriter, cfg authedge.TransportConfig) {
	http.SetCookie(w, &http.Cookie{
		Name:     cfg.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   cfg.CookieSecure,
		SameSite: http.SameSiteStrictMode,
	})
}
