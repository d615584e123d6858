package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"truthlink/config"
	"truthlink/core/auth"
	"truthlink/core/metrics"
	"truthlink/core/store"
	"truthlink/core/utils"
)

type AuthHandler struct {
	cfg            *config.AppConfig
	users          store.UsersStore
	sessions       store.SessionStore
	sessionManager *auth.SessionManager
	audits         store.AuditStore
	logger         *utils.Logger
}

func NewAuthHandler(cfg *config.AppConfig, users store.UsersStore, sessions store.SessionStore, sm *auth.SessionManager, audits store.AuditStore, logger *utils.Logger) *AuthHandler {
	return &AuthHandler{cfg: cfg, users: users, sessions: sessions, sessionManager: sm, audits: audits, logger: logger}
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var cred auth.Credentials
	if err := json.NewDecoder(r.Body).Decode(&cred); err != nil {
		writeError(w, http.StatusBadRequest, "auth.bad_payload", "invalid request body")
		return
	}
	cred.Username = strings.ToLower(strings.TrimSpace(cred.Username))
	if err := utils.ValidateUsername(cred.Username); err != nil {
		writeError(w, http.StatusBadRequest, "auth.bad_username", "invalid username")
		return
	}
	user, roles, err := h.users.FindByUsername(r.Context(), cred.Username)
	if err != nil || user == nil || !user.Active {
		h.audits.Log(r.Context(), cred.Username, "auth.login_failed", "user missing or inactive")
		metrics.LoginsTotal.WithLabelValues("failure").Inc()
		writeError(w, http.StatusUnauthorized, "auth.invalid_credentials", "invalid credentials")
		return
	}
	ok, err := auth.VerifyPassword(cred.Password, h.cfg.Pepper, auth.PasswordHash{Hash: user.PasswordHash, Salt: user.Salt})
	if err != nil || !ok {
		h.audits.Log(r.Context(), cred.Username, "auth.login_failed", "invalid password")
		metrics.LoginsTotal.WithLabelValues("failure").Inc()
		writeError(w, http.StatusUnauthorized, "auth.invalid_credentials", "invalid credentials")
		return
	}
	sess, err := h.sessionManager.Create(r.Context(), user, roles, clientIP(r, h.cfg), r.UserAgent())
	if err != nil {
		h.logger.Errorf("login session create for %s: %v", cred.Username, err)
		writeError(w, http.StatusInternalServerError, "auth.session_failed", "server error")
		return
	}
	now := time.Now().UTC()
	user.LastLoginAt = &now
	_ = h.users.Update(r.Context(), user)
	h.audits.Log(r.Context(), user.Username, "auth.login_success", "")
	metrics.LoginsTotal.WithLabelValues("success").Inc()

	secure := isSecureRequest(r, h.cfg)
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    sess.ID,
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
		Expires:  sess.ExpiresAt,
	})
	http.SetCookie(w, &http.Cookie{
		Name:     CSRFCookieName,
		Value:    sess.CSRFToken,
		Path:     "/",
		HttpOnly: false,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
		Expires:  sess.ExpiresAt,
	})
	writeJSON(w, http.StatusOK, map[string]any{
		"username":   user.Username,
		"roles":      roles,
		"csrf_token": sess.CSRFToken,
		"expires_at": sess.ExpiresAt,
	})
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	if sess != nil {
		if err := h.sessionManager.Delete(r.Context(), sess.ID); err != nil {
			h.logger.Errorf("logout %s: %v", sess.Username, err)
		}
		h.audits.Log(r.Context(), sess.Username, "auth.logout", "")
	}
	expired := time.Unix(0, 0)
	http.SetCookie(w, &http.Cookie{Name: SessionCookieName, Value: "", Path: "/", HttpOnly: true, Expires: expired})
	http.SetCookie(w, &http.Cookie{Name: CSRFCookieName, Value: "", Path: "/", Expires: expired})
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	if sess == nil {
		writeError(w, http.StatusUnauthorized, "auth.unauthorized", "unauthorized")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"username":   sess.Username,
		"roles":      sess.Roles,
		"expires_at": sess.ExpiresAt,
	})
}
