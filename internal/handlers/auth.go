package handlers

import (
	"net/http"
	"strings"
	"time"

	"inkwell/internal/auth"
	"inkwell/internal/metrics"
	"inkwell/internal/models"

	"github.com/rs/zerolog/log"
)

// LoginRequest accepts a username or email as login
type LoginRequest struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

// LoginResponse carries the issued bearer credential
type LoginResponse struct {
	Token     string       `json:"token"`
	TokenType string       `json:"token_type"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      *models.User `json:"user"`
}

// HandleLogin verifies a password and issues a bearer credential.
// Banned accounts are refused with the same message the gate uses.
func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	req.Login = strings.TrimSpace(req.Login)
	if req.Login == "" || req.Password == "" {
		writeBadRequest(w, "login and password are required")
		return
	}

	user, err := h.moderation.GetUserByLogin(r.Context(), req.Login)
	if err != nil {
		log.Error().Err(err).Msg("auth: failed to look up login")
		auth.WriteError(w, http.StatusInternalServerError, "internal", "Failed to log in")
		return
	}
	if user == nil || !h.hasher.Verify(user.PasswordHash, req.Password) {
		metrics.AuthLoginsTotal.WithLabelValues("failure").Inc()
		log.Warn().Str("login", req.Login).Msg("auth: login failed")
		auth.WriteError(w, http.StatusUnauthorized, "invalid_credentials", "Invalid username or password.")
		return
	}
	if user.IsActiveBan(h.now()) {
		metrics.AuthLoginsTotal.WithLabelValues("banned").Inc()
		log.Warn().Int64("user_id", user.ID).Msg("auth: banned user attempted login")
		auth.WriteError(w, http.StatusForbidden, "account_banned", user.BanMessage())
		return
	}

	token, expiresAt, err := h.issuer.Issue(user)
	if err != nil {
		log.Error().Err(err).Int64("user_id", user.ID).Msg("auth: failed to issue credential")
		auth.WriteError(w, http.StatusInternalServerError, "internal", "Failed to log in")
		return
	}

	metrics.AuthLoginsTotal.WithLabelValues("success").Inc()
	log.Info().Int64("user_id", user.ID).Str("username", user.Username).Msg("auth: login succeeded")

	writeJSON(w, http.StatusOK, LoginResponse{
		Token:     token,
		TokenType: "Bearer",
		ExpiresAt: expiresAt,
		User:      user,
	}, "login")
}

// HandleMe returns the authenticated principal
func (h *Handler) HandleMe(w http.ResponseWriter, r *http.Request) {
	user, ok := principal(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, user, "user")
}
