package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"inkwell/internal/metrics"
	"inkwell/internal/middleware"
	"inkwell/internal/models"
	"inkwell/internal/moderation"
	"inkwell/internal/tracing"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
)

// UserLoader reads the current state of an account. A missing account is
// reported as (nil, nil).
type UserLoader interface {
	GetUser(ctx context.Context, id int64) (*models.User, error)
}

// Gate authenticates bearer credentials and rejects banned principals
type Gate struct {
	issuer *Issuer
	users  UserLoader
	now    func() time.Time
}

// NewGate creates a gate that verifies credentials with issuer and loads
// principals through users
func NewGate(issuer *Issuer, users UserLoader) *Gate {
	return &Gate{issuer: issuer, users: users, now: time.Now}
}

// SetClock overrides the time used to evaluate ban windows
func (g *Gate) SetClock(now func() time.Time) {
	g.now = now
}

// Authenticate verifies an Authorization header value and returns the
// principal. On ErrAccountBanned the banned user is returned alongside the
// error so callers can render the ban message.
func (g *Gate) Authenticate(ctx context.Context, header string) (user *models.User, err error) {
	ctx, span := tracing.AuthSpan(ctx, "authenticate")
	defer func() {
		tracing.EndWithError(span, err)
		span.End()
	}()

	token, ok := bearerToken(header)
	if !ok {
		return nil, ErrInvalidCredential
	}

	userID, _, err := g.issuer.Parse(token)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int64("user.id", userID))

	user, err = g.users.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrPrincipalNotFound
	}
	if user.IsActiveBan(g.now()) {
		return user, ErrAccountBanned
	}
	return user, nil
}

// Middleware attaches the authenticated principal to the request context.
// Requests without an Authorization header pass through anonymously.
func (g *Gate) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			next.ServeHTTP(w, r)
			return
		}

		user, err := g.Authenticate(r.Context(), header)
		if err != nil {
			g.reject(w, r, user, err)
			return
		}

		middleware.AnnotateUser(r.Context(), user.ID)
		next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), user)))
	})
}

func (g *Gate) reject(w http.ResponseWriter, r *http.Request, user *models.User, err error) {
	var (
		status  = http.StatusUnauthorized
		code    string
		message string
	)
	switch {
	case errors.Is(err, ErrAccountBanned):
		status, code, message = http.StatusForbidden, "account_banned", user.BanMessage()
	case errors.Is(err, ErrCredentialExpired):
		code, message = "credential_expired", "Your session has expired. Please log in again."
	case errors.Is(err, ErrPrincipalNotFound):
		code, message = "principal_not_found", "The account for this credential no longer exists."
	case errors.Is(err, ErrInvalidCredential):
		code, message = "invalid_credential", "Invalid authentication credential."
	default:
		log.Error().Err(err).Str("path", r.URL.Path).Msg("auth: failed to load principal")
		WriteError(w, http.StatusInternalServerError, "internal", "Failed to authenticate request.")
		return
	}

	metrics.AuthRejectionsTotal.WithLabelValues(code).Inc()
	evt := log.Warn().Str("reason", code).Str("path", r.URL.Path)
	if user != nil {
		evt = evt.Int64("user_id", user.ID)
	}
	evt.Msg("auth: request rejected")

	if status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", `Bearer realm="inkwell"`)
	}
	WriteError(w, status, code, message)
}

// RequireUser rejects requests that carry no authenticated principal
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := PrincipalFromContext(r.Context()); !ok {
			w.Header().Set("WWW-Authenticate", `Bearer realm="inkwell"`)
			WriteError(w, http.StatusUnauthorized, "authentication_required", "Authentication required.")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequirePermission rejects requests whose principal's role lacks perm
func RequirePermission(policy *moderation.Policy, perm moderation.Permission) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return RequireUser(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, _ := PrincipalFromContext(r.Context())
			if !policy.HasPermission(user, perm) {
				log.Warn().
					Int64("user_id", user.ID).
					Str("permission", string(perm)).
					Str("path", r.URL.Path).
					Msg("auth: permission denied")
				WriteError(w, http.StatusForbidden, "forbidden", "You do not have permission to perform this action.")
				return
			}
			next.ServeHTTP(w, r)
		}))
	}
}

// ErrorBody is the JSON shape of every error response
type ErrorBody struct {
	Status  int    `json:"status"`
	Error   string `json:"error"`
	Message string `json:"message"`
}

// WriteError writes a JSON error response
func WriteError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(ErrorBody{Status: status, Error: code, Message: message}); err != nil {
		log.Error().Err(err).Msg("Failed to encode error response")
	}
}

func bearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
