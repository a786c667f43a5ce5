package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"inkwell/internal/auth"
	"inkwell/internal/models"
	"inkwell/internal/moderation"

	"github.com/rs/zerolog/log"
)

// Handler contains all HTTP handler methods and their dependencies.
// Dependencies are injected via the constructor for better testability.
type Handler struct {
	moderation *moderation.Service
	policy     *moderation.Policy
	issuer     *auth.Issuer
	hasher     auth.PasswordHasher
	now        func() time.Time
}

// NewHandler creates a new Handler with all required dependencies.
func NewHandler(svc *moderation.Service, policy *moderation.Policy, issuer *auth.Issuer, hasher auth.PasswordHasher) *Handler {
	return &Handler{
		moderation: svc,
		policy:     policy,
		issuer:     issuer,
		hasher:     hasher,
		now:        time.Now,
	}
}

// SetClock overrides the time used for ban checks at login
func (h *Handler) SetClock(now func() time.Time) {
	h.now = now
}

// HandleHealth reports liveness
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"}, "health")
}

// decodeJSON decodes a JSON request body into target, rejecting unknown fields
func decodeJSON(r *http.Request, target any) error {
	if r.Body == nil {
		return errors.New("request body is required")
	}
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(target); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return fmt.Errorf("request body exceeds %d bytes", maxErr.Limit)
		}
		return fmt.Errorf("invalid JSON: %w", err)
	}
	return nil
}

// writeJSON encodes and writes a JSON response
func writeJSON(w http.ResponseWriter, status int, v any, entityName string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to encode " + entityName + " response")
	}
}

// writeBadRequest reports a malformed request that never reached the service
func writeBadRequest(w http.ResponseWriter, message string) {
	auth.WriteError(w, http.StatusBadRequest, string(moderation.KindValidation), message)
}

// statusForKind maps an error class to its HTTP status
func statusForKind(kind moderation.Kind) int {
	switch kind {
	case moderation.KindValidation:
		return http.StatusBadRequest
	case moderation.KindConflict:
		return http.StatusConflict
	case moderation.KindNotFound:
		return http.StatusNotFound
	case moderation.KindAuthorization:
		return http.StatusForbidden
	case moderation.KindRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// writeServiceError translates a moderation error into an error response.
// Internal errors are logged and their detail withheld from the client.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error, op string) {
	kind := moderation.KindOf(err)
	status := statusForKind(kind)
	message := err.Error()
	if kind == moderation.KindInternal {
		log.Error().Err(err).Str("path", r.URL.Path).Msg("Failed to " + op)
		message = "Failed to " + op
	}
	auth.WriteError(w, status, string(kind), message)
}

// principal returns the authenticated user. Routes using it are wrapped in
// auth.RequireUser, so a missing principal is a wiring error.
func principal(w http.ResponseWriter, r *http.Request) (*models.User, bool) {
	user, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		auth.WriteError(w, http.StatusUnauthorized, "authentication_required", "Authentication required.")
		return nil, false
	}
	return user, true
}

// pathID parses a positive integer path parameter
func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	raw := r.PathValue(name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		writeBadRequest(w, fmt.Sprintf("invalid %s %q", name, raw))
		return 0, false
	}
	return id, true
}

// queryInt parses an optional integer query parameter
func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer", name)
	}
	return n, nil
}
