package routing

import (
	"net/http"

	"inkwell/internal/auth"
	"inkwell/internal/handlers"
	"inkwell/internal/metrics"
	"inkwell/internal/middleware"
	"inkwell/internal/moderation"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Config holds the configuration needed for setting up routes
type Config struct {
	Handlers  *handlers.Handler
	Gate      *auth.Gate
	Policy    *moderation.Policy
	RateLimit *middleware.RateLimitConfig
	Logger    zerolog.Logger

	// Tracing wraps the router in an otelhttp handler
	Tracing bool
}

// SetupRouter creates and configures the HTTP router with all routes and middleware
func SetupRouter(cfg Config) http.Handler {
	h := cfg.Handlers
	mux := http.NewServeMux()

	user := func(fn http.HandlerFunc) http.Handler {
		return auth.RequireUser(fn)
	}
	can := func(perm moderation.Permission, fn http.HandlerFunc) http.Handler {
		return auth.RequirePermission(cfg.Policy, perm)(fn)
	}

	// Operational endpoints
	mux.HandleFunc("GET /healthz", h.HandleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())

	// Authentication
	mux.HandleFunc("POST /api/auth/login", h.HandleLogin)
	mux.Handle("GET /api/me", user(h.HandleMe))

	// Reporting
	mux.Handle("POST /api/reports", can(moderation.PermissionCreateReport, h.HandleReportCreate))
	mux.Handle("GET /api/reports/mine", user(h.HandleMyReports))

	// Report review
	mux.Handle("GET /api/admin/reports", can(moderation.PermissionViewReports, h.HandleAdminReportList))
	mux.Handle("GET /api/admin/reports/statistics", can(moderation.PermissionViewReports, h.HandleAdminReportStats))
	mux.Handle("GET /api/admin/reports/{id}", can(moderation.PermissionViewReports, h.HandleAdminReportGet))
	mux.Handle("PUT /api/admin/reports/{id}/resolve", can(moderation.PermissionResolveReports, h.HandleAdminReportResolve))

	// Direct moderation
	mux.Handle("PUT /api/admin/users/{id}/ban", can(moderation.PermissionBanUsers, h.HandleAdminUserBan))
	mux.Handle("PUT /api/admin/users/{id}/unban", can(moderation.PermissionBanUsers, h.HandleAdminUserUnban))
	mux.Handle("DELETE /api/admin/users/{id}", can(moderation.PermissionDeleteUsers, h.HandleAdminUserDelete))
	mux.Handle("PUT /api/admin/users/{id}/role", can(moderation.PermissionManageRoles, h.HandleAdminUserRole))
	mux.Handle("PUT /api/admin/posts/{id}/hide", can(moderation.PermissionHidePosts, h.HandleAdminPostHide))
	mux.Handle("DELETE /api/admin/posts/{id}", can(moderation.PermissionDeletePosts, h.HandleAdminPostDelete))
	mux.Handle("GET /api/admin/roles", can(moderation.PermissionManageRoles, h.HandleAdminRoles))
	mux.Handle("GET /api/admin/audit", can(moderation.PermissionViewAuditLog, h.HandleAdminAuditLog))

	// Apply middleware in order (outermost first, innermost last)
	var handler http.Handler = mux

	// 1. Limit request body size (innermost - runs first on request)
	handler = middleware.LimitBodyMiddleware(handler)

	// 2. Authenticate bearer credentials against live account state
	handler = cfg.Gate.Middleware(handler)

	// 3. Apply rate limiting
	rateLimitConfig := cfg.RateLimit
	if rateLimitConfig == nil {
		rateLimitConfig = middleware.NewDefaultRateLimitConfig()
	}
	handler = middleware.RateLimitMiddleware(rateLimitConfig)(handler)

	// 4. Apply security headers
	handler = middleware.SecurityHeadersMiddleware(handler)

	// 5. Access logging
	handler = middleware.LoggingMiddleware(cfg.Logger)(handler)

	// 6. Request IDs, so the access log can carry them
	handler = middleware.RequestIDMiddleware(handler)

	if cfg.Tracing {
		handler = otelhttp.NewHandler(handler, "inkwell",
			otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
				return r.Method + " " + metrics.NormalizePath(r.URL.Path)
			}),
		)
	}

	return handler
}
