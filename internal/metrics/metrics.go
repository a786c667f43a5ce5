package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inkwell_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "inkwell_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
	}, []string{"method", "path"})

	RateLimitedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inkwell_rate_limited_total",
		Help: "Total number of requests rejected by the rate limiter",
	}, []string{"limiter"})
)

// Auth metrics
var (
	AuthLoginsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inkwell_auth_logins_total",
		Help: "Total number of login attempts",
	}, []string{"status"})

	AuthRejectionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inkwell_auth_rejections_total",
		Help: "Total number of requests rejected by the authentication gate",
	}, []string{"reason"})
)

// Moderation event counters (incremented on occurrence)
var (
	ReportsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inkwell_reports_total",
		Help: "Total number of user reports submitted",
	}, []string{"type", "reason"})

	ReportsRejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inkwell_reports_rejected_total",
		Help: "Total number of report submissions rejected",
	}, []string{"kind"})

	ReportResolutionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inkwell_report_resolutions_total",
		Help: "Total number of report status changes made by admins",
	}, []string{"status", "action"})

	ModerationActionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inkwell_moderation_actions_total",
		Help: "Total number of moderation actions applied to targets",
	}, []string{"action", "outcome"})
)

// Queue gauges (updated periodically by collector)
var (
	ReportsByStatus = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "inkwell_reports_by_status",
		Help: "Number of reports in each lifecycle status",
	}, []string{"status"})

	ReportsPending = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "inkwell_reports_pending",
		Help: "Number of reports waiting for an admin (PENDING or UNDER_REVIEW)",
	})

	RegisteredUsersTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "inkwell_registered_users_total",
		Help: "Total number of user accounts",
	})
)

// NormalizePath reduces high-cardinality path labels by replacing dynamic
// segments with placeholders. This keeps the metric label space bounded.
func NormalizePath(path string) string {
	segments := splitPath(path)
	if len(segments) < 3 || segments[0] != "api" {
		return path
	}

	// Only the admin routes carry ids: /api/admin/{reports,users,posts}/{id}[/verb]
	if segments[1] != "admin" || len(segments) < 4 {
		return path
	}

	switch segments[2] {
	case "reports":
		if segments[3] == "statistics" {
			return path
		}
	case "users", "posts":
	default:
		return path
	}

	normalized := "/api/admin/" + segments[2] + "/:id"
	if len(segments) == 5 {
		normalized += "/" + segments[4]
	} else if len(segments) > 5 {
		return "/api/admin/" + segments[2] + "/*"
	}
	return normalized
}

func splitPath(path string) []string {
	// Skip leading slash
	if len(path) > 0 && path[0] == '/' {
		path = path[1:]
	}
	// Split on /
	var segments []string
	start := 0
	for i := 0; i < len(path); i++ {
		if path[i] == '/' {
			if i > start {
				segments = append(segments, path[start:i])
			}
			start = i + 1
		}
	}
	if start < len(path) {
		segments = append(segments, path[start:])
	}
	return segments
}
