package metrics

import (
	"context"
	"errors"
	"testing"

	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		// Exact routes (no normalization needed)
		{"/", "/"},
		{"/healthz", "/healthz"},
		{"/metrics", "/metrics"},
		{"/api/me", "/api/me"},
		{"/api/auth/login", "/api/auth/login"},
		{"/api/reports", "/api/reports"},
		{"/api/reports/mine", "/api/reports/mine"},
		{"/api/admin/reports", "/api/admin/reports"},
		{"/api/admin/reports/statistics", "/api/admin/reports/statistics"},
		{"/api/admin/audit", "/api/admin/audit"},

		// Admin routes with IDs
		{"/api/admin/reports/12", "/api/admin/reports/:id"},
		{"/api/admin/reports/12/resolve", "/api/admin/reports/:id/resolve"},
		{"/api/admin/users/5", "/api/admin/users/:id"},
		{"/api/admin/users/5/ban", "/api/admin/users/:id/ban"},
		{"/api/admin/users/5/unban", "/api/admin/users/:id/unban"},
		{"/api/admin/users/5/role", "/api/admin/users/:id/role"},
		{"/api/admin/posts/42", "/api/admin/posts/:id"},
		{"/api/admin/posts/42/hide", "/api/admin/posts/:id/hide"},

		// Deep paths collapse
		{"/api/admin/posts/42/a/b", "/api/admin/posts/*"},

		// Unknown admin collections are left alone
		{"/api/admin/other/1", "/api/admin/other/1"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizePath(tt.input))
		})
	}
}

func gaugeValue(t *testing.T, g interface{ Write(*dto.Metric) error }) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, g.Write(&m))
	return m.GetGauge().GetValue()
}

func TestCollect(t *testing.T) {
	src := StatsSource{
		ReportsByStatus: func(ctx context.Context) (map[string]int, error) {
			return map[string]int{"PENDING": 3, "UNDER_REVIEW": 2, "RESOLVED": 7, "DISMISSED": 1}, nil
		},
		UserCount: func(ctx context.Context) (int, error) { return 11, nil },
	}

	collect(context.Background(), src)

	assert.Equal(t, 5.0, gaugeValue(t, ReportsPending))
	assert.Equal(t, 7.0, gaugeValue(t, ReportsByStatus.WithLabelValues("RESOLVED")))
	assert.Equal(t, 11.0, gaugeValue(t, RegisteredUsersTotal))

	t.Run("errors keep previous values", func(t *testing.T) {
		collect(context.Background(), StatsSource{
			ReportsByStatus: func(ctx context.Context) (map[string]int, error) { return nil, errors.New("db closed") },
			UserCount:       func(ctx context.Context) (int, error) { return 0, errors.New("db closed") },
		})
		assert.Equal(t, 5.0, gaugeValue(t, ReportsPending))
		assert.Equal(t, 11.0, gaugeValue(t, RegisteredUsersTotal))
	})

	t.Run("nil sources are skipped", func(t *testing.T) {
		assert.NotPanics(t, func() { collect(context.Background(), StatsSource{}) })
	})
}
