package metrics

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// StatsSource provides functions to retrieve current counts for gauge metrics.
// A nil function is skipped. An error leaves the previous gauge value in place.
type StatsSource struct {
	ReportsByStatus func(ctx context.Context) (map[string]int, error)
	UserCount       func(ctx context.Context) (int, error)
}

// StartCollector launches a goroutine that periodically updates gauge metrics.
// It runs every interval until the context is cancelled.
func StartCollector(ctx context.Context, src StatsSource, interval time.Duration) {
	// Do an initial collection immediately
	collect(ctx, src)

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				collect(ctx, src)
			}
		}
	}()

	log.Info().Dur("interval", interval).Msg("Metrics collector started")
}

func collect(ctx context.Context, src StatsSource) {
	if src.ReportsByStatus != nil {
		counts, err := src.ReportsByStatus(ctx)
		if err != nil {
			log.Warn().Err(err).Msg("metrics: failed to collect report counts")
		} else {
			pending := 0
			for status, n := range counts {
				ReportsByStatus.WithLabelValues(status).Set(float64(n))
				if status == "PENDING" || status == "UNDER_REVIEW" {
					pending += n
				}
			}
			ReportsPending.Set(float64(pending))
		}
	}
	if src.UserCount != nil {
		n, err := src.UserCount(ctx)
		if err != nil {
			log.Warn().Err(err).Msg("metrics: failed to collect user count")
		} else {
			RegisteredUsersTotal.Set(float64(n))
		}
	}
}
