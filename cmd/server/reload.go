package main

import (
	"context"
	"os"

	"github.com/rs/zerolog/log"
)

type reloader interface {
	Reload() error
}

// reloadOnSignal reloads the moderation policy each time sigs fires, until
// ctx is done. A failed reload keeps the previous policy in effect.
func reloadOnSignal(ctx context.Context, sigs <-chan os.Signal, policy reloader) {
	for {
		select {
		case <-ctx.Done():
			return
		case sig := <-sigs:
			if err := policy.Reload(); err != nil {
				log.Error().Err(err).Str("signal", sig.String()).Msg("Failed to reload moderation policy")
			} else {
				log.Info().Str("signal", sig.String()).Msg("Moderation policy reloaded")
			}
		}
	}
}
