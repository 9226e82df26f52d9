package main

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mind-engage/mindengage-prep/internal/assessment"
)

// sweep runs AbandonStale every interval until ctx is done.
func sweep(ctx context.Context, eng *assessment.Engine, every, idleFor time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			n, err := eng.AbandonStale(ctx, idleFor)
			if err != nil {
				log.Error().Err(err).Msg("sweep stale sessions")
				continue
			}
			if n > 0 {
				log.Info().Int("sessions", n).Dur("idle_for", idleFor).Msg("swept stale sessions")
			}
		}
	}
}
