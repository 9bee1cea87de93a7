package app

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// RunReaper periodically purges stale empty matches until ctx is done.
// The disconnect handler is the primary cleanup path; this is the safety
// net for metadata that survived a missed cleanup.
func RunReaper(ctx context.Context, reg *Registry, interval, ttl time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	log.Info().Str("module", "app.reaper").Dur("interval", interval).Dur("ttl", ttl).Msg("reaper started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "app.reaper").Msg("reaper stopped")
			return
		case <-ticker.C:
			if n := reg.PurgeStale(ttl); n > 0 {
				log.Info().Str("module", "app.reaper").Int("purged", n).Msg("purged stale matches")
			}
		}
	}
}
