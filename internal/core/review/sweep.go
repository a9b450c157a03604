package review

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Sweep periodically removes terminal sessions older than maxAge from the
// registry. It blocks until ctx is cancelled; run it in its own goroutine.
// Pending sessions are never swept; the session timeout is the only thing
// that retires a stale pending review.
func Sweep(ctx context.Context, reg *Registry, interval, maxAge time.Duration, logger zerolog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := reg.CleanupOld(maxAge); removed > 0 {
				logger.Debug().Int("removed", removed).Msg("swept old review sessions")
			}
		}
	}
}
