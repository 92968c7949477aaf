package jobs

import (
	"context"
	"log"
	"time"

	"tasktide/internal/config"
	"tasktide/internal/repository"
)

// StartSessionPurgeJob periodically deletes refresh sessions past their
// expiry so the table does not grow without bound.
func StartSessionPurgeJob(ctx context.Context, cfg config.Config, store *repository.Store) {
	if !cfg.SessionPurgeEnabled {
		return
	}
	interval := cfg.SessionPurgeInterval
	if interval <= 0 {
		interval = time.Hour
	}

	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				tickCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
				deleted, err := store.DeleteExpiredSessions(tickCtx, time.Now().UTC())
				cancel()
				if err != nil {
					log.Printf("session purge job error: %v", err)
					continue
				}
				if deleted > 0 {
					log.Printf("session purge job removed %d sessions", deleted)
				}
			}
		}
	}()
}
