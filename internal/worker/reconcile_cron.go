package worker

import (
	"context"
	"time"

	"github.com/duregger/cafe-rio-nutrition/internal/service"

	"github.com/rs/zerolog/log"
)

// StartReconcileCron recomputes and corrects category item counts every
// interval until ctx is cancelled. interval <= 0 disables it.
func StartReconcileCron(ctx context.Context, reconciler service.Reconciler, interval time.Duration) {
	if interval <= 0 {
		log.Info().Msg("reconcile_cron: disabled")
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		log.Info().Dur("interval", interval).Msg("reconcile_cron: started")

		for {
			select {
			case <-ctx.Done():
				log.Info().Msg("reconcile_cron: shutting down")
				return
			case <-ticker.C:
				if _, err := reconciler.Reconcile(ctx, true); err != nil {
					log.Error().Err(err).Msg("reconcile_cron: run failed")
				}
			}
		}
	}()
}
