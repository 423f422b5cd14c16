package snapshot

import (
	"context"
	"time"

	"bookable/internal/models"
)

// Watch loads every snapshot, calls onUpdate, and then polls the store, calling onUpdate
// again whenever the stored set changes.
func (s *Store) Watch(ctx context.Context, interval time.Duration, onUpdate func([]models.Resource)) error {
	if interval <= 0 {
		interval = 30 * time.Second
	}

	lastMod, lastCount, err := s.LastModified(ctx)
	if err != nil {
		return err
	}
	resources, err := s.ListResources(ctx)
	if err != nil {
		return err
	}
	if onUpdate != nil {
		onUpdate(resources)
	}

	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				mod, count, err := s.LastModified(ctx)
				if err != nil {
					s.logger.Warn().Err(err).Msg("poll snapshot store")
					continue
				}
				if mod.Equal(lastMod) && count == lastCount {
					continue
				}
				resources, err := s.ListResources(ctx)
				if err != nil {
					s.logger.Error().Err(err).Msg("reload snapshots")
					continue
				}
				lastMod, lastCount = mod, count
				s.logger.Info().Int("resources", len(resources)).Msg("snapshots reloaded")
				if onUpdate != nil {
					onUpdate(resources)
				}
			}
		}
	}()

	return nil
}
