package config

import (
	"context"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// WatchResources reloads resources.yaml on change and calls onUpdate with the latest catalog.
// It performs an initial load before entering the watch loop.
func WatchResources(ctx context.Context, path string, interval time.Duration, logger zerolog.Logger, onUpdate func(*Catalog)) error {
	if path == "" {
		path = DefaultResourcesPath
	}
	if interval <= 0 {
		interval = 30 * time.Second
	}
	log := logger.With().Str("component", "resources_watch").Str("path", path).Logger()

	catalog, err := LoadResources(path)
	if err != nil {
		return err
	}
	if onUpdate != nil {
		onUpdate(catalog)
	}

	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	lastMod := info.ModTime()

	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				info, err := os.Stat(path)
				if err != nil {
					log.Warn().Err(err).Msg("stat resources file")
					continue
				}
				if !info.ModTime().After(lastMod) {
					continue
				}
				catalog, err := LoadResources(path)
				if err != nil {
					// Keep serving the previous catalog until the file is fixed.
					log.Error().Err(err).Msg("reload resources")
					continue
				}
				lastMod = info.ModTime()
				log.Info().
					Str("revision", catalog.Revision).
					Int("resources", catalog.Len()).
					Msg("resources reloaded")
				if onUpdate != nil {
					onUpdate(catalog)
				}
			}
		}
	}()

	return nil
}
