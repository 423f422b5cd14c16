package main

import (
	"context"
	"fmt"

	"bookable/internal/config"
	"bookable/internal/events"
	"bookable/internal/metrics"
	"bookable/internal/models"
	"bookable/internal/service"
	"bookable/internal/snapshot"

	"github.com/rs/zerolog"
)

// watchSource starts the configured snapshot driver and keeps src current. Every swap
// and every rejected snapshot set is published on bus. The returned func releases the driver.
func watchSource(ctx context.Context, cfg *config.Config, bus *events.Bus, logger zerolog.Logger) (*service.CatalogSource, func(), error) {
	src := service.NewCatalogSource(func(c *config.Catalog) {
		bus.Publish(events.Event{Type: events.CatalogReloaded, Revision: c.Revision, Resources: c.Len()})
	})

	switch cfg.Snapshot.Driver {
	case config.DriverSQLite:
		store, err := snapshot.NewStore(cfg.Snapshot.SQLitePath, logger)
		if err != nil {
			return nil, nil, err
		}
		err = store.Watch(ctx, cfg.ReloadInterval(), func(list []models.Resource) {
			if err := src.SwapResources(list); err != nil {
				bus.Publish(events.Event{Type: events.CatalogReloadFailed, Resources: len(list), Err: err})
			}
		})
		if err != nil {
			_ = store.Close()
			return nil, nil, err
		}
		if cfg.Snapshot.Backup.Enabled {
			go snapshot.NewBackupService(store, cfg.Snapshot.Backup, logger).Start(ctx)
		}
		return src, func() { _ = store.Close() }, nil

	default:
		err := config.WatchResources(ctx, cfg.Resources.Path, cfg.ReloadInterval(), logger, src.Swap)
		if err != nil {
			return nil, nil, err
		}
		return src, func() {}, nil
	}
}

// subscribeCatalog records catalog events in metrics and the log.
func subscribeCatalog(bus *events.Bus, m *metrics.Metrics, logger zerolog.Logger) {
	log := logger.With().Str("component", "catalog").Logger()

	bus.Subscribe(events.CatalogReloaded, func(e events.Event) {
		if m != nil {
			m.CatalogSwapped(e.Resources)
		}
		log.Info().Str("revision", e.Revision).Int("resources", e.Resources).Msg("catalog swapped")
	})
	bus.Subscribe(events.CatalogReloadFailed, func(e events.Event) {
		log.Error().Err(e.Err).Int("resources", e.Resources).Msg("rejecting snapshot set, keeping previous catalog")
	})
}

// loadSource reads the resources once.
func loadSource(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*service.CatalogSource, error) {
	src := service.NewCatalogSource(nil)

	switch cfg.Snapshot.Driver {
	case config.DriverSQLite:
		store, err := snapshot.NewStore(cfg.Snapshot.SQLitePath, logger)
		if err != nil {
			return nil, err
		}
		defer store.Close()

		list, err := store.ListResources(ctx)
		if err != nil {
			return nil, err
		}
		if err := src.SwapResources(list); err != nil {
			return nil, fmt.Errorf("snapshot store %s: %w", cfg.Snapshot.SQLitePath, err)
		}

	default:
		catalog, err := config.LoadResources(cfg.Resources.Path)
		if err != nil {
			return nil, err
		}
		src.Swap(catalog)
	}
	return src, nil
}

func newService(src service.ResourceSource, cache *service.SlotCache, m *metrics.Metrics, cfg *config.Config, logger zerolog.Logger) *service.Service {
	return service.New(src, cache, m, logger, service.Options{
		Location:          cfg.Location(),
		SearchHorizonDays: cfg.Engine.SearchHorizonDays,
	})
}
