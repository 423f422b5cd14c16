package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bookable/internal/api"
	"bookable/internal/events"
	"bookable/internal/metrics"
	"bookable/internal/service"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 5 * time.Second

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the availability HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(opts)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			reg := prometheus.NewRegistry()
			reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
			m := metrics.NewMetrics("bookable", reg)

			bus := events.NewBus()
			subscribeCatalog(bus, m, logger)

			src, closeSource, err := watchSource(ctx, cfg, bus, logger)
			if err != nil {
				return err
			}
			defer closeSource()

			var rdb *redis.Client
			if cfg.CacheEnabled() {
				rdb = redis.NewClient(&redis.Options{
					Addr:     cfg.Redis.Address,
					Password: cfg.Redis.Password,
					DB:       cfg.Redis.DB,
				})
				defer rdb.Close()
			}
			cache := service.NewSlotCache(rdb, cfg.CacheTTL())

			httpOpts := api.Options{
				Addr:              cfg.Addr(),
				ReadTimeout:       cfg.ReadTimeout(),
				WriteTimeout:      cfg.WriteTimeout(),
				RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
				Burst:             cfg.RateLimit.Burst,
				Ready: func(ctx context.Context) error {
					pingCtx, cancel := context.WithTimeout(ctx, time.Second)
					defer cancel()
					return cache.Ping(pingCtx)
				},
			}
			if cfg.Monitoring.PrometheusEnabled {
				httpOpts.MetricsPath = cfg.Monitoring.MetricsPath
				httpOpts.MetricsHandler = promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
			}

			svc := newService(src, cache, m, cfg, logger)
			srv := api.NewHTTPServer(svc, m, logger, httpOpts)

			errCh := make(chan error, 1)
			go func() { errCh <- srv.Start() }()

			logger.Info().
				Str("driver", cfg.Snapshot.Driver).
				Str("timezone", cfg.Engine.Timezone).
				Bool("cache", cache.Enabled()).
				Msg("bookable started")

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error().Err(err).Msg("HTTP shutdown")
			}
			logger.Info().Msg("bookable stopped")
			return nil
		},
	}
}
