package main

import (
	"context"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cabril87/circuitguard/config"
	"github.com/cabril87/circuitguard/internal/circuitbreaker"
	"github.com/cabril87/circuitguard/internal/handler"
	"github.com/cabril87/circuitguard/internal/healthcheck"
	"github.com/cabril87/circuitguard/internal/httpserver"
	"github.com/cabril87/circuitguard/internal/metrics"
	"github.com/cabril87/circuitguard/internal/upstream"
	"github.com/cabril87/circuitguard/pkg/logger"
)

const metricsBufferSize = 1024

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.Any("err", err))
		os.Exit(1)
	}

	log := logger.New(cfg.Logging.Level, true, cfg.Server.Environment)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	resetTimeout, err := time.ParseDuration(cfg.Breaker.ResetTimeout)
	if err != nil {
		log.Error("Failed to parse reset timeout", slog.Any("err", err))
		os.Exit(1)
	}

	registry := circuitbreaker.NewRegistry(circuitbreaker.Settings{
		FailureThreshold: cfg.Breaker.FailureThreshold,
		ResetTimeout:     resetTimeout,
	}, log)

	metricsCollector := metrics.NewCollector(metricsBufferSize, log)
	metricsCollector.Start(ctx)

	registry.OnStateChange(func(name string, from, to circuitbreaker.State) {
		metricsCollector.Emit(metrics.MetricEvent{
			Type:      metrics.EventStateChanged,
			Timestamp: time.Now(),
			Breaker:   name,
			State:     to.String(),
		})
	})

	upstreams, err := initializeUpstreams(ctx, cfg, registry, log, metricsCollector)
	if err != nil {
		log.Error("Failed to initialize upstreams", slog.Any("err", err))
		os.Exit(1)
	}

	proxyHandler := handler.NewProxyHandler(log, upstreams, metricsCollector)

	mux := setupRouter(proxyHandler, registry, upstreams, metricsCollector)

	srv, err := httpserver.New(cfg.Server.Address, mux, log)
	if err != nil {
		log.Error("Failed to create server", slog.Any("err", err))
		os.Exit(1)
	}

	srvErrCh := make(chan error, 1)

	go func() {
		srvErrCh <- srv.Start()
	}()

	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
		if err := srv.Shutdown(context.Background()); err != nil {
			log.Error("Error during shutdown", slog.Any("err", err))
		}
	case err := <-srvErrCh:
		if err != nil {
			log.Error("Error starting proxy", slog.Any("err", err))
			os.Exit(1)
		}
	}
}

func initializeUpstreams(
	ctx context.Context,
	cfg *config.Config,
	registry *circuitbreaker.Registry,
	log *slog.Logger,
	collector *metrics.Collector,
) ([]*upstream.Upstream, error) {
	healthCheckInterval, err := time.ParseDuration(cfg.HealthCheck.Interval)
	if err != nil {
		return nil, err
	}

	var upstreams []*upstream.Upstream

	for _, upstreamCfg := range cfg.Upstreams {
		u, err := url.Parse(upstreamCfg.URL)

		if err != nil {
			log.Error("Failed to parse URL",
				slog.String("url", upstreamCfg.URL),
				slog.String("error", err.Error()))
			continue
		}

		var resetTimeout time.Duration
		if upstreamCfg.ResetTimeout != "" {
			resetTimeout, err = time.ParseDuration(upstreamCfg.ResetTimeout)
			if err != nil {
				log.Error("Failed to parse reset timeout",
					slog.String("upstream", upstreamCfg.Name),
					slog.String("error", err.Error()))
				continue
			}
		}

		cb := registry.GetOrCreate(upstreamCfg.Name, upstreamCfg.FailureThreshold, resetTimeout)

		up := upstream.New(upstreamCfg.Name, u, cb)
		upstreams = append(upstreams, up)
		go healthcheck.HealthCheck(ctx, up, healthCheckInterval, log, collector)
	}

	if len(upstreams) == 0 {
		return nil, os.ErrInvalid
	}

	return upstreams, nil
}
