package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	assettracking "github.com/theoremus-urban-solutions/asset-tracking"
	"github.com/theoremus-urban-solutions/asset-tracking/bus"
	"github.com/theoremus-urban-solutions/asset-tracking/config"
	"github.com/theoremus-urban-solutions/asset-tracking/ingest"
	"github.com/theoremus-urban-solutions/asset-tracking/internal/observability"
	"github.com/theoremus-urban-solutions/asset-tracking/subscription"
	"github.com/theoremus-urban-solutions/asset-tracking/tracker"
	"github.com/theoremus-urban-solutions/asset-tracking/transport"
)

func main() {
	configPath := flag.String("config", "", "path to config.yml (default: ./config.yml)")
	flag.Parse()

	logger := observability.NewLogger()

	var paths []string
	if *configPath != "" {
		paths = append(paths, *configPath)
	}
	cfg, err := config.Load(paths...)
	if err != nil {
		logger.Error("config load failed", "err", err)
		os.Exit(1)
	}

	seconds := func(n int) time.Duration { return time.Duration(n) * time.Second }

	var eventBus bus.Bus
	switch cfg.Bus.Driver {
	case "redis":
		rb, err := bus.NewRedis(cfg.Bus.Addr, cfg.Bus.DB, cfg.Bus.Channel, cfg.Tracking.PerSubscriberBufferSize, logger)
		if err != nil {
			logger.Error("redis bus init failed", "addr", cfg.Bus.Addr, "err", err)
			os.Exit(1)
		}
		eventBus = rb
	default:
		eventBus = bus.NewInProcess(cfg.Tracking.PerSubscriberBufferSize)
	}

	store := tracker.NewStore(seconds(cfg.Tracking.LatenessWindowSeconds), nil)
	validator := tracker.NewValidator(0, nil)
	svc := tracker.NewService(validator, store, eventBus, logger, nil)

	sweeper := tracker.NewSweeper(
		store, eventBus,
		seconds(cfg.Tracking.PresenceSweepIntervalSeconds),
		seconds(cfg.Tracking.StaleThresholdSeconds),
		seconds(cfg.Tracking.OfflineThresholdSeconds),
		logger, nil,
	)
	sweeper.Start()

	stats, err := tracker.NewAggregator(store, eventBus, seconds(cfg.Tracking.StatsWindowSeconds), nil)
	if err != nil {
		logger.Error("stats aggregator init failed", "err", err)
		os.Exit(1)
	}
	stats.AddStaleSource(svc.StaleReports)
	stats.AddDroppedSource(eventBus.Dropped)

	var verifier transport.TokenVerifier
	if len(cfg.Transport.AuthTokens) > 0 {
		verifier = transport.NewStaticVerifier(cfg.Transport.AuthTokens)
	} else {
		logger.Warn("no auth tokens configured, observer connections are unauthenticated")
		verifier = transport.AllowAllVerifier{}
	}

	registry := subscription.NewRegistry(nil)
	hub, err := transport.NewHub(eventBus, registry, verifier, transport.Options{
		HeartbeatInterval: seconds(cfg.Transport.HeartbeatIntervalSeconds),
		HeartbeatTimeout:  seconds(cfg.Transport.HeartbeatTimeoutSeconds),
		WriteTimeout:      seconds(cfg.Transport.WriteTimeoutSeconds),
		SendBuffer:        cfg.Tracking.PerSubscriberBufferSize,
	}, logger)
	if err != nil {
		logger.Error("transport init failed", "err", err)
		os.Exit(1)
	}
	stats.AddDroppedSource(hub.Dropped)

	var mqttSource *ingest.Source
	if cfg.MQTT.BrokerURL != "" {
		mqttSource = ingest.NewSource(cfg.MQTT, svc, logger)
		if err := mqttSource.Start(); err != nil {
			logger.Error("mqtt source failed", "err", err)
			os.Exit(1)
		}
	}

	go observability.StartMetricsServer(cfg.Server.MetricsPort)

	server := assettracking.NewServer(cfg.Server.Port, svc, stats, hub, cfg.Bus.Driver, logger)
	go func() {
		if err := server.Start(); err != nil {
			logger.Error("server failed", "err", err)
			os.Exit(1)
		}
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs
	logger.Info("shutdown signal received")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server shutdown error", "err", err)
	}
	if mqttSource != nil {
		mqttSource.Stop()
	}
	sweeper.Stop()
	hub.Close()
	stats.Close()
	_ = eventBus.Close()
	logger.Info("shut down successfully")
}
