package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/erp/chatbridge/internal/application/bridge"
	"github.com/erp/chatbridge/internal/application/correlation"
	"github.com/erp/chatbridge/internal/application/dedup"
	"github.com/erp/chatbridge/internal/application/filter"
	"github.com/erp/chatbridge/internal/application/retry"
	"github.com/erp/chatbridge/internal/application/session"
	"github.com/erp/chatbridge/internal/infrastructure/adapter/browser"
	"github.com/erp/chatbridge/internal/infrastructure/adapter/mattermost"
	"github.com/erp/chatbridge/internal/infrastructure/cache"
	"github.com/erp/chatbridge/internal/infrastructure/config"
	"github.com/erp/chatbridge/internal/infrastructure/logger"
	"github.com/erp/chatbridge/internal/infrastructure/metrics"
	"github.com/erp/chatbridge/internal/infrastructure/telemetry"
	"github.com/erp/chatbridge/internal/interfaces/http/handler"
	"github.com/erp/chatbridge/internal/interfaces/http/router"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

const shutdownTimeout = 30 * time.Second

func main() {
	configPath := flag.String("config", "", "path to config.toml (default: search ., ./config, /etc/chatbridge)")
	flag.Parse()

	cfg, err := config.LoadFile(*configPath)
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	log.Info("Starting chat bridge",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("version", version),
	)

	ctx := context.Background()

	tp, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		ServiceVersion:    version,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize tracing", zap.Error(err))
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			log.Error("Error shutting down tracer provider", zap.Error(err))
		}
	}()

	store, err := cache.NewStoreFactory(cfg.Redis,
		cache.WithLogger(log),
		cache.WithInMemoryFallback(cfg.Redis.AllowInMemoryFallback),
	).CreateStore()
	if err != nil {
		log.Fatal("Failed to connect to store", zap.Error(err))
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Error("Error closing store", zap.Error(err))
		}
	}()

	bridgeMetrics := metrics.New()

	extractor, err := correlation.NewExtractor(cfg.Correlation.OrderPatterns)
	if err != nil {
		log.Fatal("Invalid order patterns", zap.Error(err))
	}
	correlator := correlation.NewCorrelator(extractor, store, log)

	sideAFilter, err := filter.NewSideA(cfg.SideA.RequestPatterns, cfg.SideA.AutomatedSenderPatterns)
	if err != nil {
		log.Fatal("Invalid side A filter patterns", zap.Error(err))
	}
	sideBFilter, err := filter.NewSideB(cfg.SideB.BotSenderPatterns, cfg.SideB.ReplyPatterns)
	if err != nil {
		log.Fatal("Invalid side B filter patterns", zap.Error(err))
	}

	entries := make([]session.Entry, 0, len(cfg.SideA.Sessions))
	for _, s := range cfg.SideA.Sessions {
		entries = append(entries, session.Entry{ID: s.ID, DisplayName: s.DisplayName})
	}
	directory, err := session.NewDirectory(entries, cfg.SideA.UnreadSuffixPattern)
	if err != nil {
		log.Fatal("Invalid side A sessions", zap.Error(err))
	}
	if directory.Len() == 0 {
		log.Warn("No side A sessions configured; requests will not be picked up")
	}

	sideA, err := mattermost.New(mattermost.Config{
		URL:      cfg.SideA.Mattermost.URL,
		Token:    cfg.SideA.Mattermost.Token,
		TeamName: cfg.SideA.Mattermost.TeamName,
	}, directory, log)
	if err != nil {
		log.Fatal("Failed to create side A adapter", zap.Error(err))
	}
	connectCtx, cancelConnect := context.WithTimeout(ctx, cfg.Delivery.AdapterTimeout)
	err = sideA.Connect(connectCtx)
	cancelConnect()
	if err != nil {
		log.Fatal("Failed to connect side A", zap.Error(err))
	}

	browserCfg := cfg.SideB.Browser
	sideB, err := browser.New(&browser.Config{
		RemoteURL:       browserCfg.RemoteURL,
		Launch:          browserCfg.Launch,
		Headless:        browserCfg.Headless,
		PageURL:         browserCfg.PageURL,
		ItemSelector:    browserCfg.ItemSelector,
		SenderSelector:  browserCfg.SenderSelector,
		ContentSelector: browserCfg.ContentSelector,
		InputSelector:   browserCfg.InputSelector,
		SendSelector:    browserCfg.SendSelector,
		PageTimeout:     browserCfg.PageTimeout,
		Logger:          log,
	})
	if err != nil {
		log.Fatal("Failed to create side B adapter", zap.Error(err))
	}
	defer func() {
		_ = sideB.Close()
	}()
	if err := sideB.Start(ctx); err != nil {
		log.Fatal("Failed to open side B page", zap.Error(err))
	}

	coordinator := bridge.NewCoordinator(bridge.Dependencies{
		SideA: sideA,
		SideB: sideB,
		Dedup: dedup.NewStore(store,
			dedup.WithMaxProcessedLimit(cfg.Dedup.MaxProcessedLimit),
			dedup.WithLogger(log),
		),
		Correlator:  correlator,
		SideAFilter: sideAFilter,
		SideBFilter: sideBFilter,
		Recorder:    bridgeMetrics,
	}, bridge.Config{
		SideAWindow:       cfg.SideA.Window,
		SideBWindow:       cfg.SideB.Window,
		SideAPollInterval: cfg.SideA.PollInterval,
		SideBPollInterval: cfg.SideB.PollInterval,
		DrainInterval:     cfg.Delivery.DrainInterval,
		SendInterval:      cfg.Delivery.SendInterval,
		AdapterTimeout:    cfg.Delivery.AdapterTimeout,
		HandoffCapacity:   cfg.Delivery.HandoffCapacity,
		BufferMaxLength:   cfg.Buffer.MaxLength,
		Retry: retry.Policy{
			MaxAttempts: cfg.Retry.MaxRetries,
			Delay:       cfg.Retry.Delay,
		},
	}, log)

	if err := coordinator.Start(ctx); err != nil {
		log.Fatal("Failed to start bridge", zap.Error(err))
	}

	var srv *http.Server
	if cfg.HTTP.Enabled {
		engine := router.NewEngine(router.EngineConfig{
			Logger:  log.Named("http"),
			Health:  handler.NewHealthHandler(store),
			Metrics: bridgeMetrics.Handler(),
			Release: cfg.App.Env == "production",
		}, handler.NewBridgeHandler(correlator, coordinator))

		srv = &http.Server{
			Addr:         cfg.HTTP.Addr,
			Handler:      engine,
			ReadTimeout:  cfg.HTTP.ReadTimeout,
			WriteTimeout: cfg.HTTP.WriteTimeout,
		}
		go func() {
			log.Info("Admin server starting", zap.String("addr", srv.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("Admin server failed", zap.Error(err))
			}
		}()
	}

	// Graceful shutdown on signal, or when every worker has stopped on its own
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-quit:
		log.Info("Shutting down bridge...", zap.Stringer("signal", sig))
	case <-coordinator.Done():
		log.Error("All bridge workers stopped")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if srv != nil {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("Admin server forced to shutdown", zap.Error(err))
		}
	}
	if err := coordinator.Stop(shutdownCtx); err != nil {
		log.Error("Bridge did not stop in time", zap.Error(err))
		return
	}
	if err := coordinator.Wait(); err != nil {
		log.Error("Bridge stopped with fatal errors", zap.Error(err))
		return
	}

	log.Info("Bridge exited gracefully")
}
