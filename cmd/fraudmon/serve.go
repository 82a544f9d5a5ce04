package main

import (
	"context"
	"errors"
	"fmt"
	"fraud_monitor/internal/api"
	"fraud_monitor/internal/auth"
	"fraud_monitor/internal/processor"
	"fraud_monitor/internal/service"
	"fraud_monitor/pkg/metrics"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
)

const shutdownTimeout = 30 * time.Second

func runServe(ctx context.Context, configPath string) error {
	cfg, logger, err := bootstrap(configPath)
	if err != nil {
		return err
	}
	logger.Info("Starting application",
		slog.String("version", Version),
		slog.String("storage", cfg.Storage.ResolvedDriver()))

	metricsCollector := metrics.NewMetricsCollector(logger)

	store, err := openStore(ctx, cfg.Storage, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	publisher, err := newPublisher(cfg.Events, logger)
	if err != nil {
		return err
	}
	defer publisher.Close()

	sessions, closeSessions, err := newSessionStore(ctx, cfg.Auth, logger)
	if err != nil {
		return err
	}
	defer closeSessions()

	secret := cfg.Auth.JWTSecret
	if secret == "" {
		secret = uuid.NewString()
		logger.Warn("JWT_SECRET not set, sessions will not survive a restart")
	}
	tokens := auth.NewTokenManager(secret, cfg.Auth.SessionTTL)

	dispatcher := service.NewAlertDispatcher(
		store.Alerts(),
		newCascade(cfg.Alerts, logger),
		service.DispatcherConfig{
			Workers:         cfg.Alerts.Workers,
			QueueSize:       cfg.Alerts.QueueSize,
			TestDelay:       cfg.Alerts.TestDelay,
			TestSuccessRate: cfg.Alerts.TestSuccessRate,
			SendTimeout:     cfg.Alerts.SendTimeout,
		},
		logger,
		service.WithPublisher(publisher),
		service.WithMetrics(metricsCollector),
	)

	rules, err := newRuleEngine(cfg.Pipeline, logger)
	if err != nil {
		return err
	}

	heuristic := processor.NewHeuristicScorer(processor.WithLocation(cfg.Pipeline.Location()))
	txProcessor := processor.NewTransactionProcessor(processor.Dependencies{
		Store:     store,
		Analyzer:  processor.NewAIAnalyzer(newModel(cfg.AI, logger), heuristic, cfg.AI.Timeout, metricsCollector, logger),
		Embedder:  newEmbedder(cfg.AI, logger),
		Rules:     rules,
		Alerts:    dispatcher,
		Publisher: publisher,
		Metrics:   metricsCollector,
		Logger:    logger,
	}, cfg.Pipeline.Threshold())

	apiHandler := api.NewAPIHandler(api.Deps{
		Processor:    txProcessor,
		Alerts:       dispatcher,
		Analytics:    service.NewAnalyticsService(store.Transactions(), logger),
		Accounts:     service.NewAuthService(store.Users(), tokens, sessions, logger),
		Store:        store,
		Metrics:      metricsCollector,
		Logger:       logger,
		CookieSecure: cfg.Auth.CookieSecure,
	})
	router := api.NewRouter(apiHandler, auth.NewAuthenticator(tokens, sessions, logger), api.RouterConfig{
		RequestTimeout: cfg.HTTP.RequestTimeout,
		AllowedOrigins: cfg.HTTP.AllowedOrigins,
	})

	var metricsServer *http.Server
	if cfg.Metrics.Enabled {
		metricsServer = metricsCollector.StartMetricsServer(cfg.Metrics.Addr)
	}

	httpServer := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      router,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("Starting HTTP server", slog.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case err := <-serveErr:
		if err != nil {
			logger.Error("HTTP server failed", slog.String("error", err.Error()))
			runErr = fmt.Errorf("http server: %w", err)
		}
	}

	shutdown(logger, httpServer, metricsServer, dispatcher, metricsCollector)
	logger.Info("Application shutdown complete")
	return runErr
}

func shutdown(
	logger *slog.Logger,
	httpServer *http.Server,
	metricsServer *http.Server,
	dispatcher *service.AlertDispatcher,
	metricsCollector *metrics.MetricsCollector,
) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("HTTP server shutdown failed", slog.String("error", err.Error()))
	}

	if metricsServer != nil {
		if err := metricsServer.Shutdown(ctx); err != nil {
			logger.Error("Metrics server shutdown failed", slog.String("error", err.Error()))
		}
	}

	if err := dispatcher.Shutdown(ctx); err != nil {
		logger.Error("Alert dispatcher shutdown failed", slog.String("error", err.Error()))
	}
	if err := metricsCollector.Shutdown(ctx); err != nil {
		logger.Error("Metrics collector shutdown failed", slog.String("error", err.Error()))
	}
}
