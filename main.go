package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/paystream-hq/paystreamer/pkg/api"
	"github.com/paystream-hq/paystreamer/pkg/circuitbreaker"
	"github.com/paystream-hq/paystreamer/pkg/config"
	"github.com/paystream-hq/paystreamer/pkg/health"
	"github.com/paystream-hq/paystreamer/pkg/intent"
	"github.com/paystream-hq/paystreamer/pkg/logger"
	"github.com/paystream-hq/paystreamer/pkg/registry"
	"github.com/paystream-hq/paystreamer/pkg/scheduler"
	"github.com/paystream-hq/paystreamer/pkg/settlement"
	"github.com/paystream-hq/paystreamer/pkg/store"
	"github.com/paystream-hq/paystreamer/pkg/subscription"
)

func main() {
	// Load configuration from environment variables
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	stdLogger := logger.NewStdLogger(cfg.LoggerConfig.Coloring, cfg.LoggerConfig.Level)

	// Set up context with cancellation on SIGINT/SIGTERM
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// On-chain intent registry
	registryClient, err := registry.NewEVMClient(
		cfg.RPCURL,
		cfg.RegistryAddress,
		cfg.PrivateKey,
		cfg.Network,
		cfg.CallTimeout,
		logger.WithComponent(stdLogger, logger.Registry),
	)
	if err != nil {
		log.Fatalf("Failed to connect to intent registry: %v", err)
	}

	// Settlement facilitator
	settler := settlement.NewFacilitatorClient(&settlement.FacilitatorConfig{
		URL:             cfg.FacilitatorURL,
		Network:         cfg.Network,
		CustodialSigner: registryClient.SignerAddress(),
		Timeout:         cfg.CallTimeout,
		Logger:          logger.WithComponent(stdLogger, logger.Settlement),
	})

	// Stores and managers
	intentStore := store.NewIntentStore()
	logStore := store.NewLogStore()
	subscriptionStore := store.NewSubscriptionStore()

	intentManager := intent.NewManager(intentStore, logStore, registryClient, stdLogger)
	subscriptionManager := subscription.NewManager(subscriptionStore, stdLogger)

	// Settlement circuit breaker
	breaker := circuitbreaker.New(
		cfg.CircuitBreaker.Enabled,
		cfg.CircuitBreaker.Threshold,
		cfg.CircuitBreaker.WindowDuration,
		cfg.CircuitBreaker.ResetTimeout,
		stdLogger,
	)

	// Background loops
	executor := scheduler.NewExecutor(intentManager, settler, breaker,
		logger.WithComponent(stdLogger, logger.Executor),
		scheduler.ExecutorConfig{
			Interval:    cfg.ExecutorInterval,
			CallTimeout: cfg.CallTimeout,
			WorkerCount: cfg.WorkerCount,
		})
	recurring := scheduler.NewRecurring(subscriptionManager, intentManager,
		logger.WithComponent(stdLogger, logger.Scheduler),
		scheduler.RecurringConfig{
			Interval: cfg.SchedulerInterval,
			Grace:    cfg.RecurringGrace,
		})

	go executor.Start(ctx)
	go recurring.Start(ctx)

	// Health and metrics server
	healthServer := health.NewServer(cfg.MetricsPort, intentManager, subscriptionManager, registryClient, breaker, stdLogger)
	go healthServer.Start()

	// Public API server
	apiServer := api.NewServer(intentManager, subscriptionManager, executor, registryClient, cfg.Network,
		logger.WithComponent(stdLogger, logger.API))
	httpServer := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: apiServer.Router(),
	}

	go func() {
		stdLogger.Notice("Starting API server on port %s", cfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			stdLogger.Error("API server error: %v", err)
			cancel()
		}
	}()

	// Graceful shutdown on termination signal
	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, os.Interrupt, syscall.SIGTERM)
	select {
	case <-signalCh:
		stdLogger.Notice("Received termination signal, shutting down gracefully...")
	case <-ctx.Done():
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		stdLogger.Error("API server shutdown error: %v", err)
	}
}
