package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"wabroadcast/internal/config"
	"wabroadcast/internal/constants"
	"wabroadcast/internal/database"
	apperrors "wabroadcast/internal/errors"
	"wabroadcast/internal/retry"
	"wabroadcast/internal/service"
	"wabroadcast/internal/tracing"
	"wabroadcast/pkg/whatsapp"

	"github.com/sirupsen/logrus"
)

var (
	// Version information (set at build time)
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"

	// CLI flags
	verbose    = flag.Bool("verbose", false, "Enable verbose logging (includes sensitive information)")
	configPath = flag.String("config", "config.json", "Path to configuration file")
	version    = flag.Bool("version", false, "Show version information")
)

func main() {
	flag.Parse()

	if *version {
		fmt.Printf("wabroadcast %s\nBuild Time: %s\nGit Commit: %s\n", Version, BuildTime, GitCommit)
		os.Exit(0)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		logrus.Fatalf("Application error: %v", err)
	}
}

func run(ctx context.Context) error {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	logger.WithFields(logrus.Fields{
		"version": Version,
		"build":   BuildTime,
		"commit":  GitCommit,
	}).Info("Starting wabroadcast")

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if *verbose {
		logger.SetLevel(logrus.DebugLevel)
		logger.Info("Verbose logging enabled - sensitive information will be logged")
	} else if cfg.LogLevel != "" {
		level, err := logrus.ParseLevel(cfg.LogLevel)
		if err != nil {
			logger.Warnf("Invalid log level %q, defaulting to info", cfg.LogLevel)
			logger.SetLevel(logrus.InfoLevel)
		} else {
			if level > logrus.InfoLevel {
				level = logrus.InfoLevel
			}
			logger.SetLevel(level)
		}
	} else {
		logger.SetLevel(logrus.InfoLevel)
	}

	// OpenTelemetry tracing
	tracingManager := tracing.NewTracingManager(tracing.TracingConfig{
		ServiceName:    cfg.Tracing.ServiceName,
		ServiceVersion: cfg.Tracing.ServiceVersion,
		Environment:    cfg.Tracing.Environment,
		OTLPEndpoint:   cfg.Tracing.OTLPEndpoint,
		SampleRate:     cfg.Tracing.SampleRate,
		Enabled:        cfg.Tracing.Enabled,
		UseStdout:      cfg.Tracing.UseStdout,
	}, logger)

	if err := tracingManager.Initialize(ctx); err != nil {
		logger.Warnf("Failed to initialize tracing: %v", err)
	}
	defer func() {
		if err := tracingManager.Shutdown(context.Background()); err != nil {
			logger.Warnf("Failed to shutdown tracing: %v", err)
		}
	}()

	// Initialize database with exponential backoff retry
	errLog := &apperrors.Logger{Logger: logger}
	var db *database.Database
	backoff := retry.NewBackoff(retry.BackoffConfig{
		InitialDelay: time.Duration(cfg.Retry.InitialBackoffMs) * time.Millisecond,
		MaxDelay:     time.Duration(cfg.Retry.MaxBackoffMs) * time.Millisecond,
		Multiplier:   2.0,
		MaxAttempts:  cfg.Retry.MaxAttempts,
		Jitter:       true,
	})

	err = backoff.Retry(ctx, func() error {
		var initErr error
		db, initErr = database.New(cfg.Database.Path)
		if initErr != nil {
			errLog.LogRetryableError(initErr, "Failed to initialize database", logrus.Fields{
				"path": cfg.Database.Path,
			})
		}
		return initErr
	})
	if err != nil {
		return fmt.Errorf("failed to initialize database after retries: %w", err)
	}
	defer db.Close()

	apiKey := os.Getenv("WHATSAPP_API_KEY")
	waClient := whatsapp.NewClient(cfg.WhatsApp.APIBaseURL, apiKey, cfg.WhatsApp.HTTPTimeout())

	credentialTTL := time.Duration(cfg.WhatsApp.CredentialTTLSec) * time.Second
	deviceService := service.NewDeviceSessionService(db, waClient, credentialTTL, logger)
	dispatchService := service.NewDispatchService(db, db, waClient, logger)

	// Session event stream from the gateway
	if cfg.WhatsApp.EventStreamOnBoot && cfg.WhatsApp.EventsURL != "" {
		bridge := service.NewSessionEventBridge(deviceService, logger)
		retryDelay := time.Duration(constants.DefaultEventStreamRetryDelaySec) * time.Second
		stream := whatsapp.NewEventStream(cfg.WhatsApp.EventsURL, apiKey, retryDelay, bridge.HandleEvent, logger)
		go stream.Run(ctx)
	} else {
		logger.Info("Session event stream disabled, relying on signed HTTP callbacks")
	}

	if cfg.Scheduler.Enabled {
		scheduler := service.NewScheduler(dispatchService, cfg.Scheduler.PollIntervalSec, logger)
		go scheduler.Start(ctx)
		defer scheduler.Stop()
	} else {
		logger.Info("Due-message scheduler disabled")
	}

	monitor := service.NewDeliveryMonitor(db, cfg.Scheduler.StaleCheckSec, cfg.Scheduler.StaleThresholdSec, logger)
	go monitor.Start(ctx)
	defer monitor.Stop()

	server := NewServer(cfg, deviceService, dispatchService, logger)
	serverErrCh := make(chan error, constants.ServerErrorChannelSize)
	go func() {
		if err := server.Start(); err != nil {
			serverErrCh <- fmt.Errorf("server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("Received shutdown signal")
	case err := <-serverErrCh:
		logger.Error(err)
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(constants.DefaultGracefulShutdownSec)*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shutdown server gracefully: %w", err)
	}

	logger.Info("Server shutdown completed")
	return nil
}
