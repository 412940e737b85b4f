package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/iwvelando/credit-simulator/internal/app"
	"github.com/iwvelando/credit-simulator/internal/config"
	"github.com/iwvelando/credit-simulator/internal/logging"
	"github.com/iwvelando/credit-simulator/internal/server"
	"github.com/iwvelando/credit-simulator/internal/tracing"
	"github.com/iwvelando/credit-simulator/pkg/constants"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var version = "dev"

func main() {
	configLocation := flag.String("config", constants.DefaultConfigFile, "path to configuration file")
	serverConfigLocation := flag.String("server-config", constants.DefaultServerConfigFile, "path to server configuration file")
	envFile := flag.String("env-file", ".env", "optional dotenv file with secrets")
	address := flag.String("address", "", "listen address override")
	logLevel := flag.String("log-level", "", "log level override (debug, info, warn, error)")
	flag.Parse()

	conf, err := config.LoadConfiguration(*configLocation)
	if err != nil {
		fmt.Printf("{\"op\": \"main\", \"level\": \"fatal\", \"msg\": \"failed to load configuration at %s\", \"error\": \"%v\"}\n", *configLocation, err)
		os.Exit(1)
	}

	serverConf, err := server.LoadConfig(*serverConfigLocation)
	if err != nil {
		fmt.Printf("{\"op\": \"main\", \"level\": \"fatal\", \"msg\": \"failed to load server configuration at %s\", \"error\": \"%v\"}\n", *serverConfigLocation, err)
		os.Exit(1)
	}
	if *address != "" {
		serverConf.Address = *address
	}

	// Server logging settings override the shared ones when present.
	loggingConf := conf.Logging
	if serverConf.Logging != (config.LoggingConfig{}) {
		loggingConf = serverConf.Logging
	}
	logger, err := logging.New(loggingConf, *logLevel)
	if err != nil {
		fmt.Printf("{\"op\": \"main\", \"level\": \"fatal\", \"msg\": \"failed to initialize logger\", \"error\": \"%v\"}\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync()
	}()

	for _, warning := range conf.ValidateConfiguration() {
		logger.Warn("Configuration warning: "+warning, zap.String("op", "main"))
	}

	secrets, err := config.LoadSecrets(*envFile)
	if err != nil {
		logger.Fatal("failed to load secrets", zap.String("op", "main"), zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.InitTracing(ctx, tracing.Config{
		Endpoint:    conf.Tracing.Endpoint,
		Insecure:    conf.Tracing.Insecure,
		ServiceName: conf.Tracing.ServiceName,
	}, version, logger)
	if err != nil {
		logger.Fatal("failed to initialize tracing", zap.String("op", "main"), zap.Error(err))
	}

	application, err := app.New(ctx, conf, secrets, logger)
	if err != nil {
		logger.Fatal("failed to initialize", zap.String("op", "main"), zap.Error(err))
	}

	// Load settings up front so a broken stored configuration shows at startup.
	if _, err := application.Settings.Snapshot(ctx); err != nil {
		logger.Error("settings not loaded; simulations stay blocked until a reload succeeds",
			zap.String("op", "main"),
			zap.Error(err),
		)
	}

	handler := server.NewHandler(server.Dependencies{
		Logger:     logger,
		Settings:   application.Settings,
		Repository: application.Repository,
		Calculator: application.Calculator,
		Renderer:   application.Renderer,
		Sender:     application.Sender,
		Location:   application.Location,
	}, serverConf.BodySizeBytes(), version)

	httpServer := &http.Server{
		Addr:              serverConf.Address,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		logger.Info("starting credit simulator server",
			zap.String("op", "main"),
			zap.String("address", serverConf.Address),
			zap.String("version", version),
		)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), serverConf.ShutdownTimeoutDuration())
		defer cancel()
		logger.Info("shutting down", zap.String("op", "main"))
		return httpServer.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil {
		logger.Error("server stopped with error", zap.String("op", "main"), zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), serverConf.ShutdownTimeoutDuration())
	defer cancel()
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Warn("failed to flush traces", zap.String("op", "main"), zap.Error(err))
	}
	if err := application.Close(); err != nil {
		logger.Warn("failed to release resources", zap.String("op", "main"), zap.Error(err))
	}
}
