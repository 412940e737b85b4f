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

	"github.com/iwvelando/credit-simulator/internal/amqp"
	"github.com/iwvelando/credit-simulator/internal/app"
	"github.com/iwvelando/credit-simulator/internal/config"
	"github.com/iwvelando/credit-simulator/internal/logging"
	"github.com/iwvelando/credit-simulator/internal/metrics"
	"github.com/iwvelando/credit-simulator/internal/notify"
	"github.com/iwvelando/credit-simulator/pkg/constants"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

func main() {
	configLocation := flag.String("config", constants.DefaultConfigFile, "path to configuration file")
	envFile := flag.String("env-file", ".env", "optional dotenv file with secrets")
	logLevel := flag.String("log-level", "", "log level override (debug, info, warn, error)")
	metricsAddress := flag.String("metrics-address", ":9091", "listen address for /metrics, empty to disable")
	flag.Parse()

	conf, err := config.LoadConfiguration(*configLocation)
	if err != nil {
		fmt.Printf("{\"op\": \"main\", \"level\": \"fatal\", \"msg\": \"failed to load configuration at %s\", \"error\": \"%v\"}\n", *configLocation, err)
		os.Exit(1)
	}

	logger, err := logging.New(conf.Logging, *logLevel)
	if err != nil {
		fmt.Printf("{\"op\": \"main\", \"level\": \"fatal\", \"msg\": \"failed to initialize logger\", \"error\": \"%v\"}\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync()
	}()

	secrets, err := config.LoadSecrets(*envFile)
	if err != nil {
		logger.Fatal("failed to load secrets", zap.String("op", "main"), zap.Error(err))
	}

	sender, err := app.DirectSender(conf, secrets, logger)
	if err != nil {
		logger.Fatal("failed to create message sender", zap.String("op", "main"), zap.Error(err))
	}

	client, err := amqp.NewClient(secrets.AMQPURL, conf.Messaging.Exchange, conf.Messaging.Queue, logger)
	if err != nil {
		logger.Fatal("failed to connect to the message broker", zap.String("op", "main"), zap.Error(err))
	}
	defer client.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *metricsAddress != "" {
		metricsServer := &http.Server{Addr: *metricsAddress, Handler: promhttp.Handler(), ReadHeaderTimeout: 10 * time.Second}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics listener stopped", zap.String("op", "main"), zap.Error(err))
			}
		}()
		defer metricsServer.Close()
	}

	err = client.ConsumeSendJobs(ctx, countDeliveries(amqp.DeliverTo(sender), channelName(conf)))
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("consumer stopped", zap.String("op", "main"), zap.Error(err))
	}
}

func channelName(conf *config.Configuration) string {
	if conf.Telegram.Enabled {
		return "telegram"
	}
	return "log"
}

// countDeliveries records the outcome of every delivered job.
func countDeliveries(next amqp.Handler, channel string) amqp.Handler {
	return func(ctx context.Context, job *amqp.SendJob) error {
		err := next(ctx, job)
		switch {
		case err == nil:
			metrics.MessagesSent.WithLabelValues(channel, "sent").Inc()
		case errors.Is(err, notify.ErrEmptyMessage):
			metrics.MessagesSent.WithLabelValues(channel, "dropped").Inc()
		default:
			metrics.MessagesSent.WithLabelValues(channel, "failed").Inc()
		}
		return err
	}
}
