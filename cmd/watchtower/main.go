package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"watchtower/internal/alerts"
	"watchtower/internal/config"
	"watchtower/internal/logstore"
	"watchtower/internal/metrics"
	"watchtower/internal/notifications"
	"watchtower/internal/probe"
	"watchtower/internal/store"
	"watchtower/internal/web"
	"watchtower/internal/worker"
)

func main() {
	configFile := flag.String("config", "config.yaml", "Configuration file path")
	version := flag.Bool("version", false, "Show version information")
	flag.Parse()

	if *version {
		fmt.Printf("Watchtower Uptime Monitor v1.0.0\n")
		os.Exit(0)
	}

	// Load configuration
	cfg, err := config.Load(*configFile)
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}

	// Setup logging
	setupLogging(cfg.Logging)

	logrus.WithFields(logrus.Fields{
		"config_file":    *configFile,
		"port":           cfg.Server.Port,
		"probe_interval": cfg.Worker.ProbeInterval,
	}).Info("Starting Watchtower")

	// Initialize stores
	recordStore, err := store.NewFileStore(cfg.Store.Dir)
	if err != nil {
		logrus.Fatalf("Failed to initialize record store: %v", err)
	}

	logStore, err := logstore.NewLogStore(cfg.Logs.Dir)
	if err != nil {
		logrus.Fatalf("Failed to initialize log store: %v", err)
	}

	// Initialize metrics
	metricsCollector := metrics.NewCollector()

	// Pick the alert delivery channel
	var sender alerts.Sender
	if cfg.Twilio.Enabled {
		sender = notifications.NewTwilioClient(&cfg.Twilio)
		logrus.Info("Twilio SMS alerting enabled")
	} else {
		sender = notifications.NewLogSender()
		logrus.Warn("Twilio disabled, alerts will be logged only")
	}

	// Initialize the monitoring worker
	w := worker.New(cfg, recordStore, logStore, probe.NewExecutor(), alerts.NewDispatcher(sender), metricsCollector)

	// Initialize web server
	webServer := web.NewServer(cfg, recordStore, w, metricsCollector)

	// Start services
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go w.Start(ctx)
	go webServer.Start(ctx)

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	logrus.WithField("signal", sig).Info("Received shutdown signal")

	// Graceful shutdown
	cancel()
	w.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := webServer.Stop(shutdownCtx); err != nil {
		logrus.WithError(err).Error("Web server shutdown failed")
	}

	logrus.Info("Shutdown complete")
}

func setupLogging(cfg config.LoggingConfig) {
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)

	if cfg.Format == "json" {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}
}
