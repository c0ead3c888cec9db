package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/jitaccess/pkg/app"
	"github.com/platinummonkey/jitaccess/pkg/config"
	"github.com/platinummonkey/jitaccess/pkg/observability"
	"github.com/platinummonkey/jitaccess/pkg/provisioning"
)

var (
	schedule = flag.String("schedule", "", "Cron schedule for reconcile runs (defaults to JIT_RECONCILE_SCHEDULE)")
	runOnce  = flag.Bool("run-once", false, "Run a single reconcile pass and exit")
	timeout  = flag.Duration("timeout", 10*time.Minute, "Upper bound for a single reconcile pass")
)

func main() {
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}
	if *schedule != "" {
		cfg.Reconciler.Schedule = *schedule
	}

	logger := setupLogger(cfg.Observability.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, observability.NewLogger(cfg.Observability.LogLevel, os.Stdout).
		WithField("service", "jitaccess-reconciler"))
	if err != nil {
		logger.Fatalf("Failed to initialize: %v", err)
	}
	defer a.Close()

	reconciler := a.Reconciler()

	if *runOnce {
		summary, err := runReconcile(ctx, reconciler, logger)
		if err != nil {
			logger.Fatalf("Reconcile failed: %v", err)
		}
		if summary.Failed > 0 {
			os.Exit(2)
		}
		return
	}

	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	_, err = c.AddFunc(cfg.Reconciler.Schedule, func() {
		defer observability.RecoverPanic(a.Logger, "reconcile job")
		if _, err := runReconcile(ctx, reconciler, logger); err != nil {
			logger.WithError(err).Error("Reconcile failed")
		}
	})
	if err != nil {
		logger.Fatalf("Failed to schedule reconcile: %v", err)
	}

	c.Start()
	logger.WithFields(logrus.Fields{
		"schedule": cfg.Reconciler.Schedule,
		"workers":  cfg.Reconciler.Workers,
	}).Info("Reconciler started")

	<-ctx.Done()
	logger.Info("Shutting down gracefully...")

	stopped := c.Stop()
	<-stopped.Done()
	logger.Info("Reconciler stopped")
}

func runReconcile(ctx context.Context, reconciler *provisioning.Reconciler, logger *logrus.Logger) (provisioning.ReconcileSummary, error) {
	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	start := time.Now()
	logger.Info("Starting reconcile run")

	summary, err := reconciler.Run(ctx)
	if err != nil {
		return summary, err
	}

	entry := logger.WithFields(logrus.Fields{
		"checked":  summary.Checked,
		"in_sync":  summary.InSync,
		"repaired": summary.Repaired,
		"missing":  summary.Missing,
		"failed":   summary.Failed,
		"duration": time.Since(start).String(),
	})
	if summary.Missing > 0 || summary.Failed > 0 {
		entry.Warn("Reconcile run finished with unresolved permissions")
	} else {
		entry.Info("Reconcile run finished")
	}
	return summary, nil
}

func setupLogger(level observability.LogLevel) *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)

	switch level {
	case observability.DebugLevel:
		logger.SetLevel(logrus.DebugLevel)
	case observability.WarnLevel:
		logger.SetLevel(logrus.WarnLevel)
	case observability.ErrorLevel:
		logger.SetLevel(logrus.ErrorLevel)
	default:
		logger.SetLevel(logrus.InfoLevel)
	}
	return logger
}
