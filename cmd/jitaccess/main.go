package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/platinummonkey/jitaccess/pkg/api"
	"github.com/platinummonkey/jitaccess/pkg/app"
	"github.com/platinummonkey/jitaccess/pkg/config"
	"github.com/platinummonkey/jitaccess/pkg/observability"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	showVersion := flag.Bool("version", false, "Print the version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version)
		return
	}

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "jitaccess: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout).
		WithField("service", "jitaccess")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	providers, err := observability.InitOTel(ctx, observability.OTelConfig{
		Enabled:        cfg.Observability.OTelEnabled,
		Endpoint:       cfg.Observability.OTelEndpoint,
		ServiceName:    cfg.Observability.OTelServiceName,
		ServiceVersion: version,
		Insecure:       cfg.Observability.OTelInsecure,
		SampleRatio:    cfg.Observability.OTelSampleRatio,
	}, logger)
	if err != nil {
		return err
	}

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		_ = observability.ShutdownOTel(context.Background(), providers, logger)
		return err
	}

	apiServer := &http.Server{
		Addr: net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler: api.NewServer(a.Provisioner, a.Flow, api.Options{
			Logger:       logger,
			Metrics:      a.Metrics,
			MaxBodyBytes: cfg.Server.MaxBodyBytes,
			RateLimiter:  a.RateLimiter,
		}),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	healthMux := http.NewServeMux()
	observability.RegisterHealthRoutes(healthMux, a.HealthChecker(version))
	if a.Registry != nil {
		observability.RegisterMetricsEndpoint(healthMux, a.Registry)
	}
	healthServer := &http.Server{
		Addr:        net.JoinHostPort(cfg.Server.Host, cfg.Server.HealthPort),
		Handler:     healthMux,
		ReadTimeout: cfg.Server.ReadTimeout,
	}

	shutdown := observability.NewShutdownManager(logger, cfg.Server.ShutdownTimeout, apiServer, healthServer)
	shutdown.RegisterShutdownFunc(func(ctx context.Context) error {
		return observability.ShutdownOTel(ctx, providers, logger)
	})
	shutdown.RegisterShutdownFunc(func(context.Context) error {
		return a.Close()
	})

	serverErr := make(chan error, 2)
	for _, server := range []*http.Server{apiServer, healthServer} {
		go func(server *http.Server) {
			logger.WithField("addr", server.Addr).Info("Listening")
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				serverErr <- fmt.Errorf("server %s: %w", server.Addr, err)
			}
		}(server)
	}

	select {
	case err := <-serverErr:
		logger.WithError(err).Error("Server failed")
		_ = shutdown.Shutdown(context.Background())
		return err
	case <-ctx.Done():
	}
	return shutdown.WaitForShutdown(ctx)
}
