package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gitrdm/gokanplan/internal/config"
	"github.com/gitrdm/gokanplan/internal/httpapi"
	"github.com/gitrdm/gokanplan/internal/natsrpc"
	"github.com/gitrdm/gokanplan/pkg/schedule"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the scheduler over HTTP and, if enabled, NATS",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

var (
	serveAddr string
	serveNATS bool
)

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default http.addr)")
	serveCmd.Flags().BoolVar(&serveNATS, "nats", false, "also answer NATS requests (overrides nats.enabled)")
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, loader, err := loadConfig()
	if err != nil {
		return err
	}
	if serveAddr != "" {
		cfg.HTTP.Addr = serveAddr
	}
	if cmd.Flags().Changed("nats") {
		cfg.NATS.Enabled = serveNATS
	}

	logger, err := buildLogger(cfg)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	logger.Info("starting gokanplan",
		zap.String("version", schedule.Version),
		zap.String("config", loader.Path()),
		zap.Duration("time_budget", cfg.Solver.TimeBudget),
		zap.Int("workers", cfg.Solver.Workers),
	)

	var current atomic.Pointer[schedule.Scheduler]
	current.Store(newScheduler(cfg, logger.Logger))

	loader.Watch(func(next *config.Config, err error) {
		if err != nil {
			logger.Warn("config reload rejected, keeping the previous one", zap.Error(err))
			return
		}
		if logLevel == "" {
			if err := logger.SetLevel(next.Logger.Level); err != nil {
				logger.Warn("log level not changed", zap.Error(err))
			}
		}
		current.Store(newScheduler(next, logger.Logger))
		logger.Info("config reloaded",
			zap.Duration("time_budget", next.Solver.TimeBudget),
			zap.Int("workers", next.Solver.Workers),
			zap.Bool("verify", next.Solver.Verify),
		)
	})

	routerOpts := []httpapi.Option{
		httpapi.WithLogger(logger.Named("http")),
		httpapi.WithRequestTimeout(cfg.HTTP.RequestTimeout),
	}

	var (
		nc        *nats.Conn
		responder *natsrpc.Responder
	)
	stopNATS := func() {
		if responder != nil {
			responder.Stop()
		}
		if nc != nil {
			if err := nc.Drain(); err != nil {
				logger.Warn("NATS drain failed", zap.Error(err))
			}
		}
	}
	if cfg.NATS.Enabled {
		nc, err = natsrpc.Connect(cfg.NATS.URL, logger.Named("nats"))
		if err != nil {
			return err
		}
		defer nc.Close()

		responder = natsrpc.NewResponder(nc, &current, cfg.NATS.SubjectPrefix,
			natsrpc.WithQueueGroup(cfg.NATS.QueueGroup),
			natsrpc.WithConcurrency(cfg.Solver.Workers),
			natsrpc.WithResponderLogger(logger.Named("nats")),
		)
		if err := responder.Start(); err != nil {
			return err
		}
		routerOpts = append(routerOpts, httpapi.WithHealthCheck("nats", natsrpc.HealthCheck(nc)))
	}

	srv := httpapi.NewServer(cfg.HTTP.Addr, httpapi.NewRouter(&current, routerOpts...), logger.Logger)
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-errCh:
		stopNATS()
		return err
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := srv.Stop(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		stopNATS()
		return err
	}
	stopNATS()
	logger.Info("gokanplan stopped")
	return nil
}
