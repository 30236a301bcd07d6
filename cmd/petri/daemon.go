package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/loykin/petri/internal/config"
	"github.com/loykin/petri/internal/control"
	"github.com/loykin/petri/internal/history"
	"github.com/loykin/petri/internal/history/factory"
	"github.com/loykin/petri/internal/jobreg"
	"github.com/loykin/petri/internal/logfile"
	"github.com/loykin/petri/internal/metrics"
	"github.com/loykin/petri/internal/metricsserver"
	"github.com/loykin/petri/internal/procmgr"
	"github.com/prometheus/client_golang/prometheus"
)

// runServer constructs every daemon component from cfg and runs until ctx is
// cancelled or the control server receives a stop-server request.
func runServer(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	var hist history.Sink
	if cfg.History.DSN != "" {
		s, err := factory.NewSinkFromDSN(cfg.History.DSN)
		if err != nil {
			return fmt.Errorf("build history sink: %w", err)
		}
		hist = s
	}

	logSinks := logfile.Config{
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
		Compress:   cfg.Log.Compress,
	}.Factory()

	procs := procmgr.New(cfg.Ring.CapacityBytes, logSinks, log)
	jobs := jobreg.New(procs)

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		log.Warn("metrics registration failed", "error", err)
	}

	srv, err := control.NewServer(cfg.Socket.Path, procs, jobs, hist, log)
	if err != nil {
		return fmt.Errorf("bind control socket %s: %w", cfg.Socket.Path, err)
	}

	var metricsSrv *metricsserver.Server
	if cfg.Metrics.Enabled {
		metricsSrv = metricsserver.New(cfg.Metrics.Listen)
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("metrics server stopped", "error", err)
			}
		}()
	}

	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.Serve(sigCtx) }()

	select {
	case <-sigCtx.Done():
		srv.RequestShutdown()
		<-serveErr
	case err := <-serveErr:
		if err != nil {
			log.Error("control server stopped", "error", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	procs.Shutdown(shutdownCtx)

	if metricsSrv != nil {
		_ = metricsSrv.Shutdown(shutdownCtx)
	}

	return nil
}
