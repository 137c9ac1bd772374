package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	exdb "github.com/hakimelghazi/ledger-dex/db"
	"github.com/hakimelghazi/ledger-dex/internal/config"
	"github.com/hakimelghazi/ledger-dex/internal/journal"
	"github.com/hakimelghazi/ledger-dex/internal/logger"
	"github.com/hakimelghazi/ledger-dex/internal/metrics"
	"github.com/hakimelghazi/ledger-dex/internal/sched"
	"github.com/hakimelghazi/ledger-dex/internal/venue"
)

func main() {
	configPath := flag.String("config", os.Getenv("CONFIG_PATH"), "path to a YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		zap.NewExample().Fatal("load config", zap.Error(err))
	}
	log := logger.New(cfg.LogLevel)
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal("server exited", zap.Error(err))
	}
	log.Info("server stopped")
}

func run(ctx context.Context, cfg config.Config, log *zap.Logger) error {
	// 1) metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	// 2) optional match journal
	var writer *journal.Writer
	if cfg.DatabaseURL != "" {
		pool, err := exdb.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer pool.Close()
		if err := exdb.EnsureSchema(ctx, pool); err != nil {
			return err
		}
		writer = journal.NewWriter(journal.NewPostgres(pool), cfg.JournalBuffer, log.Named("journal"), m)
		log.Info("match journal enabled")
	}

	// 3) venue and scheduler
	v := venue.New(cfg, venue.Deps{Log: log, Metrics: m, Journal: writer})
	loop := sched.NewLoop(log.Named("sched"))
	v.Register(loop)
	v.Start()
	defer v.Stop()

	// 4) http
	srv := newServer(v, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), log.Named("http"))
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           srv.routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return loop.Run(ctx) })
	g.Go(func() error {
		v.Outbox.Run(ctx, srv.deliverConfirmation)
		return nil
	})
	if writer != nil {
		g.Go(func() error { return writer.Run(ctx) })
	}
	g.Go(func() error {
		log.Info("listening", zap.String("addr", cfg.HTTPAddr), zap.Strings("pairs", cfg.PairNames()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
