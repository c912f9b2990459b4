package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"TrendPull/internal/domain/models"
	"TrendPull/internal/service/history"
	"TrendPull/internal/usecase"
	pkgch "TrendPull/pkg/clickhouse"
	"TrendPull/pkg/config"
	xhttp "TrendPull/pkg/http"
	pkgkafka "TrendPull/pkg/kafka"
	applogger "TrendPull/pkg/logger"
	"TrendPull/pkg/queue"
)

// App encapsulates the entire application lifecycle.
type App struct {
	cfg         *config.Config
	logger      *applogger.Logger
	collector   *usecase.BarCollector
	consumer    *pkgkafka.Consumer
	kh          pkgkafka.MessageHandler
	chClient    *pkgch.Client
	runner      *usecase.RegimeRunner
	httpServer  *xhttp.Server
	httpHandler xhttp.Handler
	backfill    *queue.RedisQueue
}

// New creates a new App instance with all dependencies.
func New(
	cfg *config.Config,
	l *applogger.Logger,
	collector *usecase.BarCollector,
	consumer *pkgkafka.Consumer,
	kh pkgkafka.MessageHandler,
	chClient *pkgch.Client,
	runner *usecase.RegimeRunner,
	httpHandler xhttp.Handler,
	backfill *queue.RedisQueue,
) *App {
	return &App{
		cfg:         cfg,
		logger:      l,
		collector:   collector,
		consumer:    consumer,
		kh:          kh,
		chClient:    chClient,
		runner:      runner,
		httpHandler: httpHandler,
		backfill:    backfill,
	}
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	l := a.logger

	a.httpServer = xhttp.NewServer(a.httpHandler,
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
	)

	// Seed evaluation windows before the live feed takes over.
	if a.backfill != nil {
		if err := a.backfill.Start(); err != nil {
			l.Error("backfill queue start error", applogger.Error(err))
		} else if err := a.enqueueBackfills(ctx); err != nil {
			l.Warn("backfill enqueue error", applogger.Error(err))
		}
	}

	// Start collector
	go func() {
		if err := a.collector.Start(ctx); err != nil {
			l.Error("collector error", applogger.Error(err))
		}
	}()
	l.Info("collector started", applogger.Int("instruments", len(a.cfg.Instruments)))

	// Start regime snapshot loop
	if a.runner != nil {
		a.runner.Start(ctx)
		l.Info("regime runner started")
	}

	// Start consumer if configured
	if a.consumer != nil && a.kh != nil {
		a.consumer.RegisterHandler(a.kh)
		go func() {
			if err := a.consumer.Start(); err != nil {
				l.Error("kafka consumer error", applogger.Error(err))
			}
		}()
		l.Info("kafka consumer started", applogger.String("topic", a.kh.Topic()))
	}

	// Start HTTP server
	if err := a.httpServer.Start(); err != nil {
		l.Error("http server start error", applogger.Error(err))
		return err
	}

	// Wait for interrupt
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	l.Info("shutdown signal received")
	return a.shutdown(ctx)
}

// enqueueBackfills requests history for every tracked series, driver
// composites included.
func (a *App) enqueueBackfills(ctx context.Context) error {
	symbols := make([]string, 0, len(a.cfg.Instruments))
	seen := make(map[string]bool)
	add := func(s string) {
		if s != "" && !seen[s] {
			seen[s] = true
			symbols = append(symbols, s)
		}
	}
	for _, inst := range a.cfg.Instruments {
		add(inst.Symbol)
	}
	for _, s := range a.cfg.Regime.Symbols {
		add(s)
	}
	for _, s := range a.cfg.Regime.Buckets {
		add(s)
	}
	bars := a.cfg.Engine.WindowBars
	if bars < models.MinHistoryBars+models.SlopeLookback {
		bars = models.MinHistoryBars + models.SlopeLookback
	}
	return history.EnqueueAll(ctx, a.backfill, symbols, a.cfg.Feed.Timeframes, bars)
}

// shutdown gracefully stops all services.
func (a *App) shutdown(ctx context.Context) error {
	l := a.logger
	l.Info("shutting down...")

	// Stop regime loop first so no snapshot rebuild races with teardown.
	if a.runner != nil {
		a.runner.Stop()
	}

	// Stop collector (pipeline + stream)
	if err := a.collector.Shutdown(ctx); err != nil {
		l.Warn("collector stop error", applogger.Error(err))
	}

	// Shutdown HTTP server
	shutdownCtx, cancel := context.WithTimeout(ctx, a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := a.httpServer.Stop(shutdownCtx); err != nil {
		l.Error("http shutdown error", applogger.Error(err))
	}

	// Stop consumer
	if a.consumer != nil {
		if err := a.consumer.Stop(ctx); err != nil {
			l.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}

	// Stop backfill workers
	if a.backfill != nil {
		if err := a.backfill.Stop(shutdownCtx); err != nil {
			l.Warn("backfill queue stop error", applogger.Error(err))
		}
	}

	// Close bar processor resources (publisher/storage)
	if p := a.collector.Processor(); p != nil {
		p.Close()
	}

	// Close infrastructure clients
	if a.chClient != nil {
		if err := a.chClient.Close(); err != nil {
			l.Warn("clickhouse close error", applogger.Error(err))
		}
	}

	l.Info("shutdown complete")
	return nil
}
