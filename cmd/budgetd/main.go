package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/innovacioninteligente/dochevi-construc-sub000/internal/async"
	"github.com/innovacioninteligente/dochevi-construc-sub000/internal/common"
	"github.com/innovacioninteligente/dochevi-construc-sub000/internal/entity"
	"github.com/innovacioninteligente/dochevi-construc-sub000/internal/export"
	"github.com/innovacioninteligente/dochevi-construc-sub000/internal/ingest"
	"github.com/innovacioninteligente/dochevi-construc-sub000/internal/pipeline"
	"github.com/innovacioninteligente/dochevi-construc-sub000/internal/progress"
	repo "github.com/innovacioninteligente/dochevi-construc-sub000/internal/repository"
	svc "github.com/innovacioninteligente/dochevi-construc-sub000/internal/server"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg := common.LoadConfig()
	if err := cfg.ValidateServer(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := repo.Open(ctx, repo.ConfigFrom(cfg.Database), logger)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Ping DB to ensure connectivity
	if err := db.HealthCheck(ctx, 5*time.Second); err != nil {
		logger.Error("failed to ping database", "error", err)
		os.Exit(1)
	}
	if err := db.Migrate(ctx); err != nil {
		logger.Error("failed to migrate database", "error", err)
		os.Exit(1)
	}
	budgets := repo.NewBudgetRepository(db, logger)

	var sink progress.Sink = progress.Nop{}
	if cfg.Progress.NATSURL != "" {
		ns, err := progress.Connect(cfg.Progress.NATSURL, cfg.Progress.SubjectPrefix, logger)
		if err != nil {
			logger.Error("failed to connect to nats", "url", cfg.Progress.NATSURL, "error", err)
			os.Exit(1)
		}
		defer ns.Close()
		sink = ns
	}

	comps, err := pipeline.Build(ctx, cfg, sink, pipeline.NewMetrics(), logger)
	if err != nil {
		logger.Error("failed to build pipeline", "error", err)
		os.Exit(1)
	}

	exporter := export.NewService(budgets, logger)
	queue := async.NewProcessorQueue(comps.Processor, budgets, logger,
		async.WithWorkers(cfg.Ingest.Workers),
		async.WithQueueSize(cfg.Ingest.QueueSize),
		async.WithProcessTimeout(cfg.Ingest.ProcessTimeout),
		async.WithCompletion(func(_ context.Context, job async.Job, res entity.BudgetResult, err error) {
			if err != nil || cfg.Ingest.ExportDir == "" {
				return
			}
			if _, werr := exporter.WriteFile(cfg.Ingest.ExportDir, job.SourceName, job.ID, res); werr != nil {
				logger.Error("failed to write export", "job_id", job.ID, "error", werr)
			}
		}),
	)

	if cfg.Ingest.InboxDir != "" {
		ing := ingest.NewIngestor(queue, "inbox", logger)
		go func() {
			err := ing.Watch(ctx, ingest.WatchConfig{
				Roots:       []string{cfg.Ingest.InboxDir},
				InitialScan: true,
				Debounce:    cfg.Ingest.Debounce,
				SkipHidden:  true,
			})
			if err != nil {
				logger.Error("inbox watcher stopped", "dir", cfg.Ingest.InboxDir, "error", err)
			}
		}()
	}

	metricsSrv := &http.Server{
		Addr:              cfg.Server.MetricsAddr,
		Handler:           metricsMux(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("metrics listening", "addr", cfg.Server.MetricsAddr)
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics serve error", "error", err)
		}
	}()

	lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
	if err != nil {
		logger.Error("failed to listen on address", "addr", cfg.Server.GRPCAddr, "error", err)
		os.Exit(1)
	}
	budgetServer := svc.NewBudgetServer(comps.Processor, queue, budgets, exporter, logger)
	grpcServer, health := svc.NewGRPCServer(budgetServer, logger)

	logger.Info("budgetd listening", "addr", cfg.Server.GRPCAddr, "catalog_entries", comps.Index.Count())
	go func() {
		if err := grpcServer.Serve(lis); err != nil {
			logger.Error("gRPC serve error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	health.Shutdown()
	grpcServer.GracefulStop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Ingest.ProcessTimeout)
	defer cancel()
	queue.Shutdown(shutdownCtx)
	_ = metricsSrv.Shutdown(shutdownCtx)
}

func metricsMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}
