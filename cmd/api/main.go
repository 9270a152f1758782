package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/afero"

	"github.com/haoyun/filedrop/internal/activity"
	"github.com/haoyun/filedrop/internal/auth"
	"github.com/haoyun/filedrop/internal/config"
	"github.com/haoyun/filedrop/internal/logging"
	"github.com/haoyun/filedrop/internal/metrics"
	"github.com/haoyun/filedrop/internal/retention"
	"github.com/haoyun/filedrop/internal/server"
	"github.com/haoyun/filedrop/internal/storage"
	"github.com/haoyun/filedrop/internal/store"
	"github.com/haoyun/filedrop/internal/transfer"
)

func main() {
	_ = godotenv.Load()

	logger := logging.New()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", "error", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	clock := store.RealClock{}
	appFs := afero.NewOsFs()

	activityLog := activity.NewLog(
		appFs,
		cfg.Activity.JournalPath,
		cfg.Activity.FlushInterval,
		cfg.Activity.DedupWindow,
		clock,
		logger,
	)

	onDeleted := func(count int) {
		metrics.SweepDeletedBucketsTotal.Add(float64(count))
	}

	var (
		transferService *transfer.Service
		sweeper         *retention.Sweeper
		readiness       func(ctx context.Context) error
	)

	switch cfg.Store.Backend {
	case "minio":
		client, err := storage.NewMinIOClient(cfg.MinIO)
		if err != nil {
			logger.Fatal("connect minio", "error", err)
		}
		if err := storage.EnsureBucket(ctx, client, cfg.MinIO.Bucket, cfg.MinIO.Region); err != nil {
			logger.Fatal("ensure bucket", "error", err)
		}

		blobStore := store.NewBlob(store.NewObjectClient(client), cfg.MinIO.Bucket, clock, logger)
		transferService = transfer.NewService(blobStore, activityLog, clock, logger)
		sweeper = retention.NewSweeper(blobStore, cfg.Store.RetentionDays, cfg.Store.SweepInterval, clock, logger, onDeleted)
		readiness = func(ctx context.Context) error {
			_, err := client.ListBuckets(ctx)
			return err
		}
	default:
		datedStore := store.NewDated(appFs, cfg.Store.Root, clock, logger)
		transferService = transfer.NewService(datedStore, activityLog, clock, logger)
		sweeper = retention.NewSweeper(datedStore, cfg.Store.RetentionDays, cfg.Store.SweepInterval, clock, logger, onDeleted)
		readiness = func(ctx context.Context) error {
			_, err := datedStore.Buckets(ctx)
			return err
		}
	}

	authService, err := auth.NewService(cfg.Auth, logger)
	if err != nil {
		logger.Fatal("init auth", "error", err)
	}

	router := server.NewRouter(server.Dependencies{
		Config:          cfg,
		Logger:          logger,
		AuthService:     authService,
		TransferService: transferService,
		ActivityLog:     activityLog,
		Readiness:       readiness,
	})

	port, err := server.FindAvailablePort(cfg.Server.Host, cfg.Server.Port, cfg.Server.MaxPortAttempts)
	if err != nil {
		logger.Fatal("find listen port", "error", err)
	}
	if port != cfg.Server.Port {
		logger.Warn("preferred port in use", "preferred", cfg.Server.Port, "using", port)
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go sweeper.Run(ctx)
	go activityLog.Run(ctx)

	go func() {
		logger.Info("filedrop listening", "address", httpServer.Addr, "backend", cfg.Store.Backend)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("http server", "error", err)
		}
	}()

	<-ctx.Done()
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger.Info("shutting down gracefully")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}

	// The last flush interval's events live only in memory until this returns.
	activityLog.Shutdown()
}
