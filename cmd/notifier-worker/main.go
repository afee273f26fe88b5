package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Naveenkumar-R96/excel-result-1/internal/archive"
	"github.com/Naveenkumar-R96/excel-result-1/internal/config"
	"github.com/Naveenkumar-R96/excel-result-1/internal/db"
	"github.com/Naveenkumar-R96/excel-result-1/internal/fetcher"
	"github.com/Naveenkumar-R96/excel-result-1/internal/logger"
	"github.com/Naveenkumar-R96/excel-result-1/internal/notify"
	"github.com/Naveenkumar-R96/excel-result-1/internal/portal"
	"github.com/Naveenkumar-R96/excel-result-1/internal/queue"
	"github.com/Naveenkumar-R96/excel-result-1/internal/scheduler"
	"github.com/Naveenkumar-R96/excel-result-1/internal/store"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	// Initialize logger
	logger.Init(cfg.Logging.Level, cfg.Logging.Format)
	log := logger.Get()

	log.Info().Str("version", cfg.App.Version).Msg("Starting notifier worker")

	// Initialize roster database
	database, err := db.NewConnection(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer database.Close()

	repo := db.NewRepository(database)

	// Initialize snapshot store
	mongoClient, err := store.NewConnection(context.Background(), cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to MongoDB")
	}
	defer mongoClient.Disconnect(context.Background())

	snapshots := store.NewStore(mongoClient, cfg)

	// Initialize Redis-backed detection queue
	redisClient, err := queue.NewRedisClient(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer redisClient.Close()

	detections := queue.NewDetectionQueue(redisClient, cfg)

	// Raw payload archive; optional, the pipeline runs without it.
	var archiver scheduler.Archiver
	if cfg.Storage.S3.Bucket != "" {
		s3Archiver, err := archive.NewS3Archiver(cfg)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize S3 archiver")
		}
		archiver = s3Archiver
	} else {
		log.Warn().Msg("No S3 bucket configured, raw payload archiving disabled")
	}

	// Pipeline components
	portalClient := portal.NewClient(cfg)
	scan := fetcher.NewFetcher(cfg, portalClient, detections)
	dispatcher := notify.NewDispatcher(
		notify.NewTelegramChannel(cfg),
		notify.NewEmailChannel(cfg),
	)

	sched := scheduler.New(cfg, repo, scan, detections, dispatcher, snapshots, archiver)

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := sched.Start(ctx); err != nil && err != context.Canceled {
			log.Fatal().Err(err).Msg("Scheduler failed")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down notifier worker...")
	cancel()

	metrics := sched.Metrics()
	log.Info().
		Int64("runs", metrics.RunCount).
		Int64("skipped_ticks", metrics.SkippedTicks).
		Int64("total_checked", metrics.TotalChecked).
		Int64("total_notified", metrics.TotalNotified).
		Int64("total_errors", metrics.TotalErrors).
		Msg("Notifier worker exited")
}
