package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mattn/go-colorable"

	"videograb/internal/adapters/execrunner"
	"videograb/internal/adapters/ffmpeg"
	"videograb/internal/adapters/localstorage"
	"videograb/internal/adapters/memstore"
	"videograb/internal/adapters/redisstore"
	"videograb/internal/adapters/ytdlp"
	"videograb/internal/api"
	"videograb/internal/config"
	"videograb/internal/core/ports"
	"videograb/internal/service"
)

const shutdownTimeout = 30 * time.Second

func main() {
	colorable.EnableColorsStdout(nil)
	out := colorable.NewColorableStdout()
	logger := log.New(out, "", log.LstdFlags)

	cfg := config.Load(logger)

	downloadDir, err := localstorage.ResolveDownloadDir(cfg.DownloadDir)
	if err != nil {
		logger.Fatalf("Failed to prepare download directory: %v", err)
	}

	ctx := context.Background()
	runner := execrunner.New(logger)

	ffmpegPath := ffmpeg.Resolve(ctx, runner, cfg.FFmpegPath, ffmpeg.WellKnownPaths)
	if ffmpegPath == "" {
		logger.Println("Warning: FFmpeg not found. Audio extraction and merging will fail.")
	} else {
		logger.Printf("FFmpeg found at %s", ffmpegPath)
	}
	merger := ffmpeg.NewMerger(runner, ffmpegPath, cfg.MergeTimeout, logger)

	extractor := ytdlp.NewYtDlpDownloader(runner, ytdlp.Config{
		Command:         cfg.YtDlpCommand,
		UserAgent:       cfg.YtDlpUserAgent,
		Profiles:        cfg.YtDlpProfiles,
		FFmpegLocation:  ffmpegPath,
		AudioFormat:     cfg.AudioFormat,
		MetadataTimeout: cfg.MetadataTimeout,
	}, logger)

	var store ports.JobStore = memstore.New(cfg.MaxTrackedJobs)
	if cfg.RedisAddr != "" {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		rs, err := redisstore.Connect(pingCtx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.JobRetention)
		cancel()
		if err != nil {
			logger.Printf("Redis not available, using in-memory job store: %v", err)
		} else {
			logger.Printf("Job store: redis at %s", cfg.RedisAddr)
			defer rs.Close()
			store = rs
		}
	}
	tracker := service.NewTracker(store, logger)

	estimator, err := service.NewEstimator(cfg.ProgressStrategy)
	if err != nil {
		logger.Fatalf("Invalid progress strategy: %v", err)
	}
	orchestrator := service.NewOrchestrator(extractor, merger, localstorage.NewLocalStorage(), tracker, service.Options{
		AudioExt:      extractor.AudioExt(),
		FallbackTitle: cfg.FallbackTitle,
		Estimator:     estimator,
	}, logger)

	pool := service.NewWorkerPool(cfg.MaxConcurrentJobs, cfg.JobQueueSize, logger)

	janitor, err := service.NewJanitor(tracker, cfg.JanitorSchedule, cfg.JobRetention, logger)
	if err != nil {
		logger.Fatalf("Failed to schedule janitor: %v", err)
	}
	janitor.Start()

	handler := api.NewHandler(api.Deps{
		Inspector:   orchestrator,
		Downloader:  orchestrator,
		Tracker:     tracker,
		Queue:       pool,
		DownloadDir: downloadDir,
		FFmpegOK:    ffmpegPath != "",
		Logger:      logger,
	})
	app := api.NewRouter(handler, api.RouterConfig{
		AllowedOrigins: cfg.AllowedOrigins,
		RateLimitRPS:   cfg.RateLimitRPS,
		RateLimitBurst: cfg.RateLimitBurst,
		AccessLog:      out,
	})

	go func() {
		logger.Printf("Server starting on %s (downloads -> %s, %d workers)", cfg.Addr(), downloadDir, cfg.MaxConcurrentJobs)
		if err := app.Listen(cfg.Addr()); err != nil {
			logger.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Println("Shutdown signal received, stopping server...")

	shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Printf("HTTP shutdown: %v", err)
	}
	janitor.Stop()
	if err := pool.Shutdown(shutdownCtx); err != nil {
		logger.Printf("Worker pool: %v", err)
	}
	logger.Println("Server stopped")
}
