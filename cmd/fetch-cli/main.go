package main

import (
	"context"
	"flag"
	"fmt"
	"io"
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
	"videograb/internal/adapters/ytdlp"
	"videograb/internal/config"
	"videograb/internal/service"
)

func main() {
	url := flag.String("url", "", "YouTube video URL")
	format := flag.String("format", "", "format id to download; 0 for audio only; empty lists formats and exits")
	dir := flag.String("dir", "", "destination directory (default: DOWNLOAD_DIR, /tmp or ~/Downloads)")
	verbose := flag.Bool("v", false, "log every command and output line")
	flag.Parse()

	if *url == "" {
		fmt.Println("Usage: fetch-cli -url <video-url> [-format <id>|0] [-dir <path>] [-v]")
		fmt.Println("\nExample:")
		fmt.Println("  fetch-cli -url https://www.youtube.com/watch?v=dQw4w9WgXcQ")
		fmt.Println("  fetch-cli -url https://youtu.be/dQw4w9WgXcQ -format 0")
		os.Exit(1)
	}

	stdout := colorable.NewColorableStdout()
	var logOut io.Writer = io.Discard
	if *verbose {
		logOut = stdout
	}
	logger := log.New(logOut, "", log.LstdFlags)

	cfg := config.Load(logger)
	destination := *dir
	if destination == "" {
		destination = cfg.DownloadDir
	}
	destination, err := localstorage.ResolveDownloadDir(destination)
	if err != nil {
		fmt.Fprintf(stdout, "Failed to prepare %s: %v\n", destination, err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Fprintln(stdout, "\nReceived interrupt signal, cancelling...")
		cancel()
	}()

	runner := execrunner.New(logger)
	ffmpegPath := ffmpeg.Resolve(ctx, runner, cfg.FFmpegPath, ffmpeg.WellKnownPaths)
	extractor := ytdlp.NewYtDlpDownloader(runner, ytdlp.Config{
		Command:         cfg.YtDlpCommand,
		UserAgent:       cfg.YtDlpUserAgent,
		Profiles:        cfg.YtDlpProfiles,
		FFmpegLocation:  ffmpegPath,
		AudioFormat:     cfg.AudioFormat,
		MetadataTimeout: cfg.MetadataTimeout,
	}, logger)
	estimator, err := service.NewEstimator(cfg.ProgressStrategy)
	if err != nil {
		fmt.Fprintln(stdout, err)
		os.Exit(1)
	}
	tracker := service.NewTracker(memstore.New(1), logger)
	orchestrator := service.NewOrchestrator(
		extractor,
		ffmpeg.NewMerger(runner, ffmpegPath, cfg.MergeTimeout, logger),
		localstorage.NewLocalStorage(),
		tracker,
		service.Options{AudioExt: extractor.AudioExt(), FallbackTitle: cfg.FallbackTitle, Estimator: estimator},
		logger,
	)

	md, err := orchestrator.VideoInfo(ctx, *url)
	if err != nil {
		fmt.Fprintf(stdout, "Metadata query failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Fprintln(stdout, "\n=== Video ===")
	fmt.Fprintf(stdout, "Title:    %s\n", md.Title)
	fmt.Fprintf(stdout, "Uploader: %s\n", md.Uploader)
	fmt.Fprintf(stdout, "Duration: %s\n", time.Duration(md.Duration*float64(time.Second)).Round(time.Second))
	fmt.Fprintf(stdout, "Views:    %d\n", md.ViewCount)
	fmt.Fprintln(stdout, "\n=== Formats ===")
	for _, q := range md.Qualities {
		fmt.Fprintf(stdout, "  %-8s %-22s %8.1f MB  combined=%t\n", q.FormatID, q.Display, q.SizeMB, q.IsCombined)
	}
	fmt.Fprintf(stdout, "FFmpeg:   %t\n", ffmpegPath != "")

	if *format == "" {
		return
	}

	jobID := service.NewJobID()
	if err := tracker.Create(ctx, jobID, *url, *format); err != nil {
		fmt.Fprintln(stdout, err)
		os.Exit(1)
	}

	done := make(chan error, 1)
	go func() { done <- orchestrator.Download(ctx, *url, *format, destination, jobID) }()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case err := <-done:
			progress, rec := tracker.Get(ctx, jobID)
			fmt.Fprintln(stdout, "\n=== Job Summary ===")
			fmt.Fprintf(stdout, "Job ID:   %s\n", jobID)
			fmt.Fprintf(stdout, "Status:   %s (%d%%)\n", rec.Status, progress)
			if err != nil {
				fmt.Fprintf(stdout, "Error:    %s\n", rec.Error)
				os.Exit(1)
			}
			fmt.Fprintf(stdout, "File:     %s\n", rec.FilePath)
			return
		case <-ticker.C:
			progress, _ := tracker.Get(ctx, jobID)
			fmt.Fprintf(stdout, "\rProgress: %3d%%", progress)
		}
	}
}
