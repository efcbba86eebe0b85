package service

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"videograb/internal/adapters/localstorage"
	"videograb/internal/core/domain"
	"videograb/internal/core/ports"
)

const (
	jobIDPrefix          = "download_"
	DefaultFallbackTitle = "youtube_video"
	DefaultAudioExt      = ".mp3"
	mergedExt            = ".mp4"
	videoSuffix          = "_video"
	audioSuffix          = "_audio"
)

// Options tunes the orchestrator. Zero values get defaults.
type Options struct {
	AudioExt      string // extension of transcoded audio, with leading dot
	FallbackTitle string
	Estimator     ProgressEstimator
}

// Orchestrator coordinates metadata queries, downloads and merging for
// download jobs and records their progress in the tracker.
type Orchestrator struct {
	extractor ports.Extractor
	merger    ports.Merger
	storage   ports.Storage
	tracker   *Tracker
	opts      Options
	logger    *log.Logger
}

// NewOrchestrator creates a new Orchestrator.
func NewOrchestrator(
	extractor ports.Extractor,
	merger ports.Merger,
	storage ports.Storage,
	tracker *Tracker,
	opts Options,
	logger *log.Logger,
) *Orchestrator {
	if opts.AudioExt == "" {
		opts.AudioExt = DefaultAudioExt
	}
	if opts.FallbackTitle == "" {
		opts.FallbackTitle = DefaultFallbackTitle
	}
	if opts.Estimator == nil {
		opts.Estimator = LineStep{}
	}
	return &Orchestrator{
		extractor: extractor,
		merger:    merger,
		storage:   storage,
		tracker:   tracker,
		opts:      opts,
		logger:    logger,
	}
}

// NewJobID returns a time-ordered unique id for a download request.
func NewJobID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return jobIDPrefix + strconv.FormatInt(time.Now().UnixNano(), 10)
	}
	return jobIDPrefix + id.String()
}

// VideoInfo queries metadata for url and returns the normalized view.
func (o *Orchestrator) VideoInfo(ctx context.Context, url string) (*domain.VideoMetadata, error) {
	url, err := domain.ValidateURL(url)
	if err != nil {
		return nil, err
	}
	info, err := o.extractor.FetchInfo(ctx, url)
	if err != nil {
		o.logger.Printf("metadata query for %s failed: %v", url, err)
		return nil, err
	}
	return BuildMetadata(info), nil
}

// Download runs one job to a terminal state. The outcome is recorded in the
// tracker; the returned error is the same failure, for synchronous callers.
// The job must already exist in the tracker.
func (o *Orchestrator) Download(ctx context.Context, url, selector, dir, jobID string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = domain.Unexpected(fmt.Errorf("panic: %v", r))
			o.logger.Printf("[JOB %s] PANIC: %v", jobID, r)
			o.tracker.Fail(ctx, jobID, domain.Message(err))
		}
	}()

	o.logger.Printf("[JOB %s] Starting download of %s (format %q) into %s", jobID, url, selector, dir)
	title := o.resolveTitle(ctx, jobID, url)

	if domain.IsAudioSelector(selector) {
		err = o.downloadAudio(ctx, url, dir, jobID, title)
	} else {
		err = o.downloadVideo(ctx, url, strings.TrimSpace(selector), dir, jobID, title)
	}
	if err != nil {
		o.logger.Printf("[JOB %s] ERROR (%s): %s", jobID, domain.KindOf(err), domain.Message(err))
		o.tracker.Fail(ctx, jobID, domain.Message(err))
		return err
	}
	o.logger.Printf("[JOB %s] Job completed successfully", jobID)
	return nil
}

// resolveTitle returns a filename-safe title, or the fallback title when
// every metadata query failed.
func (o *Orchestrator) resolveTitle(ctx context.Context, jobID, url string) string {
	info, err := o.extractor.FetchInfo(ctx, url)
	if err != nil {
		o.logger.Printf("[JOB %s] could not fetch title, using %q: %v", jobID, o.opts.FallbackTitle, err)
		return o.opts.FallbackTitle
	}
	title := localstorage.SanitizeFilename(info.Title, o.opts.FallbackTitle)
	o.logger.Printf("[JOB %s] Title: %s", jobID, title)
	return title
}

func (o *Orchestrator) downloadAudio(ctx context.Context, url, dir, jobID, title string) error {
	o.logger.Printf("[JOB %s] Downloading audio...", jobID)
	res, err := o.extractor.Download(ctx, ports.DownloadRequest{
		URL:        url,
		Dir:        dir,
		OutputBase: title,
		AudioOnly:  true,
	}, o.progressFunc(ctx, jobID, "audio", AudioPhase))
	if err := stepFailure("Audio download failed", res, err); err != nil {
		return err
	}

	path, err := o.storage.NewestWithPrefix(dir, title, o.opts.AudioExt)
	if err != nil {
		return domain.Unexpected(err)
	}
	if path == "" {
		return domain.MissingArtifact("No audio file found")
	}

	o.tracker.Complete(ctx, jobID, path, filepath.Base(path))
	o.logger.Printf("[JOB %s] Saved %s", jobID, path)
	return nil
}

func (o *Orchestrator) downloadVideo(ctx context.Context, url, selector, dir, jobID, title string) error {
	videoBase := title + videoSuffix
	audioBase := title + audioSuffix

	o.tracker.SetProgress(ctx, jobID, VideoPhase.Start)
	o.logger.Printf("[JOB %s] Downloading video stream %s...", jobID, selector)
	res, err := o.extractor.Download(ctx, ports.DownloadRequest{
		URL:        url,
		Selector:   selector,
		Dir:        dir,
		OutputBase: videoBase,
	}, o.progressFunc(ctx, jobID, "video", VideoPhase))
	if err := stepFailure("Video download failed", res, err); err != nil {
		return err
	}

	o.tracker.SetProgress(ctx, jobID, AudioTrackPhase.Start)
	o.logger.Printf("[JOB %s] Downloading audio track...", jobID)
	res, err = o.extractor.Download(ctx, ports.DownloadRequest{
		URL:        url,
		Dir:        dir,
		OutputBase: audioBase,
		AudioOnly:  true,
	}, o.progressFunc(ctx, jobID, "audio", AudioTrackPhase))
	if err := stepFailure("Audio download failed", res, err); err != nil {
		return err
	}

	videoFiles, err := o.artifacts(dir, videoBase)
	if err != nil {
		return domain.Unexpected(err)
	}
	audioFiles, err := o.artifacts(dir, audioBase)
	if err != nil {
		return domain.Unexpected(err)
	}
	if len(videoFiles) == 0 || len(audioFiles) == 0 {
		return domain.MissingArtifact(fmt.Sprintf("Missing files. Video: %v, Audio: %v", videoFiles, audioFiles))
	}

	videoPath := filepath.Join(dir, videoFiles[0])
	audioPath := filepath.Join(dir, audioFiles[0])
	outName := title + mergedExt
	outPath := filepath.Join(dir, outName)

	o.tracker.SetProgress(ctx, jobID, 85)
	o.logger.Printf("[JOB %s] Merging %s + %s -> %s", jobID, videoFiles[0], audioFiles[0], outName)
	if err := o.merger.Merge(ctx, videoPath, audioPath, outPath); err != nil {
		return err
	}

	o.tracker.Complete(ctx, jobID, outPath, outName)
	if err := o.storage.RemoveAll(videoPath, audioPath); err != nil {
		o.logger.Printf("[JOB %s] cleanup of temporary files failed: %v", jobID, err)
	}
	o.logger.Printf("[JOB %s] Saved %s", jobID, outPath)
	return nil
}

// artifacts lists finished files for base, skipping in-progress fragments.
func (o *Orchestrator) artifacts(dir, base string) ([]string, error) {
	names, err := o.storage.ListWithPrefix(dir, base)
	if err != nil {
		return nil, err
	}
	out := names[:0]
	for _, n := range names {
		if strings.HasSuffix(n, ".part") || strings.HasSuffix(n, ".ytdl") {
			continue
		}
		out = append(out, n)
	}
	return out, nil
}

func (o *Orchestrator) progressFunc(ctx context.Context, jobID, label string, phase Phase) func(string) {
	current := phase.Start
	return func(line string) {
		o.logger.Printf("[JOB %s] %s: %s", jobID, label, line)
		next, ok := o.opts.Estimator.Estimate(phase, current, line)
		if !ok {
			return
		}
		current = next
		o.tracker.SetProgress(ctx, jobID, next)
	}
}

// stepFailure converts a download outcome into a job error, or nil.
func stepFailure(prefix string, res *ports.Result, err error) error {
	if err != nil {
		return domain.ToolFailure(fmt.Sprintf("%s: %v", prefix, err), err)
	}
	if !res.Succeeded() {
		return domain.ToolFailure(fmt.Sprintf("%s: %s", prefix, strings.TrimSpace(res.Stderr)), nil)
	}
	return nil
}
