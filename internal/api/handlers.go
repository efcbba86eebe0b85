package api

import (
	"context"
	"errors"
	"log"
	"strings"

	"github.com/gofiber/fiber/v2"

	"videograb/internal/core/domain"
	"videograb/internal/service"
)

// Inspector answers metadata queries.
type Inspector interface {
	VideoInfo(ctx context.Context, url string) (*domain.VideoMetadata, error)
}

// Downloader runs one download job to completion.
type Downloader interface {
	Download(ctx context.Context, url, selector, dir, jobID string) error
}

// JobQueue schedules download jobs.
type JobQueue interface {
	Submit(t service.Task) error
	Stats() service.PoolStats
}

// Deps are the collaborators the handlers need.
type Deps struct {
	Inspector   Inspector
	Downloader  Downloader
	Tracker     *service.Tracker
	Queue       JobQueue
	DownloadDir string
	FFmpegOK    bool
	Logger      *log.Logger
}

// Handler serves the HTTP API on top of Deps.
type Handler struct {
	deps Deps
}

// NewHandler creates a Handler.
func NewHandler(deps Deps) *Handler {
	return &Handler{deps: deps}
}

// VideoInfo handles POST /api/video-info.
func (h *Handler) VideoInfo(c *fiber.Ctx) error {
	var req VideoInfoRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "Invalid request body"})
	}

	md, err := h.deps.Inspector.VideoInfo(c.UserContext(), req.URL)
	if err != nil {
		status := fiber.StatusInternalServerError
		if domain.KindOf(err) == domain.KindInvalidInput {
			status = fiber.StatusBadRequest
		}
		return c.Status(status).JSON(ErrorResponse{Error: domain.Message(err)})
	}

	return c.JSON(VideoInfoResponse{
		Success:   true,
		Title:     md.Title,
		Duration:  md.Duration,
		ViewCount: md.ViewCount,
		Uploader:  md.Uploader,
		Thumbnail: md.Thumbnail,
		Qualities: md.Qualities,
	})
}

// StartDownload handles POST /api/download. It returns as soon as the job
// is queued.
func (h *Handler) StartDownload(c *fiber.Ctx) error {
	var req DownloadRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "Invalid request body"})
	}
	if strings.TrimSpace(req.URL) == "" || req.QualityFormatID == nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: domain.ErrMissingSelector.Error()})
	}
	url, err := domain.ValidateURL(req.URL)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: domain.Message(err)})
	}
	selector := strings.TrimSpace(string(*req.QualityFormatID))

	ctx := c.UserContext()
	jobID := service.NewJobID()
	if err := h.deps.Tracker.Create(ctx, jobID, url, selector); err != nil {
		h.deps.Logger.Printf("[JOB %s] %v", jobID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "Could not register download"})
	}

	dir := h.deps.DownloadDir
	err = h.deps.Queue.Submit(service.Task{
		JobID: jobID,
		Run: func(ctx context.Context) {
			_ = h.deps.Downloader.Download(ctx, url, selector, dir, jobID)
		},
	})
	if err != nil {
		msg := "Server busy"
		if !errors.Is(err, service.ErrQueueFull) {
			msg = err.Error()
		}
		h.deps.Logger.Printf("[JOB %s] rejected: %v", jobID, err)
		h.deps.Tracker.Fail(ctx, jobID, msg)
		return c.Status(fiber.StatusServiceUnavailable).JSON(ErrorResponse{Error: msg, DownloadID: jobID})
	}

	return c.JSON(DownloadResponse{
		Success:      true,
		DownloadID:   jobID,
		DownloadPath: dir,
	})
}

// Progress handles GET /api/progress/:id.
func (h *Handler) Progress(c *fiber.Ctx) error {
	progress, status := h.deps.Tracker.Get(c.UserContext(), c.Params("id"))
	return c.JSON(ProgressResponse{Progress: progress, Status: status})
}

// Health handles GET /health.
func (h *Handler) Health(c *fiber.Ctx) error {
	stats := h.deps.Queue.Stats()
	tracked, err := h.deps.Tracker.Len(c.UserContext())
	if err != nil {
		h.deps.Logger.Printf("health: counting jobs: %v", err)
	}
	return c.JSON(HealthResponse{
		Status:      "ok",
		FFmpeg:      h.deps.FFmpegOK,
		Workers:     stats.Workers,
		Active:      stats.Active,
		Queued:      stats.Queued,
		TrackedJobs: tracked,
	})
}

// Index serves the single-page front-end.
func (h *Handler) Index(c *fiber.Ctx) error {
	c.Type("html", "utf-8")
	return c.Send(indexHTML)
}
