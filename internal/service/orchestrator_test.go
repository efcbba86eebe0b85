package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"videograb/internal/adapters/localstorage"
	"videograb/internal/core/domain"
	"videograb/internal/core/ports"
)

// fakeExtractor writes placeholder artifacts the way yt-dlp would.
type fakeExtractor struct {
	mu        sync.Mutex
	info      *domain.RawInfo
	infoErr   error
	requests  []ports.DownloadRequest
	lines     int
	fail      map[string]*ports.Result // keyed by OutputBase suffix: "video", "audio"
	skipWrite map[string]bool
	panicOn   string
}

func (f *fakeExtractor) FetchInfo(context.Context, string) (*domain.RawInfo, error) {
	return f.info, f.infoErr
}

func (f *fakeExtractor) Download(_ context.Context, req ports.DownloadRequest, onLine func(string)) (*ports.Result, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()

	kind := "audio"
	if !req.AudioOnly {
		kind = "video"
	}
	if f.panicOn == kind {
		panic("extractor exploded")
	}
	for i := 0; i < f.lines; i++ {
		onLine(fmt.Sprintf("[download] %d.0%% of 10MiB", (i+1)*10))
	}
	if res, ok := f.fail[kind]; ok {
		return res, nil
	}
	if !f.skipWrite[kind] {
		ext := ".mp3"
		if kind == "video" {
			ext = ".webm"
		}
		if err := os.WriteFile(filepath.Join(req.Dir, req.OutputBase+ext), []byte(kind), 0644); err != nil {
			return nil, err
		}
	}
	return &ports.Result{}, nil
}

func (f *fakeExtractor) videoRequests() int {
	n := 0
	for _, r := range f.requests {
		if !r.AudioOnly {
			n++
		}
	}
	return n
}

type fakeMerger struct {
	calls [][3]string
	err   error
}

func (m *fakeMerger) Merge(_ context.Context, video, audio, out string) error {
	m.calls = append(m.calls, [3]string{video, audio, out})
	if m.err != nil {
		return m.err
	}
	return os.WriteFile(out, []byte("merged"), 0644)
}

func (m *fakeMerger) Available(context.Context) bool { return true }

type harness struct {
	orch      *Orchestrator
	tracker   *Tracker
	extractor *fakeExtractor
	merger    *fakeMerger
	dir       string
}

func newHarness(t *testing.T, ex *fakeExtractor) *harness {
	t.Helper()
	if ex.info == nil && ex.infoErr == nil {
		ex.info = &domain.RawInfo{Title: "My: Clip?"}
	}
	tr := newTestTracker()
	m := &fakeMerger{}
	o := NewOrchestrator(ex, m, localstorage.NewLocalStorage(), tr, Options{}, discardLogger())
	return &harness{orch: o, tracker: tr, extractor: ex, merger: m, dir: t.TempDir()}
}

func (h *harness) run(t *testing.T, selector string) (string, error) {
	t.Helper()
	id := NewJobID()
	require.NoError(t, h.tracker.Create(context.Background(), id, "https://youtu.be/abc", selector))
	return id, h.orch.Download(context.Background(), "https://youtu.be/abc", selector, h.dir, id)
}

func TestNewJobID(t *testing.T) {
	a, b := NewJobID(), NewJobID()
	assert.True(t, strings.HasPrefix(a, "download_"))
	assert.NotEqual(t, a, b)
	assert.Less(t, a, b, "ids are time ordered")
}

func TestDownload_AudioOnly(t *testing.T) {
	h := newHarness(t, &fakeExtractor{lines: 12})

	id, err := h.run(t, "0")
	require.NoError(t, err)

	assert.Zero(t, h.extractor.videoRequests(), "selector 0 never downloads a video stream")
	require.Len(t, h.extractor.requests, 1)
	assert.Equal(t, "My_ Clip_", h.extractor.requests[0].OutputBase)
	assert.Empty(t, h.merger.calls)

	progress, rec := h.tracker.Get(context.Background(), id)
	assert.Equal(t, 100, progress)
	assert.Equal(t, domain.StatusCompleted, rec.Status)
	assert.Equal(t, "My_ Clip_.mp3", rec.Filename)
	assert.Equal(t, filepath.Join(h.dir, "My_ Clip_.mp3"), rec.FilePath)
}

func TestDownload_EmptySelectorIsAudio(t *testing.T) {
	h := newHarness(t, &fakeExtractor{})
	_, err := h.run(t, "")
	require.NoError(t, err)
	assert.Zero(t, h.extractor.videoRequests())
}

func TestDownload_AudioProgressCappedBelowCompletion(t *testing.T) {
	h := newHarness(t, &fakeExtractor{lines: 20, fail: map[string]*ports.Result{
		"audio": {ExitCode: 1, Stderr: "ERROR: network\n"},
	}})

	id, err := h.run(t, "0")
	require.Error(t, err)

	progress, rec := h.tracker.Get(context.Background(), id)
	assert.Equal(t, 90, progress)
	assert.Equal(t, domain.StatusError, rec.Status)
	assert.Equal(t, "Audio download failed: ERROR: network", rec.Error)
}

func TestDownload_AudioFileMissing(t *testing.T) {
	h := newHarness(t, &fakeExtractor{skipWrite: map[string]bool{"audio": true}})

	id, err := h.run(t, "0")
	require.Error(t, err)
	assert.Equal(t, domain.KindMissingArtifact, domain.KindOf(err))

	_, rec := h.tracker.Get(context.Background(), id)
	assert.Equal(t, "No audio file found", rec.Error)
}

func TestDownload_VideoMergeSuccessRemovesTemps(t *testing.T) {
	h := newHarness(t, &fakeExtractor{lines: 3})

	id, err := h.run(t, "137")
	require.NoError(t, err)

	require.Len(t, h.extractor.requests, 2)
	assert.Equal(t, "137", h.extractor.requests[0].Selector)
	assert.Equal(t, "My_ Clip__video", h.extractor.requests[0].OutputBase)
	assert.True(t, h.extractor.requests[1].AudioOnly)
	assert.Equal(t, "My_ Clip__audio", h.extractor.requests[1].OutputBase)

	require.Len(t, h.merger.calls, 1)
	video := filepath.Join(h.dir, "My_ Clip__video.webm")
	audio := filepath.Join(h.dir, "My_ Clip__audio.mp3")
	out := filepath.Join(h.dir, "My_ Clip_.mp4")
	assert.Equal(t, [3]string{video, audio, out}, h.merger.calls[0])

	assert.NoFileExists(t, video)
	assert.NoFileExists(t, audio)
	assert.FileExists(t, out)

	progress, rec := h.tracker.Get(context.Background(), id)
	assert.Equal(t, 100, progress)
	assert.Equal(t, domain.StatusRecord{Status: domain.StatusCompleted, FilePath: out, Filename: "My_ Clip_.mp4"}, rec)
}

func TestDownload_VideoStepFailureStopsWorkflow(t *testing.T) {
	h := newHarness(t, &fakeExtractor{lines: 2, fail: map[string]*ports.Result{
		"video": {ExitCode: 1, Stderr: "ERROR: Requested format is not available"},
	}})

	id, err := h.run(t, "999")
	require.Error(t, err)
	assert.Equal(t, domain.KindExternalToolFailure, domain.KindOf(err))

	assert.Len(t, h.extractor.requests, 1, "audio track is not fetched after a video failure")
	assert.Empty(t, h.merger.calls)

	progress, rec := h.tracker.Get(context.Background(), id)
	assert.Less(t, progress, 100)
	assert.Equal(t, 20, progress)
	assert.Equal(t, domain.StatusError, rec.Status)
	assert.Equal(t, "Video download failed: ERROR: Requested format is not available", rec.Error)
}

func TestDownload_VideoProgressPhases(t *testing.T) {
	h := newHarness(t, &fakeExtractor{lines: 10, fail: map[string]*ports.Result{
		"audio": {ExitCode: 2, Stderr: "boom"},
	}})

	id, err := h.run(t, "137")
	require.Error(t, err)

	progress, rec := h.tracker.Get(context.Background(), id)
	assert.Equal(t, 80, progress, "audio track phase caps at 80")
	assert.Equal(t, "Audio download failed: boom", rec.Error)
	assert.Empty(t, h.merger.calls)
}

func TestDownload_MissingTempFile(t *testing.T) {
	h := newHarness(t, &fakeExtractor{skipWrite: map[string]bool{"audio": true}})
	require.NoError(t, os.WriteFile(filepath.Join(h.dir, "My_ Clip__audio.m4a.part"), []byte("x"), 0644))

	id, err := h.run(t, "137")
	require.Error(t, err)
	assert.Equal(t, domain.KindMissingArtifact, domain.KindOf(err))
	assert.Empty(t, h.merger.calls)

	_, rec := h.tracker.Get(context.Background(), id)
	assert.Equal(t, "Missing files. Video: [My_ Clip__video.webm], Audio: []", rec.Error)
}

func TestDownload_MergeFailureKeepsTemps(t *testing.T) {
	h := newHarness(t, &fakeExtractor{})
	h.merger.err = domain.ToolFailure("FFmpeg merge failed", nil)

	id, err := h.run(t, "137")
	require.Error(t, err)

	assert.FileExists(t, filepath.Join(h.dir, "My_ Clip__video.webm"))
	assert.FileExists(t, filepath.Join(h.dir, "My_ Clip__audio.mp3"))

	progress, rec := h.tracker.Get(context.Background(), id)
	assert.Equal(t, 85, progress)
	assert.Equal(t, domain.StatusRecord{Status: domain.StatusError, Error: "FFmpeg merge failed"}, rec)
}

func TestDownload_TitleFallback(t *testing.T) {
	h := newHarness(t, &fakeExtractor{infoErr: errors.New("yt-dlp error: sign in")})

	_, err := h.run(t, "0")
	require.NoError(t, err)
	require.Len(t, h.extractor.requests, 1)
	assert.Equal(t, DefaultFallbackTitle, h.extractor.requests[0].OutputBase)
}

func TestDownload_PanicBecomesJobError(t *testing.T) {
	h := newHarness(t, &fakeExtractor{panicOn: "video"})

	id, err := h.run(t, "137")
	require.Error(t, err)
	assert.Equal(t, domain.KindUnexpected, domain.KindOf(err))

	_, rec := h.tracker.Get(context.Background(), id)
	assert.Equal(t, domain.StatusError, rec.Status)
	assert.Contains(t, rec.Error, "extractor exploded")
}

func TestDownload_PercentEstimator(t *testing.T) {
	ex := &fakeExtractor{lines: 5, info: &domain.RawInfo{Title: "t"}}
	tr := newTestTracker()
	o := NewOrchestrator(ex, &fakeMerger{}, localstorage.NewLocalStorage(), tr, Options{Estimator: PercentParse{}}, discardLogger())
	ex.fail = map[string]*ports.Result{"audio": {ExitCode: 1}}
	dir := t.TempDir()

	require.NoError(t, tr.Create(context.Background(), "j", "u", "0"))
	require.Error(t, o.Download(context.Background(), "https://youtu.be/abc", "0", dir, "j"))

	progress, _ := tr.Get(context.Background(), "j")
	assert.Equal(t, 45, progress, "50% of the 0..90 audio phase")
}

func TestVideoInfo(t *testing.T) {
	h := newHarness(t, &fakeExtractor{info: &domain.RawInfo{
		Title: "Demo",
		Formats: []domain.RawFormat{
			{FormatID: "136", Height: 720, FPS: 30, VCodec: "h264", ACodec: "none"},
			{FormatID: "140", VCodec: "none", ACodec: "aac", ABR: 128},
		},
	}})

	md, err := h.orch.VideoInfo(context.Background(), "  https://www.youtube.com/watch?v=abc  ")
	require.NoError(t, err)
	assert.Equal(t, "Demo", md.Title)
	require.Len(t, md.Qualities, 2)
	assert.Equal(t, 720, md.Qualities[0].Height)

	_, err = h.orch.VideoInfo(context.Background(), "https://vimeo.com/1")
	require.Error(t, err)
	assert.Equal(t, domain.KindInvalidInput, domain.KindOf(err))
}

func TestVideoInfo_ExtractorFailure(t *testing.T) {
	h := newHarness(t, &fakeExtractor{infoErr: domain.ToolFailure("yt-dlp error: gone", nil)})

	_, err := h.orch.VideoInfo(context.Background(), "https://youtu.be/abc")
	require.Error(t, err)
	assert.Equal(t, "yt-dlp error: gone", domain.Message(err))
}
