package ffmpeg

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/exec"
	"strings"
	"time"

	"videograb/internal/core/domain"
	"videograb/internal/core/ports"
)

// FFmpeg invocation constants
const (
	Command      = "ffmpeg"
	VideoCodec   = "copy"
	AudioCodec   = "aac"
	StrictLevel  = "experimental"
	VersionFlag  = "-version"
	OverwriteArg = "-y"

	DefaultMergeTimeout = 120 * time.Second
	ProbeTimeout        = 10 * time.Second
)

// WellKnownPaths are probed when ffmpeg is not on PATH.
var WellKnownPaths = []string{
	`C:\ffmpeg\bin\ffmpeg.exe`,
	`C:\Program Files\ffmpeg\bin\ffmpeg.exe`,
	`C:\Program Files (x86)\ffmpeg\bin\ffmpeg.exe`,
	"/usr/local/bin/ffmpeg",
	"/opt/homebrew/bin/ffmpeg",
	"/usr/bin/ffmpeg",
}

// Merger muxes a video-only and an audio-only file with ffmpeg.
type Merger struct {
	runner  ports.Runner
	path    string
	timeout time.Duration
	logger  *log.Logger
}

// NewMerger creates a merger running the ffmpeg binary at path.
func NewMerger(runner ports.Runner, path string, timeout time.Duration, logger *log.Logger) *Merger {
	if path == "" {
		path = Command
	}
	if timeout <= 0 {
		timeout = DefaultMergeTimeout
	}
	return &Merger{runner: runner, path: path, timeout: timeout, logger: logger}
}

// Path returns the binary the merger runs.
func (m *Merger) Path() string {
	return m.path
}

// MergeArgs builds the ffmpeg arguments: copy the video stream, encode
// audio to AAC, overwrite the output.
func MergeArgs(videoPath, audioPath, outputPath string) []string {
	return []string{
		"-i", videoPath,
		"-i", audioPath,
		"-c:v", VideoCodec,
		"-c:a", AudioCodec,
		"-strict", StrictLevel,
		OverwriteArg,
		outputPath,
	}
}

// Merge combines videoPath and audioPath into outputPath. Both inputs must
// exist and be non-empty. It succeeds only if ffmpeg exits cleanly and the
// output exists and is non-empty.
func (m *Merger) Merge(ctx context.Context, videoPath, audioPath, outputPath string) error {
	for _, in := range []string{videoPath, audioPath} {
		fi, err := os.Stat(in)
		if err != nil {
			return domain.MissingArtifact(fmt.Sprintf("merge input not found: %s", in))
		}
		m.logger.Printf("merge input %s (%d bytes)", in, fi.Size())
		if fi.Size() == 0 {
			return domain.MissingArtifact(fmt.Sprintf("merge input is empty: %s", in))
		}
	}

	res, err := m.runner.Run(ctx, ports.Command{
		Name:    m.path,
		Args:    MergeArgs(videoPath, audioPath, outputPath),
		Timeout: m.timeout,
	})
	if err != nil {
		if errors.Is(err, ports.ErrTimeout) {
			return domain.ToolFailure(fmt.Sprintf("FFmpeg merge timed out after %s", m.timeout), err)
		}
		return domain.ToolFailure("FFmpeg merge failed", err)
	}
	if !res.Succeeded() {
		m.logger.Printf("ffmpeg exited with %d: %s", res.ExitCode, lastLines(res.Stderr, 5))
		return domain.ToolFailure("FFmpeg merge failed", nil)
	}

	fi, err := os.Stat(outputPath)
	if err != nil {
		return domain.ToolFailure("FFmpeg merge failed: output file was not created", err)
	}
	if fi.Size() == 0 {
		return domain.ToolFailure("FFmpeg merge failed: output file is empty", nil)
	}
	m.logger.Printf("merged %s (%d bytes)", outputPath, fi.Size())
	return nil
}

// Available probes the binary with -version.
func (m *Merger) Available(ctx context.Context) bool {
	return probe(ctx, m.runner, m.path)
}

func probe(ctx context.Context, runner ports.Runner, path string) bool {
	res, err := runner.Run(ctx, ports.Command{Name: path, Args: []string{VersionFlag}, Timeout: ProbeTimeout})
	return err == nil && res.Succeeded()
}

// Resolve finds a working ffmpeg: the configured path first, then PATH, then
// the well-known install locations. It returns "" when none responds.
func Resolve(ctx context.Context, runner ports.Runner, configured string, candidates []string) string {
	var tried []string
	if configured != "" {
		tried = append(tried, configured)
	}
	if p, err := exec.LookPath(Command); err == nil {
		tried = append(tried, p)
	}
	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			tried = append(tried, c)
		}
	}

	for _, p := range tried {
		if probe(ctx, runner, p) {
			return p
		}
	}
	return ""
}

func lastLines(s string, n int) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, " | ")
}
