package ports

import (
	"context"
	"errors"
	"time"

	"videograb/internal/core/domain"
)

// ErrTimeout is returned by a Runner when the command exceeded its timeout.
var ErrTimeout = errors.New("command timed out")

// Command describes one external process invocation.
type Command struct {
	Name    string
	Args    []string
	Dir     string        // working directory, empty for the current one
	Timeout time.Duration // zero means no cap
}

// Result is what an external process left behind.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// Succeeded reports a zero exit code.
func (r *Result) Succeeded() bool {
	return r != nil && r.ExitCode == 0
}

// Runner runs external commands.
// A non-zero exit is reported through Result, not as an error; errors mean
// the process could not be started or ran past its timeout.
type Runner interface {
	// Run blocks until the command exits and captures both streams.
	Run(ctx context.Context, cmd Command) (*Result, error)

	// Stream runs the command and calls onLine for every stdout line while the
	// process is alive. Result.Stdout stays empty; stderr is captured.
	Stream(ctx context.Context, cmd Command, onLine func(line string)) (*Result, error)
}

// DownloadRequest asks the extraction tool to fetch one stream variant.
type DownloadRequest struct {
	URL        string
	Selector   string // format id, or empty for best audio
	Dir        string
	OutputBase string // filename without extension
	AudioOnly  bool   // fetch best audio and transcode it
}

// Extractor is the metadata/extraction tool.
type Extractor interface {
	// FetchInfo queries metadata, retrying with alternate client profiles.
	FetchInfo(ctx context.Context, url string) (*domain.RawInfo, error)

	// Download runs a real download, streaming stdout lines to onLine.
	Download(ctx context.Context, req DownloadRequest, onLine func(line string)) (*Result, error)
}

// Merger is the audio/video muxing tool.
type Merger interface {
	Merge(ctx context.Context, videoPath, audioPath, outputPath string) error
	Available(ctx context.Context) bool
}

// Storage locates and removes artifacts inside a destination directory.
type Storage interface {
	// NewestWithPrefix returns the most recently changed file whose name
	// starts with prefix and ends with ext.
	NewestWithPrefix(dir, prefix, ext string) (string, error)

	// ListWithPrefix returns the names of files starting with prefix.
	ListWithPrefix(dir, prefix string) ([]string, error)

	// RemoveAll deletes paths, returning every failure joined.
	RemoveAll(paths ...string) error
}

// JobStore persists job state.
type JobStore interface {
	Put(ctx context.Context, job domain.Job) error
	Get(ctx context.Context, id string) (domain.Job, bool, error)

	// Update applies fn to the stored job. It returns false if id is unknown.
	Update(ctx context.Context, id string, fn func(*domain.Job)) (bool, error)

	// EvictFinished drops terminal jobs last updated before cutoff.
	EvictFinished(ctx context.Context, cutoff time.Time) (int, error)

	Len(ctx context.Context) (int, error)
}
