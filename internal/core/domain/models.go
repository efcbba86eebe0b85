package domain

import "time"

// JobStatus is the lifecycle state of a download job.
type JobStatus string

const (
	StatusDownloading JobStatus = "downloading"
	StatusCompleted   JobStatus = "completed"
	StatusError       JobStatus = "error"
	StatusUnknown     JobStatus = "unknown"
)

// IsFinished reports whether the status is terminal.
func (s JobStatus) IsFinished() bool {
	return s == StatusCompleted || s == StatusError
}

// VideoMetadata is the client-facing result of one metadata query.
type VideoMetadata struct {
	Title     string          `json:"title"`
	Duration  float64         `json:"duration"`
	ViewCount int64           `json:"view_count"`
	Uploader  string          `json:"uploader"`
	Thumbnail string          `json:"thumbnail"`
	Qualities []QualityOption `json:"qualities"`
}

// QualityOption is one user-selectable format.
type QualityOption struct {
	FormatID   string  `json:"format_id"`
	Height     int     `json:"height"`
	FPS        int     `json:"fps"`
	SizeMB     float64 `json:"size_mb"`
	Display    string  `json:"display"`
	IsCombined bool    `json:"is_combined"` // audio already muxed in
	VCodec     string  `json:"vcodec"`
	ACodec     string  `json:"acodec"`
}

// RawInfo is the subset of extractor metadata the core consumes.
type RawInfo struct {
	Title     string
	Duration  float64
	ViewCount int64
	Uploader  string
	Thumbnail string
	Formats   []RawFormat
}

// RawFormat is one format record as reported by the extractor.
// Zero values stand in for missing fields; missing codecs are "none".
type RawFormat struct {
	FormatID string
	Height   int
	FPS      float64
	Filesize int64
	VCodec   string
	ACodec   string
	ABR      float64
}

// Job is the tracked state of one download request.
type Job struct {
	ID        string    `json:"id"`
	URL       string    `json:"url"`
	Selector  string    `json:"selector"`
	Progress  int       `json:"progress"`
	Status    JobStatus `json:"status"`
	FilePath  string    `json:"file_path,omitempty"`
	Filename  string    `json:"filename,omitempty"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// StatusRecord is the status object exposed to polling clients.
type StatusRecord struct {
	Status   JobStatus `json:"status"`
	FilePath string    `json:"file_path,omitempty"`
	Filename string    `json:"filename,omitempty"`
	Error    string    `json:"error,omitempty"`
}

// Record returns the client-facing status of the job.
func (j Job) Record() StatusRecord {
	return StatusRecord{
		Status:   j.Status,
		FilePath: j.FilePath,
		Filename: j.Filename,
		Error:    j.Error,
	}
}

// UnknownRecord is reported for ids that were never submitted.
var UnknownRecord = StatusRecord{Status: StatusUnknown}
