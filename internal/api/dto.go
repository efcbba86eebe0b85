package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"videograb/internal/core/domain"
)

// VideoInfoRequest is the body of POST /api/video-info.
type VideoInfoRequest struct {
	URL string `json:"url" form:"url"`
}

// VideoInfoResponse carries the metadata and quality options of one video.
type VideoInfoResponse struct {
	Success   bool                   `json:"success"`
	Title     string                 `json:"title"`
	Duration  float64                `json:"duration"`
	ViewCount int64                  `json:"view_count"`
	Uploader  string                 `json:"uploader"`
	Thumbnail string                 `json:"thumbnail"`
	Qualities []domain.QualityOption `json:"qualities"`
}

// DownloadRequest is the body of POST /api/download. A nil
// QualityFormatID means the field was absent or null.
type DownloadRequest struct {
	URL             string          `json:"url"`
	QualityFormatID *FormatSelector `json:"quality_format_id"`
}

// DownloadResponse is returned once a job is queued.
type DownloadResponse struct {
	Success      bool   `json:"success"`
	DownloadID   string `json:"download_id"`
	DownloadPath string `json:"download_path"`
}

// ProgressResponse is the answer to a progress poll.
type ProgressResponse struct {
	Progress int                 `json:"progress"`
	Status   domain.StatusRecord `json:"status"`
}

// HealthResponse reports tool availability and pool load.
type HealthResponse struct {
	Status      string `json:"status"`
	FFmpeg      bool   `json:"ffmpeg"`
	Workers     int    `json:"workers"`
	Active      int    `json:"active"`
	Queued      int    `json:"queued"`
	TrackedJobs int    `json:"tracked_jobs"`
}

// ErrorResponse is the body of every failed API call.
type ErrorResponse struct {
	Success    bool   `json:"success"`
	Error      string `json:"error"`
	DownloadID string `json:"download_id,omitempty"`
}

// FormatSelector accepts the format id as a JSON string or number, since
// clients send both ("137" and 0).
type FormatSelector string

// UnmarshalJSON keeps strings as they are and renders integral numbers
// without a fraction, so 0 and 0.0 both select the audio workflow.
func (s *FormatSelector) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		*s = FormatSelector(str)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("quality_format_id must be a string or number: %w", err)
	}
	if f, err := n.Float64(); err == nil && f == math.Trunc(f) && math.Abs(f) < 1<<53 {
		*s = FormatSelector(strconv.FormatInt(int64(f), 10))
		return nil
	}
	*s = FormatSelector(n.String())
	return nil
}
