package service

import (
	"fmt"
	"sort"
	"strconv"

	"videograb/internal/core/domain"
)

const (
	codecNone      = "none"
	unknownField   = "Unknown"
	bytesPerMB     = 1024 * 1024
	unknownQuality = "Unknown quality"
)

type qualityKey struct {
	height int
	fps    int
}

// NormalizeFormats turns raw extractor formats into the user-facing list:
// one entry per video format, plus the best audio-only format, deduplicated
// by (height, fps) with the first occurrence kept, best quality first.
func NormalizeFormats(formats []domain.RawFormat) []domain.QualityOption {
	candidates := make([]domain.QualityOption, 0, len(formats)+1)

	var bestAudio *domain.RawFormat
	for i := range formats {
		f := &formats[i]
		if hasCodec(f.VCodec) {
			candidates = append(candidates, videoOption(f))
			continue
		}
		if hasCodec(f.ACodec) && (bestAudio == nil || f.ABR > bestAudio.ABR) {
			bestAudio = f
		}
	}
	if bestAudio != nil {
		candidates = append(candidates, audioOption(bestAudio))
	}

	seen := make(map[qualityKey]struct{}, len(candidates))
	out := candidates[:0]
	for _, q := range candidates {
		k := qualityKey{q.Height, q.FPS}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, q)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Height != out[j].Height {
			return out[i].Height > out[j].Height
		}
		return out[i].FPS > out[j].FPS
	})
	return out
}

// BuildMetadata combines the raw query result with the normalized formats.
func BuildMetadata(info *domain.RawInfo) *domain.VideoMetadata {
	return &domain.VideoMetadata{
		Title:     orUnknown(info.Title),
		Duration:  info.Duration,
		ViewCount: info.ViewCount,
		Uploader:  orUnknown(info.Uploader),
		Thumbnail: info.Thumbnail,
		Qualities: NormalizeFormats(info.Formats),
	}
}

func videoOption(f *domain.RawFormat) domain.QualityOption {
	return domain.QualityOption{
		FormatID:   f.FormatID,
		Height:     f.Height,
		FPS:        int(f.FPS),
		SizeMB:     sizeMB(f.Filesize),
		Display:    videoLabel(f.Height, f.FPS),
		IsCombined: hasCodec(f.ACodec),
		VCodec:     f.VCodec,
		ACodec:     codecOr(f.ACodec),
	}
}

func audioOption(f *domain.RawFormat) domain.QualityOption {
	return domain.QualityOption{
		FormatID: f.FormatID,
		SizeMB:   sizeMB(f.Filesize),
		Display:  fmt.Sprintf("Audio Only (%skbps)", formatNumber(f.ABR)),
		VCodec:   codecNone,
		ACodec:   f.ACodec,
	}
}

func videoLabel(height int, fps float64) string {
	if height == 0 {
		return unknownQuality
	}
	label := strconv.Itoa(height) + "p"
	if fps > 0 {
		label += "@" + formatNumber(fps) + "fps"
	}
	return label
}

func sizeMB(filesize int64) float64 {
	return float64(filesize) / bytesPerMB
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func hasCodec(c string) bool {
	return c != "" && c != codecNone
}

func orUnknown(s string) string {
	if s == "" {
		return unknownField
	}
	return s
}

func codecOr(c string) string {
	if c == "" {
		return codecNone
	}
	return c
}
