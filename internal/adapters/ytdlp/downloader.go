package ytdlp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/lrstanley/go-ytdlp"

	"videograb/internal/core/domain"
	"videograb/internal/core/ports"
)

const (
	DefaultMetadataTimeout = 30 * time.Second
	DefaultAudioFormat     = "mp3"
	DefaultUserAgent       = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

	formatSort    = "res,fps,codec:h264"
	bestAudio     = "bestaudio"
	outputExtTmpl = ".%(ext)s"
)

// DefaultProfiles are the extractor-args sets tried in order for metadata.
var DefaultProfiles = [][]string{
	{"youtube:player_client=web", "youtube:player_skip=webpage"},
	{"youtube:player_client=android"},
}

// Config controls how the yt-dlp binary is invoked.
type Config struct {
	Command         []string // binary followed by fixed leading args, e.g. ["py", "-m", "yt_dlp"]
	UserAgent       string
	Profiles        [][]string // extractor-args per attempt
	FFmpegLocation  string     // passed through for audio transcoding
	AudioFormat     string
	MetadataTimeout time.Duration
}

// YtDlpDownloader drives the local yt-dlp binary. Commands are built with
// go-ytdlp and executed by the injected runner.
type YtDlpDownloader struct {
	runner ports.Runner
	cfg    Config
	logger *log.Logger
}

// DefaultCommand prefers a yt-dlp.exe next to the working directory and
// falls back to yt-dlp on PATH.
func DefaultCommand() []string {
	if _, err := os.Stat("yt-dlp.exe"); err == nil {
		return []string{".\\yt-dlp.exe"}
	}
	return []string{"yt-dlp"}
}

// NewYtDlpDownloader creates a client. Zero config fields get defaults.
func NewYtDlpDownloader(runner ports.Runner, cfg Config, logger *log.Logger) *YtDlpDownloader {
	if len(cfg.Command) == 0 {
		cfg.Command = DefaultCommand()
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.AudioFormat == "" {
		cfg.AudioFormat = DefaultAudioFormat
	}
	if cfg.MetadataTimeout <= 0 {
		cfg.MetadataTimeout = DefaultMetadataTimeout
	}
	return &YtDlpDownloader{runner: runner, cfg: cfg, logger: logger}
}

// AudioExt is the extension of transcoded audio files, with leading dot.
func (d *YtDlpDownloader) AudioExt() string {
	return "." + d.cfg.AudioFormat
}

// FetchInfo runs --dump-json once per configured profile until one succeeds.
func (d *YtDlpDownloader) FetchInfo(ctx context.Context, url string) (*domain.RawInfo, error) {
	profiles := d.cfg.Profiles
	if len(profiles) == 0 {
		profiles = [][]string{nil}
	}

	var lastErr error
	for i, profile := range profiles {
		if i > 0 {
			d.logger.Printf("metadata attempt %d failed, trying alternative profile %v", i, profile)
		}

		res, err := d.runner.Run(ctx, d.command(ctx, d.metadataCommand(profile), url, d.cfg.MetadataTimeout))
		if err != nil {
			lastErr = domain.ToolFailure(fmt.Sprintf("yt-dlp error: %v", err), err)
			if ctx.Err() != nil {
				return nil, lastErr
			}
			continue
		}
		if !res.Succeeded() {
			lastErr = domain.ToolFailure("yt-dlp error: "+strings.TrimSpace(res.Stderr), nil)
			continue
		}

		info, err := decodeInfo([]byte(res.Stdout))
		if err != nil {
			return nil, domain.ToolFailure("yt-dlp returned unreadable metadata", err)
		}
		return info, nil
	}
	return nil, lastErr
}

// Download streams a real download into req.Dir.
func (d *YtDlpDownloader) Download(ctx context.Context, req ports.DownloadRequest, onLine func(line string)) (*ports.Result, error) {
	return d.runner.Stream(ctx, d.command(ctx, d.downloadCommand(req), req.URL, 0), onLine)
}

// command converts a go-ytdlp command into a ports.Command so it runs
// through the shared runner. Leading args of Config.Command (as in
// "py -m yt_dlp") go before the flags.
func (d *YtDlpDownloader) command(ctx context.Context, dl *ytdlp.Command, url string, timeout time.Duration) ports.Command {
	built := dl.BuildCommand(ctx, url)

	args := make([]string, 0, len(d.cfg.Command)-1+len(built.Args))
	args = append(args, d.cfg.Command[1:]...)
	if len(built.Args) > 1 {
		args = append(args, built.Args[1:]...)
	}
	return ports.Command{Name: d.cfg.Command[0], Args: args, Dir: built.Dir, Timeout: timeout}
}

func (d *YtDlpDownloader) metadataCommand(profile []string) *ytdlp.Command {
	dl := ytdlp.New().
		SetExecutable(d.cfg.Command[0]).
		DumpJSON().
		NoPlaylist().
		FormatSort(formatSort).
		NoWarnings().
		UserAgent(d.cfg.UserAgent)
	for _, ea := range joinExtractorArgs(profile) {
		dl.ExtractorArgs(ea)
	}
	return dl
}

func (d *YtDlpDownloader) downloadCommand(req ports.DownloadRequest) *ytdlp.Command {
	selector := req.Selector
	if req.AudioOnly || selector == "" {
		selector = bestAudio
	}

	dl := ytdlp.New().
		SetExecutable(d.cfg.Command[0]).
		SetWorkDir(req.Dir).
		Format(selector).
		Output(req.OutputBase + outputExtTmpl).
		NoPlaylist().
		NoWarnings().
		UserAgent(d.cfg.UserAgent)
	if req.AudioOnly {
		dl.ExtractAudio().
			AudioFormat(d.cfg.AudioFormat).
			AudioQuality("0")
		if d.cfg.FFmpegLocation != "" {
			dl.FFmpegLocation(d.cfg.FFmpegLocation)
		}
	}
	return dl
}

// joinExtractorArgs merges "ie:k=v" entries of one profile into a single
// --extractor-args value per extractor ("youtube:a=1;b=2"), keeping order.
func joinExtractorArgs(profile []string) []string {
	var keys []string
	grouped := make(map[string][]string)
	for _, entry := range profile {
		ie, args, ok := strings.Cut(entry, ":")
		if !ok {
			ie, args = entry, ""
		}
		if _, seen := grouped[ie]; !seen {
			keys = append(keys, ie)
		}
		if args != "" {
			grouped[ie] = append(grouped[ie], args)
		} else if grouped[ie] == nil {
			grouped[ie] = []string{}
		}
	}

	out := make([]string, 0, len(keys))
	for _, ie := range keys {
		if len(grouped[ie]) == 0 {
			out = append(out, ie)
			continue
		}
		out = append(out, ie+":"+strings.Join(grouped[ie], ";"))
	}
	return out
}

func decodeInfo(data []byte) (*domain.RawInfo, error) {
	var raw ytdlp.ExtractedInfo
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode yt-dlp metadata: %w", err)
	}
	title := str(raw.Title)
	if title == "" && len(raw.Formats) == 0 {
		return nil, errors.New("yt-dlp metadata has neither title nor formats")
	}

	info := &domain.RawInfo{
		Title:     title,
		Duration:  num(raw.Duration),
		ViewCount: int64(num(raw.ViewCount)),
		Uploader:  str(raw.Uploader),
		Thumbnail: str(raw.Thumbnail),
		Formats:   make([]domain.RawFormat, 0, len(raw.Formats)),
	}
	for _, f := range raw.Formats {
		if f == nil {
			continue
		}
		info.Formats = append(info.Formats, domain.RawFormat{
			FormatID: str(f.FormatID),
			Height:   int(num(f.Height)),
			FPS:      num(f.FPS),
			Filesize: int64(num(f.FileSize)),
			VCodec:   codecOrNone(str(f.VCodec)),
			ACodec:   codecOrNone(str(f.ACodec)),
			ABR:      num(f.ABR),
		})
	}
	return info, nil
}

// str and num read optional fields of yt-dlp's info dict; null is zero.
func str(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func num[T ~int | ~int64 | ~float64](p *T) float64 {
	if p == nil {
		return 0
	}
	return float64(*p)
}

func codecOrNone(c string) string {
	if c == "" {
		return "none"
	}
	return c
}
