package config

import (
	"bytes"
	"log"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var keys = []string{
	"HOST", "PORT", "DOWNLOAD_DIR", "YTDLP_COMMAND", "YTDLP_USER_AGENT", "YTDLP_PROFILES",
	"FFMPEG_PATH", "AUDIO_FORMAT", "FALLBACK_TITLE", "METADATA_TIMEOUT", "MERGE_TIMEOUT",
	"MAX_CONCURRENT_JOBS", "JOB_QUEUE_SIZE", "JOB_RETENTION", "MAX_TRACKED_JOBS",
	"JANITOR_SCHEDULE", "PROGRESS_STRATEGY", "RATE_LIMIT_RPS", "RATE_LIMIT_BURST",
	"ALLOWED_ORIGINS", "REDIS_ADDR", "REDIS_PASSWORD", "REDIS_DB",
}

// clearEnv unsets every config key for the duration of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range keys {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	cfg := Load(log.New(&bytes.Buffer{}, "", 0))

	assert.Equal(t, "0.0.0.0:5001", cfg.Addr())
	assert.Empty(t, cfg.YtDlpCommand)
	assert.Equal(t, [][]string{
		{"youtube:player_client=web", "youtube:player_skip=webpage"},
		{"youtube:player_client=android"},
	}, cfg.YtDlpProfiles)
	assert.Equal(t, 30*time.Second, cfg.MetadataTimeout)
	assert.Equal(t, 120*time.Second, cfg.MergeTimeout)
	assert.Equal(t, 3, cfg.MaxConcurrentJobs)
	assert.Equal(t, 100, cfg.JobQueueSize)
	assert.Equal(t, 24*time.Hour, cfg.JobRetention)
	assert.Equal(t, "lines", cfg.ProgressStrategy)
	assert.Equal(t, "mp3", cfg.AudioFormat)
	assert.Equal(t, "youtube_video", cfg.FallbackTitle)
	assert.Empty(t, cfg.RedisAddr)
}

func TestLoad_FromEnvironment(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "8080")
	t.Setenv("YTDLP_COMMAND", "py -m yt_dlp")
	t.Setenv("YTDLP_PROFILES", "youtube:player_client=ios ; youtube:player_client=tv|youtube:player_skip=js")
	t.Setenv("METADATA_TIMEOUT", "45")
	t.Setenv("MERGE_TIMEOUT", "5m")
	t.Setenv("MAX_CONCURRENT_JOBS", "8")
	t.Setenv("PROGRESS_STRATEGY", "percent")
	t.Setenv("AUDIO_FORMAT", ".m4a")
	t.Setenv("RATE_LIMIT_RPS", "0.5")
	t.Setenv("REDIS_ADDR", "localhost:6379")

	cfg := Load(log.New(&bytes.Buffer{}, "", 0))

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, []string{"py", "-m", "yt_dlp"}, cfg.YtDlpCommand)
	assert.Equal(t, [][]string{
		{"youtube:player_client=ios"},
		{"youtube:player_client=tv", "youtube:player_skip=js"},
	}, cfg.YtDlpProfiles)
	assert.Equal(t, 45*time.Second, cfg.MetadataTimeout)
	assert.Equal(t, 5*time.Minute, cfg.MergeTimeout)
	assert.Equal(t, 8, cfg.MaxConcurrentJobs)
	assert.Equal(t, "percent", cfg.ProgressStrategy)
	assert.Equal(t, "m4a", cfg.AudioFormat)
	assert.Equal(t, 0.5, cfg.RateLimitRPS)
	assert.Equal(t, "localhost:6379", cfg.RedisAddr)
}

func TestLoad_InvalidValuesFallBack(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "99999")
	t.Setenv("MAX_CONCURRENT_JOBS", "0")
	t.Setenv("METADATA_TIMEOUT", "soon")
	t.Setenv("PROGRESS_STRATEGY", "vibes")
	t.Setenv("YTDLP_PROFILES", " ; ")
	t.Setenv("RATE_LIMIT_BURST", "-1")

	var logs bytes.Buffer
	cfg := Load(log.New(&logs, "", 0))

	assert.Equal(t, 5001, cfg.Port)
	assert.Equal(t, 3, cfg.MaxConcurrentJobs)
	assert.Equal(t, 30*time.Second, cfg.MetadataTimeout)
	assert.Equal(t, "lines", cfg.ProgressStrategy)
	assert.Len(t, cfg.YtDlpProfiles, 2)
	assert.Equal(t, 10, cfg.RateLimitBurst)
	assert.Contains(t, logs.String(), "PORT")
	assert.Contains(t, logs.String(), "PROGRESS_STRATEGY")
}

func TestParseProfiles(t *testing.T) {
	assert.Nil(t, parseProfiles(""))
	assert.Equal(t, [][]string{{"a", "b"}, {"c"}}, parseProfiles("a|b;;c|"))
}
