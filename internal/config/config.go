package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all server settings in their final types.
type Config struct {
	Host        string
	Port        int
	DownloadDir string // empty means resolve at startup

	YtDlpCommand    []string
	YtDlpUserAgent  string
	YtDlpProfiles   [][]string
	FFmpegPath      string // empty means discover
	AudioFormat     string
	FallbackTitle   string
	MetadataTimeout time.Duration
	MergeTimeout    time.Duration

	MaxConcurrentJobs int
	JobQueueSize      int
	JobRetention      time.Duration
	MaxTrackedJobs    int
	JanitorSchedule   string
	ProgressStrategy  string

	RateLimitRPS   float64
	RateLimitBurst int
	AllowedOrigins string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

// Defaults
const (
	defaultPort              = 5001
	defaultMetadataTimeout   = 30 * time.Second
	defaultMergeTimeout      = 120 * time.Second
	defaultMaxConcurrentJobs = 3
	defaultJobQueueSize      = 100
	defaultJobRetention      = 24 * time.Hour
	defaultMaxTrackedJobs    = 1000
	defaultRateLimitRPS      = 5
	defaultRateLimitBurst    = 10
)

const defaultProfiles = "youtube:player_client=web|youtube:player_skip=webpage;youtube:player_client=android"

// Load reads .env (if present) and the environment. Invalid values are
// reset to defaults with a warning on logger.
func Load(logger *log.Logger) *Config {
	if err := godotenv.Load(); err != nil {
		logger.Println("No .env file found, using environment variables")
	}

	cfg := &Config{
		Host:        getEnv("HOST", "0.0.0.0"),
		Port:        getEnvAsInt("PORT", defaultPort),
		DownloadDir: getEnv("DOWNLOAD_DIR", ""),

		YtDlpCommand:    strings.Fields(getEnv("YTDLP_COMMAND", "")),
		YtDlpUserAgent:  getEnv("YTDLP_USER_AGENT", ""),
		YtDlpProfiles:   parseProfiles(getEnv("YTDLP_PROFILES", defaultProfiles)),
		FFmpegPath:      getEnv("FFMPEG_PATH", ""),
		AudioFormat:     getEnv("AUDIO_FORMAT", "mp3"),
		FallbackTitle:   getEnv("FALLBACK_TITLE", "youtube_video"),
		MetadataTimeout: getEnvAsDuration("METADATA_TIMEOUT", defaultMetadataTimeout),
		MergeTimeout:    getEnvAsDuration("MERGE_TIMEOUT", defaultMergeTimeout),

		MaxConcurrentJobs: getEnvAsInt("MAX_CONCURRENT_JOBS", defaultMaxConcurrentJobs),
		JobQueueSize:      getEnvAsInt("JOB_QUEUE_SIZE", defaultJobQueueSize),
		JobRetention:      getEnvAsDuration("JOB_RETENTION", defaultJobRetention),
		MaxTrackedJobs:    getEnvAsInt("MAX_TRACKED_JOBS", defaultMaxTrackedJobs),
		JanitorSchedule:   getEnv("JANITOR_SCHEDULE", "0 */5 * * * *"),
		ProgressStrategy:  getEnv("PROGRESS_STRATEGY", "lines"),

		RateLimitRPS:   getEnvAsFloat("RATE_LIMIT_RPS", defaultRateLimitRPS),
		RateLimitBurst: getEnvAsInt("RATE_LIMIT_BURST", defaultRateLimitBurst),
		AllowedOrigins: getEnv("ALLOWED_ORIGINS", "*"),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),
	}

	validate(cfg, logger)
	return cfg
}

// Addr is the listen address.
func (c *Config) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	str := getEnv(key, "")
	if val, err := strconv.Atoi(strings.TrimSpace(str)); err == nil {
		return val
	}
	return fallback
}

func getEnvAsFloat(key string, fallback float64) float64 {
	str := getEnv(key, "")
	if val, err := strconv.ParseFloat(strings.TrimSpace(str), 64); err == nil {
		return val
	}
	return fallback
}

// getEnvAsDuration accepts Go durations ("90s") or plain seconds ("90").
func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	str := strings.TrimSpace(getEnv(key, ""))
	if str == "" {
		return fallback
	}
	if d, err := time.ParseDuration(str); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(str); err == nil {
		return time.Duration(secs) * time.Second
	}
	return fallback
}

// parseProfiles splits "a|b;c" into [[a b] [c]]. Empty entries are dropped.
func parseProfiles(s string) [][]string {
	var out [][]string
	for _, profile := range strings.Split(s, ";") {
		var args []string
		for _, arg := range strings.Split(profile, "|") {
			if arg = strings.TrimSpace(arg); arg != "" {
				args = append(args, arg)
			}
		}
		if len(args) > 0 {
			out = append(out, args)
		}
	}
	return out
}

// validate resets values the server cannot run with.
func validate(cfg *Config, logger *log.Logger) {
	if cfg.Port < 1 || cfg.Port > 65535 {
		logger.Printf("Warning: PORT %d is out of range. Resetting to %d.", cfg.Port, defaultPort)
		cfg.Port = defaultPort
	}
	if cfg.MaxConcurrentJobs < 1 {
		logger.Printf("Warning: MAX_CONCURRENT_JOBS must be at least 1. Resetting to %d.", defaultMaxConcurrentJobs)
		cfg.MaxConcurrentJobs = defaultMaxConcurrentJobs
	}
	if cfg.JobQueueSize < 0 {
		logger.Printf("Warning: JOB_QUEUE_SIZE cannot be negative. Resetting to %d.", defaultJobQueueSize)
		cfg.JobQueueSize = defaultJobQueueSize
	}
	if cfg.MaxTrackedJobs < 1 {
		logger.Printf("Warning: MAX_TRACKED_JOBS must be at least 1. Resetting to %d.", defaultMaxTrackedJobs)
		cfg.MaxTrackedJobs = defaultMaxTrackedJobs
	}
	if cfg.MetadataTimeout <= 0 {
		logger.Printf("Warning: METADATA_TIMEOUT must be positive. Resetting to %s.", defaultMetadataTimeout)
		cfg.MetadataTimeout = defaultMetadataTimeout
	}
	if cfg.MergeTimeout <= 0 {
		logger.Printf("Warning: MERGE_TIMEOUT must be positive. Resetting to %s.", defaultMergeTimeout)
		cfg.MergeTimeout = defaultMergeTimeout
	}
	if cfg.JobRetention <= 0 {
		logger.Printf("Warning: JOB_RETENTION must be positive. Resetting to %s.", defaultJobRetention)
		cfg.JobRetention = defaultJobRetention
	}
	if cfg.RateLimitRPS <= 0 {
		logger.Printf("Warning: RATE_LIMIT_RPS must be positive. Resetting to %d.", defaultRateLimitRPS)
		cfg.RateLimitRPS = defaultRateLimitRPS
	}
	if cfg.RateLimitBurst < 1 {
		logger.Printf("Warning: RATE_LIMIT_BURST must be at least 1. Resetting to %d.", defaultRateLimitBurst)
		cfg.RateLimitBurst = defaultRateLimitBurst
	}
	if len(cfg.YtDlpProfiles) == 0 {
		logger.Println("Warning: YTDLP_PROFILES is empty. Using the built-in profiles.")
		cfg.YtDlpProfiles = parseProfiles(defaultProfiles)
	}
	switch cfg.ProgressStrategy {
	case "lines", "percent":
	default:
		logger.Printf("Warning: unknown PROGRESS_STRATEGY %q. Using \"lines\".", cfg.ProgressStrategy)
		cfg.ProgressStrategy = "lines"
	}
	cfg.AudioFormat = strings.TrimPrefix(strings.TrimSpace(cfg.AudioFormat), ".")
	if cfg.AudioFormat == "" {
		cfg.AudioFormat = "mp3"
	}
}
