package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DefaultMaxWorkers = 4
	MinWorkers        = 1
	MaxWorkersLimit   = 32
)

type Config struct {
	Addr        string // API bind address, e.g., "127.0.0.1:8080" or ":8080" (Docker)
	LogDir      string // logs directory
	LogLevel    string
	DatabaseURL string // empty means use in-memory store

	// Channel-management API
	DispatcharrURL      string
	DispatcharrAPIKey   string
	DispatcharrUsername string
	DispatcharrPassword string
	HTTPTimeout         time.Duration

	// Checks
	MaxWorkers    int
	ProbeTimeout  time.Duration
	FFProbePath   string
	FFmpegPath    string
	CaptureImages bool
	CaptureDir    string
	CheckInterval time.Duration // 0 disables periodic checks

	// Status API
	PublicAPIKeys  []string
	AdminAPIKeys   []string
	PublicRPM      int
	AdminRPM       int
	AllowedOrigins []string

	// Alerts
	SlackWebhookURL string
	AlertCooldown   time.Duration
	AlertOnRecovery bool
	AlertPoll       time.Duration
}

// FromEnv loads .env when present (existing variables win) and reads the
// process environment, applying defaults for anything missing or malformed.
func FromEnv() Config {
	_ = godotenv.Load()

	addr := os.Getenv("API_ADDR")
	if addr == "" {
		addr = os.Getenv("ADDR")
	}
	if addr == "" {
		addr = "127.0.0.1:8080"
	}

	return Config{
		Addr:        addr,
		LogDir:      str("LOG_DIR", "logs"),
		LogLevel:    str("LOG_LEVEL", "info"),
		DatabaseURL: os.Getenv("DATABASE_URL"),

		DispatcharrURL:      strings.TrimRight(os.Getenv("DISPATCHARR_URL"), "/"),
		DispatcharrAPIKey:   os.Getenv("DISPATCHARR_API_KEY"),
		DispatcharrUsername: os.Getenv("DISPATCHARR_USERNAME"),
		DispatcharrPassword: os.Getenv("DISPATCHARR_PASSWORD"),
		HTTPTimeout:         millis("HTTP_TIMEOUT_MS", 10*time.Second),

		MaxWorkers:    ClampWorkers(integer("MAX_WORKERS", DefaultMaxWorkers)),
		ProbeTimeout:  millis("PROBE_TIMEOUT_MS", 10*time.Second),
		FFProbePath:   str("FFPROBE_PATH", "ffprobe"),
		FFmpegPath:    str("FFMPEG_PATH", "ffmpeg"),
		CaptureImages: boolean("CAPTURE_IMAGES", false),
		CaptureDir:    str("CAPTURE_DIR", "captured"),
		CheckInterval: millis("CHECK_INTERVAL_MS", 0),

		PublicAPIKeys:  list("PUBLIC_API_KEYS"),
		AdminAPIKeys:   list("ADMIN_API_KEYS"),
		PublicRPM:      integer("PUBLIC_RPM", 60),
		AdminRPM:       integer("ADMIN_RPM", 30),
		AllowedOrigins: list("ALLOWED_ORIGINS"),

		SlackWebhookURL: os.Getenv("SLACK_WEBHOOK_URL"),
		AlertCooldown:   millis("ALERT_COOLDOWN_MS", 15*time.Minute),
		AlertOnRecovery: boolean("ALERT_ON_RECOVERY", true),
		AlertPoll:       millis("ALERT_POLL_MS", 30*time.Second),
	}
}

// ClampWorkers keeps a worker count inside 1..32; zero or negative means the default.
func ClampWorkers(n int) int {
	switch {
	case n <= 0:
		return DefaultMaxWorkers
	case n > MaxWorkersLimit:
		return MaxWorkersLimit
	default:
		return n
	}
}

func str(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func integer(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return n
		}
	}
	return def
}

func millis(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if ms, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && ms >= 0 {
			return time.Duration(ms) * time.Millisecond
		}
	}
	return def
}

func boolean(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			return b
		}
	}
	return def
}

func list(key string) []string {
	var out []string
	for _, p := range strings.Split(os.Getenv(key), ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
