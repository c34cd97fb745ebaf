package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Defaults for configuration values.
const (
	DefaultSport                 = "basketball_nba"
	DefaultRegions               = "us"
	DefaultBaseURL               = "https://api.the-odds-api.com"
	DefaultPollInterval          = 5 * time.Minute
	DefaultCleanupInterval       = 1 * time.Hour
	DefaultRetention             = 24 * time.Hour
	DefaultEVThresholdPercent    = 2.0
	DefaultInefficiencyThreshold = 0.02
	DefaultCacheTTL              = 5 * time.Minute
	DefaultAlertCooldown         = 15 * time.Minute
	DefaultHTTPPort              = "8000"
	DefaultMetricsPort           = "9095"
	DefaultCycleLogPath          = "/data/cycles.db"
	DefaultKafkaTopic            = "ev.opportunities"
)

// DefaultAllowedBookmakers is the bookmaker allow-list used when
// ALLOWED_BOOKMAKERS is unset. Keys follow The Odds API naming.
var DefaultAllowedBookmakers = []string{
	"draftkings", "fanduel", "betmgm", "caesars", "pointsbetus",
	"betrivers", "bovada", "williamhill_us", "unibet_us",
}

// DefaultSharpWeights is the default per-bookmaker consensus weight table.
// Sharp books pull the weighted consensus harder; recreational books less.
var DefaultSharpWeights = map[string]float64{
	"pinnacle":    3.0,
	"betonlineag": 2.0,
	"bovada":      0.8,
	"mybookieag":  0.7,
}

// Config holds all application configuration.
type Config struct {
	Env         string
	ServiceName string

	// Odds API
	OddsAPIKey string
	BaseURL    string
	Sport      string
	Regions    string

	// Scoring
	AllowedBookmakers     []string
	SharpWeights          map[string]float64
	EVThresholdPercent    float64
	InefficiencyThreshold float64

	// Pipeline timing
	PollInterval    time.Duration
	CleanupInterval time.Duration
	Retention       time.Duration
	AlertCooldown   time.Duration

	// Collaborators
	PostgresDSN  string
	RedisAddr    string
	CacheTTL     time.Duration
	KafkaBrokers string
	KafkaTopic   string
	CycleLogPath string

	// Ports
	HTTPPort    string
	MetricsPort string
}

// Load reads configuration from environment variables (and .env file if present).
func Load() Config {
	_ = godotenv.Load() // Ignore error if .env doesn't exist

	cfg := Config{
		Env:         getEnv("ENV", "local"),
		ServiceName: getEnv("SERVICE_NAME", "ev-worker"),

		OddsAPIKey: os.Getenv("ODDS_API_KEY"),
		BaseURL:    getEnv("ODDS_API_BASE_URL", DefaultBaseURL),
		Sport:      getEnv("SPORT", DefaultSport),
		Regions:    getEnv("ODDS_API_REGIONS", DefaultRegions),

		AllowedBookmakers:     DefaultAllowedBookmakers,
		SharpWeights:          DefaultSharpWeights,
		EVThresholdPercent:    getFloat("EV_THRESHOLD_PERCENT", DefaultEVThresholdPercent),
		InefficiencyThreshold: getFloat("INEFFICIENCY_THRESHOLD", DefaultInefficiencyThreshold),

		PollInterval:    getDuration("POLL_INTERVAL", DefaultPollInterval),
		CleanupInterval: getDuration("CLEANUP_INTERVAL", DefaultCleanupInterval),
		Retention:       getDuration("RECORD_RETENTION", DefaultRetention),
		AlertCooldown:   getDuration("ALERT_COOLDOWN", DefaultAlertCooldown),

		PostgresDSN:  getEnv("POSTGRES_DSN", "postgres://ev:ev@localhost:5432/ev_analyzer?sslmode=disable"),
		RedisAddr:    getEnv("REDIS_ADDR", "localhost:6379"),
		CacheTTL:     getDuration("CACHE_TTL", DefaultCacheTTL),
		KafkaBrokers: os.Getenv("KAFKA_BROKERS"), // empty disables alert publishing
		KafkaTopic:   getEnv("KAFKA_TOPIC_EV", DefaultKafkaTopic),
		CycleLogPath: getEnv("CYCLE_LOG_PATH", DefaultCycleLogPath),

		HTTPPort:    getEnv("HTTP_PORT", DefaultHTTPPort),
		MetricsPort: getEnv("METRICS_PORT", DefaultMetricsPort),
	}

	if v := os.Getenv("ALLOWED_BOOKMAKERS"); v != "" {
		cfg.AllowedBookmakers = ParseList(v)
	}
	if v := os.Getenv("SHARP_WEIGHTS"); v != "" {
		if weights, err := ParseWeights(v); err == nil {
			cfg.SharpWeights = weights
		}
	}

	return cfg
}

// ParseList splits a comma-separated value into trimmed, non-empty entries.
func ParseList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if s := strings.TrimSpace(part); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// ParseWeights parses a "book:weight,book:weight" table.
func ParseWeights(v string) (map[string]float64, error) {
	weights := make(map[string]float64)
	for _, part := range strings.Split(v, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		book, raw, ok := strings.Cut(part, ":")
		if !ok {
			return nil, fmt.Errorf("weight entry %q missing ':'", part)
		}
		w, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return nil, fmt.Errorf("weight entry %q: %w", part, err)
		}
		if w <= 0 {
			return nil, fmt.Errorf("weight entry %q: weight must be positive", part)
		}
		weights[strings.TrimSpace(book)] = w
	}
	return weights, nil
}

// Validate checks that configuration values are within acceptable ranges.
func Validate(cfg Config) error {
	if cfg.EVThresholdPercent < 0 || cfg.EVThresholdPercent > 100 {
		return fmt.Errorf("EV_THRESHOLD_PERCENT must be between 0 and 100, got %f", cfg.EVThresholdPercent)
	}
	if cfg.InefficiencyThreshold < 0 || cfg.InefficiencyThreshold > 1 {
		return fmt.Errorf("INEFFICIENCY_THRESHOLD must be between 0 and 1, got %f", cfg.InefficiencyThreshold)
	}
	if cfg.PollInterval < time.Second {
		return fmt.Errorf("POLL_INTERVAL must be at least 1s, got %v", cfg.PollInterval)
	}
	if cfg.Retention <= 0 {
		return fmt.Errorf("RECORD_RETENTION must be positive, got %v", cfg.Retention)
	}
	if len(cfg.AllowedBookmakers) == 0 {
		return fmt.Errorf("ALLOWED_BOOKMAKERS must not be empty")
	}
	for book, w := range cfg.SharpWeights {
		if w <= 0 {
			return fmt.Errorf("sharp weight for %q must be positive, got %f", book, w)
		}
	}
	return nil
}

func getEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func getFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
