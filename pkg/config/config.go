package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
// ⭐ SSOT: 모든 환경변수는 여기서만 읽음
type Config struct {
	Env string // development, staging, production

	// Database (optional: only needed to persist runs)
	Database DatabaseConfig

	// Risk run defaults
	Risk RiskConfig

	// Logging
	LogLevel  string
	LogFormat string
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	URL string

	// Connection Pool
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// Enabled reports whether a database is configured.
func (d DatabaseConfig) Enabled() bool {
	return d.URL != ""
}

// RiskConfig holds the defaults used by the backtest and test engines.
// Command flags and experiment files override these per run.
type RiskConfig struct {
	Alpha            float64 // VaR confidence level
	Window           int     // rolling estimation window (observations)
	NumSims          int     // scenarios per window
	Modes            []string
	Significance     float64 // test threshold
	StressClusterMin int     // min run length flagged as stress cluster
	Bootstrap        int     // bootstrap repetitions
	Seed             uint64
	Workers          int
	Epsilon          float64 // log(0) guard for likelihood-ratio tests
	Antithetic       bool    // pair every draw with its negation
}

// Load reads configuration from environment variables
// ⭐ SSOT: 이 함수만 os.Getenv()를 호출함
func Load() (*Config, error) {
	// Try multiple paths for .env file
	loadEnvFile()

	cfg := &Config{
		Env: getEnv("ENV", "development"),

		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", ""),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 10),
			MinConns:        getEnvAsInt("DB_MIN_CONNS", 1),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", "1h"),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", "30m"),
		},

		Risk: RiskConfig{
			Alpha:            getEnvAsFloat("RISK_ALPHA", 0.95),
			Window:           getEnvAsInt("RISK_WINDOW", 252),
			NumSims:          getEnvAsInt("RISK_NUM_SIMS", 10000),
			Modes:            getEnvAsList("RISK_MODES", "pseudorandom-normal,low-discrepancy-sobol,low-discrepancy-halton"),
			Significance:     getEnvAsFloat("RISK_SIGNIFICANCE", 0.05),
			StressClusterMin: getEnvAsInt("RISK_STRESS_CLUSTER", 3),
			Bootstrap:        getEnvAsInt("RISK_BOOTSTRAP", 100),
			Seed:             getEnvAsUint("RISK_SEED", 42),
			Workers:          getEnvAsInt("RISK_WORKERS", 4),
			Epsilon:          getEnvAsFloat("RISK_EPSILON", 1e-10),
			Antithetic:       getEnvAsBool("RISK_ANTITHETIC", false),
		},

		// Logging
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "console"),
	}

	// Validate configuration
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// validate checks that configuration values are usable
func (c *Config) validate() error {
	// Validate environment
	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}

	r := c.Risk
	if !(r.Alpha > 0 && r.Alpha < 1) {
		return fmt.Errorf("RISK_ALPHA must be in (0,1), got %v", r.Alpha)
	}
	if r.Window < 2 {
		return fmt.Errorf("RISK_WINDOW must be >= 2, got %d", r.Window)
	}
	if r.NumSims < 1 {
		return fmt.Errorf("RISK_NUM_SIMS must be >= 1, got %d", r.NumSims)
	}
	if len(r.Modes) == 0 {
		return fmt.Errorf("RISK_MODES must name at least one mode")
	}
	if !(r.Significance > 0 && r.Significance < 1) {
		return fmt.Errorf("RISK_SIGNIFICANCE must be in (0,1), got %v", r.Significance)
	}
	if r.StressClusterMin < 1 {
		return fmt.Errorf("RISK_STRESS_CLUSTER must be >= 1, got %d", r.StressClusterMin)
	}
	if r.Bootstrap < 2 {
		return fmt.Errorf("RISK_BOOTSTRAP must be >= 2, got %d", r.Bootstrap)
	}
	if r.Workers < 1 {
		return fmt.Errorf("RISK_WORKERS must be >= 1, got %d", r.Workers)
	}
	if !(r.Epsilon > 0 && r.Epsilon < 0.5) || math.IsNaN(r.Epsilon) {
		return fmt.Errorf("RISK_EPSILON must be in (0,0.5), got %v", r.Epsilon)
	}

	return nil
}

// Helper functions (private, only used within this file)

// loadEnvFile tries to load .env from multiple locations
func loadEnvFile() {
	// Try paths in order of priority
	paths := []string{
		".env", // Current directory
	}

	// Also try relative to executable
	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		paths = append(paths,
			filepath.Join(exeDir, ".env"),
			filepath.Join(exeDir, "..", ".env"),
		)
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
	}
}

// LoadEnvFile loads an explicit .env file (--env flag).
func LoadEnvFile(path string) error {
	if err := godotenv.Overload(path); err != nil {
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsUint(key string, defaultValue uint64) uint64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseUint(valueStr, 10, 64)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsList(key, defaultValue string) []string {
	var out []string
	for _, part := range strings.Split(getEnv(key, defaultValue), ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		valueStr = defaultValue
	}

	duration, err := time.ParseDuration(valueStr)
	if err != nil {
		// Fallback to default
		duration, _ = time.ParseDuration(defaultValue)
	}

	return duration
}
