package config

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
// Every environment variable is read through this package and nowhere else.
type Config struct {
	// Server
	Port string
	Env  string // development, staging, production

	// Database
	Database DatabaseConfig

	// Bridge (filesystem handshake with the execution agent)
	Bridge BridgeConfig

	// Universe filter
	Universe UniverseConfig

	// Scoring / selection
	Scoring ScoringConfig

	// Market data input
	Market MarketConfig

	// Order batch sanity limits
	Sanity SanityConfig

	// Audit exports
	Audit AuditConfig

	// Logging
	LogLevel  string
	LogFormat string
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	Host     string
	Port     string
	Name     string
	User     string
	Password string
	URL      string

	// Connection Pool
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// BridgeConfig holds the file-bridge layout and liveness thresholds
type BridgeConfig struct {
	Dir              string        // root of outbox/, inbox/ and the STOP marker
	HeartbeatTimeout time.Duration // heartbeat older than this => agent offline
	RetryAttempts    int           // bounded retry for contested file operations
	RetryBackoff     time.Duration // initial backoff, doubled per attempt
	AgentInterval    time.Duration // loopback agent poll interval
}

// UniverseConfig holds the instrument exclusion policy
type UniverseConfig struct {
	ExcludePrefixes []string // instrument-code prefixes to reject
	ExcludeMarkets  []string // named market segments (STAR, GEM, BSE)
}

// ScoringConfig holds selection and order-derivation parameters
type ScoringConfig struct {
	TrendWeight float64
	FlowWeight  float64
	FundWeight  float64

	EnableRegime    bool
	EnableVolDamper bool

	TopM int // picks persisted per run
	TopN int // picks turned into orders

	StrengthGateMin float64 // min top final score before new positions open
	BaseQuantity    int64   // per-order share quantity before exposure scaling
}

// MarketConfig holds the daily bar data source
type MarketConfig struct {
	BarsPath string
}

// SanityConfig holds the fat-finger limits applied to every order
// batch before it reaches the outbox
type SanityConfig struct {
	MaxOrderLines       int     // max instructions per batch
	MaxNotionalPerOrder float64 // max quantity * reference_price per instruction
}

// AuditConfig holds the flat-file export target
type AuditConfig struct {
	Dir string
}

// Load reads configuration from environment variables.
// Only this function calls os.Getenv().
func Load() (*Config, error) {
	loadEnvFile()

	cfg := &Config{
		Port: getEnv("PORT", "8087"),
		Env:  getEnv("ENV", "development"),

		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnv("DB_PORT", "5432"),
			Name:            getEnv("DB_NAME", "nightowl"),
			User:            getEnv("DB_USER", "nightowl"),
			Password:        getEnv("DB_PASSWORD", ""),
			URL:             getEnv("DATABASE_URL", ""),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 25),
			MinConns:        getEnvAsInt("DB_MIN_CONNS", 5),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", "1h"),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", "30m"),
		},

		Bridge: BridgeConfig{
			Dir:              getEnv("BRIDGE_DIR", "bridge"),
			HeartbeatTimeout: getEnvAsDuration("BRIDGE_HEARTBEAT_TIMEOUT", "90s"),
			RetryAttempts:    getEnvAsInt("BRIDGE_RETRY_ATTEMPTS", 3),
			RetryBackoff:     getEnvAsDuration("BRIDGE_RETRY_BACKOFF", "200ms"),
			AgentInterval:    getEnvAsDuration("BRIDGE_AGENT_INTERVAL", "5s"),
		},

		Universe: UniverseConfig{
			ExcludePrefixes: getEnvAsSlice("UNIVERSE_EXCLUDE_PREFIXES", nil),
			ExcludeMarkets:  getEnvAsSlice("UNIVERSE_EXCLUDE_MARKETS", []string{"STAR", "GEM"}),
		},

		Scoring: ScoringConfig{
			TrendWeight:     getEnvAsFloat("SCORING_TREND_WEIGHT", 0.5),
			FlowWeight:      getEnvAsFloat("SCORING_FLOW_WEIGHT", 0.3),
			FundWeight:      getEnvAsFloat("SCORING_FUND_WEIGHT", 0.2),
			EnableRegime:    getEnvAsBool("SCORING_ENABLE_REGIME", true),
			EnableVolDamper: getEnvAsBool("SCORING_ENABLE_VOL_DAMPER", true),
			TopM:            getEnvAsInt("SCORING_TOP_M", 200),
			TopN:            getEnvAsInt("SCORING_TOP_N", 5),
			StrengthGateMin: getEnvAsFloat("SCORING_STRENGTH_GATE_MIN", 0.15),
			BaseQuantity:    int64(getEnvAsInt("SCORING_BASE_QUANTITY", 100)),
		},

		Market: MarketConfig{
			BarsPath: getEnv("BARS_PATH", filepath.Join("data", "daily_bars.csv")),
		},

		Sanity: SanityConfig{
			MaxOrderLines:       getEnvAsInt("SANITY_MAX_ORDER_LINES", 30),
			MaxNotionalPerOrder: getEnvAsFloat("SANITY_MAX_NOTIONAL_PER_ORDER", 500000),
		},

		Audit: AuditConfig{
			Dir: getEnv("AUDIT_DIR", filepath.Join("data", "audit")),
		},

		// Logging
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
	}

	// Validate configuration
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// validate checks if required configuration values are set
func (c *Config) validate() error {
	if c.Database.URL == "" {
		// Build URL from individual components
		c.Database.URL = fmt.Sprintf(
			"postgres://%s:%s@%s:%s/%s?sslmode=disable",
			c.Database.User,
			c.Database.Password,
			c.Database.Host,
			c.Database.Port,
			c.Database.Name,
		)
	}

	// Validate environment
	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}

	if c.Bridge.Dir == "" {
		return fmt.Errorf("BRIDGE_DIR must not be empty")
	}

	if c.Scoring.TopN <= 0 || c.Scoring.TopM <= 0 {
		return fmt.Errorf("SCORING_TOP_N and SCORING_TOP_M must be positive")
	}

	if c.Scoring.TopN > c.Scoring.TopM {
		return fmt.Errorf("SCORING_TOP_N (%d) must not exceed SCORING_TOP_M (%d)",
			c.Scoring.TopN, c.Scoring.TopM)
	}

	sum := c.Scoring.TrendWeight + c.Scoring.FlowWeight + c.Scoring.FundWeight
	if sum < 0.99 || sum > 1.01 {
		return fmt.Errorf("scoring weights must sum to 1.0, got %.4f", sum)
	}

	if c.Sanity.MaxOrderLines <= 0 || c.Sanity.MaxNotionalPerOrder <= 0 {
		return fmt.Errorf("SANITY_MAX_ORDER_LINES and SANITY_MAX_NOTIONAL_PER_ORDER must be positive")
	}

	return nil
}

// SnapshotHash returns a stable hash of the filter and scoring
// configuration, stored on each run for auditability. Key order is
// fixed so the same configuration always hashes identically.
func (c *Config) SnapshotHash() string {
	prefixes := append([]string(nil), c.Universe.ExcludePrefixes...)
	markets := append([]string(nil), c.Universe.ExcludeMarkets...)
	sort.Strings(prefixes)
	sort.Strings(markets)

	lines := []string{
		"universe.exclude_prefixes=" + strings.Join(prefixes, ","),
		"universe.exclude_markets=" + strings.Join(markets, ","),
		fmt.Sprintf("scoring.trend_weight=%.6f", c.Scoring.TrendWeight),
		fmt.Sprintf("scoring.flow_weight=%.6f", c.Scoring.FlowWeight),
		fmt.Sprintf("scoring.fund_weight=%.6f", c.Scoring.FundWeight),
		fmt.Sprintf("scoring.enable_regime=%t", c.Scoring.EnableRegime),
		fmt.Sprintf("scoring.enable_vol_damper=%t", c.Scoring.EnableVolDamper),
		fmt.Sprintf("scoring.top_m=%d", c.Scoring.TopM),
		fmt.Sprintf("scoring.top_n=%d", c.Scoring.TopN),
		fmt.Sprintf("scoring.strength_gate_min=%.6f", c.Scoring.StrengthGateMin),
		fmt.Sprintf("scoring.base_quantity=%d", c.Scoring.BaseQuantity),
	}

	h := sha256.Sum256([]byte(strings.Join(lines, "\n")))
	return hex.EncodeToString(h[:])
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
			filepath.Join(exeDir, "..", "..", ".env"),
		)
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
	}
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

func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	parts := strings.Split(valueStr, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
