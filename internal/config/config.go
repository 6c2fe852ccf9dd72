package config

import (
	"encoding/json"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the agendacal application.
// Values are loaded from environment variables, optionally seeded from a
// .env file; see printUsage() in cmd/agendacal for the full list.
type Config struct {
	DatabaseURL string `json:"database_url"`
	RedisAddr   string `json:"redis_addr,omitempty"`
	HTTPAddr    string `json:"http_addr"`

	// NotifyURL serves double duty: POST sends notifications, GET lists
	// the participant directory.
	NotifyURL        string        `json:"notify_url"`
	NotifyTimeout    time.Duration `json:"-"`
	NotifyTimeoutStr string        `json:"notify_timeout"`
	NotifyToken      string        `json:"notify_token,omitempty"`

	NotifyBufferSize       int           `json:"notify_buffer_size"`
	NotifyDrainTimeout     time.Duration `json:"-"`
	NotifyDrainTimeoutStr  string        `json:"notify_drain_timeout"`

	JWTSecret string `json:"jwt_secret"`

	DBOpTimeout    time.Duration `json:"-"`
	DBOpTimeoutStr string        `json:"db_op_timeout"`

	DBMaxOpenConns       int           `json:"db_max_open_conns"`
	DBMaxIdleConns       int           `json:"db_max_idle_conns"`
	DBConnMaxLifetime    time.Duration `json:"-"`
	DBConnMaxLifetimeStr string        `json:"db_conn_max_lifetime"`
	DBConnMaxIdleTime    time.Duration `json:"-"`
	DBConnMaxIdleTimeStr string        `json:"db_conn_max_idle_time"`

	HTTPShutdownTimeout    time.Duration `json:"-"`
	HTTPShutdownTimeoutStr string        `json:"http_shutdown_timeout"`

	MetricsEnabled bool   `json:"metrics_enabled"`
	MetricsPath    string `json:"metrics_path"`

	ResyncEnabled        bool          `json:"resync_enabled"`
	ResyncInterval       time.Duration `json:"-"`
	ResyncIntervalStr    string        `json:"resync_interval"`
	ResyncDirectoryEvery int           `json:"resync_directory_every"`

	CORSAllowedOrigins []string `json:"cors_allowed_origins"`

	// CircuitBreakerThreshold: 0 disables the circuit breaker.
	CircuitBreakerThreshold   int           `json:"circuit_breaker_threshold"`
	CircuitBreakerCooldown    time.Duration `json:"-"`
	CircuitBreakerCooldownStr string        `json:"circuit_breaker_cooldown"`
}

// Load reads configuration from environment variables with defaults.
// A .env file in the working directory seeds the environment when present;
// real environment variables win over file values.
func Load() Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("config: .env not loaded: %v", err)
	}

	cfg := Config{
		DatabaseURL:            os.Getenv("DATABASE_URL"),
		RedisAddr:              os.Getenv("REDIS_ADDR"),
		HTTPAddr:               os.Getenv("HTTP_ADDR"),
		NotifyURL:              os.Getenv("NOTIFY_URL"),
		NotifyTimeoutStr:       os.Getenv("NOTIFY_TIMEOUT"),
		NotifyToken:            os.Getenv("NOTIFY_TOKEN"),
		NotifyDrainTimeoutStr:  os.Getenv("NOTIFY_DRAIN_TIMEOUT"),
		JWTSecret:              os.Getenv("JWT_SECRET"),
		DBOpTimeoutStr:         os.Getenv("DB_OP_TIMEOUT"),
		DBConnMaxLifetimeStr:   os.Getenv("DB_CONN_MAX_LIFETIME"),
		DBConnMaxIdleTimeStr:   os.Getenv("DB_CONN_MAX_IDLE_TIME"),
		HTTPShutdownTimeoutStr: os.Getenv("HTTP_SHUTDOWN_TIMEOUT"),
		MetricsEnabled:         os.Getenv("METRICS_ENABLED") == "true",
		MetricsPath:            os.Getenv("METRICS_PATH"),
		ResyncEnabled:          os.Getenv("RESYNC_ENABLED") != "false",
		ResyncIntervalStr:      os.Getenv("RESYNC_INTERVAL"),
	}

	if bufStr := os.Getenv("NOTIFY_BUFFER_SIZE"); bufStr != "" {
		if n, err := parseInt(bufStr); err == nil && n > 0 {
			cfg.NotifyBufferSize = n
		} else {
			log.Printf("config: invalid NOTIFY_BUFFER_SIZE %q (must be a positive integer), using default 100", bufStr)
		}
	}
	if cfg.NotifyBufferSize == 0 {
		cfg.NotifyBufferSize = 100
	}

	if everyStr := os.Getenv("RESYNC_DIRECTORY_EVERY"); everyStr != "" {
		if n, err := parseInt(everyStr); err == nil {
			cfg.ResyncDirectoryEvery = n
		} else {
			log.Printf("config: invalid RESYNC_DIRECTORY_EVERY %q, using default 10", everyStr)
		}
	}
	if cfg.ResyncDirectoryEvery == 0 && os.Getenv("RESYNC_DIRECTORY_EVERY") == "" {
		cfg.ResyncDirectoryEvery = 10
	}

	if cbThreshStr := os.Getenv("CIRCUIT_BREAKER_THRESHOLD"); cbThreshStr != "" {
		if n, err := parseInt(cbThreshStr); err == nil {
			cfg.CircuitBreakerThreshold = n
		} else {
			log.Printf("config: invalid CIRCUIT_BREAKER_THRESHOLD %q, using default 5", cbThreshStr)
		}
	}
	if cfg.CircuitBreakerThreshold == 0 && os.Getenv("CIRCUIT_BREAKER_THRESHOLD") == "" {
		cfg.CircuitBreakerThreshold = 5
	}
	cfg.CircuitBreakerCooldownStr = os.Getenv("CIRCUIT_BREAKER_COOLDOWN")

	if maxOpenStr := os.Getenv("DB_MAX_OPEN_CONNS"); maxOpenStr != "" {
		if n, err := parseInt(maxOpenStr); err == nil && n > 0 {
			cfg.DBMaxOpenConns = n
		}
	}
	if cfg.DBMaxOpenConns == 0 {
		cfg.DBMaxOpenConns = 25
	}

	if maxIdleStr := os.Getenv("DB_MAX_IDLE_CONNS"); maxIdleStr != "" {
		if n, err := parseInt(maxIdleStr); err == nil && n > 0 {
			cfg.DBMaxIdleConns = n
		}
	}
	if cfg.DBMaxIdleConns == 0 {
		cfg.DBMaxIdleConns = 5
	}

	if origins := os.Getenv("CORS_ALLOWED_ORIGINS"); origins != "" {
		for _, o := range strings.Split(origins, ",") {
			if o = strings.TrimSpace(o); o != "" {
				cfg.CORSAllowedOrigins = append(cfg.CORSAllowedOrigins, o)
			}
		}
	}

	// Support platform PORT variable as fallback for HTTP_ADDR.
	if cfg.HTTPAddr == "" {
		if port := os.Getenv("PORT"); port != "" {
			cfg.HTTPAddr = ":" + port
		} else {
			cfg.HTTPAddr = ":8080"
		}
	}
	if cfg.NotifyTimeoutStr == "" {
		cfg.NotifyTimeoutStr = "10s"
	}
	if cfg.NotifyDrainTimeoutStr == "" {
		cfg.NotifyDrainTimeoutStr = "30s"
	}
	if cfg.DBOpTimeoutStr == "" {
		cfg.DBOpTimeoutStr = "5s"
	}
	if cfg.DBConnMaxLifetimeStr == "" {
		cfg.DBConnMaxLifetimeStr = "30m"
	}
	if cfg.DBConnMaxIdleTimeStr == "" {
		cfg.DBConnMaxIdleTimeStr = "5m"
	}
	if cfg.HTTPShutdownTimeoutStr == "" {
		cfg.HTTPShutdownTimeoutStr = "10s"
	}
	if cfg.MetricsPath == "" {
		cfg.MetricsPath = "/metrics"
	}
	if cfg.ResyncIntervalStr == "" {
		cfg.ResyncIntervalStr = "1m"
	}
	if cfg.CircuitBreakerCooldownStr == "" {
		cfg.CircuitBreakerCooldownStr = "2m"
	}

	// Parse durations; validation is handled separately by Validate().
	if d, err := time.ParseDuration(cfg.NotifyTimeoutStr); err == nil {
		cfg.NotifyTimeout = d
	}
	if d, err := time.ParseDuration(cfg.NotifyDrainTimeoutStr); err == nil {
		cfg.NotifyDrainTimeout = d
	}
	if d, err := time.ParseDuration(cfg.DBOpTimeoutStr); err == nil {
		cfg.DBOpTimeout = d
	}
	if d, err := time.ParseDuration(cfg.DBConnMaxLifetimeStr); err == nil {
		cfg.DBConnMaxLifetime = d
	}
	if d, err := time.ParseDuration(cfg.DBConnMaxIdleTimeStr); err == nil {
		cfg.DBConnMaxIdleTime = d
	}
	if d, err := time.ParseDuration(cfg.HTTPShutdownTimeoutStr); err == nil {
		cfg.HTTPShutdownTimeout = d
	}
	if d, err := time.ParseDuration(cfg.ResyncIntervalStr); err == nil {
		cfg.ResyncInterval = d
	}
	if d, err := time.ParseDuration(cfg.CircuitBreakerCooldownStr); err == nil {
		cfg.CircuitBreakerCooldown = d
	}

	return cfg
}

// parseInt parses a string as an integer.
func parseInt(s string) (int, error) {
	var n int
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0, os.ErrInvalid
		}
		n = n*10 + int(c-'0')
	}
	return n, nil
}

// MaskedJSON returns the configuration as JSON with secrets masked.
func (c Config) MaskedJSON() ([]byte, error) {
	masked := struct {
		DatabaseURL             string   `json:"database_url"`
		RedisAddr               string   `json:"redis_addr,omitempty"`
		HTTPAddr                string   `json:"http_addr"`
		NotifyURL               string   `json:"notify_url"`
		NotifyTimeout           string   `json:"notify_timeout"`
		NotifyToken             string   `json:"notify_token,omitempty"`
		NotifyBufferSize        int      `json:"notify_buffer_size"`
		NotifyDrainTimeout      string   `json:"notify_drain_timeout"`
		JWTSecret               string   `json:"jwt_secret"`
		DBOpTimeout             string   `json:"db_op_timeout"`
		DBMaxOpenConns          int      `json:"db_max_open_conns"`
		DBMaxIdleConns          int      `json:"db_max_idle_conns"`
		DBConnMaxLifetime       string   `json:"db_conn_max_lifetime"`
		DBConnMaxIdleTime       string   `json:"db_conn_max_idle_time"`
		HTTPShutdownTimeout     string   `json:"http_shutdown_timeout"`
		MetricsEnabled          bool     `json:"metrics_enabled"`
		MetricsPath             string   `json:"metrics_path"`
		ResyncEnabled           bool     `json:"resync_enabled"`
		ResyncInterval          string   `json:"resync_interval"`
		ResyncDirectoryEvery    int      `json:"resync_directory_every"`
		CORSAllowedOrigins      []string `json:"cors_allowed_origins"`
		CircuitBreakerThreshold int      `json:"circuit_breaker_threshold"`
		CircuitBreakerCooldown  string   `json:"circuit_breaker_cooldown"`
	}{
		DatabaseURL:             maskSecret(c.DatabaseURL),
		RedisAddr:               c.RedisAddr,
		HTTPAddr:                c.HTTPAddr,
		NotifyURL:               c.NotifyURL,
		NotifyTimeout:           c.NotifyTimeoutStr,
		NotifyToken:             maskToken(c.NotifyToken),
		NotifyBufferSize:        c.NotifyBufferSize,
		NotifyDrainTimeout:      c.NotifyDrainTimeoutStr,
		JWTSecret:               maskToken(c.JWTSecret),
		DBOpTimeout:             c.DBOpTimeoutStr,
		DBMaxOpenConns:          c.DBMaxOpenConns,
		DBMaxIdleConns:          c.DBMaxIdleConns,
		DBConnMaxLifetime:       c.DBConnMaxLifetimeStr,
		DBConnMaxIdleTime:       c.DBConnMaxIdleTimeStr,
		HTTPShutdownTimeout:     c.HTTPShutdownTimeoutStr,
		MetricsEnabled:          c.MetricsEnabled,
		MetricsPath:             c.MetricsPath,
		ResyncEnabled:           c.ResyncEnabled,
		ResyncInterval:          c.ResyncIntervalStr,
		ResyncDirectoryEvery:    c.ResyncDirectoryEvery,
		CORSAllowedOrigins:      c.CORSAllowedOrigins,
		CircuitBreakerThreshold: c.CircuitBreakerThreshold,
		CircuitBreakerCooldown:  c.CircuitBreakerCooldownStr,
	}
	return json.MarshalIndent(masked, "", "  ")
}

// maskSecret masks a secret value, preserving only the URI scheme if present.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	for _, scheme := range []string{"postgres://", "postgresql://"} {
		if strings.HasPrefix(s, scheme) {
			return scheme + "***"
		}
	}
	return "***"
}

// maskToken masks a credential entirely.
func maskToken(s string) string {
	if s == "" {
		return ""
	}
	return "***"
}
