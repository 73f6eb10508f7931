package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
// ⭐ SSOT: every environment variable is read here and nowhere else
type Config struct {
	// Server
	Port       string
	Env        string // development, staging, production
	CORSOrigin string // allowed browser origin for the BFF API

	// Valuation backend (Model Engine / Data Provider)
	Engine EngineConfig

	// Redis (shared rate limit + theme preference)
	Redis RedisConfig

	// Session behaviour
	Session SessionConfig

	// Optional YAML valuation profile
	ProfilePath string

	// Logging
	LogLevel  string
	LogFormat string
}

// EngineConfig holds the external valuation backend configuration
type EngineConfig struct {
	BaseURL        string
	LoadTimeout    time.Duration // deadline for the app-data + historical pair
	CalcTimeout    time.Duration // deadline for a valuation request
	HealthSchedule string        // cron expression for the engine health check
	MaxRetries     int
	RateLimit      int // requests per second, 0 = unlimited
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Enabled  bool
}

// SessionConfig holds valuation session configuration
type SessionConfig struct {
	NoticeTTL time.Duration // how long a status notice stays visible
}

// Load reads configuration from environment variables
// ⭐ SSOT: the only function that calls os.Getenv()
func Load() (*Config, error) {
	loadEnvFile()

	cfg := &Config{
		// Server
		Port:       getEnv("PORT", "8080"),
		Env:        getEnv("ENV", "development"),
		CORSOrigin: getEnv("CORS_ORIGIN", "*"),

		Engine: EngineConfig{
			BaseURL:        getEnv("ENGINE_BASE_URL", "http://localhost:5000"),
			LoadTimeout:    getEnvAsDuration("ENGINE_LOAD_TIMEOUT", "15s"),
			CalcTimeout:    getEnvAsDuration("ENGINE_CALC_TIMEOUT", "30s"),
			HealthSchedule: getEnv("ENGINE_HEALTH_SCHEDULE", "@every 10m"),
			MaxRetries:     getEnvAsInt("ENGINE_MAX_RETRIES", 2),
			RateLimit:      getEnvAsInt("ENGINE_RATE_LIMIT", 5),
		},

		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Enabled:  getEnvAsBool("REDIS_ENABLED", false),
		},

		Session: SessionConfig{
			NoticeTTL: getEnvAsDuration("SESSION_NOTICE_TTL", "5s"),
		},

		ProfilePath: getEnv("VALUATION_PROFILE", ""),

		// Logging
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "console"),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// validate checks if required configuration values are set
func (c *Config) validate() error {
	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}

	u, err := url.Parse(c.Engine.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("ENGINE_BASE_URL must be an absolute URL, got %q", c.Engine.BaseURL)
	}

	if c.Engine.LoadTimeout <= 0 || c.Engine.CalcTimeout <= 0 {
		return fmt.Errorf("engine timeouts must be positive")
	}

	if c.Engine.MaxRetries < 0 {
		return fmt.Errorf("ENGINE_MAX_RETRIES must be >= 0")
	}

	return nil
}

// Helper functions (private, only used within this file)

// loadEnvFile tries to load .env from multiple locations
func loadEnvFile() {
	paths := []string{
		".env",
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
