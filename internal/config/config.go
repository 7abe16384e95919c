package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// ErrMissingAPIKey is returned when the LLM credential is not configured.
var ErrMissingAPIKey = errors.New("OPENAI_API_KEY is required")

// Config holds all configuration for the application
type Config struct {
	App        AppConfig
	PostgreSQL PostgreSQLConfig
	Server     ServerConfig
	Search     SearchConfig
	Session    SessionConfig
	Redis      RedisConfig
	Logging    LoggingConfig
	OpenAI     OpenAIConfig

	// Warnings lists malformed variables that fell back to their default.
	Warnings []string
}

// AppConfig holds application identity settings
type AppConfig struct {
	Name  string
	Debug bool
}

// PostgreSQLConfig holds PostgreSQL database configuration
type PostgreSQLConfig struct {
	DSN                string // full connection string, takes precedence over the parts below
	Host               string
	Port               int
	User               string
	Password           string
	Database           string
	SSLMode            string
	MaxConnections     int
	MaxIdleConnections int
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port           int
	Host           string
	GinMode        string
	AllowedOrigins []string
	StaticDir      string
}

// SearchConfig holds search-related configuration
type SearchConfig struct {
	MaxResults         int
	Timeout            time.Duration
	MaxOptionalFilters int
}

// SessionConfig selects the conversation state backend
type SessionConfig struct {
	Backend string // "memory" or "redis"
}

// RedisConfig holds Redis connection settings for the redis session backend
type RedisConfig struct {
	Address   string
	Password  string
	DB        int
	KeyPrefix string
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string
}

// OpenAIConfig holds the extraction LLM configuration
type OpenAIConfig struct {
	APIKey      string
	APIBase     string
	Model       string
	Temperature float64
	Timeout     time.Duration
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Try to load .env file (optional)
	_ = godotenv.Load()

	env := &envReader{}
	debug := env.Bool("DEBUG", false)

	cfg := &Config{
		App: AppConfig{
			Name:  getEnv("APP_NAME", "SQL Agent"),
			Debug: debug,
		},
		PostgreSQL: PostgreSQLConfig{
			DSN:                getEnv("DATABASE_URL", getEnv("PG_DSN", "")),
			Host:               getEnv("PG_HOST", "localhost"),
			Port:               env.Int("PG_PORT", 5432),
			User:               getEnv("PG_USER", "postgres"),
			Password:           getEnv("PG_PASSWORD", ""),
			Database:           getEnv("PG_DATABASE", "property_infrastructure"),
			SSLMode:            getEnv("PG_SSLMODE", "disable"),
			MaxConnections:     env.Int("PG_MAX_CONNECTIONS", 10),
			MaxIdleConnections: env.Int("PG_MAX_IDLE_CONNECTIONS", 5),
		},
		Server: ServerConfig{
			Port:           env.Int("SERVER_PORT", 8000),
			Host:           getEnv("SERVER_HOST", "0.0.0.0"),
			GinMode:        ginMode(debug),
			AllowedOrigins: splitList(getEnv("CORS_ALLOWED_ORIGINS", "*")),
			StaticDir:      getEnv("STATIC_DIR", "./frontend"),
		},
		Search: SearchConfig{
			MaxResults:         env.Int("MAX_RESULTS", 5),
			Timeout:            time.Duration(env.Int("SEARCH_TIMEOUT", 10)) * time.Second,
			MaxOptionalFilters: env.Int("MAX_OPTIONAL_FILTERS", 3),
		},
		Session: SessionConfig{
			Backend: strings.ToLower(getEnv("SESSION_BACKEND", "memory")),
		},
		Redis: RedisConfig{
			Address:   getEnv("REDIS_ADDR", "localhost:6379"),
			Password:  getEnv("REDIS_PASSWORD", ""),
			DB:        env.Int("REDIS_DB", 0),
			KeyPrefix: getEnv("REDIS_KEY_PREFIX", "agent:"),
		},
		Logging: LoggingConfig{
			Level:  logLevel(debug),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		OpenAI: OpenAIConfig{
			APIKey:      getEnv("OPENAI_API_KEY", ""),
			APIBase:     strings.TrimRight(getEnv("OPENAI_API_BASE", "https://api.openai.com/v1"), "/"),
			Model:       getEnv("LLM_MODEL", "gpt-4o-mini"),
			Temperature: env.Float("LLM_TEMPERATURE", 0.0),
			Timeout:     time.Duration(env.Int("OPENAI_TIMEOUT", 30)) * time.Second,
		},
	}
	cfg.Warnings = env.warnings

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the service cannot start with
func (c *Config) Validate() error {
	if c.OpenAI.APIKey == "" {
		return ErrMissingAPIKey
	}
	switch c.Session.Backend {
	case "memory", "redis":
	default:
		return fmt.Errorf("unsupported SESSION_BACKEND %q (expected memory or redis)", c.Session.Backend)
	}
	if c.Search.MaxResults <= 0 {
		return fmt.Errorf("MAX_RESULTS must be positive, got %d", c.Search.MaxResults)
	}
	return nil
}

// GetPostgreSQLDSN returns PostgreSQL connection string
func (c *Config) GetPostgreSQLDSN() string {
	if c.PostgreSQL.DSN != "" {
		return c.PostgreSQL.DSN
	}

	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.PostgreSQL.Host,
		c.PostgreSQL.Port,
		c.PostgreSQL.User,
		c.PostgreSQL.Password,
		c.PostgreSQL.Database,
		c.PostgreSQL.SSLMode,
	)
}

// Helper functions

func ginMode(debug bool) string {
	if debug {
		return "debug"
	}
	return getEnv("GIN_MODE", "release")
}

func logLevel(debug bool) string {
	if debug {
		return "debug"
	}
	return getEnv("LOG_LEVEL", "info")
}

func splitList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// envReader parses typed variables and remembers the ones it had to ignore
type envReader struct {
	warnings []string
}

func (r *envReader) invalid(key, kind string, defaultValue any) {
	r.warnings = append(r.warnings, fmt.Sprintf("invalid %s value for %s, using default %v", kind, key, defaultValue))
}

func (r *envReader) Int(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		r.invalid(key, "integer", defaultValue)
		return defaultValue
	}
	return value
}

func (r *envReader) Float(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		r.invalid(key, "float", defaultValue)
		return defaultValue
	}
	return value
}

func (r *envReader) Bool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		r.invalid(key, "boolean", defaultValue)
		return defaultValue
	}
	return value
}
