package config

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/upb/jaffa-explorer/session"
)

// Session store backends.
const (
	StoreMemory = "memory"
	StoreFile   = "file"
	StoreSQL    = "sql"
	StoreRedis  = "redis"
)

// DefaultDevSecret signs dev backend tokens when DEV_JWT_SECRET is unset.
const DefaultDevSecret = "jaffa-dev-secret-change-me"

// Config represents the complete application configuration
type Config struct {
	API           APIConfig
	Session       SessionConfig
	DevBackend    DevBackendConfig
	Observability ObservabilityConfig
	Environment   string
}

// APIConfig holds the backend connection settings
type APIConfig struct {
	BaseURL    string
	Timeout    time.Duration
	Precedence session.Precedence
}

// SessionConfig selects and configures the credential store
type SessionConfig struct {
	Store string // memory, file, sql or redis
	File  string
	SQL   DatabaseConfig
	Redis RedisConfig
	Watch bool // follow changes made by other processes
}

// DatabaseConfig holds the SQL session store configuration.
type DatabaseConfig struct {
	Driver          string // sqlite or postgres
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// RedisConfig holds the Redis session store configuration
type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	Namespace string
}

// DevBackendConfig configures the local stub of the REST backend
type DevBackendConfig struct {
	Host            string
	Port            int
	JWTSecret       string
	SeedPassword    string
	AccessTTL       time.Duration
	RefreshTTL      time.Duration
	AllowedOrigins  []string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// ObservabilityConfig holds monitoring and logging configuration
type ObservabilityConfig struct {
	LogLevel       string
	LogFormat      string // json or console
	MetricsEnabled bool
}

// New creates a new Config instance by loading environment variables
func New(ctx context.Context) (*Config, error) {
	_ = godotenv.Load(".env")

	precedence, err := session.ParsePrecedence(getEnv("SESSION_PRECEDENCE", "visitor-first"))
	if err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	cfg := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		API: APIConfig{
			BaseURL:    getEnv("API_BASE_URL", "http://localhost:8000/api/"),
			Timeout:    getEnvAsDuration("API_TIMEOUT", 30*time.Second),
			Precedence: precedence,
		},
		Session: SessionConfig{
			Store: strings.ToLower(getEnv("SESSION_STORE", StoreFile)),
			File:  getEnv("SESSION_FILE", defaultSessionFile()),
			SQL: DatabaseConfig{
				Driver:          strings.ToLower(getEnv("SESSION_SQL_DRIVER", "sqlite")),
				DSN:             getEnv("SESSION_SQL_DSN", ""),
				MaxOpenConns:    getEnvAsInt("SESSION_SQL_MAX_OPEN_CONNS", 5),
				MaxIdleConns:    getEnvAsInt("SESSION_SQL_MAX_IDLE_CONNS", 2),
				ConnMaxLifetime: getEnvAsDuration("SESSION_SQL_CONN_MAX_LIFETIME", 5*time.Minute),
			},
			Redis: RedisConfig{
				Addr:      getEnv("REDIS_ADDR", ""),
				Password:  getEnv("REDIS_PASSWORD", ""),
				DB:        getEnvAsInt("REDIS_DB", 0),
				Namespace: getEnv("REDIS_NAMESPACE", "jaffa"),
			},
			Watch: getEnvAsBool("SESSION_WATCH", true),
		},
		DevBackend: loadDevBackendConfig(),
		Observability: ObservabilityConfig{
			LogLevel:       getEnv("LOG_LEVEL", "info"),
			LogFormat:      getEnv("LOG_FORMAT", "json"),
			MetricsEnabled: getEnvAsBool("METRICS_ENABLED", false),
		},
	}

	// Validate the configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks if all required configuration fields are set
func (c *Config) Validate() error {
	u, err := url.Parse(c.API.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("API_BASE_URL must be an absolute http(s) URL, got %q", c.API.BaseURL)
	}
	if c.API.Timeout <= 0 {
		return fmt.Errorf("API_TIMEOUT must be positive")
	}
	if len(c.API.Precedence) != len(session.Roles) {
		return fmt.Errorf("session precedence must name every role")
	}

	switch c.Session.Store {
	case StoreMemory:
	case StoreFile:
		if c.Session.File == "" {
			return fmt.Errorf("SESSION_FILE is required for the file store")
		}
	case StoreSQL:
		if c.Session.SQL.Driver != session.DialectSQLite && c.Session.SQL.Driver != session.DialectPostgres {
			return fmt.Errorf("SESSION_SQL_DRIVER must be sqlite or postgres, got %q", c.Session.SQL.Driver)
		}
		if c.Session.SQL.DSN == "" {
			return fmt.Errorf("SESSION_SQL_DSN is required for the sql store")
		}
	case StoreRedis:
		if c.Session.Redis.Addr == "" {
			return fmt.Errorf("REDIS_ADDR is required for the redis store")
		}
	default:
		return fmt.Errorf("unknown SESSION_STORE %q", c.Session.Store)
	}

	// Observability validation
	if c.Observability.LogLevel == "" {
		return fmt.Errorf("log level is required")
	}

	return nil
}

// ValidateDevBackend checks settings only the stub backend needs.
func (c *Config) ValidateDevBackend() error {
	if c.DevBackend.AccessTTL <= 0 || c.DevBackend.RefreshTTL <= 0 {
		return fmt.Errorf("DEV_ACCESS_TTL and DEV_REFRESH_TTL must be positive")
	}
	if c.DevBackend.RefreshTTL < c.DevBackend.AccessTTL {
		return fmt.Errorf("DEV_REFRESH_TTL must not be shorter than DEV_ACCESS_TTL")
	}
	if c.IsProduction() && c.DevBackend.JWTSecret == DefaultDevSecret {
		return fmt.Errorf("DEV_JWT_SECRET must be set in production")
	}
	return nil
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.Environment == "production" || c.Environment == "prod"
}

// IsDevelopment returns true if running in development environment
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development" || c.Environment == "dev"
}

// LogString returns a safe string for logging (no password).
func (c *DatabaseConfig) LogString() string {
	if c.Driver == session.DialectSQLite {
		return fmt.Sprintf("driver=sqlite path=%s", c.DSN)
	}
	u, err := url.Parse(c.DSN)
	if err == nil && u.Host != "" {
		host := u.Hostname()
		port := u.Port()
		if port == "" {
			port = "5432"
		}
		db := strings.TrimPrefix(u.Path, "/")
		return fmt.Sprintf("driver=postgres host=%s port=%s database=%s", host, port, db)
	}
	return "driver=postgres host=<from SESSION_SQL_DSN>"
}

// Address returns the dev backend listen address
func (c *DevBackendConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func loadDevBackendConfig() DevBackendConfig {
	origins := []string{"http://localhost:3000", "http://localhost:5173"}
	if raw := getEnv("DEV_ALLOWED_ORIGINS", ""); raw != "" {
		origins = nil
		for _, o := range strings.Split(raw, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
	}
	return DevBackendConfig{
		Host:            getEnv("DEV_BACKEND_HOST", "127.0.0.1"),
		Port:            getEnvAsInt("DEV_BACKEND_PORT", 8000),
		JWTSecret:       getEnv("DEV_JWT_SECRET", DefaultDevSecret),
		SeedPassword:    getEnv("DEV_SEED_PASSWORD", "jaffa-explorer"),
		AccessTTL:       getEnvAsDuration("DEV_ACCESS_TTL", 5*time.Minute),
		RefreshTTL:      getEnvAsDuration("DEV_REFRESH_TTL", 24*time.Hour),
		AllowedOrigins:  origins,
		ReadTimeout:     getEnvAsDuration("DEV_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getEnvAsDuration("DEV_WRITE_TIMEOUT", 15*time.Second),
		ShutdownTimeout: getEnvAsDuration("DEV_SHUTDOWN_TIMEOUT", 5*time.Second),
	}
}

// Helper functions

// defaultSessionFile is $HOME/.jaffa/session.json, or a relative path when
// the home directory is unknown.
func defaultSessionFile() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return filepath.Join(".jaffa", "session.json")
	}
	return filepath.Join(home, ".jaffa", "session.json")
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

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
