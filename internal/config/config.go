package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

func init() {
	// Load .env file if it exists (silent fail if not)
	_ = godotenv.Load()
}

// Config holds all application configuration loaded from environment variables.
type Config struct {
	Server   ServerConfig
	App      AppConfig
	Auth     AuthConfig
	Cache    CacheConfig
	CartDB   CartDBConfig
	Database DatabaseConfig
	Sync     SyncConfig
	Client   ClientConfig
	Tracing  TracingConfig
	Cleanup  CleanupConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `envconfig:"SERVER_HOST" default:"0.0.0.0"`
	Port            int           `envconfig:"SERVER_PORT" default:"8080"`
	ReadTimeout     time.Duration `envconfig:"SERVER_READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `envconfig:"SERVER_WRITE_TIMEOUT" default:"30s"`
	ShutdownTimeout time.Duration `envconfig:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`
	// Comma separated list of allowed CORS origins.
	AllowedOrigins string `envconfig:"SERVER_ALLOWED_ORIGINS" default:"*"`
}

// AppConfig holds application-level settings.
type AppConfig struct {
	Name        string `envconfig:"APP_NAME" default:"wpcom-shopping-cart"`
	Environment string `envconfig:"APP_ENV" default:"development"`
	Debug       bool   `envconfig:"APP_DEBUG" default:"false"`
	Version     string `envconfig:"APP_VERSION" default:"1.0.0"`
}

// AuthConfig holds bearer tokens accepted by the cart endpoint.
type AuthConfig struct {
	Tokens   string `envconfig:"AUTH_TOKENS" default:""` // comma separated; empty disables auth
	AdminKey string `envconfig:"ADMIN_KEY" default:""`
}

// CacheConfig holds cart snapshot cache settings.
type CacheConfig struct {
	Type string        `envconfig:"CACHE_TYPE" default:"memory"` // memory or redis
	TTL  time.Duration `envconfig:"CACHE_TTL" default:"5m"`

	RedisHost     string `envconfig:"REDIS_HOST" default:"localhost"`
	RedisPort     int    `envconfig:"REDIS_PORT" default:"6379"`
	RedisPassword string `envconfig:"REDIS_PASSWORD" default:""`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`
	RedisPrefix   string `envconfig:"REDIS_PREFIX" default:"wpcom:cart"`
}

// CartDBConfig selects and configures the cart store.
type CartDBConfig struct {
	Type string `envconfig:"CART_DB_TYPE" default:"sqlite"` // sqlite, postgres or mysql
	Path string `envconfig:"CART_DB_PATH" default:"./data/carts.db"`
	// PostgreSQL settings
	Host     string `envconfig:"CART_DB_HOST" default:"localhost"`
	Port     int    `envconfig:"CART_DB_PORT" default:"5432"`
	Name     string `envconfig:"CART_DB_NAME" default:"shopping_cart"`
	User     string `envconfig:"CART_DB_USER" default:"postgres"`
	Password string `envconfig:"CART_DB_PASS" default:""`
	SSLMode  string `envconfig:"CART_DB_SSLMODE" default:"disable"`
}

// DatabaseConfig holds MySQL connection settings, used when CART_DB_TYPE=mysql.
type DatabaseConfig struct {
	Host     string `envconfig:"DB_HOST" default:"localhost"`
	Port     int    `envconfig:"DB_PORT" default:"3306"`
	Name     string `envconfig:"DB_NAME" default:"shopping_cart"`
	User     string `envconfig:"DB_USER" default:"root"`
	Password string `envconfig:"DB_PASS" default:""`
}

// SyncConfig holds cart sync library settings.
type SyncConfig struct {
	RefetchOnWindowFocus bool          `envconfig:"SYNC_REFETCH_ON_FOCUS" default:"true"`
	FreshnessThreshold   time.Duration `envconfig:"SYNC_FRESHNESS_THRESHOLD" default:"5s"`
	RequestTimeout       time.Duration `envconfig:"SYNC_REQUEST_TIMEOUT" default:"30s"`
}

// ClientConfig holds settings for talking to a cart endpoint.
type ClientConfig struct {
	BaseURL string        `envconfig:"CART_API_URL" default:"http://localhost:8080/rest/v1.1"`
	Token   string        `envconfig:"CART_API_TOKEN" default:""`
	Timeout time.Duration `envconfig:"CART_API_TIMEOUT" default:"15s"`
}

// TracingConfig holds OpenTelemetry exporter settings.
type TracingConfig struct {
	Enabled  bool    `envconfig:"TRACING_ENABLED" default:"false"`
	Endpoint string  `envconfig:"OTEL_EXPORTER_OTLP_ENDPOINT" default:"localhost:4317"`
	Insecure bool    `envconfig:"OTEL_EXPORTER_OTLP_INSECURE" default:"true"`
	Ratio    float64 `envconfig:"TRACING_SAMPLE_RATIO" default:"1"`
}

// CleanupConfig holds abandoned cart cleanup settings.
type CleanupConfig struct {
	Enabled   bool          `envconfig:"CLEANUP_ENABLED" default:"true"`
	Interval  time.Duration `envconfig:"CLEANUP_INTERVAL" default:"1h"`
	MaxIdle   time.Duration `envconfig:"CLEANUP_MAX_IDLE" default:"720h"`
	BatchSize int           `envconfig:"CLEANUP_BATCH_SIZE" default:"500"`
}

// PostgresDSN returns the PostgreSQL connection string.
func (c *CartDBConfig) PostgresDSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Name, c.SSLMode)
}

// Address returns the server address in host:port format.
func (s *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// Origins splits AllowedOrigins into a list.
func (s *ServerConfig) Origins() []string {
	return splitList(s.AllowedOrigins)
}

// TokenList splits Tokens into a list.
func (a *AuthConfig) TokenList() []string {
	return splitList(a.Tokens)
}

// RedisAddress returns the Redis address in host:port format.
func (c *CacheConfig) RedisAddress() string {
	return fmt.Sprintf("%s:%d", c.RedisHost, c.RedisPort)
}

// DSN returns the MySQL data source name.
func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true",
		d.User, d.Password, d.Host, d.Port, d.Name)
}

// IsDevelopment returns true if running in development mode.
func (a *AppConfig) IsDevelopment() bool {
	return a.Environment == "development"
}

// IsProduction returns true if running in production mode.
func (a *AppConfig) IsProduction() bool {
	return a.Environment == "production"
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Validate checks option values envconfig cannot express.
func (c *Config) Validate() error {
	switch c.CartDB.Type {
	case "sqlite", "postgres", "mysql":
	default:
		return fmt.Errorf("unsupported CART_DB_TYPE %q", c.CartDB.Type)
	}
	switch c.Cache.Type {
	case "memory", "redis":
	default:
		return fmt.Errorf("unsupported CACHE_TYPE %q", c.Cache.Type)
	}
	if c.Tracing.Ratio < 0 || c.Tracing.Ratio > 1 {
		return fmt.Errorf("TRACING_SAMPLE_RATIO must be between 0 and 1, got %v", c.Tracing.Ratio)
	}
	return nil
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config

	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return &cfg, nil
}

// MustLoad loads configuration or panics on error.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}
