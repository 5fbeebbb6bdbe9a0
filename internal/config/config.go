// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvProduction hides internal error details from API consumers.
const EnvProduction = "production"

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	App         AppConfig         `mapstructure:"app"`
	Server      ServerConfig      `mapstructure:"server"`
	Auth        AuthConfig        `mapstructure:"auth"`
	Logging     LoggingConfig     `mapstructure:"logging"`
	Naver       NaverConfig       `mapstructure:"naver"`
	GoogleBooks GoogleBooksConfig `mapstructure:"google_books"`
	Catalog     CatalogConfig     `mapstructure:"catalog"`
	Vision      VisionConfig      `mapstructure:"vision"`
	Upload      UploadConfig      `mapstructure:"upload"`
	DB          DBConfig          `mapstructure:"db"`
	PubSub      PubSubConfig      `mapstructure:"pubsub"`
}

// AppConfig selects the environment mode.
type AppConfig struct {
	Env string `mapstructure:"env"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port                  int `mapstructure:"port"`
	RequestTimeoutSeconds int `mapstructure:"request_timeout_seconds"`
}

// AuthConfig defines API authentication toggles for administrative routes.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// NaverConfig configures the primary catalog.
type NaverConfig struct {
	ClientID       string `mapstructure:"client_id"`
	ClientSecret   string `mapstructure:"client_secret"`
	BaseURL        string `mapstructure:"base_url"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// GoogleBooksConfig configures the fallback catalog and its retry budget.
type GoogleBooksConfig struct {
	APIKey         string `mapstructure:"api_key"`
	BaseURL        string `mapstructure:"base_url"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	Language       string `mapstructure:"language"`
	MaxAttempts    int    `mapstructure:"max_attempts"`
	RetryDelayMs   int    `mapstructure:"retry_delay_ms"`
}

// CatalogConfig holds settings shared by both catalog clients.
type CatalogConfig struct {
	RateLimitRPS    float64 `mapstructure:"rate_limit_rps"`
	RateLimitBurst  int     `mapstructure:"rate_limit_burst"`
	CacheTTLSeconds int     `mapstructure:"cache_ttl_seconds"`
}

// VisionConfig configures the shelf photo extractor.
type VisionConfig struct {
	APIKey         string `mapstructure:"api_key"`
	Model          string `mapstructure:"model"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// UploadConfig sets where shelf photos are kept and how large they may be.
type UploadConfig struct {
	Backend   string `mapstructure:"backend"`
	Dir       string `mapstructure:"dir"`
	GCSBucket string `mapstructure:"gcs_bucket"`
	MaxBytes  int64  `mapstructure:"max_bytes"`
}

// DBConfig controls access to the inventory database.
type DBConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// PubSubConfig holds metadata for batch notifications.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// legacyEnv maps keys to the environment names used by earlier deployments.
var legacyEnv = map[string]string{
	"app.env":                   "APP_ENV",
	"naver.client_id":           "NAVER_CLIENT_ID",
	"naver.client_secret":       "NAVER_CLIENT_SECRET",
	"google_books.api_key":      "GOOGLE_BOOKS_API_KEY",
	"vision.api_key":            "GEMINI_API_KEY",
	"db.dsn":                    "DATABASE_URL",
	"logging.level":             "LOG_LEVEL",
	"pubsub.project_id":         "GOOGLE_CLOUD_PROJECT",
	"upload.gcs_bucket":         "UPLOAD_GCS_BUCKET",
	"server.port":               "PORT",
	"google_books.max_attempts": "GOOGLE_BOOKS_MAX_ATTEMPTS",
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SHELFSCAN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	for key, legacy := range legacyEnv {
		prefixed := "SHELFSCAN_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, prefixed, legacy); err != nil {
			return Config{}, fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.env", "development")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.request_timeout_seconds", 180)
	v.SetDefault("auth.enabled", false)
	v.SetDefault("auth.api_key", "")
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "")
	v.SetDefault("naver.client_id", "")
	v.SetDefault("naver.client_secret", "")
	v.SetDefault("naver.base_url", "https://openapi.naver.com")
	v.SetDefault("naver.timeout_seconds", 10)
	v.SetDefault("google_books.api_key", "")
	v.SetDefault("google_books.base_url", "https://www.googleapis.com/books/v1")
	v.SetDefault("google_books.timeout_seconds", 30)
	v.SetDefault("google_books.language", "ko")
	v.SetDefault("google_books.max_attempts", 2)
	v.SetDefault("google_books.retry_delay_ms", 1000)
	v.SetDefault("catalog.rate_limit_rps", 0)
	v.SetDefault("catalog.rate_limit_burst", 1)
	v.SetDefault("catalog.cache_ttl_seconds", 0)
	v.SetDefault("vision.api_key", "")
	v.SetDefault("vision.model", "gemini-2.0-flash")
	v.SetDefault("vision.timeout_seconds", 60)
	v.SetDefault("upload.backend", "local")
	v.SetDefault("upload.dir", "uploads")
	v.SetDefault("upload.gcs_bucket", "")
	v.SetDefault("upload.max_bytes", 10*1024*1024)
	v.SetDefault("db.dsn", "")
	v.SetDefault("db.max_conns", 8)
	v.SetDefault("db.min_conns", 0)
	v.SetDefault("db.max_conn_lifetime", "30m")
	v.SetDefault("db.auto_migrate", false)
	v.SetDefault("pubsub.project_id", "")
	v.SetDefault("pubsub.topic_name", "")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Server.RequestTimeoutSeconds <= 0 {
		return fmt.Errorf("server.request_timeout_seconds must be > 0")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	if c.Naver.TimeoutSeconds <= 0 {
		return fmt.Errorf("naver.timeout_seconds must be > 0")
	}
	if c.GoogleBooks.TimeoutSeconds <= 0 {
		return fmt.Errorf("google_books.timeout_seconds must be > 0")
	}
	if c.GoogleBooks.MaxAttempts <= 0 {
		return fmt.Errorf("google_books.max_attempts must be > 0")
	}
	if c.GoogleBooks.RetryDelayMs < 0 {
		return fmt.Errorf("google_books.retry_delay_ms must be >= 0")
	}
	if c.Vision.TimeoutSeconds <= 0 {
		return fmt.Errorf("vision.timeout_seconds must be > 0")
	}
	if c.Upload.MaxBytes <= 0 {
		return fmt.Errorf("upload.max_bytes must be > 0")
	}
	switch c.Upload.Backend {
	case "local":
		if strings.TrimSpace(c.Upload.Dir) == "" {
			return fmt.Errorf("upload.dir is required for the local backend")
		}
	case "gcs":
		if c.Upload.GCSBucket == "" {
			return fmt.Errorf("upload.gcs_bucket is required for the gcs backend")
		}
	default:
		return fmt.Errorf("upload.backend must be local or gcs, got %q", c.Upload.Backend)
	}
	return nil
}

// IsProduction reports whether error details must be hidden from callers.
func (c Config) IsProduction() bool {
	return strings.EqualFold(c.App.Env, EnvProduction)
}

// NaverTimeout returns the per-request timeout of the primary catalog.
func (c Config) NaverTimeout() time.Duration {
	return time.Duration(c.Naver.TimeoutSeconds) * time.Second
}

// GoogleBooksTimeout returns the per-attempt timeout of the fallback catalog.
func (c Config) GoogleBooksTimeout() time.Duration {
	return time.Duration(c.GoogleBooks.TimeoutSeconds) * time.Second
}

// RetryDelay returns the fixed pause between fallback catalog attempts.
func (c Config) RetryDelay() time.Duration {
	return time.Duration(c.GoogleBooks.RetryDelayMs) * time.Millisecond
}

// VisionTimeout bounds one extraction call.
func (c Config) VisionTimeout() time.Duration {
	return time.Duration(c.Vision.TimeoutSeconds) * time.Second
}

// RequestTimeout bounds one API request end to end.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.Server.RequestTimeoutSeconds) * time.Second
}

// CacheTTL returns the catalog lookup cache lifetime; zero disables caching.
func (c Config) CacheTTL() time.Duration {
	return time.Duration(c.Catalog.CacheTTLSeconds) * time.Second
}
