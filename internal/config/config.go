// Package config loads runtime settings from config files, .env and the environment.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const defaultJWTSecret = "agora-dev-secret-change-me"

// Config holds application configuration values loaded from file or environment variables.
type Config struct {
	Env  string `mapstructure:"APP_ENV"`
	Port string `mapstructure:"PORT"`

	JWTSecret            string `mapstructure:"JWT_SECRET"`
	JWTIssuer            string `mapstructure:"JWT_ISSUER"`
	JWTAudience          string `mapstructure:"JWT_AUDIENCE"`
	AccessTokenTTLMins   int    `mapstructure:"ACCESS_TOKEN_TTL_MINUTES"`
	RefreshTokenTTLHours int    `mapstructure:"REFRESH_TOKEN_TTL_HOURS"`

	DBHost                   string `mapstructure:"DB_HOST"`
	DBPort                   string `mapstructure:"DB_PORT"`
	DBUser                   string `mapstructure:"DB_USER"`
	DBPassword               string `mapstructure:"DB_PASSWORD"`
	DBName                   string `mapstructure:"DB_NAME"`
	DBSSLMode                string `mapstructure:"DB_SSLMODE"`
	DBMaxOpenConns           int    `mapstructure:"DB_MAX_OPEN_CONNS"`
	DBMaxIdleConns           int    `mapstructure:"DB_MAX_IDLE_CONNS"`
	DBConnMaxLifetimeMinutes int    `mapstructure:"DB_CONN_MAX_LIFETIME_MINUTES"`
	DBSchemaMode             string `mapstructure:"DB_SCHEMA_MODE"`

	RedisURL string `mapstructure:"REDIS_URL"`

	AllowedOrigins string `mapstructure:"ALLOWED_ORIGINS"`
	FeatureFlags   string `mapstructure:"FEATURE_FLAGS"`

	MediaBackend      string `mapstructure:"MEDIA_BACKEND"`
	MediaDir          string `mapstructure:"MEDIA_DIR"`
	MediaBaseURL      string `mapstructure:"MEDIA_BASE_URL"`
	MediaMaxUploadMB  int    `mapstructure:"MEDIA_MAX_UPLOAD_MB"`
	S3Endpoint        string `mapstructure:"S3_ENDPOINT"`
	S3Region          string `mapstructure:"S3_REGION"`
	S3Bucket          string `mapstructure:"S3_BUCKET"`
	S3AccessKeyID     string `mapstructure:"S3_ACCESS_KEY_ID"`
	S3SecretAccessKey string `mapstructure:"S3_SECRET_ACCESS_KEY"`
	S3UsePathStyle    bool   `mapstructure:"S3_USE_PATH_STYLE"`

	TracingEnabled  bool    `mapstructure:"TRACING_ENABLED"`
	TracingExporter string  `mapstructure:"TRACING_EXPORTER"`
	OTLPEndpoint    string  `mapstructure:"OTLP_ENDPOINT"`
	TraceSampleRate float64 `mapstructure:"TRACE_SAMPLE_RATE"`

	DevBootstrapStaff bool   `mapstructure:"DEV_BOOTSTRAP_STAFF"`
	DevStaffUsername  string `mapstructure:"DEV_STAFF_USERNAME"`
	DevStaffPassword  string `mapstructure:"DEV_STAFF_PASSWORD"`
}

var keys = []string{
	"APP_ENV", "PORT",
	"JWT_SECRET", "JWT_ISSUER", "JWT_AUDIENCE", "ACCESS_TOKEN_TTL_MINUTES", "REFRESH_TOKEN_TTL_HOURS",
	"DB_HOST", "DB_PORT", "DB_USER", "DB_PASSWORD", "DB_NAME", "DB_SSLMODE",
	"DB_MAX_OPEN_CONNS", "DB_MAX_IDLE_CONNS", "DB_CONN_MAX_LIFETIME_MINUTES", "DB_SCHEMA_MODE",
	"REDIS_URL", "ALLOWED_ORIGINS", "FEATURE_FLAGS",
	"MEDIA_BACKEND", "MEDIA_DIR", "MEDIA_BASE_URL", "MEDIA_MAX_UPLOAD_MB",
	"S3_ENDPOINT", "S3_REGION", "S3_BUCKET", "S3_ACCESS_KEY_ID", "S3_SECRET_ACCESS_KEY", "S3_USE_PATH_STYLE",
	"TRACING_ENABLED", "TRACING_EXPORTER", "OTLP_ENDPOINT", "TRACE_SAMPLE_RATE",
	"DEV_BOOTSTRAP_STAFF", "DEV_STAFF_USERNAME", "DEV_STAFF_PASSWORD",
}

// LoadConfig loads application configuration from file and environment variables.
func LoadConfig() (*Config, error) {
	// .env is optional; real environment variables win.
	_ = godotenv.Load()

	v := viper.New()
	v.AddConfigPath(".")
	v.AddConfigPath("..")
	v.AddConfigPath("../..")
	v.SetConfigName("config")
	v.SetConfigType("yml")
	v.AutomaticEnv()
	for _, k := range keys {
		_ = v.BindEnv(k)
	}

	// The base file is optional.
	_ = v.ReadInConfig()

	env := strings.ToLower(strings.TrimSpace(v.GetString("APP_ENV")))
	if env == "" {
		env = "development"
	}
	if env != "development" && env != "test" {
		v.SetConfigName("config." + env)
		if err := v.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("required profile-specific config 'config.%s.yml' not found: %w", env, err)
		}
		slog.Info("loaded profile-specific configuration", "file", "config."+env+".yml")
	}

	setDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("PORT", "8000")
	v.SetDefault("JWT_SECRET", defaultJWTSecret)
	v.SetDefault("JWT_ISSUER", "agora-api")
	v.SetDefault("JWT_AUDIENCE", "agora-client")
	v.SetDefault("ACCESS_TOKEN_TTL_MINUTES", 60)
	v.SetDefault("REFRESH_TOKEN_TTL_HOURS", 24*7)
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_USER", "agora")
	v.SetDefault("DB_PASSWORD", "password")
	v.SetDefault("DB_NAME", "agora")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 50)
	v.SetDefault("DB_MAX_IDLE_CONNS", 10)
	v.SetDefault("DB_CONN_MAX_LIFETIME_MINUTES", 30)
	v.SetDefault("DB_SCHEMA_MODE", "hybrid")
	v.SetDefault("REDIS_URL", "localhost:6379")
	v.SetDefault("ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:5173")
	v.SetDefault("FEATURE_FLAGS", "")
	v.SetDefault("MEDIA_BACKEND", "local")
	v.SetDefault("MEDIA_DIR", "./media")
	v.SetDefault("MEDIA_BASE_URL", "/media")
	v.SetDefault("MEDIA_MAX_UPLOAD_MB", 10)
	v.SetDefault("S3_REGION", "us-east-1")
	v.SetDefault("S3_USE_PATH_STYLE", true)
	v.SetDefault("TRACING_EXPORTER", "stdout")
	v.SetDefault("TRACE_SAMPLE_RATE", 1.0)
	v.SetDefault("DEV_STAFF_USERNAME", "admin")
}

func (c *Config) normalize() {
	c.Env = strings.ToLower(strings.TrimSpace(c.Env))
	c.DBSSLMode = strings.ToLower(strings.TrimSpace(c.DBSSLMode))
	c.DBSchemaMode = strings.ToLower(strings.TrimSpace(c.DBSchemaMode))
	c.MediaBackend = strings.ToLower(strings.TrimSpace(c.MediaBackend))
	c.TracingExporter = strings.ToLower(strings.TrimSpace(c.TracingExporter))
}

// IsProduction reports whether the app runs with a production profile.
func (c *Config) IsProduction() bool {
	return c.Env == "production" || c.Env == "prod"
}

// Validate ensures that required configuration values are present and meet security standards.
func (c *Config) Validate() error {
	if c.Port == "" {
		return errors.New("PORT is required")
	}
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	if c.MediaMaxUploadMB <= 0 {
		return errors.New("MEDIA_MAX_UPLOAD_MB must be positive")
	}
	switch c.MediaBackend {
	case "", "local":
	case "s3":
		if c.S3Bucket == "" {
			return errors.New("S3_BUCKET is required when MEDIA_BACKEND=s3")
		}
	default:
		return fmt.Errorf("unknown MEDIA_BACKEND %q", c.MediaBackend)
	}
	switch c.DBSchemaMode {
	case "", "hybrid", "sql", "auto":
	default:
		return fmt.Errorf("unknown DB_SCHEMA_MODE %q", c.DBSchemaMode)
	}

	if c.IsProduction() {
		if c.JWTSecret == defaultJWTSecret {
			return errors.New("JWT_SECRET must be changed from the default value in production")
		}
		if len(c.JWTSecret) < 32 {
			return errors.New("JWT_SECRET must be at least 32 characters in production")
		}
		if c.DBPassword == "password" || c.DBPassword == "" {
			return errors.New("a strong DB_PASSWORD is required in production")
		}
		if c.DBSSLMode == "disable" || c.DBSSLMode == "" {
			return errors.New("DB_SSLMODE must enable TLS in production")
		}
		if c.AllowedOrigins == "*" {
			slog.Warn("ALLOWED_ORIGINS is set to '*' in production")
		}
		if c.DevBootstrapStaff {
			return errors.New("DEV_BOOTSTRAP_STAFF cannot be enabled in production")
		}
	} else if len(c.JWTSecret) < 32 {
		slog.Warn("JWT_SECRET is shorter than 32 characters")
	}

	return nil
}
