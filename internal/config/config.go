package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds runtime configuration for the API and the worker.
type Config struct {
	AppEnv      string   `envconfig:"APP_ENV" default:"development"`
	Port        string   `envconfig:"PORT" default:"8080"`
	CORSOrigins []string `envconfig:"CORS_ORIGINS" default:"http://localhost:5173,http://127.0.0.1:5173"`

	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"console"`

	DB       DatabaseConfig
	JWT      JWTConfig
	Storage  StorageConfig
	Redis    RedisConfig
	SMTP     SMTPConfig
	Printing PrintingConfig
}

type DatabaseConfig struct {
	Host     string `envconfig:"DB_HOST" default:"localhost"`
	Port     string `envconfig:"DB_PORT" default:"5432"`
	User     string `envconfig:"DB_USER" default:"postgres"`
	Password string `envconfig:"DB_PASSWORD" default:"postgres"`
	Name     string `envconfig:"DB_NAME" default:"procurement"`
	SSLMode  string `envconfig:"DB_SSLMODE" default:"disable"`
	LogLevel string `envconfig:"DB_LOG_LEVEL" default:"warn"`
}

type JWTConfig struct {
	Secret    string        `envconfig:"JWT_SECRET"`
	AccessTTL time.Duration `envconfig:"JWT_ACCESS_TTL" default:"24h"`
}

// StorageConfig selects the file store. Driver is "local" or "s3".
type StorageConfig struct {
	Driver       string `envconfig:"STORAGE_DRIVER" default:"local"`
	LocalDir     string `envconfig:"STORAGE_LOCAL_DIR" default:"./uploads"`
	Endpoint     string `envconfig:"STORAGE_ENDPOINT"`
	Region       string `envconfig:"STORAGE_REGION" default:"us-east-1"`
	Bucket       string `envconfig:"STORAGE_BUCKET" default:"procurement"`
	AccessKey    string `envconfig:"STORAGE_ACCESS_KEY"`
	SecretKey    string `envconfig:"STORAGE_SECRET_KEY"`
	UsePathStyle bool   `envconfig:"STORAGE_USE_PATH_STYLE" default:"true"`
	UseSSL       bool   `envconfig:"STORAGE_USE_SSL" default:"false"`
}

type RedisConfig struct {
	Addr     string `envconfig:"REDIS_ADDR" default:"127.0.0.1:6379"`
	Password string `envconfig:"REDIS_PASSWORD"`
	DB       int    `envconfig:"REDIS_DB" default:"0"`
}

type SMTPConfig struct {
	Host     string `envconfig:"SMTP_HOST" default:"127.0.0.1"`
	Port     int    `envconfig:"SMTP_PORT" default:"1025"`
	Username string `envconfig:"SMTP_USERNAME"`
	Password string `envconfig:"SMTP_PASSWORD"`
	From     string `envconfig:"SMTP_FROM" default:"no-reply@procurement.local"`
}

type PrintingConfig struct {
	ChromeURL string        `envconfig:"CHROME_REMOTE_URL"`
	Timeout   time.Duration `envconfig:"PDF_TIMEOUT" default:"30s"`
	NoSandbox bool          `envconfig:"CHROME_NO_SANDBOX" default:"true"`
}

// Load reads configs/.env when present and then the process environment.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{"configs/.env"}
	}
	// missing env files are fine, the environment may already be populated
	_ = godotenv.Load(envFiles...)

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if cfg.JWT.Secret == "" {
		if cfg.IsProduction() {
			return nil, errors.New("JWT_SECRET is required in production")
		}
		cfg.JWT.Secret = "default_super_secret_key"
	}

	switch strings.ToLower(cfg.Storage.Driver) {
	case "local", "s3":
	default:
		return nil, fmt.Errorf("unsupported STORAGE_DRIVER %q", cfg.Storage.Driver)
	}

	return &cfg, nil
}

// DSN builds the postgres connection string.
func (c *Config) DSN() string {
	d := c.DB
	return "postgres://" + d.User + ":" + d.Password + "@" + d.Host + ":" + d.Port + "/" + d.Name + "?sslmode=" + d.SSLMode
}

// IsProduction returns true when the application runs in production.
func (c *Config) IsProduction() bool {
	return c != nil && c.AppEnv == "production"
}
