// Package config loads service settings from an optional YAML file and the
// environment.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Environments select the log format.
const (
	EnvDev  = "dev"
	EnvProd = "prod"
)

// Config holds the service settings. Environment variables override values
// from the file; env-default applies when neither sets a field.
type Config struct {
	Env  string `yaml:"env" env:"ENV" env-default:"prod" env-description:"dev (text logs) or prod (JSON logs)"`
	Host string `yaml:"host" env:"HOST" env-default:"0.0.0.0" env-description:"HTTP listen host"`
	Port int    `yaml:"port" env:"PORT" env-default:"3001" env-description:"HTTP listen port"`

	Language       string        `yaml:"language" env:"OCR_LANGUAGE" env-default:"eng" env-description:"Tesseract language code"`
	TessdataPrefix string        `yaml:"tessdata_prefix" env:"TESSDATA_PREFIX" env-description:"Directory holding Tesseract language data"`
	Workers        int           `yaml:"workers" env:"OCR_WORKERS" env-default:"0" env-description:"Max concurrent recognition workers (0 = CPU count)"`
	PassTimeout    time.Duration `yaml:"pass_timeout" env:"OCR_PASS_TIMEOUT" env-default:"30s" env-description:"Deadline for one recognition pass"`

	FetchTimeout   time.Duration `yaml:"fetch_timeout" env:"FETCH_TIMEOUT" env-default:"15s" env-description:"Deadline for downloading an image URL"`
	MaxImageBytes  int           `yaml:"max_image_bytes" env:"MAX_IMAGE_BYTES" env-default:"10485760" env-description:"Max decoded image size"`
	MaxImagePixels int           `yaml:"max_image_pixels" env:"MAX_IMAGE_PIXELS" env-default:"50000000" env-description:"Max image width x height"`

	MaxBodyBytes   int64    `yaml:"max_body_bytes" env:"MAX_BODY_BYTES" env-default:"10485760" env-description:"Max HTTP request body size"`
	MaxConnections int      `yaml:"max_connections" env:"MAX_CONNECTIONS" env-default:"256" env-description:"Max open HTTP connections (0 = unlimited)"`
	AllowedOrigins []string `yaml:"allowed_origins" env:"ALLOWED_ORIGINS" env-default:"*" env-description:"CORS origins, comma separated"`

	LogLevel string `yaml:"log_level" env:"LOG_LEVEL" env-default:"info" env-description:"debug, info, warn or error"`

	TelegramToken string `yaml:"telegram_token" env:"TELEGRAM_BOT_TOKEN" env-description:"Enables the Telegram bot when set"`
}

// Load reads the file at path, if any, then the environment, and validates
// the result. An empty path reads the environment only.
func Load(path string) (*Config, error) {
	var cfg Config

	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("config file %s: %w", path, err)
		}
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("cannot read config: %w", err)
		}
	} else if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("cannot read environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Path returns the config file path from flagValue or, when empty, the
// CONFIG_PATH environment variable.
func Path(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	return os.Getenv("CONFIG_PATH")
}

// Validate checks ranges and enumerations.
func (c *Config) Validate() error {
	var errs []error
	if c.Env != EnvDev && c.Env != EnvProd {
		errs = append(errs, fmt.Errorf("env must be %q or %q, got %q", EnvDev, EnvProd, c.Env))
	}
	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Port))
	}
	if strings.TrimSpace(c.Language) == "" {
		errs = append(errs, errors.New("language is required"))
	}
	if c.Workers < 0 {
		errs = append(errs, fmt.Errorf("workers must not be negative, got %d", c.Workers))
	}
	if c.PassTimeout <= 0 {
		errs = append(errs, fmt.Errorf("pass_timeout must be positive, got %s", c.PassTimeout))
	}
	if c.FetchTimeout <= 0 {
		errs = append(errs, fmt.Errorf("fetch_timeout must be positive, got %s", c.FetchTimeout))
	}
	if c.MaxImageBytes <= 0 {
		errs = append(errs, fmt.Errorf("max_image_bytes must be positive, got %d", c.MaxImageBytes))
	}
	if c.MaxImagePixels <= 0 {
		errs = append(errs, fmt.Errorf("max_image_pixels must be positive, got %d", c.MaxImagePixels))
	}
	if c.MaxBodyBytes <= 0 {
		errs = append(errs, fmt.Errorf("max_body_bytes must be positive, got %d", c.MaxBodyBytes))
	}
	if c.MaxConnections < 0 {
		errs = append(errs, fmt.Errorf("max_connections must not be negative, got %d", c.MaxConnections))
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Addr returns the HTTP listen address.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// WorkerCount returns the pool size, resolving 0 to the CPU count.
func (c *Config) WorkerCount() int {
	if c.Workers > 0 {
		return c.Workers
	}
	return runtime.NumCPU()
}

// ParseLevel maps a log level name to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return 0, fmt.Errorf("invalid log_level %q", s)
	}
	return l, nil
}

// Usage writes the supported environment variables to w.
func Usage(w io.Writer) {
	header := "Environment variables:"
	var cfg Config
	cleanenv.FUsage(w, &cfg, &header)()
}
