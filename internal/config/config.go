// Package config parses the server configuration from the environment and
// command-line flags.
package config

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/vncsmyrnk/livepoll/internal/core/domain"
)

type Config struct {
	HTTPAddr           string        `env:"LIVEPOLL_HTTP_ADDR"             envDefault:"0.0.0.0:8080"`
	Options            []string      `env:"LIVEPOLL_OPTIONS"               envDefault:"Option A,Option B,Option C" envSeparator:","`
	SessionSecret      string        `env:"LIVEPOLL_SESSION_SECRET"`
	SessionCookie      string        `env:"LIVEPOLL_SESSION_COOKIE"        envDefault:"livepoll_session"`
	SessionTTL         time.Duration `env:"LIVEPOLL_SESSION_TTL"           envDefault:"24h"`
	CookieSecure       bool          `env:"LIVEPOLL_COOKIE_SECURE"         envDefault:"false"`
	AllowedOrigins     []string      `env:"LIVEPOLL_ALLOWED_ORIGINS"       envDefault:"*" envSeparator:","`
	WriteTimeout       time.Duration `env:"LIVEPOLL_WRITE_TIMEOUT"         envDefault:"10s"`
	SendBuffer         int           `env:"LIVEPOLL_SEND_BUFFER"           envDefault:"16"`
	MaxMessageBytes    int           `env:"LIVEPOLL_MAX_MESSAGE_BYTES"     envDefault:"4096"`
	MaxFramesPerSecond int           `env:"LIVEPOLL_MAX_FRAMES_PER_SECOND" envDefault:"20"`
	ShutdownTimeout    time.Duration `env:"LIVEPOLL_SHUTDOWN_TIMEOUT"      envDefault:"30s"`
	StaticDir          string        `env:"LIVEPOLL_STATIC_DIR"`
	LogLevel           slog.Level    `env:"LIVEPOLL_LOG_LEVEL"             envDefault:"INFO"`
}

// ParseConfig reads the environment first; flags override it.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	options := strings.Join(cfg.Options, ",")
	fs.StringVar(&cfg.HTTPAddr, "http-addr", cfg.HTTPAddr, "HTTP listen address")
	fs.StringVar(&options, "options", options, "comma-separated poll options")
	fs.StringVar(&cfg.StaticDir, "static-dir", cfg.StaticDir, "directory with the poll page (embedded page when empty)")
	fs.DurationVar(&cfg.WriteTimeout, "write-timeout", cfg.WriteTimeout, "per-message WebSocket write timeout")
	fs.TextVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level (DEBUG, INFO, WARN, ERROR)")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	cfg.Options = strings.Split(options, ",")

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate trims option labels and checks limits.
func (c *Config) Validate() error {
	options := make([]string, 0, len(c.Options))
	seen := make(map[string]struct{}, len(c.Options))
	for _, opt := range c.Options {
		opt = strings.TrimSpace(opt)
		if opt == "" {
			continue
		}
		if _, ok := seen[opt]; ok {
			return fmt.Errorf("%w: %q", domain.ErrDuplicateOption, opt)
		}
		seen[opt] = struct{}{}
		options = append(options, opt)
	}
	if len(options) == 0 {
		return domain.ErrNoOptions
	}
	c.Options = options

	if strings.TrimSpace(c.HTTPAddr) == "" {
		return errors.New("http address is required")
	}
	if c.WriteTimeout <= 0 {
		return errors.New("write timeout must be positive")
	}
	if c.SendBuffer <= 0 {
		return errors.New("send buffer must be positive")
	}
	if c.MaxMessageBytes <= 0 {
		return errors.New("max message bytes must be positive")
	}
	if c.MaxFramesPerSecond <= 0 {
		return errors.New("max frames per second must be positive")
	}
	if c.SessionTTL <= 0 {
		return errors.New("session ttl must be positive")
	}
	return nil
}

func (c Config) PollOptions() []domain.Option {
	options := make([]domain.Option, len(c.Options))
	for i, opt := range c.Options {
		options[i] = domain.Option(opt)
	}
	return options
}
