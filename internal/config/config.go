package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/familycheck/internal/family"
	"github.com/sells-group/familycheck/internal/fetcher"
)

// Config holds the full application configuration.
type Config struct {
	Store   StoreConfig   `yaml:"store" mapstructure:"store"`
	Server  ServerConfig  `yaml:"server" mapstructure:"server"`
	Match   MatchConfig   `yaml:"match" mapstructure:"match"`
	Fetch   FetchConfig   `yaml:"fetch" mapstructure:"fetch"`
	Session SessionConfig `yaml:"session" mapstructure:"session"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	RatePerSec     float64  `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
	Burst          int      `yaml:"burst" mapstructure:"burst"`
	MaxBodyBytes   int64    `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
}

// MatchConfig configures list parsing and fuzzy matching. Empty marker lists
// fall back to the built-in English and Chinese tables.
type MatchConfig struct {
	Threshold    float64  `yaml:"threshold" mapstructure:"threshold"`
	OwnerMarkers []string `yaml:"owner_markers" mapstructure:"owner_markers"`
	RoleKeywords []string `yaml:"role_keywords" mapstructure:"role_keywords"`
	IgnoreCase   bool     `yaml:"ignore_case" mapstructure:"ignore_case"`
}

// Options converts the config into matcher options.
func (m MatchConfig) Options() family.Options {
	opts := family.Options{Threshold: m.Threshold}
	if len(m.OwnerMarkers) > 0 || len(m.RoleKeywords) > 0 {
		opts.Markers = family.DefaultMarkers()
		if len(m.OwnerMarkers) > 0 {
			opts.Markers.Owner = m.OwnerMarkers
		}
		if len(m.RoleKeywords) > 0 {
			opts.Markers.Role = m.RoleKeywords
		}
	}
	opts.Markers.IgnoreCase = m.IgnoreCase
	return opts
}

// FetchConfig configures downloads of remote lists.
type FetchConfig struct {
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRetries  int    `yaml:"max_retries" mapstructure:"max_retries"`
	UserAgent   string `yaml:"user_agent" mapstructure:"user_agent"`
}

// HTTPOptions converts the config into fetcher options.
func (f FetchConfig) HTTPOptions() fetcher.HTTPOptions {
	return fetcher.HTTPOptions{
		UserAgent:  f.UserAgent,
		Timeout:    time.Duration(f.TimeoutSecs) * time.Second,
		MaxRetries: f.MaxRetries,
	}
}

// SessionConfig configures multi-pair evaluation.
type SessionConfig struct {
	Concurrency int `yaml:"concurrency" mapstructure:"concurrency"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("FAMILYCHECK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "familycheck.db")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 1)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.rate_per_sec", 5.0)
	v.SetDefault("server.burst", 10)
	v.SetDefault("server.max_body_bytes", 1<<20)
	v.SetDefault("match.threshold", family.DefaultThreshold)
	v.SetDefault("match.owner_markers", []string{})
	v.SetDefault("match.role_keywords", []string{})
	v.SetDefault("match.ignore_case", false)
	v.SetDefault("fetch.timeout_secs", 30)
	v.SetDefault("fetch.max_retries", 3)
	v.SetDefault("fetch.user_agent", "familycheck/1.0")
	v.SetDefault("session.concurrency", 4)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings a command mode depends on. Modes: check,
// session, serve, store.
func (c *Config) Validate(mode string) error {
	var problems []string

	switch mode {
	case "check", "session":
	case "serve":
		if c.Server.Port <= 0 {
			problems = append(problems, "server.port must be > 0")
		}
		if c.Server.RatePerSec <= 0 {
			problems = append(problems, "server.rate_per_sec must be > 0")
		}
		if c.Server.Burst <= 0 {
			problems = append(problems, "server.burst must be > 0")
		}
		if c.Server.MaxBodyBytes <= 0 {
			problems = append(problems, "server.max_body_bytes must be > 0")
		}
		problems = append(problems, c.validateStore()...)
	case "store":
		problems = append(problems, c.validateStore()...)
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if c.Match.Threshold <= 0 || c.Match.Threshold > 1 {
		problems = append(problems, "match.threshold must be in (0, 1]")
	}
	if c.Session.Concurrency < 1 || c.Session.Concurrency > 64 {
		problems = append(problems, "session.concurrency must be between 1 and 64")
	}

	if len(problems) > 0 {
		return eris.New(fmt.Sprintf("config: %s", strings.Join(problems, "; ")))
	}
	return nil
}

func (c *Config) validateStore() []string {
	var problems []string
	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		problems = append(problems, fmt.Sprintf("store.driver %q must be sqlite or postgres", c.Store.Driver))
	}
	if c.Store.DatabaseURL == "" {
		problems = append(problems, "store.database_url is required")
	}
	return problems
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
