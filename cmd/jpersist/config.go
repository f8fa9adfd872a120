package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/shrek82/jpersist/dialect"
	"github.com/shrek82/jpersist/logger"
	"github.com/shrek82/jpersist/model"
	"github.com/shrek82/jpersist/persist"
)

var envKeys = strings.NewReplacer("-", "_", ".", "_")

// Config is the resolved configuration of one invocation.
type Config struct {
	Driver       string `mapstructure:"driver"`
	DSN          string `mapstructure:"dsn"`
	Schema       string `mapstructure:"schema"`
	LogLevel     string `mapstructure:"log-level"`
	LogFormat    string `mapstructure:"log-format"`
	MaxOpenConns int    `mapstructure:"max-open-conns"`
	WAL          bool   `mapstructure:"wal"`

	SlowThreshold    time.Duration `mapstructure:"slow-threshold"`
	SlowLog          string        `mapstructure:"slow-log"`
	BreakerThreshold int           `mapstructure:"breaker-threshold"`
	BreakerReset     time.Duration `mapstructure:"breaker-reset"`
	MetricsFile      string        `mapstructure:"metrics-file"`

	// engine options
	KeepStaleChildren bool `mapstructure:"keep-stale-children"`
	QuietUnmappedKeys bool `mapstructure:"quiet-unmapped-keys"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("driver", "sqlite3")
	v.SetDefault("log-level", "info")
	v.SetDefault("log-format", "text")
	v.SetDefault("wal", true)
	v.SetDefault("breaker-reset", 30*time.Second)
	v.SetDefault("keep-stale-children", false)
	v.SetDefault("quiet-unmapped-keys", false)
}

func loadConfig(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if _, ok := dialect.Get(c.Driver); !ok {
		return fmt.Errorf("unsupported driver %q, want one of %s", c.Driver, strings.Join(dialect.Drivers(), ", "))
	}
	if c.DSN == "" {
		return fmt.Errorf("no dsn configured: set --dsn, JPERSIST_DSN or dsn in the config file")
	}
	if c.Schema == "" {
		return fmt.Errorf("no schema configured: set --schema, JPERSIST_SCHEMA or schema in the config file")
	}
	if _, err := logger.ParseLevel(c.LogLevel); err != nil {
		return err
	}
	switch logger.LogFormat(c.LogFormat) {
	case logger.LogFormatText, logger.LogFormatJSON:
	default:
		return fmt.Errorf("unknown log format %q", c.LogFormat)
	}
	if c.BreakerThreshold < 0 || c.SlowThreshold < 0 {
		return fmt.Errorf("breaker-threshold and slow-threshold must not be negative")
	}
	return nil
}

// Options returns the engine flags selected by the configuration.
func (c *Config) Options() persist.Option {
	var opts persist.Option
	if c.KeepStaleChildren {
		opts |= persist.DisableStaleChildCleanup
	}
	if c.QuietUnmappedKeys {
		opts |= persist.DisableUnmappedKeyWarnings
	}
	return opts
}

// newLogger builds the zerolog-backed logger writing to w.
func (c *Config) newLogger(w io.Writer) logger.Logger {
	level, _ := logger.ParseLevel(c.LogLevel)
	l := logger.NewZerolog(zerolog.New(w).With().Timestamp().Logger())
	l.SetLevel(level)
	l.SetFormat(logger.LogFormat(c.LogFormat))
	l.SetOutput(w)
	return l
}

// loadRegistry reads the YAML schema at path.
func loadRegistry(path string) (*model.Registry, []string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open schema: %w", err)
	}
	defer f.Close()

	defs, err := model.LoadSchema(f)
	if err != nil {
		return nil, nil, err
	}
	reg := model.NewRegistry()
	if err := reg.Add(defs...); err != nil {
		return nil, nil, err
	}

	var roots []string
	for _, def := range defs {
		if def.Table {
			roots = append(roots, def.Name)
		}
	}
	return reg, roots, nil
}
