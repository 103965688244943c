// Package config merges command-line flags, DIRSCAN_* environment variables
// and an optional config file into one settings struct.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/michaelscutari/dirscan/internal/logging"
	"github.com/michaelscutari/dirscan/internal/scan"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	// AppName is used for the config directory and file name.
	AppName = "dirscan"
	// EnvPrefix prefixes every environment override, e.g. DIRSCAN_MAX_ERRORS.
	EnvPrefix = "DIRSCAN"
)

// Config holds every setting a command may read. Keys match flag names.
type Config struct {
	Root             string        `mapstructure:"root"`
	Out              string        `mapstructure:"out"`
	Xdev             bool          `mapstructure:"xdev"`
	Exclude          []string      `mapstructure:"exclude"`
	MaxErrors        int           `mapstructure:"max-errors"`
	Retention        int           `mapstructure:"retention"`
	IndexMode        string        `mapstructure:"index-mode"`
	SQLiteTmpDir     string        `mapstructure:"sqlite-tmp-dir"`
	ProgressInterval time.Duration `mapstructure:"progress-interval"`
	Verbose          bool          `mapstructure:"verbose"`

	LogLevel  string `mapstructure:"log-level"`
	LogFormat string `mapstructure:"log-format"`
	LogFile   string `mapstructure:"log-file"`

	// File is the config file that was read, if any.
	File string `mapstructure:"-"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Root:             ".",
		Out:              "./data",
		Xdev:             true,
		Retention:        5,
		IndexMode:        "memory",
		ProgressInterval: 30 * time.Second,
		LogLevel:         "warn",
		LogFormat:        "text",
	}
}

// Dir returns $XDG_CONFIG_HOME/dirscan, defaulting to ~/.config/dirscan.
func Dir() (string, error) {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, AppName), nil
}

// Load resolves settings with precedence flag > env > file > default. Only
// flags the user actually set override the lower layers. configFile, when
// non-empty, must exist; otherwise dirscan.{yaml,toml,json} is searched in
// the working directory and Dir().
func Load(flags *pflag.FlagSet, configFile string) (*Config, error) {
	v := viper.New()

	defaults := Default()
	v.SetDefault("root", defaults.Root)
	v.SetDefault("out", defaults.Out)
	v.SetDefault("xdev", defaults.Xdev)
	v.SetDefault("exclude", []string{})
	v.SetDefault("max-errors", defaults.MaxErrors)
	v.SetDefault("retention", defaults.Retention)
	v.SetDefault("index-mode", defaults.IndexMode)
	v.SetDefault("sqlite-tmp-dir", defaults.SQLiteTmpDir)
	v.SetDefault("progress-interval", defaults.ProgressInterval)
	v.SetDefault("verbose", defaults.Verbose)
	v.SetDefault("log-level", defaults.LogLevel)
	v.SetDefault("log-format", defaults.LogFormat)
	v.SetDefault("log-file", defaults.LogFile)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		if _, err := os.Stat(configFile); err != nil {
			return nil, fmt.Errorf("config file not found: %w", err)
		}
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName(AppName)
		v.AddConfigPath(".")
		if dir, err := Dir(); err == nil {
			v.AddConfigPath(dir)
		}
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("failed to bind flags: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.File = v.ConfigFileUsed()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values that cannot be expressed by type alone.
func (c *Config) Validate() error {
	switch c.IndexMode {
	case "memory", "disk", "skip":
	default:
		return fmt.Errorf("invalid index mode %q (expected memory|disk|skip)", c.IndexMode)
	}
	if c.MaxErrors < 0 {
		return fmt.Errorf("max-errors must not be negative, got %d", c.MaxErrors)
	}
	if c.Retention < 0 {
		return fmt.Errorf("retention must not be negative, got %d", c.Retention)
	}
	return nil
}

// ScanOptions converts the settings into scanner options.
func (c *Config) ScanOptions(logger *log.Logger) (*scan.ScanOptions, error) {
	opts := scan.DefaultOptions().
		WithXdev(c.Xdev).
		WithMaxErrors(c.MaxErrors).
		WithLogger(logger)

	for _, pattern := range c.Exclude {
		if err := opts.AddExcludePattern(pattern); err != nil {
			return nil, fmt.Errorf("invalid exclude pattern %q: %w", pattern, err)
		}
	}
	return opts, nil
}

// Logging returns logger options; --verbose lowers the level to debug.
func (c *Config) Logging() logging.Options {
	opts := logging.DefaultOptions()
	opts.Level = c.LogLevel
	opts.Format = c.LogFormat
	opts.File = c.LogFile
	if c.Verbose {
		opts.Level = "debug"
	}
	return opts
}
