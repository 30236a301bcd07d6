// Package config loads the daemon's own settings: the control socket path,
// the per-process output ring capacity, the optional file log sink's
// rotation parameters, the optional metrics HTTP listener, and the optional
// history sink DSN. Every field has a usable default, so an entirely absent
// config file is not an error.
package config

import (
	"fmt"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/loykin/petri/internal/control"
	"github.com/loykin/petri/internal/logfile"
	"github.com/loykin/petri/internal/ring"
)

// Config is the daemon's top-level configuration.
type Config struct {
	Socket  SocketConfig  `mapstructure:"socket"`
	Ring    RingConfig    `mapstructure:"ring"`
	Log     LogConfig     `mapstructure:"log"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	History HistoryConfig `mapstructure:"history"`
}

// SocketConfig configures the control-plane Unix socket.
type SocketConfig struct {
	Path string `mapstructure:"path"`
}

// RingConfig configures every spawned process's output ring buffer.
type RingConfig struct {
	CapacityBytes int `mapstructure:"capacity_bytes"`
}

// LogConfig configures the optional per-process file sink used when `run`
// is given `-l <dir>`. These are rotation defaults only; the directory
// itself is supplied per-request.
type LogConfig struct {
	MaxSizeMB  int  `mapstructure:"max_size_mb"`
	MaxBackups int  `mapstructure:"max_backups"`
	MaxAgeDays int  `mapstructure:"max_age_days"`
	Compress   bool `mapstructure:"compress"`
}

// MetricsConfig configures the optional standalone Prometheus/healthz
// listener. Disabled by default; the control socket alone is sufficient to
// run the daemon.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Listen  string `mapstructure:"listen"`
}

// HistoryConfig configures the optional lifecycle-event audit sink.
// Disabled unless DSN is set.
type HistoryConfig struct {
	DSN string `mapstructure:"dsn"`
}

// Default returns the configuration a daemon run with no config file at all
// should use.
func Default() *Config {
	return &Config{
		Socket: SocketConfig{Path: control.DefaultSocketPath},
		Ring:   RingConfig{CapacityBytes: ring.DefaultCapacity},
		Log: LogConfig{
			MaxSizeMB:  logfile.DefaultMaxSizeMB,
			MaxBackups: logfile.DefaultMaxBackups,
			MaxAgeDays: logfile.DefaultMaxAgeDays,
		},
		Metrics: MetricsConfig{Listen: "127.0.0.1:9090"},
	}
}

// Load reads configPath (TOML/YAML/JSON, detected by extension, per
// viper's usual rules) and overlays it onto Default. An empty configPath
// returns Default() unchanged.
func Load(configPath string) (*Config, error) {
	cfg := Default()
	if configPath == "" {
		return cfg, nil
	}

	v := viper.New()
	v.SetConfigFile(configPath)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: failed to read %s: %w", configPath, err)
	}
	if err := v.Unmarshal(cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
	}); err != nil {
		return nil, fmt.Errorf("config: failed to unmarshal %s: %w", configPath, err)
	}
	return cfg, nil
}

// LogfileConfig adapts c's rotation settings to the logfile package's Config
// shape.
func (c *Config) LogfileConfig() logfile.Config {
	return logfile.Config{
		MaxSizeMB:  c.Log.MaxSizeMB,
		MaxBackups: c.Log.MaxBackups,
		MaxAgeDays: c.Log.MaxAgeDays,
		Compress:   c.Log.Compress,
	}
}
