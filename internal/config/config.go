// Package config handles global configuration loading using viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"icc.tech/pktbridge/internal/core"
)

// GlobalConfig represents the top-level static configuration.
// Maps to the `pktbridge:` root key in YAML; env vars use the
// PKTBRIDGE_ prefix via the key replacer (e.g. PKTBRIDGE_LOG_LEVEL).
type GlobalConfig struct {
	Control    ControlConfig    `mapstructure:"control"`
	Dispatcher DispatcherConfig `mapstructure:"dispatcher"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
	Log        LogConfig        `mapstructure:"log"`
}

// ControlConfig contains local control plane settings.
type ControlConfig struct {
	Socket  string `mapstructure:"socket"`
	PIDFile string `mapstructure:"pid_file"`
}

// DispatcherConfig tunes the bridge dispatcher.
type DispatcherConfig struct {
	QueueSize       int    `mapstructure:"queue_size"`
	MaxDatagramSize int    `mapstructure:"max_datagram_size"`
	WaitTimeout     string `mapstructure:"wait_timeout"` // Go duration, e.g. "1s"
}

// WaitTimeoutDuration parses the configured wait timeout; zero when unset.
func (d DispatcherConfig) WaitTimeoutDuration() (time.Duration, error) {
	if d.WaitTimeout == "" {
		return 0, nil
	}
	return time.ParseDuration(d.WaitTimeout)
}

// MetricsConfig contains Prometheus exporter settings.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Listen  string `mapstructure:"listen"`
	Path    string `mapstructure:"path"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level  string           `mapstructure:"level"`
	Format string           `mapstructure:"format"` // json | text
	File   FileOutputConfig `mapstructure:"file"`
}

// FileOutputConfig configures rotated file output.
type FileOutputConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	Path       string `mapstructure:"path"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	MaxBackups int    `mapstructure:"max_backups"`
	Compress   bool   `mapstructure:"compress"`
}

type configRoot struct {
	PktBridge GlobalConfig `mapstructure:"pktbridge"`
}

// Load loads configuration from file. A missing path returns defaults.
func Load(path string) (*GlobalConfig, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var root configRoot
	if err := v.Unmarshal(&root); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg := root.PktBridge

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks value ranges after unmarshalling.
func (c *GlobalConfig) Validate() error {
	if c.Dispatcher.QueueSize < 0 {
		return fmt.Errorf("%w: dispatcher.queue_size must be >= 0", core.ErrConfigInvalid)
	}
	if c.Dispatcher.MaxDatagramSize < 0 {
		return fmt.Errorf("%w: dispatcher.max_datagram_size must be >= 0", core.ErrConfigInvalid)
	}
	if _, err := c.Dispatcher.WaitTimeoutDuration(); err != nil {
		return fmt.Errorf("%w: dispatcher.wait_timeout: %v", core.ErrConfigInvalid, err)
	}
	if c.Control.Socket == "" {
		return fmt.Errorf("%w: control.socket is required", core.ErrConfigInvalid)
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "json", "text":
	default:
		return fmt.Errorf("%w: log.format must be json or text", core.ErrConfigInvalid)
	}
	return nil
}

// setDefaults sets default values for configuration.
// All keys use the "pktbridge." prefix to match the YAML root wrapper.
func setDefaults(v *viper.Viper) {
	v.SetDefault("pktbridge.control.socket", "/var/run/pktbridge.sock")
	v.SetDefault("pktbridge.control.pid_file", "/var/run/pktbridge.pid")

	v.SetDefault("pktbridge.dispatcher.queue_size", 10000)
	v.SetDefault("pktbridge.dispatcher.max_datagram_size", 65507)
	v.SetDefault("pktbridge.dispatcher.wait_timeout", "1s")

	v.SetDefault("pktbridge.metrics.enabled", false)
	v.SetDefault("pktbridge.metrics.listen", ":9091")
	v.SetDefault("pktbridge.metrics.path", "/metrics")

	v.SetDefault("pktbridge.log.level", "info")
	v.SetDefault("pktbridge.log.format", "text")
	v.SetDefault("pktbridge.log.file.enabled", false)
	v.SetDefault("pktbridge.log.file.path", "/var/log/pktbridge/pktbridge.log")
	v.SetDefault("pktbridge.log.file.max_size_mb", 100)
	v.SetDefault("pktbridge.log.file.max_age_days", 30)
	v.SetDefault("pktbridge.log.file.max_backups", 5)
	v.SetDefault("pktbridge.log.file.compress", true)
}
