// File: internal/config/config.go
package config

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/xkilldash9x/scrollstate/internal/scrolling"
)

// Interface defines the contract for accessing application configuration.
// This allows for dependency injection and mocking in tests.
type Interface interface {
	Logger() LoggerConfig
	Scrolling() ScrollingConfig
	Metrics() MetricsConfig
	Layers() LayersConfig

	// Logger Setters
	SetLoggerLevel(string)

	// Scrolling Setters
	SetScrollingCommitRate(float64)
	SetScrollingLayerRepresentation(string)
	SetScrollingSerializedHandoff(bool)
	SetScrollingDumpBehavior([]string)

	// Metrics Setters
	SetMetricsEnabled(bool)
	SetMetricsListenAddr(string)
}

// Config holds the entire application configuration.
type Config struct {
	LoggerCfg    LoggerConfig    `mapstructure:"logger" yaml:"logger"`
	ScrollingCfg ScrollingConfig `mapstructure:"scrolling" yaml:"scrolling"`
	MetricsCfg   MetricsConfig   `mapstructure:"metrics" yaml:"metrics"`
	LayersCfg    LayersConfig    `mapstructure:"layers" yaml:"layers"`
}

// --- Interface Method Implementations (Getters) ---

func (c *Config) Logger() LoggerConfig       { return c.LoggerCfg }
func (c *Config) Scrolling() ScrollingConfig { return c.ScrollingCfg }
func (c *Config) Metrics() MetricsConfig     { return c.MetricsCfg }
func (c *Config) Layers() LayersConfig       { return c.LayersCfg }

// --- Interface Method Implementations (Setters) ---

func (c *Config) SetLoggerLevel(level string) { c.LoggerCfg.Level = level }

// Scrolling Setters
func (c *Config) SetScrollingCommitRate(r float64) { c.ScrollingCfg.CommitRate = r }
func (c *Config) SetScrollingLayerRepresentation(rep string) {
	c.ScrollingCfg.LayerRepresentation = rep
}
func (c *Config) SetScrollingSerializedHandoff(b bool) { c.ScrollingCfg.SerializedHandoff = b }
func (c *Config) SetScrollingDumpBehavior(flags []string) {
	c.ScrollingCfg.DumpBehavior = append([]string(nil), flags...)
}

// Metrics Setters
func (c *Config) SetMetricsEnabled(b bool)          { c.MetricsCfg.Enabled = b }
func (c *Config) SetMetricsListenAddr(addr string) { c.MetricsCfg.ListenAddr = addr }

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color codes for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// ScrollingConfig tunes the commit pipeline between the main and scrolling contexts.
type ScrollingConfig struct {
	// CommitRate caps scheduled commits per second; roughly the display frame rate.
	CommitRate  float64 `mapstructure:"commit_rate" yaml:"commit_rate"`
	CommitBurst int     `mapstructure:"commit_burst" yaml:"commit_burst"`
	// LayerRepresentation is the handle style snapshots are committed with.
	LayerRepresentation string `mapstructure:"layer_representation" yaml:"layer_representation"`
	// SerializedHandoff round-trips every snapshot through its JSON form, the way a
	// cross-process scrolling context would receive it.
	SerializedHandoff bool     `mapstructure:"serialized_handoff" yaml:"serialized_handoff"`
	HandoffQueueSize  int      `mapstructure:"handoff_queue_size" yaml:"handoff_queue_size"`
	DumpBehavior      []string `mapstructure:"dump_behavior" yaml:"dump_behavior"`
}

// MetricsConfig controls the Prometheus collectors and their endpoint.
type MetricsConfig struct {
	Enabled    bool   `mapstructure:"enabled" yaml:"enabled"`
	Namespace  string `mapstructure:"namespace" yaml:"namespace"`
	ListenAddr string `mapstructure:"listen_addr" yaml:"listen_addr"`
}

// LayersConfig configures the compositing layer owner.
type LayersConfig struct {
	ViewportWidth  float64 `mapstructure:"viewport_width" yaml:"viewport_width"`
	ViewportHeight float64 `mapstructure:"viewport_height" yaml:"viewport_height"`
}

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// This should not happen with defaults, but good to be safe.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for various configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "scrollstate")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)

	// -- Scrolling --
	v.SetDefault("scrolling.commit_rate", 60.0)
	v.SetDefault("scrolling.commit_burst", 1)
	v.SetDefault("scrolling.layer_representation", scrolling.PlatformLayerIDRepresentation.String())
	v.SetDefault("scrolling.serialized_handoff", false)
	v.SetDefault("scrolling.handoff_queue_size", 8)
	v.SetDefault("scrolling.dump_behavior", []string{"node-ids"})

	// -- Metrics --
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.namespace", "scrollstate")
	v.SetDefault("metrics.listen_addr", "127.0.0.1:9464")

	// -- Layers --
	v.SetDefault("layers.viewport_width", 1280.0)
	v.SetDefault("layers.viewport_height", 800.0)
}

// NewConfigFromViper unmarshals and validates the configuration held by v.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if err := c.ScrollingCfg.Validate(); err != nil {
		return fmt.Errorf("scrolling configuration invalid: %w", err)
	}
	if c.MetricsCfg.Enabled && c.MetricsCfg.ListenAddr == "" {
		return fmt.Errorf("metrics.listen_addr is required when metrics are enabled")
	}
	if c.LayersCfg.ViewportWidth <= 0 || c.LayersCfg.ViewportHeight <= 0 {
		return fmt.Errorf("layers viewport dimensions must be positive")
	}
	return nil
}

// Validate checks the ScrollingConfig settings.
func (s *ScrollingConfig) Validate() error {
	if s.CommitRate <= 0 {
		return fmt.Errorf("commit_rate must be greater than 0")
	}
	if s.CommitBurst < 1 {
		return fmt.Errorf("commit_burst must be at least 1")
	}
	if s.HandoffQueueSize < 0 {
		return fmt.Errorf("handoff_queue_size must not be negative")
	}
	if _, err := scrolling.ParseLayerRepresentationType(s.LayerRepresentation); err != nil {
		return fmt.Errorf("layer_representation: %w", err)
	}
	if _, err := scrolling.ParseDumpBehavior(s.DumpBehavior); err != nil {
		return fmt.Errorf("dump_behavior: %w", err)
	}
	return nil
}

// Representation returns the parsed layer representation. Call Validate first.
func (s ScrollingConfig) Representation() scrolling.LayerRepresentationType {
	rep, _ := scrolling.ParseLayerRepresentationType(s.LayerRepresentation)
	return rep
}

// Dump returns the parsed dump behavior. Call Validate first.
func (s ScrollingConfig) Dump() scrolling.DumpBehavior {
	b, _ := scrolling.ParseDumpBehavior(s.DumpBehavior)
	return b
}
