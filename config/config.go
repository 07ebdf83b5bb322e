// Package config defines bootstrap configuration: file loading, environment
// overrides and hot reload of the settings that may change at runtime.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// Static errors for config package
var (
	ErrUnsupportedFormat = errors.New("unsupported config file format")
	ErrInvalidLogLevel   = errors.New("invalid log level")
	ErrInvalidNamespace  = errors.New("metrics namespace cannot be empty")
	ErrInvalidDebugAddr  = errors.New("debug address cannot be empty")
)

// EnvPrefix is the default prefix of environment overrides.
const EnvPrefix = "EXTPOINT"

// Config holds bootstrap settings.
type Config struct {
	LogLevel    string            `yaml:"logLevel" toml:"log_level" env:"LOG_LEVEL"`
	Factory     FactoryConfig     `yaml:"factory" toml:"factory"`
	Diagnostics DiagnosticsConfig `yaml:"diagnostics" toml:"diagnostics"`
	Merged      MergedConfig      `yaml:"merged" toml:"merged"`
	Metrics     MetricsConfig     `yaml:"metrics" toml:"metrics"`
	Debug       DebugConfig       `yaml:"debug" toml:"debug"`
}

// FactoryConfig configures the reference factory.
type FactoryConfig struct {
	AllowDefinitionOverriding bool `yaml:"allowDefinitionOverriding" toml:"allow_definition_overriding" env:"FACTORY_ALLOW_OVERRIDING"`
	PreInstantiate            bool `yaml:"preInstantiate" toml:"pre_instantiate" env:"FACTORY_PRE_INSTANTIATE"`
}

// DiagnosticsConfig controls checker warnings and bootstrap events. Both may
// be changed by a watched config file.
type DiagnosticsConfig struct {
	WarnIneligible bool `yaml:"warnIneligible" toml:"warn_ineligible" env:"DIAGNOSTICS_WARN_INELIGIBLE"`
	EmitEvents     bool `yaml:"emitEvents" toml:"emit_events" env:"DIAGNOSTICS_EMIT_EVENTS"`
}

// MergedConfig controls the merged-definition pass.
type MergedConfig struct {
	Enabled bool `yaml:"enabled" toml:"enabled" env:"MERGED_ENABLED"`
}

// MetricsConfig configures startup metrics.
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled" toml:"enabled" env:"METRICS_ENABLED"`
	Namespace string `yaml:"namespace" toml:"namespace" env:"METRICS_NAMESPACE"`
}

// DebugConfig configures the introspection endpoint.
type DebugConfig struct {
	Enabled bool   `yaml:"enabled" toml:"enabled" env:"DEBUG_ENABLED"`
	Addr    string `yaml:"addr" toml:"addr" env:"DEBUG_ADDR"`
}

// Default returns the default settings.
func Default() *Config {
	return &Config{
		LogLevel: "info",
		Factory: FactoryConfig{
			PreInstantiate: true,
		},
		Diagnostics: DiagnosticsConfig{
			WarnIneligible: true,
			EmitEvents:     true,
		},
		Merged: MergedConfig{
			Enabled: true,
		},
		Metrics: MetricsConfig{
			Namespace: "extpoint",
		},
		Debug: DebugConfig{
			Addr: "127.0.0.1:6061",
		},
	}
}

// Validate checks the settings for consistency.
func (c *Config) Validate() error {
	if _, err := c.SlogLevel(); err != nil {
		return err
	}
	if c.Metrics.Enabled && c.Metrics.Namespace == "" {
		return ErrInvalidNamespace
	}
	if c.Debug.Enabled && c.Debug.Addr == "" {
		return ErrInvalidDebugAddr
	}
	return nil
}

// SlogLevel parses LogLevel. An empty level is info.
func (c *Config) SlogLevel() (slog.Level, error) {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("%w: %q", ErrInvalidLogLevel, c.LogLevel)
	}
}
