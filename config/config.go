// Package config loads engine configuration from TOML files with an
// environment variable overlay.
//
// Precedence: defaults < file < environment. Environment variables are
// prefixed with ACTIONPIPE_, for example ACTIONPIPE_LOG_LEVEL=debug.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	toml "github.com/pelletier/go-toml/v2"

	"github.com/actionpipe/actionpipe/pipeline"
)

// Config is the full engine configuration.
type Config struct {
	Logging LoggingConfig  `toml:"logging"`
	Engine  EngineConfig   `toml:"engine"`
	Actions []ActionConfig `toml:"actions" ignored:"true"`
}

// LoggingConfig configures the engine logger.
type LoggingConfig struct {
	// Level is the minimum log level (debug, info, warn, error).
	Level string `toml:"level" envconfig:"LOG_LEVEL"`

	// Prefix is prepended to every log line.
	Prefix string `toml:"prefix" envconfig:"LOG_PREFIX"`
}

// EngineConfig configures engine-wide behavior.
type EngineConfig struct {
	// DefaultMode is the execution mode for actions without an override
	// (sequential, parallel, race).
	DefaultMode string `toml:"default_mode" envconfig:"DEFAULT_MODE"`

	// MaxHandlersPerAction caps registrations per action (0 = unlimited).
	MaxHandlersPerAction int `toml:"max_handlers_per_action" envconfig:"MAX_HANDLERS_PER_ACTION"`
}

// ActionConfig declares one action, its guards, and its handlers.
type ActionConfig struct {
	// Name is the action name.
	Name string `toml:"name"`

	// Mode overrides the execution mode for this action.
	Mode string `toml:"mode"`

	// Debounce and Throttle are guard windows as duration strings
	// ("100ms", "2s"). Empty means no guard.
	Debounce string `toml:"debounce"`
	Throttle string `toml:"throttle"`

	// Handlers lists the action's handler declarations.
	Handlers []HandlerConfig `toml:"handlers"`
}

// HandlerConfig declares one handler entry.
type HandlerConfig struct {
	// ID is the handler id; auto-generated when empty.
	ID string `toml:"id"`

	// Priority orders the handler within its action.
	Priority int `toml:"priority"`

	// Script is an inline Lua chunk defining handle(payload).
	Script string `toml:"script"`

	// ScriptFile is a path to a Lua chunk; ignored when Script is set.
	ScriptFile string `toml:"script_file"`

	// Condition is a Lua expression gating the handler at dispatch time.
	Condition string `toml:"condition"`

	// Once removes the handler after its first processed dispatch.
	Once bool `toml:"once"`

	// Timeout is the per-handler execution limit as a duration string.
	Timeout string `toml:"timeout"`

	// Tags and Category are filter metadata.
	Tags     []string `toml:"tags"`
	Category string   `toml:"category"`
}

// Default returns the baseline configuration.
func Default() Config {
	return Config{
		Logging: LoggingConfig{
			Level:  "info",
			Prefix: "actionpipe",
		},
		Engine: EngineConfig{
			DefaultMode: "sequential",
		},
	}
}

// LoadFile reads a TOML file over the defaults.
func LoadFile(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

// ApplyEnv overlays ACTIONPIPE_* environment variables onto the config.
func ApplyEnv(cfg *Config) error {
	if err := envconfig.Process("actionpipe", cfg); err != nil {
		return fmt.Errorf("config: environment overlay: %w", err)
	}
	return nil
}

// Load reads a TOML file and applies the environment overlay. An empty
// path loads defaults plus environment only.
func Load(path string) (Config, error) {
	var cfg Config
	var err error

	if path == "" {
		cfg = Default()
	} else {
		cfg, err = LoadFile(path)
		if err != nil {
			return cfg, err
		}
	}

	if err := ApplyEnv(&cfg); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

// Validate checks mode names and duration strings.
func (c Config) Validate() error {
	if _, err := pipeline.ParseMode(c.Engine.DefaultMode); err != nil {
		return fmt.Errorf("config: engine.default_mode: %w", err)
	}
	for _, a := range c.Actions {
		if a.Name == "" {
			return fmt.Errorf("config: action with empty name")
		}
		if _, err := pipeline.ParseMode(a.Mode); err != nil {
			return fmt.Errorf("config: action %s mode: %w", a.Name, err)
		}
		for _, d := range []string{a.Debounce, a.Throttle} {
			if _, err := ParseDuration(d); err != nil {
				return fmt.Errorf("config: action %s guard window: %w", a.Name, err)
			}
		}
		for _, h := range a.Handlers {
			if _, err := ParseDuration(h.Timeout); err != nil {
				return fmt.Errorf("config: action %s handler %s timeout: %w", a.Name, h.ID, err)
			}
		}
	}
	return nil
}

// ParseDuration parses a duration string, with zero for empty input.
func ParseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	return time.ParseDuration(s)
}
