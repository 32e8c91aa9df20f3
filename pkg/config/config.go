// Package config loads the service configuration from bigrun.yaml and the
// environment.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/lemonberrylabs/bigrun/pkg/types"
)

// DefaultFile is the config file looked up when none is given.
const DefaultFile = "bigrun.yaml"

// MaxConfigSize bounds the config file size in bytes.
const MaxConfigSize = 64 * 1024

// Config holds the settings for "bigrun serve".
type Config struct {
	Host       string     `yaml:"host"`
	Port       int        `yaml:"port"`
	ScriptsDir string     `yaml:"scripts_dir"`
	Watch      bool       `yaml:"watch"`
	Debug      bool       `yaml:"debug"`
	Heal       bool       `yaml:"heal"`
	DataDir    string     `yaml:"data_dir"` // bound to the Dir global of service runs
	Timeout    string     `yaml:"timeout"`  // per execution, "0" disables
	Schedules  []Schedule `yaml:"schedules"`

	timeout time.Duration
}

// Schedule runs a deployed script periodically.
type Schedule struct {
	Script string   `yaml:"script"`
	Every  string   `yaml:"every"`
	Args   []string `yaml:"args"`

	interval time.Duration
}

// Interval returns the parsed "every" duration.
func (s Schedule) Interval() time.Duration {
	return s.interval
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Host:    "0.0.0.0",
		Port:    8787,
		Timeout: "5m",
		timeout: 5 * time.Minute,
	}
}

// Load reads the config file at path, applies environment overrides and
// validates the result. A missing file at the default path is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()
	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := cfg.decode(data); err != nil {
			return nil, fmt.Errorf("loading %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfg.ApplyEnv(os.Getenv)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes and validates a config document without touching the
// environment.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := cfg.decode(data); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) decode(data []byte) error {
	if len(data) > MaxConfigSize {
		return types.NewConfigError(fmt.Sprintf("config size %d exceeds maximum %d bytes", len(data), MaxConfigSize))
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return types.NewConfigError(fmt.Sprintf("invalid YAML: %v", err))
	}
	return nil
}

// ApplyEnv overrides fields from the environment. getenv is os.Getenv
// outside of tests.
func (c *Config) ApplyEnv(getenv func(string) string) {
	c.Host = envOrDefault(getenv, "HOST", c.Host)
	if n, err := strconv.Atoi(getenv("PORT")); err == nil {
		c.Port = n
	}
	c.ScriptsDir = envOrDefault(getenv, "BIGRUN_SCRIPTS_DIR", c.ScriptsDir)
	c.DataDir = envOrDefault(getenv, "BIGRUN_DATA_DIR", c.DataDir)
	c.Timeout = envOrDefault(getenv, "BIGRUN_TIMEOUT", c.Timeout)
	if b, err := strconv.ParseBool(getenv("BIGRUN_DEBUG")); err == nil {
		c.Debug = b
	}
}

// Validate checks ranges and parses the duration fields.
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return types.NewConfigError(fmt.Sprintf("port %d out of range", c.Port))
	}
	if c.Watch && c.ScriptsDir == "" {
		return types.NewConfigError("watch requires scripts_dir")
	}

	c.timeout = 0
	if c.Timeout != "" && c.Timeout != "0" {
		d, err := time.ParseDuration(c.Timeout)
		if err != nil || d < 0 {
			return types.NewConfigError(fmt.Sprintf("invalid timeout %q", c.Timeout))
		}
		c.timeout = d
	}

	for i := range c.Schedules {
		s := &c.Schedules[i]
		if s.Script == "" {
			return types.NewConfigError(fmt.Sprintf("schedule %d: script is required", i))
		}
		d, err := time.ParseDuration(s.Every)
		if err != nil {
			return types.NewConfigError(fmt.Sprintf("schedule %q: invalid interval %q", s.Script, s.Every))
		}
		if d < time.Second {
			return types.NewConfigError(fmt.Sprintf("schedule %q: interval %s is shorter than 1s", s.Script, d))
		}
		s.interval = d
	}
	return nil
}

// ExecutionTimeout returns the parsed per-execution timeout; zero means
// no limit.
func (c *Config) ExecutionTimeout() time.Duration {
	return c.timeout
}

// Addr returns the listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func envOrDefault(getenv func(string) string, key, fallback string) string {
	if v := getenv(key); v != "" {
		return v
	}
	return fallback
}
