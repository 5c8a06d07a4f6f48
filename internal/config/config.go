// Package config loads the speechgen YAML configuration.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Speech engines.
const (
	EngineBark   = "bark"
	EngineSherpa = "sherpa"
)

// Config is the top-level configuration.
type Config struct {
	Engine    string          `yaml:"engine"`
	Model     string          `yaml:"model"`
	Bark      BarkConfig      `yaml:"bark"`
	Sherpa    SherpaConfig    `yaml:"sherpa"`
	Espeak    EspeakConfig    `yaml:"espeak"`
	Libraries LibrariesConfig `yaml:"libraries"`
	Log       LogConfig       `yaml:"log"`
}

// BarkConfig configures bark contexts.
type BarkConfig struct {
	Temperature     float32 `yaml:"temperature"`
	FineTemperature float32 `yaml:"fine_temperature"`
	Seed            uint32  `yaml:"seed"`
	Threads         int     `yaml:"threads"`
	Verbosity       int     `yaml:"verbosity"`
}

// SherpaConfig configures sherpa-onnx contexts.
type SherpaConfig struct {
	Threads  int     `yaml:"threads"`
	Provider string  `yaml:"provider"`
	Speaker  int     `yaml:"speaker"`
	Speed    float32 `yaml:"speed"`
	Tokens   string  `yaml:"tokens"`
	Lexicon  string  `yaml:"lexicon"`
	DataDir  string  `yaml:"data_dir"`
	Debug    bool    `yaml:"debug"`
}

// EspeakConfig configures the phonemizer.
type EspeakConfig struct {
	// DataPath is the directory containing espeak-ng-data.
	DataPath string `yaml:"data_path"`
	Voice    string `yaml:"voice"`
}

// LibrariesConfig locates the native libraries. Non-empty values are
// exported to the environment by Apply.
type LibrariesConfig struct {
	Path    string `yaml:"path"`
	ShimDir string `yaml:"shim_dir"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSize    int    `yaml:"max_size"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAge     int    `yaml:"max_age"`
}

// Load reads the configuration file at path. ${VAR} references are expanded
// from the environment before parsing.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes configuration data and fills defaults.
func Parse(data []byte) (*Config, error) {
	expanded := os.Expand(string(data), os.Getenv)

	cfg := &Config{}
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}

	setDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{}
	setDefaults(cfg)
	return cfg
}

func setDefaults(cfg *Config) {
	if cfg.Engine == "" {
		cfg.Engine = EngineBark
	}
	if cfg.Bark.Temperature == 0 {
		cfg.Bark.Temperature = 0.7
	}
	if cfg.Bark.FineTemperature == 0 {
		cfg.Bark.FineTemperature = 0.5
	}
	if cfg.Bark.Threads == 0 {
		cfg.Bark.Threads = 4
	}
	if cfg.Sherpa.Threads == 0 {
		cfg.Sherpa.Threads = 2
	}
	if cfg.Sherpa.Provider == "" {
		cfg.Sherpa.Provider = "cpu"
	}
	if cfg.Sherpa.Speed == 0 {
		cfg.Sherpa.Speed = 1.0
	}
	if cfg.Espeak.Voice == "" {
		cfg.Espeak.Voice = "en-us"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
}

// Validate reports configuration values that cannot work.
func (c *Config) Validate() error {
	switch c.Engine {
	case EngineBark, EngineSherpa:
	default:
		return fmt.Errorf("config: unknown engine %q (want %s or %s)", c.Engine, EngineBark, EngineSherpa)
	}
	if c.Bark.Threads < 0 || c.Sherpa.Threads < 0 {
		return fmt.Errorf("config: thread counts must not be negative")
	}
	return nil
}

// Apply exports library locations to the environment variables the
// loaders read.
func (c *Config) Apply() error {
	if c.Libraries.Path != "" {
		if err := os.Setenv("SPEECHGEN_LIBRARY_PATH", c.Libraries.Path); err != nil {
			return err
		}
	}
	if c.Libraries.ShimDir != "" {
		if err := os.Setenv("SPEECHGEN_SHIM_DIR", c.Libraries.ShimDir); err != nil {
			return err
		}
	}
	return nil
}
