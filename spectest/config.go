package spectest

import (
	"os"
	"runtime"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/wippyai/specmerge/errors"
	"github.com/wippyai/specmerge/toolchain"
)

// Config describes one batch run
type Config struct {
	WasmDir     string          `yaml:"wasm_dir"`
	OutDir      string          `yaml:"out_dir"`
	InstallDir  string          `yaml:"install_dir"`
	Generator   string          `yaml:"generator"`
	Workers     int             `yaml:"workers"`
	Verify      bool            `yaml:"verify"`
	Backend     BackendConfig   `yaml:"backend"`
	Tools       toolchain.Tools `yaml:"tools"`
	Cache       CacheConfig     `yaml:"cache"`
	Breaker     BreakerConfig   `yaml:"breaker"`
	Log         LogConfig       `yaml:"log"`
	MetricsFile string          `yaml:"metrics_file"`
}

type CacheConfig struct {
	Size int `yaml:"size"`
}

type BreakerConfig struct {
	MaxFailures uint32        `yaml:"max_failures"`
	Timeout     time.Duration `yaml:"timeout"`
}

type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // console or json
}

// DefaultConfig returns a config with every optional field set
func DefaultConfig() *Config {
	bs := toolchain.DefaultBreakerSettings()
	return &Config{
		Generator: "eosio_test_generator",
		Workers:   runtime.NumCPU(),
		Tools:     toolchain.DefaultTools(),
		Cache:     CacheConfig{Size: toolchain.DefaultCacheSize},
		Breaker:   BreakerConfig{MaxFailures: bs.MaxFailures, Timeout: bs.Timeout},
		Log:       LogConfig{Level: "info", Format: "console"},
	}
}

// LoadConfig reads a YAML file over DefaultConfig. Keys missing from the
// file keep their defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "read "+path)
	}
	return ParseConfig(data)
}

// ParseConfig is LoadConfig for in-memory YAML
func ParseConfig(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "parse YAML config")
	}
	return cfg, nil
}

// Validate checks required fields and value ranges
func (c *Config) Validate() error {
	switch {
	case c.WasmDir == "":
		return errors.InvalidInput(errors.PhaseConfig, "wasm_dir is required")
	case c.OutDir == "":
		return errors.InvalidInput(errors.PhaseConfig, "out_dir is required")
	case c.Generator == "":
		return errors.InvalidInput(errors.PhaseConfig, "generator is required")
	case c.Workers < 1:
		return errors.New(errors.PhaseConfig, errors.KindOutOfBounds).
			Value(c.Workers).
			Detail("workers must be at least 1, got %d", c.Workers).
			Build()
	case c.Backend.Enabled() && c.Backend.Contract == "":
		return errors.InvalidInput(errors.PhaseConfig, "backend.contract is required with backend.command")
	case c.Cache.Size < 0:
		return errors.New(errors.PhaseConfig, errors.KindOutOfBounds).
			Value(c.Cache.Size).
			Detail("cache.size must not be negative, got %d", c.Cache.Size).
			Build()
	}

	if info, err := os.Stat(c.WasmDir); err != nil || !info.IsDir() {
		return errors.New(errors.PhaseConfig, errors.KindNotFound).
			Cause(err).
			Detail("wasm_dir %s is not a directory", c.WasmDir).
			Build()
	}

	if _, err := zap.ParseAtomicLevel(c.Log.Level); err != nil {
		return errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "log.level")
	}
	if c.Log.Format != "console" && c.Log.Format != "json" {
		return errors.New(errors.PhaseConfig, errors.KindInvalidInput).
			Detail("log.format must be console or json, got %q", c.Log.Format).
			Build()
	}
	return nil
}

// ToolchainOptions maps the tool, cache and breaker sections
func (c *Config) ToolchainOptions() toolchain.Options {
	return toolchain.Options{
		Tools:     c.Tools,
		CacheSize: c.Cache.Size,
		Breaker: toolchain.BreakerSettings{
			MaxFailures: c.Breaker.MaxFailures,
			Timeout:     c.Breaker.Timeout,
		},
	}
}

// Build creates a zap logger for this configuration
func (c LogConfig) Build() (*zap.Logger, error) {
	level, err := zap.ParseAtomicLevel(c.Level)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "log.level")
	}

	zc := zap.NewProductionConfig()
	if c.Format == "console" {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = level
	zc.Encoding = c.Format
	zc.OutputPaths = []string{"stderr"}
	zc.ErrorOutputPaths = []string{"stderr"}
	zc.DisableStacktrace = true

	l, err := zc.Build()
	if err != nil {
		return nil, errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "build logger")
	}
	return l, nil
}
