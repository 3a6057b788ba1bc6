// Package config loads stagedemo settings from an optional YAML file, an
// optional .env file, and STAGEPOOL_-prefixed environment variables, in
// increasing order of precedence for the environment.
package config

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

// Config is the root configuration of the stagedemo binary.
type Config struct {
	Logging Logging `yaml:"logging" mapstructure:"logging"`
	Demo    Demo    `yaml:"demo" mapstructure:"demo"`
}

// Logging controls the demo's log output.
type Logging struct {
	// Level is a zerolog level name such as "debug" or "info".
	Level string `yaml:"level" mapstructure:"level"`
	// Format is either "json" or "console".
	Format string `yaml:"format" mapstructure:"format"`
}

// Demo sizes the demo pipeline.
type Demo struct {
	// Items is how many items are fed into the head stage.
	Items int `yaml:"items" mapstructure:"items"`
	// SquareWorkers sizes the squaring stage.
	SquareWorkers int `yaml:"square_workers" mapstructure:"square_workers"`
	// FormatWorkers sizes the formatting stage.
	FormatWorkers int `yaml:"format_workers" mapstructure:"format_workers"`
	// MetricsFile, when non-empty, is where the collected Prometheus
	// metrics are written in text format after the pipeline drains.
	MetricsFile string `yaml:"metrics_file" mapstructure:"metrics_file"`
}

// Default returns the configuration used when no file and no environment
// overrides are present.
func Default() *Config {
	return &Config{
		Logging: Logging{Level: "info", Format: "json"},
		Demo:    Demo{Items: 100, SquareWorkers: 4, FormatWorkers: 2},
	}
}

// Load reads configuration from path (optional, "" skips the file), a .env
// file in the working directory if one exists, and the environment.
// Environment variables use the STAGEPOOL_ prefix with underscore-separated
// paths, e.g. STAGEPOOL_DEMO_ITEMS overrides demo.items.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return nil, errors.Wrap(err, "config: loading .env")
		}
	}

	v := viper.New()
	v.SetEnvPrefix("STAGEPOOL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Registering defaults makes every key visible to AutomaticEnv during
	// Unmarshal, so environment-only overrides are picked up as well.
	def := Default()
	v.SetDefault("logging.level", def.Logging.Level)
	v.SetDefault("logging.format", def.Logging.Format)
	v.SetDefault("demo.items", def.Demo.Items)
	v.SetDefault("demo.square_workers", def.Demo.SquareWorkers)
	v.SetDefault("demo.format_workers", def.Demo.FormatWorkers)
	v.SetDefault("demo.metrics_file", def.Demo.MetricsFile)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "config: reading %s", path)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.Wrap(err, "config: unmarshal")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports the first invalid field.
func (c *Config) Validate() error {
	if _, err := zerolog.ParseLevel(c.Logging.Level); err != nil {
		return errors.Wrapf(err, "config: logging.level %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return errors.Errorf("config: logging.format must be json or console (got %q)", c.Logging.Format)
	}
	if c.Demo.Items < 1 {
		return errors.New("config: demo.items must be positive")
	}
	if c.Demo.SquareWorkers < 1 {
		return errors.New("config: demo.square_workers must be positive")
	}
	if c.Demo.FormatWorkers < 1 {
		return errors.New("config: demo.format_workers must be positive")
	}
	return nil
}
