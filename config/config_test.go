package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	t.Parallel()

	cfg := Default()
	require.NoError(t, cfg.Validate())
	require.Equal(t, "info", cfg.Logging.Level)
	require.Equal(t, "json", cfg.Logging.Format)
	require.Equal(t, 100, cfg.Demo.Items)
}

func TestLoad_File(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `logging:
  level: debug
  format: console
demo:
  items: 25
  square_workers: 3
  format_workers: 2
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "debug", cfg.Logging.Level)
	require.Equal(t, "console", cfg.Logging.Format)
	require.Equal(t, 25, cfg.Demo.Items)
	require.Equal(t, 3, cfg.Demo.SquareWorkers)
	require.Equal(t, 2, cfg.Demo.FormatWorkers)
}

func TestLoad_MissingFile(t *testing.T) {
	t.Parallel()

	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("STAGEPOOL_DEMO_ITEMS", "7")
	t.Setenv("STAGEPOOL_LOGGING_LEVEL", "warn")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, 7, cfg.Demo.Items)
	require.Equal(t, "warn", cfg.Logging.Level)
	require.Equal(t, "json", cfg.Logging.Format) // untouched default
}

func TestLoad_InvalidLevel(t *testing.T) {
	t.Setenv("STAGEPOOL_LOGGING_LEVEL", "shout")

	_, err := Load("")
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	t.Parallel()

	for name, breakIt := range map[string]func(*Config){
		"BadFormat":     func(c *Config) { c.Logging.Format = "xml" },
		"ZeroItems":     func(c *Config) { c.Demo.Items = 0 },
		"NoSquare":      func(c *Config) { c.Demo.SquareWorkers = 0 },
		"NegativeUnits": func(c *Config) { c.Demo.FormatWorkers = -1 },
	} {
		breakIt := breakIt
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			cfg := Default()
			breakIt(cfg)
			require.Error(t, cfg.Validate())
		})
	}
}
