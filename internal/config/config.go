// Package config loads and validates the TOML configuration that drives the
// recovery pipeline.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Recovery contains the knobs for the five-stage recovery pipeline.
type Recovery struct {
	MaxRevolutions   int     `toml:"max_revolutions"`
	MaxRetries       int     `toml:"max_retries"`
	MinConfidence    float64 `toml:"min_confidence"`
	StrictMode       bool    `toml:"strict_mode"`
	WeakBitBudget    int     `toml:"weak_bit_budget"`
	MaxDoubleBitScan int     `toml:"max_double_bit_scan"`
	Workers          int     `toml:"workers"`
	FillByte         int     `toml:"fill_byte"`
	EnableRebuild    bool    `toml:"enable_rebuild"`
}

// Decode contains bit-decode tuning shared by the flux decoders.
type Decode struct {
	WindowLow  float64 `toml:"window_low"`
	WindowHigh float64 `toml:"window_high"`
	SyncScan   int     `toml:"sync_scan"`
}

// Results controls the optional per-session results database.
type Results struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// Config is the root configuration document.
type Config struct {
	Recovery  Recovery `toml:"recovery"`
	Decode    Decode   `toml:"decode"`
	Results   Results  `toml:"results"`
	LogLevel  string   `toml:"log_level"`
	LogFormat string   `toml:"log_format"`
	LogDir    string   `toml:"log_dir"`
}

// DefaultConfigPath returns the conventional user config location.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "fluxrescue.toml")
	}
	return filepath.Join(home, ".config", "fluxrescue", "config.toml")
}

// Load reads configuration from path, falling back to the default location
// when path is empty. A missing file yields defaults with exists=false.
func Load(path string) (*Config, string, bool, error) {
	resolved := strings.TrimSpace(path)
	if resolved == "" {
		resolved = DefaultConfigPath()
	}
	resolved = expandHome(resolved)

	cfg := Default()

	data, err := os.ReadFile(resolved)
	switch {
	case err == nil:
		if unmarshalErr := toml.Unmarshal(data, &cfg); unmarshalErr != nil {
			return nil, resolved, true, fmt.Errorf("parse config %s: %w", resolved, unmarshalErr)
		}
	case errors.Is(err, fs.ErrNotExist):
		normalize(&cfg)
		return &cfg, resolved, false, nil
	default:
		return nil, resolved, false, fmt.Errorf("read config %s: %w", resolved, err)
	}

	normalize(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, resolved, true, err
	}
	return &cfg, resolved, true, nil
}

// WriteSample writes the embedded sample configuration to path.
func WriteSample(path string) error {
	path = expandHome(path)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("ensure config directory: %w", err)
	}
	return os.WriteFile(path, []byte(sampleConfig), 0o644)
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(strings.TrimPrefix(path, "~"), string(os.PathSeparator)))
}
