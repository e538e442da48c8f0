package config

import (
	"fmt"
	"runtime"
	"strings"
)

func normalize(cfg *Config) {
	if cfg.Recovery.Workers <= 0 {
		cfg.Recovery.Workers = runtime.GOMAXPROCS(0)
	}
	if cfg.Recovery.MaxRevolutions <= 0 {
		cfg.Recovery.MaxRevolutions = defaultMaxRevolutions
	}
	if cfg.Decode.WindowLow <= 0 {
		cfg.Decode.WindowLow = defaultWindowLow
	}
	if cfg.Decode.WindowHigh <= 0 {
		cfg.Decode.WindowHigh = defaultWindowHigh
	}
	cfg.LogLevel = strings.ToLower(strings.TrimSpace(cfg.LogLevel))
	if cfg.LogLevel == "" {
		cfg.LogLevel = defaultLogLevel
	}
	cfg.LogFormat = strings.ToLower(strings.TrimSpace(cfg.LogFormat))
	if cfg.LogFormat == "" {
		cfg.LogFormat = defaultLogFormat
	}
	cfg.Results.Path = expandHome(strings.TrimSpace(cfg.Results.Path))
	cfg.LogDir = expandHome(strings.TrimSpace(cfg.LogDir))
}

// Validate rejects configurations the pipeline cannot run with. These are
// treated as fail-fast programmer or operator errors, not recoverable decode
// failures.
func (cfg *Config) Validate() error {
	r := cfg.Recovery
	if r.MaxRetries < 0 {
		return fmt.Errorf("recovery.max_retries must be >= 0, got %d", r.MaxRetries)
	}
	if r.MinConfidence < 0 || r.MinConfidence > 1 {
		return fmt.Errorf("recovery.min_confidence must be in [0,1], got %g", r.MinConfidence)
	}
	if r.WeakBitBudget < 0 || r.WeakBitBudget > 24 {
		return fmt.Errorf("recovery.weak_bit_budget must be in [0,24], got %d", r.WeakBitBudget)
	}
	if r.MaxDoubleBitScan < 0 {
		return fmt.Errorf("recovery.max_double_bit_scan must be >= 0 (0 disables the search), got %d", r.MaxDoubleBitScan)
	}
	if r.FillByte < 0 || r.FillByte > 0xFF {
		return fmt.Errorf("recovery.fill_byte must be a byte value, got %d", r.FillByte)
	}
	d := cfg.Decode
	if d.WindowLow >= d.WindowHigh {
		return fmt.Errorf("decode window invalid: low %g must be below high %g", d.WindowLow, d.WindowHigh)
	}
	if d.WindowLow < 0.5 || d.WindowHigh > 2.0 {
		return fmt.Errorf("decode window [%g,%g] outside supported range [0.5,2.0]", d.WindowLow, d.WindowHigh)
	}
	if cfg.Results.Enabled && strings.TrimSpace(cfg.Results.Path) == "" {
		return fmt.Errorf("results.path required when results.enabled is true")
	}
	return nil
}
