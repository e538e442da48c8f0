package config

const (
	defaultMaxRevolutions   = 5
	defaultMaxRetries       = 3
	defaultMinConfidence    = 0.75
	defaultWeakBitBudget    = 16
	defaultMaxDoubleBitScan = 1024
	defaultFillByte         = 0xE5
	defaultWindowLow        = 0.75
	defaultWindowHigh       = 1.25
	defaultSyncScan         = 64
	defaultLogLevel         = "info"
	defaultLogFormat        = "console"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Recovery: Recovery{
			MaxRevolutions:   defaultMaxRevolutions,
			MaxRetries:       defaultMaxRetries,
			MinConfidence:    defaultMinConfidence,
			StrictMode:       false,
			WeakBitBudget:    defaultWeakBitBudget,
			MaxDoubleBitScan: defaultMaxDoubleBitScan,
			Workers:          0, // resolved to GOMAXPROCS at normalize time
			FillByte:         defaultFillByte,
			EnableRebuild:    true,
		},
		Decode: Decode{
			WindowLow:  defaultWindowLow,
			WindowHigh: defaultWindowHigh,
			SyncScan:   defaultSyncScan,
		},
		Results: Results{
			Enabled: false,
			Path:    "~/.local/share/fluxrescue/results.db",
		},
		LogLevel:  defaultLogLevel,
		LogFormat: defaultLogFormat,
	}
}
