// internal/autosync/config.go
package autosync

import (
	"time"

	"property-tracker/internal/common/config"
)

type Config struct {
	Debounce     time.Duration
	RetryInitial time.Duration
	RetryMax     time.Duration
	MaxAttempts  int
	WriteTimeout time.Duration
}

func LoadConfig(cfg config.SyncConfig) Config {
	return Config{
		Debounce:     time.Duration(cfg.DebounceMS) * time.Millisecond,
		RetryInitial: time.Duration(cfg.RetryInitialMS) * time.Millisecond,
		RetryMax:     time.Duration(cfg.RetryMaxMS) * time.Millisecond,
		MaxAttempts:  cfg.MaxAttempts,
		WriteTimeout: time.Duration(cfg.WriteTimeoutMS) * time.Millisecond,
	}
}

// DefaultConfig matches the config loader defaults.
func DefaultConfig() Config {
	return Config{
		Debounce:     time.Second,
		RetryInitial: 2 * time.Second,
		RetryMax:     time.Minute,
		MaxAttempts:  8,
		WriteTimeout: 5 * time.Second,
	}
}
