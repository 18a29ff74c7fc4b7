// internal/workers/visit-reminder/config.go
package visitreminder

import (
	"time"

	"property-tracker/internal/common/config"
)

type Config struct {
	Enabled   bool
	Interval  time.Duration
	Lookahead time.Duration
	BatchSize int
	Timeout   time.Duration
}

func LoadConfig(cfg config.ReminderConfig) *Config {
	c := &Config{
		Enabled:   cfg.Enabled,
		Interval:  time.Duration(cfg.Interval) * time.Second,
		Lookahead: time.Duration(cfg.Lookahead) * time.Minute,
		BatchSize: cfg.BatchSize,
		Timeout:   30 * time.Second,
	}
	if c.Interval <= 0 {
		c.Interval = 5 * time.Minute
	}
	if c.Lookahead <= 0 {
		c.Lookahead = 24 * time.Hour
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 50
	}
	return c
}
