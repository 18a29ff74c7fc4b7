// internal/auth/config.go
package auth

import (
	"time"

	"property-tracker/internal/common/config"

	"golang.org/x/crypto/bcrypt"
)

const (
	defaultSessionTTL = 7 * 24 * time.Hour
	defaultKeyPrefix  = "tracker:"
	minPasswordLength = 8
)

type Config struct {
	SessionTTL time.Duration
	BcryptCost int
	KeyPrefix  string
}

func LoadConfig(cfg config.AuthConfig) *Config {
	c := &Config{
		SessionTTL: time.Duration(cfg.SessionTTL) * time.Second,
		BcryptCost: cfg.BcryptCost,
		KeyPrefix:  cfg.KeyPrefix,
	}
	if c.SessionTTL <= 0 {
		c.SessionTTL = defaultSessionTTL
	}
	if c.BcryptCost < bcrypt.MinCost || c.BcryptCost > bcrypt.MaxCost {
		c.BcryptCost = bcrypt.DefaultCost
	}
	if c.KeyPrefix == "" {
		c.KeyPrefix = defaultKeyPrefix
	}
	return c
}
