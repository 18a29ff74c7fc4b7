// internal/extraction/config.go
package extraction

import (
	"time"

	"property-tracker/internal/common/config"
)

type Config struct {
	GenAIBaseURL      string
	APIKey            string
	Model             string
	Timeout           time.Duration
	FetchPage         bool
	FetchTimeout      time.Duration
	MaxPageBytes      int64
	MaxPromptChars    int
	AllowPrivateHosts bool
	SlotIdle          time.Duration
}

// maxPageRedirects bounds how far a listing URL may redirect.
const maxPageRedirects = 5

func LoadConfig(cfg *config.Config) *Config {
	return &Config{
		GenAIBaseURL:      cfg.APIs.GenAI.BaseURL,
		APIKey:            cfg.APIs.GenAI.APIKey,
		Model:             cfg.APIs.GenAI.Model,
		Timeout:           time.Duration(cfg.APIs.GenAI.Timeout) * time.Millisecond,
		FetchPage:         cfg.Extraction.FetchPage,
		FetchTimeout:      time.Duration(cfg.Extraction.FetchTimeout) * time.Millisecond,
		MaxPageBytes:      int64(cfg.Extraction.MaxPageBytes),
		MaxPromptChars:    cfg.Extraction.MaxPromptLen,
		AllowPrivateHosts: cfg.Extraction.AllowPrivateHosts,
		SlotIdle:          time.Duration(cfg.Extraction.SlotIdleMS) * time.Millisecond,
	}
}
