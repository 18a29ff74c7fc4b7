// internal/common/config/config.go
package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Auth       AuthConfig       `mapstructure:"auth"`
	APIs       APIsConfig       `mapstructure:"apis"`
	Extraction ExtractionConfig `mapstructure:"extraction"`
	Sync       SyncConfig       `mapstructure:"sync"`
	Scoring    ScoringConfig    `mapstructure:"scoring"`
	Reminders  ReminderConfig   `mapstructure:"reminders"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type ServerConfig struct {
	Address      string   `mapstructure:"address"`
	PublicOrigin string   `mapstructure:"public_origin"` // used to build share links
	CORSOrigins  []string `mapstructure:"cors_origins"`
	ReadTimeout  int      `mapstructure:"read_timeout"`  // milliseconds
	WriteTimeout int      `mapstructure:"write_timeout"` // milliseconds
}

type DatabaseConfig struct {
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Redis         RedisConfig         `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// ElasticsearchConfig is optional; search is disabled when no address is set.
type ElasticsearchConfig struct {
	Addresses []string `mapstructure:"addresses"`
	Username  string   `mapstructure:"username"`
	Password  string   `mapstructure:"password"`
	Index     string   `mapstructure:"index"`
	URL       string   `mapstructure:"url"` // Single URL for backwards compatibility
}

// GetURL returns the first address or the URL field
func (e ElasticsearchConfig) GetURL() string {
	if e.URL != "" {
		return e.URL
	}
	if len(e.Addresses) > 0 {
		return e.Addresses[0]
	}
	return ""
}

// Enabled reports whether an Elasticsearch endpoint is configured.
func (e ElasticsearchConfig) Enabled() bool {
	return e.GetURL() != ""
}

// RedisConfig.Address is host:port or a redis:// URL.
type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

// AuthConfig holds session settings.
type AuthConfig struct {
	SessionTTL int    `mapstructure:"session_ttl"` // seconds
	BcryptCost int    `mapstructure:"bcrypt_cost"`
	KeyPrefix  string `mapstructure:"key_prefix"`
}

// APIsConfig holds settings for external API integrations.
type APIsConfig struct {
	GenAI struct {
		BaseURL string `mapstructure:"base_url"`
		APIKey  string `mapstructure:"api_key"`
		Model   string `mapstructure:"model"`
		Timeout int    `mapstructure:"timeout"` // milliseconds
	} `mapstructure:"genai"`
}

// ExtractionConfig controls how listing pages are fetched before prompting.
type ExtractionConfig struct {
	FetchPage    bool `mapstructure:"fetch_page"`
	FetchTimeout int  `mapstructure:"fetch_timeout"` // milliseconds
	MaxPageBytes int  `mapstructure:"max_page_bytes"`
	MaxPromptLen int  `mapstructure:"max_prompt_chars"`
	SlotIdleMS   int  `mapstructure:"slot_idle_ms"`

	// AllowPrivateHosts lets page fetches reach loopback and private networks.
	AllowPrivateHosts bool `mapstructure:"allow_private_hosts"`
}

// SyncConfig controls the draft autosave scheduler.
type SyncConfig struct {
	DebounceMS     int `mapstructure:"debounce_ms"`
	RetryInitialMS int `mapstructure:"retry_initial_ms"`
	RetryMaxMS     int `mapstructure:"retry_max_ms"`
	MaxAttempts    int `mapstructure:"max_attempts"`
	WriteTimeoutMS int `mapstructure:"write_timeout_ms"`
	SessionIdleMS  int `mapstructure:"session_idle_ms"`
	ReapIntervalMS int `mapstructure:"reap_interval_ms"`
}

// ScoringConfig holds the constants of the price-per-area display heuristic.
type ScoringConfig struct {
	ReferenceConstant float64 `mapstructure:"reference_constant"`
	Cap               float64 `mapstructure:"cap"`
}

// ReminderConfig holds settings for the visit-reminder worker.
type ReminderConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Interval  int    `mapstructure:"interval"`  // seconds
	Lookahead int    `mapstructure:"lookahead"` // minutes
	BatchSize int    `mapstructure:"batch_size"`
	FromEmail string `mapstructure:"from_email"`
	TopicARN  string `mapstructure:"topic_arn"`
	Region    string `mapstructure:"region"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}
