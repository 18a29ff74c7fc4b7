// internal/common/config/loader_test.go
package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

const minimalConfig = `
database:
  postgres:
    host: localhost
    database: tracker
    user: tracker
  redis:
    address: localhost:6379
apis:
  genai:
    base_url: http://localhost:11434/v1
`

func TestLoadFromFile_AppliesDefaults(t *testing.T) {
	cfg, err := LoadFromFile(writeConfig(t, minimalConfig))
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Address)
	assert.Equal(t, 5432, cfg.Database.Postgres.Port)
	assert.Equal(t, "disable", cfg.Database.Postgres.SSLMode)
	assert.Equal(t, 1000, cfg.Sync.DebounceMS)
	assert.Equal(t, 180000.0, cfg.Scoring.ReferenceConstant)
	assert.Equal(t, 100.0, cfg.Scoring.Cap)
	assert.Equal(t, "properties", cfg.Database.Elasticsearch.Index)
	assert.False(t, cfg.Database.Elasticsearch.Enabled())
	assert.Equal(t, "session:", cfg.Auth.KeyPrefix)
	assert.Equal(t, 30*60*1000, cfg.Sync.SessionIdleMS)
	assert.Equal(t, 60*1000, cfg.Sync.ReapIntervalMS)
	assert.Equal(t, 30*60*1000, cfg.Extraction.SlotIdleMS)
	assert.False(t, cfg.Extraction.AllowPrivateHosts)
}

func TestLoadFromFile_ExpandsEnvPlaceholders(t *testing.T) {
	t.Setenv("TEST_GENAI_KEY", "sk-test")

	cfg, err := LoadFromFile(writeConfig(t, minimalConfig+`
    api_key: ${TEST_GENAI_KEY}
`))
	require.NoError(t, err)
	assert.Equal(t, "sk-test", cfg.APIs.GenAI.APIKey)
}

func TestLoadFromFile_Validation(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		message string
	}{
		{
			name: "missing postgres host",
			body: `
database:
  redis:
    address: localhost:6379
apis:
  genai:
    base_url: http://x
`,
			message: "database.postgres.host is required",
		},
		{
			name: "missing genai base url",
			body: `
database:
  postgres:
    host: localhost
    database: tracker
    user: tracker
  redis:
    address: localhost:6379
`,
			message: "apis.genai.base_url is required",
		},
		{
			name: "reminders without a channel",
			body: minimalConfig + `
reminders:
  enabled: true
`,
			message: "reminders.from_email or reminders.topic_arn",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFromFile(writeConfig(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.message)
		})
	}
}

func TestElasticsearchConfig_GetURL(t *testing.T) {
	assert.Equal(t, "http://a:9200", ElasticsearchConfig{Addresses: []string{"http://a:9200"}}.GetURL())
	assert.Equal(t, "http://u:9200", ElasticsearchConfig{URL: "http://u:9200", Addresses: []string{"http://a:9200"}}.GetURL())
	assert.Equal(t, "", ElasticsearchConfig{}.GetURL())
}

func TestGetDuration(t *testing.T) {
	assert.Equal(t, 1500*time.Millisecond, GetDuration(1500))
}
