// ABOUTME: Tests for configuration loading
// ABOUTME: Verifies env expansion, defaults, duration parsing, and validation

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "gateway.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

const minimalConfig = `
database:
  path: /tmp/gateway.db
model:
  api_key: test-key
`

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig))
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8765", cfg.Server.ChatAddr)
	assert.Equal(t, "0.0.0.0:8080", cfg.Server.HTTPAddr)
	assert.Equal(t, 25*time.Second, cfg.Heartbeat.Interval)
	assert.Equal(t, 10*time.Second, cfg.Heartbeat.Timeout)
	assert.Equal(t, 3, cfg.Heartbeat.MaxRetries)
	assert.Equal(t, "gpt-4o-mini", cfg.Model.Name)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
}

func TestLoad_EnvExpansion(t *testing.T) {
	t.Setenv("TEST_GATEWAY_KEY", "expanded-key")

	cfg, err := Load(writeConfig(t, `
database:
  path: /tmp/gateway.db
model:
  api_key: ${TEST_GATEWAY_KEY}
`))
	require.NoError(t, err)
	assert.Equal(t, "expanded-key", cfg.Model.APIKey)
}

func TestLoad_DurationParsing(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig+`
heartbeat:
  interval: 5s
  timeout: 1500ms
  max_retries: 7
`))
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, cfg.Heartbeat.Interval)
	assert.Equal(t, 1500*time.Millisecond, cfg.Heartbeat.Timeout)
	assert.Equal(t, 7, cfg.Heartbeat.MaxRetries)
}

func TestLoad_InvalidDuration(t *testing.T) {
	_, err := Load(writeConfig(t, minimalConfig+`
heartbeat:
  interval: often
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing heartbeat interval")
}

func TestLoad_ValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			"missing database path",
			"model:\n  api_key: k\n",
			"database.path is required",
		},
		{
			"missing api key",
			"database:\n  path: /tmp/db\n",
			"model.api_key is required",
		},
		{
			"short jwt secret",
			minimalConfig + "auth:\n  jwt_secret: tooshort\n",
			"jwt_secret",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
