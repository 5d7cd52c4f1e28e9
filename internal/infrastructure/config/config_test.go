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
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	t.Run("loads default values when nothing is configured", func(t *testing.T) {
		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "chatbridge", cfg.App.Name)
		assert.Equal(t, "development", cfg.App.Env)
		assert.Equal(t, "localhost", cfg.Redis.Host)
		assert.Equal(t, 6379, cfg.Redis.Port)
		assert.Equal(t, "chatbridge:", cfg.Redis.KeyPrefix)
		assert.Equal(t, 1000, cfg.Dedup.MaxProcessedLimit)
		assert.Equal(t, 1000, cfg.Buffer.MaxLength)
		assert.Equal(t, 3, cfg.Retry.MaxRetries)
		assert.Equal(t, 5*time.Second, cfg.Retry.Delay)
		assert.Equal(t, 4*time.Second, cfg.Delivery.SendInterval)
		assert.Equal(t, 5, cfg.SideA.Window)
		assert.Equal(t, 10, cfg.SideB.Window)
		assert.Equal(t, DefaultRequestPatterns, cfg.SideA.RequestPatterns)
		assert.Equal(t, DefaultOrderPatterns, cfg.Correlation.OrderPatterns)
		assert.Equal(t, ".news-box", cfg.SideB.Browser.ItemSelector)
		assert.Equal(t, ":8090", cfg.HTTP.Addr)
		assert.Empty(t, cfg.SideA.Sessions)
	})

	t.Run("loads values from environment variables with BRIDGE prefix", func(t *testing.T) {
		t.Setenv("BRIDGE_REDIS_HOST", "redis.internal")
		t.Setenv("BRIDGE_REDIS_PORT", "6380")
		t.Setenv("BRIDGE_RETRY_MAX_RETRIES", "5")
		t.Setenv("BRIDGE_RETRY_DELAY", "250ms")
		t.Setenv("BRIDGE_SIDE_A_WINDOW", "8")
		t.Setenv("BRIDGE_LOG_FORMAT", "json")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "redis.internal", cfg.Redis.Host)
		assert.Equal(t, 6380, cfg.Redis.Port)
		assert.Equal(t, 5, cfg.Retry.MaxRetries)
		assert.Equal(t, 250*time.Millisecond, cfg.Retry.Delay)
		assert.Equal(t, 8, cfg.SideA.Window)
		assert.Equal(t, "json", cfg.Log.Format)
	})

	t.Run("reads sessions and patterns from a TOML file", func(t *testing.T) {
		path := writeConfig(t, `
[side_a]
window = 3
request_patterns = ['YT\d{13}\s*催件']
automated_sender_patterns = ['^bot-']

[[side_a.sessions]]
id = "S1"
display_name = "order-group"

[[side_a.sessions]]
id = "s2"
display_name = "售后群"

[correlation]
order_patterns = ['YT\d{13}', 'JT\d{12}']
`)
		cfg, err := LoadFile(path)
		require.NoError(t, err)

		assert.Equal(t, 3, cfg.SideA.Window)
		assert.Equal(t, []string{`YT\d{13}\s*催件`}, cfg.SideA.RequestPatterns)
		assert.Equal(t, []string{`YT\d{13}`, `JT\d{12}`}, cfg.Correlation.OrderPatterns)
		require.Len(t, cfg.SideA.Sessions, 2)
		assert.Equal(t, map[string]string{"S1": "order-group", "s2": "售后群"}, cfg.SideA.SessionDisplayNames())
	})

	t.Run("missing explicit file is an error", func(t *testing.T) {
		_, err := LoadFile(filepath.Join(t.TempDir(), "nope.toml"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "error reading config file")
	})
}

func TestLoad_Validation(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		file    string
		wantErr string
	}{
		{
			name:    "negative retry count",
			env:     map[string]string{"BRIDGE_RETRY_MAX_RETRIES": "-1"},
			wantErr: "retry.max_retries",
		},
		{
			name:    "invalid order pattern",
			env:     map[string]string{"BRIDGE_CORRELATION_ORDER_PATTERNS": "YT(\\d"},
			wantErr: "correlation.order_patterns[0]",
		},
		{
			name:    "unknown log format",
			env:     map[string]string{"BRIDGE_LOG_FORMAT": "xml"},
			wantErr: "log.format",
		},
		{
			name:    "sampling ratio out of range",
			env:     map[string]string{"BRIDGE_TELEMETRY_SAMPLING_RATIO": "1.5"},
			wantErr: "telemetry.sampling_ratio",
		},
		{
			name: "duplicate session id",
			file: `
[[side_a.sessions]]
id = "s1"
display_name = "a"

[[side_a.sessions]]
id = "s1"
display_name = "b"
`,
			wantErr: "duplicate session id",
		},
		{
			name: "session without display name",
			file: `
[[side_a.sessions]]
id = "s1"
`,
			wantErr: "display_name",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			var err error
			if tt.file != "" {
				_, err = LoadFile(writeConfig(t, tt.file))
			} else {
				_, err = Load()
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
