package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newViper(values map[string]any) *viper.Viper {
	v := viper.New()
	for k, val := range values {
		v.Set(k, val)
	}
	return v
}

func TestFromViper_Defaults(t *testing.T) {
	cfg, err := fromViper(newViper(map[string]any{
		"GATEWAY_TOKEN": "secret",
		"DATABASE_URL":  "postgres://localhost/streak",
	}))
	require.NoError(t, err)

	assert.Equal(t, "5200", cfg.Port)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.AllowedOrigins)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.True(t, cfg.Cleanup.Enabled)
	assert.Equal(t, "59 23 * * *", cfg.Cleanup.Schedule)
	assert.Equal(t, time.UTC, cfg.Cleanup.Location)
	assert.Equal(t, 7, cfg.Window.StartHour)
	assert.Equal(t, 24, cfg.Window.EndHour)
	assert.Equal(t, 30*time.Second, cfg.Sync.Interval)
	assert.False(t, cfg.Redis.Enabled())
	assert.False(t, cfg.Sync.Enabled())
}

func TestFromViper_Overrides(t *testing.T) {
	cfg, err := fromViper(newViper(map[string]any{
		"GATEWAY_TOKEN":   "secret",
		"DATABASE_DRIVER": "SQLite",
		"ALLOWED_ORIGINS": " https://a.example , ,https://b.example",
		"CLEANUP_TZ":      "Europe/Berlin",
		"REDIS_ADDR":      "localhost:6379",
		"SYNC_INTERVAL":   "5m",
	}))
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "streak.db", cfg.Database.URL)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
	assert.Equal(t, "Europe/Berlin", cfg.Cleanup.Location.String())
	assert.True(t, cfg.Redis.Enabled())
	assert.Equal(t, 5*time.Minute, cfg.Sync.Interval)
}

func TestFromViper_Invalid(t *testing.T) {
	cases := []struct {
		name   string
		values map[string]any
		errMsg string
	}{
		{"missing token", map[string]any{"DATABASE_URL": "x"}, "GATEWAY_TOKEN"},
		{"missing dsn", map[string]any{"GATEWAY_TOKEN": "t"}, "DATABASE_URL"},
		{"bad driver", map[string]any{"GATEWAY_TOKEN": "t", "DATABASE_DRIVER": "mysql"}, "DATABASE_DRIVER"},
		{"bad zone", map[string]any{"GATEWAY_TOKEN": "t", "DATABASE_URL": "x", "CLEANUP_TZ": "Mars/Base"}, "CLEANUP_TZ"},
		{"bad window", map[string]any{"GATEWAY_TOKEN": "t", "DATABASE_URL": "x", "SUBMISSION_WINDOW_START": 20, "SUBMISSION_WINDOW_END": 8}, "submission window"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := fromViper(newViper(tc.values))
			assert.ErrorContains(t, err, tc.errMsg)
		})
	}
}
