package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envOf(vars map[string]string) func(string) string {
	return func(k string) string { return vars[k] }
}

func TestFromEnv_Defaults(t *testing.T) {
	cfg, err := FromEnv(envOf(map[string]string{
		"DATABASE_URL":   "postgres://localhost/tournaments",
		"JWT_SECRET_KEY": "secret",
	}))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.ServerPort)
	assert.Equal(t, time.Minute, cfg.SchedulerInterval)
	assert.Equal(t, 24*time.Hour, cfg.GenerationLeadTime)
	assert.Equal(t, 24*time.Hour, cfg.RoundSpacing)
	assert.Equal(t, time.Hour, cfg.GroupMatchSpacing)
	assert.Equal(t, 1000, cfg.DefaultRating)
	assert.Equal(t, 2, cfg.AdvancePerPool)
	assert.Equal(t, 2, cfg.AdvanceFromKnockout)
	assert.Equal(t, []string{"*"}, cfg.CORSAllowedOrigins)
}

func TestFromEnv_Overrides(t *testing.T) {
	cfg, err := FromEnv(envOf(map[string]string{
		"DATABASE_URL":         "postgres://localhost/tournaments",
		"JWT_SECRET_KEY":       "secret",
		"SERVER_PORT":          "9090",
		"SCHEDULER_INTERVAL":   "30s",
		"GENERATION_LEAD_TIME": "2h",
		"ADVANCE_PER_POOL":     "1",
		"CORS_ALLOWED_ORIGINS": "https://a.example.com, https://b.example.com",
	}))
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.ServerPort)
	assert.Equal(t, 30*time.Second, cfg.SchedulerInterval)
	assert.Equal(t, 2*time.Hour, cfg.GenerationLeadTime)
	assert.Equal(t, 1, cfg.AdvancePerPool)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.CORSAllowedOrigins)
}

func TestFromEnv_Errors(t *testing.T) {
	base := map[string]string{"DATABASE_URL": "postgres://x", "JWT_SECRET_KEY": "k"}
	with := func(k, v string) map[string]string {
		m := map[string]string{}
		for key, val := range base {
			m[key] = val
		}
		m[k] = v
		return m
	}

	tests := []struct {
		name string
		env  map[string]string
	}{
		{"missing database url", with("DATABASE_URL", "")},
		{"missing jwt key", with("JWT_SECRET_KEY", "")},
		{"bad port", with("SERVER_PORT", "abc")},
		{"port out of range", with("SERVER_PORT", "70000")},
		{"bad interval", with("SCHEDULER_INTERVAL", "soon")},
		{"negative lead time", with("GENERATION_LEAD_TIME", "-1h")},
		{"zero advance", with("ADVANCE_FROM_KNOCKOUT", "0")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FromEnv(envOf(tt.env))
			assert.Error(t, err)
		})
	}
}
