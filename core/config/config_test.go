package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_EnvOverridesDefaults(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	t.Setenv("APP_BASIC_AUTH", "admin:secret, ops:pass")
	t.Setenv("QUOTA_ADMIN_LIMIT", "250")
	t.Setenv("QUOTA_WINDOW", "10m")
	t.Setenv("VALKEY_ENABLED", "true")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, []string{"admin:secret", "ops:pass"}, cfg.App.BasicAuth)
	assert.Equal(t, 250, cfg.Quota.AdminLimit)
	assert.Equal(t, 100, cfg.Quota.DefaultLimit)
	assert.Equal(t, 10*time.Minute, cfg.Quota.Window)
	assert.True(t, cfg.Cache.ValkeyEnabled)
	assert.False(t, cfg.Quota.MemoryBackend)
	assert.Equal(t, 180*time.Second, cfg.Cache.AnalyticsTTL)
	assert.Same(t, cfg, Global)
	assert.NoError(t, cfg.Validate())
	assert.Equal(t, map[string]string{"admin": "secret", "ops": "pass"}, cfg.BasicAuthUsers())
}

func TestValidate_MissingSecretIsFatal(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	t.Setenv("APP_BASIC_AUTH", "")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "APP_BASIC_AUTH is required")
}

func TestValidate_RejectsZeroQuota(t *testing.T) {
	cfg := &Config{
		App:    AppConfig{BasicAuth: []string{"a:b"}},
		Quota:  QuotaConfig{Window: time.Minute, DefaultLimit: 0, AdminLimit: 10},
		Health: HealthConfig{MemoryMediumRatio: 0.5, MemoryHighRatio: 0.9},
	}
	assert.ErrorContains(t, cfg.Validate(), "quota limits must be positive")
}
