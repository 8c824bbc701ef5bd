package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("NPS_API_KEY", "nps-key")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, "nps-key", cfg.Parks.APIKey)
	assert.Empty(t, cfg.OpenWeather.APIKey)
	assert.Equal(t, 1000, cfg.RequestsPerHour)
	assert.Equal(t, 25*time.Second, cfg.ContextTimeout)
	assert.Equal(t, "8080", cfg.Port)

	policy := cfg.RetryPolicy()
	assert.Equal(t, 3, policy.MaxAttempts)
	assert.Equal(t, time.Second, policy.BaseDelay)
	assert.Equal(t, 60*time.Second, policy.MaxDelay)
	assert.True(t, policy.IsRetryableStatus(429))
	assert.False(t, policy.IsRetryableStatus(404))

	reg := cfg.Registry()
	assert.Equal(t, "nps-key", reg.Parks.APIKey)
	assert.Equal(t, uint32(10), reg.AirVisual.BreakerThreshold)
}

func TestLoadEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("AIRVISUAL_API_KEY=from-file\nRETRY_MAX_ATTEMPTS=5\n"), 0o600))
	t.Setenv("AIRVISUAL_API_KEY", "")
	t.Setenv("RETRY_MAX_ATTEMPTS", "")
	os.Unsetenv("AIRVISUAL_API_KEY")
	os.Unsetenv("RETRY_MAX_ATTEMPTS")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-file", cfg.AirVisual.APIKey)
	assert.Equal(t, 5, cfg.RetryMaxAttempts)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	t.Run("bad duration", func(t *testing.T) {
		t.Setenv("HTTP_TIMEOUT", "soon")
		_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
		assert.ErrorContains(t, err, "HTTP_TIMEOUT")
	})
	t.Run("jitter out of range", func(t *testing.T) {
		t.Setenv("RETRY_JITTER", "1.5")
		_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
		assert.ErrorContains(t, err, "invalid configuration")
	})
	t.Run("max delay below base", func(t *testing.T) {
		t.Setenv("RETRY_BASE_DELAY", "10s")
		t.Setenv("RETRY_MAX_DELAY", "1s")
		_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
		assert.ErrorContains(t, err, "invalid configuration")
	})
}
