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
	t.Setenv("STAFFING_CONFIG_FILE", "")
	t.Setenv("API_BASE_URL", "")

	require.NoError(t, Load())
	assert.Equal(t, "http://localhost:3000/api", AppConfig.API.BaseURL)
	assert.Equal(t, 10*time.Second, AppConfig.API.Timeout)
	assert.Equal(t, 30*time.Second, AppConfig.Jobs.UnreadPollInterval)
	assert.Equal(t, 3, AppConfig.Dashboard.UrgentAlertLimit)
	assert.Equal(t, 7, AppConfig.Dashboard.UpcomingDays)
}

func TestLoadFileThenEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "staffing.yaml")
	body := `
api:
  base_url: https://staffing.example.org/api
  timeout: 4s
store:
  driver: memory
session:
  nurse_id: 12
dashboard:
  urgent_alert_limit: 5
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	t.Setenv("STAFFING_CONFIG_FILE", path)
	t.Setenv("API_BASE_URL", "")
	t.Setenv("STAFFING_NURSE_ID", "44")
	t.Setenv("API_TIMEOUT", "bogus")

	require.NoError(t, Load())
	assert.Equal(t, "https://staffing.example.org/api", AppConfig.API.BaseURL)
	assert.Equal(t, 4*time.Second, AppConfig.API.Timeout, "invalid env duration keeps file value")
	assert.Equal(t, "memory", AppConfig.Store.Driver)
	assert.Equal(t, uint(44), AppConfig.Session.NurseID)
	assert.Equal(t, 5, AppConfig.Dashboard.UrgentAlertLimit)
}

func TestLoadMissingFile(t *testing.T) {
	t.Setenv("STAFFING_CONFIG_FILE", filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, Load())
}
