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

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
server:
  port: "8080"
  mode: release
database:
  type: sqlite
  path: data/tracker.db
whm:
  protocol: https
  username: root
  connection_timeout: 15s
  skip_tls_verify: true
tracker:
  check_interval: "0 */6 * * *"
  stale_after: 12h
  ignore_usernames:
    - gwscripts
  admin_emails:
    - admin@example.com
  disk_warning_percent: 60
  disk_critical_percent: 80
  disk_full_percent: 90
notifications:
  email:
    enabled: true
    smtp_host: smtp.example.com
    smtp_port: 587
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "sqlite", cfg.Database.Type)
	assert.Equal(t, 15*time.Second, cfg.WHM.ConnectionTimeoutDuration())
	assert.True(t, cfg.WHM.SkipTLSVerify)
	assert.Equal(t, []string{"gwscripts"}, cfg.Tracker.IgnoreUsernames)
	assert.Equal(t, 12*time.Hour, cfg.Tracker.StaleAfterDuration())
	assert.Equal(t, 60, cfg.Tracker.DiskWarningPercent)
	assert.True(t, cfg.Notifications.Email.Enabled)
}

func TestLoadConfigDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  port: "8080"
database:
  type: sqlite
  path: data/tracker.db
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "https", cfg.WHM.Protocol)
	assert.Equal(t, "root", cfg.WHM.Username)
	assert.Equal(t, 10*time.Second, cfg.WHM.ConnectionTimeoutDuration())
	assert.Equal(t, 70, cfg.Tracker.DiskWarningPercent)
	assert.Equal(t, 85, cfg.Tracker.DiskCriticalPercent)
	assert.Equal(t, 95, cfg.Tracker.DiskFullPercent)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestConnectionTimeoutFallback(t *testing.T) {
	cfg := WHMConfig{ConnectionTimeout: "not-a-duration"}
	assert.Equal(t, 10*time.Second, cfg.ConnectionTimeoutDuration())
}

func TestStaleAfterDuration(t *testing.T) {
	cfg := TrackerConfig{StaleAfter: "24h"}
	assert.Equal(t, 24*time.Hour, cfg.StaleAfterDuration())

	// Missing or unparsable values disable the check
	cfg = TrackerConfig{}
	assert.Equal(t, time.Duration(0), cfg.StaleAfterDuration())

	cfg = TrackerConfig{StaleAfter: "soon"}
	assert.Equal(t, time.Duration(0), cfg.StaleAfterDuration())
}
