package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeYAML(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	p := filepath.Join(dir, "drivetherm.yaml")
	require.NoError(t, os.WriteFile(p, []byte(content), 0644))
	return p
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"DRIVETHERM_LISTEN", "DRIVETHERM_DB_PATH", "DRIVETHERM_LOG_LEVEL",
		"DRIVETHERM_LOG_FORMAT", "DRIVETHERM_PROBE_POLICY",
		"DRIVETHERM_DEVICE_GLOBS", "DRIVETHERM_NTFY_URL", "DRIVETHERM_NTFY_TOPIC",
		"DRIVETHERM_HISTORY_HOURS", "DRIVETHERM_WORKER_POOL_SIZE",
	} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func validConfig() *Config {
	return defaults()
}

const fullYAML = `
listen: ":9090"
db_path: "/tmp/test.db"
log_level: "debug"
history_hours: 24
worker_pool_size: 8

probe:
  policy: "direct"

local:
  enabled: true
  device_globs: ["/dev/sd?"]
  poll_interval: "10s"
  scan_interval: "1m"

remote:
  - name: nas
    host: "192.168.1.50:22"
    user: "root"
    key_path: "/config/ssh/id_ed25519"
    devices: ["/dev/sda", "/dev/sdb"]
    poll_interval: "1m"

notifications:
  - type: ntfy
    url: "http://10.100.1.104:8080"
    topic: "homelab-alerts"
  - type: webhook
    url: "https://hooks.example.com/drivetherm"
    method: "POST"
    headers:
      Authorization: "Bearer xxx"

alerts:
  drive_temp_high:
    threshold: 50
    duration: "10m"
    severity: "warning"
  drive_temp_crit:
    threshold: 60
    severity: "critical"
  drive_stale:
    max_age: "15m"
    severity: "warning"
`

func TestLoad_FromYAML(t *testing.T) {
	clearEnv(t)
	path := writeYAML(t, fullYAML)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Listen)
	assert.Equal(t, "/tmp/test.db", cfg.DBPath)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 24, cfg.HistoryHours)
	assert.Equal(t, 8, cfg.WorkerPoolSize)
	assert.Equal(t, "direct", cfg.Probe.Policy)

	// Local
	assert.True(t, cfg.Local.Enabled)
	assert.Equal(t, []string{"/dev/sd?"}, cfg.Local.DeviceGlobs)
	assert.Equal(t, 10*time.Second, cfg.Local.PollInterval.Duration)
	assert.Equal(t, time.Minute, cfg.Local.ScanInterval.Duration)

	// Remote
	require.Len(t, cfg.Remote, 1)
	assert.Equal(t, "nas", cfg.Remote[0].Name)
	assert.Equal(t, "192.168.1.50:22", cfg.Remote[0].Host)
	assert.Equal(t, "root", cfg.Remote[0].User)
	assert.Equal(t, "/config/ssh/id_ed25519", cfg.Remote[0].KeyPath)
	assert.Equal(t, []string{"/dev/sda", "/dev/sdb"}, cfg.Remote[0].Devices)
	assert.Equal(t, time.Minute, cfg.Remote[0].PollInterval.Duration)

	// Notifications
	require.Len(t, cfg.Notifications, 2)
	assert.Equal(t, "ntfy", cfg.Notifications[0].Type)
	assert.Equal(t, "homelab-alerts", cfg.Notifications[0].Topic)
	assert.Equal(t, "webhook", cfg.Notifications[1].Type)
	assert.Equal(t, "POST", cfg.Notifications[1].Method)

	// Alerts
	require.NotNil(t, cfg.Alerts.DriveTempHigh)
	assert.Equal(t, 50.0, cfg.Alerts.DriveTempHigh.Threshold)
	assert.Equal(t, 10*time.Minute, cfg.Alerts.DriveTempHigh.Duration.Duration)
	require.NotNil(t, cfg.Alerts.DriveTempCrit)
	assert.Equal(t, 60.0, cfg.Alerts.DriveTempCrit.Threshold)
	require.NotNil(t, cfg.Alerts.DriveStale)
	assert.Equal(t, 15*time.Minute, cfg.Alerts.DriveStale.MaxAge.Duration)
}

func TestLoad_FileNotFound(t *testing.T) {
	clearEnv(t)
	_, err := Load("/nonexistent/path/drivetherm.yml")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConfigFileNotFound)
}

func TestLoad_EnvVarSubstitution(t *testing.T) {
	clearEnv(t)
	t.Setenv("NAS_SSH_KEY", "/secrets/id_ed25519")

	path := writeYAML(t, `
remote:
  - name: nas
    host: "192.168.1.50:22"
    user: "root"
    key_path: "${NAS_SSH_KEY}"
    poll_interval: "1m"
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/secrets/id_ed25519", cfg.Remote[0].KeyPath)
}

func TestLoad_EnvVarSubstitution_Unset(t *testing.T) {
	clearEnv(t)

	path := writeYAML(t, `
local:
  enabled: false
remote:
  - name: nas
    host: "192.168.1.50:22"
    user: "root"
    key_path: "${NAS_SSH_KEY_UNSET}"
    poll_interval: "1m"
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "key_path is required")
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	path := writeYAML(t, `log_level: "info"`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":3900", cfg.Listen)
	assert.Equal(t, "/data/drivetherm.db", cfg.DBPath)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 48, cfg.HistoryHours)
	assert.Equal(t, 4, cfg.WorkerPoolSize)
	assert.Equal(t, "identify", cfg.Probe.Policy)
	assert.True(t, cfg.Local.Enabled)
	assert.Equal(t, []string{"/dev/sd?", "/dev/sd??"}, cfg.Local.DeviceGlobs)
	assert.Equal(t, 30*time.Second, cfg.Local.PollInterval.Duration)
	assert.Equal(t, 5*time.Minute, cfg.Local.ScanInterval.Duration)
}

func TestLoad_FromEnvVars(t *testing.T) {
	clearEnv(t)

	t.Setenv("DRIVETHERM_LISTEN", ":4000")
	t.Setenv("DRIVETHERM_DB_PATH", "/tmp/env.db")
	t.Setenv("DRIVETHERM_LOG_LEVEL", "warn")
	t.Setenv("DRIVETHERM_PROBE_POLICY", "legacy")
	t.Setenv("DRIVETHERM_DEVICE_GLOBS", "/dev/sda,/dev/sdb")
	t.Setenv("DRIVETHERM_NTFY_URL", "http://ntfy:8080")
	t.Setenv("DRIVETHERM_NTFY_TOPIC", "test-alerts")
	t.Setenv("DRIVETHERM_HISTORY_HOURS", "72")
	t.Setenv("DRIVETHERM_WORKER_POOL_SIZE", "2")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":4000", cfg.Listen)
	assert.Equal(t, "/tmp/env.db", cfg.DBPath)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, "legacy", cfg.Probe.Policy)
	assert.Equal(t, []string{"/dev/sda", "/dev/sdb"}, cfg.Local.DeviceGlobs)
	assert.Equal(t, 72, cfg.HistoryHours)
	assert.Equal(t, 2, cfg.WorkerPoolSize)

	require.Len(t, cfg.Notifications, 1)
	assert.Equal(t, "ntfy", cfg.Notifications[0].Type)
	assert.Equal(t, "test-alerts", cfg.Notifications[0].Topic)
}

func TestLoad_EnvOverridesYAMLScalars(t *testing.T) {
	clearEnv(t)
	path := writeYAML(t, `listen: ":9090"`)

	t.Setenv("DRIVETHERM_LISTEN", ":5555")
	t.Setenv("DRIVETHERM_LOG_LEVEL", "debug")

	cfg, err := Load(path)
	require.NoError(t, err)

	// Env overrides scalar fields.
	assert.Equal(t, ":5555", cfg.Listen)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoad_NtfyDefaultTopic(t *testing.T) {
	clearEnv(t)

	t.Setenv("DRIVETHERM_NTFY_URL", "http://ntfy:8080")
	// No DRIVETHERM_NTFY_TOPIC set -> should default to "drivetherm-alerts".

	cfg, err := Load("")
	require.NoError(t, err)
	require.Len(t, cfg.Notifications, 1)
	assert.Equal(t, "drivetherm-alerts", cfg.Notifications[0].Topic)
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{
			name:    "nothing to poll",
			mutate:  func(c *Config) { c.Local.Enabled = false },
			wantErr: "nothing to poll",
		},
		{
			name:    "bad probe policy",
			mutate:  func(c *Config) { c.Probe.Policy = "aggressive" },
			wantErr: "probe.policy must be one of",
		},
		{
			name:    "local missing globs",
			mutate:  func(c *Config) { c.Local.DeviceGlobs = nil },
			wantErr: "at least one device glob is required",
		},
		{
			name:    "local zero poll interval",
			mutate:  func(c *Config) { c.Local.PollInterval = Duration{} },
			wantErr: "local: poll_interval must be > 0",
		},
		{
			name:    "local zero scan interval",
			mutate:  func(c *Config) { c.Local.ScanInterval = Duration{} },
			wantErr: "local: scan_interval must be > 0",
		},
		{
			name: "remote missing name",
			mutate: func(c *Config) {
				c.Remote = []RemoteConfig{{Host: "x:22", User: "root", KeyPath: "/k", PollInterval: Duration{time.Minute}}}
			},
			wantErr: "remote[0]: name is required",
		},
		{
			name: "remote missing host",
			mutate: func(c *Config) {
				c.Remote = []RemoteConfig{{Name: "nas", User: "root", KeyPath: "/k", PollInterval: Duration{time.Minute}}}
			},
			wantErr: "remote[0]: host is required",
		},
		{
			name: "remote missing user",
			mutate: func(c *Config) {
				c.Remote = []RemoteConfig{{Name: "nas", Host: "x:22", KeyPath: "/k", PollInterval: Duration{time.Minute}}}
			},
			wantErr: "remote[0]: user is required",
		},
		{
			name: "remote zero poll interval",
			mutate: func(c *Config) {
				c.Remote = []RemoteConfig{{Name: "nas", Host: "x:22", User: "root", KeyPath: "/k"}}
			},
			wantErr: "remote[0]: poll_interval must be > 0",
		},
		{
			name: "notification unknown type",
			mutate: func(c *Config) {
				c.Notifications = []NotificationConfig{{Type: "slack", URL: "http://x"}}
			},
			wantErr: "unknown type \"slack\"",
		},
		{
			name: "ntfy missing topic",
			mutate: func(c *Config) {
				c.Notifications = []NotificationConfig{{Type: "ntfy", URL: "http://x"}}
			},
			wantErr: "topic is required for ntfy",
		},
		{
			name: "webhook missing url",
			mutate: func(c *Config) {
				c.Notifications = []NotificationConfig{{Type: "webhook"}}
			},
			wantErr: "url is required for webhook",
		},
		{
			name:    "invalid log level",
			mutate:  func(c *Config) { c.LogLevel = "verbose" },
			wantErr: "log_level must be one of",
		},
		{
			name:    "invalid log format",
			mutate:  func(c *Config) { c.LogFormat = "yaml" },
			wantErr: "log_format must be one of",
		},
		{
			name:    "history_hours zero",
			mutate:  func(c *Config) { c.HistoryHours = 0 },
			wantErr: "history_hours must be >= 1",
		},
		{
			name:    "worker_pool_size zero",
			mutate:  func(c *Config) { c.WorkerPoolSize = 0 },
			wantErr: "worker_pool_size must be >= 1",
		},
		{
			name: "drive_temp_high zero threshold",
			mutate: func(c *Config) {
				c.Alerts.DriveTempHigh = &AlertDriveTempHigh{Duration: Duration{time.Minute}}
			},
			wantErr: "alerts.drive_temp_high: threshold must be > 0",
		},
		{
			name: "drive_temp_high zero duration",
			mutate: func(c *Config) {
				c.Alerts.DriveTempHigh = &AlertDriveTempHigh{Threshold: 50}
			},
			wantErr: "alerts.drive_temp_high: duration must be > 0",
		},
		{
			name: "drive_temp_crit zero threshold",
			mutate: func(c *Config) {
				c.Alerts.DriveTempCrit = &AlertDriveTempCrit{}
			},
			wantErr: "alerts.drive_temp_crit: threshold must be > 0",
		},
		{
			name: "drive_stale zero max_age",
			mutate: func(c *Config) {
				c.Alerts.DriveStale = &AlertDriveStale{}
			},
			wantErr: "alerts.drive_stale: max_age must be > 0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidate_ValidConfig(t *testing.T) {
	cfg := validConfig()
	assert.NoError(t, cfg.Validate())
}

func TestValidate_RemoteOnly(t *testing.T) {
	cfg := validConfig()
	cfg.Local.Enabled = false
	cfg.Remote = []RemoteConfig{{
		Name:         "nas",
		Host:         "192.168.1.50:22",
		User:         "root",
		KeyPath:      "/k",
		PollInterval: Duration{time.Minute},
	}}
	assert.NoError(t, cfg.Validate())
}

func TestLoad_InvalidYAML(t *testing.T) {
	clearEnv(t)
	path := writeYAML(t, "{{invalid yaml")
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing config")
}

func TestLoad_InvalidDuration(t *testing.T) {
	clearEnv(t)
	path := writeYAML(t, `
local:
  enabled: true
  device_globs: ["/dev/sd?"]
  poll_interval: "not-a-duration"
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid duration")
}

func TestDuration_MarshalYAML(t *testing.T) {
	d := Duration{Duration: 5 * time.Minute}
	v, err := d.MarshalYAML()
	require.NoError(t, err)
	assert.Equal(t, "5m0s", v)
}

func TestDuration_MarshalYAML_SubSecond(t *testing.T) {
	d := Duration{Duration: 500 * time.Millisecond}
	v, err := d.MarshalYAML()
	require.NoError(t, err)
	assert.Equal(t, "500ms", v)
}

func TestLoad_ValidationFails(t *testing.T) {
	clearEnv(t)
	// Disabling local with no remotes leaves nothing to poll.
	path := writeYAML(t, `
local:
  enabled: false
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config validation")
}

func TestLoad_EmptyFile(t *testing.T) {
	clearEnv(t)
	path := writeYAML(t, "")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.True(t, cfg.Local.Enabled)
}

func FuzzExpandEnvVars(f *testing.F) {
	f.Add([]byte(`listen: ":3900"`))
	f.Add([]byte(`key_path: "${SSH_KEY}"`))
	f.Add([]byte(`${} ${VAR} $VAR`))
	f.Add([]byte(`db_path: "${A}${B}"`))
	f.Fuzz(func(t *testing.T, data []byte) {
		// Must not panic
		_ = expandEnvVars(data)
	})
}
