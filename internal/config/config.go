// Package config handles loading and validating drivetherm configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// envVarPattern matches ${VAR_NAME} placeholders in config values.
var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// ErrConfigFileNotFound is returned by Load when the specified config file does not exist.
var ErrConfigFileNotFound = errors.New("config file not found")

// Config is the top-level drivetherm configuration.
type Config struct {
	Listen         string               `yaml:"listen"`
	DBPath         string               `yaml:"db_path"`
	LogLevel       string               `yaml:"log_level"`
	LogFormat      string               `yaml:"log_format"`
	HistoryHours   int                  `yaml:"history_hours"`
	WorkerPoolSize int                  `yaml:"worker_pool_size"`
	Probe          ProbeConfig          `yaml:"probe"`
	Local          LocalConfig          `yaml:"local"`
	Remote         []RemoteConfig       `yaml:"remote"`
	Notifications  []NotificationConfig `yaml:"notifications"`
	Alerts         AlertsConfig         `yaml:"alerts"`
}

// ProbeConfig controls how drive capabilities are detected at attach time.
type ProbeConfig struct {
	// Policy selects the detection method: "identify" checks the IDENTIFY
	// DEVICE data before trying SCT, "direct" requires the ATA Information
	// VPD page, "legacy" skips SCT and accepts vendor attribute 231.
	Policy string `yaml:"policy"`
}

// LocalConfig describes polling of drives attached to this host.
type LocalConfig struct {
	Enabled      bool     `yaml:"enabled"`
	DeviceGlobs  []string `yaml:"device_globs"`
	PollInterval Duration `yaml:"poll_interval"`
	ScanInterval Duration `yaml:"scan_interval"`
}

// RemoteConfig describes a host polled over SSH via smartctl.
type RemoteConfig struct {
	Name         string   `yaml:"name"`
	Host         string   `yaml:"host"`
	User         string   `yaml:"user"`
	KeyPath      string   `yaml:"key_path"`
	Devices      []string `yaml:"devices"`
	PollInterval Duration `yaml:"poll_interval"`
}

// NotificationConfig describes a notification target.
type NotificationConfig struct {
	Type    string            `yaml:"type"` // "ntfy" or "webhook"
	URL     string            `yaml:"url"`
	Topic   string            `yaml:"topic,omitempty"`   // ntfy only
	Method  string            `yaml:"method,omitempty"`  // webhook only
	Headers map[string]string `yaml:"headers,omitempty"` // webhook only
}

// AlertsConfig holds thresholds for each alert type.
type AlertsConfig struct {
	DriveTempHigh *AlertDriveTempHigh `yaml:"drive_temp_high,omitempty"`
	DriveTempCrit *AlertDriveTempCrit `yaml:"drive_temp_crit,omitempty"`
	DriveStale    *AlertDriveStale    `yaml:"drive_stale,omitempty"`
}

// AlertDriveTempHigh fires when a drive stays above a temperature for a while.
type AlertDriveTempHigh struct {
	Threshold float64  `yaml:"threshold"` // degrees Celsius
	Duration  Duration `yaml:"duration"`
	Severity  string   `yaml:"severity"`
	Cooldown  Duration `yaml:"cooldown"`
}

// AlertDriveTempCrit fires as soon as a drive crosses its critical limit.
// Threshold is the fallback for drives whose firmware reports no limit.
type AlertDriveTempCrit struct {
	Threshold float64  `yaml:"threshold"` // degrees Celsius
	Severity  string   `yaml:"severity"`
	Cooldown  Duration `yaml:"cooldown"`
}

// AlertDriveStale fires when a registered drive has not produced a
// reading within max_age.
type AlertDriveStale struct {
	MaxAge   Duration `yaml:"max_age"`
	Severity string   `yaml:"severity"`
	Cooldown Duration `yaml:"cooldown"`
}

// Duration wraps time.Duration with YAML string parsing support.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return d.String(), nil
}

// Load reads configuration from a YAML file. If no path is given, it falls
// back to environment variables for single-host setup. If a path is given
// and the file does not exist, ErrConfigFileNotFound is returned.
func Load(path string) (*Config, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrConfigFileNotFound, path)
		}
		if err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		if len(data) > 0 {
			if err := yaml.Unmarshal(expandEnvVars(data), cfg); err != nil {
				return nil, fmt.Errorf("parsing config: %w", err)
			}
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if !c.Local.Enabled && len(c.Remote) == 0 {
		return fmt.Errorf("nothing to poll: enable local or configure at least one remote host")
	}
	switch c.Probe.Policy {
	case "identify", "direct", "legacy":
	default:
		return fmt.Errorf("probe.policy must be one of: identify, direct, legacy")
	}
	if c.Local.Enabled {
		if len(c.Local.DeviceGlobs) == 0 {
			return fmt.Errorf("local: at least one device glob is required")
		}
		if c.Local.PollInterval.Duration <= 0 {
			return fmt.Errorf("local: poll_interval must be > 0")
		}
		if c.Local.ScanInterval.Duration <= 0 {
			return fmt.Errorf("local: scan_interval must be > 0")
		}
	}
	for i, r := range c.Remote {
		if r.Name == "" {
			return fmt.Errorf("remote[%d]: name is required", i)
		}
		if r.Host == "" {
			return fmt.Errorf("remote[%d]: host is required", i)
		}
		if r.User == "" {
			return fmt.Errorf("remote[%d]: user is required", i)
		}
		if r.KeyPath == "" {
			return fmt.Errorf("remote[%d]: key_path is required", i)
		}
		if r.PollInterval.Duration <= 0 {
			return fmt.Errorf("remote[%d]: poll_interval must be > 0", i)
		}
	}
	for i, n := range c.Notifications {
		switch n.Type {
		case "ntfy":
			if n.URL == "" {
				return fmt.Errorf("notifications[%d]: url is required for ntfy", i)
			}
			if n.Topic == "" {
				return fmt.Errorf("notifications[%d]: topic is required for ntfy", i)
			}
		case "webhook":
			if n.URL == "" {
				return fmt.Errorf("notifications[%d]: url is required for webhook", i)
			}
		default:
			return fmt.Errorf("notifications[%d]: unknown type %q (expected ntfy or webhook)", i, n.Type)
		}
	}
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.LogLevel] {
		return fmt.Errorf("log_level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[c.LogFormat] {
		return fmt.Errorf("log_format must be one of: text, json")
	}
	if c.HistoryHours < 1 {
		return fmt.Errorf("history_hours must be >= 1")
	}
	if c.WorkerPoolSize < 1 {
		return fmt.Errorf("worker_pool_size must be >= 1")
	}

	if a := c.Alerts.DriveTempHigh; a != nil {
		if a.Threshold <= 0 {
			return fmt.Errorf("alerts.drive_temp_high: threshold must be > 0")
		}
		if a.Duration.Duration <= 0 {
			return fmt.Errorf("alerts.drive_temp_high: duration must be > 0")
		}
	}
	if a := c.Alerts.DriveTempCrit; a != nil {
		if a.Threshold <= 0 {
			return fmt.Errorf("alerts.drive_temp_crit: threshold must be > 0")
		}
	}
	if a := c.Alerts.DriveStale; a != nil {
		if a.MaxAge.Duration <= 0 {
			return fmt.Errorf("alerts.drive_stale: max_age must be > 0")
		}
	}

	return nil
}

func defaults() *Config {
	return &Config{
		Listen:         ":3900",
		DBPath:         "/data/drivetherm.db",
		LogLevel:       "info",
		LogFormat:      "text",
		HistoryHours:   48,
		WorkerPoolSize: 4,
		Probe:          ProbeConfig{Policy: "identify"},
		Local: LocalConfig{
			Enabled:      true,
			DeviceGlobs:  []string{"/dev/sd?", "/dev/sd??"},
			PollInterval: Duration{30 * time.Second},
			ScanInterval: Duration{5 * time.Minute},
		},
	}
}

// expandEnvVars replaces ${VAR_NAME} placeholders in raw YAML with the
// corresponding environment variable values. Unset variables are replaced
// with an empty string, which will then fail validation with a clear error.
func expandEnvVars(data []byte) []byte {
	return envVarPattern.ReplaceAllFunc(data, func(match []byte) []byte {
		key := string(match[2 : len(match)-1]) // strip ${ and }
		return []byte(os.Getenv(key))
	})
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DRIVETHERM_LISTEN"); v != "" {
		cfg.Listen = v
	}
	if v := os.Getenv("DRIVETHERM_DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("DRIVETHERM_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("DRIVETHERM_LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}
	if v := os.Getenv("DRIVETHERM_PROBE_POLICY"); v != "" {
		cfg.Probe.Policy = v
	}
	if v := os.Getenv("DRIVETHERM_DEVICE_GLOBS"); v != "" {
		cfg.Local.DeviceGlobs = strings.Split(v, ",")
	}

	if v := os.Getenv("DRIVETHERM_HISTORY_HOURS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.HistoryHours = n
		}
	}
	if v := os.Getenv("DRIVETHERM_WORKER_POOL_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.WorkerPoolSize = n
		}
	}

	// Single ntfy target from env vars (only if no YAML notifications configured).
	if len(cfg.Notifications) == 0 {
		if ntfyURL := os.Getenv("DRIVETHERM_NTFY_URL"); ntfyURL != "" {
			topic := os.Getenv("DRIVETHERM_NTFY_TOPIC")
			if topic == "" {
				topic = "drivetherm-alerts"
			}
			cfg.Notifications = append(cfg.Notifications, NotificationConfig{
				Type:  "ntfy",
				URL:   ntfyURL,
				Topic: topic,
			})
		}
	}
}
