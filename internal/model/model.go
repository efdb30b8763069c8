// Package model defines all shared domain types for drivetherm.
package model

import "time"

// DriveCapabilities describes what a drive's firmware can report, as
// established once when the drive is attached.
type DriveCapabilities struct {
	Strategy   string `json:"strategy"` // "sct" or "smart"
	Policy     string `json:"policy"`   // "identify", "direct", "legacy"
	HasLowest  bool   `json:"has_lowest"`
	HasHighest bool   `json:"has_highest"`
	TempMin    *int32 `json:"temp_min,omitempty"`   // millidegrees Celsius
	TempMax    *int32 `json:"temp_max,omitempty"`   // millidegrees Celsius
	TempLCrit  *int32 `json:"temp_lcrit,omitempty"` // millidegrees Celsius
	TempCrit   *int32 `json:"temp_crit,omitempty"`  // millidegrees Celsius
}

// Drive represents a temperature-capable drive known to the registry.
type Drive struct {
	Name         string            `json:"name"`     // "sda", "nas:sdb"
	DevPath      string            `json:"dev_path"` // "/dev/sda"
	Source       string            `json:"source"`   // "local" or "remote"
	Host         string            `json:"host,omitempty"`
	Model        string            `json:"model,omitempty"`
	Serial       string            `json:"serial,omitempty"`
	Capabilities DriveCapabilities `json:"capabilities"`
	LastReading  *TempReading      `json:"last_reading,omitempty"`
	FirstSeen    time.Time         `json:"first_seen"`
	LastSeen     time.Time         `json:"last_seen"`
}

// TempReading is one successful temperature poll. All values are
// millidegrees Celsius.
type TempReading struct {
	Timestamp int64  `json:"ts"`
	Current   int32  `json:"current"`
	Lowest    *int32 `json:"lowest,omitempty"`
	Highest   *int32 `json:"highest,omitempty"`
}

// TempSnapshot is a time-series record of one drive temperature poll.
type TempSnapshot struct {
	Timestamp int64  `json:"ts"`
	Drive     string `json:"drive"`
	Current   int32  `json:"current"`
	Lowest    *int32 `json:"lowest,omitempty"`
	Highest   *int32 `json:"highest,omitempty"`
	Strategy  string `json:"strategy"`
}

// SparklinePoint is a single data point for history rendering.
type SparklinePoint struct {
	Timestamp int64   `json:"ts"`
	Value     float64 `json:"value"`
}

// Notification represents a structured alert message.
type Notification struct {
	AlertType string            `json:"alert_type"`
	Severity  string            `json:"severity"` // "info", "warning", "critical"
	Title     string            `json:"title"`
	Message   string            `json:"message"`
	Drive     string            `json:"drive"`
	Subject   string            `json:"subject"`
	Timestamp time.Time         `json:"timestamp"`
	Resolved  bool              `json:"resolved"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}
