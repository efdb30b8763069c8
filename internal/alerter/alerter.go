// Package alerter evaluates alert rules against registry state.
package alerter

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/darshan-rambhia/drivetherm/internal/model"
	"github.com/darshan-rambhia/drivetherm/internal/notify"
	"github.com/darshan-rambhia/drivetherm/internal/registry"
	"github.com/darshan-rambhia/drivetherm/internal/store"
)

// AlertConfig holds configuration for alert rules.
type AlertConfig struct {
	DriveTempHigh *ThresholdAlert `yaml:"drive_temp_high"`
	DriveTempCrit *CritAlert      `yaml:"drive_temp_crit"`
	DriveStale    *StaleAlert     `yaml:"drive_stale"`
}

// ThresholdAlert triggers when a value stays above a threshold for a while.
type ThresholdAlert struct {
	Threshold float64       `yaml:"threshold"` // degrees Celsius
	Duration  time.Duration `yaml:"duration"`
	Severity  string        `yaml:"severity"`
	Cooldown  time.Duration `yaml:"cooldown"`
}

// CritAlert triggers as soon as a drive crosses its critical limit. The
// threshold is only used for drives whose firmware reports no limit.
type CritAlert struct {
	Threshold float64       `yaml:"threshold"` // degrees Celsius
	Severity  string        `yaml:"severity"`
	Cooldown  time.Duration `yaml:"cooldown"`
}

// StaleAlert triggers when a drive stops producing readings.
type StaleAlert struct {
	MaxAge   time.Duration `yaml:"max_age"`
	Severity string        `yaml:"severity"`
	Cooldown time.Duration `yaml:"cooldown"`
}

// DefaultAlertConfig returns sensible alert defaults.
func DefaultAlertConfig() AlertConfig {
	return AlertConfig{
		DriveTempHigh: &ThresholdAlert{
			Threshold: 50, Duration: 10 * time.Minute, Severity: "warning", Cooldown: 1 * time.Hour,
		},
		DriveTempCrit: &CritAlert{
			Threshold: 60, Severity: "critical", Cooldown: 30 * time.Minute,
		},
		DriveStale: &StaleAlert{
			MaxAge: 15 * time.Minute, Severity: "warning", Cooldown: 6 * time.Hour,
		},
	}
}

// Alerter evaluates rules and sends notifications.
type Alerter struct {
	registry  *registry.Registry
	store     *store.Store
	providers []notify.Provider
	config    AlertConfig
	interval  time.Duration

	// Deduplication: maps alert key → last fired time
	lastFired map[string]time.Time

	// Track sustained conditions: maps alert key → first observed time
	sustained map[string]time.Time
}

// NewAlerter creates a new alerter.
func NewAlerter(reg *registry.Registry, s *store.Store, providers []notify.Provider, cfg AlertConfig) *Alerter {
	return &Alerter{
		registry:  reg,
		store:     s,
		providers: providers,
		config:    cfg,
		interval:  30 * time.Second,
		lastFired: make(map[string]time.Time),
		sustained: make(map[string]time.Time),
	}
}

// Run starts the alerter evaluation loop.
func (a *Alerter) Run(ctx context.Context) error {
	slog.Info("alerter started", "interval", a.interval)

	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("alerter stopped")
			return ctx.Err()
		case <-ticker.C:
			a.evaluate(ctx)
		}
	}
}

func (a *Alerter) cleanup(now time.Time) {
	const maxAge = 6 * time.Hour
	for key, t := range a.lastFired {
		if now.Sub(t) > maxAge {
			delete(a.lastFired, key)
		}
	}
	for key, t := range a.sustained {
		if now.Sub(t) > maxAge {
			delete(a.sustained, key)
		}
	}
}

func (a *Alerter) evaluate(ctx context.Context) {
	snap := a.registry.Snapshot()
	now := time.Now()

	a.cleanup(now)

	for name, drive := range snap.Drives {
		if drive.LastReading != nil {
			tempC := float64(drive.LastReading.Current) / 1000

			// Critical limit fires immediately: a drive at its firmware
			// limit cannot wait out a sustain window.
			if a.config.DriveTempCrit != nil {
				critC := a.config.DriveTempCrit.Threshold
				if drive.Capabilities.TempCrit != nil {
					critC = float64(*drive.Capabilities.TempCrit) / 1000
				}
				if tempC >= critC {
					key := fmt.Sprintf("temp_crit:%s", name)
					a.fire(ctx, now, key, a.config.DriveTempCrit.Cooldown, model.Notification{
						AlertType: "drive_temp_crit",
						Severity:  a.config.DriveTempCrit.Severity,
						Title:     fmt.Sprintf("Drive Critical Temperature: %s", name),
						Message:   fmt.Sprintf("[%s] at %.1fC, critical limit %.1fC", name, tempC, critC),
						Drive:     name,
						Subject:   drive.DevPath,
						Timestamp: now,
						Metadata: map[string]string{
							"temp_c": fmt.Sprintf("%.1f", tempC),
							"crit_c": fmt.Sprintf("%.1f", critC),
						},
					})
				}
			}

			if a.config.DriveTempHigh != nil {
				a.checkSustainedThreshold(ctx, now,
					fmt.Sprintf("temp_high:%s", name),
					tempC,
					a.config.DriveTempHigh,
					model.Notification{
						AlertType: "drive_temp_high",
						Severity:  a.config.DriveTempHigh.Severity,
						Title:     fmt.Sprintf("Drive Temperature High: %s", name),
						Message: fmt.Sprintf("[%s] at %.1fC for %s+", name, tempC,
							a.config.DriveTempHigh.Duration),
						Drive:     name,
						Subject:   drive.DevPath,
						Timestamp: now,
						Metadata:  map[string]string{"temp_c": fmt.Sprintf("%.1f", tempC)},
					},
				)
			}
		}

		if a.config.DriveStale != nil {
			lastSeen := drive.LastSeen
			if drive.LastReading == nil {
				lastSeen = drive.FirstSeen
			}
			if age := now.Sub(lastSeen); age > a.config.DriveStale.MaxAge {
				key := fmt.Sprintf("stale:%s", name)
				a.fire(ctx, now, key, a.config.DriveStale.Cooldown, model.Notification{
					AlertType: "drive_stale",
					Severity:  a.config.DriveStale.Severity,
					Title:     fmt.Sprintf("Drive Not Reporting: %s", name),
					Message:   fmt.Sprintf("[%s] no temperature reading for %.0fm", name, age.Minutes()),
					Drive:     name,
					Subject:   drive.DevPath,
					Timestamp: now,
					Metadata:  map[string]string{"age_minutes": fmt.Sprintf("%.0f", age.Minutes())},
				})
			}
		}
	}
}

func (a *Alerter) checkSustainedThreshold(ctx context.Context, now time.Time, key string, value float64, cfg *ThresholdAlert, notif model.Notification) {
	if value >= cfg.Threshold {
		if first, ok := a.sustained[key]; ok {
			if now.Sub(first) >= cfg.Duration {
				a.fire(ctx, now, key, cfg.Cooldown, notif)
			}
		} else {
			a.sustained[key] = now
		}
	} else {
		delete(a.sustained, key)
	}
}

func (a *Alerter) fire(ctx context.Context, now time.Time, key string, cooldown time.Duration, notif model.Notification) {
	if last, ok := a.lastFired[key]; ok && now.Sub(last) < cooldown {
		return // still in cooldown
	}
	a.lastFired[key] = now

	// Log to store
	if err := a.store.InsertAlert(now.Unix(), notif.AlertType, notif.Drive, notif.Subject, notif.Message, notif.Severity); err != nil {
		slog.Error("storing alert", "type", notif.AlertType, "error", err)
	}

	// Send to all providers
	for _, p := range a.providers {
		if err := p.Send(ctx, notif); err != nil {
			slog.Error("sending notification", "provider", p.Name(), "alert", notif.AlertType, "error", err)
		}
	}

	slog.Warn("alert fired",
		"type", notif.AlertType,
		"severity", notif.Severity,
		"drive", notif.Drive,
		"subject", notif.Subject,
		"title", notif.Title,
	)
}
