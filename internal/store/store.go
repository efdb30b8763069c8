// Package store provides SQLite persistence for drivetherm.
package store

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/darshan-rambhia/drivetherm/internal/model"
)

// Store wraps a SQLite database for drivetherm data persistence.
type Store struct {
	db *sql.DB
}

// New opens or creates a SQLite database at the given path and runs migrations.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)")
	if err != nil {
		return nil, fmt.Errorf("opening database %s: %w", dbPath, err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// UpsertDrive inserts or updates a drive metadata record.
func (s *Store) UpsertDrive(d *model.Drive) error {
	now := time.Now().Unix()
	_, err := s.db.Exec(`
		INSERT INTO drives (name, dev_path, source, host, model, serial,
			strategy, policy, has_lowest, has_highest,
			temp_min, temp_max, temp_lcrit, temp_crit, first_seen, last_seen)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			dev_path = excluded.dev_path,
			source = excluded.source,
			host = excluded.host,
			model = excluded.model,
			serial = excluded.serial,
			strategy = excluded.strategy,
			policy = excluded.policy,
			has_lowest = excluded.has_lowest,
			has_highest = excluded.has_highest,
			temp_min = excluded.temp_min,
			temp_max = excluded.temp_max,
			temp_lcrit = excluded.temp_lcrit,
			temp_crit = excluded.temp_crit,
			last_seen = excluded.last_seen`,
		d.Name, d.DevPath, d.Source, d.Host, d.Model, d.Serial,
		d.Capabilities.Strategy, d.Capabilities.Policy,
		boolToInt(d.Capabilities.HasLowest), boolToInt(d.Capabilities.HasHighest),
		d.Capabilities.TempMin, d.Capabilities.TempMax,
		d.Capabilities.TempLCrit, d.Capabilities.TempCrit,
		now, now,
	)
	if err != nil {
		return fmt.Errorf("upserting drive %s: %w", d.Name, err)
	}
	return nil
}

// InsertTempSnapshot records a point-in-time drive temperature snapshot.
func (s *Store) InsertTempSnapshot(snap model.TempSnapshot) error {
	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO temp_snapshots
		(ts, drive, temp, lowest, highest, strategy)
		VALUES (?, ?, ?, ?, ?, ?)`,
		snap.Timestamp, snap.Drive, snap.Current,
		snap.Lowest, snap.Highest, snap.Strategy,
	)
	if err != nil {
		return fmt.Errorf("inserting temp snapshot: %w", err)
	}
	return nil
}

// QueryTempHistory returns temperature snapshots for a drive since the
// given unix timestamp, oldest first.
func (s *Store) QueryTempHistory(drive string, since int64) ([]model.TempSnapshot, error) {
	rows, err := s.db.Query(`
		SELECT ts, drive, temp, lowest, highest, strategy
		FROM temp_snapshots
		WHERE drive = ? AND ts >= ?
		ORDER BY ts ASC`, drive, since)
	if err != nil {
		return nil, fmt.Errorf("querying temp history: %w", err)
	}
	defer rows.Close()

	var snaps []model.TempSnapshot
	for rows.Next() {
		var snap model.TempSnapshot
		if err := rows.Scan(&snap.Timestamp, &snap.Drive, &snap.Current,
			&snap.Lowest, &snap.Highest, &snap.Strategy); err != nil {
			return nil, fmt.Errorf("scanning temp snapshot: %w", err)
		}
		snaps = append(snaps, snap)
	}
	return snaps, rows.Err()
}

// QueryTempSparkline returns temperature points in degrees Celsius for
// sparkline rendering.
func (s *Store) QueryTempSparkline(drive string, since int64) ([]model.SparklinePoint, error) {
	rows, err := s.db.Query(`
		SELECT ts, CAST(temp AS REAL) / 1000 FROM temp_snapshots
		WHERE drive = ? AND ts >= ?
		ORDER BY ts ASC`, drive, since)
	if err != nil {
		return nil, fmt.Errorf("querying temp sparkline: %w", err)
	}
	defer rows.Close()

	var points []model.SparklinePoint
	for rows.Next() {
		var p model.SparklinePoint
		if err := rows.Scan(&p.Timestamp, &p.Value); err != nil {
			return nil, fmt.Errorf("scanning sparkline point: %w", err)
		}
		points = append(points, p)
	}
	return points, rows.Err()
}

// InsertAlert logs an alert.
func (s *Store) InsertAlert(ts int64, alertType, drive, subject, message, severity string) error {
	_, err := s.db.Exec(`
		INSERT INTO alert_log (ts, alert_type, drive, subject, message, severity)
		VALUES (?, ?, ?, ?, ?, ?)`,
		ts, alertType, drive, subject, message, severity,
	)
	if err != nil {
		return fmt.Errorf("inserting alert: %w", err)
	}
	return nil
}

// AlertRecord is one row from the alert log.
type AlertRecord struct {
	Timestamp int64  `json:"ts"`
	AlertType string `json:"alert_type"`
	Drive     string `json:"drive"`
	Subject   string `json:"subject"`
	Message   string `json:"message"`
	Severity  string `json:"severity"`
}

// QueryRecentAlerts returns the newest entries from the alert log.
func (s *Store) QueryRecentAlerts(limit int) ([]AlertRecord, error) {
	rows, err := s.db.Query(`
		SELECT ts, alert_type, drive, subject, message, severity
		FROM alert_log
		ORDER BY ts DESC, id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying alerts: %w", err)
	}
	defer rows.Close()

	var alerts []AlertRecord
	for rows.Next() {
		var a AlertRecord
		if err := rows.Scan(&a.Timestamp, &a.AlertType, &a.Drive, &a.Subject, &a.Message, &a.Severity); err != nil {
			return nil, fmt.Errorf("scanning alert: %w", err)
		}
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
