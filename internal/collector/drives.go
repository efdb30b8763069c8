package collector

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/darshan-rambhia/drivetherm/internal/ata"
	"github.com/darshan-rambhia/drivetherm/internal/model"
	"github.com/darshan-rambhia/drivetherm/internal/registry"
	"github.com/darshan-rambhia/drivetherm/internal/store"
)

// LocalConfig holds settings for polling drives attached to this host.
type LocalConfig struct {
	DeviceGlobs  []string
	Policy       ata.Policy
	PollInterval time.Duration
	ScanInterval time.Duration
}

// localDevice is the transport handle a local drive is polled through.
type localDevice interface {
	ata.Device
	Name() string
	Close() error
}

// maxPollFailures is the number of consecutive failed reads after
// which a drive is detached. A later scan re-attaches it if the
// device node is still present.
const maxPollFailures = 5

// attachedDrive pairs an open device with the reader built from its
// probe result.
type attachedDrive struct {
	name     string
	path     string
	dev      localDevice
	reader   *ata.Reader
	failures int
}

// LocalCollector scans device globs, probes each new drive once at
// attach time and polls temperatures on every cycle. Drives are
// detached when their device node disappears from a scan or when
// reads keep failing.
type LocalCollector struct {
	config   LocalConfig
	pool     *WorkerPool
	registry *registry.Registry
	store    *store.Store

	open func(path string) (localDevice, error)
	glob func(pattern string) ([]string, error)

	attached map[string]*attachedDrive
	lastScan time.Time
}

// NewLocalCollector creates a collector for locally attached drives.
func NewLocalCollector(cfg LocalConfig, pool *WorkerPool, reg *registry.Registry, s *store.Store) *LocalCollector {
	return &LocalCollector{
		config:   cfg,
		pool:     pool,
		registry: reg,
		store:    s,
		open: func(path string) (localDevice, error) {
			return ata.OpenSGIO(path)
		},
		glob:     filepath.Glob,
		attached: make(map[string]*attachedDrive),
	}
}

func (l *LocalCollector) Name() string            { return "local-drives" }
func (l *LocalCollector) Interval() time.Duration { return l.config.PollInterval }

// Collect rescans device globs when the scan interval has elapsed, then
// polls every attached drive through the worker pool.
func (l *LocalCollector) Collect(ctx context.Context) error {
	now := time.Now()
	if l.lastScan.IsZero() || now.Sub(l.lastScan) >= l.config.ScanInterval {
		l.scan()
		l.lastScan = now
	}

	var wg sync.WaitGroup
	for _, d := range l.attached {
		wg.Add(1)
		if err := l.pool.Submit(ctx, func() {
			defer wg.Done()
			l.poll(d)
		}); err != nil {
			wg.Done()
			return err
		}
	}
	wg.Wait()

	for _, d := range l.attached {
		if d.failures >= maxPollFailures {
			slog.Warn("drive unresponsive, detaching", "device", d.path, "failures", d.failures)
			l.detach(d)
		}
	}

	l.registry.SetLastPoll(l.Name(), time.Now())
	return nil
}

// scan reconciles the attached set against the device globs.
func (l *LocalCollector) scan() {
	seen := make(map[string]bool)
	for _, pattern := range l.config.DeviceGlobs {
		paths, err := l.glob(pattern)
		if err != nil {
			slog.Warn("bad device glob", "pattern", pattern, "error", err)
			continue
		}
		for _, p := range paths {
			seen[p] = true
		}
	}

	for path, d := range l.attached {
		if !seen[path] {
			l.detach(d)
		}
	}
	for path := range seen {
		if _, ok := l.attached[path]; !ok {
			l.attach(path)
		}
	}
}

func (l *LocalCollector) attach(path string) {
	dev, err := l.open(path)
	if err != nil {
		slog.Debug("opening device", "device", path, "error", err)
		return
	}

	caps, err := ata.Probe(dev, l.config.Policy)
	if err != nil {
		slog.Debug("no usable temperature sensor", "device", path, "error", err)
		dev.Close()
		return
	}

	name := filepath.Base(path)
	d := &attachedDrive{
		name:   name,
		path:   path,
		dev:    dev,
		reader: ata.NewReader(dev, caps),
	}
	l.attached[path] = d

	drive := localDriveModel(name, path, caps)
	l.registry.Register(drive)
	if err := l.store.UpsertDrive(drive); err != nil {
		slog.Error("persisting drive", "drive", name, "error", err)
	}
	slog.Info("drive attached", "device", path, "strategy", caps.Strategy)
}

func (l *LocalCollector) detach(d *attachedDrive) {
	delete(l.attached, d.path)
	l.registry.Unregister(d.name)
	if err := d.dev.Close(); err != nil {
		slog.Debug("closing device", "device", d.path, "error", err)
	}
	slog.Info("drive detached", "device", d.path)
}

// poll reads the current temperature, plus tracked extremes when the
// drive reports them, and pushes the reading to the registry and store.
// Read errors keep the probed strategy; the drive is only detached
// after maxPollFailures consecutive failures.
func (l *LocalCollector) poll(d *attachedDrive) {
	caps := d.reader.Capabilities()

	cur, err := d.reader.Read(ata.FieldCurrent)
	if err != nil {
		d.failures++
		slog.Warn("temperature read failed", "drive", d.name, "failures", d.failures, "error", err)
		return
	}
	d.failures = 0

	reading := model.TempReading{
		Timestamp: time.Now().Unix(),
		Current:   cur,
	}
	if caps.HasLowest {
		if lo, err := d.reader.Read(ata.FieldLowest); err == nil {
			reading.Lowest = &lo
		} else {
			slog.Debug("lowest read failed", "drive", d.name, "error", err)
		}
	}
	if caps.HasHighest {
		if hi, err := d.reader.Read(ata.FieldHighest); err == nil {
			reading.Highest = &hi
		} else {
			slog.Debug("highest read failed", "drive", d.name, "error", err)
		}
	}

	l.registry.UpdateReading(d.name, reading)
	if err := l.store.InsertTempSnapshot(model.TempSnapshot{
		Timestamp: reading.Timestamp,
		Drive:     d.name,
		Current:   reading.Current,
		Lowest:    reading.Lowest,
		Highest:   reading.Highest,
		Strategy:  caps.Strategy.String(),
	}); err != nil {
		slog.Error("persisting temp snapshot", "drive", d.name, "error", err)
	}
}

// localDriveModel maps a probe result onto the shared drive type.
func localDriveModel(name, path string, caps *ata.Capabilities) *model.Drive {
	now := time.Now()
	m := &model.Drive{
		Name:    name,
		DevPath: path,
		Source:  "local",
		Capabilities: model.DriveCapabilities{
			Strategy:   caps.Strategy.String(),
			Policy:     caps.Policy.String(),
			HasLowest:  caps.HasLowest,
			HasHighest: caps.HasHighest,
		},
		FirstSeen: now,
		LastSeen:  now,
	}
	if caps.HasMin {
		v := caps.Min
		m.Capabilities.TempMin = &v
	}
	if caps.HasMax {
		v := caps.Max
		m.Capabilities.TempMax = &v
	}
	if caps.HasLCrit {
		v := caps.LCrit
		m.Capabilities.TempLCrit = &v
	}
	if caps.HasCrit {
		v := caps.Crit
		m.Capabilities.TempCrit = &v
	}
	return m
}
