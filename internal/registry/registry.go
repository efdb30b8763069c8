// Package registry is the thread-safe in-memory index of attached drives
// and their most recent temperature readings.
package registry

import (
	"maps"
	"sync"
	"time"

	"github.com/darshan-rambhia/drivetherm/internal/model"
)

// Registry holds every drive currently attached, keyed by sensor name.
// Collectors register drives when they attach them and push readings on
// each poll; the API layer reads snapshots.
type Registry struct {
	mu sync.RWMutex

	Drives   map[string]*model.Drive
	LastPoll map[string]time.Time
}

// Snapshot is a read-only deep copy of the registry state.
type Snapshot struct {
	Drives   map[string]*model.Drive
	LastPoll map[string]time.Time
}

// New returns an initialized Registry.
func New() *Registry {
	return &Registry{
		Drives:   make(map[string]*model.Drive),
		LastPoll: make(map[string]time.Time),
	}
}

// Register adds or replaces a drive. The capability record is fixed at
// registration time and never updated afterwards.
func (r *Registry) Register(d *model.Drive) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if prev, ok := r.Drives[d.Name]; ok && !prev.FirstSeen.IsZero() {
		d.FirstSeen = prev.FirstSeen
	}
	r.Drives[d.Name] = d
}

// Unregister removes a drive, typically when its device node disappears.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.Drives, name)
}

// UpdateReading records the latest poll result for a drive. Unknown
// drives are ignored.
func (r *Registry) UpdateReading(name string, reading model.TempReading) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if d, ok := r.Drives[name]; ok {
		d.LastReading = &reading
		d.LastSeen = time.Unix(reading.Timestamp, 0)
	}
}

// SetLastPoll records the last poll time for a collector.
func (r *Registry) SetLastPoll(collectorID string, t time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.LastPoll[collectorID] = t
}

// Get returns a deep copy of a single drive, or nil if not registered.
func (r *Registry) Get(name string) *model.Drive {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.Drives[name]
	if !ok {
		return nil
	}
	return copyDrive(d)
}

// Snapshot returns a deep copy of the registry contents.
func (r *Registry) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snap := Snapshot{
		Drives:   make(map[string]*model.Drive, len(r.Drives)),
		LastPoll: make(map[string]time.Time, len(r.LastPoll)),
	}
	for name, d := range r.Drives {
		snap.Drives[name] = copyDrive(d)
	}
	maps.Copy(snap.LastPoll, r.LastPoll)
	return snap
}

func copyDrive(d *model.Drive) *model.Drive {
	cp := *d
	if d.LastReading != nil {
		reading := *d.LastReading
		cp.LastReading = &reading
	}
	cp.Capabilities = copyCaps(d.Capabilities)
	return &cp
}

func copyCaps(c model.DriveCapabilities) model.DriveCapabilities {
	cp := c
	cp.TempMin = copyMilli(c.TempMin)
	cp.TempMax = copyMilli(c.TempMax)
	cp.TempLCrit = copyMilli(c.TempLCrit)
	cp.TempCrit = copyMilli(c.TempCrit)
	return cp
}

func copyMilli(v *int32) *int32 {
	if v == nil {
		return nil
	}
	cp := *v
	return &cp
}
