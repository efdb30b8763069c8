// Package api provides the drivetherm JSON API.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/darshan-rambhia/drivetherm/internal/registry"
	"github.com/darshan-rambhia/drivetherm/internal/store"
)

// Server is the HTTP server for drivetherm.
type Server struct {
	registry *registry.Registry
	store    *store.Store
	mux      *http.ServeMux
	server   *http.Server
}

// NewServer creates a new HTTP server.
func NewServer(addr string, reg *registry.Registry, s *store.Store) *Server {
	srv := &Server{
		registry: reg,
		store:    s,
		mux:      http.NewServeMux(),
	}

	srv.registerRoutes()

	srv.server = &http.Server{
		Addr:         addr,
		Handler:      SecurityHeadersMiddleware(RecoveryMiddleware(LoggingMiddleware(srv.mux))),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return srv
}

// Run starts the HTTP server. It blocks until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	slog.Info("HTTP server starting", "addr", s.server.Addr)

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		slog.Info("HTTP server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.server.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /api/drives", s.handleDrives)
	s.mux.HandleFunc("GET /api/drives/{name}", s.handleDrive)
	s.mux.HandleFunc("GET /api/drives/{name}/history", s.handleDriveHistory)
	s.mux.HandleFunc("GET /api/drives/{name}/sparkline", s.handleDriveSparkline)
	s.mux.HandleFunc("GET /api/drives/{name}/hwmon", s.handleDriveHwmon)
	s.mux.HandleFunc("GET /api/alerts", s.handleAlerts)
	s.mux.HandleFunc("GET /healthz", s.handleHealthz)
}

// writeJSON marshals v to JSON into a buffer first, then writes it to the
// response. This ensures marshalling errors can be returned as a proper 500.
func writeJSON(w http.ResponseWriter, r *http.Request, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Error("encoding JSON response", "path", r.URL.Path, "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if _, err := w.Write(data); err != nil {
		slog.Debug("writing JSON response", "path", r.URL.Path, "error", err)
	}
}

// hoursParam parses a ?hours=N query parameter, clamped to one week.
func hoursParam(r *http.Request, fallback int) int {
	hours := fallback
	if h := r.URL.Query().Get("hours"); h != "" {
		if v, err := strconv.Atoi(h); err == nil && v > 0 && v <= 168 {
			hours = v
		}
	}
	return hours
}

func (s *Server) handleDrives(w http.ResponseWriter, r *http.Request) {
	snap := s.registry.Snapshot()

	names := make([]string, 0, len(snap.Drives))
	for name := range snap.Drives {
		names = append(names, name)
	}
	sort.Strings(names)

	drives := make([]any, 0, len(names))
	for _, name := range names {
		drives = append(drives, snap.Drives[name])
	}
	writeJSON(w, r, map[string]any{"drives": drives})
}

func (s *Server) handleDrive(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	drive := s.registry.Get(name)
	if drive == nil {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, r, drive)
}

func (s *Server) handleDriveHistory(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if s.registry.Get(name) == nil {
		http.NotFound(w, r)
		return
	}

	hours := hoursParam(r, 24)
	since := time.Now().Add(-time.Duration(hours) * time.Hour).Unix()
	snaps, err := s.store.QueryTempHistory(name, since)
	if err != nil {
		slog.Error("querying temperature history", "drive", name, "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, r, snaps)
}

func (s *Server) handleDriveSparkline(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	hours := hoursParam(r, 24)
	since := time.Now().Add(-time.Duration(hours) * time.Hour).Unix()

	points, err := s.store.QueryTempSparkline(name, since)
	if err != nil {
		slog.Error("querying temperature sparkline", "drive", name, "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, r, points)
}

// handleDriveHwmon renders a drive the way the kernel hwmon sysfs tree
// would: flat attribute names, millidegree values, and an attribute
// present only when the drive actually reports it.
func (s *Server) handleDriveHwmon(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	drive := s.registry.Get(name)
	if drive == nil {
		http.NotFound(w, r)
		return
	}

	attrs := map[string]any{
		"name":        "drivetemp",
		"temp1_label": drive.Model,
	}
	if drive.LastReading != nil {
		attrs["temp1_input"] = drive.LastReading.Current
		if drive.Capabilities.HasLowest && drive.LastReading.Lowest != nil {
			attrs["temp1_lowest"] = *drive.LastReading.Lowest
		}
		if drive.Capabilities.HasHighest && drive.LastReading.Highest != nil {
			attrs["temp1_highest"] = *drive.LastReading.Highest
		}
	}
	caps := drive.Capabilities
	if caps.TempMin != nil {
		attrs["temp1_min"] = *caps.TempMin
	}
	if caps.TempMax != nil {
		attrs["temp1_max"] = *caps.TempMax
	}
	if caps.TempLCrit != nil {
		attrs["temp1_lcrit"] = *caps.TempLCrit
	}
	if caps.TempCrit != nil {
		attrs["temp1_crit"] = *caps.TempCrit
	}
	writeJSON(w, r, attrs)
}

func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		if v, err := strconv.Atoi(l); err == nil && v > 0 && v <= 500 {
			limit = v
		}
	}

	alerts, err := s.store.QueryRecentAlerts(limit)
	if err != nil {
		slog.Error("querying alerts", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	if alerts == nil {
		alerts = []store.AlertRecord{}
	}
	writeJSON(w, r, alerts)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	snap := s.registry.Snapshot()
	healthy := len(snap.LastPoll) > 0

	status := "ok"
	if !healthy {
		status = "no_data"
	}

	collectors := make(map[string]string, len(snap.LastPoll))
	for k, v := range snap.LastPoll {
		collectors[k] = fmt.Sprintf("%ds ago", int(time.Since(v).Seconds()))
	}
	writeJSON(w, r, map[string]any{
		"status":     status,
		"timestamp":  time.Now().Unix(),
		"drives":     len(snap.Drives),
		"collectors": collectors,
	})
}
