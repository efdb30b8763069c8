package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/darshan-rambhia/drivetherm/internal/alerter"
	"github.com/darshan-rambhia/drivetherm/internal/api"
	"github.com/darshan-rambhia/drivetherm/internal/ata"
	"github.com/darshan-rambhia/drivetherm/internal/collector"
	"github.com/darshan-rambhia/drivetherm/internal/config"
	"github.com/darshan-rambhia/drivetherm/internal/notify"
	"github.com/darshan-rambhia/drivetherm/internal/registry"
	"github.com/darshan-rambhia/drivetherm/internal/store"
	"golang.org/x/sync/errgroup"
)

var (
	version   = "dev"
	commit    = "none"
	buildTime = "unknown"
)

// buildInfo returns version, commit, build time, and VCS details from the
// embedded Go build info. ldflags-injected values take priority; VCS info
// from debug.ReadBuildInfo fills in anything left as default.
func buildInfo() (ver, sha, built, dirty string) {
	ver = version
	sha = commit
	built = buildTime
	dirty = "clean"

	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}

	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			if sha == "none" {
				sha = s.Value
			}
		case "vcs.time":
			if built == "unknown" {
				built = s.Value
			}
		case "vcs.modified":
			if s.Value == "true" {
				dirty = "dirty"
			}
		}
	}

	return
}

func main() {
	configPath := flag.String("config", "", "path to drivetherm.yml config file")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	ver, sha, built, dirty := buildInfo()

	if *showVersion {
		fmt.Printf("drivetherm %s\n  commit:    %s (%s)\n  built:     %s\n  go:        %s\n  platform:  %s/%s\n",
			ver, sha, dirty, built, runtime.Version(), runtime.GOOS, runtime.GOARCH)
		os.Exit(0)
	}

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, config.ErrConfigFileNotFound) {
			fmt.Fprintf(os.Stderr, "error: %s\n\n", err)
			fmt.Fprintf(os.Stderr, "Copy the example config to get started:\n")
			fmt.Fprintf(os.Stderr, "  cp drivetherm.example.yml %s\n\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "error: loading config (%s): %s\n", *configPath, err)
		}
		os.Exit(1)
	}

	// Configure logging
	var logLevel slog.Level
	switch cfg.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: logLevel}
	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))

	slog.Info("starting drivetherm",
		"version", ver,
		"commit", sha,
		"built", built,
		"dirty", dirty,
		"go", runtime.Version(),
		"listen", cfg.Listen,
	)

	// Initialize store
	st, err := store.New(cfg.DBPath)
	if err != nil {
		slog.Error("opening database", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	// Initialize drive registry
	reg := registry.New()

	// Initialize worker pool
	pool := collector.NewWorkerPool(cfg.WorkerPoolSize)

	// Setup context with signal handling
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)

	// Start the local drive collector
	localCount := 0
	if cfg.Local.Enabled {
		policy, err := ata.ParsePolicy(cfg.Probe.Policy)
		if err != nil {
			slog.Error("invalid probe policy", "policy", cfg.Probe.Policy, "error", err)
			os.Exit(1)
		}

		localCfg := collector.LocalConfig{
			DeviceGlobs:  cfg.Local.DeviceGlobs,
			Policy:       policy,
			PollInterval: cfg.Local.PollInterval.Duration,
			ScanInterval: cfg.Local.ScanInterval.Duration,
		}
		if localCfg.PollInterval == 0 {
			localCfg.PollInterval = 30 * time.Second
		}
		if localCfg.ScanInterval == 0 {
			localCfg.ScanInterval = 5 * time.Minute
		}

		local := collector.NewLocalCollector(localCfg, pool, reg, st)
		g.Go(func() error { return collector.Run(ctx, local) })
		localCount = 1
	}

	// Start remote collectors
	for _, rc := range cfg.Remote {
		remoteCfg := collector.RemoteConfig{
			Name:         rc.Name,
			Host:         rc.Host,
			User:         rc.User,
			KeyPath:      rc.KeyPath,
			Devices:      rc.Devices,
			PollInterval: rc.PollInterval.Duration,
		}
		if remoteCfg.PollInterval == 0 {
			remoteCfg.PollInterval = 1 * time.Minute
		}

		remote, err := collector.NewRemoteCollector(remoteCfg, reg, st)
		if err != nil {
			slog.Error("creating remote collector", "name", rc.Name, "error", err)
			os.Exit(1)
		}
		g.Go(func() error { return collector.Run(ctx, remote) })
	}

	// Start pruner, keeping snapshots for the configured history window
	retention := store.DefaultRetention()
	retention.TempSnapshots = time.Duration(cfg.HistoryHours) * time.Hour
	pruner := store.NewPruner(st, retention)
	g.Go(func() error { return pruner.Run(ctx) })

	// Build notification providers
	var providers []notify.Provider
	for _, ncfg := range cfg.Notifications {
		switch ncfg.Type {
		case "ntfy":
			providers = append(providers, notify.NewNtfy(ncfg.URL, ncfg.Topic))
		case "webhook":
			method := ncfg.Method
			if method == "" {
				method = "POST"
			}
			providers = append(providers, notify.NewWebhook(ncfg.URL, method, ncfg.Headers))
		}
	}

	// Start alerter
	alertCfg := alerter.DefaultAlertConfig()
	if cfg.Alerts.DriveTempHigh != nil {
		alertCfg.DriveTempHigh.Threshold = cfg.Alerts.DriveTempHigh.Threshold
		alertCfg.DriveTempHigh.Duration = cfg.Alerts.DriveTempHigh.Duration.Duration
		if cfg.Alerts.DriveTempHigh.Severity != "" {
			alertCfg.DriveTempHigh.Severity = cfg.Alerts.DriveTempHigh.Severity
		}
		if cfg.Alerts.DriveTempHigh.Cooldown.Duration > 0 {
			alertCfg.DriveTempHigh.Cooldown = cfg.Alerts.DriveTempHigh.Cooldown.Duration
		}
	}
	if cfg.Alerts.DriveTempCrit != nil {
		alertCfg.DriveTempCrit.Threshold = cfg.Alerts.DriveTempCrit.Threshold
		if cfg.Alerts.DriveTempCrit.Severity != "" {
			alertCfg.DriveTempCrit.Severity = cfg.Alerts.DriveTempCrit.Severity
		}
		if cfg.Alerts.DriveTempCrit.Cooldown.Duration > 0 {
			alertCfg.DriveTempCrit.Cooldown = cfg.Alerts.DriveTempCrit.Cooldown.Duration
		}
	}
	if cfg.Alerts.DriveStale != nil {
		alertCfg.DriveStale.MaxAge = cfg.Alerts.DriveStale.MaxAge.Duration
		if cfg.Alerts.DriveStale.Severity != "" {
			alertCfg.DriveStale.Severity = cfg.Alerts.DriveStale.Severity
		}
		if cfg.Alerts.DriveStale.Cooldown.Duration > 0 {
			alertCfg.DriveStale.Cooldown = cfg.Alerts.DriveStale.Cooldown.Duration
		}
	}

	a := alerter.NewAlerter(reg, st, providers, alertCfg)
	g.Go(func() error { return a.Run(ctx) })

	// Start HTTP server
	server := api.NewServer(cfg.Listen, reg, st)
	g.Go(func() error { return server.Run(ctx) })

	slog.Info("all components started",
		"local_collectors", localCount,
		"remote_collectors", len(cfg.Remote),
		"notifications", len(providers),
	)

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("fatal error", "error", err)
	}

	slog.Info("drivetherm stopped gracefully")
}
