// Command thsensor-sim runs the sensor firmware core on simulated hardware.
//
// The device boots, commissions against a scripted network stack and then
// alternates between servicing timers and sleeping, all in virtual time.
//
// Usage:
//
//	thsensor-sim [flags]
//
// Flags:
//
//	-config string      Profile YAML (built-in defaults when empty)
//	-log-level string   Log level: debug, info, warn, error (default "info")
//	-events string      Write the event log to this .zlog file
//	-metrics string     Serve Prometheus metrics on this address
//	-speed float        Virtual seconds per wall second, 0 runs unpaced (default 1)
//	-duration duration  Stop after this much virtual time, 0 runs forever
//	-mdns               Use mDNS for the fallback radio
//	-interactive        Start the interactive shell
//
// Examples:
//
//	# Simulate a day of operation as fast as possible
//	thsensor-sim -speed 0 -duration 24h -events day.zlog
//
//	# Watch a device steer against a network that is not there yet
//	thsensor-sim -interactive -log-level debug
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/thsensor/thsensor-go/cmd/thsensor-sim/interactive"
	"github.com/thsensor/thsensor-go/pkg/config"
	"github.com/thsensor/thsensor-go/pkg/dualmode"
	"github.com/thsensor/thsensor-go/pkg/log"
	"github.com/thsensor/thsensor-go/pkg/metrics"
	"github.com/thsensor/thsensor-go/pkg/nvstore"
	"github.com/thsensor/thsensor-go/pkg/persistence"
	"github.com/thsensor/thsensor-go/pkg/sim"
)

// Options holds the command line settings.
type Options struct {
	ConfigFile  string
	LogLevel    string
	EventsFile  string
	MetricsAddr string
	Speed       float64
	Duration    time.Duration
	MDNS        bool
	Interactive bool
}

var opts Options

func init() {
	flag.StringVar(&opts.ConfigFile, "config", "", "Profile YAML (built-in defaults when empty)")
	flag.StringVar(&opts.LogLevel, "log-level", "", "Log level: debug, info, warn, error (overrides the profile)")
	flag.StringVar(&opts.EventsFile, "events", "", "Write the event log to this .zlog file (overrides the profile)")
	flag.StringVar(&opts.MetricsAddr, "metrics", "", "Serve Prometheus metrics on this address (overrides the profile)")
	flag.Float64Var(&opts.Speed, "speed", 1, "Virtual seconds per wall second, 0 runs unpaced")
	flag.DurationVar(&opts.Duration, "duration", 0, "Stop after this much virtual time, 0 runs forever")
	flag.BoolVar(&opts.MDNS, "mdns", false, "Use mDNS for the fallback radio")
	flag.BoolVar(&opts.Interactive, "interactive", false, "Start the interactive shell")
}

func main() {
	flag.Parse()

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	profile, err := loadProfile()
	if err != nil {
		return err
	}

	var shell *interactive.Shell
	out := io.Writer(os.Stderr)
	if opts.Interactive {
		shell, err = interactive.New()
		if err != nil {
			return err
		}
		out = shell.Stderr()
	}
	logger := setupLogging(out, profile.Log.Level)

	logger.Info("thsensor-sim starting",
		"device", profile.Device.ID,
		"firmware", profile.Device.Firmware,
		"clock", profile.Clock.Source,
		"speed", opts.Speed)

	var eventLoggers []log.Logger
	if profile.Log.Events != "" {
		fl, err := log.NewFileLogger(profile.Log.Events)
		if err != nil {
			return fmt.Errorf("event log: %w", err)
		}
		defer fl.Close()
		eventLoggers = append(eventLoggers, fl)
		logger.Info("Event log enabled", "path", fl.Path())
	}
	if logger.Enabled(context.Background(), slog.LevelDebug) {
		eventLoggers = append(eventLoggers, log.NewSlogAdapter(logger))
	}

	if profile.Metrics.Addr != "" {
		exp := metrics.NewExporter(profile.Metrics.Addr)
		if err := exp.Start(); err != nil {
			return fmt.Errorf("metrics: %w", err)
		}
		defer exp.Stop()
		logger.Info("Metrics exporter listening", "addr", exp.Addr())
	}

	simCfg := sim.Config{
		Profile:     profile,
		Logger:      logger,
		EventLogger: log.NewMultiLogger(eventLoggers...),
	}
	if path := profile.Storage.NVPath; path != "" {
		regs, err := nvstore.OpenFileRegisters(path)
		if err != nil {
			return fmt.Errorf("analog registers: %w", err)
		}
		simCfg.Registers = regs
	}
	if path := profile.Storage.NetworkStatePath; path != "" {
		simCfg.NetworkState = persistence.NewNetworkStateStore(path)
	}
	if profile.Fallback.MDNS {
		simCfg.Advertiser = dualmode.NewMDNSAdvertiser(dualmode.MDNSConfig{
			Interface: profile.Fallback.Interface,
			Port:      profile.Fallback.Port,
		})
	}

	s, err := sim.New(simCfg)
	if err != nil {
		return fmt.Errorf("failed to start simulator: %w", err)
	}
	defer s.Close()

	runnerOpts := []sim.RunnerOption{sim.WithSpeed(opts.Speed)}
	if opts.Duration > 0 {
		runnerOpts = append(runnerOpts, sim.WithUntil(opts.Duration))
	}
	runner := sim.NewRunner(s, runnerOpts...)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- runner.Run(ctx) }()

	if shell != nil {
		go shell.Run(ctx, cancel, runner)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("Received signal, shutting down", "signal", sig)
		cancel()
		err = <-done
	case <-ctx.Done():
		err = <-done
	case err = <-done:
		cancel()
	}
	if errors.Is(err, context.Canceled) {
		err = nil
	}

	logger.Info("Simulation finished",
		"virtual_time", s.Now(),
		"asleep", s.Platform().Asleep(),
		"boots", s.Boots(),
		"steps", runner.Steps(),
		"state", s.Device().Controller().State())
	return err
}

// loadProfile reads the profile and applies the flag overrides.
func loadProfile() (*config.Config, error) {
	profile := config.Default()
	if opts.ConfigFile != "" {
		var err error
		if profile, err = config.Load(opts.ConfigFile); err != nil {
			return nil, err
		}
	}
	if opts.LogLevel != "" {
		profile.Log.Level = opts.LogLevel
	}
	if opts.EventsFile != "" {
		profile.Log.Events = opts.EventsFile
	}
	if opts.MetricsAddr != "" {
		profile.Metrics.Addr = opts.MetricsAddr
	}
	if opts.MDNS {
		profile.Fallback.MDNS = true
	}
	if opts.Speed < 0 {
		return nil, fmt.Errorf("speed must not be negative, got %v", opts.Speed)
	}
	return profile, profile.Validate()
}

func setupLogging(w io.Writer, level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl}))
}
