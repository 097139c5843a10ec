// ABOUTME: Entry point for the voicestage player
// ABOUTME: Parses CLI flags, loads config and runs the playback application
package main

import (
	"context"
	"flag"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/lanlan-project/voicestage/internal/app"
	"github.com/lanlan-project/voicestage/internal/config"
	"github.com/lanlan-project/voicestage/internal/version"
)

var (
	configFile      = flag.String("config", "", "Config file path (default: ./voicestage.yaml or ~/.voicestage/voicestage.yaml)")
	serverAddr      = flag.String("server", "", "Producer address host:port (skip mDNS)")
	name            = flag.String("name", "", "Character name to connect to")
	backend         = flag.String("backend", "", "Audio output backend: oto, malgo or none")
	metricsAddr     = flag.String("metrics-addr", "", "Serve Prometheus metrics on this address")
	discoverTimeout = flag.Duration("discover-timeout", 0, "How long to browse for a producer")
	clientID        = flag.String("client-id", "", "Stable client id (default: random)")
	logFile         = flag.String("log-file", "voicestage.log", "Log file path")
	noTUI           = flag.Bool("no-tui", false, "Disable TUI, use streaming logs instead")
	debug           = flag.Bool("debug", false, "Enable debug logging")
)

func main() {
	flag.Parse()

	useTUI := !*noTUI

	f, err := os.OpenFile(*logFile, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		log.Fatal("Failed to open log file", "path", *logFile, "err", err)
	}
	defer func() { _ = f.Close() }()

	if useTUI {
		// TUI mode: log only to file
		log.SetOutput(f)
	} else {
		log.SetOutput(io.MultiWriter(os.Stdout, f))
	}
	log.SetReportTimestamp(true)
	log.SetTimeFormat(time.TimeOnly)
	if *debug {
		log.SetLevel(log.DebugLevel)
	}

	cfg, err := config.Load(*configFile)
	if err != nil {
		log.Fatal("Failed to load config", "err", err)
	}
	applyFlags(cfg)
	if err := cfg.Validate(); err != nil {
		log.Fatal("Invalid configuration", "err", err)
	}

	log.Info("Starting "+version.String(), "character", cfg.Server.Name, "backend", cfg.Output.Backend)
	if cfg.Server.Addr == "" {
		log.Info("No producer address given, browsing over mDNS")
	}

	player, err := app.New(cfg, app.Options{UseTUI: useTUI, ClientID: *clientID})
	if err != nil {
		log.Fatal("Failed to create player", "err", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := player.Run(ctx); err != nil {
		log.Error("Player stopped with error", "err", err)
		stop()
		_ = f.Close()
		os.Exit(1)
	}

	log.Info("Player stopped")
}

// applyFlags overrides config values with flags given on the command line
func applyFlags(cfg *config.Config) {
	flag.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "server":
			cfg.Server.Addr = *serverAddr
		case "name":
			cfg.Server.Name = *name
		case "backend":
			cfg.Output.Backend = *backend
		case "metrics-addr":
			cfg.Metrics.Addr = *metricsAddr
		case "discover-timeout":
			cfg.Server.DiscoverTimeout = *discoverTimeout
		}
	})
}
