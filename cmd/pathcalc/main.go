// Command pathcalc integrates tracker motion deltas into a pose and streams
// it to the renderer.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/banshee-data/rig/internal/config"
	"github.com/banshee-data/rig/internal/network"
	"github.com/banshee-data/rig/internal/pathcalc"
	"github.com/banshee-data/rig/internal/pose"
	"github.com/banshee-data/rig/internal/recorder"
	"github.com/banshee-data/rig/internal/version"
)

var (
	configFile  = flag.String("config", "", "Path to a JSON rig configuration file (optional)")
	listen      = flag.String("listen", "", "UDP address to receive tracker records on (overrides config)")
	downstream  = flag.String("downstream", "", "UDP address to send poses to (overrides config)")
	policyName  = flag.String("policy", "", "Integration policy: open, swapped or closed (overrides config)")
	recordPath  = flag.String("record", "", "Record poses to this sqlite database (overrides config)")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

// buildConfig merges the config file with command-line overrides.
func buildConfig(cfg *config.RigConfig) (pathcalc.Config, error) {
	pc := pathcalc.Config{
		Listen:        cfg.GetPathListen(),
		Downstream:    cfg.GetPathDownstream(),
		Policy:        cfg.GetPolicy(),
		Gains:         cfg.GetGains(),
		StatsInterval: cfg.GetStatsInterval(),
	}
	if *listen != "" {
		pc.Listen = *listen
	}
	if *downstream != "" {
		pc.Downstream = *downstream
	}
	if *policyName != "" {
		p, err := pose.ParsePolicy(*policyName)
		if err != nil {
			return pathcalc.Config{}, err
		}
		// A policy switch on the command line takes that policy's gains
		// unless the config file overrides them.
		if p != pc.Policy {
			pc.Gains = cfg.Gains.Apply(p.DefaultGains())
		}
		pc.Policy = p
	}
	return pc, nil
}

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String("pathcalc"))
		os.Exit(0)
	}

	cfg := config.Empty()
	if *configFile != "" {
		var err error
		cfg, err = config.Load(*configFile)
		if err != nil {
			log.Fatalf("Failed to load configuration: %v", err)
		}
		log.Printf("Loaded configuration from %s", *configFile)
	}

	pc, err := buildConfig(cfg)
	if err != nil {
		log.Fatalf("Invalid flags: %v", err)
	}

	dbPath := cfg.GetRecordPath()
	if *recordPath != "" {
		dbPath = *recordPath
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err = run(ctx, pc, network.RealUDPSocketFactory{}, dbPath)
	stop()
	if err != nil {
		log.Printf("%v", err)
		os.Exit(1)
	}
	log.Print("position integrator terminated")
}

// run integrates until ctx is cancelled, recording to dbPath when it is set.
// Sockets and the recording are closed before it returns.
func run(ctx context.Context, pc pathcalc.Config, factory network.UDPSocketFactory, dbPath string) error {
	var opts []pathcalc.Option
	if dbPath != "" {
		rec, err := recorder.StartRecording(dbPath, recorder.KindPath, pc, time.Now())
		if err != nil {
			return fmt.Errorf("failed to start recording: %w", err)
		}
		defer func() {
			if err := rec.Close(); err != nil {
				log.Printf("failed to close recording: %v", err)
			}
		}()
		opts = append(opts, pathcalc.WithRecorder(rec))
	}

	svc, err := pathcalc.Open(pc, factory, opts...)
	if err != nil {
		return fmt.Errorf("failed to open sockets: %w", err)
	}
	defer svc.Close()

	if err := svc.Run(ctx); err != nil {
		return fmt.Errorf("position integrator failed: %w", err)
	}
	return nil
}
