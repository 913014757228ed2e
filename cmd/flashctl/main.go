// Command flashctl drives the reward LED from zone records sent by the
// tracker.
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
	"github.com/banshee-data/rig/internal/daq"
	"github.com/banshee-data/rig/internal/flash"
	"github.com/banshee-data/rig/internal/flashctl"
	"github.com/banshee-data/rig/internal/network"
	"github.com/banshee-data/rig/internal/recorder"
	"github.com/banshee-data/rig/internal/version"
)

var (
	configFile  = flag.String("config", "", "Path to a JSON rig configuration file (optional)")
	devMode     = flag.Bool("dev", false, "Log output writes instead of driving hardware")
	listen      = flag.String("listen", "", "UDP address to receive zone records on (overrides config)")
	channel     = flag.String("channel", "", "Digital output channel (overrides config)")
	driver      = flag.String("driver", "", "Output driver: serial, gpio or log (overrides config)")
	serialPort  = flag.String("port", "", "Serial device of the output bridge (overrides config, ignored in dev mode)")
	zoneDecay   = flag.String("zone-decay", "", "Zone decay rates as zone:rate pairs, e.g. 0:0.02,1:0.01 (overrides config)")
	noDecay     = flag.Bool("no-decay", false, "Flash at the base frequency in every zone")
	verify      = flag.Bool("verify", false, "Read the line back after every write and log mismatches")
	recordPath  = flag.String("record", "", "Record output transitions to this sqlite database (overrides config)")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

// buildConfig merges the config file with command-line overrides.
func buildConfig(cfg *config.RigConfig) (flashctl.Config, error) {
	fc := flashctl.Config{
		Listen:        cfg.GetFlashListen(),
		Channel:       cfg.GetChannel(),
		Params:        cfg.FlashParams(),
		PollInterval:  cfg.GetPollInterval(),
		Hold:          cfg.GetHold(),
		StatsInterval: cfg.GetStatsInterval(),
		VerifyWrites:  *verify,
	}
	if *listen != "" {
		fc.Listen = *listen
	}
	if *channel != "" {
		fc.Channel = *channel
	}
	if *zoneDecay != "" {
		table, err := flash.ParseDecayTable(*zoneDecay)
		if len(table) == 0 && err != nil {
			return flashctl.Config{}, fmt.Errorf("no usable zone decay pairs: %w", err)
		}
		fc.Params.Decay = table
	}
	if *noDecay {
		fc.Params.NoDecay = true
	}
	return fc, nil
}

// opener picks the output driver.
func opener(cfg *config.RigConfig) (daq.Opener, error) {
	if *driver != "" {
		cfg.Driver = driver
	}
	if *serialPort != "" {
		cfg.SerialPort = serialPort
	}
	return cfg.Opener(*devMode)
}

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String("flashctl"))
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

	fc, err := buildConfig(cfg)
	if err != nil {
		log.Fatalf("Invalid flags: %v", err)
	}

	open, err := opener(cfg)
	if err != nil {
		log.Fatalf("Invalid flags: %v", err)
	}

	dbPath := cfg.GetRecordPath()
	if *recordPath != "" {
		dbPath = *recordPath
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err = run(ctx, fc, network.RealUDPSocketFactory{}, open, dbPath)
	stop()
	if err != nil {
		log.Printf("%v", err)
		os.Exit(1)
	}
	log.Print("flash controller terminated")
}

// run drives the output until ctx is cancelled or the line fails,
// recording to dbPath when it is set. The line has been released and the
// recording closed by the time it returns.
func run(ctx context.Context, fc flashctl.Config, factory network.UDPSocketFactory, open daq.Opener, dbPath string) error {
	var opts []flashctl.Option
	if dbPath != "" {
		rec, err := recorder.StartRecording(dbPath, recorder.KindFlash, fc, time.Now())
		if err != nil {
			return fmt.Errorf("failed to start recording: %w", err)
		}
		defer func() {
			if err := rec.Close(); err != nil {
				log.Printf("failed to close recording: %v", err)
			}
		}()
		opts = append(opts, flashctl.WithRecorder(rec))
	}

	svc, err := flashctl.Open(fc, factory, open, opts...)
	if err != nil {
		return fmt.Errorf("failed to open socket: %w", err)
	}

	if err := svc.Run(ctx); err != nil {
		return fmt.Errorf("flash controller failed: %w", err)
	}
	return nil
}
