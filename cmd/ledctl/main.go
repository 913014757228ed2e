// Command ledctl switches the reward LED by hand for wiring checks.
//
// Commands, one per line: 1 turns the LED on, 0 turns it off, 2 reads the
// line back and q quits.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/banshee-data/rig/internal/config"
	"github.com/banshee-data/rig/internal/daq"
	"github.com/banshee-data/rig/internal/version"
)

const prompt = "Enter 2->read, 1->ON, 0->OFF, q->quit: "

var (
	configFile  = flag.String("config", "", "Path to a JSON rig configuration file (optional)")
	devMode     = flag.Bool("dev", false, "Log output writes instead of driving hardware")
	channel     = flag.String("channel", "", "Digital output channel (overrides config)")
	driver      = flag.String("driver", "", "Output driver: serial, gpio or log (overrides config)")
	serialPort  = flag.String("port", "", "Serial device of the output bridge (overrides config, ignored in dev mode)")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

// interact reads commands from in until q, EOF or ctx is done.
func interact(ctx context.Context, in io.Reader, out io.Writer, h *daq.Handle) error {
	lines := make(chan string)
	scanErr := make(chan error, 1)
	done := make(chan struct{})
	defer close(done)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-done:
				return
			}
		}
		scanErr <- scanner.Err()
	}()

	for {
		fmt.Fprint(out, prompt)
		var line string
		select {
		case <-ctx.Done():
			fmt.Fprintln(out)
			return nil
		case l, ok := <-lines:
			if !ok {
				return <-scanErr
			}
			line = l
		}

		switch cmd := strings.ToLower(strings.TrimSpace(line)); cmd {
		case "q":
			log.Print("Exiting")
			return nil
		case "2":
			if level, ok := h.ReadState(); ok {
				log.Printf("Current channel state: %t", level)
			}
		case "1":
			log.Print("Turning LED ON")
			if err := h.Write(true); err != nil {
				return err
			}
		case "0":
			log.Print("Turning LED OFF")
			if err := h.Write(false); err != nil {
				return err
			}
		default:
			log.Printf("Invalid input %q: enter 2, 1, 0 or q", cmd)
		}
	}
}

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String("ledctl"))
		os.Exit(0)
	}

	cfg := config.Empty()
	if *configFile != "" {
		var err error
		cfg, err = config.Load(*configFile)
		if err != nil {
			log.Fatalf("Failed to load configuration: %v", err)
		}
	}

	ch := cfg.GetChannel()
	if *channel != "" {
		ch = *channel
	}
	if *driver != "" {
		cfg.Driver = driver
	}
	if *serialPort != "" {
		cfg.SerialPort = serialPort
	}
	open, err := cfg.Opener(*devMode)
	if err != nil {
		log.Fatalf("Invalid flags: %v", err)
	}

	h, err := daq.Acquire(open, ch, daq.WithHold(cfg.GetHold()))
	if err != nil {
		log.Fatalf("Failed to acquire output: %v", err)
	}
	log.Printf("Configured digital output channel: %s", ch)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := interact(ctx, os.Stdin, os.Stdout, h); err != nil {
		log.Printf("ledctl failed: %v", err)
	}
	if err := h.Release(); err != nil {
		log.Printf("failed to release %s: %v", ch, err)
	}
}
