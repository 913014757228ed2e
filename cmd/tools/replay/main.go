// Command replay sends the UDP payloads of a pcap capture to a rig loop,
// preserving the captured timing.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/gopacket/pcapgo"

	"github.com/banshee-data/rig/internal/network"
	"github.com/banshee-data/rig/internal/timeutil"
)

var (
	pcapFile = flag.String("pcap", "", "Capture file to replay (required)")
	port     = flag.Int("port", 1317, "Replay only datagrams captured with this UDP destination port (0 for all)")
	to       = flag.String("to", "127.0.0.1:1317", "UDP address to send to")
	speed    = flag.Float64("speed", 1.0, "Replay speed multiplier (0 sends as fast as possible)")
)

func main() {
	flag.Parse()
	if *pcapFile == "" {
		log.Fatal("-pcap is required")
	}

	f, err := os.Open(*pcapFile)
	if err != nil {
		log.Fatalf("Failed to open capture: %v", err)
	}
	defer f.Close()

	r, err := pcapgo.NewReader(f)
	if err != nil {
		log.Fatalf("Failed to read capture header: %v", err)
	}

	stats := network.NewPacketStats("replay", time.Minute)
	sender, err := network.ResolveSender(network.RealUDPSocketFactory{}, *to, stats)
	if err != nil {
		log.Fatalf("Failed to open sender: %v", err)
	}
	defer sender.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Printf("Replaying %s (port %d) to %s at %.1fx", *pcapFile, *port, sender.Destination(), *speed)
	started := time.Now()
	res, err := replay(ctx, r, r.LinkType(), sender, timeutil.RealClock{}, replayConfig{Port: *port, Speed: *speed})
	if err != nil {
		log.Printf("replay stopped: %v", err)
	}
	log.Printf("Replay complete: %d of %d packets sent, %d skipped, %d send errors, %v captured in %v",
		res.Sent, res.Packets, res.Skipped, stats.SendErrors, res.Captured, time.Since(started).Round(time.Millisecond))
}
