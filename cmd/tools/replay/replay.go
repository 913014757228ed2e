package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"

	"github.com/banshee-data/rig/internal/network"
	"github.com/banshee-data/rig/internal/timeutil"
)

// replayConfig controls which datagrams are replayed and how fast.
type replayConfig struct {
	// Port selects captured datagrams by UDP destination port. Zero replays
	// every UDP payload.
	Port int
	// Speed scales the captured inter-packet gaps: 2 replays twice as fast.
	// Zero or negative sends as fast as possible.
	Speed float64
}

type replayResult struct {
	Packets  int
	Sent     int
	Skipped  int
	Captured time.Duration
}

// replay sends every matching UDP payload from src through sender, pacing
// by the capture timestamps.
func replay(ctx context.Context, src gopacket.PacketDataSource, linkType gopacket.Decoder, sender *network.Sender, clock timeutil.Clock, cfg replayConfig) (replayResult, error) {
	var res replayResult
	var first, last time.Time

	for {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		data, ci, err := src.ReadPacketData()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return res, nil
			}
			return res, fmt.Errorf("failed to read packet %d: %w", res.Packets+1, err)
		}
		res.Packets++

		packet := gopacket.NewPacket(data, linkType, gopacket.DecodeOptions{Lazy: true, NoCopy: true})
		udp, ok := packet.Layer(layers.LayerTypeUDP).(*layers.UDP)
		if !ok || len(udp.Payload) == 0 || (cfg.Port != 0 && int(udp.DstPort) != cfg.Port) {
			res.Skipped++
			continue
		}

		if first.IsZero() {
			first = ci.Timestamp
		} else if cfg.Speed > 0 {
			if gap := time.Duration(float64(ci.Timestamp.Sub(last)) / cfg.Speed); gap > 0 {
				clock.Sleep(gap)
			}
		}
		last = ci.Timestamp
		res.Captured = last.Sub(first)

		sender.Send(udp.Payload)
		res.Sent++
		if res.Sent%1000 == 0 {
			log.Printf("replay: sent %d datagrams (%v of capture)", res.Sent, res.Captured)
		}
	}
}
