// Command plot-trajectory renders a recorded session to a PNG: the path in
// the plane, the track position over time, or the flash frequency over time.
package main

import (
	"flag"
	"fmt"
	"log"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/rig/internal/recorder"
)

var (
	dbPath    = flag.String("db", "rig.db", "Recording database")
	sessionID = flag.String("session", "", "Session to plot (default: latest of the selected kind)")
	mode      = flag.String("mode", "path", "What to plot: path, track or flash")
	out       = flag.String("out", "trajectory.png", "Output image (format from extension)")
	width     = flag.Float64("width", 8, "Image width in inches")
	height    = flag.Float64("height", 6, "Image height in inches")
)

// render loads the session and builds the requested plot.
func render(store *recorder.Store, mode, id string) (*plot.Plot, error) {
	kind := recorder.KindPath
	if mode == "flash" {
		kind = recorder.KindFlash
	}

	var sess recorder.Session
	var err error
	if id != "" {
		sess, err = store.Session(id)
	} else {
		sess, err = store.LatestSession(kind)
	}
	if err != nil {
		return nil, err
	}

	switch mode {
	case "path", "track":
		samples, err := store.Poses(sess.ID)
		if err != nil {
			return nil, err
		}
		if mode == "track" {
			return trackPlot(sess, samples)
		}
		return pathPlot(sess, samples)
	case "flash":
		events, err := store.FlashEvents(sess.ID)
		if err != nil {
			return nil, err
		}
		return flashPlot(sess, events)
	default:
		return nil, fmt.Errorf("unknown plot mode %q: expected path, track or flash", mode)
	}
}

func main() {
	flag.Parse()

	store, err := recorder.Open(*dbPath)
	if err != nil {
		log.Fatalf("Failed to open recording: %v", err)
	}
	defer store.Close()

	p, err := render(store, *mode, *sessionID)
	if err != nil {
		log.Fatalf("Failed to build %s plot: %v", *mode, err)
	}
	if err := p.Save(vg.Length(*width)*vg.Inch, vg.Length(*height)*vg.Inch, *out); err != nil {
		log.Fatalf("Failed to save %s: %v", *out, err)
	}
	log.Printf("Wrote %s plot to %s", *mode, *out)
}
