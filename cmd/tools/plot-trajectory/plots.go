package main

import (
	"errors"
	"fmt"
	"image/color"
	"time"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/rig/internal/recorder"
)

var errNoSamples = errors.New("session has no samples")

var (
	pathColor  = color.RGBA{R: 31, G: 119, B: 180, A: 255}
	flashColor = color.RGBA{R: 214, G: 39, B: 40, A: 255}
)

// poseXYs returns the integrated path in the plane.
func poseXYs(samples []recorder.PoseSample) plotter.XYs {
	pts := make(plotter.XYs, 0, len(samples))
	for _, s := range samples {
		pts = append(pts, plotter.XY{X: s.Pose.X, Y: s.Pose.Y})
	}
	return pts
}

// trackXYs returns the track axis against seconds since start.
func trackXYs(samples []recorder.PoseSample, start time.Time) plotter.XYs {
	pts := make(plotter.XYs, 0, len(samples))
	for _, s := range samples {
		pts = append(pts, plotter.XY{X: s.At.Sub(start).Seconds(), Y: s.Pose.Y})
	}
	return pts
}

// frequencyXYs returns the flash frequency as a step series against
// seconds since start.
func frequencyXYs(events []recorder.FlashEvent, start time.Time) plotter.XYs {
	pts := make(plotter.XYs, 0, 2*len(events))
	for i, e := range events {
		t := e.At.Sub(start).Seconds()
		if i > 0 {
			pts = append(pts, plotter.XY{X: t, Y: pts[len(pts)-1].Y})
		}
		pts = append(pts, plotter.XY{X: t, Y: e.Frequency})
	}
	return pts
}

func linePlot(title, xLabel, yLabel string, pts plotter.XYs, c color.Color) (*plot.Plot, error) {
	if len(pts) == 0 {
		return nil, errNoSamples
	}
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = xLabel
	p.Y.Label.Text = yLabel

	line, err := plotter.NewLine(pts)
	if err != nil {
		return nil, err
	}
	line.Color = c
	line.Width = vg.Points(1)
	p.Add(line, plotter.NewGrid())
	return p, nil
}

// pathPlot draws the session's path in the plane with its start marked.
func pathPlot(sess recorder.Session, samples []recorder.PoseSample) (*plot.Plot, error) {
	pts := poseXYs(samples)
	p, err := linePlot(fmt.Sprintf("Path %s", shortID(sess.ID)), "x", "y", pts, pathColor)
	if err != nil {
		return nil, err
	}
	start, err := plotter.NewScatter(pts[:1])
	if err != nil {
		return nil, err
	}
	start.GlyphStyle.Color = flashColor
	p.Add(start)
	p.Legend.Add("start", start)
	p.Legend.Top = true
	return p, nil
}

// trackPlot draws the track axis over time.
func trackPlot(sess recorder.Session, samples []recorder.PoseSample) (*plot.Plot, error) {
	return linePlot(fmt.Sprintf("Track position %s", shortID(sess.ID)), "Time (s)", "Track position",
		trackXYs(samples, sess.StartedAt), pathColor)
}

// flashPlot draws the flash frequency over time.
func flashPlot(sess recorder.Session, events []recorder.FlashEvent) (*plot.Plot, error) {
	return linePlot(fmt.Sprintf("Flash frequency %s", shortID(sess.ID)), "Time (s)", "Frequency (Hz)",
		frequencyXYs(events, sess.StartedAt), flashColor)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
