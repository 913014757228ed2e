package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/rig/internal/pose"
	"github.com/banshee-data/rig/internal/recorder"
)

var start = time.Date(2026, 4, 2, 11, 0, 0, 0, time.UTC)

func samples() []recorder.PoseSample {
	return []recorder.PoseSample{
		{At: start, Pose: pose.Pose{X: 0, Y: 0}},
		{At: start.Add(500 * time.Millisecond), Pose: pose.Pose{X: 1, Y: 4}},
		{At: start.Add(time.Second), Pose: pose.Pose{X: 2, Y: 8}},
	}
}

func TestPoseXYs(t *testing.T) {
	assert.Equal(t, plotter.XYs{{X: 0, Y: 0}, {X: 1, Y: 4}, {X: 2, Y: 8}}, poseXYs(samples()))
}

func TestTrackXYs(t *testing.T) {
	assert.Equal(t, plotter.XYs{{X: 0, Y: 0}, {X: 0.5, Y: 4}, {X: 1, Y: 8}}, trackXYs(samples(), start))
}

func TestFrequencyXYs_Steps(t *testing.T) {
	events := []recorder.FlashEvent{
		{At: start, Frequency: 50},
		{At: start.Add(2 * time.Second), Frequency: 40},
	}
	want := plotter.XYs{{X: 0, Y: 50}, {X: 2, Y: 50}, {X: 2, Y: 40}}
	assert.Equal(t, want, frequencyXYs(events, start))
}

func TestPathPlot_NoSamples(t *testing.T) {
	_, err := pathPlot(recorder.Session{ID: "abc"}, nil)
	assert.ErrorIs(t, err, errNoSamples)
}

func TestRender_SavesEveryMode(t *testing.T) {
	dir := t.TempDir()
	dbFile := filepath.Join(dir, "rig.db")

	rec, err := recorder.StartRecording(dbFile, recorder.KindPath, nil, start)
	require.NoError(t, err)
	for _, s := range samples() {
		rec.RecordPose(s.At, s.Pose)
	}
	require.NoError(t, rec.Close())

	rec, err = recorder.StartRecording(dbFile, recorder.KindFlash, nil, start)
	require.NoError(t, err)
	rec.RecordFlash(recorder.FlashEvent{At: start, Zone: 0, Frequency: 50, Level: true})
	rec.RecordFlash(recorder.FlashEvent{At: start.Add(time.Second), Zone: 0, Frequency: 45, Level: false})
	require.NoError(t, rec.Close())

	store, err := recorder.Open(dbFile)
	require.NoError(t, err)
	defer store.Close()

	for _, mode := range []string{"path", "track", "flash"} {
		t.Run(mode, func(t *testing.T) {
			p, err := render(store, mode, "")
			require.NoError(t, err)

			out := filepath.Join(dir, mode+".png")
			require.NoError(t, p.Save(4*vg.Inch, 3*vg.Inch, out))
			info, err := os.Stat(out)
			require.NoError(t, err)
			assert.Positive(t, info.Size())
		})
	}

	_, err = render(store, "heatmap", "")
	assert.ErrorContains(t, err, "unknown plot mode")
	_, err = render(store, "path", "missing")
	assert.Error(t, err)
}
