package pathcalc

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/rig/internal/network"
	"github.com/banshee-data/rig/internal/pose"
	"github.com/banshee-data/rig/internal/timeutil"
)

var tracker = &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 40000}

type recordedPose struct {
	at   time.Time
	pose pose.Pose
}

type fakeRecorder struct {
	poses []recordedPose
}

func (f *fakeRecorder) RecordPose(at time.Time, p pose.Pose) {
	f.poses = append(f.poses, recordedPose{at: at, pose: p})
}

// runService drives a service over the given datagrams and stops once the
// input is drained.
func runService(t *testing.T, cfg Config, payloads []string, opts ...Option) (*Service, *network.MockUDPSocket, *network.MockUDPSocket) {
	t.Helper()
	in := network.NewMockUDPSocket(network.Datagrams(tracker, payloads...)...)
	out := network.NewMockUDPSocket()
	factory := network.NewMockUDPSocketFactory(in, out)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	in.OnDrained = cancel

	svc, err := Open(cfg, factory, opts...)
	require.NoError(t, err)
	require.NoError(t, svc.Run(ctx))
	require.NoError(t, svc.Close())

	require.Len(t, factory.ListenCalls, 2)
	assert.Equal(t, 1317, factory.ListenCalls[0].Addr.Port)
	assert.Nil(t, factory.ListenCalls[1].Addr, "send socket binds an ephemeral port")
	return svc, in, out
}

func openConfig() Config {
	return Config{
		Listen:     "127.0.0.1:1317",
		Downstream: "127.0.0.1:1318",
		Policy:     pose.Open,
		Gains:      pose.DefaultOpenGains(),
	}
}

func TestRun_OpenPolicyEmitsEveryRecord(t *testing.T) {
	_, in, out := runService(t, openConfig(), []string{
		"0,0,0,0,0,0,0,1,0",
		"0,0,0,0,0,0,0,1,0",
		"0,0,0,0,0,0,0,0,0",
	})

	assert.Equal(t, []string{"2.0,0.0,0.0", "4.0,0.0,0.0", "4.0,0.0,0.0"}, out.SentStrings())
	for _, sent := range out.Sent {
		assert.Equal(t, 1318, sent.Addr.Port)
	}
	assert.True(t, in.IsClosed())
	assert.True(t, out.IsClosed())
}

func TestRun_MalformedRecordLeavesPoseUnchanged(t *testing.T) {
	svc, _, out := runService(t, openConfig(), []string{
		"0,0,0,0,0,0,0,1,0",
		"0,0,0,0,0,0,x,1,0",
		"0,0,0,0,0,0,0,1",
		"",
		"0,0,0,0,0,0,0,1,0",
	})

	assert.Equal(t, []string{"2.0,0.0,0.0", "4.0,0.0,0.0"}, out.SentStrings())
	assert.Equal(t, pose.Pose{X: 4}, svc.Pose())
	assert.Equal(t, int64(3), svc.Stats().Malformed)
	assert.Equal(t, int64(5), svc.Stats().Received)
	assert.Equal(t, int64(2), svc.Stats().Sent)
}

func TestRun_ClosedEndEmitsTrackFirstAndClamps(t *testing.T) {
	cfg := openConfig()
	cfg.Policy = pose.ClosedEnd
	cfg.Gains = pose.DefaultClosedGains()

	payloads := []string{"0,0,0,0,0,0,0,1,0"}
	for i := 0; i < 30; i++ {
		payloads = append(payloads, "0,0,0,0,0,0,0,1,0")
	}
	payloads = append(payloads, "0,0,0,0,0,0,0,-200,0")

	svc, _, out := runService(t, cfg, payloads)

	sent := out.SentStrings()
	require.Len(t, sent, 32)
	assert.Equal(t, "4.0,0.0,0.0", sent[0])
	assert.Equal(t, "99.9,0.0,0.0", sent[30], "z saturates below the top of the track")
	assert.Equal(t, "0.0,0.0,0.0", sent[31], "z saturates above the bottom of the track")
	assert.Equal(t, pose.TrackFloor, svc.Pose().Y)
}

func TestRun_RecordsEmittedPoses(t *testing.T) {
	clock := timeutil.NewMockClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	rec := &fakeRecorder{}

	runService(t, openConfig(), []string{
		"0,0,0,0,0,0,0,1,0",
		"bad",
		"0,0,0,0,0,0,0,0,0.5",
	}, WithRecorder(rec), WithClock(clock))

	require.Len(t, rec.poses, 2)
	assert.Equal(t, pose.Pose{X: 2}, rec.poses[0].pose)
	assert.Equal(t, pose.Pose{X: 2, Heading: 0.5}, rec.poses[1].pose)
	assert.Equal(t, clock.Now(), rec.poses[0].at)
}

func TestRun_SendErrorsDoNotStopTheLoop(t *testing.T) {
	in := network.NewMockUDPSocket(network.Datagrams(tracker, "0,0,0,0,0,0,0,1,0", "0,0,0,0,0,0,0,1,0")...)
	out := network.NewMockUDPSocket()
	out.WriteError = errors.New("network unreachable")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	in.OnDrained = cancel

	svc, err := Open(openConfig(), network.NewMockUDPSocketFactory(in, out))
	require.NoError(t, err)
	defer svc.Close()

	require.NoError(t, svc.Run(ctx))
	assert.Equal(t, int64(2), svc.Stats().SendErrors)
	assert.Equal(t, pose.Pose{X: 4}, svc.Pose())
}

func TestRun_ClosedSocketIsAnError(t *testing.T) {
	in := network.NewMockUDPSocket()
	in.Closed = true

	svc, err := Open(openConfig(), network.NewMockUDPSocketFactory(in, network.NewMockUDPSocket()))
	require.NoError(t, err)

	err = svc.Run(context.Background())
	assert.ErrorIs(t, err, net.ErrClosed)
}

func TestOpen_ListenFailure(t *testing.T) {
	factory := network.NewMockUDPSocketFactory()
	factory.Error = errors.New("address in use")

	_, err := Open(openConfig(), factory)
	assert.ErrorContains(t, err, "address in use")
}

func TestOpen_BadDownstreamClosesListener(t *testing.T) {
	in := network.NewMockUDPSocket()
	cfg := openConfig()
	cfg.Downstream = "not an address"

	_, err := Open(cfg, network.NewMockUDPSocketFactory(in))
	require.Error(t, err)
	assert.True(t, in.IsClosed())
}
