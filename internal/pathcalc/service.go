// Package pathcalc runs the position integrator loop: it turns tracking
// records into poses and forwards each pose to the renderer.
package pathcalc

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/banshee-data/rig/internal/monitoring"
	"github.com/banshee-data/rig/internal/network"
	"github.com/banshee-data/rig/internal/pose"
	"github.com/banshee-data/rig/internal/timeutil"
	"github.com/banshee-data/rig/internal/wire"
)

// PoseRecorder receives every emitted pose. Implementations must not block.
type PoseRecorder interface {
	RecordPose(at time.Time, p pose.Pose)
}

// Config holds the integrator settings fixed at start-up.
type Config struct {
	Listen        string
	Downstream    string
	Policy        pose.Policy
	Gains         pose.Gains
	StatsInterval time.Duration
}

// Service owns the integrator state and its sockets for one process.
type Service struct {
	cfg        Config
	integrator *pose.Integrator
	sock       network.UDPSocket
	receiver   *network.Receiver
	sender     *network.Sender
	stats      *network.PacketStats
	recorder   PoseRecorder
	clock      timeutil.Clock
	out        []byte
}

// Option configures a Service.
type Option func(*Service)

// WithRecorder records every emitted pose.
func WithRecorder(r PoseRecorder) Option {
	return func(s *Service) { s.recorder = r }
}

// WithClock replaces the clock used for timestamps and stats.
func WithClock(c timeutil.Clock) Option {
	return func(s *Service) { s.clock = c }
}

// Open binds the listen socket and the downstream send socket.
func Open(cfg Config, factory network.UDPSocketFactory, opts ...Option) (*Service, error) {
	stats := network.NewPacketStats("position integrator", cfg.StatsInterval)

	sock, err := network.Listen(factory, cfg.Listen)
	if err != nil {
		return nil, err
	}
	sender, err := network.ResolveSender(factory, cfg.Downstream, stats)
	if err != nil {
		sock.Close()
		return nil, err
	}

	s := &Service{
		cfg:        cfg,
		integrator: pose.NewIntegrator(cfg.Policy, cfg.Gains),
		sock:       sock,
		receiver:   network.NewReceiver(sock, network.Blocking(), wire.MaxDatagram, stats),
		sender:     sender,
		stats:      stats,
		clock:      timeutil.RealClock{},
		out:        make([]byte, 0, 64),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Close releases both sockets.
func (s *Service) Close() error {
	return errors.Join(s.sock.Close(), s.sender.Close())
}

// Stats returns the traffic counters for the current window.
func (s *Service) Stats() *network.PacketStats { return s.stats }

// Pose returns the current pose.
func (s *Service) Pose() pose.Pose { return s.integrator.Pose() }

// Run processes datagrams until ctx is cancelled. Cancellation is a normal
// exit and returns nil.
func (s *Service) Run(ctx context.Context) error {
	monitoring.Logf("position integrator listening on %s: policy=%s gains=%+v downstream=%s",
		s.sock.LocalAddr(), s.cfg.Policy, s.cfg.Gains, s.sender.Destination())

	for {
		pkt, _, ok, err := s.receiver.Receive(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				monitoring.Logf("position integrator stopping: %v", err)
				return nil
			}
			return fmt.Errorf("position integrator receive failed: %w", err)
		}
		if ok {
			s.Step(pkt)
		}
		s.stats.MaybeLog(s.clock.Now())
	}
}

// Step handles one datagram. A malformed record is dropped without
// touching the pose or emitting anything; it reports whether a pose was sent.
func (s *Service) Step(pkt []byte) bool {
	d, err := wire.ParseMotionDelta(pkt)
	if err != nil {
		s.stats.AddMalformed()
		return false
	}

	p := s.integrator.Apply(d)
	a, b, h := s.cfg.Policy.Ordered(p)
	s.out = wire.AppendPose(s.out[:0], a, b, h)
	s.sender.Send(s.out)

	if s.recorder != nil {
		s.recorder.RecordPose(s.clock.Now(), p)
	}
	return true
}
