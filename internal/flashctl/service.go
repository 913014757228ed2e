// Package flashctl runs the reward LED loop: it waits for the tracker to
// connect, then evaluates the flash decision every tick and drives the
// output line.
package flashctl

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/banshee-data/rig/internal/daq"
	"github.com/banshee-data/rig/internal/flash"
	"github.com/banshee-data/rig/internal/monitoring"
	"github.com/banshee-data/rig/internal/network"
	"github.com/banshee-data/rig/internal/recorder"
	"github.com/banshee-data/rig/internal/timeutil"
	"github.com/banshee-data/rig/internal/wire"
)

// DefaultPollInterval bounds each receive so the flash decision runs even
// when no datagram arrives.
const DefaultPollInterval = time.Millisecond

// FlashRecorder receives output transitions. Implementations must not block.
type FlashRecorder interface {
	RecordFlash(e recorder.FlashEvent)
}

// Config holds the controller settings fixed at start-up.
type Config struct {
	Listen        string
	Channel       string
	Params        flash.Params
	PollInterval  time.Duration
	// Hold is how long the line is held low before release. Zero or a
	// negative value skips the hold.
	Hold          time.Duration
	StatsInterval time.Duration
	// VerifyWrites reads the line back after every write and logs mismatches.
	VerifyWrites bool
}

// Service owns the flash state, the receive socket and, once connected, the
// output line.
type Service struct {
	cfg      Config
	sock     network.UDPSocket
	stats    *network.PacketStats
	open     daq.Opener
	clock    timeutil.Clock
	recorder FlashRecorder

	state     flash.State
	lastLevel bool
	written   bool
	zeroFreq  bool
}

// Option configures a Service.
type Option func(*Service)

// WithRecorder records every output transition.
func WithRecorder(r FlashRecorder) Option {
	return func(s *Service) { s.recorder = r }
}

// WithClock replaces the clock used for flash timing and the release hold.
func WithClock(c timeutil.Clock) Option {
	return func(s *Service) { s.clock = c }
}

// Open binds the listen socket. The output line is not opened until the
// first datagram arrives.
func Open(cfg Config, factory network.UDPSocketFactory, open daq.Opener, opts ...Option) (*Service, error) {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.Channel == "" {
		cfg.Channel = daq.DefaultChannel
	}
	if cfg.Params.BaseFrequency == 0 {
		cfg.Params.BaseFrequency = flash.DefaultBaseFrequency
	}

	sock, err := network.Listen(factory, cfg.Listen)
	if err != nil {
		return nil, err
	}
	s := &Service{
		cfg:   cfg,
		sock:  sock,
		stats: network.NewPacketStats("flash controller", cfg.StatsInterval),
		open:  open,
		clock: timeutil.RealClock{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Stats returns the traffic counters for the current window.
func (s *Service) Stats() *network.PacketStats { return s.stats }

// State returns the current flash state.
func (s *Service) State() flash.State { return s.state }

// Run waits for the first datagram, acquires the output line and runs the
// tick loop until ctx is cancelled or a hardware write fails. The line is
// driven low and released, and the socket closed, on every return path.
// Cancellation is a normal exit and returns nil.
func (s *Service) Run(ctx context.Context) (err error) {
	defer s.sock.Close()

	monitoring.Logf("flash controller listening on %s, waiting for tracker", s.sock.LocalAddr())
	connected, err := s.awaitConnection(ctx)
	if err != nil || !connected {
		return err
	}

	handle, err := daq.Acquire(s.open, s.cfg.Channel, daq.WithHold(s.cfg.Hold), daq.WithClock(s.clock))
	if err != nil {
		return err
	}
	defer func() {
		if rerr := handle.Release(); rerr != nil {
			err = errors.Join(err, rerr)
		}
		monitoring.Logf("output channel %s driven low and released", handle.Channel())
	}()

	monitoring.Logf("flash controller driving %s: base=%.1fHz decay=%s default_rate=%g no_decay=%t",
		handle.Channel(), s.cfg.Params.BaseFrequency, s.cfg.Params.Decay, s.cfg.Params.DefaultRate, s.cfg.Params.NoDecay)

	s.state = flash.NewState(s.clock.Now())
	receiver := network.NewReceiver(s.sock, network.Poll(s.cfg.PollInterval), wire.MaxDatagram, s.stats)
	for {
		pkt, _, ok, rerr := receiver.Receive(ctx)
		if rerr != nil {
			if ctx.Err() != nil {
				monitoring.Logf("flash controller stopping: %v", ctx.Err())
				return nil
			}
			return fmt.Errorf("flash controller receive failed: %w", rerr)
		}
		if ok {
			s.observe(pkt)
		}
		if err := s.tick(handle); err != nil {
			return err
		}
		s.stats.MaybeLog(s.clock.Now())
	}
}

// awaitConnection blocks until any datagram arrives. Its content is not
// interpreted.
func (s *Service) awaitConnection(ctx context.Context) (bool, error) {
	receiver := network.NewReceiver(s.sock, network.Blocking(), wire.MaxDatagram, s.stats)
	_, from, ok, err := receiver.Receive(ctx)
	if err != nil {
		if ctx.Err() != nil {
			monitoring.Logf("flash controller stopped before tracker connected")
			return false, nil
		}
		return false, fmt.Errorf("flash controller receive failed: %w", err)
	}
	if ok {
		monitoring.Logf("tracker connected from %s", from)
	}
	return ok, nil
}

// observe folds one frame/zone record into the state. A malformed record
// keeps the previous values.
func (s *Service) observe(pkt []byte) {
	frameCount, zone, err := wire.ParseFrameZone(pkt)
	if err != nil {
		s.stats.AddMalformed()
		monitoring.Logf("ignoring malformed flash record %q: %v", pkt, err)
		return
	}
	if zone != s.state.Zone {
		if zone == flash.OutOfZone {
			monitoring.Logf("left zone %d at frame %d", s.state.Zone, frameCount)
		} else {
			monitoring.Logf("entered zone %d (decay rate %g)", zone, s.cfg.Params.Decay.Rate(zone, s.cfg.Params.DefaultRate))
		}
		s.zeroFreq = false
	}
	s.state.Observe(frameCount, zone)
}

func (s *Service) tick(handle *daq.Handle) error {
	now := s.clock.Now()
	action := s.state.Tick(now, s.cfg.Params)

	if s.state.Zone != flash.OutOfZone {
		zero := s.state.Frequency == 0
		if zero && !s.zeroFreq {
			monitoring.Logf("flash frequency reached zero in zone %d at frame %d", s.state.Zone, s.state.FrameCount)
		}
		s.zeroFreq = zero
	}

	level, ok := action.Writes()
	if !ok {
		return nil
	}
	if err := handle.Write(level); err != nil {
		return fmt.Errorf("flash controller: %w", err)
	}
	if s.cfg.VerifyWrites {
		if got, ok := handle.ReadState(); ok && got != level {
			monitoring.Logf("%s reads %t after writing %t", handle.Channel(), got, level)
		}
	}

	if s.written && s.lastLevel == level {
		return nil
	}
	s.written, s.lastLevel = true, level
	if s.recorder != nil {
		s.recorder.RecordFlash(recorder.FlashEvent{
			At:         now,
			Zone:       s.state.Zone,
			FrameCount: s.state.FrameCount,
			Frequency:  s.state.Frequency,
			Level:      level,
		})
	}
	return nil
}
