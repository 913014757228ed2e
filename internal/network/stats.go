package network

import (
	"time"

	"github.com/banshee-data/rig/internal/monitoring"
)

// PacketStats counts datagram traffic for one loop and logs a summary at
// most once per interval. It is owned by a single loop and not locked. All
// methods are safe on a nil receiver.
type PacketStats struct {
	name     string
	interval time.Duration

	Received   int64
	Bytes      int64
	Malformed  int64
	Sent       int64
	SendErrors int64

	lastSendErr error
	lastLog     time.Time
}

// NewPacketStats creates stats labelled name. A zero interval defaults to
// one minute.
func NewPacketStats(name string, interval time.Duration) *PacketStats {
	if interval == 0 {
		interval = time.Minute
	}
	return &PacketStats{name: name, interval: interval}
}

// AddPacket counts one received datagram of n bytes.
func (s *PacketStats) AddPacket(n int) {
	if s == nil {
		return
	}
	s.Received++
	s.Bytes += int64(n)
}

// AddMalformed counts one datagram dropped by the parser.
func (s *PacketStats) AddMalformed() {
	if s == nil {
		return
	}
	s.Malformed++
}

// AddSent counts one datagram written.
func (s *PacketStats) AddSent() {
	if s == nil {
		return
	}
	s.Sent++
}

// AddSendError counts one failed write.
func (s *PacketStats) AddSendError(err error) {
	if s == nil {
		return
	}
	s.SendErrors++
	s.lastSendErr = err
}

// MaybeLog writes a summary and starts a new window once interval has
// passed since the previous summary. The first call only starts the window.
func (s *PacketStats) MaybeLog(now time.Time) bool {
	if s == nil {
		return false
	}
	if s.lastLog.IsZero() {
		s.lastLog = now
		return false
	}
	if now.Sub(s.lastLog) < s.interval {
		return false
	}
	s.LogStats(now.Sub(s.lastLog))
	s.lastLog = now
	return true
}

// LogStats writes the current window and resets the counters.
func (s *PacketStats) LogStats(window time.Duration) {
	if s == nil {
		return
	}
	if s.SendErrors > 0 && s.lastSendErr != nil {
		monitoring.Logf("%s: received %d packets (%d bytes, %d malformed), sent %d, %d send errors (latest: %v) in %v",
			s.name, s.Received, s.Bytes, s.Malformed, s.Sent, s.SendErrors, s.lastSendErr, window.Round(time.Second))
	} else {
		monitoring.Logf("%s: received %d packets (%d bytes, %d malformed), sent %d in %v",
			s.name, s.Received, s.Bytes, s.Malformed, s.Sent, window.Round(time.Second))
	}
	s.Received, s.Bytes, s.Malformed, s.Sent, s.SendErrors = 0, 0, 0, 0, 0
	s.lastSendErr = nil
}
