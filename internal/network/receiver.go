// Package network carries the rig's UDP datagrams: receiving with an explicit
// suspension policy and fire-and-forget sending.
package network

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/banshee-data/rig/internal/monitoring"
)

// cancelCheckInterval bounds how long a blocking receive waits before
// checking for context cancellation.
const cancelCheckInterval = 100 * time.Millisecond

// Suspension describes how a receive call waits for data.
type Suspension struct {
	blocking bool
	timeout  time.Duration
}

// Blocking waits until a datagram arrives or the context is cancelled.
func Blocking() Suspension {
	return Suspension{blocking: true, timeout: cancelCheckInterval}
}

// Poll waits at most timeout for a datagram, then reports that none arrived.
func Poll(timeout time.Duration) Suspension {
	if timeout <= 0 {
		timeout = time.Millisecond
	}
	return Suspension{timeout: timeout}
}

// IsBlocking reports whether the policy waits indefinitely.
func (s Suspension) IsBlocking() bool { return s.blocking }

func (s Suspension) String() string {
	if s.blocking {
		return "blocking"
	}
	return fmt.Sprintf("poll(%v)", s.timeout)
}

// Receiver reads datagrams from a socket under a suspension policy.
type Receiver struct {
	sock   UDPSocket
	policy Suspension
	buf    []byte
	stats  *PacketStats
	now    func() time.Time
}

// NewReceiver creates a receiver with a bufSize-byte datagram buffer.
// stats may be nil.
func NewReceiver(sock UDPSocket, policy Suspension, bufSize int, stats *PacketStats) *Receiver {
	return &Receiver{
		sock:   sock,
		policy: policy,
		buf:    make([]byte, bufSize),
		stats:  stats,
		now:    time.Now,
	}
}

// Policy returns the receiver's suspension policy.
func (r *Receiver) Policy() Suspension { return r.policy }

// Receive returns the next datagram. ok is false when a Poll policy timed
// out with no data. The returned slice is only valid until the next call.
// A cancelled context returns ctx.Err().
func (r *Receiver) Receive(ctx context.Context) (pkt []byte, from *net.UDPAddr, ok bool, err error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, nil, false, err
		}

		if err := r.sock.SetReadDeadline(r.now().Add(r.policy.timeout)); err != nil {
			return nil, nil, false, fmt.Errorf("failed to set read deadline: %w", err)
		}

		n, addr, err := r.sock.ReadFromUDP(r.buf)
		if err != nil {
			if isTimeout(err) {
				if r.policy.blocking {
					continue
				}
				return nil, nil, false, nil
			}
			if ctx.Err() != nil {
				return nil, nil, false, ctx.Err()
			}
			if errors.Is(err, net.ErrClosed) {
				return nil, nil, false, err
			}
			monitoring.Logf("UDP read error: %v", err)
			if r.policy.blocking {
				continue
			}
			return nil, nil, false, nil
		}

		r.stats.AddPacket(n)
		return r.buf[:n], addr, true, nil
	}
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
