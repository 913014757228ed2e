package network

import (
	"fmt"
	"net"
)

// Sender writes datagrams to one fixed destination without waiting for or
// reporting delivery. Write failures are only counted in the stats.
type Sender struct {
	sock  UDPSocket
	dest  *net.UDPAddr
	stats *PacketStats
}

// NewSender creates a sender for dest. stats may be nil.
func NewSender(sock UDPSocket, dest *net.UDPAddr, stats *PacketStats) *Sender {
	return &Sender{sock: sock, dest: dest, stats: stats}
}

// ResolveSender resolves address and opens an ephemeral send socket.
func ResolveSender(factory UDPSocketFactory, address string, stats *PacketStats) (*Sender, error) {
	dest, err := net.ResolveUDPAddr("udp", address)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve send address %q: %w", address, err)
	}
	sock, err := factory.ListenUDP("udp", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open send socket: %w", err)
	}
	return NewSender(sock, dest, stats), nil
}

// Send writes one datagram.
func (s *Sender) Send(b []byte) {
	if _, err := s.sock.WriteToUDP(b, s.dest); err != nil {
		s.stats.AddSendError(err)
		return
	}
	s.stats.AddSent()
}

// Destination returns the fixed destination address.
func (s *Sender) Destination() *net.UDPAddr { return s.dest }

// Close closes the underlying socket.
func (s *Sender) Close() error {
	return s.sock.Close()
}

// Listen resolves address and binds a receive socket on it.
func Listen(factory UDPSocketFactory, address string) (UDPSocket, error) {
	addr, err := net.ResolveUDPAddr("udp", address)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve UDP address: %w", err)
	}
	sock, err := factory.ListenUDP("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on UDP address: %w", err)
	}
	return sock, nil
}
