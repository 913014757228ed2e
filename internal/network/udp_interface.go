package network

import (
	"net"
	"sync"
	"time"
)

// UDPSocket defines the datagram operations the rig loops use.
// This abstraction enables unit testing without real network connections.
type UDPSocket interface {
	// ReadFromUDP reads a UDP packet from the socket.
	ReadFromUDP(b []byte) (n int, addr *net.UDPAddr, err error)

	// WriteToUDP sends a UDP packet to addr.
	WriteToUDP(b []byte, addr *net.UDPAddr) (int, error)

	// SetReadDeadline sets the deadline for future Read calls.
	SetReadDeadline(t time.Time) error

	// Close closes the socket.
	Close() error

	// LocalAddr returns the local network address.
	LocalAddr() net.Addr
}

// UDPSocketFactory defines an interface for creating UDP sockets.
type UDPSocketFactory interface {
	// ListenUDP creates and returns a new UDP socket. A nil laddr binds an
	// ephemeral port, which is how send-only sockets are created.
	ListenUDP(network string, laddr *net.UDPAddr) (UDPSocket, error)
}

// RealUDPSocketFactory implements UDPSocketFactory using net.ListenUDP.
type RealUDPSocketFactory struct{}

// ListenUDP creates a new UDP socket.
func (RealUDPSocketFactory) ListenUDP(network string, laddr *net.UDPAddr) (UDPSocket, error) {
	conn, err := net.ListenUDP(network, laddr)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// MockUDPPacket represents a packet for mock testing. A non-nil Err is
// returned from ReadFromUDP in place of data.
type MockUDPPacket struct {
	Data []byte
	Addr *net.UDPAddr
	Err  error
}

// MockSentPacket records one WriteToUDP call.
type MockSentPacket struct {
	Data []byte
	Addr *net.UDPAddr
}

// MockUDPSocket implements UDPSocket for testing. Once the queued packets
// are drained every read reports a timeout.
type MockUDPSocket struct {
	mu sync.Mutex

	// Packets holds the packets to return from ReadFromUDP.
	Packets []MockUDPPacket
	// ReadIndex tracks the current position in Packets.
	ReadIndex int
	// Sent records every datagram written.
	Sent []MockSentPacket
	// WriteError is returned by every WriteToUDP call if set.
	WriteError error
	// Closed indicates whether Close was called.
	Closed bool
	// ReadDeadline holds the value set by SetReadDeadline.
	ReadDeadline time.Time
	// LocalAddress is returned by LocalAddr.
	LocalAddress *net.UDPAddr
	// OnDrained, if set, runs on every read made after the queue is empty.
	OnDrained func()
	// Reads counts ReadFromUDP calls, including timeouts.
	Reads int
}

// NewMockUDPSocket creates a new MockUDPSocket with the given packets.
func NewMockUDPSocket(packets ...MockUDPPacket) *MockUDPSocket {
	return &MockUDPSocket{
		Packets:      packets,
		LocalAddress: &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 1317},
	}
}

// Datagrams builds mock packets from strings, all from the same sender.
func Datagrams(from *net.UDPAddr, payloads ...string) []MockUDPPacket {
	out := make([]MockUDPPacket, 0, len(payloads))
	for _, p := range payloads {
		out = append(out, MockUDPPacket{Data: []byte(p), Addr: from})
	}
	return out
}

// Push queues more packets.
func (m *MockUDPSocket) Push(packets ...MockUDPPacket) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Packets = append(m.Packets, packets...)
}

// ReadFromUDP returns the next packet from the mock buffer.
func (m *MockUDPSocket) ReadFromUDP(b []byte) (int, *net.UDPAddr, error) {
	m.mu.Lock()
	m.Reads++
	if m.Closed {
		m.mu.Unlock()
		return 0, nil, net.ErrClosed
	}
	if m.ReadIndex >= len(m.Packets) {
		drained := m.OnDrained
		m.mu.Unlock()
		if drained != nil {
			drained()
		}
		return 0, nil, &net.OpError{Op: "read", Net: "udp", Err: &timeoutError{}}
	}
	pkt := m.Packets[m.ReadIndex]
	m.ReadIndex++
	m.mu.Unlock()

	if pkt.Err != nil {
		return 0, nil, pkt.Err
	}
	return copy(b, pkt.Data), pkt.Addr, nil
}

// WriteToUDP records the datagram.
func (m *MockUDPSocket) WriteToUDP(b []byte, addr *net.UDPAddr) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Closed {
		return 0, net.ErrClosed
	}
	if m.WriteError != nil {
		return 0, m.WriteError
	}
	m.Sent = append(m.Sent, MockSentPacket{Data: append([]byte(nil), b...), Addr: addr})
	return len(b), nil
}

// SentStrings returns the payloads written so far.
func (m *MockUDPSocket) SentStrings() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.Sent))
	for _, s := range m.Sent {
		out = append(out, string(s.Data))
	}
	return out
}

// SetReadDeadline records the deadline.
func (m *MockUDPSocket) SetReadDeadline(t time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ReadDeadline = t
	return nil
}

// Close marks the socket as closed.
func (m *MockUDPSocket) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Closed = true
	return nil
}

// IsClosed reports whether Close was called.
func (m *MockUDPSocket) IsClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Closed
}

// LocalAddr returns the mock local address.
func (m *MockUDPSocket) LocalAddr() net.Addr {
	return m.LocalAddress
}

// MockUDPSocketFactory hands out pre-built sockets in order.
type MockUDPSocketFactory struct {
	// Sockets are returned by successive ListenUDP calls.
	Sockets []*MockUDPSocket
	// Error is returned by ListenUDP if set.
	Error error
	// ListenCalls records all ListenUDP calls.
	ListenCalls []MockListenCall
}

// MockListenCall records a call to ListenUDP.
type MockListenCall struct {
	Network string
	Addr    *net.UDPAddr
}

// NewMockUDPSocketFactory creates a factory returning the given sockets.
func NewMockUDPSocketFactory(sockets ...*MockUDPSocket) *MockUDPSocketFactory {
	return &MockUDPSocketFactory{Sockets: sockets}
}

// ListenUDP returns the next configured mock socket.
func (f *MockUDPSocketFactory) ListenUDP(network string, laddr *net.UDPAddr) (UDPSocket, error) {
	f.ListenCalls = append(f.ListenCalls, MockListenCall{Network: network, Addr: laddr})
	if f.Error != nil {
		return nil, f.Error
	}
	if len(f.Sockets) == 0 {
		return NewMockUDPSocket(), nil
	}
	s := f.Sockets[0]
	f.Sockets = f.Sockets[1:]
	return s, nil
}

// timeoutError implements net.Error for timeout simulation.
type timeoutError struct{}

func (e *timeoutError) Error() string   { return "i/o timeout" }
func (e *timeoutError) Timeout() bool   { return true }
func (e *timeoutError) Temporary() bool { return true }
