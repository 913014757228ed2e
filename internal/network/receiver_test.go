package network

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/rig/internal/monitoring"
)

var tracker = &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 40000}

func TestReceiver_PollReturnsDatagramThenTimeout(t *testing.T) {
	sock := NewMockUDPSocket(Datagrams(tracker, "10,0")...)
	stats := NewPacketStats("test", time.Minute)
	r := NewReceiver(sock, Poll(time.Millisecond), 512, stats)

	pkt, from, ok, err := r.Receive(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "10,0", string(pkt))
	assert.Equal(t, tracker, from)

	pkt, _, ok, err = r.Receive(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, pkt)

	assert.Equal(t, int64(1), stats.Received)
	assert.Equal(t, int64(4), stats.Bytes)
	assert.False(t, sock.ReadDeadline.IsZero(), "poll must bound the read with a deadline")
}

func TestReceiver_BlockingWaitsThroughTimeouts(t *testing.T) {
	sock := NewMockUDPSocket()
	timeouts := 0
	sock.OnDrained = func() {
		timeouts++
		if timeouts == 3 {
			sock.Push(Datagrams(tracker, "late")...)
		}
	}
	r := NewReceiver(sock, Blocking(), 1024, nil)

	pkt, _, ok, err := r.Receive(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "late", string(pkt))
	assert.Equal(t, 4, sock.Reads)
}

func TestReceiver_BlockingHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	sock := NewMockUDPSocket()
	sock.OnDrained = cancel
	r := NewReceiver(sock, Blocking(), 1024, nil)

	_, _, ok, err := r.Receive(ctx)
	assert.False(t, ok)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestReceiver_ReadErrorsAreLogged(t *testing.T) {
	rec, restore := monitoring.Capture()
	defer restore()

	sock := NewMockUDPSocket(
		MockUDPPacket{Err: errors.New("connection reset")},
		MockUDPPacket{Data: []byte("after"), Addr: tracker},
	)

	poll := NewReceiver(sock, Poll(time.Millisecond), 64, nil)
	_, _, ok, err := poll.Receive(context.Background())
	assert.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 1, rec.Count("connection reset"))

	sock = NewMockUDPSocket(
		MockUDPPacket{Err: errors.New("connection reset")},
		MockUDPPacket{Data: []byte("after"), Addr: tracker},
	)
	blocking := NewReceiver(sock, Blocking(), 64, nil)
	pkt, _, ok, err := blocking.Receive(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "after", string(pkt))
	assert.Equal(t, 2, rec.Count("connection reset"))
}

func TestReceiver_ClosedSocketIsAnError(t *testing.T) {
	sock := NewMockUDPSocket()
	require.NoError(t, sock.Close())

	r := NewReceiver(sock, Blocking(), 64, nil)
	_, _, _, err := r.Receive(context.Background())
	assert.ErrorIs(t, err, net.ErrClosed)
}

func TestReceiver_TruncatesToBuffer(t *testing.T) {
	sock := NewMockUDPSocket(Datagrams(tracker, "0123456789")...)
	r := NewReceiver(sock, Poll(time.Millisecond), 4, nil)

	pkt, _, ok, err := r.Receive(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "0123", string(pkt))
}

func TestSuspension(t *testing.T) {
	assert.True(t, Blocking().IsBlocking())
	assert.Equal(t, "blocking", Blocking().String())
	assert.False(t, Poll(5*time.Millisecond).IsBlocking())
	assert.Equal(t, "poll(5ms)", Poll(5*time.Millisecond).String())
	assert.Equal(t, "poll(1ms)", Poll(0).String())
}

func TestReceiverAndSender_Loopback(t *testing.T) {
	factory := RealUDPSocketFactory{}
	recvSock, err := Listen(factory, "127.0.0.1:0")
	require.NoError(t, err)
	defer recvSock.Close()

	stats := NewPacketStats("loopback", time.Minute)
	sender, err := ResolveSender(factory, recvSock.LocalAddr().String(), stats)
	require.NoError(t, err)
	defer sender.Close()

	sender.Send([]byte("1.0,2.0,3.0"))
	assert.Equal(t, int64(1), stats.Sent)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	r := NewReceiver(recvSock, Blocking(), 1024, nil)
	pkt, _, ok, err := r.Receive(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "1.0,2.0,3.0", string(pkt))
}

func TestListen_BadAddress(t *testing.T) {
	_, err := Listen(RealUDPSocketFactory{}, "not-an-address")
	assert.Error(t, err)

	factory := NewMockUDPSocketFactory()
	factory.Error = errors.New("address in use")
	_, err = Listen(factory, "127.0.0.1:1317")
	assert.ErrorContains(t, err, "address in use")
	require.Len(t, factory.ListenCalls, 1)
	assert.Equal(t, 1317, factory.ListenCalls[0].Addr.Port)
}
