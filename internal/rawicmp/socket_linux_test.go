//go:build linux

package rawicmp

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func requireRawSockets(t *testing.T) {
	t.Helper()
	c, err := net.ListenIP("ip4:icmp", &net.IPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err == nil {
		_ = c.Close()
		return
	}
	t.Skipf("raw ICMP sockets unavailable: %v", err)
}

func TestTransport_Loopback_SendAndReceive(t *testing.T) {
	t.Parallel()
	requireRawSockets(t)

	tr, err := New(Config{Interface: "lo", Source: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	defer tr.Close()

	received := make(chan []byte, 1)
	ctx, cancel := context.WithTimeout(t.Context(), 2*time.Second)
	defer cancel()

	go func() {
		_ = tr.Run(ctx, func(payload []byte, src net.IP) {
			select {
			case received <- payload:
			default:
			}
		})
	}()
	time.Sleep(40 * time.Millisecond)

	want := []byte("stealthy over icmp")
	require.NoError(t, tr.Send(ctx, net.IPv4(127, 0, 0, 1), want))

	select {
	case got := <-received:
		require.Equal(t, want, got)
	case <-time.After(1500 * time.Millisecond):
		t.Fatal("timed out waiting for loopback echo request")
	}
}

func TestTransport_Run_ExitsOnContextCancel(t *testing.T) {
	t.Parallel()
	requireRawSockets(t)

	tr, err := New(Config{Interface: "lo", Source: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	defer tr.Close()

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)
	go func() { done <- tr.Run(ctx, func([]byte, net.IP) {}) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(1 * time.Second):
		t.Fatal("Run did not exit after context cancellation")
	}
}

func TestTransport_AcceptList_DropsUnlistedSource(t *testing.T) {
	t.Parallel()
	requireRawSockets(t)

	tr, err := New(Config{
		Interface: "lo",
		Source:    net.IPv4(127, 0, 0, 1),
		Accept:    []net.IP{net.IPv4(127, 0, 0, 9)}, // never the real sender
	})
	require.NoError(t, err)
	defer tr.Close()

	received := make(chan []byte, 1)
	ctx, cancel := context.WithTimeout(t.Context(), 600*time.Millisecond)
	defer cancel()

	go func() {
		_ = tr.Run(ctx, func(payload []byte, src net.IP) {
			select {
			case received <- payload:
			default:
			}
		})
	}()
	time.Sleep(40 * time.Millisecond)

	require.NoError(t, tr.Send(ctx, net.IPv4(127, 0, 0, 1), []byte("dropped")))

	select {
	case <-received:
		t.Fatal("expected the accept-list to drop this source")
	case <-time.After(300 * time.Millisecond):
	}
}
