package rawicmp

import (
	"net"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuildDecodeEchoRequest_RoundTrip(t *testing.T) {
	t.Parallel()
	src := net.IPv4(127, 0, 0, 1)
	dst := net.IPv4(127, 0, 0, 2)
	payload := []byte("hello over icmp")

	pkt, err := buildEchoRequest(src, dst, 42, 7, payload)
	require.NoError(t, err)

	echo, ok := decodeEchoRequest(pkt)
	require.True(t, ok)
	require.Equal(t, src.To4(), echo.Src)
	require.Equal(t, dst.To4(), echo.Dst)
	require.EqualValues(t, 42, echo.ID)
	require.EqualValues(t, 7, echo.Seq)
	require.Equal(t, payload, echo.Payload)
}

func TestBuildEchoRequest_RejectsNonIPv4(t *testing.T) {
	t.Parallel()
	_, err := buildEchoRequest(net.IPv6loopback, net.IPv4(1, 2, 3, 4), 1, 1, nil)
	require.Error(t, err)
}

func TestDecodeEchoRequest_RejectsCorruptChecksum(t *testing.T) {
	t.Parallel()
	pkt, err := buildEchoRequest(net.IPv4(127, 0, 0, 1), net.IPv4(127, 0, 0, 2), 1, 1, []byte("payload"))
	require.NoError(t, err)
	// Corrupt a payload byte without touching the checksum field.
	pkt[len(pkt)-1] ^= 0xFF
	_, ok := decodeEchoRequest(pkt)
	require.False(t, ok)
}

func TestDecodeEchoRequest_RejectsEchoReply(t *testing.T) {
	t.Parallel()
	src := net.IPv4(127, 0, 0, 1)
	dst := net.IPv4(127, 0, 0, 2)
	pkt, err := buildEchoRequest(src, dst, 1, 1, []byte("x"))
	require.NoError(t, err)

	// Flip the ICMP type byte (first byte after the 20-byte, no-options IPv4
	// header) from EchoRequest(8) to EchoReply(0); the stale checksum makes
	// this indistinguishable from any other corrupt packet to decodeEchoRequest.
	ihl := int(pkt[0]&0x0F) * 4
	pkt[ihl] = 0

	_, ok := decodeEchoRequest(pkt)
	require.False(t, ok)
}

func TestDecodeEchoRequest_RejectsTruncated(t *testing.T) {
	t.Parallel()
	_, ok := decodeEchoRequest([]byte{1, 2, 3})
	require.False(t, ok)
}
