package rawicmp

import (
	"encoding/binary"
	"fmt"
	"net"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

// buildEchoRequest serializes an IPv4 + ICMPv4 echo-request carrying
// payload, addressed src -> dst, with the given identifier and sequence.
func buildEchoRequest(src, dst net.IP, id, seq uint16, payload []byte) ([]byte, error) {
	src4, dst4 := src.To4(), dst.To4()
	if src4 == nil || dst4 == nil {
		return nil, fmt.Errorf("rawicmp: src and dst must be IPv4")
	}

	ip := &layers.IPv4{
		Version:  4,
		IHL:      5,
		TTL:      64,
		Protocol: layers.IPProtocolICMPv4,
		SrcIP:    src4,
		DstIP:    dst4,
	}
	icmp := &layers.ICMPv4{
		TypeCode: layers.CreateICMPv4TypeCode(layers.ICMPv4TypeEchoRequest, 0),
		Id:       id,
		Seq:      seq,
	}

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	if err := gopacket.SerializeLayers(buf, opts, ip, icmp, gopacket.Payload(payload)); err != nil {
		return nil, fmt.Errorf("rawicmp: serialize echo request: %w", err)
	}
	return buf.Bytes(), nil
}

// inboundEcho is a successfully decoded and validated ICMPv4 echo request.
type inboundEcho struct {
	Src     net.IP
	Dst     net.IP
	ID      uint16
	Seq     uint16
	Payload []byte
}

// decodeEchoRequest parses raw as IPv4, validates it carries an ICMPv4 echo
// request with a correct checksum, and returns the decoded fields. Anything
// that fails any check returns ok=false — callers drop silently rather than
// surface a parse error, matching the covert-channel error policy.
func decodeEchoRequest(raw []byte) (inboundEcho, bool) {
	packet := gopacket.NewPacket(raw, layers.LayerTypeIPv4, gopacket.NoCopy)
	ipLayer := packet.Layer(layers.LayerTypeIPv4)
	if ipLayer == nil {
		return inboundEcho{}, false
	}
	ip, ok := ipLayer.(*layers.IPv4)
	if !ok {
		return inboundEcho{}, false
	}

	icmpLayer := packet.Layer(layers.LayerTypeICMPv4)
	if icmpLayer == nil {
		return inboundEcho{}, false
	}
	icmp, ok := icmpLayer.(*layers.ICMPv4)
	if !ok {
		return inboundEcho{}, false
	}
	if icmp.TypeCode.Type() != layers.ICMPv4TypeEchoRequest {
		return inboundEcho{}, false
	}
	if !verifyICMPChecksum(icmp) {
		return inboundEcho{}, false
	}

	return inboundEcho{
		Src:     ip.SrcIP,
		Dst:     ip.DstIP,
		ID:      icmp.Id,
		Seq:     icmp.Seq,
		Payload: icmp.Payload,
	}, true
}

// verifyICMPChecksum recomputes the Internet checksum over the ICMP
// header + payload that gopacket decoded and compares it to the one
// observed on the wire.
func verifyICMPChecksum(icmp *layers.ICMPv4) bool {
	raw := make([]byte, 0, len(icmp.Contents)+len(icmp.Payload))
	raw = append(raw, icmp.Contents...)
	raw = append(raw, icmp.Payload...)
	// Zero the checksum field (bytes 2:4) before recomputing, as it was
	// zero when the sender originally computed it.
	if len(raw) < 4 {
		return false
	}
	raw[2], raw[3] = 0, 0
	return icmpChecksum(raw) == icmp.Checksum
}

func icmpChecksum(b []byte) uint16 {
	var s uint32
	for i := 0; i+1 < len(b); i += 2 {
		s += uint32(binary.BigEndian.Uint16(b[i:]))
	}
	if len(b)%2 == 1 {
		s += uint32(b[len(b)-1]) << 8
	}
	for s>>16 != 0 {
		s = (s & 0xffff) + (s >> 16)
	}
	return ^uint16(s)
}
