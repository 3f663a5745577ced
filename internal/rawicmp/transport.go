// Package rawicmp is the RawIcmp layer: a raw ICMPv4 socket that carries
// every Stealthy wire frame inside echo-request payloads, in both
// directions. It never answers with an echo-reply — acks are themselves
// echo-requests built by the layers above.
package rawicmp

import (
	"context"
	"net"
)

// Transport sends and receives raw ICMP echo-request payloads on a single
// bound interface. One concrete implementation plays both the "capture
// handle" and "send socket" roles of the original design over one fd.
type Transport interface {
	// Send transmits payload as the data section of an ICMPv4 echo request
	// addressed to dst.
	Send(ctx context.Context, dst net.IP, payload []byte) error

	// Run blocks, invoking handle for every accepted inbound echo-request
	// payload, until ctx is done or an unrecoverable error occurs.
	Run(ctx context.Context, handle func(payload []byte, src net.IP)) error

	Close() error
}
