package delivery

import (
	"net"

	"github.com/dze-labs/stealthy/internal/wire"
)

// Message is one logical send or receive: a complete, reassembled payload
// addressed to or from a single peer.
type Message struct {
	Peer    net.IP
	Payload []byte
	Type    wire.FrameType // wire.TypeNewMessage or wire.TypeFileUpload
}
