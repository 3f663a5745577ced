// Package delivery implements the DeliveryLayer: fragmentation, per-fragment
// acknowledgement and retransmission, and order-independent reassembly of
// logical messages carried over RawIcmp.
package delivery

import (
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/dze-labs/stealthy/internal/rawicmp"
	"github.com/dze-labs/stealthy/internal/wire"
)

const (
	maxMessageSize          = 1 << 30 // 1 GiB
	maxOutstanding          = 1000
	retryTimeoutMillis      = 15_000
	progressRateLimitMillis = 20
)

// pendingSlot is one transmitted, not-yet-acknowledged fragment.
type pendingSlot struct {
	logicalID      uint64
	dst            net.IP
	frame          *wire.Frame
	lastSendMillis int64
}

// pendingSend tracks the per-fragment ack set for one in-flight logical
// send.
type pendingSend struct {
	total              int
	acked              int
	remaining          map[uint64]struct{}
	lastProgressMillis int64
}

// reassemblyBuffer accumulates inbound fragments for one logical id until
// every seq in [1,total] has arrived.
type reassemblyBuffer struct {
	mu        sync.Mutex
	total     uint32
	frags     map[uint32]*wire.Fragment
	frameType wire.FrameType
	src       net.IP
}

// Config wires a Delivery instance to its transport and upward callbacks.
type Config struct {
	Transport rawicmp.Transport
	Callbacks Callbacks
	Logger    *slog.Logger
	Metrics   *Metrics // optional; NewMetrics(nil) equivalent if omitted
}

// Delivery owns the outstanding-send table and the reassembly table,
// each behind its own mutex, and never calls upward while holding either.
type Delivery struct {
	transport rawicmp.Transport
	cb        Callbacks
	log       *slog.Logger
	metrics   *Metrics

	outstandingMu sync.Mutex
	outstanding   map[uint64]*pendingSlot // fragment id -> slot

	pendingSendMu sync.Mutex
	pendingSend   map[uint64]*pendingSend // logical id -> ack tracking

	reassemblyMu sync.Mutex
	reassembly   map[uint64]*reassemblyBuffer // logical id -> buffer
}

// New builds a Delivery over the given transport.
func New(cfg Config) *Delivery {
	m := cfg.Metrics
	if m == nil {
		m = NewMetrics(nil)
	}
	return &Delivery{
		transport:   cfg.Transport,
		cb:          cfg.Callbacks,
		log:         cfg.Logger,
		metrics:     m,
		outstanding: make(map[uint64]*pendingSlot),
		pendingSend: make(map[uint64]*pendingSend),
		reassembly:  make(map[uint64]*reassemblyBuffer),
	}
}

func nowMillis() int64 {
	return time.Now().UnixMilli()
}
