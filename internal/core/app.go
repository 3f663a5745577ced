// Package core composes RawIcmp, PacketCodec, DeliveryLayer, and
// EncryptionLayer into the single App the outer application (cmd/stealthy)
// talks to. It is plain wiring, not a new protocol layer.
package core

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	stealthycrypto "github.com/dze-labs/stealthy/internal/crypto"
	"github.com/dze-labs/stealthy/internal/delivery"
	stealthyerr "github.com/dze-labs/stealthy/internal/errors"
	"github.com/dze-labs/stealthy/internal/rawicmp"
	"github.com/dze-labs/stealthy/internal/wire"
)

// Message is the logical send/receive unit exposed to the application.
type Message = delivery.Message

// Config wires an App to a concrete transport and cipher.
type Config struct {
	Transport  rawicmp.Transport
	Cipher     stealthycrypto.Cipher
	Logger     *slog.Logger
	Registerer prometheus.Registerer // optional; metrics skip registration if nil
	EventQueue int                   // optional; defaults to 64
}

// App owns one instance of each layer and the channel the application reads
// events from.
type App struct {
	delivery *delivery.Delivery
	cipher   stealthycrypto.Cipher
	log      *slog.Logger
	events   chan Event
}

// New wires a fresh App. It does not start the capture loop; call Run.
func New(cfg Config) *App {
	queue := cfg.EventQueue
	if queue <= 0 {
		queue = 64
	}
	a := &App{cipher: cfg.Cipher, log: cfg.Logger, events: make(chan Event, queue)}

	a.delivery = delivery.New(delivery.Config{
		Transport: cfg.Transport,
		Logger:    cfg.Logger,
		Metrics:   delivery.NewMetrics(cfg.Registerer),
		Callbacks: delivery.Callbacks{
			OnMessage:     a.onMessage,
			OnAck:         a.onAck,
			OnAckProgress: a.onAckProgress,
			OnError:       a.onError,
		},
	})
	return a
}

// Run blocks running the capture loop and retry ticker until ctx is
// cancelled. On an unexpected transport failure it emits a fatal
// ReceiveError and closes the events channel, the Go equivalent of the
// capture thread terminating the process.
func (a *App) Run(ctx context.Context) error {
	err := a.delivery.Run(ctx)
	if err != nil && ctx.Err() == nil {
		se := stealthyerr.NewReceiveError("core.Run", err)
		a.emit(Event{Kind: EventError, Err: se})
		close(a.events)
		return se
	}
	close(a.events)
	return nil
}

// Events returns the channel of upward events.
func (a *App) Events() <-chan Event {
	return a.events
}

// EncryptionKey returns the stable 20-byte SHA-1 fingerprint of the active
// cipher's key, as shown to the user.
func (a *App) EncryptionKey() []byte {
	fp := a.cipher.Fingerprint()
	return fp[:]
}

// Send encrypts msg.Payload and hands it to the delivery layer split under
// logicalID. When background is true, Send returns immediately and
// completion is observed via an Ack event.
func (a *App) Send(ctx context.Context, msg Message, logicalID uint64, background bool) error {
	ciphertext, err := a.cipher.Encrypt(msg.Payload)
	if err != nil {
		se, ok := err.(*stealthyerr.StealthyError)
		if !ok {
			se = stealthyerr.NewEncryptionError("core.Send", err)
		}
		a.emit(Event{Kind: EventError, Err: se})
		return se
	}
	return a.delivery.Send(ctx, msg.Peer, ciphertext, logicalID, msg.Type, background)
}

// NewLogicalID generates a fresh random logical message id for Send.
func NewLogicalID() uint64 {
	var b [8]byte
	_, _ = rand.Read(b[:])
	return binary.LittleEndian.Uint64(b[:])
}

func (a *App) onMessage(m delivery.Message) {
	plain, err := a.cipher.Decrypt(m.Payload)
	if err != nil {
		// Covert-channel policy: inbound decrypt failures are dropped
		// silently, never surfaced.
		return
	}
	kind := EventNew
	if m.Type == wire.TypeFileUpload {
		kind = EventFileUpload
	}
	a.emit(Event{Kind: kind, Peer: m.Peer, Payload: plain})
}

func (a *App) onAck(logicalID uint64) {
	a.emit(Event{Kind: EventAck, LogicalID: logicalID})
}

func (a *App) onAckProgress(logicalID uint64, done, total int) {
	a.emit(Event{Kind: EventAckProgress, LogicalID: logicalID, Done: done, Total: total})
}

func (a *App) onError(err *stealthyerr.StealthyError) {
	if a.log != nil {
		a.log.Error("stealthy: delivery error", "type", err.Type, "err", err)
	}
	a.emit(Event{Kind: EventError, Err: err})
}

func (a *App) emit(ev Event) {
	select {
	case a.events <- ev:
	default:
		if a.log != nil {
			a.log.Warn("stealthy: event dropped, receive channel full", "kind", ev.Kind)
		}
	}
}

