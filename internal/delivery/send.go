package delivery

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"net"
	"time"

	stealthyerr "github.com/dze-labs/stealthy/internal/errors"
	"github.com/dze-labs/stealthy/internal/wire"
)

// Send splits payload into fragments, records each in the outstanding
// table, and hands them to the transport. When background is true, Send
// returns immediately and the work continues on its own goroutine; the
// caller observes completion via the Ack callback instead.
func (d *Delivery) Send(ctx context.Context, dst net.IP, payload []byte, logicalID uint64, frameType wire.FrameType, background bool) error {
	if len(payload) > maxMessageSize {
		return stealthyerr.NewMessageTooBig("delivery.Send", len(payload))
	}
	if background {
		go func() {
			if err := d.sendSync(ctx, dst, payload, logicalID, frameType); err != nil {
				if se, ok := err.(*stealthyerr.StealthyError); ok {
					d.reportError(se)
				}
			}
		}()
		return nil
	}
	return d.sendSync(ctx, dst, payload, logicalID, frameType)
}

func (d *Delivery) sendSync(ctx context.Context, dst net.IP, payload []byte, logicalID uint64, frameType wire.FrameType) error {
	fragments := wire.Split(logicalID, payload)

	pending := &pendingSend{total: len(fragments), remaining: make(map[uint64]struct{}, len(fragments))}
	fragIDs := make([]uint64, len(fragments))
	for i := range fragments {
		fragIDs[i] = randomFragmentID()
		pending.remaining[fragIDs[i]] = struct{}{}
	}

	d.pendingSendMu.Lock()
	d.pendingSend[logicalID] = pending
	d.pendingSendMu.Unlock()

	for i, frag := range fragments {
		if err := d.waitForCapacity(ctx); err != nil {
			return err
		}
		fid := fragIDs[i]
		outer := &wire.Frame{ID: fid, Type: frameType, Body: frag.Encode()}
		d.recordOutstanding(fid, logicalID, dst, outer)

		if err := d.transport.Send(ctx, dst, outer.Encode()); err != nil {
			d.reportError(stealthyerr.NewSendFailed("delivery.Send", err))
			// Left in the outstanding table; the retry ticker will retransmit it.
		}
	}
	return nil
}

func (d *Delivery) waitForCapacity(ctx context.Context) error {
	for {
		d.outstandingMu.Lock()
		n := len(d.outstanding)
		d.outstandingMu.Unlock()
		if n < maxOutstanding {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(50 * time.Millisecond):
		}
	}
}

func (d *Delivery) recordOutstanding(fid, logicalID uint64, dst net.IP, frame *wire.Frame) {
	d.outstandingMu.Lock()
	d.outstanding[fid] = &pendingSlot{logicalID: logicalID, dst: dst, frame: frame, lastSendMillis: nowMillis()}
	d.outstandingMu.Unlock()
	d.metrics.Outstanding.Inc()
}

func randomFragmentID() uint64 {
	var b [8]byte
	_, _ = rand.Read(b[:])
	return binary.LittleEndian.Uint64(b[:])
}

func (d *Delivery) reportError(err *stealthyerr.StealthyError) {
	if d.log != nil {
		d.log.Error("delivery error", "type", err.Type, "err", err)
	}
	if d.cb.OnError != nil {
		d.cb.OnError(err)
	}
}
