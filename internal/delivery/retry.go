package delivery

import (
	"context"
	"net"
	"time"

	stealthyerr "github.com/dze-labs/stealthy/internal/errors"
)

// Run starts the retry ticker and blocks in the transport's capture loop
// until ctx is cancelled, mirroring the capture-thread / retry-ticker-thread
// split of the design.
func (d *Delivery) Run(ctx context.Context) error {
	go d.retryLoop(ctx)
	return d.transport.Run(ctx, d.handleInbound)
}

func (d *Delivery) retryLoop(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.retransmitExpired(ctx)
		}
	}
}

type expiredFragment struct {
	id      uint64
	dst     net.IP
	encoded []byte
}

func (d *Delivery) retransmitExpired(ctx context.Context) {
	cutoff := nowMillis() - retryTimeoutMillis

	var expired []expiredFragment
	d.outstandingMu.Lock()
	for fid, slot := range d.outstanding {
		if slot.lastSendMillis <= cutoff {
			expired = append(expired, expiredFragment{id: fid, dst: slot.dst, encoded: slot.frame.Encode()})
		}
	}
	d.outstandingMu.Unlock()

	now := nowMillis()
	for _, e := range expired {
		if err := d.transport.Send(ctx, e.dst, e.encoded); err != nil {
			d.reportError(stealthyerr.NewSendFailed("delivery.retransmit", err))
			continue
		}
		d.outstandingMu.Lock()
		if slot, ok := d.outstanding[e.id]; ok {
			slot.lastSendMillis = now
		}
		d.outstandingMu.Unlock()
		d.metrics.Retransmits.Inc()
	}
}
