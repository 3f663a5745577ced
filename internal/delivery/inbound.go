package delivery

import (
	"context"
	"net"

	stealthyerr "github.com/dze-labs/stealthy/internal/errors"
	"github.com/dze-labs/stealthy/internal/wire"
)

// handleInbound is wired as the rawicmp.Transport.Run callback: every
// accepted ICMP echo-request payload is decoded as a PacketCodec frame and
// dispatched. Malformed frames are dropped silently, per the covert-channel
// error policy.
func (d *Delivery) handleInbound(payload []byte, src net.IP) {
	frame, err := wire.DecodeFrame(payload)
	if err != nil {
		return
	}

	switch {
	case frame.IsAck():
		d.handleAck(frame.ID)
	case frame.IsNewMessage(), frame.IsFileUpload():
		d.handleFragment(frame, src)
	case frame.IsHello():
		// Informational only; nothing upstream consumes hello frames today.
	}
}

func (d *Delivery) handleFragment(frame *wire.Frame, src net.IP) {
	frag, err := wire.DecodeFragment(frame.Body)
	if err != nil {
		return
	}

	d.outstandingMu.Lock()
	_, isOwn := d.outstanding[frame.ID]
	d.outstandingMu.Unlock()
	if isOwn {
		// Receiving our own transmitted fragment back, e.g. over lo.
		return
	}

	if frag.Seq == 0 || frag.Seq > frag.Total {
		return
	}

	buf := d.getOrCreateReassembly(frag.LogicalID, frag.Total, frame.Type, src)

	buf.mu.Lock()
	if frag.Seq > buf.total {
		// Out of range for the total this buffer was opened with.
		buf.mu.Unlock()
		return
	}
	_, dup := buf.frags[frag.Seq]
	if !dup {
		buf.frags[frag.Seq] = frag
	}
	complete := uint32(len(buf.frags)) == buf.total
	buf.mu.Unlock()

	d.sendAck(frame.ID, src)

	if complete {
		d.completeReassembly(frag.LogicalID)
	}
}

func (d *Delivery) getOrCreateReassembly(logicalID uint64, total uint32, frameType wire.FrameType, src net.IP) *reassemblyBuffer {
	d.reassemblyMu.Lock()
	defer d.reassemblyMu.Unlock()

	buf, ok := d.reassembly[logicalID]
	if !ok {
		buf = &reassemblyBuffer{
			total:     total,
			frags:     make(map[uint32]*wire.Fragment, total),
			frameType: frameType,
			src:       src,
		}
		d.reassembly[logicalID] = buf
		d.metrics.Reassembling.Inc()
	}
	return buf
}

func (d *Delivery) completeReassembly(logicalID uint64) {
	d.reassemblyMu.Lock()
	buf, ok := d.reassembly[logicalID]
	if ok {
		delete(d.reassembly, logicalID)
	}
	d.reassemblyMu.Unlock()
	if !ok {
		return
	}
	d.metrics.Reassembling.Dec()

	buf.mu.Lock()
	payload := wire.Reassemble(buf.frags, buf.total)
	msg := Message{Peer: buf.src, Payload: payload, Type: buf.frameType}
	buf.mu.Unlock()

	d.metrics.MessagesIn.Inc()
	if d.cb.OnMessage != nil {
		d.cb.OnMessage(msg)
	}
}

// sendAck fires a bare Ack frame back at src for the given fragment id.
// Fire-and-forget: send failures are reported but never retried.
func (d *Delivery) sendAck(fragmentID uint64, dst net.IP) {
	ack := wire.NewAck(fragmentID)
	if err := d.transport.Send(context.Background(), dst, ack.Encode()); err != nil {
		d.reportError(stealthyerr.NewSendFailed("delivery.sendAck", err))
	}
}

func (d *Delivery) handleAck(fragmentID uint64) {
	d.outstandingMu.Lock()
	slot, ok := d.outstanding[fragmentID]
	if ok {
		delete(d.outstanding, fragmentID)
	}
	d.outstandingMu.Unlock()
	if !ok {
		// Unknown ack ids are silently ignored.
		return
	}
	d.metrics.Outstanding.Dec()
	d.metrics.AcksReceived.Inc()

	logicalID := slot.logicalID

	d.pendingSendMu.Lock()
	pending, ok := d.pendingSend[logicalID]
	if !ok {
		d.pendingSendMu.Unlock()
		return
	}
	delete(pending.remaining, fragmentID)
	pending.acked++
	done := len(pending.remaining) == 0
	acked, total := pending.acked, pending.total
	emitProgress := d.shouldEmitProgress(pending)
	if done {
		delete(d.pendingSend, logicalID)
	}
	d.pendingSendMu.Unlock()

	if emitProgress && d.cb.OnAckProgress != nil {
		d.cb.OnAckProgress(logicalID, acked, total)
	}
	if done && d.cb.OnAck != nil {
		d.cb.OnAck(logicalID)
	}
}

// shouldEmitProgress rate-limits AckProgress events to roughly one per 20ms
// per logical message. Must be called with pendingSendMu held.
func (d *Delivery) shouldEmitProgress(p *pendingSend) bool {
	now := nowMillis()
	if now-p.lastProgressMillis < progressRateLimitMillis {
		return false
	}
	p.lastProgressMillis = now
	return true
}
