package delivery

import (
	"context"
	"net"
	"sync"
)

// fakeTransport is an in-memory rawicmp.Transport double: Send on one
// instance can be wired directly to Run's handler on another (or the same)
// instance, letting tests exercise Delivery without a real raw socket.
type fakeTransport struct {
	mu      sync.Mutex
	handler func(payload []byte, src net.IP)
	self    net.IP
	peers   map[string]*fakeTransport // dotted-quad -> transport listening at that address

	sent []sentPacket
}

type sentPacket struct {
	dst     net.IP
	payload []byte
}

func newFakeTransport(self net.IP, peers map[string]*fakeTransport) *fakeTransport {
	return &fakeTransport{self: self, peers: peers}
}

func (f *fakeTransport) Send(_ context.Context, dst net.IP, payload []byte) error {
	f.mu.Lock()
	f.sent = append(f.sent, sentPacket{dst: dst, payload: append([]byte(nil), payload...)})
	f.mu.Unlock()

	peer, ok := f.peers[dst.String()]
	if !ok {
		return nil // no listener at that address; packet vanishes, as on a real network
	}
	peer.mu.Lock()
	h := peer.handler
	peer.mu.Unlock()
	if h != nil {
		h(payload, f.self)
	}
	return nil
}

func (f *fakeTransport) Run(ctx context.Context, handle func(payload []byte, src net.IP)) error {
	f.mu.Lock()
	f.handler = handle
	f.mu.Unlock()
	<-ctx.Done()
	return nil
}

func (f *fakeTransport) Close() error { return nil }

func (f *fakeTransport) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}
