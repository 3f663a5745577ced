//go:build linux

package rawicmp

import (
	"context"
	"encoding/binary"
	"fmt"
	"log/slog"
	"net"
	"os"
	"sync"
	"sync/atomic"

	"golang.org/x/sys/unix"
)

// Config configures a rawTransport.
type Config struct {
	Logger    *slog.Logger // optional
	Interface string       // required: interface name to bind send/receive to
	Source    net.IP       // required: IPv4 address used as the echo-request source
	Accept    []net.IP     // optional: source accept-list; empty accepts all
}

func (cfg *Config) Validate() error {
	if cfg.Interface == "" {
		return fmt.Errorf("interface is required")
	}
	if cfg.Source == nil || cfg.Source.To4() == nil {
		return fmt.Errorf("source must be a valid IPv4 address")
	}
	return nil
}

// rawTransport owns a single IP_HDRINCL raw ICMP socket bound to one
// interface, used for both sending hand-built echo requests and capturing
// inbound ones. This collapses the original design's separate "capture
// handle" and "send socket" into the one fd uping already shows is enough
// for both directions.
type rawTransport struct {
	log    *slog.Logger
	cfg    Config
	src    net.IP
	fd     int
	efd    int
	iface  *net.Interface
	accept acceptList
	pid    uint16

	mu     sync.Mutex
	closed bool
}

var echoID uint32

func nextEchoID() uint16 { return uint16(atomic.AddUint32(&echoID, 1)) }

// New opens and configures the raw socket. Requires CAP_NET_RAW (and
// CAP_NET_ADMIN, since SO_BINDTODEVICE is used) or root.
func New(cfg Config) (Transport, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	ifi, err := net.InterfaceByName(cfg.Interface)
	if err != nil {
		return nil, fmt.Errorf("lookup interface %q: %w", cfg.Interface, err)
	}

	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_RAW, unix.IPPROTO_ICMP)
	if err != nil {
		return nil, fmt.Errorf("socket: %w", err)
	}
	ok := false
	defer func() {
		if !ok {
			_ = unix.Close(fd)
		}
	}()

	if err := unix.SetsockoptString(fd, unix.SOL_SOCKET, unix.SO_BINDTODEVICE, ifi.Name); err != nil {
		return nil, fmt.Errorf("bind-to-device %q: %w", ifi.Name, err)
	}
	if err := unix.SetsockoptInt(fd, unix.IPPROTO_IP, unix.IP_HDRINCL, 1); err != nil {
		return nil, fmt.Errorf("setsockopt IP_HDRINCL: %w", err)
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		return nil, fmt.Errorf("set nonblock: %w", err)
	}

	efd, err := unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("eventfd: %w", err)
	}

	ok = true
	return &rawTransport{
		log:    cfg.Logger,
		cfg:    cfg,
		src:    cfg.Source.To4(),
		fd:     fd,
		efd:    efd,
		iface:  ifi,
		accept: newAcceptList(cfg.Accept),
		pid:    uint16(os.Getpid() & 0xffff),
	}, nil
}

// Send builds an IPv4+ICMPv4 echo request and transmits it over the raw
// socket. The kernel routes nothing for us (IP_HDRINCL): egress is pinned
// to the bound interface only.
func (t *rawTransport) Send(ctx context.Context, dst net.IP, payload []byte) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	pkt, err := buildEchoRequest(t.src, dst, t.pid, nextEchoID(), payload)
	if err != nil {
		return err
	}

	dst4 := dst.To4()
	if dst4 == nil {
		return fmt.Errorf("rawicmp: dst must be IPv4")
	}
	sa := &unix.SockaddrInet4{Addr: [4]byte{dst4[0], dst4[1], dst4[2], dst4[3]}}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return fmt.Errorf("rawicmp: transport closed")
	}
	if err := unix.Sendto(t.fd, pkt, 0, sa); err != nil {
		return fmt.Errorf("sendto: %w", err)
	}
	if t.log != nil {
		t.log.Debug("rawicmp: sent", "dst", dst.String(), "bytes", len(payload))
	}
	return nil
}

// Run polls the socket until ctx is cancelled, decoding and dispatching
// every accepted inbound echo request to handle.
func (t *rawTransport) Run(ctx context.Context, handle func(payload []byte, src net.IP)) error {
	go func() {
		<-ctx.Done()
		var one [8]byte
		binary.LittleEndian.PutUint64(one[:], 1)
		_, _ = unix.Write(t.efd, one[:])
	}()

	buf := make([]byte, 65535)
	pfds := []unix.PollFd{
		{Fd: int32(t.fd), Events: unix.POLLIN},
		{Fd: int32(t.efd), Events: unix.POLLIN},
	}

	for {
		_, err := unix.Poll(pfds, -1)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return fmt.Errorf("poll: %w", err)
		}
		if pfds[1].Revents&unix.POLLIN != 0 {
			return nil
		}
		if pfds[0].Revents&(unix.POLLIN|unix.POLLERR|unix.POLLHUP) == 0 {
			continue
		}

		n, _, err := unix.Recvfrom(t.fd, buf, 0)
		if err != nil {
			if err == unix.EAGAIN || err == unix.EWOULDBLOCK || err == unix.EINTR {
				continue
			}
			if ctx.Err() != nil {
				return nil
			}
			if t.log != nil {
				t.log.Debug("rawicmp: recvfrom error", "err", err)
			}
			continue
		}

		echo, ok := decodeEchoRequest(buf[:n])
		if !ok {
			continue
		}
		if !echo.Dst.Equal(t.src) {
			continue
		}
		if !t.accept.allows(echo.Src) {
			continue
		}
		handle(echo.Payload, echo.Src)
	}
}

func (t *rawTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	_ = unix.Close(t.efd)
	return unix.Close(t.fd)
}
