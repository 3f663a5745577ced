package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/dze-labs/stealthy/internal/config"
	"github.com/dze-labs/stealthy/internal/core"
	"github.com/dze-labs/stealthy/internal/rawicmp"
)

func main() {
	var (
		iface       string
		dst         string
		hexKey      string
		pubKeyPath  string
		privKeyPath string
		peerPubPath string
		probeRanges []string
		verbose     bool
	)

	pflag.StringVarP(&iface, "iface", "i", "lo", "interface to bind for RX/TX")
	pflag.StringVarP(&dst, "dst", "d", "", "comma-separated IPv4 destination list (default 127.0.0.1)")
	pflag.StringVarP(&hexKey, "key", "e", "", "32-hex-digit symmetric key (else $HOME/.stealthy/key, else 32x'1')")
	pflag.StringVarP(&pubKeyPath, "pub", "r", "", "our RSA public key, PEM (hybrid mode)")
	pflag.StringVarP(&privKeyPath, "priv", "p", "", "our RSA private key, PEM (hybrid mode)")
	pflag.StringVarP(&peerPubPath, "peer-pub", "q", "", "peer's RSA public key, PEM (hybrid mode)")
	pflag.StringArrayVarP(&probeRanges, "probe", "b", nil, "probe range, may be repeated")
	pflag.BoolVarP(&verbose, "verbose", "v", false, "enable verbose logs")
	pflag.Parse()

	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	destinations, err := config.ParseDestinations(dst)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(2)
	}

	cfg := config.Config{
		Interface:    iface,
		Destinations: destinations,
		HexKey:       hexKey,
		PubKeyPath:   pubKeyPath,
		PrivKeyPath:  privKeyPath,
		PeerPubPath:  peerPubPath,
		ProbeRanges:  probeRanges,
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		pflag.Usage()
		os.Exit(2)
	}

	if err := rawicmp.RequirePrivileges(true); err != nil {
		fmt.Fprintf(os.Stderr, "privileges check failed: %v\n", err)
		os.Exit(1)
	}

	cipher, err := cfg.BuildCipher()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build cipher: %v\n", err)
		os.Exit(1)
	}

	srcIP, err := interfaceIPv4(cfg.Interface)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to resolve source address on %q: %v\n", cfg.Interface, err)
		os.Exit(1)
	}

	transport, err := rawicmp.New(rawicmp.Config{
		Logger:    log,
		Interface: cfg.Interface,
		Source:    srcIP,
		Accept:    cfg.Destinations,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open raw socket: %v\n", err)
		os.Exit(1)
	}
	defer transport.Close()

	app := core.New(core.Config{
		Transport: transport,
		Cipher:    cipher,
		Logger:    log,
	})

	log.Info("stealthy started",
		"iface", cfg.Interface,
		"dst", destinations,
		"key_fingerprint", fmt.Sprintf("%x", app.EncryptionKey()),
		"probes", strings.Join(cfg.ProbeRanges, ","),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go logEvents(log, app)

	if err := app.Run(ctx); err != nil && ctx.Err() == nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// interfaceIPv4 resolves the first configured IPv4 address on the named
// interface, used as RawIcmp's own Source address: the outer echo request's
// SrcIP and the inbound dst-filter both need our own address, never a peer's.
func interfaceIPv4(name string) (net.IP, error) {
	ifi, err := net.InterfaceByName(name)
	if err != nil {
		return nil, fmt.Errorf("looking up interface %q: %w", name, err)
	}
	addrs, err := ifi.Addrs()
	if err != nil {
		return nil, fmt.Errorf("reading addresses on %q: %w", name, err)
	}
	for _, a := range addrs {
		var ip net.IP
		switch v := a.(type) {
		case *net.IPNet:
			ip = v.IP
		case *net.IPAddr:
			ip = v.IP
		}
		if ip4 := ip.To4(); ip4 != nil {
			return ip4, nil
		}
	}
	return nil, fmt.Errorf("no IPv4 address configured on %q", name)
}

func logEvents(log *slog.Logger, app *core.App) {
	for ev := range app.Events() {
		switch ev.Kind {
		case core.EventNew:
			log.Info("message received", "peer", ev.Peer, "bytes", len(ev.Payload))
		case core.EventFileUpload:
			name, data, ok := core.DecodeUpload(ev.Payload)
			if !ok {
				log.Warn("malformed file upload payload", "peer", ev.Peer)
				continue
			}
			path, err := core.SaveUpload(name, data)
			if err != nil {
				log.Error("failed to save upload", "peer", ev.Peer, "err", err)
				continue
			}
			log.Info("file upload saved", "peer", ev.Peer, "path", path)
		case core.EventAck:
			log.Info("ack", "logical_id", ev.LogicalID)
		case core.EventAckProgress:
			log.Debug("ack progress", "logical_id", ev.LogicalID, "done", ev.Done, "total", ev.Total)
		case core.EventError:
			log.Error("stealthy error", "type", ev.Err.Type, "err", ev.Err)
		}
	}
}
