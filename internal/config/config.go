// Package config holds the CLI-derived configuration for the stealthy
// binary: interface, peers, encryption mode, and probe ranges. It mirrors
// how uping's cmd/ binaries validate their own flags, collected here so
// cmd/stealthy stays a thin wiring layer.
package config

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"

	stealthycrypto "github.com/dze-labs/stealthy/internal/crypto"
)

// defaultKeyFill is a run of hex '1' digits; its first 32 digits are the
// fallback symmetric key used when neither -e nor $HOME/.stealthy/key is
// available.
const defaultKeyFill = "11111111111111111111111111111111111111111111111111111111111111111111111111111111111111111111111111111111111111111111111111"

// Config is the parsed and validated CLI surface described by the core's
// flag set: interface, peers, encryption material, and probe ranges.
type Config struct {
	Interface    string
	Destinations []net.IP
	HexKey       string
	PubKeyPath   string
	PrivKeyPath  string
	PeerPubPath  string
	ProbeRanges  []string
}

// Default returns the flag defaults before parsing overrides them.
func Default() Config {
	return Config{
		Interface:    "lo",
		Destinations: []net.IP{net.IPv4(127, 0, 0, 1)},
	}
}

// ParseDestinations splits a comma-separated IPv4 list, as accepted by -d.
func ParseDestinations(raw string) ([]net.IP, error) {
	if raw == "" {
		return []net.IP{net.IPv4(127, 0, 0, 1)}, nil
	}
	parts := strings.Split(raw, ",")
	ips := make([]net.IP, 0, len(parts))
	for _, p := range parts {
		ip := net.ParseIP(strings.TrimSpace(p)).To4()
		if ip == nil {
			return nil, fmt.Errorf("invalid IPv4 destination %q", p)
		}
		ips = append(ips, ip)
	}
	return ips, nil
}

// HybridRequested reports whether any of -r/-p/-q was supplied, which
// selects hybrid mode; Validate then rejects the config unless all three
// are present.
func (c Config) HybridRequested() bool {
	return c.PubKeyPath != "" || c.PrivKeyPath != "" || c.PeerPubPath != ""
}

// Validate checks flag combinations that can't be expressed by pflag
// itself: hybrid mode requires exactly all three key paths together.
func (c Config) Validate() error {
	if c.Interface == "" {
		return fmt.Errorf("-i/--iface must not be empty")
	}
	if len(c.Destinations) == 0 {
		return fmt.Errorf("-d/--dst must name at least one destination")
	}
	if c.HybridRequested() {
		if c.PubKeyPath == "" || c.PrivKeyPath == "" || c.PeerPubPath == "" {
			return fmt.Errorf("hybrid mode requires -r, -p, and -q together")
		}
	}
	return nil
}

// ResolveHexKey returns the 32-hex-digit symmetric key to use: -e if set,
// else the trimmed contents of $HOME/.stealthy/key if that file is readable
// and non-empty, else 32 hex '1's. The key is not validated here.
func ResolveHexKey(flagValue string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	if home, err := os.UserHomeDir(); err == nil {
		path := filepath.Join(home, ".stealthy", "key")
		if raw, err := os.ReadFile(path); err == nil {
			key := strings.TrimSpace(string(raw))
			if key != "" {
				return key, nil
			}
		}
	}
	return defaultKeyFill[:32], nil
}

// BuildCipher constructs the symmetric or hybrid Cipher implied by c,
// loading RSA keypairs from disk when hybrid mode is requested.
func (c Config) BuildCipher() (stealthycrypto.Cipher, error) {
	if c.HybridRequested() {
		_, ownPriv, err := stealthycrypto.LoadKeypairPEM("", c.PrivKeyPath)
		if err != nil {
			return nil, fmt.Errorf("loading private key: %w", err)
		}
		peerPub, _, err := stealthycrypto.LoadKeypairPEM(c.PeerPubPath, "")
		if err != nil {
			return nil, fmt.Errorf("loading peer public key: %w", err)
		}
		// -r is our own public key, advertised but unused locally: Encrypt
		// always targets the peer's key loaded from -q.
		return stealthycrypto.NewHybrid(peerPub, ownPriv), nil
	}

	hexKey, err := ResolveHexKey(c.HexKey)
	if err != nil {
		return nil, err
	}
	raw, err := stealthycrypto.FromHex(hexKey)
	if err != nil || len(raw) != stealthycrypto.KeyLength {
		return nil, fmt.Errorf("-e must be %d hex-encoded bytes", stealthycrypto.KeyLength)
	}
	var key [stealthycrypto.KeyLength]byte
	copy(key[:], raw)
	return stealthycrypto.NewSymmetric(key), nil
}
