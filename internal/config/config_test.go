package config

import (
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseDestinations_DefaultsToLoopback(t *testing.T) {
	t.Parallel()
	ips, err := ParseDestinations("")
	require.NoError(t, err)
	require.Len(t, ips, 1)
	require.True(t, ips[0].Equal(net.IPv4(127, 0, 0, 1)))
}

func TestParseDestinations_CommaSeparatedList(t *testing.T) {
	t.Parallel()
	ips, err := ParseDestinations("10.0.0.1, 10.0.0.2,10.0.0.3")
	require.NoError(t, err)
	require.Len(t, ips, 3)
	require.True(t, ips[1].Equal(net.IPv4(10, 0, 0, 2)))
}

func TestParseDestinations_RejectsInvalidIP(t *testing.T) {
	t.Parallel()
	_, err := ParseDestinations("10.0.0.1,not-an-ip")
	require.Error(t, err)
}

func TestConfig_Validate_RequiresInterfaceAndDestinations(t *testing.T) {
	t.Parallel()
	c := Default()
	c.Interface = ""
	require.Error(t, c.Validate())

	c = Default()
	c.Destinations = nil
	require.Error(t, c.Validate())

	c = Default()
	require.NoError(t, c.Validate())
}

func TestConfig_Validate_HybridRequiresAllThreeKeys(t *testing.T) {
	t.Parallel()
	c := Default()
	c.PubKeyPath = "pub.pem"
	require.Error(t, c.Validate())

	c.PrivKeyPath = "priv.pem"
	c.PeerPubPath = "peer.pem"
	require.NoError(t, c.Validate())
}

func TestResolveHexKey_FlagTakesPrecedence(t *testing.T) {
	t.Parallel()
	key, err := ResolveHexKey("22222222222222222222222222222222")
	require.NoError(t, err)
	require.Equal(t, "22222222222222222222222222222222", key)
}

func TestResolveHexKey_FallsBackToHomeFile(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	require.NoError(t, os.MkdirAll(filepath.Join(home, ".stealthy"), 0o700))
	want := "33333333333333333333333333333333"
	require.NoError(t, os.WriteFile(filepath.Join(home, ".stealthy", "key"), []byte(want+"\n"), 0o600))

	key, err := ResolveHexKey("")
	require.NoError(t, err)
	require.Equal(t, want, key)
}

func TestResolveHexKey_DefaultsToThirtyTwoOnes(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	key, err := ResolveHexKey("")
	require.NoError(t, err)
	require.Len(t, key, 32)
	for _, r := range key {
		require.Equal(t, byte('1'), byte(r))
	}
}

func TestConfig_BuildCipher_SymmetricFromHexKey(t *testing.T) {
	t.Parallel()
	c := Default()
	c.HexKey = "11111111111111111111111111111111"[:32]
	cipher, err := c.BuildCipher()
	require.NoError(t, err)
	require.NotNil(t, cipher)
}

func TestConfig_BuildCipher_RejectsBadHexKeyLength(t *testing.T) {
	t.Parallel()
	c := Default()
	c.HexKey = "ab"
	_, err := c.BuildCipher()
	require.Error(t, err)
}
