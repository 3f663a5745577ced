package crypto

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func genTestKeypair(t *testing.T) (*rsa.PublicKey, *rsa.PrivateKey) {
	t.Helper()
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return &priv.PublicKey, priv
}

func TestHybrid_RoundTrip(t *testing.T) {
	t.Parallel()
	pub, priv := genTestKeypair(t)
	sender := NewHybrid(pub, nil)
	receiver := NewHybrid(nil, priv)

	for _, plain := range [][]byte{
		[]byte(""),
		[]byte("hello stealthy"),
		make([]byte, 5000),
	} {
		out, err := sender.Encrypt(plain)
		require.NoError(t, err)
		back, err := receiver.Decrypt(out)
		require.NoError(t, err)
		require.Equal(t, plain, back)
	}
}

func TestHybrid_Encrypt_VariesPerCall(t *testing.T) {
	t.Parallel()
	pub, _ := genTestKeypair(t)
	h := NewHybrid(pub, nil)

	a, err := h.Encrypt([]byte("same plaintext"))
	require.NoError(t, err)
	b, err := h.Encrypt([]byte("same plaintext"))
	require.NoError(t, err)
	require.NotEqual(t, a, b)
}

func TestHybrid_Decrypt_RejectsMalformedEnvelope(t *testing.T) {
	t.Parallel()
	_, priv := genTestKeypair(t)
	h := NewHybrid(nil, priv)

	_, err := h.Decrypt([]byte("not-a-valid-envelope"))
	require.Error(t, err)
}

func TestHybrid_Decrypt_RejectsWrongKey(t *testing.T) {
	t.Parallel()
	pub, _ := genTestKeypair(t)
	_, otherPriv := genTestKeypair(t)

	sender := NewHybrid(pub, nil)
	out, err := sender.Encrypt([]byte("secret"))
	require.NoError(t, err)

	wrongReceiver := NewHybrid(nil, otherPriv)
	_, err = wrongReceiver.Decrypt(out)
	require.Error(t, err)
}

func TestHybrid_Fingerprint_MatchesForSameKey(t *testing.T) {
	t.Parallel()
	pub, _ := genTestKeypair(t)
	a := NewHybrid(pub, nil)
	b := NewHybrid(pub, nil)
	require.Equal(t, a.Fingerprint(), b.Fingerprint())
}

func TestHybrid_Fingerprint_DiffersForDifferentKeys(t *testing.T) {
	t.Parallel()
	pubA, _ := genTestKeypair(t)
	pubB, _ := genTestKeypair(t)
	a := NewHybrid(pubA, nil)
	b := NewHybrid(pubB, nil)
	require.NotEqual(t, a.Fingerprint(), b.Fingerprint())
}

func TestLoadKeypairPEM_RoundTrip(t *testing.T) {
	t.Parallel()
	pub, priv := genTestKeypair(t)
	dir := t.TempDir()

	pubDER, err := x509.MarshalPKIXPublicKey(pub)
	require.NoError(t, err)
	pubPath := filepath.Join(dir, "pub.pem")
	require.NoError(t, writePEM(pubPath, "PUBLIC KEY", pubDER))

	privPath := filepath.Join(dir, "priv.pem")
	require.NoError(t, writePEM(privPath, "RSA PRIVATE KEY", x509.MarshalPKCS1PrivateKey(priv)))

	loadedPub, loadedPriv, err := LoadKeypairPEM(pubPath, privPath)
	require.NoError(t, err)
	require.Equal(t, pub, loadedPub)
	require.Equal(t, priv, loadedPriv)
}

func TestLoadKeypairPEM_EmptyPathsYieldNil(t *testing.T) {
	t.Parallel()
	pub, priv, err := LoadKeypairPEM("", "")
	require.NoError(t, err)
	require.Nil(t, pub)
	require.Nil(t, priv)
}

func writePEM(path, blockType string, der []byte) error {
	encoded := pem.EncodeToMemory(&pem.Block{Type: blockType, Bytes: der})
	return os.WriteFile(path, encoded, 0o600)
}
