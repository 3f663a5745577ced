package crypto

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"io"
	"os"
	"strings"

	stealthyerr "github.com/dze-labs/stealthy/internal/errors"
)

// Hybrid wraps a fresh Blowfish key+IV for every message in an RSA-OAEP
// envelope, so the symmetric material never repeats across messages and
// only the holder of the matching private key can recover it.
type Hybrid struct {
	pub  *rsa.PublicKey
	priv *rsa.PrivateKey
}

// NewHybrid builds a Hybrid cipher. pub is required for Encrypt, priv for
// Decrypt; either may be nil if the instance only needs one direction.
func NewHybrid(pub *rsa.PublicKey, priv *rsa.PrivateKey) *Hybrid {
	return &Hybrid{pub: pub, priv: priv}
}

// Encrypt generates a random Blowfish key and IV, encrypts plain under them,
// wraps "hex(iv):hex(key)" in an RSA-OAEP envelope, and returns
// "hex(ciphertext):hex(rsaBlob)".
func (h *Hybrid) Encrypt(plain []byte) ([]byte, error) {
	if h.pub == nil {
		return nil, stealthyerr.NewEncryptionError("hybrid.Encrypt", fmt.Errorf("no public key configured"))
	}
	var key [KeyLength]byte
	if _, err := io.ReadFull(rand.Reader, key[:]); err != nil {
		return nil, stealthyerr.NewEncryptionError("hybrid.Encrypt", err)
	}
	iv := make([]byte, IVLength)
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return nil, stealthyerr.NewEncryptionError("hybrid.Encrypt", err)
	}

	sym := NewSymmetric(key)
	ciphertext, err := sym.encryptWithIV(plain, iv)
	if err != nil {
		return nil, err
	}
	ciphertext = ciphertext[IVLength:] // the envelope carries its own copy of the IV

	envelope := []byte(ToHex(iv) + ":" + ToHex(key[:]))
	rsaBlob, err := rsa.EncryptOAEP(sha1.New(), rand.Reader, h.pub, envelope, nil)
	if err != nil {
		return nil, stealthyerr.NewEncryptionError("hybrid.Encrypt", err)
	}

	out := ToHex(ciphertext) + ":" + ToHex(rsaBlob)
	return []byte(out), nil
}

// Decrypt unwraps the RSA-OAEP envelope to recover the Blowfish key and IV,
// then decrypts the remaining ciphertext.
func (h *Hybrid) Decrypt(in []byte) ([]byte, error) {
	if h.priv == nil {
		return nil, stealthyerr.NewDecryptionError("hybrid.Decrypt", "no private key configured")
	}
	parts := strings.SplitN(string(in), ":", 2)
	if len(parts) != 2 {
		return nil, stealthyerr.NewDecryptionError("hybrid.Decrypt", "malformed envelope: missing separator")
	}
	ciphertext, err := FromHex(parts[0])
	if err != nil {
		return nil, stealthyerr.NewDecryptionError("hybrid.Decrypt", "malformed ciphertext hex")
	}
	rsaBlob, err := FromHex(parts[1])
	if err != nil {
		return nil, stealthyerr.NewDecryptionError("hybrid.Decrypt", "malformed RSA blob hex")
	}

	envelope, err := rsa.DecryptOAEP(sha1.New(), rand.Reader, h.priv, rsaBlob, nil)
	if err != nil {
		return nil, stealthyerr.NewDecryptionError("hybrid.Decrypt", "RSA-OAEP unwrap failed")
	}
	ivHex, keyHex, ok := strings.Cut(string(envelope), ":")
	if !ok {
		return nil, stealthyerr.NewDecryptionError("hybrid.Decrypt", "malformed envelope payload")
	}
	iv, err := FromHex(ivHex)
	if err != nil || len(iv) != IVLength {
		return nil, stealthyerr.NewDecryptionError("hybrid.Decrypt", "malformed IV in envelope")
	}
	keyBytes, err := FromHex(keyHex)
	if err != nil || len(keyBytes) != KeyLength {
		return nil, stealthyerr.NewDecryptionError("hybrid.Decrypt", "malformed key in envelope")
	}
	var key [KeyLength]byte
	copy(key[:], keyBytes)

	sym := NewSymmetric(key)
	return sym.Decrypt(append(iv, ciphertext...))
}

// Fingerprint returns the SHA-1 of the DER-encoded public key.
func (h *Hybrid) Fingerprint() [20]byte {
	if h.pub == nil {
		return [20]byte{}
	}
	der, err := x509.MarshalPKIXPublicKey(h.pub)
	if err != nil {
		return [20]byte{}
	}
	return sha1.Sum(der)
}

// LoadKeypairPEM reads a PKIX public key and a PKCS#1 private key from the
// given PEM files. Either path may be empty, leaving that half of the
// keypair nil.
func LoadKeypairPEM(pubPath, privPath string) (*rsa.PublicKey, *rsa.PrivateKey, error) {
	var pub *rsa.PublicKey
	var priv *rsa.PrivateKey

	if pubPath != "" {
		raw, err := os.ReadFile(pubPath)
		if err != nil {
			return nil, nil, fmt.Errorf("reading public key %q: %w", pubPath, err)
		}
		block, _ := pem.Decode(raw)
		if block == nil {
			return nil, nil, fmt.Errorf("no PEM block found in %q", pubPath)
		}
		key, err := x509.ParsePKIXPublicKey(block.Bytes)
		if err != nil {
			return nil, nil, fmt.Errorf("parsing public key %q: %w", pubPath, err)
		}
		rsaPub, ok := key.(*rsa.PublicKey)
		if !ok {
			return nil, nil, fmt.Errorf("%q does not contain an RSA public key", pubPath)
		}
		pub = rsaPub
	}

	if privPath != "" {
		raw, err := os.ReadFile(privPath)
		if err != nil {
			return nil, nil, fmt.Errorf("reading private key %q: %w", privPath, err)
		}
		block, _ := pem.Decode(raw)
		if block == nil {
			return nil, nil, fmt.Errorf("no PEM block found in %q", privPath)
		}
		rsaPriv, err := x509.ParsePKCS1PrivateKey(block.Bytes)
		if err != nil {
			return nil, nil, fmt.Errorf("parsing private key %q: %w", privPath, err)
		}
		priv = rsaPriv
	}

	return pub, priv, nil
}
