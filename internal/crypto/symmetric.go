package crypto

import (
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha1"
	"fmt"
	"io"

	"golang.org/x/crypto/blowfish"

	stealthyerr "github.com/dze-labs/stealthy/internal/errors"
)

// KeyLength and IVLength are the Blowfish key and CBC IV sizes Stealthy uses.
const (
	KeyLength = 16
	IVLength  = 8
)

// Symmetric is Blowfish-CBC with a random per-message IV prepended to the
// ciphertext and PKCS#7 padding, per the protocol's symmetric mode.
type Symmetric struct {
	key [KeyLength]byte
}

// NewSymmetric builds a Symmetric cipher from a 16-byte key.
func NewSymmetric(key [KeyLength]byte) *Symmetric {
	return &Symmetric{key: key}
}

// Key returns the configured symmetric key.
func (s *Symmetric) Key() [KeyLength]byte {
	return s.key
}

// Encrypt pads, generates a fresh random IV, CBC-encrypts, and returns
// IV || ciphertext.
func (s *Symmetric) Encrypt(plain []byte) ([]byte, error) {
	iv := make([]byte, IVLength)
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return nil, stealthyerr.NewEncryptionError("symmetric.Encrypt", err)
	}
	return s.encryptWithIV(plain, iv)
}

func (s *Symmetric) encryptWithIV(plain, iv []byte) ([]byte, error) {
	block, err := blowfish.NewCipher(s.key[:])
	if err != nil {
		return nil, stealthyerr.NewEncryptionError("symmetric.Encrypt", err)
	}
	padded := pkcs7Pad(plain)
	ciphertext := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, padded)

	out := make([]byte, 0, len(iv)+len(ciphertext))
	out = append(out, iv...)
	out = append(out, ciphertext...)
	return out, nil
}

// Decrypt splits the IV from the ciphertext, CBC-decrypts, and strips
// PKCS#7 padding. Malformed padding is a DecryptionError.
func (s *Symmetric) Decrypt(in []byte) ([]byte, error) {
	if len(in) < IVLength {
		return nil, stealthyerr.NewDecryptionError("symmetric.Decrypt", "ciphertext shorter than IV")
	}
	iv, ciphertext := in[:IVLength], in[IVLength:]
	if len(ciphertext) == 0 || len(ciphertext)%blowfish.BlockSize != 0 {
		return nil, stealthyerr.NewDecryptionError("symmetric.Decrypt", "ciphertext is not a multiple of the block size")
	}
	block, err := blowfish.NewCipher(s.key[:])
	if err != nil {
		return nil, stealthyerr.NewEncryptionError("symmetric.Decrypt", err)
	}
	plain := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plain, ciphertext)

	unpadded, err := pkcs7Unpad(plain)
	if err != nil {
		return nil, stealthyerr.NewDecryptionError("symmetric.Decrypt", err.Error())
	}
	return unpadded, nil
}

// Fingerprint returns the SHA-1 of the raw key bytes, used by the welcome
// banner to display a stable identifier without revealing the key itself.
func (s *Symmetric) Fingerprint() [20]byte {
	return sha1.Sum(s.key[:])
}

func pkcs7Pad(data []byte) []byte {
	pad := blowfish.BlockSize - len(data)%blowfish.BlockSize
	out := make([]byte, len(data)+pad)
	copy(out, data)
	for i := len(data); i < len(out); i++ {
		out[i] = byte(pad)
	}
	return out
}

func pkcs7Unpad(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty plaintext")
	}
	pad := int(data[len(data)-1])
	if pad == 0 || pad > blowfish.BlockSize || pad > len(data) {
		return nil, fmt.Errorf("invalid padding byte %d", pad)
	}
	for _, b := range data[len(data)-pad:] {
		if int(b) != pad {
			return nil, fmt.Errorf("corrupt PKCS#7 padding")
		}
	}
	return data[:len(data)-pad], nil
}
