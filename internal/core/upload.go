package core

import (
	"bytes"
	"crypto/rand"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"
)

const uploadRandomSuffixLen = 10

// EncodeUpload builds the FileUpload payload: filename bytes, a single NUL
// separator, then the raw file bytes.
func EncodeUpload(filename string, data []byte) []byte {
	out := make([]byte, 0, len(filename)+1+len(data))
	out = append(out, filename...)
	out = append(out, 0)
	out = append(out, data...)
	return out
}

// DecodeUpload splits a FileUpload payload back into a sanitized filename
// and the raw file bytes.
func DecodeUpload(payload []byte) (filename string, data []byte, ok bool) {
	i := bytes.IndexByte(payload, 0)
	if i < 0 {
		return "", nil, false
	}
	return sanitizeFilename(string(payload[:i])), payload[i+1:], true
}

// sanitizeFilename replaces every character outside [a-zA-Z0-9.-] with '_'.
func sanitizeFilename(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}

// SaveUpload writes a received file upload to
// <os.TempDir()>/stealthy_<10-char-random>_<sanitized-filename> (/tmp unless
// $TMPDIR is set) and returns the path.
func SaveUpload(filename string, data []byte) (string, error) {
	suffix, err := randomAlnum(uploadRandomSuffixLen)
	if err != nil {
		return "", fmt.Errorf("generating random suffix: %w", err)
	}
	path := filepath.Join(os.TempDir(), fmt.Sprintf("stealthy_%s_%s", suffix, sanitizeFilename(filename)))
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", fmt.Errorf("writing upload to %q: %w", path, err)
	}
	return path, nil
}

const alnumAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

func randomAlnum(n int) (string, error) {
	b := make([]byte, n)
	for i := range b {
		idx, err := rand.Int(rand.Reader, big.NewInt(int64(len(alnumAlphabet))))
		if err != nil {
			return "", err
		}
		b[i] = alnumAlphabet[idx.Int64()]
	}
	return string(b), nil
}
