package crypto

import "encoding/hex"

// ToHex and FromHex are thin, explicitly-named wrappers around the stdlib
// hex codec — kept as named functions because the wire protocol (hybrid
// envelope: hex(cipher)+":"+hex(rsaBlob)) spells them out as primitives in
// its own right, the same way the original implementation's crypto::tools
// module does.
func ToHex(b []byte) string {
	return hex.EncodeToString(b)
}

func FromHex(s string) ([]byte, error) {
	return hex.DecodeString(s)
}
