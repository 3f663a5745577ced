package wire

import (
	"encoding/binary"
	"fmt"
)

// MaxChunkSize is the maximum chunk size a single fragment may carry.
const MaxChunkSize = 8192

const fragmentHeaderLength = 1 + 8 + 4 + 4 // version + logical id + total + seq

// Fragment is the inner frame carried inside NewMessage/FileUpload bodies:
// version(1) | logicalID u64 LE | total u32 LE | seq u32 LE (1-based) | chunk.
type Fragment struct {
	LogicalID uint64
	Total     uint32
	Seq       uint32
	Chunk     []byte
}

// Encode serializes the fragment header followed by the chunk bytes.
func (f *Fragment) Encode() []byte {
	buf := make([]byte, fragmentHeaderLength+len(f.Chunk))
	buf[0] = version
	binary.LittleEndian.PutUint64(buf[1:9], f.LogicalID)
	binary.LittleEndian.PutUint32(buf[9:13], f.Total)
	binary.LittleEndian.PutUint32(buf[13:17], f.Seq)
	copy(buf[17:], f.Chunk)
	return buf
}

// DecodeFragment parses a fragment header. It rejects inputs shorter than
// the 17-byte header, frames with a non-1 inner version, and total=0.
func DecodeFragment(raw []byte) (*Fragment, error) {
	if len(raw) < fragmentHeaderLength {
		return nil, fmt.Errorf("wire: fragment too short: %d bytes", len(raw))
	}
	if raw[0] != version {
		return nil, fmt.Errorf("wire: unsupported fragment version %d", raw[0])
	}
	total := binary.LittleEndian.Uint32(raw[9:13])
	if total == 0 {
		return nil, fmt.Errorf("wire: fragment declares total=0")
	}
	chunk := make([]byte, len(raw)-fragmentHeaderLength)
	copy(chunk, raw[fragmentHeaderLength:])
	return &Fragment{
		LogicalID: binary.LittleEndian.Uint64(raw[1:9]),
		Total:     total,
		Seq:       binary.LittleEndian.Uint32(raw[13:17]),
		Chunk:     chunk,
	}, nil
}
