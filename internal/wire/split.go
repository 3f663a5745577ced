package wire

// Split breaks payload into fragments of at most MaxChunkSize bytes, all
// sharing logicalID, with Seq running 1..N and Total=N. An empty payload
// still produces exactly one (empty-chunk) fragment.
func Split(logicalID uint64, payload []byte) []*Fragment {
	total := (len(payload) + MaxChunkSize - 1) / MaxChunkSize
	if total == 0 {
		total = 1
	}
	frags := make([]*Fragment, 0, total)
	for i := 0; i < total; i++ {
		start := i * MaxChunkSize
		end := start + MaxChunkSize
		if end > len(payload) {
			end = len(payload)
		}
		chunk := make([]byte, end-start)
		copy(chunk, payload[start:end])
		frags = append(frags, &Fragment{
			LogicalID: logicalID,
			Total:     uint32(total),
			Seq:       uint32(i + 1),
			Chunk:     chunk,
		})
	}
	return frags
}

// Reassemble concatenates fragments in seq order. Callers must ensure the
// set of fragments covers {1..total} exactly before calling this.
func Reassemble(frags map[uint32]*Fragment, total uint32) []byte {
	out := make([]byte, 0)
	for seq := uint32(1); seq <= total; seq++ {
		out = append(out, frags[seq].Chunk...)
	}
	return out
}
