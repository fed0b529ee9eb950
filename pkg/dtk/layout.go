package dtk

// ChunkInfo locates one chunk inside a container.
type ChunkInfo struct {
	Offset int64 `json:"offset"`
	Size   int64 `json:"size"`
}

// End returns the offset one past the last byte of the chunk.
func (c ChunkInfo) End() int64 {
	return c.Offset + c.Size
}

// BuildOffsets lays chunks out back to back after the preamble and header.
// Readers use it to find chunks and writers to check what they produced, so
// both sides always agree on boundaries.
func BuildOffsets(headerSize int64, sizes []int64) []ChunkInfo {
	chunks := make([]ChunkInfo, len(sizes))
	offset := int64(PreambleSize) + headerSize
	for i, size := range sizes {
		chunks[i] = ChunkInfo{Offset: offset, Size: size}
		offset += size
	}
	return chunks
}

// ContainerSize is the exact file length of a container with the given header
// size and chunk sizes.
func ContainerSize(headerSize int64, sizes []int64) int64 {
	total := int64(PreambleSize) + headerSize
	for _, size := range sizes {
		total += size
	}
	return total
}
