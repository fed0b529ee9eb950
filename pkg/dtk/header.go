package dtk

import (
	"math"

	"github.com/goccy/go-json"
)

// Header is the decoded header block: {"metadata": {...}}.
type Header struct {
	Metadata Metadata
}

// Metadata is the normalized view of a header's metadata object. Whatever the
// on-disk version, Version, Engine, ChunkCount and ChunkSizes are always set
// after ParseHeader.
type Metadata struct {
	Version    int
	Date       string
	Author     string
	Tool       string
	Compressed bool
	Engine     Engine
	ByteCount  int64
	ChunkCount int
	ChunkSizes []int64

	// Optional integrity fields. SHA1 and MD5 cover the stored chunk bytes in
	// file order; ChunkHashes holds one BLAKE3 digest per stored chunk.
	SHA1        string
	MD5         string
	ChunkHashes []string
}

// Legacy reports whether the metadata describes a single-chunk v1 container.
func (m *Metadata) Legacy() bool {
	return m.Version < CurrentVersion
}

// wireMetadata is the on-disk shape. Field order is the serialization order
// and must stay stable so header sizes are reproducible.
type wireMetadata struct {
	Version     *int     `json:"version,omitempty"`
	Date        string   `json:"date,omitempty"`
	Author      string   `json:"author,omitempty"`
	Tool        string   `json:"tool,omitempty"`
	Compressed  bool     `json:"compressed"`
	Engine      *string  `json:"engine,omitempty"`
	ByteCount   int64    `json:"bytecount"`
	ChunkCount  *int     `json:"chunkcount,omitempty"`
	ChunkSizes  []int64  `json:"chunksizes,omitempty"`
	SHA1        string   `json:"sha1,omitempty"`
	MD5         string   `json:"md5,omitempty"`
	ChunkHashes []string `json:"chunkhashes,omitempty"`
}

// wireHeader is the decode shape; the pointer tells a missing metadata object
// apart from an empty one.
type wireHeader struct {
	Metadata *wireMetadata `json:"metadata"`
}

// encodedHeader is the encode shape. Metadata is held by value: go-json
// mis-encodes pointer fields of a struct reached through a pointer.
type encodedHeader struct {
	Metadata wireMetadata `json:"metadata"`
}

// ParseHeader decodes and normalizes header text. declaredSize is the value of
// the container's size field and is checked before any parsing happens.
func ParseHeader(text []byte, declaredSize int64) (*Header, error) {
	if declaredSize <= 0 {
		return nil, newError(ErrHeaderSize, "%d", declaredSize)
	}

	var w wireHeader
	if err := json.Unmarshal(text, &w); err != nil {
		return nil, newError(ErrHeaderParse, "").wrap(err)
	}
	if w.Metadata == nil {
		return nil, newError(ErrHeaderParse, "missing metadata object")
	}

	md, err := normalize(w.Metadata, math.MaxInt64-PreambleSize-declaredSize)
	if err != nil {
		return nil, err
	}
	return &Header{Metadata: md}, nil
}

// normalize builds the canonical metadata. maxChunks bounds the sum of chunk
// sizes so every offset fits in an int64.
func normalize(w *wireMetadata, maxChunks int64) (Metadata, error) {
	md := Metadata{
		Version:     LegacyVersion,
		Date:        w.Date,
		Author:      w.Author,
		Tool:        w.Tool,
		Compressed:  w.Compressed,
		ByteCount:   w.ByteCount,
		SHA1:        w.SHA1,
		MD5:         w.MD5,
		ChunkHashes: w.ChunkHashes,
	}
	if w.Version != nil {
		md.Version = *w.Version
	}
	if md.Version <= 0 || md.Version > CurrentVersion {
		return Metadata{}, newError(ErrUnsupportedVersion, "%d", md.Version)
	}

	if md.Legacy() {
		// v1 layout is implied entirely by compressed/bytecount.
		md.Engine = impliedEngine(md.Compressed)
		md.ChunkCount = 1
		md.ChunkSizes = []int64{md.ByteCount}
	} else {
		md.Engine = impliedEngine(md.Compressed)
		if w.Engine != nil {
			e, err := ParseEngine(*w.Engine)
			if err != nil {
				return Metadata{}, err
			}
			md.Engine = e
		}
		md.ChunkSizes = w.ChunkSizes
		if md.ChunkSizes == nil {
			md.ChunkSizes = []int64{md.ByteCount}
		}
		md.ChunkCount = len(md.ChunkSizes)
		if w.ChunkCount != nil {
			md.ChunkCount = *w.ChunkCount
		}
	}

	if md.ChunkCount < 1 || md.ChunkCount != len(md.ChunkSizes) {
		return Metadata{}, newError(ErrInvalidChunkCount, "chunkcount %d with %d chunk sizes", md.ChunkCount, len(md.ChunkSizes))
	}
	var total int64
	for i, size := range md.ChunkSizes {
		if size <= 0 {
			return Metadata{}, newError(ErrInvalidChunkSize, "%d", size).chunk(i)
		}
		if size > maxChunks-total {
			return Metadata{}, newError(ErrInvalidChunkSize, "%d overflows the file offset range", size).chunk(i)
		}
		total += size
	}
	if md.ChunkHashes != nil && len(md.ChunkHashes) != md.ChunkCount {
		return Metadata{}, newError(ErrInvalidChunkCount, "%d chunk hashes for %d chunks", len(md.ChunkHashes), md.ChunkCount)
	}
	return md, nil
}

func impliedEngine(compressed bool) Engine {
	if compressed {
		return EngineSnappy
	}
	return EngineNone
}

// Encode serializes the header as compact JSON. Legacy metadata is written
// without the fields v1 readers synthesize.
func (h *Header) Encode() ([]byte, error) {
	w := h.Metadata.wire(!h.Metadata.Legacy())
	return json.Marshal(encodedHeader{Metadata: w})
}

// MarshalJSON renders the normalized metadata, including synthesized fields.
func (m Metadata) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.wire(true))
}

func (m *Metadata) wire(layout bool) wireMetadata {
	version := m.Version
	w := wireMetadata{
		Version:     &version,
		Date:        m.Date,
		Author:      m.Author,
		Tool:        m.Tool,
		Compressed:  m.Compressed,
		ByteCount:   m.ByteCount,
		SHA1:        m.SHA1,
		MD5:         m.MD5,
		ChunkHashes: m.ChunkHashes,
	}
	if layout {
		engine := m.Engine.String()
		count := m.ChunkCount
		w.Engine = &engine
		w.ChunkCount = &count
		w.ChunkSizes = m.ChunkSizes
	}
	return w
}
