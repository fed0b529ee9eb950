package dtk

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/klauspost/compress/s2"
	"github.com/pierrec/lz4/v4"
)

// Engine identifies the compression algorithm applied to every chunk of a
// container. Names are stored upper-case in metadata.
type Engine uint8

const (
	EngineNone Engine = iota
	EngineLZ4
	EngineSnappy
)

var engineNames = [...]string{
	EngineNone:   "NONE",
	EngineLZ4:    "LZ4",
	EngineSnappy: "SNAPPY",
}

// String returns the metadata name of an engine.
func (e Engine) String() string {
	if int(e) < len(engineNames) {
		return engineNames[e]
	}
	return fmt.Sprintf("ENGINE(%d)", uint8(e))
}

// Known reports whether e is one of the defined engines.
func (e Engine) Known() bool {
	return int(e) < len(engineNames)
}

// ParseEngine parses an engine name case-insensitively.
func ParseEngine(name string) (Engine, error) {
	upper := strings.ToUpper(strings.TrimSpace(name))
	for i, n := range engineNames {
		if n == upper {
			return Engine(i), nil
		}
	}
	return 0, newError(ErrUnknownEngine, "%q", name)
}

// Weaker returns the engine to retry with when e refuses a payload, and false
// when there is nothing weaker than e.
func (e Engine) Weaker() (Engine, bool) {
	switch e {
	case EngineLZ4:
		return EngineSnappy, true
	case EngineSnappy:
		return EngineNone, true
	default:
		return EngineNone, false
	}
}

// Codec is the capability a compression engine provides.
// Decompress fails with ErrDecode on input it cannot interpret.
type Codec interface {
	Compress(src []byte) ([]byte, error)
	Decompress(src []byte) ([]byte, error)
	// MaxPayload is the largest uncompressed input Compress accepts.
	// Zero means unlimited.
	MaxPayload() int64
}

// CodecTable maps engines to their codecs. Build one with NewCodecTable; a
// table is never mutated after construction.
type CodecTable struct {
	codecs map[Engine]Codec
}

// CodecOption customises a CodecTable.
type CodecOption func(map[Engine]Codec)

// WithCodec replaces the codec used for engine e.
func WithCodec(e Engine, c Codec) CodecOption {
	return func(m map[Engine]Codec) {
		m[e] = c
	}
}

// NewCodecTable returns the standard NONE/LZ4/SNAPPY table with opts applied.
func NewCodecTable(opts ...CodecOption) *CodecTable {
	m := map[Engine]Codec{
		EngineNone:   identityCodec{},
		EngineLZ4:    lz4Codec{},
		EngineSnappy: snappyCodec{},
	}
	for _, opt := range opts {
		opt(m)
	}
	return &CodecTable{codecs: m}
}

var defaultCodecs = NewCodecTable()

// DefaultCodecs returns the standard codec table.
func DefaultCodecs() *CodecTable { return defaultCodecs }

// Lookup returns the codec for e.
func (t *CodecTable) Lookup(e Engine) (Codec, error) {
	if t == nil {
		t = defaultCodecs
	}
	c, ok := t.codecs[e]
	if !ok || c == nil {
		return nil, newError(ErrUnknownEngine, "%s", e)
	}
	return c, nil
}

type identityCodec struct{}

func (identityCodec) Compress(src []byte) ([]byte, error)   { return src, nil }
func (identityCodec) Decompress(src []byte) ([]byte, error) { return src, nil }
func (identityCodec) MaxPayload() int64                     { return 0 }

// LZ4 chunks carry a 4-byte little-endian uncompressed size followed by one
// raw LZ4 block, the layout produced by the python lz4 bindings.
const (
	lz4SizePrefix = 4
	lz4MaxInput   = 0x7E000000
	// Worst case LZ4 expansion ratio; anything claiming more is not LZ4.
	lz4MaxRatio = 255
)

type lz4Codec struct{}

func (lz4Codec) MaxPayload() int64 { return lz4MaxInput }

func (lz4Codec) Compress(src []byte) ([]byte, error) {
	if int64(len(src)) > lz4MaxInput {
		return nil, newError(ErrPayloadTooLarge, "%d bytes exceeds LZ4 limit of %d", len(src), lz4MaxInput)
	}
	dst := make([]byte, lz4SizePrefix+lz4.CompressBlockBound(len(src)))
	binary.LittleEndian.PutUint32(dst, uint32(len(src)))
	n, err := lz4.CompressBlock(src, dst[lz4SizePrefix:], nil)
	if err != nil {
		return nil, fmt.Errorf("lz4 compress: %w", err)
	}
	return dst[:lz4SizePrefix+n], nil
}

func (lz4Codec) Decompress(src []byte) ([]byte, error) {
	if len(src) < lz4SizePrefix {
		return nil, newError(ErrDecode, "lz4: %d bytes is shorter than the size prefix", len(src))
	}
	size := int64(binary.LittleEndian.Uint32(src))
	block := src[lz4SizePrefix:]
	if size > lz4MaxInput || size > int64(len(block))*lz4MaxRatio+16 {
		return nil, newError(ErrDecode, "lz4: implausible uncompressed size %d for %d byte block", size, len(block))
	}
	dst := make([]byte, size)
	n, err := lz4.UncompressBlock(block, dst)
	if err != nil {
		return nil, newError(ErrDecode, "lz4").wrap(err)
	}
	if int64(n) != size {
		return nil, newError(ErrDecode, "lz4: got %d bytes, expected %d", n, size)
	}
	return dst, nil
}

// SNAPPY chunks are raw snappy blocks. s2 writes snappy-compatible blocks and
// its decoder reads them.
const snappyMaxInput = 0xFFFFFFFF

type snappyCodec struct{}

func (snappyCodec) MaxPayload() int64 { return snappyMaxInput }

func (snappyCodec) Compress(src []byte) ([]byte, error) {
	if int64(len(src)) > snappyMaxInput || s2.MaxEncodedLen(len(src)) < 0 {
		return nil, newError(ErrPayloadTooLarge, "%d bytes exceeds SNAPPY limit of %d", len(src), int64(snappyMaxInput))
	}
	return s2.EncodeSnappy(nil, src), nil
}

func (snappyCodec) Decompress(src []byte) ([]byte, error) {
	n, err := s2.DecodedLen(src)
	if err != nil {
		return nil, newError(ErrDecode, "snappy").wrap(err)
	}
	// A 3-byte copy tag expands to at most 64 bytes, so a declared length far
	// beyond that ratio is not a snappy block.
	if int64(n) > int64(len(src))*64+64 {
		return nil, newError(ErrDecode, "snappy: implausible decoded length %d for %d byte block", n, len(src))
	}
	out, err := s2.Decode(nil, src)
	if err != nil {
		return nil, newError(ErrDecode, "snappy").wrap(err)
	}
	return out, nil
}
