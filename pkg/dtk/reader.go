package dtk

import (
	"bytes"
	"errors"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
	"github.com/tidwall/gjson"
)

// Reader gives access to the header and chunks of one container file.
//
// Open validates the preamble and header and never touches chunk bodies, so a
// Reader doubles as a header-only inspector. Every chunk access reopens the
// file and reads from disk; nothing is cached between calls.
type Reader struct {
	path       string
	headerText []byte
	header     *Header
	chunks     []ChunkInfo
	codec      Codec
	codecs     *CodecTable
}

// ReaderOption customises Open.
type ReaderOption func(*Reader)

// WithReadCodecs selects the codec table used to decode chunks.
func WithReadCodecs(t *CodecTable) ReaderOption {
	return func(r *Reader) {
		if t != nil {
			r.codecs = t
		}
	}
}

// Open reads and validates the container preamble and header at path.
// No partially initialised Reader is ever returned.
func Open(path string, opts ...ReaderOption) (*Reader, error) {
	r := &Reader{path: path, codecs: defaultCodecs}
	for _, opt := range opts {
		opt(r)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, newError(ErrFileAccess, "").at(path).wrap(err)
	}
	defer func() { _ = f.Close() }()

	st, err := f.Stat()
	if err != nil {
		return nil, newError(ErrFileAccess, "").at(path).wrap(err)
	}
	if err := r.load(f, st.Size()); err != nil {
		return nil, withPath(err, path)
	}
	return r, nil
}

func (r *Reader) load(f io.Reader, fileSize int64) error {
	var magic [MagicSize]byte
	if n, err := io.ReadFull(f, magic[:]); err != nil {
		if isShortRead(err) {
			return newError(ErrBadMagic, "%q", magic[:n])
		}
		return newError(ErrFileAccess, "").wrap(err)
	}
	if string(magic[:]) != Magic {
		return newError(ErrBadMagic, "%q", magic[:])
	}

	var field [SizeFieldWidth]byte
	if n, err := io.ReadFull(f, field[:]); err != nil {
		if isShortRead(err) {
			return newError(ErrTruncated, "header size field is %d of %d bytes", n, SizeFieldWidth)
		}
		return newError(ErrFileAccess, "").wrap(err)
	}
	headerSize, err := parseSizeField(field[:])
	if err != nil {
		return err
	}
	if headerSize <= 0 {
		return newError(ErrHeaderSize, "%d", headerSize)
	}
	if headerSize > fileSize-PreambleSize {
		return newError(ErrTruncated, "header declares %d bytes, %d available", headerSize, max(fileSize-PreambleSize, 0))
	}

	text := make([]byte, headerSize)
	if _, err := io.ReadFull(f, text); err != nil {
		if isShortRead(err) {
			return newError(ErrTruncated, "header text")
		}
		return newError(ErrFileAccess, "").wrap(err)
	}

	hdr, err := ParseHeader(text, headerSize)
	if err != nil {
		return err
	}
	codec, err := r.codecs.Lookup(hdr.Metadata.Engine)
	if err != nil {
		return err
	}

	r.headerText = text
	r.header = hdr
	r.codec = codec
	r.chunks = BuildOffsets(headerSize, hdr.Metadata.ChunkSizes)
	return nil
}

// parseSizeField decodes the right-justified decimal header size.
func parseSizeField(field []byte) (int64, error) {
	s := strings.TrimSpace(string(field))
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, newError(ErrMalformedLength, "%q", field)
	}
	return n, nil
}

func isShortRead(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF)
}

// Path returns the container file path.
func (r *Reader) Path() string { return r.path }

// Header returns the normalized header.
func (r *Reader) Header() *Header { return r.header }

// Metadata returns a copy of the normalized metadata.
func (r *Reader) Metadata() Metadata { return r.header.Metadata }

// HeaderText returns the header exactly as stored.
func (r *Reader) HeaderText() []byte { return bytes.Clone(r.headerText) }

// Engine returns the container's compression engine.
func (r *Reader) Engine() Engine { return r.header.Metadata.Engine }

// ChunkCount returns the number of chunks, simulation included.
func (r *Reader) ChunkCount() int { return len(r.chunks) }

// NodeCount returns the number of node chunks.
func (r *Reader) NodeCount() int { return len(r.chunks) - 1 }

// Chunks returns the chunk table.
func (r *Reader) Chunks() []ChunkInfo {
	out := make([]ChunkInfo, len(r.chunks))
	copy(out, r.chunks)
	return out
}

// Size returns the file length the header describes.
func (r *Reader) Size() int64 {
	return ContainerSize(int64(len(r.headerText)), r.header.Metadata.ChunkSizes)
}

func (r *Reader) info(index int) (ChunkInfo, error) {
	if index < 0 || index >= len(r.chunks) {
		return ChunkInfo{}, newError(ErrIndexOutOfRange, "container has %d chunks", len(r.chunks)).at(r.path).chunk(index)
	}
	return r.chunks[index], nil
}

// Chunk returns the stored bytes of chunk index, still compressed.
func (r *Reader) Chunk(index int) ([]byte, error) {
	info, err := r.info(index)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(r.path)
	if err != nil {
		return nil, newError(ErrFileAccess, "").at(r.path).chunk(index).wrap(err)
	}
	defer func() { _ = f.Close() }()

	st, err := f.Stat()
	if err != nil {
		return nil, newError(ErrFileAccess, "").at(r.path).chunk(index).wrap(err)
	}
	if info.Offset > st.Size() || info.Size > st.Size()-info.Offset {
		return nil, newError(ErrTruncated, "chunk ends at %d, file is %d bytes", info.End(), st.Size()).at(r.path).chunk(index)
	}

	buf := make([]byte, info.Size)
	if _, err := f.ReadAt(buf, info.Offset); err != nil {
		if isShortRead(err) {
			return nil, newError(ErrTruncated, "short read at offset %d", info.Offset).at(r.path).chunk(index)
		}
		return nil, newError(ErrFileAccess, "").at(r.path).chunk(index).wrap(err)
	}
	return buf, nil
}

// Contents returns chunk index decompressed with the container's engine.
//
// A chunk whose bytes do not match the declared engine fails with
// ErrCorruptChunk. When the bytes decode cleanly to JSON under another engine
// the error names it.
func (r *Reader) Contents(index int) ([]byte, error) {
	raw, err := r.Chunk(index)
	if err != nil {
		return nil, err
	}

	declared := r.Engine()
	out, err := r.codec.Decompress(raw)
	if err != nil {
		e := newError(ErrCorruptChunk, "declared engine %s", declared)
		if actual, ok := r.identify(raw, declared); ok {
			e.Detail += ", data decodes as " + actual.String()
		}
		return nil, e.at(r.path).chunk(index).wrap(err)
	}

	if declared == EngineNone && !gjson.ValidBytes(out) {
		if actual, ok := r.identify(raw, declared); ok {
			return nil, newError(ErrCorruptChunk, "declared engine NONE, data decodes as %s", actual).at(r.path).chunk(index)
		}
	}
	return out, nil
}

// identify reports the first engine other than declared under which raw
// decodes to well-formed JSON.
func (r *Reader) identify(raw []byte, declared Engine) (Engine, bool) {
	for _, e := range []Engine{EngineNone, EngineLZ4, EngineSnappy} {
		if e == declared {
			continue
		}
		codec, err := r.codecs.Lookup(e)
		if err != nil {
			continue
		}
		out, err := codec.Decompress(raw)
		if err == nil && gjson.ValidBytes(out) {
			return e, true
		}
	}
	return 0, false
}

// Object decodes the contents of chunk index as JSON. Numbers are returned as
// json.Number so integer state survives untouched.
func (r *Reader) Object(index int) (any, error) {
	contents, err := r.Contents(index)
	if err != nil {
		return nil, err
	}
	if !gjson.ValidBytes(contents) {
		return nil, newError(ErrJSONParse, "").at(r.path).chunk(index)
	}

	dec := json.NewDecoder(bytes.NewReader(contents))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, newError(ErrJSONParse, "").at(r.path).chunk(index).wrap(err)
	}
	return v, nil
}

// Simulation returns the "simulation" member of chunk 0.
func (r *Reader) Simulation() (json.RawMessage, error) {
	return r.member(0, "simulation")
}

// Node returns the "node" member of node k, which lives in chunk k+1.
func (r *Reader) Node(k int) (json.RawMessage, error) {
	if k < 0 || k >= r.NodeCount() {
		return nil, newError(ErrIndexOutOfRange, "node %d of %d", k, r.NodeCount()).at(r.path)
	}
	return r.member(k+1, "node")
}

func (r *Reader) member(index int, key string) (json.RawMessage, error) {
	contents, err := r.Contents(index)
	if err != nil {
		return nil, err
	}
	if !gjson.ValidBytes(contents) {
		return nil, newError(ErrJSONParse, "").at(r.path).chunk(index)
	}
	res := gjson.GetBytes(contents, key)
	if !res.Exists() {
		return nil, newError(ErrJSONParse, "missing %q member", key).at(r.path).chunk(index)
	}
	return json.RawMessage(res.Raw), nil
}

// Verify checks the file length against the header and, when the header
// carries them, the recorded digests.
func (r *Reader) Verify() error {
	f, err := os.Open(r.path)
	if err != nil {
		return newError(ErrFileAccess, "").at(r.path).wrap(err)
	}
	defer func() { _ = f.Close() }()

	st, err := f.Stat()
	if err != nil {
		return newError(ErrFileAccess, "").at(r.path).wrap(err)
	}
	want := r.Size()
	switch {
	case st.Size() < want:
		return newError(ErrTruncated, "file is %d bytes, header describes %d", st.Size(), want).at(r.path)
	case st.Size() > want:
		return newError(ErrTrailingData, "file is %d bytes, header describes %d", st.Size(), want).at(r.path)
	}

	md := r.header.Metadata
	if md.SHA1 == "" && md.MD5 == "" && md.ChunkHashes == nil {
		return nil
	}

	d := newDigester(len(r.chunks))
	for i, c := range r.chunks {
		if err := d.add(i, io.NewSectionReader(f, c.Offset, c.Size)); err != nil {
			return newError(ErrFileAccess, "").at(r.path).chunk(i).wrap(err)
		}
	}
	if md.SHA1 != "" && !strings.EqualFold(md.SHA1, d.sha1Hex()) {
		return newError(ErrChecksumMismatch, "sha1 %s, computed %s", md.SHA1, d.sha1Hex()).at(r.path)
	}
	if md.MD5 != "" && !strings.EqualFold(md.MD5, d.md5Hex()) {
		return newError(ErrChecksumMismatch, "md5 %s, computed %s", md.MD5, d.md5Hex()).at(r.path)
	}
	for i, want := range md.ChunkHashes {
		if !strings.EqualFold(want, d.chunks[i]) {
			return newError(ErrChecksumMismatch, "blake3 %s, computed %s", want, d.chunks[i]).at(r.path).chunk(i)
		}
	}
	return nil
}
