package dtk

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/tidwall/gjson"
)

const writerBufSize = 1 << 20 // 1 MiB

// Logger receives writer diagnostics such as engine fallbacks.
type Logger interface {
	Warn(msg string, args ...any)
}

// Options controls how a container is written. The writer never consults the
// environment: author and tool come from here or default to "unknown".
type Options struct {
	Engine   Engine
	Compress bool
	Author   string
	Tool     string

	// Hash records sha1/md5 of the stored chunks and, for v2, a BLAKE3
	// digest per chunk.
	Hash bool
	// Verify rejects payloads that are not well-formed JSON.
	Verify bool
	// Fallback retries with the next weaker engine when a payload is too
	// large for the selected one, recording the engine actually used.
	Fallback bool
	// Legacy writes a single-chunk version 1 container.
	Legacy bool

	Codecs *CodecTable
	Now    func() time.Time
	Logger Logger
}

// Result describes a written container.
type Result struct {
	Path     string
	Metadata Metadata
	Chunks   []ChunkInfo
	Size     int64
}

// Writer assembles a container from a simulation payload and node payloads.
// Nothing is written until Encode or WriteFile, and every validation error is
// reported before the first byte goes out.
type Writer struct {
	opts       Options
	simulation []byte
	nodes      [][]byte
}

// NewWriter returns a writer using opts.
func NewWriter(opts Options) *Writer {
	return &Writer{opts: opts}
}

// SetSimulation sets the chunk 0 payload.
func (w *Writer) SetSimulation(data []byte) {
	w.simulation = data
}

// AddNode appends a node payload; nodes are stored in the order added.
func (w *Writer) AddNode(data []byte) {
	w.nodes = append(w.nodes, data)
}

// plan is a fully prepared container, ready to be written in one pass.
type plan struct {
	header *Header
	text   []byte
	chunks [][]byte
	table  []ChunkInfo
}

func (p *plan) size() int64 {
	return ContainerSize(int64(len(p.text)), p.header.Metadata.ChunkSizes)
}

func (p *plan) writeTo(dst io.Writer) (int64, error) {
	var written int64
	put := func(b []byte) error {
		n, err := dst.Write(b)
		written += int64(n)
		return err
	}

	if err := put([]byte(Magic)); err != nil {
		return written, err
	}
	if err := put(fmt.Appendf(nil, "%*d", SizeFieldWidth, len(p.text))); err != nil {
		return written, err
	}
	if err := put(p.text); err != nil {
		return written, err
	}
	for i, c := range p.chunks {
		if written != p.table[i].Offset {
			return written, fmt.Errorf("chunk %d at offset %d, table says %d", i, written, p.table[i].Offset)
		}
		if err := put(c); err != nil {
			return written, err
		}
	}
	return written, nil
}

// Encode writes the container to dst.
func (w *Writer) Encode(dst io.Writer) (*Result, error) {
	p, err := w.prepare()
	if err != nil {
		return nil, err
	}
	n, err := p.writeTo(dst)
	if err != nil {
		return nil, newError(ErrFileAccess, "").wrap(err)
	}
	return p.result("", n)
}

// WriteFile writes the container to path. The bytes go to a temporary file in
// the same directory which replaces path only once fully written, so a failed
// write leaves any existing file untouched.
func (w *Writer) WriteFile(path string) (*Result, error) {
	p, err := w.prepare()
	if err != nil {
		return nil, withPath(err, path)
	}

	f, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return nil, newError(ErrFileAccess, "").at(path).wrap(err)
	}
	tmp := f.Name()

	bw := bufio.NewWriterSize(f, writerBufSize)
	n, err := p.writeTo(bw)
	if err == nil && n != p.size() {
		err = fmt.Errorf("wrote %d bytes, expected %d", n, p.size())
	}
	if err == nil {
		err = bw.Flush()
	}
	if err == nil {
		err = f.Chmod(0o644)
	}
	if err == nil {
		err = f.Sync()
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil {
		err = os.Rename(tmp, path)
	}
	if err != nil {
		_ = os.Remove(tmp)
		return nil, newError(ErrFileAccess, "").at(path).wrap(err)
	}
	return p.result(path, n)
}

func (p *plan) result(path string, written int64) (*Result, error) {
	if written != p.size() {
		return nil, newError(ErrFileAccess, "wrote %d bytes, expected %d", written, p.size()).at(path)
	}
	return &Result{
		Path:     path,
		Metadata: p.header.Metadata,
		Chunks:   p.table,
		Size:     written,
	}, nil
}

func (w *Writer) payloads() [][]byte {
	out := make([][]byte, 0, 1+len(w.nodes))
	out = append(out, w.simulation)
	return append(out, w.nodes...)
}

func (w *Writer) prepare() (*plan, error) {
	opts := w.opts
	if _, err := opts.Codecs.Lookup(opts.Engine); err != nil {
		return nil, err
	}

	payloads := w.payloads()
	if opts.Legacy {
		if len(payloads) != 1 {
			return nil, newError(ErrInvalidChunkCount, "version 1 containers hold exactly one chunk, got %d", len(payloads))
		}
		if opts.Compress && opts.Engine == EngineLZ4 {
			return nil, newError(ErrUnknownEngine, "version 1 containers cannot record %s", opts.Engine)
		}
	}
	for i, p := range payloads {
		if len(p) == 0 {
			return nil, newError(ErrInvalidChunkSize, "payload is empty").chunk(i)
		}
		if opts.Verify && !gjson.ValidBytes(p) {
			return nil, newError(ErrJSONParse, "payload").chunk(i)
		}
	}

	engine := opts.Engine
	if !opts.Compress {
		engine = EngineNone
	}
	chunks, engine, err := w.compressAll(payloads, engine)
	if err != nil {
		return nil, err
	}

	md := Metadata{
		Version:    CurrentVersion,
		Date:       w.now().Format(DateLayout),
		Author:     orUnknown(opts.Author),
		Tool:       orUnknown(opts.Tool),
		Compressed: engine != EngineNone,
		Engine:     engine,
		ChunkCount: len(chunks),
		ChunkSizes: make([]int64, len(chunks)),
	}
	for i, c := range chunks {
		md.ChunkSizes[i] = int64(len(c))
		md.ByteCount += int64(len(c))
	}
	if opts.Legacy {
		md.Version = LegacyVersion
	}
	if opts.Hash {
		d := newDigester(len(chunks))
		for i, c := range chunks {
			if err := d.add(i, bytes.NewReader(c)); err != nil {
				return nil, err
			}
		}
		md.SHA1 = d.sha1Hex()
		md.MD5 = d.md5Hex()
		if !opts.Legacy {
			md.ChunkHashes = d.chunks
		}
	}

	hdr := &Header{Metadata: md}
	text, err := hdr.Encode()
	if err != nil {
		return nil, newError(ErrHeaderParse, "encode").wrap(err)
	}
	return &plan{
		header: hdr,
		text:   text,
		chunks: chunks,
		table:  BuildOffsets(int64(len(text)), md.ChunkSizes),
	}, nil
}

// compressAll runs every payload through engine, stepping down to weaker
// engines on ErrPayloadTooLarge when fallback is enabled.
func (w *Writer) compressAll(payloads [][]byte, engine Engine) ([][]byte, Engine, error) {
	for {
		chunks, err := w.compressWith(payloads, engine)
		if err == nil {
			return chunks, engine, nil
		}
		if !errors.Is(err, ErrPayloadTooLarge) || !w.opts.Fallback {
			return nil, engine, err
		}
		weaker, ok := engine.Weaker()
		if !ok {
			return nil, engine, err
		}
		if w.opts.Logger != nil {
			w.opts.Logger.Warn("payload too large for engine, falling back", "engine", engine.String(), "fallback", weaker.String(), "error", err)
		}
		engine = weaker
	}
}

func (w *Writer) compressWith(payloads [][]byte, engine Engine) ([][]byte, error) {
	codec, err := w.opts.Codecs.Lookup(engine)
	if err != nil {
		return nil, err
	}
	limit := codec.MaxPayload()
	for i, p := range payloads {
		if limit > 0 && int64(len(p)) > limit {
			return nil, newError(ErrPayloadTooLarge, "%d bytes exceeds %s limit of %d", len(p), engine, limit).chunk(i)
		}
	}
	if engine == EngineNone {
		return payloads, nil
	}

	chunks := make([][]byte, len(payloads))
	for i, p := range payloads {
		c, err := codec.Compress(p)
		if err != nil {
			if errors.Is(err, ErrPayloadTooLarge) {
				return nil, newError(ErrPayloadTooLarge, "%s", engine).chunk(i).wrap(err)
			}
			return nil, newError(ErrCompress, "%s", engine).chunk(i).wrap(err)
		}
		chunks[i] = c
	}
	return chunks, nil
}

func (w *Writer) now() time.Time {
	if w.opts.Now != nil {
		return w.opts.Now()
	}
	return time.Now()
}

func orUnknown(s string) string {
	if s == "" {
		return Unknown
	}
	return s
}

// WriteFile writes a container holding simulation and nodes to path.
// Concurrent writes to the same path are not coordinated.
func WriteFile(path string, simulation []byte, nodes [][]byte, opts Options) (*Result, error) {
	w := NewWriter(opts)
	w.SetSimulation(simulation)
	for _, n := range nodes {
		w.AddNode(n)
	}
	return w.WriteFile(path)
}

// WriteFromFiles reads the simulation and node payloads from files and writes
// a container to path. A missing source fails with ErrSourceNotFound naming
// that source, before the output is created.
func WriteFromFiles(path, simulationPath string, nodePaths []string, opts Options) (*Result, error) {
	sources := append([]string{simulationPath}, nodePaths...)
	for i, src := range sources {
		if _, err := os.Stat(src); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, newError(ErrSourceNotFound, "").at(src).chunk(i).wrap(err)
			}
			return nil, newError(ErrFileAccess, "").at(src).chunk(i).wrap(err)
		}
	}

	w := NewWriter(opts)
	for i, src := range sources {
		data, err := os.ReadFile(src)
		if err != nil {
			return nil, newError(ErrFileAccess, "").at(src).chunk(i).wrap(err)
		}
		if i == 0 {
			w.SetSimulation(data)
		} else {
			w.AddNode(data)
		}
	}
	return w.WriteFile(path)
}
