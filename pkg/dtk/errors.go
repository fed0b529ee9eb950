package dtk

import (
	"errors"
	"fmt"
	"strings"
)

// Error kinds. Every error returned by this package matches exactly one kind
// with errors.Is.
var (
	ErrStructural = errors.New("structural error")
	ErrHeader     = errors.New("header error")
	ErrCodec      = errors.New("codec error")
	ErrContent    = errors.New("content error")
	ErrIO         = errors.New("io error")
	ErrCapacity   = errors.New("capacity error")
)

// Conditions. Each condition belongs to one kind.
var (
	ErrBadMagic         = errors.New("incorrect magic number")
	ErrMalformedLength  = errors.New("malformed header size field")
	ErrTruncated        = errors.New("truncated file")
	ErrTrailingData     = errors.New("unexpected data after last chunk")
	ErrIndexOutOfRange  = errors.New("chunk index out of range")
	ErrChecksumMismatch = errors.New("checksum mismatch")

	ErrHeaderSize         = errors.New("invalid header size")
	ErrHeaderParse        = errors.New("cannot decode JSON header")
	ErrUnsupportedVersion = errors.New("unsupported version")
	ErrInvalidChunkSize   = errors.New("invalid chunk size")
	ErrInvalidChunkCount  = errors.New("invalid chunk count")
	ErrUnknownEngine      = errors.New("unknown compression engine")

	ErrCorruptChunk = errors.New("cannot decompress chunk")
	ErrCompress     = errors.New("cannot compress chunk")
	ErrDecode       = errors.New("malformed compressed data")

	ErrJSONParse = errors.New("chunk contents are not valid JSON")

	ErrSourceNotFound = errors.New("source not found")
	ErrFileAccess     = errors.New("file access failed")

	ErrPayloadTooLarge = errors.New("payload too large for engine")
)

var conditionKind = map[error]error{
	ErrBadMagic:           ErrStructural,
	ErrMalformedLength:    ErrStructural,
	ErrTruncated:          ErrStructural,
	ErrTrailingData:       ErrStructural,
	ErrIndexOutOfRange:    ErrStructural,
	ErrChecksumMismatch:   ErrStructural,
	ErrHeaderSize:         ErrHeader,
	ErrHeaderParse:        ErrHeader,
	ErrUnsupportedVersion: ErrHeader,
	ErrInvalidChunkSize:   ErrHeader,
	ErrInvalidChunkCount:  ErrHeader,
	ErrUnknownEngine:      ErrHeader,
	ErrCorruptChunk:       ErrCodec,
	ErrCompress:           ErrCodec,
	ErrDecode:             ErrCodec,
	ErrJSONParse:          ErrContent,
	ErrSourceNotFound:     ErrIO,
	ErrFileAccess:         ErrIO,
	ErrPayloadTooLarge:    ErrCapacity,
}

// Error describes one failure of a container operation. Kind and Cond are
// sentinels from this package; Err is the underlying cause, if any.
type Error struct {
	Kind   error
	Cond   error
	Path   string
	Chunk  int // valid only when HasChunk is set
	Detail string
	Err    error

	HasChunk bool
}

func newError(cond error, format string, args ...any) *Error {
	kind, ok := conditionKind[cond]
	if !ok {
		panic("dtk: unregistered error condition: " + cond.Error())
	}
	e := &Error{Kind: kind, Cond: cond}
	if format != "" {
		e.Detail = fmt.Sprintf(format, args...)
	}
	return e
}

func (e *Error) at(path string) *Error {
	e.Path = path
	return e
}

func (e *Error) chunk(index int) *Error {
	e.Chunk = index
	e.HasChunk = true
	return e
}

func (e *Error) wrap(err error) *Error {
	e.Err = err
	return e
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Path != "" {
		b.WriteString(e.Path)
		b.WriteString(": ")
	}
	b.WriteString(e.Cond.Error())
	if e.HasChunk {
		fmt.Fprintf(&b, " (chunk %d)", e.Chunk)
	}
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() []error {
	errs := []error{e.Cond, e.Kind}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// KindOf returns the kind sentinel of err, or nil if err did not originate in
// this package.
func KindOf(err error) error {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return nil
}

// withPath stamps path onto err when it is a package error without one.
func withPath(err error, path string) error {
	var e *Error
	if errors.As(err, &e) && e.Path == "" {
		e.Path = path
	}
	return err
}
