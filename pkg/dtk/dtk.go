// Package dtk implements the DTK serialized population container.
//
// A container is a single file holding a JSON metadata header followed by one
// or more independently compressed chunks. Chunk 0 always carries the
// simulation state and chunks 1..N carry one node each.
//
//	offset 0       : "IDTK"
//	offset 4       : header size, 12 ASCII digits, right-justified
//	offset 16      : header JSON, exactly header-size bytes
//	offset 16+hs   : chunk bytes, back to back, sizes from metadata.chunksizes
//
// Readers hold no file handle between calls and never cache chunk data.
// Writers are not coordinated: callers writing the same path concurrently must
// serialize themselves.
package dtk

// DTK global constants must never change.
const (
	// Magic is the file magic for all DTK containers.
	Magic = "IDTK"

	// MagicSize is the length of the file magic.
	MagicSize = 4

	// SizeFieldWidth is the width of the right-justified decimal header size field.
	SizeFieldWidth = 12

	// PreambleSize is the number of bytes before the header text.
	PreambleSize = MagicSize + SizeFieldWidth

	// CurrentVersion is the highest metadata version this package understands.
	CurrentVersion = 2

	// LegacyVersion is the single-chunk metadata version.
	LegacyVersion = 1

	// DateLayout is the strftime "%a %b %d %H:%M:%S %Y" form existing files
	// carry, e.g. "Thu Oct 13 18:05:34 2016".
	DateLayout = "Mon Jan 02 15:04:05 2006"

	// Unknown is recorded for author/tool when the caller does not supply one.
	Unknown = "unknown"
)
