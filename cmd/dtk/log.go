package main

import (
	"io"
	"log/slog"
	"os"

	"github.com/samcharles93/dtk/internal/logger"
)

// newLogger builds the command logger. With no explicit format, terminals get
// colored pretty output and everything else gets slog text.
func newLogger(w io.Writer, level, format string, debug bool) (logger.Logger, error) {
	lvl, err := logger.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	if debug {
		lvl = slog.LevelDebug
	}

	tty := false
	if f, ok := w.(*os.File); ok {
		tty = isTerminal(f)
	}

	f := logger.FormatText
	if format != "" {
		if f, err = logger.ParseFormat(format); err != nil {
			return nil, err
		}
	} else if tty {
		f = logger.FormatPretty
	}
	return logger.New(w, logger.Options{Level: lvl, Format: f, Color: tty}), nil
}
