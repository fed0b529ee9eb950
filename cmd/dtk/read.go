package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-json"
	"github.com/samcharles93/dtk/internal/logger"
	"github.com/samcharles93/dtk/pkg/dtk"
	"github.com/urfave/cli/v3"
)

type extractOptions struct {
	headerPath  string
	raw         bool
	unformatted bool
	prefix      string
}

func readCmd() *cli.Command {
	var opts extractOptions

	return &cli.Command{
		Name:      "read",
		Usage:     "Extract the simulation and node chunks of a container to files",
		ArgsUsage: "FILE",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "header",
				Usage:       "write the header to `FILE`",
				Destination: &opts.headerPath,
			},
			&cli.BoolFlag{
				Name:        "raw",
				Aliases:     []string{"r"},
				Usage:       "write chunks as stored, without decompressing",
				Destination: &opts.raw,
			},
			&cli.BoolFlag{
				Name:        "unformatted",
				Aliases:     []string{"u"},
				Usage:       "write decompressed JSON as stored, without indenting",
				Destination: &opts.unformatted,
			},
			&cli.StringFlag{
				Name:        "output",
				Aliases:     []string{"o"},
				Usage:       "output filename `PREFIX` (default: input without extension)",
				Destination: &opts.prefix,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.NArg() != 1 {
				return usageError("dtk read [options] FILE")
			}
			path := cmd.Args().First()
			log := logger.FromContext(ctx)

			r, err := dtk.Open(path)
			if err != nil {
				return failure(err)
			}
			md, err := json.Marshal(r.Metadata())
			if err != nil {
				return failure(err)
			}
			_, _ = fmt.Fprintf(cmd.Root().Writer, "File metadata: %s\n", md)

			files, err := extract(r, opts)
			if err != nil {
				return failure(err)
			}
			for _, f := range files {
				log.Info("wrote", "file", f)
			}
			return nil
		},
	}
}

// extract writes every chunk of r, and optionally its header, to files named
// after opts.prefix. It returns the files written in order.
func extract(r *dtk.Reader, opts extractOptions) ([]string, error) {
	prefix := opts.prefix
	if prefix == "" {
		path := r.Path()
		prefix = strings.TrimSuffix(path, filepath.Ext(path))
	}
	ext := "json"
	if opts.raw {
		ext = "bin"
	}

	var written []string
	if opts.headerPath != "" {
		text, err := json.MarshalIndent(struct {
			Metadata dtk.Metadata `json:"metadata"`
		}{r.Metadata()}, "", "  ")
		if err != nil {
			return written, err
		}
		if err := os.WriteFile(opts.headerPath, append(text, '\n'), 0o644); err != nil {
			return written, err
		}
		written = append(written, opts.headerPath)
	}

	for i := range r.ChunkCount() {
		data, err := chunkOutput(r, i, opts)
		if err != nil {
			return written, err
		}
		name := fmt.Sprintf("%s.sim.%s", prefix, ext)
		if i > 0 {
			name = fmt.Sprintf("%s.node-%d.%s", prefix, i, ext)
		}
		if err := os.WriteFile(name, data, 0o644); err != nil {
			return written, err
		}
		written = append(written, name)
	}
	return written, nil
}

func chunkOutput(r *dtk.Reader, index int, opts extractOptions) ([]byte, error) {
	if opts.raw {
		return r.Chunk(index)
	}
	if opts.unformatted {
		return r.Contents(index)
	}
	contents, err := r.Contents(index)
	if err != nil {
		return nil, err
	}
	// Indent the stored text rather than re-encoding so key order survives.
	var buf bytes.Buffer
	if err := json.Indent(&buf, contents, "", "  "); err != nil {
		return nil, fmt.Errorf("%s (chunk %d): %w: %w", r.Path(), index, dtk.ErrJSONParse, err)
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}
