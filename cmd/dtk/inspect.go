package main

import (
	"context"
	"fmt"
	"io"

	"github.com/goccy/go-json"
	"github.com/samcharles93/dtk/pkg/dtk"
	"github.com/urfave/cli/v3"
)

type inspectReport struct {
	Path     string          `json:"path"`
	Size     int64           `json:"size"`
	Header   int             `json:"header_size"`
	Metadata dtk.Metadata    `json:"metadata"`
	Chunks   []dtk.ChunkInfo `json:"chunks"`
}

func inspectCmd() *cli.Command {
	var asJSON bool

	return &cli.Command{
		Name:      "inspect",
		Usage:     "Show the header and chunk table of a container without decompressing it",
		ArgsUsage: "FILE",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "json", Usage: "print the report as JSON", Destination: &asJSON},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.NArg() != 1 {
				return usageError("dtk inspect [--json] FILE")
			}
			r, err := dtk.Open(cmd.Args().First())
			if err != nil {
				return failure(err)
			}
			rep := inspectReport{
				Path:     r.Path(),
				Size:     r.Size(),
				Header:   len(r.HeaderText()),
				Metadata: r.Metadata(),
				Chunks:   r.Chunks(),
			}

			w := cmd.Root().Writer
			if asJSON {
				out, err := json.MarshalIndent(rep, "", "  ")
				if err != nil {
					return failure(err)
				}
				_, _ = fmt.Fprintf(w, "%s\n", out)
				return nil
			}
			printReport(w, rep)
			return nil
		},
	}
}

func printReport(w io.Writer, rep inspectReport) {
	md := rep.Metadata
	compressed := "uncompressed"
	if md.Compressed {
		compressed = "compressed"
	}
	_, _ = fmt.Fprintf(w, "DTK Inspect: %s\n", rep.Path)
	_, _ = fmt.Fprintf(w, "Size:       %s (header %d bytes)\n", formatBytes(rep.Size), rep.Header)
	_, _ = fmt.Fprintf(w, "Version:    %d\n", md.Version)
	if md.Date != "" {
		_, _ = fmt.Fprintf(w, "Date:       %s\n", md.Date)
	}
	_, _ = fmt.Fprintf(w, "Author:     %s\n", orDash(md.Author))
	_, _ = fmt.Fprintf(w, "Tool:       %s\n", orDash(md.Tool))
	_, _ = fmt.Fprintf(w, "Engine:     %s (%s)\n", md.Engine, compressed)
	_, _ = fmt.Fprintf(w, "Byte count: %d\n", md.ByteCount)
	if md.SHA1 != "" {
		_, _ = fmt.Fprintf(w, "SHA1:       %s\n", md.SHA1)
	}
	if md.MD5 != "" {
		_, _ = fmt.Fprintf(w, "MD5:        %s\n", md.MD5)
	}

	_, _ = fmt.Fprintf(w, "\nChunks (%d):\n", len(rep.Chunks))
	_, _ = fmt.Fprintf(w, "  %-5s %-12s %12s %12s\n", "INDEX", "KIND", "OFFSET", "SIZE")
	for i, c := range rep.Chunks {
		kind := "simulation"
		if i > 0 {
			kind = fmt.Sprintf("node %d", i-1)
		}
		_, _ = fmt.Fprintf(w, "  %-5d %-12s %12d %12d\n", i, kind, c.Offset, c.Size)
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
