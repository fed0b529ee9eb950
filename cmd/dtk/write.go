package main

import (
	"context"
	"fmt"

	"github.com/samcharles93/dtk/internal/logger"
	"github.com/samcharles93/dtk/pkg/dtk"
	"github.com/urfave/cli/v3"
)

type writeFlags struct {
	author       string
	tool         string
	uncompressed bool
	verify       bool
	engine       string
	hash         bool
	fallback     bool
	legacy       bool
}

func (w writeFlags) options(log logger.Logger) (dtk.Options, error) {
	engine, err := dtk.ParseEngine(w.engine)
	if err != nil {
		return dtk.Options{}, err
	}
	return dtk.Options{
		Engine:   engine,
		Compress: !w.uncompressed,
		Author:   w.author,
		Tool:     w.tool,
		Hash:     w.hash,
		Verify:   w.verify,
		Fallback: w.fallback,
		Legacy:   w.legacy,
		Logger:   log,
	}, nil
}

func writeCmd(g *globals) *cli.Command {
	var wf writeFlags

	return &cli.Command{
		Name:      "write",
		Usage:     "Write a container from a simulation JSON file and node JSON files",
		ArgsUsage: "FILE SIMULATION NODE...",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "author",
				Aliases:     []string{"a"},
				Usage:       "author name for metadata",
				Value:       defaultAuthor(),
				Destination: &wf.author,
			},
			&cli.StringFlag{
				Name:        "tool",
				Aliases:     []string{"t"},
				Usage:       "tool name for metadata",
				Value:       toolName,
				Destination: &wf.tool,
			},
			&cli.BoolFlag{
				Name:        "uncompressed",
				Aliases:     []string{"u"},
				Usage:       "do not compress chunks",
				Destination: &wf.uncompressed,
			},
			&cli.BoolFlag{
				Name:        "verify",
				Aliases:     []string{"v"},
				Usage:       "reject simulation or node files that are not valid JSON",
				Destination: &wf.verify,
			},
			&cli.StringFlag{
				Name:        "engine",
				Aliases:     []string{"e"},
				Usage:       "compression engine (NONE, LZ4, SNAPPY)",
				Value:       dtk.EngineLZ4.String(),
				Destination: &wf.engine,
			},
			&cli.BoolFlag{
				Name:        "hash",
				Usage:       "record sha1, md5 and per-chunk BLAKE3 digests",
				Destination: &wf.hash,
			},
			&cli.BoolFlag{
				Name:        "fallback",
				Usage:       "use a weaker engine when a payload is too large for the selected one",
				Destination: &wf.fallback,
			},
			&cli.BoolFlag{
				Name:        "legacy",
				Usage:       "write a single-chunk version 1 container (no node files)",
				Destination: &wf.legacy,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			args := cmd.Args().Slice()
			switch {
			case wf.legacy && len(args) != 2:
				return usageError("dtk write --legacy [options] FILE SIMULATION")
			case !wf.legacy && len(args) < 3:
				return usageError("dtk write [options] FILE SIMULATION NODE...")
			}
			applyWriteConfig(cmd, g.cfg, &wf)

			log := logger.FromContext(ctx)
			opts, err := wf.options(log)
			if err != nil {
				return failure(err)
			}
			out, sim, nodes := args[0], args[1], args[2:]
			log.Info("writing container",
				"file", out,
				"simulation", sim,
				"nodes", nodes,
				"author", opts.Author,
				"tool", opts.Tool,
				"compress", opts.Compress,
				"verify", opts.Verify,
				"engine", opts.Engine.String(),
			)

			res, err := dtk.WriteFromFiles(out, sim, nodes, opts)
			if err != nil {
				return failure(err)
			}
			_, _ = fmt.Fprintf(cmd.Root().Writer, "%s: %d chunks, %d bytes, engine %s\n",
				res.Path, res.Metadata.ChunkCount, res.Size, res.Metadata.Engine)
			return nil
		},
	}
}
