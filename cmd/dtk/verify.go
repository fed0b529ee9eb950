package main

import (
	"context"
	"fmt"

	"github.com/samcharles93/dtk/internal/logger"
	"github.com/samcharles93/dtk/pkg/dtk"
	"github.com/urfave/cli/v3"
)

func verifyCmd() *cli.Command {
	var strict bool

	return &cli.Command{
		Name:      "verify",
		Usage:     "Check file length, recorded digests, and that every chunk decodes",
		ArgsUsage: "FILE",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "json", Usage: "also require every chunk to be valid JSON", Destination: &strict},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.NArg() != 1 {
				return usageError("dtk verify [--json] FILE")
			}
			r, err := dtk.Open(cmd.Args().First())
			if err != nil {
				return failure(err)
			}
			if err := verifyContainer(ctx, r, strict); err != nil {
				return failure(err)
			}
			_, _ = fmt.Fprintf(cmd.Root().Writer, "%s: ok (%d chunks)\n", r.Path(), r.ChunkCount())
			return nil
		},
	}
}

func verifyContainer(ctx context.Context, r *dtk.Reader, strict bool) error {
	log := logger.FromContext(ctx)
	if err := r.Verify(); err != nil {
		return err
	}
	for i := range r.ChunkCount() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if strict {
			if _, err := r.Object(i); err != nil {
				return err
			}
		} else if _, err := r.Contents(i); err != nil {
			return err
		}
		log.Debug("chunk ok", "chunk", i)
	}
	return nil
}
