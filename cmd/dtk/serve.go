package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"
	"github.com/samcharles93/dtk/internal/api"
	"github.com/samcharles93/dtk/internal/logger"
	"github.com/urfave/cli/v3"
)

func serveCmd(g *globals) *cli.Command {
	var (
		addr        string
		root        string
		readTimeout time.Duration
	)

	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the containers in a directory over a read-only HTTP API",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "addr",
				Usage:       "listen address",
				Value:       "127.0.0.1:8080",
				Destination: &addr,
			},
			&cli.StringFlag{
				Name:        "root",
				Usage:       "directory holding .dtk files",
				Value:       ".",
				Destination: &root,
			},
			&cli.DurationFlag{
				Name:        "read-timeout",
				Usage:       "read header timeout",
				Value:       30 * time.Second,
				Destination: &readTimeout,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			applyServeConfig(cmd, g.cfg, &addr, &root)
			log := logger.FromContext(ctx)

			st, err := os.Stat(root)
			if err != nil {
				return failure(err)
			}
			if !st.IsDir() {
				return usageError("--root %s is not a directory", root)
			}

			e := newEcho(root, log)
			log.Info("starting server", "address", addr, "root", root)
			sc := echo.StartConfig{
				Address: addr,
				BeforeServeFunc: func(srv *http.Server) error {
					srv.ReadHeaderTimeout = readTimeout
					return nil
				},
			}
			if err := sc.Start(ctx, e); err != nil {
				return cli.Exit(fmt.Sprintf("error: serve: %v", err), exitEnvironment)
			}
			return nil
		},
	}
}

func newEcho(root string, log logger.Logger) *echo.Echo {
	e := echo.New()
	e.Use(middleware.RequestLogger())
	e.Use(middleware.Recover())
	api.NewServer(root, log.With("component", "api")).Register(e)
	return e
}
