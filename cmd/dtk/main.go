package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/samcharles93/dtk/internal/logger"
	"github.com/urfave/cli/v3"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp().Run(ctx, os.Args); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(exitCode(err))
	}
}

func newApp() *cli.Command {
	g := &globals{}
	return &cli.Command{
		Name:  toolName,
		Usage: "Read, write and inspect DTK simulation containers",
		Flags: loggingFlags(g),
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			cfg, err := loadConfig(g.configPath, cmd.IsSet("config"))
			if err != nil {
				return ctx, cli.Exit("error: "+err.Error(), exitEnvironment)
			}
			g.cfg = cfg
			applyGlobalConfig(cmd, cfg, g)

			log, err := newLogger(cmd.Root().ErrWriter, g.logLevel, g.logFormat, g.debug)
			if err != nil {
				return ctx, usageError("%v", err)
			}
			return logger.WithContext(ctx, log), nil
		},
		// Exit codes are applied by main so the app can run inside tests.
		ExitErrHandler: func(context.Context, *cli.Command, error) {},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return cli.ShowAppHelp(cmd)
		},
		Commands: []*cli.Command{
			readCmd(),
			writeCmd(g),
			inspectCmd(),
			verifyCmd(),
			serveCmd(g),
			versionCmd(),
		},
	}
}
