package main

import (
	"os"

	"github.com/samcharles93/dtk/pkg/dtk"
	"github.com/urfave/cli/v3"
)

const toolName = "dtk"

// globals holds the root flags and the loaded config; each App gets its own.
type globals struct {
	configPath string
	logLevel   string
	logFormat  string
	debug      bool
	cfg        Config
}

func loggingFlags(g *globals) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "config",
			Usage:       "path to config.yaml",
			Value:       configPath(),
			Destination: &g.configPath,
		},
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "log level (debug, info, warn, error)",
			Value:       "info",
			Destination: &g.logLevel,
		},
		&cli.StringFlag{
			Name:        "log-format",
			Usage:       "log format (pretty, text, json); pretty on a terminal, text otherwise",
			Destination: &g.logFormat,
		},
		&cli.BoolFlag{
			Name:        "debug",
			Usage:       "enable debug logging (shorthand for --log-level=debug)",
			Destination: &g.debug,
		},
	}
}

// defaultAuthor is the metadata author used when none is given.
func defaultAuthor() string {
	for _, k := range []string{"USER", "USERNAME"} {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return dtk.Unknown
}
