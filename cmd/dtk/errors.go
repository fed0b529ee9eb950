package main

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/samcharles93/dtk/pkg/dtk"
	"github.com/urfave/cli/v3"
)

// Exit codes keep bad input apart from a broken environment.
const (
	exitBadInput    = 1
	exitEnvironment = 2
	exitUsage       = 64
)

// classify returns the exit code for an error raised while doing the work.
func classify(err error) int {
	switch dtk.KindOf(err) {
	case dtk.ErrIO:
		return exitEnvironment
	case nil:
		if errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrPermission) {
			return exitEnvironment
		}
	}
	return exitBadInput
}

// exitCode is the process status for an error returned by the app. Errors
// that were not raised through failure come from argument parsing.
func exitCode(err error) int {
	var ec cli.ExitCoder
	if errors.As(err, &ec) {
		return ec.ExitCode()
	}
	return exitUsage
}

// failure turns err into a one-line diagnostic carrying its exit code.
func failure(err error) error {
	return cli.Exit("error: "+err.Error(), classify(err))
}

func usageError(format string, args ...any) error {
	return cli.Exit("usage: "+fmt.Sprintf(format, args...), exitUsage)
}
