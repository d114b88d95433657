// Package main provides the bibfill CLI entry point.
package main

import (
	"context"
	"errors"
	"os"

	"github.com/charmbracelet/fang"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	root := newRootCmd()

	// fang cancels the context on interrupt so an interrupted run still
	// writes the records merged so far.
	err := fang.Execute(
		context.Background(),
		root,
		fang.WithVersion(Version),
		fang.WithNotifySignal(os.Interrupt),
	)
	if err != nil {
		var ee *exitError
		if errors.As(err, &ee) {
			os.Exit(ee.code)
		}
		os.Exit(ExitError)
	}
}
