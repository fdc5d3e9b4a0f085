// Package main provides the entrypoint for the starseeker command line tool.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/starseeker/starseeker/cmd/starseeker/cli"
	"github.com/starseeker/starseeker/internal/network"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cli.New(Version, BuildTime).Execute(ctx, os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(exitCode(err))
	}
}

// exitCode separates usage and input mistakes from failures of the network or storage.
func exitCode(err error) int {
	var validation *network.ValidationError
	if errors.As(err, &validation) {
		return 2
	}
	return 1
}
