// Package main is the entry point for the boardsync CLI.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/runoshun/boardsync/internal/cli"
)

// version is set at build time using -ldflags.
var version = "dev"

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// run builds the root command; the container is created from flags once
// they are parsed.
func run(args []string) error {
	rootCmd := cli.NewRootCommand(nil, version)
	rootCmd.SetArgs(args)
	return rootCmd.ExecuteContext(context.Background())
}
