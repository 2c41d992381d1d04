package main

import (
	"context"
	"fmt"
	"os"
	"runtime/debug"

	"github.com/chosen8823/ghost-in-the-shell-sub000/cmd/scorch/internal/cli"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "Fatal error: %v\n", r)
			if globalFlags.IsVerbose() {
				fmt.Fprintf(os.Stderr, "Stack trace:\n%s\n", debug.Stack())
			} else {
				fmt.Fprintln(os.Stderr, "Run with --verbose for stack trace")
			}
			os.Exit(cli.ExitError)
		}
	}()

	if err := Execute(context.Background()); err != nil {
		os.Exit(cli.HandleError(rootCmd, err))
	}
	os.Exit(cli.ExitSuccess)
}
