// Package cli provides the command-line interface for TradeLens
package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// Execute runs the command tree with args. The context handed to every
// command is cancelled on SIGINT or SIGTERM.
func Execute(ctx context.Context, args []string) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd := NewRootCmd()
	rootCmd.SetArgs(args)
	return rootCmd.ExecuteContext(ctx)
}

// Run starts the CLI application and returns the process exit code.
func Run() int {
	if err := Execute(context.Background(), os.Args[1:]); err != nil {
		return 1
	}
	return 0
}
