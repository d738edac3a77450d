// r66client - a command-line client for OpenR66 file transfer partners.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"r66client/cmd"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)

	err := cmd.Execute(ctx, os.Args[1:])
	cancel()
	if err != nil {
		fmt.Fprintf(os.Stderr, "r66client: %v\n", err)
		os.Exit(cmd.ExitCode(err))
	}
}
