package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/mark3labs/ngrx-openapi-gen/internal/cli"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run returns the process exit code. It returns instead of exiting so the
// signal handler is released before the process ends.
func run(args []string, stdout, stderr io.Writer) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := cli.Execute(ctx, args, stdout, stderr); err != nil {
		fmt.Fprintf(stderr, "Failed to generate code: %v\n", err)
		return 1
	}
	return 0
}
