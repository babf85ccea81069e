package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/specialistvlad/procgrid/internal/cli"
)

// main is the entrypoint for the procgrid application.
func main() {
	// Use a minimal logger until the full one is configured.
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// The real main function handles errors and exit codes.
	if err := run(ctx, os.Stdout, os.Stderr, os.Args[1:]); err != nil {
		var exitErr *cli.ExitError
		if errors.As(err, &exitErr) {
			fmt.Fprintln(os.Stderr, exitErr.Message)
			os.Exit(exitErr.Code)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// run encapsulates the main application logic for easier testing and error handling.
func run(ctx context.Context, outW, errW io.Writer, args []string) (err error) {
	// A panic while assembling is reported as an error rather than a crash.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("application startup panicked | %v", r)
		}
	}()

	return cli.Execute(ctx, args, outW, errW)
}
