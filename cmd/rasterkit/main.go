package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
)

func main() {
	// A missing .env is the common case.
	_ = godotenv.Load(".env")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := newRootCommand()
	if err := cmd.ExecuteContext(ctx); err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, formatError(err))
		}
		stop()
		os.Exit(1)
	}
}

// formatError prefixes err with its classification when it has one.
func formatError(err error) string {
	var kinded interface{ ErrorKind() string }
	if errors.As(err, &kinded) {
		return fmt.Sprintf("%s error: %v", kinded.ErrorKind(), err)
	}
	return err.Error()
}
