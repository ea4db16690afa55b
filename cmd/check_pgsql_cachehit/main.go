package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"pgcachehit/internal/app"
)

func main() {
	// a supervisor timeout (SIGTERM) cancels the fetch and yields UNKNOWN
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	code := app.New().Run(ctx, os.Args[1:])

	stop()
	os.Exit(code)
}
