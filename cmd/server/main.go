// Package main implements the entry point for the Lectern API server,
// which turns reading-task pages in a Notion workspace into generated
// study artifacts via an LLM pipeline.
package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := newApplication(ctx)
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}

	if err := app.run(ctx); err != nil {
		log.Fatalf("Server exited with error: %v", err)
	}
}
