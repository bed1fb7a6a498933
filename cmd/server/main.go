// Command server runs only the HTTP server. Deployments that do not need
// the CLI build this binary; cmd/foodie has every command.
package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/shashiranjanraj/foodie/internal/server"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := server.Start(ctx); err != nil {
		log.Fatal(err)
	}
}
