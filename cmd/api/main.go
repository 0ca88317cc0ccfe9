package main

import (
	"context"
	"log"

	"dbmlviewer/internal/config"
	"dbmlviewer/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if err := server.Run(context.Background(), cfg); err != nil {
		log.Fatal(err)
	}
}
