package main

import (
	"context"
	"log"

	"github.com/intentscout/scoutctl/internal/config"
	"github.com/intentscout/scoutctl/internal/sandbox"
)

func main() {
	cfg, err := config.LoadSandbox()
	if err != nil {
		log.Fatal(err)
	}
	if err := sandbox.App(context.Background(), cfg); err != nil {
		log.Fatal(err)
	}
}
