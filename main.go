package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/kohaven/medley/internal"
	homedir "github.com/mitchellh/go-homedir"
)

// main loads the user's Medley configuration and runs the server until
// an interrupt/termination signal arrives.
func main() {
	configPath := flag.String("config", defaultConfigPath(), "path to the YAML configuration file")
	flag.Parse()

	config := internal.MedleyConfig{}
	if err := config.LoadFromFile(*configPath); err != nil {
		log.Fatalf("Failed to load Medley configuration - %v\n", err.Error())
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := internal.New(config).Run(ctx); err != nil {
		log.Fatalf("Medley stopped - %v\n", err.Error())
	}
}

func defaultConfigPath() string {
	home, err := homedir.Dir()
	if err != nil {
		return "medley.yaml"
	}

	return filepath.Join(home, ".config", "medley", "medley.yaml")
}
