package main

import (
	"context"
	"os"

	"github.com/meikuraledutech/flowgraph/log"
	"github.com/meikuraledutech/flowgraph/registry"
)

func main() {
	cfg, err := loadConfigFromEnv()
	if err != nil {
		log.Errorf("%v", err)
		os.Exit(1)
	}
	log.SetLevel(cfg.LogLevel)

	store, closeStore, err := openStore(context.Background(), cfg)
	if err != nil {
		log.Errorf("open store: %v", err)
		os.Exit(1)
	}
	defer closeStore()

	if err := store.CreateSchema(context.Background()); err != nil {
		log.Errorf("create schema: %v", err)
		os.Exit(1)
	}

	app := newApp(store, registry.New())
	log.Infof("listening on %s", cfg.ListenAddr)
	if err := app.Listen(cfg.ListenAddr); err != nil {
		log.Errorf("listen: %v", err)
	}
}
