package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/mealmitra/mealmitra-backend/internal/app"
	"github.com/mealmitra/mealmitra-backend/internal/config"
	"github.com/mealmitra/mealmitra-backend/internal/repository"
	"github.com/mealmitra/mealmitra-backend/internal/service"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("seed failed: %v", err)
	}
}

// run overwrites every collection with the demo dataset. Stats are rebuilt
// by the API on its next start.
func run() (err error) {
	ctx := context.Background()
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.StoreDriver == config.DriverMemory {
		log.Printf("STORE_DRIVER=memory; nothing to seed")
		return nil
	}
	store, err := app.OpenBlobStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := store.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close store: %w", cerr)
		}
	}()

	state := repository.NewStateRepository(store, cfg.KeyPrefix)
	if err := service.Seed(ctx, state, time.Now()); err != nil {
		return fmt.Errorf("seed: %w", err)
	}
	log.Printf("seed complete driver=%s prefix=%s", cfg.StoreDriver, cfg.KeyPrefix)
	return nil
}
