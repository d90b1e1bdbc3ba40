// Package app assembles the process-level dependencies shared by the
// commands.
package app

import (
	"context"
	"fmt"
	"log"
	"time"

	"cloud.google.com/go/storage"
	"github.com/mealmitra/mealmitra-backend/internal/config"
	"github.com/mealmitra/mealmitra-backend/internal/db"
	"github.com/mealmitra/mealmitra-backend/internal/gcpclient"
	"github.com/mealmitra/mealmitra-backend/internal/imagestore"
	"github.com/mealmitra/mealmitra-backend/internal/repository"
)

const dbConnectTimeout = time.Minute

// OpenBlobStore returns the store selected by STORE_DRIVER. The caller
// closes it.
func OpenBlobStore(ctx context.Context, cfg *config.Config) (repository.BlobStore, error) {
	switch cfg.StoreDriver {
	case config.DriverMemory:
		log.Printf("[store] driver=memory; state is lost on exit")
		return repository.NewMemoryBlobStore(), nil
	case config.DriverBadger:
		log.Printf("[store] driver=badger path=%s", cfg.BadgerPath)
		return repository.OpenBadgerBlobStore(cfg.BadgerPath)
	case config.DriverMySQL:
		cctx, cancel := context.WithTimeout(ctx, dbConnectTimeout)
		defer cancel()
		conn, err := db.Connect(cctx, cfg, 2*time.Second)
		if err != nil {
			return nil, fmt.Errorf("connect db: %w", err)
		}
		if err := db.Migrate(conn); err != nil {
			return nil, fmt.Errorf("migrate: %w", err)
		}
		store := repository.NewGormBlobStore(nil)
		store.SetDB(conn)
		log.Printf("[store] driver=mysql db=%s", cfg.DBName)
		return store, nil
	case config.DriverGCS:
		client, err := gcpclient.NewStorageClient(ctx, cfg.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("storage client: %w", err)
		}
		log.Printf("[store] driver=gcs bucket=%s prefix=%s", cfg.StorageBucket, cfg.StateObjectPrefix)
		return &closingStore{BlobStore: repository.NewGCSBlobStore(client, cfg.StorageBucket, cfg.StateObjectPrefix), client: client}, nil
	}
	return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
}

// OpenUploader returns a nil Uploader when no bucket is configured.
func OpenUploader(ctx context.Context, cfg *config.Config) (imagestore.Uploader, func() error, error) {
	if cfg.StorageBucket == "" {
		return nil, func() error { return nil }, nil
	}
	client, err := gcpclient.NewStorageClient(ctx, cfg.CredentialsFile)
	if err != nil {
		return nil, nil, fmt.Errorf("storage client: %w", err)
	}
	return imagestore.NewGCSUploader(client, cfg.StorageBucket, "listings"), client.Close, nil
}

type closingStore struct {
	repository.BlobStore
	client *storage.Client
}

func (s *closingStore) Close() error {
	return s.client.Close()
}
