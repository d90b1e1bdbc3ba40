package app

import (
	"context"
	"testing"

	"github.com/mealmitra/mealmitra-backend/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenBlobStoreMemory(t *testing.T) {
	ctx := context.Background()
	store, err := OpenBlobStore(ctx, &config.Config{StoreDriver: config.DriverMemory})
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Put(ctx, "k", []byte("v")))
	got, ok, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("v"), got)
}

func TestOpenBlobStoreBadgerInMemory(t *testing.T) {
	store, err := OpenBlobStore(context.Background(), &config.Config{StoreDriver: config.DriverBadger})
	require.NoError(t, err)
	assert.NoError(t, store.Close())
}

func TestOpenBlobStoreUnknown(t *testing.T) {
	_, err := OpenBlobStore(context.Background(), &config.Config{StoreDriver: "etcd"})
	assert.Error(t, err)
}

func TestOpenUploaderDisabled(t *testing.T) {
	u, closeFn, err := OpenUploader(context.Background(), &config.Config{})
	require.NoError(t, err)
	assert.Nil(t, u)
	assert.NoError(t, closeFn())
}
