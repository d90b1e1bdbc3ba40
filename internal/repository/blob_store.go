package repository

import (
	"context"
	"errors"
	"sync"
)

var ErrStoreNotReady = errors.New("blob store not ready")

// BlobStore is the key/value port every collection snapshot goes through.
// Get reports ok=false when the key has never been written.
type BlobStore interface {
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	Put(ctx context.Context, key string, value []byte) error
	Close() error
}

type memoryBlobStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

// NewMemoryBlobStore keeps blobs in process memory only.
func NewMemoryBlobStore() BlobStore {
	return &memoryBlobStore{blobs: map[string][]byte{}}
}

func (s *memoryBlobStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.blobs[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

func (s *memoryBlobStore) Put(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	s.blobs[key] = append([]byte(nil), value...)
	s.mu.Unlock()
	return nil
}

func (s *memoryBlobStore) Close() error { return nil }
