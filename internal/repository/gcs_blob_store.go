package repository

import (
	"context"
	"errors"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
)

type gcsBlobStore struct {
	client *storage.Client
	bucket string
	prefix string
}

// NewGCSBlobStore stores each key as the object <prefix><key>.json.
// The caller keeps ownership of client.
func NewGCSBlobStore(client *storage.Client, bucket, prefix string) BlobStore {
	return &gcsBlobStore{client: client, bucket: bucket, prefix: prefix}
}

func (s *gcsBlobStore) object(key string) *storage.ObjectHandle {
	return s.client.Bucket(s.bucket).Object(s.prefix + key + ".json")
}

func (s *gcsBlobStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	r, err := s.object(key).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("open gs://%s/%s%s.json: %w", s.bucket, s.prefix, key, err)
	}
	defer r.Close()
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

func (s *gcsBlobStore) Put(ctx context.Context, key string, value []byte) error {
	w := s.object(key).NewWriter(ctx)
	w.ContentType = "application/json"
	w.CacheControl = "no-cache"
	if _, err := w.Write(value); err != nil {
		_ = w.Close()
		return err
	}
	return w.Close()
}

func (s *gcsBlobStore) Close() error { return nil }
