// Package imagestore keeps listing photos in a Firebase Storage bucket.
package imagestore

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"path"
	"strings"
	"sync"

	"cloud.google.com/go/storage"
	"github.com/google/uuid"
)

// Uploader stores one image and returns a URL clients can fetch it from.
type Uploader interface {
	Upload(ctx context.Context, name, contentType string, data []byte) (string, error)
}

// DownloadURL builds the tokenised Firebase Storage URL for an object.
func DownloadURL(bucket, objectPath, token string) string {
	return fmt.Sprintf("https://firebasestorage.googleapis.com/v0/b/%s/o/%s?alt=media&token=%s",
		bucket, url.PathEscape(objectPath), token)
}

// ObjectPath places an upload under prefix with a random name, keeping the
// original extension.
func ObjectPath(prefix, name, id string) string {
	ext := strings.ToLower(path.Ext(name))
	return strings.TrimSuffix(prefix, "/") + "/" + id + ext
}

type gcsUploader struct {
	client *storage.Client
	bucket string
	prefix string
}

func NewGCSUploader(client *storage.Client, bucket, prefix string) Uploader {
	if prefix == "" {
		prefix = "listings"
	}
	return &gcsUploader{client: client, bucket: bucket, prefix: prefix}
}

func (u *gcsUploader) Upload(ctx context.Context, name, contentType string, data []byte) (string, error) {
	token := uuid.NewString()
	objectPath := ObjectPath(u.prefix, name, uuid.NewString())
	w := u.client.Bucket(u.bucket).Object(objectPath).NewWriter(ctx)
	w.ContentType = contentType
	w.Metadata = map[string]string{
		"firebaseStorageDownloadTokens": token,
	}
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("write %s: %w", objectPath, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("close %s: %w", objectPath, err)
	}
	log.Printf("[imagestore] uploaded object=%s bytes=%d", objectPath, len(data))
	return DownloadURL(u.bucket, objectPath, token), nil
}

// memoryUploader keeps images in process and hands out mem:// references.
type memoryUploader struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func NewMemoryUploader() Uploader {
	return &memoryUploader{objects: map[string][]byte{}}
}

func (u *memoryUploader) Upload(ctx context.Context, name, contentType string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	key := ObjectPath("listings", name, uuid.NewString())
	u.mu.Lock()
	u.objects[key] = append([]byte(nil), data...)
	u.mu.Unlock()
	return "mem://" + key, nil
}
