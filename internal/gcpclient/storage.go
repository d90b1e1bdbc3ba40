package gcpclient

import (
	"context"
	"fmt"
	"log"

	"cloud.google.com/go/storage"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
)

// NewStorageClient builds a Cloud Storage client from an explicit service
// account file, falling back to application default credentials.
func NewStorageClient(ctx context.Context, credentialsFile string) (*storage.Client, error) {
	if credentialsFile != "" {
		log.Printf("[gcp] storage credentials from file=%s", credentialsFile)
		return storage.NewClient(ctx, option.WithCredentialsFile(credentialsFile))
	}
	creds, err := google.FindDefaultCredentials(ctx, storage.ScopeReadWrite)
	if err != nil {
		return nil, fmt.Errorf("find default credentials: %w", err)
	}
	log.Printf("[gcp] storage credentials from adc project=%s", creds.ProjectID)
	return storage.NewClient(ctx, option.WithCredentials(creds))
}
