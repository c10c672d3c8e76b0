package archive

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// GCSConfig configures a Google Cloud Storage backup store
type GCSConfig struct {
	Bucket          string `mapstructure:"bucket" yaml:"bucket"`
	Prefix          string `mapstructure:"prefix" yaml:"prefix"`
	CredentialsPath string `mapstructure:"credentials_path" yaml:"credentials_path"`
}

// Validate checks the GCS store configuration
func (gc *GCSConfig) Validate() error {
	if gc.Bucket == "" {
		return fmt.Errorf("gcs bucket is required")
	}
	return nil
}

// GCSStore implements Store for Google Cloud Storage
type GCSStore struct {
	client *storage.Client
	bucket string
	prefix string
}

// NewGCSStore creates a new GCSStore instance
func NewGCSStore(ctx context.Context, config *GCSConfig) (*GCSStore, error) {
	if config == nil {
		return nil, fmt.Errorf("gcs store configuration is required")
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	var client *storage.Client
	var err error

	if config.CredentialsPath != "" {
		client, err = storage.NewClient(ctx, option.WithCredentialsFile(config.CredentialsPath))
	} else {
		// Use default credentials from environment
		client, err = storage.NewClient(ctx)
	}
	if err != nil {
		return nil, NewArchiveError("resolve", config.Bucket, "failed to create GCS client", err)
	}

	return &GCSStore{
		client: client,
		bucket: config.Bucket,
		prefix: config.Prefix,
	}, nil
}

// Fetch downloads the archive for the given date and domain into destDir
func (gs *GCSStore) Fetch(ctx context.Context, date, domain, destDir string) (string, error) {
	bucket := gs.client.Bucket(gs.bucket)

	for _, name := range CandidateNames(date, domain) {
		key := gs.prefix + name

		reader, err := bucket.Object(key).NewReader(ctx)
		if err != nil {
			if errors.Is(err, storage.ErrObjectNotExist) {
				continue
			}
			return "", NewArchiveError("fetch", key, "failed to open archive in GCS", err)
		}

		destPath := filepath.Join(destDir, name)
		if err := writeStream(destPath, reader); err != nil {
			reader.Close()
			return "", NewArchiveError("fetch", key, "failed to write archive to disk", err)
		}
		reader.Close()
		return destPath, nil
	}

	return "", NewArchiveError("resolve", BaseName(date, domain),
		fmt.Sprintf("no archive found in gs://%s/%s", gs.bucket, gs.prefix), nil)
}

// List returns all backup archives present in the bucket prefix
func (gs *GCSStore) List(ctx context.Context) ([]Entry, error) {
	it := gs.client.Bucket(gs.bucket).Objects(ctx, &storage.Query{Prefix: gs.prefix})

	var entries []Entry
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, NewArchiveError("resolve", gs.bucket, "failed to list archives in GCS", err)
		}

		name := strings.TrimPrefix(attrs.Name, gs.prefix)
		if !strings.Contains(name, ".postgres-backup.") {
			continue
		}
		entries = append(entries, Entry{
			Name:         name,
			Size:         attrs.Size,
			LastModified: attrs.Updated,
		})
	}

	return entries, nil
}
