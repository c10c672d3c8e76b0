package archive

import (
	"context"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/Azure/azure-storage-blob-go/azblob"
)

// AzureConfig configures an Azure Blob Storage backup store
type AzureConfig struct {
	AccountName   string `mapstructure:"account_name" yaml:"account_name"`
	AccountKey    string `mapstructure:"account_key" yaml:"account_key"`
	ContainerName string `mapstructure:"container_name" yaml:"container_name"`
	Prefix        string `mapstructure:"prefix" yaml:"prefix"`
}

// Validate checks the Azure store configuration
func (ac *AzureConfig) Validate() error {
	if ac.AccountName == "" {
		return fmt.Errorf("azure account name is required")
	}
	if ac.AccountKey == "" {
		return fmt.Errorf("azure account key is required")
	}
	if ac.ContainerName == "" {
		return fmt.Errorf("azure container name is required")
	}
	return nil
}

// AzureStore implements Store for Azure Blob Storage
type AzureStore struct {
	containerURL azblob.ContainerURL
	prefix       string
}

// NewAzureStore creates a new AzureStore instance
func NewAzureStore(config *AzureConfig) (*AzureStore, error) {
	if config == nil {
		return nil, fmt.Errorf("azure store configuration is required")
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	credential, err := azblob.NewSharedKeyCredential(config.AccountName, config.AccountKey)
	if err != nil {
		return nil, NewArchiveError("resolve", config.ContainerName, "failed to create Azure credential", err)
	}

	pipeline := azblob.NewPipeline(credential, azblob.PipelineOptions{})

	serviceURL, err := url.Parse(fmt.Sprintf("https://%s.blob.core.windows.net", config.AccountName))
	if err != nil {
		return nil, NewArchiveError("resolve", config.ContainerName, "failed to parse Azure service URL", err)
	}

	containerURL := azblob.NewServiceURL(*serviceURL, pipeline).NewContainerURL(config.ContainerName)

	return &AzureStore{
		containerURL: containerURL,
		prefix:       config.Prefix,
	}, nil
}

// Fetch downloads the archive for the given date and domain into destDir
func (as *AzureStore) Fetch(ctx context.Context, date, domain, destDir string) (string, error) {
	for _, name := range CandidateNames(date, domain) {
		key := as.prefix + name
		blobURL := as.containerURL.NewBlockBlobURL(key)

		response, err := blobURL.Download(ctx, 0, azblob.CountToEnd,
			azblob.BlobAccessConditions{}, false, azblob.ClientProvidedKeyOptions{})
		if err != nil {
			if isAzureNotFound(err) {
				continue
			}
			return "", NewArchiveError("fetch", key, "failed to download archive from Azure", err)
		}

		body := response.Body(azblob.RetryReaderOptions{MaxRetryRequests: 3})
		destPath := filepath.Join(destDir, name)
		if err := writeStream(destPath, body); err != nil {
			body.Close()
			return "", NewArchiveError("fetch", key, "failed to write archive to disk", err)
		}
		body.Close()
		return destPath, nil
	}

	return "", NewArchiveError("resolve", BaseName(date, domain),
		fmt.Sprintf("no archive found in container %s", as.containerURL.String()), nil)
}

// List returns all backup archives present in the container prefix
func (as *AzureStore) List(ctx context.Context) ([]Entry, error) {
	var entries []Entry

	for marker := (azblob.Marker{}); marker.NotDone(); {
		listBlob, err := as.containerURL.ListBlobsFlatSegment(ctx, marker,
			azblob.ListBlobsSegmentOptions{Prefix: as.prefix})
		if err != nil {
			return nil, NewArchiveError("resolve", as.containerURL.String(), "failed to list archives in Azure", err)
		}
		marker = listBlob.NextMarker

		for _, blob := range listBlob.Segment.BlobItems {
			name := strings.TrimPrefix(blob.Name, as.prefix)
			if !strings.Contains(name, ".postgres-backup.") {
				continue
			}
			var size int64
			if blob.Properties.ContentLength != nil {
				size = *blob.Properties.ContentLength
			}
			entries = append(entries, Entry{
				Name:         name,
				Size:         size,
				LastModified: blob.Properties.LastModified,
			})
		}
	}

	return entries, nil
}

// isAzureNotFound reports whether an Azure error means the blob does not exist
func isAzureNotFound(err error) bool {
	if storageErr, ok := err.(azblob.StorageError); ok {
		return storageErr.ServiceCode() == azblob.ServiceCodeBlobNotFound
	}
	return false
}
