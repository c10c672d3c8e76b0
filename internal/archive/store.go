package archive

import (
	"context"
	"fmt"
	"time"
)

// StoreProviderType identifies a backup store backend
type StoreProviderType string

const (
	StoreProviderLocal StoreProviderType = "local"
	StoreProviderS3    StoreProviderType = "s3"
	StoreProviderGCS   StoreProviderType = "gcs"
	StoreProviderAzure StoreProviderType = "azure"
)

// Entry describes one archive available in a backup store
type Entry struct {
	Name         string
	Size         int64
	LastModified time.Time
}

// Store retrieves dated backup archives from a backup store. Fetch resolves
// the date and domain against the naming convention, downloads the archive
// into destDir and returns the local path.
type Store interface {
	Fetch(ctx context.Context, date, domain, destDir string) (string, error)
	List(ctx context.Context) ([]Entry, error)
}

// StoreConfig selects and configures a backup store backend
type StoreConfig struct {
	Provider StoreProviderType `mapstructure:"provider" yaml:"provider"`
	Local    *LocalConfig      `mapstructure:"local" yaml:"local,omitempty"`
	S3       *S3Config         `mapstructure:"s3" yaml:"s3,omitempty"`
	GCS      *GCSConfig        `mapstructure:"gcs" yaml:"gcs,omitempty"`
	Azure    *AzureConfig      `mapstructure:"azure" yaml:"azure,omitempty"`
}

// Validate checks that the selected provider has its configuration block
func (sc *StoreConfig) Validate() error {
	switch sc.Provider {
	case StoreProviderLocal:
		if sc.Local == nil {
			return fmt.Errorf("local store configuration is required")
		}
		return sc.Local.Validate()
	case StoreProviderS3:
		if sc.S3 == nil {
			return fmt.Errorf("s3 store configuration is required")
		}
		return sc.S3.Validate()
	case StoreProviderGCS:
		if sc.GCS == nil {
			return fmt.Errorf("gcs store configuration is required")
		}
		return sc.GCS.Validate()
	case StoreProviderAzure:
		if sc.Azure == nil {
			return fmt.Errorf("azure store configuration is required")
		}
		return sc.Azure.Validate()
	case "":
		return fmt.Errorf("store provider is required")
	default:
		return fmt.Errorf("unsupported store provider: %s", sc.Provider)
	}
}

// NewStore creates a backup store from configuration
func NewStore(ctx context.Context, config StoreConfig) (Store, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Provider {
	case StoreProviderLocal:
		return NewLocalStore(config.Local)
	case StoreProviderS3:
		return NewS3Store(config.S3)
	case StoreProviderGCS:
		return NewGCSStore(ctx, config.GCS)
	case StoreProviderAzure:
		return NewAzureStore(config.Azure)
	default:
		return nil, fmt.Errorf("unsupported store provider: %s", config.Provider)
	}
}
