package archive

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// LocalConfig configures a local archive root directory
type LocalConfig struct {
	Root string `mapstructure:"root" yaml:"root"`
}

// Validate checks the local store configuration
func (lc *LocalConfig) Validate() error {
	if lc.Root == "" {
		return fmt.Errorf("archive root path is required")
	}
	return nil
}

// LocalStore implements Store for a local archive root directory
type LocalStore struct {
	root string
}

// NewLocalStore creates a new LocalStore instance
func NewLocalStore(config *LocalConfig) (*LocalStore, error) {
	if config == nil {
		return nil, fmt.Errorf("local store configuration is required")
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	info, err := os.Stat(config.Root)
	if err != nil {
		return nil, NewArchiveError("resolve", config.Root, "archive root is not accessible", err)
	}
	if !info.IsDir() {
		return nil, NewArchiveError("resolve", config.Root, "archive root is not a directory", nil)
	}

	return &LocalStore{root: config.Root}, nil
}

// Fetch copies the archive for the given date and domain into destDir
func (ls *LocalStore) Fetch(ctx context.Context, date, domain, destDir string) (string, error) {
	for _, name := range CandidateNames(date, domain) {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		sourcePath := filepath.Join(ls.root, name)
		if _, err := os.Stat(sourcePath); os.IsNotExist(err) {
			continue
		} else if err != nil {
			return "", NewArchiveError("fetch", name, "failed to stat archive", err)
		}

		destPath := filepath.Join(destDir, name)
		if err := copyFile(sourcePath, destPath); err != nil {
			return "", NewArchiveError("fetch", name, "failed to copy archive", err)
		}
		return destPath, nil
	}

	return "", NewArchiveError("resolve", BaseName(date, domain),
		fmt.Sprintf("no archive found under %s", ls.root), nil)
}

// List returns all backup archives present in the archive root
func (ls *LocalStore) List(ctx context.Context) ([]Entry, error) {
	dirEntries, err := os.ReadDir(ls.root)
	if err != nil {
		return nil, NewArchiveError("resolve", ls.root, "failed to read archive root", err)
	}

	var entries []Entry
	for _, de := range dirEntries {
		if de.IsDir() || !strings.Contains(de.Name(), ".postgres-backup.") {
			continue
		}
		info, err := de.Info()
		if err != nil {
			continue
		}
		entries = append(entries, Entry{
			Name:         de.Name(),
			Size:         info.Size(),
			LastModified: info.ModTime(),
		})
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}

// copyFile copies a file without holding it fully in memory
func copyFile(source, dest string) error {
	in, err := os.Open(source)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}
