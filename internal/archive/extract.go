package archive

import (
	"archive/tar"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Unpack extracts a backup archive into destDir and returns the path of the
// SQL dump for the domain. The compression codec is selected from the archive
// suffix. Entries that would escape destDir are rejected.
func Unpack(archivePath, domain, destDir string) (string, error) {
	file, err := os.Open(archivePath)
	if err != nil {
		return "", NewArchiveError("extract", archivePath, "failed to open archive", err)
	}
	defer file.Close()

	decompressed, closeCodec, err := newDecompressor(archivePath, file)
	if err != nil {
		return "", err
	}
	defer closeCodec()

	dumpName := DumpFileName(domain)
	dumpPath := ""

	reader := tar.NewReader(decompressed)
	for {
		header, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", NewArchiveError("extract", archivePath, "failed to read archive", err)
		}

		name := filepath.Clean(header.Name)
		if name == "." || strings.HasPrefix(name, "..") || filepath.IsAbs(name) {
			return "", NewArchiveError("extract", archivePath,
				fmt.Sprintf("archive entry escapes extraction directory: %s", header.Name), nil)
		}

		target := filepath.Join(destDir, name)

		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0755); err != nil {
				return "", NewArchiveError("extract", archivePath, "failed to create directory", err)
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
				return "", NewArchiveError("extract", archivePath, "failed to create directory", err)
			}
			if err := extractRegular(reader, target); err != nil {
				return "", NewArchiveError("extract", archivePath, "failed to extract file", err)
			}
			if filepath.Base(name) == dumpName {
				dumpPath = target
			}
		default:
			// Symlinks and special files have no place in a backup archive
			return "", NewArchiveError("extract", archivePath,
				fmt.Sprintf("unsupported archive entry type for %s", header.Name), nil)
		}
	}

	if dumpPath == "" {
		return "", NewArchiveError("extract", archivePath,
			fmt.Sprintf("archive does not contain %s", dumpName), nil)
	}
	return dumpPath, nil
}

// Prepare turns a fetched archive into a usable SQL dump: decrypts it when
// the .enc suffix is present, then unpacks it into destDir. Returns the dump
// path.
func Prepare(archivePath, domain, passphrase, destDir string) (string, error) {
	path := archivePath
	if strings.HasSuffix(path, encSuffix) {
		plain, err := DecryptArchive(path, passphrase)
		if err != nil {
			return "", err
		}
		path = plain
	}
	return Unpack(path, domain, destDir)
}

// newDecompressor wraps the archive stream with the codec implied by the
// file name suffix
func newDecompressor(archivePath string, file io.Reader) (io.Reader, func(), error) {
	name := strings.TrimSuffix(archivePath, encSuffix)
	switch {
	case strings.HasSuffix(name, ".tar.gz"):
		gz, err := gzip.NewReader(file)
		if err != nil {
			return nil, nil, NewArchiveError("extract", archivePath, "failed to open gzip stream", err)
		}
		return gz, func() { gz.Close() }, nil
	case strings.HasSuffix(name, ".tar.zst"):
		zr, err := zstd.NewReader(file)
		if err != nil {
			return nil, nil, NewArchiveError("extract", archivePath, "failed to open zstd stream", err)
		}
		return zr, zr.Close, nil
	case strings.HasSuffix(name, ".tar.lz4"):
		return lz4.NewReader(file), func() {}, nil
	default:
		return nil, nil, NewArchiveError("extract", archivePath,
			"unrecognized archive suffix, expected .tar.gz, .tar.zst or .tar.lz4", nil)
	}
}

// extractRegular writes a single regular file entry to disk
func extractRegular(reader io.Reader, target string) error {
	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, reader)
	return err
}
