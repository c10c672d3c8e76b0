package archive

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/zstd"
)

func TestBaseName(t *testing.T) {
	got := BaseName("2026-08-20", "podcast")
	want := "2026-08-20.podcast.postgres-backup"
	if got != want {
		t.Errorf("Expected %s, got %s", want, got)
	}
}

func TestCandidateNames(t *testing.T) {
	names := CandidateNames("2026-08-20", "podcast")
	if len(names) != 6 {
		t.Fatalf("Expected 6 candidates, got %d", len(names))
	}
	if names[0] != "2026-08-20.podcast.postgres-backup.tar.gz" {
		t.Errorf("Expected gzip variant first, got %s", names[0])
	}
	for _, name := range names {
		if !strings.Contains(name, ".postgres-backup.") {
			t.Errorf("Candidate %s does not follow naming convention", name)
		}
	}
}

func TestDumpFileName(t *testing.T) {
	if got := DumpFileName("podcast"); got != "podcast.sql" {
		t.Errorf("Expected podcast.sql, got %s", got)
	}
}

// writeTarGz builds a gzip tarball with the given entries under dir and
// returns its path
func writeTarGz(t *testing.T, dir, name string, entries map[string]string) string {
	t.Helper()

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	for entryName, content := range entries {
		hdr := &tar.Header{
			Name:     entryName,
			Mode:     0644,
			Size:     int64(len(content)),
			Typeflag: tar.TypeReg,
		}
		if err := tw.WriteHeader(hdr); err != nil {
			t.Fatalf("Failed to write tar header: %v", err)
		}
		if _, err := tw.Write([]byte(content)); err != nil {
			t.Fatalf("Failed to write tar entry: %v", err)
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatalf("Failed to close tar writer: %v", err)
	}
	if err := gz.Close(); err != nil {
		t.Fatalf("Failed to close gzip writer: %v", err)
	}

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		t.Fatalf("Failed to write archive: %v", err)
	}
	return path
}

func TestLocalStore_FetchAndList(t *testing.T) {
	root := t.TempDir()
	dest := t.TempDir()

	writeTarGz(t, root, "2026-08-20.podcast.postgres-backup.tar.gz",
		map[string]string{"podcast.sql": "SELECT 1;"})
	// Noise that List must ignore
	if err := os.WriteFile(filepath.Join(root, "notes.txt"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	store, err := NewLocalStore(&LocalConfig{Root: root})
	if err != nil {
		t.Fatalf("Failed to create local store: %v", err)
	}

	path, err := store.Fetch(context.Background(), "2026-08-20", "podcast", dest)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if filepath.Dir(path) != dest {
		t.Errorf("Expected archive under %s, got %s", dest, path)
	}

	entries, err := store.List(context.Background())
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(entries) != 1 || entries[0].Name != "2026-08-20.podcast.postgres-backup.tar.gz" {
		t.Errorf("Unexpected list result: %+v", entries)
	}
}

func TestLocalStore_FetchMissing(t *testing.T) {
	store, err := NewLocalStore(&LocalConfig{Root: t.TempDir()})
	if err != nil {
		t.Fatal(err)
	}

	_, err = store.Fetch(context.Background(), "2026-01-01", "podcast", t.TempDir())
	if err == nil {
		t.Fatal("Expected error for missing archive")
	}
	var archiveErr *ArchiveError
	if !errors.As(err, &archiveErr) || archiveErr.Op != "resolve" {
		t.Errorf("Expected resolve ArchiveError, got %v", err)
	}
}

func TestUnpack_GzipRoundTrip(t *testing.T) {
	dir := t.TempDir()
	archivePath := writeTarGz(t, dir, "2026-08-20.podcast.postgres-backup.tar.gz",
		map[string]string{"podcast.sql": "CREATE TABLE episodes (id int);"})

	dumpPath, err := Unpack(archivePath, "podcast", t.TempDir())
	if err != nil {
		t.Fatalf("Unpack failed: %v", err)
	}

	content, err := os.ReadFile(dumpPath)
	if err != nil {
		t.Fatalf("Failed to read dump: %v", err)
	}
	if string(content) != "CREATE TABLE episodes (id int);" {
		t.Errorf("Dump content mismatch: %s", content)
	}
}

func TestUnpack_ZstdRoundTrip(t *testing.T) {
	dir := t.TempDir()

	var tarBuf bytes.Buffer
	tw := tar.NewWriter(&tarBuf)
	content := "INSERT INTO shows VALUES (1);"
	if err := tw.WriteHeader(&tar.Header{Name: "podcast.sql", Mode: 0644, Size: int64(len(content)), Typeflag: tar.TypeReg}); err != nil {
		t.Fatal(err)
	}
	if _, err := io.WriteString(tw, content); err != nil {
		t.Fatal(err)
	}
	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}

	var zstBuf bytes.Buffer
	zw, err := zstd.NewWriter(&zstBuf)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := zw.Write(tarBuf.Bytes()); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}

	archivePath := filepath.Join(dir, "2026-08-20.podcast.postgres-backup.tar.zst")
	if err := os.WriteFile(archivePath, zstBuf.Bytes(), 0644); err != nil {
		t.Fatal(err)
	}

	dumpPath, err := Unpack(archivePath, "podcast", t.TempDir())
	if err != nil {
		t.Fatalf("Unpack failed: %v", err)
	}
	got, err := os.ReadFile(dumpPath)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != content {
		t.Errorf("Dump content mismatch: %s", got)
	}
}

func TestUnpack_MissingDump(t *testing.T) {
	dir := t.TempDir()
	archivePath := writeTarGz(t, dir, "2026-08-20.podcast.postgres-backup.tar.gz",
		map[string]string{"README": "nothing here"})

	_, err := Unpack(archivePath, "podcast", t.TempDir())
	if err == nil {
		t.Fatal("Expected error for archive without dump")
	}
	if !strings.Contains(err.Error(), "does not contain podcast.sql") {
		t.Errorf("Unexpected error: %v", err)
	}
}

func TestUnpack_RejectsPathTraversal(t *testing.T) {
	dir := t.TempDir()
	archivePath := writeTarGz(t, dir, "2026-08-20.podcast.postgres-backup.tar.gz",
		map[string]string{"../escape.sql": "oops"})

	_, err := Unpack(archivePath, "podcast", t.TempDir())
	if err == nil {
		t.Fatal("Expected error for traversal entry")
	}
	if !strings.Contains(err.Error(), "escapes extraction directory") {
		t.Errorf("Unexpected error: %v", err)
	}
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "backup.tar.gz")
	if err := os.WriteFile(path, []byte("archive bytes"), 0644); err != nil {
		t.Fatal(err)
	}

	encPath, err := EncryptFile(path, "hunter2")
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}
	if !strings.HasSuffix(encPath, ".enc") {
		t.Errorf("Expected .enc suffix, got %s", encPath)
	}

	// Remove the plaintext so decryption has to recreate it
	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}

	plainPath, err := DecryptArchive(encPath, "hunter2")
	if err != nil {
		t.Fatalf("Decrypt failed: %v", err)
	}
	content, err := os.ReadFile(plainPath)
	if err != nil {
		t.Fatal(err)
	}
	if string(content) != "archive bytes" {
		t.Errorf("Decrypted content mismatch: %s", content)
	}
}

func TestDecryptWrongPassphrase(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "backup.tar.gz")
	if err := os.WriteFile(path, []byte("archive bytes"), 0644); err != nil {
		t.Fatal(err)
	}

	encPath, err := EncryptFile(path, "correct")
	if err != nil {
		t.Fatal(err)
	}

	if _, err := DecryptArchive(encPath, "wrong"); err == nil {
		t.Fatal("Expected decryption failure with wrong passphrase")
	}
}

func TestDecryptRequiresPassphrase(t *testing.T) {
	if _, err := DecryptArchive("x.tar.gz.enc", ""); err == nil {
		t.Fatal("Expected error when passphrase is empty")
	}
}

func TestPrepare_EncryptedArchive(t *testing.T) {
	dir := t.TempDir()
	archivePath := writeTarGz(t, dir, "2026-08-20.podcast.postgres-backup.tar.gz",
		map[string]string{"podcast.sql": "SELECT 42;"})

	encPath, err := EncryptFile(archivePath, "secret")
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Remove(archivePath); err != nil {
		t.Fatal(err)
	}

	dumpPath, err := Prepare(encPath, "podcast", "secret", t.TempDir())
	if err != nil {
		t.Fatalf("Prepare failed: %v", err)
	}
	content, err := os.ReadFile(dumpPath)
	if err != nil {
		t.Fatal(err)
	}
	if string(content) != "SELECT 42;" {
		t.Errorf("Dump content mismatch: %s", content)
	}
}

func TestStoreConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  StoreConfig
		wantErr bool
	}{
		{"missing provider", StoreConfig{}, true},
		{"local without block", StoreConfig{Provider: StoreProviderLocal}, true},
		{"valid local", StoreConfig{Provider: StoreProviderLocal, Local: &LocalConfig{Root: "/backups"}}, false},
		{"s3 missing region", StoreConfig{Provider: StoreProviderS3, S3: &S3Config{Bucket: "b"}}, true},
		{"valid s3", StoreConfig{Provider: StoreProviderS3, S3: &S3Config{Bucket: "b", Region: "us-east-1"}}, false},
		{"gcs missing bucket", StoreConfig{Provider: StoreProviderGCS, GCS: &GCSConfig{}}, true},
		{"azure missing key", StoreConfig{Provider: StoreProviderAzure, Azure: &AzureConfig{AccountName: "a", ContainerName: "c"}}, true},
		{"unknown provider", StoreConfig{Provider: "ftp"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
