// Package archive resolves dated backup archives in a backup store,
// downloads them, and unpacks the SQL dump they contain.
//
// The naming convention for archives is:
//
//	<date>.<domain>.postgres-backup.tar.gz
//
// with .tar.zst and .tar.lz4 compression variants, and an optional .enc
// suffix for passphrase-encrypted archives. Each archive contains at least
// a <domain>.sql full schema+data dump.
package archive

import (
	"fmt"
)

// Suffixes recognized for backup archives, in resolution order. The
// canonical gzip form is preferred when several variants exist.
var archiveSuffixes = []string{
	".tar.gz",
	".tar.zst",
	".tar.lz4",
	".tar.gz.enc",
	".tar.zst.enc",
	".tar.lz4.enc",
}

// ArchiveError represents errors that occur while resolving or unpacking
// backup archives
type ArchiveError struct {
	Op      string // "resolve", "fetch", "decrypt", "extract"
	Key     string
	Message string
	Cause   error
}

// Error implements the error interface
func (e *ArchiveError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("archive %s %s: %s (caused by: %v)", e.Op, e.Key, e.Message, e.Cause)
	}
	return fmt.Sprintf("archive %s %s: %s", e.Op, e.Key, e.Message)
}

// Unwrap returns the underlying cause error
func (e *ArchiveError) Unwrap() error {
	return e.Cause
}

// NewArchiveError creates a new ArchiveError
func NewArchiveError(op, key, message string, cause error) *ArchiveError {
	return &ArchiveError{Op: op, Key: key, Message: message, Cause: cause}
}

// BaseName returns the archive name for a date and domain without the
// compression suffix
func BaseName(date, domain string) string {
	return fmt.Sprintf("%s.%s.postgres-backup", date, domain)
}

// CandidateNames returns every recognized archive file name for a date and
// domain, most preferred first
func CandidateNames(date, domain string) []string {
	base := BaseName(date, domain)
	names := make([]string, 0, len(archiveSuffixes))
	for _, suffix := range archiveSuffixes {
		names = append(names, base+suffix)
	}
	return names
}

// DumpFileName returns the name of the SQL dump expected inside an archive
func DumpFileName(domain string) string {
	return domain + ".sql"
}
