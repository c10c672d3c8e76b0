package archive

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"os"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

const (
	encSuffix         = ".enc"
	encSaltSize       = 32
	encKeySize        = 32 // AES-256
	encPBKDF2Rounds   = 100000
	maxEncryptedBytes = 2 << 30 // refuse to buffer archives beyond 2 GiB
)

// DecryptArchive decrypts a passphrase-protected archive file and writes the
// plaintext next to it with the .enc suffix stripped. Returns the plaintext
// path. The encrypted layout is salt || nonce || ciphertext with an
// AES-256-GCM cipher and a PBKDF2-derived key.
func DecryptArchive(encPath, passphrase string) (string, error) {
	if !strings.HasSuffix(encPath, encSuffix) {
		return "", NewArchiveError("decrypt", encPath, "archive is not encrypted", nil)
	}
	if passphrase == "" {
		return "", NewArchiveError("decrypt", encPath, "archive is encrypted but no passphrase was provided", nil)
	}

	info, err := os.Stat(encPath)
	if err != nil {
		return "", NewArchiveError("decrypt", encPath, "failed to stat encrypted archive", err)
	}
	if info.Size() > maxEncryptedBytes {
		return "", NewArchiveError("decrypt", encPath,
			fmt.Sprintf("encrypted archive too large (%d bytes)", info.Size()), nil)
	}

	data, err := os.ReadFile(encPath)
	if err != nil {
		return "", NewArchiveError("decrypt", encPath, "failed to read encrypted archive", err)
	}

	plaintext, err := decrypt(data, passphrase)
	if err != nil {
		return "", NewArchiveError("decrypt", encPath, "failed to decrypt archive", err)
	}

	plainPath := strings.TrimSuffix(encPath, encSuffix)
	if err := os.WriteFile(plainPath, plaintext, 0600); err != nil {
		return "", NewArchiveError("decrypt", encPath, "failed to write decrypted archive", err)
	}

	return plainPath, nil
}

// EncryptFile encrypts a file in place with a .enc suffix, for producing
// protected archives. Returns the encrypted path.
func EncryptFile(path, passphrase string) (string, error) {
	if passphrase == "" {
		return "", NewArchiveError("decrypt", path, "passphrase is required", nil)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", NewArchiveError("decrypt", path, "failed to read file", err)
	}

	encrypted, err := encrypt(data, passphrase)
	if err != nil {
		return "", NewArchiveError("decrypt", path, "failed to encrypt file", err)
	}

	encPath := path + encSuffix
	if err := os.WriteFile(encPath, encrypted, 0600); err != nil {
		return "", NewArchiveError("decrypt", path, "failed to write encrypted file", err)
	}

	return encPath, nil
}

// encrypt seals data with AES-256-GCM under a key derived from the passphrase
func encrypt(data []byte, passphrase string) ([]byte, error) {
	salt := make([]byte, encSaltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}

	gcm, err := newGCM(passphrase, salt)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := gcm.Seal(nil, nonce, data, nil)

	out := make([]byte, 0, len(salt)+len(nonce)+len(sealed))
	out = append(out, salt...)
	out = append(out, nonce...)
	out = append(out, sealed...)
	return out, nil
}

// decrypt opens data produced by encrypt
func decrypt(data []byte, passphrase string) ([]byte, error) {
	if len(data) < encSaltSize {
		return nil, fmt.Errorf("encrypted data too short")
	}
	salt := data[:encSaltSize]

	gcm, err := newGCM(passphrase, salt)
	if err != nil {
		return nil, err
	}

	rest := data[encSaltSize:]
	if len(rest) < gcm.NonceSize() {
		return nil, fmt.Errorf("encrypted data too short")
	}
	nonce := rest[:gcm.NonceSize()]
	ciphertext := rest[gcm.NonceSize():]

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("decryption failed, wrong passphrase or corrupt archive: %w", err)
	}
	return plaintext, nil
}

// newGCM derives an AES-256-GCM cipher from a passphrase and salt
func newGCM(passphrase string, salt []byte) (cipher.AEAD, error) {
	key := pbkdf2.Key([]byte(passphrase), salt, encPBKDF2Rounds, encKeySize, sha256.New)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	return cipher.NewGCM(block)
}
