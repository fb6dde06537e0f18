package postgres

import (
	"crypto/cipher"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

const (
	// secretVersion tags the blob layout: version(1) || nonce(24) || ciphertext
	secretVersion = 0x02

	nonceSize = chacha20poly1305.NonceSizeX
	keySize   = chacha20poly1305.KeySize
)

var (
	ErrInvalidKeySize     = errors.New("encryption key must be 32 bytes")
	ErrInvalidBlobSize    = errors.New("encrypted blob is too small")
	ErrUnsupportedVersion = errors.New("unsupported secret blob version")
	ErrDecryptionFailed   = errors.New("failed to decrypt secret blob")
)

// SecretEncryptor seals connection credentials and webhook secrets with
// XChaCha20-Poly1305. The row id is bound as associated data so a blob
// cannot be moved to another row.
type SecretEncryptor struct {
	aead cipher.AEAD
}

// NewSecretEncryptor creates an encryptor with the given 32-byte key
func NewSecretEncryptor(key []byte) (*SecretEncryptor, error) {
	if len(key) != keySize {
		return nil, fmt.Errorf("%w: got %d bytes", ErrInvalidKeySize, len(key))
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	return &SecretEncryptor{aead: aead}, nil
}

// Encrypt JSON-encodes value and seals it bound to id
func (e *SecretEncryptor) Encrypt(id string, value any) ([]byte, error) {
	plaintext, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("marshal value: %w", err)
	}

	blob := make([]byte, 1+nonceSize, 1+nonceSize+len(plaintext)+e.aead.Overhead())
	blob[0] = secretVersion
	if _, err := rand.Read(blob[1:]); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}
	return e.aead.Seal(blob, blob[1:1+nonceSize], plaintext, []byte(id)), nil
}

// Decrypt opens a blob sealed for id into value
func (e *SecretEncryptor) Decrypt(id string, blob []byte, value any) error {
	if len(blob) < 1+nonceSize+e.aead.Overhead() {
		return ErrInvalidBlobSize
	}
	if blob[0] != secretVersion {
		return fmt.Errorf("%w: got version %d", ErrUnsupportedVersion, blob[0])
	}

	plaintext, err := e.aead.Open(nil, blob[1:1+nonceSize], blob[1+nonceSize:], []byte(id))
	if err != nil {
		return ErrDecryptionFailed
	}
	if err := json.Unmarshal(plaintext, value); err != nil {
		return fmt.Errorf("unmarshal decrypted value: %w", err)
	}
	return nil
}
