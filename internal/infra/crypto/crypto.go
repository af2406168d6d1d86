// Package crypto obfuscates the sync credential at rest.
//
// The key is compiled into the binary, so this only keeps the credential out
// of casual view (backups, screen shares, grep). It is not a security boundary.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"
)

const (
	// NonceSize is the size of the nonce for AES-GCM (12 bytes).
	NonceSize = 12
	// KeySize is the size of the AES-256 key (32 bytes).
	KeySize = 32

	// prefix marks obfuscated values so plain legacy values can still be read.
	prefix = "obf1:"
)

// builtinSeed derives the default key.
const builtinSeed = "boardsync/credential-obfuscation/v1"

var (
	// ErrInvalidKey is returned when the key is not 32 bytes.
	ErrInvalidKey = errors.New("invalid obfuscation key: must be 32 bytes")
	// ErrDecryptionFailed is returned when a value cannot be revealed.
	ErrDecryptionFailed = errors.New("reveal failed: invalid value or key")
	// ErrCiphertextTooShort is returned when the payload is shorter than a nonce.
	ErrCiphertextTooShort = errors.New("ciphertext too short")
)

// Obfuscator hides short secrets with AES-256-GCM.
type Obfuscator struct {
	gcm cipher.AEAD
}

// NewObfuscator creates an Obfuscator with a raw 32-byte key.
func NewObfuscator(key []byte) (*Obfuscator, error) {
	if len(key) != KeySize {
		return nil, ErrInvalidKey
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create GCM: %w", err)
	}

	return &Obfuscator{gcm: gcm}, nil
}

// Default returns the Obfuscator keyed with the built-in key.
func Default() *Obfuscator {
	key := sha256.Sum256([]byte(builtinSeed))
	o, err := NewObfuscator(key[:])
	if err != nil {
		panic(err) // key size is fixed
	}
	return o
}

// Obscure returns a printable, prefixed form of secret. Empty stays empty.
func (o *Obfuscator) Obscure(secret string) (string, error) {
	if secret == "" {
		return "", nil
	}

	nonce := make([]byte, NonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}

	sealed := o.gcm.Seal(nonce, nonce, []byte(secret), nil)
	return prefix + base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Reveal reverses Obscure. Values without the prefix are returned unchanged.
func (o *Obfuscator) Reveal(value string) (string, error) {
	if !strings.HasPrefix(value, prefix) {
		return value, nil
	}

	sealed, err := base64.RawURLEncoding.DecodeString(strings.TrimPrefix(value, prefix))
	if err != nil {
		return "", ErrDecryptionFailed
	}
	if len(sealed) < NonceSize {
		return "", ErrCiphertextTooShort
	}

	plaintext, err := o.gcm.Open(nil, sealed[:NonceSize], sealed[NonceSize:], nil)
	if err != nil {
		return "", ErrDecryptionFailed
	}
	return string(plaintext), nil
}
