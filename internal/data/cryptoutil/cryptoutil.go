// Package cryptoutil seals values kept in a client namespace, such as the
// remote refresh token, so a Redis dump does not expose them.
package cryptoutil

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
)

// Sealer protects values at rest.
type Sealer interface {
	Seal(plaintext []byte) ([]byte, error)
	Open(sealed []byte) ([]byte, error)
}

// Versioned prefix to allow future key/algorithm rotations without data migrations.
var sealedPrefixV1 = []byte("v1:")

// ErrSealed is returned by PlainSealer for a value sealed under a key that is no longer configured.
var ErrSealed = errors.New("value is sealed")

// ErrNotSealed is returned by AESGCMSealer for a value written before a key was configured.
var ErrNotSealed = errors.New("value is not sealed")

// AESGCMSealer implements Sealer using AES-256-GCM.
type AESGCMSealer struct {
	aead cipher.AEAD
}

// NewAESGCMSealer constructs a sealer. Key must be 32 bytes (AES-256).
func NewAESGCMSealer(key []byte) (*AESGCMSealer, error) {
	if len(key) != 32 {
		return nil, fmt.Errorf("aes-gcm key must be 32 bytes, got %d", len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create gcm: %w", err)
	}
	return &AESGCMSealer{aead: aead}, nil
}

// KeyFromString derives a 32-byte key: a 64-character hex string is used as-is,
// anything else is hashed with SHA-256.
func KeyFromString(s string) []byte {
	if decoded, err := hex.DecodeString(s); err == nil && len(decoded) == 32 {
		return decoded
	}
	sum := sha256.Sum256([]byte(s))
	return sum[:]
}

// Seal encrypts plaintext with a random nonce and returns "v1:" + base64(nonce|ciphertext).
func (s *AESGCMSealer) Seal(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("read nonce: %w", err)
	}
	ct := s.aead.Seal(nonce, nonce, plaintext, nil)

	out := make([]byte, len(sealedPrefixV1)+base64.StdEncoding.EncodedLen(len(ct)))
	copy(out, sealedPrefixV1)
	base64.StdEncoding.Encode(out[len(sealedPrefixV1):], ct)
	return out, nil
}

// Open reverses Seal.
func (s *AESGCMSealer) Open(sealed []byte) ([]byte, error) {
	if !bytes.HasPrefix(sealed, sealedPrefixV1) {
		return nil, ErrNotSealed
	}
	raw := make([]byte, base64.StdEncoding.DecodedLen(len(sealed)-len(sealedPrefixV1)))
	n, err := base64.StdEncoding.Decode(raw, sealed[len(sealedPrefixV1):])
	if err != nil {
		return nil, fmt.Errorf("decode sealed value: %w", err)
	}
	raw = raw[:n]

	nonceSize := s.aead.NonceSize()
	if len(raw) < nonceSize {
		return nil, errors.New("sealed value too short")
	}
	pt, err := s.aead.Open(nil, raw[:nonceSize], raw[nonceSize:], nil)
	if err != nil {
		return nil, fmt.Errorf("open sealed value: %w", err)
	}
	return pt, nil
}

// PlainSealer stores values unchanged. It is used when no key is configured.
type PlainSealer struct{}

// Seal returns plaintext unchanged.
func (PlainSealer) Seal(plaintext []byte) ([]byte, error) { return plaintext, nil }

// Open returns the value unchanged unless it was sealed.
func (PlainSealer) Open(sealed []byte) ([]byte, error) {
	if bytes.HasPrefix(sealed, sealedPrefixV1) {
		return nil, ErrSealed
	}
	return sealed, nil
}
