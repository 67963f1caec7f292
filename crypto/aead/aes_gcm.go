// Package aead provides AES-256-GCM authenticated encryption for the keystore
// and the local content-key store. A failed tag check is how a wrong vault
// secret is detected, so Open must never return unauthenticated plaintext.
package aead

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"
	"io"
)

const (
	// NonceSize is the standard 96-bit nonce size for GCM.
	NonceSize = 12
	// TagSize is the 128-bit GCM authentication tag size.
	TagSize = 16
	// KeySize is the AES-256 key size.
	KeySize = 32
)

// Cipher wraps AES-256-GCM with secure defaults.
type Cipher struct {
	gcm cipher.AEAD
}

// New creates a Cipher from a 256-bit key.
func New(key []byte) (*Cipher, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("invalid key size: expected %d bytes, got %d", KeySize, len(key))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create AES cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM mode: %w", err)
	}

	return &Cipher{gcm: gcm}, nil
}

// Seal encrypts plaintext with additional authenticated data, returning the
// random nonce and the ciphertext (which carries the authentication tag)
// separately so callers can persist them in distinct envelope fields.
func (c *Cipher) Seal(plaintext, aad []byte) (nonce, ciphertext []byte, err error) {
	nonce = make([]byte, NonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	ciphertext = c.gcm.Seal(nil, nonce, plaintext, aad)
	return nonce, ciphertext, nil
}

// Open decrypts ciphertext and verifies its authentication tag. An error
// means either corruption or a wrong key; plaintext is never returned in
// that case.
func (c *Cipher) Open(nonce, ciphertext, aad []byte) ([]byte, error) {
	if len(nonce) != NonceSize {
		return nil, fmt.Errorf("invalid nonce size: expected %d bytes, got %d", NonceSize, len(nonce))
	}
	if len(ciphertext) < TagSize {
		return nil, fmt.Errorf("invalid ciphertext length: minimum %d bytes required", TagSize)
	}

	plaintext, err := c.gcm.Open(nil, nonce, ciphertext, aad)
	if err != nil {
		return nil, fmt.Errorf("decryption and authentication failed: %w", err)
	}
	return plaintext, nil
}

// SealCombined encrypts plaintext and returns nonce||ciphertext||tag in one
// buffer for callers that store a single opaque blob.
func (c *Cipher) SealCombined(plaintext, aad []byte) ([]byte, error) {
	nonce, ciphertext, err := c.Seal(plaintext, aad)
	if err != nil {
		return nil, err
	}

	out := make([]byte, NonceSize+len(ciphertext))
	copy(out[:NonceSize], nonce)
	copy(out[NonceSize:], ciphertext)
	return out, nil
}

// OpenCombined decrypts a buffer produced by SealCombined.
func (c *Cipher) OpenCombined(data, aad []byte) ([]byte, error) {
	if len(data) < NonceSize+TagSize {
		return nil, fmt.Errorf("invalid ciphertext length: minimum %d bytes required", NonceSize+TagSize)
	}
	return c.Open(data[:NonceSize], data[NonceSize:], aad)
}
