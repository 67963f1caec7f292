// Package argon2 provides Argon2id key derivation for the vault keystore.
// The parameters in use are persisted alongside the ciphertext so a keystore
// written under one configuration can always be reopened under another.
package argon2

import (
	"fmt"

	"golang.org/x/crypto/argon2"

	"github.com/Vibecoders-Team/dfsp-sub000/crypto/salt"
)

// Algorithm is the identifier written into keystore envelopes.
const Algorithm = "argon2id"

// Config defines Argon2id parameters.
type Config struct {
	Time        uint32 // Number of iterations
	Memory      uint32 // Memory in KB
	Parallelism uint8  // Number of threads
	SaltLength  uint32 // Salt length in bytes
	KeyLength   uint32 // Output key length in bytes
}

// DefaultConfig returns secure default parameters.
func DefaultConfig() *Config {
	return &Config{
		Time:        1,
		Memory:      64 * 1024, // 64MB
		Parallelism: 4,
		SaltLength:  32,
		KeyLength:   32,
	}
}

// LightConfig returns lighter parameters for testing.
func LightConfig() *Config {
	return &Config{
		Time:        1,
		Memory:      16 * 1024, // 16MB
		Parallelism: 2,
		SaltLength:  16,
		KeyLength:   32,
	}
}

// ValidateConfig rejects parameters weak or malformed enough to be a bug.
func ValidateConfig(config *Config) error {
	if config.Time < 1 {
		return fmt.Errorf("time must be at least 1")
	}
	if config.Memory < 8*1024 {
		return fmt.Errorf("memory must be at least 8MB")
	}
	if config.Parallelism < 1 {
		return fmt.Errorf("parallelism must be at least 1")
	}
	if config.SaltLength < salt.MinSize {
		return fmt.Errorf("salt length must be at least %d bytes", salt.MinSize)
	}
	if config.KeyLength < 16 {
		return fmt.Errorf("key length must be at least 16 bytes")
	}
	return nil
}

// KDF implements Argon2id key derivation.
type KDF struct {
	config *Config
}

// New creates a KDF with the given configuration, defaulting when nil.
func New(config *Config) *KDF {
	if config == nil {
		config = DefaultConfig()
	}
	return &KDF{config: config}
}

// Config returns the parameters this KDF derives with.
func (k *KDF) Config() *Config {
	return k.config
}

// DeriveKey derives a key from a secret and salt.
func (k *KDF) DeriveKey(secret []byte, s *salt.Salt) []byte {
	return argon2.IDKey(
		secret,
		s.Bytes(),
		k.config.Time,
		k.config.Memory,
		k.config.Parallelism,
		k.config.KeyLength,
	)
}

// GenerateSalt generates a salt of the configured length.
func (k *KDF) GenerateSalt() (*salt.Salt, error) {
	return salt.Generate(int(k.config.SaltLength))
}
