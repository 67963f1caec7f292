// Package salt provides cryptographically secure salt generation for the
// keystore key-derivation function.
package salt

import (
	"crypto/rand"
	"fmt"
	"io"
)

const (
	// DefaultSize is the recommended salt size (256 bits).
	DefaultSize = 32
	// MinSize is the minimum acceptable salt size (128 bits).
	MinSize = 16
	// MaxSize bounds salt size to prevent resource exhaustion on restore.
	MaxSize = 1024
)

// Salt is a cryptographically secure salt value.
type Salt struct {
	value []byte
}

// Generate creates a new random salt of the given size.
func Generate(size int) (*Salt, error) {
	if size < MinSize {
		return nil, fmt.Errorf("salt size too small: minimum %d bytes required", MinSize)
	}
	if size > MaxSize {
		return nil, fmt.Errorf("salt size too large: maximum %d bytes allowed", MaxSize)
	}

	value := make([]byte, size)
	if _, err := io.ReadFull(rand.Reader, value); err != nil {
		return nil, fmt.Errorf("failed to generate random salt: %w", err)
	}
	return &Salt{value: value}, nil
}

// GenerateDefault creates a new salt with the recommended size.
func GenerateDefault() (*Salt, error) {
	return Generate(DefaultSize)
}

// FromBytes creates a Salt from persisted bytes, validating its size.
func FromBytes(data []byte) (*Salt, error) {
	if len(data) < MinSize {
		return nil, fmt.Errorf("salt too small: minimum %d bytes required, got %d", MinSize, len(data))
	}
	if len(data) > MaxSize {
		return nil, fmt.Errorf("salt too large: maximum %d bytes allowed, got %d", MaxSize, len(data))
	}

	value := make([]byte, len(data))
	copy(value, data)
	return &Salt{value: value}, nil
}

// Bytes returns a copy of the salt bytes.
func (s *Salt) Bytes() []byte {
	if s == nil || s.value == nil {
		return nil
	}
	out := make([]byte, len(s.value))
	copy(out, s.value)
	return out
}

// Size returns the salt length in bytes.
func (s *Salt) Size() int {
	if s == nil {
		return 0
	}
	return len(s.value)
}

// String returns a redacted representation safe for logging.
func (s *Salt) String() string {
	if s == nil || s.value == nil {
		return "Salt{<nil>}"
	}
	return fmt.Sprintf("Salt{size=%d}", len(s.value))
}

// Clear zeros the salt value.
func (s *Salt) Clear() {
	if s != nil && s.value != nil {
		for i := range s.value {
			s.value[i] = 0
		}
		s.value = nil
	}
}

// IsEmpty reports whether the salt holds no value.
func (s *Salt) IsEmpty() bool {
	return s == nil || len(s.value) == 0
}
