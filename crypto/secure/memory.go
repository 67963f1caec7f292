// Package secure provides explicit zeroization and lifecycle management for
// sensitive byte material such as decrypted private keys and content keys.
package secure

import (
	"crypto/rand"
	"fmt"
	"runtime"
	"sync"
)

// Bytes wraps sensitive data with explicit cleanup. The zero value is empty.
type Bytes struct {
	data      []byte
	mu        sync.RWMutex
	finalized bool
}

// FromBytes copies data into a new Bytes instance with automatic cleanup.
func FromBytes(data []byte) *Bytes {
	if len(data) == 0 {
		return &Bytes{}
	}

	b := &Bytes{data: make([]byte, len(data))}
	copy(b.data, data)

	// Fallback cleanup if Clear() is never called.
	runtime.SetFinalizer(b, (*Bytes).finalize)
	return b
}

// Bytes returns a copy of the protected data.
func (b *Bytes) Bytes() []byte {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.data == nil {
		return nil
	}
	out := make([]byte, len(b.data))
	copy(out, b.data)
	return out
}

// Size returns the length of the protected data.
func (b *Bytes) Size() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.data)
}

// IsEmpty reports whether the buffer holds no data.
func (b *Bytes) IsEmpty() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.data) == 0
}

// Clear zeros the memory and removes the finalizer. Safe to call repeatedly.
func (b *Bytes) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.finalized && b.data != nil {
		Zeroize(b.data)
		b.data = nil
		b.finalized = true
		runtime.SetFinalizer(b, nil)
	}
}

func (b *Bytes) finalize() {
	b.Clear()
}

// Zeroize overwrites data with zeros in a way the compiler cannot elide.
func Zeroize(data []byte) {
	if len(data) == 0 {
		return
	}
	for i := range data {
		data[i] = 0
	}
	runtime.KeepAlive(data)
}

// ZeroizeMultiple zeros several byte slices in one call.
func ZeroizeMultiple(slices ...[]byte) {
	for _, s := range slices {
		Zeroize(s)
	}
}

// Compare performs a constant-time comparison of two byte slices.
func Compare(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	var result byte
	for i := 0; i < len(a); i++ {
		result |= a[i] ^ b[i]
	}
	return result == 0
}

// Random fills data with cryptographically secure random bytes.
func Random(data []byte) error {
	if len(data) == 0 {
		return nil
	}
	if _, err := rand.Read(data); err != nil {
		return fmt.Errorf("failed to generate secure random bytes: %w", err)
	}
	return nil
}
