package envelope

import (
	"sync"

	ecies "github.com/ecies/go/v2"
	"github.com/ethereum/go-ethereum/common"

	"github.com/Vibecoders-Team/dfsp-sub000/vault"
)

// Directory resolves a peer address to its published encryption key. An
// implementation returns ErrRecipientKeyUnknown when the peer has never
// published one; the share flow surfaces that as a pause rather than a
// terminal failure.
type Directory interface {
	LookupEncryptionKey(addr common.Address) (*ecies.PublicKey, error)
}

// MemDirectory is an in-memory Directory for tests and single-process use.
type MemDirectory struct {
	mu   sync.RWMutex
	keys map[common.Address]*ecies.PublicKey
}

// NewMemDirectory creates an empty directory.
func NewMemDirectory() *MemDirectory {
	return &MemDirectory{keys: make(map[common.Address]*ecies.PublicKey)}
}

// Publish registers or replaces a peer's encryption key.
func (d *MemDirectory) Publish(addr common.Address, key *ecies.PublicKey) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.keys[addr] = key
}

// LookupEncryptionKey implements Directory.
func (d *MemDirectory) LookupEncryptionKey(addr common.Address) (*ecies.PublicKey, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	key, ok := d.keys[addr]
	if !ok {
		return nil, ErrRecipientKeyUnknown.Wrap(addr.Hex())
	}
	return key, nil
}

// VaultDirectory resolves the local vault identity before consulting the
// next directory, so a share to oneself needs no published key and no
// network round trip. A locked vault falls through to the next directory.
type VaultDirectory struct {
	vault *vault.Vault
	next  Directory
}

// NewVaultDirectory layers a vault over another directory. next may be nil
// for a vault-only resolver.
func NewVaultDirectory(v *vault.Vault, next Directory) *VaultDirectory {
	return &VaultDirectory{vault: v, next: next}
}

// LookupEncryptionKey implements Directory.
func (d *VaultDirectory) LookupEncryptionKey(addr common.Address) (*ecies.PublicKey, error) {
	if self, err := d.vault.Address(); err == nil && self == addr {
		return d.vault.EncryptionPublicKey()
	}
	if d.next == nil {
		return nil, ErrRecipientKeyUnknown.Wrap(addr.Hex())
	}
	return d.next.LookupEncryptionKey(addr)
}
