package relay

import (
	"encoding/binary"
	"sync"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/ethereum/go-ethereum/common"
)

// NonceStore tracks one strictly increasing replay counter per signer.
type NonceStore interface {
	// Nonce returns the signer's current counter, zero if unseen.
	Nonce(signer common.Address) (uint64, error)
	// SetNonce stores the signer's counter.
	SetNonce(signer common.Address, nonce uint64) error
}

// MemNonceStore is an in-memory NonceStore for tests and ephemeral relays.
type MemNonceStore struct {
	mu     sync.Mutex
	nonces map[common.Address]uint64
}

// NewMemNonceStore creates an empty in-memory nonce store.
func NewMemNonceStore() *MemNonceStore {
	return &MemNonceStore{nonces: make(map[common.Address]uint64)}
}

// Nonce implements NonceStore.
func (s *MemNonceStore) Nonce(signer common.Address) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nonces[signer], nil
}

// SetNonce implements NonceStore.
func (s *MemNonceStore) SetNonce(signer common.Address, nonce uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nonces[signer] = nonce
	return nil
}

var relayNoncePrefix = []byte("relay/n/")

// BadgerNonceStore persists replay counters in a badger database, sharing
// the namespace with the ledger store.
type BadgerNonceStore struct {
	db *badger.DB
}

// NewBadgerNonceStore wraps an open badger database.
func NewBadgerNonceStore(db *badger.DB) *BadgerNonceStore {
	return &BadgerNonceStore{db: db}
}

func relayNonceKey(signer common.Address) []byte {
	return append(append([]byte{}, relayNoncePrefix...), signer[:]...)
}

// Nonce implements NonceStore.
func (s *BadgerNonceStore) Nonce(signer common.Address) (uint64, error) {
	var nonce uint64
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(relayNonceKey(signer))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			if len(val) != 8 {
				return ErrBadRequest.Wrapf("invalid nonce encoding length %d", len(val))
			}
			nonce = binary.BigEndian.Uint64(val)
			return nil
		})
	})
	if err == badger.ErrKeyNotFound {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return nonce, nil
}

// SetNonce implements NonceStore.
func (s *BadgerNonceStore) SetNonce(signer common.Address, nonce uint64) error {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], nonce)
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(relayNonceKey(signer), buf[:])
	})
}
