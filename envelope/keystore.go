package envelope

import (
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"github.com/Vibecoders-Team/dfsp-sub000/crypto/aead"
	"github.com/Vibecoders-Team/dfsp-sub000/crypto/secure"
	"github.com/Vibecoders-Team/dfsp-sub000/types/fileid"
	"github.com/Vibecoders-Team/dfsp-sub000/vault"
)

// ContentKeySize is the size of a per-file symmetric content key.
const ContentKeySize = 32

// contentKeyLabel scopes the vault sub-key that seals stored content keys.
const contentKeyLabel = "content-keys"

const contentKeyPrefix = "env/ck/"

// ContentKeyStore persists per-file content keys, sealed at rest under a
// key derived from the vault's encryption identity. Opening the store
// requires an unlocked vault; once open it no longer touches the vault, so
// a later auto-relock does not interrupt in-flight shares.
type ContentKeyStore struct {
	db     *badger.DB
	cipher *aead.Cipher
}

// OpenContentKeyStore derives the sealing key from the vault and binds the
// store to a badger database.
func OpenContentKeyStore(db *badger.DB, v *vault.Vault) (*ContentKeyStore, error) {
	sealKey, err := v.DeriveSubKey(contentKeyLabel)
	if err != nil {
		return nil, err
	}
	defer secure.Zeroize(sealKey)

	cipher, err := aead.New(sealKey)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize content key cipher: %w", err)
	}
	return &ContentKeyStore{db: db, cipher: cipher}, nil
}

func contentKeyKey(file fileid.FileID) []byte {
	return append([]byte(contentKeyPrefix), file.Bytes()...)
}

// Get returns the content key for a file, or ErrNoContentKey.
func (s *ContentKeyStore) Get(file fileid.FileID) ([]byte, error) {
	var sealed []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(contentKeyKey(file))
		if err != nil {
			return err
		}
		sealed, err = item.ValueCopy(nil)
		return err
	})
	if err == badger.ErrKeyNotFound {
		return nil, ErrNoContentKey.Wrap(file.Hex())
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read content key: %w", err)
	}

	key, err := s.cipher.OpenCombined(sealed, file.Bytes())
	if err != nil {
		return nil, fmt.Errorf("failed to unseal content key: %w", err)
	}
	return key, nil
}

// Put seals and stores the content key for a file, replacing any previous
// value.
func (s *ContentKeyStore) Put(file fileid.FileID, key []byte) error {
	if len(key) != ContentKeySize {
		return fmt.Errorf("content key must be %d bytes, got %d", ContentKeySize, len(key))
	}
	sealed, err := s.cipher.SealCombined(key, file.Bytes())
	if err != nil {
		return fmt.Errorf("failed to seal content key: %w", err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(contentKeyKey(file), sealed)
	})
	if err != nil {
		return fmt.Errorf("failed to store content key: %w", err)
	}
	return nil
}

// GetOrCreate returns the existing content key for a file, generating and
// persisting a fresh one on first use. Re-sharing a file always reuses the
// same key, so earlier recipients keep working.
func (s *ContentKeyStore) GetOrCreate(file fileid.FileID) ([]byte, error) {
	key, err := s.Get(file)
	if err == nil {
		return key, nil
	}
	if !ErrNoContentKey.Is(err) {
		return nil, err
	}

	key = make([]byte, ContentKeySize)
	if err := secure.Random(key); err != nil {
		return nil, fmt.Errorf("failed to generate content key: %w", err)
	}
	if err := s.Put(file, key); err != nil {
		secure.Zeroize(key)
		return nil, err
	}
	return key, nil
}
