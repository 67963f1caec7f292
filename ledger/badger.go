package ledger

import (
	"encoding/binary"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/ethereum/go-ethereum/common"
)

// Key layout inside the shared badger namespace:
//
//	caps/g/<capId>            -> BARE grant record
//	caps/gi/<grantee><capId>  -> empty (grantee index)
//	caps/n/<grantor>          -> big-endian uint64 nonce
var (
	prefixGrant      = []byte("caps/g/")
	prefixGranteeIdx = []byte("caps/gi/")
	prefixNonce      = []byte("caps/n/")
)

// BadgerStore persists grants in a badger database.
type BadgerStore struct {
	db *badger.DB
}

// NewBadgerStore wraps an open badger database.
func NewBadgerStore(db *badger.DB) *BadgerStore {
	return &BadgerStore{db: db}
}

func grantKey(id CapID) []byte {
	return append(append([]byte{}, prefixGrant...), id[:]...)
}

func granteeIdxKey(grantee common.Address, id CapID) []byte {
	key := append(append([]byte{}, prefixGranteeIdx...), grantee[:]...)
	return append(key, id[:]...)
}

func nonceKey(grantor common.Address) []byte {
	return append(append([]byte{}, prefixNonce...), grantor[:]...)
}

// GetGrant implements Store.
func (s *BadgerStore) GetGrant(id CapID) (*Grant, bool, error) {
	var g *Grant
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(grantKey(id))
		if err != nil {
			return err
		}
		data, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		g, err = UnmarshalGrant(data)
		return err
	})
	if err == badger.ErrKeyNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, ErrStoreFailure.Wrap(err.Error())
	}
	return g, true, nil
}

// PutGrant implements Store.
func (s *BadgerStore) PutGrant(id CapID, g *Grant) error {
	data, err := MarshalGrant(g)
	if err != nil {
		return err
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(grantKey(id), data); err != nil {
			return err
		}
		return txn.Set(granteeIdxKey(g.Grantee, id), nil)
	})
	if err != nil {
		return ErrStoreFailure.Wrap(err.Error())
	}
	return nil
}

// ForEachGranteeGrant implements Store.
func (s *BadgerStore) ForEachGranteeGrant(grantee common.Address, fn func(id CapID, g *Grant) (bool, error)) error {
	prefix := append(append([]byte{}, prefixGranteeIdx...), grantee[:]...)

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.ValidForPrefix(prefix); it.Next() {
			key := it.Item().Key()
			id, err := CapIDFromBytes(key[len(prefix):])
			if err != nil {
				return err
			}

			item, err := txn.Get(grantKey(id))
			if err != nil {
				return err
			}
			data, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			g, err := UnmarshalGrant(data)
			if err != nil {
				return err
			}

			cont, err := fn(id, g)
			if err != nil {
				return err
			}
			if !cont {
				return nil
			}
		}
		return nil
	})
	if err != nil {
		return ErrStoreFailure.Wrap(err.Error())
	}
	return nil
}

// GrantorNonce implements Store.
func (s *BadgerStore) GrantorNonce(grantor common.Address) (uint64, error) {
	var nonce uint64
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(nonceKey(grantor))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			if len(val) != 8 {
				return ErrStoreFailure.Wrapf("invalid nonce encoding length %d", len(val))
			}
			nonce = binary.BigEndian.Uint64(val)
			return nil
		})
	})
	if err == badger.ErrKeyNotFound {
		return 0, nil
	}
	if err != nil {
		return 0, ErrStoreFailure.Wrap(err.Error())
	}
	return nonce, nil
}

// SetGrantorNonce implements Store.
func (s *BadgerStore) SetGrantorNonce(grantor common.Address, nonce uint64) error {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], nonce)
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(nonceKey(grantor), buf[:])
	})
	if err != nil {
		return ErrStoreFailure.Wrap(err.Error())
	}
	return nil
}
