package ledger

import (
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// Store persists grant records and per-grantor nonces. Implementations do
// not need to be safe for concurrent use; the keeper serializes access.
type Store interface {
	// GetGrant returns the record for id, reporting whether it exists.
	GetGrant(id CapID) (*Grant, bool, error)
	// PutGrant writes the record for id, creating or overwriting it.
	PutGrant(id CapID, g *Grant) error
	// ForEachGranteeGrant visits every grant held by grantee until fn
	// returns false or an error.
	ForEachGranteeGrant(grantee common.Address, fn func(id CapID, g *Grant) (bool, error)) error
	// GrantorNonce returns the grantor's current counter, zero if unset.
	GrantorNonce(grantor common.Address) (uint64, error)
	// SetGrantorNonce stores the grantor's counter.
	SetGrantorNonce(grantor common.Address, nonce uint64) error
}

// MemStore is an in-memory Store used by tests and ephemeral deployments.
type MemStore struct {
	mu         sync.Mutex
	grants     map[CapID]*Grant
	granteeIdx map[common.Address]map[CapID]struct{}
	nonces     map[common.Address]uint64
}

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{
		grants:     make(map[CapID]*Grant),
		granteeIdx: make(map[common.Address]map[CapID]struct{}),
		nonces:     make(map[common.Address]uint64),
	}
}

// GetGrant implements Store.
func (s *MemStore) GetGrant(id CapID) (*Grant, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.grants[id]
	if !ok {
		return nil, false, nil
	}
	cp := *g
	return &cp, true, nil
}

// PutGrant implements Store.
func (s *MemStore) PutGrant(id CapID, g *Grant) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *g
	s.grants[id] = &cp
	idx, ok := s.granteeIdx[g.Grantee]
	if !ok {
		idx = make(map[CapID]struct{})
		s.granteeIdx[g.Grantee] = idx
	}
	idx[id] = struct{}{}
	return nil
}

// ForEachGranteeGrant implements Store.
func (s *MemStore) ForEachGranteeGrant(grantee common.Address, fn func(id CapID, g *Grant) (bool, error)) error {
	s.mu.Lock()
	ids := make([]CapID, 0, len(s.granteeIdx[grantee]))
	for id := range s.granteeIdx[grantee] {
		ids = append(ids, id)
	}
	s.mu.Unlock()

	for _, id := range ids {
		g, ok, err := s.GetGrant(id)
		if err != nil {
			return err
		}
		if !ok {
			continue
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
}

// GrantorNonce implements Store.
func (s *MemStore) GrantorNonce(grantor common.Address) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nonces[grantor], nil
}

// SetGrantorNonce implements Store.
func (s *MemStore) SetGrantorNonce(grantor common.Address, nonce uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nonces[grantor] = nonce
	return nil
}
