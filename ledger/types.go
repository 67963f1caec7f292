// Package ledger implements the capability grant state machine: issuance,
// consumption, and revocation of time- and count-limited decryption grants,
// keyed by deterministically derived capability identifiers.
package ledger

import (
	"encoding/hex"

	bare "git.sr.ht/~sircmpwn/go-bare"
	"github.com/ethereum/go-ethereum/common"

	"github.com/Vibecoders-Team/dfsp-sub000/types/fileid"
)

// CapID is the 32-byte capability identifier naming one grant record.
type CapID [32]byte

// CapIDFromBytes builds a CapID from a raw 32-byte slice.
func CapIDFromBytes(data []byte) (CapID, error) {
	if len(data) != 32 {
		return CapID{}, ErrGrantNotFound.Wrapf("invalid capability id length %d", len(data))
	}
	var id CapID
	copy(id[:], data)
	return id, nil
}

// CapIDFromHex parses a 0x-prefixed or bare hex capability identifier.
func CapIDFromHex(s string) (CapID, error) {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		s = s[2:]
	}
	raw, err := hex.DecodeString(s)
	if err != nil {
		return CapID{}, ErrGrantNotFound.Wrapf("invalid capability id: %v", err)
	}
	return CapIDFromBytes(raw)
}

// Hex returns the 0x-prefixed hex form of the identifier.
func (c CapID) Hex() string {
	return "0x" + hex.EncodeToString(c[:])
}

// String implements fmt.Stringer.
func (c CapID) String() string {
	return c.Hex()
}

// Bytes returns the identifier as a slice.
func (c CapID) Bytes() []byte {
	out := make([]byte, 32)
	copy(out, c[:])
	return out
}

// Grant is one authorization record. CreatedAt == 0 is the sentinel for
// "grant does not exist"; records are never deleted, only revoked or
// exhausted.
type Grant struct {
	Grantor      common.Address
	Grantee      common.Address
	FileID       fileid.FileID
	ExpiresAt    int64
	MaxDownloads uint32
	Used         uint32
	CreatedAt    int64
	Revoked      bool
}

// Exists reports whether the record denotes a committed grant.
func (g *Grant) Exists() bool {
	return g != nil && g.CreatedAt != 0
}

// Live reports whether the grant can still authorize a download at the
// given unix time.
func (g *Grant) Live(now int64) bool {
	if !g.Exists() || g.Revoked {
		return false
	}
	if now > g.ExpiresAt {
		return false
	}
	return g.Used < g.MaxDownloads
}

// grantRecord is the persisted wire form of a Grant.
type grantRecord struct {
	Grantor      [20]byte
	Grantee      [20]byte
	FileID       [32]byte
	ExpiresAt    int64
	MaxDownloads uint32
	Used         uint32
	CreatedAt    int64
	Revoked      bool
}

// MarshalGrant encodes a grant for storage.
func MarshalGrant(g *Grant) ([]byte, error) {
	rec := grantRecord{
		Grantor:      [20]byte(g.Grantor),
		Grantee:      [20]byte(g.Grantee),
		FileID:       [32]byte(g.FileID),
		ExpiresAt:    g.ExpiresAt,
		MaxDownloads: g.MaxDownloads,
		Used:         g.Used,
		CreatedAt:    g.CreatedAt,
		Revoked:      g.Revoked,
	}
	data, err := bare.Marshal(&rec)
	if err != nil {
		return nil, ErrStoreFailure.Wrapf("failed to encode grant: %v", err)
	}
	return data, nil
}

// UnmarshalGrant decodes a stored grant record.
func UnmarshalGrant(data []byte) (*Grant, error) {
	var rec grantRecord
	if err := bare.Unmarshal(data, &rec); err != nil {
		return nil, ErrStoreFailure.Wrapf("failed to decode grant: %v", err)
	}
	return &Grant{
		Grantor:      common.Address(rec.Grantor),
		Grantee:      common.Address(rec.Grantee),
		FileID:       fileid.FileID(rec.FileID),
		ExpiresAt:    rec.ExpiresAt,
		MaxDownloads: rec.MaxDownloads,
		Used:         rec.Used,
		CreatedAt:    rec.CreatedAt,
		Revoked:      rec.Revoked,
	}, nil
}
