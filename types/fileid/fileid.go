// Package fileid defines the 32-byte content handle shared by the capability
// ledger, the envelope builder, and the gateway. A handle is the sha2-256
// multihash digest of the file content, so it is stable across uploads and
// convertible to and from a CIDv1 for content-addressed retrieval.
package fileid

import (
	"bytes"
	"encoding/hex"
	"fmt"

	"github.com/ipfs/go-cid"
	mh "github.com/multiformats/go-multihash"
)

// Size is the length of a content handle.
const Size = 32

// FileID is a 32-byte content handle.
type FileID [Size]byte

// FromContent derives the handle for raw file content.
func FromContent(data []byte) (FileID, error) {
	sum, err := mh.Sum(data, mh.SHA2_256, -1)
	if err != nil {
		return FileID{}, fmt.Errorf("failed to hash content: %w", err)
	}

	decoded, err := mh.Decode(sum)
	if err != nil {
		return FileID{}, fmt.Errorf("failed to decode multihash: %w", err)
	}

	var id FileID
	copy(id[:], decoded.Digest)
	return id, nil
}

// FromCID extracts the handle from a CID whose multihash is sha2-256.
func FromCID(c cid.Cid) (FileID, error) {
	decoded, err := mh.Decode(c.Hash())
	if err != nil {
		return FileID{}, fmt.Errorf("failed to decode CID multihash: %w", err)
	}
	if decoded.Code != mh.SHA2_256 || decoded.Length != Size {
		return FileID{}, fmt.Errorf("unsupported CID digest: code=0x%x length=%d", decoded.Code, decoded.Length)
	}

	var id FileID
	copy(id[:], decoded.Digest)
	return id, nil
}

// FromBytes builds a handle from a raw 32-byte slice.
func FromBytes(data []byte) (FileID, error) {
	if len(data) != Size {
		return FileID{}, fmt.Errorf("invalid handle length: expected %d bytes, got %d", Size, len(data))
	}
	var id FileID
	copy(id[:], data)
	return id, nil
}

// FromHex parses a hex-encoded handle, with or without a 0x prefix.
func FromHex(s string) (FileID, error) {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		s = s[2:]
	}
	raw, err := hex.DecodeString(s)
	if err != nil {
		return FileID{}, fmt.Errorf("failed to decode handle: %w", err)
	}
	return FromBytes(raw)
}

// CID returns the CIDv1 (raw codec) form of the handle for retrieval.
func (id FileID) CID() (cid.Cid, error) {
	sum, err := mh.Encode(id[:], mh.SHA2_256)
	if err != nil {
		return cid.Undef, fmt.Errorf("failed to encode multihash: %w", err)
	}
	return cid.NewCidV1(cid.Raw, sum), nil
}

// Bytes returns the handle as a slice.
func (id FileID) Bytes() []byte {
	out := make([]byte, Size)
	copy(out, id[:])
	return out
}

// Hex returns the 0x-prefixed hex form.
func (id FileID) Hex() string {
	return "0x" + hex.EncodeToString(id[:])
}

// String implements fmt.Stringer.
func (id FileID) String() string {
	return id.Hex()
}

// IsZero reports whether the handle is all zeros.
func (id FileID) IsZero() bool {
	return bytes.Equal(id[:], make([]byte, Size))
}
