package ledger

import (
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/Vibecoders-Team/dfsp-sub000/types/fileid"
)

// Capability identifiers are a pure function of ledger state — never of
// wall-clock or block randomness — so an off-chain caller holding the
// grantor's current nonce can predict the identifier before submission.
// The derivation is keccak256(abi.encode(grantor, grantee, fileId, nonce))
// with the grantor's pre-increment nonce.

var capIDArgs abi.Arguments

func init() {
	mustType := func(s string) abi.Type {
		t, err := abi.NewType(s, "", nil)
		if err != nil {
			panic(fmt.Sprintf("abi type %q: %v", s, err))
		}
		return t
	}
	capIDArgs = abi.Arguments{
		{Type: mustType("address")},
		{Type: mustType("address")},
		{Type: mustType("bytes32")},
		{Type: mustType("uint64")},
	}
}

// DeriveCapID computes the capability identifier for a grant tuple.
func DeriveCapID(grantor, grantee common.Address, file fileid.FileID, nonce uint64) (CapID, error) {
	packed, err := capIDArgs.Pack(grantor, grantee, [32]byte(file), nonce)
	if err != nil {
		return CapID{}, ErrStoreFailure.Wrapf("failed to encode capability tuple: %v", err)
	}
	return CapID(ethcrypto.Keccak256Hash(packed)), nil
}
