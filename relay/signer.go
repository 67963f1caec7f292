package relay

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/Vibecoders-Team/dfsp-sub000/vault"
)

// Signer produces typed-data signatures with the vault's signing identity.
// All operations fail with the vault's locked condition while no key
// material is resident, which callers catch to re-prompt for the secret.
type Signer struct {
	vault  *vault.Vault
	domain Domain
}

// NewSigner binds a vault to a signing domain.
func NewSigner(v *vault.Vault, domain Domain) *Signer {
	return &Signer{vault: v, domain: domain}
}

// Domain returns the signing domain.
func (s *Signer) Domain() Domain {
	return s.domain
}

// Address returns the signer's address. It fails while the vault is locked.
func (s *Signer) Address() (common.Address, error) {
	return s.vault.Address()
}

// SignForwardRequest signs a forward request, returning the 65-byte
// recoverable signature the forwarder verifies.
func (s *Signer) SignForwardRequest(req *ForwardRequest) ([]byte, error) {
	digest, err := HashForwardRequest(s.domain, req)
	if err != nil {
		return nil, err
	}
	return s.vault.SignDigest(digest)
}

// SignLoginChallenge signs a gateway login challenge.
func (s *Signer) SignLoginChallenge(ch *LoginChallenge) ([]byte, error) {
	digest, err := HashLoginChallenge(s.domain, ch)
	if err != nil {
		return nil, err
	}
	return s.vault.SignDigest(digest)
}
