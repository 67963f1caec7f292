// Package keys implements the dual asymmetric identity used by the custody
// vault: a secp256k1 ECDSA keypair for recoverable signing and a separate
// secp256k1 keypair used exclusively for ECIES key wrapping. The two roles
// never share key material.
package keys

import (
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	ecies "github.com/ecies/go/v2"
	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/Vibecoders-Team/dfsp-sub000/crypto/secure"
)

// PrivateKeySize is the length of a serialized secp256k1 private scalar.
const PrivateKeySize = 32

// DigestSize is the length of a signable digest.
const DigestSize = 32

// SignatureSize is the length of a recoverable [R || S || V] signature.
const SignatureSize = 65

// Identity holds a signing keypair and a distinct encryption keypair.
type Identity struct {
	signing    *btcec.PrivateKey
	encryption *ecies.PrivateKey
}

// Generate creates a fresh identity with independent keypairs.
func Generate() (*Identity, error) {
	signing, err := btcec.NewPrivateKey()
	if err != nil {
		return nil, fmt.Errorf("failed to generate signing key: %w", err)
	}
	encryption, err := ecies.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("failed to generate encryption key: %w", err)
	}
	return &Identity{signing: signing, encryption: encryption}, nil
}

// FromMaterial reconstructs an identity from serialized private keys, as
// stored in the keystore payload.
func FromMaterial(signingKey, encryptionKey []byte) (*Identity, error) {
	if len(signingKey) != PrivateKeySize {
		return nil, fmt.Errorf("invalid signing key length: expected %d bytes, got %d", PrivateKeySize, len(signingKey))
	}
	if len(encryptionKey) != PrivateKeySize {
		return nil, fmt.Errorf("invalid encryption key length: expected %d bytes, got %d", PrivateKeySize, len(encryptionKey))
	}

	signing, _ := btcec.PrivKeyFromBytes(signingKey)
	encryption := ecies.NewPrivateKeyFromBytes(encryptionKey)
	return &Identity{signing: signing, encryption: encryption}, nil
}

// SigningKeyBytes returns the serialized signing private key, or nil after
// Clear.
func (id *Identity) SigningKeyBytes() []byte {
	if id.signing == nil {
		return nil
	}
	return id.signing.Serialize()
}

// EncryptionKeyBytes returns the serialized encryption private key, or nil
// after Clear.
func (id *Identity) EncryptionKeyBytes() []byte {
	if id.encryption == nil {
		return nil
	}
	return id.encryption.Bytes()
}

// Address returns the 20-byte account address derived from the signing
// public key.
func (id *Identity) Address() common.Address {
	return ethcrypto.PubkeyToAddress(id.signing.ToECDSA().PublicKey)
}

// SigningPublicKey returns the signing public key.
func (id *Identity) SigningPublicKey() *btcec.PublicKey {
	return id.signing.PubKey()
}

// EncryptionPublicKey returns the public half of the encryption keypair.
// This is the key a counterparty wraps content keys to.
func (id *Identity) EncryptionPublicKey() *ecies.PublicKey {
	return id.encryption.PublicKey
}

// SignDigest produces a 65-byte recoverable signature over a 32-byte digest.
func (id *Identity) SignDigest(digest []byte) ([]byte, error) {
	if len(digest) != DigestSize {
		return nil, fmt.Errorf("invalid digest length: expected %d bytes, got %d", DigestSize, len(digest))
	}
	priv := id.signing.ToECDSA()
	// ethcrypto.Sign compares the curve by instance identity, so the
	// btcec-provided curve must be swapped for go-ethereum's equivalent.
	priv.Curve = ethcrypto.S256()
	sig, err := ethcrypto.Sign(digest, priv)
	if err != nil {
		return nil, fmt.Errorf("failed to sign digest: %w", err)
	}
	return sig, nil
}

// Decrypt unwraps a ciphertext addressed to this identity's encryption key.
func (id *Identity) Decrypt(ciphertext []byte) ([]byte, error) {
	plaintext, err := ecies.Decrypt(id.encryption, ciphertext)
	if err != nil {
		return nil, fmt.Errorf("failed to unwrap ciphertext: %w", err)
	}
	return plaintext, nil
}

// Clear zeroizes the serialized forms it can reach. The underlying scalar
// copies inside the curve libraries are not addressable from here.
func (id *Identity) Clear() {
	if id.signing != nil {
		secure.Zeroize(id.signing.Serialize())
		id.signing = nil
	}
	if id.encryption != nil {
		secure.Zeroize(id.encryption.Bytes())
		id.encryption = nil
	}
}

// RecoverAddress recovers the account address that produced a recoverable
// signature over digest. Accepts both 0/1 and 27/28 recovery identifiers.
func RecoverAddress(digest, sig []byte) (common.Address, error) {
	if len(digest) != DigestSize {
		return common.Address{}, fmt.Errorf("invalid digest length: expected %d bytes, got %d", DigestSize, len(digest))
	}
	if len(sig) != SignatureSize {
		return common.Address{}, fmt.Errorf("invalid signature length: expected %d bytes, got %d", SignatureSize, len(sig))
	}

	normalized := make([]byte, SignatureSize)
	copy(normalized, sig)
	if normalized[64] >= 27 {
		normalized[64] -= 27
	}

	pub, err := ethcrypto.SigToPub(digest, normalized)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to recover signer: %w", err)
	}
	return ethcrypto.PubkeyToAddress(*pub), nil
}
