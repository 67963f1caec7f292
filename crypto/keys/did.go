package keys

import (
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2"
	mb "github.com/multiformats/go-multibase"
	varint "github.com/multiformats/go-varint"
)

const (
	// KeyPrefix indicates a decentralized identifier that uses the key method.
	KeyPrefix = "did:key"
	// MulticodecSecp256k1PubKey is the secp256k1-pub multicodec.
	MulticodecSecp256k1PubKey = 0xe7
)

// PublicID returns the did:key form of the signing public key, a portable
// string encoding for exchanging identities out of band.
func (id *Identity) PublicID() string {
	return EncodePublicID(id.signing.PubKey())
}

// EncodePublicID formats a secp256k1 public key as a did:key string.
func EncodePublicID(pub *btcec.PublicKey) string {
	raw := pub.SerializeCompressed()

	size := varint.UvarintSize(MulticodecSecp256k1PubKey)
	data := make([]byte, size+len(raw))
	n := varint.PutUvarint(data, MulticodecSecp256k1PubKey)
	copy(data[n:], raw)

	encoded, err := mb.Encode(mb.Base58BTC, data)
	if err != nil {
		return ""
	}
	return fmt.Sprintf("%s:%s", KeyPrefix, encoded)
}

// ParsePublicID decodes a did:key string back into a secp256k1 public key.
func ParsePublicID(keystr string) (*btcec.PublicKey, error) {
	if !strings.HasPrefix(keystr, KeyPrefix+":") {
		return nil, fmt.Errorf("invalid identifier: expected %q prefix", KeyPrefix)
	}

	_, data, err := mb.Decode(strings.TrimPrefix(keystr, KeyPrefix+":"))
	if err != nil {
		return nil, fmt.Errorf("failed to decode identifier: %w", err)
	}

	codec, n, err := varint.FromUvarint(data)
	if err != nil {
		return nil, fmt.Errorf("failed to read multicodec: %w", err)
	}
	if codec != MulticodecSecp256k1PubKey {
		return nil, fmt.Errorf("unsupported key multicodec: 0x%x", codec)
	}

	pub, err := btcec.ParsePubKey(data[n:])
	if err != nil {
		return nil, fmt.Errorf("failed to parse public key: %w", err)
	}
	return pub, nil
}
