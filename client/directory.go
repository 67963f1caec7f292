package client

import (
	"context"
	"encoding/base64"
	"sync"

	ecies "github.com/ecies/go/v2"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"

	"github.com/Vibecoders-Team/dfsp-sub000/envelope"
	"github.com/Vibecoders-Team/dfsp-sub000/vault"
)

// NewDirectory builds the share flow's resolver: the caller's own address
// resolves from the local vault, everyone else through the gateway.
func NewDirectory(v *vault.Vault, c *Client) envelope.Directory {
	return envelope.NewVaultDirectory(v, NewRemoteDirectory(c))
}

// DirectoryEntry is the wire shape of a published encryption key.
type DirectoryEntry struct {
	Address       string `json:"address"`
	EncryptionKey string `json:"encryption_key"`
}

// RemoteDirectory resolves peer encryption keys through the gateway and
// caches hits. Published keys are immutable in practice, so the cache has
// no expiry; a process restart refetches.
type RemoteDirectory struct {
	client *Client

	mu    sync.RWMutex
	cache map[common.Address]*ecies.PublicKey
}

// NewRemoteDirectory wraps a gateway client.
func NewRemoteDirectory(c *Client) *RemoteDirectory {
	return &RemoteDirectory{
		client: c,
		cache:  make(map[common.Address]*ecies.PublicKey),
	}
}

// LookupEncryptionKey implements envelope.Directory. A gateway 404 maps to
// the envelope package's unknown-recipient condition so share operations
// pause instead of failing.
func (d *RemoteDirectory) LookupEncryptionKey(addr common.Address) (*ecies.PublicKey, error) {
	d.mu.RLock()
	key, ok := d.cache[addr]
	d.mu.RUnlock()
	if ok {
		return key, nil
	}

	var entry DirectoryEntry
	err := d.client.get(context.Background(), "/v1/directory/"+addr.Hex(), &entry)
	if err != nil {
		var se *StatusError
		if errors.As(err, &se) && se.StatusCode == 404 {
			return nil, envelope.ErrRecipientKeyUnknown.Wrap(addr.Hex())
		}
		return nil, errors.Wrap(err, "directory lookup")
	}

	raw, err := base64.StdEncoding.DecodeString(entry.EncryptionKey)
	if err != nil {
		return nil, errors.Wrap(err, "decode directory entry")
	}
	key, err = ecies.NewPublicKeyFromBytes(raw)
	if err != nil {
		return nil, errors.Wrap(err, "parse directory entry")
	}

	d.mu.Lock()
	d.cache[addr] = key
	d.mu.Unlock()
	return key, nil
}

// Publish uploads this signer's encryption key so peers can wrap content
// keys for it.
func (d *RemoteDirectory) Publish(ctx context.Context, key *ecies.PublicKey) error {
	addr, err := d.client.signerAddress()
	if err != nil {
		return err
	}
	entry := DirectoryEntry{
		Address:       addr.Hex(),
		EncryptionKey: base64.StdEncoding.EncodeToString(key.Bytes(true)),
	}
	if err := d.client.post(ctx, "/v1/directory", entry, nil); err != nil {
		return errors.Wrap(err, "publish encryption key")
	}

	d.mu.Lock()
	d.cache[addr] = key
	d.mu.Unlock()
	return nil
}
