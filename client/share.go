package client

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"

	"github.com/Vibecoders-Team/dfsp-sub000/envelope"
	"github.com/Vibecoders-Team/dfsp-sub000/ledger"
	"github.com/Vibecoders-Team/dfsp-sub000/relay"
	"github.com/Vibecoders-Team/dfsp-sub000/types/fileid"
)

// Ledger calls through the relay: the client encodes the call payload,
// signs it, and interprets the returndata. A sub-call revert comes back as
// a *relay.Revert the caller can match against the ledger's registered
// conditions.

// Grant creates a capability for grantee on file via the relay.
func (c *Client) Grant(ctx context.Context, target common.Address, file fileid.FileID, grantee common.Address, ttlSec uint64, maxDownloads uint32) (ledger.CapID, *relay.Revert, error) {
	data, err := relay.EncodeGrantCall(file, grantee, ttlSec, maxDownloads)
	if err != nil {
		return ledger.CapID{}, nil, err
	}
	returndata, revert, err := c.Execute(ctx, target, data)
	if err != nil || revert != nil {
		return ledger.CapID{}, revert, err
	}
	id, err := relay.DecodeCapIDResult(returndata)
	if err != nil {
		return ledger.CapID{}, nil, errors.Wrap(err, "decode grant result")
	}
	return id, nil, nil
}

// Revoke revokes a capability via the relay.
func (c *Client) Revoke(ctx context.Context, target common.Address, id ledger.CapID) (*relay.Revert, error) {
	data, err := relay.EncodeRevokeCall(id)
	if err != nil {
		return nil, err
	}
	_, revert, err := c.Execute(ctx, target, data)
	return revert, err
}

// UseOnce consumes one download from a capability via the relay.
func (c *Client) UseOnce(ctx context.Context, target common.Address, id ledger.CapID) (*relay.Revert, error) {
	data, err := relay.EncodeUseOnceCall(id)
	if err != nil {
		return nil, err
	}
	_, revert, err := c.Execute(ctx, target, data)
	return revert, err
}

// CanDownload asks the ledger whether user currently holds a live
// capability for file. Advisory only: the answer can go stale the moment
// it is produced.
func (c *Client) CanDownload(ctx context.Context, target common.Address, user common.Address, file fileid.FileID) (bool, error) {
	data, err := relay.EncodeCanDownloadCall(user, file)
	if err != nil {
		return false, err
	}
	returndata, revert, err := c.Execute(ctx, target, data)
	if err != nil {
		return false, err
	}
	if revert != nil {
		return false, errors.Errorf("canDownload reverted: %s", revert.Message)
	}
	return relay.DecodeBoolResult(returndata)
}

// ShareResult is the outcome of a full share flow.
type ShareResult struct {
	Envelope *envelope.Envelope
	Grants   map[common.Address]ledger.CapID
}

// ShareFile runs the end-to-end share flow: build the envelope (wrapping
// the content key for each recipient) and create one capability per
// recipient through the relay. A recipient with no published encryption
// key blocks the whole flow before any grant is written, so the ledger
// never holds capabilities the recipient cannot use.
func (c *Client) ShareFile(ctx context.Context, builder *envelope.Builder, target common.Address, file fileid.FileID, recipients []common.Address, ttlSec uint64, maxDownloads uint32) (*ShareResult, error) {
	op, err := builder.Share(file, recipients)
	if err != nil {
		return nil, errors.Wrap(err, "start share")
	}
	defer op.Close()

	if !op.Complete() {
		if blocked, ok := op.Blocked(); ok {
			return nil, errors.Wrapf(op.Err(), "share blocked on %s", blocked.Hex())
		}
		return nil, op.Err()
	}

	env, err := op.Envelope()
	if err != nil {
		return nil, err
	}

	result := &ShareResult{
		Envelope: env,
		Grants:   make(map[common.Address]ledger.CapID, len(recipients)),
	}
	for _, recipient := range recipients {
		id, revert, err := c.Grant(ctx, target, file, recipient, ttlSec, maxDownloads)
		if err != nil {
			return result, errors.Wrapf(err, "grant to %s", recipient.Hex())
		}
		if revert != nil {
			return result, errors.Errorf("grant to %s reverted: %s", recipient.Hex(), revert.Message)
		}
		result.Grants[recipient] = id
	}
	return result, nil
}
