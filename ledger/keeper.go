package ledger

import (
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/Vibecoders-Team/dfsp-sub000/types/fileid"
)

// Keeper is the authoritative grant state machine. Every mutating call is
// serialized through one mutex, emulating the total ordering the hosting
// ledger provides, so a call either commits completely or leaves no trace.
type Keeper struct {
	mu     sync.Mutex
	store  Store
	now    func() time.Time
	events EventSink
	logger *zap.Logger
}

// KeeperOption configures a Keeper.
type KeeperOption func(*Keeper)

// WithClock overrides the time source; tests use this for expiry control.
func WithClock(now func() time.Time) KeeperOption {
	return func(k *Keeper) { k.now = now }
}

// WithEvents attaches a sink for committed grant transitions.
func WithEvents(sink EventSink) KeeperOption {
	return func(k *Keeper) { k.events = sink }
}

// WithLogger attaches a structured logger.
func WithLogger(l *zap.Logger) KeeperOption {
	return func(k *Keeper) { k.logger = l }
}

// NewKeeper creates a keeper over the given store.
func NewKeeper(store Store, opts ...KeeperOption) *Keeper {
	k := &Keeper{
		store:  store,
		now:    time.Now,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(k)
	}
	return k
}

func (k *Keeper) emit(e Event) {
	if k.events != nil {
		k.events(e)
	}
}

// Grant creates a capability authorizing grantee to decrypt file, valid for
// ttlSec seconds and maxDownloads uses. The caller's nonce is read before
// derivation and incremented only after the record is committed, so a failed
// call never shifts the nonce and the identifier stays predictable.
func (k *Keeper) Grant(grantor common.Address, file fileid.FileID, grantee common.Address, ttlSec uint64, maxDownloads uint32) (CapID, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if maxDownloads == 0 {
		return CapID{}, ErrMaxDownloadsZero
	}
	if grantee == (common.Address{}) {
		return CapID{}, ErrInvalidGrantee
	}

	nonce, err := k.store.GrantorNonce(grantor)
	if err != nil {
		return CapID{}, err
	}

	id, err := DeriveCapID(grantor, grantee, file, nonce)
	if err != nil {
		return CapID{}, err
	}

	// Occupied slots should be impossible under correct nonce bookkeeping;
	// this guards against hash collision or nonce corruption.
	if _, exists, err := k.store.GetGrant(id); err != nil {
		return CapID{}, err
	} else if exists {
		return CapID{}, ErrAlreadyExists.Wrap(id.Hex())
	}

	now := k.now()
	grant := &Grant{
		Grantor:      grantor,
		Grantee:      grantee,
		FileID:       file,
		ExpiresAt:    now.Unix() + int64(ttlSec),
		MaxDownloads: maxDownloads,
		CreatedAt:    now.Unix(),
	}
	if err := k.store.PutGrant(id, grant); err != nil {
		return CapID{}, err
	}
	// Increment strictly after the record is committed.
	if err := k.store.SetGrantorNonce(grantor, nonce+1); err != nil {
		return CapID{}, err
	}

	k.logger.Info("grant created",
		zap.String("cap_id", id.Hex()),
		zap.String("grantor", grantor.Hex()),
		zap.String("grantee", grantee.Hex()),
		zap.Uint32("max_downloads", maxDownloads),
	)
	k.emit(newEvent(EventGrantCreated, id, grant, now))
	return id, nil
}

// Revoke permanently disables a grant. Only the original grantor may revoke,
// and there is no un-revoke path.
func (k *Keeper) Revoke(caller common.Address, id CapID) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	grant, exists, err := k.store.GetGrant(id)
	if err != nil {
		return err
	}
	if !exists || !grant.Exists() {
		return ErrGrantNotFound.Wrap(id.Hex())
	}
	if grant.Grantor != caller {
		return ErrNotGrantor
	}
	if grant.Revoked {
		return ErrRevokedGrant
	}

	grant.Revoked = true
	if err := k.store.PutGrant(id, grant); err != nil {
		return err
	}

	k.logger.Info("grant revoked", zap.String("cap_id", id.Hex()))
	k.emit(newEvent(EventGrantRevoked, id, grant, k.now()))
	return nil
}

// UseOnce consumes one download from a grant. Only the grantee may consume.
// Failure conditions are checked in a fixed priority order: grantee
// mismatch, revocation, expiry, exhaustion.
func (k *Keeper) UseOnce(caller common.Address, id CapID) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	grant, exists, err := k.store.GetGrant(id)
	if err != nil {
		return err
	}
	if !exists || !grant.Exists() {
		return ErrGrantNotFound.Wrap(id.Hex())
	}
	if grant.Grantee != caller {
		return ErrNotGrantee
	}
	if grant.Revoked {
		return ErrRevokedGrant
	}
	now := k.now()
	if now.Unix() > grant.ExpiresAt {
		return ErrExpiredGrant
	}
	if grant.Used >= grant.MaxDownloads {
		return ErrExhaustedGrant
	}

	grant.Used++
	if err := k.store.PutGrant(id, grant); err != nil {
		return err
	}

	k.logger.Debug("grant used",
		zap.String("cap_id", id.Hex()),
		zap.Uint32("used", grant.Used),
		zap.Uint32("max_downloads", grant.MaxDownloads),
	)
	k.emit(newEvent(EventGrantUsed, id, grant, now))
	return nil
}

// CanDownload reports whether user currently holds at least one live grant
// for file. It is a read-only pre-check for the gateway; UseOnce remains the
// authoritative gate.
func (k *Keeper) CanDownload(user common.Address, file fileid.FileID) (bool, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	now := k.now().Unix()
	found := false
	err := k.store.ForEachGranteeGrant(user, func(_ CapID, g *Grant) (bool, error) {
		if g.FileID == file && g.Live(now) {
			found = true
			return false, nil
		}
		return true, nil
	})
	if err != nil {
		return false, err
	}
	return found, nil
}

// GrantBearer would issue an anonymous bearer capability. The mode is
// deliberately not enabled; the hard failure documents the deferral and must
// not be replaced with a silent implementation.
func (k *Keeper) GrantBearer(common.Address, fileid.FileID, uint64, uint32) (CapID, error) {
	return CapID{}, ErrBearerNotEnabled
}

// GetGrant returns the record for id.
func (k *Keeper) GetGrant(id CapID) (*Grant, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	grant, exists, err := k.store.GetGrant(id)
	if err != nil {
		return nil, err
	}
	if !exists || !grant.Exists() {
		return nil, ErrGrantNotFound.Wrap(id.Hex())
	}
	return grant, nil
}

// GrantorNonce exposes the grantor's current counter so off-chain callers
// can predict the next capability identifier.
func (k *Keeper) GrantorNonce(grantor common.Address) (uint64, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.store.GrantorNonce(grantor)
}
