package ledger

import "cosmossdk.io/errors"

// Codespace for capability ledger error conditions.
const Codespace = "caps"

// Named grant conditions, surfaced verbatim to callers. All of them are
// terminal for the operation that raised them; none is retried automatically.
var (
	ErrAlreadyExists    = errors.Register(Codespace, 1, "capability already exists")
	ErrNotGrantor       = errors.Register(Codespace, 2, "caller is not the grantor")
	ErrNotGrantee       = errors.Register(Codespace, 3, "caller is not the grantee")
	ErrRevokedGrant     = errors.Register(Codespace, 4, "grant is revoked")
	ErrExpiredGrant     = errors.Register(Codespace, 5, "grant has expired")
	ErrExhaustedGrant   = errors.Register(Codespace, 6, "grant download quota exhausted")
	ErrMaxDownloadsZero = errors.Register(Codespace, 7, "max downloads must be positive")
	ErrInvalidGrantee   = errors.Register(Codespace, 8, "grantee address is invalid")
	ErrBearerNotEnabled = errors.Register(Codespace, 9, "bearer capabilities are not enabled")
	ErrGrantNotFound    = errors.Register(Codespace, 10, "grant not found")
	ErrStoreFailure     = errors.Register(Codespace, 11, "ledger store failure")
)
