package envelope

import "cosmossdk.io/errors"

// Codespace for envelope error conditions.
const Codespace = "envelope"

var (
	ErrRecipientKeyUnknown = errors.Register(Codespace, 1, "recipient encryption key unknown")
	ErrNoContentKey        = errors.Register(Codespace, 2, "no content key for file")
	ErrWrapFailed          = errors.Register(Codespace, 3, "failed to wrap content key")
	ErrUnwrapFailed        = errors.Register(Codespace, 4, "failed to unwrap content key")
	ErrNotBlocked          = errors.Register(Codespace, 5, "share operation is not blocked")
	ErrOperationDone       = errors.Register(Codespace, 6, "share operation already completed")
)
