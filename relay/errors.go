package relay

import "cosmossdk.io/errors"

// Codespace for relay dispatcher error conditions.
const Codespace = "relay"

// Relay-level rejections. These are distinct from target-level failures,
// which Execute reports through the returndata payload so callers can retry
// the two classes differently.
var (
	ErrInvalidSignature = errors.Register(Codespace, 1, "signature does not match request signer")
	ErrNonceMismatch    = errors.Register(Codespace, 2, "request nonce does not match signer counter")
	ErrUnknownTarget    = errors.Register(Codespace, 3, "no target registered for address")
	ErrBadRequest       = errors.Register(Codespace, 4, "malformed forward request")
	ErrBadCalldata      = errors.Register(Codespace, 5, "malformed call payload")
)
