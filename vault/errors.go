package vault

import "cosmossdk.io/errors"

// Codespace for vault error conditions.
const Codespace = "vault"

// Distinguished vault conditions. Callers branch on these to decide whether
// to re-prompt for the secret, so they must never be collapsed into a
// generic failure.
var (
	ErrLocked          = errors.Register(Codespace, 1, "vault is locked")
	ErrWrongSecret     = errors.Register(Codespace, 2, "keystore authentication failed")
	ErrCorruptKeystore = errors.Register(Codespace, 3, "keystore envelope is corrupt")
	ErrUnknownVersion  = errors.Register(Codespace, 4, "unknown keystore version")
	ErrNoKeystore      = errors.Register(Codespace, 5, "no keystore present")
	ErrSecretPolicy    = errors.Register(Codespace, 6, "secret does not meet policy")
)
