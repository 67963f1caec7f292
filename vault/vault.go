// Package vault implements the local key custody store. A vault is either
// locked (no decrypted key material resident) or unlocked (identity cached
// with an inactivity relock timer). All signing and unwrapping operations
// require the unlocked state and fail with ErrLocked otherwise, so callers
// can catch that one condition and re-prompt for the secret.
package vault

import (
	"context"
	"crypto/sha256"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	ecies "github.com/ecies/go/v2"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
	"golang.org/x/crypto/hkdf"
	"golang.org/x/sync/singleflight"

	"github.com/Vibecoders-Team/dfsp-sub000/crypto/argon2"
	"github.com/Vibecoders-Team/dfsp-sub000/crypto/keys"
	"github.com/Vibecoders-Team/dfsp-sub000/crypto/password"
)

// DefaultRelockAfter is the inactivity window before the vault relocks.
const DefaultRelockAfter = 15 * time.Minute

// Vault owns the encrypted-at-rest identity and its decrypted cache. It is
// the single writer of that cache; the relock timer and all operations are
// serialized through one mutex.
type Vault struct {
	path        string
	kdfConfig   *argon2.Config
	relockAfter time.Duration
	validator   *password.Validator
	logger      *zap.Logger
	now         func() time.Time

	unlockGroup singleflight.Group

	mu        sync.Mutex
	identity  *keys.Identity
	createdAt int64
	relock    *time.Timer
}

// Option configures a Vault.
type Option func(*Vault)

// WithRelockAfter overrides the inactivity relock window.
func WithRelockAfter(d time.Duration) Option {
	return func(v *Vault) { v.relockAfter = d }
}

// WithKDFConfig overrides the key-derivation parameters for new keystores.
func WithKDFConfig(cfg *argon2.Config) Option {
	return func(v *Vault) { v.kdfConfig = cfg }
}

// WithSecretPolicy overrides the policy applied when a keystore is created.
func WithSecretPolicy(p *password.Policy) Option {
	return func(v *Vault) { v.validator = password.NewValidator(p) }
}

// WithLogger attaches a structured logger.
func WithLogger(l *zap.Logger) Option {
	return func(v *Vault) { v.logger = l }
}

// New creates a vault backed by the keystore file at path. The vault starts
// locked; no file is created until the first unlock.
func New(path string, opts ...Option) *Vault {
	v := &Vault{
		path:        path,
		kdfConfig:   argon2.DefaultConfig(),
		relockAfter: DefaultRelockAfter,
		validator:   password.NewValidator(nil),
		logger:      zap.NewNop(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Locked reports whether no decrypted key material is resident.
func (v *Vault) Locked() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.identity == nil
}

// Exists reports whether a keystore file has been persisted.
func (v *Vault) Exists() bool {
	_, err := os.Stat(v.path)
	return err == nil
}

// Unlock decrypts the persisted identity with the given secret. The first
// unlock with no keystore present generates fresh identities and persists
// them under the secret. Concurrent unlock attempts are coalesced into a
// single outstanding request.
func (v *Vault) Unlock(ctx context.Context, secret []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	_, err, _ := v.unlockGroup.Do("unlock", func() (interface{}, error) {
		return nil, v.unlock(secret)
	})
	return err
}

func (v *Vault) unlock(secret []byte) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.identity != nil {
		v.touchLocked()
		return nil
	}

	data, err := os.ReadFile(v.path)
	switch {
	case os.IsNotExist(err):
		return v.initializeLocked(secret)
	case err != nil:
		return ErrCorruptKeystore.Wrapf("failed to read keystore: %v", err)
	}

	id, createdAt, err := openKeystore(secret, data)
	if err != nil {
		return err
	}

	v.identity = id
	v.createdAt = createdAt
	v.touchLocked()
	v.logger.Debug("vault unlocked", zap.String("address", id.Address().Hex()))
	return nil
}

// initializeLocked creates and persists a fresh identity. Caller holds mu.
func (v *Vault) initializeLocked(secret []byte) error {
	if err := v.validator.Validate(secret); err != nil {
		return ErrSecretPolicy.Wrap(err.Error())
	}

	id, err := keys.Generate()
	if err != nil {
		return ErrCorruptKeystore.Wrapf("failed to generate identity: %v", err)
	}

	createdAt := v.now().Unix()
	data, err := sealKeystore(secret, id, createdAt, v.kdfConfig)
	if err != nil {
		return err
	}
	if err := writeFileAtomic(v.path, data); err != nil {
		return ErrCorruptKeystore.Wrapf("failed to persist keystore: %v", err)
	}

	v.identity = id
	v.createdAt = createdAt
	v.touchLocked()
	v.logger.Info("vault initialized", zap.String("address", id.Address().Hex()))
	return nil
}

// Lock drops the decrypted key material. Locking an already-locked vault is
// a no-op.
func (v *Vault) Lock() {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.relock != nil {
		v.relock.Stop()
		v.relock = nil
	}
	if v.identity != nil {
		v.identity.Clear()
		v.identity = nil
		v.logger.Debug("vault locked")
	}
}

// touchLocked resets the relock timer. Caller holds mu.
func (v *Vault) touchLocked() {
	if v.relockAfter <= 0 {
		return
	}
	if v.relock != nil {
		v.relock.Reset(v.relockAfter)
		return
	}
	v.relock = time.AfterFunc(v.relockAfter, v.Lock)
}

// Identity returns the decrypted identity, failing with ErrLocked while
// locked. Each successful call counts as activity for the relock timer.
func (v *Vault) Identity() (*keys.Identity, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.identity == nil {
		return nil, ErrLocked
	}
	v.touchLocked()
	return v.identity, nil
}

// Address returns the account address of the signing identity.
func (v *Vault) Address() (common.Address, error) {
	id, err := v.Identity()
	if err != nil {
		return common.Address{}, err
	}
	return id.Address(), nil
}

// EncryptionPublicKey returns the public half of the encryption identity.
func (v *Vault) EncryptionPublicKey() (*ecies.PublicKey, error) {
	id, err := v.Identity()
	if err != nil {
		return nil, err
	}
	return id.EncryptionPublicKey(), nil
}

// SignDigest signs a 32-byte digest with the signing identity.
func (v *Vault) SignDigest(digest []byte) ([]byte, error) {
	id, err := v.Identity()
	if err != nil {
		return nil, err
	}
	return id.SignDigest(digest)
}

// DeriveSubKey derives a purpose-bound 32-byte symmetric key from the
// encryption identity, used to seal local stores such as content keys.
func (v *Vault) DeriveSubKey(label string) ([]byte, error) {
	id, err := v.Identity()
	if err != nil {
		return nil, err
	}

	reader := hkdf.New(sha256.New, id.EncryptionKeyBytes(), nil, []byte("dfsp-subkey-"+label))
	key := make([]byte, 32)
	if _, err := io.ReadFull(reader, key); err != nil {
		return nil, ErrCorruptKeystore.Wrapf("failed to derive subkey: %v", err)
	}
	return key, nil
}

// Export returns the encrypted keystore envelope for backup.
func (v *Vault) Export() ([]byte, error) {
	data, err := os.ReadFile(v.path)
	if os.IsNotExist(err) {
		return nil, ErrNoKeystore
	}
	if err != nil {
		return nil, ErrCorruptKeystore.Wrapf("failed to read keystore: %v", err)
	}
	return data, nil
}

// Restore writes a previously exported keystore envelope, rejecting unknown
// versions rather than guessing a layout. The vault stays locked.
func (v *Vault) Restore(data []byte) error {
	if _, err := parseEnvelope(data); err != nil {
		return err
	}

	v.Lock()
	if err := writeFileAtomic(v.path, data); err != nil {
		return ErrCorruptKeystore.Wrapf("failed to persist keystore: %v", err)
	}
	return nil
}

// Wipe locks the vault and removes the persisted keystore.
func (v *Vault) Wipe() error {
	v.Lock()
	if err := os.Remove(v.path); err != nil && !os.IsNotExist(err) {
		return ErrCorruptKeystore.Wrapf("failed to remove keystore: %v", err)
	}
	return nil
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".keystore-*")
	if err != nil {
		return err
	}
	name := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(name)
		return err
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		os.Remove(name)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(name)
		return err
	}
	return os.Rename(name, path)
}
