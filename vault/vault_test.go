package vault

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Vibecoders-Team/dfsp-sub000/crypto/argon2"
	"github.com/Vibecoders-Team/dfsp-sub000/crypto/keys"
)

var testSecret = []byte("Correct0Horse1Battery")

func newTestVault(t *testing.T, opts ...Option) *Vault {
	t.Helper()
	path := filepath.Join(t.TempDir(), "keystore.json")
	opts = append([]Option{WithKDFConfig(argon2.LightConfig())}, opts...)
	return New(path, opts...)
}

func TestVault_LockedOperationsFail(t *testing.T) {
	v := newTestVault(t)
	require.True(t, v.Locked())

	_, err := v.Address()
	assert.ErrorIs(t, err, ErrLocked)

	_, err = v.SignDigest(make([]byte, 32))
	assert.ErrorIs(t, err, ErrLocked)

	_, err = v.DeriveSubKey("content-keys")
	assert.ErrorIs(t, err, ErrLocked)
}

func TestVault_UnlockThenSign(t *testing.T) {
	v := newTestVault(t)

	digest := ethcrypto.Keccak256([]byte("payload"))
	_, err := v.SignDigest(digest)
	require.ErrorIs(t, err, ErrLocked)

	require.NoError(t, v.Unlock(context.Background(), testSecret))
	require.False(t, v.Locked())

	sig, err := v.SignDigest(digest)
	require.NoError(t, err)

	addr, err := v.Address()
	require.NoError(t, err)

	recovered, err := keys.RecoverAddress(digest, sig)
	require.NoError(t, err)
	assert.Equal(t, addr, recovered)
}

func TestVault_FirstUnlockEnforcesSecretPolicy(t *testing.T) {
	v := newTestVault(t)

	err := v.Unlock(context.Background(), []byte("weak"))
	assert.ErrorIs(t, err, ErrSecretPolicy)
	assert.False(t, v.Exists())
}

func TestVault_PersistenceAcrossInstances(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keystore.json")

	v1 := New(path, WithKDFConfig(argon2.LightConfig()))
	require.NoError(t, v1.Unlock(context.Background(), testSecret))
	addr1, err := v1.Address()
	require.NoError(t, err)
	v1.Lock()

	v2 := New(path, WithKDFConfig(argon2.LightConfig()))
	require.True(t, v2.Exists())
	require.NoError(t, v2.Unlock(context.Background(), testSecret))
	addr2, err := v2.Address()
	require.NoError(t, err)

	assert.Equal(t, addr1, addr2)
}

func TestVault_WrongSecret(t *testing.T) {
	v := newTestVault(t)
	require.NoError(t, v.Unlock(context.Background(), testSecret))
	v.Lock()

	err := v.Unlock(context.Background(), []byte("Wrong0Secret1Phrase"))
	assert.ErrorIs(t, err, ErrWrongSecret)
	assert.True(t, v.Locked())
}

func TestVault_LockIsIdempotent(t *testing.T) {
	v := newTestVault(t)
	require.NoError(t, v.Unlock(context.Background(), testSecret))

	v.Lock()
	v.Lock()
	assert.True(t, v.Locked())
}

func TestVault_AutoRelock(t *testing.T) {
	v := newTestVault(t, WithRelockAfter(30*time.Millisecond))
	require.NoError(t, v.Unlock(context.Background(), testSecret))
	require.False(t, v.Locked())

	assert.Eventually(t, v.Locked, time.Second, 10*time.Millisecond)
}

func TestVault_DeriveSubKey(t *testing.T) {
	v := newTestVault(t)
	require.NoError(t, v.Unlock(context.Background(), testSecret))

	a, err := v.DeriveSubKey("content-keys")
	require.NoError(t, err)
	assert.Len(t, a, 32)

	// Deterministic per label, distinct across labels.
	b, err := v.DeriveSubKey("content-keys")
	require.NoError(t, err)
	assert.Equal(t, a, b)

	c, err := v.DeriveSubKey("other")
	require.NoError(t, err)
	assert.NotEqual(t, a, c)
}

func TestVault_ExportRestore(t *testing.T) {
	v := newTestVault(t)

	_, err := v.Export()
	assert.ErrorIs(t, err, ErrNoKeystore)

	require.NoError(t, v.Unlock(context.Background(), testSecret))
	addr, err := v.Address()
	require.NoError(t, err)

	backup, err := v.Export()
	require.NoError(t, err)

	restored := newTestVault(t)
	require.NoError(t, restored.Restore(backup))
	require.True(t, restored.Locked())

	require.NoError(t, restored.Unlock(context.Background(), testSecret))
	addr2, err := restored.Address()
	require.NoError(t, err)
	assert.Equal(t, addr, addr2)
}

func TestVault_RestoreRejectsUnknownVersion(t *testing.T) {
	v := newTestVault(t)
	require.NoError(t, v.Unlock(context.Background(), testSecret))

	backup, err := v.Export()
	require.NoError(t, err)

	var env map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(backup, &env))
	env["version"] = json.RawMessage("99")
	tampered, err := json.Marshal(env)
	require.NoError(t, err)

	target := newTestVault(t)
	err = target.Restore(tampered)
	assert.ErrorIs(t, err, ErrUnknownVersion)
}

func TestVault_Wipe(t *testing.T) {
	v := newTestVault(t)
	require.NoError(t, v.Unlock(context.Background(), testSecret))
	require.True(t, v.Exists())

	require.NoError(t, v.Wipe())
	assert.True(t, v.Locked())
	assert.False(t, v.Exists())
}
