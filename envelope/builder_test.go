package envelope

import (
	"context"
	"path/filepath"
	"testing"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Vibecoders-Team/dfsp-sub000/crypto/argon2"
	"github.com/Vibecoders-Team/dfsp-sub000/crypto/keys"
	"github.com/Vibecoders-Team/dfsp-sub000/types/fileid"
	"github.com/Vibecoders-Team/dfsp-sub000/vault"
)

func newTestStore(t *testing.T) *ContentKeyStore {
	t.Helper()

	v := vault.New(
		filepath.Join(t.TempDir(), "keystore.json"),
		vault.WithKDFConfig(argon2.LightConfig()),
	)
	require.NoError(t, v.Unlock(context.Background(), []byte("Str0ngVaultSecret")))

	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store, err := OpenContentKeyStore(db, v)
	require.NoError(t, err)
	return store
}

func newRecipient(t *testing.T) (*keys.Identity, common.Address) {
	t.Helper()
	id, err := keys.Generate()
	require.NoError(t, err)
	return id, id.Address()
}

func testFile(t *testing.T, body string) fileid.FileID {
	t.Helper()
	id, err := fileid.FromContent([]byte(body))
	require.NoError(t, err)
	return id
}

func TestContentKeyStore_GetOrCreate(t *testing.T) {
	store := newTestStore(t)
	file := testFile(t, "doc")

	_, err := store.Get(file)
	assert.ErrorIs(t, err, ErrNoContentKey)

	key, err := store.GetOrCreate(file)
	require.NoError(t, err)
	assert.Len(t, key, ContentKeySize)

	// Stable across calls and re-shares.
	again, err := store.GetOrCreate(file)
	require.NoError(t, err)
	assert.Equal(t, key, again)

	// Distinct per file.
	other, err := store.GetOrCreate(testFile(t, "other"))
	require.NoError(t, err)
	assert.NotEqual(t, key, other)
}

func TestBuilder_ShareComplete(t *testing.T) {
	store := newTestStore(t)
	dir := NewMemDirectory()

	bobID, bobAddr := newRecipient(t)
	carolID, carolAddr := newRecipient(t)
	dir.Publish(bobAddr, bobID.EncryptionPublicKey())
	dir.Publish(carolAddr, carolID.EncryptionPublicKey())

	builder := NewBuilder(store, dir)
	file := testFile(t, "doc")

	op, err := builder.Share(file, []common.Address{bobAddr, carolAddr})
	require.NoError(t, err)
	require.True(t, op.Complete())

	env, err := op.Envelope()
	require.NoError(t, err)
	assert.Equal(t, file, env.File)
	require.Len(t, env.Recipients, 2)

	// Each recipient recovers the same content key; outsiders cannot.
	expected, err := store.Get(file)
	require.NoError(t, err)

	bobKey, err := UnwrapKey(env, bobID)
	require.NoError(t, err)
	assert.Equal(t, expected, bobKey)

	carolKey, err := UnwrapKey(env, carolID)
	require.NoError(t, err)
	assert.Equal(t, expected, carolKey)

	outsider, _ := newRecipient(t)
	_, err = UnwrapKey(env, outsider)
	assert.ErrorIs(t, err, ErrUnwrapFailed)
}

func TestBuilder_PauseAndResume(t *testing.T) {
	store := newTestStore(t)
	dir := NewMemDirectory()

	bobID, bobAddr := newRecipient(t)
	carolID, carolAddr := newRecipient(t)
	dir.Publish(bobAddr, bobID.EncryptionPublicKey())
	// Carol has not published yet.

	builder := NewBuilder(store, dir)
	file := testFile(t, "doc")

	op, err := builder.Share(file, []common.Address{bobAddr, carolAddr})
	require.NoError(t, err)
	require.False(t, op.Complete())

	blocked, ok := op.Blocked()
	require.True(t, ok)
	assert.Equal(t, carolAddr, blocked)
	assert.ErrorIs(t, op.Err(), ErrRecipientKeyUnknown)

	_, err = op.Envelope()
	assert.Error(t, err)

	// Resume without fixing the directory blocks on the same recipient.
	err = op.Resume()
	assert.ErrorIs(t, err, ErrRecipientKeyUnknown)

	keyBefore, err := store.Get(file)
	require.NoError(t, err)

	// Publish and resume: already-wrapped recipients are kept, the content
	// key is unchanged.
	dir.Publish(carolAddr, carolID.EncryptionPublicKey())
	require.NoError(t, op.Resume())
	require.True(t, op.Complete())

	env, err := op.Envelope()
	require.NoError(t, err)
	require.Len(t, env.Recipients, 2)

	carolKey, err := UnwrapKey(env, carolID)
	require.NoError(t, err)
	assert.Equal(t, keyBefore, carolKey)

	// Resuming a finished operation is an error.
	assert.ErrorIs(t, op.Resume(), ErrOperationDone)
}

func TestBuilder_SelfShare(t *testing.T) {
	v := vault.New(
		filepath.Join(t.TempDir(), "keystore.json"),
		vault.WithKDFConfig(argon2.LightConfig()),
	)
	require.NoError(t, v.Unlock(context.Background(), []byte("Str0ngVaultSecret")))

	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store, err := OpenContentKeyStore(db, v)
	require.NoError(t, err)

	self, err := v.Address()
	require.NoError(t, err)

	// The vault identity was never published anywhere; the share must still
	// complete by resolving it locally.
	builder := NewBuilder(store, NewVaultDirectory(v, NewMemDirectory()))
	file := testFile(t, "note to self")

	op, err := builder.Share(file, []common.Address{self})
	require.NoError(t, err)
	require.True(t, op.Complete())

	env, err := op.Envelope()
	require.NoError(t, err)
	require.Len(t, env.Recipients, 1)

	id, err := v.Identity()
	require.NoError(t, err)
	key, err := UnwrapKey(env, id)
	require.NoError(t, err)
	expected, err := store.Get(file)
	require.NoError(t, err)
	assert.Equal(t, expected, key)

	// Other recipients still resolve through the layered directory.
	bobID, bobAddr := newRecipient(t)
	dir := NewMemDirectory()
	dir.Publish(bobAddr, bobID.EncryptionPublicKey())
	mixed := NewBuilder(store, NewVaultDirectory(v, dir))

	op, err = mixed.Share(file, []common.Address{self, bobAddr})
	require.NoError(t, err)
	require.True(t, op.Complete())

	// A locked vault no longer resolves the self address.
	v.Lock()
	op, err = builder.Share(file, []common.Address{self})
	require.NoError(t, err)
	require.False(t, op.Complete())
	assert.ErrorIs(t, op.Err(), ErrRecipientKeyUnknown)
}

func TestBuilder_Skip(t *testing.T) {
	store := newTestStore(t)
	dir := NewMemDirectory()

	bobID, bobAddr := newRecipient(t)
	dir.Publish(bobAddr, bobID.EncryptionPublicKey())
	_, ghostAddr := newRecipient(t)

	builder := NewBuilder(store, dir)

	op, err := builder.Share(testFile(t, "doc"), []common.Address{ghostAddr, bobAddr})
	require.NoError(t, err)
	require.False(t, op.Complete())

	require.NoError(t, op.Skip())
	require.True(t, op.Complete())

	env, err := op.Envelope()
	require.NoError(t, err)
	require.Len(t, env.Recipients, 1)
	assert.Equal(t, bobAddr, env.Recipients[0].Recipient)
}

func TestSealOpenContent(t *testing.T) {
	store := newTestStore(t)
	file := testFile(t, "doc")
	other := testFile(t, "other")

	key, err := store.GetOrCreate(file)
	require.NoError(t, err)

	plaintext := []byte("the document body")
	sealed, err := SealContent(key, file, plaintext)
	require.NoError(t, err)

	opened, err := OpenContent(key, file, sealed)
	require.NoError(t, err)
	assert.Equal(t, plaintext, opened)

	// The sealed blob is bound to its file id.
	_, err = OpenContent(key, other, sealed)
	assert.Error(t, err)
}

func TestContentKeyStore_SealedAtRest(t *testing.T) {
	v := vault.New(
		filepath.Join(t.TempDir(), "keystore.json"),
		vault.WithKDFConfig(argon2.LightConfig()),
	)
	require.NoError(t, v.Unlock(context.Background(), []byte("Str0ngVaultSecret")))

	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
	require.NoError(t, err)
	defer db.Close()

	store, err := OpenContentKeyStore(db, v)
	require.NoError(t, err)

	file := testFile(t, "doc")
	key, err := store.GetOrCreate(file)
	require.NoError(t, err)

	// The raw database value is not the key.
	err = db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(append([]byte("env/ck/"), file.Bytes()...))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			assert.NotEqual(t, key, val)
			assert.NotContains(t, string(val), string(key))
			return nil
		})
	})
	require.NoError(t, err)

	// A second store instance over the same vault opens the same key.
	store2, err := OpenContentKeyStore(db, v)
	require.NoError(t, err)
	again, err := store2.Get(file)
	require.NoError(t, err)
	assert.Equal(t, key, again)
}
