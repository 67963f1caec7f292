package argon2

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Vibecoders-Team/dfsp-sub000/crypto/salt"
)

func TestKDF_DeriveKey(t *testing.T) {
	kdf := New(LightConfig())

	secret := []byte("test-secret-phrase")
	s, err := salt.FromBytes([]byte("salt-must-be-at-least-16-bytes!!"))
	require.NoError(t, err)

	key := kdf.DeriveKey(secret, s)
	assert.Len(t, key, int(kdf.Config().KeyLength))

	// Same inputs produce the same key.
	key2 := kdf.DeriveKey(secret, s)
	assert.Equal(t, key, key2)

	// Different secret produces a different key.
	key3 := kdf.DeriveKey([]byte("different"), s)
	assert.NotEqual(t, key, key3)

	// Different salt produces a different key.
	s2, err := salt.FromBytes([]byte("different-salt-at-least-16-bytes"))
	require.NoError(t, err)
	key4 := kdf.DeriveKey(secret, s2)
	assert.NotEqual(t, key, key4)
}

func TestKDF_GenerateSalt(t *testing.T) {
	kdf := New(LightConfig())

	s1, err := kdf.GenerateSalt()
	require.NoError(t, err)
	assert.Equal(t, int(kdf.Config().SaltLength), s1.Size())

	s2, err := kdf.GenerateSalt()
	require.NoError(t, err)
	assert.NotEqual(t, s1.Bytes(), s2.Bytes())
}

func TestValidateConfig(t *testing.T) {
	require.NoError(t, ValidateConfig(DefaultConfig()))
	require.NoError(t, ValidateConfig(LightConfig()))

	bad := DefaultConfig()
	bad.KeyLength = 0
	assert.Error(t, ValidateConfig(bad))
}
