package fileid

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromContent_Deterministic(t *testing.T) {
	a, err := FromContent([]byte("the file body"))
	require.NoError(t, err)
	b, err := FromContent([]byte("the file body"))
	require.NoError(t, err)
	assert.Equal(t, a, b)

	c, err := FromContent([]byte("different body"))
	require.NoError(t, err)
	assert.NotEqual(t, a, c)
}

func TestCID_RoundTrip(t *testing.T) {
	id, err := FromContent([]byte("content"))
	require.NoError(t, err)

	c, err := id.CID()
	require.NoError(t, err)

	back, err := FromCID(c)
	require.NoError(t, err)
	assert.Equal(t, id, back)
}

func TestFromHex(t *testing.T) {
	id, err := FromContent([]byte("content"))
	require.NoError(t, err)

	back, err := FromHex(id.Hex())
	require.NoError(t, err)
	assert.Equal(t, id, back)

	_, err = FromHex("0xdeadbeef")
	assert.Error(t, err)
}

func TestFromBytes(t *testing.T) {
	_, err := FromBytes(make([]byte, 31))
	assert.Error(t, err)

	raw := make([]byte, 32)
	raw[0] = 0x01
	id, err := FromBytes(raw)
	require.NoError(t, err)
	assert.Equal(t, raw, id.Bytes())
	assert.False(t, id.IsZero())
	assert.True(t, FileID{}.IsZero())
}
