package salt

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate(t *testing.T) {
	s1, err := Generate(DefaultSize)
	require.NoError(t, err)
	assert.Equal(t, DefaultSize, s1.Size())

	s2, err := Generate(DefaultSize)
	require.NoError(t, err)
	assert.NotEqual(t, s1.Bytes(), s2.Bytes())
}

func TestGenerate_RejectsBadSizes(t *testing.T) {
	_, err := Generate(MinSize - 1)
	assert.Error(t, err)

	_, err = Generate(MaxSize + 1)
	assert.Error(t, err)
}

func TestFromBytes(t *testing.T) {
	raw := bytes.Repeat([]byte{0xAB}, MinSize)
	s, err := FromBytes(raw)
	require.NoError(t, err)
	assert.Equal(t, raw, s.Bytes())

	_, err = FromBytes([]byte("short"))
	assert.Error(t, err)
}

func TestSalt_Clear(t *testing.T) {
	s, err := GenerateDefault()
	require.NoError(t, err)
	require.False(t, s.IsEmpty())

	s.Clear()
	assert.True(t, s.IsEmpty())
}

func TestSalt_StringIsRedacted(t *testing.T) {
	s, err := GenerateDefault()
	require.NoError(t, err)
	assert.Equal(t, "Salt{size=32}", s.String())
}
