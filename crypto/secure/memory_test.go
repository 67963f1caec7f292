package secure

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestZeroize(t *testing.T) {
	data := []byte("sensitive")
	Zeroize(data)
	assert.Equal(t, make([]byte, len("sensitive")), data)
}

func TestZeroizeMultiple(t *testing.T) {
	a := []byte("first")
	b := []byte("second")
	ZeroizeMultiple(a, b, nil)
	assert.Equal(t, make([]byte, 5), a)
	assert.Equal(t, make([]byte, 6), b)
}

func TestCompare(t *testing.T) {
	assert.True(t, Compare([]byte("same"), []byte("same")))
	assert.False(t, Compare([]byte("same"), []byte("diff")))
	assert.False(t, Compare([]byte("same"), []byte("longer input")))
}

func TestRandom(t *testing.T) {
	a := make([]byte, 32)
	b := make([]byte, 32)
	require.NoError(t, Random(a))
	require.NoError(t, Random(b))
	assert.False(t, bytes.Equal(a, b))
}
