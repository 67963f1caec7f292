package ledger

import (
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Vibecoders-Team/dfsp-sub000/types/fileid"
)

var (
	alice = common.HexToAddress("0x1111111111111111111111111111111111111111")
	bob   = common.HexToAddress("0x2222222222222222222222222222222222222222")
	carol = common.HexToAddress("0x3333333333333333333333333333333333333333")
)

// testClock is an adjustable time source.
type testClock struct {
	t time.Time
}

func (c *testClock) now() time.Time {
	return c.t
}

func (c *testClock) advance(d time.Duration) {
	c.t = c.t.Add(d)
}

func newTestKeeper(t *testing.T, opts ...KeeperOption) (*Keeper, *testClock) {
	t.Helper()
	clock := &testClock{t: time.Unix(1_700_000_000, 0)}
	opts = append([]KeeperOption{WithClock(clock.now)}, opts...)
	return NewKeeper(NewMemStore(), opts...), clock
}

func testFile(t *testing.T, body string) fileid.FileID {
	t.Helper()
	id, err := fileid.FromContent([]byte(body))
	require.NoError(t, err)
	return id
}

func TestKeeper_GrantAndConsume(t *testing.T) {
	k, _ := newTestKeeper(t)
	file := testFile(t, "doc")

	id, err := k.Grant(alice, file, bob, 3600, 2)
	require.NoError(t, err)

	// Two downloads succeed, the third exhausts.
	require.NoError(t, k.UseOnce(bob, id))
	require.NoError(t, k.UseOnce(bob, id))
	err = k.UseOnce(bob, id)
	assert.ErrorIs(t, err, ErrExhaustedGrant)

	grant, err := k.GetGrant(id)
	require.NoError(t, err)
	assert.Equal(t, uint32(2), grant.Used)
}

func TestKeeper_GrantValidation(t *testing.T) {
	k, _ := newTestKeeper(t)
	file := testFile(t, "doc")

	_, err := k.Grant(alice, file, bob, 3600, 0)
	assert.ErrorIs(t, err, ErrMaxDownloadsZero)

	_, err = k.Grant(alice, file, common.Address{}, 3600, 1)
	assert.ErrorIs(t, err, ErrInvalidGrantee)

	// Failed calls must not shift the nonce.
	nonce, err := k.GrantorNonce(alice)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), nonce)
}

func TestKeeper_CapIDDerivation(t *testing.T) {
	k, _ := newTestKeeper(t)
	file := testFile(t, "doc")

	// The identifier is predictable from the grantor's current nonce.
	nonce, err := k.GrantorNonce(alice)
	require.NoError(t, err)
	predicted, err := DeriveCapID(alice, bob, file, nonce)
	require.NoError(t, err)

	id, err := k.Grant(alice, file, bob, 3600, 1)
	require.NoError(t, err)
	assert.Equal(t, predicted, id)

	// Each commit advances the nonce, so the same tuple yields a new id.
	id2, err := k.Grant(alice, file, bob, 3600, 1)
	require.NoError(t, err)
	assert.NotEqual(t, id, id2)

	nonce, err = k.GrantorNonce(alice)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), nonce)
}

func TestKeeper_UseOnceAuthorization(t *testing.T) {
	k, _ := newTestKeeper(t)
	file := testFile(t, "doc")

	id, err := k.Grant(alice, file, bob, 3600, 1)
	require.NoError(t, err)

	// Only the grantee may consume; even the grantor is rejected.
	assert.ErrorIs(t, k.UseOnce(alice, id), ErrNotGrantee)
	assert.ErrorIs(t, k.UseOnce(carol, id), ErrNotGrantee)

	assert.ErrorIs(t, k.UseOnce(bob, CapID{0xFF}), ErrGrantNotFound)
}

func TestKeeper_UseOncePriorityOrder(t *testing.T) {
	k, clock := newTestKeeper(t)
	file := testFile(t, "doc")

	id, err := k.Grant(alice, file, bob, 60, 1)
	require.NoError(t, err)
	require.NoError(t, k.UseOnce(bob, id))
	require.NoError(t, k.Revoke(alice, id))
	clock.advance(2 * time.Minute)

	// Grant is now revoked, expired, and exhausted at once. Grantee mismatch
	// outranks everything; revocation outranks expiry and exhaustion.
	assert.ErrorIs(t, k.UseOnce(carol, id), ErrNotGrantee)
	assert.ErrorIs(t, k.UseOnce(bob, id), ErrRevokedGrant)
}

func TestKeeper_ExpiryBeforeExhaustion(t *testing.T) {
	k, clock := newTestKeeper(t)
	file := testFile(t, "doc")

	id, err := k.Grant(alice, file, bob, 60, 1)
	require.NoError(t, err)
	require.NoError(t, k.UseOnce(bob, id))
	clock.advance(2 * time.Minute)

	assert.ErrorIs(t, k.UseOnce(bob, id), ErrExpiredGrant)
}

func TestKeeper_RevokeIsPermanent(t *testing.T) {
	k, _ := newTestKeeper(t)
	file := testFile(t, "doc")

	id, err := k.Grant(alice, file, bob, 3600, 5)
	require.NoError(t, err)

	assert.ErrorIs(t, k.Revoke(bob, id), ErrNotGrantor)
	require.NoError(t, k.Revoke(alice, id))

	// No un-revoke path; a second revoke reports the state.
	assert.ErrorIs(t, k.Revoke(alice, id), ErrRevokedGrant)
	assert.ErrorIs(t, k.UseOnce(bob, id), ErrRevokedGrant)

	assert.ErrorIs(t, k.Revoke(alice, CapID{0xFF}), ErrGrantNotFound)
}

func TestKeeper_CanDownload(t *testing.T) {
	k, clock := newTestKeeper(t)
	file := testFile(t, "doc")
	other := testFile(t, "other")

	ok, err := k.CanDownload(bob, file)
	require.NoError(t, err)
	assert.False(t, ok)

	id, err := k.Grant(alice, file, bob, 60, 1)
	require.NoError(t, err)

	ok, err = k.CanDownload(bob, file)
	require.NoError(t, err)
	assert.True(t, ok)

	// Different file, different grantee: no.
	ok, err = k.CanDownload(bob, other)
	require.NoError(t, err)
	assert.False(t, ok)
	ok, err = k.CanDownload(carol, file)
	require.NoError(t, err)
	assert.False(t, ok)

	// Expired grants stop counting.
	clock.advance(2 * time.Minute)
	ok, err = k.CanDownload(bob, file)
	require.NoError(t, err)
	assert.False(t, ok)

	// A fresh grant restores access; revoking it removes it again.
	id, err = k.Grant(alice, file, bob, 3600, 1)
	require.NoError(t, err)
	ok, err = k.CanDownload(bob, file)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, k.Revoke(alice, id))
	ok, err = k.CanDownload(bob, file)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestKeeper_GrantBearerDisabled(t *testing.T) {
	k, _ := newTestKeeper(t)
	_, err := k.GrantBearer(alice, testFile(t, "doc"), 3600, 1)
	assert.ErrorIs(t, err, ErrBearerNotEnabled)
}

func TestKeeper_Events(t *testing.T) {
	var events []Event
	sink := func(e Event) { events = append(events, e) }

	clock := &testClock{t: time.Unix(1_700_000_000, 0)}
	k := NewKeeper(NewMemStore(), WithClock(clock.now), WithEvents(sink))
	file := testFile(t, "doc")

	id, err := k.Grant(alice, file, bob, 3600, 1)
	require.NoError(t, err)
	require.NoError(t, k.UseOnce(bob, id))
	require.NoError(t, k.Revoke(alice, id))

	// Failed operations emit nothing.
	assert.Error(t, k.UseOnce(bob, id))

	require.Len(t, events, 3)
	assert.Equal(t, EventGrantCreated, events[0].Type)
	assert.Equal(t, EventGrantUsed, events[1].Type)
	assert.Equal(t, uint32(1), events[1].Used)
	assert.Equal(t, EventGrantRevoked, events[2].Type)
	for _, e := range events {
		assert.Equal(t, id.Hex(), e.CapHex)
		assert.Equal(t, alice, e.Grantor)
		assert.Equal(t, bob, e.Grantee)
	}
}

func TestDeriveCapID_Deterministic(t *testing.T) {
	file := testFile(t, "doc")

	a, err := DeriveCapID(alice, bob, file, 7)
	require.NoError(t, err)
	b, err := DeriveCapID(alice, bob, file, 7)
	require.NoError(t, err)
	assert.Equal(t, a, b)

	c, err := DeriveCapID(alice, bob, file, 8)
	require.NoError(t, err)
	assert.NotEqual(t, a, c)

	d, err := DeriveCapID(alice, carol, file, 7)
	require.NoError(t, err)
	assert.NotEqual(t, a, d)
}

func TestMarshalGrant_RoundTrip(t *testing.T) {
	g := &Grant{
		Grantor:      alice,
		Grantee:      bob,
		FileID:       testFile(t, "doc"),
		ExpiresAt:    1_700_003_600,
		MaxDownloads: 3,
		Used:         1,
		CreatedAt:    1_700_000_000,
		Revoked:      true,
	}

	data, err := MarshalGrant(g)
	require.NoError(t, err)
	back, err := UnmarshalGrant(data)
	require.NoError(t, err)
	assert.Equal(t, g, back)
}
