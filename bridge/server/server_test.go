package server_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Vibecoders-Team/dfsp-sub000/bridge/server"
	"github.com/Vibecoders-Team/dfsp-sub000/client"
	"github.com/Vibecoders-Team/dfsp-sub000/crypto/argon2"
	"github.com/Vibecoders-Team/dfsp-sub000/crypto/keys"
	"github.com/Vibecoders-Team/dfsp-sub000/envelope"
	"github.com/Vibecoders-Team/dfsp-sub000/ledger"
	"github.com/Vibecoders-Team/dfsp-sub000/pow"
	"github.com/Vibecoders-Team/dfsp-sub000/relay"
	"github.com/Vibecoders-Team/dfsp-sub000/types/fileid"
	"github.com/Vibecoders-Team/dfsp-sub000/vault"
)

var testLedgerAddr = common.HexToAddress("0xCA11CA11CA11CA11CA11CA11CA11CA11CA11CA11")

func newTestServer(t *testing.T) (*server.Server, *httptest.Server) {
	t.Helper()

	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	cfg := &server.Config{
		ListenAddr:    ":0",
		SecretKey:     []byte("0123456789abcdef0123456789abcdef"),
		ChainID:       1337,
		LedgerAddress: testLedgerAddr,
		PowDifficulty: 8,
		PowAlgorithm:  pow.AlgSHA256,
		PowTTL:        time.Minute,
		SessionTTL:    time.Hour,
	}
	s := server.New(cfg, db, nil, nil, nil)

	ts := httptest.NewServer(s.Echo())
	t.Cleanup(ts.Close)
	return s, ts
}

func newTestClient(t *testing.T, base string) *client.Client {
	t.Helper()

	v := vault.New(
		filepath.Join(t.TempDir(), "keystore.json"),
		vault.WithKDFConfig(argon2.LightConfig()),
	)
	require.NoError(t, v.Unlock(context.Background(), []byte("Str0ngVaultSecret")))

	signer := relay.NewSigner(v, relay.DefaultDomain(1337, testLedgerAddr))
	return client.New(base, signer, client.WithSolver(pow.NewSolver(pow.WithWorkers(2))))
}

func TestServer_Health(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(ts.URL + "/ready")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var status map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
	assert.Equal(t, "ok", status["status"])
}

func TestServer_LoginAndPublish(t *testing.T) {
	_, ts := newTestServer(t)
	c := newTestClient(t, ts.URL)
	ctx := context.Background()

	// Login drives the whole admission path: proof refresh, challenge,
	// signed login, session token.
	require.NoError(t, c.Login(ctx))

	id, err := keys.Generate()
	require.NoError(t, err)

	dir := client.NewRemoteDirectory(c)
	require.NoError(t, dir.Publish(ctx, id.EncryptionPublicKey()))

	// The published key resolves under the session's address.
	addr, err := c.SignerAddress()
	require.NoError(t, err)
	key, err := dir.LookupEncryptionKey(addr)
	require.NoError(t, err)
	assert.Equal(t, id.EncryptionPublicKey().Bytes(true), key.Bytes(true))

	// A fresh directory instance hits the gateway, not the cache.
	fresh := client.NewRemoteDirectory(newTestClient(t, ts.URL))
	key, err = fresh.LookupEncryptionKey(addr)
	require.NoError(t, err)
	assert.Equal(t, id.EncryptionPublicKey().Bytes(true), key.Bytes(true))

	// Unknown addresses surface as the pausable share condition.
	other, err := keys.Generate()
	require.NoError(t, err)
	_, err = fresh.LookupEncryptionKey(other.Address())
	assert.ErrorIs(t, err, envelope.ErrRecipientKeyUnknown)
}

func TestServer_PublishRequiresSession(t *testing.T) {
	_, ts := newTestServer(t)
	c := newTestClient(t, ts.URL)

	id, err := keys.Generate()
	require.NoError(t, err)

	// No login: the JWT middleware rejects before the handler runs.
	dir := client.NewRemoteDirectory(c)
	assert.Error(t, dir.Publish(context.Background(), id.EncryptionPublicKey()))
}

func TestServer_GrantFlow(t *testing.T) {
	s, ts := newTestServer(t)
	c := newTestClient(t, ts.URL)
	ctx := context.Background()
	require.NoError(t, c.Login(ctx))

	file, err := fileid.FromContent([]byte("shared doc"))
	require.NoError(t, err)
	grantee, err := keys.Generate()
	require.NoError(t, err)

	capID, revert, err := c.Grant(ctx, testLedgerAddr, file, grantee.Address(), 3600, 2)
	require.NoError(t, err)
	require.Nil(t, revert)

	// The grant is visible through the keeper behind the server.
	grant, err := s.Keeper().GetGrant(capID)
	require.NoError(t, err)
	assert.Equal(t, grantee.Address(), grant.Grantee)

	// And through the read endpoints.
	resp, err := http.Get(ts.URL + "/v1/ledger/can-download?user=" + grantee.Address().Hex() + "&file=" + file.Hex())
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var cd struct {
		Allowed bool `json:"allowed"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&cd))
	assert.True(t, cd.Allowed)

	resp, err = http.Get(ts.URL + "/v1/ledger/grants/" + capID.Hex())
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var view struct {
		Grantee      string `json:"grantee"`
		MaxDownloads uint32 `json:"max_downloads"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&view))
	assert.Equal(t, grantee.Address().Hex(), view.Grantee)
	assert.Equal(t, uint32(2), view.MaxDownloads)

	// Unknown capability ids are a 404, not a 500.
	resp, err = http.Get(ts.URL + "/v1/ledger/grants/" + ledger.CapID{0xFF}.Hex())
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServer_RelayRequiresSession(t *testing.T) {
	_, ts := newTestServer(t)
	c := newTestClient(t, ts.URL)

	file, err := fileid.FromContent([]byte("doc"))
	require.NoError(t, err)

	_, _, err = c.Grant(context.Background(), testLedgerAddr, file,
		common.HexToAddress("0x2222222222222222222222222222222222222222"), 3600, 1)
	assert.Error(t, err)
}

func TestServer_EventStream(t *testing.T) {
	s, ts := newTestServer(t)

	grantor := common.HexToAddress("0x1111111111111111111111111111111111111111")
	grantee := common.HexToAddress("0x2222222222222222222222222222222222222222")

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/v1/events?address=" + grantee.Hex()
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	if resp != nil {
		resp.Body.Close()
	}
	defer conn.Close()

	file, err := fileid.FromContent([]byte("doc"))
	require.NoError(t, err)
	_, err = s.Keeper().Grant(grantor, file, grantee, 3600, 1)
	require.NoError(t, err)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var event ledger.Event
	require.NoError(t, conn.ReadJSON(&event))
	assert.Equal(t, ledger.EventGrantCreated, event.Type)
	assert.Equal(t, grantor, event.Grantor)
	assert.Equal(t, grantee, event.Grantee)
	assert.Equal(t, file.Hex(), event.FileHex)
}
