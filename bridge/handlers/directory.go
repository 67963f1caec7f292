package handlers

import (
	"encoding/base64"
	"net/http"

	"github.com/dgraph-io/badger/v4"
	ecies "github.com/ecies/go/v2"
	"github.com/ethereum/go-ethereum/common"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/Vibecoders-Team/dfsp-sub000/relay"
)

// DirectoryEntry is a published encryption key on the wire.
type DirectoryEntry struct {
	Address       string `json:"address"`
	EncryptionKey string `json:"encryption_key"`
}

const directoryPrefix = "dir/"

// DirectoryHandlers stores and serves published encryption keys. Lookups
// are public; publishing requires an authenticated session and only for the
// session's own address.
type DirectoryHandlers struct {
	db     *badger.DB
	logger *zap.Logger
}

// NewDirectoryHandlers creates the directory handlers.
func NewDirectoryHandlers(db *badger.DB, logger *zap.Logger) *DirectoryHandlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DirectoryHandlers{db: db, logger: logger}
}

func directoryKey(addr common.Address) []byte {
	return append([]byte(directoryPrefix), addr.Bytes()...)
}

// LookupHandler returns the published key for an address, or 404.
func (d *DirectoryHandlers) LookupHandler(c echo.Context) error {
	raw := c.Param("address")
	if !common.IsHexAddress(raw) {
		return writeError(c, relay.ErrBadRequest.Wrap("invalid address"))
	}
	addr := common.HexToAddress(raw)

	var keyBytes []byte
	err := d.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(directoryKey(addr))
		if err != nil {
			return err
		}
		keyBytes, err = item.ValueCopy(nil)
		return err
	})
	if err == badger.ErrKeyNotFound {
		return c.JSON(http.StatusNotFound, ErrorBody{Message: "no published key"})
	}
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, DirectoryEntry{
		Address:       addr.Hex(),
		EncryptionKey: base64.StdEncoding.EncodeToString(keyBytes),
	})
}

// PublishHandler stores the session holder's encryption key. The address in
// the payload must match the authenticated session, so a session cannot
// overwrite another peer's key.
func (d *DirectoryHandlers) PublishHandler(c echo.Context) error {
	session, ok := SessionAddress(c)
	if !ok {
		return writeError(c, relay.ErrInvalidSignature.Wrap("no session"))
	}

	var entry DirectoryEntry
	if err := c.Bind(&entry); err != nil {
		return writeError(c, relay.ErrBadRequest.Wrap("invalid JSON payload"))
	}
	if !common.IsHexAddress(entry.Address) || common.HexToAddress(entry.Address) != session {
		return writeError(c, relay.ErrBadRequest.Wrap("address does not match session"))
	}

	keyBytes, err := base64.StdEncoding.DecodeString(entry.EncryptionKey)
	if err != nil {
		return writeError(c, relay.ErrBadRequest.Wrap("invalid key encoding"))
	}
	if _, err := ecies.NewPublicKeyFromBytes(keyBytes); err != nil {
		return writeError(c, relay.ErrBadRequest.Wrap("invalid encryption key"))
	}

	err = d.db.Update(func(txn *badger.Txn) error {
		return txn.Set(directoryKey(session), keyBytes)
	})
	if err != nil {
		return writeError(c, err)
	}

	d.logger.Info("encryption key published", zap.String("address", session.Hex()))
	return c.NoContent(http.StatusNoContent)
}
