package handlers

import (
	"math/big"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/Vibecoders-Team/dfsp-sub000/ledger"
	"github.com/Vibecoders-Team/dfsp-sub000/relay"
	"github.com/Vibecoders-Team/dfsp-sub000/types/fileid"
)

// RelayRequest is a signed forward request on the wire.
type RelayRequest struct {
	From      string `json:"from"`
	To        string `json:"to"`
	Value     string `json:"value"`
	Gas       uint64 `json:"gas"`
	Nonce     uint64 `json:"nonce"`
	Data      string `json:"data"`
	Signature string `json:"signature"`
}

// RelayResponse reports the sub-call outcome. When OK is false the
// returndata decodes to a structured revert.
type RelayResponse struct {
	OK         bool   `json:"ok"`
	Returndata string `json:"returndata"`
}

// NonceResponse is a signer's stored replay counter.
type NonceResponse struct {
	Nonce uint64 `json:"nonce"`
}

// CanDownloadResponse is the advisory permission answer.
type CanDownloadResponse struct {
	Allowed bool `json:"allowed"`
}

// RelayHandlers exposes the forwarder and ledger read paths over HTTP.
type RelayHandlers struct {
	forwarder *relay.Forwarder
	keeper    *ledger.Keeper
	logger    *zap.Logger
}

// NewRelayHandlers creates the relay handlers.
func NewRelayHandlers(forwarder *relay.Forwarder, keeper *ledger.Keeper, logger *zap.Logger) *RelayHandlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RelayHandlers{forwarder: forwarder, keeper: keeper, logger: logger}
}

// ExecuteHandler verifies and dispatches a forward request. Relay-level
// rejections (bad signature, nonce mismatch) map to HTTP errors; sub-call
// failures come back as a 200 with ok=false and revert returndata, since
// the relay did its job.
func (h *RelayHandlers) ExecuteHandler(c echo.Context) error {
	var req RelayRequest
	if err := c.Bind(&req); err != nil {
		return writeError(c, relay.ErrBadRequest.Wrap("invalid JSON payload"))
	}
	if !common.IsHexAddress(req.From) || !common.IsHexAddress(req.To) {
		return writeError(c, relay.ErrBadRequest.Wrap("invalid address"))
	}

	value := new(big.Int)
	if req.Value != "" {
		if _, ok := value.SetString(req.Value, 10); !ok {
			return writeError(c, relay.ErrBadRequest.Wrap("invalid value"))
		}
	}

	fwd := &relay.ForwardRequest{
		From:  common.HexToAddress(req.From),
		To:    common.HexToAddress(req.To),
		Value: value,
		Gas:   req.Gas,
		Nonce: req.Nonce,
		Data:  common.FromHex(req.Data),
	}

	ok, returndata, err := h.forwarder.Execute(fwd, common.FromHex(req.Signature))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, RelayResponse{
		OK:         ok,
		Returndata: "0x" + common.Bytes2Hex(returndata),
	})
}

// NonceHandler returns a signer's current replay counter.
func (h *RelayHandlers) NonceHandler(c echo.Context) error {
	raw := c.Param("address")
	if !common.IsHexAddress(raw) {
		return writeError(c, relay.ErrBadRequest.Wrap("invalid address"))
	}
	nonce, err := h.forwarder.Nonce(common.HexToAddress(raw))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, NonceResponse{Nonce: nonce})
}

// CanDownloadHandler answers the advisory permission query directly
// against the keeper, without going through the relay.
func (h *RelayHandlers) CanDownloadHandler(c echo.Context) error {
	rawUser := c.QueryParam("user")
	if !common.IsHexAddress(rawUser) {
		return writeError(c, relay.ErrBadRequest.Wrap("invalid user address"))
	}
	file, err := fileid.FromHex(c.QueryParam("file"))
	if err != nil {
		return writeError(c, relay.ErrBadRequest.Wrap("invalid file id"))
	}

	allowed, err := h.keeper.CanDownload(common.HexToAddress(rawUser), file)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, CanDownloadResponse{Allowed: allowed})
}

// GrantView is the wire form of a grant record.
type GrantView struct {
	CapID        string `json:"cap_id"`
	Grantor      string `json:"grantor"`
	Grantee      string `json:"grantee"`
	FileID       string `json:"file_id"`
	ExpiresAt    int64  `json:"expires_at"`
	MaxDownloads uint32 `json:"max_downloads"`
	Used         uint32 `json:"used"`
	CreatedAt    int64  `json:"created_at"`
	Revoked      bool   `json:"revoked"`
}

// GrantHandler returns a single grant by capability id.
func (h *RelayHandlers) GrantHandler(c echo.Context) error {
	id, err := ledger.CapIDFromHex(c.Param("capid"))
	if err != nil {
		return writeError(c, relay.ErrBadRequest.Wrap("invalid capability id"))
	}
	grant, err := h.keeper.GetGrant(id)
	if err != nil {
		if ledger.ErrGrantNotFound.Is(err) {
			return c.JSON(http.StatusNotFound, ErrorBody{
				Codespace: ledger.Codespace,
				Code:      ledger.ErrGrantNotFound.ABCICode(),
				Message:   "grant not found",
			})
		}
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, GrantView{
		CapID:        id.Hex(),
		Grantor:      grant.Grantor.Hex(),
		Grantee:      grant.Grantee.Hex(),
		FileID:       grant.FileID.Hex(),
		ExpiresAt:    grant.ExpiresAt,
		MaxDownloads: grant.MaxDownloads,
		Used:         grant.Used,
		CreatedAt:    grant.CreatedAt,
		Revoked:      grant.Revoked,
	})
}
