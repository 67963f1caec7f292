// Package relay implements fee-less meta-transaction dispatch: an end user
// authorizes a ledger state change with a typed-data signature and a relayer
// verifies it, enforces replay protection, and forwards the call with the
// verified signer identity attached.
package relay

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"

	"github.com/Vibecoders-Team/dfsp-sub000/crypto/keys"
)

// RequestKind tags the known typed-data payload shapes. Each kind hashes
// under its own primary type, so a signature over one kind can never verify
// as another.
type RequestKind string

const (
	KindForward RequestKind = "ForwardRequest"
	KindLogin   RequestKind = "LoginChallenge"
)

// Domain is the typed-data signing domain shared by signer and relayer.
type Domain struct {
	Name              string
	Version           string
	ChainID           int64
	VerifyingContract common.Address
}

// DefaultDomain returns the production signing domain for a chain.
func DefaultDomain(chainID int64, verifyingContract common.Address) Domain {
	return Domain{
		Name:              "DFSP Forwarder",
		Version:           "1",
		ChainID:           chainID,
		VerifyingContract: verifyingContract,
	}
}

// DefaultGasLimit is the gas allowance clients attach when they have no
// better estimate. Targets in this process do not meter gas; the field is
// kept for signature compatibility.
const DefaultGasLimit uint64 = 1_000_000

// ForwardRequest is a relayed call authorization. Nonce is the signer's
// replay counter as tracked by the forwarder.
type ForwardRequest struct {
	From  common.Address `json:"from"`
	To    common.Address `json:"to"`
	Value *big.Int       `json:"value"`
	Gas   uint64         `json:"gas"`
	Nonce uint64         `json:"nonce"`
	Data  []byte         `json:"data"`
}

// LoginChallenge is the gateway authentication payload.
type LoginChallenge struct {
	Account  common.Address `json:"account"`
	Nonce    string         `json:"nonce"`
	IssuedAt uint64         `json:"issued_at"`
}

var typedDataTypes = apitypes.Types{
	"EIP712Domain": {
		{Name: "name", Type: "string"},
		{Name: "version", Type: "string"},
		{Name: "chainId", Type: "uint256"},
		{Name: "verifyingContract", Type: "address"},
	},
	string(KindForward): {
		{Name: "from", Type: "address"},
		{Name: "to", Type: "address"},
		{Name: "value", Type: "uint256"},
		{Name: "gas", Type: "uint256"},
		{Name: "nonce", Type: "uint256"},
		{Name: "data", Type: "bytes"},
	},
	string(KindLogin): {
		{Name: "account", Type: "address"},
		{Name: "nonce", Type: "string"},
		{Name: "issuedAt", Type: "uint256"},
	},
}

func (d Domain) apiDomain() apitypes.TypedDataDomain {
	return apitypes.TypedDataDomain{
		Name:              d.Name,
		Version:           d.Version,
		ChainId:           math.NewHexOrDecimal256(d.ChainID),
		VerifyingContract: d.VerifyingContract.Hex(),
	}
}

func hashTypedData(d Domain, kind RequestKind, message apitypes.TypedDataMessage) ([]byte, error) {
	td := apitypes.TypedData{
		Types:       typedDataTypes,
		PrimaryType: string(kind),
		Domain:      d.apiDomain(),
		Message:     message,
	}
	digest, _, err := apitypes.TypedDataAndHash(td)
	if err != nil {
		return nil, ErrBadRequest.Wrapf("failed to hash typed data: %v", err)
	}
	return digest, nil
}

// HashForwardRequest computes the signable digest of a forward request
// under the given domain.
func HashForwardRequest(d Domain, req *ForwardRequest) ([]byte, error) {
	value := req.Value
	if value == nil {
		value = big.NewInt(0)
	}
	return hashTypedData(d, KindForward, apitypes.TypedDataMessage{
		"from":  req.From.Hex(),
		"to":    req.To.Hex(),
		"value": (*math.HexOrDecimal256)(value),
		"gas":   math.NewHexOrDecimal256(int64(req.Gas)),
		"nonce": math.NewHexOrDecimal256(int64(req.Nonce)),
		"data":  hexutil.Encode(req.Data),
	})
}

// HashLoginChallenge computes the signable digest of a login challenge
// under the given domain.
func HashLoginChallenge(d Domain, ch *LoginChallenge) ([]byte, error) {
	return hashTypedData(d, KindLogin, apitypes.TypedDataMessage{
		"account":  ch.Account.Hex(),
		"nonce":    ch.Nonce,
		"issuedAt": math.NewHexOrDecimal256(int64(ch.IssuedAt)),
	})
}

// RecoverForwardSigner recovers the account that signed a forward request.
func RecoverForwardSigner(d Domain, req *ForwardRequest, sig []byte) (common.Address, error) {
	digest, err := HashForwardRequest(d, req)
	if err != nil {
		return common.Address{}, err
	}
	signer, err := keys.RecoverAddress(digest, sig)
	if err != nil {
		return common.Address{}, ErrInvalidSignature.Wrap(err.Error())
	}
	return signer, nil
}

// RecoverLoginSigner recovers the account that signed a login challenge.
func RecoverLoginSigner(d Domain, ch *LoginChallenge, sig []byte) (common.Address, error) {
	digest, err := HashLoginChallenge(d, ch)
	if err != nil {
		return common.Address{}, err
	}
	signer, err := keys.RecoverAddress(digest, sig)
	if err != nil {
		return common.Address{}, ErrInvalidSignature.Wrap(err.Error())
	}
	return signer, nil
}
