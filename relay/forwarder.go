package relay

import (
	"encoding/json"
	"sync"

	sdkerrors "cosmossdk.io/errors"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// Target is a contract-side call handler. The forwarder passes the verified
// signer identity alongside the opaque payload so the target sees the true
// caller instead of the relay.
type Target interface {
	Call(sender common.Address, data []byte) ([]byte, error)
}

// Forwarder verifies signed forward requests and dispatches them to
// registered targets under per-signer replay protection.
type Forwarder struct {
	domain Domain
	nonces NonceStore
	logger *zap.Logger

	execMu sync.Mutex // serializes the nonce read-check-commit in Execute

	mu      sync.Mutex
	targets map[common.Address]Target
}

// ForwarderOption configures a Forwarder.
type ForwarderOption func(*Forwarder)

// WithForwarderLogger attaches a structured logger.
func WithForwarderLogger(l *zap.Logger) ForwarderOption {
	return func(f *Forwarder) { f.logger = l }
}

// NewForwarder creates a forwarder for the given signing domain.
func NewForwarder(domain Domain, nonces NonceStore, opts ...ForwarderOption) *Forwarder {
	f := &Forwarder{
		domain:  domain,
		nonces:  nonces,
		logger:  zap.NewNop(),
		targets: make(map[common.Address]Target),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Domain returns the forwarder's signing domain.
func (f *Forwarder) Domain() Domain {
	return f.domain
}

// RegisterTarget binds a call handler to a target address.
func (f *Forwarder) RegisterTarget(addr common.Address, t Target) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.targets[addr] = t
}

// Nonce returns the stored replay counter for a signer.
func (f *Forwarder) Nonce(signer common.Address) (uint64, error) {
	return f.nonces.Nonce(signer)
}

// Verify reports whether the signature recovers to request.from and the
// request nonce equals the signer's stored counter. An error is returned
// only for malformed input or store failure, not for a clean mismatch.
func (f *Forwarder) Verify(req *ForwardRequest, sig []byte) (bool, error) {
	signer, err := RecoverForwardSigner(f.domain, req, sig)
	if err != nil {
		return false, err
	}
	if signer != req.From {
		return false, nil
	}

	current, err := f.nonces.Nonce(req.From)
	if err != nil {
		return false, err
	}
	return req.Nonce == current, nil
}

// Execute verifies the request, commits replay protection, and performs the
// sub-call. The signer's counter advances exactly once per verified request
// regardless of the sub-call outcome. A target failure is reported through
// (ok=false, returndata) — never as a relay-level error — so callers can
// distinguish "the relay rejected this" from "the target logic rejected
// this".
func (f *Forwarder) Execute(req *ForwardRequest, sig []byte) (bool, []byte, error) {
	signer, err := RecoverForwardSigner(f.domain, req, sig)
	if err != nil {
		return false, nil, err
	}
	if signer != req.From {
		return false, nil, ErrInvalidSignature
	}

	// The counter read, check, and commit form one critical section: a signed
	// request can win it at most once, no matter how many submissions race.
	f.execMu.Lock()
	current, err := f.nonces.Nonce(req.From)
	if err != nil {
		f.execMu.Unlock()
		return false, nil, err
	}
	if req.Nonce != current {
		f.execMu.Unlock()
		return false, nil, ErrNonceMismatch.Wrapf("request %d, counter %d", req.Nonce, current)
	}

	// Replay protection commits here, before the sub-call.
	if err := f.nonces.SetNonce(req.From, current+1); err != nil {
		f.execMu.Unlock()
		return false, nil, err
	}
	f.execMu.Unlock()

	f.mu.Lock()
	target, ok := f.targets[req.To]
	f.mu.Unlock()
	if !ok {
		return false, EncodeRevert(ErrUnknownTarget.Wrap(req.To.Hex())), nil
	}

	returndata, callErr := target.Call(req.From, req.Data)
	if callErr != nil {
		f.logger.Debug("target call reverted",
			zap.String("from", req.From.Hex()),
			zap.String("to", req.To.Hex()),
			zap.Error(callErr),
		)
		return false, EncodeRevert(callErr), nil
	}

	f.logger.Debug("forwarded call executed",
		zap.String("from", req.From.Hex()),
		zap.String("to", req.To.Hex()),
		zap.Uint64("nonce", req.Nonce),
	)
	return true, returndata, nil
}

// Revert is the decoded form of a target-level failure carried in
// returndata.
type Revert struct {
	Codespace string `json:"codespace"`
	Code      uint32 `json:"code"`
	Message   string `json:"message"`
}

// Is reports whether the revert carries the given registered condition.
func (r *Revert) Is(condition *sdkerrors.Error) bool {
	return r != nil && r.Codespace == condition.Codespace() && r.Code == condition.ABCICode()
}

// EncodeRevert serializes a target error into returndata.
func EncodeRevert(err error) []byte {
	codespace, code, log := sdkerrors.ABCIInfo(err, false)
	data, marshalErr := json.Marshal(Revert{Codespace: codespace, Code: code, Message: log})
	if marshalErr != nil {
		return []byte(err.Error())
	}
	return data
}

// DecodeRevert parses returndata produced by EncodeRevert.
func DecodeRevert(returndata []byte) (*Revert, error) {
	var r Revert
	if err := json.Unmarshal(returndata, &r); err != nil {
		return nil, ErrBadRequest.Wrapf("failed to decode returndata: %v", err)
	}
	return &r, nil
}
