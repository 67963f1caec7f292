package relay

import (
	"bytes"
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/Vibecoders-Team/dfsp-sub000/ledger"
	"github.com/Vibecoders-Team/dfsp-sub000/types/fileid"
)

// Call payload codec for the capability ledger target. Method names and
// argument order are part of the compatibility contract:
//
//	grant(bytes32,address,uint64,uint32) returns (bytes32)
//	revoke(bytes32)
//	useOnce(bytes32)
//	canDownload(address,bytes32) returns (bool)

type method struct {
	selector [4]byte
	args     abi.Arguments
}

var (
	methodGrant       method
	methodRevoke      method
	methodUseOnce     method
	methodCanDownload method
	boolResult        abi.Arguments
)

func init() {
	mustType := func(s string) abi.Type {
		t, err := abi.NewType(s, "", nil)
		if err != nil {
			panic(fmt.Sprintf("abi type %q: %v", s, err))
		}
		return t
	}
	newMethod := func(signature string, types ...string) method {
		var m method
		copy(m.selector[:], ethcrypto.Keccak256([]byte(signature))[:4])
		for _, t := range types {
			m.args = append(m.args, abi.Argument{Type: mustType(t)})
		}
		return m
	}

	methodGrant = newMethod("grant(bytes32,address,uint64,uint32)", "bytes32", "address", "uint64", "uint32")
	methodRevoke = newMethod("revoke(bytes32)", "bytes32")
	methodUseOnce = newMethod("useOnce(bytes32)", "bytes32")
	methodCanDownload = newMethod("canDownload(address,bytes32)", "address", "bytes32")
	boolResult = abi.Arguments{{Type: mustType("bool")}}
}

func (m method) encode(values ...interface{}) ([]byte, error) {
	packed, err := m.args.Pack(values...)
	if err != nil {
		return nil, ErrBadCalldata.Wrapf("failed to encode arguments: %v", err)
	}
	return append(m.selector[:], packed...), nil
}

func (m method) matches(data []byte) bool {
	return len(data) >= 4 && bytes.Equal(data[:4], m.selector[:])
}

func (m method) decode(data []byte) ([]interface{}, error) {
	values, err := m.args.Unpack(data[4:])
	if err != nil {
		return nil, ErrBadCalldata.Wrapf("failed to decode arguments: %v", err)
	}
	return values, nil
}

// EncodeGrantCall builds the payload for a grant call.
func EncodeGrantCall(file fileid.FileID, grantee common.Address, ttlSec uint64, maxDownloads uint32) ([]byte, error) {
	return methodGrant.encode([32]byte(file), grantee, ttlSec, maxDownloads)
}

// EncodeRevokeCall builds the payload for a revoke call.
func EncodeRevokeCall(id ledger.CapID) ([]byte, error) {
	return methodRevoke.encode([32]byte(id))
}

// EncodeUseOnceCall builds the payload for a useOnce call.
func EncodeUseOnceCall(id ledger.CapID) ([]byte, error) {
	return methodUseOnce.encode([32]byte(id))
}

// EncodeCanDownloadCall builds the payload for a canDownload call.
func EncodeCanDownloadCall(user common.Address, file fileid.FileID) ([]byte, error) {
	return methodCanDownload.encode(user, [32]byte(file))
}

// DecodeCapIDResult parses the returndata of a successful grant call.
func DecodeCapIDResult(returndata []byte) (ledger.CapID, error) {
	return ledger.CapIDFromBytes(returndata)
}

// DecodeBoolResult parses the returndata of a successful canDownload call.
func DecodeBoolResult(returndata []byte) (bool, error) {
	values, err := boolResult.Unpack(returndata)
	if err != nil {
		return false, ErrBadCalldata.Wrapf("failed to decode result: %v", err)
	}
	result, ok := values[0].(bool)
	if !ok {
		return false, ErrBadCalldata.Wrap("result is not a bool")
	}
	return result, nil
}

// LedgerTarget adapts the capability ledger keeper to the forwarder's
// Target interface. The verified signer identity becomes the ledger caller.
type LedgerTarget struct {
	keeper *ledger.Keeper
}

// NewLedgerTarget wraps a keeper.
func NewLedgerTarget(k *ledger.Keeper) *LedgerTarget {
	return &LedgerTarget{keeper: k}
}

// Call implements Target.
func (t *LedgerTarget) Call(sender common.Address, data []byte) ([]byte, error) {
	switch {
	case methodGrant.matches(data):
		values, err := methodGrant.decode(data)
		if err != nil {
			return nil, err
		}
		file := fileid.FileID(values[0].([32]byte))
		grantee := values[1].(common.Address)
		ttlSec := values[2].(uint64)
		maxDownloads := values[3].(uint32)

		id, err := t.keeper.Grant(sender, file, grantee, ttlSec, maxDownloads)
		if err != nil {
			return nil, err
		}
		return id.Bytes(), nil

	case methodRevoke.matches(data):
		values, err := methodRevoke.decode(data)
		if err != nil {
			return nil, err
		}
		id := ledger.CapID(values[0].([32]byte))
		return nil, t.keeper.Revoke(sender, id)

	case methodUseOnce.matches(data):
		values, err := methodUseOnce.decode(data)
		if err != nil {
			return nil, err
		}
		id := ledger.CapID(values[0].([32]byte))
		return nil, t.keeper.UseOnce(sender, id)

	case methodCanDownload.matches(data):
		values, err := methodCanDownload.decode(data)
		if err != nil {
			return nil, err
		}
		user := values[0].(common.Address)
		file := fileid.FileID(values[1].([32]byte))

		ok, err := t.keeper.CanDownload(user, file)
		if err != nil {
			return nil, err
		}
		return boolResult.Pack(ok)

	default:
		return nil, ErrBadCalldata.Wrap("unknown method selector")
	}
}
