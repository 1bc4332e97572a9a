package scenario

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"reflect"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	cerrors "github.com/flashbots/contender/internal/errors"
)

// EncodeConstructorArgs ABI-encodes args against sig's tuple type and
// appends the result to bytecode, per spec.md §4.1. Only sig's parameter
// tuple is encoded; sig.Name is not used, so no 4-byte selector is emitted
// whatever the signature was named, since constructor calldata has none.
func EncodeConstructorArgs(bytecode string, sig *ParsedSignature, args []string) ([]byte, error) {
	code, err := decodeHexBlob(bytecode)
	if err != nil {
		return nil, cerrors.AbiMismatch("bytecode", err)
	}
	if sig == nil || len(sig.Params) == 0 {
		return code, nil
	}
	if len(args) != len(sig.Params) {
		return nil, cerrors.AbiMismatch(
			fmt.Sprintf("constructor expects %d args, got %d", len(sig.Params), len(args)), nil)
	}

	types, err := sig.AbiTypes()
	if err != nil {
		return nil, err
	}

	encoded, err := encodeArgs(types, args)
	if err != nil {
		return nil, cerrors.AbiMismatch("constructor args", err)
	}
	return append(code, encoded...), nil
}

// EncodeCallData ABI-encodes a function call: 4-byte selector (derived from
// sig's canonical signature) followed by the encoded args.
func EncodeCallData(sig *ParsedSignature, args []string) ([]byte, error) {
	if sig == nil || sig.Name == "" {
		return nil, cerrors.AbiMismatch("call signature must name a function", nil)
	}
	if len(args) != len(sig.Params) {
		return nil, cerrors.AbiMismatch(
			fmt.Sprintf("%s expects %d args, got %d", sig.Name, len(sig.Params), len(args)), nil)
	}

	types, err := sig.AbiTypes()
	if err != nil {
		return nil, err
	}

	canonical := canonicalSignature(sig.Name, types)
	selector := crypto.Keccak256([]byte(canonical))[:4]

	encoded, err := encodeArgs(types, args)
	if err != nil {
		return nil, cerrors.AbiMismatch(sig.Name+" args", err)
	}
	return append(selector, encoded...), nil
}

func canonicalSignature(name string, types []abi.Type) string {
	parts := make([]string, len(types))
	for i, t := range types {
		parts[i] = t.String()
	}
	return name + "(" + strings.Join(parts, ",") + ")"
}

func encodeArgs(types []abi.Type, args []string) ([]byte, error) {
	arguments := make(abi.Arguments, len(types))
	for i, t := range types {
		arguments[i] = abi.Argument{Type: t}
	}

	values := make([]any, len(types))
	for i, t := range types {
		v, err := coerceArg(t, args[i])
		if err != nil {
			return nil, fmt.Errorf("arg %d (%s): %w", i, t.String(), err)
		}
		values[i] = v
	}
	return arguments.Pack(values...)
}

// coerceArg converts a scenario-file string into the Go value go-ethereum's
// abi.Arguments.Pack expects for t. Only the subset of Solidity types a
// load-generation scenario realistically needs is supported.
func coerceArg(t abi.Type, raw string) (any, error) {
	switch t.T {
	case abi.AddressTy:
		if !common.IsHexAddress(raw) {
			return nil, fmt.Errorf("invalid address %q", raw)
		}
		return common.HexToAddress(raw), nil
	case abi.BoolTy:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, err
		}
		return b, nil
	case abi.StringTy:
		return raw, nil
	case abi.BytesTy:
		return decodeHexBlob(raw)
	case abi.FixedBytesTy:
		b, err := decodeHexBlob(raw)
		if err != nil {
			return nil, err
		}
		return padFixedBytes(b, t.Size, t.GetType())
	case abi.IntTy, abi.UintTy:
		n, ok := new(big.Int).SetString(strings.TrimSpace(raw), 0)
		if !ok {
			return nil, fmt.Errorf("invalid integer %q", raw)
		}
		return coerceIntWidth(t, n)
	default:
		return nil, fmt.Errorf("unsupported ABI type %s for scenario arg coercion", t.String())
	}
}

func coerceIntWidth(t abi.Type, n *big.Int) (any, error) {
	switch t.Size {
	case 8:
		if t.T == abi.UintTy {
			return uint8(n.Uint64()), nil
		}
		return int8(n.Int64()), nil
	case 16:
		if t.T == abi.UintTy {
			return uint16(n.Uint64()), nil
		}
		return int16(n.Int64()), nil
	case 32:
		if t.T == abi.UintTy {
			return uint32(n.Uint64()), nil
		}
		return int32(n.Int64()), nil
	case 64:
		if t.T == abi.UintTy {
			return n.Uint64(), nil
		}
		return n.Int64(), nil
	default:
		return n, nil // *big.Int for anything > 64 bits, which abi.Pack expects
	}
}

// padFixedBytes builds a reflect.Array of the exact [N]byte type abi.Pack
// expects for a bytesN argument (go-ethereum's abi package type-switches on
// the concrete array size, so a fixed [32]byte would mismatch e.g. bytes4).
func padFixedBytes(b []byte, size int, arrayType reflect.Type) (any, error) {
	if len(b) > size {
		return nil, fmt.Errorf("bytes%d: value too long (%d bytes)", size, len(b))
	}
	out := reflect.New(arrayType).Elem()
	reflect.Copy(out, reflect.ValueOf(b))
	return out.Interface(), nil
}

// decodeHexBlob decodes a 0x-prefixed (or bare) hex string.
func decodeHexBlob(s string) ([]byte, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if len(s)%2 == 1 {
		s = "0" + s
	}
	return hex.DecodeString(s)
}
