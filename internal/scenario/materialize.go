package scenario

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	cerrors "github.com/flashbots/contender/internal/errors"
)

// MaterializeArgs is the input needed to turn one TxTemplate into a
// PlannedTx: the chosen signer address, and the deterministic fuzz context
// for this tx slot.
type MaterializeArgs struct {
	Planner    *Planner
	SignerAddr common.Address
	Fuzz       FuzzContext
	BundleID   string
}

// Materialize resolves placeholders, draws fuzz values, ABI-encodes call
// data (or constructor args), and produces a PlannedTx (spec.md §4.1,
// §4.2). Template fields that go through placeholder substitution, per
// directive kind:
//
//	create               -> bytecode, args
//	setup/spam.tx/bundle -> to, args, value
//
// The signer fields (FromPool, FromAddr) are not passed through the
// Planner; placeholders in them are not resolved.
func (t *TxTemplate) Materialize(a MaterializeArgs) (*PlannedTx, error) {
	fuzzValues := DrawFuzzValues(a.Fuzz, t.Fuzz)

	switch t.Kind {
	case KindCreate:
		return t.materializeCreate(a, fuzzValues)
	default:
		return t.materializeCall(a, fuzzValues)
	}
}

func (t *TxTemplate) materializeCreate(a MaterializeArgs, fuzzValues map[string]*big.Int) (*PlannedTx, error) {
	bytecode, err := a.Planner.Resolve(t.Bytecode, a.SignerAddr)
	if err != nil {
		return nil, err
	}

	var sig *ParsedSignature
	if t.Signature != "" {
		sig, err = ParseSignature(t.Signature)
		if err != nil {
			return nil, err
		}
	}

	args, err := t.resolveArgs(a, sig, fuzzValues)
	if err != nil {
		return nil, err
	}

	data, err := EncodeConstructorArgs(bytecode, sig, args)
	if err != nil {
		return nil, err
	}

	return &PlannedTx{
		Kind:         KindCreate,
		To:           nil,
		Data:         data,
		Value:        big.NewInt(0),
		GasLimit:     t.GasLimit,
		TxType:       t.TxType,
		SignerAddr:   a.SignerAddr,
		BundleID:     a.BundleID,
		ContractName: t.Name,
	}, nil
}

func (t *TxTemplate) materializeCall(a MaterializeArgs, fuzzValues map[string]*big.Int) (*PlannedTx, error) {
	toStr, err := a.Planner.Resolve(t.To, a.SignerAddr)
	if err != nil {
		return nil, err
	}
	if !common.IsHexAddress(toStr) {
		return nil, cerrors.AbiMismatch(fmt.Sprintf("invalid to address %q", toStr), nil)
	}
	to := common.HexToAddress(toStr)

	value, err := t.resolveValue(a, fuzzValues)
	if err != nil {
		return nil, err
	}

	var data []byte
	if t.Signature != "" {
		sig, err := ParseSignature(t.Signature)
		if err != nil {
			return nil, err
		}
		args, err := t.resolveArgs(a, sig, fuzzValues)
		if err != nil {
			return nil, err
		}
		data, err = EncodeCallData(sig, args)
		if err != nil {
			return nil, err
		}
	}

	return &PlannedTx{
		Kind:       t.Kind,
		To:         &to,
		Data:       data,
		Value:      value,
		GasLimit:   t.GasLimit,
		TxType:     t.TxType,
		SignerAddr: a.SignerAddr,
		BundleID:   a.BundleID,
	}, nil
}

// resolveArgs resolves placeholders in each positional arg, then overlays
// any fuzzed values onto the matching positional slot by parameter name
// (spec.md §4.1: "the named param replaces the corresponding positional
// arg by matching the parameter name parsed from signature").
func (t *TxTemplate) resolveArgs(a MaterializeArgs, sig *ParsedSignature, fuzzValues map[string]*big.Int) ([]string, error) {
	args := make([]string, len(t.Args))
	for i, raw := range t.Args {
		resolved, err := a.Planner.Resolve(raw, a.SignerAddr)
		if err != nil {
			return nil, err
		}
		args[i] = resolved
	}

	if sig == nil {
		return args, nil
	}
	for name, v := range fuzzValues {
		idx := sig.IndexOfParam(name)
		if idx < 0 || idx >= len(args) {
			continue // not a positional-arg fuzz target; may target "value" instead
		}
		args[idx] = v.String()
	}
	return args, nil
}

// resolveValue resolves placeholders in the value field, then applies a
// fuzz override if a fuzz entry named "value" is present (spec.md §4.1:
// "fuzzable field shorthand also applies to value").
func (t *TxTemplate) resolveValue(a MaterializeArgs, fuzzValues map[string]*big.Int) (*big.Int, error) {
	if v, ok := fuzzValues["value"]; ok {
		return v, nil
	}
	resolved, err := a.Planner.Resolve(t.Value, a.SignerAddr)
	if err != nil {
		return nil, err
	}
	return ParseValue(resolved)
}
