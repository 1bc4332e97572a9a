// Package scenario implements the Planner/Templater (spec.md §4.1): parsed
// transaction directives, placeholder resolution, fuzzing, and ABI
// encoding of constructor/call arguments.
//
// The core accepts scenarios already parsed into these Go structs — TOML
// decoding itself is out of scope (spec.md §1).
package scenario

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Kind identifies which directive a TxTemplate came from. Only create
// templates may contain bytecode; only setup/spam templates have a `to`.
type Kind int

const (
	KindCreate Kind = iota
	KindSetup
	KindSpamTx
	KindBundleTx
)

// TxType selects the Ethereum transaction envelope.
type TxType int

const (
	TxTypeLegacy TxType = iota
	TxTypeDynamicFee
)

// FuzzParam is one `[[...fuzz]]` entry: pick a uniform random integer in
// [Min, Max] and substitute it for the named parameter (or "value").
type FuzzParam struct {
	Param string
	Min   *big.Int
	Max   *big.Int
}

// TxTemplate is the parsed form of one transaction directive (spec.md §3).
// Fields may contain `{placeholder}` tokens in To, Args, Value, and (for
// create) Bytecode.
type TxTemplate struct {
	Kind Kind

	// To is empty for create directives.
	To string

	// FromPool names the AgentPool to draw a signer from in round-robin
	// order. FromAddr, if set, pins a specific funded address instead (the
	// funder / a user-supplied key) and FromPool is ignored.
	FromPool string
	FromAddr string

	// Signature is a Solidity-style function/constructor signature,
	// optionally with named parameters (e.g. "transfer(address to, uint256 amount)").
	// Empty means "raw calldata/bytecode, no encoding."
	Signature string
	Args      []string

	// Value is a literal wei amount or unit-suffixed string ("1 ether"),
	// possibly containing a placeholder.
	Value string

	// Bytecode is only populated for KindCreate.
	Bytecode string

	GasLimit *uint64
	TxType   TxType
	Fuzz     []FuzzParam

	// Name labels a create directive's registry entry (spec.md §3
	// ContractRegistry). Empty for non-create templates.
	Name string
}

// Bundle is an ordered list of TxTemplates intended for atomic inclusion
// (spec.md §3), e.g. via eth_sendBundle.
type Bundle struct {
	Templates []TxTemplate
}

// PlannedTx is a fully-resolved transaction request: placeholders
// substituted, fuzzed arguments materialized, ABI-encoded call data
// computed, signer assigned — but not yet nonced or signed (spec.md §3).
type PlannedTx struct {
	Kind     Kind
	To       *common.Address // nil for contract creation
	Data     []byte
	Value    *big.Int
	GasLimit *uint64
	TxType   TxType

	SignerAddr common.Address

	// BundleID ties every tx in a dispatched bundle together (spec.md §9);
	// zero value means "not part of a bundle."
	BundleID string

	// ContractName, if non-empty, is the registry name to assign after a
	// successful create dispatch.
	ContractName string
}

// SignedTx is a PlannedTx plus assigned nonce, gas parameters, and
// signature — ready for eth_sendRawTransaction (spec.md §3).
type SignedTx struct {
	Planned PlannedTx
	Nonce   uint64

	GasFeeCap      *big.Int // EIP-1559 maxFeePerGas, or legacy gasPrice
	GasTipCap      *big.Int // EIP-1559 maxPriorityFeePerGas; nil for legacy

	RawTx []byte // RLP-encoded signed transaction
	Hash  common.Hash
}
