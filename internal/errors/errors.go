// Package errors defines contender's error taxonomy: ConfigError, SignerError,
// RpcError, NonceError, FundingError, ReceiptTimeout, DbError, and the
// cooperative-cancellation sentinel ErrCancelled.
package errors

import (
	"errors"
	"fmt"
)

// ErrCancelled marks cooperative cancellation of a run. It is never surfaced
// as a user-visible failure.
var ErrCancelled = errors.New("cancelled")

// ConfigError wraps malformed-scenario, placeholder, ABI-arity, and
// campaign-share failures.
type ConfigError struct {
	Kind    string // e.g. "unknown_placeholder", "abi_mismatch", "invalid_shares"
	Context string
	Cause   error
}

func (e *ConfigError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("config error (%s): %s: %v", e.Kind, e.Context, e.Cause)
	}
	return fmt.Sprintf("config error (%s): %s", e.Kind, e.Context)
}

func (e *ConfigError) Unwrap() error { return e.Cause }

// UnknownPlaceholder builds the ConfigError for an unresolved {name} token.
func UnknownPlaceholder(name string) error {
	return &ConfigError{Kind: "unknown_placeholder", Context: name}
}

// AbiMismatch builds the ConfigError for a signature/args arity mismatch.
func AbiMismatch(context string, cause error) error {
	return &ConfigError{Kind: "abi_mismatch", Context: context, Cause: cause}
}

// InvalidShares builds the ConfigError for a campaign stage whose mix shares
// cannot be normalized.
func InvalidShares(context string) error {
	return &ConfigError{Kind: "invalid_shares", Context: context}
}

// SenderConflict builds the ConfigError for a campaign stage that pins a
// single override sender across more than one concurrent mix entry.
func SenderConflict(context string) error {
	return &ConfigError{Kind: "sender_conflict", Context: context}
}

// SignerError wraps key-parse and HD-derivation failures.
type SignerError struct {
	Context string
	Cause   error
}

func (e *SignerError) Error() string {
	return fmt.Sprintf("signer error: %s: %v", e.Context, e.Cause)
}

func (e *SignerError) Unwrap() error { return e.Cause }

func NewSignerError(context string, cause error) error {
	return &SignerError{Context: context, Cause: cause}
}

// RpcError wraps transport failures, JSON-RPC error codes (with preserved
// data), and per-call timeouts.
type RpcError struct {
	Method  string
	Code    int
	Data    any
	Cause   error
	Timeout bool
}

func (e *RpcError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("rpc error: %s: timed out", e.Method)
	}
	if e.Code != 0 {
		return fmt.Sprintf("rpc error: %s: code=%d data=%v: %v", e.Method, e.Code, e.Data, e.Cause)
	}
	return fmt.Sprintf("rpc error: %s: %v", e.Method, e.Cause)
}

func (e *RpcError) Unwrap() error { return e.Cause }

func NewRpcError(method string, cause error) error {
	return &RpcError{Method: method, Cause: cause}
}

func NewRpcTimeout(method string) error {
	return &RpcError{Method: method, Timeout: true}
}

// NonceError marks an on-chain nonce moving backwards relative to the
// internal counter — evidence of an externally sent transaction.
type NonceError struct {
	Signer   string
	Expected uint64
	Observed uint64
}

func (e *NonceError) Error() string {
	return fmt.Sprintf("nonce error: signer %s: expected >= %d, observed %d (external send detected)",
		e.Signer, e.Expected, e.Observed)
}

func NewNonceError(signer string, expected, observed uint64) error {
	return &NonceError{Signer: signer, Expected: expected, Observed: observed}
}

// FundingError marks an underfunded funder detected before any funding tx
// is sent.
type FundingError struct {
	Required string
	Available string
}

func (e *FundingError) Error() string {
	return fmt.Sprintf("funding error: required=%s available=%s", e.Required, e.Available)
}

func NewFundingError(required, available string) error {
	return &FundingError{Required: required, Available: available}
}

// ReceiptTimeout marks a tx not mined within pending_timeout.
type ReceiptTimeout struct {
	Hash string
}

func (e *ReceiptTimeout) Error() string {
	return fmt.Sprintf("receipt timeout: %s", e.Hash)
}

func NewReceiptTimeout(hash string) error {
	return &ReceiptTimeout{Hash: hash}
}

// DbError wraps a backend-specific storage failure.
type DbError struct {
	Op    string
	Cause error
}

func (e *DbError) Error() string {
	return fmt.Sprintf("db error: %s: %v", e.Op, e.Cause)
}

func (e *DbError) Unwrap() error { return e.Cause }

func NewDbError(op string, cause error) error {
	return &DbError{Op: op, Cause: cause}
}

// IsCancelled reports whether err is (or wraps) ErrCancelled.
func IsCancelled(err error) bool {
	return errors.Is(err, ErrCancelled)
}
