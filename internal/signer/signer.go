// Package signer implements contender's Signer and AgentPool data model
// (spec.md §3): a private key plus derived address, immutable after
// creation, produced from a user-supplied key, a deterministic per-pool HD
// derivation of the run seed, or a pre-funded funder.
package signer

import (
	"crypto/ecdsa"
	"fmt"
	"math"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	cerrors "github.com/flashbots/contender/internal/errors"
	"github.com/flashbots/contender/internal/randseed"
)

// Signer is an immutable private key plus its derived address.
type Signer struct {
	key     *ecdsa.PrivateKey
	address common.Address
}

// Address returns the signer's Ethereum address.
func (s *Signer) Address() common.Address { return s.address }

// PrivateKey returns the underlying key. Callers must not mutate it.
func (s *Signer) PrivateKey() *ecdsa.PrivateKey { return s.key }

// FromHexKey constructs a Signer from a user-supplied hex-encoded private
// key (with or without 0x prefix).
func FromHexKey(hexKey string) (*Signer, error) {
	key, err := crypto.HexToECDSA(trim0x(hexKey))
	if err != nil {
		return nil, cerrors.NewSignerError("parse hex private key", err)
	}
	return &Signer{key: key, address: crypto.PubkeyToAddress(key.PublicKey)}, nil
}

// DeriveForPool produces the deterministic signer for pool p, index i, given
// the run's master seed. Per spec.md §3: "signer i for pool p is derived
// from (seed, p, i)", so the same seed always yields the same pool.
//
// The derivation hashes (seed, pool, index) into 32 bytes via randseed.Derive
// and repeatedly re-hashes on the rare chance the bytes don't form a valid
// secp256k1 scalar, which keeps the process fully deterministic without
// depending on an HD-wallet library whose BIP32 tree shape doesn't match
// this flat (seed, pool, index) keying.
func DeriveForPool(runSeed [32]byte, pool string, index int) (*Signer, error) {
	var attempt int
	for {
		src := randseed.Derive(runSeed, "agent-pool", pool, fmt.Sprintf("%d", index), fmt.Sprintf("attempt-%d", attempt))
		var buf [32]byte
		src.Bytes(buf[:])

		key, err := crypto.ToECDSA(buf[:])
		if err != nil {
			attempt++
			if attempt > 16 {
				return nil, cerrors.NewSignerError(fmt.Sprintf("derive pool=%s index=%d", pool, index), err)
			}
			continue
		}
		return &Signer{key: key, address: crypto.PubkeyToAddress(key.PublicKey)}, nil
	}
}

func trim0x(s string) string {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		return s[2:]
	}
	return s
}

// PoolSize computes signers_per_pool = ceil(txRate / numPools), per
// spec.md §3.
func PoolSize(txRate, numPools int) int {
	if numPools <= 0 {
		numPools = 1
	}
	if txRate <= 0 {
		return 0
	}
	return int(math.Ceil(float64(txRate) / float64(numPools)))
}
