// Package randseed provides deterministic, reproducible randomness derived
// from a single process-wide seed. Every draw is a pure function of
// (runSeed, context...) so that two runs with the same seed and scenario
// produce byte-identical PlannedTx sequences (spec.md §4.2, §8).
//
// The derivation shape follows the sub-seed-per-context pattern: a context
// tuple is hashed together with the master seed to produce an independent,
// deterministic math/rand source, the same way a pipeline stage derives its
// own RNG from a shared master seed and stage name.
package randseed

import (
	"crypto/sha256"
	"encoding/binary"
	"math/rand"

	"github.com/antithesishq/antithesis-sdk-go/random"
)

// Source draws deterministic values for one derivation context. Not safe
// for concurrent use; callers deriving per-goroutine sequences should call
// Derive per goroutine.
type Source struct {
	seed uint64
	rnd  *rand.Rand
}

// Derive produces a Source scoped to runSeed plus an ordered context tuple
// (e.g. step index, tx index, iteration). The same inputs always yield the
// same Source sequence.
func Derive(runSeed [32]byte, context ...string) *Source {
	h := sha256.New()
	h.Write(runSeed[:])
	for _, c := range context {
		h.Write([]byte{0}) // separator, prevents ("ab","c") colliding with ("a","bc")
		h.Write([]byte(c))
	}
	sum := h.Sum(nil)
	seed := binary.LittleEndian.Uint64(sum[:8])
	return &Source{seed: seed, rnd: rand.New(rand.NewSource(int64(seed)))}
}

// Seed returns the derived 64-bit seed (useful for logging/debugging).
func (s *Source) Seed() uint64 { return s.seed }

// IntRange returns a uniformly random integer in [min, max], inclusive.
func (s *Source) IntRange(min, max int64) int64 {
	if max <= min {
		return min
	}
	span := max - min + 1
	return min + s.rnd.Int63n(span)
}

// Bytes fills b with deterministic pseudo-random bytes.
func (s *Source) Bytes(b []byte) {
	s.rnd.Read(b) //nolint:errcheck // math/rand.Rand.Read never errors
}

// GlobalIntn draws from the process-wide Antithesis-instrumented random
// source when available, used for decisions that do not need to be
// reproducible from a specific run seed (e.g. jittering a retry backoff).
// Falls back to a fresh local seed outside of an Antithesis build, where
// random.GetRandom degrades to a normal PRNG.
func GlobalIntn(n int) int {
	if n <= 0 {
		return 0
	}
	return int(random.GetRandom() % uint64(n))
}
