package randseed_test

import (
	"testing"

	"github.com/flashbots/contender/internal/randseed"
	"github.com/stretchr/testify/require"
)

func TestDeriveIsDeterministic(t *testing.T) {
	seed := [32]byte{1, 2, 3}

	a := randseed.Derive(seed, "step-0", "tx-3", "iter-1")
	b := randseed.Derive(seed, "step-0", "tx-3", "iter-1")

	require.Equal(t, a.Seed(), b.Seed())
	require.Equal(t, a.IntRange(0, 1000), b.IntRange(0, 1000))
}

func TestDeriveDiffersByContext(t *testing.T) {
	seed := [32]byte{1, 2, 3}

	a := randseed.Derive(seed, "step-0")
	b := randseed.Derive(seed, "step-1")

	require.NotEqual(t, a.Seed(), b.Seed())
}

func TestDeriveContextTupleNotConcatenated(t *testing.T) {
	seed := [32]byte{9}

	a := randseed.Derive(seed, "ab", "c")
	b := randseed.Derive(seed, "a", "bc")

	require.NotEqual(t, a.Seed(), b.Seed())
}

func TestIntRangeBounds(t *testing.T) {
	seed := [32]byte{7}
	s := randseed.Derive(seed, "bounds")

	for i := 0; i < 1000; i++ {
		v := s.IntRange(5, 10)
		require.GreaterOrEqual(t, v, int64(5))
		require.LessOrEqual(t, v, int64(10))
	}
}

func TestIntRangeDegenerate(t *testing.T) {
	seed := [32]byte{7}
	s := randseed.Derive(seed, "degenerate")
	require.Equal(t, int64(5), s.IntRange(5, 5))
	require.Equal(t, int64(5), s.IntRange(5, 4))
}
