package signer_test

import (
	"testing"

	"github.com/flashbots/contender/internal/signer"
	"github.com/stretchr/testify/require"
)

func TestDeriveForPoolDeterministic(t *testing.T) {
	seed := [32]byte{5, 5, 5}

	a, err := signer.DeriveForPool(seed, "spammers", 3)
	require.NoError(t, err)
	b, err := signer.DeriveForPool(seed, "spammers", 3)
	require.NoError(t, err)

	require.Equal(t, a.Address(), b.Address())
}

func TestDeriveForPoolDiffersByIndexAndPool(t *testing.T) {
	seed := [32]byte{5, 5, 5}

	a, _ := signer.DeriveForPool(seed, "spammers", 0)
	b, _ := signer.DeriveForPool(seed, "spammers", 1)
	c, _ := signer.DeriveForPool(seed, "other", 0)

	require.NotEqual(t, a.Address(), b.Address())
	require.NotEqual(t, a.Address(), c.Address())
}

func TestPoolSizeCeilsEvenly(t *testing.T) {
	require.Equal(t, 0, signer.PoolSize(0, 4))
	require.Equal(t, 1, signer.PoolSize(1, 4))
	require.Equal(t, 13, signer.PoolSize(50, 4))
	require.Equal(t, 25, signer.PoolSize(50, 2))
}

func TestAgentPoolRoundRobin(t *testing.T) {
	seed := [32]byte{1}
	pool, err := signer.NewAgentPool(seed, "p", 3)
	require.NoError(t, err)
	require.Equal(t, 3, pool.Size())

	seen := make([]string, 6)
	for i := range seen {
		seen[i] = pool.Next().Address().Hex()
	}
	require.Equal(t, seen[0], seen[3])
	require.Equal(t, seen[1], seen[4])
	require.Equal(t, seen[2], seen[5])
}

func TestFromHexKeyAcceptsWithAndWithoutPrefix(t *testing.T) {
	const hexKey = "c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"
	a, err := signer.FromHexKey(hexKey)
	require.NoError(t, err)
	b, err := signer.FromHexKey("0x" + hexKey)
	require.NoError(t, err)
	require.Equal(t, a.Address(), b.Address())
}
