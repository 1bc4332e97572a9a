package registry_test

import (
	"testing"

	"github.com/flashbots/contender/internal/registry"
	"github.com/stretchr/testify/require"
)

func TestAssignOncePerLabel(t *testing.T) {
	r := registry.NewContractRegistry()

	require.NoError(t, r.Assign("weth", "", registry.ContractEntry{Address: "0xabc"}))
	err := r.Assign("weth", "", registry.ContractEntry{Address: "0xdef"})
	require.Error(t, err)

	// Different label is a distinct slot.
	require.NoError(t, r.Assign("weth", "labelA", registry.ContractEntry{Address: "0x123"}))
}

func TestSnapshotIsolatedFromLaterWrites(t *testing.T) {
	r := registry.NewContractRegistry()
	require.NoError(t, r.Assign("weth", "", registry.ContractEntry{Address: "0xabc"}))

	snap := r.Snapshot()
	require.NoError(t, r.Assign("usdc", "", registry.ContractEntry{Address: "0xdef"}))

	_, ok := snap.Lookup("usdc", "")
	require.False(t, ok, "snapshot must not see writes made after it was taken")

	entry, ok := snap.Lookup("weth", "")
	require.True(t, ok)
	require.Equal(t, "0xabc", entry.Address)
}

func TestSnapshotLookupFallsBackToUnlabeled(t *testing.T) {
	r := registry.NewContractRegistry()
	require.NoError(t, r.Assign("weth", "", registry.ContractEntry{Address: "0xabc"}))

	snap := r.Snapshot()
	entry, ok := snap.Lookup("weth", "some-scenario")
	require.True(t, ok)
	require.Equal(t, "0xabc", entry.Address)
}

func TestEnvStoreOverridesWinOverDefaults(t *testing.T) {
	env := registry.NewEnvStore(map[string]string{"rate": "10"}, map[string]string{"rate": "50"})
	v, ok := env.Lookup("rate")
	require.True(t, ok)
	require.Equal(t, "50", v)

	_, ok = env.Lookup("missing")
	require.False(t, ok)
}
