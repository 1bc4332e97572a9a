package scenario_test

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/flashbots/contender/internal/registry"
	"github.com/flashbots/contender/internal/scenario"
	"github.com/stretchr/testify/require"
)

func TestResolveSenderWholeCell(t *testing.T) {
	env := registry.NewEnvStore(nil, nil)
	p := scenario.NewPlanner(env, nil, "")

	sender := common.HexToAddress("0x00000000000000000000000000000000000001")
	out, err := p.Resolve("{_sender}", sender)
	require.NoError(t, err)
	require.Equal(t, "0x0000000000000000000000000000000000000001", out)
}

func TestResolveSenderEmbedded(t *testing.T) {
	env := registry.NewEnvStore(nil, nil)
	p := scenario.NewPlanner(env, nil, "")

	sender := common.HexToAddress("0x00000000000000000000000000000000000001")
	out, err := p.Resolve("0x1234{_sender}5678", sender)
	require.NoError(t, err)
	require.Equal(t, "0x1234"+"0000000000000000000000000000000000000001"+"5678", out)
}

func TestResolveEnvBeforeContract(t *testing.T) {
	env := registry.NewEnvStore(map[string]string{"weth": "from-env"}, nil)
	reg := registry.NewContractRegistry()
	require.NoError(t, reg.Assign("weth", "", registry.ContractEntry{Address: "0xabcabcabcabcabcabcabcabcabcabcabcabcabc"}))
	snap := reg.Snapshot()

	p := scenario.NewPlanner(env, snap, "")
	out, err := p.Resolve("{weth}", common.Address{})
	require.NoError(t, err)
	require.Equal(t, "from-env", out, "env lookup wins over contract registry")
}

func TestResolveContractAddressWholeCell(t *testing.T) {
	reg := registry.NewContractRegistry()
	require.NoError(t, reg.Assign("weth", "", registry.ContractEntry{Address: "0xabcabcabcabcabcabcabcabcabcabcabcabcabc"}))
	snap := reg.Snapshot()

	p := scenario.NewPlanner(registry.NewEnvStore(nil, nil), snap, "")
	out, err := p.Resolve("{weth}", common.Address{})
	require.NoError(t, err)
	require.Equal(t, "0xabcabcabcabcabcabcabcabcabcabcabcabcabc", out)
}

func TestResolveUnknownPlaceholderFails(t *testing.T) {
	p := scenario.NewPlanner(registry.NewEnvStore(nil, nil), nil, "")
	_, err := p.Resolve("{nope}", common.Address{})
	require.Error(t, err)
}

func TestResolveIdempotentOnPlainStrings(t *testing.T) {
	p := scenario.NewPlanner(registry.NewEnvStore(nil, nil), nil, "")
	out, err := p.Resolve("no placeholders here", common.Address{})
	require.NoError(t, err)
	require.Equal(t, "no placeholders here", out)

	out2, err := p.Resolve(out, common.Address{})
	require.NoError(t, err)
	require.Equal(t, out, out2)
}
