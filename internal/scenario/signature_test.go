package scenario_test

import (
	"testing"

	"github.com/flashbots/contender/internal/scenario"
	"github.com/stretchr/testify/require"
)

func TestParseSignatureNamedParams(t *testing.T) {
	sig, err := scenario.ParseSignature("transfer(address to, uint256 amount)")
	require.NoError(t, err)
	require.Equal(t, "transfer", sig.Name)
	require.Len(t, sig.Params, 2)
	require.Equal(t, "address", sig.Params[0].Type)
	require.Equal(t, "to", sig.Params[0].Name)
	require.Equal(t, 1, sig.IndexOfParam("amount"))
	require.Equal(t, -1, sig.IndexOfParam("missing"))
}

func TestParseSignatureBareTuple(t *testing.T) {
	sig, err := scenario.ParseSignature("(uint256,uint256)")
	require.NoError(t, err)
	require.Equal(t, "", sig.Name)
	require.Len(t, sig.Params, 2)
	require.Equal(t, "uint256", sig.Params[0].Type)
	require.Equal(t, "", sig.Params[0].Name)
}

func TestParseSignatureConstructorKeyword(t *testing.T) {
	sig, err := scenario.ParseSignature("constructor(address owner)")
	require.NoError(t, err)
	require.Equal(t, "", sig.Name)
	require.Len(t, sig.Params, 1)
}

func TestParseSignatureNestedTypes(t *testing.T) {
	sig, err := scenario.ParseSignature("batch(uint256[] ids, address to)")
	require.NoError(t, err)
	require.Len(t, sig.Params, 2)
	require.Equal(t, "uint256[]", sig.Params[0].Type)
	require.Equal(t, "ids", sig.Params[0].Name)
}

func TestParseSignatureNoArgs(t *testing.T) {
	sig, err := scenario.ParseSignature("deposit()")
	require.NoError(t, err)
	require.Equal(t, "deposit", sig.Name)
	require.Len(t, sig.Params, 0)
}

func TestParseSignatureMalformed(t *testing.T) {
	_, err := scenario.ParseSignature("transfer(address to")
	require.Error(t, err)
}
