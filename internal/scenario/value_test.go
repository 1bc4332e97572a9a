package scenario_test

import (
	"math/big"
	"testing"

	"github.com/flashbots/contender/internal/scenario"
	"github.com/stretchr/testify/require"
)

func TestParseValueBareInteger(t *testing.T) {
	v, err := scenario.ParseValue("12345")
	require.NoError(t, err)
	require.Equal(t, big.NewInt(12345), v)
}

func TestParseValueEther(t *testing.T) {
	v, err := scenario.ParseValue("1 ether")
	require.NoError(t, err)
	expect := new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
	require.Equal(t, expect, v)
}

func TestParseValueFractionalGwei(t *testing.T) {
	v, err := scenario.ParseValue("0.5 gwei")
	require.NoError(t, err)
	require.Equal(t, big.NewInt(500_000_000), v)
}

func TestParseValueEmpty(t *testing.T) {
	v, err := scenario.ParseValue("")
	require.NoError(t, err)
	require.Equal(t, big.NewInt(0), v)
}

func TestParseValueUnknownUnit(t *testing.T) {
	_, err := scenario.ParseValue("1 btc")
	require.Error(t, err)
}
