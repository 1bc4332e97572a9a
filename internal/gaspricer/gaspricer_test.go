package gaspricer_test

import (
	"context"
	"math/big"
	"sync/atomic"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/flashbots/contender/internal/gaspricer"
	"github.com/stretchr/testify/require"
)

type fakeChain struct {
	baseFee      *big.Int
	tip          *big.Int
	gasPrice     *big.Int
	estimateGas  uint64
	estimateErr  error
	estimateHits atomic.Int32
}

func (f *fakeChain) SuggestGasPrice(ctx context.Context) (*big.Int, error) { return f.gasPrice, nil }
func (f *fakeChain) SuggestGasTipCap(ctx context.Context) (*big.Int, error) { return f.tip, nil }
func (f *fakeChain) HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error) {
	return &types.Header{BaseFee: f.baseFee}, nil
}
func (f *fakeChain) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	f.estimateHits.Add(1)
	return f.estimateGas, f.estimateErr
}

func TestFeeCapsComputesTwoBaseFeePlusTip(t *testing.T) {
	chain := &fakeChain{baseFee: big.NewInt(100), tip: big.NewInt(5)}
	p := gaspricer.New(chain, nil)
	require.NoError(t, p.Refresh(context.Background()))

	feeCap, tipCap := p.FeeCaps()
	require.Equal(t, big.NewInt(205), feeCap) // 2*100 + 5
	require.Equal(t, big.NewInt(5), tipCap)
	require.False(t, p.IsLegacy())
}

func TestFeeCapsFixedPriceSkipsRefresh(t *testing.T) {
	chain := &fakeChain{baseFee: big.NewInt(999), tip: big.NewInt(999)}
	p := gaspricer.New(chain, &gaspricer.FixedPrice{GasPrice: big.NewInt(42)})
	require.NoError(t, p.Refresh(context.Background()))

	feeCap, tipCap := p.FeeCaps()
	require.Equal(t, big.NewInt(42), feeCap)
	require.Nil(t, tipCap)
	require.True(t, p.IsLegacy())
}

func TestFeeCapsFallsBackToLegacyGasPriceWhenNoBaseFee(t *testing.T) {
	chain := &fakeChain{baseFee: nil, tip: big.NewInt(1), gasPrice: big.NewInt(50)}
	p := gaspricer.New(chain, nil)
	require.NoError(t, p.Refresh(context.Background()))

	feeCap, _ := p.FeeCaps()
	require.Equal(t, big.NewInt(101), feeCap) // 2*50 + 1
}

func TestEstimateGasCachesPerSignerAndTemplateHash(t *testing.T) {
	chain := &fakeChain{estimateGas: 21000}
	p := gaspricer.New(chain, nil)
	addr := common.HexToAddress("0x0000000000000000000000000000000000dEaD")

	g1, err := p.EstimateGas(context.Background(), addr, "hash-a", ethereum.CallMsg{})
	require.NoError(t, err)
	g2, err := p.EstimateGas(context.Background(), addr, "hash-a", ethereum.CallMsg{})
	require.NoError(t, err)

	require.Equal(t, uint64(21000), g1)
	require.Equal(t, g1, g2)
	require.EqualValues(t, 1, chain.estimateHits.Load())

	_, err = p.EstimateGas(context.Background(), addr, "hash-b", ethereum.CallMsg{})
	require.NoError(t, err)
	require.EqualValues(t, 2, chain.estimateHits.Load())
}
