package chain

import (
	"context"
	"encoding/hex"

	"github.com/ethereum/go-ethereum/common/hexutil"

	cerrors "github.com/flashbots/contender/internal/errors"
)

// bundleParams is the Flashbots eth_sendBundle request shape. It is not
// part of ethclient, so it goes over a raw CallContext (spec.md §6).
type bundleParams struct {
	Txs         []string `json:"txs"`
	BlockNumber string   `json:"blockNumber"`
}

// SendBundleResult is eth_sendBundle's response.
type SendBundleResult struct {
	BundleHash string `json:"bundleHash"`
}

// SendBundle submits a list of RLP-encoded signed transactions as one
// atomic bundle targeting targetBlock.
func (c *Client) SendBundle(ctx context.Context, rawTxs [][]byte, targetBlock uint64) (*SendBundleResult, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	txs := make([]string, len(rawTxs))
	for i, raw := range rawTxs {
		txs[i] = "0x" + hex.EncodeToString(raw)
	}

	params := bundleParams{
		Txs:         txs,
		BlockNumber: hexutil.EncodeUint64(targetBlock),
	}

	var result SendBundleResult
	if err := c.rpc.CallContext(ctx, &result, "eth_sendBundle", params); err != nil {
		return nil, cerrors.NewRpcError("eth_sendBundle", err)
	}
	return &result, nil
}
