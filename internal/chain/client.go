// Package chain wraps go-ethereum's ethclient/rpc transport for every
// JSON-RPC method contender needs (spec.md §6), plus an Engine API client
// for JWT-authenticated forkchoice/payload calls. It is adapted from the
// teacher's chain.NodeConfig/ConnectNodes shape (connect-by-URL, keep the
// connection open for the engine's lifetime, log on connect/disconnect),
// swapped from Filecoin's go-jsonrpc/lotus transport onto go-ethereum's own.
package chain

import (
	"context"
	"encoding/hex"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"

	cerrors "github.com/flashbots/contender/internal/errors"
	"github.com/flashbots/contender/internal/telemetry"
)

// DefaultRPCCallTimeout bounds every individual RPC call (spec.md §5).
const DefaultRPCCallTimeout = 10 * time.Second

// Client is a JSON-RPC connection to one Ethereum-family node.
type Client struct {
	url         string
	rpc         *rpc.Client
	eth         *ethclient.Client
	callTimeout time.Duration
}

// Dial connects to url (http(s):// or ws(s)://) and wraps it for both the
// typed ethclient calls and the raw CallContext calls contender needs
// (eth_sendBundle, eth_getBlockReceipts).
func Dial(ctx context.Context, url string, callTimeout time.Duration) (*Client, error) {
	if callTimeout <= 0 {
		callTimeout = DefaultRPCCallTimeout
	}
	rpcClient, err := rpc.DialContext(ctx, url)
	if err != nil {
		return nil, cerrors.NewRpcError("dial", err)
	}
	c := &Client{
		url:         url,
		rpc:         rpcClient,
		eth:         ethclient.NewClient(rpcClient),
		callTimeout: callTimeout,
	}
	telemetry.Log.WithField("url", url).Info("chain: connected")
	return c, nil
}

// Close releases the underlying connection.
func (c *Client) Close() {
	c.rpc.Close()
}

// URL returns the endpoint this client is connected to.
func (c *Client) URL() string { return c.url }

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, c.callTimeout)
}

// SendRawTransaction broadcasts a signed, RLP-encoded transaction.
func (c *Client) SendRawTransaction(ctx context.Context, raw []byte) (common.Hash, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	tx := new(types.Transaction)
	if err := tx.UnmarshalBinary(raw); err != nil {
		return common.Hash{}, cerrors.NewRpcError("eth_sendRawTransaction", err)
	}
	if err := c.eth.SendTransaction(ctx, tx); err != nil {
		return common.Hash{}, cerrors.NewRpcError("eth_sendRawTransaction", err)
	}
	return tx.Hash(), nil
}

// SendRawTransactionBatch submits every raw tx as one JSON-RPC batch
// request (spec.md §4.3: "group into JSON-RPC batch requests of size
// rpc_batch_size"), returning a per-index hash or error. A transport-level
// failure (the batch call itself erroring) is reported against every
// element.
func (c *Client) SendRawTransactionBatch(ctx context.Context, raws [][]byte) ([]common.Hash, []error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	elems := make([]rpc.BatchElem, len(raws))
	for i, raw := range raws {
		elems[i] = rpc.BatchElem{
			Method: "eth_sendRawTransaction",
			Args:   []any{"0x" + hex.EncodeToString(raw)},
			Result: new(string),
		}
	}

	errs := make([]error, len(raws))
	if err := c.rpc.BatchCallContext(ctx, elems); err != nil {
		for i := range errs {
			errs[i] = cerrors.NewRpcError("eth_sendRawTransaction(batch)", err)
		}
		return nil, errs
	}

	hashes := make([]common.Hash, len(raws))
	for i, elem := range elems {
		if elem.Error != nil {
			errs[i] = cerrors.NewRpcError("eth_sendRawTransaction", elem.Error)
			continue
		}
		tx := new(types.Transaction)
		if err := tx.UnmarshalBinary(raws[i]); err != nil {
			errs[i] = cerrors.NewRpcError("eth_sendRawTransaction", err)
			continue
		}
		hashes[i] = tx.Hash()
	}
	return hashes, errs
}

// NonceAt returns the account's next nonce, used to initialize a signer's
// internal counter (spec.md §3: "initialized from on-chain getTransactionCount").
func (c *Client) NonceAt(ctx context.Context, addr common.Address) (uint64, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	n, err := c.eth.PendingNonceAt(ctx, addr)
	if err != nil {
		return 0, cerrors.NewRpcError("eth_getTransactionCount", err)
	}
	return n, nil
}

// BalanceAt returns the account's current balance in wei.
func (c *Client) BalanceAt(ctx context.Context, addr common.Address) (*big.Int, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	bal, err := c.eth.BalanceAt(ctx, addr, nil)
	if err != nil {
		return nil, cerrors.NewRpcError("eth_getBalance", err)
	}
	return bal, nil
}

// SuggestGasPrice returns the node's suggested legacy gas price.
func (c *Client) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	p, err := c.eth.SuggestGasPrice(ctx)
	if err != nil {
		return nil, cerrors.NewRpcError("eth_gasPrice", err)
	}
	return p, nil
}

// SuggestGasTipCap returns the node's suggested EIP-1559 priority fee.
func (c *Client) SuggestGasTipCap(ctx context.Context) (*big.Int, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	tip, err := c.eth.SuggestGasTipCap(ctx)
	if err != nil {
		return nil, cerrors.NewRpcError("eth_maxPriorityFeePerGas", err)
	}
	return tip, nil
}

// HeaderByNumber fetches a block header; nil means "latest".
func (c *Client) HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	h, err := c.eth.HeaderByNumber(ctx, number)
	if err != nil {
		return nil, cerrors.NewRpcError("eth_getBlockByNumber", err)
	}
	return h, nil
}

// EstimateGas estimates gas for a call, used when a scenario directive has
// no explicit gas_limit (spec.md §4.3).
func (c *Client) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	gas, err := c.eth.EstimateGas(ctx, msg)
	if err != nil {
		return 0, cerrors.NewRpcError("eth_estimateGas", err)
	}
	return gas, nil
}

// BlockReceipts fetches every receipt in block via eth_getBlockReceipts.
// Callers should fall back to TransactionReceipt per-hash when the node
// returns a "method not found" style error (spec.md §4.4).
func (c *Client) BlockReceipts(ctx context.Context, blockNumber uint64) ([]*types.Receipt, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	var receipts []*types.Receipt
	err := c.rpc.CallContext(ctx, &receipts, "eth_getBlockReceipts", hexutil.EncodeUint64(blockNumber))
	if err != nil {
		return nil, cerrors.NewRpcError("eth_getBlockReceipts", err)
	}
	return receipts, nil
}

// TransactionReceipt fetches a single receipt by hash. Returns
// ethereum.NotFound (via the underlying ethclient) when the tx is not yet
// mined; callers treat that as "still pending," not an error.
func (c *Client) TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	r, err := c.eth.TransactionReceipt(ctx, hash)
	if err != nil {
		if err == ethereum.NotFound {
			return nil, err
		}
		return nil, cerrors.NewRpcError("eth_getTransactionReceipt", err)
	}
	return r, nil
}

// SubscribeNewHead subscribes to new block headers (eth_subscribe
// "newHeads"), used by BlockwiseSpammer.
func (c *Client) SubscribeNewHead(ctx context.Context, ch chan<- *types.Header) (ethereum.Subscription, error) {
	sub, err := c.eth.SubscribeNewHead(ctx, ch)
	if err != nil {
		return nil, cerrors.NewRpcError("eth_subscribe(newHeads)", err)
	}
	return sub, nil
}
