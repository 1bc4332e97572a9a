package chain

import (
	"context"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"

	cerrors "github.com/flashbots/contender/internal/errors"
)

// ForkchoiceState is the Engine API's engine_forkchoiceUpdated head/safe/
// finalized triple.
type ForkchoiceState struct {
	HeadBlockHash      common.Hash `json:"headBlockHash"`
	SafeBlockHash      common.Hash `json:"safeBlockHash"`
	FinalizedBlockHash common.Hash `json:"finalizedBlockHash"`
}

// PayloadAttributes requests the engine build a new payload on top of
// ForkchoiceState.HeadBlockHash. GasLimit is an Optimism payload-attributes
// extension (spec.md §6) left nil for vanilla Ethereum L1 engines.
type PayloadAttributes struct {
	Timestamp             hexutil.Uint64  `json:"timestamp"`
	PrevRandao            common.Hash     `json:"prevRandao"`
	SuggestedFeeRecipient common.Address  `json:"suggestedFeeRecipient"`
	Withdrawals           []any           `json:"withdrawals,omitempty"`
	ParentBeaconBlockRoot *common.Hash    `json:"parentBeaconBlockRoot,omitempty"`
	GasLimit              *hexutil.Uint64 `json:"gasLimit,omitempty"`
}

// PayloadStatus is the status sub-object of a forkchoiceUpdated response.
type PayloadStatus struct {
	Status          string       `json:"status"`
	LatestValidHash *common.Hash `json:"latestValidHash"`
	ValidationError *string      `json:"validationError"`
}

// ForkchoiceUpdatedResult is engine_forkchoiceUpdated's response.
type ForkchoiceUpdatedResult struct {
	PayloadStatus PayloadStatus `json:"payloadStatus"`
	PayloadID     *string       `json:"payloadId"`
}

// ExecutionPayloadEnvelope is engine_getPayload's response: the minimum
// fields contender needs to confirm the build succeeded.
type ExecutionPayloadEnvelope struct {
	ExecutionPayload map[string]any `json:"executionPayload"`
	BlockValue       *hexutil.Big   `json:"blockValue"`
}

// EngineClient issues JWT-authenticated Engine API calls (spec.md §6,
// used when --fcu forces block building against a builder/consensus-client
// pair rather than letting the node's own mempool drive inclusion).
type EngineClient struct {
	url string
	rpc *rpc.Client
}

// NewEngineClient dials url with every request bearing a fresh HS256 JWT
// minted from the secret at jwtSecretPath.
func NewEngineClient(ctx context.Context, url, jwtSecretPath string) (*EngineClient, error) {
	secret, err := loadJWTSecret(jwtSecretPath)
	if err != nil {
		return nil, err
	}
	httpClient := &http.Client{
		Timeout:   DefaultRPCCallTimeout,
		Transport: &jwtTransport{secret: secret, base: http.DefaultTransport},
	}
	rpcClient, err := rpc.DialOptions(ctx, url, rpc.WithHTTPClient(httpClient))
	if err != nil {
		return nil, cerrors.NewRpcError("engine dial", err)
	}
	return &EngineClient{url: url, rpc: rpcClient}, nil
}

// Close releases the underlying connection.
func (e *EngineClient) Close() { e.rpc.Close() }

// ForkchoiceUpdated issues engine_forkchoiceUpdatedV2. attrs may be nil to
// merely update the canonical head without requesting a payload build.
func (e *EngineClient) ForkchoiceUpdated(ctx context.Context, state ForkchoiceState, attrs *PayloadAttributes) (*ForkchoiceUpdatedResult, error) {
	ctx, cancel := context.WithTimeout(ctx, DefaultRPCCallTimeout)
	defer cancel()

	var result ForkchoiceUpdatedResult
	err := e.rpc.CallContext(ctx, &result, "engine_forkchoiceUpdatedV2", state, attrs)
	if err != nil {
		return nil, cerrors.NewRpcError("engine_forkchoiceUpdatedV2", err)
	}
	return &result, nil
}

// GetPayload issues engine_getPayloadV2 for a previously requested build.
func (e *EngineClient) GetPayload(ctx context.Context, payloadID string) (*ExecutionPayloadEnvelope, error) {
	ctx, cancel := context.WithTimeout(ctx, DefaultRPCCallTimeout)
	defer cancel()

	var result ExecutionPayloadEnvelope
	err := e.rpc.CallContext(ctx, &result, "engine_getPayloadV2", payloadID)
	if err != nil {
		return nil, cerrors.NewRpcError("engine_getPayloadV2", err)
	}
	return &result, nil
}
