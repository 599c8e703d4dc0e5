package bitcoin

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/btcsuite/btcd/btcjson"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"go.uber.org/ratelimit"
)

const (
	methodGetBlockchainInfo = "getblockchaininfo"
	methodGetBlockHash      = "getblockhash"
	methodGetBlock          = "getblock"
	methodGetRawTransaction = "getrawtransaction"

	// blockVerbosityTx asks getblock for the block with decoded transactions.
	blockVerbosityTx = 2

	defaultCallTimeout = 30 * time.Second
)

// Gateway issues JSON-RPC calls to a bitcoin node and classifies failures into
// NetworkError, ProtocolError and ConnectionError. It never retries; callers
// decide whether a failed unit of work is retried on a later pass.
type Gateway struct {
	client  RawClient
	limiter ratelimit.Limiter
	metrics RPCMetrics
	timeout time.Duration
}

// NewGateway wraps client with rate limiting, per-call timeouts and metrics.
// A non-positive rps disables rate limiting.
func NewGateway(client RawClient, metrics RPCMetrics, rps int, timeout time.Duration) *Gateway {
	limiter := ratelimit.NewUnlimited()
	if rps > 0 {
		limiter = ratelimit.New(rps)
	}
	if timeout <= 0 {
		timeout = defaultCallTimeout
	}
	return &Gateway{
		client:  client,
		limiter: limiter,
		metrics: metrics,
		timeout: timeout,
	}
}

// Call sends method with params and waits at most timeout for the reply. A
// non-positive timeout falls back to the gateway default.
func (g *Gateway) Call(ctx context.Context, method string, params []any, timeout time.Duration) (result json.RawMessage, err error) {
	started := time.Now()
	defer func() {
		g.metrics.Observe(method, err, started)
	}()

	rawParams, err := marshalParams(params)
	if err != nil {
		return nil, &ProtocolError{Method: method, Err: err}
	}
	if timeout <= 0 {
		timeout = g.timeout
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	g.limiter.Take()
	if err = ctx.Err(); err != nil {
		return nil, &NetworkError{Method: method, Err: err}
	}

	result, err = g.client.RawRequest(ctx, method, rawParams)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && !isConnectionFailure(err) {
			err = &NetworkError{Method: method, Err: ctxErr}
			return nil, err
		}
		err = classify(method, err)
		return nil, err
	}
	if trimmed := bytes.TrimSpace(result); len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		err = protocolErrorf(method, "empty result")
		return nil, err
	}
	return result, nil
}

// ChainHeight returns the height of the node's best chain.
func (g *Gateway) ChainHeight(ctx context.Context) (int64, error) {
	raw, err := g.Call(ctx, methodGetBlockchainInfo, nil, 0)
	if err != nil {
		return 0, err
	}

	var info btcjson.GetBlockChainInfoResult
	if err := decode(methodGetBlockchainInfo, raw, &info); err != nil {
		return 0, err
	}
	if info.Chain == "" {
		return 0, protocolErrorf(methodGetBlockchainInfo, "missing chain")
	}
	if info.Blocks < 0 {
		return 0, protocolErrorf(methodGetBlockchainInfo, "negative block count %d", info.Blocks)
	}
	return int64(info.Blocks), nil
}

// BlockHash returns the hash of the best-chain block at height.
func (g *Gateway) BlockHash(ctx context.Context, height int64) (string, error) {
	raw, err := g.Call(ctx, methodGetBlockHash, []any{height}, 0)
	if err != nil {
		return "", err
	}

	var hash string
	if err := decode(methodGetBlockHash, raw, &hash); err != nil {
		return "", err
	}
	if _, err := chainhash.NewHashFromStr(hash); err != nil || len(hash) != chainhash.MaxHashStringSize {
		return "", protocolErrorf(methodGetBlockHash, "invalid block hash %q", hash)
	}
	return hash, nil
}

// Block returns the block identified by hash with decoded transactions.
func (g *Gateway) Block(ctx context.Context, hash string) (*btcjson.GetBlockVerboseTxResult, error) {
	raw, err := g.Call(ctx, methodGetBlock, []any{hash, blockVerbosityTx}, 0)
	if err != nil {
		return nil, err
	}

	var block btcjson.GetBlockVerboseTxResult
	if err := decode(methodGetBlock, raw, &block); err != nil {
		return nil, err
	}
	if block.Hash != hash {
		return nil, protocolErrorf(methodGetBlock, "block hash mismatch: requested %s, got %q", hash, block.Hash)
	}
	if block.Height < 0 {
		return nil, protocolErrorf(methodGetBlock, "block %s negative height %d", hash, block.Height)
	}
	if len(block.Tx) == 0 {
		return nil, protocolErrorf(methodGetBlock, "block %s has no decoded transactions", hash)
	}
	for i, tx := range block.Tx {
		if err := validateTx(methodGetBlock, tx); err != nil {
			return nil, fmt.Errorf("block %s tx %d: %w", hash, i, err)
		}
	}
	return &block, nil
}

// Transaction returns the decoded transaction with id txid.
func (g *Gateway) Transaction(ctx context.Context, txid string) (*btcjson.TxRawResult, error) {
	raw, err := g.Call(ctx, methodGetRawTransaction, []any{txid, true}, 0)
	if err != nil {
		return nil, err
	}

	var tx btcjson.TxRawResult
	if err := decode(methodGetRawTransaction, raw, &tx); err != nil {
		return nil, err
	}
	if tx.Txid != txid {
		return nil, protocolErrorf(methodGetRawTransaction, "txid mismatch: requested %s, got %q", txid, tx.Txid)
	}
	if err := validateTx(methodGetRawTransaction, tx); err != nil {
		return nil, err
	}
	return &tx, nil
}

func validateTx(method string, tx btcjson.TxRawResult) error {
	if tx.Txid == "" {
		return protocolErrorf(method, "transaction without txid")
	}
	if len(tx.Vin) == 0 {
		return protocolErrorf(method, "tx %s has no inputs", tx.Txid)
	}
	for idx, vout := range tx.Vout {
		if int(vout.N) != idx {
			return protocolErrorf(method, "tx %s output %d reports index %d", tx.Txid, idx, vout.N)
		}
	}
	for idx, vin := range tx.Vin {
		if !vin.IsCoinBase() && vin.Txid == "" {
			return protocolErrorf(method, "tx %s input %d missing previous txid", tx.Txid, idx)
		}
	}
	return nil
}

func decode(method string, raw json.RawMessage, dst any) error {
	if err := json.Unmarshal(raw, dst); err != nil {
		var syntaxErr *json.SyntaxError
		if errors.As(err, &syntaxErr) {
			return &ProtocolError{Method: method, Err: fmt.Errorf("malformed response: %w", err)}
		}
		return &ProtocolError{Method: method, Err: fmt.Errorf("unexpected response: %w", err)}
	}
	return nil
}

func marshalParams(params []any) ([]json.RawMessage, error) {
	if len(params) == 0 {
		return nil, nil
	}
	raw := make([]json.RawMessage, 0, len(params))
	for i, p := range params {
		b, err := json.Marshal(p)
		if err != nil {
			return nil, fmt.Errorf("marshal param %d: %w", i, err)
		}
		raw = append(raw, b)
	}
	return raw, nil
}
