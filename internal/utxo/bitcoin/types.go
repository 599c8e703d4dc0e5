package bitcoin

import (
	"context"
	"encoding/json"
	"time"

	"github.com/btcsuite/btcd/btcjson"
)

//go:generate mockgen -source=$GOFILE -destination=mocks_test.go -package=$GOPACKAGE

type (
	// RawClient sends one JSON-RPC request and blocks until the node replies
	// or ctx is done. Implementations make a single attempt per call.
	RawClient interface {
		RawRequest(ctx context.Context, method string, params []json.RawMessage) (json.RawMessage, error)
	}

	// RPCMetrics records metrics for RPC calls.
	RPCMetrics interface {
		Observe(operation string, err error, started time.Time)
	}

	// ScriptDecoder extracts the paying address from an output script.
	ScriptDecoder interface {
		DecodeAddress(vout btcjson.Vout) (string, error)
	}
)
